package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/observability"
)

const defaultRequestTimeout = 5 * time.Second

// ValidationResult is the auth service's answer for a token. The zero
// Message is normal on success.
type ValidationResult struct {
	Valid    bool   `json:"valid"`
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	Message  string `json:"message,omitempty"`
}

// Principal converts a positive validation result into a Principal. The
// role has already been vetted by the auth service but is parsed again so
// a garbled payload cannot smuggle an unknown role into the request
// context.
func (v *ValidationResult) Principal() (*auth.Principal, error) {
	role, err := auth.ParseRole(v.Role)
	if err != nil {
		return nil, err
	}
	return &auth.Principal{
		UserID:   v.UserID,
		Username: v.Username,
		Role:     role,
		Email:    v.Email,
	}, nil
}

// Client calls the auth service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *validationCache
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithCache enables caching of positive validation results.
func WithCache(cache *validationCache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithMetrics wires cache and validation counters.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Client) {
		c.metrics = metrics
	}
}

// NewClient creates a client for the auth service at baseURL.
func NewClient(baseURL string, logger *observability.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate asks the auth service whether the token is valid. The second
// return value is false on any failure, including transport errors; the
// caller never sees an error, only "not valid".
func (c *Client) Validate(ctx context.Context, token string) (*ValidationResult, bool) {
	if token == "" {
		return nil, false
	}

	if c.cache != nil {
		if result, ok := c.cache.Get(ctx, token); ok {
			return result, true
		}
	}

	result, ok := c.validateRemote(ctx, token)
	if !ok {
		return nil, false
	}

	if c.cache != nil {
		c.cache.Put(ctx, token, result)
	}
	return result, true
}

func (c *Client) validateRemote(ctx context.Context, token string) (*ValidationResult, bool) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/validate-token", bytes.NewReader(body))
	if err != nil {
		return nil, false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Warn("token validation request failed")
		c.countValidation("transport_error")
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warnf("token validation returned status %d", resp.StatusCode)
		c.countValidation("bad_status")
		return nil, false
	}

	var result ValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.logger.WithError(err).Warn("token validation response malformed")
		c.countValidation("decode_error")
		return nil, false
	}

	if !result.Valid || result.Username == "" || result.Role == "" || result.UserID == 0 {
		c.countValidation("invalid")
		return nil, false
	}

	c.countValidation("valid")
	return &result, true
}

func (c *Client) countValidation(outcome string) {
	if c.metrics != nil {
		c.metrics.TokenValidationsTotal.WithLabelValues(outcome).Inc()
	}
}

// UserEmail resolves a user's email address, forwarding the caller's
// bearer token so the auth service applies its own access control.
func (c *Client) UserEmail(ctx context.Context, bearerToken string, userID int64) (string, error) {
	var email string
	path := fmt.Sprintf("/api/auth/users/%d/email", userID)
	if err := c.getJSON(ctx, bearerToken, path, &email); err != nil {
		return "", err
	}
	if email == "" {
		return "", fmt.Errorf("no email for user %d", userID)
	}
	return email, nil
}

// UserIDsByRole resolves all user ids holding the given role.
func (c *Client) UserIDsByRole(ctx context.Context, bearerToken string, role auth.Role) ([]int64, error) {
	var ids []int64
	path := fmt.Sprintf("/api/auth/roles/%s/users", role)
	if err := c.getJSON(ctx, bearerToken, path, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// AllUserIDs resolves every registered user id.
func (c *Client) AllUserIDs(ctx context.Context, bearerToken string) ([]int64, error) {
	var ids []int64
	if err := c.getJSON(ctx, bearerToken, "/api/auth/users/ids", &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) getJSON(ctx context.Context, bearerToken, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	if bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth service returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("auth service response malformed: %w", err)
	}
	return nil
}
