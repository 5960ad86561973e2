// Package middleware implements the request authentication gate and the
// route authorization policy engine shared by all services.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/authclient"
	"github.com/gurulk/platform/pkg/contextkeys"
	"github.com/gurulk/platform/pkg/httputil"
	"github.com/gurulk/platform/pkg/observability"
)

// ErrInvalidToken is returned by validators for any token that does not
// resolve to a principal.
var ErrInvalidToken = errors.New("invalid token")

// TokenValidator resolves a bearer token to a principal. The auth service
// validates locally against its own signing key and user store; every
// other service validates remotely through the auth client.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Principal, error)
}

// RemoteValidator adapts the auth client to the TokenValidator interface.
type RemoteValidator struct {
	client *authclient.Client
}

// NewRemoteValidator wraps an auth client.
func NewRemoteValidator(client *authclient.Client) *RemoteValidator {
	return &RemoteValidator{client: client}
}

// Validate implements TokenValidator. The client fails closed, so any
// failure collapses into ErrInvalidToken here.
func (v *RemoteValidator) Validate(ctx context.Context, token string) (*auth.Principal, error) {
	result, ok := v.client.Validate(ctx, token)
	if !ok {
		return nil, ErrInvalidToken
	}
	return result.Principal()
}

// Authenticate is the authentication gate. Requests without a bearer
// token pass through anonymous; the policy engine decides whether the
// route tolerates that. A present-but-invalid token is rejected with 401
// before the handler runs.
func Authenticate(validator TokenValidator, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			principal, err := validator.Validate(r.Context(), token)
			if err != nil {
				logger.WithError(err).
					WithField("path", r.URL.Path).
					Warn("token rejected")
				httputil.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := contextkeys.WithPrincipal(r.Context(), principal)
			ctx = contextkeys.WithBearerToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
