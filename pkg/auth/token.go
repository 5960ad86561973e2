package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Validation failure reasons. Callers branch on these with errors.Is; the
// HTTP layer reports all of them as an invalid-token outcome.
var (
	ErrTokenMalformed   = errors.New("token malformed")
	ErrTokenExpired     = errors.New("token expired")
	ErrBadSignature     = errors.New("invalid signature")
	ErrTokenUnsupported = errors.New("token unsupported")
	ErrMissingClaim     = errors.New("missing required claim")
)

// TokenClaims is the only claim shape issued and accepted by the platform.
// Subject carries the username; userId, role and email are required custom
// claims, preferredLanguage is optional.
type TokenClaims struct {
	Role              string `json:"role"`
	UserID            int64  `json:"userId"`
	Email             string `json:"email"`
	PreferredLanguage string `json:"preferredLanguage,omitempty"`

	jwt.RegisteredClaims
}

// Principal reconstructs the principal encoded in the claims. The role has
// already been parsed by Validate, so this cannot fail.
func (c *TokenClaims) Principal() *Principal {
	role, _ := ParseRole(c.Role)
	lang, _ := ParseLanguage(c.PreferredLanguage)
	return &Principal{
		UserID:            c.UserID,
		Username:          c.Subject,
		Role:              role,
		Email:             c.Email,
		PreferredLanguage: lang,
	}
}

// TokenService issues and validates HMAC-SHA256 signed tokens. It holds the
// shared signing key; only the auth service constructs one. Both operations
// are pure and safe for concurrent use.
type TokenService struct {
	key []byte
	ttl time.Duration
}

// NewTokenService creates a token service with the given signing key and
// token lifetime.
func NewTokenService(key []byte, ttl time.Duration) *TokenService {
	return &TokenService{key: key, ttl: ttl}
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a signed token for the principal. Issuance assumes the
// principal is valid and persisted; there are no error conditions beyond
// the signing operation itself.
func (s *TokenService) Issue(p *Principal) (string, error) {
	now := time.Now()
	claims := &TokenClaims{
		Role:              p.Role.String(),
		UserID:            p.UserID,
		Email:             p.Email,
		PreferredLanguage: p.PreferredLanguage.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token string. On success it returns the
// embedded claims; on failure it returns one of the sentinel reasons above.
// Validation is pure: it never consults storage and never panics.
func (s *TokenService) Validate(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrTokenUnsupported, t.Header["alg"])
		}
		return s.key, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	if err := claims.requireComplete(); err != nil {
		return nil, err
	}
	return claims, nil
}

// requireComplete checks that every required claim is present and well
// formed. A token signed by an older build with a narrower claim set must
// be rejected, not half-trusted.
func (c *TokenClaims) requireComplete() error {
	if c.Subject == "" {
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if c.UserID == 0 {
		return fmt.Errorf("%w: userId", ErrMissingClaim)
	}
	if c.Email == "" {
		return fmt.Errorf("%w: email", ErrMissingClaim)
	}
	if c.Role == "" {
		return fmt.Errorf("%w: role", ErrMissingClaim)
	}
	if _, err := ParseRole(c.Role); err != nil {
		return fmt.Errorf("%w: role", ErrMissingClaim)
	}
	if c.ExpiresAt == nil {
		return fmt.Errorf("%w: exp", ErrMissingClaim)
	}
	return nil
}

// mapParseError collapses jwt library errors onto the platform's stable
// validation reasons.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, ErrTokenUnsupported):
		return ErrTokenUnsupported
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
