package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func testPrincipal() *Principal {
	return &Principal{
		UserID:            42,
		Username:          "alice",
		Role:              RoleLearner,
		Email:             "alice@example.com",
		PreferredLanguage: LanguageEnglish,
	}
}

// TestIssueValidateRoundTrip verifies that a freshly issued token validates
// and yields the original principal's claims
func TestIssueValidateRoundTrip(t *testing.T) {
	svc := NewTokenService(testKey, time.Hour)

	token, err := svc.Issue(testPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(token, ".")), "token must have three dot-separated segments")

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "LEARNER", claims.Role)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "ENGLISH", claims.PreferredLanguage)

	p := claims.Principal()
	assert.Equal(t, testPrincipal(), p)
}

// TestValidateExpired verifies that a token past its expiry fails with the
// expired reason
func TestValidateExpired(t *testing.T) {
	svc := NewTokenService(testKey, -time.Minute)

	token, err := svc.Issue(testPrincipal())
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

// TestValidateTamperedSignature verifies that altering the signature segment
// always yields a bad-signature result, never a valid one
func TestValidateTamperedSignature(t *testing.T) {
	svc := NewTokenService(testKey, time.Hour)

	token, err := svc.Issue(testPrincipal())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	sig := []byte(parts[2])
	for i := range sig {
		tampered := make([]byte, len(sig))
		copy(tampered, sig)
		if tampered[i] == 'A' {
			tampered[i] = 'B'
		} else {
			tampered[i] = 'A'
		}
		bad := parts[0] + "." + parts[1] + "." + string(tampered)

		_, err := svc.Validate(bad)
		require.Error(t, err, "tampered byte %d must not validate", i)
		assert.NotErrorIs(t, err, ErrTokenExpired)
	}
}

// TestValidateWrongKey verifies tokens signed under a different key are rejected
func TestValidateWrongKey(t *testing.T) {
	issuer := NewTokenService([]byte("another-key-another-key-another!"), time.Hour)
	verifier := NewTokenService(testKey, time.Hour)

	token, err := issuer.Issue(testPrincipal())
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, ErrBadSignature)
}

// TestValidateMalformed verifies garbage input maps to the malformed reason
func TestValidateMalformed(t *testing.T) {
	svc := NewTokenService(testKey, time.Hour)

	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := svc.Validate(input)
		assert.ErrorIs(t, err, ErrTokenMalformed, "input %q", input)
	}
}

// TestValidateUnsupportedAlgorithm verifies a token with a non-HMAC
// algorithm is rejected as unsupported
func TestValidateUnsupportedAlgorithm(t *testing.T) {
	svc := NewTokenService(testKey, time.Hour)

	claims := &TokenClaims{
		Role:   "LEARNER",
		UserID: 42,
		Email:  "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrTokenUnsupported)
}

// TestValidateMissingClaims verifies tokens lacking required claims are
// rejected even when the signature is good
func TestValidateMissingClaims(t *testing.T) {
	svc := NewTokenService(testKey, time.Hour)

	sign := func(claims *TokenClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
		require.NoError(t, err)
		return token
	}
	exp := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		claims *TokenClaims
	}{
		{"no subject", &TokenClaims{Role: "LEARNER", UserID: 42, Email: "a@b.c",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: exp}}},
		{"no userId", &TokenClaims{Role: "LEARNER", Email: "a@b.c",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: exp}}},
		{"no email", &TokenClaims{Role: "LEARNER", UserID: 42,
			RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: exp}}},
		{"no role", &TokenClaims{UserID: 42, Email: "a@b.c",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: exp}}},
		{"bad role", &TokenClaims{Role: "WIZARD", UserID: 42, Email: "a@b.c",
			RegisteredClaims: jwt.RegisteredClaims{Subject: "alice", ExpiresAt: exp}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Validate(sign(tt.claims))
			assert.ErrorIs(t, err, ErrMissingClaim)
		})
	}
}
