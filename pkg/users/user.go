// Package users implements the credential store and account management
// surface of the auth service. It is the only package that reads or
// writes user rows; every other service learns about users through token
// validation or the recipient lookup endpoints.
package users

import (
	"errors"
	"time"

	"github.com/gurulk/platform/pkg/auth"
)

var (
	// ErrNotFound indicates the requested user does not exist
	ErrNotFound = errors.New("user not found")
	// ErrDuplicate indicates the username or email is already taken
	ErrDuplicate = errors.New("username or email already exists")
	// ErrInvalidCredentials indicates a failed login attempt
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSelfAction indicates an admin targeting their own account
	ErrSelfAction = errors.New("cannot perform this action on your own account")
)

// User is a registered account. The password hash never serializes.
type User struct {
	ID                int64         `json:"id"`
	Username          string        `json:"username"`
	Email             string        `json:"email"`
	PasswordHash      string        `json:"-"`
	Role              auth.Role     `json:"role"`
	PreferredLanguage auth.Language `json:"preferredLanguage,omitempty"`
	Region            string        `json:"region,omitempty"`
	IsLowIncome       bool          `json:"isLowIncome"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// Principal converts the user into the identity carried by its tokens.
func (u *User) Principal() *auth.Principal {
	return &auth.Principal{
		UserID:            u.ID,
		Username:          u.Username,
		Role:              u.Role,
		Email:             u.Email,
		PreferredLanguage: u.PreferredLanguage,
	}
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Username          string `json:"username"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	Role              string `json:"role"`
	PreferredLanguage string `json:"preferredLanguage"`
	Region            string `json:"region"`
	IsLowIncome       bool   `json:"isLowIncome"`
}

// LoginRequest is the payload for credential login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries a freshly issued token.
type TokenResponse struct {
	Token string `json:"token"`
}

// UpdateProfileRequest is the payload for self-service profile updates.
// Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Email             *string `json:"email"`
	PreferredLanguage *string `json:"preferredLanguage"`
	Region            *string `json:"region"`
	IsLowIncome       *bool   `json:"isLowIncome"`
}
