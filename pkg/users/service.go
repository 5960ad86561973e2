package users

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/authclient"
	"github.com/gurulk/platform/pkg/observability"
)

// Service implements registration, login, token validation and account
// management on top of the store and the token authority.
type Service struct {
	store   *Store
	tokens  *auth.TokenService
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the auth service core. metrics may be nil.
func NewService(store *Store, tokens *auth.TokenService, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, tokens: tokens, logger: logger, metrics: metrics}
}

// Register creates an account and returns a token for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (string, error) {
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return "", fmt.Errorf("username, email and password are required")
	}

	role, err := auth.ParseRole(req.Role)
	if err != nil {
		return "", err
	}
	language, err := auth.ParseLanguage(req.PreferredLanguage)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.store.Create(ctx, &User{
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      string(hash),
		Role:              role,
		PreferredLanguage: language,
		Region:            req.Region,
		IsLowIncome:       req.IsLowIncome,
	})
	if err != nil {
		return "", err
	}

	s.logger.WithField("userId", user.ID).WithField("role", string(role)).Info("user registered")
	return s.issue(user)
}

// Login verifies credentials and returns a fresh token. A wrong username
// and a wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, error) {
	user, err := s.store.ByUsername(ctx, req.Username)
	if errors.Is(err, ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return "", ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *Service) issue(user *User) (string, error) {
	token, err := s.tokens.Issue(user.Principal())
	if err != nil {
		return "", fmt.Errorf("issuing token: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.WithLabelValues(string(user.Role)).Inc()
	}
	return token, nil
}

// ValidateToken answers the remote validation contract. It never returns
// an error; every failure collapses into a negative result with a
// category message. A cryptographically valid token for a deleted
// account is rejected here, the store being the source of truth.
func (s *Service) ValidateToken(ctx context.Context, token string) *authclient.ValidationResult {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		s.countValidation(outcomeFor(err))
		return &authclient.ValidationResult{Valid: false, Message: messageFor(err)}
	}

	principal := claims.Principal()

	exists, err := s.store.Exists(ctx, principal.UserID)
	if err != nil {
		s.logger.WithError(err).Error("user existence check failed")
		s.countValidation("store_error")
		return &authclient.ValidationResult{Valid: false, Message: "Validation unavailable"}
	}
	if !exists {
		s.countValidation("unknown_user")
		return &authclient.ValidationResult{Valid: false, Message: "User not found"}
	}

	s.countValidation("valid")
	return &authclient.ValidationResult{
		Valid:    true,
		UserID:   principal.UserID,
		Username: principal.Username,
		Role:     string(principal.Role),
		Email:    principal.Email,
	}
}

func (s *Service) countValidation(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenValidationsTotal.WithLabelValues(outcome).Inc()
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "expired"
	case errors.Is(err, auth.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, auth.ErrMissingClaim):
		return "missing_claim"
	case errors.Is(err, auth.ErrTokenUnsupported):
		return "unsupported"
	default:
		return "malformed"
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token expired"
	default:
		return "Invalid token"
	}
}

// Profile returns the caller's own account.
func (s *Service) Profile(ctx context.Context, userID int64) (*User, error) {
	return s.store.ByID(ctx, userID)
}

// UpdateProfile applies self-service changes to the caller's account.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*User, error) {
	user, err := s.store.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		taken, err := s.store.EmailTaken(ctx, *req.Email, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDuplicate
		}
		user.Email = *req.Email
	}
	if req.PreferredLanguage != nil {
		language, err := auth.ParseLanguage(*req.PreferredLanguage)
		if err != nil {
			return nil, err
		}
		user.PreferredLanguage = language
	}
	if req.Region != nil {
		user.Region = *req.Region
	}
	if req.IsLowIncome != nil {
		user.IsLowIncome = *req.IsLowIncome
	}

	if err := s.store.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// AllUsers lists every account for the admin console.
func (s *Service) AllUsers(ctx context.Context) ([]*User, error) {
	return s.store.All(ctx)
}

// UserByID fetches one account for the admin console.
func (s *Service) UserByID(ctx context.Context, id int64) (*User, error) {
	return s.store.ByID(ctx, id)
}

// ChangeRole updates a user's role. An admin may not change their own
// role; the check runs after RBAC so it is a 403, not a validation error.
func (s *Service) ChangeRole(ctx context.Context, actor *auth.Principal, targetID int64, roleName string) (*User, error) {
	if actor.Is(targetID) {
		return nil, ErrSelfAction
	}

	role, err := auth.ParseRole(roleName)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateRole(ctx, targetID, role); err != nil {
		return nil, err
	}

	s.logger.WithField("actorId", actor.UserID).
		WithField("targetId", targetID).
		WithField("role", string(role)).
		Info("user role changed")
	return s.store.ByID(ctx, targetID)
}

// DeleteUser removes an account. Self-deletion is forbidden for the same
// reason self role-change is.
func (s *Service) DeleteUser(ctx context.Context, actor *auth.Principal, targetID int64) error {
	if actor.Is(targetID) {
		return ErrSelfAction
	}

	if err := s.store.Delete(ctx, targetID); err != nil {
		return err
	}

	s.logger.WithField("actorId", actor.UserID).
		WithField("targetId", targetID).
		Info("user deleted")
	return nil
}

// EmailByID resolves a user's email for the notification service.
func (s *Service) EmailByID(ctx context.Context, id int64) (string, error) {
	return s.store.EmailByID(ctx, id)
}

// IDsByRole resolves all user ids holding a role.
func (s *Service) IDsByRole(ctx context.Context, roleName string) ([]int64, error) {
	role, err := auth.ParseRole(roleName)
	if err != nil {
		return nil, err
	}
	return s.store.IDsByRole(ctx, role)
}

// AllIDs resolves every user id for broadcasts.
func (s *Service) AllIDs(ctx context.Context) ([]int64, error) {
	return s.store.AllIDs(ctx)
}

// LocalValidator implements the authentication gate's TokenValidator for
// the auth service itself, where validation is local signature checking
// plus the user existence check.
type LocalValidator struct {
	service *Service
}

// NewLocalValidator wraps the service.
func NewLocalValidator(service *Service) *LocalValidator {
	return &LocalValidator{service: service}
}

// Validate implements middleware.TokenValidator.
func (v *LocalValidator) Validate(ctx context.Context, token string) (*auth.Principal, error) {
	result := v.service.ValidateToken(ctx, token)
	if !result.Valid {
		return nil, fmt.Errorf("token rejected: %s", result.Message)
	}
	return result.Principal()
}
