package users

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/httputil"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/observability"
)

// Handler exposes the auth service HTTP surface.
type Handler struct {
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the handler.
func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Policies is the route policy table for the auth service.
func Policies() map[string]middleware.Policy {
	return map[string]middleware.Policy{
		"auth.register":       middleware.Public(),
		"auth.login":          middleware.Public(),
		"auth.validate":       middleware.Public(),
		"auth.user_email":     middleware.MinRole(auth.RoleAdmin),
		"auth.users_by_role":  middleware.MinRole(auth.RoleAdmin),
		"auth.user_ids":       middleware.MinRole(auth.RoleAdmin),
		"user.profile_get":    middleware.Authenticated(),
		"user.profile_update": middleware.Authenticated(),
		"user.admin_all":      middleware.MinRole(auth.RoleAdmin),
		"user.admin_get":      middleware.MinRole(auth.RoleAdmin),
		"user.admin_role":     middleware.MinRole(auth.RoleAdmin),
		"user.admin_delete":   middleware.MinRole(auth.RoleAdmin),
	}
}

// RegisterRoutes attaches all auth service routes to the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/register", h.Register).Methods(http.MethodPost).Name("auth.register")
	router.HandleFunc("/api/auth/login", h.Login).Methods(http.MethodPost).Name("auth.login")
	router.HandleFunc("/api/auth/validate-token", h.ValidateToken).Methods(http.MethodPost).Name("auth.validate")
	router.HandleFunc("/api/auth/users/ids", h.AllUserIDs).Methods(http.MethodGet).Name("auth.user_ids")
	router.HandleFunc("/api/auth/users/{userId:[0-9]+}/email", h.UserEmail).Methods(http.MethodGet).Name("auth.user_email")
	router.HandleFunc("/api/auth/roles/{role}/users", h.UsersByRole).Methods(http.MethodGet).Name("auth.users_by_role")

	router.HandleFunc("/api/user/profile", h.Profile).Methods(http.MethodGet).Name("user.profile_get")
	router.HandleFunc("/api/user/profile", h.UpdateProfile).Methods(http.MethodPut).Name("user.profile_update")
	router.HandleFunc("/api/user/admin/all", h.AllUsers).Methods(http.MethodGet).Name("user.admin_all")
	router.HandleFunc("/api/user/admin/{userId:[0-9]+}", h.UserByID).Methods(http.MethodGet).Name("user.admin_get")
	router.HandleFunc("/api/user/admin/{userId:[0-9]+}/role", h.ChangeRole).Methods(http.MethodPut).Name("user.admin_role")
	router.HandleFunc("/api/user/admin/{userId:[0-9]+}", h.DeleteUser).Methods(http.MethodDelete).Name("user.admin_delete")
}

// writeError maps domain errors onto the shared error body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDuplicate):
		httputil.WriteBadRequest(w, "Username or email already exists")
	case errors.Is(err, ErrInvalidCredentials):
		httputil.WriteNotFoundError(w, "Invalid credentials")
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFoundError(w, "User not found")
	case errors.Is(err, ErrSelfAction):
		httputil.WriteForbidden(w)
	case errors.Is(err, auth.ErrUnknownRole), errors.Is(err, auth.ErrUnknownLanguage):
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Username, "username") ||
		!httputil.RequireNonEmpty(w, req.Email, "email") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	token, err := h.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, TokenResponse{Token: token})
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	token, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, TokenResponse{Token: token})
}

// ValidateToken handles POST /api/auth/validate-token. Always 200; the
// verdict lives in the body.
func (h *Handler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result := h.service.ValidateToken(r.Context(), req.Token)
	httputil.WriteSuccess(w, result)
}

// UserEmail handles GET /api/auth/users/{userId}/email.
func (h *Handler) UserEmail(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	email, err := h.service.EmailByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, email)
}

// UsersByRole handles GET /api/auth/roles/{role}/users.
func (h *Handler) UsersByRole(w http.ResponseWriter, r *http.Request) {
	role, err := httputil.ParsePathString(r, "role")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ids, err := h.service.IDsByRole(r.Context(), role)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, ids)
}

// AllUserIDs handles GET /api/auth/users/ids.
func (h *Handler) AllUserIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.service.AllIDs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, ids)
}

// Profile handles GET /api/user/profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	user, err := h.service.Profile(r.Context(), principal.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// UpdateProfile handles PUT /api/user/profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req UpdateProfileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), principal.UserID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// AllUsers handles GET /api/user/admin/all.
func (h *Handler) AllUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.AllUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// UserByID handles GET /api/user/admin/{userId}.
func (h *Handler) UserByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	user, err := h.service.UserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// ChangeRole handles PUT /api/user/admin/{userId}/role?role=X.
func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	role := r.URL.Query().Get("role")
	if !httputil.RequireNonEmpty(w, role, "role") {
		return
	}

	user, err := h.service.ChangeRole(r.Context(), principal, userID, role)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// DeleteUser handles DELETE /api/user/admin/{userId}.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), principal, userID); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
