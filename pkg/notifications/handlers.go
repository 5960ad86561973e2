package notifications

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/contextkeys"
	"github.com/gurulk/platform/pkg/httputil"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/observability"
)

// Handler exposes the notification HTTP surface.
type Handler struct {
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the handler.
func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Policies is the route policy table for the notification service. Only
// admins create or fan out; everything else operates on the caller's own
// inbox.
func Policies() map[string]middleware.Policy {
	return map[string]middleware.Policy{
		"notifications.create":       middleware.MinRole(auth.RoleAdmin),
		"notifications.role":         middleware.MinRole(auth.RoleAdmin),
		"notifications.broadcast":    middleware.MinRole(auth.RoleAdmin),
		"notifications.list":         middleware.Authenticated(),
		"notifications.user_or_role": middleware.Authenticated(),
		"notifications.paginated":    middleware.Authenticated(),
		"notifications.unread":       middleware.Authenticated(),
		"notifications.unread_count": middleware.Authenticated(),
		"notifications.recent":       middleware.Authenticated(),
		"notifications.mark_read":    middleware.Authenticated(),
		"notifications.read_all":     middleware.Authenticated(),
		"notifications.delete":       middleware.Authenticated(),
	}
}

// RegisterRoutes attaches all notification routes to the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/notifications", h.Create).Methods(http.MethodPost).Name("notifications.create")
	router.HandleFunc("/api/notifications/role", h.SendToRole).Methods(http.MethodPost).Name("notifications.role")
	router.HandleFunc("/api/notifications/broadcast", h.Broadcast).Methods(http.MethodPost).Name("notifications.broadcast")

	router.HandleFunc("/api/notifications", h.List).Methods(http.MethodGet).Name("notifications.list")
	router.HandleFunc("/api/notifications/user-or-role", h.ListUserOrRole).Methods(http.MethodGet).Name("notifications.user_or_role")
	router.HandleFunc("/api/notifications/paginated", h.ListPaginated).Methods(http.MethodGet).Name("notifications.paginated")
	router.HandleFunc("/api/notifications/unread", h.ListUnread).Methods(http.MethodGet).Name("notifications.unread")
	router.HandleFunc("/api/notifications/unread/count", h.UnreadCount).Methods(http.MethodGet).Name("notifications.unread_count")
	router.HandleFunc("/api/notifications/recent", h.ListRecent).Methods(http.MethodGet).Name("notifications.recent")

	router.HandleFunc("/api/notifications/read-all", h.MarkAllRead).Methods(http.MethodPatch).Name("notifications.read_all")
	router.HandleFunc("/api/notifications/{id:[0-9]+}/read", h.MarkRead).Methods(http.MethodPatch).Name("notifications.mark_read")
	router.HandleFunc("/api/notifications/{id:[0-9]+}", h.Delete).Methods(http.MethodDelete).Name("notifications.delete")
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httputil.WriteNotFoundError(w, "Notification not found")
	case errors.Is(err, ErrNotOwner):
		httputil.WriteForbidden(w)
	case errors.Is(err, auth.ErrUnknownRole):
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

// Create handles POST /api/notifications.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == 0 {
		httputil.WriteBadRequest(w, "userId is required")
		return
	}
	if !httputil.RequireNonEmpty(w, req.Type, "type") ||
		!httputil.RequireNonEmpty(w, req.Message, "message") {
		return
	}

	notification, err := h.service.Create(r.Context(), contextkeys.GetBearerToken(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, notification)
}

// SendToRole handles POST /api/notifications/role.
func (h *Handler) SendToRole(w http.ResponseWriter, r *http.Request) {
	var req RoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Role, "role") ||
		!httputil.RequireNonEmpty(w, req.Type, "type") ||
		!httputil.RequireNonEmpty(w, req.Message, "message") {
		return
	}

	result, err := h.service.SendToRole(r.Context(), contextkeys.GetBearerToken(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// Broadcast handles POST /api/notifications/broadcast.
func (h *Handler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Type, "type") ||
		!httputil.RequireNonEmpty(w, req.Message, "message") {
		return
	}

	result, err := h.service.Broadcast(r.Context(), contextkeys.GetBearerToken(r.Context()), req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// List handles GET /api/notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	notifications, err := h.service.ForUser(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, notifications)
}

// ListUserOrRole handles GET /api/notifications/user-or-role.
func (h *Handler) ListUserOrRole(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	notifications, err := h.service.ForUserOrRole(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, notifications)
}

// ListPaginated handles GET /api/notifications/paginated?page=&size=.
func (h *Handler) ListPaginated(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	page := httputil.ParseQueryInt(r, "page", 0)
	size := httputil.ParseQueryInt(r, "size", 20)

	result, err := h.service.ForUserPaginated(r.Context(), principal, page, size)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// ListUnread handles GET /api/notifications/unread.
func (h *Handler) ListUnread(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	notifications, err := h.service.Unread(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, notifications)
}

// UnreadCount handles GET /api/notifications/unread/count.
func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	count, err := h.service.UnreadCount(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, count)
}

// ListRecent handles GET /api/notifications/recent?count=.
func (h *Handler) ListRecent(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	count := httputil.ParseQueryInt(r, "count", recentDefault)

	notifications, err := h.service.Recent(r.Context(), principal, count)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, notifications)
}

// MarkRead handles PATCH /api/notifications/{id}/read.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	notification, err := h.service.MarkRead(r.Context(), principal, id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, notification)
}

// MarkAllRead handles PATCH /api/notifications/read-all.
func (h *Handler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	changed, err := h.service.MarkAllRead(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, changed)
}

// Delete handles DELETE /api/notifications/{id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
