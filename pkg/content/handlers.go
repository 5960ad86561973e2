package content

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/httputil"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/observability"
)

// Handler exposes the content HTTP surface.
type Handler struct {
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the handler.
func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Policies is the route policy table for the content service. Uploads
// need contributor standing, the review surface is admin-only, and
// consumption needs a signed-in account.
func Policies() map[string]middleware.Policy {
	return map[string]middleware.Policy{
		"lessons.create":             middleware.MinRole(auth.RoleContributor),
		"lessons.approved":           middleware.Authenticated(),
		"lessons.get":                middleware.Authenticated(),
		"lessons.approve":            middleware.MinRole(auth.RoleAdmin),
		"lessons.view":               middleware.Authenticated(),
		"lessons.pending":            middleware.MinRole(auth.RoleAdmin),
		"lessons.all":                middleware.MinRole(auth.RoleAdmin),
		"lessons.analytics":          middleware.MinRole(auth.RoleAdmin),
		"lessons.by_uploader":        middleware.MinRole(auth.RoleContributor),
		"lessons.by_uploader_status": middleware.MinRole(auth.RoleContributor),
		"lessons.by_subject":         middleware.Authenticated(),
		"lessons.search_title":       middleware.Authenticated(),
		"lessons.search_description": middleware.Authenticated(),
		"lessons.popular":            middleware.Authenticated(),
		"downloads.create":           middleware.Authenticated(),
		"downloads.by_user":          middleware.Authenticated(),
		"downloads.by_lesson":        middleware.MinRole(auth.RoleAdmin),
		"downloads.count":            middleware.Authenticated(),
		"downloads.check":            middleware.Authenticated(),
		"downloads.expired":          middleware.MinRole(auth.RoleAdmin),
	}
}

// RegisterRoutes attaches all content routes to the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/lessons", h.CreateLesson).Methods(http.MethodPost).Name("lessons.create")
	router.HandleFunc("/api/lessons/approved", h.ApprovedLessons).Methods(http.MethodGet).Name("lessons.approved")
	router.HandleFunc("/api/lessons/pending", h.PendingLessons).Methods(http.MethodGet).Name("lessons.pending")
	router.HandleFunc("/api/lessons/all", h.AllLessons).Methods(http.MethodGet).Name("lessons.all")
	router.HandleFunc("/api/lessons/analytics", h.Analytics).Methods(http.MethodGet).Name("lessons.analytics")
	router.HandleFunc("/api/lessons/popular", h.PopularLessons).Methods(http.MethodGet).Name("lessons.popular")
	router.HandleFunc("/api/lessons/subject/{subject}", h.LessonsBySubject).Methods(http.MethodGet).Name("lessons.by_subject")
	router.HandleFunc("/api/lessons/search/title", h.SearchByTitle).Methods(http.MethodGet).Name("lessons.search_title")
	router.HandleFunc("/api/lessons/search/description", h.SearchByDescription).Methods(http.MethodGet).Name("lessons.search_description")
	router.HandleFunc("/api/lessons/uploader/{uploaderId:[0-9]+}", h.LessonsByUploader).Methods(http.MethodGet).Name("lessons.by_uploader")
	router.HandleFunc("/api/lessons/uploader/{uploaderId:[0-9]+}/status", h.LessonsByUploaderAndStatus).Methods(http.MethodGet).Name("lessons.by_uploader_status")
	router.HandleFunc("/api/lessons/{id:[0-9]+}", h.GetLesson).Methods(http.MethodGet).Name("lessons.get")
	router.HandleFunc("/api/lessons/{id:[0-9]+}/approve", h.ApproveLesson).Methods(http.MethodPut).Name("lessons.approve")
	router.HandleFunc("/api/lessons/{id:[0-9]+}/view", h.RecordView).Methods(http.MethodPut).Name("lessons.view")

	router.HandleFunc("/api/downloads", h.CreateDownload).Methods(http.MethodPost).Name("downloads.create")
	router.HandleFunc("/api/downloads/expired", h.ExpiredDownloads).Methods(http.MethodGet).Name("downloads.expired")
	router.HandleFunc("/api/downloads/user/{userId:[0-9]+}", h.DownloadsByUser).Methods(http.MethodGet).Name("downloads.by_user")
	router.HandleFunc("/api/downloads/lesson/{lessonId:[0-9]+}", h.DownloadsByLesson).Methods(http.MethodGet).Name("downloads.by_lesson")
	router.HandleFunc("/api/downloads/count/{lessonId:[0-9]+}", h.CountDownloads).Methods(http.MethodGet).Name("downloads.count")
	router.HandleFunc("/api/downloads/check/{lessonId:[0-9]+}", h.CheckDownload).Methods(http.MethodGet).Name("downloads.check")
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrLessonNotFound):
		httputil.WriteNotFoundError(w, "Lesson not found")
	case errors.Is(err, ErrDownloadNotFound):
		httputil.WriteNotFoundError(w, "Download not found")
	default:
		httputil.WriteInternalError(w, err)
	}
}

// CreateLesson handles POST /api/lessons.
func (h *Handler) CreateLesson(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req LessonRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") ||
		!httputil.RequireNonEmpty(w, req.FileURL, "fileUrl") {
		return
	}

	lesson, err := h.service.CreateLesson(r.Context(), principal, req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, lesson)
}

// GetLesson handles GET /api/lessons/{id}.
func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	lesson, err := h.service.Lesson(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lesson)
}

// ApprovedLessons handles GET /api/lessons/approved.
func (h *Handler) ApprovedLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.service.ApprovedLessons(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lessons)
}

// PendingLessons handles GET /api/lessons/pending.
func (h *Handler) PendingLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.service.PendingLessons(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lessons)
}

// AllLessons handles GET /api/lessons/all.
func (h *Handler) AllLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.service.AllLessons(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lessons)
}

// Analytics handles GET /api/lessons/analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.service.ContentAnalytics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, analytics)
}

// PopularLessons handles GET /api/lessons/popular.
func (h *Handler) PopularLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.service.PopularLessons(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lessons)
}

// LessonsBySubject handles GET /api/lessons/subject/{subject}.
func (h *Handler) LessonsBySubject(w http.ResponseWriter, r *http.Request) {
	subject, err := httputil.ParsePathString(r, "subject")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	lessons, err := h.service.LessonsBySubject(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lessons)
}

// SearchByTitle handles GET /api/lessons/search/title?keyword=.
func (h *Handler) SearchByTitle(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, "title")
}

// SearchByDescription handles GET /api/lessons/search/description?keyword=.
func (h *Handler) SearchByDescription(w http.ResponseWriter, r *http.Request) {
	h.search(w, r, "description")
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request, field string) {
	keyword := r.URL.Query().Get("keyword")

	lessons, err := h.service.Search(r.Context(), field, keyword)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lessons)
}

// LessonsByUploader handles GET /api/lessons/uploader/{uploaderId}.
// Contributors see their own uploads; admins see anyone's.
func (h *Handler) LessonsByUploader(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	uploaderID, ok := httputil.ParsePathInt64OrError(w, r, "uploaderId")
	if !ok {
		return
	}
	if !principal.Is(uploaderID) && !principal.IsAdmin() {
		httputil.WriteForbidden(w)
		return
	}

	lessons, err := h.service.LessonsByUploader(r.Context(), uploaderID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lessons)
}

// LessonsByUploaderAndStatus handles
// GET /api/lessons/uploader/{uploaderId}/status?approved=.
func (h *Handler) LessonsByUploaderAndStatus(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	uploaderID, ok := httputil.ParsePathInt64OrError(w, r, "uploaderId")
	if !ok {
		return
	}
	if !principal.Is(uploaderID) && !principal.IsAdmin() {
		httputil.WriteForbidden(w)
		return
	}
	approved := httputil.ParseQueryBool(r, "approved", true)

	lessons, err := h.service.LessonsByUploaderAndApproval(r.Context(), uploaderID, approved)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lessons)
}

// ApproveLesson handles PUT /api/lessons/{id}/approve.
func (h *Handler) ApproveLesson(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	lesson, err := h.service.ApproveLesson(r.Context(), principal, id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lesson)
}

// RecordView handles PUT /api/lessons/{id}/view.
func (h *Handler) RecordView(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	lesson, err := h.service.RecordView(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, lesson)
}

// CreateDownload handles POST /api/downloads.
func (h *Handler) CreateDownload(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req DownloadRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	download, err := h.service.CreateDownload(r.Context(), principal, req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, download)
}

// DownloadsByUser handles GET /api/downloads/user/{userId}. Users see
// their own downloads; admins see anyone's.
func (h *Handler) DownloadsByUser(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}
	if !principal.Is(userID) && !principal.IsAdmin() {
		httputil.WriteForbidden(w)
		return
	}

	downloads, err := h.service.DownloadsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, downloads)
}

// DownloadsByLesson handles GET /api/downloads/lesson/{lessonId}.
func (h *Handler) DownloadsByLesson(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := httputil.ParsePathInt64OrError(w, r, "lessonId")
	if !ok {
		return
	}

	downloads, err := h.service.DownloadsByLesson(r.Context(), lessonID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, downloads)
}

// CountDownloads handles GET /api/downloads/count/{lessonId}.
func (h *Handler) CountDownloads(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := httputil.ParsePathInt64OrError(w, r, "lessonId")
	if !ok {
		return
	}

	count, err := h.service.CountDownloads(r.Context(), lessonID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, count)
}

// CheckDownload handles GET /api/downloads/check/{lessonId}.
func (h *Handler) CheckDownload(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	lessonID, ok := httputil.ParsePathInt64OrError(w, r, "lessonId")
	if !ok {
		return
	}

	downloaded, err := h.service.HasDownloaded(r.Context(), principal, lessonID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, downloaded)
}

// ExpiredDownloads handles GET /api/downloads/expired.
func (h *Handler) ExpiredDownloads(w http.ResponseWriter, r *http.Request) {
	downloads, err := h.service.ExpiredDownloads(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, downloads)
}
