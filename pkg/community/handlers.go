package community

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/httputil"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/observability"
)

// Handler exposes the community HTTP surface.
type Handler struct {
	service *Service
	logger  *observability.Logger
}

// NewHandler creates the handler.
func NewHandler(service *Service, logger *observability.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Policies is the route policy table for the community service. Votes
// use an explicit allow-set: admins moderate, they do not vote.
func Policies() map[string]middleware.Policy {
	return map[string]middleware.Policy{
		"questions.create":      middleware.MinRole(auth.RoleLearner),
		"questions.get":         middleware.Public(),
		"questions.list":        middleware.Public(),
		"questions.by_subject":  middleware.Public(),
		"questions.by_language": middleware.Public(),
		"questions.by_user":     middleware.Authenticated(),
		"questions.delete":      middleware.Authenticated(),
		"answers.create":        middleware.MinRole(auth.RoleContributor),
		"answers.by_question":   middleware.Public(),
		"answers.update":        middleware.Authenticated(),
		"answers.delete":        middleware.Authenticated(),
		"answers.accept":        middleware.MinRole(auth.RoleAdmin),
		"votes.create":          middleware.AnyOf(auth.RoleLearner, auth.RoleContributor),
		"votes.count":           middleware.Public(),
		"votes.difference":      middleware.Public(),
		"votes.remove":          middleware.AnyOf(auth.RoleLearner, auth.RoleContributor),
	}
}

// RegisterRoutes attaches all community routes to the router.
func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/questions", h.CreateQuestion).Methods(http.MethodPost).Name("questions.create")
	router.HandleFunc("/api/questions", h.ListQuestions).Methods(http.MethodGet).Name("questions.list")
	router.HandleFunc("/api/questions/{id:[0-9]+}", h.GetQuestion).Methods(http.MethodGet).Name("questions.get")
	router.HandleFunc("/api/questions/{id:[0-9]+}", h.DeleteQuestion).Methods(http.MethodDelete).Name("questions.delete")
	router.HandleFunc("/api/questions/subject/{subject}", h.QuestionsBySubject).Methods(http.MethodGet).Name("questions.by_subject")
	router.HandleFunc("/api/questions/language/{language}", h.QuestionsByLanguage).Methods(http.MethodGet).Name("questions.by_language")
	router.HandleFunc("/api/questions/user/{userId:[0-9]+}", h.QuestionsByUser).Methods(http.MethodGet).Name("questions.by_user")

	router.HandleFunc("/api/answers", h.CreateAnswer).Methods(http.MethodPost).Name("answers.create")
	router.HandleFunc("/api/answers/question/{questionId:[0-9]+}", h.AnswersByQuestion).Methods(http.MethodGet).Name("answers.by_question")
	router.HandleFunc("/api/answers/{id:[0-9]+}", h.UpdateAnswer).Methods(http.MethodPut).Name("answers.update")
	router.HandleFunc("/api/answers/{id:[0-9]+}", h.DeleteAnswer).Methods(http.MethodDelete).Name("answers.delete")
	router.HandleFunc("/api/answers/{id:[0-9]+}/accept", h.AcceptAnswer).Methods(http.MethodPut).Name("answers.accept")

	router.HandleFunc("/api/votes", h.CastVote).Methods(http.MethodPost).Name("votes.create")
	router.HandleFunc("/api/votes/count/{answerId:[0-9]+}", h.CountVotes).Methods(http.MethodGet).Name("votes.count")
	router.HandleFunc("/api/votes/difference/{answerId:[0-9]+}", h.VoteDifference).Methods(http.MethodGet).Name("votes.difference")
	router.HandleFunc("/api/votes/{answerId:[0-9]+}", h.RemoveVote).Methods(http.MethodDelete).Name("votes.remove")
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrQuestionNotFound):
		httputil.WriteNotFoundError(w, "Question not found")
	case errors.Is(err, ErrAnswerNotFound):
		httputil.WriteNotFoundError(w, "Answer not found")
	case errors.Is(err, ErrVoteNotFound):
		httputil.WriteNotFoundError(w, "Vote not found")
	case errors.Is(err, ErrNotOwner), errors.Is(err, ErrOwnAnswerVote):
		httputil.WriteForbidden(w)
	case errors.Is(err, auth.ErrUnknownLanguage):
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}

// CreateQuestion handles POST /api/questions.
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req QuestionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") ||
		!httputil.RequireNonEmpty(w, req.Body, "body") ||
		!httputil.RequireNonEmpty(w, req.Language, "language") {
		return
	}

	question, err := h.service.CreateQuestion(r.Context(), principal, req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, question)
}

// GetQuestion handles GET /api/questions/{id}.
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	question, err := h.service.Question(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, question)
}

// ListQuestions handles GET /api/questions?page=&size=.
func (h *Handler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	size := httputil.ParseQueryInt(r, "size", 20)
	page := httputil.ParseQueryInt(r, "page", 0)

	questions, err := h.service.Questions(r.Context(), size, page*size)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, questions)
}

// QuestionsBySubject handles GET /api/questions/subject/{subject}.
func (h *Handler) QuestionsBySubject(w http.ResponseWriter, r *http.Request) {
	subject, err := httputil.ParsePathString(r, "subject")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	questions, err := h.service.QuestionsBySubject(r.Context(), subject)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, questions)
}

// QuestionsByLanguage handles GET /api/questions/language/{language}.
func (h *Handler) QuestionsByLanguage(w http.ResponseWriter, r *http.Request) {
	language, err := httputil.ParsePathString(r, "language")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	questions, err := h.service.QuestionsByLanguage(r.Context(), language)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, questions)
}

// QuestionsByUser handles GET /api/questions/user/{userId}.
func (h *Handler) QuestionsByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "userId")
	if !ok {
		return
	}

	questions, err := h.service.QuestionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, questions)
}

// DeleteQuestion handles DELETE /api/questions/{id}.
func (h *Handler) DeleteQuestion(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteQuestion(r.Context(), principal, id); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// CreateAnswer handles POST /api/answers.
func (h *Handler) CreateAnswer(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req AnswerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Body, "body") {
		return
	}

	answer, err := h.service.CreateAnswer(r.Context(), principal, req)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, answer)
}

// AnswersByQuestion handles GET /api/answers/question/{questionId}.
func (h *Handler) AnswersByQuestion(w http.ResponseWriter, r *http.Request) {
	questionID, ok := httputil.ParsePathInt64OrError(w, r, "questionId")
	if !ok {
		return
	}

	answers, err := h.service.AnswersByQuestion(r.Context(), questionID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, answers)
}

// UpdateAnswer handles PUT /api/answers/{id}.
func (h *Handler) UpdateAnswer(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req AnswerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	answer, err := h.service.UpdateAnswer(r.Context(), principal, id, req.Body)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, answer)
}

// DeleteAnswer handles DELETE /api/answers/{id}.
func (h *Handler) DeleteAnswer(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteAnswer(r.Context(), principal, id); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// AcceptAnswer handles PUT /api/answers/{id}/accept.
func (h *Handler) AcceptAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.AcceptAnswer(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// CastVote handles POST /api/votes. A toggle that removes the vote
// answers 204; a created or flipped vote answers 200 with the vote.
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req VoteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	vote, err := h.service.CastVote(r.Context(), principal, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if vote == nil {
		httputil.WriteNoContent(w)
		return
	}
	httputil.WriteSuccess(w, vote)
}

// CountVotes handles GET /api/votes/count/{answerId}?upvote=.
func (h *Handler) CountVotes(w http.ResponseWriter, r *http.Request) {
	answerID, ok := httputil.ParsePathInt64OrError(w, r, "answerId")
	if !ok {
		return
	}
	isUpvote := httputil.ParseQueryBool(r, "upvote", true)

	count, err := h.service.CountVotes(r.Context(), answerID, isUpvote)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, count)
}

// VoteDifference handles GET /api/votes/difference/{answerId}.
func (h *Handler) VoteDifference(w http.ResponseWriter, r *http.Request) {
	answerID, ok := httputil.ParsePathInt64OrError(w, r, "answerId")
	if !ok {
		return
	}

	diff, err := h.service.VoteDifference(r.Context(), answerID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, diff)
}

// RemoveVote handles DELETE /api/votes/{answerId}.
func (h *Handler) RemoveVote(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	answerID, ok := httputil.ParsePathInt64OrError(w, r, "answerId")
	if !ok {
		return
	}

	if err := h.service.RemoveVote(r.Context(), principal, answerID); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
