package community

import (
	"context"
	"errors"
	"fmt"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/observability"
)

// Service applies the community domain rules on top of the store.
type Service struct {
	store  *Store
	logger *observability.Logger
}

// NewService creates the community service core.
func NewService(store *Store, logger *observability.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// CreateQuestion posts a question owned by the actor.
func (s *Service) CreateQuestion(ctx context.Context, actor *auth.Principal, req QuestionRequest) (*Question, error) {
	if req.Title == "" || req.Body == "" {
		return nil, fmt.Errorf("title and body are required")
	}
	language, err := auth.ParseLanguage(req.Language)
	if err != nil {
		return nil, err
	}
	if language == "" {
		return nil, fmt.Errorf("language is required")
	}

	return s.store.CreateQuestion(ctx, &Question{
		UserID:   actor.UserID,
		Title:    req.Title,
		Body:     req.Body,
		Subject:  req.Subject,
		Language: language,
	})
}

// Question fetches one question.
func (s *Service) Question(ctx context.Context, id int64) (*Question, error) {
	return s.store.QuestionByID(ctx, id)
}

// Questions lists questions with paging.
func (s *Service) Questions(ctx context.Context, limit, offset int) ([]*Question, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Questions(ctx, limit, offset)
}

// QuestionsBySubject lists questions for a subject.
func (s *Service) QuestionsBySubject(ctx context.Context, subject string) ([]*Question, error) {
	return s.store.QuestionsBySubject(ctx, subject)
}

// QuestionsByLanguage lists questions in a language.
func (s *Service) QuestionsByLanguage(ctx context.Context, languageName string) ([]*Question, error) {
	language, err := auth.ParseLanguage(languageName)
	if err != nil {
		return nil, err
	}
	return s.store.QuestionsByLanguage(ctx, language)
}

// QuestionsByUser lists a user's questions.
func (s *Service) QuestionsByUser(ctx context.Context, userID int64) ([]*Question, error) {
	return s.store.QuestionsByUser(ctx, userID)
}

// DeleteQuestion removes a question if the actor owns it or is an admin.
func (s *Service) DeleteQuestion(ctx context.Context, actor *auth.Principal, id int64) error {
	question, err := s.store.QuestionByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(question.UserID) && !actor.IsAdmin() {
		return ErrNotOwner
	}
	return s.store.DeleteQuestion(ctx, id)
}

// CreateAnswer posts an answer owned by the actor.
func (s *Service) CreateAnswer(ctx context.Context, actor *auth.Principal, req AnswerRequest) (*Answer, error) {
	if req.Body == "" {
		return nil, fmt.Errorf("body is required")
	}
	// FK would also catch this, but a clean 404 beats a 500
	if _, err := s.store.QuestionByID(ctx, req.QuestionID); err != nil {
		return nil, err
	}

	return s.store.CreateAnswer(ctx, &Answer{
		QuestionID: req.QuestionID,
		UserID:     actor.UserID,
		Body:       req.Body,
	})
}

// AnswersByQuestion lists a question's answers.
func (s *Service) AnswersByQuestion(ctx context.Context, questionID int64) ([]*Answer, error) {
	return s.store.AnswersByQuestion(ctx, questionID)
}

// UpdateAnswer edits an answer if the actor owns it or is an admin.
func (s *Service) UpdateAnswer(ctx context.Context, actor *auth.Principal, id int64, body string) (*Answer, error) {
	if body == "" {
		return nil, fmt.Errorf("body is required")
	}

	answer, err := s.store.AnswerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Is(answer.UserID) && !actor.IsAdmin() {
		return nil, ErrNotOwner
	}

	if err := s.store.UpdateAnswerBody(ctx, id, body); err != nil {
		return nil, err
	}
	return s.store.AnswerByID(ctx, id)
}

// DeleteAnswer removes an answer if the actor owns it or is an admin.
func (s *Service) DeleteAnswer(ctx context.Context, actor *auth.Principal, id int64) error {
	answer, err := s.store.AnswerByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Is(answer.UserID) && !actor.IsAdmin() {
		return ErrNotOwner
	}
	return s.store.DeleteAnswer(ctx, id)
}

// AcceptAnswer marks an answer as the accepted one for its question.
// Route policy already restricts this to admins.
func (s *Service) AcceptAnswer(ctx context.Context, id int64) error {
	return s.store.AcceptAnswer(ctx, id)
}

// CastVote applies the toggle semantics: no prior vote creates one, the
// same direction again removes it, the opposite direction flips it. The
// returned vote is nil when the toggle removed it.
func (s *Service) CastVote(ctx context.Context, actor *auth.Principal, req VoteRequest) (*Vote, error) {
	answer, err := s.store.AnswerByID(ctx, req.AnswerID)
	if err != nil {
		return nil, err
	}
	if actor.Is(answer.UserID) {
		return nil, ErrOwnAnswerVote
	}

	existing, err := s.store.VoteByUserAndAnswer(ctx, actor.UserID, req.AnswerID)
	if errors.Is(err, ErrVoteNotFound) {
		return s.store.CreateVote(ctx, &Vote{
			UserID:   actor.UserID,
			AnswerID: req.AnswerID,
			IsUpvote: req.IsUpvote,
		})
	}
	if err != nil {
		return nil, err
	}

	if existing.IsUpvote == req.IsUpvote {
		if err := s.store.DeleteVote(ctx, existing.ID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := s.store.UpdateVote(ctx, existing.ID, req.IsUpvote); err != nil {
		return nil, err
	}
	existing.IsUpvote = req.IsUpvote
	return existing, nil
}

// CountVotes counts one direction's votes on an answer.
func (s *Service) CountVotes(ctx context.Context, answerID int64, isUpvote bool) (int, error) {
	exists, err := s.store.AnswerExists(ctx, answerID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrAnswerNotFound
	}
	return s.store.CountVotes(ctx, answerID, isUpvote)
}

// VoteDifference returns upvotes minus downvotes for an answer.
func (s *Service) VoteDifference(ctx context.Context, answerID int64) (int, error) {
	exists, err := s.store.AnswerExists(ctx, answerID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, ErrAnswerNotFound
	}
	return s.store.VoteDifference(ctx, answerID)
}

// RemoveVote deletes the actor's own vote on an answer.
func (s *Service) RemoveVote(ctx context.Context, actor *auth.Principal, answerID int64) error {
	exists, err := s.store.AnswerExists(ctx, answerID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrAnswerNotFound
	}
	return s.store.DeleteVoteByUserAndAnswer(ctx, actor.UserID, answerID)
}
