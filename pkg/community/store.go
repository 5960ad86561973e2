package community

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gurulk/platform/pkg/auth"
)

// Store persists questions, answers and votes in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a community store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const questionColumns = "question_id, user_id, title, body, subject, language, created_at, updated_at"
const answerColumns = "answer_id, question_id, user_id, body, is_accepted, created_at, updated_at"
const voteColumns = "vote_id, user_id, answer_id, is_upvote, created_at"

func scanQuestion(row interface{ Scan(...interface{}) error }) (*Question, error) {
	var q Question
	var subject sql.NullString
	err := row.Scan(&q.ID, &q.UserID, &q.Title, &q.Body, &subject, &q.Language, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, err
	}
	q.Subject = subject.String
	return &q, nil
}

func scanAnswer(row interface{ Scan(...interface{}) error }) (*Answer, error) {
	var a Answer
	err := row.Scan(&a.ID, &a.QuestionID, &a.UserID, &a.Body, &a.IsAccepted, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func scanVote(row interface{ Scan(...interface{}) error }) (*Vote, error) {
	var v Vote
	err := row.Scan(&v.ID, &v.UserID, &v.AnswerID, &v.IsUpvote, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateQuestion inserts a question.
func (s *Store) CreateQuestion(ctx context.Context, q *Question) (*Question, error) {
	query := `INSERT INTO questions (user_id, title, body, subject, language)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING question_id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		q.UserID, q.Title, q.Body, nullString(q.Subject), q.Language,
	).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating question: %w", err)
	}
	return q, nil
}

// QuestionByID fetches one question.
func (s *Store) QuestionByID(ctx context.Context, id int64) (*Question, error) {
	query := fmt.Sprintf("SELECT %s FROM questions WHERE question_id = $1", questionColumns)
	q, err := scanQuestion(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching question %d: %w", id, err)
	}
	return q, nil
}

// Questions lists questions newest-first with limit/offset paging.
func (s *Store) Questions(ctx context.Context, limit, offset int) ([]*Question, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM questions ORDER BY created_at DESC LIMIT $1 OFFSET $2", questionColumns)
	return s.queryQuestions(ctx, query, limit, offset)
}

// QuestionsBySubject lists questions for a subject.
func (s *Store) QuestionsBySubject(ctx context.Context, subject string) ([]*Question, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM questions WHERE subject = $1 ORDER BY created_at DESC", questionColumns)
	return s.queryQuestions(ctx, query, subject)
}

// QuestionsByLanguage lists questions in a language.
func (s *Store) QuestionsByLanguage(ctx context.Context, language auth.Language) ([]*Question, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM questions WHERE language = $1 ORDER BY created_at DESC", questionColumns)
	return s.queryQuestions(ctx, query, language)
}

// QuestionsByUser lists a user's questions.
func (s *Store) QuestionsByUser(ctx context.Context, userID int64) ([]*Question, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM questions WHERE user_id = $1 ORDER BY created_at DESC", questionColumns)
	return s.queryQuestions(ctx, query, userID)
}

func (s *Store) queryQuestions(ctx context.Context, query string, args ...interface{}) ([]*Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing questions: %w", err)
	}
	defer rows.Close()

	questions := make([]*Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// DeleteQuestion removes a question and, through FK cascade, its answers
// and their votes.
func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM questions WHERE question_id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting question %d: %w", id, err)
	}
	return requireRow(result, ErrQuestionNotFound)
}

// CreateAnswer inserts an answer.
func (s *Store) CreateAnswer(ctx context.Context, a *Answer) (*Answer, error) {
	query := `INSERT INTO answers (question_id, user_id, body)
		VALUES ($1, $2, $3)
		RETURNING answer_id, is_accepted, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query, a.QuestionID, a.UserID, a.Body).
		Scan(&a.ID, &a.IsAccepted, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating answer: %w", err)
	}
	return a, nil
}

// AnswerByID fetches one answer.
func (s *Store) AnswerByID(ctx context.Context, id int64) (*Answer, error) {
	query := fmt.Sprintf("SELECT %s FROM answers WHERE answer_id = $1", answerColumns)
	a, err := scanAnswer(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnswerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching answer %d: %w", id, err)
	}
	return a, nil
}

// AnswersByQuestion lists a question's answers newest-first.
func (s *Store) AnswersByQuestion(ctx context.Context, questionID int64) ([]*Answer, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM answers WHERE question_id = $1 ORDER BY created_at DESC", answerColumns)
	rows, err := s.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("listing answers for question %d: %w", questionID, err)
	}
	defer rows.Close()

	answers := make([]*Answer, 0)
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// UpdateAnswerBody persists an edited answer body.
func (s *Store) UpdateAnswerBody(ctx context.Context, id int64, body string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE answers SET body = $1, updated_at = NOW() WHERE answer_id = $2", body, id)
	if err != nil {
		return fmt.Errorf("updating answer %d: %w", id, err)
	}
	return requireRow(result, ErrAnswerNotFound)
}

// AcceptAnswer marks an answer accepted, clearing any previously accepted
// answer on the same question.
func (s *Store) AcceptAnswer(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("accepting answer %d: %w", id, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE answers SET is_accepted = FALSE
		 WHERE question_id = (SELECT question_id FROM answers WHERE answer_id = $1)`, id)
	if err != nil {
		return fmt.Errorf("clearing accepted answer: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE answers SET is_accepted = TRUE WHERE answer_id = $1", id)
	if err != nil {
		return fmt.Errorf("accepting answer %d: %w", id, err)
	}
	if err := requireRow(result, ErrAnswerNotFound); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteAnswer removes an answer.
func (s *Store) DeleteAnswer(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM answers WHERE answer_id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting answer %d: %w", id, err)
	}
	return requireRow(result, ErrAnswerNotFound)
}

// VoteByUserAndAnswer fetches a user's existing vote on an answer.
func (s *Store) VoteByUserAndAnswer(ctx context.Context, userID, answerID int64) (*Vote, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM votes WHERE user_id = $1 AND answer_id = $2", voteColumns)
	v, err := scanVote(s.db.QueryRowContext(ctx, query, userID, answerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVoteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching vote: %w", err)
	}
	return v, nil
}

// CreateVote inserts a vote.
func (s *Store) CreateVote(ctx context.Context, v *Vote) (*Vote, error) {
	query := `INSERT INTO votes (user_id, answer_id, is_upvote)
		VALUES ($1, $2, $3)
		RETURNING vote_id, created_at`

	err := s.db.QueryRowContext(ctx, query, v.UserID, v.AnswerID, v.IsUpvote).
		Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating vote: %w", err)
	}
	return v, nil
}

// UpdateVote flips a vote's direction.
func (s *Store) UpdateVote(ctx context.Context, id int64, isUpvote bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE votes SET is_upvote = $1 WHERE vote_id = $2", isUpvote, id)
	if err != nil {
		return fmt.Errorf("updating vote %d: %w", id, err)
	}
	return requireRow(result, ErrVoteNotFound)
}

// DeleteVote removes a vote by id.
func (s *Store) DeleteVote(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM votes WHERE vote_id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting vote %d: %w", id, err)
	}
	return requireRow(result, ErrVoteNotFound)
}

// DeleteVoteByUserAndAnswer removes a user's vote on an answer.
func (s *Store) DeleteVoteByUserAndAnswer(ctx context.Context, userID, answerID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM votes WHERE user_id = $1 AND answer_id = $2", userID, answerID)
	if err != nil {
		return fmt.Errorf("deleting vote: %w", err)
	}
	return requireRow(result, ErrVoteNotFound)
}

// CountVotes counts votes in one direction for an answer.
func (s *Store) CountVotes(ctx context.Context, answerID int64, isUpvote bool) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM votes WHERE answer_id = $1 AND is_upvote = $2", answerID, isUpvote).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting votes for answer %d: %w", answerID, err)
	}
	return count, nil
}

// VoteDifference returns upvotes minus downvotes for an answer.
func (s *Store) VoteDifference(ctx context.Context, answerID int64) (int, error) {
	var diff int
	query := `SELECT COALESCE(SUM(CASE WHEN is_upvote THEN 1 ELSE -1 END), 0)
		FROM votes WHERE answer_id = $1`
	err := s.db.QueryRowContext(ctx, query, answerID).Scan(&diff)
	if err != nil {
		return 0, fmt.Errorf("computing vote difference for answer %d: %w", answerID, err)
	}
	return diff, nil
}

// AnswerExists reports whether an answer row exists.
func (s *Store) AnswerExists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM answers WHERE answer_id = $1", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking answer %d: %w", id, err)
	}
	return count > 0, nil
}

func requireRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
