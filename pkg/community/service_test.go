package community

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/observability"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := observability.NewLogger(observability.ErrorLevel, os.Stderr)
	return NewService(NewStore(db), logger), mock
}

func answerRow(id, questionID, userID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"answer_id", "question_id", "user_id", "body", "is_accepted", "created_at", "updated_at",
	}).AddRow(id, questionID, userID, "because", false, time.Now(), time.Now())
}

func voteRow(id, userID, answerID int64, isUpvote bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"vote_id", "user_id", "answer_id", "is_upvote", "created_at",
	}).AddRow(id, userID, answerID, isUpvote, time.Now())
}

func emptyVoteRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"vote_id", "user_id", "answer_id", "is_upvote", "created_at"})
}

var (
	learner = &auth.Principal{UserID: 10, Username: "nimal", Role: auth.RoleLearner}
	other   = &auth.Principal{UserID: 20, Username: "kamala", Role: auth.RoleContributor}
	admin   = &auth.Principal{UserID: 99, Username: "root", Role: auth.RoleAdmin}
)

// TestCreateQuestionValidation verifies enum and required-field checks.
func TestCreateQuestionValidation(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.CreateQuestion(context.Background(), learner, QuestionRequest{
		Title: "t", Body: "b", Language: "KLINGON",
	})
	assert.ErrorIs(t, err, auth.ErrUnknownLanguage)

	_, err = service.CreateQuestion(context.Background(), learner, QuestionRequest{
		Title: "t", Body: "b",
	})
	assert.Error(t, err)
}

// TestCastVoteCreates verifies a first vote inserts a row.
func TestCastVoteCreates(t *testing.T) {
	service, mock := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM answers WHERE answer_id").
		WithArgs(int64(5)).
		WillReturnRows(answerRow(5, 1, other.UserID))
	mock.ExpectQuery("SELECT (.+) FROM votes WHERE user_id").
		WithArgs(learner.UserID, int64(5)).
		WillReturnRows(emptyVoteRows())
	mock.ExpectQuery("INSERT INTO votes").
		WithArgs(learner.UserID, int64(5), true).
		WillReturnRows(sqlmock.NewRows([]string{"vote_id", "created_at"}).AddRow(int64(1), time.Now()))

	vote, err := service.CastVote(context.Background(), learner, VoteRequest{AnswerID: 5, IsUpvote: true})
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.True(t, vote.IsUpvote)
}

// TestCastVoteSameDirectionRemoves verifies the toggle removal.
func TestCastVoteSameDirectionRemoves(t *testing.T) {
	service, mock := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM answers WHERE answer_id").
		WithArgs(int64(5)).
		WillReturnRows(answerRow(5, 1, other.UserID))
	mock.ExpectQuery("SELECT (.+) FROM votes WHERE user_id").
		WithArgs(learner.UserID, int64(5)).
		WillReturnRows(voteRow(1, learner.UserID, 5, true))
	mock.ExpectExec("DELETE FROM votes WHERE vote_id").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	vote, err := service.CastVote(context.Background(), learner, VoteRequest{AnswerID: 5, IsUpvote: true})
	require.NoError(t, err)
	assert.Nil(t, vote)
}

// TestCastVoteOppositeDirectionFlips verifies the toggle flip.
func TestCastVoteOppositeDirectionFlips(t *testing.T) {
	service, mock := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM answers WHERE answer_id").
		WithArgs(int64(5)).
		WillReturnRows(answerRow(5, 1, other.UserID))
	mock.ExpectQuery("SELECT (.+) FROM votes WHERE user_id").
		WithArgs(learner.UserID, int64(5)).
		WillReturnRows(voteRow(1, learner.UserID, 5, true))
	mock.ExpectExec("UPDATE votes SET is_upvote").
		WithArgs(false, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	vote, err := service.CastVote(context.Background(), learner, VoteRequest{AnswerID: 5, IsUpvote: false})
	require.NoError(t, err)
	require.NotNil(t, vote)
	assert.False(t, vote.IsUpvote)
}

// TestCastVoteOwnAnswer verifies voting on your own answer is refused.
func TestCastVoteOwnAnswer(t *testing.T) {
	service, mock := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM answers WHERE answer_id").
		WithArgs(int64(5)).
		WillReturnRows(answerRow(5, 1, other.UserID))

	_, err := service.CastVote(context.Background(), other, VoteRequest{AnswerID: 5, IsUpvote: true})
	assert.ErrorIs(t, err, ErrOwnAnswerVote)
}

// TestCastVoteMissingAnswer verifies the not-found path.
func TestCastVoteMissingAnswer(t *testing.T) {
	service, mock := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM answers WHERE answer_id").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{
			"answer_id", "question_id", "user_id", "body", "is_accepted", "created_at", "updated_at",
		}))

	_, err := service.CastVote(context.Background(), learner, VoteRequest{AnswerID: 404, IsUpvote: true})
	assert.ErrorIs(t, err, ErrAnswerNotFound)
}

func questionRow(id, userID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"question_id", "user_id", "title", "body", "subject", "language", "created_at", "updated_at",
	}).AddRow(id, userID, "How?", "Like this?", "maths", "ENGLISH", time.Now(), time.Now())
}

// TestDeleteQuestionOwnership verifies owner-or-admin on question
// deletion.
func TestDeleteQuestionOwnership(t *testing.T) {
	t.Run("stranger denied", func(t *testing.T) {
		service, mock := newTestService(t)
		mock.ExpectQuery("SELECT (.+) FROM questions WHERE question_id").
			WithArgs(int64(1)).
			WillReturnRows(questionRow(1, learner.UserID))

		err := service.DeleteQuestion(context.Background(), other, 1)
		assert.ErrorIs(t, err, ErrNotOwner)
	})

	t.Run("owner allowed", func(t *testing.T) {
		service, mock := newTestService(t)
		mock.ExpectQuery("SELECT (.+) FROM questions WHERE question_id").
			WithArgs(int64(1)).
			WillReturnRows(questionRow(1, learner.UserID))
		mock.ExpectExec("DELETE FROM questions").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.DeleteQuestion(context.Background(), learner, 1))
	})

	t.Run("admin allowed", func(t *testing.T) {
		service, mock := newTestService(t)
		mock.ExpectQuery("SELECT (.+) FROM questions WHERE question_id").
			WithArgs(int64(1)).
			WillReturnRows(questionRow(1, learner.UserID))
		mock.ExpectExec("DELETE FROM questions").
			WithArgs(int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, service.DeleteQuestion(context.Background(), admin, 1))
	})
}

// TestUpdateAnswerOwnership verifies owner-or-admin on answer edits.
func TestUpdateAnswerOwnership(t *testing.T) {
	service, mock := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM answers WHERE answer_id").
		WithArgs(int64(5)).
		WillReturnRows(answerRow(5, 1, other.UserID))

	_, err := service.UpdateAnswer(context.Background(), learner, 5, "edited")
	assert.ErrorIs(t, err, ErrNotOwner)
}

// TestVoteDifference verifies the aggregate including the missing-answer
// guard.
func TestVoteDifference(t *testing.T) {
	service, mock := newTestService(t)

	mock.ExpectQuery("SELECT COUNT(.+) FROM answers").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT COALESCE").
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"diff"}).AddRow(3))

	diff, err := service.VoteDifference(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, diff)

	mock.ExpectQuery("SELECT COUNT(.+) FROM answers").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, err = service.VoteDifference(context.Background(), 404)
	assert.ErrorIs(t, err, ErrAnswerNotFound)
}
