// Package community implements the Q&A surface: questions, answers and
// votes. Authorization splits between the route policy table (role
// floors and the voter allow-set) and in-handler owner checks.
package community

import (
	"errors"
	"time"

	"github.com/gurulk/platform/pkg/auth"
)

var (
	// ErrQuestionNotFound indicates a missing question row
	ErrQuestionNotFound = errors.New("question not found")
	// ErrAnswerNotFound indicates a missing answer row
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrVoteNotFound indicates the caller has no vote on the answer
	ErrVoteNotFound = errors.New("vote not found")
	// ErrNotOwner indicates a mutation by someone who is neither the
	// row owner nor an admin
	ErrNotOwner = errors.New("not the owner of this resource")
	// ErrOwnAnswerVote indicates a vote on the caller's own answer
	ErrOwnAnswerVote = errors.New("cannot vote on your own answer")
)

// Question is a learner-posted question.
type Question struct {
	ID        int64         `json:"questionId"`
	UserID    int64         `json:"userId"`
	Title     string        `json:"title"`
	Body      string        `json:"body"`
	Subject   string        `json:"subject,omitempty"`
	Language  auth.Language `json:"language"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// Answer is a contributor-posted answer to a question.
type Answer struct {
	ID         int64     `json:"answerId"`
	QuestionID int64     `json:"questionId"`
	UserID     int64     `json:"userId"`
	Body       string    `json:"body"`
	IsAccepted bool      `json:"isAccepted"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Vote is a single user's up or down vote on an answer. One vote per
// user per answer; repeating the same direction removes it, the
// opposite direction flips it.
type Vote struct {
	ID        int64     `json:"voteId"`
	UserID    int64     `json:"userId"`
	AnswerID  int64     `json:"answerId"`
	IsUpvote  bool      `json:"isUpvote"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuestionRequest is the creation payload for questions.
type QuestionRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Subject  string `json:"subject"`
	Language string `json:"language"`
}

// AnswerRequest is the creation/update payload for answers.
type AnswerRequest struct {
	QuestionID int64  `json:"questionId"`
	Body       string `json:"body"`
}

// VoteRequest is the vote/toggle payload.
type VoteRequest struct {
	AnswerID int64 `json:"answerId"`
	IsUpvote bool  `json:"isUpvote"`
}
