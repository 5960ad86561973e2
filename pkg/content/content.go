// Package content implements lessons and offline downloads. Lessons go
// through an approval workflow: contributors upload, admins approve,
// learners consume approved content.
package content

import (
	"errors"
	"time"
)

// downloadValidity is how long a download record stays usable
const downloadValidity = 7 * 24 * time.Hour

var (
	// ErrLessonNotFound indicates a missing lesson row
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrDownloadNotFound indicates a missing download row
	ErrDownloadNotFound = errors.New("download not found")
)

// Lesson is an uploaded piece of learning material.
type Lesson struct {
	ID          int64     `json:"lessonId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	FileURL     string    `json:"fileUrl"`
	Subject     string    `json:"subject,omitempty"`
	Language    string    `json:"language,omitempty"`
	AgeGroup    string    `json:"ageGroup,omitempty"`
	UploaderID  int64     `json:"uploaderId"`
	IsApproved  bool      `json:"isApproved"`
	ViewCount   int       `json:"viewCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Download records that a user saved a lesson for offline use. Records
// expire after seven days and are purged by the sweeper.
type Download struct {
	ID           int64     `json:"downloadId"`
	UserID       int64     `json:"userId"`
	LessonID     int64     `json:"lessonId"`
	DownloadedAt time.Time `json:"downloadedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// LessonRequest is the creation payload for lessons.
type LessonRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ContentType string `json:"contentType"`
	FileURL     string `json:"fileUrl"`
	Subject     string `json:"subject"`
	Language    string `json:"language"`
	AgeGroup    string `json:"ageGroup"`
}

// DownloadRequest is the creation payload for downloads.
type DownloadRequest struct {
	LessonID int64 `json:"lessonId"`
}

// Analytics is the admin content overview.
type Analytics struct {
	Total     int64     `json:"total"`
	Approved  int64     `json:"approved"`
	Pending   int64     `json:"pending"`
	TopViewed []*Lesson `json:"topViewed"`
}
