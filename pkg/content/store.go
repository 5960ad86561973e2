package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// popularMinViews is the floor a lesson must clear to count as popular
const popularMinViews = 3

// popularLimit caps the popular list
const popularLimit = 10

// Store persists lessons and downloads in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a content store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const lessonColumns = `lesson_id, title, description, content_type, file_url, subject,
	language, age_group, uploader_id, is_approved, view_count, created_at, updated_at`

func scanLesson(row interface{ Scan(...interface{}) error }) (*Lesson, error) {
	var l Lesson
	var description, contentType, subject, language, ageGroup sql.NullString
	err := row.Scan(&l.ID, &l.Title, &description, &contentType, &l.FileURL, &subject,
		&language, &ageGroup, &l.UploaderID, &l.IsApproved, &l.ViewCount, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Description = description.String
	l.ContentType = contentType.String
	l.Subject = subject.String
	l.Language = language.String
	l.AgeGroup = ageGroup.String
	return &l, nil
}

// CreateLesson inserts a lesson. New lessons always start unapproved
// with a zero view count regardless of the payload.
func (s *Store) CreateLesson(ctx context.Context, l *Lesson) (*Lesson, error) {
	query := `INSERT INTO lessons (title, description, content_type, file_url, subject, language, age_group, uploader_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING lesson_id, is_approved, view_count, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		l.Title, nullString(l.Description), nullString(l.ContentType), l.FileURL,
		nullString(l.Subject), nullString(l.Language), nullString(l.AgeGroup), l.UploaderID,
	).Scan(&l.ID, &l.IsApproved, &l.ViewCount, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating lesson: %w", err)
	}
	return l, nil
}

// LessonByID fetches one lesson.
func (s *Store) LessonByID(ctx context.Context, id int64) (*Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons WHERE lesson_id = $1", lessonColumns)
	l, err := scanLesson(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrLessonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching lesson %d: %w", id, err)
	}
	return l, nil
}

// ApprovedLessons lists approved lessons newest-first.
func (s *Store) ApprovedLessons(ctx context.Context) ([]*Lesson, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM lessons WHERE is_approved = TRUE ORDER BY created_at DESC", lessonColumns)
	return s.queryLessons(ctx, query)
}

// PendingLessons lists unapproved lessons oldest-first for review.
func (s *Store) PendingLessons(ctx context.Context) ([]*Lesson, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM lessons WHERE is_approved = FALSE ORDER BY created_at ASC", lessonColumns)
	return s.queryLessons(ctx, query)
}

// AllLessons lists every lesson.
func (s *Store) AllLessons(ctx context.Context) ([]*Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons ORDER BY created_at DESC", lessonColumns)
	return s.queryLessons(ctx, query)
}

// LessonsByUploader lists a contributor's lessons.
func (s *Store) LessonsByUploader(ctx context.Context, uploaderID int64) ([]*Lesson, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM lessons WHERE uploader_id = $1 ORDER BY created_at DESC", lessonColumns)
	return s.queryLessons(ctx, query, uploaderID)
}

// LessonsByUploaderAndApproval filters a contributor's lessons by
// approval state.
func (s *Store) LessonsByUploaderAndApproval(ctx context.Context, uploaderID int64, approved bool) ([]*Lesson, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM lessons WHERE uploader_id = $1 AND is_approved = $2 ORDER BY created_at DESC", lessonColumns)
	return s.queryLessons(ctx, query, uploaderID, approved)
}

// ApprovedLessonsBySubject lists approved lessons for a subject.
func (s *Store) ApprovedLessonsBySubject(ctx context.Context, subject string) ([]*Lesson, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM lessons WHERE subject = $1 AND is_approved = TRUE ORDER BY created_at DESC", lessonColumns)
	return s.queryLessons(ctx, query, subject)
}

// SearchApproved searches approved lessons by title or description,
// case-insensitively.
func (s *Store) SearchApproved(ctx context.Context, field, keyword string) ([]*Lesson, error) {
	if field != "title" && field != "description" {
		return nil, fmt.Errorf("unsupported search field: %s", field)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM lessons WHERE %s ILIKE $1 AND is_approved = TRUE ORDER BY created_at DESC",
		lessonColumns, field)
	return s.queryLessons(ctx, query, "%"+keyword+"%")
}

// PopularLessons lists the top approved lessons by views, subject to
// the minimum-views floor.
func (s *Store) PopularLessons(ctx context.Context) ([]*Lesson, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM lessons WHERE is_approved = TRUE AND view_count >= $1
		 ORDER BY view_count DESC LIMIT $2`, lessonColumns)
	return s.queryLessons(ctx, query, popularMinViews, popularLimit)
}

func (s *Store) queryLessons(ctx context.Context, query string, args ...interface{}) ([]*Lesson, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing lessons: %w", err)
	}
	defer rows.Close()

	lessons := make([]*Lesson, 0)
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}

// ApproveLesson marks a lesson approved.
func (s *Store) ApproveLesson(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE lessons SET is_approved = TRUE, updated_at = NOW() WHERE lesson_id = $1", id)
	if err != nil {
		return fmt.Errorf("approving lesson %d: %w", id, err)
	}
	return requireRow(result, ErrLessonNotFound)
}

// IncrementViewCount bumps a lesson's view counter.
func (s *Store) IncrementViewCount(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE lessons SET view_count = view_count + 1 WHERE lesson_id = $1", id)
	if err != nil {
		return fmt.Errorf("incrementing views for lesson %d: %w", id, err)
	}
	return requireRow(result, ErrLessonNotFound)
}

// CountLessons returns total, approved and pending counts in one query.
func (s *Store) CountLessons(ctx context.Context) (total, approved, pending int64, err error) {
	query := `SELECT COUNT(*),
		COUNT(*) FILTER (WHERE is_approved),
		COUNT(*) FILTER (WHERE NOT is_approved)
		FROM lessons`
	err = s.db.QueryRowContext(ctx, query).Scan(&total, &approved, &pending)
	if err != nil {
		err = fmt.Errorf("counting lessons: %w", err)
	}
	return
}

// CreateDownload inserts a download with the standard expiry window.
func (s *Store) CreateDownload(ctx context.Context, userID, lessonID int64) (*Download, error) {
	d := &Download{
		UserID:    userID,
		LessonID:  lessonID,
		ExpiresAt: time.Now().Add(downloadValidity),
	}
	query := `INSERT INTO downloads (user_id, lesson_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING download_id, downloaded_at`

	err := s.db.QueryRowContext(ctx, query, d.UserID, d.LessonID, d.ExpiresAt).
		Scan(&d.ID, &d.DownloadedAt)
	if err != nil {
		return nil, fmt.Errorf("creating download: %w", err)
	}
	return d, nil
}

const downloadColumns = "download_id, user_id, lesson_id, downloaded_at, expires_at"

func scanDownload(row interface{ Scan(...interface{}) error }) (*Download, error) {
	var d Download
	err := row.Scan(&d.ID, &d.UserID, &d.LessonID, &d.DownloadedAt, &d.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DownloadsByUser lists a user's downloads newest-first.
func (s *Store) DownloadsByUser(ctx context.Context, userID int64) ([]*Download, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM downloads WHERE user_id = $1 ORDER BY downloaded_at DESC", downloadColumns)
	return s.queryDownloads(ctx, query, userID)
}

// DownloadsByLesson lists a lesson's downloads.
func (s *Store) DownloadsByLesson(ctx context.Context, lessonID int64) ([]*Download, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM downloads WHERE lesson_id = $1 ORDER BY downloaded_at DESC", downloadColumns)
	return s.queryDownloads(ctx, query, lessonID)
}

// ExpiredDownloads lists downloads past their expiry.
func (s *Store) ExpiredDownloads(ctx context.Context, now time.Time) ([]*Download, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM downloads WHERE expires_at < $1 ORDER BY expires_at ASC", downloadColumns)
	return s.queryDownloads(ctx, query, now)
}

func (s *Store) queryDownloads(ctx context.Context, query string, args ...interface{}) ([]*Download, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing downloads: %w", err)
	}
	defer rows.Close()

	downloads := make([]*Download, 0)
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}
	return downloads, rows.Err()
}

// CountDownloadsByLesson counts a lesson's downloads.
func (s *Store) CountDownloadsByLesson(ctx context.Context, lessonID int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM downloads WHERE lesson_id = $1", lessonID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting downloads for lesson %d: %w", lessonID, err)
	}
	return count, nil
}

// HasDownloaded reports whether a user has an unexpired download of a
// lesson.
func (s *Store) HasDownloaded(ctx context.Context, userID, lessonID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM downloads WHERE user_id = $1 AND lesson_id = $2 AND expires_at >= NOW()",
		userID, lessonID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking download: %w", err)
	}
	return count > 0, nil
}

// PurgeExpiredDownloads deletes downloads past their expiry and returns
// how many went.
func (s *Store) PurgeExpiredDownloads(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM downloads WHERE expires_at < $1", now)
	if err != nil {
		return 0, fmt.Errorf("purging expired downloads: %w", err)
	}
	return result.RowsAffected()
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
