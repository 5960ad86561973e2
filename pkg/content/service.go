package content

import (
	"context"
	"fmt"
	"time"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/observability"
)

// Service applies the content domain rules on top of the store.
type Service struct {
	store   *Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewService creates the content service core. metrics may be nil.
func NewService(store *Store, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, logger: logger, metrics: metrics}
}

// CreateLesson uploads a lesson owned by the actor. Approval state and
// view count are server-controlled.
func (s *Service) CreateLesson(ctx context.Context, actor *auth.Principal, req LessonRequest) (*Lesson, error) {
	if req.Title == "" || req.FileURL == "" {
		return nil, fmt.Errorf("title and fileUrl are required")
	}

	lesson, err := s.store.CreateLesson(ctx, &Lesson{
		Title:       req.Title,
		Description: req.Description,
		ContentType: req.ContentType,
		FileURL:     req.FileURL,
		Subject:     req.Subject,
		Language:    req.Language,
		AgeGroup:    req.AgeGroup,
		UploaderID:  actor.UserID,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("lessonId", lesson.ID).
		WithField("uploaderId", actor.UserID).
		Info("lesson uploaded, pending approval")
	return lesson, nil
}

// Lesson fetches one lesson.
func (s *Service) Lesson(ctx context.Context, id int64) (*Lesson, error) {
	return s.store.LessonByID(ctx, id)
}

// ApprovedLessons lists approved lessons.
func (s *Service) ApprovedLessons(ctx context.Context) ([]*Lesson, error) {
	return s.store.ApprovedLessons(ctx)
}

// PendingLessons lists lessons awaiting review.
func (s *Service) PendingLessons(ctx context.Context) ([]*Lesson, error) {
	return s.store.PendingLessons(ctx)
}

// AllLessons lists everything for the admin console.
func (s *Service) AllLessons(ctx context.Context) ([]*Lesson, error) {
	return s.store.AllLessons(ctx)
}

// LessonsByUploader lists a contributor's lessons.
func (s *Service) LessonsByUploader(ctx context.Context, uploaderID int64) ([]*Lesson, error) {
	return s.store.LessonsByUploader(ctx, uploaderID)
}

// LessonsByUploaderAndApproval filters a contributor's lessons by
// approval state.
func (s *Service) LessonsByUploaderAndApproval(ctx context.Context, uploaderID int64, approved bool) ([]*Lesson, error) {
	return s.store.LessonsByUploaderAndApproval(ctx, uploaderID, approved)
}

// LessonsBySubject lists approved lessons for a subject.
func (s *Service) LessonsBySubject(ctx context.Context, subject string) ([]*Lesson, error) {
	return s.store.ApprovedLessonsBySubject(ctx, subject)
}

// Search searches approved lessons by title or description.
func (s *Service) Search(ctx context.Context, field, keyword string) ([]*Lesson, error) {
	if keyword == "" {
		return []*Lesson{}, nil
	}
	return s.store.SearchApproved(ctx, field, keyword)
}

// PopularLessons lists the most viewed approved lessons.
func (s *Service) PopularLessons(ctx context.Context) ([]*Lesson, error) {
	return s.store.PopularLessons(ctx)
}

// ApproveLesson marks a lesson approved and returns it.
func (s *Service) ApproveLesson(ctx context.Context, actor *auth.Principal, id int64) (*Lesson, error) {
	if err := s.store.ApproveLesson(ctx, id); err != nil {
		return nil, err
	}
	s.logger.WithField("lessonId", id).
		WithField("approvedBy", actor.UserID).
		Info("lesson approved")
	return s.store.LessonByID(ctx, id)
}

// RecordView bumps a lesson's view count and returns the fresh row.
func (s *Service) RecordView(ctx context.Context, id int64) (*Lesson, error) {
	if err := s.store.IncrementViewCount(ctx, id); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.LessonViewsTotal.Inc()
	}
	return s.store.LessonByID(ctx, id)
}

// ContentAnalytics builds the admin overview.
func (s *Service) ContentAnalytics(ctx context.Context) (*Analytics, error) {
	total, approved, pending, err := s.store.CountLessons(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.store.PopularLessons(ctx)
	if err != nil {
		return nil, err
	}
	return &Analytics{
		Total:     total,
		Approved:  approved,
		Pending:   pending,
		TopViewed: top,
	}, nil
}

// CreateDownload records an offline download for the actor.
func (s *Service) CreateDownload(ctx context.Context, actor *auth.Principal, req DownloadRequest) (*Download, error) {
	// a download of a nonexistent lesson is a 404, not an FK error
	if _, err := s.store.LessonByID(ctx, req.LessonID); err != nil {
		return nil, err
	}
	return s.store.CreateDownload(ctx, actor.UserID, req.LessonID)
}

// DownloadsByUser lists a user's downloads.
func (s *Service) DownloadsByUser(ctx context.Context, userID int64) ([]*Download, error) {
	return s.store.DownloadsByUser(ctx, userID)
}

// DownloadsByLesson lists a lesson's downloads.
func (s *Service) DownloadsByLesson(ctx context.Context, lessonID int64) ([]*Download, error) {
	return s.store.DownloadsByLesson(ctx, lessonID)
}

// CountDownloads counts a lesson's downloads.
func (s *Service) CountDownloads(ctx context.Context, lessonID int64) (int64, error) {
	return s.store.CountDownloadsByLesson(ctx, lessonID)
}

// HasDownloaded reports whether the actor holds an unexpired download.
func (s *Service) HasDownloaded(ctx context.Context, actor *auth.Principal, lessonID int64) (bool, error) {
	return s.store.HasDownloaded(ctx, actor.UserID, lessonID)
}

// ExpiredDownloads lists downloads past expiry, for ops inspection.
func (s *Service) ExpiredDownloads(ctx context.Context) ([]*Download, error) {
	return s.store.ExpiredDownloads(ctx, time.Now())
}

// PurgeExpiredDownloads removes downloads past expiry. The sweeper calls
// this on a schedule; it is also safe to call ad hoc.
func (s *Service) PurgeExpiredDownloads(ctx context.Context) (int64, error) {
	purged, err := s.store.PurgeExpiredDownloads(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		if s.metrics != nil {
			s.metrics.DownloadsExpiredTotal.Add(float64(purged))
		}
		s.logger.WithField("purged", purged).Info("expired downloads purged")
	}
	return purged, nil
}
