package content

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/observability"
)

var (
	contributor = &auth.Principal{UserID: 20, Username: "kamala", Role: auth.RoleContributor}
	learner     = &auth.Principal{UserID: 10, Username: "nimal", Role: auth.RoleLearner}
	admin       = &auth.Principal{UserID: 99, Username: "root", Role: auth.RoleAdmin}
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *observability.Metrics) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	logger := observability.NewLogger(observability.ErrorLevel, os.Stderr)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewService(NewStore(db), logger, metrics), mock, metrics
}

func lessonColumnNames() []string {
	return []string{
		"lesson_id", "title", "description", "content_type", "file_url", "subject",
		"language", "age_group", "uploader_id", "is_approved", "view_count", "created_at", "updated_at",
	}
}

func lessonRow(id, uploaderID int64, approved bool, views int) *sqlmock.Rows {
	return sqlmock.NewRows(lessonColumnNames()).AddRow(
		id, "Fractions", "Intro to fractions", "video", "https://cdn.gurulk.io/l.mp4",
		"maths", "english", "10-12", uploaderID, approved, views, time.Now(), time.Now())
}

func emptyLessonRows() *sqlmock.Rows {
	return sqlmock.NewRows(lessonColumnNames())
}

// TestCreateLessonValidation verifies the required fields.
func TestCreateLessonValidation(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.CreateLesson(context.Background(), contributor, LessonRequest{Title: "Fractions"})
	assert.Error(t, err)

	_, err = service.CreateLesson(context.Background(), contributor, LessonRequest{FileURL: "https://x"})
	assert.Error(t, err)
}

// TestCreateLessonStartsUnapproved verifies server-controlled approval
// state on upload.
func TestCreateLessonStartsUnapproved(t *testing.T) {
	service, mock, _ := newTestService(t)

	mock.ExpectQuery("INSERT INTO lessons").
		WillReturnRows(sqlmock.NewRows([]string{"lesson_id", "is_approved", "view_count", "created_at", "updated_at"}).
			AddRow(int64(7), false, 0, time.Now(), time.Now()))

	lesson, err := service.CreateLesson(context.Background(), contributor, LessonRequest{
		Title:   "Fractions",
		FileURL: "https://cdn.gurulk.io/l.mp4",
	})
	require.NoError(t, err)
	assert.False(t, lesson.IsApproved)
	assert.Zero(t, lesson.ViewCount)
	assert.Equal(t, contributor.UserID, lesson.UploaderID)
}

// TestSearchEmptyKeyword verifies an empty keyword short-circuits to an
// empty list without touching the store.
func TestSearchEmptyKeyword(t *testing.T) {
	service, _, _ := newTestService(t)

	lessons, err := service.Search(context.Background(), "title", "")
	require.NoError(t, err)
	assert.Empty(t, lessons)
}

// TestSearchRejectsUnknownField verifies only title and description are
// searchable.
func TestSearchRejectsUnknownField(t *testing.T) {
	service, _, _ := newTestService(t)

	_, err := service.Search(context.Background(), "file_url", "mp4")
	assert.Error(t, err)
}

// TestRecordView verifies the increment and the views metric.
func TestRecordView(t *testing.T) {
	service, mock, metrics := newTestService(t)

	mock.ExpectExec("UPDATE lessons SET view_count").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE lesson_id").
		WithArgs(int64(7)).
		WillReturnRows(lessonRow(7, contributor.UserID, true, 4))

	lesson, err := service.RecordView(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 4, lesson.ViewCount)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LessonViewsTotal))
}

// TestRecordViewMissingLesson verifies the not-found path.
func TestRecordViewMissingLesson(t *testing.T) {
	service, mock, _ := newTestService(t)

	mock.ExpectExec("UPDATE lessons SET view_count").
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := service.RecordView(context.Background(), 404)
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

// TestContentAnalytics verifies the admin overview assembly.
func TestContentAnalytics(t *testing.T) {
	service, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT COUNT(.+) FROM lessons").
		WillReturnRows(sqlmock.NewRows([]string{"total", "approved", "pending"}).AddRow(12, 9, 3))
	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE is_approved = TRUE AND view_count").
		WithArgs(popularMinViews, popularLimit).
		WillReturnRows(lessonRow(7, contributor.UserID, true, 40))

	analytics, err := service.ContentAnalytics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), analytics.Total)
	assert.Equal(t, int64(9), analytics.Approved)
	assert.Equal(t, int64(3), analytics.Pending)
	assert.Len(t, analytics.TopViewed, 1)
}

// TestCreateDownloadMissingLesson verifies a download of an unknown
// lesson fails cleanly.
func TestCreateDownloadMissingLesson(t *testing.T) {
	service, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE lesson_id").
		WithArgs(int64(404)).
		WillReturnRows(emptyLessonRows())

	_, err := service.CreateDownload(context.Background(), learner, DownloadRequest{LessonID: 404})
	assert.ErrorIs(t, err, ErrLessonNotFound)
}

// TestCreateDownloadSetsExpiry verifies the seven-day window.
func TestCreateDownloadSetsExpiry(t *testing.T) {
	service, mock, _ := newTestService(t)

	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE lesson_id").
		WithArgs(int64(7)).
		WillReturnRows(lessonRow(7, contributor.UserID, true, 4))
	mock.ExpectQuery("INSERT INTO downloads").
		WillReturnRows(sqlmock.NewRows([]string{"download_id", "downloaded_at"}).
			AddRow(int64(1), time.Now()))

	download, err := service.CreateDownload(context.Background(), learner, DownloadRequest{LessonID: 7})
	require.NoError(t, err)
	assert.Equal(t, learner.UserID, download.UserID)
	assert.WithinDuration(t, time.Now().Add(downloadValidity), download.ExpiresAt, time.Minute)
}

// TestPurgeExpiredDownloads verifies the sweep and its metric.
func TestPurgeExpiredDownloads(t *testing.T) {
	service, mock, metrics := newTestService(t)

	mock.ExpectExec("DELETE FROM downloads WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 3))

	purged, err := service.PurgeExpiredDownloads(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), purged)
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DownloadsExpiredTotal))
}
