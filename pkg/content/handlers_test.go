package content

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/middleware"
	"github.com/gurulk/platform/pkg/observability"
)

// fakeValidator stands in for the remote auth service in handler tests.
type fakeValidator struct {
	principals map[string]*auth.Principal
}

func (f *fakeValidator) Validate(_ context.Context, token string) (*auth.Principal, error) {
	if principal, ok := f.principals[token]; ok {
		return principal, nil
	}
	return nil, middleware.ErrInvalidToken
}

func newTestRouter(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, os.Stderr)
	service := NewService(NewStore(db), logger, nil)

	validator := &fakeValidator{principals: map[string]*auth.Principal{
		"learner-token":     learner,
		"contributor-token": contributor,
		"admin-token":       admin,
	}}

	router := mux.NewRouter()
	NewHandler(service, logger).RegisterRoutes(router)
	router.Use(mux.MiddlewareFunc(middleware.Authenticate(validator, logger)))
	router.Use(middleware.NewPolicyTable(Policies()).Middleware(logger))

	return router, mock
}

func doJSON(router *mux.Router, method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body bytes.Buffer
	if payload != nil {
		json.NewEncoder(&body).Encode(payload)
	}
	req := httptest.NewRequest(method, path, &body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// TestCreateLessonPolicy verifies the contributor floor on uploads.
func TestCreateLessonPolicy(t *testing.T) {
	router, mock := newTestRouter(t)

	payload := LessonRequest{Title: "Fractions", FileURL: "https://cdn.gurulk.io/l.mp4"}

	rec := doJSON(router, http.MethodPost, "/api/lessons", "learner-token", payload)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mock.ExpectQuery("INSERT INTO lessons").
		WillReturnRows(sqlmock.NewRows([]string{"lesson_id", "is_approved", "view_count", "created_at", "updated_at"}).
			AddRow(int64(7), false, 0, time.Now(), time.Now()))

	rec = doJSON(router, http.MethodPost, "/api/lessons", "contributor-token", payload)
	require.Equal(t, http.StatusCreated, rec.Code)

	var lesson Lesson
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lesson))
	assert.False(t, lesson.IsApproved)
	assert.Equal(t, contributor.UserID, lesson.UploaderID)
}

// TestApprovedListRequiresAuth verifies anonymous browsing is refused
// while any signed-in role may read.
func TestApprovedListRequiresAuth(t *testing.T) {
	router, mock := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/api/lessons/approved", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE is_approved = TRUE ORDER BY created_at").
		WillReturnRows(lessonRow(7, contributor.UserID, true, 4))

	rec = doJSON(router, http.MethodGet, "/api/lessons/approved", "learner-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var lessons []*Lesson
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lessons))
	assert.Len(t, lessons, 1)
}

// TestPendingListAdminOnly verifies the review queue policy.
func TestPendingListAdminOnly(t *testing.T) {
	router, mock := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/api/lessons/pending", "contributor-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE is_approved = FALSE ORDER BY created_at").
		WillReturnRows(lessonRow(7, contributor.UserID, false, 0))

	rec = doJSON(router, http.MethodGet, "/api/lessons/pending", "admin-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestApproveLessonAdminOnly verifies only admins approve.
func TestApproveLessonAdminOnly(t *testing.T) {
	router, mock := newTestRouter(t)

	rec := doJSON(router, http.MethodPut, "/api/lessons/7/approve", "contributor-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mock.ExpectExec("UPDATE lessons SET is_approved = TRUE").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE lesson_id").
		WithArgs(int64(7)).
		WillReturnRows(lessonRow(7, contributor.UserID, true, 0))

	rec = doJSON(router, http.MethodPut, "/api/lessons/7/approve", "admin-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var lesson Lesson
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lesson))
	assert.True(t, lesson.IsApproved)
}

// TestRecordViewOverHTTP verifies the view endpoint returns the bumped
// lesson.
func TestRecordViewOverHTTP(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectExec("UPDATE lessons SET view_count").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE lesson_id").
		WithArgs(int64(7)).
		WillReturnRows(lessonRow(7, contributor.UserID, true, 5))

	rec := doJSON(router, http.MethodPut, "/api/lessons/7/view", "learner-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var lesson Lesson
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lesson))
	assert.Equal(t, 5, lesson.ViewCount)
}

// TestUploaderListOwnership verifies contributors only see their own
// uploads while admins see anyone's.
func TestUploaderListOwnership(t *testing.T) {
	router, mock := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/api/lessons/uploader/999", "contributor-token", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied")

	mock.ExpectQuery("SELECT (.+) FROM lessons WHERE uploader_id").
		WithArgs(contributor.UserID).
		WillReturnRows(lessonRow(7, contributor.UserID, false, 0))

	rec = doJSON(router, http.MethodGet, "/api/lessons/uploader/20", "admin-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestDownloadsByUserOwnership verifies users cannot read another
// user's downloads.
func TestDownloadsByUserOwnership(t *testing.T) {
	router, mock := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/api/downloads/user/999", "learner-token", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	mock.ExpectQuery("SELECT (.+) FROM downloads WHERE user_id").
		WithArgs(learner.UserID).
		WillReturnRows(sqlmock.NewRows([]string{"download_id", "user_id", "lesson_id", "downloaded_at", "expires_at"}).
			AddRow(int64(1), learner.UserID, int64(7), time.Now(), time.Now().Add(downloadValidity)))

	rec = doJSON(router, http.MethodGet, "/api/downloads/user/10", "learner-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var downloads []*Download
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &downloads))
	assert.Len(t, downloads, 1)
}

// TestCheckDownload verifies the boolean check endpoint.
func TestCheckDownload(t *testing.T) {
	router, mock := newTestRouter(t)

	mock.ExpectQuery("SELECT COUNT(.+) FROM downloads WHERE user_id").
		WithArgs(learner.UserID, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rec := doJSON(router, http.MethodGet, "/api/downloads/check/7", "learner-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true\n", rec.Body.String())
}

// TestExpiredDownloadsAdminOnly verifies the ops listing policy.
func TestExpiredDownloadsAdminOnly(t *testing.T) {
	router, mock := newTestRouter(t)

	rec := doJSON(router, http.MethodGet, "/api/downloads/expired", "learner-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mock.ExpectQuery("SELECT (.+) FROM downloads WHERE expires_at").
		WillReturnRows(sqlmock.NewRows([]string{"download_id", "user_id", "lesson_id", "downloaded_at", "expires_at"}))

	rec = doJSON(router, http.MethodGet, "/api/downloads/expired", "admin-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
