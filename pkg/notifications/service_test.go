package notifications

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gurulk/platform/pkg/async"
	"github.com/gurulk/platform/pkg/auth"
	"github.com/gurulk/platform/pkg/observability"
)

var (
	learner = &auth.Principal{UserID: 10, Username: "nimal", Role: auth.RoleLearner}
	admin   = &auth.Principal{UserID: 99, Username: "root", Role: auth.RoleAdmin}
)

// fakeDirectory stands in for the auth service recipient lookups.
type fakeDirectory struct {
	mu         sync.Mutex
	emails     map[int64]string
	idsByRole  map[auth.Role][]int64
	allIDs     []int64
	seenTokens []string
}

func (f *fakeDirectory) UserEmail(_ context.Context, bearerToken string, userID int64) (string, error) {
	f.mu.Lock()
	f.seenTokens = append(f.seenTokens, bearerToken)
	f.mu.Unlock()
	if email, ok := f.emails[userID]; ok {
		return email, nil
	}
	return "", fmt.Errorf("no email for user %d", userID)
}

func (f *fakeDirectory) UserIDsByRole(_ context.Context, _ string, role auth.Role) ([]int64, error) {
	return f.idsByRole[role], nil
}

func (f *fakeDirectory) AllUserIDs(_ context.Context, _ string) ([]int64, error) {
	return f.allIDs, nil
}

// fakeMailer records deliveries instead of talking SMTP.
type fakeMailer struct {
	mu    sync.Mutex
	sends []string
}

func (f *fakeMailer) SendNotificationEmail(to, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, to)
	return nil
}

func (f *fakeMailer) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sends...)
}

type serviceFixture struct {
	service   *Service
	mock      sqlmock.Sqlmock
	directory *fakeDirectory
	mailer    *fakeMailer
	pool      *async.WorkerPool
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, os.Stderr)
	directory := &fakeDirectory{
		emails:    map[int64]string{10: "nimal@example.lk", 20: "kamala@example.lk"},
		idsByRole: map[auth.Role][]int64{auth.RoleLearner: {10, 20}},
		allIDs:    []int64{10, 20, 99},
	}
	mailer := &fakeMailer{}
	pool := async.NewWorkerPool(context.Background(), logger, 2, "email", time.Second)

	return &serviceFixture{
		service:   NewService(NewStore(db), directory, mailer, pool, logger, nil),
		mock:      mock,
		directory: directory,
		mailer:    mailer,
		pool:      pool,
	}
}

func (f *serviceFixture) drainEmails(t *testing.T) {
	t.Helper()
	require.NoError(t, f.pool.Shutdown(2*time.Second))
}

func insertReturning(id int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"notification_id", "is_read", "created_at"}).
		AddRow(id, false, time.Now())
}

func notificationRow(id, userID int64, read bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"notification_id", "user_id", "role", "type", "message", "reference_id", "is_read", "created_at",
	}).AddRow(id, userID, nil, "reply", "Someone answered", nil, read, time.Now())
}

// TestCreateValidation verifies the required fields.
func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Create(context.Background(), "tok", NotificationRequest{Type: "reply", Message: "hi"})
	assert.Error(t, err)

	_, err = f.service.Create(context.Background(), "tok", NotificationRequest{UserID: 10, Type: "reply"})
	assert.Error(t, err)
}

// TestCreateStoresAndEmails verifies the row insert and the background
// email with the forwarded bearer token.
func TestCreateStoresAndEmails(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("INSERT INTO notifications").
		WillReturnRows(insertReturning(1))

	notification, err := f.service.Create(context.Background(), "admin-token", NotificationRequest{
		UserID:  10,
		Type:    "reply",
		Message: "Someone answered your question",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), notification.ID)
	assert.False(t, notification.IsRead)

	f.drainEmails(t)
	assert.Equal(t, []string{"nimal@example.lk"}, f.mailer.recipients())
	assert.Equal(t, []string{"admin-token"}, f.directory.seenTokens)
}

// TestEmailFailureDoesNotFailCreate verifies best-effort delivery.
func TestEmailFailureDoesNotFailCreate(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("INSERT INTO notifications").
		WillReturnRows(insertReturning(1))

	// user 55 has no email on record
	_, err := f.service.Create(context.Background(), "tok", NotificationRequest{
		UserID:  55,
		Type:    "reply",
		Message: "hi",
	})
	require.NoError(t, err)

	f.drainEmails(t)
	assert.Empty(t, f.mailer.recipients())
}

// TestSendToRoleFanout verifies one row per recipient.
func TestSendToRoleFanout(t *testing.T) {
	f := newFixture(t)
	f.mock.MatchExpectationsInOrder(false)

	f.mock.ExpectQuery("INSERT INTO notifications").WillReturnRows(insertReturning(1))
	f.mock.ExpectQuery("INSERT INTO notifications").WillReturnRows(insertReturning(2))

	result, err := f.service.SendToRole(context.Background(), "admin-token", RoleRequest{
		Role:    "LEARNER",
		Type:    "announcement",
		Message: "New maths lessons",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Recipients)
	assert.Equal(t, 2, result.Created)

	f.drainEmails(t)
	assert.Len(t, f.mailer.recipients(), 2)
}

// TestSendToRoleUnknownRole verifies role parsing.
func TestSendToRoleUnknownRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SendToRole(context.Background(), "tok", RoleRequest{
		Role:    "SUPERUSER",
		Type:    "announcement",
		Message: "hi",
	})
	assert.ErrorIs(t, err, auth.ErrUnknownRole)
}

// TestBroadcastFanout verifies everyone gets a row.
func TestBroadcastFanout(t *testing.T) {
	f := newFixture(t)
	f.mock.MatchExpectationsInOrder(false)

	for i := int64(1); i <= 3; i++ {
		f.mock.ExpectQuery("INSERT INTO notifications").WillReturnRows(insertReturning(i))
	}

	result, err := f.service.Broadcast(context.Background(), "admin-token", BroadcastRequest{
		Type:    "announcement",
		Message: "Scheduled maintenance tonight",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Recipients)
	assert.Equal(t, 3, result.Created)
}

// TestBroadcastNoRecipients verifies the empty-directory path.
func TestBroadcastNoRecipients(t *testing.T) {
	f := newFixture(t)
	f.directory.allIDs = nil

	result, err := f.service.Broadcast(context.Background(), "tok", BroadcastRequest{
		Type:    "announcement",
		Message: "hi",
	})
	require.NoError(t, err)
	assert.Zero(t, result.Recipients)
	assert.Zero(t, result.Created)
}

// TestMarkReadOwnership verifies users only touch their own inbox.
func TestMarkReadOwnership(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM notifications WHERE notification_id").
		WithArgs(int64(1)).
		WillReturnRows(notificationRow(1, admin.UserID, false))

	_, err := f.service.MarkRead(context.Background(), learner, 1)
	assert.ErrorIs(t, err, ErrNotOwner)
}

// TestMarkRead verifies the read flip.
func TestMarkRead(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM notifications WHERE notification_id").
		WithArgs(int64(1)).
		WillReturnRows(notificationRow(1, learner.UserID, false))
	f.mock.ExpectExec("UPDATE notifications SET is_read = TRUE WHERE notification_id").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	notification, err := f.service.MarkRead(context.Background(), learner, 1)
	require.NoError(t, err)
	assert.True(t, notification.IsRead)
}

// TestDeleteMissing verifies the not-found path.
func TestDeleteMissing(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("SELECT (.+) FROM notifications WHERE notification_id").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{
			"notification_id", "user_id", "role", "type", "message", "reference_id", "is_read", "created_at",
		}))

	err := f.service.Delete(context.Background(), learner, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

// TestPaginatedClampsSize verifies the page-size bounds.
func TestPaginatedClampsSize(t *testing.T) {
	f := newFixture(t)

	f.mock.ExpectQuery("SELECT COUNT(.+) FROM notifications WHERE user_id").
		WithArgs(learner.UserID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	f.mock.ExpectQuery("SELECT (.+) FROM notifications WHERE user_id (.+) LIMIT").
		WithArgs(learner.UserID, 100, 0).
		WillReturnRows(notificationRow(1, learner.UserID, false))

	page, err := f.service.ForUserPaginated(context.Background(), learner, 0, 5000)
	require.NoError(t, err)
	assert.Equal(t, 100, page.Size)
	assert.Equal(t, int64(1), page.Total)
}
