package notifications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store persists notifications in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a notification store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const notificationColumns = "notification_id, user_id, role, type, message, reference_id, is_read, created_at"

func scanNotification(row interface{ Scan(...interface{}) error }) (*Notification, error) {
	var n Notification
	var role sql.NullString
	var referenceID sql.NullInt64
	err := row.Scan(&n.ID, &n.UserID, &role, &n.Type, &n.Message, &referenceID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Role = role.String
	n.ReferenceID = referenceID.Int64
	return &n, nil
}

// Create inserts a notification. New notifications start unread.
func (s *Store) Create(ctx context.Context, n *Notification) (*Notification, error) {
	query := `INSERT INTO notifications (user_id, role, type, message, reference_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING notification_id, is_read, created_at`

	err := s.db.QueryRowContext(ctx, query,
		n.UserID, nullString(n.Role), n.Type, n.Message, nullInt64(n.ReferenceID),
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating notification: %w", err)
	}
	return n, nil
}

// ByID fetches one notification.
func (s *Store) ByID(ctx context.Context, id int64) (*Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE notification_id = $1", notificationColumns)
	n, err := scanNotification(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching notification %d: %w", id, err)
	}
	return n, nil
}

// ByUser lists a user's notifications newest-first.
func (s *Store) ByUser(ctx context.Context, userID int64) ([]*Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM notifications WHERE user_id = $1 ORDER BY created_at DESC", notificationColumns)
	return s.query(ctx, query, userID)
}

// ByUserOrRole lists notifications addressed to the user directly or to
// their role.
func (s *Store) ByUserOrRole(ctx context.Context, userID int64, role string) ([]*Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM notifications WHERE user_id = $1 OR role = $2 ORDER BY created_at DESC", notificationColumns)
	return s.query(ctx, query, userID, role)
}

// ByUserPaginated lists one page of a user's notifications plus the
// total row count.
func (s *Store) ByUserPaginated(ctx context.Context, userID int64, limit, offset int) ([]*Notification, int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1", userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
		notificationColumns)
	items, err := s.query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Unread lists a user's unread notifications newest-first.
func (s *Store) Unread(ctx context.Context, userID int64) ([]*Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM notifications WHERE user_id = $1 AND is_read = FALSE ORDER BY created_at DESC",
		notificationColumns)
	return s.query(ctx, query, userID)
}

// UnreadCount counts a user's unread notifications.
func (s *Store) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// Recent lists a user's newest notifications up to limit.
func (s *Store) Recent(ctx context.Context, userID int64, limit int) ([]*Notification, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM notifications WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2",
		notificationColumns)
	return s.query(ctx, query, userID, limit)
}

// MarkRead flips one notification to read.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE notification_id = $1", id)
	if err != nil {
		return fmt.Errorf("marking notification %d read: %w", id, err)
	}
	return requireRow(result, ErrNotFound)
}

// MarkAllRead flips all of a user's unread notifications and returns how
// many changed.
func (s *Store) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND is_read = FALSE", userID)
	if err != nil {
		return 0, fmt.Errorf("marking notifications read: %w", err)
	}
	return result.RowsAffected()
}

// Delete removes one notification.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE notification_id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	return requireRow(result, ErrNotFound)
}

func (s *Store) query(ctx context.Context, query string, args ...interface{}) ([]*Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
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

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}
