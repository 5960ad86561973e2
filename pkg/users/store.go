package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/gurulk/platform/pkg/auth"
)

// uniqueViolation is the Postgres error code for duplicate keys
const uniqueViolation = "23505"

// Store persists users in Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a user store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = "id, username, email, password_hash, role, preferred_language, region, is_low_income, created_at"

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	var language sql.NullString
	var region sql.NullString
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&language, &region, &u.IsLowIncome, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.PreferredLanguage = auth.Language(language.String)
	u.Region = region.String
	return &u, nil
}

// Create inserts a user and returns it with its assigned id.
func (s *Store) Create(ctx context.Context, u *User) (*User, error) {
	query := `INSERT INTO users (username, email, password_hash, role, preferred_language, region, is_low_income)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query,
		u.Username, u.Email, u.PasswordHash, u.Role,
		nullString(string(u.PreferredLanguage)), nullString(u.Region), u.IsLowIncome,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// ByID fetches a user by id.
func (s *Store) ByID(ctx context.Context, id int64) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching user %d: %w", id, err)
	}
	return u, nil
}

// ByUsername fetches a user by username.
func (s *Store) ByUsername(ctx context.Context, username string) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE username = $1", userColumns)
	u, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching user %q: %w", username, err)
	}
	return u, nil
}

// EmailByID fetches only the email column for service-to-service lookups.
func (s *Store) EmailByID(ctx context.Context, id int64) (string, error) {
	var email string
	err := s.db.QueryRowContext(ctx, "SELECT email FROM users WHERE id = $1", id).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fetching email for user %d: %w", id, err)
	}
	return email, nil
}

// EmailTaken reports whether the email belongs to a different user.
func (s *Store) EmailTaken(ctx context.Context, email string, excludeUserID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE email = $1 AND id <> $2", email, excludeUserID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking email: %w", err)
	}
	return count > 0, nil
}

// IDsByRole lists all user ids holding the given role.
func (s *Store) IDsByRole(ctx context.Context, role auth.Role) ([]int64, error) {
	return s.queryIDs(ctx, "SELECT id FROM users WHERE role = $1 ORDER BY id", role)
}

// AllIDs lists every user id.
func (s *Store) AllIDs(ctx context.Context) ([]int64, error) {
	return s.queryIDs(ctx, "SELECT id FROM users ORDER BY id")
}

func (s *Store) queryIDs(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing user ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// All lists every user.
func (s *Store) All(ctx context.Context) ([]*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY id", userColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateProfile persists profile fields for a user.
func (s *Store) UpdateProfile(ctx context.Context, u *User) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET email = $1, preferred_language = $2, region = $3, is_low_income = $4 WHERE id = $5`,
		u.Email, nullString(string(u.PreferredLanguage)), nullString(u.Region), u.IsLowIncome, u.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("updating profile for user %d: %w", u.ID, err)
	}
	return requireRow(result)
}

// UpdateRole changes a user's role.
func (s *Store) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	result, err := s.db.ExecContext(ctx, "UPDATE users SET role = $1 WHERE id = $2", role, id)
	if err != nil {
		return fmt.Errorf("updating role for user %d: %w", id, err)
	}
	return requireRow(result)
}

// Delete removes a user.
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, err)
	}
	return requireRow(result)
}

// Exists reports whether the user id is still registered. Token
// validation uses this so a deleted account's unexpired tokens stop
// working.
func (s *Store) Exists(ctx context.Context, id int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id = $1", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking user %d: %w", id, err)
	}
	return count > 0, nil
}

func requireRow(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
