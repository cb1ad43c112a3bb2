package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fortuna/pickvs/internal/store"
)

// Unique constraints on users, as named by Postgres for inline UNIQUE columns.
const (
	ConstraintUsername = "users_username_key"
	ConstraintEmail    = "users_email_key"
)

// UserRepository handles user data access
type UserRepository struct {
	q store.Querier
}

// NewUserRepository creates a user repository
func NewUserRepository(q store.Querier) *UserRepository {
	return &UserRepository{q: q}
}

// Create inserts a user and fills in the generated id and defaults.
// A taken username or email returns *ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING user_id, total_units, roi, total_picks, created_at
	`

	err := r.q.QueryRowContext(ctx, query, user.Username, user.Email, user.PasswordHash).Scan(
		&user.UserID, &user.TotalUnits, &user.ROI, &user.TotalPicks, &user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating user: %w", asDuplicate(err))
	}

	return nil
}

// GetByUsername finds a user by login name
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT user_id, username, email, password_hash, total_units, roi, total_picks, created_at
		FROM users
		WHERE username = $1
	`

	user, err := scanUser(r.q.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return user, nil
}

// GetByID finds a user by id
func (r *UserRepository) GetByID(ctx context.Context, userID uuid.UUID) (*store.User, error) {
	query := `
		SELECT user_id, username, email, password_hash, total_units, roi, total_picks, created_at
		FROM users
		WHERE user_id = $1
	`

	user, err := scanUser(r.q.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return user, nil
}

// UsernameExists reports whether the username is taken
func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username)
}

// EmailExists reports whether the email is registered
func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email)
}

func (r *UserRepository) exists(ctx context.Context, query string, arg string) (bool, error) {
	var exists bool
	if err := r.q.QueryRowContext(ctx, query, arg).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return exists, nil
}

func scanUser(row rowScanner) (*store.User, error) {
	user := &store.User{}
	err := row.Scan(
		&user.UserID, &user.Username, &user.Email, &user.PasswordHash,
		&user.TotalUnits, &user.ROI, &user.TotalPicks, &user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
