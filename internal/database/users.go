package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username taken")
)

// User is a registered player (username/password account).
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Users is the users table repository.
type Users struct {
	db *DB
}

// NewUsers returns the users repository.
func NewUsers(db *DB) *Users { return &Users{db: db} }

// Create inserts u. A duplicate username yields ErrUsernameTaken.
func (r *Users) Create(ctx context.Context, u User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.UnixMilli())
	if err != nil && isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	return err
}

// ByUsername finds a user by login name.
func (r *Users) ByUsername(ctx context.Context, username string) (User, error) {
	return r.one(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
}

// ByID finds a user by id.
func (r *Users) ByID(ctx context.Context, id string) (User, error) {
	return r.one(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
}

func (r *Users) one(ctx context.Context, q string, arg string) (User, error) {
	var (
		u  User
		ms int64
	)
	err := r.db.QueryRowContext(ctx, q, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("query user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(ms)
	return u, nil
}

// isUniqueViolation matches duplicate-key errors of every supported driver.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
