// Package auth verifies request credentials against the user table.
//
// Passwords are stored as Argon2id PHC hashes. Every REST request carries
// its credentials inline (user/pass parameters); there is no session or
// token surface.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Sentinel errors for credential checks.
var (
	// ErrInvalidCredentials indicates an unknown user or wrong password.
	// Unknown user and bad password are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrUserDisabled indicates the account exists but is switched off.
	ErrUserDisabled = errors.New("auth: user disabled")
)

// Authenticator checks request credentials.
type Authenticator interface {
	// CheckPassword returns nil when user/pass match an enabled account.
	CheckPassword(ctx context.Context, user, pass string) error
}

// SQLiteAuthenticator verifies credentials against the users table.
type SQLiteAuthenticator struct {
	db *sql.DB
}

// NewSQLiteAuthenticator creates an authenticator over an open database
// with the StateGate schema applied.
func NewSQLiteAuthenticator(db *sql.DB) *SQLiteAuthenticator {
	return &SQLiteAuthenticator{db: db}
}

// CheckPassword verifies user/pass against the stored Argon2id hash.
func (a *SQLiteAuthenticator) CheckPassword(ctx context.Context, user, pass string) error {
	var hash string
	var enabled int
	err := a.db.QueryRowContext(ctx,
		`SELECT password_hash, enabled FROM users WHERE username = ?`, user).
		Scan(&hash, &enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("querying user %q: %w", user, err)
	}

	if enabled == 0 {
		return ErrUserDisabled
	}

	ok, err := VerifyPassword(pass, hash)
	if err != nil {
		return fmt.Errorf("verifying password for %q: %w", user, err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// CreateUser stores a new enabled account with a hashed password.
func (a *SQLiteAuthenticator) CreateUser(ctx context.Context, user, pass string) error {
	hash, err := HashPassword(pass)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, enabled) VALUES (?, ?, 1)`,
		user, hash)
	if err != nil {
		return fmt.Errorf("creating user %q: %w", user, err)
	}
	return nil
}

// SetEnabled switches an account on or off.
func (a *SQLiteAuthenticator) SetEnabled(ctx context.Context, user string, enabled bool) error {
	enabledInt := 0
	if enabled {
		enabledInt = 1
	}
	res, err := a.db.ExecContext(ctx,
		`UPDATE users SET enabled = ? WHERE username = ?`, enabledInt, user)
	if err != nil {
		return fmt.Errorf("updating user %q: %w", user, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidCredentials
	}
	return nil
}

// Count returns the number of accounts.
func (a *SQLiteAuthenticator) Count(ctx context.Context) (int, error) {
	var count int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}
