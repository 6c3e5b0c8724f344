package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"benta/internal/core"
)

// defaultCategories are seeded for every new account so that the first
// transaction can be recorded without any setup.
var defaultCategories = []struct {
	Name string
	Type core.CategoryType
}{
	{"Sales Revenue", core.Income},
	{"Service Income", core.Income},
	{"Other Income", core.Income},
	{"Office Supplies", core.Expense},
	{"Utilities", core.Expense},
	{"Marketing", core.Expense},
	{"Transportation", core.Expense},
	{"Other Expenses", core.Expense},
}

// CreateUserWithDefaults inserts the user, their default categories and a
// settings row in a single transaction. Returns ErrDuplicate when the
// username or email is already taken.
func (r *Repository) CreateUserWithDefaults(ctx context.Context, username, email, passwordHash string) (*core.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, login_attempts, created_at)
		 VALUES (?, ?, ?, 0, ?)`,
		username, email, passwordHash, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	userID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for _, c := range defaultCategories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (user_id, name, type, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)`,
			userID, c.Name, c.Type, now, now); err != nil {
			return nil, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settings (user_id, business_name, currency, updated_at)
		 VALUES (?, 'My Business', 'PHP', ?)`,
		userID, now); err != nil {
		return nil, fmt.Errorf("seed settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &core.User{
		ID:           userID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

// GetUserByUsernameOrEmail looks up a user by either credential field.
func (r *Repository) GetUserByUsernameOrEmail(ctx context.Context, identifier string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, login_attempts, locked_until, created_at
		 FROM users WHERE username = ? OR email = ?`,
		identifier, identifier)
	return scanUser(row)
}

func (r *Repository) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, login_attempts, locked_until, created_at
		 FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// IncrementLoginAttempts bumps the failure counter atomically and returns
// the new value, so concurrent failed logins cannot lose updates.
func (r *Repository) IncrementLoginAttempts(ctx context.Context, userID int64) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET login_attempts = login_attempts + 1
		 WHERE id = ? RETURNING login_attempts`, userID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment login attempts: %w", err)
	}
	return attempts, nil
}

// LockUser sets the lockout deadline for an account.
func (r *Repository) LockUser(ctx context.Context, userID int64, until time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET locked_until = ? WHERE id = ?`, until.UTC(), userID)
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// ResetLoginAttempts clears the failure counter and any lockout after a
// successful login.
func (r *Repository) ResetLoginAttempts(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET login_attempts = 0, locked_until = NULL WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("reset login attempts: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	var locked sql.NullTime
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.LoginAttempts, &locked, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if locked.Valid {
		t := locked.Time
		u.LockedUntil = &t
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
