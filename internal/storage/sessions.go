package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is a server-side login session row. The cookie only carries
// the opaque ID; user identity and the CSRF token live here.
type Session struct {
	ID        string
	UserID    int64
	CSRFToken string
	CreatedAt time.Time
	RotatedAt time.Time
	ExpiresAt time.Time
}

func (r *Repository) CreateSession(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, csrf_token, created_at, rotated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.CSRFToken, s.CreatedAt.UTC(), s.RotatedAt.UTC(), s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// GetSession returns a session that has not yet expired.
func (r *Repository) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, csrf_token, created_at, rotated_at, expires_at
		 FROM sessions WHERE id = ? AND expires_at > ?`,
		id, time.Now().UTC()).
		Scan(&s.ID, &s.UserID, &s.CSRFToken, &s.CreatedAt, &s.RotatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (r *Repository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// RotateCSRF replaces the session's CSRF token and stamps the rotation
// time. Used on login and when the rotation interval has elapsed.
func (r *Repository) RotateCSRF(ctx context.Context, sessionID, token string, rotatedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET csrf_token = ?, rotated_at = ? WHERE id = ?`,
		token, rotatedAt.UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("rotate csrf token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions past their expiry and returns
// how many were dropped.
func (r *Repository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
