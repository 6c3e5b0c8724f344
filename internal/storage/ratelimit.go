package storage

import (
	"context"
	"fmt"
	"time"
)

// RateLimitWindow is the persisted fixed-window counter for one
// (identifier, action) pair.
type RateLimitWindow struct {
	Identifier   string
	Action       string
	RequestCount int64
	WindowStart  time.Time
	LastRequest  time.Time
}

// IncrementRateLimit records one request against the current window and
// returns the resulting window. A window older than windowDur is reset
// rather than incremented. The upsert keeps concurrent requests from
// losing counts.
func (r *Repository) IncrementRateLimit(ctx context.Context, identifier, action string, windowDur time.Duration) (*RateLimitWindow, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-windowDur)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rate_limits (identifier, action, request_count, window_start, last_request)
		 VALUES (?, ?, 1, ?, ?)
		 ON CONFLICT (identifier, action) DO UPDATE SET
		   request_count = CASE WHEN window_start <= ? THEN 1 ELSE request_count + 1 END,
		   window_start  = CASE WHEN window_start <= ? THEN excluded.window_start ELSE window_start END,
		   last_request  = excluded.last_request`,
		identifier, action, now, now, cutoff, cutoff)
	if err != nil {
		return nil, fmt.Errorf("increment rate limit: %w", err)
	}

	var w RateLimitWindow
	err = r.db.QueryRowContext(ctx,
		`SELECT identifier, action, request_count, window_start, last_request
		 FROM rate_limits WHERE identifier = ? AND action = ?`,
		identifier, action).
		Scan(&w.Identifier, &w.Action, &w.RequestCount, &w.WindowStart, &w.LastRequest)
	if err != nil {
		return nil, fmt.Errorf("read rate limit window: %w", err)
	}
	return &w, nil
}

// PurgeRateLimits drops windows that started before the cutoff.
func (r *Repository) PurgeRateLimits(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE window_start < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge rate limits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
