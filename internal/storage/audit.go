package storage

import (
	"context"
	"fmt"
	"time"
)

// AuditEntry is one append-only audit trail row.
type AuditEntry struct {
	ID        int64
	Level     string
	Message   string
	Context   string
	UserID    *int64
	IP        string
	UserAgent string
	CreatedAt time.Time
}

func (r *Repository) InsertAuditEntry(ctx context.Context, e AuditEntry) error {
	if e.Context == "" {
		e.Context = "{}"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (level, message, context, user_id, ip, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Level, e.Message, e.Context, e.UserID, e.IP, e.UserAgent, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAuditEntries returns the newest entries, for admin inspection and
// tests.
func (r *Repository) ListAuditEntries(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, level, message, context, user_id, ip, user_agent, created_at
		 FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.Level, &e.Message, &e.Context, &e.UserID, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
