// Package audit records security-relevant events to an append-only
// database trail, mirrored to the structured log. Recording failures
// are logged and swallowed so an audit outage never blocks a request.
package audit

import (
	"context"
	"encoding/json"

	"benta/internal/log"
	"benta/internal/storage"
)

const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Store persists audit entries.
type Store interface {
	InsertAuditEntry(ctx context.Context, e storage.AuditEntry) error
}

// Event describes one security event.
type Event struct {
	Level     string
	Message   string
	Context   map[string]any
	UserID    *int64
	IP        string
	UserAgent string
}

type Recorder struct {
	store  Store
	logger *log.Logger
}

func NewRecorder(store Store, logger *log.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.WithComponent(log.ComponentAudit),
	}
}

// Record writes the event to the trail and mirrors it to the log.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if ev.Level == "" {
		ev.Level = LevelInfo
	}

	ctxJSON := "{}"
	if len(ev.Context) > 0 {
		if b, err := json.Marshal(ev.Context); err == nil {
			ctxJSON = string(b)
		}
	}

	args := []any{log.FieldClientIP, ev.IP}
	if ev.UserID != nil {
		args = append(args, log.FieldUserID, *ev.UserID)
	}
	switch ev.Level {
	case LevelError:
		r.logger.ErrorContext(ctx, ev.Message, args...)
	case LevelWarning:
		r.logger.WarnContext(ctx, ev.Message, args...)
	default:
		r.logger.InfoContext(ctx, ev.Message, args...)
	}

	err := r.store.InsertAuditEntry(ctx, storage.AuditEntry{
		Level:     ev.Level,
		Message:   ev.Message,
		Context:   ctxJSON,
		UserID:    ev.UserID,
		IP:        ev.IP,
		UserAgent: ev.UserAgent,
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "audit trail write failed", log.FieldError, err)
	}
}
