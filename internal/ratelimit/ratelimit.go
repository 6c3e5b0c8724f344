// Package ratelimit implements a database-backed fixed-window rate
// limiter keyed by (identifier, action). Windows survive restarts and
// are shared across instances pointed at the same database.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"benta/internal/log"
	"benta/internal/storage"
)

// Limit is one named rate limit.
type Limit struct {
	MaxRequests int64
	Window      time.Duration
}

// Actions with preconfigured limits.
const (
	ActionAuth      = "api_auth"
	ActionGeneral   = "api_general"
	ActionSensitive = "api_sensitive"
)

// Store is the persistence the limiter needs.
type Store interface {
	IncrementRateLimit(ctx context.Context, identifier, action string, window time.Duration) (*storage.RateLimitWindow, error)
	PurgeRateLimits(ctx context.Context, cutoff time.Time) (int64, error)
}

// Config holds rate limiter configuration.
type Config struct {
	Limits          map[string]Limit
	CleanupInterval time.Duration
}

// DefaultConfig returns the standard limit table.
func DefaultConfig() Config {
	return Config{
		Limits: map[string]Limit{
			ActionAuth:      {MaxRequests: 5, Window: 300 * time.Second},
			ActionGeneral:   {MaxRequests: 100, Window: 60 * time.Second},
			ActionSensitive: {MaxRequests: 10, Window: 60 * time.Second},
		},
		CleanupInterval: 5 * time.Minute,
	}
}

// Result reports the outcome of a limit check.
type Result struct {
	Allowed    bool
	Remaining  int64
	ResetTime  time.Time
	RetryAfter time.Duration
}

type Limiter struct {
	store        Store
	limits       map[string]Limit
	logger       *log.Logger
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

// NewLimiter creates a limiter and starts its purge goroutine.
func NewLimiter(store Store, config Config, logger *log.Logger) *Limiter {
	if len(config.Limits) == 0 {
		config = DefaultConfig()
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	l := &Limiter{
		store:       store,
		limits:      config.Limits,
		logger:      logger.WithComponent(log.ComponentRateLimit),
		stopCleanup: make(chan struct{}),
	}
	go l.startCleanup(config.CleanupInterval)
	return l
}

// CheckLimit records one request for (identifier, action) and reports
// whether it is within the window's budget. Storage failures allow the
// request: availability wins over strict enforcement.
func (l *Limiter) CheckLimit(ctx context.Context, identifier, action string) Result {
	limit, ok := l.limits[action]
	if !ok {
		return Result{Allowed: true}
	}

	w, err := l.store.IncrementRateLimit(ctx, identifier, action, limit.Window)
	if err != nil {
		l.logger.ErrorContext(ctx, "rate limit storage failed, allowing request",
			log.FieldIdentifier, identifier,
			log.FieldAction, action,
			log.FieldError, err)
		return Result{Allowed: true}
	}

	reset := w.WindowStart.Add(limit.Window)
	remaining := limit.MaxRequests - w.RequestCount
	if remaining < 0 {
		remaining = 0
	}

	if w.RequestCount > limit.MaxRequests {
		retry := time.Until(reset)
		if retry < time.Second {
			retry = time.Second
		}
		l.logger.WarnContext(ctx, "rate limit exceeded",
			log.FieldIdentifier, identifier,
			log.FieldAction, action,
			"request_count", w.RequestCount)
		return Result{Allowed: false, Remaining: 0, ResetTime: reset, RetryAfter: retry}
	}

	return Result{Allowed: true, Remaining: remaining, ResetTime: reset}
}

func (l *Limiter) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.purgeStaleWindows()
		case <-l.stopCleanup:
			return
		}
	}
}

// purgeStaleWindows drops windows older than twice the longest window.
func (l *Limiter) purgeStaleWindows() {
	var longest time.Duration
	for _, limit := range l.limits {
		if limit.Window > longest {
			longest = limit.Window
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-2 * longest)
	n, err := l.store.PurgeRateLimits(ctx, cutoff)
	if err != nil {
		l.logger.Error("rate limit purge failed", log.FieldError, err)
		return
	}
	if n > 0 {
		l.logger.Debug("purged stale rate limit windows", "count", n)
	}
}

// Stop shuts down the purge goroutine.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}
