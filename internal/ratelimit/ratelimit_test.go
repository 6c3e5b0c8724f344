package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benta/internal/log"
	"benta/internal/storage"
)

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "rl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	l := NewLimiter(repo, cfg, logger)
	t.Cleanup(l.Stop)
	return l
}

func TestCheckLimitDeniesOverBudget(t *testing.T) {
	l := newTestLimiter(t, Config{
		Limits: map[string]Limit{
			ActionAuth: {MaxRequests: 5, Window: 300 * time.Second},
		},
	})
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		res := l.CheckLimit(ctx, "1.2.3.4", ActionAuth)
		assert.True(t, res.Allowed)
		assert.Equal(t, 5-i, res.Remaining)
	}

	res := l.CheckLimit(ctx, "1.2.3.4", ActionAuth)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.True(t, res.ResetTime.After(time.Now()))
}

func TestCheckLimitIsolatesIdentifiers(t *testing.T) {
	l := newTestLimiter(t, Config{
		Limits: map[string]Limit{
			ActionAuth: {MaxRequests: 1, Window: 300 * time.Second},
		},
	})
	ctx := context.Background()

	assert.True(t, l.CheckLimit(ctx, "1.1.1.1", ActionAuth).Allowed)
	assert.False(t, l.CheckLimit(ctx, "1.1.1.1", ActionAuth).Allowed)

	// A different caller still has a full budget.
	assert.True(t, l.CheckLimit(ctx, "2.2.2.2", ActionAuth).Allowed)
	// So does the same caller under a different action.
	assert.True(t, l.CheckLimit(ctx, "1.1.1.1", ActionGeneral).Allowed)
}

func TestCheckLimitWindowExpiry(t *testing.T) {
	l := newTestLimiter(t, Config{
		Limits: map[string]Limit{
			ActionAuth: {MaxRequests: 1, Window: 50 * time.Millisecond},
		},
	})
	ctx := context.Background()

	assert.True(t, l.CheckLimit(ctx, "1.2.3.4", ActionAuth).Allowed)
	assert.False(t, l.CheckLimit(ctx, "1.2.3.4", ActionAuth).Allowed)

	time.Sleep(60 * time.Millisecond)
	assert.True(t, l.CheckLimit(ctx, "1.2.3.4", ActionAuth).Allowed)
}

func TestUnknownActionAllowed(t *testing.T) {
	l := newTestLimiter(t, DefaultConfig())
	res := l.CheckLimit(context.Background(), "1.2.3.4", "no_such_action")
	assert.True(t, res.Allowed)
}

type failingStore struct{}

func (failingStore) IncrementRateLimit(context.Context, string, string, time.Duration) (*storage.RateLimitWindow, error) {
	return nil, errors.New("storage down")
}

func (failingStore) PurgeRateLimits(context.Context, time.Time) (int64, error) {
	return 0, errors.New("storage down")
}

func TestCheckLimitFailsOpen(t *testing.T) {
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	l := NewLimiter(failingStore{}, DefaultConfig(), logger)
	defer l.Stop()

	res := l.CheckLimit(context.Background(), "1.2.3.4", ActionAuth)
	assert.True(t, res.Allowed)
}
