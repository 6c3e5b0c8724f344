package worker

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

	"benta/internal/amqp"
	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/sheets/memory"
	"benta/internal/storage"
)

func newFixture(t *testing.T) (*storage.Repository, *memory.Store, *SyncWorker) {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ledger := memory.New()
	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	w := NewSyncWorker(repo, ledger, ledger, nil, Config{BatchSize: 10, SyncInterval: time.Second}, logger)
	return repo, ledger, w
}

func seedTransaction(t *testing.T, repo *storage.Repository) *core.Transaction {
	t.Helper()
	ctx := context.Background()

	user, err := repo.CreateUserWithDefaults(ctx, "alice", "alice@example.com", "hash")
	require.NoError(t, err)

	cat, err := repo.CreateCategory(ctx, user.ID, "Consulting", core.Income)
	require.NoError(t, err)

	tx, err := repo.CreateTransaction(ctx, &core.Transaction{
		UserID:      user.ID,
		CategoryID:  cat.ID,
		Amount:      core.Money{Cents: 12345},
		Description: "Retainer",
		Date:        core.NewDate(2026, 3, 10),
		Type:        core.Income,
	})
	require.NoError(t, err)
	return tx
}

func TestHandleSyncMirrorsTransaction(t *testing.T) {
	repo, ledger, w := newFixture(t)
	tx := seedTransaction(t, repo)

	err := w.HandleSync(&amqp.SyncMessage{TransactionID: tx.ID})
	require.NoError(t, err)

	mirrored := ledger.Transactions()
	require.Len(t, mirrored, 1)
	assert.Equal(t, tx.ID, mirrored[0].ID)
	assert.Equal(t, int64(12345), mirrored[0].Amount.Cents)

	// Synced rows leave the pending list.
	pending, err := repo.ListPendingSync(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleSyncMissingTransactionIsDropped(t *testing.T) {
	_, ledger, w := newFixture(t)

	err := w.HandleSync(&amqp.SyncMessage{TransactionID: 999})
	require.NoError(t, err)
	assert.Empty(t, ledger.Transactions())
}

func TestHandleDelete(t *testing.T) {
	repo, ledger, w := newFixture(t)
	tx := seedTransaction(t, repo)

	require.NoError(t, w.HandleSync(&amqp.SyncMessage{TransactionID: tx.ID}))
	require.Len(t, ledger.Transactions(), 1)

	err := w.HandleDelete(&amqp.DeleteMessage{TransactionID: tx.ID})
	require.NoError(t, err)
	assert.Empty(t, ledger.Transactions())

	// Deleting again is a no-op.
	require.NoError(t, w.HandleDelete(&amqp.DeleteMessage{TransactionID: tx.ID}))
}

func TestProcessPendingTransactions(t *testing.T) {
	repo, ledger, w := newFixture(t)
	tx := seedTransaction(t, repo)

	pending, err := repo.ListPendingSync(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, []int64{tx.ID}, pending)

	require.NoError(t, w.ProcessPendingTransactions(context.Background()))
	assert.Len(t, ledger.Transactions(), 1)

	pending, err = repo.ListPendingSync(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

type failingLedger struct{}

func (failingLedger) AppendTransaction(context.Context, core.Transaction) (string, error) {
	return "", errors.New("sheets unavailable")
}

func TestAppendFailureMarksRowAndDoesNotRequeue(t *testing.T) {
	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	w := NewSyncWorker(repo, failingLedger{}, memory.New(), nil, Config{}, logger)
	tx := seedTransaction(t, repo)

	err = w.HandleSync(&amqp.SyncMessage{TransactionID: tx.ID})
	require.NoError(t, err)

	// Marked rows are excluded from the sweep until the row changes.
	pending, err := repo.ListPendingSync(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
