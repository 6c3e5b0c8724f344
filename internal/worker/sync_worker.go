// Package worker mirrors transactions into the external ledger. It
// consumes sync/delete messages from the queue and periodically sweeps
// for rows the queue missed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"benta/internal/amqp"
	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/sheets"
	"benta/internal/storage"
)

// TransactionStore is the slice of storage the worker needs.
type TransactionStore interface {
	GetTransactionByID(ctx context.Context, id int64) (*core.Transaction, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
	ListPendingSync(ctx context.Context, limit int) ([]int64, error)
}

// Consumer delivers queued sync and delete messages.
type Consumer interface {
	ConsumeMessages(ctx context.Context, syncHandler func(*amqp.SyncMessage) error, deleteHandler func(*amqp.DeleteMessage) error) error
}

type Config struct {
	BatchSize    int
	SyncInterval time.Duration
}

type SyncWorker struct {
	store    TransactionStore
	ledger   sheets.LedgerWriter
	deleter  sheets.LedgerDeleter
	consumer Consumer
	config   Config
	logger   *log.Logger
}

// NewSyncWorker builds a worker. consumer may be nil, in which case only
// the periodic sweep runs.
func NewSyncWorker(store TransactionStore, ledger sheets.LedgerWriter, deleter sheets.LedgerDeleter, consumer Consumer, config Config, logger *log.Logger) *SyncWorker {
	if config.BatchSize <= 0 {
		config.BatchSize = 10
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 30 * time.Second
	}
	return &SyncWorker{
		store:    store,
		ledger:   ledger,
		deleter:  deleter,
		consumer: consumer,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Run blocks until the context is cancelled or the consumer fails.
func (w *SyncWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if w.consumer != nil {
		g.Go(func() error {
			return w.consumer.ConsumeMessages(ctx, w.HandleSync, w.HandleDelete)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.config.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := w.ProcessPendingTransactions(ctx); err != nil {
					w.logger.ErrorContext(ctx, "pending sweep failed", log.FieldError, err)
				}
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleSync mirrors one transaction into the ledger. The row is
// re-fetched so the ledger always sees the latest state, not the state
// at publish time.
func (w *SyncWorker) HandleSync(msg *amqp.SyncMessage) error {
	return w.syncTransaction(context.Background(), msg.TransactionID)
}

// HandleDelete removes a transaction's ledger row. Errors are returned
// so the delivery is requeued; the delete is idempotent.
func (w *SyncWorker) HandleDelete(msg *amqp.DeleteMessage) error {
	if err := w.deleter.DeleteTransaction(context.Background(), msg.TransactionID); err != nil {
		w.logger.Error("ledger delete failed",
			log.FieldTxID, msg.TransactionID,
			log.FieldError, err)
		return err
	}
	w.logger.Info("ledger row deleted", log.FieldTxID, msg.TransactionID)
	return nil
}

// ProcessPendingTransactions sweeps rows the queue never delivered for,
// e.g. after a publish failure or a worker outage.
func (w *SyncWorker) ProcessPendingTransactions(ctx context.Context) error {
	ids, err := w.store.ListPendingSync(ctx, w.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	w.logger.InfoContext(ctx, "processing pending transactions", "count", len(ids))
	for _, id := range ids {
		if err := w.syncTransaction(ctx, id); err != nil {
			w.logger.ErrorContext(ctx, "pending sync failed",
				log.FieldTxID, id,
				log.FieldError, err)
		}
	}
	return nil
}

// syncTransaction appends one row to the ledger. Append failures mark
// the row so it is not retried until the transaction changes again;
// the returned error is always nil for queue deliveries so poisoned
// rows do not loop forever.
func (w *SyncWorker) syncTransaction(ctx context.Context, id int64) error {
	tx, err := w.store.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted before the worker got to it.
			w.logger.InfoContext(ctx, "transaction gone, skipping sync", log.FieldTxID, id)
			return nil
		}
		return fmt.Errorf("get transaction %d: %w", id, err)
	}

	ref, err := w.ledger.AppendTransaction(ctx, *tx)
	if err != nil {
		w.logger.ErrorContext(ctx, "ledger append failed",
			log.FieldTxID, id,
			log.FieldError, err)
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			return fmt.Errorf("mark sync error for %d: %w", id, markErr)
		}
		return nil
	}

	if err := w.store.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark synced for %d: %w", id, err)
	}
	w.logger.InfoContext(ctx, "transaction synced",
		log.FieldTxID, id,
		"ledger_ref", ref)
	return nil
}
