// Package sheets defines the outbound ports for the ledger mirror.
package sheets

import (
	"context"

	"benta/internal/core"
)

type (
	// LedgerWriter appends one transaction row to the ledger. The
	// caller passes the full transaction including its category name.
	LedgerWriter interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// LedgerDeleter removes a transaction's row from the ledger by its
	// database ID.
	LedgerDeleter interface {
		DeleteTransaction(ctx context.Context, transactionID int64) error
	}
)
