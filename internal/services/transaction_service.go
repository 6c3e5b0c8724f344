package services

import (
	"context"
	"errors"
	"fmt"

	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/storage"
)

// TransactionStore is the persistence the transaction service needs.
type TransactionStore interface {
	ListTransactions(ctx context.Context, userID int64, f storage.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error)
	CreateTransaction(ctx context.Context, t *core.Transaction) (*core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id int64, patch storage.TransactionPatch) (*core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error
	GetCategory(ctx context.Context, userID, id int64) (*core.Category, error)
}

// Publisher enqueues ledger mirror work. Nil means mirroring is off.
type Publisher interface {
	PublishTransactionSync(ctx context.Context, transactionID int64) error
	PublishTransactionDelete(ctx context.Context, transactionID int64) error
}

type TransactionService struct {
	store     TransactionStore
	publisher Publisher
	logger    *log.Logger
}

func NewTransactionService(store TransactionStore, publisher Publisher, logger *log.Logger) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		logger:    logger.WithComponent("transactions"),
	}
}

func (s *TransactionService) List(ctx context.Context, userID int64, f storage.TransactionFilter) ([]core.Transaction, error) {
	if f.Type != "" {
		if err := f.Type.Validate(); err != nil {
			return nil, err
		}
	}
	txs, err := s.store.ListTransactions(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// TransactionInput is the payload of a create.
type TransactionInput struct {
	CategoryID  int64
	Amount      core.Money
	Description string
	Date        core.Date
	Type        core.CategoryType
}

func (s *TransactionService) Create(ctx context.Context, userID int64, in TransactionInput) (*core.Transaction, error) {
	t := core.Transaction{
		UserID:      userID,
		CategoryID:  in.CategoryID,
		Amount:      in.Amount,
		Description: core.SanitizeText(in.Description),
		Date:        in.Date,
		Type:        in.Type,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, userID, in.CategoryID, in.Type); err != nil {
		return nil, err
	}

	created, err := s.store.CreateTransaction(ctx, &t)
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction created",
		log.FieldUserID, userID,
		log.FieldTxID, created.ID)
	s.publishSync(ctx, created.ID)
	return created, nil
}

// TransactionUpdate holds the optional fields of an update. Supplied
// fields are validated individually; a category or type change is
// re-checked against the category's type.
type TransactionUpdate struct {
	CategoryID  *int64
	Amount      *core.Money
	Description *string
	Date        *core.Date
	Type        *core.CategoryType
}

func (s *TransactionService) Update(ctx context.Context, userID, id int64, in TransactionUpdate) (*core.Transaction, error) {
	if in.CategoryID == nil && in.Amount == nil && in.Description == nil && in.Date == nil && in.Type == nil {
		return nil, ErrNoFieldsToUpdate
	}

	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	patch := storage.TransactionPatch{CategoryID: in.CategoryID, Amount: in.Amount, Date: in.Date, Type: in.Type}
	if in.Amount != nil {
		if err := in.Amount.Validate(); err != nil {
			return nil, err
		}
	}
	if in.Date != nil {
		if err := in.Date.Validate(); err != nil {
			return nil, err
		}
	}
	if in.Type != nil {
		if err := in.Type.Validate(); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		desc := core.SanitizeText(*in.Description)
		if len(desc) > 1000 {
			return nil, core.ErrDescriptionTooLong
		}
		patch.Description = &desc
	}

	// The effective (category, type) pair after the patch must agree.
	categoryID := current.CategoryID
	if in.CategoryID != nil {
		categoryID = *in.CategoryID
	}
	txType := current.Type
	if in.Type != nil {
		txType = *in.Type
	}
	if err := s.checkCategory(ctx, userID, categoryID, txType); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateTransaction(ctx, userID, id, patch)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction updated",
		log.FieldUserID, userID,
		log.FieldTxID, id)
	s.publishSync(ctx, id)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteTransaction(ctx, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "transaction deleted",
		log.FieldUserID, userID,
		log.FieldTxID, id)

	if s.publisher != nil {
		if err := s.publisher.PublishTransactionDelete(ctx, id); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish delete message",
				log.FieldTxID, id, log.FieldError, err)
		}
	}
	return nil
}

// checkCategory verifies ownership of the category and that the
// transaction type matches the category type.
func (s *TransactionService) checkCategory(ctx context.Context, userID, categoryID int64, txType core.CategoryType) error {
	cat, err := s.store.GetCategory(ctx, userID, categoryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrInvalidCategory
		}
		return fmt.Errorf("get category: %w", err)
	}
	if cat.Type != txType {
		return ErrTypeMismatch
	}
	return nil
}

// publishSync enqueues a ledger mirror. Publish failures are logged and
// never fail the user's request; the worker's pending scan will retry.
func (s *TransactionService) publishSync(ctx context.Context, id int64) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishTransactionSync(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish sync message",
			log.FieldTxID, id, log.FieldError, err)
	}
}
