package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"benta/internal/core"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no
// constraint"; Limit falls back to 50.
type TransactionFilter struct {
	Type       core.CategoryType
	CategoryID int64
	StartDate  *core.Date
	EndDate    *core.Date
	Limit      int
	Offset     int
}

// TransactionPatch carries the fields a transaction update may change.
// Nil fields are left untouched.
type TransactionPatch struct {
	CategoryID  *int64
	Amount      *core.Money
	Description *string
	Date        *core.Date
	Type        *core.CategoryType
}

// ListTransactions returns the user's transactions newest first, joined
// with the category name.
func (r *Repository) ListTransactions(ctx context.Context, userID int64, f TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT t.id, t.user_id, t.category_id, t.amount_cents, t.description,
	                 t.date, t.type, t.created_at, t.updated_at, c.name
	          FROM transactions t
	          JOIN categories c ON c.id = t.category_id
	          WHERE t.user_id = ?`
	args := []any{userID}

	if f.Type != "" {
		query += ` AND t.type = ?`
		args = append(args, f.Type)
	}
	if f.CategoryID > 0 {
		query += ` AND t.category_id = ?`
		args = append(args, f.CategoryID)
	}
	if f.StartDate != nil {
		query += ` AND t.date >= ?`
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		query += ` AND t.date <= ?`
		args = append(args, f.EndDate.String())
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY t.date DESC, t.created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *Repository) GetTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.user_id, t.category_id, t.amount_cents, t.description,
		        t.date, t.type, t.created_at, t.updated_at, c.name
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ? AND t.user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, t *core.Transaction) (*core.Transaction, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category_id, amount_cents, description, date, type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.UserID, t.CategoryID, t.Amount.Cents, t.Description, t.Date.String(), t.Type, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	created := *t
	created.ID = id
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (r *Repository) UpdateTransaction(ctx context.Context, userID, id int64, patch TransactionPatch) (*core.Transaction, error) {
	t, err := r.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.CategoryID != nil {
		t.CategoryID = *patch.CategoryID
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Date != nil {
		t.Date = *patch.Date
	}
	if patch.Type != nil {
		t.Type = *patch.Type
	}
	t.UpdatedAt = time.Now().UTC()

	// Edits reset the sync flags so the worker picks the row up again.
	_, err = r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET category_id = ?, amount_cents = ?, description = ?, date = ?, type = ?,
		     synced = 0, sync_error = 0, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		t.CategoryID, t.Amount.Cents, t.Description, t.Date.String(), t.Type, t.UpdatedAt, id, userID)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
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

// GetTransactionByID loads a transaction without an ownership filter.
// Only the sync worker uses this.
func (r *Repository) GetTransactionByID(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT t.id, t.user_id, t.category_id, t.amount_cents, t.description,
		        t.date, t.type, t.created_at, t.updated_at, c.name
		 FROM transactions t
		 JOIN categories c ON c.id = t.category_id
		 WHERE t.id = ?`, id)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *Repository) MarkSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET synced = 1, sync_error = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}
	return nil
}

func (r *Repository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_error = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}
	return nil
}

// ListPendingSync returns IDs of transactions not yet mirrored to the
// ledger, oldest first.
func (r *Repository) ListPendingSync(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM transactions
		 WHERE synced = 0 AND sync_error = 0
		 ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending sync id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*core.Transaction, error) {
	var t core.Transaction
	var date string
	err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Amount.Cents, &t.Description,
		&date, &t.Type, &t.CreatedAt, &t.UpdatedAt, &t.CategoryName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	t.Date = d
	return &t, nil
}
