package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"benta/internal/core"
)

// CategoryPatch carries the fields a category update may change. Nil
// fields are left untouched.
type CategoryPatch struct {
	Name *string
	Type *core.CategoryType
}

// ListCategories returns the user's categories with per-category
// transaction counts, income first, then alphabetically.
func (r *Repository) ListCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.name, c.type, c.created_at, c.updated_at,
		        COUNT(t.id) AS transaction_count
		 FROM categories c
		 LEFT JOIN transactions t ON t.category_id = c.id
		 WHERE c.user_id = ?
		 GROUP BY c.id
		 ORDER BY c.type DESC, c.name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.CreatedAt, &c.UpdatedAt, &c.TransactionCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCategory fetches one category scoped to its owner.
func (r *Repository) GetCategory(ctx context.Context, userID, id int64) (*core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, type, created_at, updated_at
		 FROM categories WHERE id = ? AND user_id = ?`, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Type, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, userID int64, name string, ctype core.CategoryType) (*core.Category, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, name, ctype, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &core.Category{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Type:      ctype,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CategoryNameExists reports whether the user already has a category with
// this name, excluding the given category ID (0 to exclude nothing).
// Names are matched case-insensitively.
func (r *Repository) CategoryNameExists(ctx context.Context, userID int64, name string, excludeID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories
		 WHERE user_id = ? AND LOWER(name) = LOWER(?) AND id != ?`,
		userID, name, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, userID, id int64, patch CategoryPatch) (*core.Category, error) {
	c, err := r.GetCategory(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	c.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		c.Name, c.Type, c.UpdatedAt, id, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// CountCategoryTransactions returns how many transactions reference a
// category. Used to block deletion of categories still in use.
func (r *Repository) CountCategoryTransactions(ctx context.Context, userID, categoryID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ? AND user_id = ?`,
		categoryID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count category transactions: %w", err)
	}
	return n, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
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
