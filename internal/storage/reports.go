package storage

import (
	"context"
	"fmt"

	"benta/internal/core"
)

// Totals is a raw income/expense aggregate.
type Totals struct {
	IncomeCents  int64
	ExpenseCents int64
	Count        int64
}

// DayTotals is one day of the monthly breakdown.
type DayTotals struct {
	Date         string
	IncomeCents  int64
	ExpenseCents int64
}

// CategoryTotals is one row of the category breakdown.
type CategoryTotals struct {
	CategoryID   int64
	CategoryName string
	Type         core.CategoryType
	SumCents     int64
	Count        int64
}

// MonthTotals is one month of the yearly trend.
type MonthTotals struct {
	Month        int
	IncomeCents  int64
	ExpenseCents int64
}

// SumTransactions aggregates income, expense and row count inside an
// optional date range.
func (r *Repository) SumTransactions(ctx context.Context, userID int64, start, end *core.Date) (Totals, error) {
	query := `SELECT
	            COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
	            COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0),
	            COUNT(*)
	          FROM transactions WHERE user_id = ?`
	args := []any{userID}
	if start != nil {
		query += ` AND date >= ?`
		args = append(args, start.String())
	}
	if end != nil {
		query += ` AND date <= ?`
		args = append(args, end.String())
	}

	var t Totals
	if err := r.db.QueryRowContext(ctx, query, args...).
		Scan(&t.IncomeCents, &t.ExpenseCents, &t.Count); err != nil {
		return Totals{}, fmt.Errorf("sum transactions: %w", err)
	}
	return t, nil
}

// DailyBreakdown groups one calendar month's transactions by day.
func (r *Repository) DailyBreakdown(ctx context.Context, userID int64, start, end core.Date) ([]DayTotals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date,
		        COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		 FROM transactions
		 WHERE user_id = ? AND date >= ? AND date <= ?
		 GROUP BY date ORDER BY date ASC`,
		userID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("daily breakdown: %w", err)
	}
	defer rows.Close()

	var out []DayTotals
	for rows.Next() {
		var d DayTotals
		if err := rows.Scan(&d.Date, &d.IncomeCents, &d.ExpenseCents); err != nil {
			return nil, fmt.Errorf("scan day totals: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// CategoryBreakdown returns per-category sums and counts inside an
// optional date range, largest sums first.
func (r *Repository) CategoryBreakdown(ctx context.Context, userID int64, start, end *core.Date) ([]CategoryTotals, error) {
	query := `SELECT c.id, c.name, c.type,
	                 COALESCE(SUM(t.amount_cents), 0), COUNT(t.id)
	          FROM transactions t
	          JOIN categories c ON c.id = t.category_id
	          WHERE t.user_id = ?`
	args := []any{userID}
	if start != nil {
		query += ` AND t.date >= ?`
		args = append(args, start.String())
	}
	if end != nil {
		query += ` AND t.date <= ?`
		args = append(args, end.String())
	}
	query += ` GROUP BY c.id ORDER BY SUM(t.amount_cents) DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	var out []CategoryTotals
	for rows.Next() {
		var c CategoryTotals
		if err := rows.Scan(&c.CategoryID, &c.CategoryName, &c.Type, &c.SumCents, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category totals: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MonthlyTrend aggregates one calendar year by month in a single query.
// Months without transactions are absent from the result.
func (r *Repository) MonthlyTrend(ctx context.Context, userID int64, year int) ([]MonthTotals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT CAST(strftime('%m', date) AS INTEGER),
		        COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		 FROM transactions
		 WHERE user_id = ? AND strftime('%Y', date) = ?
		 GROUP BY strftime('%m', date)
		 ORDER BY 1 ASC`,
		userID, fmt.Sprintf("%04d", year))
	if err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}
	defer rows.Close()

	var out []MonthTotals
	for rows.Next() {
		var m MonthTotals
		if err := rows.Scan(&m.Month, &m.IncomeCents, &m.ExpenseCents); err != nil {
			return nil, fmt.Errorf("scan month totals: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentTransactions returns the newest transactions in the range,
// joined with category names.
func (r *Repository) RecentTransactions(ctx context.Context, userID int64, start, end *core.Date, limit int) ([]core.Transaction, error) {
	f := TransactionFilter{StartDate: start, EndDate: end, Limit: limit}
	return r.ListTransactions(ctx, userID, f)
}
