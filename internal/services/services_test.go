package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/storage"
)

type fixture struct {
	repo         *storage.Repository
	categories   *CategoryService
	transactions *TransactionService
	settings     *SettingsService
	reports      *ReportService
	publisher    *fakePublisher
	user         *core.User
}

type fakePublisher struct {
	mu      sync.Mutex
	synced  []int64
	deleted []int64
}

func (p *fakePublisher) PublishTransactionSync(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.synced = append(p.synced, id)
	return nil
}

func (p *fakePublisher) PublishTransactionDelete(_ context.Context, id int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return nil
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo, err := storage.New(filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	pub := &fakePublisher{}

	user, err := repo.CreateUserWithDefaults(context.Background(), "owner", "owner@example.com", "hash")
	require.NoError(t, err)

	return &fixture{
		repo:         repo,
		categories:   NewCategoryService(repo, logger),
		transactions: NewTransactionService(repo, pub, logger),
		settings:     NewSettingsService(repo, logger),
		reports:      NewReportService(repo, logger),
		publisher:    pub,
		user:         user,
	}
}

func (f *fixture) categoryByName(t *testing.T, name string) *core.Category {
	t.Helper()
	cats, err := f.repo.ListCategories(context.Background(), f.user.ID)
	require.NoError(t, err)
	for _, c := range cats {
		if c.Name == name {
			return &c
		}
	}
	t.Fatalf("category %q not found", name)
	return nil
}

func TestCategoryListFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.categories.List(ctx, f.user.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 8)

	income, err := f.categories.List(ctx, f.user.ID, core.Income)
	require.NoError(t, err)
	assert.Len(t, income, 3)

	_, err = f.categories.List(ctx, f.user.ID, "savings")
	assert.ErrorIs(t, err, core.ErrInvalidType)
}

func TestCategoryCreateDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.categories.Create(ctx, f.user.ID, "Utilities", core.Expense)
	assert.ErrorIs(t, err, ErrDuplicateName)

	// Case-insensitive match also counts as a duplicate.
	_, err = f.categories.Create(ctx, f.user.ID, "utilities", core.Expense)
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestCategoryDeleteBlockedByTransactions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := f.categoryByName(t, "Utilities")
	tx, err := f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: cat.ID,
		Amount:     core.Money{Cents: 5000},
		Date:       core.NewDate(2026, 8, 1),
		Type:       core.Expense,
	})
	require.NoError(t, err)

	err = f.categories.Delete(ctx, f.user.ID, cat.ID)
	assert.ErrorIs(t, err, ErrHasTransactions)

	require.NoError(t, f.transactions.Delete(ctx, f.user.ID, tx.ID))
	assert.NoError(t, f.categories.Delete(ctx, f.user.ID, cat.ID))
}

func TestTransactionCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := f.categoryByName(t, "Utilities")

	tests := []struct {
		name    string
		in      TransactionInput
		wantErr error
	}{
		{
			"negative amount",
			TransactionInput{CategoryID: cat.ID, Amount: core.Money{Cents: -500}, Date: core.NewDate(2026, 8, 1), Type: core.Expense},
			core.ErrInvalidAmount,
		},
		{
			"zero amount",
			TransactionInput{CategoryID: cat.ID, Amount: core.Money{Cents: 0}, Date: core.NewDate(2026, 8, 1), Type: core.Expense},
			core.ErrInvalidAmount,
		},
		{
			"missing date",
			TransactionInput{CategoryID: cat.ID, Amount: core.Money{Cents: 500}, Type: core.Expense},
			core.ErrInvalidDate,
		},
		{
			"bad type",
			TransactionInput{CategoryID: cat.ID, Amount: core.Money{Cents: 500}, Date: core.NewDate(2026, 8, 1), Type: "transfer"},
			core.ErrInvalidType,
		},
		{
			"type mismatch with category",
			TransactionInput{CategoryID: cat.ID, Amount: core.Money{Cents: 500}, Date: core.NewDate(2026, 8, 1), Type: core.Income},
			ErrTypeMismatch,
		},
		{
			"unknown category",
			TransactionInput{CategoryID: 9999, Amount: core.Money{Cents: 500}, Date: core.NewDate(2026, 8, 1), Type: core.Expense},
			ErrInvalidCategory,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.transactions.Create(ctx, f.user.ID, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Nothing was inserted by the failed attempts.
	txs, err := f.transactions.List(ctx, f.user.ID, storage.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestTransactionOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.repo.CreateUserWithDefaults(ctx, "intruder", "intruder@example.com", "hash")
	require.NoError(t, err)

	cat := f.categoryByName(t, "Utilities")
	tx, err := f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: cat.ID,
		Amount:     core.Money{Cents: 1000},
		Date:       core.NewDate(2026, 8, 1),
		Type:       core.Expense,
	})
	require.NoError(t, err)

	_, err = f.transactions.Get(ctx, other.ID, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = f.transactions.Delete(ctx, other.ID, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// A foreign category cannot be used for new transactions either.
	_, err = f.transactions.Create(ctx, other.ID, TransactionInput{
		CategoryID: cat.ID,
		Amount:     core.Money{Cents: 1000},
		Date:       core.NewDate(2026, 8, 1),
		Type:       core.Expense,
	})
	assert.ErrorIs(t, err, ErrInvalidCategory)
}

func TestTransactionPublishesSyncMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := f.categoryByName(t, "Utilities")
	tx, err := f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: cat.ID,
		Amount:     core.Money{Cents: 2000},
		Date:       core.NewDate(2026, 8, 2),
		Type:       core.Expense,
	})
	require.NoError(t, err)

	desc := "updated"
	_, err = f.transactions.Update(ctx, f.user.ID, tx.ID, TransactionUpdate{Description: &desc})
	require.NoError(t, err)

	require.NoError(t, f.transactions.Delete(ctx, f.user.ID, tx.ID))

	assert.Equal(t, []int64{tx.ID, tx.ID}, f.publisher.synced)
	assert.Equal(t, []int64{tx.ID}, f.publisher.deleted)
}

func TestTransactionPartialUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cat := f.categoryByName(t, "Utilities")
	tx, err := f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID:  cat.ID,
		Amount:      core.Money{Cents: 3000},
		Description: "electric bill",
		Date:        core.NewDate(2026, 8, 3),
		Type:        core.Expense,
	})
	require.NoError(t, err)

	newDate := core.NewDate(2026, 8, 10)
	updated, err := f.transactions.Update(ctx, f.user.ID, tx.ID, TransactionUpdate{Date: &newDate})
	require.NoError(t, err)
	assert.Equal(t, "2026-08-10", updated.Date.String())
	assert.Equal(t, int64(3000), updated.Amount.Cents)
	assert.Equal(t, "electric bill", updated.Description)

	_, err = f.transactions.Update(ctx, f.user.ID, tx.ID, TransactionUpdate{})
	assert.ErrorIs(t, err, ErrNoFieldsToUpdate)

	// Reassigning to a category of the other type without changing the
	// transaction type is rejected.
	income := f.categoryByName(t, "Sales Revenue")
	_, err = f.transactions.Update(ctx, f.user.ID, tx.ID, TransactionUpdate{CategoryID: &income.ID})
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestSettingsUpdateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	s, err := f.settings.Get(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, "PHP", s.Currency)

	bad := "XXX"
	_, err = f.settings.Update(ctx, f.user.ID, SettingsUpdate{Currency: &bad})
	assert.ErrorIs(t, err, core.ErrInvalidCurrency)

	usd := "usd"
	name := "Side Hustle"
	s, err = f.settings.Update(ctx, f.user.ID, SettingsUpdate{Currency: &usd, BusinessName: &name})
	require.NoError(t, err)
	assert.Equal(t, "USD", s.Currency)
	assert.Equal(t, "Side Hustle", s.BusinessName)

	_, err = f.settings.Update(ctx, f.user.ID, SettingsUpdate{})
	assert.ErrorIs(t, err, ErrNoFieldsToUpdate)
}

func TestSummaryReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	income := f.categoryByName(t, "Sales Revenue")
	expense := f.categoryByName(t, "Utilities")

	_, err := f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: income.ID, Amount: core.Money{Cents: 10000},
		Date: core.NewDate(2026, 8, 1), Type: core.Income,
	})
	require.NoError(t, err)
	_, err = f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: expense.ID, Amount: core.Money{Cents: 4000},
		Date: core.NewDate(2026, 8, 2), Type: core.Expense,
	})
	require.NoError(t, err)

	sum, err := f.reports.Summary(ctx, f.user.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sum.TotalIncome)
	assert.Equal(t, 40.0, sum.TotalExpenses)
	assert.Equal(t, 60.0, sum.NetIncome)
	assert.Equal(t, int64(2), sum.TransactionCount)
	assert.Equal(t, "₱60.00", sum.FormattedNet)
	require.Len(t, sum.RecentTransactions, 2)
	assert.Equal(t, "Utilities", sum.RecentTransactions[0].CategoryName)
}

func TestMonthlyReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	income := f.categoryByName(t, "Sales Revenue")
	expense := f.categoryByName(t, "Utilities")

	_, err := f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: income.ID, Amount: core.Money{Cents: 20000},
		Date: core.NewDate(2026, 7, 5), Type: core.Income,
	})
	require.NoError(t, err)
	_, err = f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: expense.ID, Amount: core.Money{Cents: 5000},
		Date: core.NewDate(2026, 7, 5), Type: core.Expense,
	})
	require.NoError(t, err)
	// Outside the requested month.
	_, err = f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: income.ID, Amount: core.Money{Cents: 99900},
		Date: core.NewDate(2026, 8, 1), Type: core.Income,
	})
	require.NoError(t, err)

	m, err := f.reports.Monthly(ctx, f.user.ID, 2026, 7)
	require.NoError(t, err)
	assert.Equal(t, 200.0, m.TotalIncome)
	assert.Equal(t, 50.0, m.TotalExpenses)
	assert.Equal(t, 150.0, m.NetIncome)
	require.Contains(t, m.DailyBreakdown, "2026-07-05")
	day := m.DailyBreakdown["2026-07-05"]
	assert.Equal(t, 150.0, day.Net)

	_, err = f.reports.Monthly(ctx, f.user.ID, 2026, 13)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestCategoryBreakdownReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	income := f.categoryByName(t, "Sales Revenue")
	expense := f.categoryByName(t, "Utilities")
	marketing := f.categoryByName(t, "Marketing")

	for _, in := range []TransactionInput{
		{CategoryID: income.ID, Amount: core.Money{Cents: 30000}, Date: core.NewDate(2026, 8, 1), Type: core.Income},
		{CategoryID: expense.ID, Amount: core.Money{Cents: 4000}, Date: core.NewDate(2026, 8, 2), Type: core.Expense},
		{CategoryID: marketing.ID, Amount: core.Money{Cents: 9000}, Date: core.NewDate(2026, 8, 3), Type: core.Expense},
	} {
		_, err := f.transactions.Create(ctx, f.user.ID, in)
		require.NoError(t, err)
	}

	b, err := f.reports.Categories(ctx, f.user.ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, b.Income, 1)
	require.Len(t, b.Expense, 2)
	// Sorted by sum descending.
	assert.Equal(t, "Marketing", b.Expense[0].CategoryName)
	assert.Equal(t, 90.0, b.Expense[0].Total)
	assert.Equal(t, "₱90.00", b.Expense[0].FormattedTotal)
}

func TestTrendReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	income := f.categoryByName(t, "Sales Revenue")
	_, err := f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: income.ID, Amount: core.Money{Cents: 12000},
		Date: core.NewDate(2026, 3, 15), Type: core.Income,
	})
	require.NoError(t, err)

	trend, err := f.reports.Trend(ctx, f.user.ID, 2026)
	require.NoError(t, err)
	require.Len(t, trend.Months, 12)
	assert.Equal(t, 120.0, trend.Months[2].Income)
	assert.Equal(t, 0.0, trend.Months[0].Income)
	assert.Equal(t, 120.0, trend.TotalIncome)
}

func TestReportUsesOwnerCurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	usd := "USD"
	_, err := f.settings.Update(ctx, f.user.ID, SettingsUpdate{Currency: &usd})
	require.NoError(t, err)

	income := f.categoryByName(t, "Sales Revenue")
	_, err = f.transactions.Create(ctx, f.user.ID, TransactionInput{
		CategoryID: income.ID, Amount: core.Money{Cents: 123450},
		Date: core.NewDate(2026, 8, 1), Type: core.Income,
	})
	require.NoError(t, err)

	sum, err := f.reports.Summary(ctx, f.user.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "$1,234.50", sum.FormattedIncome)
}
