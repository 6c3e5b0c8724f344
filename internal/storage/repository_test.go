package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"benta/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func createTestUser(t *testing.T, repo *Repository, username string) *core.User {
	t.Helper()
	u, err := repo.CreateUserWithDefaults(context.Background(), username, username+"@example.com", "hash")
	require.NoError(t, err)
	return u
}

func TestCreateUserWithDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "alice")
	assert.Equal(t, "alice", u.Username)

	cats, err := repo.ListCategories(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cats, 8)

	var income, expense int
	for _, c := range cats {
		switch c.Type {
		case core.Income:
			income++
		case core.Expense:
			expense++
		}
	}
	assert.Equal(t, 3, income)
	assert.Equal(t, 5, expense)

	s, err := repo.GetSettings(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "My Business", s.BusinessName)
	assert.Equal(t, "PHP", s.Currency)
}

func TestCreateUserDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	createTestUser(t, repo, "alice")

	_, err := repo.CreateUserWithDefaults(ctx, "alice", "other@example.com", "hash")
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = repo.CreateUserWithDefaults(ctx, "alice2", "alice@example.com", "hash")
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestGetUserByUsernameOrEmail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "bob")

	byName, err := repo.GetUserByUsernameOrEmail(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	byEmail, err := repo.GetUserByUsernameOrEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = repo.GetUserByUsernameOrEmail(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoginAttemptsLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "carol")

	for i := 1; i <= 5; i++ {
		n, err := repo.IncrementLoginAttempts(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	until := time.Now().UTC().Add(15 * time.Minute)
	require.NoError(t, repo.LockUser(ctx, u.ID, until))

	locked, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, locked.LockedUntil)
	assert.Equal(t, 5, locked.LoginAttempts)

	require.NoError(t, repo.ResetLoginAttempts(ctx, u.ID))
	reset, err := repo.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Zero(t, reset.LoginAttempts)
	assert.Nil(t, reset.LockedUntil)
}

func TestSessionLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "dave")
	now := time.Now().UTC()
	s := Session{
		ID:        "sess-1",
		UserID:    u.ID,
		CSRFToken: "tok-1",
		CreatedAt: now,
		RotatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, repo.CreateSession(ctx, s))

	got, err := repo.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)
	assert.Equal(t, "tok-1", got.CSRFToken)

	require.NoError(t, repo.RotateCSRF(ctx, "sess-1", "tok-2", now.Add(time.Minute)))
	got, err = repo.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.CSRFToken)

	require.NoError(t, repo.DeleteSession(ctx, "sess-1"))
	_, err = repo.GetSession(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiredSessionNotReturned(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "erin")
	past := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.CreateSession(ctx, Session{
		ID: "old", UserID: u.ID, CSRFToken: "t",
		CreatedAt: past, RotatedAt: past, ExpiresAt: past.Add(time.Minute),
	}))

	_, err := repo.GetSession(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.DeleteExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCategoryUniquePerUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "frank")
	other := createTestUser(t, repo, "grace")

	_, err := repo.CreateCategory(ctx, u.ID, "Consulting", core.Income)
	require.NoError(t, err)

	_, err = repo.CreateCategory(ctx, u.ID, "Consulting", core.Income)
	assert.ErrorIs(t, err, ErrDuplicate)

	// Same name for a different user is allowed.
	_, err = repo.CreateCategory(ctx, other.ID, "Consulting", core.Income)
	assert.NoError(t, err)

	exists, err := repo.CategoryNameExists(ctx, u.ID, "consulting", 0)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCategoryOwnershipScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "henry")
	other := createTestUser(t, repo, "irene")

	c, err := repo.CreateCategory(ctx, u.ID, "Rentals", core.Income)
	require.NoError(t, err)

	_, err = repo.GetCategory(ctx, other.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = repo.DeleteCategory(ctx, other.ID, c.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateCategoryPatch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "jane")
	c, err := repo.CreateCategory(ctx, u.ID, "Misc", core.Expense)
	require.NoError(t, err)

	name := "Miscellaneous"
	got, err := repo.UpdateCategory(ctx, u.ID, c.ID, CategoryPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Miscellaneous", got.Name)
	assert.Equal(t, core.Expense, got.Type)
}

func TestTransactionCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "kate")
	c, err := repo.CreateCategory(ctx, u.ID, "Rent", core.Expense)
	require.NoError(t, err)

	tx, err := repo.CreateTransaction(ctx, &core.Transaction{
		UserID:      u.ID,
		CategoryID:  c.ID,
		Amount:      core.Money{Cents: 123450},
		Description: "June rent",
		Date:        core.NewDate(2026, 6, 1),
		Type:        core.Expense,
	})
	require.NoError(t, err)
	assert.NotZero(t, tx.ID)

	got, err := repo.GetTransaction(ctx, u.ID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(123450), got.Amount.Cents)
	assert.Equal(t, "Rent", got.CategoryName)
	assert.Equal(t, "2026-06-01", got.Date.String())

	// Date-only patch leaves everything else intact and advances updated_at.
	newDate := core.NewDate(2026, 7, 1)
	updated, err := repo.UpdateTransaction(ctx, u.ID, tx.ID, TransactionPatch{Date: &newDate})
	require.NoError(t, err)
	assert.Equal(t, "2026-07-01", updated.Date.String())
	assert.Equal(t, int64(123450), updated.Amount.Cents)
	assert.Equal(t, "June rent", updated.Description)
	assert.False(t, updated.UpdatedAt.Before(got.UpdatedAt))

	require.NoError(t, repo.DeleteTransaction(ctx, u.ID, tx.ID))
	_, err = repo.GetTransaction(ctx, u.ID, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTransactionsFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "liam")
	inc, err := repo.CreateCategory(ctx, u.ID, "Invoices", core.Income)
	require.NoError(t, err)
	exp, err := repo.CreateCategory(ctx, u.ID, "Fuel", core.Expense)
	require.NoError(t, err)

	seed := []struct {
		cat   *core.Category
		cents int64
		date  core.Date
		typ   core.CategoryType
	}{
		{inc, 10000, core.NewDate(2026, 1, 10), core.Income},
		{inc, 20000, core.NewDate(2026, 2, 10), core.Income},
		{exp, 5000, core.NewDate(2026, 2, 15), core.Expense},
		{exp, 7000, core.NewDate(2026, 3, 1), core.Expense},
	}
	for _, s := range seed {
		_, err := repo.CreateTransaction(ctx, &core.Transaction{
			UserID: u.ID, CategoryID: s.cat.ID,
			Amount: core.Money{Cents: s.cents}, Date: s.date, Type: s.typ,
		})
		require.NoError(t, err)
	}

	all, err := repo.ListTransactions(ctx, u.ID, TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	// Newest date first.
	assert.Equal(t, "2026-03-01", all[0].Date.String())

	incomes, err := repo.ListTransactions(ctx, u.ID, TransactionFilter{Type: core.Income})
	require.NoError(t, err)
	assert.Len(t, incomes, 2)

	start := core.NewDate(2026, 2, 1)
	end := core.NewDate(2026, 2, 28)
	feb, err := repo.ListTransactions(ctx, u.ID, TransactionFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	assert.Len(t, feb, 2)

	one, err := repo.ListTransactions(ctx, u.ID, TransactionFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestCountCategoryTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "mona")
	c, err := repo.CreateCategory(ctx, u.ID, "Tools", core.Expense)
	require.NoError(t, err)

	n, err := repo.CountCategoryTransactions(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.CreateTransaction(ctx, &core.Transaction{
		UserID: u.ID, CategoryID: c.ID,
		Amount: core.Money{Cents: 100}, Date: core.NewDate(2026, 4, 1), Type: core.Expense,
	})
	require.NoError(t, err)

	n, err = repo.CountCategoryTransactions(ctx, u.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSettingsUpdate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "nina")

	name := "Nina's Store"
	currency := "USD"
	fiscal := core.NewDate(2026, 1, 1)
	s, err := repo.UpdateSettings(ctx, u.ID, SettingsPatch{
		BusinessName:    &name,
		Currency:        &currency,
		FiscalYearStart: &fiscal,
	})
	require.NoError(t, err)
	assert.Equal(t, "Nina's Store", s.BusinessName)
	assert.Equal(t, "USD", s.Currency)
	require.NotNil(t, s.FiscalYearStart)
	assert.Equal(t, "2026-01-01", s.FiscalYearStart.String())

	s, err = repo.UpdateSettings(ctx, u.ID, SettingsPatch{ClearFiscalYearStart: true})
	require.NoError(t, err)
	assert.Nil(t, s.FiscalYearStart)
	assert.Equal(t, "Nina's Store", s.BusinessName)
}

func TestSumTransactions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "oscar")
	inc, err := repo.CreateCategory(ctx, u.ID, "Gigs", core.Income)
	require.NoError(t, err)
	exp, err := repo.CreateCategory(ctx, u.ID, "Strings", core.Expense)
	require.NoError(t, err)

	_, err = repo.CreateTransaction(ctx, &core.Transaction{
		UserID: u.ID, CategoryID: inc.ID,
		Amount: core.Money{Cents: 10000}, Date: core.NewDate(2026, 5, 1), Type: core.Income,
	})
	require.NoError(t, err)
	_, err = repo.CreateTransaction(ctx, &core.Transaction{
		UserID: u.ID, CategoryID: exp.ID,
		Amount: core.Money{Cents: 4000}, Date: core.NewDate(2026, 5, 2), Type: core.Expense,
	})
	require.NoError(t, err)

	totals, err := repo.SumTransactions(ctx, u.ID, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), totals.IncomeCents)
	assert.Equal(t, int64(4000), totals.ExpenseCents)
	assert.Equal(t, int64(2), totals.Count)
}

func TestMonthlyTrend(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := createTestUser(t, repo, "pam")
	inc, err := repo.CreateCategory(ctx, u.ID, "Shop", core.Income)
	require.NoError(t, err)

	for _, month := range []int{1, 1, 3} {
		_, err := repo.CreateTransaction(ctx, &core.Transaction{
			UserID: u.ID, CategoryID: inc.ID,
			Amount: core.Money{Cents: 1000}, Date: core.NewDate(2026, month, 15), Type: core.Income,
		})
		require.NoError(t, err)
	}

	trend, err := repo.MonthlyTrend(ctx, u.ID, 2026)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, 1, trend[0].Month)
	assert.Equal(t, int64(2000), trend[0].IncomeCents)
	assert.Equal(t, 3, trend[1].Month)
	assert.Equal(t, int64(1000), trend[1].IncomeCents)
}

func TestRateLimitWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		w, err := repo.IncrementRateLimit(ctx, "1.2.3.4", "api_auth", 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, w.RequestCount)
	}

	// An expired window resets the counter instead of incrementing.
	w, err := repo.IncrementRateLimit(ctx, "1.2.3.4", "api_auth", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), w.RequestCount)

	n, err := repo.PurgeRateLimits(ctx, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAuditTrail(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	uid := int64(7)
	require.NoError(t, repo.InsertAuditEntry(ctx, AuditEntry{
		Level:     "warn",
		Message:   "login failed",
		UserID:    &uid,
		IP:        "10.0.0.1",
		UserAgent: "test",
	}))

	entries, err := repo.ListAuditEntries(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "login failed", entries[0].Message)
	assert.Equal(t, "{}", entries[0].Context)
	require.NotNil(t, entries[0].UserID)
	assert.Equal(t, int64(7), *entries[0].UserID)
}
