package services

import (
	"context"
	"fmt"
	"time"

	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/storage"
)

// ReportStore is the persistence the report service needs.
type ReportStore interface {
	SumTransactions(ctx context.Context, userID int64, start, end *core.Date) (storage.Totals, error)
	DailyBreakdown(ctx context.Context, userID int64, start, end core.Date) ([]storage.DayTotals, error)
	CategoryBreakdown(ctx context.Context, userID int64, start, end *core.Date) ([]storage.CategoryTotals, error)
	MonthlyTrend(ctx context.Context, userID int64, year int) ([]storage.MonthTotals, error)
	RecentTransactions(ctx context.Context, userID int64, start, end *core.Date, limit int) ([]core.Transaction, error)
	GetSettings(ctx context.Context, userID int64) (*core.Settings, error)
}

type ReportService struct {
	store  ReportStore
	logger *log.Logger
}

func NewReportService(store ReportStore, logger *log.Logger) *ReportService {
	return &ReportService{
		store:  store,
		logger: logger.WithComponent(log.ComponentReports),
	}
}

// RecentTransaction is a compact transaction view embedded in reports.
type RecentTransaction struct {
	ID              int64   `json:"id"`
	CategoryName    string  `json:"category_name"`
	Description     string  `json:"description"`
	Amount          float64 `json:"amount"`
	FormattedAmount string  `json:"formatted_amount"`
	Date            string  `json:"date"`
	Type            string  `json:"type"`
}

// Summary is the aggregate view over an optional date range.
type Summary struct {
	TotalIncome        float64             `json:"total_income"`
	TotalExpenses      float64             `json:"total_expenses"`
	NetIncome          float64             `json:"net_income"`
	TransactionCount   int64               `json:"transaction_count"`
	FormattedIncome    string              `json:"formatted_income"`
	FormattedExpenses  string              `json:"formatted_expenses"`
	FormattedNet       string              `json:"formatted_net"`
	RecentTransactions []RecentTransaction `json:"recent_transactions"`
}

// DayBreakdown is one day inside a monthly report.
type DayBreakdown struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Net     float64 `json:"net"`
}

// Monthly is one calendar month with a day-by-day breakdown.
type Monthly struct {
	Year              int                     `json:"year"`
	Month             int                     `json:"month"`
	TotalIncome       float64                 `json:"total_income"`
	TotalExpenses     float64                 `json:"total_expenses"`
	NetIncome         float64                 `json:"net_income"`
	FormattedIncome   string                  `json:"formatted_income"`
	FormattedExpenses string                  `json:"formatted_expenses"`
	FormattedNet      string                  `json:"formatted_net"`
	DailyBreakdown    map[string]DayBreakdown `json:"daily_breakdown"`
}

// CategoryReport is one category's share of the breakdown.
type CategoryReport struct {
	CategoryID     int64   `json:"category_id"`
	CategoryName   string  `json:"category_name"`
	Total          float64 `json:"total"`
	FormattedTotal string  `json:"formatted_total"`
	Count          int64   `json:"transaction_count"`
}

// CategoryBreakdown splits per-category sums by type, largest first.
type CategoryBreakdown struct {
	Income  []CategoryReport `json:"income"`
	Expense []CategoryReport `json:"expense"`
}

// TrendMonth is one month of the yearly trend. Months without
// transactions are present with zeroes.
type TrendMonth struct {
	Month           int     `json:"month"`
	Income          float64 `json:"income"`
	Expenses        float64 `json:"expenses"`
	Net             float64 `json:"net"`
	FormattedIncome string  `json:"formatted_income"`
	FormattedNet    string  `json:"formatted_net"`
}

// Trend is the twelve-month view of one calendar year.
type Trend struct {
	Year              int          `json:"year"`
	Months            []TrendMonth `json:"months"`
	TotalIncome       float64      `json:"total_income"`
	TotalExpenses     float64      `json:"total_expenses"`
	NetIncome         float64      `json:"net_income"`
	FormattedIncome   string       `json:"formatted_income"`
	FormattedExpenses string       `json:"formatted_expenses"`
	FormattedNet      string       `json:"formatted_net"`
}

// Summary builds the overview report with the five most recent
// transactions inside the optional date range.
func (s *ReportService) Summary(ctx context.Context, userID int64, start, end *core.Date) (*Summary, error) {
	currency, err := s.currency(ctx, userID)
	if err != nil {
		return nil, err
	}

	totals, err := s.store.SumTransactions(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}

	recent, err := s.store.RecentTransactions(ctx, userID, start, end, 5)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}

	net := totals.IncomeCents - totals.ExpenseCents
	out := &Summary{
		TotalIncome:        core.Money{Cents: totals.IncomeCents}.Float(),
		TotalExpenses:      core.Money{Cents: totals.ExpenseCents}.Float(),
		NetIncome:          core.Money{Cents: net}.Float(),
		TransactionCount:   totals.Count,
		FormattedIncome:    core.FormatAmount(totals.IncomeCents, currency),
		FormattedExpenses:  core.FormatAmount(totals.ExpenseCents, currency),
		FormattedNet:       core.FormatAmount(net, currency),
		RecentTransactions: make([]RecentTransaction, 0, len(recent)),
	}
	for _, t := range recent {
		out.RecentTransactions = append(out.RecentTransactions, RecentTransaction{
			ID:              t.ID,
			CategoryName:    t.CategoryName,
			Description:     t.Description,
			Amount:          t.Amount.Float(),
			FormattedAmount: core.FormatAmount(t.Amount.Cents, currency),
			Date:            t.Date.String(),
			Type:            string(t.Type),
		})
	}
	return out, nil
}

// Monthly builds one calendar month's totals and day-by-day breakdown.
func (s *ReportService) Monthly(ctx context.Context, userID int64, year, month int) (*Monthly, error) {
	if month < 1 || month > 12 {
		return nil, core.ErrInvalidDate
	}
	currency, err := s.currency(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := core.NewDate(year, month, 1)
	end := core.Date{Time: start.AddDate(0, 1, -1)}

	days, err := s.store.DailyBreakdown(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("daily breakdown: %w", err)
	}

	out := &Monthly{
		Year:           year,
		Month:          month,
		DailyBreakdown: make(map[string]DayBreakdown, len(days)),
	}
	var incomeCents, expenseCents int64
	for _, d := range days {
		incomeCents += d.IncomeCents
		expenseCents += d.ExpenseCents
		out.DailyBreakdown[d.Date] = DayBreakdown{
			Income:  core.Money{Cents: d.IncomeCents}.Float(),
			Expense: core.Money{Cents: d.ExpenseCents}.Float(),
			Net:     core.Money{Cents: d.IncomeCents - d.ExpenseCents}.Float(),
		}
	}
	net := incomeCents - expenseCents
	out.TotalIncome = core.Money{Cents: incomeCents}.Float()
	out.TotalExpenses = core.Money{Cents: expenseCents}.Float()
	out.NetIncome = core.Money{Cents: net}.Float()
	out.FormattedIncome = core.FormatAmount(incomeCents, currency)
	out.FormattedExpenses = core.FormatAmount(expenseCents, currency)
	out.FormattedNet = core.FormatAmount(net, currency)
	return out, nil
}

// Categories builds per-category sums split by type inside an optional
// date range.
func (s *ReportService) Categories(ctx context.Context, userID int64, start, end *core.Date) (*CategoryBreakdown, error) {
	currency, err := s.currency(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.CategoryBreakdown(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}

	out := &CategoryBreakdown{
		Income:  []CategoryReport{},
		Expense: []CategoryReport{},
	}
	for _, row := range rows {
		report := CategoryReport{
			CategoryID:     row.CategoryID,
			CategoryName:   row.CategoryName,
			Total:          core.Money{Cents: row.SumCents}.Float(),
			FormattedTotal: core.FormatAmount(row.SumCents, currency),
			Count:          row.Count,
		}
		if row.Type == core.Income {
			out.Income = append(out.Income, report)
		} else {
			out.Expense = append(out.Expense, report)
		}
	}
	return out, nil
}

// Trend builds the twelve-month view for a year plus yearly totals.
func (s *ReportService) Trend(ctx context.Context, userID int64, year int) (*Trend, error) {
	if year < 1970 || year > time.Now().Year()+1 {
		return nil, core.ErrInvalidDate
	}
	currency, err := s.currency(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.MonthlyTrend(ctx, userID, year)
	if err != nil {
		return nil, fmt.Errorf("monthly trend: %w", err)
	}

	byMonth := make(map[int]storage.MonthTotals, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row
	}

	out := &Trend{Year: year, Months: make([]TrendMonth, 0, 12)}
	var incomeCents, expenseCents int64
	for month := 1; month <= 12; month++ {
		row := byMonth[month]
		incomeCents += row.IncomeCents
		expenseCents += row.ExpenseCents
		net := row.IncomeCents - row.ExpenseCents
		out.Months = append(out.Months, TrendMonth{
			Month:           month,
			Income:          core.Money{Cents: row.IncomeCents}.Float(),
			Expenses:        core.Money{Cents: row.ExpenseCents}.Float(),
			Net:             core.Money{Cents: net}.Float(),
			FormattedIncome: core.FormatAmount(row.IncomeCents, currency),
			FormattedNet:    core.FormatAmount(net, currency),
		})
	}
	net := incomeCents - expenseCents
	out.TotalIncome = core.Money{Cents: incomeCents}.Float()
	out.TotalExpenses = core.Money{Cents: expenseCents}.Float()
	out.NetIncome = core.Money{Cents: net}.Float()
	out.FormattedIncome = core.FormatAmount(incomeCents, currency)
	out.FormattedExpenses = core.FormatAmount(expenseCents, currency)
	out.FormattedNet = core.FormatAmount(net, currency)
	return out, nil
}

func (s *ReportService) currency(ctx context.Context, userID int64) (string, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get settings: %w", err)
	}
	return settings.Currency, nil
}
