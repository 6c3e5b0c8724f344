package http

import "benta/internal/core"

// View types give the API stable JSON field names independent of the
// domain structs.

type userView struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type categoryView struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Type             string `json:"type"`
	TransactionCount int64  `json:"transaction_count"`
	CreatedAt        string `json:"created_at"`
}

type transactionView struct {
	ID              int64   `json:"id"`
	CategoryID      int64   `json:"category_id"`
	CategoryName    string  `json:"category_name,omitempty"`
	Amount          float64 `json:"amount"`
	FormattedAmount string  `json:"formatted_amount"`
	Description     string  `json:"description"`
	Date            string  `json:"date"`
	Type            string  `json:"type"`
	CreatedAt       string  `json:"created_at"`
}

type settingsView struct {
	BusinessName    string `json:"business_name"`
	Currency        string `json:"currency"`
	FiscalYearStart string `json:"fiscal_year_start,omitempty"`
	UpdatedAt       string `json:"updated_at"`
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func newUserView(u *core.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email}
}

func newCategoryView(c core.Category) categoryView {
	return categoryView{
		ID:               c.ID,
		Name:             c.Name,
		Type:             string(c.Type),
		TransactionCount: c.TransactionCount,
		CreatedAt:        c.CreatedAt.Format(timeFormat),
	}
}

func newTransactionView(t core.Transaction, currency string) transactionView {
	return transactionView{
		ID:              t.ID,
		CategoryID:      t.CategoryID,
		CategoryName:    t.CategoryName,
		Amount:          t.Amount.Float(),
		FormattedAmount: core.FormatAmount(t.Amount.Cents, currency),
		Description:     t.Description,
		Date:            t.Date.String(),
		Type:            string(t.Type),
		CreatedAt:       t.CreatedAt.Format(timeFormat),
	}
}

func newSettingsView(s *core.Settings) settingsView {
	v := settingsView{
		BusinessName: s.BusinessName,
		Currency:     s.Currency,
		UpdatedAt:    s.UpdatedAt.Format(timeFormat),
	}
	if s.FiscalYearStart != nil {
		v.FiscalYearStart = s.FiscalYearStart.String()
	}
	return v
}
