package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"benta/internal/core"
)

// SettingsPatch carries the fields a settings update may change. Nil
// fields are left untouched. ClearFiscalYearStart removes the stored
// date when true.
type SettingsPatch struct {
	BusinessName         *string
	Currency             *string
	FiscalYearStart      *core.Date
	ClearFiscalYearStart bool
}

// GetSettings returns the user's settings, creating the default row if
// it is missing. Registration seeds one, so the insert only fires for
// accounts that predate the settings table.
func (r *Repository) GetSettings(ctx context.Context, userID int64) (*core.Settings, error) {
	s, err := r.getSettings(ctx, userID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (user_id, business_name, currency, updated_at)
		 VALUES (?, 'My Business', 'PHP', ?)
		 ON CONFLICT (user_id) DO NOTHING`, userID, now); err != nil {
		return nil, fmt.Errorf("insert default settings: %w", err)
	}
	return r.getSettings(ctx, userID)
}

func (r *Repository) getSettings(ctx context.Context, userID int64) (*core.Settings, error) {
	var s core.Settings
	var fiscal sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, business_name, currency, fiscal_year_start, updated_at
		 FROM settings WHERE user_id = ?`, userID).
		Scan(&s.UserID, &s.BusinessName, &s.Currency, &fiscal, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get settings: %w", err)
	}
	if fiscal.Valid && fiscal.String != "" {
		d, err := core.ParseDate(fiscal.String)
		if err != nil {
			return nil, fmt.Errorf("parse fiscal year start %q: %w", fiscal.String, err)
		}
		s.FiscalYearStart = &d
	}
	return &s, nil
}

func (r *Repository) UpdateSettings(ctx context.Context, userID int64, patch SettingsPatch) (*core.Settings, error) {
	s, err := r.GetSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	if patch.BusinessName != nil {
		s.BusinessName = *patch.BusinessName
	}
	if patch.Currency != nil {
		s.Currency = *patch.Currency
	}
	if patch.ClearFiscalYearStart {
		s.FiscalYearStart = nil
	} else if patch.FiscalYearStart != nil {
		s.FiscalYearStart = patch.FiscalYearStart
	}
	s.UpdatedAt = time.Now().UTC()

	var fiscal any
	if s.FiscalYearStart != nil {
		fiscal = s.FiscalYearStart.String()
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE settings SET business_name = ?, currency = ?, fiscal_year_start = ?, updated_at = ?
		 WHERE user_id = ?`,
		s.BusinessName, s.Currency, fiscal, s.UpdatedAt, userID)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}
	return s, nil
}
