package services

import (
	"context"
	"fmt"
	"strings"

	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/storage"
)

// SettingsStore is the persistence the settings service needs.
type SettingsStore interface {
	GetSettings(ctx context.Context, userID int64) (*core.Settings, error)
	UpdateSettings(ctx context.Context, userID int64, patch storage.SettingsPatch) (*core.Settings, error)
}

type SettingsService struct {
	store  SettingsStore
	logger *log.Logger
}

func NewSettingsService(store SettingsStore, logger *log.Logger) *SettingsService {
	return &SettingsService{
		store:  store,
		logger: logger.WithComponent("settings"),
	}
}

func (s *SettingsService) Get(ctx context.Context, userID int64) (*core.Settings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return settings, nil
}

// SettingsUpdate holds the optional fields of a settings update.
type SettingsUpdate struct {
	BusinessName         *string
	Currency             *string
	FiscalYearStart      *core.Date
	ClearFiscalYearStart bool
}

func (s *SettingsService) Update(ctx context.Context, userID int64, in SettingsUpdate) (*core.Settings, error) {
	if in.BusinessName == nil && in.Currency == nil && in.FiscalYearStart == nil && !in.ClearFiscalYearStart {
		return nil, ErrNoFieldsToUpdate
	}

	patch := storage.SettingsPatch{
		FiscalYearStart:      in.FiscalYearStart,
		ClearFiscalYearStart: in.ClearFiscalYearStart,
	}
	if in.BusinessName != nil {
		name := core.SanitizeText(*in.BusinessName)
		if strings.TrimSpace(name) == "" {
			return nil, core.ErrEmptyName
		}
		if len(name) > 100 {
			return nil, core.ErrNameTooLong
		}
		patch.BusinessName = &name
	}
	if in.Currency != nil {
		currency := strings.ToUpper(strings.TrimSpace(*in.Currency))
		if err := core.ValidateCurrency(currency); err != nil {
			return nil, err
		}
		patch.Currency = &currency
	}
	if in.FiscalYearStart != nil {
		if err := in.FiscalYearStart.Validate(); err != nil {
			return nil, err
		}
	}

	settings, err := s.store.UpdateSettings(ctx, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("update settings: %w", err)
	}

	s.logger.InfoContext(ctx, "settings updated", log.FieldUserID, userID)
	return settings, nil
}
