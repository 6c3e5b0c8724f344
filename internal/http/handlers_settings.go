package http

import (
	"net/http"

	"benta/internal/core"
	"benta/internal/services"
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getSettings(w, r)
	case http.MethodPut:
		s.updateSettings(w, r)
	}
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	settings, err := s.settings.Get(r.Context(), user.ID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "", map[string]any{
		"settings": newSettingsView(settings),
	})
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	body, _ := requestBody(r)

	var in services.SettingsUpdate
	if body.Has("business_name") {
		name := body.Get("business_name")
		in.BusinessName = &name
	}
	if body.Has("currency") {
		currency := body.Get("currency")
		in.Currency = &currency
	}
	if body.Has("fiscal_year_start") {
		raw := body.Get("fiscal_year_start")
		if raw == "" {
			in.ClearFiscalYearStart = true
		} else {
			d, err := core.ParseDate(raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, codeValidation, "invalid fiscal_year_start, expected YYYY-MM-DD")
				return
			}
			in.FiscalYearStart = &d
		}
	}

	settings, err := s.settings.Update(r.Context(), user.ID, in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "settings updated", map[string]any{
		"settings": newSettingsView(settings),
	})
}
