package http

import (
	"net/http"
	"time"

	"benta/internal/core"
)

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	q := r.URL.Query()

	var start, end *core.Date
	if raw := q.Get("start_date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, codeValidation, "invalid start_date, expected YYYY-MM-DD")
			return
		}
		start = &d
	}
	if raw := q.Get("end_date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, codeValidation, "invalid end_date, expected YYYY-MM-DD")
			return
		}
		end = &d
	}

	now := time.Now().UTC()

	switch q.Get("type") {
	case "summary", "":
		report, err := s.reports.Summary(r.Context(), user.ID, start, end)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondSuccess(w, http.StatusOK, "", map[string]any{"summary": report})
	case "monthly":
		year := queryInt(r, "year", now.Year())
		month := queryInt(r, "month", int(now.Month()))
		report, err := s.reports.Monthly(r.Context(), user.ID, year, month)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondSuccess(w, http.StatusOK, "", map[string]any{"monthly": report})
	case "category":
		report, err := s.reports.Categories(r.Context(), user.ID, start, end)
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondSuccess(w, http.StatusOK, "", map[string]any{"category_breakdown": report})
	case "trend":
		report, err := s.reports.Trend(r.Context(), user.ID, queryInt(r, "year", now.Year()))
		if err != nil {
			s.respondServiceError(w, r, err)
			return
		}
		respondSuccess(w, http.StatusOK, "", map[string]any{"trend": report})
	default:
		respondError(w, http.StatusBadRequest, codeValidation, "unknown report type")
	}
}
