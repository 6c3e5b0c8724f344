package http

import (
	"net/http"

	"benta/internal/core"
	"benta/internal/services"
	"benta/internal/storage"
)

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	case http.MethodPut:
		s.updateTransaction(w, r)
	case http.MethodDelete:
		s.deleteTransaction(w, r)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	q := r.URL.Query()

	filter := storage.TransactionFilter{
		Type:       core.CategoryType(q.Get("type")),
		CategoryID: queryInt64(r, "category_id"),
		Limit:      queryInt(r, "limit", 50),
		Offset:     queryInt(r, "offset", 0),
	}
	if raw := q.Get("start_date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, codeValidation, "invalid start_date, expected YYYY-MM-DD")
			return
		}
		filter.StartDate = &d
	}
	if raw := q.Get("end_date"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, codeValidation, "invalid end_date, expected YYYY-MM-DD")
			return
		}
		filter.EndDate = &d
	}

	txs, err := s.transactions.List(r.Context(), user.ID, filter)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	currency := s.userCurrency(r)
	views := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		views = append(views, newTransactionView(t, currency))
	}
	respondSuccess(w, http.StatusOK, "", map[string]any{"transactions": views})
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	body, _ := requestBody(r)

	cents, err := core.ParseAmountToCents(body.Get("amount"))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error())
		return
	}
	date, err := core.ParseDate(body.Get("date"))
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "invalid date, expected YYYY-MM-DD")
		return
	}

	in := services.TransactionInput{
		CategoryID:  body.Int64("category_id"),
		Amount:      core.Money{Cents: cents},
		Description: body.Get("description"),
		Date:        date,
		Type:        core.CategoryType(body.Get("type")),
	}

	tx, err := s.transactions.Create(r.Context(), user.ID, in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, "transaction created", map[string]any{
		"transaction": newTransactionView(*tx, s.userCurrency(r)),
	})
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	body, _ := requestBody(r)

	id := targetID(r, body)
	if id <= 0 {
		respondError(w, http.StatusBadRequest, codeValidation, "transaction id is required")
		return
	}

	var in services.TransactionUpdate
	if body.Has("category_id") {
		cid := body.Int64("category_id")
		in.CategoryID = &cid
	}
	if body.Has("amount") {
		cents, err := core.ParseAmountToCents(body.Get("amount"))
		if err != nil {
			respondError(w, http.StatusBadRequest, codeValidation, err.Error())
			return
		}
		in.Amount = &core.Money{Cents: cents}
	}
	if body.Has("description") {
		desc := body.Get("description")
		in.Description = &desc
	}
	if body.Has("date") {
		d, err := core.ParseDate(body.Get("date"))
		if err != nil {
			respondError(w, http.StatusBadRequest, codeValidation, "invalid date, expected YYYY-MM-DD")
			return
		}
		in.Date = &d
	}
	if body.Has("type") {
		t := core.CategoryType(body.Get("type"))
		in.Type = &t
	}

	tx, err := s.transactions.Update(r.Context(), user.ID, id, in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "transaction updated", map[string]any{
		"transaction": newTransactionView(*tx, s.userCurrency(r)),
	})
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	body, _ := requestBody(r)

	id := targetID(r, body)
	if id <= 0 {
		respondError(w, http.StatusBadRequest, codeValidation, "transaction id is required")
		return
	}

	if err := s.transactions.Delete(r.Context(), user.ID, id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "transaction deleted", nil)
}

// userCurrency looks up the user's display currency, defaulting when
// settings cannot be read.
func (s *Server) userCurrency(r *http.Request) string {
	user := currentUser(r)
	settings, err := s.settings.Get(r.Context(), user.ID)
	if err != nil {
		return core.CurrencyPHP
	}
	return settings.Currency
}
