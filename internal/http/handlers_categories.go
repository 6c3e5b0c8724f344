package http

import (
	"net/http"

	"benta/internal/core"
	"benta/internal/services"
)

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listCategories(w, r)
	case http.MethodPost:
		s.createCategory(w, r)
	case http.MethodPut:
		s.updateCategory(w, r)
	case http.MethodDelete:
		s.deleteCategory(w, r)
	}
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	ctype := core.CategoryType(r.URL.Query().Get("type"))

	cats, err := s.categories.List(r.Context(), user.ID, ctype)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	views := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, newCategoryView(c))
	}
	respondSuccess(w, http.StatusOK, "", map[string]any{"categories": views})
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	body, _ := requestBody(r)

	cat, err := s.categories.Create(r.Context(), user.ID,
		body.Get("name"), core.CategoryType(body.Get("type")))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, "category created", map[string]any{
		"category": newCategoryView(*cat),
	})
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	body, _ := requestBody(r)

	id := targetID(r, body)
	if id <= 0 {
		respondError(w, http.StatusBadRequest, codeValidation, "category id is required")
		return
	}

	var in services.CategoryUpdate
	if body.Has("name") {
		name := body.Get("name")
		in.Name = &name
	}
	if body.Has("type") {
		ctype := core.CategoryType(body.Get("type"))
		in.Type = &ctype
	}

	cat, err := s.categories.Update(r.Context(), user.ID, id, in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "category updated", map[string]any{
		"category": newCategoryView(*cat),
	})
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	body, _ := requestBody(r)

	id := targetID(r, body)
	if id <= 0 {
		respondError(w, http.StatusBadRequest, codeValidation, "category id is required")
		return
	}

	if err := s.categories.Delete(r.Context(), user.ID, id); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, "category deleted", nil)
}

// targetID resolves the resource id for PUT/DELETE from the body first,
// then the query string.
func targetID(r *http.Request, body *requestValues) int64 {
	if body != nil {
		if id := body.Int64("id"); id > 0 {
			return id
		}
	}
	return queryInt64(r, "id")
}
