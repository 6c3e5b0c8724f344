package http

import (
	"errors"
	"net/http"

	"benta/internal/core"
	"benta/internal/services"
)

var validationErrs = []error{
	core.ErrInvalidAmount,
	core.ErrInvalidDate,
	core.ErrInvalidType,
	core.ErrInvalidUsername,
	core.ErrInvalidEmail,
	core.ErrInvalidCurrency,
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrDescriptionTooLong,
	core.ErrWeakPassword,
	core.ErrPasswordTooLong,
	core.ErrCommonPassword,
	core.ErrPasswordHasUser,
	services.ErrNoFieldsToUpdate,
}

func isValidationErr(err error) bool {
	for _, e := range validationErrs {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}

// respondServiceError maps known service errors onto the API envelope,
// falling back to an opaque 500 for anything unexpected.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isValidationErr(err):
		respondError(w, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, services.ErrTypeMismatch):
		respondError(w, http.StatusBadRequest, codeTypeMismatch, "transaction type must match the category type")
	case errors.Is(err, services.ErrInvalidCategory):
		respondError(w, http.StatusForbidden, codeAccessDenied, "category does not exist or is not yours")
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, codeNotFound, "resource not found")
	case errors.Is(err, services.ErrDuplicateName):
		respondError(w, http.StatusConflict, codeDuplicateName, "a category with this name already exists")
	case errors.Is(err, services.ErrHasTransactions):
		respondError(w, http.StatusConflict, codeHasTx, "category has transactions and cannot be deleted")
	default:
		s.internalError(w, r, err)
	}
}
