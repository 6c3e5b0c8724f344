package services

import "errors"

var (
	// ErrNotFound covers both missing resources and resources owned by
	// someone else, so responses cannot probe other users' data.
	ErrNotFound = errors.New("resource not found")

	ErrDuplicateName    = errors.New("a category with this name already exists")
	ErrHasTransactions  = errors.New("category has transactions and cannot be deleted")
	ErrInvalidCategory  = errors.New("category does not exist or is not yours")
	ErrTypeMismatch     = errors.New("transaction type does not match category type")
	ErrNoFieldsToUpdate = errors.New("no fields to update")
)
