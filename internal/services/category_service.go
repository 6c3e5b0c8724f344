package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"benta/internal/core"
	"benta/internal/log"
	"benta/internal/storage"
)

// CategoryStore is the persistence the category service needs.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (*core.Category, error)
	CreateCategory(ctx context.Context, userID int64, name string, ctype core.CategoryType) (*core.Category, error)
	CategoryNameExists(ctx context.Context, userID int64, name string, excludeID int64) (bool, error)
	UpdateCategory(ctx context.Context, userID, id int64, patch storage.CategoryPatch) (*core.Category, error)
	CountCategoryTransactions(ctx context.Context, userID, categoryID int64) (int64, error)
	DeleteCategory(ctx context.Context, userID, id int64) error
}

type CategoryService struct {
	store  CategoryStore
	logger *log.Logger
}

func NewCategoryService(store CategoryStore, logger *log.Logger) *CategoryService {
	return &CategoryService{
		store:  store,
		logger: logger.WithComponent("categories"),
	}
}

// List returns the user's categories with transaction counts, optionally
// filtered by type.
func (s *CategoryService) List(ctx context.Context, userID int64, ctype core.CategoryType) ([]core.Category, error) {
	if ctype != "" {
		if err := ctype.Validate(); err != nil {
			return nil, err
		}
	}

	cats, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if ctype == "" {
		return cats, nil
	}

	filtered := cats[:0]
	for _, c := range cats {
		if c.Type == ctype {
			filtered = append(filtered, c)
		}
	}
	return filtered, nil
}

func (s *CategoryService) Get(ctx context.Context, userID, id int64) (*core.Category, error) {
	c, err := s.store.GetCategory(ctx, userID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (s *CategoryService) Create(ctx context.Context, userID int64, name string, ctype core.CategoryType) (*core.Category, error) {
	name = core.SanitizeText(name)
	candidate := core.Category{Name: name, Type: ctype}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.store.CategoryNameExists(ctx, userID, name, 0)
	if err != nil {
		return nil, fmt.Errorf("check category name: %w", err)
	}
	if exists {
		return nil, ErrDuplicateName
	}

	c, err := s.store.CreateCategory(ctx, userID, name, ctype)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created",
		log.FieldUserID, userID,
		log.FieldCategoryID, c.ID)
	return c, nil
}

// CategoryUpdate holds the optional fields of a category update.
type CategoryUpdate struct {
	Name *string
	Type *core.CategoryType
}

func (s *CategoryService) Update(ctx context.Context, userID, id int64, in CategoryUpdate) (*core.Category, error) {
	if in.Name == nil && in.Type == nil {
		return nil, ErrNoFieldsToUpdate
	}

	patch := storage.CategoryPatch{Type: in.Type}
	if in.Type != nil {
		if err := in.Type.Validate(); err != nil {
			return nil, err
		}
	}
	if in.Name != nil {
		name := core.SanitizeText(*in.Name)
		if strings.TrimSpace(name) == "" {
			return nil, core.ErrEmptyName
		}
		if len(name) > 100 {
			return nil, core.ErrNameTooLong
		}
		exists, err := s.store.CategoryNameExists(ctx, userID, name, id)
		if err != nil {
			return nil, fmt.Errorf("check category name: %w", err)
		}
		if exists {
			return nil, ErrDuplicateName
		}
		patch.Name = &name
	}

	c, err := s.store.UpdateCategory(ctx, userID, id, patch)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return nil, ErrNotFound
		case errors.Is(err, storage.ErrDuplicate):
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.logger.InfoContext(ctx, "category updated",
		log.FieldUserID, userID,
		log.FieldCategoryID, id)
	return c, nil
}

// Delete removes a category. Categories still referenced by
// transactions are protected: the caller must move or delete those
// first.
func (s *CategoryService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	n, err := s.store.CountCategoryTransactions(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("count category transactions: %w", err)
	}
	if n > 0 {
		return ErrHasTransactions
	}

	if err := s.store.DeleteCategory(ctx, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete category: %w", err)
	}

	s.logger.InfoContext(ctx, "category deleted",
		log.FieldUserID, userID,
		log.FieldCategoryID, id)
	return nil
}
