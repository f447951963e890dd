package services

import (
	"context"
	"fmt"
	"strings"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/ledger"
	"tally/internal/log"
)

type CategoryService struct {
	base
	store ledger.Store
}

func NewCategoryService(store ledger.Store, opts ...Option) *CategoryService {
	return &CategoryService{
		base:  newBase(log.ComponentCategory, opts),
		store: store,
	}
}

// CategoryUpdate holds the fields of a partial update. Nil fields are kept.
type CategoryUpdate struct {
	Name        *string
	Color       *string
	Description *string
}

// Create stores a new category. Names are unique; a missing color becomes
// core.DefaultCategoryColor.
func (s *CategoryService) Create(ctx context.Context, c core.Category) (core.Category, error) {
	c.ID = 0
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}

	var saved core.Category
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		if err := checkName(ctx, tx, c.Name, 0); err != nil {
			return err
		}
		var err error
		saved, err = tx.SaveCategory(ctx, c)
		return err
	})
	if err != nil {
		return core.Category{}, err
	}
	s.logger.InfoContext(ctx, "Category created",
		log.FieldCategoryID, saved.ID,
		log.FieldCategoryName, saved.Name,
		log.FieldOperation, log.OpCreate)
	s.committed(ctx, categoryEvent(amqp.CategoryCreated, saved))
	return saved, nil
}

// Update renames, recolors or re-describes category id. A new name must not
// belong to another category.
func (s *CategoryService) Update(ctx context.Context, id int64, u CategoryUpdate) (core.Category, error) {
	var saved core.Category
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		c, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if u.Name != nil {
			c.Name = *u.Name
		}
		if u.Color != nil {
			c.Color = *u.Color
		}
		if u.Description != nil {
			c.Description = *u.Description
		}
		c = c.Normalize()
		if err := c.Validate(); err != nil {
			return err
		}
		if err := checkName(ctx, tx, c.Name, id); err != nil {
			return err
		}
		saved, err = tx.SaveCategory(ctx, c)
		return err
	})
	if err != nil {
		return core.Category{}, err
	}
	s.logger.InfoContext(ctx, "Category updated",
		log.FieldCategoryID, saved.ID,
		log.FieldCategoryName, saved.Name,
		log.FieldOperation, log.OpUpdate)
	s.committed(ctx, categoryEvent(amqp.CategoryUpdated, saved))
	return saved, nil
}

// Delete removes a category that no expense references. Its budgets go with
// it.
func (s *CategoryService) Delete(ctx context.Context, id int64) error {
	var removed core.Category
	err := s.store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		if removed, err = tx.GetCategory(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountExpensesByCategory(ctx, id)
		if err != nil {
			return fmt.Errorf("count expenses: %w", err)
		}
		if n > 0 {
			return core.NewConflict("cannot delete category %q: it is used by %d expenses", removed.Name, n)
		}
		return tx.DeleteCategory(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldCategoryID, id,
		log.FieldCategoryName, removed.Name,
		log.FieldOperation, log.OpDelete)
	s.committed(ctx, categoryEvent(amqp.CategoryDeleted, removed))
	return nil
}

func (s *CategoryService) Get(ctx context.Context, id int64) (core.Category, error) {
	return s.store.GetCategory(ctx, id)
}

func (s *CategoryService) GetByName(ctx context.Context, name string) (core.Category, error) {
	return s.store.GetCategoryByName(ctx, strings.TrimSpace(name))
}

// List returns every category ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]core.Category, error) {
	list, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return list, nil
}

// Search returns the categories whose name contains q, ignoring case.
func (s *CategoryService) Search(ctx context.Context, q string) ([]core.Category, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	q = strings.ToLower(strings.TrimSpace(q))
	out := make([]core.Category, 0, len(all))
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), q) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Unused returns the categories no expense references.
func (s *CategoryService) Unused(ctx context.Context) ([]core.Category, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(all))
	for _, c := range all {
		n, err := s.store.CountExpensesByCategory(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("count expenses of category %d: %w", c.ID, err)
		}
		if n == 0 {
			out = append(out, c)
		}
	}
	return out, nil
}

func checkName(ctx context.Context, r ledger.CategoryReader, name string, excludeID int64) error {
	exists, err := r.CategoryNameExists(ctx, name, excludeID)
	if err != nil {
		return fmt.Errorf("check category name: %w", err)
	}
	if exists {
		return core.NewConflict("category with name %q already exists", name)
	}
	return nil
}
