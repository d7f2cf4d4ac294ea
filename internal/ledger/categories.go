package ledger

import (
	"context"
	"strings"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"gorm.io/gorm"
)

func (s *Service) CreateCategory(ctx context.Context, c *models.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reasons []string
		if c.Name == "" {
			reasons = append(reasons, "Category name is required.")
		}
		if !c.Kind.Valid() {
			reasons = append(reasons, "Invalid category kind.")
		}
		if len(reasons) > 0 {
			return appErrors.NewValidationErrors(reasons)
		}
		if err := checkUniqueCategory(tx, 0, c.Name, c.Kind); err != nil {
			return err
		}
		if c.ParentID != nil {
			if err := checkParentCategory(tx, 0, *c.ParentID, c.Kind); err != nil {
				return err
			}
		}
		c.IsActive = true
		c.IsProtected = false
		if err := tx.Create(c).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
}

func checkUniqueCategory(tx *gorm.DB, id uint, name string, kind models.Kind) error {
	var n int64
	if err := tx.Model(&models.Category{}).Where("name = ? AND kind = ? AND id <> ?", name, kind, id).Count(&n).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	if n > 0 {
		return appErrors.NewValidationError("name", "A category with this name and kind already exists.")
	}
	return nil
}

func checkParentCategory(tx *gorm.DB, id, parentID uint, kind models.Kind) error {
	if id != 0 && id == parentID {
		return appErrors.NewValidationError("parent", "Category cannot be its own parent.")
	}
	parent, err := loadCategory(tx, parentID)
	if err != nil {
		return err
	}
	if parent.Kind != kind {
		return appErrors.NewValidationError("parent", "Parent category kind must match.")
	}
	return nil
}

type CategoryUpdate struct {
	Name        *string
	Kind        *models.Kind
	IsActive    *bool
	ParentID    *uint
	ClearParent bool
}

// UpdateCategory edits a category and re-derives the kind of every
// transaction filed under it.
func (s *Service) UpdateCategory(ctx context.Context, id uint, u CategoryUpdate) (*models.Category, error) {
	var out *models.Category
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadCategory(tx, id)
		if err != nil {
			return err
		}
		name, kind := c.Name, c.Kind
		if u.Name != nil {
			name = strings.TrimSpace(*u.Name)
		}
		if u.Kind != nil {
			kind = *u.Kind
		}

		if c.IsProtected {
			var reasons []string
			if name != c.Name || kind != c.Kind {
				reasons = append(reasons, "Protected categories cannot be renamed or re-typed.")
			}
			if u.IsActive != nil && !*u.IsActive {
				reasons = append(reasons, "Protected categories cannot be deactivated.")
			}
			if u.ClearParent || (u.ParentID != nil && (c.ParentID == nil || *c.ParentID != *u.ParentID)) {
				reasons = append(reasons, "Protected categories cannot change parent.")
			}
			if len(reasons) > 0 {
				return appErrors.NewProtectedError(reasons[0]).WithReasons(reasons...)
			}
		}
		if name == "" {
			return appErrors.NewValidationError("name", "Category name is required.")
		}
		if !kind.Valid() {
			return appErrors.NewValidationError("kind", "Invalid category kind.")
		}
		if err := checkUniqueCategory(tx, c.ID, name, kind); err != nil {
			return err
		}

		parentID := c.ParentID
		switch {
		case u.ClearParent:
			parentID = nil
		case u.ParentID != nil:
			parentID = u.ParentID
		}
		if parentID != nil {
			if err := checkParentCategory(tx, c.ID, *parentID, kind); err != nil {
				return err
			}
		}

		c.Name, c.Kind, c.ParentID = name, kind, parentID
		if u.IsActive != nil {
			c.IsActive = *u.IsActive
		}
		if err := tx.Save(c).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if err := cascadeCategoryKind(tx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// cascadeCategoryKind re-applies c to every transaction that carries it.
func cascadeCategoryKind(tx *gorm.DB, c *models.Category) error {
	var batch []models.Transaction
	res := tx.Where("category_id = ? AND kind <> ?", c.ID, c.Kind).
		FindInBatches(&batch, 200, func(_ *gorm.DB, _ int) error {
			for i := range batch {
				batch[i].ApplyCategory(c)
				if err := SaveColumns(tx, &batch[i], "kind"); err != nil {
					return err
				}
			}
			return nil
		})
	if res.Error != nil {
		return appErrors.FromError(res.Error)
	}
	return nil
}

type DeleteAction string

const (
	ActionDeleted     DeleteAction = "deleted"
	ActionDeactivated DeleteAction = "deactivated"
)

// DeleteCategory hard-deletes an unused category and deactivates a used one.
func (s *Service) DeleteCategory(ctx context.Context, id uint) (DeleteAction, error) {
	var action DeleteAction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := loadCategory(tx, id)
		if err != nil {
			return err
		}
		if c.IsProtected {
			return appErrors.NewProtectedError("Protected categories cannot be deleted.")
		}
		var used int64
		for _, m := range []any{&models.Transaction{}, &models.InvoiceItem{}, &models.BillItem{}} {
			var n int64
			if err := tx.Model(m).Where("category_id = ?", id).Count(&n).Error; err != nil {
				return appErrors.NewDatabaseError(err)
			}
			used += n
		}
		if used > 0 {
			if err := tx.Model(c).Update("is_active", false).Error; err != nil {
				return appErrors.NewDatabaseError(err)
			}
			action = ActionDeactivated
			return nil
		}
		if err := tx.Model(&models.Category{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if err := tx.Delete(&models.Category{}, id).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		action = ActionDeleted
		return nil
	})
	if err != nil {
		return "", err
	}
	logger.FromContext(ctx).Info().Uint("category_id", id).Str("action", string(action)).Msg("category removed")
	return action, nil
}

func (s *Service) ListCategories(ctx context.Context, kind models.Kind, activeOnly bool) ([]models.Category, error) {
	q := s.DB.WithContext(ctx).Order("kind, name")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	out := make([]models.Category, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return out, nil
}
