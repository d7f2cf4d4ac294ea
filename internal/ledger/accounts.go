package ledger

import (
	"context"
	"strings"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"gorm.io/gorm"
)

func (s *Service) CreateAccount(ctx context.Context, a *models.Account) error {
	a.Name = strings.TrimSpace(a.Name)
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reasons []string
		if a.Name == "" {
			reasons = append(reasons, "Account name is required.")
		}
		if !a.AccountType.Valid() {
			reasons = append(reasons, "Invalid account type.")
		}
		if len(reasons) > 0 {
			return appErrors.NewValidationErrors(reasons)
		}
		var n int64
		if err := tx.Model(&models.Account{}).Where("name = ?", a.Name).Count(&n).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if n > 0 {
			return appErrors.NewValidationError("name", "An account with this name already exists.")
		}
		if a.ParentID != nil {
			if err := checkParentAccount(tx, 0, *a.ParentID); err != nil {
				return err
			}
		}
		a.IsActive = true
		if err := tx.Create(a).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
}

// checkParentAccount keeps the hierarchy one level deep.
func checkParentAccount(tx *gorm.DB, childID, parentID uint) error {
	if childID != 0 && childID == parentID {
		return appErrors.NewValidationError("parent", "Account cannot be its own parent.")
	}
	parent, err := loadAccount(tx, parentID)
	if err != nil {
		return err
	}
	if parent.ParentID != nil {
		return appErrors.NewValidationError("parent", "Parent account must be a top-level account.")
	}
	if childID != 0 {
		var children int64
		if err := tx.Model(&models.Account{}).Where("parent_id = ?", childID).Count(&children).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if children > 0 {
			return appErrors.NewValidationError("parent", "An account with sub-accounts cannot have a parent.")
		}
	}
	return nil
}

type AccountUpdate struct {
	Name        *string
	AccountType *models.AccountType
	Institution *string
	ParentID    *uint
	ClearParent bool
}

func (s *Service) UpdateAccount(ctx context.Context, id uint, u AccountUpdate) (*models.Account, error) {
	var out *models.Account
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := loadAccount(tx, id)
		if err != nil {
			return err
		}
		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if name == "" {
				return appErrors.NewValidationError("name", "Account name is required.")
			}
			var n int64
			if err := tx.Model(&models.Account{}).Where("name = ? AND id <> ?", name, id).Count(&n).Error; err != nil {
				return appErrors.NewDatabaseError(err)
			}
			if n > 0 {
				return appErrors.NewValidationError("name", "An account with this name already exists.")
			}
			a.Name = name
		}
		if u.AccountType != nil {
			if !u.AccountType.Valid() {
				return appErrors.NewValidationError("accountType", "Invalid account type.")
			}
			a.AccountType = *u.AccountType
		}
		if u.Institution != nil {
			a.Institution = strings.TrimSpace(*u.Institution)
		}
		switch {
		case u.ClearParent:
			a.ParentID = nil
		case u.ParentID != nil:
			if err := checkParentAccount(tx, a.ID, *u.ParentID); err != nil {
				return err
			}
			a.ParentID = u.ParentID
		}
		if err := tx.Save(a).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		out = a
		return nil
	})
	return out, err
}

// ArchiveAccount flips is_active. Archived accounts keep their history.
func (s *Service) ArchiveAccount(ctx context.Context, id uint, active bool) error {
	db := s.DB.WithContext(ctx)
	if _, err := loadAccount(db, id); err != nil {
		return err
	}
	if err := db.Model(&models.Account{}).Where("id = ?", id).Update("is_active", active).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	return nil
}

// DeleteAccount hard-deletes an account with no history. Accounts referenced
// by transactions or documents are protected.
func (s *Service) DeleteAccount(ctx context.Context, id uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadAccount(tx, id); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Transaction{}).Where("account_id = ?", id).Count(&n).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if n > 0 {
			return appErrors.NewProtectedError("Account has transactions and cannot be deleted; archive it instead.")
		}
		var docs int64
		for _, m := range []any{&models.Invoice{}, &models.Bill{}} {
			var c int64
			if err := tx.Model(m).Where("account_id = ?", id).Count(&c).Error; err != nil {
				return appErrors.NewDatabaseError(err)
			}
			docs += c
		}
		if docs > 0 {
			return appErrors.NewProtectedError("Account has invoices or bills and cannot be deleted; archive it instead.")
		}
		if err := tx.Model(&models.Account{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if err := tx.Delete(&models.Account{}, id).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
	if err == nil {
		logger.FromContext(ctx).Info().Uint("account_id", id).Msg("account deleted")
	}
	return err
}

func (s *Service) ListAccounts(ctx context.Context, activeOnly bool) ([]models.Account, error) {
	q := s.DB.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	out := make([]models.Account, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return out, nil
}

// SelectableAccounts returns active accounts without sub-accounts; only
// those can hold new transactions or imports.
func (s *Service) SelectableAccounts(ctx context.Context) ([]models.Account, error) {
	db := s.DB.WithContext(ctx)
	parents := db.Model(&models.Account{}).Select("parent_id").Where("parent_id IS NOT NULL")
	out := make([]models.Account, 0)
	err := db.Where("is_active = ?", true).
		Where("id NOT IN (?)", parents).
		Order("name").
		Find(&out).Error
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return out, nil
}
