package ledger

import (
	"context"
	"strings"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ReasonCategoryRequired = "category_required"

// SaveTransaction validates and persists txn. A missing category on a manual,
// non-transfer transaction is rejected; otherwise kind is taken from the
// category. Archived accounts and inactive categories are refused.
func (s *Service) SaveTransaction(ctx context.Context, txn *models.Transaction) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveTransaction(tx, txn, nil)
	})
}

// saveTransaction checks account and category availability only when they
// are new or changed from prev, so existing rows on an archived account stay
// editable.
func saveTransaction(tx *gorm.DB, txn *models.Transaction, prev *models.Transaction) error {
	if txn.AccountID == 0 {
		return appErrors.NewValidationError("account", "account_required")
	}
	if txn.Date.IsZero() {
		return appErrors.NewValidationError("date", "date_required")
	}
	acct, err := loadAccount(tx, txn.AccountID)
	if err != nil {
		return err
	}
	if !acct.IsActive && (prev == nil || prev.AccountID != txn.AccountID) {
		return appErrors.NewBusinessRuleError("Account is archived.")
	}
	txn.Amount = txn.Amount.Round(2)
	if txn.Kind == "" {
		txn.Kind = models.KindFromSign(txn.Amount)
	}
	if !txn.Kind.Valid() {
		return appErrors.NewValidationError("kind", "invalid_kind")
	}

	if txn.CategoryID == nil {
		if !txn.IsImported && txn.Kind != models.KindTransfer {
			return appErrors.NewValidationError("category", ReasonCategoryRequired)
		}
	} else {
		cat, err := loadCategory(tx, *txn.CategoryID)
		if err != nil {
			return err
		}
		if !cat.IsActive && (prev == nil || prev.CategoryID == nil || *prev.CategoryID != cat.ID) {
			return appErrors.NewBusinessRuleError("Category is inactive.")
		}
		if txn.Kind == models.KindTransfer && cat.Kind != models.KindTransfer {
			return appErrors.NewValidationError("category", "transfer_category_mismatch")
		}
		txn.ApplyCategory(cat)
	}

	if txn.VendorID != nil {
		var n int64
		if err := tx.Model(&models.Vendor{}).Where("id = ?", *txn.VendorID).Count(&n).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if n == 0 {
			return appErrors.ErrVendorNotFound
		}
	}

	if err := tx.Omit(clause.Associations).Save(txn).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	return nil
}

// TransactionUpdate carries the fields a caller wants to change. Nil means
// unchanged.
type TransactionUpdate struct {
	Date        *time.Time
	Amount      *decimal.Decimal
	AccountID   *uint
	CategoryID  *uint
	VendorID    *uint
	Payee       *string
	Description *string
}

func (u TransactionUpdate) touchesCore(t *models.Transaction) bool {
	return (u.Date != nil && !u.Date.Equal(t.Date)) ||
		(u.Amount != nil && !u.Amount.Equal(t.Amount)) ||
		(u.AccountID != nil && *u.AccountID != t.AccountID)
}

func (s *Service) UpdateTransaction(ctx context.Context, id uint, u TransactionUpdate) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := LoadTransaction(tx, id, true)
		if err != nil {
			return err
		}
		if txn.IsLocked || txn.TransferGroupID != nil {
			return appErrors.NewBusinessRuleError("Transaction is locked.")
		}
		if u.touchesCore(txn) {
			var reasons []string
			if txn.IsImported {
				reasons = append(reasons, "Imported transactions cannot change date, amount or account.")
			}
			inv, bills, err := PaymentLinks(tx, txn.ID)
			if err != nil {
				return err
			}
			if inv+bills > 0 {
				reasons = append(reasons, "Matched transactions cannot change date, amount or account.")
			}
			if len(reasons) > 0 {
				return appErrors.NewBusinessRuleError(reasons...)
			}
		}

		before := *txn
		if u.Date != nil {
			txn.Date = *u.Date
		}
		if u.Amount != nil {
			txn.Amount = *u.Amount
		}
		if u.AccountID != nil {
			txn.AccountID = *u.AccountID
		}
		if u.CategoryID != nil {
			txn.CategoryID = u.CategoryID
		}
		if u.VendorID != nil {
			txn.VendorID = u.VendorID
		}
		if u.Payee != nil {
			txn.Payee = strings.TrimSpace(*u.Payee)
		}
		if u.Description != nil {
			txn.Description = strings.TrimSpace(*u.Description)
		}
		if err := saveTransaction(tx, txn, &before); err != nil {
			return err
		}
		out = txn
		return nil
	})
	return out, err
}

// DeleteTransaction removes a manual transaction. Imported, locked, transfer
// and matched transactions are protected.
func (s *Service) DeleteTransaction(ctx context.Context, id uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := LoadTransaction(tx, id, true)
		if err != nil {
			return err
		}
		var reasons []string
		if txn.IsImported {
			reasons = append(reasons, "Imported transactions are removed by rolling back their import batch.")
		}
		if txn.IsLocked {
			reasons = append(reasons, "Locked transactions cannot be deleted.")
		}
		if txn.TransferGroupID != nil {
			reasons = append(reasons, "Unpair the transfer before deleting.")
		}
		if len(reasons) > 0 {
			return appErrors.NewBusinessRuleError(reasons...)
		}
		inv, bills, err := PaymentLinks(tx, txn.ID)
		if err != nil {
			return err
		}
		if inv+bills > 0 {
			return appErrors.NewProtectedError("Transaction has invoice or bill payments and cannot be deleted.")
		}
		if err := tx.Delete(&models.Transaction{}, txn.ID).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
}

// BulkCategorize assigns one category to many transactions at once.
func (s *Service) BulkCategorize(ctx context.Context, ids []uint, categoryID uint) (int, error) {
	if len(ids) == 0 {
		return 0, appErrors.NewValidationError("transactions", "Select at least one transaction.")
	}
	updated := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cat, err := loadCategory(tx, categoryID)
		if err != nil {
			return err
		}
		if !cat.IsActive {
			return appErrors.NewBusinessRuleError("Category is inactive.")
		}
		if cat.Kind == models.KindTransfer {
			return appErrors.NewBusinessRuleError("Transfers are created by pairing transactions.")
		}
		txns, err := LockTransactions(tx, ids...)
		if err != nil {
			return err
		}
		var reasons []string
		for _, id := range ids {
			t := txns[id]
			if t.IsLocked || t.TransferGroupID != nil {
				reasons = append(reasons, "Transaction "+uintStr(id)+" is locked.")
			}
		}
		if len(reasons) > 0 {
			return appErrors.NewBusinessRuleError(reasons...)
		}
		for _, id := range ids {
			t := txns[id]
			t.ApplyCategory(cat)
			if err := SaveColumns(tx, t, "category_id", "kind"); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.FromContext(ctx).Info().Int("count", updated).Uint("category_id", categoryID).Msg("transactions categorized")
	return updated, nil
}

type TransactionFilter struct {
	AccountID     uint
	CategoryID    uint
	Kind          models.Kind
	Start         *time.Time
	End           *time.Time
	Search        string
	Uncategorized bool
	Limit         int
	Offset        int
}

type TransactionPage struct {
	Items      []models.Transaction `json:"items"`
	Pagination Pagination           `json:"pagination"`
}

func (s *Service) ListTransactions(ctx context.Context, f TransactionFilter) (*TransactionPage, error) {
	q := s.DB.WithContext(ctx).Model(&models.Transaction{})
	if f.AccountID != 0 {
		q = q.Where("account_id = ?", f.AccountID)
	}
	if f.CategoryID != 0 {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Start != nil {
		q = q.Where("date >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("date <= ?", *f.End)
	}
	if v := strings.TrimSpace(f.Search); v != "" {
		like := "%" + v + "%"
		q = q.Where("description LIKE ? OR payee LIKE ?", like, like)
	}
	if f.Uncategorized {
		q = q.Where("category_id IS NULL AND kind <> ?", models.KindTransfer)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	p := NewPagination(f.Limit, f.Offset, total)
	items := make([]models.Transaction, 0)
	err := q.Preload("Category").Preload("Vendor").
		Order("date DESC, id DESC").
		Limit(p.Limit).Offset(p.Offset).
		Find(&items).Error
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return &TransactionPage{Items: items, Pagination: p}, nil
}

func (s *Service) GetTransaction(ctx context.Context, id uint) (*models.Transaction, error) {
	var txn models.Transaction
	err := s.DB.WithContext(ctx).Preload("Category").Preload("Vendor").First(&txn, id).Error
	if err != nil {
		return nil, appErrors.TranslateDB(err, appErrors.ErrTransactionNotFound)
	}
	return &txn, nil
}
