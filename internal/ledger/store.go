package ledger

import (
	appErrors "bookkeeping/internal/errors"
	"bookkeeping/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Helpers shared by the engines. Each takes the handle to run on so callers
// can pass an open transaction.

// LoadTransaction fetches one transaction, optionally holding a row lock
// until the surrounding transaction ends.
func LoadTransaction(tx *gorm.DB, id uint, lock bool) (*models.Transaction, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var txn models.Transaction
	if err := q.First(&txn, id).Error; err != nil {
		return nil, appErrors.TranslateDB(err, appErrors.ErrTransactionNotFound)
	}
	return &txn, nil
}

// LockTransactions loads and locks the given ids in ascending id order so
// concurrent callers always acquire locks in the same sequence.
func LockTransactions(tx *gorm.DB, ids ...uint) (map[uint]*models.Transaction, error) {
	var rows []models.Transaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	out := make(map[uint]*models.Transaction, len(rows))
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	for _, id := range ids {
		if _, ok := out[id]; !ok {
			return nil, appErrors.ErrTransactionNotFound.WithDetails(map[string]interface{}{"id": id})
		}
	}
	return out, nil
}

// SaveColumns writes only the named columns of txn.
func SaveColumns(tx *gorm.DB, txn *models.Transaction, columns ...string) error {
	if err := tx.Model(txn).Omit(clause.Associations).Select(columns).Updates(txn).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	return nil
}

// PaymentLinks counts invoice and bill payments drawn against a transaction.
func PaymentLinks(tx *gorm.DB, txnID uint) (invoices int64, bills int64, err error) {
	if err = tx.Model(&models.InvoicePayment{}).Where("transaction_id = ?", txnID).Count(&invoices).Error; err != nil {
		return 0, 0, appErrors.NewDatabaseError(err)
	}
	if err = tx.Model(&models.BillPayment{}).Where("transaction_id = ?", txnID).Count(&bills).Error; err != nil {
		return 0, 0, appErrors.NewDatabaseError(err)
	}
	return invoices, bills, nil
}

func loadCategory(tx *gorm.DB, id uint) (*models.Category, error) {
	var c models.Category
	if err := tx.First(&c, id).Error; err != nil {
		return nil, appErrors.TranslateDB(err, appErrors.ErrCategoryNotFound)
	}
	return &c, nil
}

func loadAccount(tx *gorm.DB, id uint) (*models.Account, error) {
	var a models.Account
	if err := tx.First(&a, id).Error; err != nil {
		return nil, appErrors.TranslateDB(err, appErrors.ErrAccountNotFound)
	}
	return &a, nil
}

// Pagination mirrors the list envelope returned by list endpoints.
type Pagination struct {
	Total      int64 `json:"total"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
	HasNext    bool  `json:"hasNext"`
	NextOffset int   `json:"nextOffset"`
}

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// NewPagination clamps limit/offset and fills the derived fields.
func NewPagination(limit, offset int, total int64) Pagination {
	if limit <= 0 || limit > MaxLimit {
		limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	p := Pagination{Total: total, Limit: limit, Offset: offset, NextOffset: offset}
	if int64(offset+limit) < total {
		p.HasNext = true
		p.NextOffset = offset + limit
	}
	return p
}
