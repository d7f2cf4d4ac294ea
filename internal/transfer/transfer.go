// Package transfer links the two legs of a movement between accounts.
package transfer

import (
	"context"
	"fmt"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// Window is how far apart the two legs of a transfer may be dated.
const Window = 30 * 24 * time.Hour

var pairColumns = []string{"kind", "category_id", "transfer_group_id", "is_locked"}

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

// FindMatches lists unpaired transactions in other accounts carrying the
// exact opposite amount within the date window, newest first.
func (s *Service) FindMatches(ctx context.Context, txnID uint) ([]models.Transaction, error) {
	db := s.DB.WithContext(ctx)
	txn, err := ledger.LoadTransaction(db, txnID, false)
	if err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0)
	err = db.Where("transfer_group_id IS NULL AND is_locked = ?", false).
		Where("account_id <> ? AND id <> ?", txn.AccountID, txn.ID).
		Where("amount = ?", txn.Amount.Neg()).
		Where("date BETWEEN ? AND ?", txn.Date.Add(-Window), txn.Date.Add(Window)).
		Order("date DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return out, nil
}

func pairReasons(a, b *models.Transaction) []string {
	var reasons []string
	if a.TransferGroupID != nil || b.TransferGroupID != nil {
		reasons = append(reasons, "Transaction is already paired as a transfer.")
	}
	if a.IsLocked || b.IsLocked {
		reasons = append(reasons, "Locked transactions cannot be paired.")
	}
	if a.AccountID == b.AccountID {
		reasons = append(reasons, "Transfers must be between different accounts.")
	}
	if !a.Amount.Add(b.Amount).IsZero() {
		reasons = append(reasons, "Transfer amounts must sum to zero.")
	}
	if !a.Amount.Abs().Equal(b.Amount.Abs()) {
		reasons = append(reasons, "Transfer amounts must have equal magnitude.")
	}
	gap := a.Date.Sub(b.Date)
	if gap < 0 {
		gap = -gap
	}
	if gap > Window {
		reasons = append(reasons, fmt.Sprintf("Transfer dates must be within %d days.", int(Window.Hours()/24)))
	}
	return reasons
}

// Pair links two transactions into a new transfer group. Both rows are
// locked for the duration so concurrent attempts cannot claim the same leg.
func (s *Service) Pair(ctx context.Context, txnID, matchID uint) (*models.TransferGroup, error) {
	if txnID == matchID {
		return nil, appErrors.NewBusinessRuleError("A transaction cannot be paired with itself.")
	}
	var group *models.TransferGroup
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := ledger.LockTransactions(tx, txnID, matchID)
		if err != nil {
			return err
		}
		a, b := rows[txnID], rows[matchID]
		if reasons := pairReasons(a, b); len(reasons) > 0 {
			return appErrors.NewBusinessRuleError(reasons...)
		}
		group = &models.TransferGroup{Reference: ulid.Make().String()}
		if err := tx.Omit("Transactions").Create(group).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		for _, t := range []*models.Transaction{a, b} {
			t.AttachTransfer(group.ID)
			if err := ledger.SaveColumns(tx, t, pairColumns...); err != nil {
				return err
			}
		}
		group.Transactions = []models.Transaction{*a, *b}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().
		Uint("group_id", group.ID).
		Str("reference", group.Reference).
		Uint("txn_id", txnID).
		Uint("match_id", matchID).
		Msg("transfer paired")
	return group, nil
}

// Unpair dissolves a transfer group. Members return to an uncategorized
// state with kind taken from the amount's sign.
func (s *Service) Unpair(ctx context.Context, groupID uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.TransferGroup
		if err := tx.First(&group, groupID).Error; err != nil {
			return appErrors.TranslateDB(err, appErrors.ErrGroupNotFound)
		}
		var ids []uint
		if err := tx.Model(&models.Transaction{}).Where("transfer_group_id = ?", group.ID).Pluck("id", &ids).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if len(ids) > 0 {
			rows, err := ledger.LockTransactions(tx, ids...)
			if err != nil {
				return err
			}
			for _, id := range ids {
				t := rows[id]
				t.DetachTransfer()
				if err := ledger.SaveColumns(tx, t, pairColumns...); err != nil {
					return err
				}
			}
		}
		if err := tx.Delete(&group).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Uint("group_id", groupID).Msg("transfer unpaired")
	return nil
}

// Get returns a transfer group with its member transactions.
func (s *Service) Get(ctx context.Context, groupID uint) (*models.TransferGroup, error) {
	var group models.TransferGroup
	err := s.DB.WithContext(ctx).Preload("Transactions", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&group, groupID).Error
	if err != nil {
		return nil, appErrors.TranslateDB(err, appErrors.ErrGroupNotFound)
	}
	return &group, nil
}
