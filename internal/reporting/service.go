// Package reporting computes read-only financial reports from the ledger.
package reporting

import (
	"context"
	"sort"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

type AccountBalance struct {
	AccountID   uint               `json:"accountId"`
	Name        string             `json:"name"`
	AccountType models.AccountType `json:"accountType"`
	ParentID    *uint              `json:"parentId"`
	IsActive    bool               `json:"isActive"`
	Balance     decimal.Decimal    `json:"balance"`
}

// AccountBalances sums transactions per account up to asOf (nil means all
// time). With rollup, child balances are folded into their parent and only
// top-level accounts are returned.
func (s *Service) AccountBalances(ctx context.Context, asOf *time.Time, rollup bool) ([]AccountBalance, error) {
	db := s.DB.WithContext(ctx)
	var accounts []models.Account
	if err := db.Order("name, id").Find(&accounts).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	rows, err := loadTransactions(db, txnQuery{asOf: asOf})
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	sums := map[uint]decimal.Decimal{}
	for _, r := range rows {
		sums[r.AccountID] = sums[r.AccountID].Add(r.Amount)
	}

	out := make([]AccountBalance, 0, len(accounts))
	index := map[uint]int{}
	for _, a := range accounts {
		if rollup && a.ParentID != nil {
			continue
		}
		index[a.ID] = len(out)
		out = append(out, AccountBalance{
			AccountID:   a.ID,
			Name:        a.Name,
			AccountType: a.AccountType,
			ParentID:    a.ParentID,
			IsActive:    a.IsActive,
			Balance:     sums[a.ID],
		})
	}
	if rollup {
		for _, a := range accounts {
			if a.ParentID == nil {
				continue
			}
			if i, ok := index[*a.ParentID]; ok {
				out[i].Balance = out[i].Balance.Add(sums[a.ID])
			}
		}
	}
	return out, nil
}

func sortedKeys(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
