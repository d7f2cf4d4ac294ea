package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindIncome    Kind = "income"
	KindExpense   Kind = "expense"
	KindTransfer  Kind = "transfer"
	KindOpening   Kind = "opening"
	KindWithdraw  Kind = "withdraw"
	KindEquity    Kind = "equity"
	KindLiability Kind = "liability"
	KindCOGS      Kind = "cogs"
	KindPayroll   Kind = "payroll"
)

var Kinds = []Kind{
	KindIncome, KindExpense, KindTransfer, KindOpening, KindWithdraw,
	KindEquity, KindLiability, KindCOGS, KindPayroll,
}

func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if v == k {
			return true
		}
	}
	return false
}

// KindFromSign classifies an uncategorized amount: negative is an expense,
// everything else income.
func KindFromSign(amount decimal.Decimal) Kind {
	if amount.IsNegative() {
		return KindExpense
	}
	return KindIncome
}

type Category struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:idx_categories_name_kind"`
	Kind        Kind      `json:"kind" gorm:"type:varchar(16);not null;uniqueIndex:idx_categories_name_kind"`
	IsActive    bool      `json:"isActive" gorm:"not null;default:true"`
	IsProtected bool      `json:"isProtected" gorm:"not null;default:false"`
	ParentID    *uint     `json:"parentId" gorm:"index"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SystemCategories holds the ids of the protected categories seeded at
// startup. Services receive it once instead of looking categories up by name.
type SystemCategories struct {
	UncategorizedIncome  uint
	UncategorizedExpense uint
	Transfer             uint
	Opening              uint
}

// Uncategorized returns the fallback category for an amount of the given sign.
func (s SystemCategories) Uncategorized(amount decimal.Decimal) uint {
	if amount.IsNegative() {
		return s.UncategorizedExpense
	}
	return s.UncategorizedIncome
}

const (
	CategoryUncategorizedIncome  = "Uncategorized Income"
	CategoryUncategorizedExpense = "Uncategorized Expense"
	CategoryTransfer             = "Transfer"
	CategoryOpening              = "Opening Balance"
)
