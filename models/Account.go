package models

import "time"

type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCreditCard AccountType = "credit_card"
	AccountCash       AccountType = "cash"
	AccountLoan       AccountType = "loan"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCreditCard, AccountCash, AccountLoan:
		return true
	}
	return false
}

// IsLiability reports whether a positive balance on this account type is owed
// rather than held.
func (t AccountType) IsLiability() bool {
	return t == AccountCreditCard || t == AccountLoan
}

type Account struct {
	ID          uint        `json:"id" gorm:"primaryKey"`
	Name        string      `json:"name" gorm:"type:varchar(100);not null;uniqueIndex"`
	AccountType AccountType `json:"accountType" gorm:"type:varchar(16);not null"`
	Institution string      `json:"institution" gorm:"type:varchar(100)"`
	IsActive    bool        `json:"isActive" gorm:"not null;default:true"`
	ParentID    *uint       `json:"parentId" gorm:"index"`
	CreatedAt   time.Time   `json:"createdAt"`
}
