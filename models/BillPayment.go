package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BillPayment struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	BillID        uint            `json:"billId" gorm:"not null;uniqueIndex:idx_bill_payments_bill_txn"`
	TransactionID uint            `json:"transactionId" gorm:"not null;uniqueIndex:idx_bill_payments_bill_txn;index"`
	Transaction   *Transaction    `json:"transaction,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt     time.Time       `json:"createdAt"`
}
