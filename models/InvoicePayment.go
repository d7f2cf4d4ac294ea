package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoicePayment struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	InvoiceID     uint            `json:"invoiceId" gorm:"not null;uniqueIndex:idx_invoice_payments_invoice_txn"`
	TransactionID uint            `json:"transactionId" gorm:"not null;uniqueIndex:idx_invoice_payments_invoice_txn;index"`
	Transaction   *Transaction    `json:"transaction,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	CreatedAt     time.Time       `json:"createdAt"`
}
