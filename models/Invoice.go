package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceSent          InvoiceStatus = "sent"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceVoid          InvoiceStatus = "void"
)

type Invoice struct {
	ID         uint             `json:"id" gorm:"primaryKey"`
	Number     string           `json:"number" gorm:"type:varchar(32);not null;uniqueIndex"`
	CustomerID *uint            `json:"customerId" gorm:"index"`
	Customer   *Vendor          `json:"customer,omitempty" gorm:"foreignKey:CustomerID;constraint:OnDelete:SET NULL"`
	AccountID  uint             `json:"accountId" gorm:"not null;index"`
	Date       time.Time        `json:"date" gorm:"type:date;not null;index"`
	DueDate    *time.Time       `json:"dueDate" gorm:"type:date"`
	Status     InvoiceStatus    `json:"status" gorm:"type:varchar(16);not null;default:'draft';index"`
	Subtotal   decimal.Decimal  `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	Tax        decimal.Decimal  `json:"tax" gorm:"type:decimal(12,2);not null"`
	Total      decimal.Decimal  `json:"total" gorm:"type:decimal(12,2);not null"`
	Notes      string           `json:"notes" gorm:"type:text"`
	CreatedAt  time.Time        `json:"createdAt"`
	Items      []InvoiceItem    `json:"items,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments   []InvoicePayment `json:"payments,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// PaidAmount sums the loaded payments.
func (inv *Invoice) PaidAmount() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range inv.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

func (inv *Invoice) Remaining() decimal.Decimal {
	return inv.Total.Sub(inv.PaidAmount()).Round(2)
}

// DeriveInvoiceStatus recomputes the payment status. Void is manual and never
// changes here, and an unpaid invoice never regresses to draft on its own.
func DeriveInvoiceStatus(current InvoiceStatus, paid, total decimal.Decimal) InvoiceStatus {
	if current == InvoiceVoid {
		return current
	}
	switch {
	case !paid.IsPositive():
		if current == InvoiceDraft || current == InvoiceSent {
			return current
		}
		return InvoiceSent
	case paid.GreaterThanOrEqual(total):
		return InvoicePaid
	default:
		return InvoicePartiallyPaid
	}
}
