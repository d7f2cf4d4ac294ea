package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BillStatus string

const (
	BillDraft         BillStatus = "draft"
	BillReceived      BillStatus = "received"
	BillPartiallyPaid BillStatus = "partially_paid"
	BillPaid          BillStatus = "paid"
	BillVoid          BillStatus = "void"
)

type Bill struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	Number    string          `json:"number" gorm:"type:varchar(32);not null;uniqueIndex"`
	VendorID  *uint           `json:"vendorId" gorm:"index"`
	Vendor    *Vendor         `json:"vendor,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	AccountID uint            `json:"accountId" gorm:"not null;index"`
	Date      time.Time       `json:"date" gorm:"type:date;not null;index"`
	DueDate   *time.Time      `json:"dueDate" gorm:"type:date"`
	Status    BillStatus      `json:"status" gorm:"type:varchar(16);not null;default:'draft';index"`
	Total     decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
	Notes     string          `json:"notes" gorm:"type:text"`
	CreatedAt time.Time       `json:"createdAt"`
	Items     []BillItem      `json:"items,omitempty" gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE"`
	Payments  []BillPayment   `json:"payments,omitempty" gorm:"foreignKey:BillID;constraint:OnDelete:CASCADE"`
}

func (b *Bill) PaidAmount() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range b.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

func (b *Bill) Remaining() decimal.Decimal {
	return b.Total.Sub(b.PaidAmount()).Round(2)
}

// DeriveBillStatus recomputes the payment status of a bill. A bill with no
// payments keeps whatever status it had.
func DeriveBillStatus(current BillStatus, paid, total decimal.Decimal) BillStatus {
	if current == BillVoid {
		return current
	}
	remaining := total.Sub(paid)
	switch {
	case !remaining.IsPositive() && total.IsPositive():
		return BillPaid
	case remaining.LessThan(total):
		return BillPartiallyPaid
	default:
		return current
	}
}
