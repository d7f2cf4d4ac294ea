package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	Date            time.Time       `json:"date" gorm:"type:date;not null;index:idx_transactions_account_date,priority:2"`
	AccountID       uint            `json:"accountId" gorm:"not null;index:idx_transactions_account_date,priority:1"`
	Account         *Account        `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
	Amount          decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Kind            Kind            `json:"kind" gorm:"type:varchar(16);not null;index"`
	Payee           string          `json:"payee" gorm:"type:varchar(255)"`
	Description     string          `json:"description" gorm:"type:varchar(500)"`
	VendorID        *uint           `json:"vendorId" gorm:"index"`
	Vendor          *Vendor         `json:"vendor,omitempty" gorm:"constraint:OnDelete:SET NULL"`
	CategoryID      *uint           `json:"categoryId" gorm:"index"`
	Category        *Category       `json:"category,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	TransferGroupID *uint           `json:"transferGroupId" gorm:"index"`
	IsImported      bool            `json:"isImported" gorm:"not null;default:false"`
	IsLocked        bool            `json:"isLocked" gorm:"not null;default:false"`
	ImportBatchID   *uint           `json:"importBatchId" gorm:"index"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ApplyCategory sets the category and keeps kind in step with it. Every code
// path that changes a transaction's category goes through here.
func (t *Transaction) ApplyCategory(c *Category) {
	if c == nil {
		t.CategoryID = nil
		t.Category = nil
		if t.Kind != KindTransfer {
			t.Kind = KindFromSign(t.Amount)
		}
		return
	}
	id := c.ID
	t.CategoryID = &id
	t.Category = nil
	if t.Kind != KindTransfer {
		t.Kind = c.Kind
	}
}

// AttachTransfer marks the transaction as one leg of a transfer group.
func (t *Transaction) AttachTransfer(groupID uint) {
	t.Kind = KindTransfer
	t.CategoryID = nil
	t.Category = nil
	t.TransferGroupID = &groupID
	t.IsLocked = true
}

// DetachTransfer reverses AttachTransfer. The previous category is not
// restored; kind falls back to the amount's sign.
func (t *Transaction) DetachTransfer() {
	t.TransferGroupID = nil
	t.CategoryID = nil
	t.Category = nil
	t.IsLocked = false
	t.Kind = KindFromSign(t.Amount)
}

func (t *Transaction) IsTransfer() bool {
	return t.Kind == KindTransfer || t.TransferGroupID != nil
}
