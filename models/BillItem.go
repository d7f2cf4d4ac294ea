package models

import "github.com/shopspring/decimal"

type BillItem struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	BillID      uint            `json:"billId" gorm:"not null;index"`
	CategoryID  uint            `json:"categoryId" gorm:"not null;index"`
	Category    *Category       `json:"category,omitempty" gorm:"constraint:OnDelete:RESTRICT"`
	Description string          `json:"description" gorm:"type:varchar(255);not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Total       decimal.Decimal `json:"total" gorm:"type:decimal(12,2);not null"`
}
