package models

import "time"

type TransferGroup struct {
	ID           uint          `json:"id" gorm:"primaryKey"`
	Reference    string        `json:"reference" gorm:"type:varchar(40);not null;uniqueIndex"`
	CreatedAt    time.Time     `json:"createdAt"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:TransferGroupID"`
}
