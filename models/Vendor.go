package models

import "time"

type VendorKind string

const (
	VendorPayer VendorKind = "payer"
	VendorPayee VendorKind = "payee"
)

type Vendor struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	Name      string     `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:idx_vendors_name_kind"`
	Kind      VendorKind `json:"kind" gorm:"type:varchar(8);not null;uniqueIndex:idx_vendors_name_kind"`
	CreatedAt time.Time  `json:"createdAt"`
}
