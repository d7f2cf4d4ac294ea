package models

import (
	"time"

	"gorm.io/datatypes"
)

type ImportStatus string

const (
	ImportPending   ImportStatus = "pending"
	ImportValidated ImportStatus = "validated"
	ImportImported  ImportStatus = "imported"
	ImportFailed    ImportStatus = "failed"
)

type AmountStrategy string

const (
	StrategySigned       AmountStrategy = "signed"
	StrategyIndicator    AmountStrategy = "indicator"
	StrategySplitColumns AmountStrategy = "split_columns"
)

func (s AmountStrategy) Valid() bool {
	return s == StrategySigned || s == StrategyIndicator || s == StrategySplitColumns
}

type ImportBatch struct {
	ID              uint                                  `json:"id" gorm:"primaryKey"`
	Filename        string                                `json:"filename" gorm:"type:varchar(255);not null"`
	AccountID       *uint                                 `json:"accountId" gorm:"index"`
	Status          ImportStatus                          `json:"status" gorm:"type:varchar(16);not null;default:'pending';index"`
	AmountStrategy  AmountStrategy                        `json:"amountStrategy" gorm:"type:varchar(16);not null;default:'signed'"`
	IndicatorCredit string                                `json:"indicatorCredit" gorm:"type:varchar(32)"`
	IndicatorDebit  string                                `json:"indicatorDebit" gorm:"type:varchar(32)"`
	ColumnMapping   datatypes.JSONType[map[string]string] `json:"columnMapping"`
	ErrorMessage    string                                `json:"errorMessage" gorm:"type:text"`
	ArchiveKey      string                                `json:"archiveKey" gorm:"type:varchar(255)"`
	CreatedAt       time.Time                             `json:"createdAt"`
	Rows            []ImportRow                           `json:"rows,omitempty" gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

type ImportRow struct {
	ID        uint                                  `json:"id" gorm:"primaryKey"`
	BatchID   uint                                  `json:"batchId" gorm:"not null;index"`
	RowNumber int                                   `json:"rowNumber" gorm:"not null"`
	Raw       datatypes.JSONType[map[string]string] `json:"raw"`
	Mapped    datatypes.JSONType[map[string]string] `json:"mapped"`
	Errors    datatypes.JSONSlice[string]           `json:"errors"`
}

// Mapped field names. SignedAmount is derived during staging.
const (
	FieldDate         = "date"
	FieldDescription  = "description"
	FieldAmount       = "amount"
	FieldIndicator    = "indicator"
	FieldDebit        = "debit"
	FieldCredit       = "credit"
	FieldIgnore       = "ignore"
	FieldSignedAmount = "signed_amount"
)
