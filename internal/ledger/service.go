// Package ledger enforces the structural rules of accounts, categories,
// vendors and transactions at the point they are written.
package ledger

import (
	"bookkeeping/models"

	"gorm.io/gorm"
)

type Service struct {
	DB     *gorm.DB
	System models.SystemCategories
}

func NewService(db *gorm.DB, system models.SystemCategories) *Service {
	return &Service{DB: db, System: system}
}
