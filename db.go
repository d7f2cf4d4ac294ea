package main

import (
	"context"
	"time"

	"bookkeeping/internal/config"
	"bookkeeping/internal/database"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func initDB(cfg config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	if cfg.SeedDev {
		if err := seedDevData(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func newSystemCategories(db *gorm.DB) (models.SystemCategories, error) {
	return database.EnsureSystemCategories(context.Background(), db)
}

// seedDevData inserts a small chart of accounts and categories on an empty
// database. Transactions are left to the import pipeline.
func seedDevData(db *gorm.DB) error {
	var cnt int64
	if err := db.Model(&models.Account{}).Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	return db.Transaction(func(tx *gorm.DB) error {
		accounts := []models.Account{
			{Name: "Operating Checking", AccountType: models.AccountChecking, Institution: "First Bank", IsActive: true},
			{Name: "Reserve Savings", AccountType: models.AccountSavings, Institution: "First Bank", IsActive: true},
			{Name: "Company Card", AccountType: models.AccountCreditCard, Institution: "Card Co", IsActive: true},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&accounts).Error; err != nil {
			return err
		}

		cats := []models.Category{
			{Name: "Sales", Kind: models.KindIncome, IsActive: true},
			{Name: "Consulting", Kind: models.KindIncome, IsActive: true},
			{Name: "Rent", Kind: models.KindExpense, IsActive: true},
			{Name: "Software", Kind: models.KindExpense, IsActive: true},
			{Name: "Materials", Kind: models.KindCOGS, IsActive: true},
			{Name: "Wages", Kind: models.KindPayroll, IsActive: true},
			{Name: "Owner Contribution", Kind: models.KindEquity, IsActive: true},
			{Name: "Owner Draw", Kind: models.KindWithdraw, IsActive: true},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&cats).Error; err != nil {
			return err
		}

		vendors := []models.Vendor{
			{Name: "Acme Corp", Kind: models.VendorPayer},
			{Name: "Globex", Kind: models.VendorPayer},
			{Name: "Landlord LLC", Kind: models.VendorPayee},
			{Name: "Cloud Hosting Inc", Kind: models.VendorPayee},
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&vendors).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		opening := models.Transaction{
			AccountID:   accounts[0].ID,
			Amount:      decimal.NewFromInt(5000),
			Kind:        models.KindEquity,
			CategoryID:  &cats[6].ID,
			Description: "Initial owner contribution",
			Date:        today,
		}
		if err := tx.Omit(clause.Associations).Create(&opening).Error; err != nil {
			return err
		}
		logger.Info().Int("accounts", len(accounts)).Int("categories", len(cats)).Msg("seeded dev data")
		return nil
	})
}
