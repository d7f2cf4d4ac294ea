package database

import (
	"context"
	"fmt"
	"strings"

	"bookkeeping/internal/config"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

func dialector(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql", "":
		return mysql.Open(cfg.MySQLDSN()), nil
	case "postgres":
		return postgres.Open(cfg.PostgresDSN()), nil
	case "sqlite":
		return sqlite.Open(cfg.SQLiteDSN()), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

func logLevel(s string) gormlogger.LogLevel {
	switch strings.ToLower(s) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// Open connects, applies pool settings and pings the store.
func Open(cfg config.Config) (*gorm.DB, error) {
	dial, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel(cfg.DBLogLevel)),
	})
	if err != nil {
		logger.Error().Err(err).Str("driver", cfg.DBDriver).Msg("open db")
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.Ping(); err != nil {
		logger.Error().Err(err).Str("driver", cfg.DBDriver).Msg("ping db")
		return nil, err
	}

	logger.Info().Str("driver", cfg.DBDriver).Str("database", cfg.DBName).Msg("database connected")
	return db, nil
}

// Migrate creates or updates every table, then the secondary indexes that
// gorm tags do not express.
func Migrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			logger.Error().Err(err).Str("model", fmt.Sprintf("%T", m)).Msg("migrate")
			return err
		}
	}

	indexStmts := []string{
		`CREATE INDEX idx_transactions_kind_date ON transactions (kind, date)`,
		`CREATE INDEX idx_transactions_batch_account ON transactions (import_batch_id, account_id)`,
		`CREATE INDEX idx_invoices_account_date ON invoices (account_id, date)`,
		`CREATE INDEX idx_bills_account_date ON bills (account_id, date)`,
	}
	for _, s := range indexStmts {
		// duplicate index errors are expected on every start after the first
		if err := db.Exec(s).Error; err != nil {
			logger.Debug().Err(err).Msg("index exists")
		}
	}
	return nil
}

var systemCategories = []models.Category{
	{Name: models.CategoryUncategorizedIncome, Kind: models.KindIncome},
	{Name: models.CategoryUncategorizedExpense, Kind: models.KindExpense},
	{Name: models.CategoryTransfer, Kind: models.KindTransfer},
	{Name: models.CategoryOpening, Kind: models.KindOpening},
}

// EnsureSystemCategories seeds the protected categories if missing and
// resolves their ids once.
func EnsureSystemCategories(ctx context.Context, db *gorm.DB) (models.SystemCategories, error) {
	var sys models.SystemCategories
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]uint, len(systemCategories))
		for i, c := range systemCategories {
			c.IsActive = true
			c.IsProtected = true
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&c).Error; err != nil {
				return err
			}
			var found models.Category
			if err := tx.Where("name = ? AND kind = ?", c.Name, c.Kind).First(&found).Error; err != nil {
				return err
			}
			if !found.IsProtected || !found.IsActive {
				if err := tx.Model(&found).Updates(map[string]any{"is_protected": true, "is_active": true}).Error; err != nil {
					return err
				}
			}
			ids[i] = found.ID
		}
		sys = models.SystemCategories{
			UncategorizedIncome:  ids[0],
			UncategorizedExpense: ids[1],
			Transfer:             ids[2],
			Opening:              ids[3],
		}
		return nil
	})
	return sys, err
}
