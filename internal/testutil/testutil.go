// Package testutil provides an in-memory sqlite ledger for package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bookkeeping/internal/database"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// DB is a migrated sqlite database with the system categories seeded.
type DB struct {
	*gorm.DB
	System models.SystemCategories
}

func NewDB(t testing.TB) *DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=on", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a single connection keeps the shared in-memory database alive and
	// serializes writers the way row locks would
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	sys, err := database.EnsureSystemCategories(context.Background(), db)
	require.NoError(t, err)
	return &DB{DB: db, System: sys}
}

func Date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (d *DB) Account(t testing.TB, name string, typ models.AccountType) *models.Account {
	t.Helper()
	a := &models.Account{Name: name, AccountType: typ, IsActive: true}
	require.NoError(t, d.Create(a).Error)
	return a
}

func (d *DB) Category(t testing.TB, name string, kind models.Kind) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Kind: kind, IsActive: true}
	require.NoError(t, d.Create(c).Error)
	return c
}

func (d *DB) Vendor(t testing.TB, name string, kind models.VendorKind) *models.Vendor {
	t.Helper()
	v := &models.Vendor{Name: name, Kind: kind}
	require.NoError(t, d.Create(v).Error)
	return v
}

// Txn inserts an imported, uncategorized transaction directly.
func (d *DB) Txn(t testing.TB, accountID uint, amount, date string) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		AccountID:  accountID,
		Amount:     Dec(amount),
		Date:       Date(date),
		IsImported: true,
	}
	txn.Kind = models.KindFromSign(txn.Amount)
	require.NoError(t, d.Create(txn).Error)
	return txn
}

// Reload fetches a fresh copy of the transaction.
func (d *DB) Reload(t testing.TB, id uint) *models.Transaction {
	t.Helper()
	var txn models.Transaction
	require.NoError(t, d.First(&txn, id).Error)
	return &txn
}
