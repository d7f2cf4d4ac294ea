// Package matching settles invoices and bills against bank transactions.
package matching

import (
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MatchWindowDays bounds how far a payment may be dated from its document.
const MatchWindowDays = 30

const (
	bestMatchLimit  = 10
	otherMatchLimit = 50
)

type Service struct {
	DB      *gorm.DB
	System  models.SystemCategories
	TaxRate decimal.Decimal
}

func NewService(db *gorm.DB, system models.SystemCategories, taxRate decimal.Decimal) *Service {
	return &Service{DB: db, System: system, TaxRate: taxRate}
}

// DocumentKind distinguishes receivables from payables.
type DocumentKind string

const (
	DocInvoice DocumentKind = "invoice"
	DocBill    DocumentKind = "bill"
)

// Allocation draws part of a transaction against a document.
type Allocation struct {
	TransactionID uint            `json:"transactionId" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

// Candidates splits eligible transactions into those that could settle the
// whole remaining balance and everything else.
type Candidates struct {
	Remaining   decimal.Decimal      `json:"remaining"`
	BestMatches []models.Transaction `json:"bestMatches"`
	Others      []models.Transaction `json:"otherTransactions"`
}
