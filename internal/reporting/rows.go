package reporting

import (
	"time"

	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// txnRow is a transaction flattened with its account and labels.
type txnRow struct {
	ID           uint
	Date         time.Time
	Amount       decimal.Decimal
	Kind         models.Kind
	AccountID    uint
	AccountType  models.AccountType
	CategoryName *string
	VendorName   *string
}

type txnQuery struct {
	rng           *Range
	asOf          *time.Time
	kinds         []models.Kind
	unmatchedOnly bool
}

func loadTransactions(db *gorm.DB, q txnQuery) ([]txnRow, error) {
	tx := db.Table("transactions t").
		Select("t.id, t.date, t.amount, t.kind, t.account_id, a.account_type, c.name AS category_name, v.name AS vendor_name").
		Joins("JOIN accounts a ON a.id = t.account_id").
		Joins("LEFT JOIN categories c ON c.id = t.category_id").
		Joins("LEFT JOIN vendors v ON v.id = t.vendor_id")
	if q.rng != nil && !q.rng.All {
		tx = tx.Where("t.date BETWEEN ? AND ?", q.rng.Start, q.rng.End)
	}
	if q.asOf != nil {
		tx = tx.Where("t.date <= ?", *q.asOf)
	}
	if len(q.kinds) > 0 {
		tx = tx.Where("t.kind IN ?", q.kinds)
	}
	if q.unmatchedOnly {
		tx = tx.Where("NOT EXISTS (SELECT 1 FROM invoice_payments ip WHERE ip.transaction_id = t.id)").
			Where("NOT EXISTS (SELECT 1 FROM bill_payments bp WHERE bp.transaction_id = t.id)")
	}
	var rows []txnRow
	if err := tx.Order("t.date, t.id").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// itemRow is an invoice or bill line with its document's date and
// counterparty.
type itemRow struct {
	Date         time.Time
	Amount       decimal.Decimal
	Kind         models.Kind
	CategoryName string
	Counterparty *string
}

func loadItems(db *gorm.DB, doc string, rng *Range, asOf *time.Time) ([]itemRow, error) {
	var tx *gorm.DB
	if doc == "invoice" {
		tx = db.Table("invoice_items it").
			Select("d.date, it.amount, c.kind, c.name AS category_name, v.name AS counterparty").
			Joins("JOIN invoices d ON d.id = it.invoice_id").
			Joins("LEFT JOIN vendors v ON v.id = d.customer_id").
			Where("d.status <> ?", models.InvoiceVoid)
	} else {
		tx = db.Table("bill_items it").
			Select("d.date, it.amount, c.kind, c.name AS category_name, v.name AS counterparty").
			Joins("JOIN bills d ON d.id = it.bill_id").
			Joins("LEFT JOIN vendors v ON v.id = d.vendor_id").
			Where("d.status <> ?", models.BillVoid)
	}
	tx = tx.Joins("JOIN categories c ON c.id = it.category_id")
	if rng != nil && !rng.All {
		tx = tx.Where("d.date BETWEEN ? AND ?", rng.Start, rng.End)
	}
	if asOf != nil {
		tx = tx.Where("d.date <= ?", *asOf)
	}
	var rows []itemRow
	if err := tx.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// openBalance sums what is still owed on non-void invoices or bills dated in
// the window, counting only payments whose transaction is dated by asOf.
func openBalance(db *gorm.DB, doc string, rng *Range, asOf *time.Time) (decimal.Decimal, error) {
	table, fk, void := "invoices", "invoice_id", string(models.InvoiceVoid)
	payments := "invoice_payments"
	if doc == "bill" {
		table, fk, void = "bills", "bill_id", string(models.BillVoid)
		payments = "bill_payments"
	}
	var docs []struct {
		ID    uint
		Total decimal.Decimal
	}
	q := db.Table(table).Select("id, total").Where("status <> ?", void)
	if rng != nil && !rng.All {
		q = q.Where("date BETWEEN ? AND ?", rng.Start, rng.End)
	}
	if asOf != nil {
		q = q.Where("date <= ?", *asOf)
	}
	if err := q.Scan(&docs).Error; err != nil {
		return decimal.Zero, err
	}
	if len(docs) == 0 {
		return decimal.Zero, nil
	}
	ids := make([]uint, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	var paid []struct {
		DocID  uint
		Amount decimal.Decimal
	}
	pq := db.Table(payments+" p").
		Select("p."+fk+" AS doc_id, p.amount").
		Joins("JOIN transactions t ON t.id = p.transaction_id").
		Where("p."+fk+" IN ?", ids)
	if asOf != nil {
		pq = pq.Where("t.date <= ?", *asOf)
	}
	if err := pq.Scan(&paid).Error; err != nil {
		return decimal.Zero, err
	}
	byDoc := make(map[uint]decimal.Decimal, len(paid))
	for _, p := range paid {
		byDoc[p.DocID] = byDoc[p.DocID].Add(p.Amount)
	}
	total := decimal.Zero
	for _, d := range docs {
		if rem := d.Total.Sub(byDoc[d.ID]); rem.IsPositive() {
			total = total.Add(rem)
		}
	}
	return total, nil
}

func label(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
