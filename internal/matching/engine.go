package matching

import (
	"context"
	"fmt"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// docRef is the part of an invoice or bill the engine works with.
type docRef struct {
	kind       DocumentKind
	id         uint
	accountID  uint
	date       time.Time
	remaining  decimal.Decimal
	vendorID   *uint
	categoryID *uint
	void       bool
}

func (d docRef) label() string { return string(d.kind) }

// income reports whether the document collects money in.
func (d docRef) income() bool { return d.kind == DocInvoice }

func (d docRef) paymentModel() any {
	if d.income() {
		return &models.InvoicePayment{}
	}
	return &models.BillPayment{}
}

func (d docRef) docColumn() string {
	if d.income() {
		return "invoice_id"
	}
	return "bill_id"
}

func (d docRef) signOK(amount decimal.Decimal) bool {
	if d.income() {
		return amount.IsPositive()
	}
	return amount.IsNegative()
}

func (d docRef) newPayment(txnID uint, amount decimal.Decimal) any {
	if d.income() {
		return &models.InvoicePayment{InvoiceID: d.id, TransactionID: txnID, Amount: amount}
	}
	return &models.BillPayment{BillID: d.id, TransactionID: txnID, Amount: amount}
}

func (s *Service) candidates(ctx context.Context, d docRef) (*Candidates, error) {
	db := s.DB.WithContext(ctx)
	linked := db.Model(d.paymentModel()).Select("transaction_id")
	base := db.Model(&models.Transaction{}).
		Where("account_id = ?", d.accountID).
		Where("is_locked = ? AND transfer_group_id IS NULL", false).
		Where("date BETWEEN ? AND ?", d.date.AddDate(0, 0, -MatchWindowDays), d.date.AddDate(0, 0, MatchWindowDays)).
		Where("id NOT IN (?)", linked)
	if d.income() {
		base = base.Where("amount > 0")
	} else {
		base = base.Where("amount < 0")
	}

	out := &Candidates{
		Remaining:   d.remaining,
		BestMatches: make([]models.Transaction, 0),
		Others:      make([]models.Transaction, 0),
	}
	if d.remaining.IsPositive() {
		q := base.Session(&gorm.Session{})
		if d.income() {
			q = q.Where("amount >= ?", d.remaining)
		} else {
			q = q.Where("amount <= ?", d.remaining.Neg())
		}
		if err := q.Order("date DESC, id DESC").Limit(bestMatchLimit).Find(&out.BestMatches).Error; err != nil {
			return nil, appErrors.NewDatabaseError(err)
		}
	}
	q := base.Session(&gorm.Session{})
	if len(out.BestMatches) > 0 {
		ids := make([]uint, len(out.BestMatches))
		for i, t := range out.BestMatches {
			ids[i] = t.ID
		}
		q = q.Where("id NOT IN ?", ids)
	}
	if err := q.Order("date DESC, id DESC").Limit(otherMatchLimit).Find(&out.Others).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return out, nil
}

// drawn sums the payments of the document's kind on a transaction, excluding
// the given document.
func drawn(tx *gorm.DB, d docRef, txnID uint) (decimal.Decimal, bool, error) {
	var rows []struct {
		DocID  uint
		Amount decimal.Decimal
	}
	err := tx.Model(d.paymentModel()).
		Select(d.docColumn()+" AS doc_id, amount").
		Where("transaction_id = ?", txnID).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, false, appErrors.NewDatabaseError(err)
	}
	total := decimal.Zero
	same := false
	for _, r := range rows {
		if r.DocID == d.id {
			same = true
			continue
		}
		total = total.Add(r.Amount)
	}
	return total, same, nil
}

func roundAllocations(allocs []Allocation) []Allocation {
	out := make([]Allocation, len(allocs))
	for i, a := range allocs {
		a.Amount = a.Amount.Round(2)
		out[i] = a
	}
	return out
}

// apply validates every allocation before writing any of them. Callers run it
// inside a transaction that already holds the document's row lock.
func (s *Service) apply(ctx context.Context, tx *gorm.DB, d docRef, allocs []Allocation) error {
	// amounts are stored to the cent, so every check runs on the rounded value
	allocs = roundAllocations(allocs)
	var reasons []string
	if len(allocs) == 0 {
		reasons = append(reasons, "Select at least one transaction to match.")
	}
	if d.void {
		reasons = append(reasons, fmt.Sprintf("Void %ss cannot be matched.", d.label()))
	}
	ids := make([]uint, 0, len(allocs))
	seen := map[uint]bool{}
	total := decimal.Zero
	for _, a := range allocs {
		if !a.Amount.IsPositive() {
			reasons = append(reasons, "Matched amount must be greater than zero.")
			continue
		}
		if seen[a.TransactionID] {
			reasons = append(reasons, fmt.Sprintf("Transaction %d selected more than once.", a.TransactionID))
			continue
		}
		seen[a.TransactionID] = true
		ids = append(ids, a.TransactionID)
		total = total.Add(a.Amount)
	}
	if total.GreaterThan(d.remaining) {
		reasons = append(reasons, fmt.Sprintf("Total matched %s exceeds %s remaining %s.",
			total.StringFixed(2), d.label(), d.remaining.StringFixed(2)))
	}
	if len(reasons) > 0 {
		return appErrors.NewBusinessRuleError(reasons...)
	}

	txns, err := ledger.LockTransactions(tx, ids...)
	if err != nil {
		return err
	}
	for _, a := range allocs {
		t := txns[a.TransactionID]
		if t.AccountID != d.accountID {
			reasons = append(reasons, fmt.Sprintf("Transaction %d: account mismatch.", t.ID))
		}
		if !d.signOK(t.Amount) {
			if d.income() {
				reasons = append(reasons, fmt.Sprintf("Transaction %d must be income.", t.ID))
			} else {
				reasons = append(reasons, fmt.Sprintf("Transaction %d must be an expense.", t.ID))
			}
		}
		if t.IsLocked {
			reasons = append(reasons, fmt.Sprintf("Transaction %d is locked.", t.ID))
		}
		other, same, err := drawn(tx, d, t.ID)
		if err != nil {
			return err
		}
		if same {
			reasons = append(reasons, fmt.Sprintf("Transaction %d is already matched to this %s.", t.ID, d.label()))
		}
		if a.Amount.GreaterThan(t.Amount.Abs().Sub(other)) {
			reasons = append(reasons, fmt.Sprintf("Matched amount exceeds transaction %d.", t.ID))
		}
	}
	if len(reasons) > 0 {
		return appErrors.NewBusinessRuleError(reasons...)
	}

	var category *models.Category
	if d.categoryID != nil {
		category = &models.Category{}
		if err := tx.First(category, *d.categoryID).Error; err != nil {
			return appErrors.TranslateDB(err, appErrors.ErrCategoryNotFound)
		}
	}
	for _, a := range allocs {
		t := txns[a.TransactionID]
		if err := tx.Create(d.newPayment(t.ID, a.Amount)).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		cols := []string{}
		if category != nil {
			t.ApplyCategory(category)
			cols = append(cols, "category_id", "kind")
		}
		if d.vendorID != nil {
			t.VendorID = d.vendorID
			cols = append(cols, "vendor_id")
		}
		if len(cols) > 0 {
			if err := ledger.SaveColumns(tx, t, cols...); err != nil {
				return err
			}
		}
	}
	logger.FromContext(ctx).Info().
		Str("document", d.label()).
		Uint("document_id", d.id).
		Int("allocations", len(allocs)).
		Str("amount", total.StringFixed(2)).
		Msg("payments matched")
	return nil
}

// detach removes one payment link. Once a transaction has no links of the
// kind left it falls back to the uncategorized category for its sign.
func (s *Service) detach(tx *gorm.DB, d docRef, txnID uint) error {
	var left int64
	if err := tx.Model(d.paymentModel()).Where("transaction_id = ?", txnID).Count(&left).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	if left > 0 {
		return nil
	}
	t, err := ledger.LoadTransaction(tx, txnID, true)
	if err != nil {
		return err
	}
	if t.IsTransfer() {
		return nil
	}
	var fallback models.Category
	if err := tx.First(&fallback, s.System.Uncategorized(t.Amount)).Error; err != nil {
		return appErrors.TranslateDB(err, appErrors.ErrCategoryNotFound)
	}
	t.ApplyCategory(&fallback)
	t.VendorID = nil
	return ledger.SaveColumns(tx, t, "category_id", "kind", "vendor_id")
}
