package matching_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/matching"
	"bookkeeping/internal/testutil"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reasons(t *testing.T, err error) []string {
	t.Helper()
	appErr, ok := appErrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.NotEmpty(t, appErr.Reasons)
	return appErr.Reasons
}

func containsReason(list []string, fragment string) bool {
	for _, r := range list {
		if strings.Contains(r, fragment) {
			return true
		}
	}
	return false
}

type fixture struct {
	db       *testutil.DB
	svc      *matching.Service
	account  *models.Account
	customer *models.Vendor
	supplier *models.Vendor
	sales    *models.Category
	rent     *models.Category
}

func newFixture(t *testing.T, taxRate string) fixture {
	db := testutil.NewDB(t)
	return fixture{
		db:       db,
		svc:      matching.NewService(db.DB, db.System, testutil.Dec(taxRate)),
		account:  db.Account(t, "Operating", models.AccountChecking),
		customer: db.Vendor(t, "Acme", models.VendorPayer),
		supplier: db.Vendor(t, "Landlord", models.VendorPayee),
		sales:    db.Category(t, "Sales", models.KindIncome),
		rent:     db.Category(t, "Rent", models.KindExpense),
	}
}

func (f fixture) invoice(t *testing.T, amount, date string) *matching.InvoiceView {
	t.Helper()
	inv, err := f.svc.CreateInvoice(context.Background(), matching.DocumentInput{
		CounterpartyID: f.customer.ID,
		AccountID:      f.account.ID,
		Date:           testutil.Date(date),
		Items:          []matching.ItemInput{{CategoryID: f.sales.ID, Description: "Consulting", Amount: testutil.Dec(amount)}},
	})
	require.NoError(t, err)
	return inv
}

func (f fixture) bill(t *testing.T, amount, date string) *matching.BillView {
	t.Helper()
	b, err := f.svc.CreateBill(context.Background(), matching.DocumentInput{
		CounterpartyID: f.supplier.ID,
		AccountID:      f.account.ID,
		Date:           testutil.Date(date),
		Items:          []matching.ItemInput{{CategoryID: f.rent.ID, Description: "March rent", Amount: testutil.Dec(amount)}},
	})
	require.NoError(t, err)
	return b
}

func alloc(id uint, amount string) matching.Allocation {
	return matching.Allocation{TransactionID: id, Amount: testutil.Dec(amount)}
}

func TestCreateInvoiceComputesTax(t *testing.T) {
	f := newFixture(t, "0.10")
	inv := f.invoice(t, "100.00", "2024-04-01")

	assert.True(t, strings.HasPrefix(inv.Number, "INV"))
	assert.Equal(t, models.InvoiceDraft, inv.Status)
	assert.Equal(t, "10.00", inv.Tax.StringFixed(2))
	assert.Equal(t, "110.00", inv.Total.StringFixed(2))
	require.Len(t, inv.Items, 1)
	assert.Equal(t, "110.00", inv.Items[0].Total.StringFixed(2))
	assert.Equal(t, "110.00", inv.Remaining.StringFixed(2))
}

func TestCreateDocumentValidation(t *testing.T) {
	f := newFixture(t, "0")
	_, err := f.svc.CreateInvoice(context.Background(), matching.DocumentInput{
		CounterpartyID: f.supplier.ID,
		Items:          []matching.ItemInput{{CategoryID: f.rent.ID, Amount: decimal.Zero}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	r := reasons(t, err)
	assert.Contains(t, r, "Customer must be a payer.")
	assert.Contains(t, r, "Account is required.")
	assert.Contains(t, r, "Invoice date is required.")
	assert.True(t, containsReason(r, "Line item amount is invalid."))
	assert.True(t, containsReason(r, `Category "Rent" cannot be used on a invoice.`))

	_, err = f.svc.CreateBill(context.Background(), matching.DocumentInput{AccountID: f.account.ID, Date: testutil.Date("2024-01-01")})
	r = reasons(t, err)
	assert.Contains(t, r, "Vendor is required.")
	assert.Contains(t, r, "At least one line item is required.")
}

func TestApplyInvoicePartialThenOverflow(t *testing.T) {
	f := newFixture(t, "0")
	inv := f.invoice(t, "100.00", "2024-04-01")
	first := f.db.Txn(t, f.account.ID, "25.00", "2024-04-05")
	second := f.db.Txn(t, f.account.ID, "80.00", "2024-04-06")

	got, err := f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(first.ID, "25.00")})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartiallyPaid, got.Status)
	assert.Equal(t, "75.00", got.Remaining.StringFixed(2))

	txn := f.db.Reload(t, first.ID)
	require.NotNil(t, txn.CategoryID)
	assert.Equal(t, f.sales.ID, *txn.CategoryID)
	assert.Equal(t, models.KindIncome, txn.Kind)
	require.NotNil(t, txn.VendorID)
	assert.Equal(t, f.customer.ID, *txn.VendorID)

	_, err = f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(second.ID, "80.00")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrBusinessRule))
	assert.True(t, containsReason(reasons(t, err), "exceeds invoice remaining 75.00"))

	after, err := f.svc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Len(t, after.Payments, 1)
	assert.Equal(t, models.InvoicePartiallyPaid, after.Status)
	assert.Nil(t, f.db.Reload(t, second.ID).CategoryID)

	got, err = f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(second.ID, "75.00")})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, got.Status)
	assert.True(t, got.Remaining.IsZero())
}

func TestApplyRejectsBadAllocations(t *testing.T) {
	f := newFixture(t, "0")
	inv := f.invoice(t, "100.00", "2024-04-01")
	other := f.db.Account(t, "Savings", models.AccountSavings)
	withdrawal := f.db.Txn(t, f.account.ID, "-30.00", "2024-04-02")
	elsewhere := f.db.Txn(t, other.ID, "30.00", "2024-04-02")
	small := f.db.Txn(t, f.account.ID, "10.00", "2024-04-02")

	_, err := f.svc.ApplyInvoice(context.Background(), inv.ID, nil)
	assert.Contains(t, reasons(t, err), "Select at least one transaction to match.")

	_, err = f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(small.ID, "0")})
	assert.Contains(t, reasons(t, err), "Matched amount must be greater than zero.")

	_, err = f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{
		alloc(withdrawal.ID, "30.00"),
		alloc(elsewhere.ID, "30.00"),
		alloc(small.ID, "20.00"),
	})
	r := reasons(t, err)
	assert.True(t, containsReason(r, "must be income"))
	assert.True(t, containsReason(r, "account mismatch"))
	assert.True(t, containsReason(r, "Matched amount exceeds transaction"))

	var n int64
	f.db.Model(&models.InvoicePayment{}).Count(&n)
	assert.Zero(t, n)
}

func TestTransactionSplitAcrossInvoices(t *testing.T) {
	f := newFixture(t, "0")
	a := f.invoice(t, "60.00", "2024-04-01")
	b := f.invoice(t, "60.00", "2024-04-01")
	deposit := f.db.Txn(t, f.account.ID, "100.00", "2024-04-03")

	_, err := f.svc.ApplyInvoice(context.Background(), a.ID, []matching.Allocation{alloc(deposit.ID, "60.00")})
	require.NoError(t, err)

	_, err = f.svc.ApplyInvoice(context.Background(), a.ID, []matching.Allocation{alloc(deposit.ID, "0.01")})
	require.Error(t, err)

	_, err = f.svc.ApplyInvoice(context.Background(), b.ID, []matching.Allocation{alloc(deposit.ID, "50.00")})
	assert.True(t, containsReason(reasons(t, err), "Matched amount exceeds transaction"))

	got, err := f.svc.ApplyInvoice(context.Background(), b.ID, []matching.Allocation{alloc(deposit.ID, "40.00")})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartiallyPaid, got.Status)
}

func TestUnmatchResetsTransaction(t *testing.T) {
	f := newFixture(t, "0")
	inv := f.invoice(t, "50.00", "2024-04-01")
	deposit := f.db.Txn(t, f.account.ID, "50.00", "2024-04-02")

	got, err := f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(deposit.ID, "50.00")})
	require.NoError(t, err)
	require.Equal(t, models.InvoicePaid, got.Status)
	require.Len(t, got.Payments, 1)

	got, err = f.svc.UnmatchInvoicePayment(context.Background(), got.Payments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, got.Status)

	txn := f.db.Reload(t, deposit.ID)
	require.NotNil(t, txn.CategoryID)
	assert.Equal(t, f.db.System.UncategorizedIncome, *txn.CategoryID)
	assert.Equal(t, models.KindIncome, txn.Kind)
	assert.Nil(t, txn.VendorID)

	_, err = f.svc.UnmatchInvoicePayment(context.Background(), got.ID+999)
	assert.True(t, errors.Is(err, appErrors.ErrPaymentNotFound))
}

func TestInvoiceCandidates(t *testing.T) {
	f := newFixture(t, "0")
	inv := f.invoice(t, "100.00", "2024-04-01")
	big := f.db.Txn(t, f.account.ID, "150.00", "2024-04-10")
	exact := f.db.Txn(t, f.account.ID, "100.00", "2024-04-02")
	partial := f.db.Txn(t, f.account.ID, "40.00", "2024-04-03")
	f.db.Txn(t, f.account.ID, "-100.00", "2024-04-03")
	f.db.Txn(t, f.account.ID, "100.00", "2024-06-01")

	c, err := f.svc.InvoiceCandidates(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, c.BestMatches, 2)
	assert.Equal(t, big.ID, c.BestMatches[0].ID)
	assert.Equal(t, exact.ID, c.BestMatches[1].ID)
	require.Len(t, c.Others, 1)
	assert.Equal(t, partial.ID, c.Others[0].ID)

	_, err = f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(partial.ID, "40.00")})
	require.NoError(t, err)
	c, err = f.svc.InvoiceCandidates(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Empty(t, c.Others)
	assert.Len(t, c.BestMatches, 2)
}

func TestBillMatching(t *testing.T) {
	f := newFixture(t, "0.10")
	b := f.bill(t, "1200.00", "2024-03-01")
	assert.True(t, strings.HasPrefix(b.Number, "BILL"))
	assert.Equal(t, models.BillDraft, b.Status)
	assert.Equal(t, "1200.00", b.Total.StringFixed(2))

	deposit := f.db.Txn(t, f.account.ID, "1200.00", "2024-03-02")
	_, err := f.svc.ApplyBill(context.Background(), b.ID, []matching.Allocation{alloc(deposit.ID, "1200.00")})
	assert.True(t, containsReason(reasons(t, err), "must be an expense"))

	payment := f.db.Txn(t, f.account.ID, "-1200.00", "2024-03-02")
	c, err := f.svc.BillCandidates(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, c.BestMatches, 1)
	assert.Equal(t, payment.ID, c.BestMatches[0].ID)

	got, err := f.svc.ApplyBill(context.Background(), b.ID, []matching.Allocation{alloc(payment.ID, "1200.00")})
	require.NoError(t, err)
	assert.Equal(t, models.BillPaid, got.Status)

	txn := f.db.Reload(t, payment.ID)
	assert.Equal(t, models.KindExpense, txn.Kind)
	require.NotNil(t, txn.CategoryID)
	assert.Equal(t, f.rent.ID, *txn.CategoryID)

	got, err = f.svc.UnmatchBillPayment(context.Background(), got.Payments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.BillPaid, got.Status, "bill status is unchanged once no payments remain")
	txn = f.db.Reload(t, payment.ID)
	assert.Equal(t, f.db.System.UncategorizedExpense, *txn.CategoryID)
}

func TestVoidAndRestore(t *testing.T) {
	f := newFixture(t, "0")
	inv := f.invoice(t, "40.00", "2024-04-01")
	deposit := f.db.Txn(t, f.account.ID, "40.00", "2024-04-02")

	got, err := f.svc.SetInvoiceStatus(context.Background(), inv.ID, models.InvoiceVoid)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceVoid, got.Status)

	_, err = f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(deposit.ID, "40.00")})
	assert.Contains(t, reasons(t, err), "Void invoices cannot be matched.")

	got, err = f.svc.SetInvoiceStatus(context.Background(), inv.ID, models.InvoiceSent)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, got.Status)

	_, err = f.svc.SetInvoiceStatus(context.Background(), inv.ID, models.InvoicePaid)
	assert.True(t, errors.Is(err, appErrors.ErrBusinessRule))
}

func TestApplyRoundsBeforeChecking(t *testing.T) {
	f := newFixture(t, "0")
	inv := f.invoice(t, "100.00", "2024-04-01")
	deposit := f.db.Txn(t, f.account.ID, "10.00", "2024-04-02")

	_, err := f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(deposit.ID, "0.004")})
	assert.Contains(t, reasons(t, err), "Matched amount must be greater than zero.")

	var n int64
	f.db.Model(&models.InvoicePayment{}).Count(&n)
	assert.Zero(t, n)
	txn := f.db.Reload(t, deposit.ID)
	assert.Nil(t, txn.CategoryID)
	assert.Nil(t, txn.VendorID)

	got, err := f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(deposit.ID, "9.996")})
	require.NoError(t, err)
	require.Len(t, got.Payments, 1)
	assert.Equal(t, "10.00", got.Payments[0].Amount.StringFixed(2))
	assert.Equal(t, "90.00", got.Remaining.StringFixed(2))
}

func TestCandidatesSkipLockedAndTransfers(t *testing.T) {
	f := newFixture(t, "0")
	inv := f.invoice(t, "100.00", "2024-04-01")
	open := f.db.Txn(t, f.account.ID, "100.00", "2024-04-02")

	group := &models.TransferGroup{Reference: "TRF-TEST"}
	require.NoError(t, f.db.Create(group).Error)
	paired := f.db.Txn(t, f.account.ID, "100.00", "2024-04-03")
	require.NoError(t, f.db.Model(paired).Updates(map[string]any{
		"transfer_group_id": group.ID, "is_locked": true, "kind": models.KindTransfer,
	}).Error)

	locked := f.db.Txn(t, f.account.ID, "100.00", "2024-04-04")
	require.NoError(t, f.db.Model(locked).Update("is_locked", true).Error)
	lockedSmall := f.db.Txn(t, f.account.ID, "20.00", "2024-04-04")
	require.NoError(t, f.db.Model(lockedSmall).Update("is_locked", true).Error)

	c, err := f.svc.InvoiceCandidates(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Len(t, c.BestMatches, 1)
	assert.Equal(t, open.ID, c.BestMatches[0].ID)
	assert.Empty(t, c.Others)

	_, err = f.svc.ApplyInvoice(context.Background(), inv.ID, []matching.Allocation{alloc(locked.ID, "100.00")})
	assert.Contains(t, reasons(t, err), fmt.Sprintf("Transaction %d is locked.", locked.ID))
}

func TestDocumentStartingStatus(t *testing.T) {
	f := newFixture(t, "0")
	ctx := context.Background()
	input := func(party uint, category uint, status string) matching.DocumentInput {
		return matching.DocumentInput{
			CounterpartyID: party,
			AccountID:      f.account.ID,
			Date:           testutil.Date("2024-04-01"),
			Items:          []matching.ItemInput{{CategoryID: category, Amount: testutil.Dec("10.00")}},
			Status:         status,
		}
	}

	inv, err := f.svc.CreateInvoice(ctx, input(f.customer.ID, f.sales.ID, "sent"))
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceSent, inv.Status)

	_, err = f.svc.CreateInvoice(ctx, input(f.customer.ID, f.sales.ID, "paid"))
	assert.Contains(t, reasons(t, err), "Invoice status must be draft or sent.")

	b, err := f.svc.CreateBill(ctx, input(f.supplier.ID, f.rent.ID, ""))
	require.NoError(t, err)
	assert.Equal(t, models.BillDraft, b.Status)

	b, err = f.svc.CreateBill(ctx, input(f.supplier.ID, f.rent.ID, "received"))
	require.NoError(t, err)
	assert.Equal(t, models.BillReceived, b.Status)

	_, err = f.svc.CreateBill(ctx, input(f.supplier.ID, f.rent.ID, "sent"))
	assert.Contains(t, reasons(t, err), "Bill status must be draft or received.")

	draft := f.invoice(t, "50.00", "2024-04-01")
	deposit := f.db.Txn(t, f.account.ID, "20.00", "2024-04-02")
	got, err := f.svc.ApplyInvoice(ctx, draft.ID, []matching.Allocation{alloc(deposit.ID, "20.00")})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartiallyPaid, got.Status)
}
