package matching

import (
	"context"
	"fmt"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceView adds the payment position to an invoice.
type InvoiceView struct {
	*models.Invoice
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

func newInvoiceView(inv *models.Invoice) *InvoiceView {
	return &InvoiceView{Invoice: inv, Paid: inv.PaidAmount(), Remaining: inv.Remaining()}
}

func loadInvoice(tx *gorm.DB, id uint, lock bool) (*models.Invoice, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inv models.Invoice
	if err := q.First(&inv, id).Error; err != nil {
		return nil, appErrors.TranslateDB(err, appErrors.ErrInvoiceNotFound)
	}
	if err := tx.Where("invoice_id = ?", inv.ID).Order("id").Find(&inv.Items).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	if err := tx.Where("invoice_id = ?", inv.ID).Order("id").Find(&inv.Payments).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return &inv, nil
}

func invoiceRef(inv *models.Invoice) docRef {
	ref := docRef{
		kind:      DocInvoice,
		id:        inv.ID,
		accountID: inv.AccountID,
		date:      inv.Date,
		remaining: inv.Remaining(),
		vendorID:  inv.CustomerID,
		void:      inv.Status == models.InvoiceVoid,
	}
	if len(inv.Items) > 0 {
		id := inv.Items[0].CategoryID
		ref.categoryID = &id
	}
	return ref
}

// refreshInvoiceStatus reloads payments and persists the derived status.
func refreshInvoiceStatus(tx *gorm.DB, inv *models.Invoice) error {
	inv.Payments = nil
	if err := tx.Where("invoice_id = ?", inv.ID).Order("id").Find(&inv.Payments).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	status := models.DeriveInvoiceStatus(inv.Status, inv.PaidAmount(), inv.Total)
	if status == inv.Status {
		return nil
	}
	if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("status", status).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	inv.Status = status
	return nil
}

// CreateInvoice records a customer invoice. Lines must use income
// categories; tax defaults to the flat configured rate.
func (s *Service) CreateInvoice(ctx context.Context, in DocumentInput) (*InvoiceView, error) {
	var inv *models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reasons, err := validateDocument(tx, DocInvoice, in, models.KindIncome)
		if err != nil {
			return err
		}
		if len(reasons) > 0 {
			return appErrors.NewValidationErrors(reasons)
		}
		customerID := in.CounterpartyID
		inv = &models.Invoice{
			Number:     documentNumber("INV", time.Now()),
			CustomerID: &customerID,
			AccountID:  in.AccountID,
			Date:       in.Date,
			DueDate:    in.DueDate,
			Status:     models.InvoiceStatus(in.initialStatus()),
			Notes:      in.Notes,
		}
		subtotal, taxTotal := decimal.Zero, decimal.Zero
		for _, item := range in.Items {
			amount := item.Amount.Round(2)
			tax := amount.Mul(s.TaxRate).Round(2)
			if item.Tax != nil {
				tax = item.Tax.Round(2)
			}
			inv.Items = append(inv.Items, models.InvoiceItem{
				CategoryID:  item.CategoryID,
				Description: item.Description,
				Amount:      amount,
				Tax:         tax,
				Total:       amount.Add(tax),
			})
			subtotal = subtotal.Add(amount)
			taxTotal = taxTotal.Add(tax)
		}
		inv.Subtotal = subtotal
		inv.Tax = taxTotal
		inv.Total = subtotal.Add(taxTotal)
		if err := tx.Omit("Customer").Create(inv).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().Uint("invoice_id", inv.ID).Str("number", inv.Number).Str("total", inv.Total.StringFixed(2)).Msg("invoice created")
	return newInvoiceView(inv), nil
}

func (s *Service) GetInvoice(ctx context.Context, id uint) (*InvoiceView, error) {
	inv, err := loadInvoice(s.DB.WithContext(ctx), id, false)
	if err != nil {
		return nil, err
	}
	return newInvoiceView(inv), nil
}

func (s *Service) ListInvoices(ctx context.Context, f DocumentFilter) ([]InvoiceView, error) {
	q := s.DB.WithContext(ctx).Model(&models.Invoice{}).Preload("Payments")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CounterpartyID != 0 {
		q = q.Where("customer_id = ?", f.CounterpartyID)
	}
	if f.Start != nil {
		q = q.Where("date >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("date <= ?", *f.End)
	}
	var invoices []models.Invoice
	if err := q.Order("date DESC, id DESC").Find(&invoices).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	out := make([]InvoiceView, len(invoices))
	for i := range invoices {
		out[i] = *newInvoiceView(&invoices[i])
	}
	return out, nil
}

// InvoiceCandidates lists deposits that could pay the invoice.
func (s *Service) InvoiceCandidates(ctx context.Context, invoiceID uint) (*Candidates, error) {
	inv, err := loadInvoice(s.DB.WithContext(ctx), invoiceID, false)
	if err != nil {
		return nil, err
	}
	return s.candidates(ctx, invoiceRef(inv))
}

// ApplyInvoice records payments against an invoice. Either every allocation
// is applied or none.
func (s *Service) ApplyInvoice(ctx context.Context, invoiceID uint, allocs []Allocation) (*InvoiceView, error) {
	var inv *models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inv, err = loadInvoice(tx, invoiceID, true); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, invoiceRef(inv), allocs); err != nil {
			return err
		}
		return refreshInvoiceStatus(tx, inv)
	})
	if err != nil {
		return nil, err
	}
	return newInvoiceView(inv), nil
}

// UnmatchInvoicePayment deletes one payment link and recomputes the
// invoice's status.
func (s *Service) UnmatchInvoicePayment(ctx context.Context, paymentID uint) (*InvoiceView, error) {
	var inv *models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.InvoicePayment
		if err := tx.First(&p, paymentID).Error; err != nil {
			return appErrors.TranslateDB(err, appErrors.ErrPaymentNotFound)
		}
		var err error
		if inv, err = loadInvoice(tx, p.InvoiceID, true); err != nil {
			return err
		}
		if err := tx.Delete(&p).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if err := s.detach(tx, invoiceRef(inv), p.TransactionID); err != nil {
			return err
		}
		return refreshInvoiceStatus(tx, inv)
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().Uint("invoice_id", inv.ID).Uint("payment_id", paymentID).Msg("invoice payment unmatched")
	return newInvoiceView(inv), nil
}

// SetInvoiceStatus handles the manual transitions: voiding, un-voiding and
// marking a draft as sent. Paid states are always derived.
func (s *Service) SetInvoiceStatus(ctx context.Context, id uint, status models.InvoiceStatus) (*InvoiceView, error) {
	var inv *models.Invoice
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if inv, err = loadInvoice(tx, id, true); err != nil {
			return err
		}
		next := inv.Status
		switch {
		case status == models.InvoiceVoid:
			next = models.InvoiceVoid
		case inv.Status == models.InvoiceVoid && status == models.InvoiceSent:
			next = models.DeriveInvoiceStatus(models.InvoiceSent, inv.PaidAmount(), inv.Total)
		case inv.Status == models.InvoiceDraft && status == models.InvoiceSent:
			next = models.InvoiceSent
		default:
			return appErrors.NewBusinessRuleError(fmt.Sprintf("Invoice status cannot change from %s to %s.", inv.Status, status))
		}
		if err := tx.Model(&models.Invoice{}).Where("id = ?", inv.ID).Update("status", next).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		inv.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newInvoiceView(inv), nil
}
