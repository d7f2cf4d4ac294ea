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

var billCategoryKinds = []models.Kind{models.KindExpense, models.KindCOGS, models.KindPayroll}

type BillView struct {
	*models.Bill
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

func newBillView(b *models.Bill) *BillView {
	return &BillView{Bill: b, Paid: b.PaidAmount(), Remaining: b.Remaining()}
}

func loadBill(tx *gorm.DB, id uint, lock bool) (*models.Bill, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var b models.Bill
	if err := q.First(&b, id).Error; err != nil {
		return nil, appErrors.TranslateDB(err, appErrors.ErrBillNotFound)
	}
	if err := tx.Where("bill_id = ?", b.ID).Order("id").Find(&b.Items).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	if err := tx.Where("bill_id = ?", b.ID).Order("id").Find(&b.Payments).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return &b, nil
}

func billRef(b *models.Bill) docRef {
	ref := docRef{
		kind:      DocBill,
		id:        b.ID,
		accountID: b.AccountID,
		date:      b.Date,
		remaining: b.Remaining(),
		vendorID:  b.VendorID,
		void:      b.Status == models.BillVoid,
	}
	if len(b.Items) > 0 {
		id := b.Items[0].CategoryID
		ref.categoryID = &id
	}
	return ref
}

func refreshBillStatus(tx *gorm.DB, b *models.Bill) error {
	b.Payments = nil
	if err := tx.Where("bill_id = ?", b.ID).Order("id").Find(&b.Payments).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	status := models.DeriveBillStatus(b.Status, b.PaidAmount(), b.Total)
	if status == b.Status {
		return nil
	}
	if err := tx.Model(&models.Bill{}).Where("id = ?", b.ID).Update("status", status).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	b.Status = status
	return nil
}

// CreateBill records a supplier bill. Bills carry no tax of their own.
func (s *Service) CreateBill(ctx context.Context, in DocumentInput) (*BillView, error) {
	var b *models.Bill
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reasons, err := validateDocument(tx, DocBill, in, billCategoryKinds...)
		if err != nil {
			return err
		}
		if len(reasons) > 0 {
			return appErrors.NewValidationErrors(reasons)
		}
		vendorID := in.CounterpartyID
		b = &models.Bill{
			Number:    documentNumber("BILL", time.Now()),
			VendorID:  &vendorID,
			AccountID: in.AccountID,
			Date:      in.Date,
			DueDate:   in.DueDate,
			Status:    models.BillStatus(in.initialStatus()),
			Notes:     in.Notes,
		}
		total := decimal.Zero
		for _, item := range in.Items {
			amount := item.Amount.Round(2)
			b.Items = append(b.Items, models.BillItem{
				CategoryID:  item.CategoryID,
				Description: item.Description,
				Amount:      amount,
				Total:       amount,
			})
			total = total.Add(amount)
		}
		b.Total = total
		if err := tx.Omit("Vendor").Create(b).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().Uint("bill_id", b.ID).Str("number", b.Number).Str("total", b.Total.StringFixed(2)).Msg("bill created")
	return newBillView(b), nil
}

func (s *Service) GetBill(ctx context.Context, id uint) (*BillView, error) {
	b, err := loadBill(s.DB.WithContext(ctx), id, false)
	if err != nil {
		return nil, err
	}
	return newBillView(b), nil
}

func (s *Service) ListBills(ctx context.Context, f DocumentFilter) ([]BillView, error) {
	q := s.DB.WithContext(ctx).Model(&models.Bill{}).Preload("Payments")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CounterpartyID != 0 {
		q = q.Where("vendor_id = ?", f.CounterpartyID)
	}
	if f.Start != nil {
		q = q.Where("date >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("date <= ?", *f.End)
	}
	var bills []models.Bill
	if err := q.Order("date DESC, id DESC").Find(&bills).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	out := make([]BillView, len(bills))
	for i := range bills {
		out[i] = *newBillView(&bills[i])
	}
	return out, nil
}

// BillCandidates lists withdrawals that could pay the bill.
func (s *Service) BillCandidates(ctx context.Context, billID uint) (*Candidates, error) {
	b, err := loadBill(s.DB.WithContext(ctx), billID, false)
	if err != nil {
		return nil, err
	}
	return s.candidates(ctx, billRef(b))
}

func (s *Service) ApplyBill(ctx context.Context, billID uint, allocs []Allocation) (*BillView, error) {
	var b *models.Bill
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if b, err = loadBill(tx, billID, true); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, billRef(b), allocs); err != nil {
			return err
		}
		return refreshBillStatus(tx, b)
	})
	if err != nil {
		return nil, err
	}
	return newBillView(b), nil
}

func (s *Service) UnmatchBillPayment(ctx context.Context, paymentID uint) (*BillView, error) {
	var b *models.Bill
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.BillPayment
		if err := tx.First(&p, paymentID).Error; err != nil {
			return appErrors.TranslateDB(err, appErrors.ErrPaymentNotFound)
		}
		var err error
		if b, err = loadBill(tx, p.BillID, true); err != nil {
			return err
		}
		if err := tx.Delete(&p).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if err := s.detach(tx, billRef(b), p.TransactionID); err != nil {
			return err
		}
		return refreshBillStatus(tx, b)
	})
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info().Uint("bill_id", b.ID).Uint("payment_id", paymentID).Msg("bill payment unmatched")
	return newBillView(b), nil
}

// SetBillStatus voids or restores a bill. Restoring keeps the derived payment
// state.
func (s *Service) SetBillStatus(ctx context.Context, id uint, status models.BillStatus) (*BillView, error) {
	var b *models.Bill
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if b, err = loadBill(tx, id, true); err != nil {
			return err
		}
		next := b.Status
		switch {
		case status == models.BillVoid:
			next = models.BillVoid
		case b.Status == models.BillVoid && status == models.BillReceived:
			next = models.DeriveBillStatus(models.BillReceived, b.PaidAmount(), b.Total)
		case b.Status == models.BillDraft && status == models.BillReceived:
			next = models.BillReceived
		default:
			return appErrors.NewBusinessRuleError(fmt.Sprintf("Bill status cannot change from %s to %s.", b.Status, status))
		}
		if err := tx.Model(&models.Bill{}).Where("id = ?", b.ID).Update("status", next).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		b.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newBillView(b), nil
}
