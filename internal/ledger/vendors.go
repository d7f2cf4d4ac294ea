package ledger

import (
	"context"
	"strings"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/models"
)

func (s *Service) CreateVendor(ctx context.Context, v *models.Vendor) error {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return appErrors.NewValidationError("name", "Vendor name is required.")
	}
	if v.Kind != models.VendorPayer && v.Kind != models.VendorPayee {
		return appErrors.NewValidationError("kind", "Vendor kind must be payer or payee.")
	}
	db := s.DB.WithContext(ctx)
	var n int64
	if err := db.Model(&models.Vendor{}).Where("name = ? AND kind = ?", v.Name, v.Kind).Count(&n).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	if n > 0 {
		return appErrors.NewValidationError("name", "A vendor with this name and kind already exists.")
	}
	if err := db.Create(v).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	return nil
}

func (s *Service) ListVendors(ctx context.Context, kind models.VendorKind) ([]models.Vendor, error) {
	q := s.DB.WithContext(ctx).Order("name")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	out := make([]models.Vendor, 0)
	if err := q.Find(&out).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return out, nil
}
