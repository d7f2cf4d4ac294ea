package matching

import (
	"errors"
	"fmt"
	"strings"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemInput is one line of a new invoice or bill. A nil Tax on an invoice
// line is computed from the configured rate.
type ItemInput struct {
	CategoryID  uint             `json:"categoryId"`
	Description string           `json:"description"`
	Amount      decimal.Decimal  `json:"amount"`
	Tax         *decimal.Decimal `json:"tax"`
}

// DocumentInput creates an invoice (CounterpartyID is the customer) or a bill
// (CounterpartyID is the vendor).
type DocumentInput struct {
	CounterpartyID uint        `json:"counterpartyId"`
	AccountID      uint        `json:"accountId"`
	Date           time.Time   `json:"date"`
	DueDate        *time.Time  `json:"dueDate"`
	Notes          string      `json:"notes"`
	Items          []ItemInput `json:"items"`
	// Status is the starting status: draft when empty, or the issued status
	// (sent for invoices, received for bills).
	Status string `json:"status"`
}

// initialStatus resolves the starting status of a new document.
func (in DocumentInput) initialStatus() string {
	if in.Status == "" {
		return "draft"
	}
	return in.Status
}

// DocumentFilter narrows invoice and bill listings.
type DocumentFilter struct {
	Status         string
	CounterpartyID uint
	Start          *time.Time
	End            *time.Time
}

func documentNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return fmt.Sprintf("%s%s-%s", prefix, now.Format("20060102"), suffix)
}

// validateDocument checks the header and lines and loads the line
// categories. allowed lists the category kinds the document type accepts.
func validateDocument(tx *gorm.DB, kind DocumentKind, in DocumentInput, allowed ...models.Kind) ([]string, error) {
	var reasons []string
	party, partyKind := "Customer", models.VendorPayer
	title, issued := "Invoice", string(models.InvoiceSent)
	if kind == DocBill {
		party, partyKind = "Vendor", models.VendorPayee
		title, issued = "Bill", string(models.BillReceived)
	}
	if s := in.initialStatus(); s != "draft" && s != issued {
		reasons = append(reasons, fmt.Sprintf("%s status must be draft or %s.", title, issued))
	}

	if in.CounterpartyID == 0 {
		reasons = append(reasons, party+" is required.")
	} else {
		var v models.Vendor
		err := tx.First(&v, in.CounterpartyID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			reasons = append(reasons, party+" does not exist.")
		case err != nil:
			return nil, appErrors.NewDatabaseError(err)
		case v.Kind != partyKind:
			reasons = append(reasons, fmt.Sprintf("%s must be a %s.", party, partyKind))
		}
	}
	if in.AccountID == 0 {
		reasons = append(reasons, "Account is required.")
	} else {
		var n int64
		if err := tx.Model(&models.Account{}).Where("id = ?", in.AccountID).Count(&n).Error; err != nil {
			return nil, appErrors.NewDatabaseError(err)
		}
		if n == 0 {
			reasons = append(reasons, "Account does not exist.")
		}
	}
	if in.Date.IsZero() {
		reasons = append(reasons, title+" date is required.")
	}
	if in.DueDate != nil && !in.Date.IsZero() && in.DueDate.Before(in.Date) {
		reasons = append(reasons, "Due date cannot be before the "+strings.ToLower(title)+" date.")
	}
	if len(in.Items) == 0 {
		reasons = append(reasons, "At least one line item is required.")
	}
	for i, item := range in.Items {
		line := fmt.Sprintf("Line %d: ", i+1)
		if !item.Amount.IsPositive() {
			reasons = append(reasons, line+"Line item amount is invalid.")
		}
		if item.Tax != nil && item.Tax.IsNegative() {
			reasons = append(reasons, line+"Line item tax is invalid.")
		}
		if item.CategoryID == 0 {
			reasons = append(reasons, line+"Line item category is required.")
			continue
		}
		var c models.Category
		if err := tx.First(&c, item.CategoryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				reasons = append(reasons, line+"Line item category does not exist.")
				continue
			}
			return nil, appErrors.NewDatabaseError(err)
		}
		if !kindIn(c.Kind, allowed) {
			reasons = append(reasons, fmt.Sprintf("%sCategory %q cannot be used on a %s.", line, c.Name, strings.ToLower(title)))
		}
	}
	return reasons, nil
}

func kindIn(k models.Kind, kinds []models.Kind) bool {
	for _, v := range kinds {
		if v == k {
			return true
		}
	}
	return false
}
