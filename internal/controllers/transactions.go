package controllers

import (
	"net/http"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/ledger"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
)

type TransactionController struct{ Ledger *ledger.Service }

type transactionBody struct {
	Date        string          `json:"date" validate:"required"`
	AccountID   uint            `json:"accountId" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	CategoryID  *uint           `json:"categoryId"`
	VendorID    *uint           `json:"vendorId"`
	Payee       string          `json:"payee" validate:"max=255"`
	Description string          `json:"description" validate:"max=500"`
}

func (c TransactionController) CreateOrList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body transactionBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		date, err := parseDate(body.Date)
		if err != nil {
			writeError(w, r, appErrors.NewValidationError("date", "Invalid date."))
			return
		}
		txn := &models.Transaction{
			Date:        date,
			AccountID:   body.AccountID,
			Amount:      body.Amount,
			CategoryID:  body.CategoryID,
			VendorID:    body.VendorID,
			Payee:       body.Payee,
			Description: body.Description,
		}
		if err := c.Ledger.SaveTransaction(r.Context(), txn); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, txn)
	case http.MethodGet:
		q := r.URL.Query()
		start, err := optionalDate("from", q.Get("from"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		end, err := optionalDate("to", q.Get("to"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		page, err := c.Ledger.ListTransactions(r.Context(), ledger.TransactionFilter{
			AccountID:     queryUint(r, "accountId"),
			CategoryID:    queryUint(r, "categoryId"),
			Kind:          models.Kind(q.Get("kind")),
			Start:         start,
			End:           end,
			Search:        q.Get("q"),
			Uncategorized: queryBool(r, "uncategorized"),
			Limit:         queryInt(r, "limit"),
			Offset:        queryInt(r, "offset"),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c TransactionController) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := c.Ledger.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (c TransactionController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Date        *string          `json:"date"`
		Amount      *decimal.Decimal `json:"amount"`
		AccountID   *uint            `json:"accountId"`
		CategoryID  *uint            `json:"categoryId"`
		VendorID    *uint            `json:"vendorId"`
		Payee       *string          `json:"payee"`
		Description *string          `json:"description"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	u := ledger.TransactionUpdate{
		Amount:      body.Amount,
		AccountID:   body.AccountID,
		CategoryID:  body.CategoryID,
		VendorID:    body.VendorID,
		Payee:       body.Payee,
		Description: body.Description,
	}
	if body.Date != nil {
		d, err := parseDate(*body.Date)
		if err != nil {
			writeError(w, r, appErrors.NewValidationError("date", "Invalid date."))
			return
		}
		u.Date = &d
	}
	txn, err := c.Ledger.UpdateTransaction(r.Context(), id, u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txn)
}

func (c TransactionController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkCategorize files many transactions under one category.
func (c TransactionController) BulkCategorize(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TransactionIDs []uint `json:"transactionIds" validate:"required,min=1"`
		CategoryID     uint   `json:"categoryId" validate:"required"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	n, err := c.Ledger.BulkCategorize(r.Context(), body.TransactionIDs, body.CategoryID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "updated": n})
}
