package controllers

import (
	"net/http"
	"strconv"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/matching"
	"bookkeeping/models"
)

type documentPayload struct {
	CounterpartyID uint                 `json:"counterpartyId"`
	AccountID      uint                 `json:"accountId"`
	Date           string               `json:"date"`
	DueDate        string               `json:"dueDate"`
	Notes          string               `json:"notes" validate:"max=1000"`
	Items          []matching.ItemInput `json:"items"`
	Status         string               `json:"status"`
}

// input converts the wire payload. Missing required fields are left zero so
// the service reports every problem at once.
func (p documentPayload) input() (matching.DocumentInput, error) {
	in := matching.DocumentInput{
		CounterpartyID: p.CounterpartyID,
		AccountID:      p.AccountID,
		Notes:          p.Notes,
		Items:          p.Items,
		Status:         p.Status,
	}
	if p.Date != "" {
		d, err := parseDate(p.Date)
		if err != nil {
			return in, appErrors.NewValidationError("date", "Invalid date.")
		}
		in.Date = d
	}
	due, err := optionalDate("dueDate", p.DueDate)
	if err != nil {
		return in, err
	}
	in.DueDate = due
	return in, nil
}

func documentFilter(r *http.Request) (matching.DocumentFilter, error) {
	q := r.URL.Query()
	f := matching.DocumentFilter{
		Status:         q.Get("status"),
		CounterpartyID: queryUint(r, "counterpartyId"),
	}
	var err error
	if f.Start, err = optionalDate("from", q.Get("from")); err != nil {
		return f, err
	}
	f.End, err = optionalDate("to", q.Get("to"))
	return f, err
}

type allocationPayload struct {
	Allocations []matching.Allocation `json:"allocations" validate:"required"`
}

func paymentID(r *http.Request) (uint, error) {
	n, err := strconv.ParseUint(r.PathValue("paymentId"), 10, 64)
	if err != nil || n == 0 {
		return 0, appErrors.NewValidationError("paymentId", "Invalid payment id.")
	}
	return uint(n), nil
}

type InvoiceController struct{ Matching *matching.Service }

func (c InvoiceController) CreateOrList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body documentPayload
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		in, err := body.input()
		if err != nil {
			writeError(w, r, err)
			return
		}
		inv, err := c.Matching.CreateInvoice(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	case http.MethodGet:
		f, err := documentFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := c.Matching.ListInvoices(r.Context(), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c InvoiceController) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := c.Matching.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (c InvoiceController) Candidates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := c.Matching.InvoiceCandidates(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (c InvoiceController) Apply(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body allocationPayload
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := c.Matching.ApplyInvoice(r.Context(), id, body.Allocations)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (c InvoiceController) Unmatch(w http.ResponseWriter, r *http.Request) {
	pid, err := paymentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := c.Matching.UnmatchInvoicePayment(r.Context(), pid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (c InvoiceController) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status models.InvoiceStatus `json:"status" validate:"required"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := c.Matching.SetInvoiceStatus(r.Context(), id, body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
