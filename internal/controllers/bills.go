package controllers

import (
	"net/http"

	"bookkeeping/internal/matching"
	"bookkeeping/models"
)

type BillController struct{ Matching *matching.Service }

func (c BillController) CreateOrList(w http.ResponseWriter, r *http.Request) {
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
		bill, err := c.Matching.CreateBill(r.Context(), in)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, bill)
	case http.MethodGet:
		f, err := documentFilter(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		list, err := c.Matching.ListBills(r.Context(), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c BillController) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := c.Matching.GetBill(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (c BillController) Candidates(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := c.Matching.BillCandidates(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (c BillController) Apply(w http.ResponseWriter, r *http.Request) {
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
	bill, err := c.Matching.ApplyBill(r.Context(), id, body.Allocations)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (c BillController) Unmatch(w http.ResponseWriter, r *http.Request) {
	pid, err := paymentID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := c.Matching.UnmatchBillPayment(r.Context(), pid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (c BillController) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status models.BillStatus `json:"status" validate:"required"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	bill, err := c.Matching.SetBillStatus(r.Context(), id, body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}
