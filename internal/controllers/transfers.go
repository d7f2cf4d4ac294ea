package controllers

import (
	"net/http"

	"bookkeeping/internal/transfer"
)

type TransferController struct{ Transfers *transfer.Service }

// Matches lists the transactions that could be the other leg of the one in
// the path.
func (c TransferController) Matches(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := c.Transfers.FindMatches(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (c TransferController) Pair(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TransactionID uint `json:"transactionId" validate:"required"`
		MatchID       uint `json:"matchId" validate:"required"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	group, err := c.Transfers.Pair(r.Context(), body.TransactionID, body.MatchID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (c TransferController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	group, err := c.Transfers.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (c TransferController) Unpair(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Transfers.Unpair(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
