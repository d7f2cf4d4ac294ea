package controllers

import (
	"net/http"

	"bookkeeping/internal/ledger"
	"bookkeeping/models"
)

type AccountController struct{ Ledger *ledger.Service }

type accountBody struct {
	Name        string             `json:"name" validate:"required,max=100"`
	AccountType models.AccountType `json:"accountType" validate:"required"`
	Institution string             `json:"institution" validate:"max=100"`
	ParentID    *uint              `json:"parentId"`
}

func (c AccountController) CreateOrList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body accountBody
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		a := &models.Account{
			Name:        body.Name,
			AccountType: body.AccountType,
			Institution: body.Institution,
			ParentID:    body.ParentID,
			IsActive:    true,
		}
		if err := c.Ledger.CreateAccount(r.Context(), a); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	case http.MethodGet:
		var (
			list []models.Account
			err  error
		)
		if queryBool(r, "selectable") {
			list, err = c.Ledger.SelectableAccounts(r.Context())
		} else {
			list, err = c.Ledger.ListAccounts(r.Context(), queryBool(r, "active"))
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c AccountController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Name        *string             `json:"name"`
		AccountType *models.AccountType `json:"accountType"`
		Institution *string             `json:"institution"`
		ParentID    *uint               `json:"parentId"`
		ClearParent bool                `json:"clearParent"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	a, err := c.Ledger.UpdateAccount(r.Context(), id, ledger.AccountUpdate{
		Name:        body.Name,
		AccountType: body.AccountType,
		Institution: body.Institution,
		ParentID:    body.ParentID,
		ClearParent: body.ClearParent,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (c AccountController) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Active bool `json:"active"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Ledger.ArchiveAccount(r.Context(), id, body.Active); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id, "active": body.Active})
}

func (c AccountController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Ledger.DeleteAccount(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type VendorController struct{ Ledger *ledger.Service }

func (c VendorController) CreateOrList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			Name string            `json:"name" validate:"required,max=100"`
			Kind models.VendorKind `json:"kind" validate:"required,oneof=payer payee"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		v := &models.Vendor{Name: body.Name, Kind: body.Kind}
		if err := c.Ledger.CreateVendor(r.Context(), v); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, v)
	case http.MethodGet:
		list, err := c.Ledger.ListVendors(r.Context(), models.VendorKind(r.URL.Query().Get("kind")))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
