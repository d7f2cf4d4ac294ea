package controllers

import (
	"net/http"

	"bookkeeping/internal/ledger"
	"bookkeeping/models"
)

type CategoryController struct{ Ledger *ledger.Service }

func (c CategoryController) CreateOrList(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var body struct {
			Name     string      `json:"name" validate:"required,max=100"`
			Kind     models.Kind `json:"kind" validate:"required"`
			ParentID *uint       `json:"parentId"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, r, err)
			return
		}
		cat := &models.Category{Name: body.Name, Kind: body.Kind, ParentID: body.ParentID, IsActive: true}
		if err := c.Ledger.CreateCategory(r.Context(), cat); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, cat)
	case http.MethodGet:
		list, err := c.Ledger.ListCategories(r.Context(), models.Kind(r.URL.Query().Get("kind")), queryBool(r, "active"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (c CategoryController) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Name        *string      `json:"name"`
		Kind        *models.Kind `json:"kind"`
		IsActive    *bool        `json:"isActive"`
		ParentID    *uint        `json:"parentId"`
		ClearParent bool         `json:"clearParent"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := c.Ledger.UpdateCategory(r.Context(), id, ledger.CategoryUpdate{
		Name:        body.Name,
		Kind:        body.Kind,
		IsActive:    body.IsActive,
		ParentID:    body.ParentID,
		ClearParent: body.ClearParent,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (c CategoryController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	action, err := c.Ledger.DeleteCategory(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id, "action": action})
}
