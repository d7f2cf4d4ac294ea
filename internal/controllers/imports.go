package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/importer"
	"bookkeeping/models"
)

// maxUploadBytes caps a statement upload.
const maxUploadBytes = 10 << 20

type ImportController struct {
	Importer *importer.Service
	Profiles importer.Profiles
}

// Stage accepts a multipart statement upload and stages it for review. The
// mapping arrives as a JSON object of header to field; a named profile fills
// whatever the form leaves empty.
func (c ImportController) Stage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, appErrors.ErrBadRequest.WithReasons("Upload a CSV file.").WithError(err))
		return
	}
	req := importer.StageRequest{
		Strategy:    models.AmountStrategy(r.FormValue("strategy")),
		CreditToken: r.FormValue("creditToken"),
		DebitToken:  r.FormValue("debitToken"),
	}
	if raw := r.FormValue("accountId"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, r, appErrors.NewValidationError("accountId", "Invalid account."))
			return
		}
		req.AccountID = uint(n)
	}
	if raw := strings.TrimSpace(r.FormValue("mapping")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Mapping); err != nil {
			writeError(w, r, appErrors.NewValidationError("mapping", "Invalid column mapping payload."))
			return
		}
	}
	if name := r.FormValue("profile"); name != "" {
		p, ok := c.Profiles[name]
		if !ok {
			writeError(w, r, appErrors.NewValidationError("profile", "Unknown import profile."))
			return
		}
		p.Apply(&req)
	}

	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		req.Filename = header.Filename
		if req.File, err = io.ReadAll(file); err != nil {
			writeError(w, r, appErrors.ErrBadRequest.WithError(err))
			return
		}
	}

	res, err := c.Importer.Stage(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if res.Batch.Status == models.ImportFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

func (c ImportController) List(w http.ResponseWriter, r *http.Request) {
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
	list, err := c.Importer.ListBatches(r.Context(), importer.BatchFilter{
		AccountID: queryUint(r, "accountId"),
		Status:    models.ImportStatus(q.Get("status")),
		Start:     start,
		End:       end,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (c ImportController) Review(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	review, err := c.Importer.Review(r.Context(), id, queryBool(r, "errorsOnly"), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (c ImportController) Commit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := c.Importer.Commit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c ImportController) Rollback(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	msg, err := c.Importer.Rollback(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id, "message": msg})
}

// Delete reads the confirmation from the query string so that DELETE
// requests need no body.
func (c ImportController) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	confirm := importer.Confirmation{
		Text:    r.URL.Query().Get("confirm"),
		Checked: queryBool(r, "acknowledged"),
	}
	msg, err := c.Importer.Delete(r.Context(), id, confirm)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "id": id, "message": msg})
}

func (c ImportController) ListProfiles(w http.ResponseWriter, r *http.Request) {
	out := make([]importer.Profile, 0, len(c.Profiles))
	for _, name := range c.Profiles.Names() {
		out = append(out, c.Profiles[name])
	}
	writeJSON(w, http.StatusOK, out)
}
