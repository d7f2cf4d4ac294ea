package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/logger"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders any error as the AppError envelope. Every error body
// carries a non-empty reasons list.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := appErrors.FromError(err)
	event := logger.FromContext(r.Context()).Warn()
	if appErr.StatusCode >= http.StatusInternalServerError {
		event = logger.FromContext(r.Context()).Error()
	}
	if appErr.Err != nil {
		event = event.Err(appErr.Err)
	}
	event.Str("code", appErr.Code).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")

	reasons := appErr.Reasons
	if len(reasons) == 0 {
		reasons = []string{appErr.Message}
	}
	body := map[string]any{
		"code":    appErr.Code,
		"message": appErr.Message,
		"reasons": reasons,
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	writeJSON(w, appErr.StatusCode, map[string]any{"error": body})
}

// decodeJSON reads a strict JSON body and runs struct validation.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return appErrors.ErrBadRequest.WithReasons("Invalid JSON body: " + err.Error()).WithError(err)
	}
	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return nil
		}
		return appErrors.ParseValidationErrors(err)
	}
	return nil
}

func pathID(r *http.Request) (uint, error) {
	raw := r.PathValue("id")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, appErrors.NewValidationError("id", "Invalid id.")
	}
	return uint(n), nil
}

func queryUint(r *http.Request, key string) uint {
	n, err := strconv.ParseUint(r.URL.Query().Get(key), 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func queryBool(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	return v == "1" || strings.EqualFold(v, "true")
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errors.New("unsupported date format")
}

// optionalDate parses a query or body date; an empty value yields nil.
func optionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, appErrors.NewValidationError(field, field+": "+err.Error())
	}
	return &t, nil
}
