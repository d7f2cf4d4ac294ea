package controllers

import (
	"net/http"
	"time"

	"bookkeeping/internal/reporting"
)

type ReportsController struct {
	Reports *reporting.Service
	// Now resolves relative ranges. Nil means time.Now.
	Now func() time.Time
}

func (c ReportsController) today() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

func (c ReportsController) rangeFrom(r *http.Request) reporting.Range {
	q := r.URL.Query()
	key := q.Get("range")
	if key == "" && (q.Get("from") != "" || q.Get("to") != "") {
		key = reporting.RangeCustom
	}
	return reporting.ResolveRange(key, q.Get("from"), q.Get("to"), c.today())
}

func (c ReportsController) GetBalances(w http.ResponseWriter, r *http.Request) {
	asOf, err := optionalDate("asOf", r.URL.Query().Get("asOf"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := c.Reports.AccountBalances(r.Context(), asOf, queryBool(r, "rollup"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (c ReportsController) GetProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	report, err := c.Reports.ProfitAndLoss(r.Context(), reporting.PLRequest{
		Range:   c.rangeFrom(r),
		GroupBy: reporting.GroupBy(r.URL.Query().Get("groupBy")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// GetBalanceSheet defaults asOf to today.
func (c ReportsController) GetBalanceSheet(w http.ResponseWriter, r *http.Request) {
	asOf, err := optionalDate("asOf", r.URL.Query().Get("asOf"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if asOf == nil {
		t := c.today()
		t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		asOf = &t
	}
	sheet, err := c.Reports.BalanceSheet(r.Context(), *asOf)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

func (c ReportsController) GetCashflow(w http.ResponseWriter, r *http.Request) {
	report, err := c.Reports.Cashflow(r.Context(), c.rangeFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
