package routes_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bookkeeping/internal/archive"
	"bookkeeping/internal/importer"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/logger"
	"bookkeeping/internal/matching"
	"bookkeeping/internal/reporting"
	"bookkeeping/internal/routes"
	"bookkeeping/internal/testutil"
	"bookkeeping/internal/transfer"
	"bookkeeping/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	t      *testing.T
	db     *testutil.DB
	engine *gin.Engine
}

func newServer(t *testing.T) *server {
	gin.SetMode(gin.TestMode)
	logger.SetOutput(io.Discard)
	db := testutil.NewDB(t)
	profiles, err := importer.ParseProfiles([]byte(`
profiles:
  - name: first-bank
    strategy: signed
    mapping:
      Date: date
      Memo: description
      Amount: amount
`))
	require.NoError(t, err)
	engine := routes.Register(routes.Services{
		Ledger:    ledger.NewService(db.DB, db.System),
		Importer:  importer.NewService(db.DB, archive.NewMemory()),
		Profiles:  profiles,
		Transfers: transfer.NewService(db.DB),
		Matching:  matching.NewService(db.DB, db.System, decimal.Zero),
		Reports:   reporting.NewService(db.DB),
	}, []string{"http://localhost:3000"})
	return &server{t: t, db: db, engine: engine}
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *server) json(method, path string, body any) (int, map[string]any) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := s.do(req)
	out := map[string]any{}
	if w.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w.Code, out
}

func (s *server) list(path string) []map[string]any {
	s.t.Helper()
	w := s.do(httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	var out []map[string]any
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *server) upload(fields map[string]string, csv string) (int, map[string]any) {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(s.t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", "statement.csv")
	require.NoError(s.t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := s.do(req)
	out := map[string]any{}
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

func id(v any) uint {
	return uint(v.(float64))
}

func errorBody(t *testing.T, body map[string]any) (string, []string) {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error envelope: %v", body)
	var reasons []string
	for _, r := range e["reasons"].([]any) {
		reasons = append(reasons, r.(string))
	}
	require.NotEmpty(t, reasons)
	return e["code"].(string), reasons
}

func TestAccountsEndpoints(t *testing.T) {
	s := newServer(t)

	code, body := s.json(http.MethodPost, "/api/v1/accounts", map[string]any{"name": "Checking", "accountType": "checking"})
	require.Equal(t, http.StatusCreated, code)
	acctID := id(body["id"])

	code, body = s.json(http.MethodPost, "/api/v1/accounts", map[string]any{"name": "Checking", "accountType": "checking"})
	assert.Equal(t, http.StatusBadRequest, code)
	_, reasons := errorBody(t, body)
	assert.Contains(t, reasons, "An account with this name already exists.")

	code, body = s.json(http.MethodPost, "/api/v1/accounts", map[string]any{"accountType": "checking"})
	assert.Equal(t, http.StatusBadRequest, code)
	errCode, _ := errorBody(t, body)
	assert.Equal(t, "VALIDATION_ERROR", errCode)

	accounts := s.list("/api/v1/accounts")
	require.Len(t, accounts, 1)
	assert.Equal(t, "Checking", accounts[0]["name"])

	code, _ = s.json(http.MethodPost, fmt.Sprintf("/api/v1/accounts/%d/archive", acctID), map[string]any{"active": false})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, s.list("/api/v1/accounts?active=true"))
}

func TestUnknownTransactionIsNotFound(t *testing.T) {
	s := newServer(t)
	code, body := s.json(http.MethodGet, "/api/v1/transactions/999", nil)
	assert.Equal(t, http.StatusNotFound, code)
	errCode, _ := errorBody(t, body)
	assert.Equal(t, "NOT_FOUND", errCode)

	code, _ = s.json(http.MethodGet, "/api/v1/transactions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestImportThroughProfileAndCommit(t *testing.T) {
	s := newServer(t)
	acct := s.db.Account(t, "Checking", models.AccountChecking)

	code, body := s.upload(map[string]string{
		"accountId": fmt.Sprint(acct.ID),
		"profile":   "first-bank",
	}, "Date,Memo,Amount\n2024-02-01,Client payment,250.00\n2024-02-03,Office chair,-120.00\n")
	require.Equal(t, http.StatusCreated, code, body)
	batch := body["batch"].(map[string]any)
	assert.Equal(t, "validated", batch["status"])
	batchID := id(batch["id"])

	code, body = s.json(http.MethodPost, fmt.Sprintf("/api/v1/imports/%d/commit", batchID), nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Imported 2 rows successfully.", body["message"])

	code, body = s.json(http.MethodGet, fmt.Sprintf("/api/v1/transactions?accountId=%d", acct.ID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 2)
	assert.Equal(t, float64(2), body["pagination"].(map[string]any)["total"])

	code, body = s.json(http.MethodDelete, fmt.Sprintf("/api/v1/imports/%d", batchID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	_, reasons := errorBody(t, body)
	assert.Contains(t, reasons, "Confirmation required to delete an imported batch.")

	code, body = s.json(http.MethodDelete, fmt.Sprintf("/api/v1/imports/%d?confirm=delete&acknowledged=true", batchID), nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "Imported batch deleted with transactions removed.", body["message"])
}

func TestImportWithRowErrorsIsUnprocessable(t *testing.T) {
	s := newServer(t)
	acct := s.db.Account(t, "Checking", models.AccountChecking)

	code, body := s.upload(map[string]string{
		"accountId": fmt.Sprint(acct.ID),
		"strategy":  "signed",
		"mapping":   `{"Date":"date","Memo":"description","Amount":"amount"}`,
	}, "Date,Memo,Amount\n2024-02-01,ok,10\n2024-02-02,bad,ten\n")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "failed", body["batch"].(map[string]any)["status"])
	assert.Equal(t, float64(1), body["errorRows"])

	code, body = s.upload(map[string]string{
		"accountId": fmt.Sprint(acct.ID),
		"strategy":  "signed",
		"mapping":   `not json`,
	}, "Date,Amount\n2024-02-01,10\n")
	assert.Equal(t, http.StatusBadRequest, code)
	_, reasons := errorBody(t, body)
	assert.Contains(t, reasons, "Invalid column mapping payload.")
}

func TestTransferPairing(t *testing.T) {
	s := newServer(t)
	checking := s.db.Account(t, "Checking", models.AccountChecking)
	savings := s.db.Account(t, "Savings", models.AccountSavings)
	out := s.db.Txn(t, checking.ID, "-100.00", "2024-03-01")
	in := s.db.Txn(t, savings.ID, "100.00", "2024-03-10")

	matches := s.list(fmt.Sprintf("/api/v1/transactions/%d/transfer-matches", out.ID))
	require.Len(t, matches, 1)
	assert.Equal(t, in.ID, id(matches[0]["id"]))

	code, body := s.json(http.MethodPost, "/api/v1/transfers", map[string]any{"transactionId": out.ID, "matchId": in.ID})
	require.Equal(t, http.StatusCreated, code, body)
	groupID := id(body["id"])
	assert.Equal(t, models.KindTransfer, s.db.Reload(t, out.ID).Kind)

	code, body = s.json(http.MethodPost, "/api/v1/transfers", map[string]any{"transactionId": out.ID, "matchId": in.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	_, reasons := errorBody(t, body)
	assert.Contains(t, reasons, "Transaction is already paired as a transfer.")

	code, _ = s.json(http.MethodDelete, fmt.Sprintf("/api/v1/transfers/%d", groupID), nil)
	require.Equal(t, http.StatusNoContent, code)
	assert.Nil(t, s.db.Reload(t, in.ID).TransferGroupID)
}

func TestInvoiceMatchingEndpoints(t *testing.T) {
	s := newServer(t)
	acct := s.db.Account(t, "Checking", models.AccountChecking)
	sales := s.db.Category(t, "Sales", models.KindIncome)
	customer := s.db.Vendor(t, "Acme", models.VendorPayer)
	deposit := s.db.Txn(t, acct.ID, "100.00", "2024-04-03")

	code, body := s.json(http.MethodPost, "/api/v1/invoices", map[string]any{
		"counterpartyId": customer.ID,
		"accountId":      acct.ID,
		"date":           "2024-04-01",
		"items":          []map[string]any{{"categoryId": sales.ID, "description": "Design", "amount": "100.00"}},
	})
	require.Equal(t, http.StatusCreated, code, body)
	invID := id(body["id"])
	assert.Equal(t, "draft", body["status"])

	code, body = s.json(http.MethodGet, fmt.Sprintf("/api/v1/invoices/%d/candidates", invID), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["bestMatches"], 1)

	code, body = s.json(http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/payments", invID), map[string]any{
		"allocations": []map[string]any{{"transactionId": deposit.ID, "amount": "100.00"}},
	})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "paid", body["status"])

	payments := body["payments"].([]any)
	require.Len(t, payments, 1)
	paymentID := id(payments[0].(map[string]any)["id"])

	code, body = s.json(http.MethodDelete, fmt.Sprintf("/api/v1/invoices/%d/payments/%d", invID, paymentID), nil)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "sent", body["status"])

	code, body = s.json(http.MethodPost, fmt.Sprintf("/api/v1/invoices/%d/status", invID), map[string]any{"status": "void"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "void", body["status"])
}

func TestReportEndpoints(t *testing.T) {
	s := newServer(t)
	acct := s.db.Account(t, "Checking", models.AccountChecking)
	s.db.Txn(t, acct.ID, "300.00", "2024-01-10")
	s.db.Txn(t, acct.ID, "-120.00", "2024-01-20")

	code, body := s.json(http.MethodGet, "/api/v1/reports/profit-loss?from=2024-01-01&to=2024-12-31&groupBy=month", nil)
	require.Equal(t, http.StatusOK, code, body)
	total := body["total"].(map[string]any)
	assert.Equal(t, "180", decimal.RequireFromString(total["netIncome"].(string)).String())

	code, body = s.json(http.MethodGet, "/api/v1/reports/balance-sheet?asOf=2024-12-31", nil)
	require.Equal(t, http.StatusOK, code, body)
	assets := body["assets"].(map[string]any)
	assert.Equal(t, "180", decimal.RequireFromString(assets["total"].(string)).String())

	balances := s.list("/api/v1/reports/balances?asOf=2024-01-15")
	require.Len(t, balances, 1)
	assert.Equal(t, "300", decimal.RequireFromString(balances[0]["balance"].(string)).String())

	code, body = s.json(http.MethodGet, "/api/v1/reports/balance-sheet?asOf=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	errorBody(t, body)
}
