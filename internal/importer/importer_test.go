package importer_test

import (
	"context"
	"errors"
	"testing"

	"bookkeeping/internal/archive"
	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/importer"
	"bookkeeping/internal/testutil"
	"bookkeeping/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func reasons(t *testing.T, err error) []string {
	t.Helper()
	appErr, ok := appErrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Reasons
}

func setup(t *testing.T) (*importer.Service, *testutil.DB, *models.Account) {
	db := testutil.NewDB(t)
	acct := db.Account(t, "Operating", models.AccountChecking)
	return importer.NewService(db.DB, nil), db, acct
}

func signedRequest(accountID uint, csv string) importer.StageRequest {
	return importer.StageRequest{
		Filename:  "statement.csv",
		File:      []byte(csv),
		AccountID: accountID,
		Strategy:  models.StrategySigned,
		Mapping:   map[string]string{"Date": "date", "Memo": "description", "Amount": "amount"},
	}
}

func TestResolvers(t *testing.T) {
	split := importer.SplitColumns{}
	v, err := split.Resolve(map[string]string{"debit": "25.00", "credit": ""})
	require.NoError(t, err)
	assert.Equal(t, "-25", v.String())

	_, err = split.Resolve(map[string]string{"debit": "1", "credit": "1"})
	assert.EqualError(t, err, "Both debit and credit populated.")
	_, err = split.Resolve(map[string]string{})
	assert.EqualError(t, err, "Both debit and credit empty.")

	ind := importer.IndicatorBased{CreditToken: "CR", DebitToken: "DR"}
	v, err = ind.Resolve(map[string]string{"amount": "40", "indicator": "cr"})
	require.NoError(t, err)
	assert.Equal(t, "40", v.String())
	v, err = ind.Resolve(map[string]string{"amount": "40", "indicator": "DR"})
	require.NoError(t, err)
	assert.Equal(t, "-40", v.String())
	_, err = ind.Resolve(map[string]string{"amount": "40", "indicator": "X"})
	assert.EqualError(t, err, "Unknown indicator 'X'.")

	v, err = importer.Signed{}.Resolve(map[string]string{"amount": "($1,234.50)"})
	require.NoError(t, err)
	assert.Equal(t, "-1234.5", v.String())
}

func TestValidateMapping(t *testing.T) {
	errs := importer.ValidateMapping(map[string]string{"A": "amount"}, models.StrategySigned)
	assert.Contains(t, errs, "Mapping must include exactly one Date column.")

	errs = importer.ValidateMapping(map[string]string{"D": "date", "A": "amount", "X": "debit"}, models.StrategySigned)
	assert.Contains(t, errs, "'Debit' is not valid for Signed Amount strategy.")

	errs = importer.ValidateMapping(map[string]string{"D": "date", "Out": "debit", "In": "credit"}, models.StrategySplitColumns)
	assert.Empty(t, errs)
}

func TestStageRejectsBadRequest(t *testing.T) {
	svc, _, _ := setup(t)
	_, err := svc.Stage(context.Background(), importer.StageRequest{
		Strategy: models.StrategyIndicator,
		Mapping:  map[string]string{"Date": "date", "Amt": "amount", "Type": "indicator"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	r := reasons(t, err)
	assert.Contains(t, r, "CSV file is required.")
	assert.Contains(t, r, "Account selection is required.")
	assert.Contains(t, r, "Credit indicator value is required.")
}

func TestStageRowErrorsFailBatch(t *testing.T) {
	svc, _, acct := setup(t)
	csv := "Date,Memo,Amount\n2024-01-05,Coffee,-4.50\n2024-01-06,Refund,abc\n2024-01-07,Deposit,100\n"

	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, csv))
	require.NoError(t, err)
	assert.Equal(t, models.ImportFailed, res.Batch.Status)
	assert.Equal(t, "1 row(s) have validation errors.", res.Batch.ErrorMessage)
	require.Len(t, res.Rows, 3)
	assert.Empty(t, res.Rows[0].Errors)
	assert.Equal(t, []string{"Invalid amount value."}, []string(res.Rows[1].Errors))
	assert.Equal(t, "-4.5", res.Rows[0].Mapped.Data()[models.FieldSignedAmount])

	_, err = svc.Commit(context.Background(), res.Batch.ID)
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), "This import batch is not ready to commit.")
}

func TestStageAndCommit(t *testing.T) {
	svc, db, acct := setup(t)
	csv := "\ufeffDate,Memo,Amount\n2024-02-01,Client payment,250.00\n2/3/2024,Office chair,-120.00\n"

	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, csv))
	require.NoError(t, err)
	require.Equal(t, models.ImportValidated, res.Batch.Status)

	out, err := svc.Commit(context.Background(), res.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Created)
	assert.Equal(t, "Imported 2 rows successfully.", out.Message)

	var txns []models.Transaction
	require.NoError(t, db.Order("date").Find(&txns).Error)
	require.Len(t, txns, 2)
	assert.Equal(t, models.KindIncome, txns[0].Kind)
	assert.Equal(t, models.KindExpense, txns[1].Kind)
	assert.Equal(t, "Office chair", txns[1].Description)
	for _, txn := range txns {
		assert.True(t, txn.IsImported)
		assert.Nil(t, txn.CategoryID)
		require.NotNil(t, txn.ImportBatchID)
		assert.Equal(t, res.Batch.ID, *txn.ImportBatchID)
		assert.Equal(t, acct.ID, txn.AccountID)
	}

	_, err = svc.Commit(context.Background(), res.Batch.ID)
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), "This import batch is already committed.")
}

func TestRollbackRemovesTransactions(t *testing.T) {
	svc, db, acct := setup(t)
	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, "Date,Memo,Amount\n2024-02-01,a,10\n"))
	require.NoError(t, err)

	_, err = svc.Rollback(context.Background(), res.Batch.ID)
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), "Only imported batches can be rolled back.")

	_, err = svc.Commit(context.Background(), res.Batch.ID)
	require.NoError(t, err)

	msg, err := svc.Rollback(context.Background(), res.Batch.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, msg)

	var n int64
	db.Model(&models.Transaction{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.ImportBatch{}).Count(&n)
	assert.Zero(t, n)
	db.Model(&models.ImportRow{}).Count(&n)
	assert.Zero(t, n)
}

func TestRollbackRefusesPairedTransactions(t *testing.T) {
	svc, db, acct := setup(t)
	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, "Date,Memo,Amount\n2024-02-01,a,10\n"))
	require.NoError(t, err)
	_, err = svc.Commit(context.Background(), res.Batch.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Transaction{}).Where("import_batch_id = ?", res.Batch.ID).Update("is_locked", true).Error)

	_, err = svc.Rollback(context.Background(), res.Batch.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrProtected))
}

func TestDeleteImportedNeedsConfirmation(t *testing.T) {
	svc, db, acct := setup(t)
	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, "Date,Memo,Amount\n2024-02-01,a,10\n"))
	require.NoError(t, err)
	_, err = svc.Commit(context.Background(), res.Batch.ID)
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), res.Batch.ID, importer.Confirmation{Text: "delete", Checked: false})
	require.Error(t, err)
	assert.Contains(t, reasons(t, err), "Confirmation required to delete an imported batch.")

	_, err = svc.Delete(context.Background(), res.Batch.ID, importer.Confirmation{Text: " delete ", Checked: true})
	require.NoError(t, err)
	var n int64
	db.Model(&models.Transaction{}).Count(&n)
	assert.Zero(t, n)
}

func TestDeleteStagedBatch(t *testing.T) {
	svc, db, acct := setup(t)
	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, "Date,Memo,Amount\n2024-02-01,a,x\n"))
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), res.Batch.ID, importer.Confirmation{})
	require.NoError(t, err)
	var n int64
	db.Model(&models.ImportBatch{}).Count(&n)
	assert.Zero(t, n)

	_, err = svc.Delete(context.Background(), res.Batch.ID, importer.Confirmation{})
	assert.True(t, errors.Is(err, appErrors.ErrBatchNotFound))
}

func TestReviewErrorsOnly(t *testing.T) {
	svc, _, acct := setup(t)
	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, "Date,Memo,Amount\n2024-02-01,a,1\n,b,2\n2024-02-03,c,3\n"))
	require.NoError(t, err)

	review, err := svc.Review(context.Background(), res.Batch.ID, true, 0, 0)
	require.NoError(t, err)
	assert.True(t, review.HasErrors)
	require.Len(t, review.Rows, 1)
	assert.Equal(t, 2, review.Rows[0].RowNumber)
	assert.Contains(t, []string(review.Rows[0].Errors), "Missing date value.")
}

func TestStageArchivesStatement(t *testing.T) {
	db := testutil.NewDB(t)
	acct := db.Account(t, "Operating", models.AccountChecking)
	store := archive.NewMemory()
	svc := importer.NewService(db.DB, store)

	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, "Date,Memo,Amount\n2024-02-01,a,1\n"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Batch.ArchiveKey)

	data, err := store.Get(context.Background(), res.Batch.ArchiveKey)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2024-02-01")
}

func TestProfiles(t *testing.T) {
	profiles, err := importer.ParseProfiles([]byte(`
profiles:
  - name: first-bank
    strategy: indicator
    credit_token: CR
    debit_token: DR
    mapping:
      Posted: date
      Details: description
      Value: amount
      Type: indicator
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"first-bank"}, profiles.Names())

	req := importer.StageRequest{}
	profiles["first-bank"].Apply(&req)
	assert.Equal(t, models.StrategyIndicator, req.Strategy)
	assert.Equal(t, "CR", req.CreditToken)
	assert.Equal(t, "indicator", req.Mapping["Type"])

	_, err = importer.ParseProfiles([]byte("profiles:\n  - name: bad\n    mapping:\n      A: amount\n"))
	assert.Error(t, err)
}

func TestStageAndCommitByStrategy(t *testing.T) {
	tests := []struct {
		name      string
		req       func(accountID uint) importer.StageRequest
		csv       string
		wantDates []string
		wantAmts  []string
	}{
		{
			name: "signed with unpadded dates",
			req: func(id uint) importer.StageRequest {
				return signedRequest(id, "")
			},
			csv:       "Date,Memo,Amount\n2024-1-5,Lunch,-12.40\n2024-01-6,Refund,\"$1,000.00\"\n",
			wantDates: []string{"2024-01-05", "2024-01-06"},
			wantAmts:  []string{"-12.4", "1000"},
		},
		{
			name: "indicator",
			req: func(id uint) importer.StageRequest {
				return importer.StageRequest{
					Filename:    "statement.csv",
					AccountID:   id,
					Strategy:    models.StrategyIndicator,
					CreditToken: "CR",
					DebitToken:  "DR",
					Mapping:     map[string]string{"Posted": "date", "Details": "description", "Value": "amount", "Type": "indicator"},
				}
			},
			csv:       "Posted,Details,Value,Type\n03/01/2024,Payroll,2500.00,cr\n03/02/2024,Rent,900.00,DR\n",
			wantDates: []string{"2024-03-01", "2024-03-02"},
			wantAmts:  []string{"2500", "-900"},
		},
		{
			name: "split columns",
			req: func(id uint) importer.StageRequest {
				return importer.StageRequest{
					Filename:  "statement.csv",
					AccountID: id,
					Strategy:  models.StrategySplitColumns,
					Mapping:   map[string]string{"Date": "date", "Memo": "description", "Debit": "debit", "Credit": "credit", "Balance": "ignore"},
				}
			},
			csv:       "Date,Memo,Debit,Credit,Balance\n4/1/24,Fuel,45.10,,100\n4/2/24,Sale,,(60.00),160\n",
			wantDates: []string{"2024-04-01", "2024-04-02"},
			wantAmts:  []string{"-45.1", "60"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db, acct := setup(t)
			req := tt.req(acct.ID)
			req.File = []byte(tt.csv)

			res, err := svc.Stage(context.Background(), req)
			require.NoError(t, err)
			require.Equal(t, models.ImportValidated, res.Batch.Status, res.Batch.ErrorMessage)

			out, err := svc.Commit(context.Background(), res.Batch.ID)
			require.NoError(t, err)
			assert.Equal(t, len(tt.wantAmts), out.Created)

			var txns []models.Transaction
			require.NoError(t, db.Order("id").Find(&txns).Error)
			require.Len(t, txns, len(tt.wantAmts))
			for i, txn := range txns {
				assert.Equal(t, tt.wantDates[i], txn.Date.UTC().Format("2006-01-02"))
				assert.Equal(t, tt.wantAmts[i], txn.Amount.String())
				assert.Equal(t, models.KindFromSign(txn.Amount), txn.Kind)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-01-05", "2024-01-05", true},
		{"2024-1-5", "2024-01-05", true},
		{" 2024-12-31 ", "2024-12-31", true},
		{"1/5/2024", "2024-01-05", true},
		{"01/05/24", "2024-01-05", true},
		{"2024-13-01", "", false},
		{"yesterday", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		d, ok := importer.ParseDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		if tt.ok {
			assert.Equal(t, tt.want, d.Format("2006-01-02"), tt.in)
		}
	}
}

func TestStageRejectsUnparseableDate(t *testing.T) {
	svc, _, acct := setup(t)
	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, "Date,Memo,Amount\n2024-02-30,a,1\n2024-02-01,b,2\n"))
	require.NoError(t, err)
	assert.Equal(t, models.ImportFailed, res.Batch.Status)
	assert.Equal(t, []string{"Invalid date value."}, []string(res.Rows[0].Errors))
	assert.Empty(t, res.Rows[1].Errors)
}

func TestCommitRevalidationFailure(t *testing.T) {
	svc, db, acct := setup(t)
	res, err := svc.Stage(context.Background(), signedRequest(acct.ID, "Date,Memo,Amount\n2024-02-01,a,1\n2024-02-02,b,2\n"))
	require.NoError(t, err)
	require.Equal(t, models.ImportValidated, res.Batch.Status)

	// a row edited after staging no longer parses
	broken := datatypes.NewJSONType(map[string]string{
		models.FieldDate:         "02-02-2024",
		models.FieldDescription:  "b",
		models.FieldSignedAmount: "2",
	})
	require.NoError(t, db.Model(&models.ImportRow{}).Where("id = ?", res.Rows[1].ID).Update("mapped", broken).Error)

	_, err = svc.Commit(context.Background(), res.Batch.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrBusinessRule))
	assert.Contains(t, reasons(t, err), "1 row(s) failed commit validation.")

	var batch models.ImportBatch
	require.NoError(t, db.First(&batch, res.Batch.ID).Error)
	assert.Equal(t, models.ImportFailed, batch.Status)
	assert.Equal(t, "1 row(s) failed commit validation.", batch.ErrorMessage)

	var rows []models.ImportRow
	require.NoError(t, db.Where("batch_id = ?", batch.ID).Order("row_number").Find(&rows).Error)
	assert.Empty(t, rows[0].Errors)
	assert.Equal(t, []string{"Invalid date value."}, []string(rows[1].Errors))

	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCommitLegacyAmountColumn(t *testing.T) {
	svc, db, acct := setup(t)
	accountID := acct.ID
	batch := &models.ImportBatch{
		Filename:       "old.csv",
		AccountID:      &accountID,
		Status:         models.ImportValidated,
		AmountStrategy: models.StrategySigned,
		ColumnMapping:  datatypes.NewJSONType(map[string]string{"Date": "date", "Amount": "amount"}),
	}
	require.NoError(t, db.Omit("Rows").Create(batch).Error)
	rows := []models.ImportRow{
		{BatchID: batch.ID, RowNumber: 1, Mapped: datatypes.NewJSONType(map[string]string{
			models.FieldDate: "2024-05-01", models.FieldAmount: "$1,200.50", models.FieldDescription: "Legacy deposit",
		}), Errors: datatypes.JSONSlice[string]{}},
		{BatchID: batch.ID, RowNumber: 2, Mapped: datatypes.NewJSONType(map[string]string{
			models.FieldDate: "5/2/2024", models.FieldAmount: "(75.25)",
		}), Errors: datatypes.JSONSlice[string]{}},
	}
	require.NoError(t, db.Create(&rows).Error)

	out, err := svc.Commit(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Created)

	var txns []models.Transaction
	require.NoError(t, db.Order("id").Find(&txns).Error)
	require.Len(t, txns, 2)
	assert.Equal(t, "1200.5", txns[0].Amount.String())
	assert.Equal(t, models.KindIncome, txns[0].Kind)
	assert.Equal(t, "Legacy deposit", txns[0].Description)
	assert.Equal(t, "-75.25", txns[1].Amount.String())
	assert.Equal(t, models.KindExpense, txns[1].Kind)
	assert.Equal(t, "2024-05-02", txns[1].Date.UTC().Format("2006-01-02"))
}
