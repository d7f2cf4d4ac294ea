// Package importer stages bank statement CSV files into reviewable rows and
// commits validated batches as ledger transactions.
package importer

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"bookkeeping/internal/archive"
	appErrors "bookkeeping/internal/errors"
	"bookkeeping/internal/ledger"
	"bookkeeping/internal/logger"
	"bookkeeping/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// dateLayouts are tried in order. Single-digit month and day parts are
// accepted in every layout.
var dateLayouts = []string{"2006-01-02", "2006-1-2", "1/2/2006", "1/2/06"}

type Service struct {
	DB      *gorm.DB
	Archive archive.Store
}

func NewService(db *gorm.DB, store archive.Store) *Service {
	if store == nil {
		store = archive.Noop{}
	}
	return &Service{DB: db, Archive: store}
}

type StageRequest struct {
	Filename    string
	File        []byte
	AccountID   uint
	Mapping     map[string]string
	Strategy    models.AmountStrategy
	CreditToken string
	DebitToken  string
}

type StageResult struct {
	Batch     *models.ImportBatch `json:"batch"`
	Rows      []models.ImportRow  `json:"rows"`
	TotalRows int                 `json:"totalRows"`
	ErrorRows int                 `json:"errorRows"`
}

func (s *Service) validateRequest(ctx context.Context, req *StageRequest) []string {
	var errs []string
	if len(req.File) == 0 {
		errs = append(errs, "CSV file is required.")
	}
	if req.AccountID == 0 {
		errs = append(errs, "Account selection is required.")
	} else {
		var n int64
		err := s.DB.WithContext(ctx).Model(&models.Account{}).
			Where("id = ? AND is_active = ?", req.AccountID, true).
			Count(&n).Error
		if err != nil || n == 0 {
			errs = append(errs, "Selected account is not available.")
		}
	}
	if req.Strategy == "" {
		req.Strategy = models.StrategySigned
	}
	if !req.Strategy.Valid() {
		errs = append(errs, "Invalid amount strategy.")
		req.Strategy = models.StrategySigned
	}
	req.CreditToken = strings.TrimSpace(req.CreditToken)
	req.DebitToken = strings.TrimSpace(req.DebitToken)
	if req.Strategy == models.StrategyIndicator {
		if req.CreditToken == "" {
			errs = append(errs, "Credit indicator value is required.")
		}
		if req.DebitToken == "" {
			errs = append(errs, "Debit indicator value is required.")
		}
	}
	if len(req.Mapping) == 0 {
		errs = append(errs, "Column mapping is required.")
		return errs
	}
	for _, target := range req.Mapping {
		if !allowedTargets[target] {
			errs = append(errs, "Invalid mapping option detected.")
			break
		}
	}
	return append(errs, ValidateMapping(req.Mapping, req.Strategy)...)
}

// Stage validates the request and mapping, then records every CSV row with
// its own errors. The batch ends validated only if no row has an error.
func (s *Service) Stage(ctx context.Context, req StageRequest) (*StageResult, error) {
	if errs := s.validateRequest(ctx, &req); len(errs) > 0 {
		return nil, appErrors.NewValidationErrors(errs)
	}
	records, err := readCSV(req.File)
	if err != nil {
		return nil, appErrors.NewValidationErrors([]string{"Could not read CSV file: " + err.Error()})
	}
	resolver, err := NewResolver(req.Strategy, req.CreditToken, req.DebitToken)
	if err != nil {
		return nil, appErrors.NewValidationErrors([]string{"Invalid amount strategy."})
	}

	accountID := req.AccountID
	batch := &models.ImportBatch{
		Filename:        req.Filename,
		AccountID:       &accountID,
		Status:          models.ImportPending,
		AmountStrategy:  req.Strategy,
		IndicatorCredit: req.CreditToken,
		IndicatorDebit:  req.DebitToken,
		ColumnMapping:   datatypes.NewJSONType(req.Mapping),
	}
	rows := make([]models.ImportRow, 0, len(records))
	errorRows := 0
	for i, rec := range records {
		mapped := mapRow(rec.normalized, req.Mapping)
		var rowErrs []string
		if mapped[models.FieldDate] == "" {
			rowErrs = append(rowErrs, "Missing date value.")
		} else if _, ok := ParseDate(mapped[models.FieldDate]); !ok {
			rowErrs = append(rowErrs, "Invalid date value.")
		}
		amount, err := resolver.Resolve(mapped)
		if err != nil {
			if re, ok := err.(RowError); ok {
				rowErrs = append(rowErrs, re...)
			} else {
				rowErrs = append(rowErrs, err.Error())
			}
		} else {
			mapped[models.FieldSignedAmount] = amount.String()
		}
		if len(rowErrs) > 0 {
			errorRows++
		}
		rows = append(rows, models.ImportRow{
			RowNumber: i + 1,
			Raw:       datatypes.NewJSONType(rec.raw),
			Mapped:    datatypes.NewJSONType(mapped),
			Errors:    datatypes.JSONSlice[string](append([]string{}, rowErrs...)),
		})
	}

	if errorRows > 0 {
		batch.Status = models.ImportFailed
		batch.ErrorMessage = fmt.Sprintf("%d row(s) have validation errors.", errorRows)
	} else {
		batch.Status = models.ImportValidated
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Rows").Create(batch).Error; err != nil {
			return err
		}
		for i := range rows {
			rows[i].BatchID = batch.ID
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(&rows, insertBatchSize).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}

	s.archive(ctx, batch, req.File)

	logger.FromContext(ctx).Info().
		Uint("batch_id", batch.ID).
		Str("status", string(batch.Status)).
		Int("rows", len(rows)).
		Int("error_rows", errorRows).
		Msg("import staged")
	return &StageResult{Batch: batch, Rows: rows, TotalRows: len(rows), ErrorRows: errorRows}, nil
}

// archive keeps a copy of the uploaded statement. Failures are logged and do
// not affect the batch.
func (s *Service) archive(ctx context.Context, batch *models.ImportBatch, data []byte) {
	if _, ok := s.Archive.(archive.Noop); ok {
		return
	}
	key := path.Join(time.Now().UTC().Format("2006/01"), fmt.Sprintf("%d-%s-%s", batch.ID, uuid.NewString()[:8], path.Base(batch.Filename)))
	if err := s.Archive.Put(ctx, key, data); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Uint("batch_id", batch.ID).Msg("archive statement")
		return
	}
	if err := s.DB.WithContext(ctx).Model(batch).Update("archive_key", key).Error; err != nil {
		logger.FromContext(ctx).Warn().Err(err).Uint("batch_id", batch.ID).Msg("record archive key")
		return
	}
	batch.ArchiveKey = key
}

// ParseDate reads a statement date. Staging and commit both use it, so a row
// that stages cleanly cannot fail commit on its date.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

// revalidate re-checks a staged row. Amounts come from signed_amount, or the
// plain amount column for rows staged before signing existed.
func revalidate(row models.ImportRow) (time.Time, decimal.Decimal, string, []string) {
	mapped := row.Mapped.Data()
	var errs []string
	date, ok := ParseDate(mapped[models.FieldDate])
	if !ok {
		errs = append(errs, "Invalid date value.")
	}
	var amount decimal.Decimal
	if raw := strings.TrimSpace(mapped[models.FieldSignedAmount]); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			errs = append(errs, "Invalid signed amount value.")
		}
		amount = v
	} else {
		v, err := ParseAmount(mapped[models.FieldAmount])
		if err != nil {
			errs = append(errs, "Invalid amount value.")
		}
		amount = v
	}
	return date, amount, strings.TrimSpace(mapped[models.FieldDescription]), errs
}

type CommitResult struct {
	Batch   *models.ImportBatch `json:"batch"`
	Created int                 `json:"created"`
	Message string              `json:"message"`
}

// Commit turns every row of a validated batch into a transaction, or none of
// them.
func (s *Service) Commit(ctx context.Context, batchID uint) (*CommitResult, error) {
	db := s.DB.WithContext(ctx)
	batch, err := s.loadBatch(db, batchID)
	if err != nil {
		return nil, err
	}
	switch {
	case batch.Status == models.ImportImported:
		return nil, appErrors.NewBusinessRuleError("This import batch is already committed.")
	case batch.Status != models.ImportValidated:
		return nil, appErrors.NewBusinessRuleError("This import batch is not ready to commit.")
	case batch.AccountID == nil:
		return nil, appErrors.NewBusinessRuleError("No account is assigned to this import batch.")
	}
	var rows []models.ImportRow
	if err := db.Where("batch_id = ?", batch.ID).Order("row_number, id").Find(&rows).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	if len(rows) == 0 {
		return nil, appErrors.NewBusinessRuleError("No rows found for this import batch.")
	}

	txns := make([]models.Transaction, 0, len(rows))
	var failed []models.ImportRow
	for _, row := range rows {
		date, amount, description, errs := revalidate(row)
		if len(errs) > 0 {
			row.Errors = errs
			failed = append(failed, row)
			continue
		}
		batchID := batch.ID
		txn := models.Transaction{
			AccountID:     *batch.AccountID,
			Date:          date,
			Amount:        amount.Round(2),
			Description:   description,
			IsImported:    true,
			ImportBatchID: &batchID,
		}
		txn.ApplyCategory(nil)
		txns = append(txns, txn)
	}

	if len(failed) > 0 {
		msg := fmt.Sprintf("%d row(s) failed commit validation.", len(failed))
		err := db.Transaction(func(tx *gorm.DB) error {
			for i := range failed {
				if err := tx.Model(&failed[i]).Update("errors", failed[i].Errors).Error; err != nil {
					return err
				}
			}
			return tx.Model(batch).Updates(map[string]any{"status": models.ImportFailed, "error_message": msg}).Error
		})
		if err != nil {
			return nil, appErrors.NewDatabaseError(err)
		}
		logger.FromContext(ctx).Warn().Uint("batch_id", batch.ID).Int("failed_rows", len(failed)).Msg("import commit rejected")
		return nil, appErrors.NewBusinessRuleError(msg)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		// guard against a concurrent commit of the same batch
		res := tx.Model(&models.ImportBatch{}).
			Where("id = ? AND status = ?", batch.ID, models.ImportValidated).
			Updates(map[string]any{"status": models.ImportImported, "error_message": ""})
		if res.Error != nil {
			return appErrors.NewDatabaseError(res.Error)
		}
		if res.RowsAffected == 0 {
			return appErrors.NewBusinessRuleError("This import batch is already committed.")
		}
		if err := tx.Omit(clause.Associations).CreateInBatches(&txns, insertBatchSize).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	batch.Status = models.ImportImported
	batch.ErrorMessage = ""

	logger.FromContext(ctx).Info().Uint("batch_id", batch.ID).Int("created", len(txns)).Msg("import committed")
	return &CommitResult{
		Batch:   batch,
		Created: len(txns),
		Message: fmt.Sprintf("Imported %d rows successfully.", len(txns)),
	}, nil
}

// Rollback removes an imported batch together with the transactions it
// created.
func (s *Service) Rollback(ctx context.Context, batchID uint) (string, error) {
	db := s.DB.WithContext(ctx)
	batch, err := s.loadBatch(db, batchID)
	if err != nil {
		return "", err
	}
	if batch.Status != models.ImportImported {
		return "", appErrors.NewBusinessRuleError("Only imported batches can be rolled back.")
	}
	if err := s.removeBatch(ctx, batch, true); err != nil {
		return "", err
	}
	return "Import batch rolled back and removed.", nil
}

// Confirmation guards deleting an imported batch.
type Confirmation struct {
	Text    string
	Checked bool
}

func (c Confirmation) ok() bool {
	return strings.ToUpper(strings.TrimSpace(c.Text)) == "DELETE" && c.Checked
}

// Delete removes a batch. An imported batch also loses its transactions and
// needs an explicit confirmation.
func (s *Service) Delete(ctx context.Context, batchID uint, confirm Confirmation) (string, error) {
	db := s.DB.WithContext(ctx)
	batch, err := s.loadBatch(db, batchID)
	if err != nil {
		return "", err
	}
	if batch.Status == models.ImportImported {
		if !confirm.ok() {
			return "", appErrors.NewBusinessRuleError("Confirmation required to delete an imported batch.")
		}
		if err := s.removeBatch(ctx, batch, true); err != nil {
			return "", err
		}
		return "Imported batch deleted with transactions removed.", nil
	}
	if err := s.removeBatch(ctx, batch, false); err != nil {
		return "", err
	}
	return "Import batch deleted.", nil
}

func (s *Service) removeBatch(ctx context.Context, batch *models.ImportBatch, withTransactions bool) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if withTransactions {
			var ids []uint
			if err := tx.Model(&models.Transaction{}).Where("import_batch_id = ?", batch.ID).Pluck("id", &ids).Error; err != nil {
				return appErrors.NewDatabaseError(err)
			}
			if len(ids) > 0 {
				if err := checkRemovable(tx, ids); err != nil {
					return err
				}
				if err := tx.Where("id IN ?", ids).Delete(&models.Transaction{}).Error; err != nil {
					return appErrors.NewDatabaseError(err)
				}
			}
		}
		if err := tx.Where("batch_id = ?", batch.ID).Delete(&models.ImportRow{}).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		if err := tx.Delete(&models.ImportBatch{}, batch.ID).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info().Uint("batch_id", batch.ID).Bool("with_transactions", withTransactions).Msg("import batch removed")
	return nil
}

// checkRemovable refuses to delete transactions that were since paired or
// matched; those links must be undone first.
func checkRemovable(tx *gorm.DB, ids []uint) error {
	var locked int64
	if err := tx.Model(&models.Transaction{}).
		Where("id IN ? AND (is_locked = ? OR transfer_group_id IS NOT NULL)", ids, true).
		Count(&locked).Error; err != nil {
		return appErrors.NewDatabaseError(err)
	}
	var reasons []string
	if locked > 0 {
		reasons = append(reasons, fmt.Sprintf("%d transaction(s) from this batch are paired as transfers; unpair them first.", locked))
	}
	var matched int64
	for _, m := range []any{&models.InvoicePayment{}, &models.BillPayment{}} {
		var n int64
		if err := tx.Model(m).Where("transaction_id IN ?", ids).Count(&n).Error; err != nil {
			return appErrors.NewDatabaseError(err)
		}
		matched += n
	}
	if matched > 0 {
		reasons = append(reasons, fmt.Sprintf("%d payment(s) are matched to transactions from this batch; unmatch them first.", matched))
	}
	if len(reasons) > 0 {
		return appErrors.NewProtectedError(reasons[0]).WithReasons(reasons...)
	}
	return nil
}

func (s *Service) loadBatch(db *gorm.DB, id uint) (*models.ImportBatch, error) {
	var batch models.ImportBatch
	if err := db.First(&batch, id).Error; err != nil {
		return nil, appErrors.TranslateDB(err, appErrors.ErrBatchNotFound)
	}
	return &batch, nil
}

type BatchFilter struct {
	AccountID uint
	Status    models.ImportStatus
	Start     *time.Time
	End       *time.Time
}

func (s *Service) ListBatches(ctx context.Context, f BatchFilter) ([]models.ImportBatch, error) {
	q := s.DB.WithContext(ctx).Model(&models.ImportBatch{})
	if f.AccountID != 0 {
		q = q.Where("account_id = ?", f.AccountID)
	}
	switch f.Status {
	case models.ImportPending, models.ImportValidated, models.ImportImported, models.ImportFailed:
		q = q.Where("status = ?", f.Status)
	}
	if f.Start != nil {
		q = q.Where("created_at >= ?", *f.Start)
	}
	if f.End != nil {
		q = q.Where("created_at < ?", f.End.AddDate(0, 0, 1))
	}
	out := make([]models.ImportBatch, 0)
	if err := q.Order("created_at DESC, id DESC").Find(&out).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	return out, nil
}

type BatchReview struct {
	Batch     *models.ImportBatch `json:"batch"`
	Rows      []models.ImportRow  `json:"rows"`
	HasErrors bool                `json:"hasErrors"`
	Page      ledger.Pagination   `json:"pagination"`
}

// Review returns a batch with a page of its rows, optionally only the rows
// carrying errors.
func (s *Service) Review(ctx context.Context, batchID uint, errorsOnly bool, limit, offset int) (*BatchReview, error) {
	db := s.DB.WithContext(ctx)
	batch, err := s.loadBatch(db, batchID)
	if err != nil {
		return nil, err
	}
	var all []models.ImportRow
	if err := db.Where("batch_id = ?", batch.ID).Order("row_number, id").Find(&all).Error; err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	review := &BatchReview{Batch: batch}
	filtered := make([]models.ImportRow, 0, len(all))
	for _, r := range all {
		if len(r.Errors) > 0 {
			review.HasErrors = true
		} else if errorsOnly {
			continue
		}
		filtered = append(filtered, r)
	}
	review.Page = ledger.NewPagination(limit, offset, int64(len(filtered)))
	end := review.Page.Offset + review.Page.Limit
	if end > len(filtered) {
		end = len(filtered)
	}
	if review.Page.Offset < len(filtered) {
		review.Rows = filtered[review.Page.Offset:end]
	} else {
		review.Rows = []models.ImportRow{}
	}
	return review, nil
}
