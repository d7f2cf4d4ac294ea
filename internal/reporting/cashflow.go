package reporting

import (
	"context"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
)

type Cashflow struct {
	Range     Range   `json:"range"`
	Operating Section `json:"operating"`
	Investing Section `json:"investing"`
	Financing Section `json:"financing"`
	// AccrualAdjustment is open bills minus open invoices dated in range:
	// income billed but not collected and costs incurred but not paid.
	AccrualAdjustment decimal.Decimal `json:"accrualAdjustment"`
	// NetChange is the cash movement only: the sum of the three sections.
	// AccrualAdjustment is reported beside it and never applied.
	NetChange decimal.Decimal `json:"netChange"`
}

type cashSection int

const (
	sectionNone cashSection = iota
	sectionOperating
	sectionInvesting
	sectionFinancing
)

func classify(r txnRow) cashSection {
	switch {
	case r.Kind == models.KindTransfer:
		return sectionNone
	case r.AccountType == models.AccountLoan:
		return sectionInvesting
	}
	switch r.Kind {
	case models.KindIncome, models.KindExpense, models.KindCOGS, models.KindPayroll:
		return sectionOperating
	case models.KindEquity, models.KindLiability, models.KindWithdraw, models.KindOpening:
		return sectionFinancing
	}
	return sectionNone
}

// Cashflow groups the range's non-transfer transactions into operating,
// investing and financing activity. NetChange is the cash movement only; the
// accrual adjustment is reported beside it.
func (s *Service) Cashflow(ctx context.Context, rng Range) (*Cashflow, error) {
	db := s.DB.WithContext(ctx)
	rows, err := loadTransactions(db, txnQuery{rng: &rng})
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	sums := map[cashSection]map[string]decimal.Decimal{
		sectionOperating: {},
		sectionInvesting: {},
		sectionFinancing: {},
	}
	for _, r := range rows {
		sec := classify(r)
		if sec == sectionNone {
			continue
		}
		name := label(r.CategoryName, "Uncategorized")
		sums[sec][name] = sums[sec][name].Add(r.Amount)
	}

	cf := &Cashflow{Range: rng}
	for sec, dst := range map[cashSection]*Section{
		sectionOperating: &cf.Operating,
		sectionInvesting: &cf.Investing,
		sectionFinancing: &cf.Financing,
	} {
		dst.Lines = []Line{}
		for _, k := range sortedKeys(sums[sec]) {
			dst.add(k, sums[sec][k])
		}
	}

	receivable, err := openBalance(db, "invoice", &rng, nil)
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	payable, err := openBalance(db, "bill", &rng, nil)
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	cf.AccrualAdjustment = payable.Sub(receivable)
	cf.NetChange = cf.Operating.Total.Add(cf.Investing.Total).Add(cf.Financing.Total)
	return cf, nil
}
