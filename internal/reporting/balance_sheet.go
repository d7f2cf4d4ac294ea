package reporting

import (
	"context"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
)

type Line struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

type Section struct {
	Lines []Line          `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

func (s *Section) add(name string, amount decimal.Decimal) {
	s.Lines = append(s.Lines, Line{Name: name, Amount: amount})
	s.Total = s.Total.Add(amount)
}

type BalanceSheet struct {
	AsOf        time.Time `json:"asOf"`
	Assets      Section   `json:"assets"`
	Liabilities Section   `json:"liabilities"`
	Equity      Section   `json:"equity"`
	// Difference is assets minus liabilities and equity. Activity that has
	// no balance sheet home, such as uncategorized transfers, shows up here.
	Difference decimal.Decimal `json:"difference"`
}

const (
	lineReceivable = "Accounts Receivable"
	linePayable    = "Accounts Payable"
	lineRetained   = "Retained Earnings"
)

// BalanceSheet reports point-in-time positions as of the given day.
func (s *Service) BalanceSheet(ctx context.Context, asOf time.Time) (*BalanceSheet, error) {
	db := s.DB.WithContext(ctx)
	sheet := &BalanceSheet{
		AsOf:        asOf,
		Assets:      Section{Lines: []Line{}},
		Liabilities: Section{Lines: []Line{}},
		Equity:      Section{Lines: []Line{}},
	}

	balances, err := s.AccountBalances(ctx, &asOf, false)
	if err != nil {
		return nil, err
	}
	for _, b := range balances {
		if b.AccountType.IsLiability() {
			sheet.Liabilities.add(b.Name, b.Balance.Neg())
		} else {
			sheet.Assets.add(b.Name, b.Balance)
		}
	}

	receivable, err := openBalance(db, "invoice", nil, &asOf)
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	sheet.Assets.add(lineReceivable, receivable)
	payable, err := openBalance(db, "bill", nil, &asOf)
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	sheet.Liabilities.add(linePayable, payable)

	rows, err := loadTransactions(db, txnQuery{
		asOf:  &asOf,
		kinds: []models.Kind{models.KindLiability, models.KindEquity, models.KindOpening, models.KindWithdraw},
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	liab := map[string]decimal.Decimal{}
	equity := map[string]decimal.Decimal{}
	for _, r := range rows {
		name := label(r.CategoryName, string(r.Kind))
		if r.Kind == models.KindLiability {
			liab[name] = liab[name].Add(r.Amount)
		} else {
			equity[name] = equity[name].Add(r.Amount)
		}
	}
	for _, k := range sortedKeys(liab) {
		sheet.Liabilities.add(k, liab[k])
	}
	for _, k := range sortedKeys(equity) {
		sheet.Equity.add(k, equity[k])
	}

	pl, err := profitAndLoss(db, nil, &asOf, GroupYear)
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	sheet.Equity.add(lineRetained, pl.Total.NetIncome)

	sheet.Difference = sheet.Assets.Total.Sub(sheet.Liabilities.Total).Sub(sheet.Equity.Total)
	return sheet, nil
}
