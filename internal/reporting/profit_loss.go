package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	appErrors "bookkeeping/internal/errors"
	"bookkeeping/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type GroupBy string

const (
	GroupMonth    GroupBy = "month"
	GroupQuarter  GroupBy = "quarter"
	GroupYear     GroupBy = "year"
	GroupCustomer GroupBy = "customer"
	GroupVendor   GroupBy = "vendor"
	GroupProduct  GroupBy = "product"
)

const unassigned = "Unassigned"

type PLRequest struct {
	Range   Range
	GroupBy GroupBy
}

// PLColumn holds one bucket of the profit and loss statement. Costs are
// reported as positive numbers.
type PLColumn struct {
	Key         string          `json:"key"`
	Income      decimal.Decimal `json:"income"`
	COGS        decimal.Decimal `json:"cogs"`
	GrossProfit decimal.Decimal `json:"grossProfit"`
	Expense     decimal.Decimal `json:"expense"`
	NetIncome   decimal.Decimal `json:"netIncome"`
}

func (c *PLColumn) add(kind models.Kind, amount decimal.Decimal) {
	switch kind {
	case models.KindIncome:
		c.Income = c.Income.Add(amount)
	case models.KindCOGS:
		c.COGS = c.COGS.Add(amount)
	case models.KindExpense, models.KindPayroll:
		c.Expense = c.Expense.Add(amount)
	}
}

func (c *PLColumn) finish() {
	c.GrossProfit = c.Income.Sub(c.COGS)
	c.NetIncome = c.GrossProfit.Sub(c.Expense)
}

type PLReport struct {
	Range   Range      `json:"range"`
	GroupBy GroupBy    `json:"groupBy"`
	Columns []PLColumn `json:"columns"`
	Total   PLColumn   `json:"total"`
}

var plKinds = []models.Kind{models.KindIncome, models.KindCOGS, models.KindExpense, models.KindPayroll}

func periodKey(g GroupBy, d time.Time) string {
	switch g {
	case GroupQuarter:
		return fmt.Sprintf("%d-Q%d", d.Year(), (int(d.Month())-1)/3+1)
	case GroupYear:
		return fmt.Sprintf("%d", d.Year())
	default:
		return d.Format("2006-01")
	}
}

func (g GroupBy) key(d time.Time, counterparty *string, category string) string {
	switch g {
	case GroupCustomer, GroupVendor:
		return label(counterparty, unassigned)
	case GroupProduct:
		if category == "" {
			return unassigned
		}
		return category
	default:
		return periodKey(g, d)
	}
}

func normalizeGroup(g GroupBy) GroupBy {
	switch g {
	case GroupMonth, GroupQuarter, GroupYear, GroupCustomer, GroupVendor, GroupProduct:
		return g
	}
	return GroupMonth
}

// ProfitAndLoss combines invoice and bill lines with transactions that are
// not matched to any document, so a paid invoice is counted once.
func (s *Service) ProfitAndLoss(ctx context.Context, req PLRequest) (*PLReport, error) {
	report, err := profitAndLoss(s.DB.WithContext(ctx), &req.Range, nil, normalizeGroup(req.GroupBy))
	if err != nil {
		return nil, appErrors.NewDatabaseError(err)
	}
	report.Range = req.Range
	return report, nil
}

func profitAndLoss(db *gorm.DB, rng *Range, asOf *time.Time, group GroupBy) (*PLReport, error) {
	columns := map[string]*PLColumn{}
	bucket := func(key string) *PLColumn {
		c, ok := columns[key]
		if !ok {
			c = &PLColumn{Key: key}
			columns[key] = c
		}
		return c
	}

	for _, doc := range []string{"invoice", "bill"} {
		items, err := loadItems(db, doc, rng, asOf)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			bucket(group.key(it.Date, it.Counterparty, it.CategoryName)).add(it.Kind, it.Amount)
		}
	}

	txns, err := loadTransactions(db, txnQuery{rng: rng, asOf: asOf, kinds: plKinds, unmatchedOnly: true})
	if err != nil {
		return nil, err
	}
	for _, t := range txns {
		amount := t.Amount
		if t.Kind != models.KindIncome {
			amount = amount.Neg()
		}
		bucket(group.key(t.Date, t.VendorName, label(t.CategoryName, ""))).add(t.Kind, amount)
	}

	report := &PLReport{GroupBy: group, Columns: make([]PLColumn, 0, len(columns)), Total: PLColumn{Key: "total"}}
	for _, c := range columns {
		c.finish()
		report.Columns = append(report.Columns, *c)
		report.Total.Income = report.Total.Income.Add(c.Income)
		report.Total.COGS = report.Total.COGS.Add(c.COGS)
		report.Total.Expense = report.Total.Expense.Add(c.Expense)
	}
	report.Total.finish()
	sort.Slice(report.Columns, func(i, j int) bool { return report.Columns[i].Key < report.Columns[j].Key })
	return report, nil
}
