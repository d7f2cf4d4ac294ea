package importer

import (
	"fmt"
	"strings"

	"bookkeeping/models"

	"github.com/shopspring/decimal"
)

// RowError lists every problem found on one CSV row.
type RowError []string

func (e RowError) Error() string { return strings.Join(e, " ") }

// ParseAmount accepts thousands separators, a leading dollar sign and
// accounting-style parenthesized negatives.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(raw, ",", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)
	if len(s) > 1 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + s[1:len(s)-1]
	}
	return decimal.NewFromString(s)
}

// AmountResolver turns the mapped fields of a row into a signed amount:
// positive money in, negative money out.
type AmountResolver interface {
	Resolve(fields map[string]string) (decimal.Decimal, error)
}

// NewResolver picks the resolver for a batch's amount strategy.
func NewResolver(strategy models.AmountStrategy, creditToken, debitToken string) (AmountResolver, error) {
	switch strategy {
	case models.StrategySigned:
		return Signed{}, nil
	case models.StrategyIndicator:
		return IndicatorBased{CreditToken: creditToken, DebitToken: debitToken}, nil
	case models.StrategySplitColumns:
		return SplitColumns{}, nil
	default:
		return nil, fmt.Errorf("unknown amount strategy %q", strategy)
	}
}

// Signed reads an amount whose sign is already correct.
type Signed struct{}

func (Signed) Resolve(fields map[string]string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(fields[models.FieldAmount])
	if raw == "" {
		return decimal.Zero, RowError{"Missing amount value."}
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return decimal.Zero, RowError{"Invalid amount value."}
	}
	return v, nil
}

// IndicatorBased reads an unsigned amount and a separate column holding a
// credit or debit token.
type IndicatorBased struct {
	CreditToken string
	DebitToken  string
}

func (r IndicatorBased) Resolve(fields map[string]string) (decimal.Decimal, error) {
	rawAmount := strings.TrimSpace(fields[models.FieldAmount])
	rawIndicator := strings.TrimSpace(fields[models.FieldIndicator])
	var missing RowError
	if rawAmount == "" {
		missing = append(missing, "Missing amount value.")
	}
	if rawIndicator == "" {
		missing = append(missing, "Missing indicator value.")
	}
	if len(missing) > 0 {
		return decimal.Zero, missing
	}
	v, err := ParseAmount(rawAmount)
	if err != nil {
		return decimal.Zero, RowError{"Invalid amount value."}
	}
	credit := strings.TrimSpace(r.CreditToken)
	debit := strings.TrimSpace(r.DebitToken)
	switch {
	case credit != "" && strings.EqualFold(rawIndicator, credit):
		return v.Abs(), nil
	case debit != "" && strings.EqualFold(rawIndicator, debit):
		return v.Abs().Neg(), nil
	default:
		return decimal.Zero, RowError{fmt.Sprintf("Unknown indicator '%s'.", rawIndicator)}
	}
}

// SplitColumns reads separate debit and credit columns, exactly one of which
// must be filled.
type SplitColumns struct{}

func (SplitColumns) Resolve(fields map[string]string) (decimal.Decimal, error) {
	rawDebit := strings.TrimSpace(fields[models.FieldDebit])
	rawCredit := strings.TrimSpace(fields[models.FieldCredit])
	switch {
	case rawDebit != "" && rawCredit != "":
		return decimal.Zero, RowError{"Both debit and credit populated."}
	case rawDebit == "" && rawCredit == "":
		return decimal.Zero, RowError{"Both debit and credit empty."}
	case rawDebit != "":
		v, err := ParseAmount(rawDebit)
		if err != nil {
			return decimal.Zero, RowError{"Invalid amount value."}
		}
		return v.Abs().Neg(), nil
	default:
		v, err := ParseAmount(rawCredit)
		if err != nil {
			return decimal.Zero, RowError{"Invalid amount value."}
		}
		return v.Abs(), nil
	}
}
