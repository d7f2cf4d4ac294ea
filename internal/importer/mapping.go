package importer

import (
	"fmt"

	"bookkeeping/models"
)

var allowedTargets = map[string]bool{
	models.FieldIgnore:      true,
	models.FieldDate:        true,
	models.FieldDescription: true,
	models.FieldAmount:      true,
	models.FieldIndicator:   true,
	models.FieldDebit:       true,
	models.FieldCredit:      true,
}

var strategyLabels = map[models.AmountStrategy]string{
	models.StrategySigned:       "Signed Amount",
	models.StrategyIndicator:    "Amount + Indicator",
	models.StrategySplitColumns: "Debit/Credit",
}

// ValidateMapping checks a column mapping against an amount strategy and
// returns every violation found.
func ValidateMapping(mapping map[string]string, strategy models.AmountStrategy) []string {
	counts := map[string]int{}
	for _, target := range mapping {
		if target != models.FieldIgnore {
			counts[target]++
		}
	}

	var errs []string
	if counts[models.FieldDate] != 1 {
		errs = append(errs, "Mapping must include exactly one Date column.")
	}
	if counts[models.FieldDescription] > 1 {
		errs = append(errs, "At most one Description column allowed.")
	}

	var required []string
	var forbidden []string
	switch strategy {
	case models.StrategySigned:
		required = []string{models.FieldAmount}
		forbidden = []string{models.FieldIndicator, models.FieldDebit, models.FieldCredit}
	case models.StrategyIndicator:
		required = []string{models.FieldAmount, models.FieldIndicator}
		forbidden = []string{models.FieldDebit, models.FieldCredit}
	case models.StrategySplitColumns:
		required = []string{models.FieldDebit, models.FieldCredit}
		forbidden = []string{models.FieldAmount, models.FieldIndicator}
	default:
		return append(errs, "Invalid amount strategy.")
	}
	for _, f := range required {
		if counts[f] != 1 {
			errs = append(errs, fmt.Sprintf("Mapping must include exactly one %s column.", label(f)))
		}
	}
	for _, f := range forbidden {
		if counts[f] > 0 {
			errs = append(errs, fmt.Sprintf("'%s' is not valid for %s strategy.", label(f), strategyLabels[strategy]))
		}
	}
	return errs
}

func label(field string) string {
	if field == "" {
		return field
	}
	return string(field[0]-'a'+'A') + field[1:]
}
