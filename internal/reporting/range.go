package reporting

import (
	"time"
)

// Range is an inclusive date window. All means no bounds at all.
type Range struct {
	Key   string    `json:"key"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	All   bool      `json:"all"`
}

const (
	RangeThisMonth   = "this_month"
	RangeLastMonth   = "last_month"
	RangeThisQuarter = "this_quarter"
	RangeLastQuarter = "last_quarter"
	RangeThisYear    = "this_year"
	RangeLastYear    = "last_year"
	RangeAll         = "all"
	RangeCustom      = "custom"
)

var RangeKeys = []string{
	RangeThisMonth, RangeLastMonth, RangeThisQuarter, RangeLastQuarter,
	RangeThisYear, RangeLastYear, RangeAll, RangeCustom,
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func quarterStart(t time.Time) time.Time {
	m := time.Month((int(t.Month())-1)/3*3 + 1)
	return day(t.Year(), m, 1)
}

// ResolveRange turns a preset key, or a custom from/to pair, into concrete
// dates. Unknown keys and malformed or inverted custom dates fall back to the
// current year.
func ResolveRange(key, from, to string, today time.Time) Range {
	today = day(today.Year(), today.Month(), today.Day())
	monthStart := day(today.Year(), today.Month(), 1)
	q := quarterStart(today)

	switch key {
	case RangeThisMonth:
		return Range{Key: key, Start: monthStart, End: monthStart.AddDate(0, 1, -1)}
	case RangeLastMonth:
		start := monthStart.AddDate(0, -1, 0)
		return Range{Key: key, Start: start, End: monthStart.AddDate(0, 0, -1)}
	case RangeThisQuarter:
		return Range{Key: key, Start: q, End: q.AddDate(0, 3, -1)}
	case RangeLastQuarter:
		return Range{Key: key, Start: q.AddDate(0, -3, 0), End: q.AddDate(0, 0, -1)}
	case RangeLastYear:
		return Range{Key: key, Start: day(today.Year()-1, 1, 1), End: day(today.Year()-1, 12, 31)}
	case RangeAll:
		return Range{Key: key, All: true}
	case RangeCustom:
		start, err1 := time.Parse("2006-01-02", from)
		end, err2 := time.Parse("2006-01-02", to)
		if err1 == nil && err2 == nil && !end.Before(start) {
			return Range{Key: key, Start: start, End: end}
		}
	}
	return Range{Key: RangeThisYear, Start: day(today.Year(), 1, 1), End: day(today.Year(), 12, 31)}
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d time.Time) bool {
	if r.All {
		return true
	}
	return !d.Before(r.Start) && !d.After(r.End)
}
