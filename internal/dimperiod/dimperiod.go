// Package dimperiod generates the calendar dimension table: one row per day
// from the start of the analysis range through a fixed lookahead past today.
// Dashboards join on it for month, quarter and ISO-week groupings.
package dimperiod

import (
	"fmt"
	"time"

	"moonwalketl/internal/config"
	"moonwalketl/internal/table"
)

// Columns is the calendar dimension schema, in output order.
var Columns = []string{
	"Date", "Year", "Quarter", "Month", "Day",
	"YearMonth", "YearQuarter", "MonthStart", "QuarterStart",
	"MonthName", "MonthShort", "QuarterSortOrder", "MonthSortOrder",
	"ISOYear", "ISOWeek", "ISOWeekday", "ISOWeekLabel",
	"IsFirstDayOfISOWeek", "IsLastDayOfISOWeek",
	"DayOfWeek", "DayOfYear", "DayName", "DayShort", "DayOfWeekSortOrder",
	"IsFirstDayOfMonth", "IsLastDayOfMonth", "IsWeekend", "IsWeekday",
	"IsCurrentMonth", "IsCurrentQuarter", "IsCurrentYear", "IsCurrentISOWeek",
	"FiscalYear", "FiscalQuarter",
}

// Start is the first day the dimension covers.
func Start() time.Time {
	return time.Date(config.DimStartYear, 1, 1, 0, 0, 0, 0, time.UTC)
}

// RequiredEnd returns the last day the dimension must cover for a given
// today: the final day of the month LookaheadMonths ahead.
func RequiredEnd(today time.Time) time.Time {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, config.DimLookaheadMonths+1, -1)
}

// NeedsUpdate reports whether an existing dimension table falls short of the
// required range. A missing or empty table always needs generating.
func NeedsUpdate(existing *table.Table, today time.Time) (bool, string) {
	if existing == nil || len(existing.Rows) == 0 {
		return true, "no existing calendar"
	}
	var max time.Time
	for _, v := range existing.Column("Date") {
		t, ok := asDay(v)
		if !ok {
			continue
		}
		if t.After(max) {
			max = t
		}
	}
	if max.IsZero() {
		return true, "no parseable dates"
	}
	required := RequiredEnd(today)
	if max.Before(required) {
		return true, fmt.Sprintf("covers to %s, need %s", max.Format("2006-01-02"), required.Format("2006-01-02"))
	}
	return false, "up to date"
}

func asDay(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		t, err := time.Parse("2006-01-02", x)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// Generate builds the full dimension for the range [Start, RequiredEnd(today)].
// Generating twice with the same today yields identical rows.
func Generate(today time.Time) *table.Table {
	out := table.New("dim_period", Columns...)
	end := RequiredEnd(today)

	currentMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	currentQuarter := quarterStart(today)
	currentISOYear, currentISOWeek := today.ISOWeek()

	for d := Start(); !d.After(end); d = d.AddDate(0, 0, 1) {
		year := int64(d.Year())
		quarter := int64((int(d.Month())-1)/3 + 1)
		month := int64(d.Month())
		isoYear, isoWeek := d.ISOWeek()
		isoWeekday := int64(d.Weekday())
		if isoWeekday == 0 {
			isoWeekday = 7
		}
		monthStart := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		lastOfMonth := monthStart.AddDate(0, 1, -1)

		out.Rows = append(out.Rows, []any{
			d,
			year,
			quarter,
			month,
			int64(d.Day()),
			d.Format("2006-01"),
			fmt.Sprintf("%d-Q%d", d.Year(), quarter),
			monthStart,
			quarterStart(d),
			d.Month().String(),
			d.Format("Jan"),
			quarter,
			month,
			int64(isoYear),
			int64(isoWeek),
			isoWeekday,
			fmt.Sprintf("%d-W%02d", isoYear, isoWeek),
			flag(isoWeekday == 1),
			flag(isoWeekday == 7),
			isoWeekday,
			int64(d.YearDay()),
			d.Weekday().String(),
			d.Format("Mon"),
			isoWeekday,
			flag(d.Day() == 1),
			flag(d.Day() == lastOfMonth.Day()),
			flag(isoWeekday >= 6),
			flag(isoWeekday < 6),
			flag(monthStart.Equal(currentMonth)),
			flag(quarterStart(d).Equal(currentQuarter)),
			flag(d.Year() == today.Year()),
			flag(isoYear == currentISOYear && isoWeek == currentISOWeek),
			year,
			quarter,
		})
	}
	return out
}

func quarterStart(t time.Time) time.Time {
	q := (int(t.Month()) - 1) / 3
	return time.Date(t.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, time.UTC)
}

func flag(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
