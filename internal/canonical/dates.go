// Package canonical standardizes the raw values exported by the POS systems:
// dates in mixed formats, customer and order identifiers, name match keys,
// and the closed label sets (store, payment, category, service, route).
//
// Every function here is total over its input column: an unparseable value
// becomes a null cell, never an error. Loss counts are returned so the
// castguard can report them in aggregate.
package canonical

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"moonwalketl/internal/config"
)

// Date layouts tried in order. The legacy POS exported day-first slash dates;
// the current one exports ISO and "2 Jan 2006" human forms.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
}

// serialPattern matches spreadsheet serial date numbers, optionally with a
// trailing ".0" from float formatting.
var serialPattern = regexp.MustCompile(`^\d{1,5}(\.0*)?$`)

// ParseDate parses one raw date value. Blank, "nan" and "none" are null.
// Serial numbers are resolved against the spreadsheet epoch and must fall in
// [2, 99998]; anything else is tried against the known text layouts.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	switch strings.ToLower(s) {
	case "nan", "none":
		return time.Time{}, false
	}

	if serialPattern.MatchString(s) {
		digits := s
		if i := strings.IndexByte(digits, '.'); i >= 0 {
			digits = digits[:i]
		}
		n, err := strconv.Atoi(digits)
		if err != nil || n < 2 || n > 99998 {
			return time.Time{}, false
		}
		return config.SerialEpoch.AddDate(0, 0, n), true
	}

	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseDateColumn parses every cell of a raw column. Cells that were non-null
// but failed to parse are counted in lost.
func ParseDateColumn(col []any) (out []any, lost int) {
	out = make([]any, len(col))
	for i, cell := range col {
		s, ok := cell.(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		if ts, ok := ParseDate(s); ok {
			out[i] = ts
		} else {
			lost++
		}
	}
	return out, lost
}

// MonthStart truncates a timestamp to the first day of its month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// DayDiff returns the whole-day difference b-a, flooring toward negative
// infinity so partial days never round up.
func DayDiff(a, b time.Time) int64 {
	d := b.Sub(a)
	days := d / (24 * time.Hour)
	if d%(24*time.Hour) < 0 {
		days--
	}
	return int64(days)
}
