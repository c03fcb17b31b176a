// Package transform turns the raw point-of-sale extracts into the canonical
// staging tables: customers, sales, items and the customer-quality monthly
// rollup. Transforms are pure over in-memory tables; discovery and IO live in
// the source package and the sinks.
package transform

import (
	"strconv"
	"strings"
	"time"

	"moonwalketl/internal/canonical"
	"moonwalketl/internal/castguard"
	"moonwalketl/internal/table"
)

// cellString returns the cell as a non-empty trimmed string.
func cellString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// cellFloat parses numeric cells; accepts typed numbers and strings.
func cellFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func floatOrZero(v any) float64 {
	f, ok := cellFloat(v)
	if !ok {
		return 0
	}
	return f
}

func intOrZero(v any) int64 {
	return int64(floatOrZero(v))
}

func cellTime(v any) (time.Time, bool) {
	t, ok := v.(time.Time)
	return t, ok
}

// timeOrNil normalizes a parsed-date cell to a nil-or-time.Time value.
func timeOrNil(v any) any {
	if t, ok := v.(time.Time); ok {
		return t
	}
	return nil
}

func hasFoldedPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// column is like Table.Column but yields an all-nil column when the source
// file lacks it; exports vary by CleanCloud account settings.
func column(t *table.Table, name string) []any {
	if col := t.Column(name); col != nil {
		return col
	}
	return make([]any, len(t.Rows))
}

// parseDateColumn parses a raw date column with cast-loss accounting.
func parseDateColumn(tableName string, t *table.Table, name string) []any {
	col := column(t, name)
	before := castguard.Meaningful(col)
	out, _ := canonical.ParseDateColumn(col)
	castguard.Check(tableName, name, "date", before, castguard.Meaningful(out))
	return out
}
