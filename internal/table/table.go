// Package table provides the in-memory columnar table that flows between
// pipeline stages. Cells are dynamically typed: nil (null), string, int64,
// float64, bool or time.Time. Sinks apply their own storage casts; the CSV
// writer formats cells the same way regardless of destination.
package table

import (
	"fmt"
	"sort"
	"strconv"
	"time"
)

// Table is an ordered set of named columns with row-major data.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// New returns an empty table with the given columns.
func New(name string, columns ...string) *Table {
	return &Table{Name: name, Columns: columns}
}

// ColumnIndex returns the position of a column, or -1 if absent.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Append adds a row. The row must match the column count.
func (t *Table) Append(row []any) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table %s: row has %d cells, want %d", t.Name, len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Column returns all cells of a named column, or nil if the column is absent.
func (t *Table) Column(name string) []any {
	i := t.ColumnIndex(name)
	if i < 0 {
		return nil
	}
	out := make([]any, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out
}

// SetColumn replaces the cells of an existing column, or appends a new column
// when the name is not present. values must match the row count.
func (t *Table) SetColumn(name string, values []any) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("table %s: column %s has %d values, want %d", t.Name, name, len(values), len(t.Rows))
	}
	i := t.ColumnIndex(name)
	if i < 0 {
		t.Columns = append(t.Columns, name)
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], values[r])
		}
		return nil
	}
	for r := range t.Rows {
		t.Rows[r][i] = values[r]
	}
	return nil
}

// Select returns a new table containing only the named columns, in the given
// order. Unknown columns are an error.
func (t *Table) Select(columns ...string) (*Table, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j := t.ColumnIndex(c)
		if j < 0 {
			return nil, fmt.Errorf("table %s: unknown column %s", t.Name, c)
		}
		idx[i] = j
	}
	out := &Table{Name: t.Name, Columns: append([]string{}, columns...)}
	out.Rows = make([][]any, len(t.Rows))
	for r, row := range t.Rows {
		cells := make([]any, len(idx))
		for i, j := range idx {
			cells[i] = row[j]
		}
		out.Rows[r] = cells
	}
	return out, nil
}

// Filter returns a new table keeping only rows where keep returns true.
func (t *Table) Filter(keep func(row []any) bool) *Table {
	out := &Table{Name: t.Name, Columns: t.Columns}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// SortBy orders rows by the named columns ascending, nulls first. The sort is
// stable so ties keep their input order.
func (t *Table) SortBy(columns ...string) error {
	idx := make([]int, len(columns))
	for i, c := range columns {
		j := t.ColumnIndex(c)
		if j < 0 {
			return fmt.Errorf("table %s: unknown sort column %s", t.Name, c)
		}
		idx[i] = j
	}
	sort.SliceStable(t.Rows, func(a, b int) bool {
		for _, j := range idx {
			if c := compareCell(t.Rows[a][j], t.Rows[b][j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return nil
}

// compareCell orders two cells: nulls first, then numerics by value, times
// chronologically, everything else by formatted text.
func compareCell(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if af, aok := numeric(a); aok {
		if bf, bok := numeric(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	as, bs := FormatCell(a), FormatCell(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// FormatCell renders a cell the way staging CSVs store it: nil → empty,
// dates → YYYY-MM-DD, bools → 1/0, floats → shortest round-trip form.
func FormatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		if c {
			return "1"
		}
		return "0"
	case time.Time:
		return c.Format("2006-01-02")
	default:
		return fmt.Sprint(c)
	}
}
