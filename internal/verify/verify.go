// Package verify compares pipeline outputs against golden baseline CSVs.
// It runs after a load to catch regressions in the transforms: row counts,
// column sets and cell values all have to match the frozen baselines, with a
// small tolerance for float round-trips through CSV.
package verify

import (
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"strconv"

	"moonwalketl/internal/config"
	"moonwalketl/internal/table"
)

// FloatTolerance is the maximum absolute difference two numeric cells may
// have and still count as equal.
const FloatTolerance = 1e-6

// Files are the staging outputs with golden baselines.
var Files = []string{
	config.SalesFile,
	config.CustomersFile,
	config.ItemsFile,
	config.QualityFile,
	config.DimPeriodFile,
}

// skipColumns change with the run date, so a frozen baseline can never match
// them.
var skipColumns = map[string]struct{}{
	"IsCurrentMonth":   {},
	"IsCurrentQuarter": {},
	"IsCurrentYear":    {},
	"IsCurrentISOWeek": {},
}

// Result is the outcome of comparing one output file.
type Result struct {
	Name    string
	Skipped bool
	Issues  []string
}

// Match reports whether the comparison passed.
func (r Result) Match() bool { return len(r.Issues) == 0 }

// All compares every staged output against its baseline and reports whether
// the whole set passed. Outputs without a baseline are skipped.
func All(cfg config.Config) ([]Result, bool) {
	results := make([]Result, 0, len(Files))
	ok := true
	for _, name := range Files {
		r := CompareFiles(name, cfg.GoldenFile(name), cfg.StagingFile(name))
		switch {
		case r.Skipped:
			log.Printf("[SKIP] %s: no golden baseline", name)
		case r.Match():
			log.Printf("[OK]   %s", name)
		default:
			log.Printf("[FAIL] %s:", name)
			for _, issue := range r.Issues {
				log.Printf("  - %s", issue)
			}
			ok = false
		}
		results = append(results, r)
	}
	return results, ok
}

// CompareFiles compares one output CSV against its baseline on disk. A
// missing baseline skips the check; a missing output fails it.
func CompareFiles(name, goldenPath, currentPath string) Result {
	if _, err := os.Stat(goldenPath); err != nil {
		return Result{Name: name, Skipped: true}
	}
	if _, err := os.Stat(currentPath); err != nil {
		return Result{Name: name, Issues: []string{"output file missing"}}
	}

	golden, err := table.ReadFile(name, goldenPath)
	if err != nil {
		return Result{Name: name, Issues: []string{fmt.Sprintf("read golden: %v", err)}}
	}
	current, err := table.ReadFile(name, currentPath)
	if err != nil {
		return Result{Name: name, Issues: []string{fmt.Sprintf("read output: %v", err)}}
	}
	return Compare(name, golden, current)
}

// Compare diffs two tables cell by cell.
//
// Both sides are projected onto their shared columns and sorted by all of
// them before comparing, so an ordering change alone cannot fail the check.
// Columns that fail as text get a second pass with numeric parsing and
// FloatTolerance, which absorbs float formatting drift between writers.
func Compare(name string, golden, current *table.Table) Result {
	r := Result{Name: name}

	if len(golden.Rows) != len(current.Rows) {
		r.Issues = append(r.Issues, fmt.Sprintf(
			"row count: golden=%d, current=%d", len(golden.Rows), len(current.Rows)))
	}

	missing := columnDiff(golden.Columns, current.Columns)
	extra := columnDiff(current.Columns, golden.Columns)
	if len(missing) > 0 {
		r.Issues = append(r.Issues, fmt.Sprintf("missing columns: %v", missing))
	}
	if len(extra) > 0 {
		r.Issues = append(r.Issues, fmt.Sprintf("extra columns: %v", extra))
	}
	if len(missing) == 0 && len(extra) == 0 && !sameOrder(golden.Columns, current.Columns) {
		r.Issues = append(r.Issues, "column order differs")
	}

	shared := sharedColumns(golden.Columns, current.Columns)
	minRows := len(golden.Rows)
	if len(current.Rows) < minRows {
		minRows = len(current.Rows)
	}
	if minRows == 0 || len(shared) == 0 {
		return r
	}

	g, err := project(golden, shared, minRows)
	if err != nil {
		r.Issues = append(r.Issues, err.Error())
		return r
	}
	c, err := project(current, shared, minRows)
	if err != nil {
		r.Issues = append(r.Issues, err.Error())
		return r
	}

	for col := range shared {
		if issue := compareColumn(shared[col], g.Column(shared[col]), c.Column(shared[col])); issue != "" {
			r.Issues = append(r.Issues, issue)
		}
	}
	return r
}

// project selects the shared columns, sorts by all of them and truncates to
// n rows.
func project(t *table.Table, columns []string, n int) (*table.Table, error) {
	p, err := t.Select(columns...)
	if err != nil {
		return nil, fmt.Errorf("select shared columns: %v", err)
	}
	if err := p.SortBy(columns...); err != nil {
		return nil, fmt.Errorf("sort shared columns: %v", err)
	}
	p.Rows = p.Rows[:n]
	return p, nil
}

// compareColumn returns an issue string, or "" when the columns agree.
func compareColumn(name string, golden, current []any) string {
	textMismatches := 0
	for i := range golden {
		if table.FormatCell(golden[i]) != table.FormatCell(current[i]) {
			textMismatches++
		}
	}
	if textMismatches == 0 {
		return ""
	}

	// Numeric retry: absorb formatting drift, then count real numeric
	// differences plus null-pattern changes.
	floatMismatches, nullDiffs, bothValid := 0, 0, 0
	for i := range golden {
		gv, gok := cellNumber(golden[i])
		cv, cok := cellNumber(current[i])
		if gok != cok {
			nullDiffs++
			continue
		}
		if gok && cok {
			bothValid++
			if math.Abs(gv-cv) > FloatTolerance {
				floatMismatches++
			}
		}
	}
	if bothValid > 0 {
		if total := floatMismatches + nullDiffs; total > 0 {
			return fmt.Sprintf("%s: %d value mismatches (float tol=%g)", name, total, FloatTolerance)
		}
		return ""
	}
	return fmt.Sprintf("%s: %d value mismatches", name, textMismatches)
}

func cellNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// columnDiff returns the names in a that b lacks, sorted.
func columnDiff(a, b []string) []string {
	have := make(map[string]struct{}, len(b))
	for _, c := range b {
		have[c] = struct{}{}
	}
	var out []string
	for _, c := range a {
		if _, ok := have[c]; !ok {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return out
}

func sharedColumns(a, b []string) []string {
	have := make(map[string]struct{}, len(b))
	for _, c := range b {
		have[c] = struct{}{}
	}
	var out []string
	for _, c := range a {
		if _, ok := have[c]; !ok {
			continue
		}
		if _, skip := skipColumns[c]; skip {
			continue
		}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
