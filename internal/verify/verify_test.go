package verify

import (
	"path/filepath"
	"strings"
	"testing"

	"moonwalketl/internal/table"
)

func makeTable(t *testing.T, columns []string, rows ...[]any) *table.Table {
	t.Helper()
	tb := table.New("test", columns...)
	for _, row := range rows {
		tb.Rows = append(tb.Rows, row)
	}
	return tb
}

func TestCompareIdentical(t *testing.T) {
	golden := makeTable(t, []string{"CustomerID_Std", "Total_Num"},
		[]any{"CC-0101", "100.5"},
		[]any{"MW-0055", "80"},
	)
	current := makeTable(t, []string{"CustomerID_Std", "Total_Num"},
		[]any{"CC-0101", "100.5"},
		[]any{"MW-0055", "80"},
	)
	r := Compare("sales", golden, current)
	if !r.Match() {
		t.Fatalf("issues=%v", r.Issues)
	}
}

func TestCompareIgnoresRowOrder(t *testing.T) {
	golden := makeTable(t, []string{"ID", "V"},
		[]any{"a", "1"},
		[]any{"b", "2"},
	)
	current := makeTable(t, []string{"ID", "V"},
		[]any{"b", "2"},
		[]any{"a", "1"},
	)
	if r := Compare("t", golden, current); !r.Match() {
		t.Fatalf("reordered rows should match: %v", r.Issues)
	}
}

func TestCompareRowCount(t *testing.T) {
	golden := makeTable(t, []string{"ID"}, []any{"a"}, []any{"b"})
	current := makeTable(t, []string{"ID"}, []any{"a"})
	r := Compare("t", golden, current)
	if r.Match() {
		t.Fatal("row count mismatch should fail")
	}
	if !strings.Contains(r.Issues[0], "golden=2, current=1") {
		t.Errorf("issue=%q", r.Issues[0])
	}
}

func TestCompareColumnSets(t *testing.T) {
	golden := makeTable(t, []string{"A", "B"}, []any{"1", "2"})
	current := makeTable(t, []string{"A", "C"}, []any{"1", "3"})
	r := Compare("t", golden, current)
	if len(r.Issues) < 2 {
		t.Fatalf("issues=%v", r.Issues)
	}
	if !strings.Contains(r.Issues[0], "missing columns: [B]") {
		t.Errorf("issue=%q", r.Issues[0])
	}
	if !strings.Contains(r.Issues[1], "extra columns: [C]") {
		t.Errorf("issue=%q", r.Issues[1])
	}
}

func TestCompareColumnOrder(t *testing.T) {
	golden := makeTable(t, []string{"A", "B"}, []any{"1", "2"})
	current := makeTable(t, []string{"B", "A"}, []any{"2", "1"})
	r := Compare("t", golden, current)
	if r.Match() {
		t.Fatal("column order change should be reported")
	}
	if r.Issues[0] != "column order differs" {
		t.Errorf("issue=%q", r.Issues[0])
	}
}

func TestCompareFloatTolerance(t *testing.T) {
	golden := makeTable(t, []string{"V"}, []any{"100.0"})

	within := makeTable(t, []string{"V"}, []any{"100.0000000001"})
	if r := Compare("t", golden, within); !r.Match() {
		t.Fatalf("drift below tolerance should match: %v", r.Issues)
	}

	beyond := makeTable(t, []string{"V"}, []any{"100.1"})
	r := Compare("t", golden, beyond)
	if r.Match() {
		t.Fatal("drift above tolerance should fail")
	}
	if !strings.Contains(r.Issues[0], "1 value mismatches (float tol=1e-06)") {
		t.Errorf("issue=%q", r.Issues[0])
	}
}

func TestCompareNullPattern(t *testing.T) {
	golden := makeTable(t, []string{"V"}, []any{"1"}, []any{"2"})
	current := makeTable(t, []string{"V"}, []any{"1"}, []any{nil})
	if r := Compare("t", golden, current); r.Match() {
		t.Fatal("null pattern change should fail")
	}
}

func TestCompareTextColumn(t *testing.T) {
	golden := makeTable(t, []string{"Name"}, []any{"Fatima"})
	current := makeTable(t, []string{"Name"}, []any{"Ahmed"})
	r := Compare("t", golden, current)
	if r.Match() {
		t.Fatal("text mismatch should fail")
	}
	if !strings.Contains(r.Issues[0], "Name: 1 value mismatches") {
		t.Errorf("issue=%q", r.Issues[0])
	}
}

func TestCompareSkipsVolatileColumns(t *testing.T) {
	golden := makeTable(t, []string{"Date", "IsCurrentMonth"}, []any{"2025-01-01", "1"})
	current := makeTable(t, []string{"Date", "IsCurrentMonth"}, []any{"2025-01-01", "0"})
	if r := Compare("dim_period", golden, current); !r.Match() {
		t.Fatalf("volatile columns should be ignored: %v", r.Issues)
	}
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	golden := filepath.Join(dir, "golden.csv")
	current := filepath.Join(dir, "current.csv")

	tb := makeTable(t, []string{"ID", "V"}, []any{"a", "1"})
	if err := tb.WriteFile(golden); err != nil {
		t.Fatal(err)
	}
	if err := tb.WriteFile(current); err != nil {
		t.Fatal(err)
	}

	if r := CompareFiles("t", golden, current); !r.Match() || r.Skipped {
		t.Fatalf("round-trip should match: %+v", r)
	}
	if r := CompareFiles("t", filepath.Join(dir, "absent.csv"), current); !r.Skipped {
		t.Fatalf("missing golden should skip: %+v", r)
	}
	r := CompareFiles("t", golden, filepath.Join(dir, "absent.csv"))
	if r.Skipped || r.Match() {
		t.Fatalf("missing output should fail: %+v", r)
	}
	if r.Issues[0] != "output file missing" {
		t.Errorf("issue=%q", r.Issues[0])
	}
}
