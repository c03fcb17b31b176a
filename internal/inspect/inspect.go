// Package inspect samples a POS export and reports, per column, the value
// kind the transforms would infer and how many cells would fail that parse.
//
// The report answers the question an operator has when CleanCloud changes an
// export format: which columns still parse cleanly, and which would lose
// values during the next refresh. Inference is best-effort and never fails
// the run.
package inspect

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"moonwalketl/internal/canonical"
	"moonwalketl/internal/castguard"
	"moonwalketl/internal/table"
)

// Kind is the inferred value kind of a column.
type Kind string

const (
	KindDate  Kind = "date"
	KindInt   Kind = "int"
	KindFloat Kind = "float"
	KindBool  Kind = "bool"
	KindText  Kind = "text"
	KindEmpty Kind = "empty"
)

// Column is the per-column report entry.
type Column struct {
	Name string
	Kind Kind
	// Meaningful is the count of non-empty cells.
	Meaningful int
	// Nulls is the count of nil or empty cells.
	Nulls int
	// ParseLoss is how many meaningful cells fail to parse as Kind.
	// Always zero for text columns.
	ParseLoss int
	// Samples holds up to three distinct raw values, for eyeballing.
	Samples []string
}

// Report infers a kind for every column of the table.
func Report(t *table.Table) []Column {
	out := make([]Column, 0, len(t.Columns))
	for i, name := range t.Columns {
		col := make([]any, 0, len(t.Rows))
		for _, row := range t.Rows {
			col = append(col, row[i])
		}
		out = append(out, inspectColumn(name, col))
	}
	return out
}

func inspectColumn(name string, col []any) Column {
	c := Column{Name: name}
	c.Meaningful = castguard.Meaningful(col)
	c.Nulls = len(col) - c.Meaningful
	c.Samples = sampleValues(col, 3)

	if c.Meaningful == 0 {
		c.Kind = KindEmpty
		return c
	}

	counts := map[Kind]int{
		KindDate:  countParsed(col, parsesAsDate),
		KindBool:  countParsed(col, parsesAsBool),
		KindInt:   countParsed(col, parsesAsInt),
		KindFloat: countParsed(col, parsesAsFloat),
	}

	// Most specific kind that covers a majority of meaningful cells wins.
	// Ints also parse as floats, and 0/1 columns parse as both bool and
	// int, so the order here matters.
	for _, k := range []Kind{KindDate, KindBool, KindInt, KindFloat} {
		if counts[k]*2 > c.Meaningful {
			c.Kind = k
			c.ParseLoss = c.Meaningful - counts[k]
			return c
		}
	}
	c.Kind = KindText
	return c
}

func countParsed(col []any, parses func(string) bool) int {
	n := 0
	for _, v := range col {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if parses(s) {
			n++
		}
	}
	return n
}

func parsesAsDate(s string) bool {
	_, ok := canonical.ParseDate(s)
	return ok
}

func parsesAsBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "1", "true", "false", "yes", "no":
		return true
	}
	return false
}

func parsesAsInt(s string) bool {
	_, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return err == nil
}

func parsesAsFloat(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func sampleValues(col []any, max int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, v := range col {
		s, ok := v.(string)
		if !ok || s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if len(out) == max {
			break
		}
	}
	sort.Strings(out)
	return out
}

// Write renders the report as an aligned text table.
func Write(w io.Writer, name string, rows int, cols []Column) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s: %d rows, %d columns\n", name, rows, len(cols))
	fmt.Fprintln(tw, "COLUMN\tKIND\tVALUES\tNULLS\tPARSE LOSS\tSAMPLES")
	for _, c := range cols {
		loss := "-"
		if c.Kind != KindText && c.Kind != KindEmpty {
			loss = strconv.Itoa(c.ParseLoss)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\n",
			c.Name, c.Kind, c.Meaningful, c.Nulls, loss, strings.Join(c.Samples, ", "))
	}
	return tw.Flush()
}
