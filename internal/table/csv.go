package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteCSV writes the table to w with a header row. Cells are rendered via
// FormatCell so the staging files and the verifier see the same text.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("table %s: write header: %w", t.Name, err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, cell := range row {
			record[i] = FormatCell(cell)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("table %s: write row: %w", t.Name, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the table to path, creating parent directories as needed.
// The write goes through a temp file plus rename so readers never observe a
// half-written staging file.
func (t *Table) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := t.WriteCSV(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadCSV reads a table from r. All cells come back as string or nil (empty
// fields are null); callers apply typed parsing where needed. A UTF-8 BOM on
// the first header cell is stripped.
func ReadCSV(name string, r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("table %s: empty input", name)
	}
	if err != nil {
		return nil, fmt.Errorf("table %s: read header: %w", name, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	t := &Table{Name: name, Columns: append([]string{}, header...)}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("table %s: read row %d: %w", name, len(t.Rows)+2, err)
		}
		row := make([]any, len(t.Columns))
		for i := range row {
			if i < len(record) && record[i] != "" {
				row[i] = record[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
}

// ReadFile reads a table from a CSV file.
func ReadFile(name, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(name, f)
}
