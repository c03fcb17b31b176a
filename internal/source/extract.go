package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"moonwalketl/internal/table"
)

// Extract streams the CSV at path into a Table named name. Headers and cells
// are trimmed, a UTF-8 BOM on the first header is stripped, empty cells become
// nil, and short records are padded with nil. The context is checked per
// record so a cancelled run stops mid-file.
func Extract(ctx context.Context, name, path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open extract %s: %w", path, err)
	}
	defer f.Close()
	return extract(ctx, name, f)
}

func extract(ctx context.Context, name string, r io.Reader) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.FieldsPerRecord = -1

	var line int
	readRec := func() ([]string, error) {
		line++
		return cr.Read()
	}

	hdr, err := readRec()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(hdr))
	for i, h := range hdr {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		cols[i] = h
	}

	t := table.New(name, cols...)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		rec, err := readRec()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv read line %d: %w", line, err)
		}

		row := make([]any, len(cols))
		for i := range cols {
			if i >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[i])
			if v != "" {
				row[i] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
}
