// Command inspect samples a POS export CSV and prints a per-column report:
// the value kind the transforms would infer, null counts, and how many cells
// would fail that parse during a refresh.
//
// The file can be named directly with -file, or discovered from the
// downloads directory by pattern the same way the refresh does:
//
//	inspect -file ~/Downloads/CC-orders_export.csv
//	inspect -pattern orders
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"moonwalketl/internal/config"
	"moonwalketl/internal/inspect"
	"moonwalketl/internal/source"
)

func main() {
	var (
		file    string
		pattern string
	)
	flag.StringVar(&file, "file", "", "CSV file to inspect")
	flag.StringVar(&pattern, "pattern", "", "discover the newest export matching this pattern (customer, orders, invoice, item)")
	flag.Parse()

	if (file == "") == (pattern == "") {
		fatalf("exactly one of -file or -pattern is required")
	}

	if pattern != "" {
		cfg := config.Load()
		found, err := source.FindExport(cfg.DownloadsPath, pattern)
		if err != nil {
			fatalf("discover: %v", err)
		}
		file = found
	}

	t, err := source.Extract(context.Background(), "inspect", file)
	if err != nil {
		fatalf("extract: %v", err)
	}

	if err := inspect.Write(os.Stdout, file, len(t.Rows), inspect.Report(t)); err != nil {
		fatalf("write report: %v", err)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
