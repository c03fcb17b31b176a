// Package source locates and reads the raw point-of-sale extracts.
//
// CleanCloud exports land in the operator's downloads directory with
// timestamped names; discovery picks the newest matching file per entity. The
// legacy register archive is a fixed file staged once by hand.
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"moonwalketl/internal/config"
)

// Name fragments identifying each CleanCloud export kind.
const (
	PatternCustomers = "customer"
	PatternOrders    = "orders"
	PatternInvoices  = "invoice"
	PatternItems     = "item"
)

// FindExport returns the newest CSV in dir whose name contains pattern
// (case-insensitive) and the "CC-" export marker. Files prefixed "Excel_"
// are spreadsheet re-saves and are skipped: re-saving mangles date cells.
func FindExport(dir, pattern string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read downloads dir %s: %w", dir, err)
	}

	lowerPattern := strings.ToLower(pattern)
	var (
		best     string
		bestTime int64
		found    bool
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if strings.HasPrefix(name, "Excel_") {
			continue
		}
		if !strings.Contains(strings.ToLower(name), lowerPattern) {
			continue
		}
		if !strings.Contains(name, "CC-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if m := info.ModTime().UnixNano(); !found || m > bestTime {
			best = filepath.Join(dir, name)
			bestTime = m
			found = true
		}
	}
	if !found {
		return "", fmt.Errorf("no CleanCloud %q export found in %s", pattern, dir)
	}
	return best, nil
}

// LegacyArchive returns the path of the fixed-name legacy register archive in
// the staging dir, erroring when the file is absent.
func LegacyArchive(stagingDir string) (string, error) {
	path := filepath.Join(stagingDir, config.LegacyArchiveFile)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("legacy archive %s: %w", path, err)
	}
	return path, nil
}
