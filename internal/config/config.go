// Package config centralizes paths, connection settings and business
// constants for the Moonwalk analytics pipeline. Everything is loaded once
// from the environment at process start and passed down explicitly; library
// code never reads env vars on its own.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Business constants. These are properties of the data, not deployment
// settings, so they are not configurable.
const (
	// MoonwalkStoreID and HieloStoreID are the POS store identifiers for the
	// two physical locations.
	MoonwalkStoreID = "36319"
	HieloStoreID    = "38516"

	// SubscriptionValidityDays is how long a subscription payment covers
	// orders placed after it.
	SubscriptionValidityDays = 30

	// DimStartYear is the first year covered by the date dimension.
	DimStartYear = 2023

	// DimLookaheadMonths is how far past today the date dimension extends.
	DimLookaheadMonths = 3
)

// SerialEpoch is the day-zero reference for spreadsheet serial date numbers.
// Serial 1 is 1899-12-31; the off-by-two epoch accounts for the historical
// leap-year bug in spreadsheet date handling.
var SerialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Canonical staging file names, one per output table.
const (
	SalesFile     = "All_Sales.csv"
	CustomersFile = "All_Customers.csv"
	ItemsFile     = "All_Items.csv"
	QualityFile   = "Customer_Quality_Monthly.csv"
	DimPeriodFile = "DimPeriod.csv"

	// LegacyArchiveFile is the fixed-name export from the pre-2025 POS.
	LegacyArchiveFile = "RePos_Archive.csv"
)

// Config carries all deployment-specific settings.
type Config struct {
	// DownloadsPath is where raw POS exports land.
	DownloadsPath string
	// StagingPath is where canonical CSVs are written.
	StagingPath string
	// DBPath is the local SQLite analytics database file.
	DBPath string
	// GoldenPath holds baseline CSVs for output verification.
	GoldenPath string

	// Env is "production" or "development".
	Env string

	// AnalyticsDatabaseURL is the remote Postgres DSN. Empty means the
	// remote sync stage is skipped.
	AnalyticsDatabaseURL string
	// EncryptionKey is the pgcrypto symmetric key for PII columns. Required
	// whenever AnalyticsDatabaseURL is set; the Postgres sink refuses to
	// write customer data without it.
	EncryptionKey string
}

// Load builds a Config from the environment, applying defaults for anything
// unset.
func Load() Config {
	return Config{
		DownloadsPath:        envOr("MOONWALK_DOWNLOADS_PATH", defaultDownloads()),
		StagingPath:          envOr("MOONWALK_STAGING_PATH", "staging"),
		DBPath:               envOr("MOONWALK_DB_PATH", "moonwalk.db"),
		GoldenPath:           envOr("MOONWALK_GOLDEN_PATH", "golden_baselines"),
		Env:                  envOr("MOONWALK_ENV", "production"),
		AnalyticsDatabaseURL: os.Getenv("ANALYTICS_DATABASE_URL"),
		EncryptionKey:        os.Getenv("ENCRYPTION_KEY"),
	}
}

// RemoteEnabled reports whether the Postgres sync stage should run.
func (c Config) RemoteEnabled() bool {
	return c.AnalyticsDatabaseURL != ""
}

// StagingFile returns the full path of a staging CSV.
func (c Config) StagingFile(name string) string {
	return filepath.Join(c.StagingPath, name)
}

// GoldenFile returns the full path of a golden baseline CSV. A relative
// GoldenPath is resolved under the staging directory.
func (c Config) GoldenFile(name string) string {
	if filepath.IsAbs(c.GoldenPath) {
		return filepath.Join(c.GoldenPath, name)
	}
	return filepath.Join(c.StagingPath, c.GoldenPath, name)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDownloads() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}
