package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"MOONWALK_DOWNLOADS_PATH", "MOONWALK_STAGING_PATH", "MOONWALK_DB_PATH",
		"MOONWALK_GOLDEN_PATH", "MOONWALK_ENV", "ANALYTICS_DATABASE_URL", "ENCRYPTION_KEY",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.StagingPath != "staging" {
		t.Errorf("StagingPath = %q, want %q", cfg.StagingPath, "staging")
	}
	if cfg.DBPath != "moonwalk.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "moonwalk.db")
	}
	if cfg.Env != "production" {
		t.Errorf("Env = %q, want %q", cfg.Env, "production")
	}
	if cfg.RemoteEnabled() {
		t.Error("RemoteEnabled() = true with empty ANALYTICS_DATABASE_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MOONWALK_STAGING_PATH", "/tmp/stage")
	t.Setenv("ANALYTICS_DATABASE_URL", "postgres://x")
	t.Setenv("ENCRYPTION_KEY", "k")

	cfg := Load()

	if cfg.StagingPath != "/tmp/stage" {
		t.Errorf("StagingPath = %q, want /tmp/stage", cfg.StagingPath)
	}
	if !cfg.RemoteEnabled() {
		t.Error("RemoteEnabled() = false with ANALYTICS_DATABASE_URL set")
	}
	if cfg.EncryptionKey != "k" {
		t.Errorf("EncryptionKey = %q, want k", cfg.EncryptionKey)
	}
}

func TestSerialEpoch(t *testing.T) {
	want := time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)
	if !SerialEpoch.Equal(want) {
		t.Errorf("SerialEpoch = %v, want %v", SerialEpoch, want)
	}
}

func TestStagingFile(t *testing.T) {
	cfg := Config{StagingPath: "/data/staging"}
	got := cfg.StagingFile(SalesFile)
	if got != "/data/staging/All_Sales.csv" {
		t.Errorf("StagingFile = %q", got)
	}
}
