package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadJSONAppliesDefaults(t *testing.T) {
	t.Setenv("SCRIBEDESK_API_KEY", "")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{
		"backend": {"documents_base_url": "http://localhost:8006/", "api_key": "k"},
		"databases": {"sqlite3": {"dsn": "data/scribedesk.db"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.DocumentsBaseURL != "http://localhost:8006" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.Backend.DocumentsBaseURL)
	}
	if cfg.Backend.SummariesBaseURL != cfg.Backend.DocumentsBaseURL {
		t.Fatalf("summaries base should default to documents base, got %q", cfg.Backend.SummariesBaseURL)
	}
	if cfg.BasicConfig.ServerAddress != defaultServerAddress {
		t.Fatalf("server address default missing: %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Backend.Timeout() != defaultTimeoutSeconds*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Backend.Timeout())
	}
	want := filepath.Join(dir, "data/scribedesk.db")
	if got := cfg.Databases["sqlite3"].DSN; got != want {
		t.Fatalf("sqlite dsn not resolved, want %q got %q", want, got)
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	t.Setenv("SCRIBEDESK_API_KEY", "from-env")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
backend:
  documents_base_url: http://docs:8006
  summaries_base_url: http://summ:8000
  api_key: from-file
  timeout_seconds: 5
basic_config:
  min_workers: 3
  max_workers: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.APIKey != "from-env" {
		t.Fatalf("env override ignored: %q", cfg.Backend.APIKey)
	}
	if cfg.Backend.SummariesBaseURL != "http://summ:8000" {
		t.Fatalf("summaries base mismatch: %q", cfg.Backend.SummariesBaseURL)
	}
	if cfg.Backend.Timeout() != 5*time.Second {
		t.Fatalf("timeout mismatch: %s", cfg.Backend.Timeout())
	}
	if cfg.BasicConfig.MaxWorkers != 3 {
		t.Fatalf("max workers should be raised to min, got %d", cfg.BasicConfig.MaxWorkers)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("SCRIBEDESK_API_KEY", "")
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"backend": {"documents_base_url": "http://x"}}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing api key error")
	}
}
