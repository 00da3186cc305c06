package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %s, want 5m", cfg.CacheTTL)
	}
	if cfg.StrictDates || cfg.EnforcePoolCapacity {
		t.Error("strict dates and capacity enforcement must be off by default")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LEDGER_HTTP_ADDR", ":9000")
	t.Setenv("LEDGER_USE_MEMORY", "true")
	t.Setenv("LEDGER_STRICT_DATES", "true")
	t.Setenv("LEDGER_CACHE_TTL", "30s")
	t.Setenv("LEDGER_DEFAULT_COMPANY", "acme")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() error = %v", err)
	}

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9000")
	}
	if !cfg.UseMemory || !cfg.StrictDates {
		t.Errorf("expected UseMemory and StrictDates, got %+v", cfg)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("CacheTTL = %s, want 30s", cfg.CacheTTL)
	}
	if cfg.DefaultCompany != "acme" {
		t.Errorf("DefaultCompany = %q, want %q", cfg.DefaultCompany, "acme")
	}
}

func TestFromEnv_InvalidValue(t *testing.T) {
	t.Setenv("LEDGER_CACHE_TTL", "soon")

	if _, err := FromEnv(); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "LEDGER_POSTGRES_DSN=postgres://ledger@localhost/ledger\nLEDGER_LOG_LEVEL=debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// Set beforehand so t.Setenv restores the original environment afterwards;
	// an already set variable is not overridden by the file.
	t.Setenv("LEDGER_POSTGRES_DSN", "")
	os.Unsetenv("LEDGER_POSTGRES_DSN")
	t.Setenv("LEDGER_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.PostgresDSN != "postgres://ledger@localhost/ledger" {
		t.Errorf("PostgresDSN = %q", cfg.PostgresDSN)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want existing env value %q", cfg.LogLevel, "warn")
	}
}

func TestLoad_MissingEnvFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}

func TestRead_TOML(t *testing.T) {
	input := `
http_addr = ":7000"
use_memory = true
enforce_pool_capacity = true
cache_ttl = "90s"
default_company = "acme"
`
	cfg, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if cfg.HTTPAddr != ":7000" || !cfg.UseMemory || !cfg.EnforcePoolCapacity {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %s, want 90s", cfg.CacheTTL)
	}
	// Unset keys keep their defaults
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, "info")
	}
}

func TestReadFromFile_Missing(t *testing.T) {
	if _, err := ReadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without storage backend")
	}

	cfg.UseMemory = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   slog.Level
		wantOK bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseLevel(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNewLogger_UnknownLevelWarns(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.LogLevel = "verbose"

	logger := cfg.NewLogger(&buf)
	logger.Debug("hidden")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if record["msg"] != "unknown log level, using info" {
		t.Errorf("unexpected record: %v", record)
	}
}
