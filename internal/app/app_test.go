package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.ProviderURL != "https://project.supabase.co" {
		t.Errorf("ProviderURL = %q, want https://project.supabase.co", cfg.ProviderURL)
	}

	// Verify that slog global logger is configured for JSON output
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "warn")

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Info("hidden")
	slog.Default().Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("info log should be suppressed at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn log should be emitted")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	clearTestEnv(t)

	var buf bytes.Buffer
	_, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing config, got nil")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"with password", "postgres://user:secret@db:5432/authgate?sslmode=disable"},
		{"unparseable", "::not a url"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskDatabaseURL(tt.in)
			if strings.Contains(got, "secret") {
				t.Errorf("maskDatabaseURL(%q) = %q, leaks password", tt.in, got)
			}
			if got == "" {
				t.Error("masked URL should not be empty")
			}
		})
	}

	if got := maskDatabaseURL("postgres://user:secret@db:5432/authgate"); !strings.Contains(got, "db:5432") {
		t.Errorf("host should be kept for diagnostics, got %q", got)
	}
}
