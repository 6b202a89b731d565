package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if got := cfg.Exporters; len(got) != 1 || got[0] != "file" {
		t.Fatalf("expected default exporter [file], got %v", got)
	}
	if cfg.BatchTimeout != 5*time.Second {
		t.Fatalf("expected default batch timeout 5s, got %v", cfg.BatchTimeout)
	}
	if !cfg.MetricsEnabled {
		t.Fatal("expected metrics enabled by default")
	}
}

func TestLoadExporterList(t *testing.T) {
	t.Setenv("TSUISEKI_EXPORTERS", "console, otlp ,sqlite")
	cfg := Load()
	want := []string{"console", "otlp", "sqlite"}
	if len(cfg.Exporters) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.Exporters)
	}
	for i := range want {
		if cfg.Exporters[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, cfg.Exporters)
		}
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("TSUISEKI_METRICS", "off")
	if Load().MetricsEnabled {
		t.Fatal("expected metrics disabled")
	}
	t.Setenv("TSUISEKI_METRICS", "not-a-bool")
	if !Load().MetricsEnabled {
		t.Fatal("expected fallback to default on garbage value")
	}
}

func TestEnvDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("TSUISEKI_BATCH_TIMEOUT", "soon")
	if got := Load().BatchTimeout; got != 5*time.Second {
		t.Fatalf("expected fallback 5s, got %v", got)
	}
}

func TestLoadScopeConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scopes.json")
	content := `[
		{"http_header": "X-Session-Id", "scope_name": "session"},
		{"package": "app", "object": "Chat", "method": "Handle", "scope_name": "conversation"},
		{"http_header": "X-Ignored"}
	]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadScopeConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HeaderScopes["X-Session-Id"] != "session" {
		t.Fatalf("expected header scope mapping, got %v", cfg.HeaderScopes)
	}
	if _, ok := cfg.HeaderScopes["X-Ignored"]; ok {
		t.Fatal("header entry without scope_name must be dropped")
	}
	if len(cfg.Methods) != 1 || cfg.Methods[0].ScopeName != "conversation" {
		t.Fatalf("expected one method entry, got %v", cfg.Methods)
	}
}

func TestLoadScopeConfigMissingFileDegrades(t *testing.T) {
	cfg, err := LoadScopeConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if len(cfg.Methods) != 0 || len(cfg.HeaderScopes) != 0 {
		t.Fatal("missing file must yield empty config")
	}
}

func TestLoadScopeConfigMalformedDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadScopeConfig(path)
	if err == nil {
		t.Fatal("expected parse error")
	}
	if len(cfg.Methods) != 0 {
		t.Fatal("malformed file must yield empty config")
	}
}
