package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.OpenFlowAddr != DefaultOpenFlowAddr {
		t.Fatalf("OpenFlowAddr = %q, want %q", cfg.Server.OpenFlowAddr, DefaultOpenFlowAddr)
	}
	if cfg.Server.HTTPAddr != DefaultHTTPAddr {
		t.Fatalf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, DefaultHTTPAddr)
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("metrics must default to enabled when the file omits them")
	}
}

func TestLoadHonorsExplicitMetricsDisable(t *testing.T) {
	path := writeTemp(t, "[metrics]\nenabled = false\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("an explicit enabled = false must be honored")
	}
}

func TestLoadHonorsExplicitValues(t *testing.T) {
	path := writeTemp(t, `
[server]
openflow_addr = ":7000"
http_addr = ":9090"

[journal]
enabled = true
path = "custom.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.OpenFlowAddr != ":7000" || cfg.Server.HTTPAddr != ":9090" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if !cfg.Journal.Enabled || cfg.Journal.Path != "custom.db" {
		t.Fatalf("unexpected journal config: %+v", cfg.Journal)
	}
}

func TestLoadJournalEnabledWithoutPathGetsDefault(t *testing.T) {
	path := writeTemp(t, "[journal]\nenabled = true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Journal.Path != DefaultJournalPath {
		t.Fatalf("Journal.Path = %q, want default %q", cfg.Journal.Path, DefaultJournalPath)
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
