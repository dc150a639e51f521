package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 7
workspace: dev
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRequiresConfigVersion(t *testing.T) {
	path := writeConfig(t, `
workspace: dev
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected missing config_version error, got %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workspace != "default" || cfg.Service.BufferMaxEntries == 0 {
		t.Fatalf("expected defaults, got %#v", cfg)
	}
}

func TestLoadOverridesAndExpandsEnv(t *testing.T) {
	t.Setenv("TERMDECK_HOME", "/data/termdeck")
	path := writeConfig(t, `
config_version: 1
workspace: work.main
state_dir: $TERMDECK_HOME/state
cache:
  path: $TERMDECK_HOME/output.db
  max_payloads_per_pane: 50
history:
  load_timeout_seconds: 2
  load_retries: 0
diagnostics:
  stress_duration_seconds: 5
metrics:
  enabled: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/data/termdeck/state" || cfg.Cache.Path != "/data/termdeck/output.db" {
		t.Fatalf("expected env expansion, got %q and %q", cfg.StateDir, cfg.Cache.Path)
	}
	if cfg.Cache.MaxPayloadsPerPane != 50 || cfg.Metrics.Enabled {
		t.Fatalf("unexpected overrides: %#v", cfg)
	}
	ws := cfg.WorkspaceConfig()
	if ws.Workspace != "work.main" || ws.HistoryLoadTimeout != 2*time.Second || ws.StressTestDuration != 5*time.Second {
		t.Fatalf("unexpected workspace config: %#v", ws)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"workspace": `
config_version: 1
workspace: "Not Valid"
`,
		"metrics.addr": `
config_version: 1
metrics:
  addr: localhost
`,
		"service.title_max": `
config_version: 1
service:
  title_max: 1
  title_suffix: "..."
`,
		"history.load_retries": `
config_version: 1
history:
  load_retries: -1
`,
	}
	for key, content := range cases {
		if _, err := Load(writeConfig(t, content)); err == nil || !strings.Contains(err.Error(), key) {
			t.Fatalf("%s: expected validation error, got %v", key, err)
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := Load(path); err != nil {
		t.Fatalf("expected written default to load: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
