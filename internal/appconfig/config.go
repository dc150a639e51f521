package appconfig

import (
	"os"
	"path/filepath"
	"time"

	"pkt.systems/termdeck/internal/outputcache"
	"pkt.systems/termdeck/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int               `mapstructure:"config_version" yaml:"config_version"`
	StateDir      string            `mapstructure:"state_dir" yaml:"state_dir"`
	Workspace     string            `mapstructure:"workspace" yaml:"workspace"`
	Cache         CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Service       ServiceConfig     `mapstructure:"service" yaml:"service"`
	History       HistoryConfig     `mapstructure:"history" yaml:"history"`
	Diagnostics   DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
	Metrics       MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// CacheConfig controls the sqlite output cache that backs pane history.
type CacheConfig struct {
	Path               string `mapstructure:"path" yaml:"path"`
	MaxPayloadsPerPane int    `mapstructure:"max_payloads_per_pane" yaml:"max_payloads_per_pane"`
}

// ServiceConfig controls tab store behavior.
type ServiceConfig struct {
	BufferMaxEntries int    `mapstructure:"buffer_max_entries" yaml:"buffer_max_entries"`
	TitleMax         int    `mapstructure:"title_max" yaml:"title_max"`
	TitleSuffix      string `mapstructure:"title_suffix" yaml:"title_suffix"`
}

// HistoryConfig controls history loading when a pane is mounted.
type HistoryConfig struct {
	LoadTimeoutSeconds int `mapstructure:"load_timeout_seconds" yaml:"load_timeout_seconds"`
	LoadRetries        int `mapstructure:"load_retries" yaml:"load_retries"`
}

// DiagnosticsConfig controls terminal diagnostics.
type DiagnosticsConfig struct {
	SnapshotDir           string `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`
	StressDurationSeconds int    `mapstructure:"stress_duration_seconds" yaml:"stress_duration_seconds"`
}

// MetricsConfig controls prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	base := filepath.Join(home, ".termdeck")
	return Config{
		ConfigVersion: CurrentConfigVersion,
		StateDir:      filepath.Join(base, "state"),
		Workspace:     string(schema.DefaultWorkspace),
		Cache: CacheConfig{
			Path:               filepath.Join(base, "state", "output.db"),
			MaxPayloadsPerPane: outputcache.DefaultMaxPayloadsPerPane,
		},
		Service: ServiceConfig{
			BufferMaxEntries: schema.DefaultBufferMaxEntries,
			TitleMax:         32,
			TitleSuffix:      "~",
		},
		History: HistoryConfig{
			LoadTimeoutSeconds: int(schema.DefaultHistoryLoadTimeout / time.Second),
			LoadRetries:        schema.DefaultHistoryLoadRetries,
		},
		Diagnostics: DiagnosticsConfig{
			SnapshotDir:           filepath.Join(base, "diagnostics"),
			StressDurationSeconds: int(schema.DefaultStressTestDuration / time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "",
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".termdeck", "config.yaml"), nil
}

// WorkspaceConfig maps the file config onto the core workspace config.
func (c Config) WorkspaceConfig() schema.WorkspaceConfig {
	retries := c.History.LoadRetries
	if retries < 0 {
		retries = 0
	}
	return schema.WorkspaceConfig{
		Workspace:          schema.WorkspaceID(c.Workspace),
		StateDir:           c.StateDir,
		TitleMax:           c.Service.TitleMax,
		TitleSuffix:        c.Service.TitleSuffix,
		BufferMaxEntries:   c.Service.BufferMaxEntries,
		HistoryLoadTimeout: time.Duration(c.History.LoadTimeoutSeconds) * time.Second,
		HistoryLoadRetries: uint64(retries),
		StressTestDuration: time.Duration(c.Diagnostics.StressDurationSeconds) * time.Second,
	}
}
