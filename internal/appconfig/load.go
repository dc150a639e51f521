package appconfig

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pkt.systems/termdeck/schema"
)

// Load reads configuration from the provided path. If path is empty, uses DefaultConfigPath.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetDefault("config_version", cfg.ConfigVersion)
	v.SetDefault("state_dir", cfg.StateDir)
	v.SetDefault("workspace", cfg.Workspace)
	v.SetDefault("cache.path", cfg.Cache.Path)
	v.SetDefault("cache.max_payloads_per_pane", cfg.Cache.MaxPayloadsPerPane)
	v.SetDefault("service.buffer_max_entries", cfg.Service.BufferMaxEntries)
	v.SetDefault("service.title_max", cfg.Service.TitleMax)
	v.SetDefault("service.title_suffix", cfg.Service.TitleSuffix)
	v.SetDefault("history.load_timeout_seconds", cfg.History.LoadTimeoutSeconds)
	v.SetDefault("history.load_retries", cfg.History.LoadRetries)
	v.SetDefault("diagnostics.snapshot_dir", cfg.Diagnostics.SnapshotDir)
	v.SetDefault("diagnostics.stress_duration_seconds", cfg.Diagnostics.StressDurationSeconds)
	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.addr", cfg.Metrics.Addr)

	configLoaded := false
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return Config{}, err
		}
	} else {
		configLoaded = true
	}

	if configLoaded {
		if !v.InConfig("config_version") {
			return Config{}, fmt.Errorf("config_version is required; expected %d", CurrentConfigVersion)
		}
		if v.GetInt("config_version") != CurrentConfigVersion {
			return Config{}, fmt.Errorf("unsupported config_version %d; expected %d", v.GetInt("config_version"), CurrentConfigVersion)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	expandConfigEnv(&cfg)
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if err := schema.ValidateWorkspaceID(schema.WorkspaceID(cfg.Workspace)); err != nil {
		return fmt.Errorf("workspace: %w", err)
	}
	if cfg.Cache.MaxPayloadsPerPane < 0 {
		return fmt.Errorf("cache.max_payloads_per_pane must not be negative")
	}
	if cfg.History.LoadRetries < 0 {
		return fmt.Errorf("history.load_retries must not be negative")
	}
	if cfg.History.LoadTimeoutSeconds < 0 {
		return fmt.Errorf("history.load_timeout_seconds must not be negative")
	}
	if cfg.Diagnostics.StressDurationSeconds < 0 {
		return fmt.Errorf("diagnostics.stress_duration_seconds must not be negative")
	}
	if suffix := len([]rune(cfg.Service.TitleSuffix)); cfg.Service.TitleMax > 0 && cfg.Service.TitleMax <= suffix {
		return fmt.Errorf("service.title_max must exceed the title suffix length")
	}
	addr := strings.TrimSpace(cfg.Metrics.Addr)
	if addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("metrics.addr must be host:port: %w", err)
		}
	}
	return nil
}

func expandConfigEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.StateDir = expandEnv(cfg.StateDir)
	cfg.Cache.Path = expandEnv(cfg.Cache.Path)
	cfg.Diagnostics.SnapshotDir = expandEnv(cfg.Diagnostics.SnapshotDir)
}

func expandEnv(value string) string {
	if value == "" {
		return value
	}
	return os.Expand(value, func(key string) string {
		if key == "" {
			return ""
		}
		if val, ok := lookupEnv(key); ok {
			return val
		}
		return "$" + key
	})
}

func lookupEnv(key string) (string, bool) {
	if val, ok := os.LookupEnv(key); ok {
		return val, true
	}
	switch key {
	case "UID":
		return fmt.Sprintf("%d", os.Getuid()), true
	case "GID":
		return fmt.Sprintf("%d", os.Getgid()), true
	}
	return "", false
}

// WriteDefault writes the default config to the target path.
func WriteDefault(path string, overwrite bool) (string, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("config already exists at %s", path)
		}
	}

	cfg, err := DefaultConfig()
	if err != nil {
		return "", err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}
