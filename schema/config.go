package schema

import (
	"errors"
	"os"
	"path/filepath"
	"time"
)

// WorkspaceConfig defines defaults and limits for the workspace core.
type WorkspaceConfig struct {
	Workspace        WorkspaceID
	StateDir         string
	TitleMax         int
	TitleSuffix      string
	BufferMaxEntries int
	// HistoryLoadTimeout bounds a pane's history load before it is abandoned.
	HistoryLoadTimeout time.Duration
	// HistoryLoadRetries is the number of retries after a failed history load.
	// Zero disables retries.
	HistoryLoadRetries uint64
	// StressTestDuration is the run time of the terminal stress test.
	StressTestDuration time.Duration
	// DisablePersistence keeps all state in memory.
	DisablePersistence bool
}

const (
	// DefaultWorkspace is the workspace used when none is configured.
	DefaultWorkspace WorkspaceID = "default"
	// DefaultBufferMaxEntries is the default per-pane rendered payload limit.
	DefaultBufferMaxEntries = 5000
	// DefaultStressTestDuration is the fixed run time of the stress test.
	DefaultStressTestDuration = 30 * time.Second
	// DefaultHistoryLoadTimeout bounds history loading at mount.
	DefaultHistoryLoadTimeout = 10 * time.Second
	// DefaultHistoryLoadRetries is the default retry count for history loads.
	DefaultHistoryLoadRetries = 3
)

// NormalizeWorkspaceConfig applies defaults and validates the config.
func NormalizeWorkspaceConfig(cfg WorkspaceConfig) (WorkspaceConfig, error) {
	if cfg.Workspace == "" {
		cfg.Workspace = DefaultWorkspace
	}
	if err := ValidateWorkspaceID(cfg.Workspace); err != nil {
		return WorkspaceConfig{}, err
	}
	if cfg.StateDir == "" && !cfg.DisablePersistence {
		home, err := os.UserHomeDir()
		if err != nil {
			return WorkspaceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".termdeck", "state")
	}
	if cfg.TitleMax <= 0 {
		cfg.TitleMax = 32
	}
	if cfg.TitleSuffix == "" {
		cfg.TitleSuffix = "~"
	}
	if cfg.BufferMaxEntries <= 0 {
		cfg.BufferMaxEntries = DefaultBufferMaxEntries
	}
	if cfg.HistoryLoadTimeout <= 0 {
		cfg.HistoryLoadTimeout = DefaultHistoryLoadTimeout
	}
	if cfg.StressTestDuration <= 0 {
		cfg.StressTestDuration = DefaultStressTestDuration
	}
	if cfg.TitleMax <= len([]rune(cfg.TitleSuffix)) {
		return WorkspaceConfig{}, errors.New("title max must exceed suffix length")
	}
	return cfg, nil
}
