// Package termdeck composes a tab workspace with its output cache, event
// bus, metrics and diagnostics.
package termdeck

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pkt.systems/termdeck/core"
	"pkt.systems/termdeck/internal/appconfig"
	"pkt.systems/termdeck/internal/diagnostics"
	"pkt.systems/termdeck/internal/eventbus"
	"pkt.systems/termdeck/internal/metrics"
	"pkt.systems/termdeck/internal/outputcache"
	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

// Config configures the compositor.
type Config struct {
	Workspace          schema.WorkspaceConfig
	CachePath          string
	MaxPayloadsPerPane int
	SnapshotDir        string
	MetricsEnabled     bool
	MetricsAddr        string
}

// ConfigFromApp maps the file configuration onto the compositor config.
func ConfigFromApp(cfg appconfig.Config) Config {
	return Config{
		Workspace:          cfg.WorkspaceConfig(),
		CachePath:          cfg.Cache.Path,
		MaxPayloadsPerPane: cfg.Cache.MaxPayloadsPerPane,
		SnapshotDir:        cfg.Diagnostics.SnapshotDir,
		MetricsEnabled:     cfg.Metrics.Enabled,
		MetricsAddr:        cfg.Metrics.Addr,
	}
}

// Deps captures optional dependencies. History overrides the output cache as
// the history source.
type Deps struct {
	EventSink core.EventSink
	History   core.HistorySource
	Logger    pslog.Logger
	Now       func() time.Time
}

// Deck is a running workspace with its supporting services.
type Deck struct {
	cfg      Config
	ws       *core.Workspace
	bus      *eventbus.Bus
	cache    *outputcache.Cache
	registry *prometheus.Registry
	log      pslog.Logger

	mu      sync.Mutex
	metrics *http.Server
	closed  bool
}

// New opens the output cache, restores the workspace and mounts its panes.
func New(ctx context.Context, cfg Config, deps Deps) (*Deck, error) {
	normalized, err := schema.NormalizeWorkspaceConfig(cfg.Workspace)
	if err != nil {
		return nil, err
	}
	cfg.Workspace = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	ctx = pslog.ContextWithLogger(ctx, logger)

	d := &Deck{cfg: cfg, bus: eventbus.New(logger), log: logger.With("workspace", normalized.Workspace)}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		d.registry = prometheus.NewRegistry()
		if m, err = metrics.New(d.registry); err != nil {
			return nil, err
		}
	}

	wsDeps := core.WorkspaceDeps{
		StoreDeps: core.StoreDeps{
			EventSink: fanout(deps.EventSink, d.bus),
			Logger:    logger,
			Metrics:   m,
			Now:       deps.Now,
		},
		History: deps.History,
		Diagnostics: diagnostics.New(diagnostics.Options{
			SnapshotDir: cfg.SnapshotDir,
			Logger:      logger,
		}),
	}
	if path := strings.TrimSpace(cfg.CachePath); path != "" {
		d.cache, err = outputcache.Open(ctx, path, normalized.Workspace, outputcache.Options{
			MaxPayloadsPerPane: cfg.MaxPayloadsPerPane,
			Logger:             logger,
		})
		if err != nil {
			return nil, err
		}
		wsDeps.Recorder = d.cache
		if wsDeps.History == nil {
			wsDeps.History = d.cache
		}
	}

	d.ws, err = core.NewWorkspace(ctx, normalized, wsDeps)
	if err != nil {
		if d.cache != nil {
			_ = d.cache.Close()
		}
		return nil, err
	}
	d.log.Debug("termdeck started", "cache", cfg.CachePath != "", "metrics", cfg.MetricsEnabled)
	return d, nil
}

// Workspace returns the composed workspace.
func (d *Deck) Workspace() *core.Workspace {
	return d.ws
}

// Subscribe streams events for a tab, or every tab with eventbus.AllTabs.
// A subscriber that falls behind loses events; it re-syncs from
// Workspace().Store() and the pane's OutputView.Snapshot.
func (d *Deck) Subscribe(tabID schema.TabID) (<-chan eventbus.Event, func()) {
	return d.bus.Subscribe(tabID)
}

// Registry returns the metrics registry, nil when metrics are disabled.
func (d *Deck) Registry() *prometheus.Registry {
	return d.registry
}

// ServeMetrics exposes the registry over HTTP on the configured address
// until ctx ends or the deck is closed. It returns the bound address.
func (d *Deck) ServeMetrics(ctx context.Context) (string, error) {
	if d.registry == nil || strings.TrimSpace(d.cfg.MetricsAddr) == "" {
		return "", errors.New("metrics endpoint not configured")
	}
	ln, err := net.Listen("tcp", d.cfg.MetricsAddr)
	if err != nil {
		return "", err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	d.mu.Lock()
	if d.closed || d.metrics != nil {
		d.mu.Unlock()
		_ = ln.Close()
		return "", errors.New("metrics endpoint unavailable")
	}
	d.metrics = srv
	d.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Warn("termdeck metrics server failed", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	addr := ln.Addr().String()
	d.log.Info("termdeck metrics listening", "addr", addr)
	return addr, nil
}

// Close tears down the workspace views, the metrics endpoint and the cache.
// Persisted tab state is kept.
func (d *Deck) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	srv := d.metrics
	d.mu.Unlock()

	d.ws.Close()
	var errs []error
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			d.log.Debug("termdeck metrics shutdown", "err", err)
		}
		cancel()
	}
	if d.cache != nil {
		errs = append(errs, d.cache.Close())
	}
	return errors.Join(errs...)
}
