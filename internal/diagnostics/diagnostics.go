// Package diagnostics implements the terminal diagnostics triggered from a
// workspace: snapshot capture, hang reports and the stress test.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"pkt.systems/termdeck/core"
	"pkt.systems/termdeck/internal/logx"
	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

// DefaultPayloadInterval paces synthetic payloads during a stress test.
const DefaultPayloadInterval = time.Millisecond

// Options configures a Runner.
type Options struct {
	// SnapshotDir receives snapshot and hang report files. Hang reports are
	// only logged when empty.
	SnapshotDir     string
	PayloadInterval time.Duration
	Logger          pslog.Logger
	Now             func() time.Time
}

// Runner implements core.Diagnostics.
type Runner struct {
	dir      string
	interval time.Duration
	log      pslog.Logger
	now      func() time.Time
}

var _ core.Diagnostics = (*Runner)(nil)

// New constructs a Runner.
func New(opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	interval := opts.PayloadInterval
	if interval <= 0 {
		interval = DefaultPayloadInterval
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{dir: strings.TrimSpace(opts.SnapshotDir), interval: interval, log: logger, now: now}
}

// Snapshot is the YAML document written by CaptureTerminalSnapshot.
type Snapshot struct {
	CapturedAt time.Time    `yaml:"captured_at"`
	Tab        TabSummary   `yaml:"tab"`
	Pane       PaneSnapshot `yaml:"pane"`
}

// TabSummary describes the tab a snapshot was taken from.
type TabSummary struct {
	ID           schema.TabID        `yaml:"id"`
	Kind         schema.TabKind      `yaml:"kind"`
	Title        string              `yaml:"title"`
	TitleLocked  bool                `yaml:"title_locked"`
	Status       schema.TabStatus    `yaml:"status"`
	ActivePane   schema.PaneID       `yaml:"active_pane"`
	Panes        []LeafSummary       `yaml:"panes"`
	SessionState schema.SessionState `yaml:"session_state"`
}

// LeafSummary lists one pane of the tab.
type LeafSummary struct {
	ID        schema.PaneID    `yaml:"id"`
	SessionID schema.SessionID `yaml:"session_id"`
}

// PaneSnapshot is the rendered output of the captured pane.
type PaneSnapshot struct {
	ID           schema.PaneID `yaml:"id"`
	Total        int           `yaml:"total"`
	ScrollOffset int           `yaml:"scroll_offset"`
	AtBottom     bool          `yaml:"at_bottom"`
	Payloads     []string      `yaml:"payloads"`
}

// CaptureTerminalSnapshot writes the pane's rendered output and its tab
// metadata as YAML into the snapshot directory.
func (r *Runner) CaptureTerminalSnapshot(ctx context.Context, tab schema.TerminalTab, view schema.BufferSnapshot) (schema.DiagnosticReport, error) {
	if r.dir == "" {
		return schema.DiagnosticReport{}, errors.New("snapshot directory is not configured")
	}
	log := r.logger(ctx, tab.ID, view.PaneID)
	doc := Snapshot{
		CapturedAt: r.now(),
		Tab:        summarize(tab),
		Pane: PaneSnapshot{
			ID:           view.PaneID,
			Total:        view.Total,
			ScrollOffset: view.ScrollOffset,
			AtBottom:     view.AtBottom,
			Payloads:     append([]string(nil), view.Payloads...),
		},
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return schema.DiagnosticReport{}, fmt.Errorf("encode snapshot: %w", err)
	}
	path, err := r.write("snapshot", tab.ID, ".yaml", data)
	if err != nil {
		log.Warn("diagnostics snapshot write failed", "err", err)
		return schema.DiagnosticReport{}, err
	}
	log.Info("diagnostics snapshot captured", "path", path, "payloads", view.Total)
	return schema.DiagnosticReport{
		Action: schema.DiagnosticCaptureSnapshot,
		TabID:  tab.ID,
		PaneID: view.PaneID,
		Path:   path,
	}, nil
}

// ReportTerminalHang logs the pane state with a goroutine dump. The dump is
// also written to the snapshot directory when one is configured.
func (r *Runner) ReportTerminalHang(ctx context.Context, tab schema.TerminalTab, view schema.BufferSnapshot) (schema.DiagnosticReport, error) {
	log := r.logger(ctx, tab.ID, view.PaneID)
	dump := goroutineDump()
	log.Warn("diagnostics terminal hang reported",
		"status", tab.Status,
		"payloads", view.Total,
		"at_bottom", view.AtBottom,
		"goroutines", runtime.NumGoroutine(),
	)
	log.Debug("diagnostics goroutine dump", "dump", string(dump))
	report := schema.DiagnosticReport{Action: schema.DiagnosticReportHang, TabID: tab.ID, PaneID: view.PaneID}
	if r.dir == "" {
		return report, nil
	}
	path, err := r.write("hang", tab.ID, ".txt", dump)
	if err != nil {
		log.Warn("diagnostics hang report write failed", "err", err)
		return schema.DiagnosticReport{}, err
	}
	report.Path = path
	return report, nil
}

// RunTerminalStressTest drives a fresh known set with synthetic payloads for
// duration. Every third payload re-sends the one before it and must be rejected.
func (r *Runner) RunTerminalStressTest(ctx context.Context, tab schema.TerminalTab, paneID schema.PaneID, duration time.Duration) (schema.DiagnosticReport, error) {
	if duration <= 0 {
		duration = schema.DefaultStressTestDuration
	}
	log := r.logger(ctx, tab.ID, paneID)
	log.Info("diagnostics stress test started", "duration", duration)

	started := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	known := core.BuildKnownOutputPayloads(nil)
	accepted, rejected, seq := 0, 0, 0
loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case <-ticker.C:
		}
		payload := stressPayload(paneID, seq)
		if seq%3 == 2 {
			payload = stressPayload(paneID, seq-1)
		}
		seq++
		if core.ShouldProcessLiveOutputPayload(known, payload) {
			accepted++
		} else {
			rejected++
		}
	}
	if ctx.Err() != nil {
		log.Warn("diagnostics stress test aborted", "err", ctx.Err(), "accepted", accepted, "rejected", rejected)
		return schema.DiagnosticReport{}, ctx.Err()
	}
	report := schema.DiagnosticReport{
		Action:   schema.DiagnosticStressTest,
		TabID:    tab.ID,
		PaneID:   paneID,
		Accepted: accepted,
		Rejected: rejected,
		Duration: time.Since(started),
	}
	if known.Len() != accepted {
		return report, fmt.Errorf("stress test: %d accepted but %d known", accepted, known.Len())
	}
	log.Info("diagnostics stress test complete", "accepted", accepted, "rejected", rejected, "elapsed", report.Duration)
	return report, nil
}

func stressPayload(paneID schema.PaneID, seq int) string {
	return fmt.Sprintf(`{"type":"stress","pane":%q,"seq":%d}`, paneID, seq)
}

func summarize(tab schema.TerminalTab) TabSummary {
	leaves := core.Leaves(tab.PaneTree)
	panes := make([]LeafSummary, 0, len(leaves))
	for _, leaf := range leaves {
		panes = append(panes, LeafSummary{ID: leaf.ID, SessionID: leaf.SessionID})
	}
	return TabSummary{
		ID:           tab.ID,
		Kind:         tab.Kind,
		Title:        tab.Title,
		TitleLocked:  tab.TitleLocked,
		Status:       tab.Status,
		ActivePane:   tab.ActivePaneID,
		Panes:        panes,
		SessionState: tab.SessionState.Clone(),
	}
}

func (r *Runner) write(kind string, tabID schema.TabID, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s-%s-%s%s", kind, tabID, strings.ToLower(ulid.Make().String()), ext)
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Runner) logger(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) pslog.Logger {
	if ctx == nil {
		ctx = pslog.ContextWithLogger(context.Background(), r.log)
	}
	return logx.WithTabPane(ctx, tabID, paneID)
}

func goroutineDump() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
