package core

import (
	"context"
	"fmt"
	"sync"

	"pkt.systems/termdeck/internal/logx"
	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

type viewKey struct {
	tab  schema.TabID
	pane schema.PaneID
}

// Workspace ties the tab store to the output views of mounted panes. Every
// leaf of every open tab has exactly one view.
type Workspace struct {
	store *Store
	deps  WorkspaceDeps
	log   pslog.Logger

	mu     sync.Mutex
	views  map[viewKey]*OutputView
	closed bool
}

// NewWorkspace constructs the store and mounts views for every restored
// pane.
func NewWorkspace(ctx context.Context, cfg schema.WorkspaceConfig, deps WorkspaceDeps) (*Workspace, error) {
	if deps.Logger == nil {
		deps.Logger = pslog.Ctx(ctx)
	}
	store, err := NewStore(cfg, deps.StoreDeps)
	if err != nil {
		return nil, err
	}
	w := &Workspace{
		store: store,
		deps:  deps,
		log:   store.logger,
		views: make(map[viewKey]*OutputView),
	}
	ctx = logx.ContextWithWorkspace(pslog.ContextWithLogger(ctx, w.log), store.Workspace())
	mounted := 0
	for _, tab := range store.Tabs() {
		for _, leaf := range Leaves(tab.PaneTree) {
			w.mount(ctx, tab.ID, leaf.ID)
			mounted++
		}
	}
	if mounted > 0 {
		w.log.Info("workspace restored", "tabs", len(store.Tabs()), "panes", mounted)
	}
	return w, nil
}

// Store returns the underlying tab store.
func (w *Workspace) Store() *Store {
	return w.store
}

// OpenTab opens a tab and mounts its pane.
func (w *Workspace) OpenTab(ctx context.Context, opts TabOptions) (schema.TerminalTab, error) {
	ctx = w.context(ctx)
	tab, err := w.store.OpenTab(ctx, opts)
	if err != nil {
		return schema.TerminalTab{}, err
	}
	w.mount(ctx, tab.ID, tab.ActivePaneID)
	return tab, nil
}

// CloseTab closes a tab, tears down its views and drops their recorded
// output.
func (w *Workspace) CloseTab(ctx context.Context, id schema.TabID) error {
	ctx = w.context(ctx)
	tab, err := w.store.RemoveTab(ctx, id)
	if err != nil {
		return err
	}
	dropper, dropTab := w.deps.Recorder.(tabDropper)
	for _, leaf := range Leaves(tab.PaneTree) {
		w.unmount(ctx, id, leaf.ID, !dropTab)
	}
	if dropTab {
		if err := dropper.DropTab(ctx, id); err != nil {
			logx.WithTab(ctx, id).Warn("workspace tab output drop failed", "err", err)
		}
	}
	return nil
}

// tabDropper is implemented by recorders that can drop a whole tab at once.
type tabDropper interface {
	DropTab(ctx context.Context, tabID schema.TabID) error
}

// SplitPane splits a pane and mounts the new one.
func (w *Workspace) SplitPane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, orientation schema.Orientation) (schema.PaneID, error) {
	ctx = w.context(ctx)
	created, err := w.store.SplitPane(ctx, tabID, paneID, orientation)
	if err != nil {
		return "", err
	}
	w.mount(ctx, tabID, created)
	return created, nil
}

// ClosePane closes a pane and tears down its view. tabClosed reports that
// it was the last pane and the tab is gone.
func (w *Workspace) ClosePane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) (bool, error) {
	ctx = w.context(ctx)
	tabClosed, err := w.store.ClosePane(ctx, tabID, paneID)
	if err != nil {
		return false, err
	}
	w.unmount(ctx, tabID, paneID, true)
	return tabClosed, nil
}

// Feed passes a live payload to a pane's view.
func (w *Workspace) Feed(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, payload string) (bool, error) {
	view, err := w.viewFor(tabID, paneID)
	if err != nil {
		return false, err
	}
	return view.Feed(ctx, payload)
}

// Attach pumps a live feed into a pane's view.
func (w *Workspace) Attach(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, feed <-chan string) error {
	view, err := w.viewFor(tabID, paneID)
	if err != nil {
		return err
	}
	view.Attach(ctx, feed)
	return nil
}

// View returns the output view of a mounted pane.
func (w *Workspace) View(tabID schema.TabID, paneID schema.PaneID) (*OutputView, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	view, ok := w.views[viewKey{tab: tabID, pane: paneID}]
	return view, ok
}

// Scroll scrolls a pane's view and records the resulting pane state.
func (w *Workspace) Scroll(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, delta, limit int) (schema.PaneState, error) {
	view, err := w.viewFor(tabID, paneID)
	if err != nil {
		return schema.PaneState{}, err
	}
	state := view.Scroll(delta, limit)
	if err := w.store.SetPaneState(w.context(ctx), tabID, paneID, state); err != nil {
		return schema.PaneState{}, err
	}
	return state, nil
}

// ScrollToBottom returns a pane's view to the newest output and records the
// pane state.
func (w *Workspace) ScrollToBottom(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) (schema.PaneState, error) {
	view, err := w.viewFor(tabID, paneID)
	if err != nil {
		return schema.PaneState{}, err
	}
	state := view.ScrollToBottom()
	if err := w.store.SetPaneState(w.context(ctx), tabID, paneID, state); err != nil {
		return schema.PaneState{}, err
	}
	return state, nil
}

// RunDiagnostic routes a diagnostics action to the active pane.
func (w *Workspace) RunDiagnostic(ctx context.Context, action schema.DiagnosticAction) (schema.DiagnosticReport, error) {
	ctx = w.context(ctx)
	diag := w.deps.Diagnostics
	if diag == nil {
		return schema.DiagnosticReport{}, schema.ErrDiagnosticsUnavailable
	}
	tab, ok := w.store.ActiveTab()
	if !ok {
		return schema.DiagnosticReport{}, schema.ErrNoActivePane
	}
	log := logx.WithTabPane(ctx, tab.ID, tab.ActivePaneID).With("action", action)
	view, err := w.viewFor(tab.ID, tab.ActivePaneID)
	if err != nil {
		return schema.DiagnosticReport{}, err
	}
	var report schema.DiagnosticReport
	switch action {
	case schema.DiagnosticCaptureSnapshot:
		report, err = diag.CaptureTerminalSnapshot(ctx, tab, view.Snapshot(0))
	case schema.DiagnosticReportHang:
		report, err = diag.ReportTerminalHang(ctx, tab, view.Snapshot(0))
	case schema.DiagnosticStressTest:
		report, err = diag.RunTerminalStressTest(ctx, tab, tab.ActivePaneID, w.store.cfg.StressTestDuration)
	default:
		err = fmt.Errorf("%w: %q", schema.ErrUnknownDiagnostic, action)
	}
	if err != nil {
		log.Warn("workspace diagnostic failed", "err", err)
		return schema.DiagnosticReport{}, err
	}
	log.Info("workspace diagnostic complete", "path", report.Path)
	return report, nil
}

// Close tears down every view. The store and its persisted state remain.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	views := w.views
	w.views = make(map[viewKey]*OutputView)
	w.mu.Unlock()
	for _, view := range views {
		view.Close()
	}
	w.log.Debug("workspace closed", "views", len(views))
}

func (w *Workspace) viewFor(tabID schema.TabID, paneID schema.PaneID) (*OutputView, error) {
	view, ok := w.View(tabID, paneID)
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", tabID, paneID, schema.ErrPaneNotMounted)
	}
	return view, nil
}

// mount is a no-op once the workspace is closed.
func (w *Workspace) mount(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) {
	cfg := w.store.cfg
	key := viewKey{tab: tabID, pane: paneID}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		logx.WithTabPane(ctx, tabID, paneID).Debug("workspace mount skipped", "reason", "closed")
		return
	}
	view := mountOutputView(ctx, tabID, paneID, outputViewConfig{
		history:    w.deps.History,
		recorder:   w.deps.Recorder,
		sink:       w.deps.EventSink,
		metrics:    w.deps.Metrics,
		timeout:    cfg.HistoryLoadTimeout,
		retries:    cfg.HistoryLoadRetries,
		maxEntries: cfg.BufferMaxEntries,
	})
	previous := w.views[key]
	w.views[key] = view
	w.mu.Unlock()
	if previous != nil {
		previous.Close()
	}
}

func (w *Workspace) unmount(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, drop bool) {
	key := viewKey{tab: tabID, pane: paneID}
	w.mu.Lock()
	view := w.views[key]
	delete(w.views, key)
	w.mu.Unlock()
	if view != nil {
		view.Close()
	}
	if drop && w.deps.Recorder != nil {
		if err := w.deps.Recorder.DropPane(ctx, tabID, paneID); err != nil {
			logx.WithTabPane(ctx, tabID, paneID).Warn("workspace pane output drop failed", "err", err)
		}
	}
}

func (w *Workspace) context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logx.ContextWithWorkspace(pslog.ContextWithLogger(ctx, w.log), w.store.Workspace())
}
