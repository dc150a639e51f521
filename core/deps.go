package core

import (
	"context"
	"time"

	"pkt.systems/termdeck/internal/metrics"
	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

// HistorySource supplies the payloads previously rendered in a pane, in
// display order. Blank entries are allowed.
type HistorySource interface {
	LoadPaneHistory(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) ([]string, error)
}

// OutputRecorder keeps accepted payloads so they become history for the
// next mount of the pane.
type OutputRecorder interface {
	RecordPayload(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, payload string) error
	DropPane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) error
}

// StoreDeps captures optional dependencies for the tab state store.
type StoreDeps struct {
	EventSink EventSink
	Logger    pslog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
}

// WorkspaceDeps captures optional dependencies for a workspace.
type WorkspaceDeps struct {
	StoreDeps
	History     HistorySource
	Recorder    OutputRecorder
	Diagnostics Diagnostics
}
