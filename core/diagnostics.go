package core

import (
	"context"
	"time"

	"pkt.systems/termdeck/schema"
)

// Diagnostics runs terminal diagnostics against a pane.
type Diagnostics interface {
	CaptureTerminalSnapshot(ctx context.Context, tab schema.TerminalTab, view schema.BufferSnapshot) (schema.DiagnosticReport, error)
	ReportTerminalHang(ctx context.Context, tab schema.TerminalTab, view schema.BufferSnapshot) (schema.DiagnosticReport, error)
	RunTerminalStressTest(ctx context.Context, tab schema.TerminalTab, paneID schema.PaneID, duration time.Duration) (schema.DiagnosticReport, error)
}
