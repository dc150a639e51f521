package schema

import "time"

// OutputEvent carries payloads accepted for display in a pane. History is set
// for the one-shot history replay published when the pane is mounted.
type OutputEvent struct {
	TabID    TabID
	PaneID   PaneID
	Payloads []string
	History  bool
}

// TabEventType describes tab lifecycle or state changes.
type TabEventType string

const (
	// TabEventCreated indicates a tab was created.
	TabEventCreated TabEventType = "created"
	// TabEventClosed indicates a tab was closed.
	TabEventClosed TabEventType = "closed"
	// TabEventActivated indicates a tab became active.
	TabEventActivated TabEventType = "activated"
	// TabEventUpdated indicates tab metadata changed.
	TabEventUpdated TabEventType = "updated"
	// TabEventLayout indicates the pane tree or active pane changed.
	TabEventLayout TabEventType = "layout"
)

// TabEvent represents a change to a tab or the tab list.
type TabEvent struct {
	Type      TabEventType
	Tab       TerminalTab
	ActiveTab TabID
}

// DiagnosticAction names a diagnostics trigger routed by the core.
type DiagnosticAction string

const (
	// DiagnosticCaptureSnapshot captures a terminal snapshot.
	DiagnosticCaptureSnapshot DiagnosticAction = "capture-snapshot"
	// DiagnosticReportHang reports a terminal hang.
	DiagnosticReportHang DiagnosticAction = "report-hang"
	// DiagnosticStressTest runs the fixed-duration terminal stress test.
	DiagnosticStressTest DiagnosticAction = "stress-test"
)

// DiagnosticReport summarizes a diagnostics run for one pane.
type DiagnosticReport struct {
	Action   DiagnosticAction `yaml:"action"`
	TabID    TabID            `yaml:"tab_id"`
	PaneID   PaneID           `yaml:"pane_id"`
	Path     string           `yaml:"path,omitempty"`
	Accepted int              `yaml:"accepted,omitempty"`
	Rejected int              `yaml:"rejected,omitempty"`
	Duration time.Duration    `yaml:"duration,omitempty"`
}
