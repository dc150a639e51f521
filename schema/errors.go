package schema

import "errors"

var (
	// ErrTabNotFound indicates a requested tab could not be found.
	ErrTabNotFound = errors.New("tab not found")
	// ErrPaneNotFound indicates a requested pane is not a leaf of the tab's tree.
	ErrPaneNotFound = errors.New("pane not found")
	// ErrTabExists indicates a tab with the same id is already open.
	ErrTabExists = errors.New("tab already exists")
	// ErrInvalidTab indicates a malformed tab.
	ErrInvalidTab = errors.New("invalid tab")
	// ErrInvalidPaneTree indicates a pane tree that breaks its structural invariants.
	ErrInvalidPaneTree = errors.New("invalid pane tree")
	// ErrInvalidOrientation indicates an unknown split orientation.
	ErrInvalidOrientation = errors.New("invalid orientation")
	// ErrPaneClosed indicates the pane output view was torn down.
	ErrPaneClosed = errors.New("pane closed")
	// ErrPaneNotMounted indicates no output view exists for the pane.
	ErrPaneNotMounted = errors.New("pane not mounted")
	// ErrNoActivePane indicates there is no active tab or pane to target.
	ErrNoActivePane = errors.New("no active pane")
	// ErrUnknownDiagnostic indicates an unsupported diagnostic action.
	ErrUnknownDiagnostic = errors.New("unknown diagnostic action")
	// ErrDiagnosticsUnavailable indicates no diagnostics collaborator is configured.
	ErrDiagnosticsUnavailable = errors.New("diagnostics not configured")
)
