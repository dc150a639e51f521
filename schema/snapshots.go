package schema

import "time"

// TabStatus describes the current state of a tab session.
type TabStatus string

const (
	// TabStatusIdle indicates a tab is idle.
	TabStatusIdle TabStatus = "idle"
	// TabStatusRunning indicates the tab's session is producing output.
	TabStatusRunning TabStatus = "running"
	// TabStatusError indicates the tab's session failed.
	TabStatusError TabStatus = "error"
	// TabStatusStopped indicates the tab's session has been stopped.
	TabStatusStopped TabStatus = "stopped"
)

// NormalizeTabStatus returns the canonical status, or false when unknown.
func NormalizeTabStatus(status string) (TabStatus, bool) {
	switch TabStatus(status) {
	case TabStatusIdle, TabStatusRunning, TabStatusError, TabStatusStopped:
		return TabStatus(status), true
	default:
		return "", false
	}
}

// TerminalTab is a tab with its pane layout and session metadata. Values
// handed out by the store are deep copies and must be treated as read-only.
type TerminalTab struct {
	ID                TabID
	Kind              TabKind
	Title             string
	TitleLocked       bool
	ProviderID        ProviderID
	SessionState      SessionState
	PaneTree          PaneNode
	ActivePaneID      PaneID
	PaneStates        map[PaneID]PaneState
	Status            TabStatus
	HasUnsavedChanges bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TabPatch is a partial update of a tab. Nil fields are left untouched.
type TabPatch struct {
	Title             *string
	TitleLocked       *bool
	Status            *TabStatus
	HasUnsavedChanges *bool
	SessionState      *SessionState
}

// Empty reports whether the patch changes nothing.
func (p TabPatch) Empty() bool {
	return p.Title == nil && p.TitleLocked == nil && p.Status == nil && p.HasUnsavedChanges == nil && p.SessionState == nil
}

// BufferSnapshot represents the visible part of a pane's rendered output.
type BufferSnapshot struct {
	TabID        TabID
	PaneID       PaneID
	Payloads     []string
	Total        int
	ScrollOffset int
	AtBottom     bool
}
