package core

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/termdeck/schema"
)

// TabOptions describes a tab to open.
type TabOptions struct {
	Kind         schema.TabKind
	Title        string
	TitleLocked  bool
	ProviderID   schema.ProviderID
	SessionState schema.SessionState
}

// NewTerminalTab builds a tab seeded with a single leaf that is also the
// active pane.
func NewTerminalTab(opts TabOptions, now time.Time) schema.TerminalTab {
	kind := opts.Kind
	if kind == "" {
		kind = schema.TabKindChat
	}
	tree := NewPaneTree()
	state := opts.SessionState.Clone()
	if state.ProviderID == "" {
		state.ProviderID = opts.ProviderID
	}
	if state.InitialProjectPath == "" {
		state.InitialProjectPath = state.ProjectPath
	}
	return schema.TerminalTab{
		ID:           newTabID(),
		Kind:         kind,
		Title:        opts.Title,
		TitleLocked:  opts.TitleLocked,
		ProviderID:   opts.ProviderID,
		SessionState: state,
		PaneTree:     tree,
		ActivePaneID: tree.NodeID(),
		PaneStates:   map[schema.PaneID]schema.PaneState{tree.NodeID(): {AtBottom: true}},
		Status:       schema.TabStatusIdle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// cloneTab returns a deep copy safe to hand to readers.
func cloneTab(tab schema.TerminalTab) schema.TerminalTab {
	out := tab
	out.SessionState = tab.SessionState.Clone()
	out.PaneTree = ClonePaneTree(tab.PaneTree)
	if tab.PaneStates != nil {
		out.PaneStates = make(map[schema.PaneID]schema.PaneState, len(tab.PaneStates))
		for id, state := range tab.PaneStates {
			out.PaneStates[id] = state
		}
	}
	return out
}

func validateTab(tab schema.TerminalTab) error {
	if strings.TrimSpace(string(tab.ID)) == "" {
		return fmt.Errorf("%w: missing id", schema.ErrInvalidTab)
	}
	if _, ok := schema.NormalizeTabKind(string(tab.Kind)); !ok {
		return fmt.Errorf("%w: unknown kind %q", schema.ErrInvalidTab, tab.Kind)
	}
	if err := ValidatePaneTree(tab.PaneTree); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrInvalidTab, err)
	}
	if tab.ActivePaneID != "" {
		if _, ok := FindLeaf(tab.PaneTree, tab.ActivePaneID); !ok {
			return fmt.Errorf("%w: active pane %s outside tree", schema.ErrInvalidTab, tab.ActivePaneID)
		}
	}
	return nil
}

// applyPatch applies a patch and reports whether anything changed.
func applyPatch(tab *schema.TerminalTab, patch schema.TabPatch, titleMax int, titleSuffix string) bool {
	changed := false
	if patch.Title != nil {
		title := formatTitle(*patch.Title, titleMax, titleSuffix)
		if tab.Title != title {
			tab.Title = title
			changed = true
		}
	}
	if patch.TitleLocked != nil && tab.TitleLocked != *patch.TitleLocked {
		tab.TitleLocked = *patch.TitleLocked
		changed = true
	}
	if patch.Status != nil && tab.Status != *patch.Status {
		tab.Status = *patch.Status
		changed = true
	}
	if patch.HasUnsavedChanges != nil && tab.HasUnsavedChanges != *patch.HasUnsavedChanges {
		tab.HasUnsavedChanges = *patch.HasUnsavedChanges
		changed = true
	}
	if patch.SessionState != nil {
		tab.SessionState = patch.SessionState.Clone()
		if tab.SessionState.ProviderID != "" {
			tab.ProviderID = tab.SessionState.ProviderID
		}
		changed = true
	}
	return changed
}

func formatTitle(title string, max int, suffix string) string {
	title = strings.TrimSpace(title)
	runes := []rune(title)
	if max <= 0 || len(runes) <= max {
		return title
	}
	cut := max - len([]rune(suffix))
	if cut < 1 {
		return string(runes[:max])
	}
	return string(runes[:cut]) + suffix
}
