package core

import (
	"testing"

	"pkt.systems/termdeck/schema"
)

func TestToggleTerminalTitleLock(t *testing.T) {
	for _, locked := range []bool{false, true} {
		tab := schema.TerminalTab{ID: "tab-1", Title: "build", TitleLocked: locked}
		var (
			calls int
			gotID schema.TabID
			patch schema.TabPatch
		)
		ToggleTerminalTitleLock(func(id schema.TabID, p schema.TabPatch) {
			calls++
			gotID = id
			patch = p
		}, tab)
		if calls != 1 {
			t.Fatalf("expected one update, got %d", calls)
		}
		if gotID != tab.ID {
			t.Fatalf("expected update for %s, got %s", tab.ID, gotID)
		}
		if patch.TitleLocked == nil || *patch.TitleLocked != !locked {
			t.Fatalf("expected titleLocked=%v, got %#v", !locked, patch.TitleLocked)
		}
		if patch.Title != nil {
			t.Fatalf("patch must not carry a title, got %q", *patch.Title)
		}
		if patch.Status != nil || patch.HasUnsavedChanges != nil || patch.SessionState != nil {
			t.Fatalf("patch must only carry the lock: %#v", patch)
		}
	}
}

func TestToggleTerminalTitleLockNilUpdater(t *testing.T) {
	ToggleTerminalTitleLock(nil, schema.TerminalTab{ID: "tab-1"})
}
