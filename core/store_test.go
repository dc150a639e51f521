package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"pkt.systems/termdeck/schema"
)

type recordingSink struct {
	mu      sync.Mutex
	events  []schema.TabEvent
	outputs []schema.OutputEvent
}

func (s *recordingSink) OnTabEvent(event schema.TabEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) OnOutput(event schema.OutputEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, event)
}

func (s *recordingSink) tabEvents() []schema.TabEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.TabEvent(nil), s.events...)
}

func (s *recordingSink) outputEvents() []schema.OutputEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.OutputEvent(nil), s.outputs...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newMemoryStore(t *testing.T, sink EventSink) *Store {
	t.Helper()
	store, err := NewStore(schema.WorkspaceConfig{DisablePersistence: true}, StoreDeps{
		EventSink: sink,
		Now:       newFakeClock().Now,
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func openTab(t *testing.T, store *Store, title string) schema.TerminalTab {
	t.Helper()
	tab, err := store.OpenTab(context.Background(), TabOptions{Title: title})
	if err != nil {
		t.Fatalf("open tab %q: %v", title, err)
	}
	return tab
}

func TestAddTabAppendsAndActivates(t *testing.T) {
	sink := &recordingSink{}
	store := newMemoryStore(t, sink)
	a := openTab(t, store, "a")
	b := openTab(t, store, "b")

	tabs := store.Tabs()
	if len(tabs) != 2 || tabs[0].ID != a.ID || tabs[1].ID != b.ID {
		t.Fatalf("unexpected order: %#v", tabs)
	}
	if store.ActiveTabID() != b.ID {
		t.Fatalf("expected %s active, got %s", b.ID, store.ActiveTabID())
	}
	if tabs[1].ActivePaneID != tabs[1].PaneTree.NodeID() {
		t.Fatalf("expected the single leaf to be active")
	}
	if !tabs[1].PaneStates[tabs[1].ActivePaneID].AtBottom {
		t.Fatalf("expected fresh pane at bottom")
	}
	events := sink.tabEvents()
	if len(events) != 2 || events[1].Type != schema.TabEventCreated || events[1].ActiveTab != b.ID {
		t.Fatalf("unexpected events: %#v", events)
	}
}

func TestAddTabRejectsDuplicateAndInvalid(t *testing.T) {
	store := newMemoryStore(t, nil)
	tab := NewTerminalTab(TabOptions{}, time.Now())
	if err := store.AddTab(context.Background(), tab); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddTab(context.Background(), tab); !errors.Is(err, schema.ErrTabExists) {
		t.Fatalf("expected ErrTabExists, got %v", err)
	}
	broken := NewTerminalTab(TabOptions{}, time.Now())
	broken.PaneTree = nil
	if err := store.AddTab(context.Background(), broken); !errors.Is(err, schema.ErrInvalidTab) {
		t.Fatalf("expected ErrInvalidTab, got %v", err)
	}
	dangling := NewTerminalTab(TabOptions{}, time.Now())
	dangling.ActivePaneID = "elsewhere"
	if err := store.AddTab(context.Background(), dangling); !errors.Is(err, schema.ErrInvalidTab) {
		t.Fatalf("expected ErrInvalidTab for dangling active pane, got %v", err)
	}
	if len(store.Tabs()) != 1 {
		t.Fatalf("rejected tabs must not be stored")
	}
}

func TestAddTabDefaultsActivePane(t *testing.T) {
	store := newMemoryStore(t, nil)
	tab := NewTerminalTab(TabOptions{}, time.Now())
	tab.ActivePaneID = ""
	tab.PaneStates = nil
	if err := store.AddTab(context.Background(), tab); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, _ := store.Tab(tab.ID)
	if got.ActivePaneID != tab.PaneTree.NodeID() {
		t.Fatalf("expected first leaf active, got %q", got.ActivePaneID)
	}
}

func TestRemoveTabSelectsNeighbour(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t, nil)
	a := openTab(t, store, "a")
	b := openTab(t, store, "b")
	c := openTab(t, store, "c")

	store.SwitchToTab(ctx, b.ID)
	if _, err := store.RemoveTab(ctx, b.ID); err != nil {
		t.Fatalf("remove b: %v", err)
	}
	if store.ActiveTabID() != a.ID {
		t.Fatalf("expected preceding tab %s active, got %s", a.ID, store.ActiveTabID())
	}
	if _, err := store.RemoveTab(ctx, a.ID); err != nil {
		t.Fatalf("remove a: %v", err)
	}
	if store.ActiveTabID() != c.ID {
		t.Fatalf("expected following tab %s active, got %s", c.ID, store.ActiveTabID())
	}
	if _, err := store.RemoveTab(ctx, c.ID); err != nil {
		t.Fatalf("remove c: %v", err)
	}
	if store.ActiveTabID() != "" {
		t.Fatalf("expected no active tab, got %s", store.ActiveTabID())
	}
	if _, ok := store.ActiveTab(); ok {
		t.Fatalf("expected no active tab snapshot")
	}
}

func TestRemoveInactiveTabKeepsActive(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t, nil)
	a := openTab(t, store, "a")
	b := openTab(t, store, "b")
	if _, err := store.RemoveTab(ctx, a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if store.ActiveTabID() != b.ID {
		t.Fatalf("expected %s to stay active, got %s", b.ID, store.ActiveTabID())
	}
	if _, err := store.RemoveTab(ctx, a.ID); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
}

func TestSwitchToUnknownTabIsNoop(t *testing.T) {
	sink := &recordingSink{}
	store := newMemoryStore(t, sink)
	a := openTab(t, store, "a")
	before := len(sink.tabEvents())
	if store.SwitchToTab(context.Background(), "missing") {
		t.Fatalf("expected false for unknown tab")
	}
	if store.ActiveTabID() != a.ID {
		t.Fatalf("active tab changed")
	}
	if len(sink.tabEvents()) != before {
		t.Fatalf("unknown switch must not publish events")
	}
}

func TestActivatePaneErrorsLeaveStoreUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t, nil)
	tab := openTab(t, store, "a")
	if err := store.ActivatePane(ctx, "missing", tab.ActivePaneID); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
	if err := store.ActivatePane(ctx, tab.ID, "missing"); !errors.Is(err, schema.ErrPaneNotFound) {
		t.Fatalf("expected ErrPaneNotFound, got %v", err)
	}
	after, _ := store.Tab(tab.ID)
	if !after.UpdatedAt.Equal(tab.UpdatedAt) || after.ActivePaneID != tab.ActivePaneID {
		t.Fatalf("failed activation changed the tab")
	}
}

func TestActivatePaneBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t, nil)
	tab := openTab(t, store, "a")
	created, err := store.SplitPane(ctx, tab.ID, tab.ActivePaneID, schema.OrientationHorizontal)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	split, _ := store.Tab(tab.ID)
	if split.ActivePaneID != created {
		t.Fatalf("expected new pane active after split")
	}
	if err := store.ActivatePane(ctx, tab.ID, tab.ActivePaneID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	after, _ := store.Tab(tab.ID)
	if after.ActivePaneID != tab.ActivePaneID {
		t.Fatalf("expected %s active, got %s", tab.ActivePaneID, after.ActivePaneID)
	}
	if !after.UpdatedAt.After(split.UpdatedAt) {
		t.Fatalf("expected UpdatedAt bump: %v <= %v", after.UpdatedAt, split.UpdatedAt)
	}
}

func TestClosePaneReselectsPrecedingLeaf(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t, nil)
	tab := openTab(t, store, "a")
	first := tab.ActivePaneID
	second, _ := store.SplitPane(ctx, tab.ID, first, schema.OrientationHorizontal)
	third, _ := store.SplitPane(ctx, tab.ID, second, schema.OrientationVertical)

	if err := store.ActivatePane(ctx, tab.ID, second); err != nil {
		t.Fatalf("activate: %v", err)
	}
	closed, err := store.ClosePane(ctx, tab.ID, second)
	if err != nil || closed {
		t.Fatalf("close second: closed=%v err=%v", closed, err)
	}
	got, _ := store.Tab(tab.ID)
	if got.ActivePaneID != first {
		t.Fatalf("expected preceding leaf %s active, got %s", first, got.ActivePaneID)
	}
	if _, ok := got.PaneStates[second]; ok {
		t.Fatalf("closed pane state must be dropped")
	}

	if err := store.ActivatePane(ctx, tab.ID, first); err != nil {
		t.Fatalf("activate first: %v", err)
	}
	if _, err := store.ClosePane(ctx, tab.ID, first); err != nil {
		t.Fatalf("close first: %v", err)
	}
	got, _ = store.Tab(tab.ID)
	if got.ActivePaneID != third {
		t.Fatalf("expected remaining leaf %s active, got %s", third, got.ActivePaneID)
	}
	if _, ok := got.PaneTree.(schema.Leaf); !ok {
		t.Fatalf("expected collapsed single leaf, got %T", got.PaneTree)
	}
}

func TestClosingLastPaneClosesTab(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	store := newMemoryStore(t, sink)
	a := openTab(t, store, "a")
	b := openTab(t, store, "b")
	closed, err := store.ClosePane(ctx, b.ID, b.ActivePaneID)
	if err != nil {
		t.Fatalf("close pane: %v", err)
	}
	if !closed {
		t.Fatalf("expected tab to close with its last pane")
	}
	if _, ok := store.Tab(b.ID); ok {
		t.Fatalf("tab still present")
	}
	if store.ActiveTabID() != a.ID {
		t.Fatalf("expected %s active, got %s", a.ID, store.ActiveTabID())
	}
	events := sink.tabEvents()
	if last := events[len(events)-1]; last.Type != schema.TabEventClosed || last.Tab.ID != b.ID {
		t.Fatalf("expected closed event, got %#v", last)
	}
	if _, err := store.ClosePane(ctx, a.ID, "missing"); !errors.Is(err, schema.ErrPaneNotFound) {
		t.Fatalf("expected ErrPaneNotFound, got %v", err)
	}
}

func TestTitleLockBlocksSessionTitles(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t, nil)
	tab := openTab(t, store, "build")

	applied, err := store.ApplySessionTitle(ctx, tab.ID, "running tests")
	if err != nil || !applied {
		t.Fatalf("expected title applied, got %v %v", applied, err)
	}
	current, _ := store.Tab(tab.ID)
	ToggleTerminalTitleLock(store.Updater(ctx), current)

	locked, _ := store.Tab(tab.ID)
	if !locked.TitleLocked || locked.Title != "running tests" {
		t.Fatalf("expected locked tab keeping its title, got %#v", locked)
	}
	applied, err = store.ApplySessionTitle(ctx, tab.ID, "other")
	if err != nil || applied {
		t.Fatalf("expected locked title to be kept, got %v %v", applied, err)
	}
	after, _ := store.Tab(tab.ID)
	if after.Title != "running tests" {
		t.Fatalf("locked title changed to %q", after.Title)
	}
	ToggleTerminalTitleLock(store.Updater(ctx), after)
	unlocked, _ := store.Tab(tab.ID)
	if unlocked.TitleLocked {
		t.Fatalf("expected title unlocked")
	}
	if _, err := store.ApplySessionTitle(ctx, "missing", "x"); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
}

func TestSessionTitlesNeverOverwriteConcurrentLock(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t, nil)
	tab := openTab(t, store, "build")

	start := make(chan struct{})
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < 200; i++ {
				if _, err := store.ApplySessionTitle(ctx, tab.ID, fmt.Sprintf("auto-%d-%d", w, i)); err != nil {
					t.Errorf("apply session title: %v", err)
					return
				}
			}
		}(w)
	}
	close(start)
	locked := true
	if err := store.UpdateTab(ctx, tab.ID, schema.TabPatch{TitleLocked: &locked}); err != nil {
		t.Fatalf("lock title: %v", err)
	}
	atLock, _ := store.Tab(tab.ID)
	wg.Wait()

	final, _ := store.Tab(tab.ID)
	if !final.TitleLocked || final.Title != atLock.Title {
		t.Fatalf("locked title %q overwritten to %q", atLock.Title, final.Title)
	}
}

func TestUpdateTabIgnoresEmptyPatch(t *testing.T) {
	ctx := context.Background()
	sink := &recordingSink{}
	store := newMemoryStore(t, sink)
	tab := openTab(t, store, "build")
	before := len(sink.tabEvents())

	if err := store.UpdateTab(ctx, tab.ID, schema.TabPatch{}); err != nil {
		t.Fatalf("empty update: %v", err)
	}
	after, _ := store.Tab(tab.ID)
	if !after.UpdatedAt.Equal(tab.UpdatedAt) {
		t.Fatalf("expected UpdatedAt unchanged, got %s -> %s", tab.UpdatedAt, after.UpdatedAt)
	}
	if got := len(sink.tabEvents()); got != before {
		t.Fatalf("expected no event for empty patch, got %d new", got-before)
	}
	if err := store.UpdateTab(ctx, "missing", schema.TabPatch{}); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
}

func TestUpdateTabTruncatesTitleAndValidatesStatus(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(schema.WorkspaceConfig{DisablePersistence: true, TitleMax: 8}, StoreDeps{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	tab := openTab(t, store, "a very long title")
	if tab.Title != "a very ~" {
		t.Fatalf("unexpected truncated title %q", tab.Title)
	}
	status := schema.TabStatus("exploded")
	if err := store.UpdateTab(ctx, tab.ID, schema.TabPatch{Status: &status}); !errors.Is(err, schema.ErrInvalidTab) {
		t.Fatalf("expected ErrInvalidTab, got %v", err)
	}
	if err := store.SetStatus(ctx, tab.ID, schema.TabStatusRunning); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if err := store.SetUnsavedChanges(ctx, tab.ID, true); err != nil {
		t.Fatalf("set unsaved: %v", err)
	}
	got, _ := store.Tab(tab.ID)
	if got.Status != schema.TabStatusRunning || !got.HasUnsavedChanges {
		t.Fatalf("unexpected tab state: %#v", got)
	}
	if !got.UpdatedAt.After(tab.UpdatedAt) {
		t.Fatalf("expected UpdatedAt to advance")
	}
}

func TestSnapshotsAreDeepCopies(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore(t, nil)
	tab := openTab(t, store, "a")
	tab.PaneStates[tab.ActivePaneID] = schema.PaneState{ScrollOffset: 42}
	tab.Title = "mutated"
	again, _ := store.Tab(tab.ID)
	if again.Title == "mutated" || again.PaneStates[again.ActivePaneID].ScrollOffset != 0 {
		t.Fatalf("store state leaked through snapshot")
	}
	if err := store.SetPaneState(ctx, tab.ID, tab.ActivePaneID, schema.PaneState{ScrollOffset: 3}); err != nil {
		t.Fatalf("set pane state: %v", err)
	}
	again, _ = store.Tab(tab.ID)
	if again.PaneStates[again.ActivePaneID].ScrollOffset != 3 {
		t.Fatalf("expected pane state recorded")
	}
	if err := store.SetPaneState(ctx, tab.ID, "missing", schema.PaneState{}); !errors.Is(err, schema.ErrPaneNotFound) {
		t.Fatalf("expected ErrPaneNotFound, got %v", err)
	}
}

func TestStorePersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := schema.WorkspaceConfig{Workspace: "dev", StateDir: dir}
	store, err := NewStore(cfg, StoreDeps{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	a, err := store.OpenTab(ctx, TabOptions{
		Kind:       schema.TabKindShell,
		Title:      "shell",
		ProviderID: "local",
		SessionState: schema.SessionState{
			ProjectPath: "/src/app",
			Extra:       map[string]string{"shell": "zsh"},
		},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	second, err := store.SplitPane(ctx, a.ID, a.ActivePaneID, schema.OrientationVertical)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if err := store.SetStatus(ctx, a.ID, schema.TabStatusRunning); err != nil {
		t.Fatalf("status: %v", err)
	}
	b := openTab(t, store, "b")
	store.SwitchToTab(ctx, a.ID)

	restored, err := NewStore(cfg, StoreDeps{})
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	tabs := restored.Tabs()
	if len(tabs) != 2 || tabs[0].ID != a.ID || tabs[1].ID != b.ID {
		t.Fatalf("unexpected restored order: %#v", tabs)
	}
	if restored.ActiveTabID() != a.ID {
		t.Fatalf("expected %s active after restore, got %s", a.ID, restored.ActiveTabID())
	}
	got := tabs[0]
	if got.Status != schema.TabStatusIdle {
		t.Fatalf("running tab must restore idle, got %s", got.Status)
	}
	if got.ActivePaneID != second {
		t.Fatalf("expected active pane %s, got %s", second, got.ActivePaneID)
	}
	if len(Leaves(got.PaneTree)) != 2 {
		t.Fatalf("expected split tree restored")
	}
	if got.SessionState.ProviderID != "local" || got.SessionState.InitialProjectPath != "/src/app" || got.SessionState.Extra["shell"] != "zsh" {
		t.Fatalf("unexpected session state: %#v", got.SessionState)
	}
	if state := got.PaneStates[second]; !state.AtBottom || state.ScrollOffset != 0 {
		t.Fatalf("pane states must start fresh, got %#v", state)
	}
}
