package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pkt.systems/termdeck/internal/logx"
	"pkt.systems/termdeck/internal/metrics"
	"pkt.systems/termdeck/internal/persist"
	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

// Store owns the tabs of one workspace window and is the only writer of tab
// and pane state. Readers get deep copies.
type Store struct {
	cfg     schema.WorkspaceConfig
	sink    EventSink
	state   *persist.Store
	logger  pslog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	saveMu sync.Mutex
	mu     sync.Mutex
	tabs   map[schema.TabID]*schema.TerminalTab
	order  []schema.TabID
	active schema.TabID
}

// NewStore constructs a store and restores the persisted workspace, if any.
func NewStore(cfg schema.WorkspaceConfig, deps StoreDeps) (*Store, error) {
	normalized, err := schema.NormalizeWorkspaceConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	logger = logger.With("workspace", cfg.Workspace)
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	s := &Store{
		cfg:     cfg,
		sink:    deps.EventSink,
		logger:  logger,
		metrics: deps.Metrics,
		now:     now,
		tabs:    make(map[schema.TabID]*schema.TerminalTab),
	}
	if !cfg.DisablePersistence && cfg.StateDir != "" {
		s.state, err = persist.NewStoreWithLogger(cfg.StateDir, logger)
		if err != nil {
			return nil, err
		}
		s.restore()
	}
	s.metrics.SetTabsOpen(len(s.order))
	return s, nil
}

// Workspace returns the workspace id the store persists under.
func (s *Store) Workspace() schema.WorkspaceID {
	return s.cfg.Workspace
}

// OpenTab builds a new single-pane tab and adds it.
func (s *Store) OpenTab(ctx context.Context, opts TabOptions) (schema.TerminalTab, error) {
	tab := NewTerminalTab(opts, s.now())
	tab.Title = formatTitle(tab.Title, s.cfg.TitleMax, s.cfg.TitleSuffix)
	if err := s.AddTab(ctx, tab); err != nil {
		return schema.TerminalTab{}, err
	}
	return s.mustTab(tab.ID), nil
}

// AddTab appends a tab to the display order and makes it active. A missing
// active pane defaults to the first leaf.
func (s *Store) AddTab(ctx context.Context, tab schema.TerminalTab) error {
	log := logx.WithTab(ctx, tab.ID)
	if err := validateTab(tab); err != nil {
		log.Warn("store tab add failed", "err", err)
		return err
	}
	entry := cloneTab(tab)
	if entry.Kind == "" {
		entry.Kind = schema.TabKindChat
	}
	if entry.Status == "" {
		entry.Status = schema.TabStatusIdle
	}
	if entry.ActivePaneID == "" {
		entry.ActivePaneID = Leaves(entry.PaneTree)[0].ID
	}
	if entry.PaneStates == nil {
		entry.PaneStates = make(map[schema.PaneID]schema.PaneState)
	}
	for _, leaf := range Leaves(entry.PaneTree) {
		if _, ok := entry.PaneStates[leaf.ID]; !ok {
			entry.PaneStates[leaf.ID] = schema.PaneState{AtBottom: true}
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	s.mu.Lock()
	if _, exists := s.tabs[entry.ID]; exists {
		s.mu.Unlock()
		log.Warn("store tab add failed", "err", schema.ErrTabExists)
		return fmt.Errorf("add %s: %w", entry.ID, schema.ErrTabExists)
	}
	s.touchLocked(&entry)
	s.tabs[entry.ID] = &entry
	s.order = append(s.order, entry.ID)
	s.active = entry.ID
	s.checkLocked(entry.ID)
	event := schema.TabEvent{Type: schema.TabEventCreated, Tab: cloneTab(entry), ActiveTab: s.active}
	count := len(s.order)
	s.mu.Unlock()

	s.metrics.SetTabsOpen(count)
	s.emit(event)
	s.persist(log)
	logx.WithProvider(log, entry.SessionState).Info("store tab added", "kind", entry.Kind, "pane", entry.ActivePaneID)
	return nil
}

// RemoveTab closes a tab. When it was active, the tab before it in display
// order becomes active, else the one after it, else none.
func (s *Store) RemoveTab(ctx context.Context, id schema.TabID) (schema.TerminalTab, error) {
	log := logx.WithTab(ctx, id)
	s.mu.Lock()
	removed, event, err := s.removeTabLocked(id)
	count := len(s.order)
	s.mu.Unlock()
	if err != nil {
		log.Warn("store tab remove failed", "err", err)
		return schema.TerminalTab{}, err
	}
	s.metrics.SetTabsOpen(count)
	s.emit(event)
	s.persist(log)
	log.Info("store tab removed", "active", event.ActiveTab)
	return removed, nil
}

func (s *Store) removeTabLocked(id schema.TabID) (schema.TerminalTab, schema.TabEvent, error) {
	tab := s.tabs[id]
	if tab == nil {
		return schema.TerminalTab{}, schema.TabEvent{}, fmt.Errorf("remove %s: %w", id, schema.ErrTabNotFound)
	}
	idx := indexOfTab(s.order, id)
	delete(s.tabs, id)
	s.order = removeTabID(s.order, id)
	if s.active == id {
		switch {
		case len(s.order) == 0:
			s.active = ""
		case idx > 0:
			s.active = s.order[idx-1]
		default:
			s.active = s.order[0]
		}
	}
	removed := cloneTab(*tab)
	s.checkLocked("")
	return removed, schema.TabEvent{Type: schema.TabEventClosed, Tab: removed, ActiveTab: s.active}, nil
}

// SwitchToTab makes id the active tab. Unknown ids are ignored and false is
// returned.
func (s *Store) SwitchToTab(ctx context.Context, id schema.TabID) bool {
	log := logx.WithTab(ctx, id)
	s.mu.Lock()
	tab := s.tabs[id]
	if tab == nil {
		s.mu.Unlock()
		log.Debug("store tab switch ignored", "reason", "unknown tab")
		return false
	}
	s.active = id
	s.touchLocked(tab)
	event := schema.TabEvent{Type: schema.TabEventActivated, Tab: cloneTab(*tab), ActiveTab: id}
	s.mu.Unlock()
	s.emit(event)
	s.persist(log)
	log.Info("store tab activated")
	return true
}

// ActivatePane focuses a leaf of the tab's pane tree.
func (s *Store) ActivatePane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) error {
	log := logx.WithTabPane(ctx, tabID, paneID)
	s.mu.Lock()
	tab := s.tabs[tabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("store pane activate failed", "err", schema.ErrTabNotFound)
		return fmt.Errorf("activate pane in %s: %w", tabID, schema.ErrTabNotFound)
	}
	if err := s.activatePaneLocked(tab, paneID); err != nil {
		s.mu.Unlock()
		log.Warn("store pane activate failed", "err", err)
		return err
	}
	event := schema.TabEvent{Type: schema.TabEventLayout, Tab: cloneTab(*tab), ActiveTab: s.active}
	s.mu.Unlock()
	s.emit(event)
	s.persist(log)
	log.Debug("store pane activated")
	return nil
}

func (s *Store) activatePaneLocked(tab *schema.TerminalTab, paneID schema.PaneID) error {
	if _, ok := FindLeaf(tab.PaneTree, paneID); !ok {
		return fmt.Errorf("activate %s: %w", paneID, schema.ErrPaneNotFound)
	}
	tab.ActivePaneID = paneID
	s.touchLocked(tab)
	s.checkLocked(tab.ID)
	return nil
}

// UpdateTab applies a partial update. UpdatedAt is bumped even when the
// patch leaves every field as it was; an empty patch is ignored.
func (s *Store) UpdateTab(ctx context.Context, id schema.TabID, patch schema.TabPatch) error {
	_, err := s.updateTab(ctx, id, patch, false)
	return err
}

// updateTab applies patch under the store lock. With respectLock set the
// patch is skipped when the tab's title is locked, checked in the same
// critical section as the write.
func (s *Store) updateTab(ctx context.Context, id schema.TabID, patch schema.TabPatch, respectLock bool) (bool, error) {
	log := logx.WithTab(ctx, id)
	if patch.Status != nil {
		if _, ok := schema.NormalizeTabStatus(string(*patch.Status)); !ok {
			err := fmt.Errorf("%w: unknown status %q", schema.ErrInvalidTab, *patch.Status)
			log.Warn("store tab update failed", "err", err)
			return false, err
		}
	}
	s.mu.Lock()
	tab := s.tabs[id]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("store tab update failed", "err", schema.ErrTabNotFound)
		return false, fmt.Errorf("update %s: %w", id, schema.ErrTabNotFound)
	}
	if respectLock && tab.TitleLocked {
		s.mu.Unlock()
		log.Trace("store session title ignored", "reason", "locked")
		return false, nil
	}
	if patch.Empty() {
		s.mu.Unlock()
		log.Trace("store tab update ignored", "reason", "empty patch")
		return false, nil
	}
	changed := applyPatch(tab, patch, s.cfg.TitleMax, s.cfg.TitleSuffix)
	s.touchLocked(tab)
	event := schema.TabEvent{Type: schema.TabEventUpdated, Tab: cloneTab(*tab), ActiveTab: s.active}
	s.mu.Unlock()
	s.emit(event)
	s.persist(log)
	log.Debug("store tab updated", "changed", changed)
	return true, nil
}

// Updater adapts UpdateTab to the callback shape used by pure tab helpers
// such as ToggleTerminalTitleLock. Failures are logged.
func (s *Store) Updater(ctx context.Context) TabUpdateFunc {
	return func(id schema.TabID, patch schema.TabPatch) {
		_ = s.UpdateTab(ctx, id, patch)
	}
}

// ApplySessionTitle sets a title derived from session activity. Locked
// titles are left alone and false is returned.
func (s *Store) ApplySessionTitle(ctx context.Context, id schema.TabID, title string) (bool, error) {
	return s.updateTab(ctx, id, schema.TabPatch{Title: &title}, true)
}

// SetStatus updates the tab's session status.
func (s *Store) SetStatus(ctx context.Context, id schema.TabID, status schema.TabStatus) error {
	return s.UpdateTab(ctx, id, schema.TabPatch{Status: &status})
}

// SetUnsavedChanges updates the tab's unsaved-changes flag.
func (s *Store) SetUnsavedChanges(ctx context.Context, id schema.TabID, unsaved bool) error {
	return s.UpdateTab(ctx, id, schema.TabPatch{HasUnsavedChanges: &unsaved})
}

// SplitPane splits a leaf of the tab and focuses the new pane.
func (s *Store) SplitPane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, orientation schema.Orientation) (schema.PaneID, error) {
	log := logx.WithTabPane(ctx, tabID, paneID)
	s.mu.Lock()
	tab := s.tabs[tabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("store pane split failed", "err", schema.ErrTabNotFound)
		return "", fmt.Errorf("split in %s: %w", tabID, schema.ErrTabNotFound)
	}
	tree, created, err := SplitPane(tab.PaneTree, paneID, orientation)
	if err != nil {
		s.mu.Unlock()
		log.Warn("store pane split failed", "err", err)
		return "", err
	}
	tab.PaneTree = tree
	tab.PaneStates[created] = schema.PaneState{AtBottom: true}
	if err := s.activatePaneLocked(tab, created); err != nil {
		s.mu.Unlock()
		panic(fmt.Sprintf("split pane %s missing from tree: %v", created, err))
	}
	event := schema.TabEvent{Type: schema.TabEventLayout, Tab: cloneTab(*tab), ActiveTab: s.active}
	s.mu.Unlock()
	s.emit(event)
	s.persist(log)
	log.Info("store pane split", "orientation", orientation, "new_pane", created)
	return created, nil
}

// ClosePane removes a leaf. When the active pane is closed the leaf before
// it (or else after it) is activated. Closing the last leaf closes the tab,
// reported by tabClosed.
func (s *Store) ClosePane(ctx context.Context, tabID schema.TabID, paneID schema.PaneID) (tabClosed bool, err error) {
	log := logx.WithTabPane(ctx, tabID, paneID)
	s.mu.Lock()
	tab := s.tabs[tabID]
	if tab == nil {
		s.mu.Unlock()
		log.Warn("store pane close failed", "err", schema.ErrTabNotFound)
		return false, fmt.Errorf("close pane in %s: %w", tabID, schema.ErrTabNotFound)
	}
	before := Leaves(tab.PaneTree)
	tree, err := ClosePane(tab.PaneTree, paneID)
	if err != nil {
		s.mu.Unlock()
		log.Warn("store pane close failed", "err", err)
		return false, err
	}
	if schema.IsEmptyPaneTree(tree) {
		_, event, err := s.removeTabLocked(tabID)
		count := len(s.order)
		s.mu.Unlock()
		if err != nil {
			return false, err
		}
		s.metrics.SetTabsOpen(count)
		s.emit(event)
		s.persist(log)
		log.Info("store last pane closed", "active", event.ActiveTab)
		return true, nil
	}
	tab.PaneTree = tree
	delete(tab.PaneStates, paneID)
	if tab.ActivePaneID == paneID {
		if err := s.activatePaneLocked(tab, neighbourLeaf(before, paneID)); err != nil {
			s.mu.Unlock()
			panic(fmt.Sprintf("reselect after closing %s: %v", paneID, err))
		}
	} else {
		s.touchLocked(tab)
		s.checkLocked(tab.ID)
	}
	event := schema.TabEvent{Type: schema.TabEventLayout, Tab: cloneTab(*tab), ActiveTab: s.active}
	s.mu.Unlock()
	s.emit(event)
	s.persist(log)
	log.Info("store pane closed", "active_pane", event.Tab.ActivePaneID)
	return false, nil
}

// SetPaneState records ephemeral UI state for a pane.
func (s *Store) SetPaneState(ctx context.Context, tabID schema.TabID, paneID schema.PaneID, state schema.PaneState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.tabs[tabID]
	if tab == nil {
		return fmt.Errorf("pane state in %s: %w", tabID, schema.ErrTabNotFound)
	}
	if _, ok := FindLeaf(tab.PaneTree, paneID); !ok {
		return fmt.Errorf("pane state %s: %w", paneID, schema.ErrPaneNotFound)
	}
	tab.PaneStates[paneID] = state
	s.touchLocked(tab)
	logx.WithTabPane(ctx, tabID, paneID).Trace("store pane state set", "scroll_offset", state.ScrollOffset)
	return nil
}

// Tabs returns every tab in display order.
func (s *Store) Tabs() []schema.TerminalTab {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.TerminalTab, 0, len(s.order))
	for _, id := range s.order {
		if tab := s.tabs[id]; tab != nil {
			out = append(out, cloneTab(*tab))
		}
	}
	return out
}

// Tab returns the tab with the given id.
func (s *Store) Tab(id schema.TabID) (schema.TerminalTab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab := s.tabs[id]
	if tab == nil {
		return schema.TerminalTab{}, false
	}
	return cloneTab(*tab), true
}

// ActiveTabID returns the active tab id, empty when no tab is open.
func (s *Store) ActiveTabID() schema.TabID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ActiveTab returns the active tab.
func (s *Store) ActiveTab() (schema.TerminalTab, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == "" {
		return schema.TerminalTab{}, false
	}
	return cloneTab(*s.tabs[s.active]), true
}

func (s *Store) mustTab(id schema.TabID) schema.TerminalTab {
	tab, ok := s.Tab(id)
	if !ok {
		panic(fmt.Sprintf("tab %s vanished after add", id))
	}
	return tab
}

func (s *Store) touchLocked(tab *schema.TerminalTab) {
	now := s.now()
	if !now.After(tab.UpdatedAt) {
		now = tab.UpdatedAt.Add(time.Nanosecond)
	}
	tab.UpdatedAt = now
}

// checkLocked panics when an operation left the store inconsistent. These
// are programming faults, not runtime errors.
func (s *Store) checkLocked(id schema.TabID) {
	if s.active != "" {
		if _, ok := s.tabs[s.active]; !ok {
			panic(fmt.Sprintf("active tab %s not in store", s.active))
		}
	}
	if id == "" {
		return
	}
	tab := s.tabs[id]
	if tab == nil {
		return
	}
	if err := ValidatePaneTree(tab.PaneTree); err != nil {
		panic(fmt.Sprintf("tab %s: %v", id, err))
	}
	if _, ok := FindLeaf(tab.PaneTree, tab.ActivePaneID); !ok {
		panic(fmt.Sprintf("tab %s: active pane %s outside tree", id, tab.ActivePaneID))
	}
}

func (s *Store) emit(event schema.TabEvent) {
	if s.sink == nil {
		return
	}
	s.sink.OnTabEvent(event)
}

func (s *Store) persist(log pslog.Logger) {
	if s.state == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	snapshot := s.snapshot()
	if err := s.state.Save(s.cfg.Workspace, snapshot); err != nil {
		log.Warn("store persist failed", "err", err)
		return
	}
	log.Trace("store state persisted", "tabs", len(snapshot.Tabs))
}

func (s *Store) snapshot() persist.WorkspaceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	tabs := make([]persist.TabSnapshot, 0, len(s.order))
	for _, id := range s.order {
		tab := s.tabs[id]
		if tab == nil {
			continue
		}
		tabs = append(tabs, persist.TabSnapshot{
			ID:                tab.ID,
			Kind:              tab.Kind,
			Title:             tab.Title,
			TitleLocked:       tab.TitleLocked,
			ProviderID:        tab.ProviderID,
			SessionState:      tab.SessionState.Clone(),
			PaneTree:          persist.EncodePaneTree(tab.PaneTree),
			ActivePaneID:      tab.ActivePaneID,
			Status:            tab.Status,
			HasUnsavedChanges: tab.HasUnsavedChanges,
			CreatedAt:         tab.CreatedAt,
			UpdatedAt:         tab.UpdatedAt,
		})
	}
	return persist.WorkspaceSnapshot{
		Order:     append([]schema.TabID(nil), s.order...),
		ActiveTab: s.active,
		Tabs:      tabs,
	}
}

// restore loads the persisted workspace. Running sessions do not survive a
// restart, so their tabs come back idle; pane states start fresh.
func (s *Store) restore() {
	snapshot, ok, err := s.state.Load(s.cfg.Workspace)
	if err != nil || !ok {
		if err != nil {
			s.logger.Warn("store state load failed", "err", err)
		}
		return
	}
	for _, snap := range snapshot.Tabs {
		tree, err := persist.DecodePaneTree(snap.PaneTree)
		if err == nil {
			err = ValidatePaneTree(tree)
		}
		if err != nil {
			s.logger.Warn("store tab restore skipped", "tab", snap.ID, "err", err)
			continue
		}
		tab := &schema.TerminalTab{
			ID:                snap.ID,
			Kind:              snap.Kind,
			Title:             snap.Title,
			TitleLocked:       snap.TitleLocked,
			ProviderID:        snap.ProviderID,
			SessionState:      snap.SessionState.Clone(),
			PaneTree:          tree,
			ActivePaneID:      snap.ActivePaneID,
			PaneStates:        make(map[schema.PaneID]schema.PaneState),
			Status:            snap.Status,
			HasUnsavedChanges: snap.HasUnsavedChanges,
			CreatedAt:         snap.CreatedAt,
			UpdatedAt:         snap.UpdatedAt,
		}
		if tab.Status == schema.TabStatusRunning || tab.Status == "" {
			tab.Status = schema.TabStatusIdle
		}
		leaves := Leaves(tree)
		for _, leaf := range leaves {
			tab.PaneStates[leaf.ID] = schema.PaneState{AtBottom: true}
		}
		if _, ok := FindLeaf(tree, tab.ActivePaneID); !ok {
			tab.ActivePaneID = leaves[0].ID
		}
		s.tabs[tab.ID] = tab
	}
	for _, id := range snapshot.Order {
		if _, ok := s.tabs[id]; ok && indexOfTab(s.order, id) < 0 {
			s.order = append(s.order, id)
		}
	}
	for _, snap := range snapshot.Tabs {
		if _, ok := s.tabs[snap.ID]; ok && indexOfTab(s.order, snap.ID) < 0 {
			s.order = append(s.order, snap.ID)
		}
	}
	if _, ok := s.tabs[snapshot.ActiveTab]; ok {
		s.active = snapshot.ActiveTab
	} else if len(s.order) > 0 {
		s.active = s.order[0]
	}
	s.logger.Debug("store state restored", "tabs", len(s.order), "active", s.active)
}

func neighbourLeaf(leaves []schema.Leaf, closed schema.PaneID) schema.PaneID {
	for i, leaf := range leaves {
		if leaf.ID != closed {
			continue
		}
		if i > 0 {
			return leaves[i-1].ID
		}
		if i+1 < len(leaves) {
			return leaves[i+1].ID
		}
	}
	return ""
}

func indexOfTab(order []schema.TabID, id schema.TabID) int {
	for i, current := range order {
		if current == id {
			return i
		}
	}
	return -1
}

func removeTabID(order []schema.TabID, id schema.TabID) []schema.TabID {
	if i := indexOfTab(order, id); i >= 0 {
		return append(order[:i], order[i+1:]...)
	}
	return order
}
