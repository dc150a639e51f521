package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"pkt.systems/termdeck/schema"
	"pkt.systems/pslog"
)

// PaneSnapshot is the serialized form of a pane tree node.
type PaneSnapshot struct {
	Type        string             `json:"type"`
	ID          schema.PaneID      `json:"id"`
	SessionID   schema.SessionID   `json:"session_id,omitempty"`
	Orientation schema.Orientation `json:"orientation,omitempty"`
	Children    []PaneSnapshot     `json:"children,omitempty"`
	Sizes       []float64          `json:"sizes,omitempty"`
}

const (
	paneTypeLeaf  = "leaf"
	paneTypeSplit = "split"
)

// TabSnapshot captures a tab for persistence. Pane states are ephemeral and
// not stored.
type TabSnapshot struct {
	ID                schema.TabID        `json:"id"`
	Kind              schema.TabKind      `json:"kind"`
	Title             string              `json:"title"`
	TitleLocked       bool                `json:"title_locked,omitempty"`
	ProviderID        schema.ProviderID   `json:"provider_id,omitempty"`
	SessionState      schema.SessionState `json:"session_state"`
	PaneTree          PaneSnapshot        `json:"pane_tree"`
	ActivePaneID      schema.PaneID       `json:"active_pane_id"`
	Status            schema.TabStatus    `json:"status"`
	HasUnsavedChanges bool                `json:"has_unsaved_changes,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// WorkspaceSnapshot captures a workspace window's tabs for persistence.
type WorkspaceSnapshot struct {
	Order     []schema.TabID `json:"order"`
	ActiveTab schema.TabID   `json:"active_tab,omitempty"`
	Tabs      []TabSnapshot  `json:"tabs"`
}

// EncodePaneTree converts a pane tree into its serialized form.
func EncodePaneTree(node schema.PaneNode) PaneSnapshot {
	switch n := node.(type) {
	case schema.Leaf:
		return PaneSnapshot{Type: paneTypeLeaf, ID: n.ID, SessionID: n.SessionID}
	case schema.Split:
		children := make([]PaneSnapshot, 0, len(n.Children))
		for _, child := range n.Children {
			children = append(children, EncodePaneTree(child))
		}
		return PaneSnapshot{
			Type:        paneTypeSplit,
			ID:          n.ID,
			Orientation: n.Orientation,
			Children:    children,
			Sizes:       append([]float64(nil), n.Sizes...),
		}
	default:
		return PaneSnapshot{}
	}
}

// DecodePaneTree rebuilds a pane tree from its serialized form.
func DecodePaneTree(snap PaneSnapshot) (schema.PaneNode, error) {
	switch snap.Type {
	case paneTypeLeaf:
		return schema.Leaf{ID: snap.ID, SessionID: snap.SessionID}, nil
	case paneTypeSplit:
		children := make([]schema.PaneNode, 0, len(snap.Children))
		for _, child := range snap.Children {
			node, err := DecodePaneTree(child)
			if err != nil {
				return nil, err
			}
			children = append(children, node)
		}
		return schema.Split{
			ID:          snap.ID,
			Orientation: snap.Orientation,
			Children:    children,
			Sizes:       append([]float64(nil), snap.Sizes...),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", schema.ErrInvalidPaneTree, snap.Type)
	}
}

// Store persists workspace snapshots to disk, one JSON file per workspace.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads a workspace snapshot. The boolean is false when none exists.
func (s *Store) Load(workspace schema.WorkspaceID) (WorkspaceSnapshot, bool, error) {
	data, err := os.ReadFile(s.pathFor(workspace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.debug("state load miss", "workspace", workspace)
			return WorkspaceSnapshot{}, false, nil
		}
		s.warn("state load failed", workspace, err)
		return WorkspaceSnapshot{}, false, err
	}
	var snapshot WorkspaceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		s.warn("state load failed", workspace, err)
		return WorkspaceSnapshot{}, false, err
	}
	s.debug("state load ok", "workspace", workspace, "tabs", len(snapshot.Tabs))
	return snapshot, true, nil
}

// Save atomically replaces the workspace snapshot on disk.
func (s *Store) Save(workspace schema.WorkspaceID, snapshot WorkspaceSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		s.warn("state save failed", workspace, err)
		return err
	}
	if err := writeAtomic(s.pathFor(workspace), data); err != nil {
		s.warn("state save failed", workspace, err)
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "workspace", workspace, "tabs", len(snapshot.Tabs))
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "state-*.json")
	if err != nil {
		return err
	}
	cleanup := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) debug(msg string, kv ...any) {
	if s.log != nil {
		s.log.Debug(msg, kv...)
	}
}

func (s *Store) warn(msg string, workspace schema.WorkspaceID, err error) {
	if s.log != nil {
		s.log.Warn(msg, "workspace", workspace, "err", err)
	}
}

func (s *Store) pathFor(workspace schema.WorkspaceID) string {
	name := sanitize(string(workspace))
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.dir, name+".json")
}

func sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}
