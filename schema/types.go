package schema

// WorkspaceID identifies a workspace window and its persisted state.
type WorkspaceID string

// TabID identifies a terminal tab.
type TabID string

// PaneID identifies a node in a tab's pane tree.
type PaneID string

// SessionID identifies the terminal/agent session hosted by a leaf pane.
type SessionID string

// ProviderID identifies the agent provider backing a tab.
type ProviderID string

// TabKind is the session flavor of a tab.
type TabKind string

const (
	// TabKindChat hosts an agent chat session.
	TabKindChat TabKind = "chat"
	// TabKindShell hosts a plain shell.
	TabKindShell TabKind = "shell"
	// TabKindAgent hosts a headless agent run.
	TabKindAgent TabKind = "agent"
)

// NormalizeTabKind returns the canonical kind, or false when unknown.
func NormalizeTabKind(kind string) (TabKind, bool) {
	switch TabKind(kind) {
	case TabKindChat, TabKindShell, TabKindAgent:
		return TabKind(kind), true
	case "":
		return TabKindChat, true
	default:
		return "", false
	}
}

// SessionState is opaque per-provider configuration persisted with a tab.
// The core passes it through unchanged.
type SessionState struct {
	ProviderID         ProviderID        `json:"providerId" yaml:"provider_id"`
	ProjectPath        string            `json:"projectPath" yaml:"project_path"`
	InitialProjectPath string            `json:"initialProjectPath" yaml:"initial_project_path"`
	Extra              map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Clone returns a deep copy of the session state.
func (s SessionState) Clone() SessionState {
	out := s
	if s.Extra != nil {
		out.Extra = make(map[string]string, len(s.Extra))
		for k, v := range s.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
