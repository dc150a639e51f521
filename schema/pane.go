package schema

// Orientation describes how a Split divides its space.
type Orientation string

const (
	// OrientationHorizontal lays children out left to right.
	OrientationHorizontal Orientation = "horizontal"
	// OrientationVertical stacks children top to bottom.
	OrientationVertical Orientation = "vertical"
)

// Valid reports whether the orientation is known.
func (o Orientation) Valid() bool {
	return o == OrientationHorizontal || o == OrientationVertical
}

// PaneNode is a node of a tab's layout tree. It is either a Leaf or a Split;
// the interface is sealed so type switches over the two variants are exhaustive.
type PaneNode interface {
	NodeID() PaneID
	paneNode()
}

// Leaf is a pane hosting exactly one terminal/agent session.
type Leaf struct {
	ID        PaneID
	SessionID SessionID
}

// Split divides its region among two or more children. Sizes holds one
// fraction per child.
type Split struct {
	ID          PaneID
	Orientation Orientation
	Children    []PaneNode
	Sizes       []float64
}

// NodeID returns the leaf id.
func (l Leaf) NodeID() PaneID { return l.ID }

// NodeID returns the split id.
func (s Split) NodeID() PaneID { return s.ID }

func (Leaf) paneNode()  {}
func (Split) paneNode() {}

// IsEmptyPaneTree reports whether a tree is the Empty sentinel returned after
// its last leaf was closed.
func IsEmptyPaneTree(node PaneNode) bool {
	return node == nil
}

// PaneState is ephemeral per-pane UI state. It is never persisted.
type PaneState struct {
	ScrollOffset int
	AtBottom     bool
}
