package core

import (
	"fmt"

	"pkt.systems/termdeck/schema"
)

// NewPaneTree returns a fresh single-leaf tree with a new pane and session.
func NewPaneTree() schema.PaneNode {
	return schema.Leaf{ID: newPaneID(), SessionID: newSessionID()}
}

// FindLeaf returns the leaf with the given id.
func FindLeaf(tree schema.PaneNode, paneID schema.PaneID) (schema.Leaf, bool) {
	switch n := tree.(type) {
	case nil:
		return schema.Leaf{}, false
	case schema.Leaf:
		if n.ID == paneID {
			return n, true
		}
		return schema.Leaf{}, false
	case schema.Split:
		for _, child := range n.Children {
			if leaf, ok := FindLeaf(child, paneID); ok {
				return leaf, true
			}
		}
		return schema.Leaf{}, false
	default:
		panic(fmt.Sprintf("unknown pane node %T", tree))
	}
}

// Leaves returns the leaves of a tree in depth-first order.
func Leaves(tree schema.PaneNode) []schema.Leaf {
	var out []schema.Leaf
	collectLeaves(tree, &out)
	return out
}

func collectLeaves(node schema.PaneNode, out *[]schema.Leaf) {
	switch n := node.(type) {
	case nil:
	case schema.Leaf:
		*out = append(*out, n)
	case schema.Split:
		for _, child := range n.Children {
			collectLeaves(child, out)
		}
	default:
		panic(fmt.Sprintf("unknown pane node %T", node))
	}
}

// SplitPane replaces the target leaf with a Split holding the original leaf
// followed by a new leaf. The input tree is not modified.
func SplitPane(tree schema.PaneNode, target schema.PaneID, orientation schema.Orientation) (schema.PaneNode, schema.PaneID, error) {
	if !orientation.Valid() {
		return tree, "", schema.ErrInvalidOrientation
	}
	if _, ok := FindLeaf(tree, target); !ok {
		return tree, "", fmt.Errorf("split %s: %w", target, schema.ErrPaneNotFound)
	}
	fresh := schema.Leaf{ID: newPaneID(), SessionID: newSessionID()}
	return splitNode(tree, target, orientation, fresh), fresh.ID, nil
}

func splitNode(node schema.PaneNode, target schema.PaneID, orientation schema.Orientation, fresh schema.Leaf) schema.PaneNode {
	switch n := node.(type) {
	case schema.Leaf:
		if n.ID != target {
			return n
		}
		return schema.Split{
			ID:          newPaneID(),
			Orientation: orientation,
			Children:    []schema.PaneNode{n, fresh},
			Sizes:       []float64{0.5, 0.5},
		}
	case schema.Split:
		out := cloneSplitShallow(n)
		for i, child := range n.Children {
			out.Children[i] = splitNode(child, target, orientation, fresh)
		}
		return out
	default:
		panic(fmt.Sprintf("unknown pane node %T", node))
	}
}

// ClosePane removes the leaf with the given id. A Split left with a single
// child collapses into that child. When the last leaf is closed the Empty
// sentinel (a nil tree, see schema.IsEmptyPaneTree) is returned and the
// caller must close the owning tab.
func ClosePane(tree schema.PaneNode, paneID schema.PaneID) (schema.PaneNode, error) {
	if _, ok := FindLeaf(tree, paneID); !ok {
		return tree, fmt.Errorf("close %s: %w", paneID, schema.ErrPaneNotFound)
	}
	return closeNode(tree, paneID), nil
}

func closeNode(node schema.PaneNode, paneID schema.PaneID) schema.PaneNode {
	switch n := node.(type) {
	case schema.Leaf:
		if n.ID == paneID {
			return nil
		}
		return n
	case schema.Split:
		children := make([]schema.PaneNode, 0, len(n.Children))
		sizes := make([]float64, 0, len(n.Children))
		for i, child := range n.Children {
			next := closeNode(child, paneID)
			if next == nil {
				continue
			}
			children = append(children, next)
			sizes = append(sizes, sizeAt(n.Sizes, i, len(n.Children)))
		}
		switch len(children) {
		case 0:
			return nil
		case 1:
			return children[0]
		}
		return schema.Split{
			ID:          n.ID,
			Orientation: n.Orientation,
			Children:    children,
			Sizes:       normalizeSizes(sizes),
		}
	default:
		panic(fmt.Sprintf("unknown pane node %T", node))
	}
}

// ClonePaneTree returns a deep copy of a tree.
func ClonePaneTree(node schema.PaneNode) schema.PaneNode {
	switch n := node.(type) {
	case nil:
		return nil
	case schema.Leaf:
		return n
	case schema.Split:
		out := cloneSplitShallow(n)
		for i, child := range n.Children {
			out.Children[i] = ClonePaneTree(child)
		}
		return out
	default:
		panic(fmt.Sprintf("unknown pane node %T", node))
	}
}

// ValidatePaneTree checks the structural invariants: at least one leaf,
// unique ids, no Split with fewer than two children and one size per child.
func ValidatePaneTree(tree schema.PaneNode) error {
	if tree == nil {
		return fmt.Errorf("%w: empty", schema.ErrInvalidPaneTree)
	}
	seen := make(map[schema.PaneID]struct{})
	sessions := make(map[schema.SessionID]struct{})
	return validateNode(tree, seen, sessions)
}

func validateNode(node schema.PaneNode, seen map[schema.PaneID]struct{}, sessions map[schema.SessionID]struct{}) error {
	if node == nil {
		return fmt.Errorf("%w: nil child", schema.ErrInvalidPaneTree)
	}
	id := node.NodeID()
	if id == "" {
		return fmt.Errorf("%w: missing id", schema.ErrInvalidPaneTree)
	}
	if _, dup := seen[id]; dup {
		return fmt.Errorf("%w: duplicate id %s", schema.ErrInvalidPaneTree, id)
	}
	seen[id] = struct{}{}
	switch n := node.(type) {
	case schema.Leaf:
		if n.SessionID == "" {
			return fmt.Errorf("%w: leaf %s has no session", schema.ErrInvalidPaneTree, n.ID)
		}
		if _, dup := sessions[n.SessionID]; dup {
			return fmt.Errorf("%w: session %s shared by several leaves", schema.ErrInvalidPaneTree, n.SessionID)
		}
		sessions[n.SessionID] = struct{}{}
		return nil
	case schema.Split:
		if len(n.Children) < 2 {
			return fmt.Errorf("%w: split %s has %d children", schema.ErrInvalidPaneTree, n.ID, len(n.Children))
		}
		if len(n.Sizes) != len(n.Children) {
			return fmt.Errorf("%w: split %s has %d sizes for %d children", schema.ErrInvalidPaneTree, n.ID, len(n.Sizes), len(n.Children))
		}
		if !n.Orientation.Valid() {
			return fmt.Errorf("%w: split %s: %v", schema.ErrInvalidPaneTree, n.ID, schema.ErrInvalidOrientation)
		}
		for _, child := range n.Children {
			if err := validateNode(child, seen, sessions); err != nil {
				return err
			}
		}
		return nil
	default:
		panic(fmt.Sprintf("unknown pane node %T", node))
	}
}

// PaneTreeEqualShape compares two trees structurally, ignoring ids and sizes.
func PaneTreeEqualShape(a, b schema.PaneNode) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case schema.Leaf:
		_, ok := b.(schema.Leaf)
		return ok
	case schema.Split:
		y, ok := b.(schema.Split)
		if !ok || x.Orientation != y.Orientation || len(x.Children) != len(y.Children) {
			return false
		}
		for i := range x.Children {
			if !PaneTreeEqualShape(x.Children[i], y.Children[i]) {
				return false
			}
		}
		return true
	default:
		panic(fmt.Sprintf("unknown pane node %T", a))
	}
}

func cloneSplitShallow(s schema.Split) schema.Split {
	return schema.Split{
		ID:          s.ID,
		Orientation: s.Orientation,
		Children:    append([]schema.PaneNode(nil), s.Children...),
		Sizes:       append([]float64(nil), s.Sizes...),
	}
}

func sizeAt(sizes []float64, i, n int) float64 {
	if i < len(sizes) && sizes[i] > 0 {
		return sizes[i]
	}
	return 1 / float64(n)
}

func normalizeSizes(sizes []float64) []float64 {
	total := 0.0
	for _, size := range sizes {
		total += size
	}
	if total <= 0 {
		out := make([]float64, len(sizes))
		for i := range out {
			out[i] = 1 / float64(len(sizes))
		}
		return out
	}
	out := make([]float64, len(sizes))
	for i, size := range sizes {
		out[i] = size / total
	}
	return out
}
