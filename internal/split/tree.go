// Package split implements the binary split-pane layout of a workspace.
//
// A Tree is an immutable value. Every edit returns a new Tree that shares
// the untouched subtrees with the original and rebuilds only the path from
// the root to the edited node, so a reader holding the old Tree never sees a
// partially applied edit.
package split

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/dshills/pterminal/internal/ids"
)

const (
	// DefaultRatio is used when a split is created without a ratio.
	DefaultRatio = 0.5

	// MinRatio bounds a split ratio to [MinRatio, 1-MinRatio] so both
	// children keep a non-zero area.
	MinRatio = 0.1
)

// Direction is the axis a split divides its rectangle along.
type Direction int

const (
	// Horizontal places the children side by side (left | right).
	Horizontal Direction = iota
	// Vertical stacks the children (top / bottom).
	Vertical
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// ParseDirection parses "horizontal" or "vertical" (also "h", "v",
// "right" and "down").
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "horizontal", "h", "right", "left":
		return Horizontal, nil
	case "vertical", "v", "down", "up":
		return Vertical, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	v, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// ID identifies a split node. Ids are unique for the process lifetime.
type ID uint64

var splitSeq atomic.Uint64

func nextID() ID {
	return ID(splitSeq.Add(1))
}

func (id ID) String() string { return "s" + strconv.FormatUint(uint64(id), 10) }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimSpace(string(text)), "s")
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("split id: invalid id %q", text)
	}
	*id = ID(n)
	return nil
}

// UnmarshalJSON accepts "s3", "3" and 3.
func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		return id.UnmarshalText([]byte(s))
	}
	return id.UnmarshalText(data)
}

// Node is a Leaf or a Split. Nodes are never modified after construction.
type Node interface {
	node()
}

// Leaf holds one pane.
type Leaf struct {
	Pane ids.Pane
}

// Split divides its area between First and Second at Ratio along Direction.
type Split struct {
	ID        ID
	Direction Direction
	Ratio     float64
	First     Node
	Second    Node
}

func (*Leaf) node()  {}
func (*Split) node() {}

// Tree is a split layout. The zero Tree is empty and only useful as a
// placeholder; use New.
type Tree struct {
	root Node
}

// New creates a tree holding a single pane.
func New(pane ids.Pane) Tree {
	return Tree{root: &Leaf{Pane: pane}}
}

// Root returns the root node.
func (t Tree) Root() Node {
	return t.root
}

// IsEmpty reports whether the tree holds no panes.
func (t Tree) IsEmpty() bool {
	return t.root == nil
}

// Len returns the number of panes.
func (t Tree) Len() int {
	return countLeaves(t.root)
}

func countLeaves(n Node) int {
	switch n := n.(type) {
	case *Leaf:
		return 1
	case *Split:
		return countLeaves(n.First) + countLeaves(n.Second)
	}
	return 0
}

// Panes returns the pane ids in tree order (first child before second).
func (t Tree) Panes() []ids.Pane {
	var out []ids.Pane
	walkLeaves(t.root, func(l *Leaf) { out = append(out, l.Pane) })
	return out
}

func walkLeaves(n Node, fn func(*Leaf)) {
	switch n := n.(type) {
	case *Leaf:
		fn(n)
	case *Split:
		walkLeaves(n.First, fn)
		walkLeaves(n.Second, fn)
	}
}

// Contains reports whether pane is in the tree.
func (t Tree) Contains(pane ids.Pane) bool {
	return containsPane(t.root, pane)
}

func containsPane(n Node, pane ids.Pane) bool {
	switch n := n.(type) {
	case *Leaf:
		return n.Pane == pane
	case *Split:
		return containsPane(n.First, pane) || containsPane(n.Second, pane)
	}
	return false
}

// Split replaces the leaf holding target with a split whose first child is
// the original leaf and whose second child is a leaf for newPane. A zero
// ratio means DefaultRatio; other ratios must lie strictly between 0 and 1
// and are clamped to the allowed range.
func (t Tree) Split(target ids.Pane, dir Direction, ratio float64, newPane ids.Pane) (Tree, ID, error) {
	if ratio == 0 {
		ratio = DefaultRatio
	}
	if math.IsNaN(ratio) || ratio <= 0 || ratio >= 1 {
		return t, 0, fmt.Errorf("%w: %v", ErrInvalidRatio, ratio)
	}
	if dir != Horizontal && dir != Vertical {
		return t, 0, ErrInvalidDirection
	}
	if !t.Contains(target) {
		return t, 0, fmt.Errorf("%w: %s", ErrPaneNotFound, target)
	}
	if t.Contains(newPane) {
		return t, 0, fmt.Errorf("%w: %s", ErrDuplicatePane, newPane)
	}

	id := nextID()
	root := replaceLeaf(t.root, target, func(l *Leaf) Node {
		return &Split{
			ID:        id,
			Direction: dir,
			Ratio:     clampRatio(ratio),
			First:     l,
			Second:    &Leaf{Pane: newPane},
		}
	})
	return Tree{root: root}, id, nil
}

// replaceLeaf rebuilds the path to the leaf holding pane, substituting it
// with fn's result. Subtrees off the path are shared.
func replaceLeaf(n Node, pane ids.Pane, fn func(*Leaf) Node) Node {
	switch n := n.(type) {
	case *Leaf:
		if n.Pane == pane {
			return fn(n)
		}
		return n
	case *Split:
		if containsPane(n.First, pane) {
			cp := *n
			cp.First = replaceLeaf(n.First, pane, fn)
			return &cp
		}
		if containsPane(n.Second, pane) {
			cp := *n
			cp.Second = replaceLeaf(n.Second, pane, fn)
			return &cp
		}
	}
	return n
}

// Close removes pane and collapses its parent split into the sibling.
// Closing the only pane fails with ErrLastPane.
func (t Tree) Close(pane ids.Pane) (Tree, error) {
	if !t.Contains(pane) {
		return t, fmt.Errorf("%w: %s", ErrPaneNotFound, pane)
	}
	if leaf, ok := t.root.(*Leaf); ok && leaf.Pane == pane {
		return t, ErrLastPane
	}
	return Tree{root: removeLeaf(t.root, pane)}, nil
}

func removeLeaf(n Node, pane ids.Pane) Node {
	s, ok := n.(*Split)
	if !ok {
		return n
	}
	if l, ok := s.First.(*Leaf); ok && l.Pane == pane {
		return s.Second
	}
	if l, ok := s.Second.(*Leaf); ok && l.Pane == pane {
		return s.First
	}
	cp := *s
	if containsPane(s.First, pane) {
		cp.First = removeLeaf(s.First, pane)
	} else {
		cp.Second = removeLeaf(s.Second, pane)
	}
	return &cp
}

// Resize sets the ratio of split id. The ratio must lie strictly between
// 0 and 1 and is clamped to [MinRatio, 1-MinRatio].
func (t Tree) Resize(id ID, ratio float64) (Tree, error) {
	if math.IsNaN(ratio) || ratio <= 0 || ratio >= 1 {
		return t, fmt.Errorf("%w: %v", ErrInvalidRatio, ratio)
	}
	root, ok := replaceSplit(t.root, id, func(s *Split) *Split {
		cp := *s
		cp.Ratio = clampRatio(ratio)
		return &cp
	})
	if !ok {
		return t, fmt.Errorf("%w: %s", ErrSplitNotFound, id)
	}
	return Tree{root: root}, nil
}

// Adjust moves the ratio of pane's closest parent split by delta. The
// result is clamped, so a large delta pins the divider at the limit.
func (t Tree) Adjust(pane ids.Pane, delta float64) (Tree, ID, error) {
	if math.IsNaN(delta) || math.IsInf(delta, 0) {
		return t, 0, fmt.Errorf("%w: delta %v", ErrInvalidRatio, delta)
	}
	parent, ok := t.ParentSplit(pane)
	if !ok {
		if !t.Contains(pane) {
			return t, 0, fmt.Errorf("%w: %s", ErrPaneNotFound, pane)
		}
		return t, 0, ErrLastPane
	}
	s, _ := t.FindSplit(parent)
	nt, err := t.Resize(parent, clampRatio(s.Ratio+delta))
	return nt, parent, err
}

func replaceSplit(n Node, id ID, fn func(*Split) *Split) (Node, bool) {
	s, ok := n.(*Split)
	if !ok {
		return n, false
	}
	if s.ID == id {
		return fn(s), true
	}
	if first, ok := replaceSplit(s.First, id, fn); ok {
		cp := *s
		cp.First = first
		return &cp, true
	}
	if second, ok := replaceSplit(s.Second, id, fn); ok {
		cp := *s
		cp.Second = second
		return &cp, true
	}
	return n, false
}

// FindSplit returns a copy of split id.
func (t Tree) FindSplit(id ID) (Split, bool) {
	var found *Split
	walkSplits(t.root, func(s *Split) {
		if s.ID == id {
			found = s
		}
	})
	if found == nil {
		return Split{}, false
	}
	return *found, true
}

// Splits returns the ids of every split in tree order.
func (t Tree) Splits() []ID {
	var out []ID
	walkSplits(t.root, func(s *Split) { out = append(out, s.ID) })
	return out
}

func walkSplits(n Node, fn func(*Split)) {
	if s, ok := n.(*Split); ok {
		fn(s)
		walkSplits(s.First, fn)
		walkSplits(s.Second, fn)
	}
}

// ParentSplit returns the closest split containing pane as a direct child.
func (t Tree) ParentSplit(pane ids.Pane) (ID, bool) {
	var parent *Split
	var find func(n Node) bool
	find = func(n Node) bool {
		s, ok := n.(*Split)
		if !ok {
			return false
		}
		for _, child := range []Node{s.First, s.Second} {
			if l, ok := child.(*Leaf); ok && l.Pane == pane {
				parent = s
				return true
			}
		}
		return find(s.First) || find(s.Second)
	}
	if !find(t.root) {
		return 0, false
	}
	return parent.ID, true
}

// Next returns the pane after current in tree order, wrapping around.
func (t Tree) Next(current ids.Pane) (ids.Pane, bool) {
	return t.step(current, 1)
}

// Prev returns the pane before current in tree order, wrapping around.
func (t Tree) Prev(current ids.Pane) (ids.Pane, bool) {
	return t.step(current, -1)
}

func (t Tree) step(current ids.Pane, delta int) (ids.Pane, bool) {
	panes := t.Panes()
	for i, p := range panes {
		if p == current {
			n := len(panes)
			return panes[((i+delta)%n+n)%n], true
		}
	}
	return 0, false
}

// Validate checks the structural invariants: every split has two children
// with a ratio strictly inside (0,1), and no pane appears twice.
func (t Tree) Validate() error {
	if t.root == nil {
		return ErrEmptyTree
	}
	seen := make(map[ids.Pane]bool)
	var check func(Node) error
	check = func(n Node) error {
		switch n := n.(type) {
		case *Leaf:
			if seen[n.Pane] {
				return fmt.Errorf("%w: %s", ErrDuplicatePane, n.Pane)
			}
			seen[n.Pane] = true
			return nil
		case *Split:
			if n.First == nil || n.Second == nil {
				return fmt.Errorf("split %s: missing child", n.ID)
			}
			if !(n.Ratio > 0 && n.Ratio < 1) {
				return fmt.Errorf("split %s: %w: %v", n.ID, ErrInvalidRatio, n.Ratio)
			}
			if err := check(n.First); err != nil {
				return err
			}
			return check(n.Second)
		}
		return fmt.Errorf("unknown node %T", n)
	}
	return check(t.root)
}

func clampRatio(r float64) float64 {
	if r < MinRatio {
		return MinRatio
	}
	if r > 1-MinRatio {
		return 1 - MinRatio
	}
	return r
}
