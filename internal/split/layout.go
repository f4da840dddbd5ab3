package split

import "github.com/dshills/pterminal/internal/ids"

// Rect is an axis-aligned rectangle. Units are whatever the caller uses
// (pixels, or 0..1 fractions).
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether (x, y) lies in the rectangle. The right and
// bottom edges are exclusive so adjacent rectangles never both match.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Placement is one pane's rectangle in a layout.
type Placement struct {
	Pane ids.Pane `json:"pane_id"`
	Rect Rect     `json:"rect"`
}

// Divider is the boundary between the two children of a split.
type Divider struct {
	Split     ID        `json:"split_id"`
	Direction Direction `json:"direction"`
	Rect      Rect      `json:"rect"`
}

// Layout solves the geometry for bounds and returns one placement per pane
// in tree order. The second child of a split receives exactly the remainder
// of its parent's extent, so the placements partition bounds.
func (t Tree) Layout(bounds Rect) []Placement {
	out := make([]Placement, 0, 4)
	layoutNode(t.root, bounds, func(l *Leaf, r Rect) {
		out = append(out, Placement{Pane: l.Pane, Rect: r})
	}, nil)
	return out
}

// LayoutMap is Layout keyed by pane id.
func (t Tree) LayoutMap(bounds Rect) map[ids.Pane]Rect {
	out := make(map[ids.Pane]Rect)
	layoutNode(t.root, bounds, func(l *Leaf, r Rect) {
		out[l.Pane] = r
	}, nil)
	return out
}

// Dividers returns the zero-width boundary lines between split children.
func (t Tree) Dividers(bounds Rect) []Divider {
	var out []Divider
	layoutNode(t.root, bounds, nil, func(s *Split, first, _ Rect) {
		d := Divider{Split: s.ID, Direction: s.Direction}
		if s.Direction == Horizontal {
			d.Rect = Rect{X: first.X + first.Width, Y: first.Y, Height: first.Height}
		} else {
			d.Rect = Rect{X: first.X, Y: first.Y + first.Height, Width: first.Width}
		}
		out = append(out, d)
	})
	return out
}

// PaneAt returns the pane whose rectangle contains (x, y).
func (t Tree) PaneAt(bounds Rect, x, y float64) (ids.Pane, bool) {
	for _, p := range t.Layout(bounds) {
		if p.Rect.Contains(x, y) {
			return p.Pane, true
		}
	}
	return 0, false
}

func layoutNode(n Node, r Rect, leaf func(*Leaf, Rect), split func(*Split, Rect, Rect)) {
	switch n := n.(type) {
	case *Leaf:
		if leaf != nil {
			leaf(n, r)
		}
	case *Split:
		first, second := divide(r, n.Direction, n.Ratio)
		if split != nil {
			split(n, first, second)
		}
		layoutNode(n.First, first, leaf, split)
		layoutNode(n.Second, second, leaf, split)
	}
}

func divide(r Rect, dir Direction, ratio float64) (Rect, Rect) {
	if dir == Horizontal {
		w := r.Width * ratio
		return Rect{X: r.X, Y: r.Y, Width: w, Height: r.Height},
			Rect{X: r.X + w, Y: r.Y, Width: r.Width - w, Height: r.Height}
	}
	h := r.Height * ratio
	return Rect{X: r.X, Y: r.Y, Width: r.Width, Height: h},
		Rect{X: r.X, Y: r.Y + h, Width: r.Width, Height: r.Height - h}
}
