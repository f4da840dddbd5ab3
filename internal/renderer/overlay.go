package renderer

import (
	"time"

	"github.com/dshills/pterminal/internal/split"
	"github.com/dshills/pterminal/internal/terminal"
)

// Blink tracks cursor blink phase. The phase depends only on the time
// since the last reset, so it changes between frames regardless of grid
// activity.
type Blink struct {
	Enabled  bool
	Interval time.Duration
	epoch    time.Time
}

// Reset restarts the phase with the cursor shown, as after typing.
func (b *Blink) Reset(now time.Time) {
	b.epoch = now
}

// On reports whether the cursor is shown at now.
func (b *Blink) On(now time.Time) bool {
	if !b.Enabled || b.Interval <= 0 {
		return true
	}
	if b.epoch.IsZero() {
		b.epoch = now
	}
	elapsed := now.Sub(b.epoch)
	if elapsed < 0 {
		return true
	}
	return (elapsed/b.Interval)%2 == 0
}

const (
	underlineFraction = 0.12
	barFraction       = 0.15
	dividerWidth      = 1
)

// cursorRect returns the cursor rectangle for a pane at origin.
func cursorRect(c terminal.Cursor, originX, originY, cw, ch float32) RectInstance {
	x := originX + float32(c.X)*cw
	y := originY + float32(c.Y)*ch
	switch c.Style {
	case terminal.CursorUnderline:
		h := max(1, ch*underlineFraction)
		return RectInstance{X: x, Y: y + ch - h, Width: cw, Height: h}
	case terminal.CursorBar:
		return RectInstance{X: x, Y: y, Width: max(1, cw*barFraction), Height: ch}
	default:
		return RectInstance{X: x, Y: y, Width: cw, Height: ch}
	}
}

// selectionRects returns one rect per selected span.
func selectionRects(spans []terminal.Span, originX, originY, cw, ch float32, color Color, out []RectInstance) []RectInstance {
	for _, s := range spans {
		out = append(out, RectInstance{
			X:      originX + float32(s.Start)*cw,
			Y:      originY + float32(s.Row)*ch,
			Width:  float32(s.End-s.Start) * cw,
			Height: ch,
			Color:  color,
		})
	}
	return out
}

// dividerRects widens zero-width divider rects into visible lines.
func dividerRects(dividers []split.Divider, color Color, out []RectInstance) []RectInstance {
	for _, d := range dividers {
		r := RectInstance{
			X:      float32(d.Rect.X),
			Y:      float32(d.Rect.Y),
			Width:  float32(d.Rect.Width),
			Height: float32(d.Rect.Height),
			Color:  color,
		}
		if r.Width == 0 {
			r.X -= dividerWidth / 2.0
			r.Width = dividerWidth
		}
		if r.Height == 0 {
			r.Y -= dividerWidth / 2.0
			r.Height = dividerWidth
		}
		out = append(out, r)
	}
	return out
}
