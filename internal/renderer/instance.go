package renderer

import "time"

// Color is a linear RGBA quad in the 0..1 range.
type Color [4]float32

// GlyphFlags are the text attributes a glyph instance carries.
type GlyphFlags uint8

const (
	GlyphBold GlyphFlags = 1 << iota
	GlyphItalic
	GlyphUnderline
	GlyphStrike
)

// Has reports whether f carries flag.
func (f GlyphFlags) Has(flag GlyphFlags) bool {
	return f&flag != 0
}

// GlyphInstance places one atlas glyph. X and Y are the top-left pixel of
// the cell; Cells is 2 for wide runes.
type GlyphInstance struct {
	X, Y  float32
	Slot  uint32
	Rune  rune
	Cells uint8
	Color Color
	Flags GlyphFlags
}

// RectInstance is a solid rectangle in pixels.
type RectInstance struct {
	X, Y          float32
	Width, Height float32
	Color         Color
}

// Screen is the per-frame uniform.
type Screen struct {
	Width, Height         float32
	CellWidth, CellHeight float32
}

// FrameStats describes the work done for one frame.
type FrameStats struct {
	Panes       int           `json:"panes"`
	Rebuilt     int           `json:"rebuilt"`
	Reused      int           `json:"reused"`
	RowsDerived int           `json:"rows_derived"`
	Glyphs      int           `json:"glyphs"`
	Rects       int           `json:"rects"`
	Duration    time.Duration `json:"duration_ns"`
}

// Frame is the descriptor for one submitted frame.
type Frame struct {
	Number     uint64
	Screen     Screen
	Clear      Color
	Background []RectInstance
	Overlay    []RectInstance
	Text       []GlyphInstance

	// Cursor is the focused pane's cursor rect when shown. It is also part
	// of Overlay; cell-based sinks use it to place a native cursor.
	Cursor *RectInstance

	Stats FrameStats
}
