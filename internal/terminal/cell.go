package terminal

// Color is a cell color: the pen default, a palette index, or direct RGB.
// Palette indices are resolved through the theme at render time, so an
// indexed color carries no RGB of its own.
type Color struct {
	R, G, B uint8
	Index   int // 0-255 palette slot, -1 for direct RGB
	Default bool
}

// DefaultColor is the pen default for both foreground and background.
var DefaultColor = Color{Default: true}

// Indexed returns palette color i (0-7 ANSI, 8-15 bright, 16-255 extended).
func Indexed(i int) Color {
	return Color{Index: i}
}

// RGB returns a direct 24-bit color.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, Index: -1}
}

// CellAttributes is the SGR attribute bitset of a cell.
type CellAttributes uint16

const (
	AttrBold CellAttributes = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrReverse
	AttrHidden
	AttrStrike

	AttrNone CellAttributes = 0
)

// Has reports whether any bit of attr is set.
func (a CellAttributes) Has(attr CellAttributes) bool { return a&attr != 0 }

// Cell represents a single character cell in the terminal.
// A wide rune occupies its cell with Width 2 followed by a spacer cell
// with Width 0.
type Cell struct {
	Rune       rune
	Width      int
	Foreground Color
	Background Color
	Attributes CellAttributes
}

// EmptyCell is a space in the default colors.
func EmptyCell() Cell {
	return Cell{Rune: ' ', Width: 1, Foreground: DefaultColor, Background: DefaultColor}
}

// blankCell returns an erased cell carrying the given background, as
// erase operations use the current pen background.
func blankCell(bg Color) Cell {
	c := EmptyCell()
	c.Background = bg
	return c
}

// IsBlank reports whether the cell renders as empty space.
func (c Cell) IsBlank() bool {
	return (c.Rune == ' ' || c.Rune == 0) && c.Background.Default && !c.Attributes.Has(AttrReverse)
}

// Line is one grid row. Wrapped marks a row whose text continues on the
// next row after an autowrap.
type Line struct {
	Cells   []Cell
	Wrapped bool
}

// NewLine creates a new line with the given width.
func NewLine(width int) *Line {
	cells := make([]Cell, width)
	for i := range cells {
		cells[i] = EmptyCell()
	}
	return &Line{Cells: cells}
}

// Clear resets every cell and the wrap flag.
func (l *Line) Clear() {
	l.ClearRange(0, len(l.Cells), DefaultColor)
	l.Wrapped = false
}

// ClearRange erases cells [start, end) to bg, clipped to the row.
func (l *Line) ClearRange(start, end int, bg Color) {
	start = max(start, 0)
	end = min(end, len(l.Cells))
	for i := start; i < end; i++ {
		l.Cells[i] = blankCell(bg)
	}
}

// resized returns a copy of the line truncated or padded to width.
func (l *Line) resized(width int) *Line {
	out := NewLine(width)
	n := copy(out.Cells, l.Cells)
	// A wide rune cut in half by truncation becomes a blank.
	if n > 0 && n == width && out.Cells[n-1].Width == 2 {
		out.Cells[n-1] = EmptyCell()
	}
	out.Wrapped = l.Wrapped && len(l.Cells) <= width
	return out
}

// Text returns the line's glyphs left to right with trailing blanks trimmed.
func (l *Line) Text() string {
	runes := make([]rune, 0, len(l.Cells))
	for _, c := range l.Cells {
		if c.Width == 0 {
			continue
		}
		r := c.Rune
		if r == 0 {
			r = ' '
		}
		runes = append(runes, r)
	}
	end := len(runes)
	for end > 0 && runes[end-1] == ' ' {
		end--
	}
	return string(runes[:end])
}
