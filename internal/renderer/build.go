package renderer

import (
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/terminal"
)

// rowBuilder derives instance data for grid rows in pane-local pixels.
type rowBuilder struct {
	palette    config.Palette
	atlas      *Atlas
	cellWidth  float32
	cellHeight float32
}

// cellColors resolves a cell's foreground and background through the
// palette, applying bold-bright, reverse and dim.
func (b *rowBuilder) cellColors(c terminal.Cell) (fg, bg colorful.Color) {
	fg = b.resolve(c.Foreground, b.palette.Foreground)
	bg = b.resolve(c.Background, b.palette.Background)

	if c.Attributes.Has(terminal.AttrBold) && !c.Foreground.Default && c.Foreground.Index >= 0 && c.Foreground.Index < 8 {
		fg = b.palette.ANSI[c.Foreground.Index+8]
	}
	if c.Attributes.Has(terminal.AttrReverse) {
		fg, bg = bg, fg
	}
	if c.Attributes.Has(terminal.AttrDim) {
		fg = fg.BlendRgb(bg, 0.5)
	}
	return fg, bg
}

func (b *rowBuilder) resolve(c terminal.Color, def colorful.Color) colorful.Color {
	switch {
	case c.Default:
		return def
	case c.Index >= 0 && c.Index <= 255:
		return b.palette.Indexed(uint8(c.Index))
	default:
		return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
	}
}

func glyphFlags(a terminal.CellAttributes) GlyphFlags {
	var f GlyphFlags
	if a.Has(terminal.AttrBold) {
		f |= GlyphBold
	}
	if a.Has(terminal.AttrItalic) {
		f |= GlyphItalic
	}
	if a.Has(terminal.AttrUnderline) {
		f |= GlyphUnderline
	}
	if a.Has(terminal.AttrStrike) {
		f |= GlyphStrike
	}
	return f
}

// occupied reports whether a cell produces a glyph instance.
func occupied(c terminal.Cell) bool {
	if c.Width == 0 || c.Attributes.Has(terminal.AttrHidden) {
		return false
	}
	return c.Rune != ' ' && c.Rune != 0
}

// derive builds the glyphs and merged background runs for one row. Runs
// matching the clear color are omitted.
func (b *rowBuilder) derive(row int, cells []terminal.Cell, glyphs []GlyphInstance, rects []RectInstance) ([]GlyphInstance, []RectInstance) {
	y := float32(row) * b.cellHeight
	clearColor := Color(config.RGBA(b.palette.Background))

	runStart := -1
	var runColor Color
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		if runColor != clearColor {
			rects = append(rects, RectInstance{
				X:      float32(runStart) * b.cellWidth,
				Y:      y,
				Width:  float32(end-runStart) * b.cellWidth,
				Height: b.cellHeight,
				Color:  runColor,
			})
		}
		runStart = -1
	}

	for x, c := range cells {
		fg, bg := b.cellColors(c)
		bgColor := Color(config.RGBA(bg))

		if runStart >= 0 && bgColor != runColor {
			flush(x)
		}
		if runStart < 0 {
			runStart = x
			runColor = bgColor
		}

		if !occupied(c) {
			continue
		}
		flags := glyphFlags(c.Attributes)
		width := uint8(1)
		if c.Width == 2 {
			width = 2
		}
		glyphs = append(glyphs, GlyphInstance{
			X:     float32(x) * b.cellWidth,
			Y:     y,
			Slot:  b.atlas.Slot(GlyphKey{Rune: c.Rune, Flags: flags & (GlyphBold | GlyphItalic)}),
			Rune:  c.Rune,
			Cells: width,
			Color: Color(config.RGBA(fg)),
			Flags: flags,
		})
	}
	flush(len(cells))
	return glyphs, rects
}
