package renderer

import "github.com/dshills/pterminal/internal/terminal"

// cachedRow holds the last cells read for a row and the instances derived
// from them in pane-local coordinates.
type cachedRow struct {
	cells  []terminal.Cell
	glyphs []GlyphInstance
	rects  []RectInstance
}

// paneCache holds derived instance data for one pane across frames.
type paneCache struct {
	cols, rows int
	generation uint64

	// Derivation inputs; a change to either invalidates every row.
	atlasEpoch uint64
	palette    uint64

	lines []cachedRow

	// Flattened instances already offset to the pane origin.
	originX, originY float32
	glyphs           []GlyphInstance
	rects            []RectInstance
	flat             bool
}

func newPaneCache() *paneCache {
	return &paneCache{}
}

// update applies a render state to the cache. It returns the number of
// rows re-derived; zero means the cached buffers were reused as-is.
func (pc *paneCache) update(rs terminal.RenderState, b *rowBuilder, palette uint64, originX, originY float32) int {
	if rs.Cols != pc.cols || rs.Rows != pc.rows {
		pc.cols, pc.rows = rs.Cols, rs.Rows
		pc.lines = make([]cachedRow, rs.Rows)
		pc.flat = false
	}

	derived := 0
	for _, rd := range rs.Changed {
		if rd.Index < 0 || rd.Index >= len(pc.lines) {
			continue
		}
		line := &pc.lines[rd.Index]
		line.cells = rd.Cells
		line.glyphs, line.rects = b.derive(rd.Index, rd.Cells, line.glyphs[:0], line.rects[:0])
		derived++
	}
	if len(rs.Changed) > 0 {
		pc.generation = rs.Snapshot.Generation
	}

	if pc.atlasEpoch != b.atlas.Epoch() || pc.palette != palette {
		derived += pc.rederive(b)
		pc.atlasEpoch = b.atlas.Epoch()
		pc.palette = palette
	}

	if derived == 0 && pc.flat && pc.originX == originX && pc.originY == originY {
		return 0
	}
	pc.flatten(originX, originY)
	return derived
}

// rederive rebuilds every row from its cached cells.
func (pc *paneCache) rederive(b *rowBuilder) int {
	n := 0
	for i := range pc.lines {
		line := &pc.lines[i]
		if line.cells == nil {
			continue
		}
		line.glyphs, line.rects = b.derive(i, line.cells, line.glyphs[:0], line.rects[:0])
		n++
	}
	return n
}

func (pc *paneCache) flatten(originX, originY float32) {
	pc.glyphs = pc.glyphs[:0]
	pc.rects = pc.rects[:0]
	for _, line := range pc.lines {
		for _, g := range line.glyphs {
			g.X += originX
			g.Y += originY
			pc.glyphs = append(pc.glyphs, g)
		}
		for _, r := range line.rects {
			r.X += originX
			r.Y += originY
			pc.rects = append(pc.rects, r)
		}
	}
	pc.originX, pc.originY = originX, originY
	pc.flat = true
}
