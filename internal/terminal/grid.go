package terminal

import (
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/dshills/pterminal/internal/renderer/dirty"
)

// CursorStyle represents the cursor appearance.
type CursorStyle int

const (
	CursorBlock CursorStyle = iota
	CursorUnderline
	CursorBar
)

// String returns the style name used in configuration.
func (s CursorStyle) String() string {
	switch s {
	case CursorUnderline:
		return "underline"
	case CursorBar:
		return "bar"
	default:
		return "block"
	}
}

// ParseCursorStyle parses a configuration style name, defaulting to block.
func ParseCursorStyle(s string) CursorStyle {
	switch strings.ToLower(s) {
	case "underline":
		return CursorUnderline
	case "bar", "beam":
		return CursorBar
	default:
		return CursorBlock
	}
}

// Cursor is the visible cursor state. X may equal the column count while a
// wrap is pending; readers should clamp it for display.
type Cursor struct {
	X, Y    int
	Visible bool
	Style   CursorStyle
}

// Modes reports terminal modes that affect input encoding.
type Modes struct {
	AppCursor      bool // DECCKM
	BracketedPaste bool // 2004
	AutoWrap       bool // DECAWM
	Origin         bool // DECOM
	Insert         bool // IRM
	AltScreen      bool
}

// Point addresses a cell. Row is relative to the top of the screen;
// negative rows reach into scrollback.
type Point struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Selection is a selected cell range in absolute line coordinates, so it
// stays attached to its content as lines scroll into history.
type Selection struct {
	Start, End absPoint
}

type absPoint struct {
	line int
	col  int
}

func (a absPoint) before(b absPoint) bool {
	return a.line < b.line || (a.line == b.line && a.col < b.col)
}

type pen struct {
	fg, bg Color
	attrs  CellAttributes
}

type savedCursor struct {
	x, y       int
	pen        pen
	originMode bool
}

// Grid is the canonical cell buffer of one pane: the visible screen, its
// scrollback, an alternate screen and the dirty-row tracker.
//
// The VT parser is the only writer and holds the write lock for a whole
// chunk of input. Unexported mutation methods assume the write lock is held;
// exported methods lock on their own.
type Grid struct {
	mu sync.RWMutex

	cols int
	rows int

	// screens[0] is the primary screen, screens[1] the alternate one.
	screens [2][]*Line
	alt     bool

	scrollback *Scrollback

	// lineBase is the absolute line number of primary screen row 0. It grows
	// by one for every line pushed into scrollback.
	lineBase int

	tracker *dirty.Tracker

	cx, cy        int
	cursorVisible bool
	cursorStyle   CursorStyle

	top, bottom int

	pen      pen
	saved    savedCursor
	altSaved savedCursor

	originMode     bool
	autoWrap       bool
	appCursor      bool
	bracketedPaste bool
	insertMode     bool

	selection *Selection

	title string
	cwd   string
}

// NewGrid creates a grid of cols x rows with the given scrollback capacity.
func NewGrid(cols, rows, scrollback int) *Grid {
	if cols < 1 {
		cols = 80
	}
	if rows < 1 {
		rows = 24
	}

	g := &Grid{
		cols:          cols,
		rows:          rows,
		scrollback:    NewScrollback(scrollback),
		tracker:       dirty.NewTracker(rows),
		cursorVisible: true,
		cursorStyle:   CursorBlock,
		bottom:        rows - 1,
		pen:           pen{fg: DefaultColor, bg: DefaultColor},
		autoWrap:      true,
	}
	g.screens[0] = newLines(cols, rows)
	g.screens[1] = newLines(cols, rows)
	g.tracker.MarkFull()
	return g
}

func newLines(cols, rows int) []*Line {
	lines := make([]*Line, rows)
	for i := range lines {
		lines[i] = NewLine(cols)
	}
	return lines
}

// lines returns the active screen buffer.
func (g *Grid) lines() []*Line {
	if g.alt {
		return g.screens[1]
	}
	return g.screens[0]
}

// Dirty returns the grid's dirty-row tracker.
func (g *Grid) Dirty() *dirty.Tracker {
	return g.tracker
}

// Size returns the grid dimensions.
func (g *Grid) Size() (cols, rows int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cols, g.rows
}

// Cursor returns the cursor state.
func (g *Grid) Cursor() Cursor {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cursorLocked()
}

func (g *Grid) cursorLocked() Cursor {
	return Cursor{X: g.cx, Y: g.cy, Visible: g.cursorVisible, Style: g.cursorStyle}
}

// Modes returns the current terminal modes.
func (g *Grid) Modes() Modes {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Modes{
		AppCursor:      g.appCursor,
		BracketedPaste: g.bracketedPaste,
		AutoWrap:       g.autoWrap,
		Origin:         g.originMode,
		Insert:         g.insertMode,
		AltScreen:      g.alt,
	}
}

// Title returns the title set by OSC 0/2.
func (g *Grid) Title() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.title
}

// WorkingDirectory returns the directory reported by OSC 7.
func (g *Grid) WorkingDirectory() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cwd
}

// Cell returns the cell at the given position.
// Returns an empty cell if out of bounds.
func (g *Grid) Cell(x, y int) Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if x < 0 || x >= g.cols || y < 0 || y >= g.rows {
		return EmptyCell()
	}
	return g.lines()[y].Cells[x]
}

// Line returns a copy of the screen line at y.
func (g *Grid) Line(y int) []Cell {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if y < 0 || y >= g.rows {
		return nil
	}
	cells := make([]Cell, g.cols)
	copy(cells, g.lines()[y].Cells)
	return cells
}

// ScrollbackLen returns the number of retained history lines.
func (g *Grid) ScrollbackLen() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.scrollback.Len()
}

// SetScrollbackCap changes the history capacity, keeping the newest lines.
func (g *Grid) SetScrollbackCap(capacity int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scrollback.SetCap(capacity)
	g.validateSelection()
}

// CaptureOptions selects what Text includes.
type CaptureOptions struct {
	// Scrollback prepends history lines, oldest first.
	Scrollback bool

	// Lines limits history to the newest N lines. Zero means all.
	Lines int
}

// Text converts the grid to text: each row's glyphs joined left to right,
// trailing blanks trimmed, rows separated by a single newline.
func (g *Grid) Text(opts CaptureOptions) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var rows []string
	if opts.Scrollback && !g.alt {
		start := 0
		if opts.Lines > 0 && opts.Lines < g.scrollback.Len() {
			start = g.scrollback.Len() - opts.Lines
		}
		for i := start; i < g.scrollback.Len(); i++ {
			rows = append(rows, g.scrollback.Line(i).Text())
		}
	}
	for _, line := range g.lines() {
		rows = append(rows, line.Text())
	}
	return strings.Join(rows, "\n")
}

// Resize changes the grid to cols x rows.
//
// The cursor (and saved cursor) is clamped into the new bounds and any
// selection is cleared. When shrinking, rows below the cursor are dropped
// first; the rest leave through the top into scrollback so the cursor row
// stays visible. When growing, rows come back from scrollback before blank
// rows are appended.
func (g *Grid) Resize(cols, rows int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resizeLocked(cols, rows)
}

func (g *Grid) resizeLocked(cols, rows int) {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if cols == g.cols && rows == g.rows {
		return
	}

	active := 0
	if g.alt {
		active = 1
	}

	// Height first on the active screen, tracking the cursor row.
	lines := g.screens[active]
	cy := g.cy
	if rows < len(lines) {
		excess := len(lines) - rows
		below := len(lines) - 1 - cy
		if below < 0 {
			below = 0
		}
		drop := excess
		if drop > below {
			drop = below
		}
		lines = lines[:len(lines)-drop]
		for excess -= drop; excess > 0; excess-- {
			if !g.alt {
				g.pushScrollback(lines[0])
			}
			lines = lines[1:]
			cy--
		}
	} else if rows > len(lines) {
		grow := rows - len(lines)
		if !g.alt {
			var pulled []*Line
			for grow > 0 && g.scrollback.Len() > 0 {
				pulled = append(pulled, g.scrollback.PopNewest())
				g.lineBase--
				grow--
			}
			if len(pulled) > 0 {
				restored := make([]*Line, 0, len(pulled)+len(lines))
				for i := len(pulled) - 1; i >= 0; i-- {
					restored = append(restored, pulled[i])
				}
				lines = append(restored, lines...)
				cy += len(pulled)
			}
		}
		for ; grow > 0; grow-- {
			lines = append(lines, NewLine(cols))
		}
	}
	g.screens[active] = resizeLines(lines, cols, rows)

	// The inactive screen keeps its top rows.
	g.screens[1-active] = resizeLines(g.screens[1-active], cols, rows)

	g.cols = cols
	g.rows = rows
	g.cy = cy

	g.top = 0
	g.bottom = rows - 1

	g.cx = clamp(g.cx, 0, cols-1)
	g.cy = clamp(g.cy, 0, rows-1)
	g.saved.x = clamp(g.saved.x, 0, cols-1)
	g.saved.y = clamp(g.saved.y, 0, rows-1)
	g.altSaved.x = clamp(g.altSaved.x, 0, cols-1)
	g.altSaved.y = clamp(g.altSaved.y, 0, rows-1)

	g.selection = nil
	g.tracker.SetHeight(rows)
}

func resizeLines(lines []*Line, cols, rows int) []*Line {
	out := make([]*Line, rows)
	for y := range out {
		if y < len(lines) && lines[y] != nil {
			if len(lines[y].Cells) == cols {
				out[y] = lines[y]
			} else {
				out[y] = lines[y].resized(cols)
			}
			continue
		}
		out[y] = NewLine(cols)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// pushScrollback moves a primary screen line into history.
func (g *Grid) pushScrollback(line *Line) {
	g.scrollback.Push(line)
	g.lineBase++
	g.validateSelection()
}

// oldestLine is the absolute number of the oldest retained line.
func (g *Grid) oldestLine() int {
	return g.lineBase - g.scrollback.Len()
}

// validateSelection drops a selection whose start left retained history.
func (g *Grid) validateSelection() {
	if g.selection != nil && g.selection.Start.line < g.oldestLine() {
		g.selection = nil
	}
}

func (g *Grid) markAll() {
	g.tracker.MarkFull()
}

// writeRune places r at the cursor with the current pen and advances.
func (g *Grid) writeRune(r rune) {
	lines := g.lines()
	if len(lines) == 0 || g.cols == 0 {
		return
	}

	w := runewidth.RuneWidth(r)
	if w == 0 {
		return
	}
	if w > 2 {
		w = 2
	}
	if g.cols < 2 {
		w = 1
	}

	// Handle auto-wrap at end of line
	if g.cx >= g.cols || (w == 2 && g.cx == g.cols-1) {
		if g.autoWrap {
			if g.cx < g.cols {
				lines[g.cy].Cells[g.cx] = blankCell(g.pen.bg)
			}
			lines[g.cy].Wrapped = true
			g.tracker.MarkRow(g.cy)
			g.cx = 0
			g.lineFeed()
			lines = g.lines()
		} else {
			g.cx = g.cols - w
		}
	}

	if g.cy < 0 || g.cy >= len(lines) {
		return
	}
	line := lines[g.cy]

	if g.insertMode {
		g.shiftRight(line, g.cx, w)
	}

	g.breakWide(line, g.cx)
	if w == 2 {
		g.breakWide(line, g.cx+1)
	}

	line.Cells[g.cx] = Cell{
		Rune:       r,
		Width:      w,
		Foreground: g.pen.fg,
		Background: g.pen.bg,
		Attributes: g.pen.attrs,
	}
	if w == 2 {
		line.Cells[g.cx+1] = Cell{
			Width:      0,
			Foreground: g.pen.fg,
			Background: g.pen.bg,
			Attributes: g.pen.attrs,
		}
	}
	g.tracker.MarkRow(g.cy)
	g.cx += w
}

// breakWide blanks the other half of a wide rune about to be overwritten
// at x.
func (g *Grid) breakWide(line *Line, x int) {
	if x < 0 || x >= len(line.Cells) {
		return
	}
	switch line.Cells[x].Width {
	case 0:
		if x > 0 && line.Cells[x-1].Width == 2 {
			line.Cells[x-1] = blankCell(line.Cells[x-1].Background)
		}
	case 2:
		if x+1 < len(line.Cells) && line.Cells[x+1].Width == 0 {
			line.Cells[x+1] = blankCell(line.Cells[x+1].Background)
		}
	}
}

func (g *Grid) shiftRight(line *Line, x, n int) {
	if n <= 0 || x >= g.cols {
		return
	}
	if n > g.cols-x {
		n = g.cols - x
	}
	for i := g.cols - 1; i >= x+n; i-- {
		line.Cells[i] = line.Cells[i-n]
	}
	for i := x; i < x+n; i++ {
		line.Cells[i] = blankCell(g.pen.bg)
	}
}

// moveCursor moves the cursor to the specified position.
func (g *Grid) moveCursor(x, y int) {
	x = clamp(x, 0, g.cols-1)

	top := 0
	bottom := g.rows - 1
	if g.originMode {
		top = g.top
		bottom = g.bottom
		y += top
	}
	g.cx = x
	g.cy = clamp(y, top, bottom)
}

// moveCursorRelative moves the cursor by the given delta, staying within
// the scroll region when it starts inside it.
func (g *Grid) moveCursorRelative(dx, dy int) {
	x := g.cx
	if x >= g.cols {
		x = g.cols - 1
	}
	x = clamp(x+dx, 0, g.cols-1)

	y := g.cy + dy
	top, bottom := 0, g.rows-1
	if g.cy >= g.top && g.cy <= g.bottom {
		top, bottom = g.top, g.bottom
	}
	g.cx = x
	g.cy = clamp(y, top, bottom)
}

func (g *Grid) carriageReturn() {
	g.cx = 0
}

func (g *Grid) backspace() {
	if g.cx >= g.cols {
		g.cx = g.cols - 1
	}
	if g.cx > 0 {
		g.cx--
	}
}

// lineFeed moves the cursor down one line, scrolling at the region bottom.
func (g *Grid) lineFeed() {
	switch {
	case g.cy == g.bottom:
		g.scrollUp(1)
	case g.cy < g.rows-1:
		g.cy++
	}
}

// reverseLineFeed moves the cursor up one line, scrolling at the region top.
func (g *Grid) reverseLineFeed() {
	switch {
	case g.cy == g.top:
		g.scrollDown(1)
	case g.cy > 0:
		g.cy--
	}
}

// scrollUp scrolls the scroll region up by n lines. Lines leaving the top
// of a full-screen primary region enter scrollback.
func (g *Grid) scrollUp(n int) {
	lines := g.lines()
	top, bottom := g.region()
	if n <= 0 || top > bottom {
		return
	}
	if size := bottom - top + 1; n > size {
		n = size
	}

	toHistory := top == 0 && bottom == g.rows-1 && !g.alt
	if !toHistory {
		g.clearSelectionIn(top, bottom)
	}
	for i := 0; i < n; i++ {
		if toHistory {
			g.pushScrollback(lines[top+i])
		}
	}
	copy(lines[top:bottom-n+1], lines[top+n:bottom+1])
	for y := bottom - n + 1; y <= bottom; y++ {
		lines[y] = g.blankLine()
	}
	g.tracker.MarkRange(top, bottom)
}

// scrollDown scrolls the scroll region down by n lines.
func (g *Grid) scrollDown(n int) {
	lines := g.lines()
	top, bottom := g.region()
	if n <= 0 || top > bottom {
		return
	}
	if size := bottom - top + 1; n > size {
		n = size
	}

	g.clearSelectionIn(top, bottom)
	copy(lines[top+n:bottom+1], lines[top:bottom-n+1])
	for y := top; y < top+n; y++ {
		lines[y] = g.blankLine()
	}
	g.tracker.MarkRange(top, bottom)
}

func (g *Grid) region() (int, int) {
	top, bottom := g.top, g.bottom
	if top < 0 {
		top = 0
	}
	if bottom >= g.rows {
		bottom = g.rows - 1
	}
	return top, bottom
}

func (g *Grid) blankLine() *Line {
	line := NewLine(g.cols)
	if !g.pen.bg.Default {
		line.ClearRange(0, g.cols, g.pen.bg)
	}
	return line
}

// clearSelectionIn clears the selection when it touches screen rows
// top..bottom, whose content is about to move without history.
func (g *Grid) clearSelectionIn(top, bottom int) {
	if g.selection == nil {
		return
	}
	base := g.lineBase
	if g.alt {
		g.selection = nil
		return
	}
	if g.selection.End.line >= base+top && g.selection.Start.line <= base+bottom {
		g.selection = nil
	}
}

// setScrollRegion sets the scroll region (0-indexed, inclusive).
func (g *Grid) setScrollRegion(top, bottom int) {
	if top < 0 {
		top = 0
	}
	if bottom >= g.rows {
		bottom = g.rows - 1
	}
	if top >= bottom {
		return
	}
	g.top = top
	g.bottom = bottom

	g.cx = 0
	if g.originMode {
		g.cy = top
	} else {
		g.cy = 0
	}
}

// clearScreen clears the entire screen.
func (g *Grid) clearScreen() {
	for _, line := range g.lines() {
		line.ClearRange(0, g.cols, g.pen.bg)
		line.Wrapped = false
	}
	g.markAll()
}

// clearScreenAbove clears from the top of the screen through the cursor.
func (g *Grid) clearScreenAbove() {
	lines := g.lines()
	for y := 0; y < g.cy; y++ {
		lines[y].ClearRange(0, g.cols, g.pen.bg)
	}
	lines[g.cy].ClearRange(0, g.cx+1, g.pen.bg)
	g.tracker.MarkRange(0, g.cy)
}

// clearScreenBelow clears from the cursor to the bottom of the screen.
func (g *Grid) clearScreenBelow() {
	lines := g.lines()
	lines[g.cy].ClearRange(g.cx, g.cols, g.pen.bg)
	for y := g.cy + 1; y < g.rows; y++ {
		lines[y].ClearRange(0, g.cols, g.pen.bg)
	}
	g.tracker.MarkRange(g.cy, g.rows-1)
}

// clearScrollback drops all history (ED 3).
func (g *Grid) clearScrollback() {
	g.scrollback.Clear()
	g.validateSelection()
}

func (g *Grid) clearLine() {
	g.lines()[g.cy].ClearRange(0, g.cols, g.pen.bg)
	g.tracker.MarkRow(g.cy)
}

func (g *Grid) clearLineLeft() {
	g.lines()[g.cy].ClearRange(0, g.cx+1, g.pen.bg)
	g.tracker.MarkRow(g.cy)
}

func (g *Grid) clearLineRight() {
	g.lines()[g.cy].ClearRange(g.cx, g.cols, g.pen.bg)
	g.tracker.MarkRow(g.cy)
}

// insertLines inserts n blank lines at the cursor, pushing content down.
func (g *Grid) insertLines(n int) {
	if g.cy < g.top || g.cy > g.bottom {
		return
	}
	oldTop := g.top
	g.top = g.cy
	g.scrollDown(n)
	g.top = oldTop
	g.cx = 0
}

// deleteLines deletes n lines at the cursor, pulling content up. Deleted
// lines never enter scrollback.
func (g *Grid) deleteLines(n int) {
	if g.cy < g.top || g.cy > g.bottom {
		return
	}
	lines := g.lines()
	top, bottom := g.cy, g.bottom
	if size := bottom - top + 1; n > size {
		n = size
	}
	if n <= 0 {
		return
	}
	g.clearSelectionIn(top, bottom)
	copy(lines[top:bottom-n+1], lines[top+n:bottom+1])
	for y := bottom - n + 1; y <= bottom; y++ {
		lines[y] = g.blankLine()
	}
	g.tracker.MarkRange(top, bottom)
	g.cx = 0
}

// insertChars inserts n blank characters at the cursor.
func (g *Grid) insertChars(n int) {
	if g.cx >= g.cols || n <= 0 {
		return
	}
	line := g.lines()[g.cy]
	g.breakWide(line, g.cx)
	g.shiftRight(line, g.cx, n)
	g.tracker.MarkRow(g.cy)
}

// deleteChars deletes n characters at the cursor, shifting left.
func (g *Grid) deleteChars(n int) {
	if g.cx >= g.cols || n <= 0 {
		return
	}
	line := g.lines()[g.cy]
	if max := g.cols - g.cx; n > max {
		n = max
	}
	g.breakWide(line, g.cx)
	g.breakWide(line, g.cx+n-1)
	copy(line.Cells[g.cx:], line.Cells[g.cx+n:])
	line.ClearRange(g.cols-n, g.cols, g.pen.bg)
	g.tracker.MarkRow(g.cy)
}

// eraseChars replaces n characters at the cursor with blanks.
func (g *Grid) eraseChars(n int) {
	if g.cx >= g.cols || n <= 0 {
		return
	}
	line := g.lines()[g.cy]
	g.breakWide(line, g.cx)
	g.breakWide(line, g.cx+n-1)
	line.ClearRange(g.cx, g.cx+n, g.pen.bg)
	g.tracker.MarkRow(g.cy)
}

func (g *Grid) saveCursor() {
	g.saved = savedCursor{x: g.cx, y: g.cy, pen: g.pen, originMode: g.originMode}
}

func (g *Grid) restoreCursor() {
	g.cx = clamp(g.saved.x, 0, g.cols-1)
	g.cy = clamp(g.saved.y, 0, g.rows-1)
	g.pen = g.saved.pen
	g.originMode = g.saved.originMode
}

// enterAltScreen switches to a cleared alternate screen. The alternate
// screen has no scrollback.
func (g *Grid) enterAltScreen(saveCursor bool) {
	if g.alt {
		return
	}
	if saveCursor {
		g.altSaved = savedCursor{x: g.cx, y: g.cy, pen: g.pen, originMode: g.originMode}
	}
	g.screens[1] = newLines(g.cols, g.rows)
	g.alt = true
	g.top, g.bottom = 0, g.rows-1
	g.selection = nil
	g.markAll()
}

// exitAltScreen returns to the primary screen.
func (g *Grid) exitAltScreen(restoreCursor bool) {
	if !g.alt {
		return
	}
	g.alt = false
	g.top, g.bottom = 0, g.rows-1
	if restoreCursor {
		g.cx = clamp(g.altSaved.x, 0, g.cols-1)
		g.cy = clamp(g.altSaved.y, 0, g.rows-1)
		g.pen = g.altSaved.pen
		g.originMode = g.altSaved.originMode
	}
	g.selection = nil
	g.markAll()
}

// reset restores the initial state (RIS), keeping scrollback.
func (g *Grid) reset() {
	g.alt = false
	g.screens[0] = newLines(g.cols, g.rows)
	g.screens[1] = newLines(g.cols, g.rows)
	g.cx, g.cy = 0, 0
	g.cursorVisible = true
	g.cursorStyle = CursorBlock
	g.top, g.bottom = 0, g.rows-1
	g.pen = pen{fg: DefaultColor, bg: DefaultColor}
	g.saved = savedCursor{}
	g.originMode = false
	g.autoWrap = true
	g.appCursor = false
	g.bracketedPaste = false
	g.insertMode = false
	g.selection = nil
	g.markAll()
}

// SetSelection selects the cells from start to end inclusive, in either
// order. It fails when a point lies outside the screen and retained history.
func (g *Grid) SetSelection(start, end Point) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.alt && (start.Row < 0 || end.Row < 0) {
		return ErrInvalidSelection
	}
	a, ok := g.toAbs(start)
	if !ok {
		return ErrInvalidSelection
	}
	b, ok := g.toAbs(end)
	if !ok {
		return ErrInvalidSelection
	}
	if b.before(a) {
		a, b = b, a
	}
	g.selection = &Selection{Start: a, End: b}
	return nil
}

// ClearSelection removes any selection.
func (g *Grid) ClearSelection() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.selection = nil
}

// HasSelection reports whether a selection is active.
func (g *Grid) HasSelection() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.selection != nil
}

func (g *Grid) toAbs(p Point) (absPoint, bool) {
	if p.Row < -g.scrollback.Len() || p.Row >= g.rows {
		return absPoint{}, false
	}
	return absPoint{line: g.lineBase + p.Row, col: clamp(p.Col, 0, g.cols-1)}, true
}

// lineAt returns the line at an absolute line number, or nil.
func (g *Grid) lineAt(abs int) *Line {
	row := abs - g.lineBase
	if row >= 0 && row < g.rows {
		return g.lines()[row]
	}
	idx := abs - g.oldestLine()
	return g.scrollback.Line(idx)
}

// SelectionText returns the selected text, rows joined by newlines, or ""
// when nothing is selected.
func (g *Grid) SelectionText() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	sel := g.selection
	if sel == nil {
		return ""
	}
	var rows []string
	for abs := sel.Start.line; abs <= sel.End.line; abs++ {
		line := g.lineAt(abs)
		if line == nil {
			continue
		}
		from, to := 0, len(line.Cells)
		if abs == sel.Start.line {
			from = sel.Start.col
		}
		if abs == sel.End.line && sel.End.col+1 < to {
			to = sel.End.col + 1
		}
		if from > len(line.Cells) {
			from = len(line.Cells)
		}
		part := &Line{Cells: line.Cells[from:to]}
		rows = append(rows, part.Text())
	}
	return strings.Join(rows, "\n")
}

// Span is a selected run of cells on one screen row; End is exclusive.
type Span struct {
	Row, Start, End int
}

func (g *Grid) selectionSpans() []Span {
	sel := g.selection
	if sel == nil {
		return nil
	}
	var spans []Span
	for abs := sel.Start.line; abs <= sel.End.line; abs++ {
		row := abs - g.lineBase
		if row < 0 || row >= g.rows {
			continue
		}
		s := Span{Row: row, Start: 0, End: g.cols}
		if abs == sel.Start.line {
			s.Start = sel.Start.col
		}
		if abs == sel.End.line {
			s.End = sel.End.col + 1
		}
		if s.End > g.cols {
			s.End = g.cols
		}
		if s.Start < s.End {
			spans = append(spans, s)
		}
	}
	return spans
}

// RowData is a copy of one changed screen row.
type RowData struct {
	Index int
	Cells []Cell
}

// RenderState is what the renderer reads from a grid for one frame.
type RenderState struct {
	Cols, Rows int

	// Snapshot holds the dirty rows consumed by this read. Changed is empty
	// when the grid did not change since the previous read.
	Snapshot dirty.Snapshot
	Changed  []RowData

	Cursor    Cursor
	Selection []Span
	AltScreen bool
}

// RenderState copies the dirty rows and clears exactly those rows in the
// tracker. Cursor and selection are always reported.
func (g *Grid) RenderState() RenderState {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rs := RenderState{
		Cols:      g.cols,
		Rows:      g.rows,
		Cursor:    g.cursorLocked(),
		Selection: g.selectionSpans(),
		AltScreen: g.alt,
	}
	if rs.Cursor.X >= g.cols {
		rs.Cursor.X = g.cols - 1
	}

	snap, ok := g.tracker.Snapshot()
	rs.Snapshot = snap
	if !ok {
		return rs
	}
	lines := g.lines()
	rs.Changed = make([]RowData, 0, len(snap.Rows))
	for _, row := range snap.Rows {
		if row >= len(lines) {
			continue
		}
		cells := make([]Cell, len(lines[row].Cells))
		copy(cells, lines[row].Cells)
		rs.Changed = append(rs.Changed, RowData{Index: row, Cells: cells})
	}
	return rs
}
