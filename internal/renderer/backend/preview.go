package backend

import (
	"fmt"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/pterminal/internal/renderer"
)

// QuitKey ends a preview session.
const QuitKey = tcell.KeyCtrlBackslash

// Preview draws frames onto a character terminal through tcell, one screen
// cell per renderer cell. It is a debugging surface; pixel-level detail
// such as underline cursors collapses to whole cells.
type Preview struct {
	mu         sync.Mutex
	screen     tcell.Screen
	cellWidth  float64
	cellHeight float64
	events     chan Event
	done       chan struct{}
	closed     bool
}

type previewCell struct {
	r  rune
	fg tcell.Color
	bg tcell.Color
}

// NewTerminalPreview opens the invoking terminal as a preview surface.
func NewTerminalPreview(cellWidth, cellHeight float64) (*Preview, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewPreview(screen, cellWidth, cellHeight)
}

// NewPreview wraps an uninitialized screen.
func NewPreview(screen tcell.Screen, cellWidth, cellHeight float64) (*Preview, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init preview screen: %w", err)
	}
	screen.EnablePaste()
	if cellWidth <= 0 {
		cellWidth = 8
	}
	if cellHeight <= 0 {
		cellHeight = 16
	}
	p := &Preview{
		screen:     screen,
		cellWidth:  cellWidth,
		cellHeight: cellHeight,
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
	}
	go p.poll()
	return p, nil
}

func (p *Preview) poll() {
	defer close(p.events)
	for {
		ev := p.screen.PollEvent()
		if ev == nil {
			return
		}
		out, ok := p.convertEvent(ev)
		if !ok {
			continue
		}
		select {
		case p.events <- out:
		case <-p.done:
			return
		}
	}
}

func (p *Preview) convertEvent(ev tcell.Event) (Event, bool) {
	switch e := ev.(type) {
	case *tcell.EventResize:
		w, h := e.Size()
		return Event{
			Type:   EventResize,
			Width:  float64(w) * p.cellWidth,
			Height: float64(h) * p.cellHeight,
		}, true

	case *tcell.EventKey:
		if e.Key() == QuitKey {
			return Event{Type: EventQuit}, true
		}
		name, ok := convertKey(e)
		if !ok {
			return Event{}, false
		}
		return Event{Type: EventKey, Key: name}, true

	default:
		return Event{}, false
	}
}

func (p *Preview) Size() (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w, h := p.screen.Size()
	return float64(w) * p.cellWidth, float64(h) * p.cellHeight
}

func (p *Preview) Events() <-chan Event {
	return p.events
}

func (p *Preview) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	p.screen.Fini()
	return nil
}

// Submit rasterizes the frame to cells: backgrounds first, then overlay
// fills and divider lines, then glyphs.
func (p *Preview) Submit(frame *renderer.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrSinkClosed
	}

	cols, rows := p.screen.Size()
	cells := make([]previewCell, cols*rows)
	clearColor := convertColor(frame.Clear)
	for i := range cells {
		cells[i] = previewCell{r: ' ', fg: tcell.ColorDefault, bg: clearColor}
	}
	at := func(x, y int) *previewCell {
		if x < 0 || y < 0 || x >= cols || y >= rows {
			return nil
		}
		return &cells[y*cols+x]
	}

	for _, r := range frame.Background {
		p.fill(r, at)
	}
	for _, r := range frame.Overlay {
		if frame.Cursor != nil && r == *frame.Cursor {
			continue
		}
		if r.Width >= float32(p.cellWidth)/2 && r.Height >= float32(p.cellHeight)/2 {
			p.fill(r, at)
			continue
		}
		p.line(r, at)
	}
	for _, g := range frame.Text {
		c := at(int(float64(g.X)/p.cellWidth), int(float64(g.Y)/p.cellHeight))
		if c == nil {
			continue
		}
		c.r = g.Rune
		c.fg = convertColor(g.Color)
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c := cells[y*cols+x]
			style := tcell.StyleDefault.Foreground(c.fg).Background(c.bg)
			p.screen.SetContent(x, y, c.r, nil, style)
		}
	}

	if frame.Cursor != nil {
		x := int(float64(frame.Cursor.X) / p.cellWidth)
		y := int(float64(frame.Cursor.Y) / p.cellHeight)
		p.screen.ShowCursor(x, y)
	} else {
		p.screen.HideCursor()
	}
	p.screen.Show()
	return nil
}

// cellSpan converts a pixel span to the cells it covers.
func cellSpan(pos, size float32, cell float64) (int, int) {
	start := int(math.Floor(float64(pos) / cell))
	end := int(math.Ceil(float64(pos+size) / cell))
	if end <= start {
		end = start + 1
	}
	return start, end
}

func (p *Preview) fill(r renderer.RectInstance, at func(x, y int) *previewCell) {
	bg := convertColor(r.Color)
	x0, x1 := cellSpan(r.X, r.Width, p.cellWidth)
	y0, y1 := cellSpan(r.Y, r.Height, p.cellHeight)
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if c := at(x, y); c != nil {
				c.bg = bg
			}
		}
	}
}

func (p *Preview) line(r renderer.RectInstance, at func(x, y int) *previewCell) {
	fg := convertColor(r.Color)
	if r.Width < r.Height {
		x := int(math.Floor(float64(r.X+r.Width/2) / p.cellWidth))
		y0, y1 := cellSpan(r.Y, r.Height, p.cellHeight)
		for y := y0; y < y1; y++ {
			if c := at(x, y); c != nil {
				c.r, c.fg = tcell.RuneVLine, fg
			}
		}
		return
	}
	y := int(math.Floor(float64(r.Y+r.Height/2) / p.cellHeight))
	x0, x1 := cellSpan(r.X, r.Width, p.cellWidth)
	for x := x0; x < x1; x++ {
		if c := at(x, y); c != nil {
			c.r, c.fg = tcell.RuneHLine, fg
		}
	}
}

func convertColor(c renderer.Color) tcell.Color {
	to8 := func(v float32) int32 {
		return int32(math.Round(float64(max(0, min(1, v))) * 255))
	}
	return tcell.NewRGBColor(to8(c[0]), to8(c[1]), to8(c[2]))
}

var keyNames = map[tcell.Key]string{
	tcell.KeyEnter:      "Enter",
	tcell.KeyTab:        "Tab",
	tcell.KeyBacktab:    "BTab",
	tcell.KeyBackspace:  "BSpace",
	tcell.KeyBackspace2: "BSpace",
	tcell.KeyEscape:     "Escape",
	tcell.KeyDelete:     "Delete",
	tcell.KeyInsert:     "Insert",
	tcell.KeyHome:       "Home",
	tcell.KeyEnd:        "End",
	tcell.KeyPgUp:       "PageUp",
	tcell.KeyPgDn:       "PageDown",
	tcell.KeyUp:         "Up",
	tcell.KeyDown:       "Down",
	tcell.KeyLeft:       "Left",
	tcell.KeyRight:      "Right",
}

// convertKey maps a tcell key event to a key name.
func convertKey(e *tcell.EventKey) (string, bool) {
	k := e.Key()
	if k == tcell.KeyRune {
		s := string(e.Rune())
		if e.Modifiers()&tcell.ModAlt != 0 {
			return "M-" + s, true
		}
		return s, true
	}
	if name, ok := keyNames[k]; ok {
		return name, true
	}
	if k >= tcell.KeyF1 && k <= tcell.KeyF12 {
		return fmt.Sprintf("F%d", k-tcell.KeyF1+1), true
	}
	if k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ {
		return fmt.Sprintf("C-%c", 'a'+rune(k-tcell.KeyCtrlA)), true
	}
	return "", false
}
