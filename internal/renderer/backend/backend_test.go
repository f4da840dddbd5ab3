package backend

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/pterminal/internal/renderer"
)

func TestNullSink(t *testing.T) {
	n := NewNull(640, 480)
	w, h := n.Size()
	if w != 640 || h != 480 {
		t.Errorf("expected size (640, 480), got (%v, %v)", w, h)
	}

	frame := &renderer.Frame{Number: 7}
	if err := n.Submit(frame); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if n.Last() != frame || n.Frames() != 1 {
		t.Errorf("expected last frame recorded, got %v after %d frames", n.Last(), n.Frames())
	}

	n.Resize(800, 600)
	ev := <-n.Events()
	if ev.Type != EventResize || ev.Width != 800 || ev.Height != 600 {
		t.Errorf("unexpected resize event %+v", ev)
	}

	n.Close()
	if err := n.Submit(frame); err != ErrSinkClosed {
		t.Errorf("expected ErrSinkClosed, got %v", err)
	}
	if _, ok := <-n.Events(); ok {
		t.Error("expected events channel closed")
	}
}

func newSimPreview(t *testing.T) (*Preview, tcell.SimulationScreen) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	p, err := NewPreview(screen, 8, 16)
	if err != nil {
		t.Fatalf("NewPreview: %v", err)
	}
	screen.SetSize(20, 5)
	t.Cleanup(func() { p.Close() })
	return p, screen
}

func nextEvent(t *testing.T, p *Preview, want EventType) Event {
	t.Helper()
	return waitEvent(t, p, func(ev Event) bool { return ev.Type == want })
}

func waitEvent(t *testing.T, p *Preview, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				t.Fatal("events closed")
			}
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestPreviewSubmit(t *testing.T) {
	p, screen := newSimPreview(t)

	red := renderer.Color{1, 0, 0, 1}
	frame := &renderer.Frame{
		Clear: renderer.Color{0, 0, 0, 1},
		Background: []renderer.RectInstance{
			{X: 8, Y: 16, Width: 16, Height: 16, Color: red},
		},
		Overlay: []renderer.RectInstance{
			{X: 79.5, Y: 0, Width: 1, Height: 80, Color: renderer.Color{1, 1, 1, 1}},
		},
		Text: []renderer.GlyphInstance{
			{X: 8, Y: 16, Rune: 'h', Cells: 1, Color: renderer.Color{1, 1, 1, 1}},
			{X: 16, Y: 16, Rune: 'i', Cells: 1, Color: renderer.Color{1, 1, 1, 1}},
		},
		Cursor: &renderer.RectInstance{X: 24, Y: 16, Width: 8, Height: 16},
	}
	frame.Overlay = append(frame.Overlay, *frame.Cursor)

	if err := p.Submit(frame); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	tests := []struct {
		x, y int
		r    rune
	}{
		{1, 1, 'h'},
		{2, 1, 'i'},
		{0, 0, ' '},
		{10, 2, tcell.RuneVLine},
	}
	for _, tt := range tests {
		r, _, _, _ := screen.GetContent(tt.x, tt.y) //nolint:staticcheck // GetContent is the correct API
		if r != tt.r {
			t.Errorf("cell (%d,%d): expected %q, got %q", tt.x, tt.y, tt.r, r)
		}
	}

	_, _, style, _ := screen.GetContent(1, 1) //nolint:staticcheck // GetContent is the correct API
	_, bg, _ := style.Decompose()
	if bg != tcell.NewRGBColor(255, 0, 0) {
		t.Errorf("expected red background under glyph, got %v", bg)
	}
	_, _, style, _ = screen.GetContent(3, 1) //nolint:staticcheck // GetContent is the correct API
	if _, bg, _ := style.Decompose(); bg == tcell.NewRGBColor(255, 0, 0) {
		t.Error("expected cursor rect to not be painted as a fill")
	}

	if w, h := p.Size(); w != 160 || h != 80 {
		t.Errorf("expected 160x80 pixels, got %vx%v", w, h)
	}
}

func TestPreviewEvents(t *testing.T) {
	p, screen := newSimPreview(t)

	screen.PostEvent(tcell.NewEventResize(30, 10))
	// Earlier resize events from setup may still be queued.
	waitEvent(t, p, func(ev Event) bool {
		return ev.Type == EventResize && ev.Width == 240 && ev.Height == 160
	})

	screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
	if ev := nextEvent(t, p, EventKey); ev.Key != "x" {
		t.Errorf("expected key x, got %q", ev.Key)
	}
	screen.InjectKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)
	if ev := nextEvent(t, p, EventKey); ev.Key != "C-c" {
		t.Errorf("expected C-c, got %q", ev.Key)
	}
	screen.InjectKey(QuitKey, 0, tcell.ModCtrl)
	nextEvent(t, p, EventQuit)
}

func TestConvertKey(t *testing.T) {
	tests := []struct {
		key      tcell.Key
		r        rune
		mod      tcell.ModMask
		expected string
	}{
		{tcell.KeyRune, 'a', tcell.ModNone, "a"},
		{tcell.KeyRune, 'x', tcell.ModAlt, "M-x"},
		{tcell.KeyEnter, 0, tcell.ModNone, "Enter"},
		{tcell.KeyUp, 0, tcell.ModNone, "Up"},
		{tcell.KeyF5, 0, tcell.ModNone, "F5"},
		{tcell.KeyCtrlD, 0, tcell.ModCtrl, "C-d"},
	}
	for _, tt := range tests {
		got, ok := convertKey(tcell.NewEventKey(tt.key, tt.r, tt.mod))
		if !ok || got != tt.expected {
			t.Errorf("convertKey(%v, %q) = %q, expected %q", tt.key, tt.r, got, tt.expected)
		}
	}
}

func TestPreviewClosed(t *testing.T) {
	p, _ := newSimPreview(t)
	p.Close()
	if err := p.Submit(&renderer.Frame{}); err != ErrSinkClosed {
		t.Errorf("expected ErrSinkClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("expected second Close to be a no-op, got %v", err)
	}
}
