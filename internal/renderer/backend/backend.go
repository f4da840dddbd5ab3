// Package backend provides frame sinks for the renderer.
package backend

import (
	"errors"
	"sync"

	"github.com/dshills/pterminal/internal/renderer"
)

// ErrSinkClosed is returned when submitting to a closed sink.
var ErrSinkClosed = errors.New("sink closed")

// EventType identifies the type of surface event.
type EventType int

const (
	EventNone EventType = iota
	EventKey
	EventResize
	EventQuit
)

// Event is an event from the display surface.
type Event struct {
	Type EventType

	// Key is a key name accepted by terminal.EncodeKey ("a", "Enter", "C-c").
	Key string

	// Width and Height are the new surface size in pixels.
	Width, Height float64
}

// Sink consumes frame descriptors. Submit is called from the render loop
// only; Events may be read from any goroutine.
type Sink interface {
	// Submit presents one frame.
	Submit(frame *renderer.Frame) error

	// Size returns the surface size in pixels.
	Size() (width, height float64)

	// Events delivers surface events. The channel is closed by Close.
	Events() <-chan Event

	// Close releases the surface.
	Close() error
}

// Null is a headless sink. It keeps the last frame for inspection.
type Null struct {
	mu            sync.Mutex
	width, height float64
	last          *renderer.Frame
	frames        uint64
	events        chan Event
	closed        bool
}

// NewNull creates a headless sink of the given pixel size.
func NewNull(width, height float64) *Null {
	return &Null{
		width:  width,
		height: height,
		events: make(chan Event, 16),
	}
}

func (n *Null) Submit(frame *renderer.Frame) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrSinkClosed
	}
	n.last = frame
	n.frames++
	return nil
}

func (n *Null) Size() (float64, float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.width, n.height
}

func (n *Null) Events() <-chan Event {
	return n.events
}

func (n *Null) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.closed {
		n.closed = true
		close(n.events)
	}
	return nil
}

// Last returns the last submitted frame.
func (n *Null) Last() *renderer.Frame {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last
}

// Frames returns the number of submitted frames.
func (n *Null) Frames() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.frames
}

// Resize simulates a surface resize.
func (n *Null) Resize(width, height float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.width, n.height = width, height
	select {
	case n.events <- Event{Type: EventResize, Width: width, Height: height}:
	default:
		// Dropped if nobody is reading.
	}
}
