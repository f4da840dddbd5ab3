package renderer

import (
	"sync"
	"time"

	"github.com/dshills/pterminal/internal/config"
	"github.com/dshills/pterminal/internal/ids"
	"github.com/dshills/pterminal/internal/logging"
	"github.com/dshills/pterminal/internal/split"
	"github.com/dshills/pterminal/internal/terminal"
)

// Source provides a pane's render state. Reading it consumes the pane's
// pending dirty rows. *terminal.Grid implements Source.
type Source interface {
	RenderState() terminal.RenderState
}

// View is one visible pane in a scene.
type View struct {
	Pane    ids.Pane
	Rect    split.Rect
	Focused bool
	Source  Source
}

// Scene is everything the renderer draws in one frame.
type Scene struct {
	Bounds   split.Rect
	Views    []View
	Dividers []split.Divider
}

// Options configures the renderer.
type Options struct {
	CellWidth     float32
	CellHeight    float32
	AtlasCapacity int
	CursorBlink   bool
	BlinkInterval time.Duration
	Palette       config.Palette
}

// DefaultOptions returns options matching the default configuration.
func DefaultOptions() Options {
	cfg := config.Default()
	return OptionsFromConfig(cfg)
}

// OptionsFromConfig derives renderer options from a config.
func OptionsFromConfig(cfg *config.Config) Options {
	palette, err := cfg.Theme.Palette()
	if err != nil {
		palette, _ = config.DefaultTheme().Palette()
	}
	return Options{
		CellWidth:     float32(cfg.Font.CellWidth),
		CellHeight:    float32(cfg.Font.CellHeight),
		AtlasCapacity: DefaultAtlasCapacity,
		CursorBlink:   cfg.Cursor.Blink,
		BlinkInterval: cfg.BlinkInterval(),
		Palette:       palette,
	}
}

// Metrics are cumulative renderer counters.
type Metrics struct {
	Frames      uint64     `json:"frames"`
	PanesReused uint64     `json:"panes_reused"`
	PanesBuilt  uint64     `json:"panes_rebuilt"`
	RowsDerived uint64     `json:"rows_derived"`
	AtlasSlots  int        `json:"atlas_slots"`
	AtlasResets uint64     `json:"atlas_resets"`
	Last        FrameStats `json:"last"`
}

// Renderer is the render pipeline coordinator.
type Renderer struct {
	mu sync.Mutex

	opts    Options
	builder rowBuilder
	blink   Blink
	logger  *logging.Logger

	// palette version, bumped on SetPalette
	paletteVersion uint64

	caches  map[ids.Pane]*paneCache
	metrics Metrics
}

// New creates a renderer.
func New(opts Options, logger *logging.Logger) *Renderer {
	if opts.CellWidth <= 0 {
		opts.CellWidth = 8
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = 16
	}
	atlas := NewAtlas(opts.AtlasCapacity)
	return &Renderer{
		opts: opts,
		builder: rowBuilder{
			palette:    opts.Palette,
			atlas:      atlas,
			cellWidth:  opts.CellWidth,
			cellHeight: opts.CellHeight,
		},
		blink:  Blink{Enabled: opts.CursorBlink, Interval: opts.BlinkInterval},
		logger: logging.OrNop(logger).WithComponent("renderer"),
		caches: make(map[ids.Pane]*paneCache),
	}
}

// CellSize returns the cell size in pixels.
func (r *Renderer) CellSize() (w, h float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.CellWidth, r.opts.CellHeight
}

// Atlas returns the glyph atlas. It must only be used from the render loop.
func (r *Renderer) Atlas() *Atlas {
	return r.builder.atlas
}

// SetPalette switches the palette. Every cached pane is re-derived on the
// next frame from its cached cells.
func (r *Renderer) SetPalette(p config.Palette) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opts.Palette = p
	r.builder.palette = p
	r.paletteVersion++
}

// SetBlink configures cursor blinking.
func (r *Renderer) SetBlink(enabled bool, interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blink.Enabled = enabled
	r.blink.Interval = interval
}

// ResetBlink shows the cursor and restarts the blink phase.
func (r *Renderer) ResetBlink(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blink.Reset(now)
}

// Forget drops the cache for a closed pane.
func (r *Renderer) Forget(pane ids.Pane) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caches, pane)
}

// Cached reports whether a pane has cached instance data.
func (r *Renderer) Cached(pane ids.Pane) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.caches[pane]
	return ok
}

// Metrics returns cumulative counters.
func (r *Renderer) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.metrics
	m.AtlasSlots = r.builder.atlas.Len()
	m.AtlasResets = r.builder.atlas.Epoch()
	return m
}

// Render builds the frame for a scene. It reads each view's source once,
// which clears exactly the dirty rows that read captured.
func (r *Renderer) Render(scene Scene, now time.Time) *Frame {
	start := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	cw, ch := r.opts.CellWidth, r.opts.CellHeight
	frame := &Frame{
		Number: r.metrics.Frames + 1,
		Screen: Screen{
			Width:      float32(scene.Bounds.Width),
			Height:     float32(scene.Bounds.Height),
			CellWidth:  cw,
			CellHeight: ch,
		},
		Clear: Color(config.RGBA(r.opts.Palette.Background)),
	}

	states := make([]terminal.RenderState, len(scene.Views))
	for i, v := range scene.Views {
		if v.Source != nil {
			states[i] = v.Source.RenderState()
		}
	}

	epoch := r.builder.atlas.Epoch()
	caches := r.updateCaches(scene.Views, states, &frame.Stats)
	if r.builder.atlas.Epoch() != epoch {
		// The atlas reset mid-frame; rows derived before the reset point at
		// stale slots.
		r.logger.Debug("glyph atlas reset", "epoch", r.builder.atlas.Epoch())
		frame.Stats = FrameStats{}
		caches = r.updateCaches(scene.Views, make([]terminal.RenderState, len(scene.Views)), &frame.Stats)
	}

	for _, pc := range caches {
		if pc == nil {
			continue
		}
		frame.Background = append(frame.Background, pc.rects...)
		frame.Text = append(frame.Text, pc.glyphs...)
	}

	r.overlay(frame, scene, states, now)

	frame.Stats.Panes = len(scene.Views)
	frame.Stats.Glyphs = len(frame.Text)
	frame.Stats.Rects = len(frame.Background) + len(frame.Overlay)
	frame.Stats.Duration = time.Since(start)

	r.metrics.Frames++
	r.metrics.PanesReused += uint64(frame.Stats.Reused)
	r.metrics.PanesBuilt += uint64(frame.Stats.Rebuilt)
	r.metrics.RowsDerived += uint64(frame.Stats.RowsDerived)
	r.metrics.Last = frame.Stats
	return frame
}

func (r *Renderer) updateCaches(views []View, states []terminal.RenderState, stats *FrameStats) []*paneCache {
	out := make([]*paneCache, len(views))
	for i, v := range views {
		if v.Source == nil {
			continue
		}
		pc, ok := r.caches[v.Pane]
		if !ok {
			pc = newPaneCache()
			r.caches[v.Pane] = pc
		}
		rs := states[i]
		if rs.Cols == 0 && rs.Rows == 0 {
			// Replay pass: keep dimensions, change nothing.
			rs.Cols, rs.Rows = pc.cols, pc.rows
		}
		n := pc.update(rs, &r.builder, r.paletteVersion, float32(v.Rect.X), float32(v.Rect.Y))
		if n == 0 {
			stats.Reused++
		} else {
			stats.Rebuilt++
			stats.RowsDerived += n
		}
		out[i] = pc
	}
	return out
}

func (r *Renderer) overlay(frame *Frame, scene Scene, states []terminal.RenderState, now time.Time) {
	cw, ch := r.opts.CellWidth, r.opts.CellHeight
	p := r.opts.Palette
	selColor := Color(config.RGBA(p.SelectionBg))
	cursorColor := Color(config.RGBA(p.Cursor))
	dividerColor := Color(config.RGBA(p.Foreground.BlendRgb(p.Background, 0.75)))

	for i, v := range scene.Views {
		if v.Source == nil {
			continue
		}
		rs := states[i]
		ox, oy := float32(v.Rect.X), float32(v.Rect.Y)
		frame.Overlay = selectionRects(rs.Selection, ox, oy, cw, ch, selColor, frame.Overlay)
	}

	frame.Overlay = dividerRects(scene.Dividers, dividerColor, frame.Overlay)

	blinkOn := r.blink.On(now)
	for i, v := range scene.Views {
		rs := states[i]
		if v.Source == nil || !rs.Cursor.Visible || rs.Cols == 0 {
			continue
		}
		if v.Focused && !blinkOn {
			continue
		}
		rect := cursorRect(rs.Cursor, float32(v.Rect.X), float32(v.Rect.Y), cw, ch)
		rect.Color = cursorColor
		if !v.Focused {
			rect.Color[3] = 0.5
		} else {
			c := rect
			frame.Cursor = &c
		}
		frame.Overlay = append(frame.Overlay, rect)
	}
}
