package app

import (
	"math"
	"sync/atomic"
	"time"
)

// noFrame is the minimum frame time before any frame was recorded.
const noFrame = math.MaxInt64

// Metrics holds the session's frame, input and command counters. All
// methods are safe for concurrent use.
type Metrics struct {
	// Frame timing
	frameCount    atomic.Uint64
	frameTotalNs  atomic.Int64
	frameMinNs    atomic.Int64
	frameMaxNs    atomic.Int64
	lastFrameNs   atomic.Int64
	droppedFrames atomic.Uint64

	// Instance volume of the last frame
	lastGlyphs atomic.Int64
	lastRects  atomic.Int64

	// Cache behavior
	panesReused  atomic.Uint64
	panesRebuilt atomic.Uint64

	// Input and commands
	inputCount      atomic.Uint64
	commandCount    atomic.Uint64
	commandTotalNs  atomic.Int64
	commandsExpired atomic.Uint64

	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{startTime: time.Now()}
	m.frameMinNs.Store(noFrame)
	return m
}

// RecordFrame records frame timing and volume.
func (m *Metrics) RecordFrame(duration time.Duration, glyphs, rects, reused, rebuilt int) {
	ns := duration.Nanoseconds()

	m.frameCount.Add(1)
	m.frameTotalNs.Add(ns)
	m.lastFrameNs.Store(ns)
	m.lastGlyphs.Store(int64(glyphs))
	m.lastRects.Store(int64(rects))
	m.panesReused.Add(uint64(reused))
	m.panesRebuilt.Add(uint64(rebuilt))

	casMin(&m.frameMinNs, ns)
	casMax(&m.frameMaxNs, ns)
}

func casMin(v *atomic.Int64, ns int64) {
	for old := v.Load(); ns < old; old = v.Load() {
		if v.CompareAndSwap(old, ns) {
			return
		}
	}
}

func casMax(v *atomic.Int64, ns int64) {
	for old := v.Load(); ns > old; old = v.Load() {
		if v.CompareAndSwap(old, ns) {
			return
		}
	}
}

// RecordDroppedFrame records a frame that ran over its budget.
func (m *Metrics) RecordDroppedFrame() {
	m.droppedFrames.Add(1)
}

// RecordInput records one input event forwarded to a pane.
func (m *Metrics) RecordInput() {
	m.inputCount.Add(1)
}

// RecordCommand records a command applied by the main loop, with the time
// it spent queued.
func (m *Metrics) RecordCommand(wait time.Duration) {
	m.commandCount.Add(1)
	m.commandTotalNs.Add(wait.Nanoseconds())
}

// RecordCommandExpired records a command whose caller gave up before it ran.
func (m *Metrics) RecordCommandExpired() {
	m.commandsExpired.Add(1)
}

// Snapshot returns a snapshot of current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	frameCount := m.frameCount.Load()
	commandCount := m.commandCount.Load()

	var avgFrameNs int64
	if frameCount > 0 {
		avgFrameNs = m.frameTotalNs.Load() / int64(frameCount)
	}

	var avgCommandNs int64
	if commandCount > 0 {
		avgCommandNs = m.commandTotalNs.Load() / int64(commandCount)
	}

	minFrameNs := m.frameMinNs.Load()
	if minFrameNs == noFrame {
		minFrameNs = 0
	}

	return MetricsSnapshot{
		UptimeMs:        time.Since(m.startTime).Milliseconds(),
		FrameCount:      frameCount,
		AvgFrameTimeNs:  avgFrameNs,
		MinFrameTimeNs:  minFrameNs,
		MaxFrameTimeNs:  m.frameMaxNs.Load(),
		LastFrameNs:     m.lastFrameNs.Load(),
		DroppedFrames:   m.droppedFrames.Load(),
		LastGlyphs:      m.lastGlyphs.Load(),
		LastRects:       m.lastRects.Load(),
		PanesReused:     m.panesReused.Load(),
		PanesRebuilt:    m.panesRebuilt.Load(),
		InputCount:      m.inputCount.Load(),
		CommandCount:    commandCount,
		AvgCommandWait:  avgCommandNs,
		CommandsExpired: m.commandsExpired.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.frameCount.Store(0)
	m.frameTotalNs.Store(0)
	m.frameMinNs.Store(noFrame)
	m.frameMaxNs.Store(0)
	m.lastFrameNs.Store(0)
	m.droppedFrames.Store(0)
	m.lastGlyphs.Store(0)
	m.lastRects.Store(0)
	m.panesReused.Store(0)
	m.panesRebuilt.Store(0)
	m.inputCount.Store(0)
	m.commandCount.Store(0)
	m.commandTotalNs.Store(0)
	m.commandsExpired.Store(0)
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	UptimeMs        int64  `json:"uptime_ms"`
	FrameCount      uint64 `json:"count"`
	AvgFrameTimeNs  int64  `json:"avg_frame_ns"`
	MinFrameTimeNs  int64  `json:"min_frame_ns"`
	MaxFrameTimeNs  int64  `json:"max_frame_ns"`
	LastFrameNs     int64  `json:"last_frame_ns"`
	DroppedFrames   uint64 `json:"over_budget"`
	LastGlyphs      int64  `json:"last_glyphs"`
	LastRects       int64  `json:"last_rects"`
	PanesReused     uint64 `json:"panes_reused"`
	PanesRebuilt    uint64 `json:"panes_rebuilt"`
	InputCount      uint64 `json:"input_events"`
	CommandCount    uint64 `json:"commands"`
	AvgCommandWait  int64  `json:"avg_command_wait_ns"`
	CommandsExpired uint64 `json:"commands_expired"`
}

// AvgFPS returns the average frames per second.
func (s MetricsSnapshot) AvgFPS() float64 {
	if s.AvgFrameTimeNs == 0 {
		return 0
	}
	return 1e9 / float64(s.AvgFrameTimeNs)
}

// DropRate returns the percentage of frames that ran over budget.
func (s MetricsSnapshot) DropRate() float64 {
	if s.FrameCount == 0 {
		return 0
	}
	return float64(s.DroppedFrames) / float64(s.FrameCount) * 100
}
