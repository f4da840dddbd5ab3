package app

import (
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}

	snapshot := m.Snapshot()
	if snapshot.FrameCount != 0 {
		t.Errorf("expected 0 frame count, got %d", snapshot.FrameCount)
	}
	if snapshot.MinFrameTimeNs != 0 {
		t.Errorf("expected 0 min frame time (sentinel handled), got %d", snapshot.MinFrameTimeNs)
	}
}

func TestMetrics_RecordFrame(t *testing.T) {
	m := NewMetrics()

	m.RecordFrame(10*time.Millisecond, 100, 4, 0, 2)
	m.RecordFrame(20*time.Millisecond, 120, 5, 1, 1)
	m.RecordFrame(5*time.Millisecond, 80, 3, 2, 0)

	snapshot := m.Snapshot()
	if snapshot.FrameCount != 3 {
		t.Errorf("expected 3 frames, got %d", snapshot.FrameCount)
	}
	if snapshot.MinFrameTimeNs != int64(5*time.Millisecond) {
		t.Errorf("expected min 5ms, got %d ns", snapshot.MinFrameTimeNs)
	}
	if snapshot.MaxFrameTimeNs != int64(20*time.Millisecond) {
		t.Errorf("expected max 20ms, got %d ns", snapshot.MaxFrameTimeNs)
	}
	if snapshot.LastFrameNs != int64(5*time.Millisecond) {
		t.Errorf("expected last 5ms, got %d ns", snapshot.LastFrameNs)
	}
	if snapshot.LastGlyphs != 80 || snapshot.LastRects != 3 {
		t.Errorf("expected last frame volume 80/3, got %d/%d", snapshot.LastGlyphs, snapshot.LastRects)
	}
	if snapshot.PanesReused != 3 || snapshot.PanesRebuilt != 3 {
		t.Errorf("expected 3 reused and 3 rebuilt, got %d/%d", snapshot.PanesReused, snapshot.PanesRebuilt)
	}
}

func TestMetrics_RecordDroppedFrame(t *testing.T) {
	m := NewMetrics()

	m.RecordFrame(20*time.Millisecond, 0, 0, 0, 0)
	m.RecordFrame(20*time.Millisecond, 0, 0, 0, 0)
	m.RecordDroppedFrame()

	snapshot := m.Snapshot()
	if snapshot.DroppedFrames != 1 {
		t.Errorf("expected 1 dropped frame, got %d", snapshot.DroppedFrames)
	}
	if snapshot.DropRate() != 50 {
		t.Errorf("expected 50%% drop rate, got %v", snapshot.DropRate())
	}
	if snapshot.AvgFPS() != 50 {
		t.Errorf("expected 50 fps, got %v", snapshot.AvgFPS())
	}
}

func TestMetrics_RecordInput(t *testing.T) {
	m := NewMetrics()

	m.RecordInput()
	m.RecordInput()

	snapshot := m.Snapshot()
	if snapshot.InputCount != 2 {
		t.Errorf("expected 2 inputs, got %d", snapshot.InputCount)
	}
}

func TestMetrics_RecordCommand(t *testing.T) {
	m := NewMetrics()

	m.RecordCommand(1 * time.Millisecond)
	m.RecordCommand(2 * time.Millisecond)
	m.RecordCommandExpired()

	snapshot := m.Snapshot()
	if snapshot.CommandCount != 2 {
		t.Errorf("expected 2 commands, got %d", snapshot.CommandCount)
	}
	expectedAvg := int64(1500000) // 1.5ms in nanoseconds
	if snapshot.AvgCommandWait != expectedAvg {
		t.Errorf("expected avg command wait %d ns, got %d ns", expectedAvg, snapshot.AvgCommandWait)
	}
	if snapshot.CommandsExpired != 1 {
		t.Errorf("expected 1 expired command, got %d", snapshot.CommandsExpired)
	}
}

func TestMetrics_Snapshot_Uptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snapshot := m.Snapshot()
	if snapshot.UptimeMs < 10 {
		t.Errorf("expected uptime >= 10ms, got %dms", snapshot.UptimeMs)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()

	m.RecordFrame(10*time.Millisecond, 1, 1, 1, 1)
	m.RecordInput()
	m.RecordDroppedFrame()
	m.RecordCommand(time.Millisecond)

	m.Reset()

	snapshot := m.Snapshot()
	if snapshot.FrameCount != 0 {
		t.Errorf("expected 0 frames after reset, got %d", snapshot.FrameCount)
	}
	if snapshot.InputCount != 0 {
		t.Errorf("expected 0 inputs after reset, got %d", snapshot.InputCount)
	}
	if snapshot.DroppedFrames != 0 {
		t.Errorf("expected 0 dropped frames after reset, got %d", snapshot.DroppedFrames)
	}
	if snapshot.CommandCount != 0 {
		t.Errorf("expected 0 commands after reset, got %d", snapshot.CommandCount)
	}
	if snapshot.MinFrameTimeNs != 0 {
		t.Errorf("expected 0 min frame time after reset, got %d", snapshot.MinFrameTimeNs)
	}
}

func TestMetricsSnapshot_Empty(t *testing.T) {
	var s MetricsSnapshot
	if s.AvgFPS() != 0 {
		t.Errorf("expected 0 fps, got %v", s.AvgFPS())
	}
	if s.DropRate() != 0 {
		t.Errorf("expected 0 drop rate, got %v", s.DropRate())
	}
}

func TestMetrics_Concurrent(t *testing.T) {
	m := NewMetrics()
	done := make(chan struct{})

	for i := 0; i < 8; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				m.RecordFrame(time.Duration(j)*time.Microsecond, j, 1, 0, 1)
				m.RecordInput()
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	snapshot := m.Snapshot()
	if snapshot.FrameCount != 800 {
		t.Errorf("expected 800 frames, got %d", snapshot.FrameCount)
	}
	if snapshot.InputCount != 800 {
		t.Errorf("expected 800 inputs, got %d", snapshot.InputCount)
	}
	if snapshot.MaxFrameTimeNs != int64(99*time.Microsecond) {
		t.Errorf("expected max 99us, got %d ns", snapshot.MaxFrameTimeNs)
	}
}
