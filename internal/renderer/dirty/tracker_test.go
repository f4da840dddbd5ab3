package dirty

import (
	"sync"
	"testing"
)

func TestNewTracker(t *testing.T) {
	tracker := NewTracker(24)

	if len(tracker.rows) != 24 {
		t.Errorf("rows = %d, want 24", len(tracker.rows))
	}
	if tracker.fullRedraw {
		t.Error("New tracker should not need full redraw")
	}
	if tracker.IsDirty() {
		t.Error("New tracker should be clean")
	}
}

func TestNewTrackerNegativeHeight(t *testing.T) {
	tracker := NewTracker(-5)
	if tracker.Height() != 0 {
		t.Errorf("Height = %d, want 0", tracker.Height())
	}
	tracker.MarkRow(0)
	if tracker.IsDirty() {
		t.Error("Out-of-range mark should be ignored")
	}
}

func TestTrackerMarkRow(t *testing.T) {
	tracker := NewTracker(24)

	tracker.MarkRow(5)
	tracker.MarkRow(5)

	if !tracker.IsRowDirty(5) {
		t.Error("Row 5 should be dirty")
	}
	if tracker.IsRowDirty(6) {
		t.Error("Row 6 should be clean")
	}
	if got := tracker.Stats().Pending; got != 1 {
		t.Errorf("Pending = %d, want 1", got)
	}
}

func TestTrackerSnapshotClears(t *testing.T) {
	tracker := NewTracker(10)
	tracker.MarkRows(7, 2, 3)

	snap, ok := tracker.Snapshot()
	if !ok {
		t.Fatal("expected a snapshot")
	}
	want := []int{2, 3, 7}
	if len(snap.Rows) != len(want) {
		t.Fatalf("Rows = %v, want %v", snap.Rows, want)
	}
	for i := range want {
		if snap.Rows[i] != want[i] {
			t.Errorf("Rows[%d] = %d, want %d", i, snap.Rows[i], want[i])
		}
	}
	if snap.Generation != 1 {
		t.Errorf("Generation = %d, want 1", snap.Generation)
	}
	if tracker.IsDirty() {
		t.Error("Tracker should be clean after snapshot")
	}

	if _, ok := tracker.Snapshot(); ok {
		t.Error("Second snapshot should be empty")
	}
	if tracker.Generation() != 1 {
		t.Errorf("Empty snapshot must not advance generation, got %d", tracker.Generation())
	}
}

func TestTrackerMarkAfterSnapshot(t *testing.T) {
	tracker := NewTracker(10)
	tracker.MarkRow(4)

	first, _ := tracker.Snapshot()
	// A write landing after the snapshot was taken belongs to the next frame.
	tracker.MarkRow(4)

	second, ok := tracker.Snapshot()
	if !ok {
		t.Fatal("row re-marked after snapshot was lost")
	}
	if len(second.Rows) != 1 || second.Rows[0] != 4 {
		t.Errorf("Rows = %v, want [4]", second.Rows)
	}
	if second.Generation != first.Generation+1 {
		t.Errorf("Generation = %d, want %d", second.Generation, first.Generation+1)
	}
}

func TestTrackerFull(t *testing.T) {
	tracker := NewTracker(3)
	tracker.MarkFull()

	snap, ok := tracker.Snapshot()
	if !ok || !snap.Full {
		t.Fatal("expected full snapshot")
	}
	if len(snap.Rows) != 3 {
		t.Errorf("Rows = %v, want 3 rows", snap.Rows)
	}
}

func TestTrackerSetHeight(t *testing.T) {
	tracker := NewTracker(24)
	tracker.MarkRow(20)

	tracker.SetHeight(10)

	if tracker.Height() != 10 {
		t.Errorf("Height = %d, want 10", tracker.Height())
	}
	if !tracker.Stats().FullRedraw {
		t.Error("Resize should trigger full redraw")
	}
}

func TestTrackerMarkRange(t *testing.T) {
	tracker := NewTracker(10)
	tracker.MarkRange(6, 3)

	snap, _ := tracker.Snapshot()
	ranges := snap.Ranges()
	if len(ranges) != 1 || ranges[0] != (Range{Start: 3, End: 6}) {
		t.Errorf("Ranges = %v, want [{3 6}]", ranges)
	}
}

func TestRanges(t *testing.T) {
	tests := []struct {
		rows []int
		want []Range
	}{
		{nil, nil},
		{[]int{1}, []Range{{1, 1}}},
		{[]int{1, 2, 3, 7, 9, 10}, []Range{{1, 3}, {7, 7}, {9, 10}}},
	}
	for _, tt := range tests {
		got := Ranges(tt.rows)
		if len(got) != len(tt.want) {
			t.Errorf("Ranges(%v) = %v, want %v", tt.rows, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Ranges(%v)[%d] = %v, want %v", tt.rows, i, got[i], tt.want[i])
			}
		}
	}
}

func TestRangeLen(t *testing.T) {
	r := NewRange(5, 2)
	if r.Len() != 4 {
		t.Errorf("Len = %d, want 4", r.Len())
	}
	if !r.Contains(3) || r.Contains(6) {
		t.Error("Contains mismatch")
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tracker := NewTracker(100)
	seen := make([]bool, 100)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			tracker.MarkRow(i)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for round := 0; round < 1000; round++ {
			snap, ok := tracker.Snapshot()
			if !ok {
				continue
			}
			for _, row := range snap.Rows {
				seen[row] = true
			}
		}
	}()

	wg.Wait()
	<-done

	snap, _ := tracker.Snapshot()
	for _, row := range snap.Rows {
		seen[row] = true
	}
	for i, ok := range seen {
		if !ok {
			t.Errorf("row %d was marked but never observed", i)
		}
	}
}
