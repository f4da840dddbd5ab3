package dirty

import (
	"sync"
)

// Snapshot is the set of rows a renderer consumed for one frame.
type Snapshot struct {
	// Generation is the tracker generation the rows belong to.
	Generation uint64

	// Rows holds the dirty row indices in ascending order.
	Rows []int

	// Full is set when every row must be rebuilt (resize, screen switch).
	Full bool
}

// Empty reports whether the snapshot carries no work.
func (s Snapshot) Empty() bool {
	return !s.Full && len(s.Rows) == 0
}

// Ranges returns the dirty rows as contiguous runs.
func (s Snapshot) Ranges() []Range {
	return Ranges(s.Rows)
}

// Tracker records dirty rows for a single grid.
//
// Writers mark rows; one reader per frame calls Snapshot, which atomically
// copies and clears the set and advances the generation. A row marked after
// Snapshot returns is dirty again in the next snapshot.
type Tracker struct {
	mu sync.Mutex

	rows       []bool
	count      int
	fullRedraw bool
	generation uint64

	// stats
	marks     uint64
	snapshots uint64
}

// NewTracker creates a tracker for a grid of the given height.
// Negative heights are treated as zero.
func NewTracker(height int) *Tracker {
	if height < 0 {
		height = 0
	}
	return &Tracker{rows: make([]bool, height)}
}

// SetHeight resizes the row set and forces a full redraw.
func (t *Tracker) SetHeight(height int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if height < 0 {
		height = 0
	}
	t.rows = make([]bool, height)
	t.count = 0
	t.fullRedraw = true
}

// Height returns the number of rows tracked.
func (t *Tracker) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rows)
}

// MarkRow marks a single row dirty. Out-of-range rows are ignored.
func (t *Tracker) MarkRow(row int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markLocked(row)
}

// MarkRows marks the given rows dirty.
func (t *Tracker) MarkRows(rows ...int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, row := range rows {
		t.markLocked(row)
	}
}

// MarkRange marks rows start..end inclusive.
func (t *Tracker) MarkRange(start, end int) {
	r := NewRange(start, end)

	t.mu.Lock()
	defer t.mu.Unlock()
	for row := r.Start; row <= r.End; row++ {
		t.markLocked(row)
	}
}

// MarkFull marks every row dirty.
func (t *Tracker) MarkFull() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fullRedraw = true
	t.marks++
}

func (t *Tracker) markLocked(row int) {
	if row < 0 || row >= len(t.rows) {
		return
	}
	t.marks++
	if t.rows[row] {
		return
	}
	t.rows[row] = true
	t.count++
}

// IsDirty reports whether anything is pending.
func (t *Tracker) IsDirty() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fullRedraw || t.count > 0
}

// IsRowDirty reports whether a row is pending.
func (t *Tracker) IsRowDirty(row int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fullRedraw {
		return row >= 0 && row < len(t.rows)
	}
	return row >= 0 && row < len(t.rows) && t.rows[row]
}

// Generation returns the number of non-empty snapshots taken so far.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Snapshot copies the pending rows, clears exactly those rows and advances
// the generation. It returns ok=false without advancing when nothing is
// pending.
func (t *Tracker) Snapshot() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.fullRedraw && t.count == 0 {
		return Snapshot{Generation: t.generation}, false
	}

	s := Snapshot{Full: t.fullRedraw}
	if t.fullRedraw {
		s.Rows = make([]int, len(t.rows))
		for i := range s.Rows {
			s.Rows[i] = i
		}
	} else {
		s.Rows = make([]int, 0, t.count)
		for i, d := range t.rows {
			if d {
				s.Rows = append(s.Rows, i)
			}
		}
	}

	for _, row := range s.Rows {
		t.rows[row] = false
	}
	t.count = 0
	t.fullRedraw = false
	t.generation++
	t.snapshots++
	s.Generation = t.generation
	return s, true
}

// Clear drops all pending rows without advancing the generation.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		t.rows[i] = false
	}
	t.count = 0
	t.fullRedraw = false
}

// Stats returns tracker statistics.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Stats{
		Height:     len(t.rows),
		Pending:    t.count,
		FullRedraw: t.fullRedraw,
		Generation: t.generation,
		Marks:      t.marks,
		Snapshots:  t.snapshots,
	}
}

// Stats contains dirty-tracking statistics.
type Stats struct {
	Height     int    `json:"height"`
	Pending    int    `json:"pending_rows"`
	FullRedraw bool   `json:"full_redraw"`
	Generation uint64 `json:"generation"`
	Marks      uint64 `json:"marks"`
	Snapshots  uint64 `json:"snapshots"`
}
