package terminal

// Scrollback is a ring buffer of lines evicted from the top of the screen.
// When full, pushing a line drops the oldest one; retained lines are never
// reordered.
type Scrollback struct {
	lines []*Line
	head  int // index of the oldest line
	size  int
}

// NewScrollback creates a scrollback buffer holding up to capacity lines.
// A capacity of zero keeps no history.
func NewScrollback(capacity int) *Scrollback {
	if capacity < 0 {
		capacity = 0
	}
	return &Scrollback{lines: make([]*Line, capacity)}
}

// Cap returns the maximum number of retained lines.
func (s *Scrollback) Cap() int {
	return len(s.lines)
}

// Len returns the number of retained lines.
func (s *Scrollback) Len() int {
	return s.size
}

// Push appends a line as the newest entry. It returns true if the oldest
// line was evicted to make room.
func (s *Scrollback) Push(line *Line) bool {
	if len(s.lines) == 0 {
		return true
	}
	if s.size < len(s.lines) {
		s.lines[(s.head+s.size)%len(s.lines)] = line
		s.size++
		return false
	}
	s.lines[s.head] = line
	s.head = (s.head + 1) % len(s.lines)
	return true
}

// PopNewest removes and returns the newest line, or nil when empty.
func (s *Scrollback) PopNewest() *Line {
	if s.size == 0 {
		return nil
	}
	idx := (s.head + s.size - 1) % len(s.lines)
	line := s.lines[idx]
	s.lines[idx] = nil
	s.size--
	return line
}

// Line returns a line by age, 0 being the oldest. Returns nil out of range.
func (s *Scrollback) Line(index int) *Line {
	if index < 0 || index >= s.size {
		return nil
	}
	return s.lines[(s.head+index)%len(s.lines)]
}

// Clear drops every retained line.
func (s *Scrollback) Clear() {
	for i := range s.lines {
		s.lines[i] = nil
	}
	s.head = 0
	s.size = 0
}

// SetCap changes the capacity, keeping the newest lines. It returns the
// number of lines dropped.
func (s *Scrollback) SetCap(capacity int) int {
	if capacity < 0 {
		capacity = 0
	}
	if capacity == len(s.lines) {
		return 0
	}
	keep := s.size
	if keep > capacity {
		keep = capacity
	}
	dropped := s.size - keep
	lines := make([]*Line, capacity)
	for i := 0; i < keep; i++ {
		lines[i] = s.Line(dropped + i)
	}
	s.lines = lines
	s.head = 0
	s.size = keep
	return dropped
}
