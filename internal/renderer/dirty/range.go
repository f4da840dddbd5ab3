// Package dirty tracks which grid rows changed since the last rendered
// frame. A Tracker pairs a generation counter with a dirty row set; the
// renderer takes a Snapshot once per frame, which clears exactly the rows
// it captured.
package dirty

// Range is an inclusive run of rows.
type Range struct {
	// Start is the first row (inclusive).
	Start int

	// End is the last row (inclusive).
	End int
}

// NewRange creates a range covering rows start..end, swapping reversed bounds.
func NewRange(start, end int) Range {
	if end < start {
		start, end = end, start
	}
	return Range{Start: start, End: end}
}

// Len returns the number of rows covered.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

// Contains reports whether row lies within the range.
func (r Range) Contains(row int) bool {
	return row >= r.Start && row <= r.End
}

// Ranges coalesces sorted row indices into contiguous runs.
func Ranges(rows []int) []Range {
	if len(rows) == 0 {
		return nil
	}
	out := make([]Range, 0, 4)
	cur := Range{Start: rows[0], End: rows[0]}
	for _, row := range rows[1:] {
		if row == cur.End+1 {
			cur.End = row
			continue
		}
		out = append(out, cur)
		cur = Range{Start: row, End: row}
	}
	return append(out, cur)
}
