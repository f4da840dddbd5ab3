package renderer

import (
	"sync"
	"time"
)

// DefaultFrameBudget bounds the interval between frame submissions.
const DefaultFrameBudget = 8 * time.Millisecond

// Pacer spaces frames by a fixed budget. A frame that takes longer than
// the budget is not shortened; the next frame starts immediately instead.
type Pacer struct {
	mu        sync.Mutex
	budget    time.Duration
	frames    uint64
	overruns  uint64
	last      time.Duration
	worst     time.Duration
	totalWork time.Duration
}

// NewPacer creates a pacer with the given budget.
func NewPacer(budget time.Duration) *Pacer {
	if budget <= 0 {
		budget = DefaultFrameBudget
	}
	return &Pacer{budget: budget}
}

// Next records how long the last frame took and returns how long to idle
// before starting the next one.
func (p *Pacer) Next(elapsed time.Duration) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	p.last = elapsed
	p.totalWork += elapsed
	if elapsed > p.worst {
		p.worst = elapsed
	}
	if elapsed >= p.budget {
		p.overruns++
		return 0
	}
	return p.budget - elapsed
}

// SetBudget changes the budget.
func (p *Pacer) SetBudget(budget time.Duration) {
	if budget <= 0 {
		return
	}
	p.mu.Lock()
	p.budget = budget
	p.mu.Unlock()
}

// Budget returns the current budget.
func (p *Pacer) Budget() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.budget
}

// PacerStats summarizes frame timing.
type PacerStats struct {
	Frames     uint64        `json:"count"`
	OverBudget uint64        `json:"over_budget"`
	Budget     time.Duration `json:"budget_ns"`
	Last       time.Duration `json:"last_ns"`
	Worst      time.Duration `json:"worst_ns"`
	Average    time.Duration `json:"average_ns"`
}

// Stats returns timing statistics.
func (p *Pacer) Stats() PacerStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := PacerStats{
		Frames:     p.frames,
		OverBudget: p.overruns,
		Budget:     p.budget,
		Last:       p.last,
		Worst:      p.worst,
	}
	if p.frames > 0 {
		s.Average = p.totalWork / time.Duration(p.frames)
	}
	return s
}
