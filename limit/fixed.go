package limit

import "github.com/climiter/climiter"

// Fixed never changes its limit. Exists as a baseline and as a test double for
// components that sit above a controller, such as the windowed aggregator and the
// partitioning layer.
type Fixed struct {
	limit int
}

// NewFixed returns a Fixed controller holding the given constant limit.
func NewFixed(limit int) *Fixed {
	if limit < 1 {
		panic("limit: initial limit must be at least 1")
	}
	return &Fixed{limit: limit}
}

func (f *Fixed) Limit() int { return f.limit }

func (f *Fixed) Update(climiter.Sample) int { return f.limit }
