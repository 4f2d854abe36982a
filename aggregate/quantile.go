package aggregate

import (
	"math"
	"sort"

	"github.com/climiter/climiter"
)

// Quantile aggregates samples keyed by latency; the aggregate picks the sample at index
// ceil(n*p)-1 in ascending latency order and reports that sample's in_flight verbatim
// (matched to the chosen latency, not separately aggregated — one of several plausible
// choices, preserved here as the one this design specifies). Ties on latency are kept in
// insertion order.
type Quantile struct {
	percentile float64
	outcome    climiter.Outcome
	samples    []climiter.Sample
}

// NewQuantile returns an empty Quantile aggregator for percentile p, which must be in
// (0, 1) exclusive.
func NewQuantile(p float64) *Quantile {
	if p <= 0 || p >= 1 {
		panic("aggregate: percentile must be in (0, 1)")
	}
	return &Quantile{percentile: p}
}

func (q *Quantile) Sample(sample climiter.Sample) climiter.Sample {
	q.outcome = q.outcome.OverloadedOr(sample.Outcome)
	q.samples = append(q.samples, sample)

	sorted := make([]climiter.Sample, len(q.samples))
	copy(sorted, q.samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Latency < sorted[j].Latency
	})

	chosen := sorted[q.percentileIndex()]
	return climiter.Sample{
		InFlight: chosen.InFlight,
		Latency:  chosen.Latency,
		Outcome:  q.outcome,
	}
}

func (q *Quantile) percentileIndex() int {
	n := float64(len(q.samples))
	idx := int(math.Ceil(n*q.percentile)) - 1
	if idx < 0 {
		return 0
	}
	if idx >= len(q.samples) {
		return len(q.samples) - 1
	}
	return idx
}

func (q *Quantile) SampleSize() int { return len(q.samples) }

func (q *Quantile) Reset() {
	percentile := q.percentile
	*q = Quantile{percentile: percentile}
}
