package aggregate

import (
	"sync"
	"time"

	"github.com/climiter/climiter"
)

// Controller is the capability Windowed needs from whatever it wraps: read the current
// limit, and fold in a sample to get a new one. Any limit.Controller satisfies this
// without Windowed importing package limit — the wrapper depends on the capability, not
// the concrete type.
type Controller interface {
	Limit() int
	Update(sample climiter.Sample) int
}

// Windowed adapts any Controller to batch-update on a time/count window instead of on
// every raw sample. The window duration is dynamic: it tracks roughly twice the minimum
// latency observed in the previous window, giving short windows under low latency and
// longer windows under congestion.
type Windowed struct {
	inner      Controller
	aggregator Aggregator

	minSamples          int
	minWindow, maxWindow time.Duration
	minLatencyThreshold time.Duration

	mu       sync.Mutex
	start    time.Time
	duration time.Duration
	minSeen  time.Duration
}

// WindowedBuilder configures a Windowed wrapper.
type WindowedBuilder struct {
	inner               Controller
	aggregator          Aggregator
	minSamples          int
	minWindow, maxWindow time.Duration
	minLatencyThreshold time.Duration
}

// NewWindowedBuilder starts building a Windowed wrapper around inner, batching samples
// through aggregator.
func NewWindowedBuilder(inner Controller, aggregator Aggregator) *WindowedBuilder {
	return &WindowedBuilder{
		inner:               inner,
		aggregator:          aggregator,
		minSamples:          10,
		minWindow:           time.Microsecond,
		maxWindow:           time.Second,
		minLatencyThreshold: climiter.MinSampleLatency,
	}
}

// WithMinSamples sets how many samples must be aggregated before the window can roll
// over. Must be greater than zero.
func (b *WindowedBuilder) WithMinSamples(n int) *WindowedBuilder {
	b.minSamples = n
	return b
}

// WithWindowBounds sets the [min, max] a window's duration is clamped to.
func (b *WindowedBuilder) WithWindowBounds(min, max time.Duration) *WindowedBuilder {
	b.minWindow, b.maxWindow = min, max
	return b
}

// WithMinLatencyThreshold sets the latency floor below which a raw sample is discarded
// before it ever reaches the aggregator.
func (b *WindowedBuilder) WithMinLatencyThreshold(d time.Duration) *WindowedBuilder {
	b.minLatencyThreshold = d
	return b
}

// Build validates the configuration and constructs the wrapper.
func (b *WindowedBuilder) Build() *Windowed {
	if b.minSamples <= 0 {
		panic("aggregate: at least one sample required per window")
	}
	if b.minWindow > b.maxWindow {
		panic("aggregate: min window must not exceed max window")
	}

	return &Windowed{
		inner:               b.inner,
		aggregator:          b.aggregator,
		minSamples:          b.minSamples,
		minWindow:           b.minWindow,
		maxWindow:           b.maxWindow,
		minLatencyThreshold: b.minLatencyThreshold,
		start:               time.Now(),
		duration:            b.minWindow,
		minSeen:             time.Duration(1<<63 - 1),
	}
}

func (w *Windowed) Limit() int {
	return w.inner.Limit()
}

func (w *Windowed) Update(sample climiter.Sample) int {
	if sample.Latency < w.minLatencyThreshold {
		return w.inner.Limit()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if sample.Latency < w.minSeen {
		w.minSeen = sample.Latency
	}

	aggregated := w.aggregator.Sample(sample)

	if w.aggregator.SampleSize() >= w.minSamples && time.Since(w.start) >= w.duration {
		// Capture the window's observed minimum before clearing it, so the next
		// window's duration reflects what was actually seen — not a just-reset
		// sentinel.
		observedMin := w.minSeen

		w.aggregator.Reset()
		w.minSeen = time.Duration(1<<63 - 1)
		w.start = time.Now()
		w.duration = clampDuration(observedMin, w.minWindow, w.maxWindow) * 2

		return w.inner.Update(aggregated)
	}

	return w.inner.Limit()
}

func clampDuration(d, min, max time.Duration) time.Duration {
	if d < min {
		return min
	}
	if d > max {
		return max
	}
	return d
}
