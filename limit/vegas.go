package limit

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/climiter/climiter"
)

// Vegas is a loss- and delay-based controller, inspired by TCP Vegas. It tracks the
// minimum observed latency as a baseline and estimates the number of queued jobs by
// comparing each sample's latency against that baseline.
//
// base_latency is monotonically decreasing by design; this controller never resets it
// on its own. An embedder that needs recovery from a lowered floor must opt in via
// WithBaselineResetInterval — the decision of when and how to reset is deliberately left
// to the caller rather than invented here.
type Vegas struct {
	minLimit, maxLimit int
	alpha, beta        func(limit int) float64
	resetInterval      time.Duration
	logger             *slog.Logger

	limit atomic.Int64

	mu          sync.Mutex
	baseLatency time.Duration
	lastReset   time.Time
}

// VegasBuilder configures a Vegas controller.
type VegasBuilder struct {
	initialLimit  int
	minLimit      int
	maxLimit      int
	resetInterval time.Duration
	logger        *slog.Logger
}

// NewVegasBuilder starts building a Vegas controller with the given initial limit.
func NewVegasBuilder(initialLimit int) *VegasBuilder {
	return &VegasBuilder{
		initialLimit: initialLimit,
		minLimit:     climiter.DefaultMinLimit,
		maxLimit:     climiter.DefaultMaxLimit,
	}
}

// WithLimitRange sets the [min, max] the limit is clamped to.
func (b *VegasBuilder) WithLimitRange(min, max int) *VegasBuilder {
	b.minLimit, b.maxLimit = min, max
	return b
}

// WithBaselineResetInterval opts into periodically resetting base_latency back to
// "unknown" so the baseline can recover if the true floor rises. Zero (the default)
// disables resetting — base_latency only ever decreases.
func (b *VegasBuilder) WithBaselineResetInterval(d time.Duration) *VegasBuilder {
	b.resetInterval = d
	return b
}

// WithLogger attaches a logger that records limit transitions at debug level.
func (b *VegasBuilder) WithLogger(logger *slog.Logger) *VegasBuilder {
	b.logger = logger
	return b
}

// Build validates the configuration and constructs the controller.
func (b *VegasBuilder) Build() *Vegas {
	if b.minLimit < 1 {
		panic("limit: min limit must be at least 1")
	}
	if b.initialLimit < b.minLimit || b.initialLimit > b.maxLimit {
		panic("limit: initial limit out of [min, max] range")
	}

	v := &Vegas{
		minLimit:      b.minLimit,
		maxLimit:      b.maxLimit,
		resetInterval: b.resetInterval,
		logger:        b.logger,
		alpha:         func(limit int) float64 { return 3 * queueingThreshold(limit) },
		beta:          func(limit int) float64 { return 6 * queueingThreshold(limit) },
		baseLatency:   time.Duration(math.MaxInt64),
		lastReset:     time.Time{},
	}
	v.limit.Store(int64(b.initialLimit))
	return v
}

// queueingThreshold is max(1, log10(limit)), the common shape of Vegas's alpha/beta.
func queueingThreshold(limit int) float64 {
	return math.Max(1, math.Log10(float64(limit)))
}

func (v *Vegas) Limit() int {
	return int(v.limit.Load())
}

func (v *Vegas) Update(sample climiter.Sample) int {
	if sample.Latency < climiter.MinSampleLatency {
		return v.Limit()
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.resetInterval > 0 {
		now := time.Now()
		if v.lastReset.IsZero() {
			v.lastReset = now
		} else if now.Sub(v.lastReset) >= v.resetInterval {
			v.baseLatency = time.Duration(math.MaxInt64)
			v.lastReset = now
		}
	}

	if sample.Latency < v.baseLatency {
		v.baseLatency = sample.Latency
		return v.Limit()
	}

	old := v.Limit()

	rate := float64(sample.InFlight) / sample.Latency.Seconds()
	extraLatency := (sample.Latency - v.baseLatency).Seconds()
	queued := rate * extraLatency

	utilisation := float64(sample.InFlight) / float64(old)
	step := queueingThreshold(old)

	var next int
	switch {
	case sample.Outcome == climiter.Overload:
		next = multiplicativeDecrease(old, 0.9)
	case queued > v.beta(old):
		next = old - int(step)
	case queued < v.alpha(old) && utilisation >= 0.8:
		next = old + int(step)
	default:
		next = old
	}

	next = climiter.ClampLimit(next, v.minLimit, v.maxLimit)
	v.limit.Store(int64(next))

	if v.logger != nil && v.logger.Enabled(nil, slog.LevelDebug) && next != old {
		v.logger.Debug("vegas limit updated", "old", old, "new", next, "queued", queued)
	}

	return next
}
