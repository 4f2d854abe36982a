package limit

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/climiter/climiter"
	"github.com/climiter/climiter/internal/util"
)

// Gradient is a delay-based controller: additive increase, multiplicative decrease
// driven by the change in average latency. It compares a long-window exponentially
// smoothed latency against each incoming sample's latency to detect queue build-up,
// rather than relying on explicit Overload signals alone.
//
// Wrap with aggregate.Windowed to control the short-window signal (each raw sample is
// otherwise treated as the short window of one).
type Gradient struct {
	minLimit, maxLimit int
	tolerance          float64
	smoothing          float64
	minGradient        float64
	minUtilisation     float64
	increase           float64
	logger             *slog.Logger

	limit atomic.Int64 // published integer projection

	mu        sync.Mutex
	longWindow *util.EWMA
	limitF     float64 // float shadow; never derived from the integer projection
}

// GradientBuilder configures a Gradient controller.
type GradientBuilder struct {
	initialLimit     int
	minLimit         int
	maxLimit         int
	longWindowSize   uint
	tolerance        float64
	smoothing        float64
	minGradient      float64
	minUtilisation   float64
	increase         float64
	logger           *slog.Logger
}

// NewGradientBuilder starts building a Gradient controller with the given initial limit.
func NewGradientBuilder(initialLimit int) *GradientBuilder {
	return &GradientBuilder{
		initialLimit:   initialLimit,
		minLimit:       climiter.DefaultMinLimit,
		maxLimit:       climiter.DefaultMaxLimit,
		longWindowSize: 500,
		tolerance:      2.0,
		smoothing:      0.2,
		minGradient:    0.9,
		minUtilisation: 0.8,
		increase:       4.0,
	}
}

// WithLimitRange sets the [min, max] the limit is clamped to.
func (b *GradientBuilder) WithLimitRange(min, max int) *GradientBuilder {
	b.minLimit, b.maxLimit = min, max
	return b
}

// WithLongWindowSamples sets how many samples the long-window baseline smooths over.
func (b *GradientBuilder) WithLongWindowSamples(n uint) *GradientBuilder {
	b.longWindowSize = n
	return b
}

// WithTolerance sets how much latency increase is tolerated before the gradient drops
// below 1.0.
func (b *GradientBuilder) WithTolerance(tolerance float64) *GradientBuilder {
	b.tolerance = tolerance
	return b
}

// WithLogger attaches a logger that records limit transitions at debug level.
func (b *GradientBuilder) WithLogger(logger *slog.Logger) *GradientBuilder {
	b.logger = logger
	return b
}

// Build validates the configuration and constructs the controller.
func (b *GradientBuilder) Build() *Gradient {
	if b.minLimit < 1 {
		panic("limit: min limit must be at least 1")
	}
	if b.initialLimit < b.minLimit || b.initialLimit > b.maxLimit {
		panic("limit: initial limit out of [min, max] range")
	}
	if b.tolerance <= 0 {
		panic("limit: tolerance must be greater than zero")
	}

	g := &Gradient{
		minLimit:       b.minLimit,
		maxLimit:       b.maxLimit,
		tolerance:      b.tolerance,
		smoothing:      b.smoothing,
		minGradient:    b.minGradient,
		minUtilisation: b.minUtilisation,
		increase:       b.increase,
		logger:         b.logger,
		longWindow:     util.NewEWMA(b.longWindowSize, 10),
		limitF:         float64(b.initialLimit),
	}
	g.limit.Store(int64(b.initialLimit))
	return g
}

func (g *Gradient) Limit() int {
	return int(g.limit.Load())
}

func (g *Gradient) Update(sample climiter.Sample) int {
	if sample.Latency < climiter.MinSampleLatency {
		return g.Limit()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	long := g.longWindow.Add(float64(sample.Latency))
	ratio := long / float64(sample.Latency)

	// Speed up return to baseline after a sustained spike decays away.
	if ratio > 2.0 {
		long *= 0.95
		g.longWindow.Set(long)
	}

	oldLimit := g.limitF

	// Only a downward gradient applies; capped below to avoid aggressive shedding.
	gradient := climiter.ClampFloat(g.tolerance*ratio, 0.5, 1.0)

	utilisation := float64(sample.InFlight) / oldLimit

	increase := 0.0
	if utilisation > g.minUtilisation && gradient > g.minGradient {
		increase = g.increase
	}

	newLimit := oldLimit*gradient + increase
	newLimit = util.Smooth(oldLimit, newLimit, g.smoothing)
	newLimit = climiter.ClampFloat(newLimit, float64(g.minLimit), float64(g.maxLimit))

	g.limitF = newLimit
	rounded := int(math.Floor(newLimit))
	g.limit.Store(int64(rounded))

	if g.logger != nil && g.logger.Enabled(nil, slog.LevelDebug) {
		g.logger.Debug("gradient limit updated",
			"old", oldLimit, "new", newLimit, "gradient", gradient, "ratio", ratio)
	}

	return rounded
}
