package limit

import (
	"log/slog"
	"math"
	"sync/atomic"

	"github.com/climiter/climiter"
)

// AIMD is a loss-based controller: additive increase, multiplicative decrease.
//
// On a Success sample, the limit grows by a fixed increment once utilisation is high
// enough to justify it. On an Overload sample, the limit shrinks by a multiplicative
// factor, floored rather than rounded so it keeps making progress even at small limits.
type AIMD struct {
	minLimit, maxLimit  int
	decreaseFactor      float64
	increaseBy          int
	minUtilisationThresh float64
	logger              *slog.Logger

	limit atomic.Int64
}

// AIMDBuilder configures an AIMD controller.
type AIMDBuilder struct {
	initialLimit         int
	minLimit             int
	maxLimit             int
	decreaseFactor       float64
	increaseBy           int
	minUtilisationThresh float64
	logger               *slog.Logger
}

// NewAIMDBuilder starts building an AIMD controller with the given initial limit and
// the library's default bounds.
func NewAIMDBuilder(initialLimit int) *AIMDBuilder {
	return &AIMDBuilder{
		initialLimit:         initialLimit,
		minLimit:             climiter.DefaultMinLimit,
		maxLimit:             climiter.DefaultMaxLimit,
		decreaseFactor:       0.9,
		increaseBy:           1,
		minUtilisationThresh: 0.8,
	}
}

// WithLimitRange sets the [min, max] the limit is clamped to.
func (b *AIMDBuilder) WithLimitRange(min, max int) *AIMDBuilder {
	b.minLimit, b.maxLimit = min, max
	return b
}

// WithDecreaseFactor sets the multiplier applied on Overload. Must be in [0.5, 1.0).
func (b *AIMDBuilder) WithDecreaseFactor(factor float64) *AIMDBuilder {
	b.decreaseFactor = factor
	return b
}

// WithIncreaseBy sets the additive increment applied on Success at high utilisation.
// Must be greater than zero.
func (b *AIMDBuilder) WithIncreaseBy(n int) *AIMDBuilder {
	b.increaseBy = n
	return b
}

// WithMinUtilisationThreshold sets the utilisation above which a Success sample grows
// the limit. Must be in (0, 1).
func (b *AIMDBuilder) WithMinUtilisationThreshold(threshold float64) *AIMDBuilder {
	b.minUtilisationThresh = threshold
	return b
}

// WithLogger attaches a logger that records limit transitions at debug level. A nil
// logger (the default) disables logging entirely.
func (b *AIMDBuilder) WithLogger(logger *slog.Logger) *AIMDBuilder {
	b.logger = logger
	return b
}

// Build validates the configuration and constructs the controller, panicking on any
// invalid parameter per this library's fail-loudly-at-construction contract.
func (b *AIMDBuilder) Build() *AIMD {
	if b.minLimit < 1 {
		panic("limit: min limit must be at least 1")
	}
	if b.initialLimit < b.minLimit || b.initialLimit > b.maxLimit {
		panic("limit: initial limit out of [min, max] range")
	}
	if b.decreaseFactor < 0.5 || b.decreaseFactor >= 1.0 {
		panic("limit: decrease factor must be in [0.5, 1.0)")
	}
	if b.increaseBy <= 0 {
		panic("limit: increase-by must be greater than zero")
	}
	if b.minUtilisationThresh <= 0 || b.minUtilisationThresh >= 1 {
		panic("limit: min utilisation threshold must be in (0, 1)")
	}

	a := &AIMD{
		minLimit:             b.minLimit,
		maxLimit:             b.maxLimit,
		decreaseFactor:       b.decreaseFactor,
		increaseBy:           b.increaseBy,
		minUtilisationThresh: b.minUtilisationThresh,
		logger:               b.logger,
	}
	a.limit.Store(int64(b.initialLimit))
	return a
}

func (a *AIMD) Limit() int {
	return int(a.limit.Load())
}

func (a *AIMD) Update(sample climiter.Sample) int {
	if sample.Latency < climiter.MinSampleLatency {
		return a.Limit()
	}

	for {
		old := a.limit.Load()
		var next int64

		switch sample.Outcome {
		case climiter.Success:
			utilisation := float64(sample.InFlight) / float64(old)
			if utilisation > a.minUtilisationThresh {
				next = old + int64(a.increaseBy)
			} else {
				next = old
			}
		default: // Overload
			next = int64(multiplicativeDecrease(int(old), a.decreaseFactor))
		}

		next = int64(climiter.ClampLimit(int(next), a.minLimit, a.maxLimit))
		if a.limit.CompareAndSwap(old, next) {
			if a.logger != nil && a.logger.Enabled(nil, slog.LevelDebug) && next != old {
				a.logger.Debug("aimd limit updated", "old", old, "new", next, "outcome", sample.Outcome)
			}
			return int(next)
		}
	}
}

// multiplicativeDecrease floors rather than rounds the scaled limit, so decay makes
// progress even at small limits: floor(2*0.9) = 1, but round(2*0.9) = 2.
func multiplicativeDecrease(limit int, decreaseFactor float64) int {
	return int(math.Floor(float64(limit) * decreaseFactor))
}
