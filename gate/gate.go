// Package gate implements the permit gate: dynamic-capacity admission, token lifecycle,
// and reconciliation of the live permit count with a limit controller's output.
package gate

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/climiter/climiter"
	"github.com/climiter/climiter/internal/util"
)

// Controller is the capability a Gate needs from a limit controller: read the current
// limit, and fold in a sample to get a new one. Any limit.Controller or
// aggregate.Windowed satisfies this without the gate package importing either.
type Controller interface {
	Limit() int
	Update(sample climiter.Sample) int
}

// Token represents one in-flight slot. Created by a successful acquire; must be released
// exactly once. Go has no equivalent of a destructor run on drop, so — unlike the
// reference design this follows — a Token here must be released explicitly; there is no
// implicit release if one is discarded. Callers that abandon a Token leak its permit,
// the same contract the teacher's own Permit.Record/Permit.Drop pattern assumes.
type Token struct {
	issuedAt        time.Time
	latencyOverride time.Duration
}

// SetLatency overrides the latency this token will report on release, for deterministic
// tests. Production callers never need this.
func (t *Token) SetLatency(d time.Duration) {
	t.latencyOverride = d
}

func (t *Token) latency(now time.Time) time.Duration {
	if t.latencyOverride > 0 {
		return t.latencyOverride
	}
	return now.Sub(t.issuedAt)
}

// State is a best-effort, not-necessarily-consistent snapshot of a Gate.
type State struct {
	Limit     int
	Available int
	InFlight  int
}

// Gate is a dynamic-capacity admission gate. Acquiring returns a Token representing one
// in-flight slot; releasing it delivers a sample to the controller and reconciles the
// live permit count with whatever new limit the controller returns.
type Gate struct {
	controller Controller
	sem        *util.DynamicSemaphore
	inFlight   atomic.Int64
	limit      atomic.Int64
	logger     *slog.Logger
}

// Option configures a Gate at construction.
type Option func(*Gate)

// WithLogger attaches a logger that records reconciliation events at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// New constructs a Gate reading its initial limit from controller.
func New(controller Controller, opts ...Option) *Gate {
	initial := controller.Limit()
	if initial < 1 {
		panic("gate: controller's initial limit must be at least 1")
	}

	g := &Gate{
		controller: controller,
		sem:        util.NewDynamicSemaphore(initial),
	}
	g.limit.Store(int64(initial))
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TryAcquire attempts to acquire a token without blocking.
func (g *Gate) TryAcquire() (*Token, bool) {
	if !g.sem.TryAcquire() {
		return nil, false
	}
	g.inFlight.Add(1)
	return &Token{issuedAt: time.Now()}, true
}

// CanAcquire is a best-effort, racy hint that TryAcquire is likely to succeed right now.
// It never blocks and never consumes a permit.
func (g *Gate) CanAcquire() bool {
	return !g.sem.IsFull()
}

// AcquireTimeout blocks until a token is available, ctx is done, or maxWait elapses,
// whichever comes first. Cancellation-safe: if ctx is done or the wait times out, no
// permit is consumed.
func (g *Gate) AcquireTimeout(ctx context.Context, maxWait time.Duration) (*Token, bool) {
	if ctx == nil {
		ctx = context.Background()
	}

	cctx, cancel := context.WithTimeout(ctx, maxWait)
	defer cancel()

	if err := g.sem.Acquire(cctx); err != nil {
		return nil, false
	}
	g.inFlight.Add(1)
	return &Token{issuedAt: time.Now()}, true
}

// Release consumes token. If outcome is non-nil, a sample is built from the token's
// latency, the current in-flight count, and *outcome, delivered to the controller, and
// the permit pool is reconciled with whatever new limit comes back. If outcome is nil,
// no sample is produced and the limit is left unchanged. Returns the current limit.
//
// Reconciliation: growing credits permits immediately. Shrinking lowers the semaphore's
// capacity immediately too, but — because DynamicSemaphore tracks an explicit capacity
// rather than a bare count of outstanding permits (see internal/util.DynamicSemaphore) —
// that alone is enough to stop admitting above the new limit; there is nothing further
// to drain or forget. Live tokens already in flight simply return their permits as
// usual, and usage converges to the new, lower capacity as they do. This reaches the
// same externally-observable contract the reference design's explicit background-drain
// task provides (release never blocks on the shrink, no permit is lost or double
// counted) without needing a goroutine of its own.
func (g *Gate) Release(token *Token, outcome *climiter.Outcome) int {
	now := time.Now()
	inFlight := int(g.inFlight.Load())
	g.inFlight.Add(-1)

	if outcome == nil {
		g.sem.Release()
		return int(g.limit.Load())
	}

	sample := climiter.Sample{
		Latency:  token.latency(now),
		InFlight: inFlight,
		Outcome:  *outcome,
	}

	newLimit := g.controller.Update(sample)
	oldLimit := g.limit.Swap(int64(newLimit))

	// Reconcile the semaphore's size before releasing this token's permit. Otherwise, on a
	// shrink, Release would hand the permit straight to a queued waiter while the semaphore
	// still reports the old, larger size, and the reconciliation below would never actually
	// bring usage down. Resizing first means Release's own used-vs-size check sees the new
	// size and keeps the permit instead of forwarding it.
	if int64(newLimit) != oldLimit {
		g.sem.SetSize(int64(newLimit))
	}
	g.sem.Release()

	if g.logger != nil && g.logger.Enabled(nil, slog.LevelDebug) && int64(newLimit) != oldLimit {
		g.logger.Debug("gate limit reconciled", "old", oldLimit, "new", newLimit)
	}

	return newLimit
}

// State returns a best-effort snapshot of the gate.
func (g *Gate) State() State {
	limit := int(g.limit.Load())
	return State{
		Limit:     limit,
		Available: limit - g.sem.Used(),
		InFlight:  int(g.inFlight.Load()),
	}
}
