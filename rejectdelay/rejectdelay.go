// Package rejectdelay decorates a permit gate (or partition) with a fixed delay applied
// whenever an acquire attempt is rejected, to damp eager retry loops that lack their own
// backoff.
package rejectdelay

import (
	"context"
	"time"

	"github.com/climiter/climiter"
	"github.com/climiter/climiter/gate"
)

// Limiter is the capability Wrap needs from whatever it decorates. Both *gate.Gate and
// *partition.Partition satisfy it without either package importing this one.
type Limiter interface {
	TryAcquire() (*gate.Token, bool)
	AcquireTimeout(ctx context.Context, maxWait time.Duration) (*gate.Token, bool)
	Release(token *gate.Token, outcome *climiter.Outcome) int
}

// Delayed adds delay to any rejected acquire attempt from the wrapped Limiter.
//
// The delay is applied unconditionally whenever the inner call returns no token,
// including when the inner rejection already came from a timed-out AcquireTimeout. A
// caller who calls AcquireTimeout(ctx, d) and is rejected waits roughly d + delay in
// total (2*d when delay equals d): once for the inner timeout, once for the rejection
// delay. This is not a bug; it is the
// documented cost of layering a flat rejection delay over a call that can itself block.
type Delayed struct {
	delay time.Duration
	inner Limiter
	sleep func(time.Duration)
}

// Wrap returns inner decorated with delay applied to every rejection.
func Wrap(delay time.Duration, inner Limiter) *Delayed {
	return &Delayed{delay: delay, inner: inner, sleep: time.Sleep}
}

// TryAcquire attempts the wrapped acquire; on rejection, sleeps for delay before
// returning.
func (d *Delayed) TryAcquire() (*gate.Token, bool) {
	token, ok := d.inner.TryAcquire()
	if !ok {
		d.sleep(d.delay)
	}
	return token, ok
}

// AcquireTimeout attempts the wrapped acquire with the given timeout; on rejection,
// sleeps for delay before returning, on top of whatever time the inner call already
// spent waiting.
func (d *Delayed) AcquireTimeout(ctx context.Context, maxWait time.Duration) (*gate.Token, bool) {
	token, ok := d.inner.AcquireTimeout(ctx, maxWait)
	if !ok {
		d.sleep(d.delay)
	}
	return token, ok
}

// Release passes straight through to the wrapped Limiter.
func (d *Delayed) Release(token *gate.Token, outcome *climiter.Outcome) int {
	return d.inner.Release(token, outcome)
}
