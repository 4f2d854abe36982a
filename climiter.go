// Package climiter provides an adaptive concurrency limiter: a permit gate whose
// capacity is continuously retuned from observed latency and failure signals, rather
// than fixed at construction.
//
// A limiter couples three pieces: a gate (package gate) that admits or rejects callers
// under a dynamic integer limit, a controller (package limit) that maps feedback samples
// to a new limit, and optionally a windowed aggregator (package aggregate) that batches
// raw samples before they reach the controller. This package holds only the data model
// shared by all three.
package climiter

import "time"

// Outcome classifies a completed job for the purposes of limit adjustment.
type Outcome int

const (
	// Success indicates the job completed, or failed for reasons unrelated to load.
	Success Outcome = iota
	// Overload indicates the job failed because the downstream signaled saturation:
	// a timeout, explicit backpressure, or resource exhaustion.
	Overload
)

func (o Outcome) String() string {
	if o == Overload {
		return "overload"
	}
	return "success"
}

// OverloadedOr merges two outcomes, propagating pessimism: if either side is Overload,
// the result is Overload.
func (o Outcome) OverloadedOr(other Outcome) Outcome {
	if other == Overload {
		return Overload
	}
	return o
}

// Sample is the unit of feedback delivered to a limit controller: the latency of one
// completed job, the in-flight count observed at release, and its outcome.
type Sample struct {
	Latency  time.Duration
	InFlight int
	Outcome  Outcome
}

// MinSampleLatency is the floor below which a sample is considered unrepresentative
// (clock-granularity noise, or a job that never really touched the downstream) and is
// discarded without affecting the limit.
const MinSampleLatency = time.Microsecond

// Default limit bounds used by every controller unless overridden by its builder.
const (
	DefaultMinLimit = 1
	DefaultMaxLimit = 1000
)

// ClampLimit constrains limit to [min, max].
func ClampLimit(limit, min, max int) int {
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}

// ClampFloat constrains v to [min, max]. Used by controllers that hold a floating-point
// limit shadow (Gradient) before it is projected to an integer.
func ClampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
