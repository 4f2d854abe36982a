// Package aggregate batches raw samples into a single representative sample before they
// reach a limit controller, and adapts any controller to consume aggregated samples on
// an adaptive time window.
package aggregate

import "github.com/climiter/climiter"

// Aggregator reduces many samples to one. Additional samples expand the current
// aggregate; only Reset contracts it back to empty.
type Aggregator interface {
	// Sample folds one raw sample in and returns the current aggregate.
	Sample(sample climiter.Sample) climiter.Sample
	// SampleSize returns how many raw samples have been folded in since the last Reset.
	SampleSize() int
	// Reset clears accumulated samples, preserving configuration (e.g. the configured
	// percentile of a Quantile aggregator).
	Reset()
}
