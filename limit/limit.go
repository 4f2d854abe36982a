// Package limit provides the family of limit controllers: state machines that map
// per-job feedback samples to a new concurrency limit. Fixed is a trivial baseline;
// AIMD, Gradient, and Vegas each retune the limit from a different signal (loss,
// smoothed delay, and a loss/delay hybrid respectively).
package limit

import "github.com/climiter/climiter"

// Controller maps feedback samples to a limit. Update may be called concurrently;
// implementations serialize their own internal state.
type Controller interface {
	// Limit returns the current integer limit.
	Limit() int
	// Update folds a sample into the controller's state and returns the new limit.
	Update(sample climiter.Sample) int
}
