package util

// EWMA is an exponentially weighted moving average over latency-sample values, used by
// the Gradient controller's long window and available to any other controller needing
// the same shape of smoothing.
//
// Not concurrency safe; callers serialize access externally (the Gradient controller
// holds it behind a mutex).
type EWMA struct {
	warmupSamples   uint8
	smoothingFactor float64

	count uint8
	value float64
	sum   float64
}

// NewEWMA creates an EWMA. windowSize controls how many samples are effectively
// represented before decaying out; warmupSamples is the number of initial samples
// averaged plainly before exponential smoothing begins.
func NewEWMA(windowSize uint, warmupSamples uint8) *EWMA {
	return &EWMA{
		warmupSamples:   warmupSamples,
		smoothingFactor: 2 / (float64(windowSize) + 1),
	}
}

// Add folds newValue into the average and returns the updated value.
func (e *EWMA) Add(newValue float64) float64 {
	switch {
	case e.count < e.warmupSamples:
		e.count++
		e.sum += newValue
		e.value = e.sum / float64(e.count)
	default:
		e.value = Smooth(e.value, newValue, e.smoothingFactor)
	}
	return e.value
}

// Set overwrites the current value directly, bypassing smoothing. Used by the Gradient
// controller to decay the long-window baseline back toward the observed latency after a
// sustained spike.
func (e *EWMA) Set(value float64) {
	e.value = value
}

// Value returns the current average.
func (e *EWMA) Value() float64 {
	return e.value
}

// Reset clears the average and requires a new warmup.
func (e *EWMA) Reset() {
	e.count = 0
	e.value = 0
	e.sum = 0
}
