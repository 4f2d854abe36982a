package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/climiter/climiter"
	"github.com/climiter/climiter/limit"
)

func TestWindowedVegasBootstrap(t *testing.T) {
	vegas := limit.NewVegasBuilder(10).Build()
	w := NewWindowedBuilder(vegas, NewMean()).WithMinSamples(2).WithWindowBounds(0, time.Second).Build()

	w.Update(climiter.Sample{Latency: 10 * time.Millisecond, InFlight: 1, Outcome: climiter.Success})
	limitAfterFirst := w.Update(climiter.Sample{Latency: 10 * time.Millisecond, InFlight: 1, Outcome: climiter.Success})
	assert.Equal(t, 10, limitAfterFirst)

	// The first roll-over set the next window's duration to ~2x the observed minimum
	// latency (10ms), i.e. ~20ms (windowed.go's elapsed-gating, required by step 3 of the
	// windowing loop). Advance real time past that before feeding the second batch, or
	// this window never rolls and Update keeps returning the unchanged inner limit.
	time.Sleep(20 * time.Millisecond)

	w.Update(climiter.Sample{Latency: 100 * time.Millisecond, InFlight: 1, Outcome: climiter.Overload})
	limitAfterSecond := w.Update(climiter.Sample{Latency: 100 * time.Millisecond, InFlight: 1, Outcome: climiter.Overload})
	assert.Less(t, limitAfterSecond, 10)
}

func TestWindowedReturnsUnderlyingLimitBelowMinSamples(t *testing.T) {
	fixed := limit.NewFixed(10)
	w := NewWindowedBuilder(fixed, NewMean()).WithMinSamples(5).Build()

	got := w.Update(climiter.Sample{Latency: time.Millisecond, InFlight: 1, Outcome: climiter.Success})

	assert.Equal(t, 10, got)
}

func TestWindowedDiscardsSubFloorLatency(t *testing.T) {
	fixed := limit.NewFixed(10)
	w := NewWindowedBuilder(fixed, NewMean()).WithMinSamples(1).Build()

	w.Update(climiter.Sample{Latency: climiter.MinSampleLatency - 1, InFlight: 999, Outcome: climiter.Overload})

	assert.Equal(t, 0, w.aggregator.SampleSize())
}

func TestWindowedBuilderValidation(t *testing.T) {
	fixed := limit.NewFixed(10)
	assert.Panics(t, func() { NewWindowedBuilder(fixed, NewMean()).WithMinSamples(0).Build() })
	assert.Panics(t, func() {
		NewWindowedBuilder(fixed, NewMean()).WithWindowBounds(time.Second, time.Millisecond).Build()
	})
}
