package limit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/climiter/climiter"
)

func TestVegasFirstSampleSetsBaselineOnly(t *testing.T) {
	v := NewVegasBuilder(10).Build()

	limit := v.Update(climiter.Sample{Latency: 10 * time.Millisecond, InFlight: 1, Outcome: climiter.Success})

	assert.Equal(t, 10, limit)
}

func TestVegasOverloadDecreases(t *testing.T) {
	v := NewVegasBuilder(10).Build()
	v.Update(climiter.Sample{Latency: 10 * time.Millisecond, InFlight: 1, Outcome: climiter.Success})

	limit := v.Update(climiter.Sample{Latency: 100 * time.Millisecond, InFlight: 1, Outcome: climiter.Overload})

	assert.Less(t, limit, 10)
}

func TestVegasNeverAutoResetsBaseline(t *testing.T) {
	v := NewVegasBuilder(10).Build()
	v.Update(climiter.Sample{Latency: 5 * time.Millisecond, InFlight: 1, Outcome: climiter.Success})
	assert.Equal(t, 5*time.Millisecond, v.baseLatency)

	// A much higher latency than the established baseline registers as queueing, never
	// as a new (higher) baseline: base_latency only ever decreases absent an explicit,
	// opted-in reset policy.
	v.Update(climiter.Sample{Latency: 50 * time.Millisecond, InFlight: 9, Outcome: climiter.Success})
	assert.Equal(t, 5*time.Millisecond, v.baseLatency)
}

func TestVegasBaselineResetIntervalIsOptIn(t *testing.T) {
	v := NewVegasBuilder(10).WithBaselineResetInterval(time.Nanosecond).Build()
	v.Update(climiter.Sample{Latency: 5 * time.Millisecond, InFlight: 1, Outcome: climiter.Success})
	assert.Equal(t, 5*time.Millisecond, v.baseLatency)

	time.Sleep(time.Millisecond)
	v.Update(climiter.Sample{Latency: 50 * time.Millisecond, InFlight: 1, Outcome: climiter.Success})
	// The reset fired before this update's own baseline comparison, so 50ms became the
	// new baseline instead of registering as queueing against the stale 5ms floor.
	assert.Equal(t, 50*time.Millisecond, v.baseLatency)
}

func TestVegasIgnoresSubFloorLatency(t *testing.T) {
	v := NewVegasBuilder(10).Build()

	limit := v.Update(climiter.Sample{Latency: climiter.MinSampleLatency - 1, InFlight: 9, Outcome: climiter.Overload})

	assert.Equal(t, 10, limit)
}
