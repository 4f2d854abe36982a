package limit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/climiter/climiter"
)

func TestAIMDDecreaseOnOverload(t *testing.T) {
	a := NewAIMDBuilder(10).WithDecreaseFactor(0.5).Build()

	limit := a.Update(climiter.Sample{Latency: time.Millisecond, InFlight: 1, Outcome: climiter.Overload})

	assert.Equal(t, 5, limit)
	assert.Equal(t, 5, a.Limit())
}

func TestAIMDIncreaseAtHighUtilisation(t *testing.T) {
	a := NewAIMDBuilder(4).WithMinUtilisationThreshold(0.5).Build()

	limit := a.Update(climiter.Sample{Latency: time.Millisecond, InFlight: 3, Outcome: climiter.Success})

	assert.Equal(t, 5, limit)
}

func TestAIMDIgnoresLowUtilisationSuccess(t *testing.T) {
	a := NewAIMDBuilder(4).WithMinUtilisationThreshold(0.5).Build()

	limit := a.Update(climiter.Sample{Latency: time.Millisecond, InFlight: 1, Outcome: climiter.Success})

	assert.Equal(t, 4, limit)
}

func TestAIMDFloorsAtMinLimit(t *testing.T) {
	a := NewAIMDBuilder(1).WithDecreaseFactor(0.9).Build()

	limit := a.Update(climiter.Sample{Latency: time.Millisecond, InFlight: 1, Outcome: climiter.Overload})

	assert.Equal(t, climiter.DefaultMinLimit, limit)
}

func TestAIMDIgnoresSubFloorLatency(t *testing.T) {
	a := NewAIMDBuilder(10).Build()

	limit := a.Update(climiter.Sample{Latency: climiter.MinSampleLatency - 1, InFlight: 100, Outcome: climiter.Overload})

	assert.Equal(t, 10, limit)
}

func TestAIMDBuilderValidation(t *testing.T) {
	assert.Panics(t, func() { NewAIMDBuilder(10).WithDecreaseFactor(0.1).Build() })
	assert.Panics(t, func() { NewAIMDBuilder(10).WithIncreaseBy(0).Build() })
	assert.Panics(t, func() { NewAIMDBuilder(10).WithMinUtilisationThreshold(1).Build() })
	assert.Panics(t, func() { NewAIMDBuilder(0).WithLimitRange(1, 100).Build() })
}
