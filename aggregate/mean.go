package aggregate

import (
	"time"

	"github.com/climiter/climiter"
)

// Mean is the running arithmetic mean of latency and in-flight across every sample
// folded in since the last Reset. Outcome is merged pessimistically.
type Mean struct {
	latencySum  time.Duration
	inFlightSum int
	outcome     climiter.Outcome
	samples     int
}

// NewMean returns an empty Mean aggregator.
func NewMean() *Mean {
	return &Mean{}
}

func (m *Mean) Sample(sample climiter.Sample) climiter.Sample {
	m.latencySum += sample.Latency
	m.inFlightSum += sample.InFlight
	m.outcome = m.outcome.OverloadedOr(sample.Outcome)
	m.samples++

	return climiter.Sample{
		Latency:  m.latencySum / time.Duration(m.samples),
		InFlight: m.inFlightSum / m.samples,
		Outcome:  m.outcome,
	}
}

func (m *Mean) SampleSize() int { return m.samples }

func (m *Mean) Reset() {
	*m = Mean{}
}
