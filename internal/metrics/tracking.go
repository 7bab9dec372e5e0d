package metrics

import (
	"math"

	"github.com/san-kum/turretctl/internal/sim"
)

// TrackingRMS is the root mean square of the target miss distance. Samples
// before Settle seconds are ignored so the initial transient does not
// dominate.
type TrackingRMS struct {
	name    string
	Settle  float64
	sumSq   float64
	samples int
}

func NewTrackingRMS(settle float64) *TrackingRMS {
	return &TrackingRMS{name: "tracking_rms", Settle: settle}
}

func (m *TrackingRMS) Name() string { return m.name }

func (m *TrackingRMS) Observe(s sim.Sample) {
	if s.T < m.Settle {
		return
	}
	d := s.Miss()
	m.sumSq += d * d
	m.samples++
}

func (m *TrackingRMS) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return math.Sqrt(m.sumSq / float64(m.samples))
}

func (m *TrackingRMS) Reset() {
	m.sumSq = 0
	m.samples = 0
}

type MaxMiss struct {
	name string
	max  float64
}

func NewMaxMiss() *MaxMiss { return &MaxMiss{name: "max_miss"} }

func (m *MaxMiss) Name() string { return m.name }

func (m *MaxMiss) Observe(s sim.Sample) { m.max = math.Max(m.max, s.Miss()) }

func (m *MaxMiss) Value() float64 { return m.max }

func (m *MaxMiss) Reset() { m.max = 0 }

// Standard is the metric set reported by sim runs and used to rank gains.
func Standard(settle float64) []sim.Metric {
	return []sim.Metric{
		NewTrackingRMS(settle),
		NewMaxMiss(),
		NewControlEffort(),
		NewAvailability(),
		NewFloorHits(),
	}
}
