package metrics

import "github.com/san-kum/turretctl/internal/sim"

// Availability is the fraction of cycles that produced a command.
type Availability struct {
	name     string
	failures int
	samples  int
}

func NewAvailability() *Availability {
	return &Availability{
		name: "availability",
	}
}

func (a *Availability) Name() string {
	return a.name
}

func (a *Availability) Observe(s sim.Sample) {
	a.samples++
	if !s.Solved {
		a.failures++
	}
}

func (a *Availability) Value() float64 {
	if a.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(a.failures)/float64(a.samples)
}

func (a *Availability) Reset() {
	a.failures = 0
	a.samples = 0
}

// FloorHits counts cycles where the aim joint was held at its floor.
type FloorHits struct {
	name string
	hits int
}

func NewFloorHits() *FloorHits { return &FloorHits{name: "floor_hits"} }

func (f *FloorHits) Name() string { return f.name }

func (f *FloorHits) Observe(s sim.Sample) {
	if s.Clamped {
		f.hits++
	}
}

func (f *FloorHits) Value() float64 { return float64(f.hits) }

func (f *FloorHits) Reset() { f.hits = 0 }
