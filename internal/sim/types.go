package sim

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/kinematics"
)

// Sample is one recorded control cycle.
type Sample struct {
	T       float64
	Q       kinematics.Joints
	DQ      kinematics.Joints
	Target  r3.Vec
	Aim     r3.Vec
	Error   r3.Vec
	Solved  bool
	Clamped bool
}

// Miss is the distance between target and aim after the cycle.
func (s Sample) Miss() float64 {
	return r3.Norm(r3.Sub(s.Target, s.Aim))
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

type Config struct {
	Duration float64
	// Realtime paces steps at the control period instead of running as fast
	// as possible.
	Realtime bool
}

type Result struct {
	Samples  []Sample
	Metrics  map[string]float64
	Failures int
}
