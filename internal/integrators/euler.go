package integrators

import (
	"fmt"

	"github.com/san-kum/turretctl/internal/kinematics"
)

// Euler advances joint positions by one fixed control period.
type Euler struct {
	rateHz float64
}

func NewEuler(rateHz float64) (*Euler, error) {
	if rateHz <= 0 {
		return nil, fmt.Errorf("integrators: rate must be positive, got %g", rateHz)
	}
	return &Euler{rateHz: rateHz}, nil
}

// Step returns q + dq/rate.
func (e *Euler) Step(q, dq kinematics.Joints) kinematics.Joints {
	var out kinematics.Joints
	for i := range q {
		out[i] = q[i] + dq[i]/e.rateHz
	}
	return out
}

func (e *Euler) Period() float64 { return 1 / e.rateHz }
