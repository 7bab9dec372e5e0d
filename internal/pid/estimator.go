package pid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var ErrInvalidRate = errors.New("pid: rate must be positive")

type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Estimator turns the current Cartesian error into a desired correction
// velocity. Gains are fixed at construction.
type Estimator struct {
	gains   Gains
	dt      float64
	history *ErrorHistory
}

func NewEstimator(g Gains, n int, rateHz float64) (*Estimator, error) {
	if rateHz <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidRate, rateHz)
	}
	h, err := NewErrorHistory(n)
	if err != nil {
		return nil, err
	}
	return &Estimator{
		gains:   g,
		dt:      1 / rateHz,
		history: h,
	}, nil
}

// Estimate pushes e into the window and returns
// kp*e + kd*derivative - ki*integral.
func (p *Estimator) Estimate(e r3.Vec) r3.Vec {
	p.history.Push(e)

	d := p.history.Derivative(p.dt)
	i := p.history.Integral(p.dt)

	v := r3.Scale(p.gains.Kp, e)
	v = r3.Add(v, r3.Scale(p.gains.Kd, d))
	return r3.Sub(v, r3.Scale(p.gains.Ki, i))
}

// Prefill seeds every slot of the window with e.
func (p *Estimator) Prefill(e r3.Vec) { p.history.Fill(e) }

// Reset clears the error window.
func (p *Estimator) Reset() { p.history.Reset() }

func (p *Estimator) Gains() Gains           { return p.gains }
func (p *Estimator) Dt() float64            { return p.dt }
func (p *Estimator) History() *ErrorHistory { return p.history }

// GetParams returns the gains keyed by name for display.
func (p *Estimator) GetParams() map[string]float64 {
	return map[string]float64{
		"Kp": p.gains.Kp,
		"Ki": p.gains.Ki,
		"Kd": p.gains.Kd,
	}
}
