package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Target is a trajectory for the tracked frame, in the base frame.
type Target interface {
	Position(t float64) r3.Vec
}

type Static struct {
	P r3.Vec
}

func (s Static) Position(float64) r3.Vec { return s.P }

// Circle orbits Center in the horizontal plane at Speed rad/s.
type Circle struct {
	Center r3.Vec
	Radius float64
	Speed  float64
}

func (c Circle) Position(t float64) r3.Vec {
	s, co := math.Sincos(c.Speed * t)
	return r3.Add(c.Center, r3.Vec{X: c.Radius * co, Y: c.Radius * s})
}

// Line sweeps back and forth along y through Center, Radius to each side,
// completing one sweep every 2π/Speed seconds.
type Line struct {
	Center r3.Vec
	Radius float64
	Speed  float64
}

func (l Line) Position(t float64) r3.Vec {
	// triangle wave in [-1, 1]
	phase := l.Speed * t / (2 * math.Pi)
	phase -= math.Floor(phase)
	tri := 4*math.Abs(phase-0.5) - 1
	return r3.Add(l.Center, r3.Vec{Y: l.Radius * tri})
}

func NewTarget(kind string, center r3.Vec, radius, speed float64) (Target, error) {
	switch kind {
	case "static", "":
		return Static{P: center}, nil
	case "circle":
		return Circle{Center: center, Radius: radius, Speed: speed}, nil
	case "line":
		return Line{Center: center, Radius: radius, Speed: speed}, nil
	default:
		return nil, fmt.Errorf("sim: unknown target kind %q", kind)
	}
}
