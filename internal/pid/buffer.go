package pid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// MinCapacity is the smallest window for which the derivative is defined.
const MinCapacity = 2

var ErrBufferTooSmall = errors.New("pid: error history needs at least 2 samples")

// ErrorHistory is a fixed-capacity window of error samples ordered oldest to
// newest. It is always full; unused slots start at zero.
type ErrorHistory struct {
	cols []r3.Vec
}

func NewErrorHistory(n int) (*ErrorHistory, error) {
	if n < MinCapacity {
		return nil, fmt.Errorf("%w: got %d", ErrBufferTooSmall, n)
	}
	return &ErrorHistory{cols: make([]r3.Vec, n)}, nil
}

func (h *ErrorHistory) Len() int { return len(h.cols) }

// At returns column i, 0 being the oldest.
func (h *ErrorHistory) At(i int) r3.Vec { return h.cols[i] }

func (h *ErrorHistory) Oldest() r3.Vec { return h.cols[0] }
func (h *ErrorHistory) Newest() r3.Vec { return h.cols[len(h.cols)-1] }

// Push evicts the oldest sample and appends v as the newest.
func (h *ErrorHistory) Push(v r3.Vec) {
	copy(h.cols, h.cols[1:])
	h.cols[len(h.cols)-1] = v
}

// Fill overwrites every column with v.
func (h *ErrorHistory) Fill(v r3.Vec) {
	for i := range h.cols {
		h.cols[i] = v
	}
}

func (h *ErrorHistory) Reset() { h.Fill(r3.Vec{}) }

// Derivative is the average rate of change across the window.
func (h *ErrorHistory) Derivative(dt float64) r3.Vec {
	span := dt * float64(len(h.cols)-1)
	d := r3.Sub(h.Newest(), h.Oldest())
	return r3.Vec{X: d.X / span, Y: d.Y / span, Z: d.Z / span}
}

// Integral is sum*dt/N, i.e. the window mean times one period. It does not
// grow with the window length.
func (h *ErrorHistory) Integral(dt float64) r3.Vec {
	var sum r3.Vec
	for _, c := range h.cols {
		sum = r3.Add(sum, c)
	}
	n := float64(len(h.cols))
	return r3.Vec{X: sum.X * dt / n, Y: sum.Y * dt / n, Z: sum.Z * dt / n}
}

// Snapshot copies the window, oldest first.
func (h *ErrorHistory) Snapshot() []r3.Vec {
	out := make([]r3.Vec, len(h.cols))
	copy(out, h.cols)
	return out
}
