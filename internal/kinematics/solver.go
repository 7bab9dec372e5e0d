package kinematics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultRcond is the relative cutoff below which singular values are
// treated as zero.
const DefaultRcond = 1e-9

var (
	ErrFactorization = errors.New("kinematics: SVD did not converge")
	ErrNonFinite     = errors.New("kinematics: joint velocity is not finite")
)

// Solver computes least-squares joint velocities through the SVD of the
// Jacobian. With Damping > 0 it uses damped least squares
// (σ/(σ²+λ²)); otherwise singular values under Rcond·σmax are dropped.
//
// A Solver keeps its factorisation storage between calls and must not be
// shared between goroutines.
type Solver struct {
	Rcond   float64
	Damping float64

	a   *mat.Dense
	u   *mat.Dense
	v   *mat.Dense
	s   []float64
	svd mat.SVD
}

func NewSolver(damping float64) *Solver {
	return &Solver{
		Rcond:   DefaultRcond,
		Damping: damping,
		a:       mat.NewDense(6, 3, nil),
		u:       mat.NewDense(6, 3, nil),
		v:       mat.NewDense(3, 3, nil),
		s:       make([]float64, 3),
	}
}

func (s *Solver) factorize(j *Jacobian) error {
	for r := 0; r < 6; r++ {
		for c := 0; c < 3; c++ {
			s.a.Set(r, c, j[r][c])
		}
	}
	if ok := s.svd.Factorize(s.a, mat.SVDThin); !ok {
		return ErrFactorization
	}
	s.svd.Values(s.s)
	s.svd.UTo(s.u)
	s.svd.VTo(s.v)
	return nil
}

func (s *Solver) inverted(k int) float64 {
	sigma := s.s[k]
	if s.Damping > 0 {
		return sigma / (sigma*sigma + s.Damping*s.Damping)
	}
	if sigma <= s.Rcond*s.s[0] || sigma == 0 {
		return 0
	}
	return 1 / sigma
}

// Pinv returns the 3×6 pseudoinverse of j.
func (s *Solver) Pinv(j Jacobian) ([3][6]float64, error) {
	var out [3][6]float64
	if err := s.factorize(&j); err != nil {
		return out, err
	}
	for k := 0; k < 3; k++ {
		inv := s.inverted(k)
		if inv == 0 {
			continue
		}
		for i := 0; i < 3; i++ {
			vik := s.v.At(i, k) * inv
			for r := 0; r < 6; r++ {
				out[i][r] += vik * s.u.At(r, k)
			}
		}
	}
	return out, nil
}

// Solve returns dq = pinv(j)·dx.
func (s *Solver) Solve(j Jacobian, dx [6]float64) (Joints, error) {
	var dq Joints
	if err := s.factorize(&j); err != nil {
		return dq, err
	}
	for k := 0; k < 3; k++ {
		inv := s.inverted(k)
		if inv == 0 {
			continue
		}
		proj := 0.0
		for r := 0; r < 6; r++ {
			proj += s.u.At(r, k) * dx[r]
		}
		proj *= inv
		for i := 0; i < 3; i++ {
			dq[i] += s.v.At(i, k) * proj
		}
	}
	for _, d := range dq {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return Joints{}, ErrNonFinite
		}
	}
	return dq, nil
}

// Condition is σmax/σmin of the last factorised Jacobian.
func (s *Solver) Condition() float64 {
	if s.s[2] == 0 {
		return math.Inf(1)
	}
	return s.s[0] / s.s[2]
}
