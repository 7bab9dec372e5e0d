package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Pose is a rigid transform: the position and orientation of a child frame
// expressed in its parent frame.
type Pose struct {
	Position    r3.Vec
	Orientation quat.Number
}

var (
	UnitX = r3.Vec{X: 1}
	UnitY = r3.Vec{Y: 1}
	UnitZ = r3.Vec{Z: 1}
)

func Identity() Pose {
	return Pose{Orientation: quat.Number{Real: 1}}
}

func NewPose(position r3.Vec, orientation quat.Number) Pose {
	return Pose{Position: position, Orientation: orientation}
}

// AxisAngle returns the unit quaternion rotating by angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	return quat.Number(r3.NewRotation(angle, axis))
}

// Normalize scales q to unit length. A zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n == 0 || math.IsNaN(n) {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the orientation of p to v.
func (p Pose) Rotate(v r3.Vec) r3.Vec {
	return r3.Rotation(p.Orientation).Rotate(v)
}

// Apply maps a point from the child frame into the parent frame.
func (p Pose) Apply(v r3.Vec) r3.Vec {
	return r3.Add(p.Rotate(v), p.Position)
}

// Compose returns p∘q: the pose of q's child expressed in p's parent.
func (p Pose) Compose(q Pose) Pose {
	return Pose{
		Position:    p.Apply(q.Position),
		Orientation: quat.Mul(p.Orientation, q.Orientation),
	}
}

func (p Pose) Inverse() Pose {
	inv := quat.Conj(p.Orientation)
	return Pose{
		Position:    r3.Scale(-1, r3.Rotation(inv).Rotate(p.Position)),
		Orientation: inv,
	}
}

// XAxis, YAxis and ZAxis are the columns of the rotation matrix of p.
func (p Pose) XAxis() r3.Vec { return p.Rotate(UnitX) }
func (p Pose) YAxis() r3.Vec { return p.Rotate(UnitY) }
func (p Pose) ZAxis() r3.Vec { return p.Rotate(UnitZ) }

// IsFinite reports whether every component of v is finite.
func IsFinite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// IsFinite reports whether position and orientation are free of NaN and Inf.
func (p Pose) IsFinite() bool {
	q := p.Orientation
	return IsFinite(p.Position) && IsFinite(r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}) &&
		!math.IsNaN(q.Real) && !math.IsInf(q.Real, 0)
}
