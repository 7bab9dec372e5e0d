package kinematics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/geom"
)

const (
	Pan = iota
	Tilt
	Aim
)

// Joints holds one value per joint: pan angle, tilt angle, aim extension.
type Joints [3]float64

func (j Joints) Add(other Joints) Joints {
	return Joints{j[0] + other[0], j[1] + other[1], j[2] + other[2]}
}

// Jacobian maps joint velocities to end-effector twist. Rows 0-2 are the
// angular part, rows 3-5 the linear part; columns are pan, tilt, aim.
type Jacobian [6][3]float64

// Column returns the angular and linear contributions of joint j.
func (m *Jacobian) Column(j int) (angular, linear r3.Vec) {
	angular = r3.Vec{X: m[0][j], Y: m[1][j], Z: m[2][j]}
	linear = r3.Vec{X: m[3][j], Y: m[4][j], Z: m[5][j]}
	return angular, linear
}

func (m *Jacobian) setColumn(j int, angular, linear r3.Vec) {
	m[0][j], m[1][j], m[2][j] = angular.X, angular.Y, angular.Z
	m[3][j], m[4][j], m[5][j] = linear.X, linear.Y, linear.Z
}

// JointAxes are the joint axes and origins of the turret, all in the base
// frame.
type JointAxes struct {
	PanAxis    r3.Vec // revolute, z of the pan frame
	TiltAxis   r3.Vec // revolute, y of the tilt frame
	AimAxis    r3.Vec // prismatic, x of the aim frame
	PanOrigin  r3.Vec
	TiltOrigin r3.Vec
	AimPoint   r3.Vec
}

// AxesFromPoses extracts joint axes from the measured pan, tilt and aim
// frames.
func AxesFromPoses(pan, tilt, aim geom.Pose) JointAxes {
	return JointAxes{
		PanAxis:    pan.ZAxis(),
		TiltAxis:   tilt.YAxis(),
		AimAxis:    aim.XAxis(),
		PanOrigin:  pan.Position,
		TiltOrigin: tilt.Position,
		AimPoint:   aim.Position,
	}
}

// Build assembles the Jacobian. Revolute joints contribute axis to the
// angular rows and axis×(point-origin) to the linear rows; the prismatic
// joint contributes its axis to the linear rows only.
func Build(a JointAxes) Jacobian {
	var m Jacobian
	m.setColumn(Pan, a.PanAxis, r3.Cross(a.PanAxis, r3.Sub(a.AimPoint, a.PanOrigin)))
	m.setColumn(Tilt, a.TiltAxis, r3.Cross(a.TiltAxis, r3.Sub(a.AimPoint, a.TiltOrigin)))
	m.setColumn(Aim, r3.Vec{}, a.AimAxis)
	return m
}

// TwistFromLinear is the desired 6-vector with no angular demand.
func TwistFromLinear(v r3.Vec) [6]float64 {
	return [6]float64{0, 0, 0, v.X, v.Y, v.Z}
}
