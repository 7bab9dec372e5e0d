package kinematics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/geom"
)

func assertVec(t *testing.T, want, got r3.Vec, msg string) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-12, msg+" x")
	assert.InDelta(t, want.Y, got.Y, 1e-12, msg+" y")
	assert.InDelta(t, want.Z, got.Z, 1e-12, msg+" z")
}

func TestBuild_HandComputedColumns(t *testing.T) {
	axes := JointAxes{
		PanAxis:    r3.Vec{Z: 1},
		TiltAxis:   r3.Vec{Y: 1},
		AimAxis:    r3.Vec{X: 1},
		PanOrigin:  r3.Vec{},
		TiltOrigin: r3.Vec{Z: 0.2},
		AimPoint:   r3.Vec{X: 0.3, Z: 0.5},
	}

	j := Build(axes)

	// Z1 x (t3 - t1) = (0,0,1) x (0.3,0,0.5)
	// Y2 x (t3 - t2) = (0,1,0) x (0.3,0,0.3)
	wantAngular := []r3.Vec{{Z: 1}, {Y: 1}, {}}
	wantLinear := []r3.Vec{{Y: 0.3}, {X: 0.3, Z: -0.3}, {X: 1}}

	for c, name := range []string{"pan", "tilt", "aim"} {
		ang, lin := j.Column(c)
		assertVec(t, wantAngular[c], ang, name+" angular")
		assertVec(t, wantLinear[c], lin, name+" linear")
	}
}

func TestAxesFromPoses(t *testing.T) {
	pan := geom.NewPose(r3.Vec{}, geom.AxisAngle(geom.UnitZ, 0))
	tilt := geom.NewPose(r3.Vec{Z: 0.2}, geom.Identity().Orientation)
	aim := geom.NewPose(r3.Vec{X: 0.3, Z: 0.5}, geom.Identity().Orientation)

	a := AxesFromPoses(pan, tilt, aim)
	assertVec(t, r3.Vec{Z: 1}, a.PanAxis, "Z1")
	assertVec(t, r3.Vec{Y: 1}, a.TiltAxis, "Y2")
	assertVec(t, r3.Vec{X: 1}, a.AimAxis, "X3")
	assertVec(t, r3.Vec{X: 0.3, Z: 0.5}, a.AimPoint, "t3")
}

func TestAxesFromPoses_Rotated(t *testing.T) {
	// yaw the pan frame a quarter turn: its z stays put, the tilt frame
	// inherits the yaw so its y now points along -x
	yaw := geom.AxisAngle(geom.UnitZ, 1.5707963267948966)
	pan := geom.NewPose(r3.Vec{}, yaw)
	tilt := geom.NewPose(r3.Vec{Z: 0.2}, yaw)
	aim := geom.NewPose(r3.Vec{Y: 0.3, Z: 0.2}, yaw)

	a := AxesFromPoses(pan, tilt, aim)
	assertVec(t, r3.Vec{Z: 1}, a.PanAxis, "Z1")
	assertVec(t, r3.Vec{X: -1}, a.TiltAxis, "Y2")
	assertVec(t, r3.Vec{Y: 1}, a.AimAxis, "X3")
}

func TestTwistFromLinear(t *testing.T) {
	dx := TwistFromLinear(r3.Vec{X: 1, Y: 2, Z: 3})
	assert.Equal(t, [6]float64{0, 0, 0, 1, 2, 3}, dx)
}
