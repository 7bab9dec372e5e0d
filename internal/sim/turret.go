package sim

import (
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/controller"
	"github.com/san-kum/turretctl/internal/frames"
	"github.com/san-kum/turretctl/internal/geom"
	"github.com/san-kum/turretctl/internal/kinematics"
)

// Geometry places the joints: the pan joint sits PanHeight above the base,
// the tilt joint TiltOffset above the pan joint, and the aim frame slides
// along the tilt frame's x axis.
type Geometry struct {
	PanHeight  float64
	TiltOffset float64
}

var DefaultGeometry = Geometry{PanHeight: 0.1, TiltOffset: 0.1}

// Names are the frame and joint names the model publishes.
type Names struct {
	Base     string
	Pan      string
	Tilt     string
	Aim      string
	AimJoint string
}

// Turret is a kinematic turret. Joint states published to it set its joint
// positions; joint group commands integrate pan and tilt rates over one
// period. Each update is written to a frames.Buffer as a transform tree.
type Turret struct {
	mu     sync.Mutex
	geo    Geometry
	names  Names
	period float64
	q      kinematics.Joints
	buf    *frames.Buffer
}

func NewTurret(buf *frames.Buffer, names Names, geo Geometry, rateHz float64, q0 kinematics.Joints) *Turret {
	return &Turret{
		geo:    geo,
		names:  names,
		period: 1 / rateHz,
		q:      q0,
		buf:    buf,
	}
}

func (t *Turret) Joints() kinematics.Joints {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.q
}

// Links returns the local transforms base→pan, pan→tilt and tilt→aim.
func (g Geometry) Links(q kinematics.Joints) (pan, tilt, aim geom.Pose) {
	pan = geom.NewPose(r3.Vec{Z: g.PanHeight}, geom.AxisAngle(geom.UnitZ, q[kinematics.Pan]))
	tilt = geom.NewPose(r3.Vec{Z: g.TiltOffset}, geom.AxisAngle(geom.UnitY, q[kinematics.Tilt]))
	aim = geom.NewPose(r3.Vec{X: q[kinematics.Aim]}, geom.Identity().Orientation)
	return pan, tilt, aim
}

// Forward returns the pan, tilt and aim frames in the base frame for q.
func (g Geometry) Forward(q kinematics.Joints) (pan, tilt, aim geom.Pose) {
	pan, tilt, aim = g.Links(q)
	tilt = pan.Compose(tilt)
	aim = tilt.Compose(aim)
	return pan, tilt, aim
}

func (t *Turret) AimPosition() r3.Vec {
	_, _, aim := t.geo.Forward(t.Joints())
	return aim.Position
}

func (t *Turret) PublishState(_ string, st controller.JointState) error {
	t.mu.Lock()
	for i, name := range st.Name {
		if i >= len(st.Position) {
			break
		}
		switch name {
		case "pan":
			t.q[kinematics.Pan] = st.Position[i]
		case "tilt":
			t.q[kinematics.Tilt] = st.Position[i]
		case t.names.AimJoint:
			t.q[kinematics.Aim] = st.Position[i]
		}
	}
	t.mu.Unlock()
	return t.Publish(st.Stamp)
}

func (t *Turret) PublishCommand(_ string, cmd controller.JointGroupCommand) error {
	t.mu.Lock()
	t.q[kinematics.Pan] += cmd.Cmd[0] * t.period
	t.q[kinematics.Tilt] += cmd.Cmd[1] * t.period
	t.mu.Unlock()
	return nil
}

// Publish writes the current joint frames, stamped with stamp.
func (t *Turret) Publish(stamp time.Time) error {
	n := t.names
	pan, tilt, aim := t.geo.Links(t.Joints())

	links := []frames.StampedTransform{
		{Parent: n.Base, Child: n.Pan, Pose: pan},
		{Parent: n.Pan, Child: n.Tilt, Pose: tilt},
		{Parent: n.Tilt, Child: n.Aim, Pose: aim},
	}
	for _, tf := range links {
		tf.Stamp = stamp
		if err := t.buf.Set(tf); err != nil {
			return err
		}
	}
	return nil
}
