package controller

import (
	"errors"
	"fmt"

	"github.com/san-kum/turretctl/internal/kinematics"
	"github.com/san-kum/turretctl/internal/pid"
)

// InitialJoints is the joint estimate before the first cycle.
var InitialJoints = kinematics.Joints{0, 0, 0.45}

// Frames names the frames looked up every cycle; all are resolved relative
// to Base.
type Frames struct {
	Base   string
	Pan    string
	Tilt   string
	Aim    string
	Target string
}

type Topics struct {
	TurretJointStates  string
	PayloadJointStates string
	JointGroup         string
}

type Config struct {
	RateHz              float64
	SimulateJointStates bool
	Gains               pid.Gains
	BufferN             int
	AimFloor            float64
	Damping             float64

	TurretName      string
	PayloadAimJoint string
	Frames          Frames
	Topics          Topics
}

var ErrMissingName = errors.New("controller: frame or joint name not set")

func (c Config) validate() error {
	names := []struct{ key, val string }{
		{"base_link", c.Frames.Base},
		{"turret_pan_link", c.Frames.Pan},
		{"turret_tilt_link", c.Frames.Tilt},
		{"payload_aim_link", c.Frames.Aim},
		{"target_link", c.Frames.Target},
		{"payload_aim_joint", c.PayloadAimJoint},
	}
	for _, n := range names {
		if n.val == "" {
			return fmt.Errorf("%w: %s", ErrMissingName, n.key)
		}
	}
	return nil
}
