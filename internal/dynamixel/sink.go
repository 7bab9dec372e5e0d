package dynamixel

import (
	"encoding/binary"
	"math"

	"github.com/san-kum/turretctl/internal/controller"
)

// VelocityUnits converts a joint rate in rad/s to goal velocity units.
func VelocityUnits(radPerSec float64) int32 {
	rpm := radPerSec * 60 / (2 * math.Pi)
	return int32(math.Round(rpm / RPMPerUnit))
}

// VelocitySink sends joint group commands to the turret servos as goal
// velocities, in one sync write per command.
type VelocitySink struct {
	Bus *Bus
}

func (s VelocitySink) PublishCommand(_ string, cmd controller.JointGroupCommand) error {
	enc := func(v float64) []byte {
		return binary.LittleEndian.AppendUint32(nil, uint32(VelocityUnits(v)))
	}
	b := s.Bus
	data := map[byte][]byte{
		b.PanID:  enc(cmd.Cmd[0]),
		b.TiltID: enc(cmd.Cmd[1]),
	}
	return b.SyncWrite(AddrGoalVelocity, 4, data, b.joints())
}
