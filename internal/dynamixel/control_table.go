// Package dynamixel drives Dynamixel X-series servos over Protocol 2.0:
// joint velocity commands for the turret and the PID gain registers.
package dynamixel

// X-series control table addresses.
const (
	AddrOperatingMode  uint16 = 11
	AddrTorqueEnable   uint16 = 64
	AddrVelocityIGain  uint16 = 76
	AddrVelocityPGain  uint16 = 78
	AddrPositionDGain  uint16 = 80
	AddrPositionIGain  uint16 = 82
	AddrPositionPGain  uint16 = 84
	AddrFeedforward2nd uint16 = 88
	AddrFeedforward1st uint16 = 90
	AddrGoalVelocity   uint16 = 104
)

const (
	ModeVelocity byte = 1

	// RPMPerUnit is the goal velocity resolution.
	RPMPerUnit = 0.229
)
