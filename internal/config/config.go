package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/turretctl/internal/controller"
	"github.com/san-kum/turretctl/internal/pid"
)

const (
	DefaultRateHz   = 10
	DefaultKp       = 5.0
	DefaultKi       = 1.0
	DefaultKd       = 0.0
	DefaultBufferN  = 10
	DefaultAimFloor = 0.05

	DefaultKpPos = 800
	DefaultKiPos = 0
	DefaultKdPos = 0
	DefaultK1    = 0
	DefaultK2    = 0
	DefaultKpVel = 100
	DefaultKiVel = 1920

	DefaultCacheTime = 10 * time.Second
	DefaultBaudRate  = 1000000
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	RateHz              int     `yaml:"rate_hz"`
	SimulateJointStates bool    `yaml:"simulate_joint_states"`
	Kp                  float64 `yaml:"kp"`
	Ki                  float64 `yaml:"ki"`
	Kd                  float64 `yaml:"kd"`
	BufferN             int     `yaml:"buffer_n"`
	AimFloor            float64 `yaml:"aim_floor"`
	Damping             float64 `yaml:"damping"`

	TurretName  string `yaml:"turret_name"`
	PayloadName string `yaml:"payload_name"`

	BaseLink        string `yaml:"base_link"`
	TurretPanLink   string `yaml:"turret_pan_link"`
	TurretTiltLink  string `yaml:"turret_tilt_link"`
	PayloadAimLink  string `yaml:"payload_aim_link"`
	PayloadAimJoint string `yaml:"payload_aim_joint"`
	TargetLink      string `yaml:"target_link"`

	TurretJointStatesTopic  string `yaml:"turret_joint_states_topic"`
	PayloadJointStatesTopic string `yaml:"payload_joint_states_topic"`
	JointGroupTopic         string `yaml:"joint_group_topic"`

	MotorGains MotorGainsConfig `yaml:",inline"`

	LookupTimeout time.Duration `yaml:"lookup_timeout"`
	CacheTime     time.Duration `yaml:"cache_time"`

	Hardware HardwareConfig `yaml:"hardware"`
	Sim      SimConfig      `yaml:"sim"`
	Log      LogConfig      `yaml:"log"`
}

// MotorGainsConfig holds the servo-side PID registers. They only matter for
// the optional startup push to the motor driver.
type MotorGainsConfig struct {
	KpPos int32 `yaml:"kp_pos"`
	KiPos int32 `yaml:"ki_pos"`
	KdPos int32 `yaml:"kd_pos"`
	K1    int32 `yaml:"k1"`
	K2    int32 `yaml:"k2"`
	KpVel int32 `yaml:"kp_vel"`
	KiVel int32 `yaml:"ki_vel"`
}

type HardwareConfig struct {
	Port        string `yaml:"port"`
	BaudRate    int    `yaml:"baud_rate"`
	PanID       int    `yaml:"pan_id"`
	TiltID      int    `yaml:"tilt_id"`
	PushGains   bool   `yaml:"push_gains"`
	PoseFeed    string `yaml:"pose_feed"`
	TorqueOnRun bool   `yaml:"torque_on_run"`
}

type SimConfig struct {
	Duration float64      `yaml:"duration"`
	Target   TargetConfig `yaml:"target"`
}

type TargetConfig struct {
	Kind   string     `yaml:"kind"`
	Center [3]float64 `yaml:"center"`
	Radius float64    `yaml:"radius"`
	Speed  float64    `yaml:"speed"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func DefaultConfig() *Config {
	return &Config{
		RateHz:              DefaultRateHz,
		SimulateJointStates: true,
		Kp:                  DefaultKp,
		Ki:                  DefaultKi,
		Kd:                  DefaultKd,
		BufferN:             DefaultBufferN,
		AimFloor:            DefaultAimFloor,
		MotorGains: MotorGainsConfig{
			KpPos: DefaultKpPos,
			KiPos: DefaultKiPos,
			KdPos: DefaultKdPos,
			K1:    DefaultK1,
			K2:    DefaultK2,
			KpVel: DefaultKpVel,
			KiVel: DefaultKiVel,
		},
		CacheTime: DefaultCacheTime,
		Hardware: HardwareConfig{
			BaudRate: DefaultBaudRate,
			PanID:    1,
			TiltID:   2,
		},
		Sim: SimConfig{
			Duration: 30,
			Target: TargetConfig{
				Kind:   "circle",
				Center: [3]float64{0.4, 0, 0.35},
				Radius: 0.15,
				Speed:  0.5,
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	return LoadOnto(path, DefaultConfig())
}

// LoadOnto reads path over base, so keys missing from the file keep base's
// values.
func LoadOnto(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the numeric settings. Frame names are checked when the
// controller is built.
func (c *Config) Validate() error {
	if c.RateHz <= 0 {
		return fmt.Errorf("%w: rate_hz must be positive, got %d", ErrInvalid, c.RateHz)
	}
	if c.BufferN < pid.MinCapacity {
		return fmt.Errorf("%w: buffer_n must be at least %d, got %d", ErrInvalid, pid.MinCapacity, c.BufferN)
	}
	if c.Damping < 0 {
		return fmt.Errorf("%w: damping must not be negative, got %g", ErrInvalid, c.Damping)
	}
	if c.LookupTimeout < 0 || c.CacheTime < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}
	return nil
}

// Topic names fall back to paths under the turret and payload names.
func (c *Config) TurretJointStates() string {
	if c.TurretJointStatesTopic != "" {
		return c.TurretJointStatesTopic
	}
	return c.TurretName + "/joint_states"
}

func (c *Config) PayloadJointStates() string {
	if c.PayloadJointStatesTopic != "" {
		return c.PayloadJointStatesTopic
	}
	return c.PayloadName + "/joint_states"
}

func (c *Config) JointGroup() string {
	if c.JointGroupTopic != "" {
		return c.JointGroupTopic
	}
	return c.TurretName + "/commands/joint_group"
}

// WithSimFrames fills any empty name with the frame names the simulated
// turret publishes.
func (c *Config) WithSimFrames() *Config {
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.TurretName, "turret")
	fill(&c.PayloadName, "payload")
	fill(&c.BaseLink, "base_link")
	fill(&c.TurretPanLink, "turret_pan_link")
	fill(&c.TurretTiltLink, "turret_tilt_link")
	fill(&c.PayloadAimLink, "payload_aim_link")
	fill(&c.PayloadAimJoint, "payload_aim_joint")
	fill(&c.TargetLink, "target_link")
	return c
}

func (c *Config) ControllerConfig() controller.Config {
	return controller.Config{
		RateHz:              float64(c.RateHz),
		SimulateJointStates: c.SimulateJointStates,
		Gains:               pid.Gains{Kp: c.Kp, Ki: c.Ki, Kd: c.Kd},
		BufferN:             c.BufferN,
		AimFloor:            c.AimFloor,
		Damping:             c.Damping,
		TurretName:          c.TurretName,
		PayloadAimJoint:     c.PayloadAimJoint,
		Frames: controller.Frames{
			Base:   c.BaseLink,
			Pan:    c.TurretPanLink,
			Tilt:   c.TurretTiltLink,
			Aim:    c.PayloadAimLink,
			Target: c.TargetLink,
		},
		Topics: controller.Topics{
			TurretJointStates:  c.TurretJointStates(),
			PayloadJointStates: c.PayloadJointStates(),
			JointGroup:         c.JointGroup(),
		},
	}
}

func (c *Config) Gains() controller.MotorGains {
	g := c.MotorGains
	return controller.MotorGains{
		Group: c.TurretName,
		KpPos: g.KpPos,
		KiPos: g.KiPos,
		KdPos: g.KdPos,
		K1:    g.K1,
		K2:    g.K2,
		KpVel: g.KpVel,
		KiVel: g.KiVel,
	}
}
