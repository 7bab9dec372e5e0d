package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RateHz != 10 {
		t.Errorf("expected rate_hz 10, got %d", cfg.RateHz)
	}
	if !cfg.SimulateJointStates {
		t.Error("simulate_joint_states should default to true")
	}
	if cfg.Kp != 5.0 || cfg.Ki != 1.0 || cfg.Kd != 0.0 {
		t.Errorf("unexpected gains: %v %v %v", cfg.Kp, cfg.Ki, cfg.Kd)
	}
	if cfg.BufferN != 10 {
		t.Errorf("expected buffer_n 10, got %d", cfg.BufferN)
	}
	if cfg.MotorGains.KpPos != 800 || cfg.MotorGains.KpVel != 100 || cfg.MotorGains.KiVel != 1920 {
		t.Errorf("unexpected motor gains: %+v", cfg.MotorGains)
	}
	if cfg.BaseLink != "" || cfg.TargetLink != "" {
		t.Error("frame names should default to empty")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero rate", func(c *Config) { c.RateHz = 0 }},
		{"one-sample buffer", func(c *Config) { c.BufferN = 1 }},
		{"negative damping", func(c *Config) { c.Damping = -1 }},
		{"negative timeout", func(c *Config) { c.LookupTimeout = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turret.yaml")
	data := []byte(`
rate_hz: 20
kp: 3.5
buffer_n: 4
turret_name: vxxms
base_link: world
kp_pos: 640
lookup_timeout: 50ms
sim:
  target:
    kind: line
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.RateHz != 20 || cfg.Kp != 3.5 || cfg.BufferN != 4 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.Ki != DefaultKi {
		t.Errorf("unset key should keep default, got ki=%v", cfg.Ki)
	}
	if cfg.MotorGains.KpPos != 640 || cfg.MotorGains.KiVel != DefaultKiVel {
		t.Errorf("inline motor gains not decoded: %+v", cfg.MotorGains)
	}
	if cfg.LookupTimeout != 50*time.Millisecond {
		t.Errorf("expected 50ms lookup timeout, got %v", cfg.LookupTimeout)
	}
	if cfg.Sim.Target.Kind != "line" || cfg.Sim.Target.Radius != 0.15 {
		t.Errorf("nested sim config not merged: %+v", cfg.Sim.Target)
	}
	if got := cfg.JointGroup(); got != "vxxms/commands/joint_group" {
		t.Errorf("JointGroup() = %q", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turret.yaml")
	cfg := GetPreset("damped").WithSimFrames()

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Damping != 0.05 || loaded.TargetLink != "target_link" || loaded.CacheTime != cfg.CacheTime {
		t.Errorf("round trip mismatch: %+v", loaded)
	}
}

func TestTopicDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TurretName = "turret"
	cfg.PayloadName = "laser"

	if got := cfg.TurretJointStates(); got != "turret/joint_states" {
		t.Errorf("TurretJointStates() = %q", got)
	}
	if got := cfg.PayloadJointStates(); got != "laser/joint_states" {
		t.Errorf("PayloadJointStates() = %q", got)
	}

	cfg.PayloadJointStatesTopic = "custom"
	if got := cfg.PayloadJointStates(); got != "custom" {
		t.Errorf("override ignored: %q", got)
	}
}

func TestControllerConfig(t *testing.T) {
	cfg := DefaultConfig().WithSimFrames()
	cc := cfg.ControllerConfig()

	if cc.RateHz != 10 || cc.Gains.Kp != 5 || cc.AimFloor != 0.05 {
		t.Errorf("unexpected controller config: %+v", cc)
	}
	if cc.Frames.Pan != "turret_pan_link" || cc.Topics.JointGroup != "turret/commands/joint_group" {
		t.Errorf("names not carried over: %+v", cc)
	}
	if g := cfg.Gains(); g.Group != "turret" || g.KpPos != 800 {
		t.Errorf("unexpected motor gains: %+v", g)
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("gentle")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.Kp != 2.0 {
		t.Errorf("expected kp 2.0, got %f", cfg.Kp)
	}
	if cfg.RateHz != DefaultRateHz {
		t.Error("preset should start from defaults")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets()
	if len(presets) != len(Presets) {
		t.Fatalf("expected %d presets, got %d", len(Presets), len(presets))
	}
	for _, name := range presets {
		if cfg := GetPreset(name); cfg.Validate() != nil {
			t.Errorf("preset %s does not validate", name)
		}
	}
}

func TestLoadOnto_KeepsPresetValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turret.yaml")
	if err := os.WriteFile(path, []byte("ki: 0.25\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadOnto(path, GetPreset("aggressive"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Kp != 8.0 || cfg.BufferN != 5 {
		t.Errorf("preset values lost: kp=%v buffer_n=%d", cfg.Kp, cfg.BufferN)
	}
	if cfg.Ki != 0.25 {
		t.Errorf("expected ki 0.25 from file, got %v", cfg.Ki)
	}
}
