package config

import "sort"

// Presets are named gain sets applied over DefaultConfig.
var Presets = map[string]func(*Config){
	"default": func(c *Config) {},
	"gentle": func(c *Config) {
		c.Kp, c.Ki, c.Kd = 2.0, 0.5, 0.0
	},
	"aggressive": func(c *Config) {
		c.Kp, c.Ki, c.Kd = 8.0, 1.0, 0.2
		c.BufferN = 5
	},
	"damped": func(c *Config) {
		c.Damping = 0.05
	},
	"fast": func(c *Config) {
		c.RateHz = 50
		c.BufferN = 25
	},
}

func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
