package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/turretctl/internal/config"
	"github.com/san-kum/turretctl/internal/sim"
)

// Scenario is a scripted sequence of simulated runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep overrides the base configuration for one run. Unset fields
// keep the base value.
type ScenarioStep struct {
	Name     string               `yaml:"name"`
	Preset   string               `yaml:"preset"`
	Duration float64              `yaml:"duration"`
	Target   *config.TargetConfig `yaml:"target"`
	Kp       *float64             `yaml:"kp"`
	Ki       *float64             `yaml:"ki"`
	Kd       *float64             `yaml:"kd"`
	BufferN  *int                 `yaml:"buffer_n"`
	AimFloor *float64             `yaml:"aim_floor"`
	Damping  *float64             `yaml:"damping"`
	SaveAs   string               `yaml:"save_as"`
}

// Runner runs one simulation for cfg.
type Runner func(ctx context.Context, cfg *config.Config) (*sim.Result, error)

type StepResult struct {
	Step   ScenarioStep
	Config *config.Config
	Result *sim.Result
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	return &scenario, nil
}

// Apply returns a copy of base with the step's overrides. A preset replaces
// the gains before the explicit fields are applied.
func (s ScenarioStep) Apply(base *config.Config) (*config.Config, error) {
	cfg := *base
	if s.Preset != "" {
		p := config.GetPreset(s.Preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s", s.Preset)
		}
		cfg.RateHz, cfg.BufferN = p.RateHz, p.BufferN
		cfg.Kp, cfg.Ki, cfg.Kd = p.Kp, p.Ki, p.Kd
		cfg.Damping = p.Damping
	}
	if s.Duration > 0 {
		cfg.Sim.Duration = s.Duration
	}
	if s.Target != nil {
		cfg.Sim.Target = *s.Target
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&cfg.Kp, s.Kp)
	set(&cfg.Ki, s.Ki)
	set(&cfg.Kd, s.Kd)
	set(&cfg.AimFloor, s.AimFloor)
	set(&cfg.Damping, s.Damping)
	if s.BufferN != nil {
		cfg.BufferN = *s.BufferN
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RunScenario executes all steps in a scenario
func RunScenario(ctx context.Context, scenario *Scenario, base *config.Config, run Runner, logger *zap.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		cfg, err := step.Apply(base)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		logger.Info("running step",
			zap.Int("step", i+1),
			zap.Int("of", len(scenario.Steps)),
			zap.String("name", step.Name),
			zap.String("target", cfg.Sim.Target.Kind))

		result, err := run(ctx, cfg)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}
		results = append(results, StepResult{Step: step, Config: cfg, Result: result})
	}

	return results, nil
}

// MonteCarloConfig perturbs the target centre of the base configuration.
type MonteCarloConfig struct {
	Perturbation float64
	NumTrials    int
	Seed         int64
	// MaxMiss is the final miss distance above which a trial counts as lost.
	MaxMiss float64
}

type MonteCarloResult struct {
	TrialID   int
	Center    [3]float64
	FinalMiss float64
	Failures  int
	Stable    bool
}

// RunMonteCarlo executes trials with the target centre moved by up to
// Perturbation along each axis.
func RunMonteCarlo(ctx context.Context, mc MonteCarloConfig, base *config.Config, run Runner, logger *zap.Logger) ([]MonteCarloResult, error) {
	if mc.NumTrials <= 0 {
		return nil, fmt.Errorf("monte carlo: trials must be positive, got %d", mc.NumTrials)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	results := make([]MonteCarloResult, 0, mc.NumTrials)

	rng := rand.New(rand.NewSource(mc.Seed))
	if mc.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	for trial := 0; trial < mc.NumTrials; trial++ {
		cfg := *base
		for i, v := range base.Sim.Target.Center {
			cfg.Sim.Target.Center[i] = v + (rng.Float64()-0.5)*2*mc.Perturbation
		}

		result, err := run(ctx, &cfg)
		if err != nil {
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}

		r := MonteCarloResult{
			TrialID:   trial,
			Center:    cfg.Sim.Target.Center,
			FinalMiss: math.Inf(1),
			Failures:  result.Failures,
		}
		if n := len(result.Samples); n > 0 {
			r.FinalMiss = result.Samples[n-1].Miss()
		}
		r.Stable = r.Failures == 0 && r.FinalMiss <= mc.MaxMiss
		results = append(results, r)

		if (trial+1)%10 == 0 {
			logger.Info("monte carlo progress", zap.Int("done", trial+1), zap.Int("trials", mc.NumTrials))
		}
	}

	return results, nil
}

// MonteCarloStats counts stable and lost trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
