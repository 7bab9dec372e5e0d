package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/turretctl/internal/controller"
	"github.com/san-kum/turretctl/internal/frames"
	"github.com/san-kum/turretctl/internal/geom"
)

// Epoch is where every simulated clock starts.
var Epoch = time.Unix(0, 0).UTC()

// Clock is virtual time advanced by the simulator, one control period per
// step.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type Option func(*Simulator)

func WithGeometry(g Geometry) Option {
	return func(s *Simulator) { s.geo = g }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithStateSink adds a sink that sees every joint state the controller
// publishes, after the turret model.
func WithStateSink(sink controller.StateSink) Option {
	return func(s *Simulator) { s.states = append(s.states, sink) }
}

func WithCommandSink(sink controller.CommandSink) Option {
	return func(s *Simulator) { s.commands = append(s.commands, sink) }
}

// Simulator closes the loop between a Controller and a kinematic Turret
// through a shared frames.Buffer, with the target driven along a Target
// trajectory.
type Simulator struct {
	cfg    controller.Config
	geo    Geometry
	logger *zap.Logger
	target Target

	clock  *Clock
	start  time.Time
	buf    *frames.Buffer
	turret *Turret
	ctrl   *controller.Controller

	states    controller.StateSinks
	commands  controller.CommandSinks
	metrics   []Metric
	observers []Observer
}

func New(cfg controller.Config, target Target, opts ...Option) (*Simulator, error) {
	if target == nil {
		return nil, fmt.Errorf("sim: nil target")
	}
	if !(cfg.RateHz > 0) {
		return nil, fmt.Errorf("sim: rate must be positive, got %g", cfg.RateHz)
	}

	s := &Simulator{
		cfg:    cfg,
		geo:    DefaultGeometry,
		logger: zap.NewNop(),
		target: target,
		clock:  NewClock(Epoch),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.buf = frames.NewBuffer(frames.WithClock(s.clock.Now))
	names := Names{
		Base:     cfg.Frames.Base,
		Pan:      cfg.Frames.Pan,
		Tilt:     cfg.Frames.Tilt,
		Aim:      cfg.Frames.Aim,
		AimJoint: cfg.PayloadAimJoint,
	}
	s.turret = NewTurret(s.buf, names, s.geo, cfg.RateHz, controller.InitialJoints)

	states := append(controller.StateSinks{s.turret}, s.states...)
	commands := append(controller.CommandSinks{s.turret}, s.commands...)

	ctrl, err := controller.New(cfg, s.buf, commands, states, s.logger, controller.WithClock(s.clock.Now))
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl
	s.start = s.clock.Now()

	if err := s.turret.Publish(s.start); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Controller() *controller.Controller { return s.ctrl }
func (s *Simulator) Turret() *Turret                    { return s.turret }
func (s *Simulator) Buffer() *frames.Buffer             { return s.buf }
func (s *Simulator) Clock() *Clock                      { return s.clock }

// Run steps the loop for cfg.Duration simulated seconds. On cancellation
// the samples gathered so far are returned with the context error.
func (s *Simulator) Run(ctx context.Context, cfg Config) (*Result, error) {
	if !(cfg.Duration > 0) || math.IsInf(cfg.Duration, 0) {
		return nil, fmt.Errorf("sim: duration must be positive, got %g", cfg.Duration)
	}

	steps := int(math.Round(cfg.Duration * s.cfg.RateHz))
	period := s.ctrl.Period()
	result := &Result{
		Samples: make([]Sample, 0, steps),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	var tick <-chan time.Time
	if cfg.Realtime {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			s.collect(result)
			return result, ctx.Err()
		default:
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				s.collect(result)
				return result, ctx.Err()
			case <-tick:
			}
		}

		sample, err := s.Step()
		if err != nil {
			return result, err
		}

		if !sample.Solved {
			result.Failures++
		}
		for _, m := range s.metrics {
			m.Observe(sample)
		}
		for _, obs := range s.observers {
			obs.OnStep(sample)
		}
		result.Samples = append(result.Samples, sample)
	}

	s.collect(result)
	return result, nil
}

// Step moves the target, runs one control cycle and advances the clock by
// one period.
func (s *Simulator) Step() (Sample, error) {
	now := s.clock.Now()
	t := now.Sub(s.start).Seconds()
	p := s.target.Position(t)
	err := s.buf.Set(frames.StampedTransform{
		Parent: s.cfg.Frames.Base,
		Child:  s.cfg.Frames.Target,
		Stamp:  now,
		Pose:   geom.NewPose(p, geom.Identity().Orientation),
	})
	if err != nil {
		return Sample{}, err
	}

	cy := s.ctrl.Tick()
	s.clock.Advance(s.ctrl.Period())
	return Sample{
		T:       t,
		Q:       cy.Q,
		DQ:      cy.DQ,
		Target:  p,
		Aim:     s.turret.AimPosition(),
		Error:   cy.Error,
		Solved:  cy.Solved,
		Clamped: cy.Clamped,
	}, nil
}

func (s *Simulator) collect(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}
