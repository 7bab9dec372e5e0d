package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/geom"
	"github.com/san-kum/turretctl/internal/integrators"
	"github.com/san-kum/turretctl/internal/kinematics"
	"github.com/san-kum/turretctl/internal/pid"
)

// ErrNonFinitePose is returned for a cycle whose looked-up poses hold NaN or
// Inf. Nothing from such a cycle reaches the error window.
var ErrNonFinitePose = errors.New("controller: pose is not finite")

// Cycle summarises one tick of the loop.
type Cycle struct {
	Stamp     time.Time
	Solved    bool
	Err       error
	Error     r3.Vec
	Velocity  r3.Vec
	Q         kinematics.Joints
	DQ        kinematics.Joints
	Clamped   bool
	Condition float64
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithObserver registers fn to receive every completed cycle.
func WithObserver(fn func(Cycle)) Option {
	return func(c *Controller) { c.observers = append(c.observers, fn) }
}

type Controller struct {
	cfg      Config
	poses    PoseSource
	commands CommandSink
	states   StateSink
	logger   *zap.Logger
	now      func() time.Time

	estimator  *pid.Estimator
	solver     *kinematics.Solver
	limiter    kinematics.Limiter
	integrator *integrators.Euler
	observers  []func(Cycle)

	q  kinematics.Joints
	dq kinematics.Joints
}

func New(cfg Config, poses PoseSource, commands CommandSink, states StateSink, logger *zap.Logger, opts ...Option) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	est, err := pid.NewEstimator(cfg.Gains, cfg.BufferN, cfg.RateHz)
	if err != nil {
		return nil, err
	}
	integ, err := integrators.NewEuler(cfg.RateHz)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		cfg:        cfg,
		poses:      poses,
		commands:   commands,
		states:     states,
		logger:     logger.Named("controller"),
		now:        time.Now,
		estimator:  est,
		solver:     kinematics.NewSolver(cfg.Damping),
		limiter:    kinematics.NewLimiter(cfg.AimFloor),
		integrator: integ,
		q:          InitialJoints,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Period is the fixed control period.
func (c *Controller) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.cfg.RateHz)
}

// Joints returns the current joint estimate and the last commanded rates.
func (c *Controller) Joints() (q, dq kinematics.Joints) { return c.q, c.dq }

func (c *Controller) Estimator() *pid.Estimator { return c.estimator }

// Run ticks the loop every period until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.Period())
	defer ticker.Stop()

	c.logger.Info("control loop started",
		zap.Float64("rate_hz", c.cfg.RateHz),
		zap.Bool("simulate_joint_states", c.cfg.SimulateJointStates))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Tick()
		}
	}
}

type turretPoses struct {
	pan, tilt, aim, target geom.Pose
}

func (c *Controller) lookup() (turretPoses, error) {
	var p turretPoses
	f := c.cfg.Frames
	for _, q := range []struct {
		frame string
		dst   *geom.Pose
	}{
		{f.Pan, &p.pan},
		{f.Tilt, &p.tilt},
		{f.Aim, &p.aim},
		{f.Target, &p.target},
	} {
		pose, err := c.poses.Lookup(f.Base, q.frame)
		if err != nil {
			return p, err
		}
		*q.dst = pose
	}
	return p, nil
}

// Tick runs one cycle. A failed lookup or solve leaves q and dq as they
// were; joint states are published either way.
func (c *Controller) Tick() Cycle {
	cy := Cycle{Stamp: c.now()}

	poses, err := c.lookup()
	if err != nil {
		c.logger.Info("couldn't find transforms", zap.Error(err))
		cy.Err = err
	} else if err := c.step(poses, &cy); err != nil {
		c.logger.Warn("inverse kinematics failed", zap.Error(err))
		cy.Err = err
	} else {
		cy.Solved = true
		c.publishCommand()
	}

	c.publishStates(cy.Stamp)

	cy.Q, cy.DQ = c.q, c.dq
	for _, fn := range c.observers {
		fn(cy)
	}
	return cy
}

func (c *Controller) step(p turretPoses, cy *Cycle) error {
	f := c.cfg.Frames
	for _, fp := range []struct {
		frame string
		pose  geom.Pose
	}{
		{f.Pan, p.pan},
		{f.Tilt, p.tilt},
		{f.Aim, p.aim},
		{f.Target, p.target},
	} {
		if !fp.pose.IsFinite() {
			return fmt.Errorf("%w: %s", ErrNonFinitePose, fp.frame)
		}
	}

	cy.Error = r3.Sub(p.target.Position, p.aim.Position)
	cy.Velocity = c.estimator.Estimate(cy.Error)

	j := kinematics.Build(kinematics.AxesFromPoses(p.pan, p.tilt, p.aim))
	dq, err := c.solver.Solve(j, kinematics.TwistFromLinear(cy.Velocity))
	cy.Condition = c.solver.Condition()
	if err != nil {
		return err
	}

	dq, cy.Clamped = c.limiter.Apply(c.q, dq)
	if cy.Clamped {
		c.logger.Debug("aim joint held at floor",
			zap.Float64("aim", c.q[kinematics.Aim]),
			zap.Float64("floor", c.limiter.Floor))
	}

	c.dq = dq
	c.q = c.integrator.Step(c.q, dq)
	return nil
}

func (c *Controller) publishCommand() {
	cmd := JointGroupCommand{
		Name: c.cfg.TurretName,
		Cmd:  [2]float64{c.dq[kinematics.Pan], c.dq[kinematics.Tilt]},
	}
	if err := c.commands.PublishCommand(c.cfg.Topics.JointGroup, cmd); err != nil {
		c.logger.Warn("publish command failed", zap.String("topic", c.cfg.Topics.JointGroup), zap.Error(err))
	}
}

func (c *Controller) publishStates(stamp time.Time) {
	if c.cfg.SimulateJointStates {
		st := JointState{
			Stamp:    stamp,
			Name:     []string{"pan", "tilt"},
			Position: []float64{c.q[kinematics.Pan], c.q[kinematics.Tilt]},
		}
		if err := c.states.PublishState(c.cfg.Topics.TurretJointStates, st); err != nil {
			c.logger.Warn("publish joint states failed", zap.String("topic", c.cfg.Topics.TurretJointStates), zap.Error(err))
		}
	}

	st := JointState{
		Stamp:    stamp,
		Name:     []string{c.cfg.PayloadAimJoint},
		Position: []float64{c.q[kinematics.Aim]},
	}
	if err := c.states.PublishState(c.cfg.Topics.PayloadJointStates, st); err != nil {
		c.logger.Warn("publish joint states failed", zap.String("topic", c.cfg.Topics.PayloadJointStates), zap.Error(err))
	}
}
