package controller_test

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/turretctl/internal/controller"
	"github.com/san-kum/turretctl/internal/frames"
	"github.com/san-kum/turretctl/internal/geom"
	"github.com/san-kum/turretctl/internal/kinematics"
	"github.com/san-kum/turretctl/internal/pid"
)

func testConfig() controller.Config {
	return controller.Config{
		RateHz:              10,
		SimulateJointStates: true,
		Gains:               pid.Gains{Kp: 5, Ki: 1, Kd: 0},
		BufferN:             10,
		AimFloor:            kinematics.DefaultAimFloor,
		TurretName:          "turret",
		PayloadAimJoint:     "aim_joint",
		Frames: controller.Frames{
			Base:   "base",
			Pan:    "pan",
			Tilt:   "tilt",
			Aim:    "aim",
			Target: "target",
		},
		Topics: controller.Topics{
			TurretJointStates:  "turret/joint_states",
			PayloadJointStates: "payload/joint_states",
			JointGroup:         "turret/commands/joint_group",
		},
	}
}

func identity(p r3.Vec) geom.Pose {
	return geom.NewPose(p, geom.Identity().Orientation)
}

var _ = Describe("Controller", func() {
	var (
		cfg    controller.Config
		poses  *fakePoses
		rec    *recorder
		logs   *observer.ObservedLogs
		logger *zap.Logger
		stamp  time.Time
		ctrl   *controller.Controller
	)

	build := func() {
		var err error
		ctrl, err = controller.New(cfg, poses, rec, rec, logger,
			controller.WithClock(func() time.Time { return stamp }))
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		cfg = testConfig()
		poses = &fakePoses{poses: map[string]geom.Pose{
			"pan":    identity(r3.Vec{Z: 0.1}),
			"tilt":   identity(r3.Vec{Z: 0.2}),
			"aim":    identity(r3.Vec{X: 0.45, Z: 0.2}),
			"target": identity(r3.Vec{X: 0.5, Y: 0.1, Z: 0.3}),
		}}
		rec = &recorder{}
		var core zapcore.Core
		core, logs = observer.New(zapcore.DebugLevel)
		logger = zap.New(core)
		stamp = time.Unix(1700000000, 0)
	})

	Describe("construction", func() {
		It("starts from the initial joint estimate", func() {
			build()
			q, dq := ctrl.Joints()
			Expect(q).To(Equal(kinematics.Joints{0, 0, 0.45}))
			Expect(dq).To(Equal(kinematics.Joints{}))
			Expect(ctrl.Period()).To(Equal(100 * time.Millisecond))
		})

		It("rejects a one-sample error window", func() {
			cfg.BufferN = 1
			_, err := controller.New(cfg, poses, rec, rec, nil)
			Expect(errors.Is(err, pid.ErrBufferTooSmall)).To(BeTrue())
		})

		It("requires every frame name", func() {
			cfg.Frames.Target = ""
			_, err := controller.New(cfg, poses, rec, rec, nil)
			Expect(errors.Is(err, controller.ErrMissingName)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("target_link"))
		})
	})

	Describe("a cycle with all frames available", func() {
		BeforeEach(build)

		It("integrates the solved rates and publishes a command", func() {
			q0, _ := ctrl.Joints()
			cy := ctrl.Tick()

			Expect(cy.Solved).To(BeTrue())
			Expect(cy.Err).NotTo(HaveOccurred())
			Expect(cy.Error.X).To(BeNumerically("~", 0.05, 1e-12))
			Expect(cy.Error.Y).To(BeNumerically("~", 0.1, 1e-12))
			Expect(cy.Error.Z).To(BeNumerically("~", 0.1, 1e-12))

			q, dq := ctrl.Joints()
			for i := range q {
				Expect(q[i]).To(Equal(q0[i] + dq[i]/cfg.RateHz))
			}

			Expect(rec.commands).To(HaveLen(1))
			Expect(rec.commands[0].Topic).To(Equal("turret/commands/joint_group"))
			Expect(rec.commands[0].Cmd).To(Equal(controller.JointGroupCommand{
				Name: "turret",
				Cmd:  [2]float64{dq[0], dq[1]},
			}))
		})

		It("publishes pan/tilt and aim joint states stamped with the cycle time", func() {
			ctrl.Tick()
			q, _ := ctrl.Joints()

			want := []publishedState{
				{"turret/joint_states", controller.JointState{Stamp: stamp, Name: []string{"pan", "tilt"}, Position: []float64{q[0], q[1]}}},
				{"payload/joint_states", controller.JointState{Stamp: stamp, Name: []string{"aim_joint"}, Position: []float64{q[2]}}},
			}
			Expect(cmp.Diff(want, rec.states)).To(BeEmpty())
		})

		It("moves the aim point towards the target", func() {
			cy := ctrl.Tick()
			j := kinematics.Build(kinematics.AxesFromPoses(poses.poses["pan"], poses.poses["tilt"], poses.poses["aim"]))

			// J_linear · dq is the predicted aim velocity
			var v r3.Vec
			for c := 0; c < 3; c++ {
				_, lin := j.Column(c)
				v = r3.Add(v, r3.Scale(cy.DQ[c], lin))
			}
			Expect(r3.Dot(v, cy.Error)).To(BeNumerically(">", 0))
		})

		It("returns kp*e0 - ki*e0*dt for a steady error", func() {
			e0 := r3.Sub(poses.poses["target"].Position, poses.poses["aim"].Position)
			ctrl.Estimator().Prefill(e0)

			cy := ctrl.Tick()
			dt := 1 / cfg.RateHz
			Expect(cy.Velocity.X).To(BeNumerically("~", 5*e0.X-1*e0.X*dt, 1e-12))
			Expect(cy.Velocity.Y).To(BeNumerically("~", 5*e0.Y-1*e0.Y*dt, 1e-12))
			Expect(cy.Velocity.Z).To(BeNumerically("~", 5*e0.Z-1*e0.Z*dt, 1e-12))
		})

		It("notifies observers", func() {
			var seen []controller.Cycle
			ctrl, _ = controller.New(cfg, poses, rec, rec, logger,
				controller.WithObserver(func(c controller.Cycle) { seen = append(seen, c) }))
			ctrl.Tick()
			ctrl.Tick()
			Expect(seen).To(HaveLen(2))
			Expect(seen[1].Q).To(Equal(func() kinematics.Joints { q, _ := ctrl.Joints(); return q }()))
		})
	})

	Describe("the aim floor", func() {
		It("clamps the aim rate so the projection lands on the floor", func() {
			// target sits behind the aim point, pulling the aim joint in hard
			poses.poses["target"] = identity(r3.Vec{X: -0.5, Z: 0.2})
			cfg.Gains = pid.Gains{Kp: 50}
			build()

			q0, _ := ctrl.Joints()
			cy := ctrl.Tick()

			Expect(cy.Clamped).To(BeTrue())
			Expect(cy.DQ[kinematics.Aim]).To(Equal(cfg.AimFloor - q0[kinematics.Aim]))
			Expect(logs.FilterMessage("aim joint held at floor").Len()).To(Equal(1))
		})
	})

	DescribeTable("a lookup failure",
		func(frame string) {
			build()
			ctrl.Tick()
			q0, dq0 := ctrl.Joints()
			commands := len(rec.commands)
			states := len(rec.states)

			poses.fail = frame
			cy := ctrl.Tick()

			q, dq := ctrl.Joints()
			Expect(q).To(Equal(q0))
			Expect(dq).To(Equal(dq0))
			Expect(cy.Solved).To(BeFalse())

			var le *frames.LookupError
			Expect(errors.As(cy.Err, &le)).To(BeTrue())
			Expect(le.Frame).To(Equal(frame))

			Expect(rec.commands).To(HaveLen(commands))
			Expect(rec.states).To(HaveLen(states + 2))
			Expect(logs.FilterMessage("couldn't find transforms").Len()).To(Equal(1))
		},
		Entry("pan", "pan"),
		Entry("tilt", "tilt"),
		Entry("aim", "aim"),
		Entry("target", "target"),
	)

	It("does not push a sample into the error window when lookup fails", func() {
		poses.fail = "target"
		build()
		ctrl.Tick()
		for _, c := range ctrl.Estimator().History().Snapshot() {
			Expect(c).To(Equal(r3.Vec{}))
		}
	})

	Describe("a non-finite pose", func() {
		BeforeEach(build)

		It("fails the cycle, keeps q and dq and still publishes joint states", func() {
			ctrl.Tick()
			q0, dq0 := ctrl.Joints()
			commands := len(rec.commands)
			states := len(rec.states)

			poses.poses["target"] = identity(r3.Vec{X: math.NaN(), Z: 0.3})
			cy := ctrl.Tick()

			q, dq := ctrl.Joints()
			Expect(q).To(Equal(q0))
			Expect(dq).To(Equal(dq0))
			Expect(cy.Solved).To(BeFalse())
			Expect(errors.Is(cy.Err, controller.ErrNonFinitePose)).To(BeTrue())
			Expect(cy.Err.Error()).To(ContainSubstring("target"))

			Expect(rec.commands).To(HaveLen(commands))
			Expect(rec.states).To(HaveLen(states + 2))
			Expect(logs.FilterMessage("inverse kinematics failed").Len()).To(Equal(1))
		})

		It("keeps the sample out of the error window so later cycles solve", func() {
			ctrl.Tick()
			before := ctrl.Estimator().History().Snapshot()
			good := poses.poses["target"]

			poses.poses["target"] = identity(r3.Vec{X: math.NaN()})
			ctrl.Tick()
			Expect(ctrl.Estimator().History().Snapshot()).To(Equal(before))

			poses.poses["target"] = good
			for i := 0; i < cfg.BufferN+2; i++ {
				Expect(ctrl.Tick().Solved).To(BeTrue(), "cycle %d after the bad pose", i)
			}
			Expect(rec.commands).To(HaveLen(1 + cfg.BufferN + 2))
		})

		It("rejects a non-finite orientation", func() {
			pan := poses.poses["pan"]
			pan.Orientation.Real = math.Inf(1)
			poses.poses["pan"] = pan

			cy := ctrl.Tick()
			Expect(errors.Is(cy.Err, controller.ErrNonFinitePose)).To(BeTrue())
			for _, c := range ctrl.Estimator().History().Snapshot() {
				Expect(c).To(Equal(r3.Vec{}))
			}
		})
	})

	It("publishes only the aim joint when joint simulation is off", func() {
		cfg.SimulateJointStates = false
		build()
		ctrl.Tick()

		Expect(rec.states).To(HaveLen(1))
		Expect(rec.states[0].Topic).To(Equal("payload/joint_states"))
		Expect(rec.states[0].State.Name).To(Equal([]string{"aim_joint"}))
	})

	It("keeps running when a sink fails", func() {
		rec.err = errors.New("sink closed")
		build()
		cy := ctrl.Tick()

		Expect(cy.Solved).To(BeTrue())
		Expect(logs.FilterMessage("publish joint states failed").Len()).To(Equal(2))
		Expect(logs.FilterMessage("publish command failed").Len()).To(Equal(1))
	})

	It("ticks until the context is cancelled", func() {
		cfg.RateHz = 200
		build()

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- ctrl.Run(ctx) }()

		Eventually(rec.stateCount).Should(BeNumerically(">=", 4))
		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})
})

var _ = Describe("PushMotorGains", func() {
	It("retries until the client accepts", func() {
		client := &flakyGains{failures: 2}
		gains := controller.MotorGains{Group: "turret", KpPos: 800, KpVel: 100, KiVel: 1920}

		err := controller.PushMotorGains(context.Background(), client, gains, time.Millisecond, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(client.calls).To(Equal(3))
		Expect(client.got).To(Equal(gains))
	})

	It("gives up when the context ends", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := controller.PushMotorGains(ctx, &flakyGains{failures: 100}, controller.MotorGains{}, time.Hour, nil)
		Expect(err).To(MatchError(context.Canceled))
	})
})
