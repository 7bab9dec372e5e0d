package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/turretctl/internal/config"
	"github.com/san-kum/turretctl/internal/controller"
	"github.com/san-kum/turretctl/internal/dynamixel"
	"github.com/san-kum/turretctl/internal/frames"
	"github.com/san-kum/turretctl/internal/sim"
)

const gainsRetryInterval = time.Second

func openFeed(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

func openBus(cfg *config.Config, logger *zap.Logger) (*dynamixel.Bus, error) {
	if cfg.Hardware.Port == "" {
		return nil, fmt.Errorf("no servo port configured (hardware.port or --port)")
	}
	bus, err := dynamixel.Open(cfg.Hardware.Port, cfg.Hardware.BaudRate, logger)
	if err != nil {
		return nil, err
	}
	bus.PanID = byte(cfg.Hardware.PanID)
	bus.TiltID = byte(cfg.Hardware.TiltID)
	return bus, nil
}

func runHardware(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	simulated := dryRun || cfg.Hardware.Port == ""
	if simulated {
		cfg.WithSimFrames()
	}
	ctrlCfg := cfg.ControllerConfig()

	buf := frames.NewBuffer(frames.WithCacheTime(cfg.CacheTime), frames.WithTimeout(cfg.LookupTimeout))
	out := controller.NewJSONSink(os.Stdout)
	trace := controller.LogSink{Logger: logger.Named("sink")}
	states := controller.StateSinks{out, trace}
	commands := controller.CommandSinks{out, trace}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if simulated {
		names := sim.Names{
			Base:     ctrlCfg.Frames.Base,
			Pan:      ctrlCfg.Frames.Pan,
			Tilt:     ctrlCfg.Frames.Tilt,
			Aim:      ctrlCfg.Frames.Aim,
			AimJoint: ctrlCfg.PayloadAimJoint,
		}
		turret := sim.NewTurret(buf, names, sim.DefaultGeometry, ctrlCfg.RateHz, controller.InitialJoints)
		if err := turret.Publish(time.Now()); err != nil {
			return err
		}
		states = append(controller.StateSinks{turret}, states...)
		commands = append(controller.CommandSinks{turret}, commands...)
		logger.Info("dry run: driving a simulated turret")
	} else {
		bus, err := openBus(cfg, logger)
		if err != nil {
			return err
		}
		defer bus.Close()

		if cfg.Hardware.TorqueOnRun {
			if err := bus.EnableVelocityMode(); err != nil {
				return err
			}
			defer func() {
				if err := bus.DisableTorque(); err != nil {
					logger.Warn("disable torque failed", zap.Error(err))
				}
			}()
		}
		commands = append(controller.CommandSinks{dynamixel.VelocitySink{Bus: bus}}, commands...)

		if cfg.Hardware.PushGains {
			g.Go(func() error {
				return controller.PushMotorGains(ctx, bus, cfg.Gains(), gainsRetryInterval, logger)
			})
		}
	}

	ctrl, err := controller.New(ctrlCfg, buf, commands, states, logger)
	if err != nil {
		return err
	}

	feed, err := openFeed(cfg.Hardware.PoseFeed)
	if err != nil {
		return err
	}
	defer feed.Close()

	// The decoder may block on stdin past shutdown, so it stays outside the
	// group.
	updates := make(chan frames.StampedTransform, 64)
	go func() {
		defer close(updates)
		if err := (frames.Decoder{}).Decode(ctx, feed, updates); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("pose feed stopped", zap.Error(err))
		}
	}()

	listener := frames.NewListener(buf, logger)
	g.Go(func() error { return listener.Run(ctx, updates) })
	g.Go(func() error { return ctrl.Run(ctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("control loop stopped")
		return nil
	}
	return err
}

func pushGains(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.TurretName == "" {
		cfg.TurretName = "turret"
	}
	gains := cfg.Gains()
	if dryRun {
		fmt.Printf("%s: kp_pos=%d ki_pos=%d kd_pos=%d k1=%d k2=%d kp_vel=%d ki_vel=%d\n",
			gains.Group, gains.KpPos, gains.KiPos, gains.KdPos, gains.K1, gains.K2, gains.KpVel, gains.KiVel)
		return nil
	}

	bus, err := openBus(cfg, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return controller.PushMotorGains(ctx, bus, gains, gainsRetryInterval, logger)
}
