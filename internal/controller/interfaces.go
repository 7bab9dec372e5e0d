package controller

import (
	"context"
	"errors"
	"time"

	"github.com/san-kum/turretctl/internal/geom"
)

// PoseSource resolves the pose of source expressed in target.
type PoseSource interface {
	Lookup(target, source string) (geom.Pose, error)
}

// JointGroupCommand carries pan and tilt rates for a joint group.
type JointGroupCommand struct {
	Name string
	Cmd  [2]float64
}

type CommandSink interface {
	PublishCommand(topic string, cmd JointGroupCommand) error
}

// JointState reports joint positions by name.
type JointState struct {
	Stamp    time.Time
	Name     []string
	Position []float64
}

type StateSink interface {
	PublishState(topic string, state JointState) error
}

// MotorGains are the raw motor-side PID registers pushed once at startup.
type MotorGains struct {
	Group string
	KpPos int32
	KiPos int32
	KdPos int32
	K1    int32
	K2    int32
	KpVel int32
	KiVel int32
}

type GainsClient interface {
	SetMotorGains(ctx context.Context, gains MotorGains) error
}

// StateSinks fans one publish out to several sinks. A failing sink does not
// stop the rest; the errors are joined.
type StateSinks []StateSink

func (s StateSinks) PublishState(topic string, state JointState) error {
	var errs []error
	for _, sink := range s {
		if err := sink.PublishState(topic, state); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CommandSinks fans one command out to several sinks, like StateSinks.
type CommandSinks []CommandSink

func (s CommandSinks) PublishCommand(topic string, cmd JointGroupCommand) error {
	var errs []error
	for _, sink := range s {
		if err := sink.PublishCommand(topic, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
