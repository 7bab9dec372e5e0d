package controller_test

import (
	"context"
	"errors"
	"sync"

	"github.com/san-kum/turretctl/internal/controller"
	"github.com/san-kum/turretctl/internal/frames"
	"github.com/san-kum/turretctl/internal/geom"
)

var errPublish = errors.New("publish failed")

type fakePoses struct {
	poses map[string]geom.Pose
	fail  string
}

func (f *fakePoses) Lookup(target, source string) (geom.Pose, error) {
	if source == f.fail {
		return geom.Pose{}, &frames.LookupError{Reason: frames.ReasonUnknownFrame, Target: target, Source: source, Frame: source}
	}
	p, ok := f.poses[source]
	if !ok {
		return geom.Pose{}, &frames.LookupError{Reason: frames.ReasonUnknownFrame, Target: target, Source: source, Frame: source}
	}
	return p, nil
}

type publishedState struct {
	Topic string
	State controller.JointState
}

type publishedCommand struct {
	Topic string
	Cmd   controller.JointGroupCommand
}

type recorder struct {
	mu       sync.Mutex
	states   []publishedState
	commands []publishedCommand
	err      error
}

func (r *recorder) PublishState(topic string, st controller.JointState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, publishedState{topic, st})
	return r.err
}

func (r *recorder) PublishCommand(topic string, cmd controller.JointGroupCommand) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, publishedCommand{topic, cmd})
	return r.err
}

func (r *recorder) stateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}

type flakyGains struct {
	failures int
	calls    int
	got      controller.MotorGains
}

func (f *flakyGains) SetMotorGains(_ context.Context, g controller.MotorGains) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("service not available")
	}
	f.got = g
	return nil
}

func (r *recorder) commandCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}
