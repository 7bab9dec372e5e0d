// Package controller runs the turret tracking loop.
//
// Each cycle looks up the pan, tilt, aim and target frames, turns the
// Cartesian aim error into a correction velocity, solves the differential
// kinematics for joint rates, clamps the aim joint and integrates the joint
// estimate. Joint states are published every cycle; the pan/tilt rate
// command only when the solve succeeded.
//
// Collaborators are injected:
//
//	ctrl, err := controller.New(cfg, poses, commands, states, logger)
//	go ctrl.Run(ctx)
//
// A Controller is driven by a single goroutine and is not safe for
// concurrent use. Only the [PoseSource] is expected to be shared.
package controller
