// Package controllers turns sampled trajectory states into robot-relative speed commands. The
// holonomic controller drives swerve robots; Ramsete and LTV unicycle controllers drive
// differential robots.
package controllers

import (
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
)

// DefaultPeriod is the nominal control loop period in seconds.
const DefaultPeriod = 0.02

// Controller follows a trajectory one control period at a time.
type Controller interface {
	// Reset prepares the controller to follow a new trajectory from the current robot state.
	Reset(pose spatialmath.Pose, speeds kinematics.ChassisSpeeds)
	// Calculate returns robot-relative speeds driving pose toward target.
	Calculate(pose spatialmath.Pose, target trajectory.State) kinematics.ChassisSpeeds
	// PositionalError is the distance between the robot and the last target, in meters.
	PositionalError() float64
	IsHolonomic() bool
}
