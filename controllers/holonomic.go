package controllers

import (
	"math"

	"github.com/golang/geo/r2"
	"go.uber.org/atomic"

	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/control"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
	"go.viam.com/pathplanner/utils"
)

// RotationOverride returns the rotation to target instead of the trajectory's, or false to keep
// the trajectory's.
type RotationOverride func() (spatialmath.Rotation, bool)

// FeedbackOverride returns the feedback to use for one axis instead of the controller's.
type FeedbackOverride func() float64

var (
	rotationTargetOverride atomic.Pointer[RotationOverride]
	xFeedbackOverride      atomic.Pointer[FeedbackOverride]
	yFeedbackOverride      atomic.Pointer[FeedbackOverride]
	rotFeedbackOverride    atomic.Pointer[FeedbackOverride]
)

// SetRotationTargetOverride replaces the rotation target of every holonomic controller while
// override reports true. A nil override clears it.
func SetRotationTargetOverride(override RotationOverride) {
	if override == nil {
		rotationTargetOverride.Store(nil)
		return
	}
	rotationTargetOverride.Store(&override)
}

// OverrideXFeedback replaces the field-relative X feedback, in m/s.
func OverrideXFeedback(override FeedbackOverride) {
	xFeedbackOverride.Store(&override)
}

// OverrideYFeedback replaces the field-relative Y feedback, in m/s.
func OverrideYFeedback(override FeedbackOverride) {
	yFeedbackOverride.Store(&override)
}

// OverrideRotationFeedback replaces the rotation feedback, in rad/s.
func OverrideRotationFeedback(override FeedbackOverride) {
	rotFeedbackOverride.Store(&override)
}

// ClearFeedbackOverrides returns every axis to feedback computed from the following error.
func ClearFeedbackOverrides() {
	xFeedbackOverride.Store(nil)
	yFeedbackOverride.Store(nil)
	rotFeedbackOverride.Store(nil)
}

func overridden(p *atomic.Pointer[FeedbackOverride], feedback float64) float64 {
	if f := p.Load(); f != nil && *f != nil {
		return (*f)()
	}
	return feedback
}

// HolonomicController follows trajectories on a swerve drive. Translation uses a PID controller
// per field axis. Rotation uses a profiled PID whose speed is limited to what the modules have
// left after translating.
type HolonomicController struct {
	x, y     *control.PID
	rotation *control.ProfiledPID

	maxModuleSpeed  float64
	driveBaseRadius float64

	enabled          atomic.Bool
	translationError r2.Point
}

// NewHolonomicController returns a controller run every period seconds for the robot described
// by rc.
func NewHolonomicController(translation, rotation config.PIDConstants, period float64, rc *config.RobotConfig) *HolonomicController {
	newAxis := func() *control.PID {
		pid := control.NewPID(translation, period)
		pid.SetIntegratorRange(-translation.IZone, translation.IZone)
		return pid
	}
	rot := control.NewProfiledPID(rotation, control.ProfileConstraints{}, period)
	rot.SetIntegratorRange(-rotation.IZone, rotation.IZone)
	rot.EnableContinuousInput(-math.Pi, math.Pi)

	c := &HolonomicController{
		x:               newAxis(),
		y:               newAxis(),
		rotation:        rot,
		maxModuleSpeed:  rc.Module.MaxDriveVelocity,
		driveBaseRadius: rc.DriveBaseRadius(),
	}
	c.enabled.Store(true)
	return c
}

// SetEnabled turns feedback on or off. A disabled controller only passes the translation
// feedforward through.
func (c *HolonomicController) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// Reset implements Controller.
func (c *HolonomicController) Reset(pose spatialmath.Pose, speeds kinematics.ChassisSpeeds) {
	c.x.Reset()
	c.y.Reset()
	c.rotation.Reset(pose.Rotation.Radians(), speeds.Omega)
}

// Calculate implements Controller.
func (c *HolonomicController) Calculate(pose spatialmath.Pose, target trajectory.State) kinematics.ChassisSpeeds {
	xFF := target.LinearVelocity * target.Heading.Cos()
	yFF := target.LinearVelocity * target.Heading.Sin()
	c.translationError = pose.Translation.Sub(target.Pose.Translation)

	if !c.enabled.Load() {
		return kinematics.ChassisSpeeds{Vx: xFF, Vy: yFF}.ToRobotRelative(pose.Rotation)
	}

	xFeedback := c.x.Calculate(pose.X(), target.Pose.X())
	yFeedback := c.y.Calculate(pose.Y(), target.Pose.Y())

	maxAngVel := target.Constraints.MaxAngularVelocity
	if utils.IsFinite(maxAngVel) && c.driveBaseRadius > 0 {
		// Module speed left over after translating, as a rotation rate.
		moduleAngVel := math.Max(0, c.maxModuleSpeed-target.LinearVelocity) / c.driveBaseRadius
		maxAngVel = math.Min(maxAngVel, moduleAngVel)
	}
	c.rotation.SetConstraints(control.ProfileConstraints{
		MaxVelocity:     maxAngVel,
		MaxAcceleration: target.Constraints.MaxAngularAcceleration,
	})

	targetRotation := target.Pose.Rotation
	if override := rotationTargetOverride.Load(); override != nil && *override != nil {
		if rot, ok := (*override)(); ok {
			targetRotation = rot
		}
	}
	rotFeedback := c.rotation.Calculate(pose.Rotation.Radians(), control.ProfileState{Position: targetRotation.Radians()})
	rotFF := c.rotation.Setpoint().Velocity

	xFeedback = overridden(&xFeedbackOverride, xFeedback)
	yFeedback = overridden(&yFeedbackOverride, yFeedback)
	rotFeedback = overridden(&rotFeedbackOverride, rotFeedback)

	return kinematics.ChassisSpeeds{
		Vx:    xFF + xFeedback,
		Vy:    yFF + yFeedback,
		Omega: rotFF + rotFeedback,
	}.ToRobotRelative(pose.Rotation)
}

// PositionalError implements Controller.
func (c *HolonomicController) PositionalError() float64 {
	return c.translationError.Norm()
}

// IsHolonomic implements Controller.
func (c *HolonomicController) IsHolonomic() bool {
	return true
}
