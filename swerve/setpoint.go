// Package swerve limits commanded swerve speeds, one control period at a time, to what the modules
// can physically reach: steering rate, wheel torque and wheel friction.
package swerve

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
)

const (
	epsilon = 1e-6
	// DefaultBrownoutVoltage is the lowest input voltage the drive is assumed to see.
	DefaultBrownoutVoltage = 6.75
	nominalVoltage         = 12.0
)

var halfTurn = spatialmath.NewRotation(math.Pi)

// Setpoint is the commanded motion of a swerve drive for one period.
type Setpoint struct {
	RobotRelativeSpeeds kinematics.ChassisSpeeds
	ModuleStates        []kinematics.ModuleState
	Feedforwards        trajectory.DriveFeedforwards
}

// RestingSetpoint is a stopped robot with every module at angle zero.
func RestingSetpoint(numModules int) Setpoint {
	return Setpoint{
		ModuleStates: make([]kinematics.ModuleState, numModules),
		Feedforwards: trajectory.ZeroFeedforwards(numModules),
	}
}

// SetpointGenerator produces setpoints that converge on a desired speed as fast as the robot
// allows.
type SetpointGenerator struct {
	config           *config.RobotConfig
	maxSteerVelocity float64
	brownoutVoltage  float64
}

// NewSetpointGenerator returns a generator for a holonomic robot whose modules steer at up to
// maxSteerVelocity rad/s.
func NewSetpointGenerator(rc *config.RobotConfig, maxSteerVelocity float64) (*SetpointGenerator, error) {
	if rc == nil {
		return nil, config.NewConfigNotReadyError("robot config")
	}
	if !rc.Holonomic {
		return nil, errors.New("setpoint generation requires a holonomic robot")
	}
	if !(maxSteerVelocity > 0) {
		return nil, errors.Errorf("max steer velocity must be positive, got %v", maxSteerVelocity)
	}
	return &SetpointGenerator{config: rc, maxSteerVelocity: maxSteerVelocity, brownoutVoltage: DefaultBrownoutVoltage}, nil
}

// SetBrownoutVoltage changes the lowest input voltage assumed by GenerateSetpointWithLimits.
func (g *SetpointGenerator) SetBrownoutVoltage(volts float64) {
	g.brownoutVoltage = volts
}

// GenerateSetpoint limits desired at the nominal voltage with no extra constraints.
func (g *SetpointGenerator) GenerateSetpoint(prev Setpoint, desired kinematics.ChassisSpeeds, dt float64) Setpoint {
	return g.GenerateSetpointWithLimits(prev, desired, dt, nominalVoltage, nil)
}

// GenerateSetpointWithLimits returns the setpoint following prev that moves toward the
// robot-relative desired speeds as far as possible within dt. Speeds must not be discretized by
// the caller. A NaN inputVoltage is treated as nominal; constraints may be nil.
func (g *SetpointGenerator) GenerateSetpointWithLimits(
	prev Setpoint,
	desired kinematics.ChassisSpeeds,
	dt, inputVoltage float64,
	constraints *path.Constraints,
) Setpoint {
	rc := g.config
	n := rc.NumModules

	if math.IsNaN(inputVoltage) {
		inputVoltage = nominalVoltage
	} else {
		inputVoltage = math.Max(inputVoltage, g.brownoutVoltage)
	}
	maxSpeed := rc.Module.MaxDriveVelocity * math.Min(1, inputVoltage/nominalVoltage)

	if constraints != nil {
		vel := r2.Point{X: desired.Vx, Y: desired.Vy}
		if linear := vel.Norm(); linear > constraints.MaxVelocity {
			vel = vel.Mul(constraints.MaxVelocity / linear)
		}
		desired = kinematics.ChassisSpeeds{
			Vx:    vel.X,
			Vy:    vel.Y,
			Omega: math.Max(math.Min(desired.Omega, constraints.MaxAngularVelocity), -constraints.MaxAngularVelocity),
		}
	}

	desiredStates := rc.ToModuleStates(desired)
	kinematics.DesaturateWheelSpeeds(desiredStates, maxSpeed)
	desired = rc.ToChassisSpeeds(desiredStates)

	// A full stop leaves the module angles arbitrary, so keep the previous ones.
	needToSteer := true
	if speedsEqual(desired, kinematics.ChassisSpeeds{}) {
		needToSteer = false
		for m := range desiredStates {
			desiredStates[m] = kinematics.ModuleState{Angle: prev.ModuleStates[m].Angle}
		}
	}

	prevVx, prevVy := make([]float64, n), make([]float64, n)
	desiredVx, desiredVy := make([]float64, n), make([]float64, n)
	prevHeading, desiredHeading := make([]spatialmath.Rotation, n), make([]spatialmath.Rotation, n)
	allModulesShouldFlip := true
	for m := range n {
		p, d := prev.ModuleStates[m], desiredStates[m]
		prevVx[m], prevVy[m] = p.Angle.Cos()*p.Speed, p.Angle.Sin()*p.Speed
		prevHeading[m] = p.Angle
		if p.Speed < 0 {
			prevHeading[m] = prevHeading[m].Plus(halfTurn)
		}
		desiredVx[m], desiredVy[m] = d.Angle.Cos()*d.Speed, d.Angle.Sin()*d.Speed
		desiredHeading[m] = d.Angle
		if d.Speed < 0 {
			desiredHeading[m] = desiredHeading[m].Plus(halfTurn)
		}
		if allModulesShouldFlip && math.Abs(desiredHeading[m].Minus(prevHeading[m]).Radians()) < math.Pi/2 {
			allModulesShouldFlip = false
		}
	}
	if allModulesShouldFlip &&
		!speedsEqual(prev.RobotRelativeSpeeds, kinematics.ChassisSpeeds{}) &&
		!speedsEqual(desired, kinematics.ChassisSpeeds{}) {
		// Stopping, turning in place and accelerating again is faster than turning every module
		// around while moving.
		return g.GenerateSetpointWithLimits(prev, kinematics.ChassisSpeeds{}, dt, inputVoltage, constraints)
	}

	delta := desired.Minus(prev.RobotRelativeSpeeds)

	// s interpolates from prev (0) to desired (1).
	minS := 1.0

	// Steering angles for modules whose inverse kinematics leave the angle free.
	overrideSteering := make([]*spatialmath.Rotation, n)
	for m := range n {
		p, d := prev.ModuleStates[m], desiredStates[m]
		if !needToSteer {
			overrideSteering[m] = &p.Angle
			continue
		}

		maxThetaStep := dt * g.maxSteerVelocity
		if epsilonEquals(p.Speed, 0) {
			// A stopped module steers in place.
			if epsilonEquals(d.Speed, 0) {
				overrideSteering[m] = &p.Angle
				continue
			}
			necessary := d.Angle.Minus(p.Angle)
			if flipHeading(necessary) {
				necessary = necessary.Plus(halfTurn)
			}
			if math.Abs(necessary.Radians())/maxThetaStep <= 1 {
				overrideSteering[m] = &d.Angle
			} else {
				step := p.Angle.Plus(spatialmath.NewRotation(signum(necessary.Radians()) * maxThetaStep))
				overrideSteering[m] = &step
				minS = 0
			}
			continue
		}
		if minS == 0 {
			continue
		}

		// Turning faster than this would need more centripetal force than the wheel's friction.
		maxHeadingChange := dt * rc.WheelFrictionForce / ((rc.Mass / float64(n)) * math.Abs(p.Speed))
		maxThetaStep = math.Min(maxThetaStep, maxHeadingChange)

		s := findSteeringMaxS(prevVx[m], prevVy[m], prevHeading[m].Radians(),
			desiredVx[m], desiredVy[m], desiredHeading[m].Radians(), maxThetaStep)
		minS = math.Min(minS, s)
	}

	chassisAccel := g.chassisAcceleration(prev, desiredStates, inputVoltage)
	if constraints != nil {
		linear := math.Hypot(chassisAccel.Vx, chassisAccel.Vy)
		if linear > constraints.MaxAcceleration {
			chassisAccel.Vx *= constraints.MaxAcceleration / linear
			chassisAccel.Vy *= constraints.MaxAcceleration / linear
		}
		chassisAccel.Omega = math.Max(math.Min(chassisAccel.Omega, constraints.MaxAngularAcceleration),
			-constraints.MaxAngularAcceleration)
	}
	accelStates := rc.ToModuleStates(chassisAccel)

	for m := range n {
		if minS == 0 {
			break
		}
		maxVelStep := math.Abs(accelStates[m].Speed * dt)
		vxMinS, vyMinS := desiredVx[m], desiredVy[m]
		if minS != 1 {
			vxMinS = (desiredVx[m]-prevVx[m])*minS + prevVx[m]
			vyMinS = (desiredVy[m]-prevVy[m])*minS + prevVy[m]
		}
		// The drive limit can only lower s further.
		minS = math.Min(minS, findDriveMaxS(prevVx[m], prevVy[m], vxMinS, vyMinS, maxVelStep))
	}

	speeds := prev.RobotRelativeSpeeds.Plus(delta.Times(minS)).Discretize(dt)
	return g.finish(prev, speeds, overrideSteering, dt)
}

// chassisAcceleration is the acceleration available from every module pushing as hard as its
// motor and friction allow toward its desired speed.
func (g *SetpointGenerator) chassisAcceleration(
	prev Setpoint,
	desiredStates []kinematics.ModuleState,
	inputVoltage float64,
) kinematics.ChassisSpeeds {
	rc := g.config
	module := rc.Module

	var force r2.Point
	torque := 0.0
	for m := range rc.NumModules {
		p := prev.ModuleStates[m]
		lastVelRadPerSec := math.Abs(p.Speed / module.WheelRadius)
		currentDraw := clampCurrent(module.DriveMotor.Current(lastVelRadPerSec, inputVoltage), module.DriveCurrentLimit)
		reverseCurrentDraw := clampCurrent(math.Abs(module.DriveMotor.Current(lastVelRadPerSec, -inputVoltage)), module.DriveCurrentLimit)

		desiredStates[m] = desiredStates[m].Optimize(p.Angle)
		desiredSpeed := desiredStates[m].Speed

		var moduleTorque, forceSign float64
		forceAngle := p.Angle
		if epsilonEquals(p.Speed, 0) || (p.Speed > 0 && desiredSpeed >= p.Speed) || (p.Speed < 0 && desiredSpeed <= p.Speed) {
			// Friction in the module fights the motor.
			moduleTorque = module.DriveMotor.Torque(currentDraw) - module.TorqueLoss
			forceSign = 1
			if p.Speed < 0 {
				forceAngle = forceAngle.Plus(halfTurn)
			}
		} else {
			// Friction in the module helps the motor.
			moduleTorque = module.DriveMotor.Torque(reverseCurrentDraw) + module.TorqueLoss
			forceSign = -1
			if p.Speed > 0 {
				forceAngle = forceAngle.Plus(halfTurn)
			}
		}
		moduleTorque = math.Min(moduleTorque, rc.MaxTorqueFriction)

		forceAtCarpet := moduleTorque / module.WheelRadius
		moduleForce := spatialmath.PolarPoint(forceAtCarpet*forceSign, forceAngle)
		force = force.Add(moduleForce)

		if !epsilonEquals(0, moduleForce.Norm()) {
			theta := spatialmath.AngleOf(moduleForce).Minus(spatialmath.AngleOf(rc.ModuleLocations[m]))
			torque += forceAtCarpet * rc.ModulePivotDistance[m] * theta.Sin()
		}
	}
	return kinematics.ChassisSpeeds{
		Vx:    force.X / rc.Mass,
		Vy:    force.Y / rc.Mass,
		Omega: torque / rc.MOI,
	}
}

// finish converts speeds back to module states and feedforwards, steering each module the short
// way from its previous angle.
func (g *SetpointGenerator) finish(
	prev Setpoint,
	speeds kinematics.ChassisSpeeds,
	overrideSteering []*spatialmath.Rotation,
	dt float64,
) Setpoint {
	rc := g.config
	n := rc.NumModules

	chassisAccel := speeds.Minus(prev.RobotRelativeSpeeds).Times(1 / dt)
	wheelForces := rc.ChassisForcesToWheelForces(chassisAccel.Vx*rc.Mass, chassisAccel.Vy*rc.Mass, chassisAccel.Omega*rc.MOI)

	states := rc.ToModuleStates(speeds)
	ff := trajectory.ZeroFeedforwards(n)
	for m := range n {
		wheelForce := wheelForces[m]
		appliedForce := 0.0
		if dist := wheelForce.Norm(); dist > 1e-6 {
			appliedForce = dist * spatialmath.AngleOf(wheelForce).Minus(states[m].Angle).Cos()
		}
		torqueCurrent := rc.Module.DriveMotor.CurrentForTorque(appliedForce * rc.Module.WheelRadius)

		if override := overrideSteering[m]; override != nil {
			if flipHeading(override.Minus(states[m].Angle)) {
				states[m].Speed *= -1
				appliedForce *= -1
				torqueCurrent *= -1
			}
			states[m].Angle = *override
		}
		if flipHeading(states[m].Angle.Minus(prev.ModuleStates[m].Angle)) {
			states[m].Angle = states[m].Angle.Plus(halfTurn)
			states[m].Speed *= -1
			appliedForce *= -1
			torqueCurrent *= -1
		}

		ff.Accelerations[m] = (states[m].Speed - prev.ModuleStates[m].Speed) / dt
		ff.LinearForces[m] = appliedForce
		ff.TorqueCurrents[m] = torqueCurrent
		ff.RobotRelativeForcesX[m] = wheelForce.X
		ff.RobotRelativeForcesY[m] = wheelForce.Y
	}
	return Setpoint{RobotRelativeSpeeds: speeds, ModuleStates: states, Feedforwards: ff}
}

func clampCurrent(current, limit float64) float64 {
	return math.Max(math.Min(current, limit), 0)
}

// flipHeading reports whether reaching a steer change is shorter by reversing the wheel instead.
func flipHeading(prevToGoal spatialmath.Rotation) bool {
	return math.Abs(prevToGoal.Radians()) > math.Pi/2
}

func unwrapAngle(ref, angle float64) float64 {
	switch diff := angle - ref; {
	case diff > math.Pi:
		return angle - 2*math.Pi
	case diff < -math.Pi:
		return angle + 2*math.Pi
	default:
		return angle
	}
}

// findSteeringMaxS returns the largest s for which the heading of the velocity interpolated from
// (x0, y0) to (x1, y1) is within maxDeviation of theta0.
func findSteeringMaxS(x0, y0, theta0, x1, y1, theta1, maxDeviation float64) float64 {
	theta1 = unwrapAngle(theta0, theta1)
	diff := theta1 - theta0
	if math.Abs(diff) <= maxDeviation {
		return 1
	}
	target := theta0 + math.Copysign(maxDeviation, diff)

	// With the target along +X, the Y components of both velocities are proportional to their
	// distances from the solution.
	sin, cos := math.Sin(-target), math.Cos(-target)
	h0 := sin*x0 + cos*y0
	h1 := sin*x1 + cos*y1
	if math.Abs(h0-h1) < epsilon {
		return 1
	}
	return h0 / (h0 - h1)
}

// findDriveMaxS returns the largest s for which the speed interpolated from (x0, y0) to (x1, y1)
// changes by at most maxVelStep.
func findDriveMaxS(x0, y0, x1, y1, maxVelStep float64) float64 {
	l0 := x0*x0 + y0*y0
	l1 := x1*x1 + y1*y1
	sqrtL0 := math.Sqrt(l0)
	diff := math.Sqrt(l1) - sqrtL0
	if math.Abs(diff) <= maxVelStep {
		return 1
	}
	target := sqrtL0 + math.Copysign(maxVelStep, diff)
	p := x0*x1 + y0*y1

	// |P(s)|² = target², quadratic in s.
	a := l0 + l1 - 2*p
	b := 2 * (p - l0)
	c := l0 - target*target
	root := math.Sqrt(b*b - 4*a*c)

	valid := func(s float64) bool { return !math.IsNaN(s) && !math.IsInf(s, 0) && s >= 0 && s <= 1 }
	if a != 0 {
		if s := (-b + root) / (2 * a); valid(s) {
			return s
		}
		if s := (-b - root) / (2 * a); valid(s) {
			return s
		}
	}
	return 1
}

func epsilonEquals(a, b float64) bool {
	return a-epsilon <= b && a+epsilon >= b
}

func speedsEqual(a, b kinematics.ChassisSpeeds) bool {
	return epsilonEquals(a.Vx, b.Vx) && epsilonEquals(a.Vy, b.Vy) && epsilonEquals(a.Omega, b.Omega)
}

func signum(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
