// Package config holds the physical model of the robot: its drive motors, swerve or differential
// modules, mass properties and controller gains.
package config

import (
	"math"

	"github.com/golang/geo/r2"
	"go.uber.org/multierr"

	"go.viam.com/pathplanner/kinematics"
)

const gravity = 9.8

// ModuleConfig describes one drive module.
type ModuleConfig struct {
	WheelRadius       float64 // m
	MaxDriveVelocity  float64 // m/s
	WheelCOF          float64
	DriveMotor        DCMotor // already geared down to the wheel
	DriveCurrentLimit float64 // A, for all motors of the module

	MaxDriveVelocityRadPerSec float64
	// TorqueLoss is the torque lost to friction in the module, estimated as the torque the motor
	// still produces at top speed.
	TorqueLoss float64
}

// NewModuleConfig builds a module config. driveMotor must already include the gear reduction and
// driveCurrentLimit is per motor.
func NewModuleConfig(
	wheelRadius, maxDriveVelocity, wheelCOF float64,
	driveMotor DCMotor,
	driveCurrentLimit float64,
	numMotors int,
) ModuleConfig {
	mc := ModuleConfig{
		WheelRadius:       wheelRadius,
		MaxDriveVelocity:  maxDriveVelocity,
		WheelCOF:          wheelCOF,
		DriveMotor:        driveMotor,
		DriveCurrentLimit: driveCurrentLimit * float64(numMotors),
	}
	mc.MaxDriveVelocityRadPerSec = maxDriveVelocity / wheelRadius
	maxSpeedCurrentDraw := driveMotor.Current(mc.MaxDriveVelocityRadPerSec, 12)
	mc.TorqueLoss = driveMotor.Torque(math.Min(maxSpeedCurrentDraw, mc.DriveCurrentLimit))
	return mc
}

// RobotConfig is the full physical model used by trajectory generation, controllers and the
// setpoint generator.
type RobotConfig struct {
	Mass            float64 // kg
	MOI             float64 // kg m^2
	Module          ModuleConfig
	ModuleLocations []r2.Point
	Holonomic       bool
	Kinematics      kinematics.Kinematics

	NumModules          int
	ModulePivotDistance []float64
	// WheelFrictionForce is the friction force available to a single wheel.
	WheelFrictionForce float64
	MaxTorqueFriction  float64
}

func validateModel(mass, moi float64, module ModuleConfig) error {
	var errs error
	for _, field := range []struct {
		name  string
		value float64
	}{
		{"mass", mass},
		{"MOI", moi},
		{"wheel radius", module.WheelRadius},
		{"max drive velocity", module.MaxDriveVelocity},
		{"wheel COF", module.WheelCOF},
		{"drive current limit", module.DriveCurrentLimit},
	} {
		if !(field.value > 0) {
			errs = multierr.Append(errs, NewInvalidConfigError(field.name, field.value))
		}
	}
	return errs
}

func newRobotConfig(mass, moi float64, module ModuleConfig, holonomic bool, kin kinematics.Kinematics) *RobotConfig {
	locations := kin.ModuleLocations()
	rc := &RobotConfig{
		Mass:                mass,
		MOI:                 moi,
		Module:              module,
		ModuleLocations:     locations,
		Holonomic:           holonomic,
		Kinematics:          kin,
		NumModules:          len(locations),
		ModulePivotDistance: make([]float64, len(locations)),
	}
	for i, loc := range locations {
		rc.ModulePivotDistance[i] = loc.Norm()
	}
	rc.WheelFrictionForce = module.WheelCOF * (mass / float64(rc.NumModules)) * gravity
	rc.MaxTorqueFriction = rc.WheelFrictionForce * module.WheelRadius
	return rc
}

// NewHolonomicConfig builds a swerve config with modules at the given robot-frame offsets, in
// the order FL, FR, BL, BR for a four module robot.
func NewHolonomicConfig(mass, moi float64, module ModuleConfig, moduleOffsets ...r2.Point) (*RobotConfig, error) {
	if err := validateModel(mass, moi, module); err != nil {
		return nil, err
	}
	kin, err := kinematics.NewSwerveKinematics(moduleOffsets...)
	if err != nil {
		return nil, err
	}
	return newRobotConfig(mass, moi, module, true, kin), nil
}

// NewDifferentialConfig builds a tank drive config.
func NewDifferentialConfig(mass, moi float64, module ModuleConfig, trackwidth float64) (*RobotConfig, error) {
	if err := validateModel(mass, moi, module); err != nil {
		return nil, err
	}
	kin, err := kinematics.NewDifferentialKinematics(trackwidth)
	if err != nil {
		return nil, err
	}
	return newRobotConfig(mass, moi, module, false, kin), nil
}

// ToChassisSpeeds converts module states to robot-relative chassis speeds.
func (rc *RobotConfig) ToChassisSpeeds(states []kinematics.ModuleState) kinematics.ChassisSpeeds {
	return rc.Kinematics.ToChassisSpeeds(states)
}

// ToModuleStates converts robot-relative chassis speeds to module states.
func (rc *RobotConfig) ToModuleStates(speeds kinematics.ChassisSpeeds) []kinematics.ModuleState {
	return rc.Kinematics.ToModuleStates(speeds)
}

// ChassisForcesToWheelForces distributes a robot-relative force and torque across the modules.
func (rc *RobotConfig) ChassisForcesToWheelForces(forceX, forceY, torque float64) []r2.Point {
	return rc.Kinematics.ChassisForcesToWheelForces(forceX, forceY, torque)
}

// DriveBaseRadius is the distance from the robot center to the furthest module.
func (rc *RobotConfig) DriveBaseRadius() float64 {
	radius := 0.0
	for _, d := range rc.ModulePivotDistance {
		radius = math.Max(radius, d)
	}
	return radius
}

// MaxCentripetalSpeed is the fastest a module can travel around a curve of the given radius
// before its wheel slips.
func (rc *RobotConfig) MaxCentripetalSpeed(radius float64) float64 {
	return math.Sqrt((rc.WheelFrictionForce * math.Abs(radius)) / (rc.Mass / float64(rc.NumModules)))
}
