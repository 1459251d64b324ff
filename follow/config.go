// Package follow provides the commands that drive a robot along paths: following a pre-built path,
// pathfinding to a pose or to the start of a path, and both in sequence.
package follow

import (
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/controllers"
	"go.viam.com/pathplanner/events"
	"go.viam.com/pathplanner/flipping"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/telemetry"
	"go.viam.com/pathplanner/trajectory"
)

// Drivetrain is the robot being driven.
type Drivetrain interface {
	// Pose is the field-relative pose of the robot.
	Pose() spatialmath.Pose
	// RobotRelativeSpeeds are the measured speeds of the robot in its own frame.
	RobotRelativeSpeeds() kinematics.ChassisSpeeds
	// Drive applies robot-relative speeds with the wheel feedforwards of the current target.
	Drive(speeds kinematics.ChassisSpeeds, feedforwards trajectory.DriveFeedforwards)
}

// Config is what every following command needs to know about the robot.
type Config struct {
	Drivetrain Drivetrain
	Controller controllers.Controller
	Robot      *config.RobotConfig
	// Requirements name the subsystems driven by the command, usually just the drive.
	Requirements []string

	// ShouldFlip reports whether paths should be driven from the other half of the field. Nil
	// never flips.
	ShouldFlip func() bool
	Flipping   flipping.Policy

	// Events is shared by the schedulers of every command. Nil gets a private context.
	Events    *events.Context
	Telemetry telemetry.Publisher
	Clock     clock.Clock
	Logger    logging.Logger
}

// Validate checks that the required fields are set.
func (c *Config) Validate() error {
	var errs error
	if c.Drivetrain == nil {
		errs = multierr.Append(errs, errors.New("follow config needs a drivetrain"))
	}
	if c.Controller == nil {
		errs = multierr.Append(errs, errors.New("follow config needs a controller"))
	}
	if c.Robot == nil {
		errs = multierr.Append(errs, config.NewConfigNotReadyError("robot config"))
	}
	return errs
}

// WithDefaults returns a copy of c with unset optional fields filled in.
func (c Config) WithDefaults() Config {
	if c.ShouldFlip == nil {
		c.ShouldFlip = func() bool { return false }
	}
	if c.Flipping == (flipping.Policy{}) {
		c.Flipping = flipping.DefaultPolicy()
	}
	if c.Events == nil {
		c.Events = events.NewContext()
	}
	if c.Telemetry == nil {
		c.Telemetry = telemetry.NewNoopPublisher()
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = logging.NewLogger("follow")
	}
	return c
}

func (c *Config) stop() {
	c.Drivetrain.Drive(kinematics.ChassisSpeeds{}, trajectory.ZeroFeedforwards(c.Robot.NumModules))
}

func (c *Config) publish(
	pose spatialmath.Pose,
	speeds kinematics.ChassisSpeeds,
	target trajectory.State,
	output kinematics.ChassisSpeeds,
) {
	c.Telemetry.SetCurrentPose(pose)
	c.Telemetry.SetTargetPose(target.Pose)
	c.Telemetry.SetVelocities(speeds.LinearSpeed(), target.LinearVelocity, speeds.Omega, output.Omega)
	c.Telemetry.SetPathInaccuracy(c.Controller.PositionalError())
	if err := c.Telemetry.Flush(); err != nil {
		c.Logger.Debugw("cannot publish telemetry", "error", err)
	}
}
