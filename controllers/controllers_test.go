package controllers

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
)

func swerveConfig(t *testing.T) *config.RobotConfig {
	t.Helper()
	motor, err := config.MotorFromName("krakenX60", 1)
	test.That(t, err, test.ShouldBeNil)
	module := config.NewModuleConfig(0.048, 5.45, 1.2, motor.WithReduction(5.143), 60, 1)
	rc, err := config.NewHolonomicConfig(50, 6, module,
		r2.Point{X: 0.3, Y: 0.3}, r2.Point{X: 0.3, Y: -0.3},
		r2.Point{X: -0.3, Y: 0.3}, r2.Point{X: -0.3, Y: -0.3})
	test.That(t, err, test.ShouldBeNil)
	return rc
}

func targetState(x, y float64, rot spatialmath.Rotation, v, omega float64) trajectory.State {
	return trajectory.State{
		Pose:           spatialmath.NewPose(x, y, rot),
		LinearVelocity: v,
		FieldSpeeds:    kinematics.ChassisSpeeds{Vx: v, Omega: omega},
		Constraints:    path.NewConstraints(4, 3, 2*math.Pi, 4*math.Pi, 12),
	}
}

func TestHolonomicFeedforwardAndFeedback(t *testing.T) {
	translation := config.NewPIDConstants(5, 0, 0)
	rotation := config.NewPIDConstants(5, 0, 0)
	c := NewHolonomicController(translation, rotation, DefaultPeriod, swerveConfig(t))
	test.That(t, c.IsHolonomic(), test.ShouldBeTrue)

	robot := spatialmath.NewPose(1, 0, spatialmath.Rotation{})
	c.Reset(robot, kinematics.ChassisSpeeds{})

	// On target: pure feedforward.
	out := c.Calculate(robot, targetState(1, 0, spatialmath.Rotation{}, 2, 0))
	test.That(t, out.Vx, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, out.Vy, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, out.Omega, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, c.PositionalError(), test.ShouldAlmostEqual, 0)

	// Behind and to the right of the target.
	out = c.Calculate(robot, targetState(1.1, 0.2, spatialmath.Rotation{}, 2, 0))
	test.That(t, out.Vx, test.ShouldAlmostEqual, 2.5, 1e-9)
	test.That(t, out.Vy, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, c.PositionalError(), test.ShouldAlmostEqual, math.Hypot(0.1, 0.2), 1e-9)

	// Field-relative output is rotated into the robot frame.
	facingLeft := spatialmath.NewPose(1, 0, spatialmath.NewRotationFromDegrees(90))
	c.Reset(facingLeft, kinematics.ChassisSpeeds{})
	out = c.Calculate(facingLeft, targetState(1, 0, spatialmath.NewRotationFromDegrees(90), 2, 0))
	test.That(t, out.Vx, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, out.Vy, test.ShouldAlmostEqual, -2, 1e-9)
}

func TestHolonomicRotationProfile(t *testing.T) {
	c := NewHolonomicController(config.NewPIDConstants(0, 0, 0), config.NewPIDConstants(1, 0, 0), DefaultPeriod, swerveConfig(t))
	robot := spatialmath.NewPose(0, 0, spatialmath.Rotation{})
	c.Reset(robot, kinematics.ChassisSpeeds{})

	target := targetState(0, 0, spatialmath.NewRotationFromDegrees(90), 0, 0)
	out := c.Calculate(robot, target)
	// The profile ramps at 4π rad/s² for one period.
	test.That(t, out.Omega, test.ShouldBeGreaterThan, 0)
	test.That(t, out.Omega, test.ShouldBeLessThan, 4*math.Pi*DefaultPeriod+1)

	// At full module speed there is nothing left to rotate with.
	c.Reset(robot, kinematics.ChassisSpeeds{})
	fast := targetState(0, 0, spatialmath.NewRotationFromDegrees(90), 5.45, 0)
	c.Calculate(robot, fast)
	test.That(t, c.rotation.Setpoint().Velocity, test.ShouldAlmostEqual, 0, 1e-9)
}

func TestHolonomicOverrides(t *testing.T) {
	c := NewHolonomicController(config.NewPIDConstants(5, 0, 0), config.NewPIDConstants(1, 0, 0), DefaultPeriod, swerveConfig(t))
	robot := spatialmath.NewPose(0, 0, spatialmath.Rotation{})
	c.Reset(robot, kinematics.ChassisSpeeds{})

	SetRotationTargetOverride(func() (spatialmath.Rotation, bool) { return spatialmath.NewRotationFromDegrees(-90), true })
	defer SetRotationTargetOverride(nil)
	out := c.Calculate(robot, targetState(0, 0, spatialmath.NewRotationFromDegrees(90), 0, 0))
	test.That(t, out.Omega, test.ShouldBeLessThan, 0)

	OverrideXFeedback(func() float64 { return 0.5 })
	OverrideRotationFeedback(func() float64 { return 0 })
	defer ClearFeedbackOverrides()
	out = c.Calculate(robot, targetState(1, 0, spatialmath.Rotation{}, 1, 0))
	test.That(t, out.Vx, test.ShouldAlmostEqual, 1.5, 1e-9)

	c.SetEnabled(false)
	out = c.Calculate(robot, targetState(1, 1, spatialmath.NewRotationFromDegrees(90), 1, 3))
	test.That(t, out.Vx, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, out.Vy, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, out.Omega, test.ShouldEqual, 0.)
}

func TestRamsete(t *testing.T) {
	c := NewDefaultRamseteController()
	test.That(t, c.IsHolonomic(), test.ShouldBeFalse)

	robot := spatialmath.NewPose(0, 0, spatialmath.Rotation{})
	out := c.Calculate(robot, targetState(0, 0, spatialmath.Rotation{}, 2, 0.5))
	test.That(t, out.Vx, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, out.Vy, test.ShouldEqual, 0.)
	test.That(t, out.Omega, test.ShouldAlmostEqual, 0.5, 1e-9)

	// Target ahead and to the left: speed up and turn left.
	out = c.Calculate(robot, targetState(0.2, 0.2, spatialmath.Rotation{}, 2, 0))
	test.That(t, out.Vx, test.ShouldBeGreaterThan, 2)
	test.That(t, out.Omega, test.ShouldBeGreaterThan, 0)
	test.That(t, c.PositionalError(), test.ShouldAlmostEqual, math.Hypot(0.2, 0.2), 1e-9)

	// Driving backwards toward a target behind the robot.
	out = c.Calculate(robot, targetState(-0.1, 0, spatialmath.Rotation{}, -1, 0))
	test.That(t, out.Vx, test.ShouldBeLessThan, -1)

	c.Reset(robot, kinematics.ChassisSpeeds{})
	test.That(t, c.PositionalError(), test.ShouldEqual, 0.)
}

func TestLTV(t *testing.T) {
	_, err := NewLTVController(DefaultPeriod, 0)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewLTVController(DefaultPeriod, 20)
	test.That(t, err, test.ShouldNotBeNil)

	c, err := NewLTVController(DefaultPeriod, 4)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.IsHolonomic(), test.ShouldBeFalse)

	robot := spatialmath.NewPose(0, 0, spatialmath.Rotation{})
	out := c.Calculate(robot, targetState(0, 0, spatialmath.Rotation{}, 2, 0.5))
	test.That(t, out.Vx, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, out.Omega, test.ShouldAlmostEqual, 0.5, 1e-9)

	out = c.Calculate(robot, targetState(0.1, 0, spatialmath.Rotation{}, 2, 0))
	test.That(t, out.Vx, test.ShouldBeGreaterThan, 2)
	out = c.Calculate(robot, targetState(0, 0.1, spatialmath.Rotation{}, 2, 0))
	test.That(t, out.Omega, test.ShouldBeGreaterThan, 0)
	out = c.Calculate(robot, targetState(0, 0, spatialmath.NewRotationFromDegrees(10), 2, 0))
	test.That(t, out.Omega, test.ShouldBeGreaterThan, 0)

	// Velocities beyond the table use its last entry.
	test.That(t, c.gain(100), test.ShouldEqual, c.gain(4))
}
