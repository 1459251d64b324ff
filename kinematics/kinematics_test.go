package kinematics

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/pathplanner/spatialmath"
)

func squareSwerve(t *testing.T) *SwerveKinematics {
	t.Helper()
	k, err := NewSwerveKinematics(
		r2.Point{X: 0.3, Y: 0.3},
		r2.Point{X: 0.3, Y: -0.3},
		r2.Point{X: -0.3, Y: 0.3},
		r2.Point{X: -0.3, Y: -0.3},
	)
	test.That(t, err, test.ShouldBeNil)
	return k
}

func TestSwerveRoundTrip(t *testing.T) {
	k := squareSwerve(t)
	for _, speeds := range []ChassisSpeeds{
		{Vx: 1},
		{Vx: 1.5, Vy: -0.5},
		{Omega: 2},
		{Vx: -2, Vy: 1, Omega: -3},
	} {
		got := k.ToChassisSpeeds(k.ToModuleStates(speeds))
		test.That(t, got.Vx, test.ShouldAlmostEqual, speeds.Vx, 1e-9)
		test.That(t, got.Vy, test.ShouldAlmostEqual, speeds.Vy, 1e-9)
		test.That(t, got.Omega, test.ShouldAlmostEqual, speeds.Omega, 1e-9)
	}
}

func TestSwerveSpin(t *testing.T) {
	k := squareSwerve(t)
	states := k.ToModuleStates(ChassisSpeeds{Omega: 1})
	radius := math.Hypot(0.3, 0.3)
	for _, s := range states {
		test.That(t, s.Speed, test.ShouldAlmostEqual, radius, 1e-12)
	}
	// Front-left module points backward-left when spinning counter-clockwise.
	test.That(t, states[0].Angle.Degrees(), test.ShouldAlmostEqual, 135, 1e-9)

	_, err := NewSwerveKinematics(r2.Point{X: 1})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDifferential(t *testing.T) {
	k, err := NewDifferentialKinematics(0.6)
	test.That(t, err, test.ShouldBeNil)
	states := k.ToModuleStates(ChassisSpeeds{Vx: 2, Omega: 1})
	test.That(t, states[0].Speed, test.ShouldAlmostEqual, 1.7)
	test.That(t, states[1].Speed, test.ShouldAlmostEqual, 2.3)
	back := k.ToChassisSpeeds(states)
	test.That(t, back.Vx, test.ShouldAlmostEqual, 2)
	test.That(t, back.Omega, test.ShouldAlmostEqual, 1)

	_, err = NewDifferentialKinematics(0)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestForceDistribution(t *testing.T) {
	k := squareSwerve(t)
	forces := k.ChassisForcesToWheelForces(40, 0, 0)
	for _, f := range forces {
		test.That(t, f.X, test.ShouldAlmostEqual, 10)
		test.That(t, f.Y, test.ShouldAlmostEqual, 0)
	}

	// Pure torque produces tangential forces whose moments sum back to the torque.
	const torque = 12.
	forces = k.ChassisForcesToWheelForces(0, 0, torque)
	sum := 0.
	for i, f := range forces {
		sum += k.ModuleLocations()[i].Cross(f)
	}
	test.That(t, sum, test.ShouldAlmostEqual, torque, 1e-9)

	diff, err := NewDifferentialKinematics(0.5)
	test.That(t, err, test.ShouldBeNil)
	forces = diff.ChassisForcesToWheelForces(10, 0, 5)
	test.That(t, forces[0].X, test.ShouldAlmostEqual, -5, 1e-9)
	test.That(t, forces[1].X, test.ShouldAlmostEqual, 15, 1e-9)
}

func TestDesaturate(t *testing.T) {
	states := []ModuleState{{Speed: 5}, {Speed: -2.5}, {Speed: 1}}
	DesaturateWheelSpeeds(states, 4)
	test.That(t, states[0].Speed, test.ShouldAlmostEqual, 4)
	test.That(t, states[1].Speed, test.ShouldAlmostEqual, -2)
	test.That(t, states[2].Speed, test.ShouldAlmostEqual, 0.8)

	states = []ModuleState{{Speed: 3}, {Speed: 3}}
	DesaturateWheelSpeedsWithLimits(states, ChassisSpeeds{Vx: 3}, 5, 2, 10)
	test.That(t, states[0].Speed, test.ShouldAlmostEqual, 2)
}

func TestOptimizeAndSpeeds(t *testing.T) {
	state := ModuleState{Speed: 2, Angle: spatialmath.NewRotationFromDegrees(170)}
	opt := state.Optimize(spatialmath.NewRotationFromDegrees(0))
	test.That(t, opt.Speed, test.ShouldEqual, -2.)
	test.That(t, opt.Angle.Degrees(), test.ShouldAlmostEqual, -10, 1e-9)
	test.That(t, state.Optimize(spatialmath.NewRotationFromDegrees(120)).Speed, test.ShouldEqual, 2.)

	field := ChassisSpeeds{Vx: 1, Vy: 0, Omega: 0.5}
	robot := field.ToRobotRelative(spatialmath.NewRotationFromDegrees(90))
	test.That(t, robot.Vx, test.ShouldAlmostEqual, 0, 1e-12)
	test.That(t, robot.Vy, test.ShouldAlmostEqual, -1, 1e-12)
	back := robot.ToFieldRelative(spatialmath.NewRotationFromDegrees(90))
	test.That(t, back.Vx, test.ShouldAlmostEqual, 1, 1e-12)

	straight := ChassisSpeeds{Vx: 2}.Discretize(0.02)
	test.That(t, straight.Vx, test.ShouldAlmostEqual, 2, 1e-12)
	arc := ChassisSpeeds{Vx: 2, Omega: 3}.Discretize(0.02)
	test.That(t, arc.Vy, test.ShouldBeLessThan, 0)
	test.That(t, arc.Omega, test.ShouldAlmostEqual, 3, 1e-12)
}
