package trajectory

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/flipping"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
)

func testModule(t *testing.T, numMotors int) config.ModuleConfig {
	t.Helper()
	motor, err := config.MotorFromName("krakenX60", numMotors)
	test.That(t, err, test.ShouldBeNil)
	return config.NewModuleConfig(0.048, 5.45, 1.2, motor.WithReduction(5.143), 60, numMotors)
}

func swerveConfig(t *testing.T) *config.RobotConfig {
	t.Helper()
	rc, err := config.NewHolonomicConfig(50, 6, testModule(t, 1),
		r2.Point{X: 0.3, Y: 0.3}, r2.Point{X: 0.3, Y: -0.3},
		r2.Point{X: -0.3, Y: 0.3}, r2.Point{X: -0.3, Y: -0.3})
	test.That(t, err, test.ShouldBeNil)
	return rc
}

func tankConfig(t *testing.T) *config.RobotConfig {
	t.Helper()
	rc, err := config.NewDifferentialConfig(50, 6, testModule(t, 2), 0.6)
	test.That(t, err, test.ShouldBeNil)
	return rc
}

func testConstraints() path.Constraints {
	return path.NewConstraints(4, 3, 2*math.Pi, 4*math.Pi, 12)
}

func straightPath(t *testing.T, params path.Params) *path.Path {
	t.Helper()
	waypoints, err := path.WaypointsFromPoses(
		spatialmath.NewPose(0, 0, spatialmath.Rotation{}),
		spatialmath.NewPose(10, 0, spatialmath.Rotation{}),
	)
	test.That(t, err, test.ShouldBeNil)
	params.Waypoints = waypoints
	params.GlobalConstraints = testConstraints()
	p, err := path.New(params)
	test.That(t, err, test.ShouldBeNil)
	return p
}

func checkTimesIncrease(t *testing.T, traj *Trajectory) {
	t.Helper()
	states := traj.States()
	for i := 1; i < len(states); i++ {
		test.That(t, states[i].Time, test.ShouldBeGreaterThan, states[i-1].Time)
	}
}

func TestStraightLineTrapezoid(t *testing.T) {
	p := straightPath(t, path.Params{})
	traj, err := Generate(p, kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, swerveConfig(t))
	test.That(t, err, test.ShouldBeNil)
	checkTimesIncrease(t, traj)

	// 1.33 s up to 4 m/s over 2.67 m, 1.17 s cruising, 1.33 s back down.
	test.That(t, traj.TotalTime(), test.ShouldAlmostEqual, 3.8333, 0.1)
	test.That(t, traj.InitialState().LinearVelocity, test.ShouldEqual, 0.)
	test.That(t, traj.EndState().LinearVelocity, test.ShouldEqual, 0.)

	states := traj.States()
	peak := 0.0
	for i := 1; i < len(states); i++ {
		prev, cur := states[i-1], states[i]
		peak = math.Max(peak, cur.LinearVelocity)
		test.That(t, cur.LinearVelocity, test.ShouldBeLessThanOrEqualTo, 4*(1+1e-6))
		dv := math.Abs(cur.LinearVelocity - prev.LinearVelocity)
		test.That(t, dv, test.ShouldBeLessThanOrEqualTo, 3*(cur.Time-prev.Time)*(1+1e-6)+1e-9)
		test.That(t, cur.Pose.Rotation.Radians(), test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, cur.FieldSpeeds.Vy, test.ShouldAlmostEqual, 0, 1e-9)
	}
	test.That(t, peak, test.ShouldAlmostEqual, 4, 1e-6)

	// Accelerating transitions push forward on every module.
	ff := states[1].Feedforwards
	test.That(t, ff.NumModules(), test.ShouldEqual, 4)
	for m := range 4 {
		test.That(t, ff.Accelerations[m], test.ShouldBeGreaterThan, 0)
		test.That(t, ff.LinearForces[m], test.ShouldBeGreaterThan, 0)
		test.That(t, ff.TorqueCurrents[m], test.ShouldBeGreaterThan, 0)
		test.That(t, ff.RobotRelativeForcesX[m], test.ShouldAlmostEqual, 50*3/4., 1)
	}
	test.That(t, traj.EndState().Feedforwards, test.ShouldResemble, ZeroFeedforwards(4))
}

func TestCornerRespectsSpeedCaps(t *testing.T) {
	p, err := path.New(path.Params{
		Waypoints: []path.Waypoint{
			{Anchor: r2.Point{}, NextControl: &r2.Point{X: 3, Y: 0}},
			{PrevControl: &r2.Point{X: 5, Y: 2}, Anchor: r2.Point{X: 5, Y: 5}},
		},
		GlobalConstraints: testConstraints(),
	})
	test.That(t, err, test.ShouldBeNil)
	traj, err := Generate(p, kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, swerveConfig(t))
	test.That(t, err, test.ShouldBeNil)
	checkTimesIncrease(t, traj)

	points := p.Points()
	states := traj.States()
	test.That(t, len(states), test.ShouldEqual, len(points))
	apex := 0
	for i := 1; i < len(points)-1; i++ {
		test.That(t, states[i].LinearVelocity, test.ShouldBeLessThanOrEqualTo, points[i].MaxV*(1+1e-6))
		if points[i].MaxV < points[apex].MaxV || apex == 0 {
			apex = i
		}
	}
	test.That(t, points[apex].MaxV, test.ShouldBeLessThan, 4)
	test.That(t, states[apex].LinearVelocity, test.ShouldBeGreaterThan, 0.95*points[apex].MaxV)
}

func TestRightAngleCorner(t *testing.T) {
	waypoints, err := path.WaypointsFromPoses(
		spatialmath.NewPose(0, 0, spatialmath.Rotation{}),
		spatialmath.NewPose(5, 0, spatialmath.NewRotationFromDegrees(45)),
		spatialmath.NewPose(5, 5, spatialmath.NewRotationFromDegrees(90)),
	)
	test.That(t, err, test.ShouldBeNil)
	p, err := path.New(path.Params{Waypoints: waypoints, GlobalConstraints: testConstraints()})
	test.That(t, err, test.ShouldBeNil)
	traj, err := Generate(p, kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, swerveConfig(t))
	test.That(t, err, test.ShouldBeNil)
	checkTimesIncrease(t, traj)

	points := p.Points()
	states := traj.States()
	test.That(t, len(states), test.ShouldEqual, len(points))
	apex := 1
	for i := 1; i < len(points)-1; i++ {
		test.That(t, states[i].LinearVelocity, test.ShouldBeLessThanOrEqualTo, points[i].MaxV*(1+1e-6))
		if points[i].MaxV < points[apex].MaxV {
			apex = i
		}
	}
	// A radius of about 2 m at a = 3 m/s² caps the corner near 2.45 m/s.
	test.That(t, points[apex].MaxV, test.ShouldBeBetween, 1.5, 3.2)
	test.That(t, points[apex].WaypointRelativePos, test.ShouldAlmostEqual, 1, 0.5)
	test.That(t, states[apex].LinearVelocity, test.ShouldBeGreaterThanOrEqualTo, 0.95*points[apex].MaxV)
}

func TestReversedDifferential(t *testing.T) {
	rc := tankConfig(t)
	forward, err := Generate(straightPath(t, path.Params{}), kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, rc)
	test.That(t, err, test.ShouldBeNil)
	reversedPath := straightPath(t, path.Params{Reversed: true})
	reversed, err := Generate(reversedPath, kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, rc)
	test.That(t, err, test.ShouldBeNil)
	checkTimesIncrease(t, reversed)

	test.That(t, reversed.TotalTime(), test.ShouldAlmostEqual, forward.TotalTime(), 1e-6)
	for i, s := range reversed.States() {
		f := forward.State(i)
		test.That(t, math.Abs(s.Pose.Rotation.Minus(f.Pose.Rotation).Degrees()), test.ShouldAlmostEqual, 180, 1e-6)
		test.That(t, s.LinearVelocity, test.ShouldBeGreaterThanOrEqualTo, 0)
		test.That(t, s.FieldSpeeds.Vx, test.ShouldAlmostEqual, f.FieldSpeeds.Vx, 1e-6)
	}
	test.That(t, math.Abs(reversedPath.StartingDifferentialPose().Rotation.Degrees()), test.ShouldAlmostEqual, 180, 1e-9)

	// Following backwards drives the wheels in reverse.
	mid := reversed.Sample(reversed.TotalTime() / 2)
	test.That(t, mid.RobotRelativeSpeeds().Vx, test.ShouldBeLessThan, 0)
	withModules := reversed.State(3)
	backwards, err := withModules.Reverse()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, backwards.LinearVelocity, test.ShouldEqual, -withModules.LinearVelocity)
	test.That(t, backwards.Feedforwards.Accelerations[0], test.ShouldEqual, -withModules.Feedforwards.Accelerations[0])
	test.That(t, backwards.ModuleStates[1].Speed, test.ShouldEqual, -withModules.ModuleStates[1].Speed)

	_, err = ZeroFeedforwards(4).Reverse()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRotationTargetsInterpolate(t *testing.T) {
	waypoints, err := path.WaypointsFromPoses(
		spatialmath.NewPose(0, 0, spatialmath.Rotation{}),
		spatialmath.NewPose(3, 0, spatialmath.Rotation{}),
		spatialmath.NewPose(6, 0, spatialmath.Rotation{}),
	)
	test.That(t, err, test.ShouldBeNil)
	p, err := path.New(path.Params{
		Waypoints: waypoints,
		RotationTargets: []path.RotationTarget{
			{Position: 0, Rotation: spatialmath.Rotation{}},
			{Position: 1, Rotation: spatialmath.NewRotationFromDegrees(90)},
			{Position: 2, Rotation: spatialmath.Rotation{}},
		},
		GlobalConstraints: testConstraints(),
	})
	test.That(t, err, test.ShouldBeNil)
	traj, err := Generate(p, kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, swerveConfig(t))
	test.That(t, err, test.ShouldBeNil)
	checkTimesIncrease(t, traj)

	points := p.Points()
	target := -1
	for i, pt := range points {
		if pt.RotationTarget != nil && pt.RotationTarget.Rotation.Degrees() > 45 {
			target = i
			break
		}
	}
	test.That(t, target, test.ShouldBeGreaterThan, 0)
	test.That(t, points[target].WaypointRelativePos, test.ShouldAlmostEqual, 1, 1e-3)

	states := traj.States()
	span := points[target].Distance
	for i := 0; i <= target; i++ {
		frac := points[i].Distance / span
		want := 90 * (1 - math.Cos(math.Pi*frac)) / 2
		test.That(t, states[i].Pose.Rotation.Degrees(), test.ShouldAlmostEqual, want, 1e-6)
	}
	test.That(t, states[target].Pose.Rotation.Degrees(), test.ShouldAlmostEqual, 90, 1e-6)
	test.That(t, traj.EndState().Pose.Rotation.Degrees(), test.ShouldAlmostEqual, 0, 1e-6)

	// The cosine warp has zero slope at the target, so the rotation barely moves next to it.
	near := math.Abs(states[target+1].Pose.Rotation.Degrees() - 90)
	mid := math.Abs(states[target/2+1].Pose.Rotation.Degrees() - states[target/2].Pose.Rotation.Degrees())
	test.That(t, near, test.ShouldBeLessThan, mid)
}

func eventLabels(traj *Trajectory) ([]string, []float64) {
	var labels []string
	var times []float64
	for _, e := range traj.Events() {
		labels = append(labels, strings.Split(e.String(), "@")[0])
		times = append(times, e.Timestamp())
	}
	return labels, times
}

func TestEventTimestamps(t *testing.T) {
	intake := commands.InstantCommand("intake", func() {})
	spinUp := commands.InstantCommand("spinUp", func() {})
	shoot := commands.InstantCommand("shoot", func() {})
	p := straightPath(t, path.Params{
		EventMarkers: []path.EventMarker{
			path.NewPointMarker("shot", 0.8, shoot),
			path.NewZonedMarker("spin", 0.3, 0.6, spinUp),
			path.NewPointMarker("intake", 0.2, intake),
		},
	})
	traj, err := Generate(p, kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, swerveConfig(t))
	test.That(t, err, test.ShouldBeNil)

	labels, times := eventLabels(traj)
	test.That(t, labels, test.ShouldResemble, []string{
		"schedule(intake)", "oneshot(intake)",
		"activate(spin)", "schedule(spinUp)",
		"cancel(spinUp)", "deactivate(spin)",
		"schedule(shoot)", "oneshot(shot)",
	})
	for _, pair := range [][2]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}} {
		test.That(t, times[pair[1]], test.ShouldEqual, times[pair[0]])
	}
	test.That(t, times[0], test.ShouldBeGreaterThan, 0)
	test.That(t, times[2], test.ShouldBeGreaterThan, times[0])
	test.That(t, times[4], test.ShouldBeGreaterThan, times[2])
	test.That(t, times[6], test.ShouldBeGreaterThan, times[4])
	test.That(t, times[6], test.ShouldBeLessThan, traj.TotalTime())

	// Every event lands on the time of a state.
	stateTimes := map[float64]bool{}
	for _, s := range traj.States() {
		stateTimes[s.Time] = true
	}
	for _, tm := range times {
		test.That(t, stateTimes[tm], test.ShouldBeTrue)
	}
}

func TestSample(t *testing.T) {
	traj, err := Generate(straightPath(t, path.Params{}), kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, swerveConfig(t))
	test.That(t, err, test.ShouldBeNil)

	for _, s := range traj.States() {
		test.That(t, traj.Sample(s.Time), test.ShouldResemble, s)
	}
	test.That(t, traj.Sample(-1), test.ShouldResemble, traj.InitialState())
	test.That(t, traj.Sample(traj.TotalTime()+1), test.ShouldResemble, traj.EndState())

	a, b := traj.State(10), traj.State(11)
	mid := traj.Sample((a.Time + b.Time) / 2)
	test.That(t, mid.Time, test.ShouldAlmostEqual, (a.Time+b.Time)/2, 1e-12)
	test.That(t, mid.Pose.X(), test.ShouldAlmostEqual, (a.Pose.X()+b.Pose.X())/2, 1e-9)
	test.That(t, mid.LinearVelocity, test.ShouldAlmostEqual, (a.LinearVelocity+b.LinearVelocity)/2, 1e-9)
	test.That(t, b.Interpolate(a, 0.5).Time, test.ShouldAlmostEqual, mid.Time, 1e-12)
}

func TestFlipIsInvolution(t *testing.T) {
	traj, err := Generate(straightPath(t, path.Params{}), kinematics.ChassisSpeeds{Vx: 1}, spatialmath.Rotation{}, swerveConfig(t))
	test.That(t, err, test.ShouldBeNil)

	for _, policy := range []flipping.Policy{
		flipping.DefaultPolicy(),
		flipping.NewPolicy(flipping.Mirrored, flipping.DefaultFieldLength, flipping.DefaultFieldWidth),
	} {
		flipped := traj.Flip(policy)
		test.That(t, flipped.TotalTime(), test.ShouldEqual, traj.TotalTime())
		test.That(t, flipped.InitialPose().X(), test.ShouldAlmostEqual, policy.FieldLength, 1e-9)
		twice := flipped.Flip(policy)
		for i, s := range traj.States() {
			back := twice.State(i)
			test.That(t, back.Pose.AlmostEqual(s.Pose, 1e-9), test.ShouldBeTrue)
			test.That(t, back.FieldSpeeds.Vx, test.ShouldAlmostEqual, s.FieldSpeeds.Vx, 1e-9)
			test.That(t, back.FieldSpeeds.Vy, test.ShouldAlmostEqual, s.FieldSpeeds.Vy, 1e-9)
			test.That(t, back.Feedforwards, test.ShouldResemble, s.Feedforwards)
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	p := straightPath(t, path.Params{})
	_, err := Generate(p, kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, errors.Is(err, config.ErrConfigNotReady), test.ShouldBeTrue)

	// Without acceleration the robot can never leave the start.
	stuck, err := path.New(path.Params{
		Waypoints:         p.Waypoints(),
		GlobalConstraints: path.NewConstraints(3, 0, 1, 1, 12),
	})
	test.That(t, err, test.ShouldBeNil)
	_, err = Generate(stuck, kinematics.ChassisSpeeds{}, spatialmath.Rotation{}, swerveConfig(t))
	test.That(t, errors.Is(err, ErrIllConditioned), test.ShouldBeTrue)
}

func TestIdealTrajectoryCache(t *testing.T) {
	rc := swerveConfig(t)
	_, err := IdealTrajectory(straightPath(t, path.Params{}), rc)
	test.That(t, errors.Is(err, ErrNoIdealStartingState), test.ShouldBeTrue)

	p := straightPath(t, path.Params{
		IdealStartingState: &path.IdealStartingState{Velocity: 1, Rotation: spatialmath.NewRotationFromDegrees(90)},
	})
	first, err := IdealTrajectory(p, rc)
	test.That(t, err, test.ShouldBeNil)
	second, err := IdealTrajectory(p, rc)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldEqual, first)

	start := first.InitialState()
	test.That(t, start.LinearVelocity, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, start.FieldSpeeds.Vx, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, start.Pose.Rotation.Degrees(), test.ShouldAlmostEqual, 90, 1e-9)

	other, err := IdealTrajectory(p, swerveConfig(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, other, test.ShouldNotEqual, first)
}

type namedParser struct{}

func (namedParser) ParseCommand(raw json.RawMessage) (commands.Command, error) {
	var cmd struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, err
	}
	return commands.InstantCommand(cmd.Data.Name, func() {}), nil
}

const choreoTraj = `{
  "name": "sweep",
  "version": 1,
  "trajectory": {
    "samples": [
      {"t": 0, "x": 1, "y": 1, "heading": 0, "vx": 0, "vy": 0, "omega": 0,
       "fx": [10, 10, 10, 10], "fy": [0, 0, 0, 0]},
      {"t": 0.5, "x": 1.5, "y": 1, "heading": 1.5707963267948966, "vx": 2, "vy": 0, "omega": 1,
       "fx": [10, 10, 10, 10], "fy": [0, 0, 0, 0]},
      {"t": 1, "x": 2, "y": 1.5, "heading": 1.5707963267948966, "vx": 0, "vy": 1, "omega": 0,
       "fx": [0, 0, 0, 0], "fy": [0, 0, 0, 0]}
    ],
    "splits": [1]
  },
  "events": [
    {"name": "shoot", "from": {"target": 1, "targetTimestamp": 0.5, "offset": {"val": 0.1}},
     "event": {"type": "named", "data": {"name": "shooter"}}},
    {"name": "marker", "from": {"target": 0, "targetTimestamp": 0, "offset": {"val": 0}}, "event": null}
  ]
}`

func TestParseChoreo(t *testing.T) {
	paths, err := ParseChoreo("sweep", strings.NewReader(choreoTraj), namedParser{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, paths.Full.IsChoreo(), test.ShouldBeTrue)
	test.That(t, paths.Full.NumPoints(), test.ShouldEqual, 3)
	test.That(t, len(paths.Splits), test.ShouldEqual, 2)
	test.That(t, paths.Splits[1].Name(), test.ShouldEqual, "sweep.1")

	full, err := IdealTrajectory(paths.Full, nil)
	test.That(t, err, test.ShouldBeNil)
	generated, err := Generate(paths.Full, kinematics.ChassisSpeeds{Vx: 3}, spatialmath.Rotation{}, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, generated, test.ShouldEqual, full)

	test.That(t, full.TotalTime(), test.ShouldEqual, 1.)
	mid := full.State(1)
	test.That(t, mid.LinearVelocity, test.ShouldAlmostEqual, 2)
	test.That(t, mid.Heading.Degrees(), test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, mid.Feedforwards.RobotRelativeForcesX[0], test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, mid.Feedforwards.RobotRelativeForcesY[0], test.ShouldAlmostEqual, -10, 1e-9)
	test.That(t, mid.Feedforwards.LinearForces[0], test.ShouldAlmostEqual, 10, 1e-9)
	test.That(t, full.EndState().Heading.Degrees(), test.ShouldAlmostEqual, 90, 1e-9)

	labels, times := eventLabels(full)
	test.That(t, labels, test.ShouldResemble, []string{"oneshot(marker)", "oneshot(shoot)", "schedule(shooter)"})
	test.That(t, times, test.ShouldHaveLength, 3)
	for i, want := range []float64{0, 0.6, 0.6} {
		test.That(t, times[i], test.ShouldAlmostEqual, want, 1e-12)
	}

	goal := paths.Full.GoalEndState()
	test.That(t, goal.Velocity, test.ShouldAlmostEqual, 1)
	test.That(t, goal.Rotation.Degrees(), test.ShouldAlmostEqual, 90, 1e-9)

	second, err := IdealTrajectory(paths.Splits[1], nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(second.States()), test.ShouldEqual, 2)
	test.That(t, second.InitialState().Time, test.ShouldEqual, 0.)
	test.That(t, second.TotalTime(), test.ShouldEqual, 0.5)
	_, times = eventLabels(second)
	test.That(t, times, test.ShouldHaveLength, 2)
	test.That(t, times[0], test.ShouldAlmostEqual, 0.1, 1e-12)
	start := paths.Splits[1].IdealStartingState()
	test.That(t, start.Velocity, test.ShouldAlmostEqual, 2)

	policy := flipping.DefaultPolicy()
	flipped, err := IdealTrajectory(FlipPath(paths.Full, policy), nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, flipped.InitialPose().X(), test.ShouldAlmostEqual, policy.FieldLength-1, 1e-9)
	test.That(t, flipped.InitialPose().Y(), test.ShouldAlmostEqual, policy.FieldWidth-1, 1e-9)
}

func TestChoreoVersion(t *testing.T) {
	_, err := ParseChoreo("future", strings.NewReader(`{"version": 2, "trajectory": {"samples": []}}`), nil)
	var versionErr *path.FileVersionError
	test.That(t, errors.As(err, &versionErr), test.ShouldBeTrue)
	test.That(t, versionErr.Version, test.ShouldEqual, "2")

	_, err = ParseChoreo("empty", strings.NewReader(`{"trajectory": {"samples": []}}`), nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "no samples")
}

func TestChoreoCache(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.MkdirAll(filepath.Join(dir, "choreo"), 0o750), test.ShouldBeNil)
	test.That(t, os.WriteFile(filepath.Join(dir, "choreo", "sweep.traj"), []byte(choreoTraj), 0o600), test.ShouldBeNil)

	loader := path.NewLoader(dir, path.FileOptions{Commands: namedParser{}}, logging.NewTestLogger(t))
	cache := NewChoreoCache(loader)

	split, err := cache.Load("sweep.1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, split.Name(), test.ShouldEqual, "sweep.1")
	full, err := cache.Load("sweep")
	test.That(t, err, test.ShouldBeNil)
	again, err := cache.LoadSplit("sweep", 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again, test.ShouldEqual, split)

	_, err = cache.LoadSplit("sweep", 5)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = cache.Load("missing")
	test.That(t, err, test.ShouldNotBeNil)

	loader.ClearCache()
	reloaded, err := cache.Load("sweep")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reloaded, test.ShouldNotEqual, full)
}
