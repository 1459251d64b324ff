package auto

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/controllers"
	"go.viam.com/pathplanner/flipping"
	"go.viam.com/pathplanner/follow"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/pathfinding"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
)

const pathFile = `{
  "version": "2025.0",
  "waypoints": [
    {"anchor": {"x": 2.0, "y": 7.0}, "prevControl": null, "nextControl": {"x": 3.0, "y": 6.5}, "isLocked": false, "linkedName": null},
    {"anchor": {"x": 4.0, "y": 5.0}, "prevControl": {"x": 3.5, "y": 6.0}, "nextControl": null, "isLocked": false, "linkedName": null}
  ],
  "rotationTargets": [],
  "constraintZones": [],
  "pointTowardsZones": [],
  "eventMarkers": [
    {"name": "intake", "waypointRelativePos": 0.3, "endWaypointRelativePos": null, "command": {"type": "named", "data": {"name": "intake"}}}
  ],
  "globalConstraints": {"maxVelocity": 3.0, "maxAcceleration": 3.0, "maxAngularVelocity": 540.0, "maxAngularAcceleration": 720.0, "nominalVoltage": 12.0, "unlimited": false},
  "goalEndState": {"velocity": 0, "rotation": 180.0},
  "reversed": false,
  "folder": null,
  "idealStartingState": {"velocity": 0, "rotation": 45.0},
  "useDefaultConstraints": false
}`

const autoFile = `{
  "version": "2025.0",
  "command": {"type": "sequential", "data": {"commands": [
    {"type": "named", "data": {"name": "spinUp"}},
    {"type": "path", "data": {"pathName": "first"}},
    {"type": "parallel", "data": {"commands": [
      {"type": "wait", "data": {"waitTime": 1.5}},
      {"type": "path", "data": {"pathName": "second"}}
    ]}},
    {"type": "deadline", "data": {"commands": [
      {"type": "wait", "data": {"waitTime": 0.5}},
      {"type": "named", "data": {"name": "missing"}}
    ]}},
    {"type": "race", "data": {"commands": []}},
    {"type": "mystery", "data": {}}
  ]}},
  "resetOdom": true,
  "folder": null,
  "choreoAuto": false
}`

const choreoTraj = `{
  "name": "sweep",
  "version": 1,
  "trajectory": {
    "samples": [
      {"t": 0, "x": 1, "y": 1, "heading": 0, "vx": 0, "vy": 0, "omega": 0,
       "fx": [10, 10, 10, 10], "fy": [0, 0, 0, 0]},
      {"t": 0.5, "x": 1.5, "y": 1, "heading": 0, "vx": 2, "vy": 0, "omega": 0,
       "fx": [0, 0, 0, 0], "fy": [0, 0, 0, 0]},
      {"t": 1, "x": 2, "y": 1, "heading": 0, "vx": 0, "vy": 0, "omega": 0,
       "fx": [-10, -10, -10, -10], "fy": [0, 0, 0, 0]}
    ],
    "splits": []
  },
  "events": [
    {"name": "shoot", "from": {"target": 1, "targetTimestamp": 0.5, "offset": {"val": 0}},
     "event": {"type": "named", "data": {"name": "spinUp"}}}
  ]
}`

const choreoAutoFile = `{
  "version": "2025.0",
  "command": {"type": "sequential", "data": {"commands": [
    {"type": "path", "data": {"pathName": "sweep"}}
  ]}},
  "resetOdom": false,
  "folder": null,
  "choreoAuto": true
}`

func writeDeployDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"paths/first.path":     pathFile,
		"paths/second.path":    strings.Replace(pathFile, `"x": 4.0, "y": 5.0`, `"x": 6.0, "y": 5.0`, 1),
		"autos/example.auto":   autoFile,
		"autos/sweep.auto":     choreoAutoFile,
		"autos/notes.txt":      "not an auto",
		"choreo/sweep.traj":    choreoTraj,
		"autos/outdated.auto":  strings.Replace(autoFile, `"2025.0"`, `"2024.0"`, 1),
		"autos/emptyline.auto": `{"version": "2025.0", "command": {"type": "deadline", "data": {"commands": []}}}`,
	}
	for name, content := range files {
		full := filepath.Join(dir, name)
		test.That(t, os.MkdirAll(filepath.Dir(full), 0o750), test.ShouldBeNil)
		test.That(t, os.WriteFile(full, []byte(content), 0o600), test.ShouldBeNil)
	}
	return dir
}

type fakeDrivetrain struct{}

func (fakeDrivetrain) Pose() spatialmath.Pose {
	return spatialmath.Pose{}
}

func (fakeDrivetrain) RobotRelativeSpeeds() kinematics.ChassisSpeeds {
	return kinematics.ChassisSpeeds{}
}

func (fakeDrivetrain) Drive(kinematics.ChassisSpeeds, trajectory.DriveFeedforwards) {}

type fakePathfinder struct{}

func (fakePathfinder) IsNewPathAvailable() bool {
	return false
}

func (fakePathfinder) CurrentPath(path.Constraints, path.GoalEndState) (*path.Path, bool) {
	return nil, false
}

func (fakePathfinder) SetStartPosition(r2.Point) {}

func (fakePathfinder) SetGoalPosition(r2.Point) {}

func (fakePathfinder) SetDynamicObstacles([]pathfinding.BoundingBox, r2.Point) error {
	return nil
}

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

type harness struct {
	builder  *Builder
	registry *commands.Registry
	resets   []spatialmath.Pose
	cfg      follow.Config
}

func newHarness(t *testing.T, logger logging.Logger) *harness {
	t.Helper()
	h := &harness{registry: commands.NewRegistry(logger)}
	rc := swerveConfig(t)
	pid := config.NewPIDConstants(5, 0, 0)
	loader := path.NewLoader(writeDeployDir(t), path.FileOptions{}, logger)
	h.builder = NewBuilder(loader, h.registry, logger)
	h.cfg = follow.Config{
		Drivetrain:   fakeDrivetrain{},
		Controller:   controllers.NewHolonomicController(pid, pid, controllers.DefaultPeriod, rc),
		Robot:        rc,
		Requirements: []string{"drive"},
		Logger:       logger,
	}
	return h
}

func (h *harness) configure(t *testing.T) {
	t.Helper()
	err := h.builder.Configure(h.cfg, func(p spatialmath.Pose) { h.resets = append(h.resets, p) })
	test.That(t, err, test.ShouldBeNil)
}

func TestUnconfiguredBuilder(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t))
	test.That(t, h.builder.IsConfigured(), test.ShouldBeFalse)

	_, err := h.builder.BuildAuto("example")
	test.That(t, errors.Is(err, config.ErrConfigNotReady), test.ShouldBeTrue)
	_, err = h.builder.ResetOdom(spatialmath.Pose{})
	test.That(t, errors.Is(err, config.ErrConfigNotReady), test.ShouldBeTrue)

	// Path groups only read files.
	paths, err := h.builder.PathGroup("example")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, paths, test.ShouldHaveLength, 2)
	test.That(t, paths[0].Name(), test.ShouldEqual, "first")
	test.That(t, paths[1].Name(), test.ShouldEqual, "second")

	test.That(t, h.builder.Configure(follow.Config{}, func(spatialmath.Pose) {}), test.ShouldNotBeNil)
	test.That(t, h.builder.Configure(h.cfg, nil), test.ShouldNotBeNil)
	test.That(t, h.builder.IsConfigured(), test.ShouldBeFalse)

	h.configure(t)
	test.That(t, h.builder.IsHolonomic(), test.ShouldBeTrue)
	test.That(t, h.builder.Configure(h.cfg, func(spatialmath.Pose) {}), test.ShouldNotBeNil)
}

func TestBuildAuto(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	h := newHarness(t, logger)
	spinUp := 0
	h.registry.Register("spinUp", commands.InstantCommand("spinUp", func() { spinUp++ }, "shooter"))
	h.registry.Register("intake", commands.InstantCommand("intake", func() {}, "intake"))
	h.configure(t)

	auto, err := h.builder.BuildAuto("example")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, auto.Name(), test.ShouldEqual, "example")
	test.That(t, auto.Paths(), test.ShouldHaveLength, 2)
	test.That(t, auto.Requirements(), test.ShouldContain, "drive")
	test.That(t, auto.Requirements(), test.ShouldContain, "shooter")
	test.That(t, auto.Requirements(), test.ShouldContain, "intake")

	start := auto.StartingPose()
	test.That(t, start.Translation, test.ShouldResemble, r2.Point{X: 2, Y: 7})
	test.That(t, start.Rotation.Degrees(), test.ShouldAlmostEqual, 45, 1e-9)

	test.That(t, logs.FilterMessage("auto uses unregistered named commands").Len(), test.ShouldEqual, 1)
	// The missing named command and the unknown command type.
	test.That(t, logs.FilterMessage("substituting a no-op command").Len(), test.ShouldEqual, 2)

	// Odometry is reset before the first command runs.
	auto.Initialize()
	test.That(t, h.resets, test.ShouldHaveLength, 1)
	test.That(t, h.resets[0], test.ShouldResemble, start)
	auto.Execute()
	test.That(t, spinUp, test.ShouldEqual, 1)
	test.That(t, auto.IsFinished(), test.ShouldBeFalse)
	auto.End(true)
}

func TestBuildAutoErrors(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t))
	h.configure(t)

	_, err := h.builder.BuildAuto("outdated")
	var versionErr *path.FileVersionError
	test.That(t, errors.As(err, &versionErr), test.ShouldBeTrue)

	_, err = h.builder.BuildAuto("emptyline")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "deadline")

	_, err = h.builder.BuildAuto("nonexistent")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestChoreoAuto(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t))
	h.registry.Register("spinUp", commands.InstantCommand("spinUp", func() {}, "shooter"))
	h.configure(t)

	auto, err := h.builder.BuildAuto("sweep")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, auto.Paths(), test.ShouldHaveLength, 1)
	test.That(t, auto.Paths()[0].IsChoreo(), test.ShouldBeTrue)
	test.That(t, auto.StartingPose().Translation, test.ShouldResemble, r2.Point{X: 1, Y: 1})

	// Without resetOdom the odometry is left alone.
	auto.Initialize()
	test.That(t, h.resets, test.ShouldBeEmpty)
	auto.End(true)
}

func TestResetOdomFlips(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t))
	flip := false
	h.cfg.ShouldFlip = func() bool { return flip }
	h.configure(t)

	pose := spatialmath.NewPose(2, 3, spatialmath.NewRotationFromDegrees(10))
	reset, err := h.builder.ResetOdom(pose)
	test.That(t, err, test.ShouldBeNil)
	reset.Initialize()
	flip = true
	reset.Initialize()

	test.That(t, h.resets, test.ShouldHaveLength, 2)
	test.That(t, h.resets[0], test.ShouldResemble, pose)
	test.That(t, h.resets[1], test.ShouldResemble, flipping.DefaultPolicy().Pose(pose))
}

func TestAutos(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t))
	names, err := h.builder.Autos()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, names, test.ShouldResemble, []string{"emptyline", "example", "outdated", "sweep"})
}

func TestNamedCommandsAreReusable(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t))
	runs := 0
	h.registry.Register("count", commands.InstantCommand("count", func() { runs++ }, "counter"))

	f := &factory{builder: h.builder}
	first, err := f.ParseCommand([]byte(`{"type": "named", "data": {"name": "count"}}`))
	test.That(t, err, test.ShouldBeNil)
	second, err := f.ParseCommand([]byte(`{"type": "named", "data": {"name": "count"}}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first, test.ShouldNotEqual, second)
	test.That(t, first.Name(), test.ShouldEqual, "count")
	test.That(t, first.Requirements(), test.ShouldResemble, []string{"counter"})

	commands.Sequence(first, second).Initialize()
	first.Initialize()
	second.Initialize()
	test.That(t, runs, test.ShouldEqual, 3)
	test.That(t, first.IsFinished(), test.ShouldBeTrue)

	none, err := f.ParseCommand([]byte(`{"type": "named", "data": {"name": null}}`))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, none.Name(), test.ShouldEqual, "None")

	_, err = f.ParseCommand([]byte(`{"type": "wait", "data": {"waitTime": "soon"}}`))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = f.ParseCommand([]byte(`{"type": "wait"}`))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = f.ParseCommand([]byte(`[`))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPathfindingCommands(t *testing.T) {
	h := newHarness(t, logging.NewTestLogger(t))
	constraints := path.NewConstraints(3, 3, 6, 6, 12)
	goal := spatialmath.NewPose(5, 5, spatialmath.Rotation{})

	_, err := h.builder.PathfindToPose(goal, constraints, 0)
	test.That(t, errors.Is(err, config.ErrConfigNotReady), test.ShouldBeTrue)

	h.configure(t)
	_, err = h.builder.PathfindToPose(goal, constraints, 0)
	test.That(t, errors.Is(err, config.ErrConfigNotReady), test.ShouldBeTrue)
	test.That(t, h.builder.IsPathfindingConfigured(), test.ShouldBeFalse)

	h.builder.ConfigurePathfinding(fakePathfinder{})
	test.That(t, h.builder.IsPathfindingConfigured(), test.ShouldBeTrue)
	cmd, err := h.builder.PathfindToPose(goal, constraints, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd.Requirements(), test.ShouldResemble, []string{"drive"})
	_, err = h.builder.PathfindToPoseFlipped(goal, constraints, 0)
	test.That(t, err, test.ShouldBeNil)

	paths, err := h.builder.PathGroup("example")
	test.That(t, err, test.ShouldBeNil)
	cmd, err = h.builder.PathfindThenFollowPath(paths[0], constraints)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cmd.Requirements(), test.ShouldContain, "drive")
}
