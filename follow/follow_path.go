package follow

import (
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/events"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
	"go.viam.com/pathplanner/utils"
)

const (
	// The ideal trajectory is reused when the robot starts this close to its starting speed
	// and, for holonomic robots, rotation.
	idealSpeedTolerance    = 0.25
	idealRotationTolerance = 30.0
	// Paths ending slower than this stop the robot when they finish.
	stopVelocity = 0.1
)

// FollowPath drives the robot along a path. The trajectory is the path's ideal one when the robot
// starts close to it and is generated from the robot's actual state otherwise.
type FollowPath struct {
	commands.Base
	cfg Config

	original *path.Path
	flipped  *path.Path

	path      *path.Path
	traj      *trajectory.Trajectory
	scheduler *events.Scheduler
	start     time.Time
	err       error
}

// NewFollowPath returns a command following p. Marker commands may not require the subsystems
// the command drives.
func NewFollowPath(p *path.Path, cfg Config) (*FollowPath, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithDefaults()

	markerReqs := events.Requirements(p)
	if shared := lo.Intersect(markerReqs, cfg.Requirements); len(shared) > 0 {
		return nil, errors.Errorf("event markers of path %q cannot require %v", p.Name(), shared)
	}

	c := &FollowPath{
		Base:      commands.NewBase("FollowPath("+p.Name()+")", append(append([]string(nil), cfg.Requirements...), markerReqs...)...),
		cfg:       cfg,
		original:  p,
		scheduler: events.NewScheduler(cfg.Events, cfg.Logger),
	}
	// Generate the ideal trajectory up front so that starting the command stays cheap.
	if _, err := trajectory.IdealTrajectory(p, cfg.Robot); err != nil && !errors.Is(err, trajectory.ErrNoIdealStartingState) {
		cfg.Logger.Debugw("no ideal trajectory", "path", p.Name(), "error", err)
	}
	return c, nil
}

// Path returns the path being driven, flipped if the command flipped it.
func (c *FollowPath) Path() *path.Path {
	return c.path
}

// Err reports why the command finished early, or nil.
func (c *FollowPath) Err() error {
	return c.err
}

func (c *FollowPath) activePath() *path.Path {
	if !c.cfg.ShouldFlip() {
		return c.original
	}
	if c.flipped == nil {
		c.flipped = trajectory.FlipPath(c.original, c.cfg.Flipping)
	}
	return c.flipped
}

// Initialize picks the trajectory and starts the timer and the event scheduler.
func (c *FollowPath) Initialize() {
	c.err = nil
	c.path = c.activePath()

	pose := c.cfg.Drivetrain.Pose()
	speeds := c.cfg.Drivetrain.RobotRelativeSpeeds()
	c.cfg.Controller.Reset(pose, speeds)

	traj, err := c.trajectoryFor(pose, speeds)
	if err != nil {
		c.fail(err)
		return
	}
	c.traj = traj
	c.scheduler.Initialize(traj.Events())
	c.cfg.Telemetry.SetCurrentPath(c.path)
	c.start = c.cfg.Clock.Now()
}

func (c *FollowPath) trajectoryFor(pose spatialmath.Pose, speeds kinematics.ChassisSpeeds) (*trajectory.Trajectory, error) {
	ideal, err := trajectory.IdealTrajectory(c.path, c.cfg.Robot)
	switch {
	case err == nil && (c.path.IsChoreo() || c.canReuse(ideal, pose, speeds)):
		return ideal, nil
	case err != nil && !errors.Is(err, trajectory.ErrNoIdealStartingState):
		return nil, err
	}
	return trajectory.Generate(c.path, speeds, pose.Rotation, c.cfg.Robot)
}

func (c *FollowPath) canReuse(ideal *trajectory.Trajectory, pose spatialmath.Pose, speeds kinematics.ChassisSpeeds) bool {
	start := ideal.InitialState()
	if math.Abs(speeds.LinearSpeed()-start.LinearVelocity) > idealSpeedTolerance {
		return false
	}
	if !c.cfg.Controller.IsHolonomic() {
		return true
	}
	return math.Abs(pose.Rotation.Minus(start.Pose.Rotation).Degrees()) <= idealRotationTolerance
}

func (c *FollowPath) fail(err error) {
	c.err = err
	if errors.Is(err, trajectory.ErrIllConditioned) {
		c.cfg.Logger.Warnw("path cannot be driven, finishing", "path", c.original.Name(), "error", err)
		return
	}
	c.cfg.Logger.Warnw("path following failed, finishing", "path", c.original.Name(), "error", err)
}

func (c *FollowPath) elapsed() float64 {
	return c.cfg.Clock.Since(c.start).Seconds()
}

// Execute drives towards the trajectory state of the current time and runs due events.
func (c *FollowPath) Execute() {
	if c.err != nil {
		return
	}
	t := c.elapsed()
	target := c.traj.Sample(t)
	if !c.cfg.Controller.IsHolonomic() && c.path.IsReversed() {
		reversed, err := target.Reverse()
		if err != nil {
			c.fail(err)
			return
		}
		target = reversed
	}

	pose := c.cfg.Drivetrain.Pose()
	speeds := c.cfg.Drivetrain.RobotRelativeSpeeds()
	output := c.cfg.Controller.Calculate(pose, target)

	c.cfg.publish(pose, speeds, target, output)
	c.cfg.Drivetrain.Drive(output, target.Feedforwards)
	c.scheduler.Execute(t)
}

// IsFinished reports whether the trajectory has run out or could not be followed.
func (c *FollowPath) IsFinished() bool {
	return c.err != nil || c.elapsed() >= c.traj.TotalTime()
}

// End stops the event commands. A path that ends at rest stops the robot unless interrupted.
func (c *FollowPath) End(interrupted bool) {
	c.scheduler.End()
	if c.err != nil || (!interrupted && c.path.GoalEndState().Velocity < stopVelocity) {
		c.cfg.stop()
	}
}

// timeOffsetAt estimates how far into traj a robot at pose is, from the two states closest to it.
func timeOffsetAt(traj *trajectory.Trajectory, pose spatialmath.Pose) float64 {
	states := traj.States()
	if len(states) < 2 {
		return 0
	}
	pos := pose.Translation
	i := 0
	for i+2 < len(states) &&
		spatialmath.Distance(states[i+2].Pose.Translation, pos) < spatialmath.Distance(states[i+1].Pose.Translation, pos) {
		i++
	}
	s1, s2 := states[i], states[i+1]
	d := spatialmath.Distance(s1.Pose.Translation, s2.Pose.Translation)
	if d < 1e-9 {
		return s1.Time
	}
	t := utils.Clamp(spatialmath.Distance(pos, s1.Pose.Translation)/d, 0, 1)
	return utils.Lerp(s1.Time, s2.Time, t)
}
