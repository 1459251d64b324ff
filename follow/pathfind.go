package follow

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/pathfinding"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
)

const (
	// Pathfinding finishes at once when the robot starts this close to its target.
	pathfindSkipDistance = 0.5
	// New paths are ignored once the robot is this close to the end of the current one.
	pathfindUpdateCutoff = 2.0
	// A resting robot starts new paths this far in, so that a stream of new paths cannot keep it
	// from moving.
	minRestingTimeOffset = 0.02
	restingSpeed         = 0.1
)

// Pathfind drives to a target pose along the paths published by a pathfinder, switching to each
// new path as it arrives.
type Pathfind struct {
	commands.Base
	cfg         Config
	pathfinder  pathfinding.Pathfinder
	constraints path.Constraints

	targetPath     *path.Path
	flipTarget     bool
	originalTarget spatialmath.Pose
	target         spatialmath.Pose
	goal           path.GoalEndState

	currentPath *path.Path
	traj        *trajectory.Trajectory
	timeOffset  float64
	start       time.Time
	finished    bool
	err         error
}

// NewPathfindToPose returns a command pathfinding to pose and arriving at goalEndVelocity.
func NewPathfindToPose(
	pf pathfinding.Pathfinder,
	pose spatialmath.Pose,
	goalEndVelocity float64,
	constraints path.Constraints,
	cfg Config,
) (*Pathfind, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, errors.New("pathfinding needs a pathfinder")
	}
	return &Pathfind{
		Base:           commands.NewBase("PathfindToPose", cfg.Requirements...),
		cfg:            cfg.WithDefaults(),
		pathfinder:     pf,
		constraints:    constraints,
		originalTarget: pose,
		target:         pose,
		goal:           path.GoalEndState{Velocity: goalEndVelocity, Rotation: pose.Rotation},
	}, nil
}

// NewPathfindToPoseFlipped is NewPathfindToPose for a pose given for the near half of the field,
// flipped when the command starts if paths should be flipped.
func NewPathfindToPoseFlipped(
	pf pathfinding.Pathfinder,
	pose spatialmath.Pose,
	goalEndVelocity float64,
	constraints path.Constraints,
	cfg Config,
) (*Pathfind, error) {
	c, err := NewPathfindToPose(pf, pose, goalEndVelocity, constraints, cfg)
	if err != nil {
		return nil, err
	}
	c.flipTarget = true
	return c, nil
}

// NewPathfindToPath returns a command pathfinding to the start of p, arriving with the speed and
// rotation p starts with. The target is flipped together with the path.
func NewPathfindToPath(
	pf pathfinding.Pathfinder,
	p *path.Path,
	constraints path.Constraints,
	cfg Config,
) (*Pathfind, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, errors.New("pathfinding needs a pathfinder")
	}
	if p.NumPoints() == 0 {
		return nil, path.NewInvalidInputError("path %q has no points", p.Name())
	}

	rotation := spatialmath.Rotation{}
	velocity := p.GlobalConstraints().MaxVelocity
	switch {
	case p.IsChoreo():
		traj, err := trajectory.IdealTrajectory(p, cfg.Robot)
		if err != nil {
			return nil, err
		}
		rotation = traj.InitialPose().Rotation
		velocity = traj.InitialState().LinearVelocity
	case p.IdealStartingState() != nil:
		rotation = p.IdealStartingState().Rotation
		velocity = p.IdealStartingState().Velocity
	case len(p.RotationTargets()) > 0:
		rotation = p.RotationTargets()[0].Rotation
	}

	target := spatialmath.Pose{Translation: p.Point(0).Position, Rotation: rotation}
	return &Pathfind{
		Base:           commands.NewBase("PathfindToPath("+p.Name()+")", cfg.Requirements...),
		cfg:            cfg.WithDefaults(),
		pathfinder:     pf,
		constraints:    constraints,
		targetPath:     p,
		flipTarget:     true,
		originalTarget: target,
		target:         target,
		goal:           path.GoalEndState{Velocity: velocity, Rotation: rotation},
	}, nil
}

// Err reports why the command finished early, or nil.
func (c *Pathfind) Err() error {
	return c.err
}

// Initialize posts the start and goal to the pathfinder. A robot already at its target finishes
// at once.
func (c *Pathfind) Initialize() {
	c.traj = nil
	c.currentPath = nil
	c.timeOffset = 0
	c.finished = false
	c.err = nil

	pose := c.cfg.Drivetrain.Pose()
	c.cfg.Controller.Reset(pose, c.cfg.Drivetrain.RobotRelativeSpeeds())

	if c.flipTarget {
		c.target = c.originalTarget
		if c.cfg.ShouldFlip() {
			c.target = c.cfg.Flipping.Pose(c.originalTarget)
		}
		c.goal = path.GoalEndState{Velocity: c.goal.Velocity, Rotation: c.target.Rotation}
	}

	if spatialmath.Distance(pose.Translation, c.target.Translation) < pathfindSkipDistance {
		c.cfg.stop()
		c.finished = true
		return
	}
	c.pathfinder.SetStartPosition(pose.Translation)
	c.pathfinder.SetGoalPosition(c.target.Translation)
	c.start = c.cfg.Clock.Now()
}

// Execute switches to newly published paths and drives along the current one.
func (c *Pathfind) Execute() {
	if c.finished || c.err != nil {
		return
	}
	pose := c.cfg.Drivetrain.Pose()
	speeds := c.cfg.Drivetrain.RobotRelativeSpeeds()

	nearEnd := c.traj != nil &&
		spatialmath.Distance(pose.Translation, c.traj.EndState().Pose.Translation) < pathfindUpdateCutoff
	if !nearEnd && c.pathfinder.IsNewPathAvailable() {
		if p, ok := c.pathfinder.CurrentPath(c.constraints, c.goal); ok {
			traj, err := trajectory.Generate(p, speeds, pose.Rotation, c.cfg.Robot)
			if err != nil {
				c.fail(err)
				return
			}
			c.currentPath = p
			c.traj = traj
			c.timeOffset = timeOffsetAt(traj, pose)
			if c.timeOffset <= minRestingTimeOffset && speeds.LinearSpeed() < restingSpeed {
				c.timeOffset = minRestingTimeOffset
			}
			c.cfg.Telemetry.SetCurrentPath(p)
		}
		c.start = c.cfg.Clock.Now()
	}

	if c.traj == nil {
		return
	}
	target := c.traj.Sample(c.elapsed() + c.timeOffset)
	output := c.cfg.Controller.Calculate(pose, target)
	c.cfg.publish(pose, speeds, target, output)
	c.cfg.Drivetrain.Drive(output, target.Feedforwards)
}

func (c *Pathfind) fail(err error) {
	c.err = err
	c.cfg.Logger.Warnw("pathfinding path cannot be driven, finishing", "error", err)
}

func (c *Pathfind) elapsed() float64 {
	return c.cfg.Clock.Since(c.start).Seconds()
}

// IsFinished reports whether the robot reached its target. Targeting a path, it finishes once
// it could stop at the start of the path; targeting a pose, once the current trajectory ran out.
func (c *Pathfind) IsFinished() bool {
	if c.finished || c.err != nil {
		return true
	}
	if c.targetPath != nil && !c.targetPath.IsChoreo() {
		speed := c.cfg.Drivetrain.RobotRelativeSpeeds().LinearSpeed()
		stopping := speed * speed / (2 * c.constraints.MaxAcceleration)
		if math.IsNaN(stopping) {
			stopping = 0
		}
		return spatialmath.Distance(c.cfg.Drivetrain.Pose().Translation, c.target.Translation) <= stopping
	}
	if c.traj != nil {
		return c.elapsed() >= c.traj.TotalTime()-c.timeOffset
	}
	return false
}

// End stops the robot when the goal is to stop there, unless interrupted.
func (c *Pathfind) End(interrupted bool) {
	if c.err != nil || (!interrupted && c.goal.Velocity < stopVelocity) {
		c.cfg.stop()
	}
}

// NewPathfindThenFollow pathfinds to the start of p and then follows it.
func NewPathfindThenFollow(
	pf pathfinding.Pathfinder,
	p *path.Path,
	constraints path.Constraints,
	cfg Config,
) (*commands.SequentialGroup, error) {
	pathfind, err := NewPathfindToPath(pf, p, constraints, cfg)
	if err != nil {
		return nil, err
	}
	follow, err := NewFollowPath(p, cfg)
	if err != nil {
		return nil, err
	}
	return commands.Sequence(pathfind, follow), nil
}
