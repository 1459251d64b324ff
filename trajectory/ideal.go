package trajectory

import (
	"runtime"
	"sync"
	"weak"

	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/path"
)

type idealKey struct {
	path   weak.Pointer[path.Path]
	config weak.Pointer[config.RobotConfig]
}

// idealTrajectories caches generated ideal trajectories. Entries go away with their path or
// config.
var idealTrajectories sync.Map

// IdealTrajectory returns the trajectory of p when started from its ideal starting state. It is
// generated once per path and robot config. Paths without an ideal starting state return
// ErrNoIdealStartingState.
func IdealTrajectory(p *path.Path, rc *config.RobotConfig) (*Trajectory, error) {
	if p.IsChoreo() {
		return choreoTrajectoryOf(p)
	}
	start := p.IdealStartingState()
	if start == nil {
		return nil, ErrNoIdealStartingState
	}
	if rc == nil {
		return nil, config.NewConfigNotReadyError("robot config")
	}

	key := idealKey{path: weak.Make(p), config: weak.Make(rc)}
	if cached, ok := idealTrajectories.Load(key); ok {
		return cached.(*Trajectory), nil
	}

	heading := p.InitialHeading()
	fieldSpeeds := kinematics.ChassisSpeeds{
		Vx: start.Velocity * heading.Cos(),
		Vy: start.Velocity * heading.Sin(),
	}
	traj, err := Generate(p, fieldSpeeds.ToRobotRelative(start.Rotation), start.Rotation, rc)
	if err != nil {
		return nil, err
	}

	actual, loaded := idealTrajectories.LoadOrStore(key, traj)
	if !loaded {
		forget := func(k idealKey) { idealTrajectories.Delete(k) }
		runtime.AddCleanup(p, forget, key)
		runtime.AddCleanup(rc, forget, key)
	}
	return actual.(*Trajectory), nil
}
