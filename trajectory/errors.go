package trajectory

import (
	"github.com/pkg/errors"
)

// ErrIllConditioned is returned when generation produces a non-finite time step or module speed,
// usually because the constraints leave the robot unable to move along the path.
var ErrIllConditioned = errors.New("trajectory generation is ill-conditioned")

// ErrNoIdealStartingState is returned by IdealTrajectory for paths that do not know how the robot
// should start them.
var ErrNoIdealStartingState = errors.New("path has no ideal starting state")

func newIllConditionedError(pathName string, index int, what string) error {
	return errors.Wrapf(ErrIllConditioned, "path %q state %d: non-finite %s", pathName, index, what)
}
