// Package pathfinding finds obstacle free paths across the field on a background worker and
// publishes them as smoothed Bézier paths.
package pathfinding

import (
	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/path"
)

// A Pathfinder plans paths between a start and a goal while obstacles change. Planning is
// asynchronous: callers post requests and poll IsNewPathAvailable.
type Pathfinder interface {
	IsNewPathAvailable() bool
	CurrentPath(constraints path.Constraints, goal path.GoalEndState) (*path.Path, bool)
	SetStartPosition(pos r2.Point)
	SetGoalPosition(pos r2.Point)
	SetDynamicObstacles(obstacles []BoundingBox, robotPos r2.Point) error
}

var _ Pathfinder = (*LocalADStar)(nil)
