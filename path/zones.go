package path

import (
	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/spatialmath"
)

// RotationTarget pins the holonomic rotation at a waypoint-relative position.
type RotationTarget struct {
	Position float64
	Rotation spatialmath.Rotation
}

// ConstraintsZone applies constraints to the waypoint-relative interval [MinPosition,
// MaxPosition].
type ConstraintsZone struct {
	Name        string
	MinPosition float64
	MaxPosition float64
	Constraints Constraints
}

// Contains reports whether u lies within the zone.
func (z ConstraintsZone) Contains(u float64) bool {
	return u >= z.MinPosition && u <= z.MaxPosition
}

// PointTowardsZone makes the robot face a field position, plus an offset, while the path
// parameter is within [MinPosition, MaxPosition].
type PointTowardsZone struct {
	Name           string
	TargetPosition r2.Point
	RotationOffset spatialmath.Rotation
	MinPosition    float64
	MaxPosition    float64
}

// Contains reports whether u lies within the zone.
func (z PointTowardsZone) Contains(u float64) bool {
	return u >= z.MinPosition && u <= z.MaxPosition
}

// RotationFrom is the rotation facing the target from pos.
func (z PointTowardsZone) RotationFrom(pos r2.Point) spatialmath.Rotation {
	return spatialmath.AngleOf(z.TargetPosition.Sub(pos)).Plus(z.RotationOffset)
}

// EventMarker names a trigger and optionally a command to run at a point along the path, or over a
// zone of it when EndPosition is set.
type EventMarker struct {
	TriggerName string
	Position    float64
	// EndPosition is -1 for point markers.
	EndPosition float64
	Command     commands.Command
}

// NewPointMarker returns a marker at a single position.
func NewPointMarker(triggerName string, position float64, cmd commands.Command) EventMarker {
	return EventMarker{TriggerName: triggerName, Position: position, EndPosition: -1, Command: cmd}
}

// NewZonedMarker returns a marker spanning [start, end].
func NewZonedMarker(triggerName string, start, end float64, cmd commands.Command) EventMarker {
	return EventMarker{TriggerName: triggerName, Position: start, EndPosition: end, Command: cmd}
}

// IsZoned reports whether the marker spans an interval.
func (m EventMarker) IsZoned() bool {
	return m.EndPosition >= 0
}
