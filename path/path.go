// Package path turns Bézier waypoints, rotation targets, constraint zones and event markers into
// densely sampled path points, and loads paths from the deploy directory.
package path

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"go.viam.com/pathplanner/flipping"
	"go.viam.com/pathplanner/spatialmath"
)

// Params are the inputs to New.
type Params struct {
	Name               string
	Waypoints          []Waypoint
	RotationTargets    []RotationTarget
	PointTowardsZones  []PointTowardsZone
	ConstraintZones    []ConstraintsZone
	EventMarkers       []EventMarker
	GlobalConstraints  Constraints
	IdealStartingState *IdealStartingState
	GoalEndState       GoalEndState
	// Reversed makes a differential drive follow the path backwards.
	Reversed bool
}

// Path is an immutable sampled path. Build one with New or load one with a Loader.
type Path struct {
	name               string
	waypoints          []Waypoint
	rotationTargets    []RotationTarget
	pointTowardsZones  []PointTowardsZone
	constraintZones    []ConstraintsZone
	eventMarkers       []EventMarker
	globalConstraints  Constraints
	idealStartingState *IdealStartingState
	goalEndState       GoalEndState
	reversed           bool
	isChoreo           bool

	points []Point
}

// New validates params and samples the path.
func New(params Params) (*Path, error) {
	if err := validate(params); err != nil {
		return nil, err
	}
	p := &Path{
		name:               params.Name,
		waypoints:          params.Waypoints,
		rotationTargets:    append([]RotationTarget(nil), params.RotationTargets...),
		pointTowardsZones:  params.PointTowardsZones,
		constraintZones:    params.ConstraintZones,
		eventMarkers:       params.EventMarkers,
		globalConstraints:  params.GlobalConstraints,
		idealStartingState: params.IdealStartingState,
		goalEndState:       params.GoalEndState,
		reversed:           params.Reversed,
	}
	sort.SliceStable(p.rotationTargets, func(i, j int) bool {
		return p.rotationTargets[i].Position < p.rotationTargets[j].Position
	})
	p.points = newBuilder(p).build()
	return p, nil
}

// NewFromPoints wraps already sampled points, e.g. those of a pre-generated trajectory.
func NewFromPoints(
	name string,
	points []Point,
	globalConstraints Constraints,
	goalEndState GoalEndState,
	reversed bool,
	markers []EventMarker,
) *Path {
	return &Path{
		name:              name,
		points:            points,
		globalConstraints: globalConstraints,
		goalEndState:      goalEndState,
		reversed:          reversed,
		eventMarkers:      markers,
	}
}

// NewChoreoPath is NewFromPoints for a path whose trajectory was solved ahead of time. Its
// trajectory is generated by the solver, not by sampling these points.
func NewChoreoPath(
	name string,
	points []Point,
	idealStartingState *IdealStartingState,
	goalEndState GoalEndState,
	markers []EventMarker,
) *Path {
	p := NewFromPoints(name, points, NewUnlimitedConstraints(12), goalEndState, false, markers)
	p.idealStartingState = idealStartingState
	p.isChoreo = true
	return p
}

func validate(params Params) error {
	n := len(params.Waypoints)
	if n < 2 {
		return NewInvalidInputError("a path needs at least 2 waypoints, got %d", n)
	}
	for i, w := range params.Waypoints {
		if i != n-1 && w.NextControl == nil {
			return NewInvalidInputError("waypoint %d is missing its next control point", i)
		}
		if i != 0 && w.PrevControl == nil {
			return NewInvalidInputError("waypoint %d is missing its previous control point", i)
		}
	}
	for _, t := range params.RotationTargets {
		if t.Position < 0 || math.IsNaN(t.Position) {
			return NewInvalidInputError("rotation target position must be non-negative, got %v", t.Position)
		}
	}
	for _, z := range params.ConstraintZones {
		if z.MinPosition < 0 || z.MaxPosition < z.MinPosition {
			return NewInvalidInputError("constraint zone %q has invalid range [%v, %v]", z.Name, z.MinPosition, z.MaxPosition)
		}
	}
	for _, z := range params.PointTowardsZones {
		if z.MinPosition < 0 || z.MaxPosition < z.MinPosition {
			return NewInvalidInputError("point towards zone %q has invalid range [%v, %v]", z.Name, z.MinPosition, z.MaxPosition)
		}
	}
	for _, m := range params.EventMarkers {
		if m.Position < 0 {
			return NewInvalidInputError("event marker %q has negative position %v", m.TriggerName, m.Position)
		}
		if m.IsZoned() && m.EndPosition < m.Position {
			return NewInvalidInputError("event marker %q ends before it starts", m.TriggerName)
		}
	}
	return nil
}

// Name is the file name the path was loaded from, if any.
func (p *Path) Name() string {
	return p.name
}

// Points returns the sampled points. Callers must not modify them.
func (p *Path) Points() []Point {
	return p.points
}

// NumPoints returns the number of sampled points.
func (p *Path) NumPoints() int {
	return len(p.points)
}

// Point returns the sampled point at index i.
func (p *Path) Point(i int) Point {
	return p.points[i]
}

// Waypoints returns the Bézier waypoints the path was built from.
func (p *Path) Waypoints() []Waypoint {
	return p.waypoints
}

// RotationTargets returns the rotation targets sorted by position.
func (p *Path) RotationTargets() []RotationTarget {
	return p.rotationTargets
}

// PointTowardsZones returns the point towards zones.
func (p *Path) PointTowardsZones() []PointTowardsZone {
	return p.pointTowardsZones
}

// ConstraintZones returns the constraint zones.
func (p *Path) ConstraintZones() []ConstraintsZone {
	return p.constraintZones
}

// EventMarkers returns the event markers.
func (p *Path) EventMarkers() []EventMarker {
	return p.eventMarkers
}

// GlobalConstraints returns the constraints outside of any zone.
func (p *Path) GlobalConstraints() Constraints {
	return p.globalConstraints
}

// GoalEndState returns the state the path ends in.
func (p *Path) GoalEndState() GoalEndState {
	return p.goalEndState
}

// IdealStartingState returns the state the path expects to start in, if it has one.
func (p *Path) IdealStartingState() *IdealStartingState {
	return p.idealStartingState
}

// IsReversed reports whether a differential drive should follow the path backwards.
func (p *Path) IsReversed() bool {
	return p.reversed
}

// IsChoreo reports whether the path came from a pre-solved trajectory.
func (p *Path) IsChoreo() bool {
	return p.isChoreo
}

// NumSegments is the number of Bézier segments.
func (p *Path) NumSegments() int {
	return len(p.waypoints) - 1
}

// TotalDistance is the distance along the path from its first point to its last.
func (p *Path) TotalDistance() float64 {
	if len(p.points) == 0 {
		return 0
	}
	return p.points[len(p.points)-1].Distance
}

// ConstraintsForPosition returns the constraints of the first zone containing u, or the global
// constraints.
func (p *Path) ConstraintsForPosition(u float64) Constraints {
	zone, ok := lo.Find(p.constraintZones, func(z ConstraintsZone) bool { return z.Contains(u) })
	if ok {
		return zone.Constraints
	}
	return p.globalConstraints
}

// PointTowardsZoneForPosition returns the first point towards zone containing u.
func (p *Path) PointTowardsZoneForPosition(u float64) (PointTowardsZone, bool) {
	return lo.Find(p.pointTowardsZones, func(z PointTowardsZone) bool { return z.Contains(u) })
}

// PathPoses returns the positions of the sampled points with zero rotation, for display.
func (p *Path) PathPoses() []spatialmath.Pose {
	return lo.Map(p.points, func(pt Point, _ int) spatialmath.Pose {
		return spatialmath.Pose{Translation: pt.Position}
	})
}

// InitialHeading is the direction of travel at the start of the path.
func (p *Path) InitialHeading() spatialmath.Rotation {
	if len(p.points) < 2 {
		return spatialmath.Rotation{}
	}
	return spatialmath.AngleOf(p.points[1].Position.Sub(p.points[0].Position))
}

// StartingDifferentialPose is the pose a differential drive starts the path in.
func (p *Path) StartingDifferentialPose() spatialmath.Pose {
	heading := p.InitialHeading()
	if p.reversed {
		heading = heading.Plus(spatialmath.NewRotation(math.Pi))
	}
	return spatialmath.Pose{Translation: p.points[0].Position, Rotation: heading}
}

// StartingHolonomicPose is the pose a holonomic drive starts the path in. It is only known when
// the path has an ideal starting state.
func (p *Path) StartingHolonomicPose() (spatialmath.Pose, bool) {
	if p.idealStartingState == nil || len(p.points) == 0 {
		return spatialmath.Pose{}, false
	}
	return spatialmath.Pose{Translation: p.points[0].Position, Rotation: p.idealStartingState.Rotation}, true
}

// Flip returns the path as driven from the other half of the field. Points are flipped directly
// rather than resampled.
func (p *Path) Flip(policy flipping.Policy) *Path {
	flipped := *p
	flipped.waypoints = lo.Map(p.waypoints, func(w Waypoint, _ int) Waypoint { return w.Flip(policy) })
	flipped.rotationTargets = lo.Map(p.rotationTargets, func(t RotationTarget, _ int) RotationTarget {
		return RotationTarget{Position: t.Position, Rotation: policy.Rotation(t.Rotation)}
	})
	flipped.pointTowardsZones = lo.Map(p.pointTowardsZones, func(z PointTowardsZone, _ int) PointTowardsZone {
		z.TargetPosition = policy.Point(z.TargetPosition)
		if policy.Symmetry == flipping.Mirrored {
			z.RotationOffset = z.RotationOffset.Neg()
		}
		return z
	})
	if p.idealStartingState != nil {
		flipped.idealStartingState = &IdealStartingState{
			Velocity: p.idealStartingState.Velocity,
			Rotation: policy.Rotation(p.idealStartingState.Rotation),
		}
	}
	flipped.goalEndState = GoalEndState{Velocity: p.goalEndState.Velocity, Rotation: policy.Rotation(p.goalEndState.Rotation)}
	flipped.points = lo.Map(p.points, func(pt Point, _ int) Point { return pt.Flip(policy) })
	return &flipped
}
