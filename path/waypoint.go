package path

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/flipping"
	"go.viam.com/pathplanner/spatialmath"
)

// autoControlDistanceFactor sets how far automatically placed control points sit from their
// anchor, as a fraction of the distance to the neighbouring anchor.
const autoControlDistanceFactor = 0.4

// Waypoint is a Bézier anchor with its incoming and outgoing control points. The first waypoint
// of a path has no PrevControl and the last has no NextControl.
type Waypoint struct {
	PrevControl *r2.Point
	Anchor      r2.Point
	NextControl *r2.Point
}

// Flip returns the waypoint on the other half of the field.
func (w Waypoint) Flip(policy flipping.Policy) Waypoint {
	flipped := Waypoint{Anchor: policy.Point(w.Anchor)}
	if w.PrevControl != nil {
		p := policy.Point(*w.PrevControl)
		flipped.PrevControl = &p
	}
	if w.NextControl != nil {
		p := policy.Point(*w.NextControl)
		flipped.NextControl = &p
	}
	return flipped
}

// Heading is the direction of travel through the waypoint.
func (w Waypoint) Heading() spatialmath.Rotation {
	switch {
	case w.NextControl != nil:
		return spatialmath.AngleOf(w.NextControl.Sub(w.Anchor))
	case w.PrevControl != nil:
		return spatialmath.AngleOf(w.Anchor.Sub(*w.PrevControl))
	default:
		return spatialmath.Rotation{}
	}
}

// WaypointsFromPoses builds waypoints through the given poses, where each pose rotation is the
// direction of travel. Control handles are placed along that direction at 0.4 times the distance
// to the neighbouring anchor.
func WaypointsFromPoses(poses ...spatialmath.Pose) ([]Waypoint, error) {
	if len(poses) < 2 {
		return nil, NewInvalidInputError("need at least 2 poses, got %d", len(poses))
	}
	waypoints := make([]Waypoint, len(poses))
	for i, pose := range poses {
		anchor := pose.Translation
		heading := pose.Rotation
		waypoints[i].Anchor = anchor
		if i != 0 {
			d := spatialmath.Distance(anchor, poses[i-1].Translation) * autoControlDistanceFactor
			prev := anchor.Add(spatialmath.PolarPoint(d, heading.Plus(spatialmath.NewRotation(math.Pi))))
			waypoints[i].PrevControl = &prev
		}
		if i != len(poses)-1 {
			d := spatialmath.Distance(anchor, poses[i+1].Translation) * autoControlDistanceFactor
			next := anchor.Add(spatialmath.PolarPoint(d, heading))
			waypoints[i].NextControl = &next
		}
	}
	return waypoints, nil
}

// BezierPoints flattens waypoints into the control point list anchor, next, prev, anchor, ...
// where every group of four consecutive points starting at a multiple of three is one segment.
func BezierPoints(waypoints []Waypoint) []r2.Point {
	points := make([]r2.Point, 0, 3*len(waypoints))
	for i, w := range waypoints {
		if i != 0 && w.PrevControl != nil {
			points = append(points, *w.PrevControl)
		}
		points = append(points, w.Anchor)
		if i != len(waypoints)-1 && w.NextControl != nil {
			points = append(points, *w.NextControl)
		}
	}
	return points
}
