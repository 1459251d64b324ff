package path

import (
	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/flipping"
)

// Point is one densely sampled point of a path.
type Point struct {
	Position r2.Point
	// Distance is the cumulative distance along the path from its start.
	Distance float64
	// MaxV is the cornering speed cap at this point.
	MaxV           float64
	RotationTarget *RotationTarget
	Constraints    Constraints
	// WaypointRelativePos is the Bézier parameter u of the point.
	WaypointRelativePos float64
}

// Flip returns the point on the other half of the field.
func (p Point) Flip(policy flipping.Policy) Point {
	flipped := p
	flipped.Position = policy.Point(p.Position)
	if p.RotationTarget != nil {
		flipped.RotationTarget = &RotationTarget{
			Position: p.RotationTarget.Position,
			Rotation: policy.Rotation(p.RotationTarget.Rotation),
		}
	}
	return flipped
}
