package spatialmath

import (
	"fmt"

	"github.com/golang/geo/r2"
)

// Pose is a planar position and heading on the field.
type Pose struct {
	Translation r2.Point
	Rotation    Rotation
}

// NewPose returns the pose at (x, y) with the given rotation.
func NewPose(x, y float64, rot Rotation) Pose {
	return Pose{Translation: r2.Point{X: x, Y: y}, Rotation: rot}
}

// X returns the x component of the translation.
func (p Pose) X() float64 {
	return p.Translation.X
}

// Y returns the y component of the translation.
func (p Pose) Y() float64 {
	return p.Translation.Y
}

// Interpolate lerps translation and rotates along the shortest arc.
func (p Pose) Interpolate(end Pose, t float64) Pose {
	return Pose{
		Translation: LerpPoint(p.Translation, end.Translation, t),
		Rotation:    p.Rotation.Interpolate(end.Rotation, t),
	}
}

// RelativeTo expresses p in the frame of other.
func (p Pose) RelativeTo(other Pose) Pose {
	return Pose{
		Translation: other.Rotation.Neg().Rotate(p.Translation.Sub(other.Translation)),
		Rotation:    p.Rotation.Minus(other.Rotation),
	}
}

// AlmostEqual compares translations and rotations within epsilon.
func (p Pose) AlmostEqual(other Pose, epsilon float64) bool {
	return Distance(p.Translation, other.Translation) < epsilon && p.Rotation.AlmostEqual(other.Rotation, epsilon)
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %s)", p.Translation.X, p.Translation.Y, p.Rotation)
}
