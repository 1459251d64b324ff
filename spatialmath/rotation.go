// Package spatialmath defines planar rotations, poses and the interpolation helpers used to walk
// Bézier curves.
package spatialmath

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/utils"
)

// Rotation is a planar rotation stored as its unit (cos, sin) pair so composition never
// accumulates wrap-around error.
type Rotation struct {
	cos float64
	sin float64
}

// NewRotation returns the rotation by the given angle in radians.
func NewRotation(radians float64) Rotation {
	return Rotation{cos: math.Cos(radians), sin: math.Sin(radians)}
}

// NewRotationFromDegrees returns the rotation by the given angle in degrees.
func NewRotationFromDegrees(degrees float64) Rotation {
	return NewRotation(utils.DegToRad(degrees))
}

// NewRotationFromVector returns the rotation pointing along (x, y). The zero vector yields the
// zero rotation.
func NewRotationFromVector(x, y float64) Rotation {
	norm := math.Hypot(x, y)
	if norm < 1e-6 {
		return Rotation{cos: 1}
	}
	return Rotation{cos: x / norm, sin: y / norm}
}

// AngleOf returns the rotation pointing along p.
func AngleOf(p r2.Point) Rotation {
	return NewRotationFromVector(p.X, p.Y)
}

// Radians returns the angle in (-pi, pi].
func (r Rotation) Radians() float64 {
	return math.Atan2(r.sin, r.cos)
}

// Degrees returns the angle in (-180, 180].
func (r Rotation) Degrees() float64 {
	return utils.RadToDeg(r.Radians())
}

// Cos returns the cosine of the rotation.
func (r Rotation) Cos() float64 {
	if r.cos == 0 && r.sin == 0 {
		return 1
	}
	return r.cos
}

// Sin returns the sine of the rotation.
func (r Rotation) Sin() float64 {
	return r.sin
}

// Plus returns r rotated by other.
func (r Rotation) Plus(other Rotation) Rotation {
	return r.RotateBy(other)
}

// Minus returns the rotation that takes other onto r.
func (r Rotation) Minus(other Rotation) Rotation {
	return r.RotateBy(other.Neg())
}

// RotateBy composes two rotations.
func (r Rotation) RotateBy(other Rotation) Rotation {
	c, s := r.Cos(), r.sin
	oc, os := other.Cos(), other.sin
	return Rotation{cos: c*oc - s*os, sin: c*os + s*oc}
}

// Neg returns the inverse rotation.
func (r Rotation) Neg() Rotation {
	return Rotation{cos: r.Cos(), sin: -r.sin}
}

// Times scales the angle of the rotation.
func (r Rotation) Times(scalar float64) Rotation {
	return NewRotation(r.Radians() * scalar)
}

// Interpolate moves from r toward end by fraction t along the shortest arc.
func (r Rotation) Interpolate(end Rotation, t float64) Rotation {
	t = utils.Clamp(t, 0, 1)
	return r.Plus(end.Minus(r).Times(t))
}

// Rotate rotates p by r about the origin.
func (r Rotation) Rotate(p r2.Point) r2.Point {
	c, s := r.Cos(), r.sin
	return r2.Point{X: p.X*c - p.Y*s, Y: p.X*s + p.Y*c}
}

// AlmostEqual reports whether two rotations differ by less than epsilon radians.
func (r Rotation) AlmostEqual(other Rotation, epsilon float64) bool {
	return math.Abs(r.Minus(other).Radians()) < epsilon
}

func (r Rotation) String() string {
	return fmt.Sprintf("%.3f°", r.Degrees())
}

// MarshalJSON encodes the rotation as degrees.
func (r Rotation) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Degrees())
}

// UnmarshalJSON decodes a rotation from degrees.
func (r *Rotation) UnmarshalJSON(data []byte) error {
	var degrees float64
	if err := json.Unmarshal(data, &degrees); err != nil {
		return err
	}
	*r = NewRotationFromDegrees(degrees)
	return nil
}
