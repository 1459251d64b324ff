// Package flipping reflects field-relative geometry onto the other alliance's half of the field.
package flipping

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/spatialmath"
)

// Symmetry is the kind of symmetry the field has between the two alliances.
type Symmetry int

const (
	// Mirrored fields are reflected across the line x = fieldLength/2.
	Mirrored Symmetry = iota
	// Rotational fields are rotated 180° about the field center.
	Rotational
)

func (s Symmetry) String() string {
	if s == Rotational {
		return "rotational"
	}
	return "mirrored"
}

// Default field dimensions in meters.
const (
	DefaultFieldLength = 16.54175
	DefaultFieldWidth  = 8.211
)

// Policy flips positions, rotations, speeds and feedforwards for one field. It is configured once
// at setup and only read afterwards.
type Policy struct {
	Symmetry    Symmetry
	FieldLength float64
	FieldWidth  float64
}

// NewPolicy returns a policy for a field of the given size.
func NewPolicy(symmetry Symmetry, fieldLength, fieldWidth float64) Policy {
	return Policy{Symmetry: symmetry, FieldLength: fieldLength, FieldWidth: fieldWidth}
}

// DefaultPolicy is a rotationally symmetric field of the default size.
func DefaultPolicy() Policy {
	return NewPolicy(Rotational, DefaultFieldLength, DefaultFieldWidth)
}

// Point flips a field position.
func (p Policy) Point(pos r2.Point) r2.Point {
	if p.Symmetry == Mirrored {
		return r2.Point{X: p.FieldLength - pos.X, Y: pos.Y}
	}
	return r2.Point{X: p.FieldLength - pos.X, Y: p.FieldWidth - pos.Y}
}

// Rotation flips a field-relative rotation.
func (p Policy) Rotation(rot spatialmath.Rotation) spatialmath.Rotation {
	if p.Symmetry == Mirrored {
		return spatialmath.NewRotation(math.Pi).Minus(rot)
	}
	return rot.Minus(spatialmath.NewRotation(math.Pi))
}

// Pose flips a field pose.
func (p Policy) Pose(pose spatialmath.Pose) spatialmath.Pose {
	return spatialmath.Pose{Translation: p.Point(pose.Translation), Rotation: p.Rotation(pose.Rotation)}
}

// FieldSpeeds flips field-relative chassis speeds.
func (p Policy) FieldSpeeds(speeds kinematics.ChassisSpeeds) kinematics.ChassisSpeeds {
	if p.Symmetry == Mirrored {
		return kinematics.ChassisSpeeds{Vx: -speeds.Vx, Vy: speeds.Vy, Omega: -speeds.Omega}
	}
	return kinematics.ChassisSpeeds{Vx: -speeds.Vx, Vy: -speeds.Vy, Omega: speeds.Omega}
}

// Feedforwards permutes per-module values. Mirroring swaps the left and right modules: FL<->FR,
// BL<->BR on a swerve and left<->right on a differential drive.
func (p Policy) Feedforwards(ff []float64) []float64 {
	out := append([]float64(nil), ff...)
	if p.Symmetry != Mirrored {
		return out
	}
	switch len(ff) {
	case 4:
		out[0], out[1], out[2], out[3] = ff[1], ff[0], ff[3], ff[2]
	case 2:
		out[0], out[1] = ff[1], ff[0]
	}
	return out
}

// FeedforwardXs flips robot-relative per-module X forces.
func (p Policy) FeedforwardXs(xs []float64) []float64 {
	return p.Feedforwards(xs)
}

// FeedforwardYs flips robot-relative per-module Y forces. Mirroring reverses the robot's
// handedness so Y components change sign.
func (p Policy) FeedforwardYs(ys []float64) []float64 {
	out := p.Feedforwards(ys)
	if p.Symmetry == Mirrored {
		for i := range out {
			out[i] = -out[i]
		}
	}
	return out
}
