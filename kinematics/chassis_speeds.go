// Package kinematics maps chassis motion to per-module wheel states for swerve and differential
// drivetrains.
package kinematics

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/spatialmath"
)

// ChassisSpeeds is a planar velocity: vx and vy in m/s and omega in rad/s. Whether it is robot-
// or field-relative depends on context.
type ChassisSpeeds struct {
	Vx    float64
	Vy    float64
	Omega float64
}

// ToRobotRelative converts field-relative speeds into the frame of a robot with the given heading.
func (s ChassisSpeeds) ToRobotRelative(robotAngle spatialmath.Rotation) ChassisSpeeds {
	v := robotAngle.Neg().Rotate(r2.Point{X: s.Vx, Y: s.Vy})
	return ChassisSpeeds{Vx: v.X, Vy: v.Y, Omega: s.Omega}
}

// ToFieldRelative converts robot-relative speeds into the field frame.
func (s ChassisSpeeds) ToFieldRelative(robotAngle spatialmath.Rotation) ChassisSpeeds {
	v := robotAngle.Rotate(r2.Point{X: s.Vx, Y: s.Vy})
	return ChassisSpeeds{Vx: v.X, Vy: v.Y, Omega: s.Omega}
}

// Plus adds two speeds.
func (s ChassisSpeeds) Plus(o ChassisSpeeds) ChassisSpeeds {
	return ChassisSpeeds{Vx: s.Vx + o.Vx, Vy: s.Vy + o.Vy, Omega: s.Omega + o.Omega}
}

// Minus subtracts two speeds.
func (s ChassisSpeeds) Minus(o ChassisSpeeds) ChassisSpeeds {
	return ChassisSpeeds{Vx: s.Vx - o.Vx, Vy: s.Vy - o.Vy, Omega: s.Omega - o.Omega}
}

// Times scales all components.
func (s ChassisSpeeds) Times(scalar float64) ChassisSpeeds {
	return ChassisSpeeds{Vx: s.Vx * scalar, Vy: s.Vy * scalar, Omega: s.Omega * scalar}
}

// Interpolate lerps every component.
func (s ChassisSpeeds) Interpolate(end ChassisSpeeds, t float64) ChassisSpeeds {
	return s.Plus(end.Minus(s).Times(t))
}

// LinearSpeed is the magnitude of the translational component.
func (s ChassisSpeeds) LinearSpeed() float64 {
	return math.Hypot(s.Vx, s.Vy)
}

// Discretize returns the speeds that, held constant for dt, move the robot along the arc whose
// endpoint is reached by applying s for dt with translation and rotation applied simultaneously.
func (s ChassisSpeeds) Discretize(dt float64) ChassisSpeeds {
	if dt <= 0 {
		return s
	}
	dx, dy, dtheta := s.Vx*dt, s.Vy*dt, s.Omega*dt

	halfDtheta := dtheta / 2
	cosMinusOne := math.Cos(dtheta) - 1
	var halfThetaByTanOfHalfDtheta float64
	if math.Abs(cosMinusOne) < 1e-9 {
		halfThetaByTanOfHalfDtheta = 1 - dtheta*dtheta/12
	} else {
		halfThetaByTanOfHalfDtheta = -(halfDtheta * math.Sin(dtheta)) / cosMinusOne
	}

	rot := spatialmath.NewRotationFromVector(halfThetaByTanOfHalfDtheta, -halfDtheta)
	twist := rot.Rotate(r2.Point{X: dx, Y: dy}).Mul(math.Hypot(halfThetaByTanOfHalfDtheta, halfDtheta))
	return ChassisSpeeds{Vx: twist.X / dt, Vy: twist.Y / dt, Omega: dtheta / dt}
}

func (s ChassisSpeeds) String() string {
	return fmt.Sprintf("ChassisSpeeds(vx: %.3f m/s, vy: %.3f m/s, omega: %.3f rad/s)", s.Vx, s.Vy, s.Omega)
}
