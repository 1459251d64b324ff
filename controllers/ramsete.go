package controllers

import (
	"math"

	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
)

// Default Ramsete gains, tuned for meters and radians.
const (
	DefaultRamseteB    = 2.0
	DefaultRamseteZeta = 0.7
)

// RamseteController is a nonlinear unicycle tracking controller for differential drives.
type RamseteController struct {
	b, zeta   float64
	lastError float64
}

// NewRamseteController returns a controller with convergence gain b > 0 and damping
// 0 < zeta < 1.
func NewRamseteController(b, zeta float64) *RamseteController {
	return &RamseteController{b: b, zeta: zeta}
}

// NewDefaultRamseteController uses DefaultRamseteB and DefaultRamseteZeta.
func NewDefaultRamseteController() *RamseteController {
	return NewRamseteController(DefaultRamseteB, DefaultRamseteZeta)
}

// Reset implements Controller.
func (c *RamseteController) Reset(spatialmath.Pose, kinematics.ChassisSpeeds) {
	c.lastError = 0
}

// Calculate implements Controller.
func (c *RamseteController) Calculate(pose spatialmath.Pose, target trajectory.State) kinematics.ChassisSpeeds {
	c.lastError = spatialmath.Distance(pose.Translation, target.Pose.Translation)

	vRef, omegaRef := target.LinearVelocity, target.FieldSpeeds.Omega
	e := target.Pose.RelativeTo(pose)
	eX, eY, eTheta := e.X(), e.Y(), e.Rotation.Radians()

	k := 2 * c.zeta * math.Sqrt(omegaRef*omegaRef+c.b*vRef*vRef)
	return kinematics.ChassisSpeeds{
		Vx:    vRef*math.Cos(eTheta) + k*eX,
		Omega: omegaRef + k*eTheta + c.b*vRef*sinc(eTheta)*eY,
	}
}

func sinc(x float64) float64 {
	if math.Abs(x) < 1e-9 {
		return 1 - x*x/6
	}
	return math.Sin(x) / x
}

// PositionalError implements Controller.
func (c *RamseteController) PositionalError() float64 {
	return c.lastError
}

// IsHolonomic implements Controller.
func (c *RamseteController) IsHolonomic() bool {
	return false
}
