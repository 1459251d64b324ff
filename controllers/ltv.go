package controllers

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/pathplanner/control"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
)

const (
	ltvVelocityStep   = 0.01
	ltvMaxVelocityCap = 15.0
)

var (
	// DefaultLTVTolerances are the largest acceptable x, y and heading errors.
	DefaultLTVTolerances = [3]float64{0.0625, 0.125, 2}
	// DefaultLTVEfforts are the largest acceptable linear and angular velocity corrections.
	DefaultLTVEfforts = [2]float64{1, 2}
)

// LTVController is a linear time-varying unicycle controller for differential drives. The system
// is linearized around the reference velocity and an LQR gain is looked up for it.
type LTVController struct {
	maxVelocity float64
	gains       []*mat.Dense
	lastError   float64
}

// NewLTVController returns a controller with the default tolerances for velocities up to
// maxVelocity, discretized at dt.
func NewLTVController(dt, maxVelocity float64) (*LTVController, error) {
	return NewLTVControllerWithTolerances(DefaultLTVTolerances, DefaultLTVEfforts, dt, maxVelocity)
}

// NewLTVControllerWithTolerances builds the gain table from Bryson's rule: each state and input is
// weighted by the inverse square of its tolerance.
func NewLTVControllerWithTolerances(tolerances [3]float64, efforts [2]float64, dt, maxVelocity float64) (*LTVController, error) {
	if !(maxVelocity > 0) || maxVelocity >= ltvMaxVelocityCap {
		return nil, errors.Errorf("LTV max velocity must be in (0, %v) m/s, got %v", ltvMaxVelocityCap, maxVelocity)
	}
	q := mat.NewDiagDense(3, nil)
	for i, tol := range tolerances {
		q.SetDiag(i, 1/(tol*tol))
	}
	r := mat.NewDiagDense(2, nil)
	for i, effort := range efforts {
		r.SetDiag(i, 1/(effort*effort))
	}
	// x' = v, y' = v·θ, θ' = ω around the reference.
	b := mat.NewDense(3, 2, []float64{
		1, 0,
		0, 0,
		0, 1,
	})

	c := &LTVController{maxVelocity: maxVelocity}
	steps := int(math.Round(2 * maxVelocity / ltvVelocityStep))
	for i := 0; i <= steps; i++ {
		v := -maxVelocity + float64(i)*ltvVelocityStep
		if math.Abs(v) < 1e-4 {
			v = 1e-4
		}
		a := mat.NewDense(3, 3, nil)
		a.Set(1, 2, v)
		ad, bd := control.Discretize(a, b, dt)
		k, err := control.LQRGain(ad, bd, q, r)
		if err != nil {
			return nil, errors.Wrapf(err, "LTV gain at %.2f m/s", v)
		}
		c.gains = append(c.gains, k)
	}
	return c, nil
}

func (c *LTVController) gain(velocity float64) *mat.Dense {
	idx := int(math.Round((velocity + c.maxVelocity) / ltvVelocityStep))
	return c.gains[max(0, min(idx, len(c.gains)-1))]
}

// Reset implements Controller.
func (c *LTVController) Reset(spatialmath.Pose, kinematics.ChassisSpeeds) {
	c.lastError = 0
}

// Calculate implements Controller.
func (c *LTVController) Calculate(pose spatialmath.Pose, target trajectory.State) kinematics.ChassisSpeeds {
	c.lastError = spatialmath.Distance(pose.Translation, target.Pose.Translation)

	vRef, omegaRef := target.LinearVelocity, target.FieldSpeeds.Omega
	e := target.Pose.RelativeTo(pose)
	errVec := mat.NewVecDense(3, []float64{e.X(), e.Y(), e.Rotation.Radians()})

	var u mat.VecDense
	u.MulVec(c.gain(vRef), errVec)
	return kinematics.ChassisSpeeds{
		Vx:    vRef + u.AtVec(0),
		Omega: omegaRef + u.AtVec(1),
	}
}

// PositionalError implements Controller.
func (c *LTVController) PositionalError() float64 {
	return c.lastError
}

// IsHolonomic implements Controller.
func (c *LTVController) IsHolonomic() bool {
	return false
}
