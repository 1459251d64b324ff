// Package control implements the feedback building blocks used by path following controllers: a
// PID controller, a trapezoidal motion profile, a profiled PID and an LQR gain solver.
package control

import (
	"math"

	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/utils"
)

// PID is a discrete PID controller run at a fixed period. It is not safe for concurrent use.
type PID struct {
	kp, ki, kd float64
	iZone      float64
	period     float64

	minIntegral, maxIntegral float64

	continuous         bool
	minInput, maxInput float64

	setpoint      float64
	positionError float64
	velocityError float64
	prevError     float64
	totalError    float64
	haveSetpoint  bool
}

// NewPID returns a controller with the given gains, run every period seconds.
func NewPID(gains config.PIDConstants, period float64) *PID {
	iZone := gains.IZone
	if iZone <= 0 {
		iZone = math.Inf(1)
	}
	return &PID{
		kp:          gains.KP,
		ki:          gains.KI,
		kd:          gains.KD,
		iZone:       iZone,
		period:      period,
		minIntegral: -1,
		maxIntegral: 1,
	}
}

// EnableContinuousInput treats minInput and maxInput as the same point, as for angles.
func (p *PID) EnableContinuousInput(minInput, maxInput float64) {
	p.continuous = true
	p.minInput, p.maxInput = minInput, maxInput
}

// SetIntegratorRange bounds the integral term's contribution to the output.
func (p *PID) SetIntegratorRange(minIntegral, maxIntegral float64) {
	p.minIntegral, p.maxIntegral = minIntegral, maxIntegral
}

// Calculate returns the output for measurement given setpoint.
func (p *PID) Calculate(measurement, setpoint float64) float64 {
	p.setpoint = setpoint
	p.haveSetpoint = true
	p.prevError = p.positionError

	if p.continuous {
		errorBound := (p.maxInput - p.minInput) / 2
		p.positionError = utils.InputModulus(setpoint-measurement, -errorBound, errorBound)
	} else {
		p.positionError = setpoint - measurement
	}
	p.velocityError = (p.positionError - p.prevError) / p.period

	switch {
	case math.Abs(p.positionError) > p.iZone:
		p.totalError = 0
	case p.ki != 0:
		p.totalError = utils.Clamp(p.totalError+p.positionError*p.period, p.minIntegral/p.ki, p.maxIntegral/p.ki)
	}
	return p.kp*p.positionError + p.ki*p.totalError + p.kd*p.velocityError
}

// Setpoint is the setpoint of the last Calculate.
func (p *PID) Setpoint() float64 {
	return p.setpoint
}

// PositionError is the error of the last Calculate.
func (p *PID) PositionError() float64 {
	return p.positionError
}

// Reset clears the integral and derivative history.
func (p *PID) Reset() {
	p.positionError = 0
	p.prevError = 0
	p.totalError = 0
	p.velocityError = 0
	p.haveSetpoint = false
}
