package control

import (
	"math"

	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/utils"
)

// ProfiledPID drives a PID controller's setpoint along a trapezoidal profile toward the goal.
type ProfiledPID struct {
	pid         *PID
	period      float64
	setpoint    ProfileState
	constraints ProfileConstraints

	continuous         bool
	minInput, maxInput float64
}

// NewProfiledPID returns a profiled controller run every period seconds.
func NewProfiledPID(gains config.PIDConstants, constraints ProfileConstraints, period float64) *ProfiledPID {
	return &ProfiledPID{pid: NewPID(gains, period), period: period, constraints: constraints}
}

// EnableContinuousInput treats minInput and maxInput as the same point.
func (p *ProfiledPID) EnableContinuousInput(minInput, maxInput float64) {
	p.pid.EnableContinuousInput(minInput, maxInput)
	p.continuous = true
	p.minInput, p.maxInput = minInput, maxInput
}

// SetIntegratorRange bounds the integral term of the inner PID.
func (p *ProfiledPID) SetIntegratorRange(minIntegral, maxIntegral float64) {
	p.pid.SetIntegratorRange(minIntegral, maxIntegral)
}

// SetConstraints changes the profile constraints for later calls.
func (p *ProfiledPID) SetConstraints(constraints ProfileConstraints) {
	p.constraints = constraints
}

// Setpoint is the profile state targeted by the last Calculate.
func (p *ProfiledPID) Setpoint() ProfileState {
	return p.setpoint
}

// PositionError is the error of the last Calculate.
func (p *ProfiledPID) PositionError() float64 {
	return p.pid.PositionError()
}

// Calculate advances the profile one period toward goal and returns the PID output.
func (p *ProfiledPID) Calculate(measurement float64, goal ProfileState) float64 {
	if p.continuous {
		// Move the goal and setpoint to within half a turn of the measurement.
		errorBound := (p.maxInput - p.minInput) / 2
		goal.Position = measurement + utils.InputModulus(goal.Position-measurement, -errorBound, errorBound)
		p.setpoint.Position = measurement + utils.InputModulus(p.setpoint.Position-measurement, -errorBound, errorBound)
	}
	if math.IsInf(p.constraints.MaxAcceleration, 1) {
		p.setpoint = goal
	} else {
		p.setpoint = NewTrapezoidProfile(p.constraints).Calculate(p.period, p.setpoint, goal)
	}
	return p.pid.Calculate(measurement, p.setpoint.Position)
}

// Reset restarts the profile from the measured state.
func (p *ProfiledPID) Reset(position, velocity float64) {
	p.pid.Reset()
	p.setpoint = ProfileState{Position: position, Velocity: velocity}
}
