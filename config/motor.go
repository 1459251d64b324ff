package config

import (
	"math"
)

// DCMotor is the linear model of a brushed/brushless DC motor (or a gearbox of identical motors).
type DCMotor struct {
	NominalVoltage float64 // V
	StallTorque    float64 // Nm
	StallCurrent   float64 // A
	FreeCurrent    float64 // A
	FreeSpeed      float64 // rad/s
	NumMotors      int

	R  float64 // winding resistance, Ohm
	Kv float64 // rad/s per V
	Kt float64 // Nm per A
}

// NewDCMotor builds a motor model for numMotors identical motors sharing one output.
func NewDCMotor(nominalVoltage, stallTorque, stallCurrent, freeCurrent, freeSpeed float64, numMotors int) DCMotor {
	n := float64(numMotors)
	m := DCMotor{
		NominalVoltage: nominalVoltage,
		StallTorque:    stallTorque * n,
		StallCurrent:   stallCurrent * n,
		FreeCurrent:    freeCurrent * n,
		FreeSpeed:      freeSpeed,
		NumMotors:      numMotors,
	}
	m.computeConstants()
	return m
}

func (m *DCMotor) computeConstants() {
	m.R = m.NominalVoltage / m.StallCurrent
	m.Kv = m.FreeSpeed / (m.NominalVoltage - m.R*m.FreeCurrent)
	m.Kt = m.StallTorque / m.StallCurrent
}

// Current returns the current drawn at the given output speed (rad/s) and input voltage.
func (m DCMotor) Current(speed, voltage float64) float64 {
	return -1/m.Kv/m.R*speed + 1/m.R*voltage
}

// CurrentForTorque returns the current needed to produce torque.
func (m DCMotor) CurrentForTorque(torque float64) float64 {
	return torque / m.Kt
}

// Torque returns the output torque at the given current.
func (m DCMotor) Torque(current float64) float64 {
	return current * m.Kt
}

// Voltage returns the voltage needed to produce torque at speed.
func (m DCMotor) Voltage(torque, speed float64) float64 {
	return 1/m.Kv*speed + 1/m.Kt*m.R*torque
}

// Speed returns the output speed at the given torque and voltage.
func (m DCMotor) Speed(torque, voltage float64) float64 {
	return voltage*m.Kv - 1/m.Kt*torque*m.R*m.Kv
}

// WithReduction returns the motor as seen through a gearbox with the given reduction (input
// turns per output turn).
func (m DCMotor) WithReduction(reduction float64) DCMotor {
	geared := m
	geared.StallTorque *= reduction
	geared.FreeSpeed /= reduction
	geared.computeConstants()
	return geared
}

func rpmToRadPerSec(rpm float64) float64 {
	return rpm * 2 * math.Pi / 60
}

type motorSpec struct {
	stallTorque, stallCurrent, freeCurrent, freeSpeedRPM float64
}

// motorTable holds the 12 V characteristics of the supported drive motors.
var motorTable = map[string]motorSpec{
	"krakenX60":    {7.09, 366, 2, 6000},
	"krakenX60FOC": {9.37, 483, 2, 5800},
	"falcon500":    {4.69, 257, 1.5, 6380},
	"falcon500FOC": {5.84, 304, 1.5, 6080},
	"vortex":       {3.6, 211, 3.6, 6784},
	"NEO":          {2.6, 105, 1.8, 5676},
	"CIM":          {2.42, 133, 2.7, 5310},
	"miniCIM":      {1.41, 89, 3, 5840},
}

// MotorFromName returns numMotors of the named motor, as used by the settings file.
func MotorFromName(name string, numMotors int) (DCMotor, error) {
	spec, ok := motorTable[name]
	if !ok {
		return DCMotor{}, NewUnknownMotorError(name)
	}
	return NewDCMotor(12, spec.stallTorque, spec.stallCurrent, spec.freeCurrent, rpmToRadPerSec(spec.freeSpeedRPM), numMotors), nil
}
