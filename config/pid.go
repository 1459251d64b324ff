package config

import "math"

// PIDConstants are the gains of a PID controller. IZone bounds the error magnitude within which
// the integral term accumulates.
type PIDConstants struct {
	KP    float64 `json:"kP"`
	KI    float64 `json:"kI"`
	KD    float64 `json:"kD"`
	IZone float64 `json:"iZone"`
}

// NewPIDConstants returns gains with an unbounded integral zone.
func NewPIDConstants(kp, ki, kd float64) PIDConstants {
	return PIDConstants{KP: kp, KI: ki, KD: kd, IZone: math.Inf(1)}
}
