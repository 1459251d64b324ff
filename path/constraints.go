package path

import (
	"encoding/json"
	"math"

	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/utils"
)

// Constraints are the kinematic limits applied to part or all of a path.
type Constraints struct {
	MaxVelocity            float64 // m/s
	MaxAcceleration        float64 // m/s^2
	MaxAngularVelocity     float64 // rad/s
	MaxAngularAcceleration float64 // rad/s^2
	NominalVoltage         float64 // V
	Unlimited              bool
}

// NewConstraints returns finite constraints. Angular limits are in radians.
func NewConstraints(maxVel, maxAccel, maxAngVel, maxAngAccel, nominalVoltage float64) Constraints {
	return Constraints{
		MaxVelocity:            maxVel,
		MaxAcceleration:        maxAccel,
		MaxAngularVelocity:     maxAngVel,
		MaxAngularAcceleration: maxAngAccel,
		NominalVoltage:         nominalVoltage,
	}
}

// NewUnlimitedConstraints returns constraints with every limit infinite. Only the nominal voltage
// is kept.
func NewUnlimitedConstraints(nominalVoltage float64) Constraints {
	inf := math.Inf(1)
	return Constraints{
		MaxVelocity:            inf,
		MaxAcceleration:        inf,
		MaxAngularVelocity:     inf,
		MaxAngularAcceleration: inf,
		NominalVoltage:         nominalVoltage,
		Unlimited:              true,
	}
}

// Voltage returns the nominal voltage, defaulting to 12 V when unset.
func (c Constraints) Voltage() float64 {
	if c.NominalVoltage <= 0 {
		return 12
	}
	return c.NominalVoltage
}

type constraintsJSON struct {
	MaxVelocity            float64 `json:"maxVelocity"`
	MaxAcceleration        float64 `json:"maxAcceleration"`
	MaxAngularVelocity     float64 `json:"maxAngularVelocity"`
	MaxAngularAcceleration float64 `json:"maxAngularAcceleration"`
	NominalVoltage         float64 `json:"nominalVoltage"`
	Unlimited              bool    `json:"unlimited"`
}

// UnmarshalJSON reads constraints as stored in path files, with angular limits in degrees.
func (c *Constraints) UnmarshalJSON(data []byte) error {
	raw := constraintsJSON{NominalVoltage: 12}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Unlimited {
		*c = NewUnlimitedConstraints(raw.NominalVoltage)
		return nil
	}
	*c = NewConstraints(
		raw.MaxVelocity,
		raw.MaxAcceleration,
		utils.DegToRad(raw.MaxAngularVelocity),
		utils.DegToRad(raw.MaxAngularAcceleration),
		raw.NominalVoltage,
	)
	return nil
}

// MarshalJSON writes constraints in the path file representation.
func (c Constraints) MarshalJSON() ([]byte, error) {
	raw := constraintsJSON{NominalVoltage: c.NominalVoltage, Unlimited: c.Unlimited}
	if !c.Unlimited {
		raw.MaxVelocity = c.MaxVelocity
		raw.MaxAcceleration = c.MaxAcceleration
		raw.MaxAngularVelocity = utils.RadToDeg(c.MaxAngularVelocity)
		raw.MaxAngularAcceleration = utils.RadToDeg(c.MaxAngularAcceleration)
	}
	return json.Marshal(raw)
}

// GoalEndState is the velocity and holonomic rotation the path should end with.
type GoalEndState struct {
	Velocity float64              `json:"velocity"`
	Rotation spatialmath.Rotation `json:"rotation"`
}

// IdealStartingState is the velocity and holonomic rotation the path expects to start with.
type IdealStartingState struct {
	Velocity float64              `json:"velocity"`
	Rotation spatialmath.Rotation `json:"rotation"`
}
