package kinematics

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"go.viam.com/pathplanner/spatialmath"
)

// ModuleState is the speed in m/s and robot-relative steer angle of one wheel module.
type ModuleState struct {
	Speed float64
	Angle spatialmath.Rotation
}

// Optimize returns the equivalent state that needs at most a 90° steer from currentAngle,
// reversing the drive direction when that is shorter.
func (m ModuleState) Optimize(currentAngle spatialmath.Rotation) ModuleState {
	delta := m.Angle.Minus(currentAngle)
	if math.Abs(delta.Radians()) > math.Pi/2 {
		return ModuleState{Speed: -m.Speed, Angle: m.Angle.Plus(spatialmath.NewRotation(math.Pi))}
	}
	return m
}

// DesaturateWheelSpeeds scales every module speed down uniformly so none exceeds
// maxModuleSpeed.
func DesaturateWheelSpeeds(states []ModuleState, maxModuleSpeed float64) {
	realMax := maxAbsSpeed(states)
	if realMax <= maxModuleSpeed || realMax == 0 {
		return
	}
	scale := maxModuleSpeed / realMax
	for i := range states {
		states[i].Speed *= scale
	}
}

// DesaturateWheelSpeedsWithLimits scales module speeds down so that no module exceeds
// maxModuleSpeed and the chassis speeds they produce respect the translational and rotational
// limits.
func DesaturateWheelSpeedsWithLimits(
	states []ModuleState,
	desired ChassisSpeeds,
	maxModuleSpeed, maxTranslationSpeed, maxRotationSpeed float64,
) {
	realMax := maxAbsSpeed(states)
	if realMax == 0 {
		return
	}

	translationPct := 0.0
	if math.Abs(maxTranslationSpeed) > 1e-8 {
		translationPct = desired.LinearSpeed() / maxTranslationSpeed
	}
	rotationPct := 0.0
	if math.Abs(maxRotationSpeed) > 1e-8 {
		rotationPct = math.Abs(desired.Omega) / math.Abs(maxRotationSpeed)
	}
	maxPct := math.Max(translationPct, rotationPct)

	scale := math.Min(1, maxModuleSpeed/realMax)
	if maxPct > 0 {
		scale = math.Min(scale, 1/maxPct)
	}
	for i := range states {
		states[i].Speed *= scale
	}
}

func maxAbsSpeed(states []ModuleState) float64 {
	if len(states) == 0 {
		return 0
	}
	speeds := make([]float64, len(states))
	for i, s := range states {
		speeds[i] = math.Abs(s.Speed)
	}
	return floats.Max(speeds)
}
