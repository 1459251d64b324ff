package control

import "math"

// ProfileConstraints bound a trapezoidal profile.
type ProfileConstraints struct {
	MaxVelocity     float64
	MaxAcceleration float64
}

// ProfileState is a position and velocity along a profile.
type ProfileState struct {
	Position float64
	Velocity float64
}

// TrapezoidProfile accelerates, cruises and decelerates between two states without exceeding its
// constraints.
type TrapezoidProfile struct {
	constraints ProfileConstraints
}

// NewTrapezoidProfile returns a profile with the given constraints.
func NewTrapezoidProfile(constraints ProfileConstraints) TrapezoidProfile {
	return TrapezoidProfile{constraints: constraints}
}

// Calculate returns the state t seconds into the profile from current to goal.
func (tp TrapezoidProfile) Calculate(t float64, current, goal ProfileState) ProfileState {
	dir := 1.0
	if current.Position > goal.Position {
		dir = -1
	}
	direct := func(s ProfileState) ProfileState {
		return ProfileState{Position: s.Position * dir, Velocity: s.Velocity * dir}
	}
	current, goal = direct(current), direct(goal)

	maxVel, maxAccel := tp.constraints.MaxVelocity, tp.constraints.MaxAcceleration
	if current.Velocity > maxVel {
		current.Velocity = maxVel
	}

	cutoffBegin := current.Velocity / maxAccel
	cutoffDistBegin := cutoffBegin * cutoffBegin * maxAccel / 2
	cutoffEnd := goal.Velocity / maxAccel
	cutoffDistEnd := cutoffEnd * cutoffEnd * maxAccel / 2

	// The full trapezoid as if it started and ended at rest.
	fullTrapezoidDist := cutoffDistBegin + (goal.Position - current.Position) + cutoffDistEnd
	accelTime := maxVel / maxAccel
	fullSpeedDist := fullTrapezoidDist - accelTime*accelTime*maxAccel
	if fullSpeedDist < 0 {
		accelTime = math.Sqrt(fullTrapezoidDist / maxAccel)
		fullSpeedDist = 0
	}

	endAccel := accelTime - cutoffBegin
	endFullSpeed := endAccel + fullSpeedDist/maxVel
	endDecel := endFullSpeed + accelTime - cutoffEnd

	result := current
	switch {
	case t < endAccel:
		result.Velocity += t * maxAccel
		result.Position += (current.Velocity + t*maxAccel/2) * t
	case t < endFullSpeed:
		result.Velocity = maxVel
		result.Position += (current.Velocity+endAccel*maxAccel/2)*endAccel + maxVel*(t-endAccel)
	case t <= endDecel:
		timeLeft := endDecel - t
		result.Velocity = goal.Velocity + timeLeft*maxAccel
		result.Position = goal.Position - (goal.Velocity+timeLeft*maxAccel/2)*timeLeft
	default:
		result = goal
	}
	return direct(result)
}
