// Package trajectory generates time-parameterized trajectories from sampled paths, honoring
// motor torque, wheel friction and path constraints, and loads trajectories solved by Choreo.
package trajectory

import (
	"math"

	"github.com/samber/lo"

	"go.viam.com/pathplanner/events"
	"go.viam.com/pathplanner/flipping"
	"go.viam.com/pathplanner/spatialmath"
)

// Trajectory is an immutable list of states with strictly increasing times and the events to run
// while following it.
type Trajectory struct {
	states []State
	events []events.Event
}

// New wraps already timed states and events.
func New(states []State, evts []events.Event) *Trajectory {
	return &Trajectory{states: states, events: evts}
}

// States returns the states of the trajectory.
func (t *Trajectory) States() []State {
	return t.states
}

// Events returns the events of the trajectory, ordered by time.
func (t *Trajectory) Events() []events.Event {
	return t.events
}

// State returns the i-th state.
func (t *Trajectory) State(i int) State {
	return t.states[i]
}

// InitialState is the first state.
func (t *Trajectory) InitialState() State {
	return t.states[0]
}

// EndState is the last state.
func (t *Trajectory) EndState() State {
	return t.states[len(t.states)-1]
}

// InitialPose is the pose of the first state.
func (t *Trajectory) InitialPose() spatialmath.Pose {
	return t.InitialState().Pose
}

// TotalTime is the time of the last state.
func (t *Trajectory) TotalTime() float64 {
	return t.EndState().Time
}

// Sample returns the state at the given time, clamped to the ends of the trajectory.
func (t *Trajectory) Sample(time float64) State {
	if time <= t.InitialState().Time {
		return t.InitialState()
	}
	if time >= t.TotalTime() {
		return t.EndState()
	}

	low, high := 1, len(t.states)-1
	for low != high {
		mid := (low + high) / 2
		if t.states[mid].Time < time {
			low = mid + 1
		} else {
			high = mid
		}
	}

	sample := t.states[low]
	prev := t.states[low-1]
	if time == sample.Time || math.Abs(sample.Time-prev.Time) < 1e-3 {
		return sample
	}
	return prev.Interpolate(sample, (time-prev.Time)/(sample.Time-prev.Time))
}

// Flip returns the trajectory on the other half of the field. Event times are unchanged.
func (t *Trajectory) Flip(policy flipping.Policy) *Trajectory {
	return &Trajectory{
		states: lo.Map(t.states, func(s State, _ int) State { return s.Flip(policy) }),
		events: t.events,
	}
}
