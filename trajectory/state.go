package trajectory

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/pathplanner/flipping"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/utils"
)

// DriveFeedforwards are the per-module feedforwards describing the transition into the next
// state. Each slice has one entry per module.
type DriveFeedforwards struct {
	Accelerations        []float64 // m/s^2
	LinearForces         []float64 // N
	TorqueCurrents       []float64 // A
	RobotRelativeForcesX []float64 // N
	RobotRelativeForcesY []float64 // N
}

// ZeroFeedforwards returns all-zero feedforwards for n modules.
func ZeroFeedforwards(n int) DriveFeedforwards {
	return DriveFeedforwards{
		Accelerations:        make([]float64, n),
		LinearForces:         make([]float64, n),
		TorqueCurrents:       make([]float64, n),
		RobotRelativeForcesX: make([]float64, n),
		RobotRelativeForcesY: make([]float64, n),
	}
}

// NumModules is the number of modules the feedforwards describe.
func (f DriveFeedforwards) NumModules() int {
	return len(f.Accelerations)
}

func lerpSlice(a, b []float64, t float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		if i < len(b) {
			out[i] = utils.Lerp(a[i], b[i], t)
		}
	}
	return out
}

// Interpolate lerps every entry towards end.
func (f DriveFeedforwards) Interpolate(end DriveFeedforwards, t float64) DriveFeedforwards {
	return DriveFeedforwards{
		Accelerations:        lerpSlice(f.Accelerations, end.Accelerations, t),
		LinearForces:         lerpSlice(f.LinearForces, end.LinearForces, t),
		TorqueCurrents:       lerpSlice(f.TorqueCurrents, end.TorqueCurrents, t),
		RobotRelativeForcesX: lerpSlice(f.RobotRelativeForcesX, end.RobotRelativeForcesX, t),
		RobotRelativeForcesY: lerpSlice(f.RobotRelativeForcesY, end.RobotRelativeForcesY, t),
	}
}

func negate(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = -v
	}
	return out
}

// Reverse returns the feedforwards of a differential drive driving backwards, which only changes
// their sign since the modules are laid out from the already reversed pose.
func (f DriveFeedforwards) Reverse() (DriveFeedforwards, error) {
	if f.NumModules() != 2 {
		return DriveFeedforwards{}, errors.Errorf("only differential feedforwards can be reversed, got %d modules", f.NumModules())
	}
	return DriveFeedforwards{
		Accelerations:        negate(f.Accelerations),
		LinearForces:         negate(f.LinearForces),
		TorqueCurrents:       negate(f.TorqueCurrents),
		RobotRelativeForcesX: negate(f.RobotRelativeForcesX),
		RobotRelativeForcesY: negate(f.RobotRelativeForcesY),
	}, nil
}

// Flip returns the feedforwards on the other half of the field.
func (f DriveFeedforwards) Flip(policy flipping.Policy) DriveFeedforwards {
	return DriveFeedforwards{
		Accelerations:        policy.Feedforwards(f.Accelerations),
		LinearForces:         policy.Feedforwards(f.LinearForces),
		TorqueCurrents:       policy.Feedforwards(f.TorqueCurrents),
		RobotRelativeForcesX: policy.FeedforwardXs(f.RobotRelativeForcesX),
		RobotRelativeForcesY: policy.FeedforwardYs(f.RobotRelativeForcesY),
	}
}

// ModuleTrajectoryState is the state of one module while generating a trajectory.
type ModuleTrajectoryState struct {
	kinematics.ModuleState
	// FieldAngle is the module's direction of travel on the field.
	FieldAngle spatialmath.Rotation
	FieldPos   r2.Point
	// DeltaPos is the distance the module travelled from the previous state.
	DeltaPos float64
}

// State is one sample of a trajectory.
type State struct {
	Time           float64
	FieldSpeeds    kinematics.ChassisSpeeds
	Pose           spatialmath.Pose
	LinearVelocity float64
	Feedforwards   DriveFeedforwards

	// Heading is the direction of travel.
	Heading             spatialmath.Rotation
	DeltaPos            float64
	DeltaRot            spatialmath.Rotation
	ModuleStates        []ModuleTrajectoryState
	Constraints         path.Constraints
	WaypointRelativePos float64

	maxV float64
}

// RobotRelativeSpeeds returns the chassis speeds in the robot frame.
func (s State) RobotRelativeSpeeds() kinematics.ChassisSpeeds {
	return s.FieldSpeeds.ToRobotRelative(s.Pose.Rotation)
}

// WithTime returns a copy of the state at time t.
func (s State) WithTime(t float64) State {
	s.Time = t
	return s
}

// Interpolate returns the state a fraction t of the way to end. Pose moves along the shortest
// arc; speeds and feedforwards are lerped.
func (s State) Interpolate(end State, t float64) State {
	lerped := State{Time: utils.Lerp(s.Time, end.Time, t)}
	if lerped.Time-s.Time < 0 {
		return end.Interpolate(s, 1-t)
	}
	lerped.FieldSpeeds = s.FieldSpeeds.Interpolate(end.FieldSpeeds, t)
	lerped.Pose = s.Pose.Interpolate(end.Pose, t)
	lerped.LinearVelocity = utils.Lerp(s.LinearVelocity, end.LinearVelocity, t)
	lerped.Feedforwards = s.Feedforwards.Interpolate(end.Feedforwards, t)
	lerped.Heading = s.Heading.Interpolate(end.Heading, t)
	lerped.WaypointRelativePos = utils.Lerp(s.WaypointRelativePos, end.WaypointRelativePos, t)
	if t < 0.5 {
		lerped.Constraints = s.Constraints
	} else {
		lerped.Constraints = end.Constraints
	}
	return lerped
}

// Reverse returns the reference a differential controller tracks while a reversed path is
// driven: the pose already faces backwards, so robot-forward speeds and feedforwards change sign.
func (s State) Reverse() (State, error) {
	reversed := s
	reversed.LinearVelocity = -s.LinearVelocity
	reversed.ModuleStates = make([]ModuleTrajectoryState, len(s.ModuleStates))
	for i, ms := range s.ModuleStates {
		ms.Speed = -ms.Speed
		ms.Angle = ms.Angle.Plus(spatialmath.NewRotation(math.Pi))
		reversed.ModuleStates[i] = ms
	}
	if s.Feedforwards.NumModules() > 0 {
		ff, err := s.Feedforwards.Reverse()
		if err != nil {
			return State{}, err
		}
		reversed.Feedforwards = ff
	}
	return reversed, nil
}

// Flip returns the state on the other half of the field.
func (s State) Flip(policy flipping.Policy) State {
	flipped := s
	flipped.Pose = policy.Pose(s.Pose)
	flipped.FieldSpeeds = policy.FieldSpeeds(s.FieldSpeeds)
	flipped.Heading = policy.Rotation(s.Heading)
	flipped.Feedforwards = s.Feedforwards.Flip(policy)
	flipped.ModuleStates = nil
	return flipped
}
