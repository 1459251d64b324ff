package trajectory

import (
	"math"
	"sort"

	"github.com/golang/geo/r2"

	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/events"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/utils"
)

// Modules whose steer angle changes by this much between states are treated as re-orienting and
// left out when unifying the time step.
const moduleReorientThresholdDeg = 60

// Generate builds the trajectory of p for a robot starting with the given robot-relative speeds
// and rotation. Choreo paths return their pre-solved trajectory.
//
// Generation runs a forward pass limiting each state by the acceleration available from the
// previous one and a reverse pass limiting it by the deceleration needed to reach the next, then
// integrates time and computes the feedforwards of every transition.
func Generate(
	p *path.Path,
	startingSpeeds kinematics.ChassisSpeeds,
	startingRotation spatialmath.Rotation,
	rc *config.RobotConfig,
) (*Trajectory, error) {
	if p.IsChoreo() {
		return choreoTrajectoryOf(p)
	}
	if rc == nil {
		return nil, config.NewConfigNotReadyError("robot config")
	}
	if p.NumPoints() < 2 {
		return nil, path.NewInvalidInputError("path %q has %d points, need at least 2", p.Name(), p.NumPoints())
	}

	g := &generator{rc: rc, name: p.Name(), states: generateStates(p, startingRotation, rc)}
	g.setStartingState(startingSpeeds)
	g.forwardAccelPass()
	g.setEndState(p.GoalEndState())
	g.reverseAccelPass()
	evts, err := g.integrate(markerEvents(p))
	if err != nil {
		return nil, err
	}
	return New(g.states, evts), nil
}

type generator struct {
	rc     *config.RobotConfig
	name   string
	states []State
}

func nextRotationTargetIdx(points []path.Point, start int) int {
	for i := start; i < len(points)-1; i++ {
		if points[i].RotationTarget != nil {
			return i
		}
	}
	return len(points) - 1
}

func targetRotation(p *path.Path, idx int) spatialmath.Rotation {
	if target := p.Point(idx).RotationTarget; target != nil {
		return target.Rotation
	}
	return p.GoalEndState().Rotation
}

// generateStates lays out the pose, heading and module geometry of every point.
func generateStates(p *path.Path, startingRotation spatialmath.Rotation, rc *config.RobotConfig) []State {
	points := p.Points()
	n := len(points)
	states := make([]State, n)

	prevTargetIdx := 0
	prevTargetRot := startingRotation
	nextTargetIdx := nextRotationTargetIdx(points, 0)
	nextTargetRot := targetRotation(p, nextTargetIdx)

	for i, pt := range points {
		if i > nextTargetIdx {
			prevTargetIdx = nextTargetIdx
			prevTargetRot = nextTargetRot
			nextTargetIdx = nextRotationTargetIdx(points, i)
			nextTargetRot = targetRotation(p, nextTargetIdx)
		}

		t := 1.0
		if span := points[nextTargetIdx].Distance - points[prevTargetIdx].Distance; span > 0 {
			t = (pt.Distance - points[prevTargetIdx].Distance) / span
		}
		holonomicRot := prevTargetRot.Interpolate(nextTargetRot, (1-math.Cos(math.Pi*t))/2)

		state := &states[i]
		state.Constraints = pt.Constraints
		state.WaypointRelativePos = pt.WaypointRelativePos
		state.maxV = pt.MaxV
		if i < n-1 {
			d := points[i+1].Position.Sub(pt.Position)
			state.Heading = spatialmath.NewRotationFromVector(d.X, d.Y)
		} else {
			state.Heading = states[i-1].Heading
		}

		rot := state.Heading
		switch {
		case rc.Holonomic:
			rot = holonomicRot
		case p.IsReversed():
			rot = state.Heading.Plus(spatialmath.NewRotation(math.Pi))
		}
		state.Pose = spatialmath.Pose{Translation: pt.Position, Rotation: rot}
		if i > 0 {
			state.DeltaPos = pt.Distance - points[i-1].Distance
			state.DeltaRot = rot.Minus(states[i-1].Pose.Rotation)
		}

		state.ModuleStates = make([]ModuleTrajectoryState, rc.NumModules)
		for m, loc := range rc.ModuleLocations {
			ms := &state.ModuleStates[m]
			ms.FieldPos = pt.Position.Add(rot.Rotate(loc))
			if i > 0 {
				ms.DeltaPos = spatialmath.Distance(ms.FieldPos, states[i-1].ModuleStates[m].FieldPos)
			}
		}
	}

	for i := range states {
		for m := range states[i].ModuleStates {
			ms := &states[i].ModuleStates[m]
			if i < n-1 {
				d := states[i+1].ModuleStates[m].FieldPos.Sub(ms.FieldPos)
				ms.FieldAngle = spatialmath.NewRotationFromVector(d.X, d.Y)
			} else {
				ms.FieldAngle = states[i-1].ModuleStates[m].FieldAngle
			}
			ms.Angle = ms.FieldAngle.Minus(states[i].Pose.Rotation)
		}
	}
	return states
}

func (g *generator) setStartingState(robotSpeeds kinematics.ChassisSpeeds) {
	first := &g.states[0]
	first.Time = 0
	first.FieldSpeeds = robotSpeeds.ToFieldRelative(first.Pose.Rotation)
	first.LinearVelocity = first.FieldSpeeds.LinearSpeed()
	for m, ms := range g.rc.ToModuleStates(robotSpeeds) {
		first.ModuleStates[m].Speed = math.Abs(ms.Speed)
	}
}

func (g *generator) setEndState(goal path.GoalEndState) {
	last := &g.states[len(g.states)-1]
	last.FieldSpeeds = kinematics.ChassisSpeeds{
		Vx: goal.Velocity * last.Heading.Cos(),
		Vy: goal.Velocity * last.Heading.Sin(),
	}
	last.LinearVelocity = goal.Velocity
	for m, ms := range g.rc.ToModuleStates(last.RobotRelativeSpeeds()) {
		last.ModuleStates[m].Speed = math.Abs(ms.Speed)
	}
}

// moduleAccelerations returns the acceleration each module of state can reach when every drive
// motor pushes along its module's direction of travel, rotated by forceOffset, starting from the
// given module speeds.
func (g *generator) moduleAccelerations(
	state *State,
	fromSpeeds func(m int) float64,
	forceOffset spatialmath.Rotation,
	subtractTorqueLoss bool,
) []float64 {
	module := g.rc.Module
	var linearForce r2.Point
	torque := 0.0
	for m := range state.ModuleStates {
		ms := &state.ModuleStates[m]
		current := math.Min(
			module.DriveMotor.Current(fromSpeeds(m)/module.WheelRadius, state.Constraints.Voltage()),
			module.DriveCurrentLimit,
		)
		wheelTorque := module.DriveMotor.Torque(current)
		if subtractTorqueLoss {
			wheelTorque -= module.TorqueLoss
		}
		wheelTorque = math.Min(wheelTorque, g.rc.MaxTorqueFriction)
		forceAtCarpet := wheelTorque / module.WheelRadius

		forceDir := ms.FieldAngle.Plus(forceOffset)
		linearForce = linearForce.Add(spatialmath.PolarPoint(forceAtCarpet, forceDir))
		angleToModule := spatialmath.AngleOf(ms.FieldPos.Sub(state.Pose.Translation))
		torque += forceAtCarpet * g.rc.ModulePivotDistance[m] * forceDir.Minus(angleToModule).Sin()
	}

	accel := linearForce.Mul(1 / g.rc.Mass)
	if norm := accel.Norm(); norm > state.Constraints.MaxAcceleration {
		accel = accel.Mul(state.Constraints.MaxAcceleration / norm)
	}
	maxAngAccel := state.Constraints.MaxAngularAcceleration
	angAccel := utils.Clamp(torque/g.rc.MOI, -maxAngAccel, maxAngAccel)

	chassisAccel := kinematics.ChassisSpeeds{Vx: accel.X, Vy: accel.Y, Omega: angAccel}.
		ToRobotRelative(state.Pose.Rotation)
	accels := make([]float64, len(state.ModuleStates))
	for m, ms := range g.rc.ToModuleStates(chassisAccel) {
		accels[m] = math.Abs(ms.Speed)
	}
	return accels
}

func (g *generator) forwardAccelPass() {
	for i := 1; i < len(g.states)-1; i++ {
		prev, state, next := &g.states[i-1], &g.states[i], &g.states[i+1]
		accels := g.moduleAccelerations(state, func(m int) float64 {
			return prev.ModuleStates[m].Speed
		}, spatialmath.Rotation{}, true)

		for m := range state.ModuleStates {
			ms := &state.ModuleStates[m]
			v := math.Sqrt(math.Abs(utils.Square(prev.ModuleStates[m].Speed) + 2*accels[m]*ms.DeltaPos))
			radius := spatialmath.CalculateRadius(
				prev.ModuleStates[m].FieldPos, ms.FieldPos, next.ModuleStates[m].FieldPos)
			if utils.IsFinite(radius) {
				v = math.Min(v, g.rc.MaxCentripetalSpeed(radius))
			}
			ms.Speed = v
		}

		unifyModuleTimes(state, prev, next)
		g.desaturate(state, math.Min(state.Constraints.MaxVelocity, state.maxV), state.Constraints.MaxAngularVelocity)
	}
}

func (g *generator) reverseAccelPass() {
	for i := len(g.states) - 2; i > 0; i-- {
		prev, state, next := &g.states[i-1], &g.states[i], &g.states[i+1]
		accels := g.moduleAccelerations(state, func(m int) float64 {
			return next.ModuleStates[m].Speed
		}, spatialmath.NewRotation(math.Pi), false)

		for m := range state.ModuleStates {
			ms := &state.ModuleStates[m]
			nextMs := next.ModuleStates[m]
			maxVel := math.Sqrt(math.Abs(utils.Square(nextMs.Speed) + 2*accels[m]*nextMs.DeltaPos))
			ms.Speed = math.Min(maxVel, ms.Speed)
		}

		unifyModuleTimes(state, prev, next)
		g.desaturate(state,
			math.Min(state.Constraints.MaxVelocity, state.LinearVelocity),
			math.Min(state.Constraints.MaxAngularVelocity, math.Abs(state.FieldSpeeds.Omega)))
	}
}

// unifyModuleTimes slows modules down so that every module not re-orienting since ref reaches
// its next position at the same time.
func unifyModuleTimes(state, ref, next *State) {
	maxDT, realMaxDT := 0.0, 0.0
	reorienting := make([]bool, len(state.ModuleStates))
	for m := range state.ModuleStates {
		delta := state.ModuleStates[m].Angle.Minus(ref.ModuleStates[m].Angle)
		reorienting[m] = math.Abs(delta.Degrees()) >= moduleReorientThresholdDeg
		dt := next.ModuleStates[m].DeltaPos / state.ModuleStates[m].Speed
		if !utils.IsFinite(dt) {
			continue
		}
		realMaxDT = math.Max(realMaxDT, dt)
		if !reorienting[m] {
			maxDT = math.Max(maxDT, dt)
		}
	}
	if maxDT == 0 {
		maxDT = realMaxDT
	}
	if maxDT <= 0 {
		return
	}
	for m := range state.ModuleStates {
		if !reorienting[m] {
			state.ModuleStates[m].Speed = next.ModuleStates[m].DeltaPos / maxDT
		}
	}
}

// desaturate scales the module speeds of state into the drive and chassis limits and derives the
// chassis speeds from the result.
func (g *generator) desaturate(state *State, maxChassisVel, maxChassisAngVel float64) {
	modules := make([]kinematics.ModuleState, len(state.ModuleStates))
	for m := range state.ModuleStates {
		modules[m] = state.ModuleStates[m].ModuleState
	}
	desired := g.rc.ToChassisSpeeds(modules)
	kinematics.DesaturateWheelSpeedsWithLimits(
		modules, desired, g.rc.Module.MaxDriveVelocity, maxChassisVel, maxChassisAngVel)
	for m := range state.ModuleStates {
		state.ModuleStates[m].Speed = modules[m].Speed
	}
	state.FieldSpeeds = g.rc.ToChassisSpeeds(modules).ToFieldRelative(state.Pose.Rotation)
	state.LinearVelocity = state.FieldSpeeds.LinearSpeed()
}

// integrate assigns times from the average speed over each step, stores on each state the
// feedforwards of the step leaving it and stamps pending events, whose timestamps are waypoint
// relative positions, with the time of the nearest state.
func (g *generator) integrate(pending []events.Event) ([]events.Event, error) {
	n := len(g.states)
	stamped := make([]events.Event, 0, len(pending))
	for i := 1; i < n; i++ {
		prev, state := &g.states[i-1], &g.states[i]
		for _, ms := range state.ModuleStates {
			if !utils.IsFinite(ms.Speed) {
				return nil, newIllConditionedError(g.name, i, "module speed")
			}
		}

		if state.DeltaPos <= 1e-9 {
			state.Time = prev.Time
			if i > 1 {
				prev.Feedforwards = g.states[i-2].Feedforwards
			} else {
				prev.Feedforwards = ZeroFeedforwards(g.rc.NumModules)
			}
		} else {
			dt := 2 * state.DeltaPos / (state.LinearVelocity + prev.LinearVelocity)
			if !utils.IsFinite(dt) || dt <= 0 {
				return nil, newIllConditionedError(g.name, i, "time step")
			}
			state.Time = prev.Time + dt
			prev.Feedforwards = g.feedforwards(prev, state, dt)
		}

		for len(pending) > 0 &&
			math.Abs(pending[0].Timestamp()-prev.WaypointRelativePos) <=
				math.Abs(pending[0].Timestamp()-state.WaypointRelativePos) {
			stamped = append(stamped, pending[0].WithTimestamp(prev.Time))
			pending = pending[1:]
		}
	}
	g.states[n-1].Feedforwards = ZeroFeedforwards(g.rc.NumModules)

	end := g.states[n-1].Time
	for _, e := range pending {
		stamped = append(stamped, e.WithTimestamp(end))
	}
	return stamped, nil
}

func (g *generator) feedforwards(prev, state *State, dt float64) DriveFeedforwards {
	prevSpeeds := prev.RobotRelativeSpeeds()
	speeds := state.RobotRelativeSpeeds()
	ax := (speeds.Vx - prevSpeeds.Vx) / dt
	ay := (speeds.Vy - prevSpeeds.Vy) / dt
	alpha := (speeds.Omega - prevSpeeds.Omega) / dt
	wheelForces := g.rc.ChassisForcesToWheelForces(ax*g.rc.Mass, ay*g.rc.Mass, alpha*g.rc.MOI)

	ff := ZeroFeedforwards(g.rc.NumModules)
	for m, force := range wheelForces {
		applied := 0.0
		if norm := force.Norm(); norm > 1e-6 {
			applied = norm * spatialmath.AngleOf(force).Minus(state.ModuleStates[m].Angle).Cos()
		}
		ff.Accelerations[m] = (state.ModuleStates[m].Speed - prev.ModuleStates[m].Speed) / dt
		ff.LinearForces[m] = applied
		ff.TorqueCurrents[m] = g.rc.Module.DriveMotor.CurrentForTorque(applied * g.rc.Module.WheelRadius)
		ff.RobotRelativeForcesX[m] = force.X
		ff.RobotRelativeForcesY[m] = force.Y
	}
	return ff
}

// markerEvents returns the events of p's markers and point towards zones, timestamped with their
// waypoint relative positions and ordered by them.
func markerEvents(p *path.Path) []events.Event {
	var evts []events.Event
	for _, m := range p.EventMarkers() {
		if m.IsZoned() {
			evts = append(evts, events.NewActivateEvent(m.Position, m.TriggerName))
			if m.Command != nil {
				evts = append(evts,
					events.NewScheduleCommand(m.Position, m.Command),
					events.NewCancelCommand(m.EndPosition, m.Command))
			}
			evts = append(evts, events.NewDeactivateEvent(m.EndPosition, m.TriggerName))
			continue
		}
		if m.Command != nil {
			evts = append(evts, events.NewScheduleCommand(m.Position, m.Command))
		}
		if m.TriggerName != "" {
			evts = append(evts, events.NewOneShotTrigger(m.Position, m.TriggerName))
		}
	}
	for _, z := range p.PointTowardsZones() {
		evts = append(evts,
			events.NewPointTowardsZoneEvent(z.MinPosition, z.Name, true),
			events.NewPointTowardsZoneEvent(z.MaxPosition, z.Name, false))
	}
	sort.SliceStable(evts, func(i, j int) bool { return evts[i].Timestamp() < evts[j].Timestamp() })
	return evts
}
