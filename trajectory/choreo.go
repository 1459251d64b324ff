package trajectory

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"weak"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/pathplanner/events"
	"go.viam.com/pathplanner/flipping"
	"go.viam.com/pathplanner/kinematics"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
)

const maxChoreoVersion = 1

type choreoSample struct {
	T       float64   `json:"t"`
	X       float64   `json:"x"`
	Y       float64   `json:"y"`
	Heading float64   `json:"heading"`
	Vx      float64   `json:"vx"`
	Vy      float64   `json:"vy"`
	Omega   float64   `json:"omega"`
	Fx      []float64 `json:"fx"`
	Fy      []float64 `json:"fy"`
}

type choreoEvent struct {
	Name string `json:"name"`
	From struct {
		TargetTimestamp float64 `json:"targetTimestamp"`
		Offset          struct {
			Val float64 `json:"val"`
		} `json:"offset"`
	} `json:"from"`
	Event json.RawMessage `json:"event"`
}

type choreoFile struct {
	Version    interface{} `json:"version"`
	Trajectory struct {
		Samples []choreoSample `json:"samples"`
		Splits  []int          `json:"splits"`
	} `json:"trajectory"`
	Events []choreoEvent `json:"events"`
}

// choreoTrajectories maps Choreo paths to their pre-solved trajectories.
var choreoTrajectories sync.Map

func registerChoreoTrajectory(p *path.Path, traj *Trajectory) {
	key := weak.Make(p)
	choreoTrajectories.Store(key, traj)
	runtime.AddCleanup(p, func(k weak.Pointer[path.Path]) { choreoTrajectories.Delete(k) }, key)
}

func choreoTrajectoryOf(p *path.Path) (*Trajectory, error) {
	traj, ok := choreoTrajectories.Load(weak.Make(p))
	if !ok {
		return nil, errors.Errorf("choreo path %q has no trajectory", p.Name())
	}
	return traj.(*Trajectory), nil
}

// ChoreoPaths are the paths loaded from one Choreo trajectory file: the whole trajectory and one
// path per split.
type ChoreoPaths struct {
	Full   *path.Path
	Splits []*path.Path
}

func checkChoreoVersion(name string, version interface{}) error {
	v, ok := version.(float64)
	if !ok {
		return nil
	}
	if v > maxChoreoVersion {
		return &path.FileVersionError{File: name + ".traj", Version: strconv.FormatFloat(v, 'f', -1, 64)}
	}
	return nil
}

func choreoState(s choreoSample) State {
	pose := spatialmath.NewPose(s.X, s.Y, spatialmath.NewRotation(s.Heading))
	speeds := kinematics.ChassisSpeeds{Vx: s.Vx, Vy: s.Vy, Omega: s.Omega}
	state := State{
		Time:           s.T,
		Pose:           pose,
		FieldSpeeds:    speeds,
		LinearVelocity: speeds.LinearSpeed(),
		Heading:        pose.Rotation,
		Constraints:    path.NewUnlimitedConstraints(12),
		maxV:           math.Inf(1),
	}
	if state.LinearVelocity > 1e-6 {
		state.Heading = spatialmath.NewRotationFromVector(s.Vx, s.Vy)
	}

	n := min(len(s.Fx), len(s.Fy))
	ff := ZeroFeedforwards(n)
	toRobot := pose.Rotation.Neg()
	for m := range n {
		force := toRobot.Rotate(r2.Point{X: s.Fx[m], Y: s.Fy[m]})
		ff.RobotRelativeForcesX[m] = force.X
		ff.RobotRelativeForcesY[m] = force.Y
		ff.LinearForces[m] = force.Norm()
	}
	state.Feedforwards = ff
	return state
}

func choreoPath(name string, states []State, evts []events.Event) *path.Path {
	points := make([]path.Point, len(states))
	for i, s := range states {
		points[i] = path.Point{
			Position:    s.Pose.Translation,
			MaxV:        math.Inf(1),
			Constraints: path.NewUnlimitedConstraints(12),
		}
		if i > 0 {
			points[i].Distance = points[i-1].Distance + spatialmath.Distance(points[i-1].Position, s.Pose.Translation)
		}
	}
	first, last := states[0], states[len(states)-1]
	p := path.NewChoreoPath(name, points,
		&path.IdealStartingState{Velocity: first.LinearVelocity, Rotation: first.Pose.Rotation},
		path.GoalEndState{Velocity: last.LinearVelocity, Rotation: last.Pose.Rotation},
		nil)
	registerChoreoTrajectory(p, New(states, evts))
	return p
}

// ParseChoreo reads a Choreo trajectory file. Module forces are converted to robot-relative
// feedforwards; event commands are built with parser, which may be nil.
func ParseChoreo(name string, r io.Reader, parser path.CommandParser) (*ChoreoPaths, error) {
	var file choreoFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrapf(err, "malformed choreo file %q", name)
	}
	if err := checkChoreoVersion(name, file.Version); err != nil {
		return nil, err
	}
	samples := file.Trajectory.Samples
	if len(samples) == 0 {
		return nil, errors.Errorf("choreo file %q has no samples", name)
	}

	states := make([]State, len(samples))
	for i, s := range samples {
		states[i] = choreoState(s)
	}

	var evts []events.Event
	for _, e := range file.Events {
		timestamp := e.From.TargetTimestamp + e.From.Offset.Val
		evts = append(evts, events.NewOneShotTrigger(timestamp, e.Name))
		if len(e.Event) == 0 || string(e.Event) == "null" || parser == nil {
			continue
		}
		cmd, err := parser.ParseCommand(e.Event)
		if err != nil {
			return nil, errors.Wrapf(err, "choreo file %q event %q", name, e.Name)
		}
		evts = append(evts, events.NewScheduleCommand(timestamp, cmd))
	}
	sort.SliceStable(evts, func(i, j int) bool { return evts[i].Timestamp() < evts[j].Timestamp() })

	paths := &ChoreoPaths{Full: choreoPath(name, states, evts)}

	splits := append([]int(nil), file.Trajectory.Splits...)
	if len(splits) == 0 || splits[0] != 0 {
		splits = append([]int{0}, splits...)
	}
	for i, start := range splits {
		end := len(states)
		if i < len(splits)-1 {
			end = splits[i+1]
		}
		if start < 0 || end > len(states) || start >= end {
			return nil, errors.Errorf("choreo file %q has invalid split [%d, %d)", name, start, end)
		}

		startTime, endTime := states[start].Time, states[end-1].Time
		splitStates := make([]State, 0, end-start)
		for _, s := range states[start:end] {
			splitStates = append(splitStates, s.WithTime(s.Time-startTime))
		}
		var splitEvents []events.Event
		for _, e := range evts {
			if e.Timestamp() >= startTime && e.Timestamp() <= endTime {
				splitEvents = append(splitEvents, e.WithTimestamp(e.Timestamp()-startTime))
			}
		}
		paths.Splits = append(paths.Splits, choreoPath(fmt.Sprintf("%s.%d", name, i), splitStates, splitEvents))
	}
	return paths, nil
}

// ChoreoCache loads Choreo files through a path loader and caches the resulting paths by name.
// It is cleared together with the loader's cache.
type ChoreoCache struct {
	loader *path.Loader

	mu    sync.Mutex
	paths map[string]*path.Path
}

// NewChoreoCache returns an empty cache reading from loader.
func NewChoreoCache(loader *path.Loader) *ChoreoCache {
	c := &ChoreoCache{loader: loader, paths: map[string]*path.Path{}}
	loader.OnInvalidate(c.Clear)
	return c
}

// Clear forgets every loaded trajectory.
func (c *ChoreoCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = map[string]*path.Path{}
}

// splitName parses "name.i" references to a split.
func splitName(ref string) (string, int, bool) {
	dot := strings.LastIndexByte(ref, '.')
	if dot < 0 {
		return ref, 0, false
	}
	idx, err := strconv.Atoi(ref[dot+1:])
	if err != nil || idx < 0 {
		return ref, 0, false
	}
	return ref[:dot], idx, true
}

// Load returns the path of the named trajectory. A name of the form "traj.i" refers to split i
// of traj.
func (c *ChoreoCache) Load(ref string) (*path.Path, error) {
	if name, idx, ok := splitName(ref); ok {
		return c.LoadSplit(name, idx)
	}
	return c.load(ref, ref)
}

// LoadSplit returns split idx of the named trajectory.
func (c *ChoreoCache) LoadSplit(name string, idx int) (*path.Path, error) {
	return c.load(name, fmt.Sprintf("%s.%d", name, idx))
}

func (c *ChoreoCache) load(file, key string) (*path.Path, error) {
	c.mu.Lock()
	cached, ok := c.paths[key]
	_, loaded := c.paths[file]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}
	if loaded {
		return nil, errors.Errorf("choreo trajectory %q has no split %q", file, key)
	}

	f, err := c.loader.Open(path.ChoreoFile, file)
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	paths, err := ParseChoreo(file, f, c.loader.CommandParser())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[file] = paths.Full
	for i, split := range paths.Splits {
		c.paths[fmt.Sprintf("%s.%d", file, i)] = split
	}
	p, ok := c.paths[key]
	if !ok {
		return nil, errors.Errorf("choreo trajectory %q has no split %q", file, key)
	}
	return p, nil
}

// FlipPath returns p as driven from the other half of the field. The pre-solved trajectory of a
// Choreo path is flipped along with it.
func FlipPath(p *path.Path, policy flipping.Policy) *path.Path {
	flipped := p.Flip(policy)
	if p.IsChoreo() {
		if traj, err := choreoTrajectoryOf(p); err == nil {
			registerChoreoTrajectory(flipped, traj.Flip(policy))
		}
	}
	return flipped
}
