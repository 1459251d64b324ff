package pathfinding

import (
	"container/heap"
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/utils"
)

const (
	initialEps        = 2.5
	epsStep           = 0.5
	maxExtractSteps   = 200
	smoothingAnchor   = 0.8
	plannerIdlePeriod = 10 * time.Millisecond
)

// searchKey orders OPEN; keys compare lexicographically.
type searchKey struct {
	primary, secondary float64
}

func (k searchKey) less(o searchKey) bool {
	if k.primary == o.primary {
		return k.secondary < o.secondary
	}
	return k.primary < o.primary
}

type openEntry struct {
	cell int
	key  searchKey
}

// openQueue is a min-heap over OPEN. Entries whose key no longer matches OPEN are stale and are
// skipped when they reach the top.
type openQueue []openEntry

func (q openQueue) Len() int           { return len(q) }
func (q openQueue) Less(i, j int) bool { return q[i].key.less(q[j].key) }
func (q openQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *openQueue) Push(x any) {
	*q = append(*q, x.(openEntry))
}

func (q *openQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}

// request is a snapshot of what the worker was asked to do.
type request struct {
	reset, minor, major bool
	start, goal         GridPosition
	realStart, realGoal r2.Point
	obstacles           []bool
}

// LocalADStar is an anytime dynamic A* pathfinder over the navigation grid. Planning runs on a
// background worker; callers post start, goal and obstacle changes and poll for new paths.
type LocalADStar struct {
	logger          logging.Logger
	grid            cellGrid
	staticObstacles []bool

	requestMu        sync.Mutex
	requestStart     GridPosition
	requestGoal      GridPosition
	requestRealStart r2.Point
	requestRealGoal  r2.Point
	requestObstacles []bool
	requestReset     bool
	requestMinor     bool
	requestMajor     bool

	pathMu           sync.Mutex
	currentID        string
	currentCells     []GridPosition
	currentWaypoints []path.Waypoint

	newPathAvailable atomic.Bool

	// search state, owned by the worker
	eps    float64
	g, rhs []float64
	open   map[int]searchKey
	queue  openQueue
	incons map[int]struct{}
	closed []bool

	workers utils.StoppableWorkers
}

// NewLocalADStar starts a pathfinder over the given grid. A nil grid is an empty default field.
func NewLocalADStar(grid *NavGrid, logger logging.Logger) *LocalADStar {
	a := newLocalADStar(grid, logger)
	a.workers = utils.NewBackgroundLoop(plannerIdlePeriod, a.step)
	return a
}

func newLocalADStar(grid *NavGrid, logger logging.Logger) *LocalADStar {
	if grid == nil {
		grid = DefaultNavGrid()
	}
	cg := cellGrid{nodeSize: grid.NodeSize, nodesX: grid.Columns(), nodesY: grid.Rows()}
	static := make([]bool, cg.size())
	for y, row := range grid.Grid {
		for x, blocked := range row {
			if blocked && x < cg.nodesX {
				static[cg.index(GridPosition{X: x, Y: y})] = true
			}
		}
	}
	return &LocalADStar{
		logger:           logger,
		grid:             cg,
		staticObstacles:  static,
		requestObstacles: slices.Clone(static),
		requestReset:     true,
		requestMinor:     true,
		requestMajor:     true,
		eps:              initialEps,
		open:             map[int]searchKey{},
		incons:           map[int]struct{}{},
	}
}

// Close stops the planning worker.
func (a *LocalADStar) Close() {
	if a.workers != nil {
		a.workers.Stop()
	}
}

// IsNewPathAvailable reports whether a path was published since the last CurrentPath call.
func (a *LocalADStar) IsNewPathAvailable() bool {
	return a.newPathAvailable.Load()
}

// CurrentPath builds a path from the most recently published waypoints. Paths built from the
// same publication share a name. It returns false when there is no path to the goal.
func (a *LocalADStar) CurrentPath(constraints path.Constraints, goal path.GoalEndState) (*path.Path, bool) {
	a.pathMu.Lock()
	id := a.currentID
	waypoints := slices.Clone(a.currentWaypoints)
	a.pathMu.Unlock()

	a.newPathAvailable.Store(false)

	if len(waypoints) < 2 {
		return nil, false
	}
	p, err := path.New(path.Params{
		Name:              "pathfinding-" + id,
		Waypoints:         waypoints,
		GlobalConstraints: constraints,
		GoalEndState:      goal,
	})
	if err != nil {
		a.logger.Warnw("cannot build pathfinding path", "error", err)
		return nil, false
	}
	return p, true
}

// SetStartPosition moves the start of the search. A start inside an obstacle is moved to the
// closest free cell.
func (a *LocalADStar) SetStartPosition(pos r2.Point) {
	a.requestMu.Lock()
	defer a.requestMu.Unlock()

	cell, ok := a.grid.closestFree(a.grid.cellOf(pos), a.requestObstacles)
	if !ok || cell == a.requestStart {
		return
	}
	a.requestStart = cell
	a.requestRealStart = pos
	a.requestMinor = true
	a.newPathAvailable.Store(false)
}

// SetGoalPosition moves the goal of the search and restarts it. A goal inside an obstacle is
// moved to the closest free cell.
func (a *LocalADStar) SetGoalPosition(pos r2.Point) {
	a.requestMu.Lock()
	defer a.requestMu.Unlock()

	cell, ok := a.grid.closestFree(a.grid.cellOf(pos), a.requestObstacles)
	if !ok {
		return
	}
	a.requestGoal = cell
	a.requestRealGoal = pos
	a.requestReset = true
	a.requestMinor = true
	a.requestMajor = true
	a.newPathAvailable.Store(false)
}

// SetDynamicObstacles replaces the dynamic obstacles. When the current path runs into one of
// them, planning restarts from robotPos.
func (a *LocalADStar) SetDynamicObstacles(obstacles []BoundingBox, robotPos r2.Point) error {
	if err := validateBoxes(obstacles); err != nil {
		return err
	}
	dynamic := a.grid.rasterize(obstacles)

	a.requestMu.Lock()
	for i := range a.requestObstacles {
		a.requestObstacles[i] = a.staticObstacles[i] || dynamic[i]
	}
	realGoal := a.requestRealGoal
	a.requestMu.Unlock()

	a.pathMu.Lock()
	blocked := slices.ContainsFunc(a.currentCells, func(c GridPosition) bool {
		return dynamic[a.grid.index(c)]
	})
	a.pathMu.Unlock()

	if blocked {
		a.SetStartPosition(robotPos)
		a.SetGoalPosition(realGoal)
	}
	return nil
}

// step runs one planning pass and reports whether there was anything to do.
func (a *LocalADStar) step(_ context.Context) (worked bool) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warnw("pathfinding pass failed, resetting search", "error", r)
			a.requestMu.Lock()
			a.requestReset = true
			a.requestMinor = true
			a.requestMajor = true
			a.requestMu.Unlock()
			worked = false
		}
	}()

	req, ok := a.takeRequest()
	if !ok {
		return false
	}
	a.doWork(req)
	return true
}

func (a *LocalADStar) takeRequest() (request, bool) {
	a.requestMu.Lock()
	defer a.requestMu.Unlock()

	if !a.requestReset && !a.requestMinor && !a.requestMajor {
		return request{}, false
	}
	req := request{
		reset:     a.requestReset,
		minor:     a.requestMinor,
		major:     a.requestMajor,
		start:     a.requestStart,
		goal:      a.requestGoal,
		realStart: a.requestRealStart,
		realGoal:  a.requestRealGoal,
		obstacles: slices.Clone(a.requestObstacles),
	}
	a.requestReset = false
	if req.minor {
		a.requestMinor = false
	} else if req.major && a.eps-epsStep <= 1 {
		a.requestMajor = false
	}
	return req, true
}

func (a *LocalADStar) doWork(req request) {
	start, goal := a.grid.index(req.start), a.grid.index(req.goal)
	if req.reset {
		a.resetSearch(start, goal)
	}

	switch {
	case req.minor:
		a.computeOrImprovePath(start, goal, req.obstacles)
		a.publish(req, false)
	case req.major && a.eps > 1:
		a.eps -= epsStep
		for c := range a.incons {
			a.open[c] = searchKey{}
		}
		clear(a.incons)
		a.queue = a.queue[:0]
		for c := range a.open {
			k := a.key(c, start)
			a.open[c] = k
			a.queue = append(a.queue, openEntry{cell: c, key: k})
		}
		heap.Init(&a.queue)
		clear(a.closed)
		a.computeOrImprovePath(start, goal, req.obstacles)
		a.publish(req, true)
	}
}

func (a *LocalADStar) publish(req request, available bool) {
	start, goal := a.grid.index(req.start), a.grid.index(req.goal)
	cells := a.extractPath(start, goal, req.obstacles)
	waypoints := a.createWaypoints(cells, req.realStart, req.realGoal, req.obstacles)

	id := uuid.NewString()
	a.pathMu.Lock()
	a.currentID = id
	a.currentCells = cells
	a.currentWaypoints = waypoints
	a.pathMu.Unlock()

	a.newPathAvailable.Store(available)
	a.logger.Debugw("published pathfinding path",
		"id", id, "eps", a.eps, "cells", len(cells), "waypoints", len(waypoints))
}

func (a *LocalADStar) resetSearch(start, goal int) {
	n := a.grid.size()
	if len(a.g) != n {
		a.g = make([]float64, n)
		a.rhs = make([]float64, n)
		a.closed = make([]bool, n)
	}
	for i := range n {
		a.g[i] = math.Inf(1)
		a.rhs[i] = math.Inf(1)
	}
	clear(a.closed)
	clear(a.open)
	clear(a.incons)
	a.queue = a.queue[:0]

	a.rhs[goal] = 0
	a.eps = initialEps
	a.insertOpen(goal, a.key(goal, start))
}

func (a *LocalADStar) key(s, start int) searchKey {
	if a.g[s] > a.rhs[s] {
		return searchKey{a.rhs[s] + a.eps*a.grid.heuristic(start, s), a.rhs[s]}
	}
	return searchKey{a.g[s] + a.grid.heuristic(start, s), a.g[s]}
}

func (a *LocalADStar) insertOpen(s int, k searchKey) {
	a.open[s] = k
	heap.Push(&a.queue, openEntry{cell: s, key: k})
}

// top returns the smallest live entry of OPEN, discarding stale ones on the way.
func (a *LocalADStar) top() (openEntry, bool) {
	for a.queue.Len() > 0 {
		e := a.queue[0]
		if k, ok := a.open[e.cell]; ok && k == e.key {
			return e, true
		}
		heap.Pop(&a.queue)
	}
	return openEntry{}, false
}

func (a *LocalADStar) computeOrImprovePath(start, goal int, obstacles []bool) {
	for {
		e, ok := a.top()
		if !ok {
			return
		}
		if !e.key.less(a.key(start, start)) && a.rhs[start] == a.g[start] {
			return
		}
		heap.Pop(&a.queue)
		delete(a.open, e.cell)

		s := e.cell
		if a.g[s] > a.rhs[s] {
			a.g[s] = a.rhs[s]
			a.closed[s] = true
			for _, n := range a.grid.openNeighbors(s, obstacles) {
				a.updateState(n, start, goal, obstacles)
			}
		} else {
			a.g[s] = math.Inf(1)
			for _, n := range a.grid.openNeighbors(s, obstacles) {
				a.updateState(n, start, goal, obstacles)
			}
			a.updateState(s, start, goal, obstacles)
		}
	}
}

func (a *LocalADStar) updateState(s, start, goal int, obstacles []bool) {
	if s != goal {
		best := math.Inf(1)
		for _, n := range a.grid.openNeighbors(s, obstacles) {
			best = math.Min(best, a.g[n]+a.grid.cost(s, n, obstacles))
		}
		a.rhs[s] = best
	}
	delete(a.open, s)
	if a.g[s] == a.rhs[s] {
		return
	}
	if a.closed[s] {
		a.incons[s] = struct{}{}
	} else {
		a.insertOpen(s, a.key(s, start))
	}
}

// extractPath descends from start to goal along the cheapest steps. It returns nil when the goal
// cannot be reached.
func (a *LocalADStar) extractPath(start, goal int, obstacles []bool) []GridPosition {
	if start == goal || math.IsInf(a.g[start], 1) {
		return nil
	}
	cells := []GridPosition{a.grid.position(start)}
	s := start
	for range maxExtractSteps {
		next, best := -1, math.Inf(1)
		for _, n := range a.grid.openNeighbors(s, obstacles) {
			if c := a.g[n] + a.grid.cost(s, n, obstacles); c < best {
				next, best = n, c
			}
		}
		if next < 0 {
			return nil
		}
		s = next
		cells = append(cells, a.grid.position(s))
		if s == goal {
			return cells
		}
	}
	return nil
}

// createWaypoints simplifies the cell path to the cells where it must turn and rounds each turn
// with a pair of anchors.
func (a *LocalADStar) createWaypoints(
	cells []GridPosition,
	realStart, realGoal r2.Point,
	obstacles []bool,
) []path.Waypoint {
	if len(cells) < 2 {
		return nil
	}

	kept := []GridPosition{cells[0]}
	for i := 1; i < len(cells)-1; i++ {
		if !a.grid.walkable(kept[len(kept)-1], cells[i+1], obstacles) {
			kept = append(kept, cells[i])
		}
	}
	kept = append(kept, cells[len(cells)-1])

	points := make([]r2.Point, len(kept))
	for i, c := range kept {
		points[i] = a.grid.center(c)
	}
	points[0] = realStart
	points[len(points)-1] = realGoal

	poses := []spatialmath.Pose{{Translation: points[0], Rotation: spatialmath.AngleOf(points[1].Sub(points[0]))}}
	for i := 1; i < len(points)-1; i++ {
		last, current, next := points[i-1], points[i], points[i+1]
		anchor1 := last.Add(current.Sub(last).Mul(smoothingAnchor))
		anchor2 := next.Add(current.Sub(next).Mul(smoothingAnchor))
		poses = append(poses,
			spatialmath.Pose{Translation: anchor1, Rotation: spatialmath.AngleOf(current.Sub(last))},
			spatialmath.Pose{Translation: anchor2, Rotation: spatialmath.AngleOf(next.Sub(anchor2))},
		)
	}
	n := len(points)
	poses = append(poses, spatialmath.Pose{Translation: points[n-1], Rotation: spatialmath.AngleOf(points[n-1].Sub(points[n-2]))})

	waypoints, err := path.WaypointsFromPoses(poses...)
	if err != nil {
		a.logger.Warnw("cannot smooth pathfinding path", "error", err)
		return nil
	}
	return waypoints
}
