// Package telemetry reports what a path follower is doing: measured and commanded speeds, how far
// the robot is from its target and the path being followed.
package telemetry

import (
	"sync"

	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/spatialmath"
)

// A Publisher receives telemetry once per control cycle. Setters buffer values; Flush emits them
// as one frame.
type Publisher interface {
	SetVelocities(actual, commanded, actualAngular, commandedAngular float64)
	SetPathInaccuracy(meters float64)
	SetCurrentPose(pose spatialmath.Pose)
	SetTargetPose(pose spatialmath.Pose)
	SetCurrentPath(p *path.Path)
	Flush() error
}

// Frame is one cycle of telemetry.
type Frame struct {
	ActualVelocity           float64
	CommandedVelocity        float64
	ActualAngularVelocity    float64
	CommandedAngularVelocity float64
	Inaccuracy               float64
	CurrentPose              spatialmath.Pose
	TargetPose               spatialmath.Pose
	Path                     *path.Path
}

// frameBuffer implements the setters of Publisher.
type frameBuffer struct {
	mu    sync.Mutex
	frame Frame
}

func (b *frameBuffer) SetVelocities(actual, commanded, actualAngular, commandedAngular float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame.ActualVelocity = actual
	b.frame.CommandedVelocity = commanded
	b.frame.ActualAngularVelocity = actualAngular
	b.frame.CommandedAngularVelocity = commandedAngular
}

func (b *frameBuffer) SetPathInaccuracy(meters float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame.Inaccuracy = meters
}

func (b *frameBuffer) SetCurrentPose(pose spatialmath.Pose) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame.CurrentPose = pose
}

func (b *frameBuffer) SetTargetPose(pose spatialmath.Pose) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame.TargetPose = pose
}

func (b *frameBuffer) SetCurrentPath(p *path.Path) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frame.Path = p
}

func (b *frameBuffer) snapshot() Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame
}

type noopPublisher struct{}

// NewNoopPublisher returns a publisher that drops everything.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) SetVelocities(_, _, _, _ float64) {}
func (noopPublisher) SetPathInaccuracy(float64)        {}
func (noopPublisher) SetCurrentPose(spatialmath.Pose)  {}
func (noopPublisher) SetTargetPose(spatialmath.Pose)   {}
func (noopPublisher) SetCurrentPath(*path.Path)        {}
func (noopPublisher) Flush() error                     { return nil }

// LogPublisher writes each frame as a debug log line.
type LogPublisher struct {
	frameBuffer
	logger   logging.Logger
	lastPath *path.Path
}

// NewLogPublisher returns a publisher logging to logger.
func NewLogPublisher(logger logging.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Flush logs the buffered frame. The path is only logged when it changes.
func (p *LogPublisher) Flush() error {
	f := p.snapshot()
	if f.Path != nil && f.Path != p.lastPath {
		p.lastPath = f.Path
		p.logger.Debugw("following path", "name", f.Path.Name(), "points", f.Path.NumPoints())
	}
	p.logger.Debugw("path following",
		"velocity", f.ActualVelocity,
		"commandedVelocity", f.CommandedVelocity,
		"angularVelocity", f.ActualAngularVelocity,
		"commandedAngularVelocity", f.CommandedAngularVelocity,
		"inaccuracy", f.Inaccuracy,
		"pose", f.CurrentPose,
		"target", f.TargetPose,
	)
	return nil
}
