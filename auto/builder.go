// Package auto builds autonomous routines from auto files: trees of wait, named, path and group
// commands that drive the robot with the path following commands of the follow package.
package auto

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/config"
	"go.viam.com/pathplanner/follow"
	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/path"
	"go.viam.com/pathplanner/pathfinding"
	"go.viam.com/pathplanner/spatialmath"
	"go.viam.com/pathplanner/trajectory"
)

// Builder turns paths and auto files into commands for one configured robot. It becomes the
// command parser of its loader, so event markers of loaded paths get their commands from the
// same registry.
type Builder struct {
	loader   *path.Loader
	choreo   *trajectory.ChoreoCache
	registry *commands.Registry
	logger   logging.Logger

	mu         sync.RWMutex
	configured bool
	cfg        follow.Config
	resetPose  func(spatialmath.Pose)
	pathfinder pathfinding.Pathfinder
}

// NewBuilder returns an unconfigured builder reading files through loader and named commands
// from registry.
func NewBuilder(loader *path.Loader, registry *commands.Registry, logger logging.Logger) *Builder {
	b := &Builder{
		loader:   loader,
		choreo:   trajectory.NewChoreoCache(loader),
		registry: registry,
		logger:   logger,
	}
	loader.SetCommandParser(&factory{builder: b})
	return b
}

// Configure sets up path following. resetPose moves the robot's odometry to a pose.
func (b *Builder) Configure(cfg follow.Config, resetPose func(spatialmath.Pose)) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if resetPose == nil {
		return errors.New("auto builder needs a way to reset the robot pose")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.configured {
		return errors.New("auto builder has already been configured")
	}
	if cfg.Logger == nil {
		cfg.Logger = b.logger
	}
	b.cfg = cfg.WithDefaults()
	b.resetPose = resetPose
	b.configured = true
	return nil
}

// ConfigurePathfinding enables the pathfinding commands.
func (b *Builder) ConfigurePathfinding(pf pathfinding.Pathfinder) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pathfinder = pf
}

// IsConfigured reports whether Configure succeeded.
func (b *Builder) IsConfigured() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.configured
}

// IsPathfindingConfigured reports whether the pathfinding commands can be built.
func (b *Builder) IsPathfindingConfigured() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.configured && b.pathfinder != nil
}

// IsHolonomic reports whether the configured robot drives holonomically.
func (b *Builder) IsHolonomic() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.configured && b.cfg.Controller.IsHolonomic()
}

func (b *Builder) followConfig(what string) (follow.Config, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.configured {
		return follow.Config{}, config.NewConfigNotReadyError(what)
	}
	return b.cfg, nil
}

func (b *Builder) pathfindingConfig(what string) (follow.Config, pathfinding.Pathfinder, error) {
	cfg, err := b.followConfig(what)
	if err != nil {
		return follow.Config{}, nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.pathfinder == nil {
		return follow.Config{}, nil, config.NewConfigNotReadyError(what + " without a pathfinder")
	}
	return cfg, b.pathfinder, nil
}

func (b *Builder) clock() clock.Clock {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.cfg.Clock == nil {
		return clock.New()
	}
	return b.cfg.Clock
}

// FollowPath returns a command following p.
func (b *Builder) FollowPath(p *path.Path) (commands.Command, error) {
	cfg, err := b.followConfig("path following command")
	if err != nil {
		return nil, err
	}
	cmd, err := follow.NewFollowPath(p, cfg)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// PathfindToPose returns a command pathfinding to pose.
func (b *Builder) PathfindToPose(pose spatialmath.Pose, constraints path.Constraints, goalEndVelocity float64) (commands.Command, error) {
	cfg, pf, err := b.pathfindingConfig("pathfinding command")
	if err != nil {
		return nil, err
	}
	cmd, err := follow.NewPathfindToPose(pf, pose, goalEndVelocity, constraints, cfg)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// PathfindToPoseFlipped is PathfindToPose for a pose flipped along with paths.
func (b *Builder) PathfindToPoseFlipped(pose spatialmath.Pose, constraints path.Constraints, goalEndVelocity float64) (commands.Command, error) {
	cfg, pf, err := b.pathfindingConfig("pathfinding command")
	if err != nil {
		return nil, err
	}
	cmd, err := follow.NewPathfindToPoseFlipped(pf, pose, goalEndVelocity, constraints, cfg)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// PathfindThenFollowPath returns a command pathfinding to the start of p and then following it.
func (b *Builder) PathfindThenFollowPath(p *path.Path, constraints path.Constraints) (commands.Command, error) {
	cfg, pf, err := b.pathfindingConfig("pathfinding command")
	if err != nil {
		return nil, err
	}
	cmd, err := follow.NewPathfindThenFollow(pf, p, constraints, cfg)
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

// ResetOdom returns a command resetting the odometry to bluePose, flipped when paths are flipped
// at the time it runs.
func (b *Builder) ResetOdom(bluePose spatialmath.Pose) (commands.Command, error) {
	cfg, err := b.followConfig("odometry reset command")
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	reset := b.resetPose
	b.mu.RUnlock()
	return commands.InstantCommand("ResetOdom", func() {
		if cfg.ShouldFlip() {
			reset(cfg.Flipping.Pose(bluePose))
			return
		}
		reset(bluePose)
	}), nil
}

// Autos lists the auto files in the deploy directory, sorted by name.
func (b *Builder) Autos() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(b.loader.Dir(), filepath.Dir(path.AutoFile.Location(""))))
	if err != nil {
		return nil, errors.Wrap(err, "cannot list autos")
	}
	names := lo.FilterMap(entries, func(e os.DirEntry, _ int) (string, bool) {
		name, ok := strings.CutSuffix(e.Name(), ".auto")
		return name, ok && !e.IsDir()
	})
	slices.Sort(names)
	return names, nil
}

// BuildAuto loads the named auto file and builds its command.
func (b *Builder) BuildAuto(name string) (*Auto, error) {
	cfg, err := b.followConfig("auto " + name)
	if err != nil {
		return nil, err
	}
	file, err := readAutoFile(b.loader, name)
	if err != nil {
		return nil, err
	}
	if missing := lo.Reject(commandNames(file.Command), func(n string, _ int) bool {
		return b.registry.Has(n)
	}); len(missing) > 0 {
		b.logger.Warnw("auto uses unregistered named commands", "auto", name, "commands", missing)
	}

	f := &factory{builder: b, choreo: file.ChoreoAuto}
	cmd, err := f.command(file.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "auto %q", name)
	}
	paths, err := f.paths(file.Command)
	if err != nil {
		return nil, errors.Wrapf(err, "auto %q", name)
	}

	start := spatialmath.Pose{}
	if len(paths) > 0 {
		start = startingPose(paths[0], cfg.Controller.IsHolonomic())
	}
	if file.ResetOdom {
		reset, err := b.ResetOdom(start)
		if err != nil {
			return nil, err
		}
		cmd = commands.Sequence(reset, cmd)
	}
	return newAuto(name, cmd, start, paths), nil
}

// PathGroup returns every path of the named auto, depth first. It does not need a configured
// builder.
func (b *Builder) PathGroup(name string) ([]*path.Path, error) {
	file, err := readAutoFile(b.loader, name)
	if err != nil {
		return nil, err
	}
	f := &factory{builder: b, choreo: file.ChoreoAuto}
	return f.paths(file.Command)
}

func startingPose(p *path.Path, holonomic bool) spatialmath.Pose {
	if !holonomic {
		return p.StartingDifferentialPose()
	}
	if pose, ok := p.StartingHolonomicPose(); ok {
		return pose
	}
	return spatialmath.Pose{Translation: p.Point(0).Position}
}
