package path

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/utils"
)

// FileKind identifies one of the file types stored in the deploy directory.
type FileKind int

const (
	// PathFile is a path written by the path editor.
	PathFile FileKind = iota
	// AutoFile is an auto routine.
	AutoFile
	// ChoreoFile is a pre-solved trajectory.
	ChoreoFile
	// NavGridFile is the pathfinding occupancy grid.
	NavGridFile
	// SettingsFile is the robot settings file.
	SettingsFile
)

// Location returns the path of the named file of this kind, relative to the deploy directory.
func (k FileKind) Location(name string) string {
	switch k {
	case PathFile:
		return filepath.Join("paths", name+".path")
	case AutoFile:
		return filepath.Join("autos", name+".auto")
	case ChoreoFile:
		return filepath.Join("choreo", name+".traj")
	case NavGridFile:
		return "navgrid.json"
	case SettingsFile:
		return "settings.json"
	}
	return name
}

// Loader reads and caches files from a deploy directory laid out as
//
//	<dir>/paths/<name>.path
//	<dir>/autos/<name>.auto
//	<dir>/choreo/<name>.traj
//	<dir>/navgrid.json
//	<dir>/settings.json
type Loader struct {
	dir    string
	opts   FileOptions
	logger logging.Logger

	mu           sync.Mutex
	paths        map[string]*Path
	onInvalidate []func()

	watcher *fsnotify.Watcher
	workers utils.StoppableWorkers
}

// NewLoader returns a loader for the given deploy directory.
func NewLoader(dir string, opts FileOptions, logger logging.Logger) *Loader {
	return &Loader{
		dir:    dir,
		opts:   opts,
		logger: logger,
		paths:  map[string]*Path{},
	}
}

// Dir returns the deploy directory.
func (l *Loader) Dir() string {
	return l.dir
}

// SetCommandParser sets the parser used for event marker commands. It clears the cache since
// already loaded paths were built without it.
func (l *Loader) SetCommandParser(parser CommandParser) {
	l.mu.Lock()
	l.opts.Commands = parser
	l.mu.Unlock()
	l.ClearCache()
}

// CommandParser returns the parser used for event marker commands, which may be nil.
func (l *Loader) CommandParser() CommandParser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.opts.Commands
}

// Open opens the named file of the given kind.
func (l *Loader) Open(kind FileKind, name string) (io.ReadCloser, error) {
	location := filepath.Join(l.dir, kind.Location(name))
	//nolint:gosec
	f, err := os.Open(location)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %s", location)
	}
	return f, nil
}

// LoadPath loads the named path file, returning the cached copy when it was loaded before.
func (l *Loader) LoadPath(name string) (*Path, error) {
	l.mu.Lock()
	cached, ok := l.paths[name]
	opts := l.opts
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	f, err := l.Open(PathFile, name)
	if err != nil {
		return nil, err
	}
	defer func() {
		//nolint:errcheck
		f.Close()
	}()
	p, err := FromJSON(name, f, opts)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.paths[name] = p
	l.mu.Unlock()
	l.logger.Debugw("loaded path", "name", name, "points", p.NumPoints())
	return p, nil
}

// OnInvalidate registers fn to run whenever the cache is cleared, so caches of derived data can
// be cleared with it.
func (l *Loader) OnInvalidate(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onInvalidate = append(l.onInvalidate, fn)
}

// ClearCache forgets every loaded path.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	l.paths = map[string]*Path{}
	hooks := append([]func(){}, l.onInvalidate...)
	l.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// StartWatching clears the cache whenever a file in the deploy directory changes, so edits made
// while the robot is running are picked up on the next load.
func (l *Loader) StartWatching() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "cannot create deploy directory watcher")
	}
	for _, sub := range []string{"", "paths", "autos", "choreo"} {
		dir := filepath.Join(l.dir, sub)
		if _, statErr := os.Stat(dir); statErr != nil {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			//nolint:errcheck
			watcher.Close()
			return errors.Wrapf(err, "cannot watch %s", dir)
		}
	}

	l.mu.Lock()
	l.watcher = watcher
	l.mu.Unlock()
	l.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					l.logger.Debugw("deploy directory changed", "file", strings.TrimPrefix(event.Name, l.dir))
					l.ClearCache()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warnw("deploy directory watcher error", "error", err)
			}
		}
	})
	return nil
}

// Close stops watching the deploy directory.
func (l *Loader) Close() error {
	if l.workers != nil {
		l.workers.Stop()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	l.watcher = nil
	return err
}
