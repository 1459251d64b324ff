package commands

import (
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/pathplanner/logging"
)

// NewNotRegisteredError is reported when a named command is looked up but was never registered.
func NewNotRegisteredError(name string) error {
	return errors.Errorf("named command %q has not been registered", name)
}

// Registry maps names used in path and auto files to commands. Commands are registered during
// setup and looked up while files are parsed.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	logger   logging.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{commands: map[string]Command{}, logger: logger}
}

// Register adds a named command, replacing any previous command with that name.
func (r *Registry) Register(name string, cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = cmd
}

// RegisterAll adds every command in cmds.
func (r *Registry) RegisterAll(cmds map[string]Command) {
	for name, cmd := range cmds {
		r.Register(name, cmd)
	}
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.commands[name]
	return ok
}

// Lookup returns the command registered under name or a not-registered error.
func (r *Registry) Lookup(name string) (Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	if !ok {
		return nil, NewNotRegisteredError(name)
	}
	return cmd, nil
}

// Get returns the command registered under name. A miss is logged and yields a command that does
// nothing, so a typo in a file never faults the control loop.
func (r *Registry) Get(name string) Command {
	cmd, err := r.Lookup(name)
	if err != nil {
		r.logger.Warnw("substituting a no-op command", "error", err)
		return None()
	}
	return cmd
}
