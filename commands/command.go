// Package commands defines the cooperative command contract driven by the host control loop and
// the compositions used by autos and event markers.
package commands

import (
	"github.com/samber/lo"
)

// Command is a unit of work ticked by a control loop. The host calls Initialize once, then
// Execute each loop until IsFinished reports true, then End(false). Interruption calls End(true)
// instead.
type Command interface {
	Name() string
	Initialize()
	Execute()
	IsFinished() bool
	End(interrupted bool)
	// Requirements are the names of the subsystems this command needs exclusive use of.
	Requirements() []string
}

// SharesRequirement reports whether two commands need any of the same subsystems.
func SharesRequirement(a, b Command) bool {
	return lo.Some(a.Requirements(), b.Requirements())
}

// Base carries a name and requirement set for embedding in commands.
type Base struct {
	name         string
	requirements []string
}

// NewBase returns a Base with the given name and requirements.
func NewBase(name string, requirements ...string) Base {
	return Base{name: name, requirements: lo.Uniq(requirements)}
}

// Name returns the command name.
func (b *Base) Name() string {
	return b.name
}

// Requirements returns the subsystems this command requires.
func (b *Base) Requirements() []string {
	return b.requirements
}

// AddRequirements adds to the requirement set.
func (b *Base) AddRequirements(requirements ...string) {
	b.requirements = lo.Uniq(append(b.requirements, requirements...))
}

// FuncCommand runs callbacks for each phase of the command contract. Nil callbacks are no-ops
// and a nil isFinished never finishes.
type FuncCommand struct {
	Base
	OnInitialize func()
	OnExecute    func()
	OnEnd        func(interrupted bool)
	Finished     func() bool
}

// Initialize implements Command.
func (c *FuncCommand) Initialize() {
	if c.OnInitialize != nil {
		c.OnInitialize()
	}
}

// Execute implements Command.
func (c *FuncCommand) Execute() {
	if c.OnExecute != nil {
		c.OnExecute()
	}
}

// IsFinished implements Command.
func (c *FuncCommand) IsFinished() bool {
	if c.Finished == nil {
		return false
	}
	return c.Finished()
}

// End implements Command.
func (c *FuncCommand) End(interrupted bool) {
	if c.OnEnd != nil {
		c.OnEnd(interrupted)
	}
}

// InstantCommand runs fn once on Initialize and finishes immediately.
func InstantCommand(name string, fn func(), requirements ...string) Command {
	return &FuncCommand{
		Base:         NewBase(name, requirements...),
		OnInitialize: fn,
		Finished:     func() bool { return true },
	}
}

// None is a command that does nothing and finishes immediately.
func None() Command {
	return InstantCommand("None", nil)
}
