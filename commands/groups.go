package commands

import (
	"strings"

	"github.com/samber/lo"
)

func groupName(kind string, cmds []Command) string {
	return kind + "(" + strings.Join(lo.Map(cmds, func(c Command, _ int) string { return c.Name() }), ", ") + ")"
}

func allRequirements(cmds []Command) []string {
	return lo.Uniq(lo.FlatMap(cmds, func(c Command, _ int) []string { return c.Requirements() }))
}

// SequentialGroup runs its commands one after another.
type SequentialGroup struct {
	Base
	cmds    []Command
	current int
}

// Sequence returns a group running cmds in order.
func Sequence(cmds ...Command) *SequentialGroup {
	return &SequentialGroup{Base: NewBase(groupName("Sequential", cmds), allRequirements(cmds)...), cmds: cmds, current: -1}
}

// Initialize starts the first command.
func (g *SequentialGroup) Initialize() {
	g.current = 0
	if len(g.cmds) > 0 {
		g.cmds[0].Initialize()
	}
}

// Execute ticks the current command and advances when it finishes.
func (g *SequentialGroup) Execute() {
	if g.current < 0 || g.current >= len(g.cmds) {
		return
	}
	cmd := g.cmds[g.current]
	cmd.Execute()
	if cmd.IsFinished() {
		cmd.End(false)
		g.current++
		if g.current < len(g.cmds) {
			g.cmds[g.current].Initialize()
		}
	}
}

// IsFinished reports whether every command has run.
func (g *SequentialGroup) IsFinished() bool {
	return g.current >= len(g.cmds)
}

// End interrupts the running command, if any.
func (g *SequentialGroup) End(interrupted bool) {
	if interrupted && g.current >= 0 && g.current < len(g.cmds) {
		g.cmds[g.current].End(true)
	}
	g.current = -1
}

// ParallelGroup runs its commands together. Depending on its kind it finishes when all of them
// finish, when any finishes (race), or when the first one finishes (deadline). Commands still
// running at that point are interrupted.
type ParallelGroup struct {
	Base
	cmds    []Command
	running []bool
	finish  func(g *ParallelGroup) bool
}

func newParallel(kind string, finish func(g *ParallelGroup) bool, cmds []Command) *ParallelGroup {
	return &ParallelGroup{
		Base:    NewBase(groupName(kind, cmds), allRequirements(cmds)...),
		cmds:    cmds,
		running: make([]bool, len(cmds)),
		finish:  finish,
	}
}

// Parallel returns a group that finishes when all of cmds have finished.
func Parallel(cmds ...Command) *ParallelGroup {
	return newParallel("Parallel", func(g *ParallelGroup) bool {
		return !lo.Contains(g.running, true)
	}, cmds)
}

// Race returns a group that finishes as soon as any of cmds finishes.
func Race(cmds ...Command) *ParallelGroup {
	return newParallel("Race", func(g *ParallelGroup) bool {
		return len(g.cmds) == 0 || lo.Contains(g.running, false)
	}, cmds)
}

// Deadline returns a group that finishes when deadline finishes.
func Deadline(deadline Command, others ...Command) *ParallelGroup {
	return newParallel("Deadline", func(g *ParallelGroup) bool {
		return !g.running[0]
	}, append([]Command{deadline}, others...))
}

// Initialize starts every command.
func (g *ParallelGroup) Initialize() {
	for i, cmd := range g.cmds {
		cmd.Initialize()
		g.running[i] = true
	}
}

// Execute ticks every running command, ending those that finish.
func (g *ParallelGroup) Execute() {
	for i, cmd := range g.cmds {
		if !g.running[i] {
			continue
		}
		cmd.Execute()
		if cmd.IsFinished() {
			cmd.End(false)
			g.running[i] = false
		}
	}
}

// IsFinished applies the group's finishing rule.
func (g *ParallelGroup) IsFinished() bool {
	return g.finish(g)
}

// End interrupts any command that is still running.
func (g *ParallelGroup) End(bool) {
	for i, cmd := range g.cmds {
		if g.running[i] {
			cmd.End(true)
			g.running[i] = false
		}
	}
}
