package events

import (
	"sort"

	"github.com/samber/lo"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/logging"
	"go.viam.com/pathplanner/path"
)

type runningCommand struct {
	cmd     commands.Command
	running bool
}

// Scheduler runs the events of one trajectory. It is driven from the control loop and is not safe
// for concurrent use.
type Scheduler struct {
	ctx    *Context
	logger logging.Logger

	upcoming      []Event
	commands      []*runningCommand
	pendingResets []string
}

// NewScheduler returns a scheduler sharing the conditions and event loop of ctx.
func NewScheduler(ctx *Context, logger logging.Logger) *Scheduler {
	return &Scheduler{ctx: ctx, logger: logger}
}

// Initialize loads the events of a trajectory, forgetting any previous ones.
func (s *Scheduler) Initialize(events []Event) {
	s.commands = nil
	s.pendingResets = nil
	s.upcoming = append([]Event(nil), events...)
	sort.SliceStable(s.upcoming, func(i, j int) bool {
		return s.upcoming[i].Timestamp() < s.upcoming[j].Timestamp()
	})
}

// Execute handles every event due at time t, ticks the running commands once and polls the event
// loop.
func (s *Scheduler) Execute(t float64) {
	// One shot conditions stay set for exactly one poll of the loop.
	for _, name := range s.pendingResets {
		s.ctx.Conditions.Set(name, false)
	}
	s.pendingResets = s.pendingResets[:0]

	for len(s.upcoming) > 0 && t >= s.upcoming[0].Timestamp() {
		e := s.upcoming[0]
		s.upcoming = s.upcoming[1:]
		s.logger.Debugw("handling event", "event", e.String(), "time", t)
		e.handle(s)
	}

	for _, rc := range s.commands {
		if !rc.running {
			continue
		}
		rc.cmd.Execute()
		if rc.cmd.IsFinished() {
			rc.cmd.End(false)
			rc.running = false
		}
	}

	s.ctx.Loop.Poll()
}

// End interrupts every running command and cancels the events that have not fired.
func (s *Scheduler) End() {
	for _, rc := range s.commands {
		if rc.running {
			rc.cmd.End(true)
			rc.running = false
		}
	}
	for _, e := range s.upcoming {
		e.cancel(s)
	}
	for _, name := range s.pendingResets {
		s.ctx.Conditions.Set(name, false)
	}
	s.commands = nil
	s.upcoming = nil
	s.pendingResets = nil
}

// Running returns the commands currently running.
func (s *Scheduler) Running() []commands.Command {
	return lo.FilterMap(s.commands, func(rc *runningCommand, _ int) (commands.Command, bool) {
		return rc.cmd, rc.running
	})
}

// Pending returns the number of events that have not fired yet.
func (s *Scheduler) Pending() int {
	return len(s.upcoming)
}

func (s *Scheduler) find(cmd commands.Command) (*runningCommand, bool) {
	return lo.Find(s.commands, func(rc *runningCommand) bool { return rc.cmd == cmd })
}

func (s *Scheduler) scheduleCommand(cmd commands.Command) {
	if cmd == nil {
		return
	}
	for _, rc := range s.commands {
		if rc.running && commands.SharesRequirement(rc.cmd, cmd) {
			s.cancelCommand(rc.cmd)
		}
	}
	cmd.Initialize()
	if rc, ok := s.find(cmd); ok {
		rc.running = true
		return
	}
	s.commands = append(s.commands, &runningCommand{cmd: cmd, running: true})
}

func (s *Scheduler) cancelCommand(cmd commands.Command) {
	rc, ok := s.find(cmd)
	if !ok || !rc.running {
		return
	}
	cmd.End(true)
	rc.running = false
}

// Requirements returns the union of the requirements of every marker command on p.
func Requirements(p *path.Path) []string {
	var reqs []string
	for _, m := range p.EventMarkers() {
		if m.Command != nil {
			reqs = append(reqs, m.Command.Requirements()...)
		}
	}
	return lo.Uniq(reqs)
}
