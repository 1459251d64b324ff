package events

import (
	"testing"

	"go.viam.com/test"

	"go.viam.com/pathplanner/commands"
	"go.viam.com/pathplanner/logging"
)

type countingCommand struct {
	commands.Base
	ticks       int
	finishAfter int
	ended       []bool
}

func newCounting(name string, finishAfter int, requirements ...string) *countingCommand {
	return &countingCommand{Base: commands.NewBase(name, requirements...), finishAfter: finishAfter}
}

func (c *countingCommand) Initialize()      { c.ticks = 0 }
func (c *countingCommand) Execute()         { c.ticks++ }
func (c *countingCommand) IsFinished() bool { return c.finishAfter > 0 && c.ticks >= c.finishAfter }
func (c *countingCommand) End(interrupted bool) {
	c.ended = append(c.ended, interrupted)
}

func TestSchedulerRunsCommands(t *testing.T) {
	ctx := NewContext()
	s := NewScheduler(ctx, logging.NewTestLogger(t))

	short := newCounting("short", 2)
	long := newCounting("long", 0)
	s.Initialize([]Event{
		NewCancelCommand(1.0, long),
		NewScheduleCommand(0.5, long),
		NewScheduleCommand(0.0, short),
	})
	test.That(t, s.Pending(), test.ShouldEqual, 3)

	s.Execute(0)
	test.That(t, short.ticks, test.ShouldEqual, 1)
	test.That(t, len(s.Running()), test.ShouldEqual, 1)

	s.Execute(0.5)
	test.That(t, short.ended, test.ShouldResemble, []bool{false})
	test.That(t, long.ticks, test.ShouldEqual, 1)

	s.Execute(1.0)
	test.That(t, long.ended, test.ShouldResemble, []bool{true})
	test.That(t, len(s.Running()), test.ShouldEqual, 0)
	test.That(t, s.Pending(), test.ShouldEqual, 0)
}

func TestSchedulingCancelsSharedRequirements(t *testing.T) {
	ctx := NewContext()
	s := NewScheduler(ctx, logging.NewTestLogger(t))

	first := newCounting("first", 0, "intake")
	second := newCounting("second", 0, "intake", "arm")
	other := newCounting("other", 0, "shooter")
	s.Initialize([]Event{
		NewScheduleCommand(0, first),
		NewScheduleCommand(0, other),
		NewScheduleCommand(1, second),
	})
	s.Execute(0)
	s.Execute(1)
	test.That(t, first.ended, test.ShouldResemble, []bool{true})
	test.That(t, other.ended, test.ShouldBeEmpty)
	test.That(t, len(s.Running()), test.ShouldEqual, 2)

	s.End()
	test.That(t, second.ended, test.ShouldResemble, []bool{true})
	test.That(t, other.ended, test.ShouldResemble, []bool{true})
}

func TestTriggersAndOneShots(t *testing.T) {
	ctx := NewContext()
	s := NewScheduler(ctx, logging.NewTestLogger(t))

	var zoneEdges, shotEdges []bool
	ctx.EventTrigger("zone").
		OnTrue(func() { zoneEdges = append(zoneEdges, true) }).
		OnFalse(func() { zoneEdges = append(zoneEdges, false) })
	ctx.EventTrigger("shot").OnTrue(func() { shotEdges = append(shotEdges, true) })
	inZone := ctx.PointTowardsZoneTrigger("speaker")

	s.Initialize([]Event{
		NewActivateEvent(0.1, "zone"),
		NewOneShotTrigger(0.2, "shot"),
		NewPointTowardsZoneEvent(0.2, "speaker", true),
		NewDeactivateEvent(0.4, "zone"),
		NewPointTowardsZoneEvent(0.9, "speaker", false),
	})

	s.Execute(0.1)
	test.That(t, ctx.Conditions.Get("zone"), test.ShouldBeTrue)
	test.That(t, zoneEdges, test.ShouldResemble, []bool{true})

	s.Execute(0.2)
	test.That(t, ctx.Conditions.Get("shot"), test.ShouldBeTrue)
	test.That(t, inZone.Get(), test.ShouldBeTrue)
	test.That(t, shotEdges, test.ShouldResemble, []bool{true})

	s.Execute(0.3)
	test.That(t, ctx.Conditions.Get("shot"), test.ShouldBeFalse)

	// Ending early still clears conditions whose deactivation never fired.
	s.End()
	test.That(t, ctx.Conditions.Get("zone"), test.ShouldBeFalse)
	test.That(t, inZone.Get(), test.ShouldBeFalse)
	test.That(t, ctx.Conditions.Active(), test.ShouldBeEmpty)
	ctx.Loop.Poll()
	test.That(t, zoneEdges, test.ShouldResemble, []bool{true, false})
}

func TestWithTimestampCopies(t *testing.T) {
	cmd := commands.None()
	original := NewScheduleCommand(1, cmd)
	moved := original.WithTimestamp(2.5)
	test.That(t, original.Timestamp(), test.ShouldEqual, 1.)
	test.That(t, moved.Timestamp(), test.ShouldEqual, 2.5)
	test.That(t, moved.(*ScheduleCommand).Command, test.ShouldEqual, cmd)
	test.That(t, moved.String(), test.ShouldEqual, "schedule(None)@2.500")
}
