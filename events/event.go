// Package events schedules the commands and trigger changes attached to a trajectory, and polls
// the named conditions those trigger changes drive.
package events

import (
	"fmt"

	"go.viam.com/pathplanner/commands"
)

// Event is a timestamped action handled by a Scheduler. The concrete kinds are ScheduleCommand,
// CancelCommand, TriggerEvent, OneShotTrigger and PointTowardsZoneEvent.
type Event interface {
	fmt.Stringer
	// Timestamp is the trajectory time at which the event fires, in seconds.
	Timestamp() float64
	// WithTimestamp returns a copy of the event firing at t.
	WithTimestamp(t float64) Event

	handle(s *Scheduler)
	cancel(s *Scheduler)
}

// ScheduleCommand starts a command.
type ScheduleCommand struct {
	timestamp float64
	Command   commands.Command
}

// NewScheduleCommand returns an event starting cmd at timestamp.
func NewScheduleCommand(timestamp float64, cmd commands.Command) *ScheduleCommand {
	return &ScheduleCommand{timestamp: timestamp, Command: cmd}
}

// Timestamp implements Event.
func (e *ScheduleCommand) Timestamp() float64 { return e.timestamp }

// WithTimestamp implements Event.
func (e *ScheduleCommand) WithTimestamp(t float64) Event { return NewScheduleCommand(t, e.Command) }

func (e *ScheduleCommand) handle(s *Scheduler) { s.scheduleCommand(e.Command) }

func (e *ScheduleCommand) cancel(*Scheduler) {}

func (e *ScheduleCommand) String() string {
	return fmt.Sprintf("schedule(%s)@%.3f", e.Command.Name(), e.timestamp)
}

// CancelCommand ends a command started by a ScheduleCommand event.
type CancelCommand struct {
	timestamp float64
	Command   commands.Command
}

// NewCancelCommand returns an event cancelling cmd at timestamp.
func NewCancelCommand(timestamp float64, cmd commands.Command) *CancelCommand {
	return &CancelCommand{timestamp: timestamp, Command: cmd}
}

// Timestamp implements Event.
func (e *CancelCommand) Timestamp() float64 { return e.timestamp }

// WithTimestamp implements Event.
func (e *CancelCommand) WithTimestamp(t float64) Event { return NewCancelCommand(t, e.Command) }

func (e *CancelCommand) handle(s *Scheduler) { s.cancelCommand(e.Command) }

func (e *CancelCommand) cancel(*Scheduler) {}

func (e *CancelCommand) String() string {
	return fmt.Sprintf("cancel(%s)@%.3f", e.Command.Name(), e.timestamp)
}

// TriggerEvent activates or deactivates a named event condition.
type TriggerEvent struct {
	timestamp float64
	Name      string
	Active    bool
}

// NewActivateEvent returns an event setting the named condition at timestamp.
func NewActivateEvent(timestamp float64, name string) *TriggerEvent {
	return &TriggerEvent{timestamp: timestamp, Name: name, Active: true}
}

// NewDeactivateEvent returns an event clearing the named condition at timestamp.
func NewDeactivateEvent(timestamp float64, name string) *TriggerEvent {
	return &TriggerEvent{timestamp: timestamp, Name: name}
}

// Timestamp implements Event.
func (e *TriggerEvent) Timestamp() float64 { return e.timestamp }

// WithTimestamp implements Event.
func (e *TriggerEvent) WithTimestamp(t float64) Event {
	return &TriggerEvent{timestamp: t, Name: e.Name, Active: e.Active}
}

func (e *TriggerEvent) handle(s *Scheduler) { s.ctx.Conditions.Set(e.Name, e.Active) }

// A pending deactivation still runs when the scheduler ends so the condition is never left set.
func (e *TriggerEvent) cancel(s *Scheduler) {
	if !e.Active {
		s.ctx.Conditions.Set(e.Name, false)
	}
}

func (e *TriggerEvent) String() string {
	if e.Active {
		return fmt.Sprintf("activate(%s)@%.3f", e.Name, e.timestamp)
	}
	return fmt.Sprintf("deactivate(%s)@%.3f", e.Name, e.timestamp)
}

// OneShotTrigger sets a named event condition for a single scheduler cycle.
type OneShotTrigger struct {
	timestamp float64
	Name      string
}

// NewOneShotTrigger returns a one cycle pulse of the named condition at timestamp.
func NewOneShotTrigger(timestamp float64, name string) *OneShotTrigger {
	return &OneShotTrigger{timestamp: timestamp, Name: name}
}

// Timestamp implements Event.
func (e *OneShotTrigger) Timestamp() float64 { return e.timestamp }

// WithTimestamp implements Event.
func (e *OneShotTrigger) WithTimestamp(t float64) Event { return NewOneShotTrigger(t, e.Name) }

func (e *OneShotTrigger) handle(s *Scheduler) {
	s.ctx.Conditions.Set(e.Name, true)
	s.pendingResets = append(s.pendingResets, e.Name)
}

func (e *OneShotTrigger) cancel(*Scheduler) {}

func (e *OneShotTrigger) String() string {
	return fmt.Sprintf("oneshot(%s)@%.3f", e.Name, e.timestamp)
}

// PointTowardsZoneEvent marks the robot entering or leaving a point towards zone.
type PointTowardsZoneEvent struct {
	timestamp float64
	Name      string
	Entering  bool
}

// NewPointTowardsZoneEvent returns a zone entry (entering) or exit event at timestamp.
func NewPointTowardsZoneEvent(timestamp float64, name string, entering bool) *PointTowardsZoneEvent {
	return &PointTowardsZoneEvent{timestamp: timestamp, Name: name, Entering: entering}
}

// Timestamp implements Event.
func (e *PointTowardsZoneEvent) Timestamp() float64 { return e.timestamp }

// WithTimestamp implements Event.
func (e *PointTowardsZoneEvent) WithTimestamp(t float64) Event {
	return NewPointTowardsZoneEvent(t, e.Name, e.Entering)
}

func (e *PointTowardsZoneEvent) handle(s *Scheduler) { s.ctx.Zones.Set(e.Name, e.Entering) }

func (e *PointTowardsZoneEvent) cancel(s *Scheduler) {
	if !e.Entering {
		s.ctx.Zones.Set(e.Name, false)
	}
}

func (e *PointTowardsZoneEvent) String() string {
	if e.Entering {
		return fmt.Sprintf("zoneOn(%s)@%.3f", e.Name, e.timestamp)
	}
	return fmt.Sprintf("zoneOff(%s)@%.3f", e.Name, e.timestamp)
}
