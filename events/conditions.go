package events

import (
	"sync"

	"github.com/samber/lo"
)

// Conditions is a table of named boolean conditions shared by every scheduler of a Context.
type Conditions struct {
	mu     sync.RWMutex
	values map[string]bool
}

// NewConditions returns an empty table. Unknown names read as false.
func NewConditions() *Conditions {
	return &Conditions{values: map[string]bool{}}
}

// Set sets the named condition.
func (c *Conditions) Set(name string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

// Get returns the named condition.
func (c *Conditions) Get(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[name]
}

// Active returns the names of every set condition.
func (c *Conditions) Active() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Filter(lo.Keys(c.values), func(name string, _ int) bool { return c.values[name] })
}

// Context is the process-scoped state event schedulers share: the event marker conditions, the
// point towards zone conditions and the loop polling triggers bound to them.
type Context struct {
	Conditions *Conditions
	Zones      *Conditions
	Loop       *EventLoop
}

// NewContext returns a context with empty condition tables.
func NewContext() *Context {
	return &Context{
		Conditions: NewConditions(),
		Zones:      NewConditions(),
		Loop:       NewEventLoop(),
	}
}

// EventTrigger returns a trigger on the named event marker condition.
func (c *Context) EventTrigger(name string) Trigger {
	return Trigger{loop: c.Loop, condition: func() bool { return c.Conditions.Get(name) }}
}

// PointTowardsZoneTrigger returns a trigger that is active while the robot is inside the named
// point towards zone.
func (c *Context) PointTowardsZoneTrigger(name string) Trigger {
	return Trigger{loop: c.Loop, condition: func() bool { return c.Zones.Get(name) }}
}
