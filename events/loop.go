package events

import (
	"sync"
)

type binding struct {
	condition func() bool
	last      bool
	onChange  func(active bool)
}

// EventLoop polls bound conditions and calls their handlers on every edge.
type EventLoop struct {
	mu       sync.Mutex
	bindings []*binding
}

// NewEventLoop returns an empty loop.
func NewEventLoop() *EventLoop {
	return &EventLoop{}
}

// Bind calls onChange with the new value whenever condition changes between polls. Conditions
// start out false.
func (l *EventLoop) Bind(condition func() bool, onChange func(active bool)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bindings = append(l.bindings, &binding{condition: condition, onChange: onChange})
}

// Poll evaluates every binding once.
func (l *EventLoop) Poll() {
	l.mu.Lock()
	bindings := append([]*binding(nil), l.bindings...)
	l.mu.Unlock()

	for _, b := range bindings {
		current := b.condition()
		if current != b.last {
			b.last = current
			b.onChange(current)
		}
	}
}

// Clear removes every binding.
func (l *EventLoop) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.bindings = nil
}

// Trigger is a condition polled by an EventLoop.
type Trigger struct {
	loop      *EventLoop
	condition func() bool
}

// NewTrigger returns a trigger on an arbitrary condition.
func NewTrigger(loop *EventLoop, condition func() bool) Trigger {
	return Trigger{loop: loop, condition: condition}
}

// Get evaluates the condition now.
func (t Trigger) Get() bool {
	return t.condition()
}

// OnTrue calls fn when the condition becomes true.
func (t Trigger) OnTrue(fn func()) Trigger {
	t.loop.Bind(t.condition, func(active bool) {
		if active {
			fn()
		}
	})
	return t
}

// OnFalse calls fn when the condition becomes false.
func (t Trigger) OnFalse(fn func()) Trigger {
	t.loop.Bind(t.condition, func(active bool) {
		if !active {
			fn()
		}
	})
	return t
}

// And returns a trigger active while both t and other are.
func (t Trigger) And(other Trigger) Trigger {
	return Trigger{loop: t.loop, condition: func() bool { return t.condition() && other.condition() }}
}

// Negate returns a trigger active while t is not.
func (t Trigger) Negate() Trigger {
	return Trigger{loop: t.loop, condition: func() bool { return !t.condition() }}
}
