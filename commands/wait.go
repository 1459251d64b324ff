package commands

import (
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
)

// WaitCommand finishes once its duration has elapsed on the given clock.
type WaitCommand struct {
	Base
	clk      clock.Clock
	duration time.Duration
	start    time.Time
}

// NewWaitCommand returns a command that waits for the given number of seconds.
func NewWaitCommand(clk clock.Clock, seconds float64) *WaitCommand {
	return &WaitCommand{
		Base:     NewBase(fmt.Sprintf("Wait(%.3fs)", seconds)),
		clk:      clk,
		duration: time.Duration(seconds * float64(time.Second)),
	}
}

// Initialize starts the timer.
func (c *WaitCommand) Initialize() {
	c.start = c.clk.Now()
}

// Execute does nothing.
func (c *WaitCommand) Execute() {}

// IsFinished reports whether the duration has elapsed.
func (c *WaitCommand) IsFinished() bool {
	return c.clk.Since(c.start) >= c.duration
}

// End does nothing.
func (c *WaitCommand) End(bool) {}
