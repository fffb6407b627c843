package dialer

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the time source for a scheduler. AfterFunc must run f on its own
// goroutine (or, in tests, on the goroutine that drives the clock), never
// inside the AfterFunc call itself.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle on a pending AfterFunc.
type Timer interface {
	Stop() bool
}

// NewClock adapts a benbjohnson clock. Pass clock.New() for wall time.
func NewClock(c clock.Clock) Clock {
	return clockAdapter{c: c}
}

type clockAdapter struct {
	c clock.Clock
}

func (a clockAdapter) Now() time.Time {
	return a.c.Now()
}

func (a clockAdapter) AfterFunc(d time.Duration, f func()) Timer {
	return a.c.AfterFunc(d, f)
}
