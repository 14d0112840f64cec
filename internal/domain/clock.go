package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock stamps run starts and times pipeline stages. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock replaces the run clock. Pass nil to restore the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	clock = c
}

// Now returns the clock's current time in UTC+8.
func Now() time.Time {
	return clock.Now().In(Beijing)
}

// Since returns the time elapsed on the run clock since t.
func Since(t time.Time) time.Duration {
	return clock.Since(t)
}
