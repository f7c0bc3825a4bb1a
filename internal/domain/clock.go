package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock is a package-level time source so tests can freeze time via SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used to pick the current cycle. Pass nil to
// reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// CurrentCycleHour returns the UTC hour of the bulletin cycle now being published.
func CurrentCycleHour() int {
	return CycleHourAt(clock.Now())
}

// CycleTime returns the most recent start of the given UTC cycle hour at or
// before now.
func CycleTime(now time.Time, hour int) time.Time {
	now = now.UTC()
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if t.After(now) {
		t = t.AddDate(0, 0, -1)
	}
	return t
}

// CycleHourAt returns the UTC cycle hour containing t.
func CycleHourAt(t time.Time) int {
	return t.UTC().Hour()
}
