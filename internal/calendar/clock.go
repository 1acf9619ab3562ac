package calendar

import "time"

// Clock abstracts time.Now() to allow deterministic testing.
// The holiday cache uses it for staleness checks and the planner for "today".
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current local time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Today returns the display-calendar date of c.Now().
func Today(c Clock) Date {
	return FromTime(c.Now())
}
