// Package system supplies the wall clock used outside of tests.
package system

import "time"

// Clock reads the system time. It satisfies crawler.Clock; tests substitute
// a fixed implementation instead.
type Clock struct{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC. Stored timestamps are always UTC so
// job and paper records compare across backends.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
