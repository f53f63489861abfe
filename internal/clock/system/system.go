// Package system provides the wall clock used to stamp jobs and reports.
package system

import "time"

// Clock implements report.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, truncated to microseconds so values
// round-trip through Postgres and SQLite timestamps unchanged.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
