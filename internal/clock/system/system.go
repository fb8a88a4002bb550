// Package system provides the wall clock used to time polls.
package system

import "time"

// Clock implements crawler.Clock using time.Now.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Since returns the time elapsed since t according to c.
func Since(c interface{ Now() time.Time }, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
