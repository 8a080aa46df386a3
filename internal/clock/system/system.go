// Package system implements crawler.Clock with the wall clock. Task
// submission times, cache entry ages and completion timestamps all flow
// through the Clock interface so tests can substitute a fixed time.
package system

import (
	"time"

	"github.com/crawlkit/crawlkit/internal/crawler"
)

// Clock reports the current time in UTC.
type Clock struct{}

var _ crawler.Clock = Clock{}

// New returns a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns time.Now normalized to UTC, keeping stored timestamps
// comparable across hosts.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
