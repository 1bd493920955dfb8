// Package host holds the ports supplied by the execution environment.
package host

import "time"

// Clock supplies the current time to every operation. Program code never
// calls time.Now directly; all time checks are data comparisons against a
// clock value, which keeps operations deterministic under test.
type Clock interface {
	Now() time.Time
}

// WallClock is the production clock.
type WallClock struct{}

func (WallClock) Now() time.Time {
	return time.Now().UTC()
}
