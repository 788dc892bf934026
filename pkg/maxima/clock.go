// SPDX-License-Identifier: MPL-2.0

package maxima

import "time"

// Clock abstracts the time source used by the readiness monitor so tests
// can drive the poll loop deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// systemClock implements Clock with real time. It is the default when
// Config.Clock is nil.
type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
