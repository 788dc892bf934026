// SPDX-License-Identifier: MPL-2.0

// Package testutil carries shared test plumbing: environment and working
// directory fixtures that undo themselves through t.Cleanup, close/stop
// teardown helpers, and the Clock abstraction (RealClock/FakeClock) used
// to drive readiness polling deterministically.
package testutil
