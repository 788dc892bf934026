// SPDX-License-Identifier: MPL-2.0

// Package types provides small validated value types shared across the
// bridge: filesystem paths, TCP listen ports, and process exit codes.
//
// Each type pairs a Validate method with a sentinel error and a typed
// error carrying the offending value, so callers can use errors.Is for
// detection and errors.As for diagnostics.
package types
