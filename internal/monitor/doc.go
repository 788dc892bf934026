// SPDX-License-Identifier: MPL-2.0

// Package monitor serves the bridge's observability endpoints over a
// localhost HTTP listener: a liveness probe, a JSON state snapshot, and
// Prometheus metrics exposition. It is optional; the serve command starts
// it only when monitoring is enabled in the configuration.
package monitor
