// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// This package defines error types that include remediation steps and Markdown-formatted
// guidance for the known failure modes of the bridge: a missing engine executable, an
// exhausted port range, a lost bind race, a readiness timeout, a broken configuration
// file, and a monitor endpoint that will not come up.
package issue
