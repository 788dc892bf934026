// SPDX-License-Identifier: MPL-2.0

// Package platform provides cross-platform compatibility utilities.
//
// This package centralizes runtime.GOOS string constants and detects
// application sandboxes (Flatpak, Snap). Sandbox detection matters when
// spawning the engine process: a sandboxed bridge has to launch the engine
// on the host via flatpak-spawn or snap run.
package platform
