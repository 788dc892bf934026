// SPDX-License-Identifier: MPL-2.0

package platform

// runtime.GOOS values the bridge distinguishes. Only the config layer
// branches on the OS (for its directory layout); everything else is
// portable.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)
