// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"os"
	"sync"
)

// SandboxType identifies the application sandbox the process runs in, if any.
type SandboxType string

// Sandbox type constants.
const (
	SandboxNone    SandboxType = ""
	SandboxFlatpak SandboxType = "flatpak"
	SandboxSnap    SandboxType = "snap"
)

// detectOnce caches detection for the process lifetime; the sandbox type
// cannot change while the process runs.
//
// INVARIANT: detectSandboxFrom must not panic. sync.OnceValue replays a
// panic on every subsequent call, which would turn one bad lookup into a
// persistent crash.
var detectOnce = sync.OnceValue(func() SandboxType {
	return detectSandboxFrom(os.Getenv, statFile)
})

// DetectSandbox returns the sandbox the current process runs in.
//
// Flatpak is recognized by the /.flatpak-info file, Snap by the SNAP_NAME
// environment variable.
func DetectSandbox() SandboxType {
	return detectOnce()
}

// IsInSandbox reports whether the current process runs inside a sandbox.
func IsInSandbox() bool {
	return DetectSandbox() != SandboxNone
}

// HostSpawnPrefix returns the argv prefix that escapes the sandbox, so a
// sandboxed process can launch executables installed on the host. Outside
// a sandbox it returns nil and commands run as given.
func HostSpawnPrefix() []string {
	return spawnPrefixFor(DetectSandbox())
}

func spawnPrefixFor(st SandboxType) []string {
	switch st {
	case SandboxFlatpak:
		return []string{"flatpak-spawn", "--host"}
	case SandboxSnap:
		return []string{"snap", "run", "--shell"}
	default:
		return nil
	}
}

func detectSandboxFrom(lookupEnv func(string) string, statFile func(string) error) SandboxType {
	// Flatpak wins when both markers are present: /.flatpak-info is
	// mounted by the runtime itself, SNAP_NAME can leak through env.
	if err := statFile("/.flatpak-info"); err == nil {
		return SandboxFlatpak
	}
	if lookupEnv("SNAP_NAME") != "" {
		return SandboxSnap
	}
	return SandboxNone
}

func statFile(path string) error {
	_, err := os.Stat(path)
	return err
}
