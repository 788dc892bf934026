// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"regexp"
	"strings"
)

// EngineInfo describes the launched engine process. Version fields fill
// in as the banner streams through the readiness handshake and stay empty
// when the engine never announces them.
type EngineInfo struct {
	// PID is the engine's process id, 0 before the first launch.
	PID int

	// Version is the engine release, e.g. "5.47.0".
	Version string

	// LispVersion is the Lisp runtime the engine announced, e.g.
	// "SBCL 2.2.9".
	LispVersion string
}

var (
	engineVersionRe = regexp.MustCompile(`Maxima\s+(\d[^\s]*)`)
	lispVersionRe   = regexp.MustCompile(`using Lisp\s+(.+)`)
)

// absorb fills empty fields from one line of banner output. Later lines
// never overwrite an already-parsed value.
func (i *EngineInfo) absorb(line string) {
	if i.Version == "" {
		if m := engineVersionRe.FindStringSubmatch(line); m != nil {
			i.Version = m[1]
		}
	}
	if i.LispVersion == "" {
		if m := lispVersionRe.FindStringSubmatch(line); m != nil {
			i.LispVersion = strings.TrimSpace(m[1])
		}
	}
}
