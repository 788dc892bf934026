// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"fmt"
	"net"
	"strconv"
)

// PortRange is a half-open interval [Lo, Hi) of TCP ports probed in
// ascending order when picking the listen port. An empty range (Lo == Hi)
// is valid and yields NoFreePortError from the selector.
type PortRange struct {
	Lo int
	Hi int
}

// DefaultPortRange is used when Config.Ports is the zero value.
var DefaultPortRange = PortRange{Lo: 64000, Hi: 64100}

// SinglePort returns the range holding exactly one port, [p, p+1).
func SinglePort(p int) PortRange {
	return PortRange{Lo: p, Hi: p + 1}
}

// String renders the range in half-open interval notation, e.g.
// "[64000,64100)".
func (r PortRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Lo, r.Hi)
}

// Len returns the number of ports in the range.
func (r PortRange) Len() int {
	if r.Hi <= r.Lo {
		return 0
	}
	return r.Hi - r.Lo
}

func (r PortRange) validate() error {
	if r.Lo < 0 || r.Hi > 65536 {
		return fmt.Errorf("port range %s outside the TCP port space", r)
	}
	if r.Hi < r.Lo {
		return fmt.Errorf("port range %s has hi < lo", r)
	}
	return nil
}

// selectFreePort probes each port in the range in ascending order and
// returns the first one that binds. The probe listener is released
// immediately, so the caller's own bind can still lose the port to
// another process; that race is handled at bind time.
func selectFreePort(host string, r PortRange) (int, error) {
	for port := r.Lo; port < r.Hi; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return port, nil
	}
	return 0, &NoFreePortError{Host: host, Range: r}
}
