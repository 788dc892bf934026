// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"
)

// Sentinel errors returned by Server operations.
var (
	// ErrAlreadyStarted is returned by Start when the server is not in
	// the stopped state.
	ErrAlreadyStarted = errors.New("maxima: server already started")

	// ErrNotStarted is returned by operations that require a running
	// server.
	ErrNotStarted = errors.New("maxima: server not started")

	// ErrNoSession is returned by Send when no client session is
	// connected.
	ErrNoSession = errors.New("maxima: no connected session")
)

// ExecutableNotFoundError reports that the configured engine command does
// not resolve to an executable on PATH. It is returned by New, before any
// socket or process resource is touched.
type ExecutableNotFoundError struct {
	Command string
	Err     error
}

func (e *ExecutableNotFoundError) Error() string {
	return fmt.Sprintf("maxima: executable %q not found: %v", e.Command, e.Err)
}

func (e *ExecutableNotFoundError) Unwrap() error { return e.Err }

// NoFreePortError reports that every port in the configured range was
// probed and none could be bound.
type NoFreePortError struct {
	Host  string
	Range PortRange
}

func (e *NoFreePortError) Error() string {
	return fmt.Sprintf("maxima: no free port on %s in %s", e.Host, e.Range)
}

// PortBindRaceError reports that a port which probed as free was taken by
// another process before the listener bind, and the single retry lost the
// race as well.
type PortBindRaceError struct {
	Port int
	Err  error
}

func (e *PortBindRaceError) Error() string {
	return fmt.Sprintf("maxima: port %d taken by another process: %v", e.Port, e.Err)
}

func (e *PortBindRaceError) Unwrap() error { return e.Err }

// ReadinessTimeoutError reports that the engine did not emit its ready
// marker within the poll budget.
type ReadinessTimeoutError struct {
	Cycles   int
	Interval time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("maxima: engine not ready after %d polls of %s", e.Cycles, e.Interval)
}

// SendBufferFullError reports that an outbound line was dropped because
// the session's write buffer had no room, which usually means the peer
// stopped reading.
type SendBufferFullError struct {
	Peer     string
	Capacity int
}

func (e *SendBufferFullError) Error() string {
	return fmt.Sprintf("maxima: send buffer full (%d lines) for peer %s", e.Capacity, e.Peer)
}

// isClosedConnError reports whether err is one of the errors produced by
// operating on a socket that was torn down, typically during shutdown.
// These are part of normal termination and are not surfaced as failures.
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// isTimeoutError reports whether err is a network timeout, such as the
// deadline expiry that keeps accept and read loops interruptible.
func isTimeoutError(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
