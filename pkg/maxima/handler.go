// SPDX-License-Identifier: MPL-2.0

package maxima

// Handler turns one received command line into the response recorded for
// it. Handlers run on the session goroutine that read the command, so
// they must be safe for concurrent use when several peers are connected.
type Handler func(command string) string

// EchoHandler is the default Handler. It acknowledges the command without
// interpreting it, which is enough for the readiness handshake: the
// engine's prompt echoes straight back into the recorded response.
func EchoHandler(command string) string {
	return "Received: " + command
}
