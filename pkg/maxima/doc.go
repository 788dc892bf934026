// SPDX-License-Identifier: MPL-2.0

// Package maxima provides the TCP bridge that backs a Maxima engine process.
//
// A Server picks a free port from a configured range, listens on it, and
// launches the engine with "-s <port>" so the engine dials back in as the
// first peer. Every connection gets a session that frames incoming bytes
// into newline-delimited commands, passes each command to the configured
// Handler, and records the result in a shared FIFO response queue that the
// embedding program drains with NextResponse, TryNextResponse, or
// DrainResponses.
//
// Startup blocks until the engine's banner traffic satisfies the readiness
// predicate (by default, the "(%i1)" input prompt) or the poll budget runs
// out. The server is restartable: Stop tears down the listener, the
// sessions, and the engine process, while the queue and the pinned port
// survive for the next Start. Send writes to the oldest live session, which
// in the stock setup is the engine's callback connection.
package maxima
