// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"context"
	"strings"
)

// ReadyFunc reports whether a recorded response marks the engine as ready
// to accept commands.
type ReadyFunc func(response string) bool

// readyMarker is the first input prompt the stock engine emits once it
// has finished booting.
const readyMarker = "(%i1)"

// DefaultReadyFunc matches the stock prompt anywhere in the response. The
// prompt can arrive embedded in banner text or as a bare idle-flushed
// frame, so the match is a substring search rather than an anchored one.
func DefaultReadyFunc(response string) bool {
	return strings.Contains(response, readyMarker)
}

// awaitReady consumes queued envelopes until ready matches one, the poll
// budget is spent, or ctx ends. The poll budget counts only clock ticks:
// traffic that wakes the monitor between ticks is inspected for free.
// During the handshake the engine banner is the only expected traffic, so
// consuming it here is intended; every inspected command line also feeds
// onLine when set.
func awaitReady(ctx context.Context, q *ResponseQueue, clk Clock, cfg Config, onLine func(string)) error {
	drain := func() bool {
		for {
			env, ok := q.TryNext()
			if !ok {
				return false
			}
			if onLine != nil {
				onLine(env.Command)
			}
			if cfg.Ready(env.Response) {
				return true
			}
		}
	}

	for cycle := 0; cycle < cfg.MaxPollCycles; {
		// Grab the wake channel before draining: a publish racing the
		// drain closes this channel, not a later one.
		wake := q.awaitWake()
		if drain() {
			return nil
		}
		select {
		case <-clk.After(cfg.PollInterval):
			cycle++
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if drain() {
		return nil
	}
	return &ReadinessTimeoutError{Cycles: cfg.MaxPollCycles, Interval: cfg.PollInterval}
}
