// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"context"
	"sync"
)

// Envelope is one frame of session traffic: the raw line a peer sent, the
// handler's response to it, and the peer address it came from.
type Envelope struct {
	// Peer is the remote address of the session that produced the frame.
	Peer string

	// Command is the raw line received from the peer, with the trailing
	// newline trimmed.
	Command string

	// Response is the handler's output for Command.
	Response string
}

// ResponseQueue is an unbounded FIFO of envelopes shared by all sessions.
// Sessions publish into it; consumers pop from it. Envelopes from a single
// session arrive in the order that session produced them.
type ResponseQueue struct {
	mu    sync.Mutex
	items []Envelope
	wake  chan struct{}
}

// NewResponseQueue returns an empty queue.
func NewResponseQueue() *ResponseQueue {
	return &ResponseQueue{wake: make(chan struct{})}
}

// Publish appends env and wakes every blocked consumer.
func (q *ResponseQueue) Publish(env Envelope) {
	q.mu.Lock()
	q.items = append(q.items, env)
	close(q.wake)
	q.wake = make(chan struct{})
	q.mu.Unlock()
}

// TryNext pops the oldest envelope without blocking. The second return
// value is false when the queue is empty.
func (q *ResponseQueue) TryNext() (Envelope, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Envelope{}, false
	}
	env := q.items[0]
	q.items = q.items[1:]
	return env, true
}

// Next pops the oldest envelope, blocking until one is available or ctx
// is done.
func (q *ResponseQueue) Next(ctx context.Context) (Envelope, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			env := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return env, nil
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Envelope{}, ctx.Err()
		}
	}
}

// DrainAll removes and returns every queued envelope, oldest first. The
// returned slice is owned by the caller.
func (q *ResponseQueue) DrainAll() []Envelope {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len reports the number of queued envelopes.
func (q *ResponseQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// awaitWake returns a channel that is closed by the next Publish. The
// readiness monitor selects on it to react to traffic between poll ticks.
func (q *ResponseQueue) awaitWake() <-chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.wake
}
