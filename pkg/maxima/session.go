// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// session owns one accepted connection: a read pump that frames incoming
// lines and publishes handler output, and a write pump for outbound text.
// Sessions die alone; a failure here never touches the listener or the
// other sessions.
type session struct {
	id      int64
	conn    net.Conn
	peer    string
	handler Handler
	queue   *ResponseQueue
	reply   bool
	timeout time.Duration
	logger  *log.Logger

	send     chan string
	stopChan chan struct{}
	stopOnce sync.Once
	onClose  func(*session)
}

func newSession(conn net.Conn, cfg Config, q *ResponseQueue, logger *log.Logger, onClose func(*session)) *session {
	return &session{
		conn:     conn,
		peer:     conn.RemoteAddr().String(),
		handler:  cfg.Handler,
		queue:    q,
		reply:    cfg.ReplyToPeer,
		timeout:  cfg.ReadTimeout,
		logger:   logger,
		send:     make(chan string, cfg.SendBuffer),
		stopChan: make(chan struct{}),
		onClose:  onClose,
	}
}

// start launches the read and write pumps, tracked by wg.
func (s *session) start(wg *sync.WaitGroup) {
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readPump()
	}()
	go func() {
		defer wg.Done()
		s.writePump()
	}()
}

// readPump frames incoming traffic on newlines and dispatches each frame.
// The short read deadline keeps the pump responsive to shutdown; a
// partial line buffered when it expires is flushed as a complete frame,
// because the engine ends its prompt without a newline.
func (s *session) readPump() {
	defer s.close()

	reader := bufio.NewReader(s.conn)
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
			if !isClosedConnError(err) {
				s.logger.Error("session set deadline failed", "peer", s.peer, "error", err)
			}
			return
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if isTimeoutError(err) {
				if frame := strings.TrimSpace(line); frame != "" {
					s.dispatch(frame)
				}
				continue
			}
			if isClosedConnError(err) {
				s.logger.Debug("session closed", "peer", s.peer)
				return
			}
			s.logger.Error("session read failed", "peer", s.peer, "error", err)
			return
		}

		if frame := strings.TrimSpace(line); frame != "" {
			s.dispatch(frame)
		}
	}
}

// dispatch runs the handler on one frame and records the envelope. Frames
// dispatch in arrival order, so envelopes from one session are FIFO.
func (s *session) dispatch(command string) {
	response := s.handler(command)
	s.queue.Publish(Envelope{Peer: s.peer, Command: command, Response: response})

	m := serverMetrics()
	m.commandsTotal.Inc()
	m.queueDepth.Set(float64(s.queue.Len()))

	if !s.reply {
		return
	}
	select {
	case s.send <- response:
	case <-s.stopChan:
	}
}

// writePump drains the outbound channel onto the socket, newline
// terminated.
func (s *session) writePump() {
	defer s.close()

	for {
		select {
		case <-s.stopChan:
			return
		case text := <-s.send:
			if _, err := s.conn.Write([]byte(text + "\n")); err != nil {
				if !isClosedConnError(err) {
					s.logger.Error("session write failed", "peer", s.peer, "error", err)
				}
				return
			}
		}
	}
}

// enqueue places text on the outbound pump without blocking. It fails
// with ErrNoSession once the session has closed and drops the line with
// SendBufferFullError when the pump cannot keep up.
func (s *session) enqueue(text string) error {
	if s.closed() {
		return ErrNoSession
	}
	select {
	case s.send <- text:
		return nil
	default:
		return &SendBufferFullError{Peer: s.peer, Capacity: cap(s.send)}
	}
}

// close tears the session down exactly once: both pumps unblock, the
// socket closes, and the session unregisters.
func (s *session) close() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		if err := s.conn.Close(); err != nil && !isClosedConnError(err) {
			s.logger.Debug("session close", "session", s.id, "peer", s.peer, "error", err)
		}
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// closed reports whether the session has been torn down.
func (s *session) closed() bool {
	select {
	case <-s.stopChan:
		return true
	default:
		return false
	}
}

// sessionRegistry tracks live sessions in arrival order. The oldest live
// session is the engine's callback connection in the stock setup, which
// makes it the target for server-initiated writes.
type sessionRegistry struct {
	mu       sync.Mutex
	nextID   int64
	sessions []*session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{}
}

// add assigns the next id to sess and tracks it.
func (r *sessionRegistry) add(sess *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sess.id = r.nextID
	r.sessions = append(r.sessions, sess)
}

// remove drops sess from tracking. Unknown sessions are ignored.
func (r *sessionRegistry) remove(sess *session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.sessions {
		if cur == sess {
			r.sessions = append(r.sessions[:i], r.sessions[i+1:]...)
			return
		}
	}
}

// oldest returns the longest-lived tracked session, or nil.
func (r *sessionRegistry) oldest() *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) == 0 {
		return nil
	}
	return r.sessions[0]
}

// count reports the number of tracked sessions.
func (r *sessionRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// closeAll closes every tracked session. It snapshots first because each
// close re-enters the registry through onClose.
func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	snapshot := make([]*session, len(r.sessions))
	copy(snapshot, r.sessions)
	r.mu.Unlock()

	for _, sess := range snapshot {
		sess.close()
	}
}
