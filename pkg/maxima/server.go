// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"
)

// Server bridges TCP peers to a spawned engine process. It accepts
// connections, frames their traffic into newline-delimited commands,
// records handler output in a shared FIFO queue, and supervises the
// engine's readiness handshake.
//
// A Server is restartable: Stop returns it to the stopped state and a
// later Start brings it back up on the same port. The port is pinned by
// the first successful bind and never changes for the life of the
// instance.
type Server struct {
	cfg    Config
	logger *log.Logger
	clock  Clock

	// state and engineState are atomic for lock-free reads; transitions
	// go through CAS so concurrent Start and Stop cannot overlap.
	state       atomic.Int32
	engineState atomic.Int32

	queue    *ResponseQueue
	sessions *sessionRegistry

	wg    sync.WaitGroup
	errCh chan error

	mu       sync.Mutex // guards the per-run fields below
	cancel   context.CancelFunc
	listener *net.TCPListener
	port     int
	addr     string
	engine   *engineProcess
	info     EngineInfo
	tail     []string
	lastErr  error
}

// New validates cfg and returns a stopped Server. The engine executable
// must resolve on PATH here, before any socket or process resource is
// touched: a misconfigured server never gets as far as binding.
func New(cfg Config) (*Server, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Ports.validate(); err != nil {
		return nil, err
	}
	if _, err := lookupExecutable(cfg.Command); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		queue:    NewResponseQueue(),
		sessions: newSessionRegistry(),
		errCh:    make(chan error, 1),
	}
	s.state.Store(int32(StateStopped))
	s.engineState.Store(int32(EngineNotStarted))
	return s, nil
}

// Start binds the listener, launches the engine, and blocks until the
// engine completes its readiness handshake or the poll budget runs out.
// On failure every acquired resource is released and the server returns
// to the stopped state.
//
// The engine dials back into the listener like any other peer, so
// connections are accepted from the moment the listener is up, while
// Start is still blocked on readiness.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("maxima: start aborted: %w", ctx.Err())
	default:
	}

	if !s.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyStarted
	}

	if err := s.start(ctx); err != nil {
		s.shutdown()
		// A concurrent Stop may own the state machine by now; these
		// transitions only fire when the failed start still does.
		s.state.CompareAndSwap(int32(StateStarting), int32(StateStopped))
		s.state.CompareAndSwap(int32(StateListening), int32(StateStopped))
		s.setLastErr(err)
		return err
	}
	return nil
}

func (s *Server) start(ctx context.Context) error {
	port := s.Port()
	if port == 0 {
		p, err := selectFreePort(s.cfg.Host, s.cfg.Ports)
		if err != nil {
			return err
		}
		port = p
	}

	listener, err := s.bind(port)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.listener = listener
	s.port = port
	s.addr = listener.Addr().String()
	s.cancel = cancel
	s.info = EngineInfo{}
	s.tail = nil
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(listener, runCtx)

	s.state.CompareAndSwap(int32(StateStarting), int32(StateListening))
	s.logger.Info("listening", "address", s.Addr())

	s.engineState.Store(int32(EngineInit))
	engine, err := launchEngine(s.cfg.Command, port, s.logger)
	if err != nil {
		s.engineState.Store(int32(EngineFailed))
		return err
	}
	serverMetrics().engineLaunches.Inc()
	s.mu.Lock()
	s.engine = engine
	s.info.PID = engine.pid
	s.mu.Unlock()

	// The handshake aborts when the caller's context ends or a
	// concurrent Stop cancels the run.
	readyCtx, readyCancel := context.WithCancel(ctx)
	defer readyCancel()
	stopWatch := context.AfterFunc(runCtx, readyCancel)
	defer stopWatch()

	began := s.clock.Now()
	if err := awaitReady(readyCtx, s.queue, s.clock, s.cfg, s.absorbBannerLine); err != nil {
		s.engineState.Store(int32(EngineFailed))
		serverMetrics().readinessOutcomes.WithLabelValues(readinessOutcome(err)).Inc()
		return err
	}
	s.engineState.Store(int32(EngineReady))

	m := serverMetrics()
	m.engineReady.Set(1)
	m.readinessOutcomes.WithLabelValues("ready").Inc()
	m.readinessSeconds.Observe(s.clock.Now().Sub(began).Seconds())

	s.logger.Info("engine ready", "pid", engine.pid, "address", s.Addr())
	return nil
}

// bind listens on the pinned port. The probe in selectFreePort released
// the port, so another process can steal it before this bind; one
// immediate retry separates a transient race from a genuine loss.
func (s *Server) bind(port int) (*net.TCPListener, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	if err == nil {
		return l.(*net.TCPListener), nil
	}
	s.logger.Warn("bind lost a race, retrying once", "address", addr, "error", err)

	l, retryErr := net.Listen("tcp", addr)
	if retryErr != nil {
		return nil, &PortBindRaceError{Port: port, Err: retryErr}
	}
	return l.(*net.TCPListener), nil
}

// acceptLoop admits peers until the listener closes or the run context
// is cancelled. The short accept deadline keeps the loop responsive to
// shutdown without busy waiting.
func (s *Server) acceptLoop(l *net.TCPListener, ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := l.SetDeadline(time.Now().Add(s.cfg.AcceptTimeout)); err != nil {
			if !isClosedConnError(err) {
				s.logger.Error("accept deadline failed", "error", err)
				s.sendErr(fmt.Errorf("accept deadline: %w", err))
			}
			return
		}

		conn, err := l.Accept()
		if err != nil {
			if isTimeoutError(err) {
				continue
			}
			if isClosedConnError(err) {
				return
			}
			s.logger.Error("accept failed", "error", err)
			s.sendErr(fmt.Errorf("accept: %w", err))
			continue
		}

		sess := newSession(conn, s.cfg, s.queue, s.logger, s.dropSession)
		s.sessions.add(sess)
		sess.start(&s.wg)

		m := serverMetrics()
		m.connectionsTotal.Inc()
		m.activeSessions.Inc()
		s.logger.Info("peer connected", "session", sess.id, "peer", sess.peer, "sessions", s.sessions.count())
	}
}

// dropSession unregisters a finished session.
func (s *Server) dropSession(sess *session) {
	s.sessions.remove(sess)
	serverMetrics().activeSessions.Dec()
	s.logger.Debug("peer disconnected", "session", sess.id, "peer", sess.peer)
}

// Stop tears the server down: no new admissions, every session closed,
// the engine terminated, and background work joined within the stop
// budget. Safe to call repeatedly and concurrently; stopping a stopped
// server is a no-op. The pinned port is kept for the next Start.
func (s *Server) Stop() error {
	for {
		switch state := ServerState(s.state.Load()); state {
		case StateStopped:
			return nil

		case StateStopping:
			// Another Stop owns the teardown; wait it out.
			for ServerState(s.state.Load()) == StateStopping {
				time.Sleep(time.Millisecond)
			}
			return nil

		case StateStarting:
			// A Start is mid-flight; wait for it to reach a steady state
			// before tearing down.
			time.Sleep(time.Millisecond)

		case StateListening:
			if !s.state.CompareAndSwap(int32(StateListening), int32(StateStopping)) {
				continue
			}
			s.shutdown()
			s.engineState.Store(int32(EngineNotStarted))
			s.state.Store(int32(StateStopped))
			s.logger.Info("server stopped")
			return nil

		default:
			return fmt.Errorf("maxima: unknown server state %d", state)
		}
	}
}

// shutdown releases the current run's resources. It is safe to run twice
// for the same run: the second call finds the fields already cleared.
func (s *Server) shutdown() {
	s.mu.Lock()
	cancel := s.cancel
	listener := s.listener
	engine := s.engine
	s.cancel = nil
	s.listener = nil
	s.engine = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if listener != nil {
		if err := listener.Close(); err != nil && !isClosedConnError(err) {
			s.logger.Debug("listener close", "error", err)
		}
	}
	s.sessions.closeAll()
	if engine != nil {
		engine.terminate(s.cfg.StopTimeout)
		s.mu.Lock()
		s.tail = engine.tailLines()
		s.mu.Unlock()
	}
	s.joinPumps()
	serverMetrics().engineReady.Set(0)
}

// joinPumps waits for the accept loop and session pumps, bounded by the
// stop budget. Socket teardown unblocks them within one deadline; the
// bound guards against a wedged handler.
func (s *Server) joinPumps() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.StopTimeout):
		s.logger.Warn("shutdown join exceeded budget", "budget", s.cfg.StopTimeout)
	}
}

// Send writes text to the oldest live session, newline terminated. In
// the stock setup the engine's callback connection is the first session,
// so Send reaches the engine. Send never blocks: when the session's write
// buffer has no room the line is dropped with SendBufferFullError.
func (s *Server) Send(text string) error {
	if ServerState(s.state.Load()) != StateListening {
		return ErrNotStarted
	}
	sess := s.sessions.oldest()
	if sess == nil {
		return ErrNoSession
	}
	if err := sess.enqueue(text); err != nil {
		return err
	}
	serverMetrics().sendsTotal.Inc()
	return nil
}

// NextResponse pops the oldest recorded envelope, blocking until one is
// available or ctx ends.
func (s *Server) NextResponse(ctx context.Context) (Envelope, error) {
	env, err := s.queue.Next(ctx)
	if err == nil {
		serverMetrics().queueDepth.Set(float64(s.queue.Len()))
	}
	return env, err
}

// TryNextResponse pops the oldest recorded envelope without blocking.
func (s *Server) TryNextResponse() (Envelope, bool) {
	env, ok := s.queue.TryNext()
	if ok {
		serverMetrics().queueDepth.Set(float64(s.queue.Len()))
	}
	return env, ok
}

// DrainResponses removes and returns every recorded envelope, oldest
// first.
func (s *Server) DrainResponses() []Envelope {
	envs := s.queue.DrainAll()
	serverMetrics().queueDepth.Set(0)
	return envs
}

// QueueLen reports the number of envelopes waiting in the queue.
func (s *Server) QueueLen() int {
	return s.queue.Len()
}

// State returns the server lifecycle state.
func (s *Server) State() ServerState {
	return ServerState(s.state.Load())
}

// EngineState returns the engine readiness state.
func (s *Server) EngineState() EngineState {
	return EngineState(s.engineState.Load())
}

// Addr returns the listener address from the most recent start, or ""
// before the first one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Port returns the pinned listen port, or 0 before the first bind.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// Host returns the configured bind host.
func (s *Server) Host() string {
	return s.cfg.Host
}

// Sessions reports the number of live sessions.
func (s *Server) Sessions() int {
	return s.sessions.count()
}

// EngineInfo returns what is known about the engine process.
func (s *Server) EngineInfo() EngineInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// EngineTail returns the most recent engine output lines, oldest first.
// During a run it reflects the live process; after a stop it holds the
// final output of the previous run.
func (s *Server) EngineTail() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		return s.engine.tailLines()
	}
	return slices.Clone(s.tail)
}

// LastError returns the error from the most recent failed start, or nil.
func (s *Server) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Err delivers asynchronous accept-loop failures. The channel is shared
// across restarts and never closed.
func (s *Server) Err() <-chan error {
	return s.errCh
}

func (s *Server) sendErr(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

func (s *Server) setLastErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Server) absorbBannerLine(line string) {
	s.mu.Lock()
	s.info.absorb(line)
	s.mu.Unlock()
}

// readinessOutcome labels a failed handshake for the outcome counter.
func readinessOutcome(err error) string {
	var timeout *ReadinessTimeoutError
	if errors.As(err, &timeout) {
		return "timeout"
	}
	return "aborted"
}
