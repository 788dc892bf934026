// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"maxbridge/internal/testutil"
)

const testHost = "127.0.0.1"

// engineBanner is what a real engine prints after connecting back: a
// version banner followed by the first input prompt.
const engineBanner = "Maxima 5.47.0 https://maxima.sourceforge.io\n" +
	"using Lisp SBCL 2.2.9\n" +
	"(%i1) \n"

func serverConfig() (Config, *testutil.FakeClock) {
	clk := testutil.NewFakeClock(time.Time{})
	cfg := Config{
		Host:          testHost,
		Ports:         PortRange{Lo: 64000, Hi: 64100},
		Command:       "true",
		AcceptTimeout: 25 * time.Millisecond,
		ReadTimeout:   50 * time.Millisecond,
		StopTimeout:   2 * time.Second,
		SendBuffer:    4,
		Logger:        log.New(io.Discard),
		Clock:         clk,
	}
	return cfg, clk
}

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *testutil.FakeClock) {
	t.Helper()
	cfg, clk := serverConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv, clk
}

// dialServer waits for the listener to come up and connects to it.
func dialServer(srv *Server) (net.Conn, error) {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		port := srv.Port()
		if port == 0 {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		conn, err := net.Dial("tcp", net.JoinHostPort(testHost, strconv.Itoa(port)))
		if err != nil {
			time.Sleep(2 * time.Millisecond)
			continue
		}
		return conn, nil
	}
	return nil, errors.New("listener never came up")
}

// announceReady plays the engine's side of the handshake: connect back,
// print the banner, disconnect.
func announceReady(srv *Server) <-chan error {
	errc := make(chan error, 1)
	go func() {
		conn, err := dialServer(srv)
		if err != nil {
			errc <- err
			return
		}
		defer func() { _ = conn.Close() }()
		_, err = io.WriteString(conn, engineBanner)
		errc <- err
	}()
	return errc
}

func startServer(t *testing.T, srv *Server) {
	t.Helper()
	engineErr := announceReady(srv)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := <-engineErr; err != nil {
		t.Fatalf("fake engine: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

func TestNewExecutableNotFound(t *testing.T) {
	cfg, _ := serverConfig()
	cfg.Command = "no-such-engine-binary-xyzzy"

	_, err := New(cfg)
	var notFound *ExecutableNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("New error = %v, want ExecutableNotFoundError", err)
	}
	if notFound.Command != "no-such-engine-binary-xyzzy" {
		t.Errorf("Command = %q", notFound.Command)
	}
}

func TestNewRejectsBadPortRange(t *testing.T) {
	cfg, _ := serverConfig()
	cfg.Ports = PortRange{Lo: -1, Hi: 10}

	if _, err := New(cfg); err == nil {
		t.Fatal("New accepted a negative port range")
	}
}

func TestNewStartsStopped(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	if got := srv.State(); got != StateStopped {
		t.Errorf("State = %v, want %v", got, StateStopped)
	}
	if got := srv.EngineState(); got != EngineNotStarted {
		t.Errorf("EngineState = %v, want %v", got, EngineNotStarted)
	}
	if srv.Port() != 0 {
		t.Errorf("Port = %d, want 0 before first bind", srv.Port())
	}
	if srv.Addr() != "" {
		t.Errorf("Addr = %q, want empty", srv.Addr())
	}
	if srv.LastError() != nil {
		t.Errorf("LastError = %v, want nil", srv.LastError())
	}
}

func TestStartStopLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	startServer(t, srv)

	if got := srv.State(); got != StateListening {
		t.Fatalf("State = %v, want %v", got, StateListening)
	}
	if got := srv.EngineState(); got != EngineReady {
		t.Fatalf("EngineState = %v, want %v", got, EngineReady)
	}
	port := srv.Port()
	if port < 64000 || port >= 64100 {
		t.Errorf("Port = %d, outside configured range", port)
	}
	if !strings.HasSuffix(srv.Addr(), strconv.Itoa(port)) {
		t.Errorf("Addr = %q does not end in port %d", srv.Addr(), port)
	}

	info := srv.EngineInfo()
	if info.Version != "5.47.0" {
		t.Errorf("Version = %q, want 5.47.0", info.Version)
	}
	if info.LispVersion != "SBCL 2.2.9" {
		t.Errorf("LispVersion = %q, want SBCL 2.2.9", info.LispVersion)
	}
	if info.PID <= 0 {
		t.Errorf("PID = %d, want a live pid", info.PID)
	}

	// The handshake consumed the banner envelopes.
	if n := srv.QueueLen(); n != 0 {
		t.Errorf("QueueLen = %d after start, want 0", n)
	}

	addr := srv.Addr()
	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := srv.State(); got != StateStopped {
		t.Errorf("State after Stop = %v, want %v", got, StateStopped)
	}
	if got := srv.EngineState(); got != EngineNotStarted {
		t.Errorf("EngineState after Stop = %v, want %v", got, EngineNotStarted)
	}
	if conn, err := net.Dial("tcp", addr); err == nil {
		_ = conn.Close()
		t.Error("dial succeeded after Stop")
	}
}

func TestStartWhileRunning(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	startServer(t, srv)

	if err := srv.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartContextCanceled(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := srv.Start(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Start = %v, want context.Canceled", err)
	}
	if got := srv.State(); got != StateStopped {
		t.Errorf("State = %v, want %v", got, StateStopped)
	}
}

func TestStopWithoutStart(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop on stopped server: %v", err)
	}
	if err := srv.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestRestartReusesPort(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	startServer(t, srv)

	port := srv.Port()
	addr := srv.Addr()

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := srv.Port(); got != port {
		t.Fatalf("Port after Stop = %d, want pinned %d", got, port)
	}

	startServer(t, srv)
	if got := srv.Port(); got != port {
		t.Errorf("Port after restart = %d, want pinned %d", got, port)
	}
	if got := srv.Addr(); got != addr {
		t.Errorf("Addr after restart = %q, want %q", got, addr)
	}
}

func TestReadinessTimeout(t *testing.T) {
	srv, clk := newTestServer(t, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(context.Background()) }()

	for i := 0; i < 10; i++ {
		waitForWaiter(t, clk)
		clk.Advance(time.Second)
	}

	var err error
	select {
	case err = <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after the poll budget ran out")
	}

	var timeout *ReadinessTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Start = %v, want ReadinessTimeoutError", err)
	}
	if got := srv.State(); got != StateStopped {
		t.Errorf("State = %v, want %v", got, StateStopped)
	}
	if got := srv.EngineState(); got != EngineFailed {
		t.Errorf("EngineState = %v, want %v", got, EngineFailed)
	}
	if !errors.As(srv.LastError(), &timeout) {
		t.Errorf("LastError = %v, want the readiness failure", srv.LastError())
	}

	// The failed run must have released its socket.
	port := srv.Port()
	if port == 0 {
		t.Fatal("Port = 0, want the pinned port even after a failed start")
	}
	l, lerr := net.Listen("tcp", net.JoinHostPort(testHost, strconv.Itoa(port)))
	if lerr != nil {
		t.Fatalf("pinned port still held after failed start: %v", lerr)
	}
	_ = l.Close()
}

func TestSendBeforeStart(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	if err := srv.Send("quit();"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("Send = %v, want ErrNotStarted", err)
	}
}

func TestSendReachesEngine(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	connCh := make(chan net.Conn, 1)
	errCh := make(chan error, 1)
	go func() {
		conn, err := dialServer(srv)
		if err != nil {
			errCh <- err
			return
		}
		if _, err := io.WriteString(conn, engineBanner); err != nil {
			_ = conn.Close()
			errCh <- err
			return
		}
		connCh <- conn
	}()

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	testutil.StopOnCleanup(t, srv)

	var engine net.Conn
	select {
	case engine = <-connCh:
	case err := <-errCh:
		t.Fatalf("fake engine: %v", err)
	}
	testutil.CloseOnCleanup(t, engine)

	if err := srv.Send("quit();"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	_ = engine.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(engine).ReadString('\n')
	if err != nil {
		t.Fatalf("engine read: %v", err)
	}
	if line != "quit();\n" {
		t.Errorf("engine received %q, want %q", line, "quit();\n")
	}
}

func TestSendNoSession(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	startServer(t, srv)

	// The fake engine disconnects after the banner; wait for its
	// session to drain out.
	waitFor(t, func() bool { return srv.Sessions() == 0 }, "engine session removed")

	if err := srv.Send("quit();"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Send = %v, want ErrNoSession", err)
	}
}

func TestTwoClientsPerPeerOrder(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	startServer(t, srv)

	c1, err := dialServer(srv)
	if err != nil {
		t.Fatalf("client 1: %v", err)
	}
	testutil.CloseOnCleanup(t, c1)
	c2, err := dialServer(srv)
	if err != nil {
		t.Fatalf("client 2: %v", err)
	}
	testutil.CloseOnCleanup(t, c2)

	if _, err := io.WriteString(c1, "a1;\na2;\n"); err != nil {
		t.Fatalf("client 1 write: %v", err)
	}
	if _, err := io.WriteString(c2, "b1;\nb2;\n"); err != nil {
		t.Fatalf("client 2 write: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	byPeer := make(map[string][]string)
	for i := 0; i < 4; i++ {
		env, err := srv.NextResponse(ctx)
		if err != nil {
			t.Fatalf("NextResponse: %v", err)
		}
		byPeer[env.Peer] = append(byPeer[env.Peer], env.Command)
	}

	want := map[string][]string{
		c1.LocalAddr().String(): {"a1;", "a2;"},
		c2.LocalAddr().String(): {"b1;", "b2;"},
	}
	for peer, cmds := range want {
		got := byPeer[peer]
		if len(got) != len(cmds) {
			t.Fatalf("peer %s: got %d envelopes, want %d", peer, len(got), len(cmds))
		}
		for i, cmd := range cmds {
			if got[i] != cmd {
				t.Errorf("peer %s envelope %d = %q, want %q", peer, i, got[i], cmd)
			}
		}
	}
}

func TestClientDisconnectKeepsServing(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	startServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	c1, err := dialServer(srv)
	if err != nil {
		t.Fatalf("client 1: %v", err)
	}
	if _, err := io.WriteString(c1, "first;\n"); err != nil {
		t.Fatalf("client 1 write: %v", err)
	}
	env, err := srv.NextResponse(ctx)
	if err != nil {
		t.Fatalf("NextResponse: %v", err)
	}
	if env.Command != "first;" {
		t.Fatalf("Command = %q, want %q", env.Command, "first;")
	}
	_ = c1.Close()

	// The dropped peer must not take the server down with it.
	c2, err := dialServer(srv)
	if err != nil {
		t.Fatalf("client 2: %v", err)
	}
	testutil.CloseOnCleanup(t, c2)
	if _, err := io.WriteString(c2, "second;\n"); err != nil {
		t.Fatalf("client 2 write: %v", err)
	}
	env, err = srv.NextResponse(ctx)
	if err != nil {
		t.Fatalf("NextResponse: %v", err)
	}
	if env.Command != "second;" {
		t.Fatalf("Command = %q, want %q", env.Command, "second;")
	}
	if got := srv.State(); got != StateListening {
		t.Errorf("State = %v, want %v", got, StateListening)
	}
}

func TestReplyToPeer(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *Config) { cfg.ReplyToPeer = true })
	startServer(t, srv)

	client, err := dialServer(srv)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	testutil.CloseOnCleanup(t, client)

	if _, err := io.WriteString(client, "ping;\n"); err != nil {
		t.Fatalf("client write: %v", err)
	}
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(client).ReadString('\n')
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if line != "Received: ping;\n" {
		t.Errorf("reply = %q, want %q", line, "Received: ping;\n")
	}
}

func TestQueueSurvivesStop(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	startServer(t, srv)

	client, err := dialServer(srv)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	testutil.CloseOnCleanup(t, client)
	if _, err := io.WriteString(client, "later;\n"); err != nil {
		t.Fatalf("client write: %v", err)
	}
	waitFor(t, func() bool { return srv.QueueLen() == 1 }, "envelope recorded")

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if n := srv.QueueLen(); n != 1 {
		t.Fatalf("QueueLen after Stop = %d, want 1", n)
	}
	env, ok := srv.TryNextResponse()
	if !ok {
		t.Fatal("TryNextResponse found nothing after restartable stop")
	}
	if env.Command != "later;" {
		t.Errorf("Command = %q, want %q", env.Command, "later;")
	}
}

func TestEngineTailCaptured(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *Config) {
		cfg.Command = "sh -c 'echo boot line'"
	})
	startServer(t, srv)

	if err := srv.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	tail := srv.EngineTail()
	found := false
	for _, line := range tail {
		if line == "boot line" {
			found = true
		}
	}
	if !found {
		t.Errorf("EngineTail = %q, want it to contain %q", tail, "boot line")
	}
}

func TestStartNoFreePort(t *testing.T) {
	srv, _ := newTestServer(t, func(cfg *Config) {
		cfg.Ports = PortRange{Lo: 64000, Hi: 64000}
	})

	err := srv.Start(context.Background())
	var noPort *NoFreePortError
	if !errors.As(err, &noPort) {
		t.Fatalf("Start = %v, want NoFreePortError", err)
	}
	if got := srv.State(); got != StateStopped {
		t.Errorf("State = %v, want %v", got, StateStopped)
	}
}

func TestStartPortOccupied(t *testing.T) {
	l, err := net.Listen("tcp", net.JoinHostPort(testHost, "0"))
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	testutil.CloseOnCleanup(t, l)
	port := l.Addr().(*net.TCPAddr).Port

	srv, _ := newTestServer(t, func(cfg *Config) {
		cfg.Ports = SinglePort(port)
	})

	err = srv.Start(context.Background())
	var noPort *NoFreePortError
	if !errors.As(err, &noPort) {
		t.Fatalf("Start = %v, want NoFreePortError", err)
	}
	if got := srv.State(); got != StateStopped {
		t.Errorf("State = %v, want %v", got, StateStopped)
	}
	if got := srv.EngineState(); got != EngineNotStarted {
		t.Errorf("EngineState = %v, want %v", got, EngineNotStarted)
	}
}
