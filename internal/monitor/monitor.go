// SPDX-License-Identifier: MPL-2.0

package monitor

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"time"

	"maxbridge/pkg/maxima"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource supplies the state snapshot served at /statusz.
// *maxima.Server satisfies it.
type StatusSource interface {
	State() maxima.ServerState
	EngineState() maxima.EngineState
	Addr() string
	Sessions() int
	QueueLen() int
	EngineInfo() maxima.EngineInfo
}

// statusResponse is the JSON body of /statusz.
type statusResponse struct {
	Server        string `json:"server"`
	Engine        string `json:"engine"`
	Addr          string `json:"addr"`
	Sessions      int    `json:"sessions"`
	QueueDepth    int    `json:"queue_depth"`
	EnginePID     int    `json:"engine_pid,omitempty"`
	EngineVersion string `json:"engine_version,omitempty"`
	LispVersion   string `json:"lisp_version,omitempty"`
}

// Monitor serves the bridge's observability endpoints over localhost HTTP:
// GET /healthz (liveness), GET /statusz (JSON state snapshot), and
// GET /metrics (Prometheus exposition).
type Monitor struct {
	addr   string
	src    StatusSource
	logger *log.Logger

	ln  net.Listener
	srv *http.Server
}

// New creates a monitor bound to addr once Start is called. A nil logger
// falls back to a stderr logger.
func New(addr string, src StatusSource, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "monitor"})
	}

	return &Monitor{
		addr:   addr,
		src:    src,
		logger: logger,
	}
}

// Start binds the listener and begins serving in the background. Bind
// failures (address in use, malformed address) surface synchronously;
// errors after a successful bind are logged.
func (m *Monitor) Start() error {
	ln, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}
	m.ln = ln

	m.srv = &http.Server{
		Handler:           m.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			m.logger.Error("monitor server error", "error", err)
		}
	}()

	m.logger.Info("monitor listening", "addr", m.BoundAddr())
	return nil
}

// BoundAddr returns the listener's actual address, empty before Start.
// It differs from the configured addr when the port was 0.
func (m *Monitor) BoundAddr() string {
	if m.ln == nil {
		return ""
	}
	return m.ln.Addr().String()
}

// Shutdown stops the HTTP server, waiting for in-flight requests until
// ctx expires. Safe to call when Start never ran or failed.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}

func (m *Monitor) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", m.handleHealthz)
	r.Get("/statusz", m.handleStatusz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (m *Monitor) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (m *Monitor) handleStatusz(w http.ResponseWriter, _ *http.Request) {
	info := m.src.EngineInfo()
	resp := statusResponse{
		Server:        m.src.State().String(),
		Engine:        m.src.EngineState().String(),
		Addr:          m.src.Addr(),
		Sessions:      m.src.Sessions(),
		QueueDepth:    m.src.QueueLen(),
		EnginePID:     info.PID,
		EngineVersion: info.Version,
		LispVersion:   info.LispVersion,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		m.logger.Error("encode status", "error", err)
	}
}
