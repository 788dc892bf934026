// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"maxbridge/internal/config"
	"maxbridge/internal/issue"
	"maxbridge/internal/monitor"
	"maxbridge/pkg/maxima"
	"maxbridge/pkg/types"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// monitorShutdownTimeout bounds how long serve waits for in-flight
// monitor requests during shutdown.
const monitorShutdownTimeout = 5 * time.Second

var (
	// monitorAddrFlag overrides the configured monitor address; a
	// non-empty value also forces the monitor on.
	monitorAddrFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the bridge and its Maxima engine",
		Long: `Start the TCP bridge, launch the Maxima engine, and relay traffic.

serve binds a port from the configured range, spawns the engine with
'-s <port>' so it dials back in, and waits for the readiness
handshake. Once the engine is ready, every response recorded from
connected peers is drained to the log until the process receives
SIGINT or SIGTERM, at which point the engine is terminated and all
sessions are closed.

Examples:
  maxbridge serve                         Run with the configured settings
  maxbridge serve --verbose               Raise the log level to debug
  maxbridge serve --monitor-addr :9390    Serve /healthz, /statusz, /metrics there
  maxbridge serve --config ./dev.cue      Use an explicit config file`,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&monitorAddrFlag, "monitor-addr", "", "monitor listen address (overrides config and forces the monitor on)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	// A broken config file must not silently run a server on defaults.
	if err := config.LastLoadError(); err != nil {
		return failServe(cmd, err, issue.ConfigLoadFailedId, "")
	}

	cfg := config.Get()
	bridgeCfg, err := cfg.BridgeConfig()
	if err != nil {
		return failServe(cmd, err, issue.ConfigLoadFailedId, "")
	}

	level := logLevelFor(cfg.Log.Level)
	if verbose {
		level = log.DebugLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "maxima",
		Level:           level,
		ReportTimestamp: true,
	})
	bridgeCfg.Logger = logger

	srv, err := maxima.New(bridgeCfg)
	if err != nil {
		return failServe(cmd, err, classifyServeIssue(err), "")
	}

	if err := srv.Start(ctx); err != nil {
		extra := ""
		var notReady *maxima.ReadinessTimeoutError
		if errors.As(err, &notReady) {
			extra = formatEngineTail(srv.EngineTail())
		}
		return failServe(cmd, err, classifyServeIssue(err), extra)
	}

	monAddr, monEnabled := monitorSettings(cfg)
	if monEnabled {
		mon := monitor.New(monAddr, srv, logger.WithPrefix("monitor"))
		if err := mon.Start(); err != nil {
			_ = srv.Stop()
			wrapped := fmt.Errorf("failed to start monitor on %s: %w", monAddr, err)
			return failServe(cmd, wrapped, issue.MonitorStartFailedId, "")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), monitorShutdownTimeout)
			defer cancel()
			if err := mon.Shutdown(shutdownCtx); err != nil {
				logger.Warn("monitor shutdown", "error", err)
			}
		}()
	}

	drainCtx, cancelDrain := context.WithCancel(ctx)
	defer cancelDrain()

	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		drainEnvelopes(drainCtx, srv, logger)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-srv.Err():
		logger.Error("bridge failure", "error", runErr)
	}

	cancelDrain()
	<-drainDone

	if err := srv.Stop(); err != nil {
		logger.Error("stop failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	if runErr != nil {
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: types.ExitFailure, Err: runErr}
	}
	return nil
}

// drainEnvelopes logs every recorded envelope until ctx ends.
func drainEnvelopes(ctx context.Context, srv *maxima.Server, logger *log.Logger) {
	for {
		env, err := srv.NextResponse(ctx)
		if err != nil {
			return
		}
		logger.Info("response", "peer", env.Peer, "command", env.Command, "response", env.Response)
	}
}

// failServe renders a fatal serve error with its issue catalog entry and
// converts it into a silent non-zero exit.
func failServe(cmd *cobra.Command, err error, id issue.Id, extra string) error {
	styled := ErrorStyle.Render("Error: ") + formatErrorForDisplay(err, verbose) + "\n" + extra
	renderServiceError(cmd.ErrOrStderr(), newServiceError(err, id, styled))
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return &ExitError{Code: exitCodeForIssue(id), Err: err}
}

// exitCodeForIssue maps fatal serve failures to distinct exit codes, so
// wrapper scripts can react without parsing stderr.
func exitCodeForIssue(id issue.Id) types.ExitCode {
	switch id {
	case issue.EngineNotFoundId:
		return types.ExitEngineMissing
	case issue.ConfigLoadFailedId:
		return types.ExitConfigError
	default:
		return types.ExitFailure
	}
}

// classifyServeIssue maps bridge startup errors onto issue catalog
// entries. Unknown errors keep ID zero and render without a help section.
func classifyServeIssue(err error) issue.Id {
	var (
		notFound *maxima.ExecutableNotFoundError
		noPort   *maxima.NoFreePortError
		bindRace *maxima.PortBindRaceError
		notReady *maxima.ReadinessTimeoutError
	)
	switch {
	case errors.As(err, &notFound):
		return issue.EngineNotFoundId
	case errors.As(err, &noPort):
		return issue.NoFreePortId
	case errors.As(err, &bindRace):
		return issue.PortBindRaceId
	case errors.As(err, &notReady):
		return issue.ReadinessTimeoutId
	default:
		return 0
	}
}

// monitorSettings resolves the monitor address and whether it runs,
// giving the --monitor-addr flag priority over the config file.
func monitorSettings(cfg *config.Config) (addr string, enabled bool) {
	if monitorAddrFlag != "" {
		return monitorAddrFlag, true
	}
	return cfg.Monitor.Addr.String(), cfg.Monitor.Enabled
}

// logLevelFor converts the config file's log level to the logger's.
func logLevelFor(level config.LogLevel) log.Level {
	switch level {
	case config.LogLevelDebug:
		return log.DebugLevel
	case config.LogLevelWarn:
		return log.WarnLevel
	case config.LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// formatEngineTail renders the engine's last output lines for failure
// reports. Empty tails render nothing.
func formatEngineTail(tail []string) string {
	if len(tail) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(WarningStyle.Render("Last engine output:"))
	sb.WriteString("\n")
	for _, line := range tail {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}
