// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"maxbridge/pkg/maxima"
	"maxbridge/pkg/types"
)

const (
	// LogLevelDebug enables verbose diagnostic output.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo logs lifecycle events (default).
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs only recoverable problems.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs only failures.
	LogLevelError LogLevel = "error"
)

var (
	// ErrInvalidLogLevel is returned when a LogLevel value is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidHostName is returned when a HostName value is whitespace-only.
	ErrInvalidHostName = errors.New("invalid host name")
	// ErrInvalidEngineCommand is returned when an EngineCommand value is whitespace-only.
	ErrInvalidEngineCommand = errors.New("invalid engine command")
	// ErrInvalidDuration is returned when a Duration value does not parse or is not positive.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrInvalidMonitorAddr is returned when a MonitorAddr value is not a usable host:port.
	ErrInvalidMonitorAddr = errors.New("invalid monitor address")
	// ErrInvalidMaxPollCycles is returned when a poll budget is not positive.
	ErrInvalidMaxPollCycles = errors.New("invalid max poll cycles")
	// ErrInvalidPortRange is the sentinel error wrapped by InvalidPortRangeError.
	ErrInvalidPortRange = errors.New("invalid port range")
	// ErrInvalidServerConfig is the sentinel error wrapped by InvalidServerConfigError.
	ErrInvalidServerConfig = errors.New("invalid server config")
	// ErrInvalidEngineConfig is the sentinel error wrapped by InvalidEngineConfigError.
	ErrInvalidEngineConfig = errors.New("invalid engine config")
	// ErrInvalidReadinessConfig is the sentinel error wrapped by InvalidReadinessConfigError.
	ErrInvalidReadinessConfig = errors.New("invalid readiness config")
	// ErrInvalidMonitorConfig is the sentinel error wrapped by InvalidMonitorConfigError.
	ErrInvalidMonitorConfig = errors.New("invalid monitor config")
	// ErrInvalidLogConfig is the sentinel error wrapped by InvalidLogConfigError.
	ErrInvalidLogConfig = errors.New("invalid log config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// LogLevel selects the minimum severity of diagnostic output.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	// It wraps ErrInvalidLogLevel for errors.Is() compatibility.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// HostName is the interface name or address the bridge listener binds.
	// A valid host must be non-empty and not whitespace-only.
	HostName string

	// InvalidHostNameError is returned when a HostName value is empty or
	// whitespace-only. It wraps ErrInvalidHostName for errors.Is().
	InvalidHostNameError struct {
		Value HostName
	}

	// EngineCommand is the command line that launches the engine process.
	// A valid command must be non-empty and not whitespace-only.
	EngineCommand string

	// InvalidEngineCommandError is returned when an EngineCommand value is
	// empty or whitespace-only. It wraps ErrInvalidEngineCommand for errors.Is().
	InvalidEngineCommandError struct {
		Value EngineCommand
	}

	// Duration is a Go duration literal carried as a string in the
	// configuration file, e.g. "1s" or "500ms". A valid Duration parses
	// via time.ParseDuration and is strictly positive.
	Duration string

	// InvalidDurationError is returned when a Duration value does not
	// parse or is not positive. It wraps ErrInvalidDuration for errors.Is().
	InvalidDurationError struct {
		Value Duration
	}

	// MonitorAddr is the host:port the monitor endpoint listens on.
	// The host part may be empty (bind all interfaces); the port part
	// must be a TCP port in the range 1-65535.
	MonitorAddr string

	// InvalidMonitorAddrError is returned when a MonitorAddr value is not
	// a usable host:port. It wraps ErrInvalidMonitorAddr for errors.Is().
	InvalidMonitorAddrError struct {
		Value MonitorAddr
	}

	// InvalidMaxPollCyclesError is returned when a readiness poll budget
	// is zero or negative. It wraps ErrInvalidMaxPollCycles for errors.Is().
	InvalidMaxPollCyclesError struct {
		Value int
	}

	// PortRangeConfig is the half-open interval [Lo, Hi) probed for a free
	// listen port. Both bounds must be explicit ports; the auto-select
	// zero value has no meaning in a range.
	PortRangeConfig struct {
		// Lo is the first port probed.
		Lo types.ListenPort `json:"lo" mapstructure:"lo"`
		// Hi is the first port past the range.
		Hi types.ListenPort `json:"hi" mapstructure:"hi"`
	}

	// InvalidPortRangeError is returned when a PortRangeConfig has invalid
	// bounds. It wraps ErrInvalidPortRange for errors.Is() compatibility
	// and collects field-level validation errors.
	InvalidPortRangeError struct {
		FieldErrors []error
	}

	// InvalidServerConfigError is returned when a ServerConfig has invalid fields.
	// It wraps ErrInvalidServerConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidServerConfigError struct {
		FieldErrors []error
	}

	// InvalidEngineConfigError is returned when an EngineConfig has invalid fields.
	// It wraps ErrInvalidEngineConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidEngineConfigError struct {
		FieldErrors []error
	}

	// InvalidReadinessConfigError is returned when a ReadinessConfig has invalid fields.
	// It wraps ErrInvalidReadinessConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidReadinessConfigError struct {
		FieldErrors []error
	}

	// InvalidMonitorConfigError is returned when a MonitorConfig has invalid fields.
	// It wraps ErrInvalidMonitorConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidMonitorConfigError struct {
		FieldErrors []error
	}

	// InvalidLogConfigError is returned when a LogConfig has invalid fields.
	// It wraps ErrInvalidLogConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidLogConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// ServerConfig configures the TCP listener that bridges peers to the engine.
	ServerConfig struct {
		// Host is the interface the listener binds.
		Host HostName `json:"host" mapstructure:"host"`
		// PortRange is the interval probed for a free listen port.
		PortRange PortRangeConfig `json:"port_range" mapstructure:"port_range"`
		// ReplyToPeer writes each response back to the session that produced it.
		ReplyToPeer bool `json:"reply_to_peer" mapstructure:"reply_to_peer"`
	}

	// EngineConfig configures the engine subprocess.
	EngineConfig struct {
		// Command launches the engine; the listen port is appended as "-s <port>".
		Command EngineCommand `json:"command" mapstructure:"command"`
	}

	// ReadinessConfig configures the startup handshake budget.
	ReadinessConfig struct {
		// PollInterval is the pause between readiness poll cycles.
		PollInterval Duration `json:"poll_interval" mapstructure:"poll_interval"`
		// MaxPollCycles is the poll budget before startup is declared failed.
		MaxPollCycles int `json:"max_poll_cycles" mapstructure:"max_poll_cycles"`
	}

	// MonitorConfig configures the HTTP endpoint serving /healthz, /statusz
	// and /metrics.
	MonitorConfig struct {
		// Enabled starts the monitor alongside the bridge.
		Enabled bool `json:"enabled" mapstructure:"enabled"`
		// Addr is the host:port the monitor listens on.
		Addr MonitorAddr `json:"addr" mapstructure:"addr"`
	}

	// LogConfig configures diagnostic output.
	LogConfig struct {
		// Level is the minimum severity that gets logged.
		Level LogLevel `json:"level" mapstructure:"level"`
	}

	// Config holds the application configuration.
	Config struct {
		// Server configures the bridge listener.
		Server ServerConfig `json:"server" mapstructure:"server"`
		// Engine configures the engine subprocess.
		Engine EngineConfig `json:"engine" mapstructure:"engine"`
		// Readiness configures the startup handshake budget.
		Readiness ReadinessConfig `json:"readiness" mapstructure:"readiness"`
		// Monitor configures the HTTP monitor endpoint.
		Monitor MonitorConfig `json:"monitor" mapstructure:"monitor"`
		// Log configures diagnostic output.
		Log LogConfig `json:"log" mapstructure:"log"`
	}
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined levels,
// and a list of validation errors if it is not.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// String returns the string representation of the HostName.
func (h HostName) String() string { return string(h) }

// IsValid returns whether the HostName is valid.
// A valid host must be non-empty and not whitespace-only.
func (h HostName) IsValid() (bool, []error) {
	if strings.TrimSpace(string(h)) == "" {
		return false, []error{&InvalidHostNameError{Value: h}}
	}
	return true, nil
}

// Error implements the error interface for InvalidHostNameError.
func (e *InvalidHostNameError) Error() string {
	return fmt.Sprintf("invalid host name %q: must be non-empty", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidHostNameError) Unwrap() error { return ErrInvalidHostName }

// String returns the string representation of the EngineCommand.
func (c EngineCommand) String() string { return string(c) }

// IsValid returns whether the EngineCommand is valid.
// A valid command must be non-empty and not whitespace-only.
func (c EngineCommand) IsValid() (bool, []error) {
	if strings.TrimSpace(string(c)) == "" {
		return false, []error{&InvalidEngineCommandError{Value: c}}
	}
	return true, nil
}

// Error implements the error interface for InvalidEngineCommandError.
func (e *InvalidEngineCommandError) Error() string {
	return fmt.Sprintf("invalid engine command %q: must be non-empty", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidEngineCommandError) Unwrap() error { return ErrInvalidEngineCommand }

// String returns the string representation of the Duration.
func (d Duration) String() string { return string(d) }

// AsDuration parses the Duration into a time.Duration.
func (d Duration) AsDuration() (time.Duration, error) {
	parsed, err := time.ParseDuration(string(d))
	if err != nil {
		return 0, &InvalidDurationError{Value: d}
	}
	return parsed, nil
}

// IsValid returns whether the Duration parses and is strictly positive.
func (d Duration) IsValid() (bool, []error) {
	parsed, err := time.ParseDuration(string(d))
	if err != nil || parsed <= 0 {
		return false, []error{&InvalidDurationError{Value: d}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDurationError.
func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid duration %q: must be a positive Go duration such as \"1s\" or \"500ms\"", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidDurationError) Unwrap() error { return ErrInvalidDuration }

// String returns the string representation of the MonitorAddr.
func (a MonitorAddr) String() string { return string(a) }

// IsValid returns whether the MonitorAddr is a usable host:port.
// The host part may be empty; the port part must be a TCP port in 1-65535.
func (a MonitorAddr) IsValid() (bool, []error) {
	_, portStr, err := net.SplitHostPort(string(a))
	if err != nil {
		return false, []error{&InvalidMonitorAddrError{Value: a}}
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return false, []error{&InvalidMonitorAddrError{Value: a}}
	}
	if err := types.ListenPort(port).Validate(); err != nil {
		return false, []error{&InvalidMonitorAddrError{Value: a}}
	}
	return true, nil
}

// Error implements the error interface for InvalidMonitorAddrError.
func (e *InvalidMonitorAddrError) Error() string {
	return fmt.Sprintf("invalid monitor address %q: must be host:port with a port in 1-65535", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidMonitorAddrError) Unwrap() error { return ErrInvalidMonitorAddr }

// Error implements the error interface for InvalidMaxPollCyclesError.
func (e *InvalidMaxPollCyclesError) Error() string {
	return fmt.Sprintf("invalid max poll cycles %d: must be positive", e.Value)
}

// Unwrap returns the sentinel error for errors.Is() compatibility.
func (e *InvalidMaxPollCyclesError) Unwrap() error { return ErrInvalidMaxPollCycles }

// String renders the range in half-open interval notation, e.g. "[64000,64100)".
func (r PortRangeConfig) String() string {
	return fmt.Sprintf("[%d,%d)", r.Lo, r.Hi)
}

// IsValid returns whether the PortRangeConfig has usable bounds: both in
// 1-65535 and Hi not below Lo.
func (r PortRangeConfig) IsValid() (bool, []error) {
	var errs []error
	if err := r.Lo.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := r.Hi.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 && r.Hi < r.Lo {
		errs = append(errs, fmt.Errorf("port range %s has hi < lo", r))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidPortRangeError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidPortRangeError.
func (e *InvalidPortRangeError) Error() string {
	return fmt.Sprintf("invalid port range: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidPortRange for errors.Is() compatibility.
func (e *InvalidPortRangeError) Unwrap() error { return ErrInvalidPortRange }

// IsValid returns whether the ServerConfig has valid fields.
// It delegates to Host.IsValid() and PortRange.IsValid(); ReplyToPeer
// is a bool and needs no validation.
func (c ServerConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Host.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.PortRange.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidServerConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidServerConfigError.
func (e *InvalidServerConfigError) Error() string {
	return fmt.Sprintf("invalid server config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidServerConfig for errors.Is() compatibility.
func (e *InvalidServerConfigError) Unwrap() error { return ErrInvalidServerConfig }

// IsValid returns whether the EngineConfig has valid fields.
// It delegates to Command.IsValid().
func (c EngineConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Command.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidEngineConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidEngineConfigError.
func (e *InvalidEngineConfigError) Error() string {
	return fmt.Sprintf("invalid engine config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidEngineConfig for errors.Is() compatibility.
func (e *InvalidEngineConfigError) Unwrap() error { return ErrInvalidEngineConfig }

// IsValid returns whether the ReadinessConfig has valid fields.
// It delegates to PollInterval.IsValid() and checks that MaxPollCycles
// is positive.
func (c ReadinessConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.PollInterval.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if c.MaxPollCycles <= 0 {
		errs = append(errs, &InvalidMaxPollCyclesError{Value: c.MaxPollCycles})
	}
	if len(errs) > 0 {
		return false, []error{&InvalidReadinessConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidReadinessConfigError.
func (e *InvalidReadinessConfigError) Error() string {
	return fmt.Sprintf("invalid readiness config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidReadinessConfig for errors.Is() compatibility.
func (e *InvalidReadinessConfigError) Unwrap() error { return ErrInvalidReadinessConfig }

// IsValid returns whether the MonitorConfig has valid fields.
// Addr is validated whenever the monitor is enabled or an address is
// set; a disabled monitor with no address is valid.
func (c MonitorConfig) IsValid() (bool, []error) {
	var errs []error
	if c.Enabled || c.Addr != "" {
		if valid, fieldErrs := c.Addr.IsValid(); !valid {
			errs = append(errs, fieldErrs...)
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidMonitorConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidMonitorConfigError.
func (e *InvalidMonitorConfigError) Error() string {
	return fmt.Sprintf("invalid monitor config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidMonitorConfig for errors.Is() compatibility.
func (e *InvalidMonitorConfigError) Unwrap() error { return ErrInvalidMonitorConfig }

// IsValid returns whether the LogConfig has valid fields.
// It delegates to Level.IsValid().
func (c LogConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Level.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidLogConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidLogConfigError.
func (e *InvalidLogConfigError) Error() string {
	return fmt.Sprintf("invalid log config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLogConfig for errors.Is() compatibility.
func (e *InvalidLogConfigError) Unwrap() error { return ErrInvalidLogConfig }

// IsValid returns whether the Config has valid fields.
// It delegates to Server.IsValid(), Engine.IsValid(), Readiness.IsValid(),
// Monitor.IsValid(), and Log.IsValid().
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Server.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Engine.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Readiness.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Monitor.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Log.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// BridgeConfig converts the validated configuration into the bridge
// server's own Config. Fields the file does not cover (handler, ready
// function, timeouts, logger, clock) keep the bridge's defaults.
func (c *Config) BridgeConfig() (maxima.Config, error) {
	poll, err := c.Readiness.PollInterval.AsDuration()
	if err != nil {
		return maxima.Config{}, fmt.Errorf("readiness.poll_interval: %w", err)
	}
	return maxima.Config{
		Host: string(c.Server.Host),
		Ports: maxima.PortRange{
			Lo: int(c.Server.PortRange.Lo),
			Hi: int(c.Server.PortRange.Hi),
		},
		Command:       string(c.Engine.Command),
		ReplyToPeer:   c.Server.ReplyToPeer,
		PollInterval:  poll,
		MaxPollCycles: c.Readiness.MaxPollCycles,
	}, nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "localhost",
			PortRange:   PortRangeConfig{Lo: 64000, Hi: 64100},
			ReplyToPeer: false,
		},
		Engine: EngineConfig{
			Command: "maxima",
		},
		Readiness: ReadinessConfig{
			PollInterval:  "1s",
			MaxPollCycles: 10,
		},
		Monitor: MonitorConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9390",
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
	}
}
