// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Config holds the immutable configuration for a Server. The zero value
// of every field is replaced with its default by New.
type Config struct {
	// Host is the interface the listener binds. Default: "localhost".
	Host string

	// Ports is the range probed for a free listen port. Default:
	// [64000,64100).
	Ports PortRange

	// Command launches the engine. It is split with shell quoting rules
	// and the listen port is appended as "-s <port>". Default: "maxima".
	Command string

	// Handler produces the response recorded for each received line.
	// Default: EchoHandler.
	Handler Handler

	// Ready reports whether a recorded response marks the engine as
	// ready. Default: DefaultReadyFunc.
	Ready ReadyFunc

	// ReplyToPeer writes each handler response back to the session that
	// produced it. Off by default: peers normally talk one way and
	// consumers read the queue instead.
	ReplyToPeer bool

	// PollInterval is the pause between readiness poll cycles.
	// Default: 1s.
	PollInterval time.Duration

	// MaxPollCycles is the poll budget before the engine is declared
	// failed. Default: 10.
	MaxPollCycles int

	// AcceptTimeout is the accept deadline that keeps the listener loop
	// responsive to shutdown. Default: 1s.
	AcceptTimeout time.Duration

	// ReadTimeout is the per-read deadline on session sockets. A partial
	// line buffered when it expires is flushed as a complete frame.
	// Default: 1s.
	ReadTimeout time.Duration

	// StopTimeout bounds the shutdown join and the engine's termination
	// grace period. Default: 2s.
	StopTimeout time.Duration

	// SendBuffer is the outbound queue size per session. Default: 16.
	SendBuffer int

	// Logger receives lifecycle and session events. Default: a stderr
	// logger prefixed "maxima".
	Logger *log.Logger

	// Clock is the time source for the readiness monitor. Default: the
	// system clock.
	Clock Clock
}

// DefaultConfig returns the stock configuration: a localhost listener
// probing [64000,64100) and launching "maxima".
func DefaultConfig() Config {
	return Config{
		Host:          "localhost",
		Ports:         DefaultPortRange,
		Command:       "maxima",
		Handler:       EchoHandler,
		Ready:         DefaultReadyFunc,
		PollInterval:  time.Second,
		MaxPollCycles: 10,
		AcceptTimeout: time.Second,
		ReadTimeout:   time.Second,
		StopTimeout:   2 * time.Second,
		SendBuffer:    16,
	}
}

// withDefaults fills zero fields with their defaults.
func (cfg Config) withDefaults() Config {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Ports == (PortRange{}) {
		cfg.Ports = DefaultPortRange
	}
	if cfg.Command == "" {
		cfg.Command = "maxima"
	}
	if cfg.Handler == nil {
		cfg.Handler = EchoHandler
	}
	if cfg.Ready == nil {
		cfg.Ready = DefaultReadyFunc
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxPollCycles <= 0 {
		cfg.MaxPollCycles = 10
	}
	if cfg.AcceptTimeout <= 0 {
		cfg.AcceptTimeout = time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "maxima",
		})
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	return cfg
}
