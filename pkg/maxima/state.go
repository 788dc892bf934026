// SPDX-License-Identifier: MPL-2.0

package maxima

// ServerState represents the lifecycle state of a Server.
//
// Transitions (all performed through CAS on an atomic value):
//
//	Stopped ──Start()──→ Starting ──listener bound──→ Listening
//	   ↑                     │                            │
//	   └──startup failure────┘          Stop()──→ Stopping┘
//	   ↑                                            │
//	   └────────────────────────────────────────────┘
type ServerState int32

const (
	// StateStopped means the server is not running. This is both the
	// initial state and the state after Stop() or a failed Start().
	StateStopped ServerState = iota

	// StateStarting means Start() is binding the listener and launching
	// the engine.
	StateStarting

	// StateListening means the accept loop is running and sessions are
	// being served.
	StateListening

	// StateStopping means Stop() is tearing the server down.
	StateStopping
)

// String returns a human-readable state name.
func (s ServerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// EngineState represents the readiness of the spawned engine process.
//
// Transitions: NotStarted → Init at launch; Init → Ready when the
// readiness predicate matches a queued response; Init → Failed when the
// poll-cycle budget is exhausted first.
type EngineState int32

const (
	// EngineNotStarted means no engine process has been launched.
	EngineNotStarted EngineState = iota

	// EngineInit means the engine process is running but has not yet
	// emitted its ready marker.
	EngineInit

	// EngineReady means the ready marker was observed; the engine accepts
	// commands.
	EngineReady

	// EngineFailed means the engine did not become ready within the
	// poll-cycle budget.
	EngineFailed
)

// String returns a human-readable state name.
func (s EngineState) String() string {
	switch s {
	case EngineNotStarted:
		return "not started"
	case EngineInit:
		return "initializing"
	case EngineReady:
		return "ready"
	case EngineFailed:
		return "failed"
	default:
		return "unknown"
	}
}
