// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/exp/slices"
	"mvdan.cc/sh/v3/shell"

	"maxbridge/pkg/platform"
)

const (
	// engineTailLines bounds the window of recent engine output kept for
	// diagnostics.
	engineTailLines = 200

	// engineWaitDelay bounds how long Wait blocks on output pipes after
	// the process exits, in case the engine handed them to a child.
	engineWaitDelay = 5 * time.Second
)

// engineProcess supervises one launched engine instance. Stdout and
// stderr drain into a bounded tail window so the engine can never block
// on a full pipe, and exit is watched without ever feeding back into the
// readiness handshake: a dead engine simply never produces the marker.
type engineProcess struct {
	cmd    *exec.Cmd
	pid    int
	logger *log.Logger

	tail   *tailBuffer
	stdout *lineWriter
	stderr *lineWriter

	mu      sync.Mutex
	exitErr error

	done chan struct{}
}

// splitCommand splits a launch command with shell quoting rules, so
// configured commands like `env MAXIMA_OPTS="-q" maxima` behave the way
// they would in a terminal.
func splitCommand(command string) ([]string, error) {
	args, err := shell.Fields(command, nil)
	if err != nil {
		return nil, fmt.Errorf("maxima: parsing command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("maxima: command %q is empty", command)
	}
	return args, nil
}

// lookupExecutable resolves the first word of command on PATH. Inside a
// Flatpak or Snap sandbox the engine lives on the host, so the sandbox's
// PATH says nothing and the check is skipped.
func lookupExecutable(command string) (string, error) {
	args, err := splitCommand(command)
	if err != nil {
		return "", err
	}
	if platform.IsInSandbox() {
		return args[0], nil
	}
	path, err := exec.LookPath(args[0])
	if err != nil {
		return "", &ExecutableNotFoundError{Command: args[0], Err: err}
	}
	return path, nil
}

// launchEngine starts the engine in socket mode, telling it to connect
// back to port. The launch is fire and forget: failures after Start are
// observed by the exit watcher, not returned here.
func launchEngine(command string, port int, logger *log.Logger) (*engineProcess, error) {
	args, err := splitCommand(command)
	if err != nil {
		return nil, err
	}
	args = append(args, "-s", strconv.Itoa(port))

	// A sandboxed bridge spawns the engine on the host.
	if prefix := platform.HostSpawnPrefix(); len(prefix) > 0 {
		args = append(append([]string{}, prefix...), args...)
	}

	tail := &tailBuffer{limit: engineTailLines}
	stdout := &lineWriter{tail: tail, stream: "stdout", logger: logger}
	stderr := &lineWriter{tail: tail, stream: "stderr", logger: logger}

	cmd := exec.Command(args[0], args[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = engineWaitDelay
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("maxima: starting %q: %w", args[0], err)
	}

	e := &engineProcess{
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		logger: logger,
		tail:   tail,
		stdout: stdout,
		stderr: stderr,
		done:   make(chan struct{}),
	}
	go e.watch()

	logger.Info("engine launched", "pid", e.pid, "command", strings.Join(args, " "))
	return e, nil
}

// tailLines returns a copy of the recent output window.
func (e *engineProcess) tailLines() []string {
	return e.tail.snapshot()
}

// watch reaps the process and records how it went. Wait also joins the
// output copiers, so the tail window is complete once done closes.
func (e *engineProcess) watch() {
	err := e.cmd.Wait()
	e.stdout.flush()
	e.stderr.flush()

	e.mu.Lock()
	e.exitErr = err
	e.mu.Unlock()
	close(e.done)

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		e.logger.Info("engine exited", "pid", e.pid, "code", 0)
	case errors.As(err, &exitErr):
		e.logger.Warn("engine exited", "pid", e.pid, "code", exitErr.ExitCode())
	default:
		e.logger.Warn("engine wait failed", "pid", e.pid, "error", err)
	}
}

// exited reports whether the process has been reaped.
func (e *engineProcess) exited() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// exitError returns the Wait error, or nil while the process runs.
func (e *engineProcess) exitError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitErr
}

// terminate asks the engine to exit and escalates to SIGKILL once the
// grace period runs out. It returns after the process has been reaped.
func (e *engineProcess) terminate(grace time.Duration) {
	if e.exited() {
		return
	}
	if err := e.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		e.logger.Debug("engine signal failed", "pid", e.pid, "error", err)
	}
	select {
	case <-e.done:
	case <-time.After(grace):
		e.logger.Warn("engine ignored SIGTERM, killing", "pid", e.pid)
		_ = e.cmd.Process.Kill()
		<-e.done
	}
}

// tailBuffer is a bounded window of recent output lines shared by both
// streams.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	lines []string
}

func (b *tailBuffer) append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) >= b.limit {
		copy(b.lines, b.lines[1:])
		b.lines[len(b.lines)-1] = line
	} else {
		b.lines = append(b.lines, line)
	}
}

func (b *tailBuffer) snapshot() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.lines)
}

// lineWriter splits a process output stream into lines for the tail
// window, carrying partial lines between writes. Each instance is written
// to by a single copier goroutine.
type lineWriter struct {
	tail    *tailBuffer
	stream  string
	logger  *log.Logger
	pending []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(w.pending[:i])
		n := copy(w.pending, w.pending[i+1:])
		w.pending = w.pending[:n]
	}
	return len(p), nil
}

// flush emits any unterminated final line. Call only after the copier has
// finished writing.
func (w *lineWriter) flush() {
	if len(w.pending) == 0 {
		return
	}
	w.emit(w.pending)
	w.pending = w.pending[:0]
}

func (w *lineWriter) emit(raw []byte) {
	line := strings.TrimRight(string(raw), "\r")
	w.tail.append(line)
	w.logger.Debug("engine output", "stream", w.stream, "line", line)
}
