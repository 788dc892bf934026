// SPDX-License-Identifier: MPL-2.0

package maxima

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		command string
		want    []string
		wantErr bool
	}{
		{"bare", "maxima", []string{"maxima"}, false},
		{"flags", "maxima -q --very-quiet", []string{"maxima", "-q", "--very-quiet"}, false},
		{"quoted", `env "OPTS=-q -n" maxima`, []string{"env", "OPTS=-q -n", "maxima"}, false},
		{"single quotes", `sh -c 'sleep 30'`, []string{"sh", "-c", "sleep 30"}, false},
		{"empty", "", nil, true},
		{"blank", "   ", nil, true},
		{"unterminated quote", `maxima 'oops`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := splitCommand(tt.command)
			if (err != nil) != tt.wantErr {
				t.Fatalf("splitCommand(%q) error = %v, wantErr %v", tt.command, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("splitCommand(%q) = %v, want %v", tt.command, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitCommand(%q)[%d] = %q, want %q", tt.command, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLookupExecutableNotFound(t *testing.T) {
	t.Parallel()

	_, err := lookupExecutable("definitely-not-a-real-binary-a8f3")

	var notFound *ExecutableNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("lookupExecutable() error = %v, want *ExecutableNotFoundError", err)
	}
	if notFound.Command != "definitely-not-a-real-binary-a8f3" {
		t.Errorf("Command = %q", notFound.Command)
	}
}

func TestLookupExecutableFound(t *testing.T) {
	t.Parallel()

	path, err := lookupExecutable("sh -c 'exit 0'")
	if err != nil {
		t.Fatalf("lookupExecutable() error = %v", err)
	}
	if path == "" {
		t.Error("lookupExecutable() returned empty path")
	}
}

func TestEngineExitObserved(t *testing.T) {
	t.Parallel()

	e, err := launchEngine(`sh -c 'exit 3'`, 0, log.New(io.Discard))
	if err != nil {
		t.Fatalf("launchEngine: %v", err)
	}

	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine exit not observed")
	}

	var exitErr *exec.ExitError
	if !errors.As(e.exitError(), &exitErr) {
		t.Fatalf("exitError() = %v, want *exec.ExitError", e.exitError())
	}
	if code := exitErr.ExitCode(); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if !e.exited() {
		t.Error("exited() = false after done closed")
	}
}

func TestEngineTerminate(t *testing.T) {
	t.Parallel()

	e, err := launchEngine(`sh -c 'sleep 30'`, 0, log.New(io.Discard))
	if err != nil {
		t.Fatalf("launchEngine: %v", err)
	}

	start := time.Now()
	e.terminate(2 * time.Second)

	if !e.exited() {
		t.Error("exited() = false after terminate")
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("terminate took %s", elapsed)
	}

	// Terminating an already-dead engine returns immediately.
	e.terminate(time.Second)
}

func TestLaunchEngineAppendsSocketArgs(t *testing.T) {
	t.Parallel()

	// The appended args land in $0 and $1 of the -c script, so the stub
	// echoes back the socket flag a real engine would parse.
	e, err := launchEngine(`sh -c 'echo "argv:$0 $1"'`, 64023, log.New(io.Discard))
	if err != nil {
		t.Fatalf("launchEngine: %v", err)
	}

	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not exit")
	}

	found := false
	for _, line := range e.tailLines() {
		if line == "argv:-s 64023" {
			found = true
		}
	}
	if !found {
		t.Errorf("tail = %v, want it to contain %q", e.tailLines(), "argv:-s 64023")
	}
}

func TestEngineOutputCaptured(t *testing.T) {
	t.Parallel()

	e, err := launchEngine(`sh -c 'echo "Maxima 5.47.0"; echo "using Lisp SBCL 2.2.9" >&2'`, 0, log.New(io.Discard))
	if err != nil {
		t.Fatalf("launchEngine: %v", err)
	}

	select {
	case <-e.done:
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not exit")
	}

	tail := e.tailLines()
	found := map[string]bool{}
	for _, line := range tail {
		found[line] = true
	}
	if !found["Maxima 5.47.0"] {
		t.Errorf("stdout line missing from tail %v", tail)
	}
	if !found["using Lisp SBCL 2.2.9"] {
		t.Errorf("stderr line missing from tail %v", tail)
	}
}

func TestLineWriterSplitsAndRotates(t *testing.T) {
	t.Parallel()

	tail := &tailBuffer{limit: 4}
	w := &lineWriter{tail: tail, stream: "stdout", logger: log.New(io.Discard)}

	// Chunks arrive mid-line; frames must reassemble across writes.
	for _, chunk := range []string{"first", " line\r\nsecond line\nthi", "rd line\n"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	got := tail.snapshot()
	want := []string{"first line", "second line", "third line"}
	if len(got) != len(want) {
		t.Fatalf("tail = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tail[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Overflow evicts the oldest lines.
	for i := 0; i < 6; i++ {
		fmt.Fprintf(w, "extra-%d\n", i)
	}
	got = tail.snapshot()
	if len(got) != 4 {
		t.Fatalf("tail has %d lines, want 4", len(got))
	}
	if got[0] != "extra-2" || got[3] != "extra-5" {
		t.Errorf("tail window = %v, want extra-2..extra-5", got)
	}

	// An unterminated trailing line surfaces on flush.
	if _, err := w.Write([]byte("no newline")); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.flush()
	got = tail.snapshot()
	if got[len(got)-1] != "no newline" {
		t.Errorf("last line = %q, want %q", got[len(got)-1], "no newline")
	}
}
