// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"testing"
)

var _ error = (*ActionableError)(nil)

func TestActionableError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  ActionableError
		want string
	}{
		{
			name: "operation only",
			err:  ActionableError{Operation: "start engine"},
			want: "failed to start engine",
		},
		{
			name: "with resource",
			err:  ActionableError{Operation: "start engine", Resource: "maxima"},
			want: "failed to start engine: maxima",
		},
		{
			name: "with cause",
			err: ActionableError{
				Operation: "load configuration",
				Cause:     errors.New("syntax error at line 5"),
			},
			want: "failed to load configuration: syntax error at line 5",
		},
		{
			name: "resource and cause",
			err: ActionableError{
				Operation: "load configuration",
				Resource:  "~/.config/maxbridge/config.cue",
				Cause:     errors.New("file not found"),
			},
			want: "failed to load configuration: ~/.config/maxbridge/config.cue: file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ActionableError{Operation: "relay command", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}

	bare := &ActionableError{Operation: "relay command"}
	if bare.Unwrap() != nil {
		t.Errorf("Unwrap() without cause = %v, want nil", bare.Unwrap())
	}
}

func TestActionableError_Format(t *testing.T) {
	tests := []struct {
		name    string
		err     ActionableError
		verbose bool
		want    string
	}{
		{
			name:    "plain message",
			err:     ActionableError{Operation: "load configuration"},
			verbose: false,
			want:    "failed to load configuration",
		},
		{
			name: "suggestions are bulleted",
			err: ActionableError{
				Operation:   "start engine",
				Suggestions: []string{"Install Maxima", "Set engine.command in your config"},
			},
			verbose: false,
			want: "failed to start engine\n" +
				"\n  • Install Maxima" +
				"\n  • Set engine.command in your config",
		},
		{
			name: "cause stays inline without verbose",
			err: ActionableError{
				Operation: "load configuration",
				Cause:     errors.New("syntax error"),
			},
			verbose: false,
			want:    "failed to load configuration: syntax error",
		},
		{
			name: "verbose appends the chain",
			err: ActionableError{
				Operation: "load configuration",
				Cause:     errors.New("syntax error"),
			},
			verbose: true,
			want: "failed to load configuration: syntax error" +
				"\n\nError chain:" +
				"\n  1. syntax error",
		},
		{
			name: "verbose walks nested causes",
			err: ActionableError{
				Operation: "start server",
				Cause: &ActionableError{
					Operation: "bind listener",
					Cause:     errors.New("address already in use"),
				},
			},
			verbose: true,
			want: "failed to start server: failed to bind listener: address already in use" +
				"\n\nError chain:" +
				"\n  1. failed to bind listener: address already in use" +
				"\n  2. address already in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Format(tt.verbose); got != tt.want {
				t.Errorf("Format(%v) = %q, want %q", tt.verbose, got, tt.want)
			}
		})
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Run("requires an operation", func(t *testing.T) {
		if got := NewErrorContext().WithResource("64000-64100").Build(); got != nil {
			t.Errorf("Build() without operation = %v, want nil", got)
		}
		if err := NewErrorContext().BuildError(); err != nil {
			t.Errorf("BuildError() without operation = %v, want nil", err)
		}
	})

	t.Run("carries every field", func(t *testing.T) {
		cause := errors.New("parse error")
		got := NewErrorContext().
			WithOperation("load configuration").
			WithResource("/etc/maxbridge/config.cue").
			WithSuggestion("Check the CUE syntax").
			WithSuggestion("Regenerate with: maxbridge config init").
			Wrap(cause).
			Build()

		if got == nil {
			t.Fatal("Build() = nil, want error")
		}
		if got.Operation != "load configuration" {
			t.Errorf("Operation = %q", got.Operation)
		}
		if got.Resource != "/etc/maxbridge/config.cue" {
			t.Errorf("Resource = %q", got.Resource)
		}
		if len(got.Suggestions) != 2 || got.Suggestions[1] != "Regenerate with: maxbridge config init" {
			t.Errorf("Suggestions = %q", got.Suggestions)
		}
		if !errors.Is(got, cause) {
			t.Error("built error does not wrap the cause")
		}
	})

	t.Run("BuildError returns the concrete type", func(t *testing.T) {
		err := NewErrorContext().WithOperation("probe port").BuildError()
		if err == nil {
			t.Fatal("BuildError() = nil, want error")
		}
		if _, ok := errors.AsType[*ActionableError](err); !ok {
			t.Errorf("BuildError() type = %T, want *ActionableError", err)
		}
	})
}

func TestErrorContext_Rebuild(t *testing.T) {
	ctx := NewErrorContext().WithOperation("spawn engine").WithResource("maxima")

	first := ctx.Wrap(errors.New("exit status 1")).Build()
	second := ctx.Wrap(errors.New("signal: killed")).Build()

	if first.Cause.Error() == second.Cause.Error() {
		t.Error("rebuild kept the earlier cause")
	}
	if first.Operation != second.Operation || first.Resource != second.Resource {
		t.Error("rebuild dropped the shared fields")
	}
}
