// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil passes through", func(t *testing.T) {
		t.Parallel()
		if err := FormatError(nil, "config.cue"); err != nil {
			t.Errorf("FormatError(nil) = %v, want nil", err)
		}
	})

	t.Run("non-CUE error gets the file prefix", func(t *testing.T) {
		t.Parallel()
		err := FormatError(errors.New("read failed"), "config.cue")
		if err == nil {
			t.Fatal("FormatError() = nil, want error")
		}
		for _, part := range []string{"config.cue", "read failed"} {
			if !strings.Contains(err.Error(), part) {
				t.Errorf("Error() = %q, missing %q", err.Error(), part)
			}
		}
	})
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path []string
		want string
	}{
		{"empty path", []string{}, ""},
		{"single field", []string{"host"}, "host"},
		{"nested fields", []string{"server", "port_range"}, "server.port_range"},
		{"list index", []string{"overrides", "0", "value"}, "overrides[0].value"},
		{"repeated indices", []string{"overrides", "0", "entries", "2", "value"}, "overrides[0].entries[2].value"},
		{"trailing index", []string{"items", "0", "values", "1"}, "items[0].values[1]"},
		{"leading digits stay a field", []string{"0", "value"}, "0.value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatPath(tt.path); got != tt.want {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		max     int64
		wantErr bool
	}{
		{"empty", 0, 100, false},
		{"below the cap", 11, 100, false},
		{"exactly the cap", 100, 100, false},
		{"one past the cap", 101, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckFileSize(make([]byte, tt.size), tt.max, "config.cue")
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("CheckFileSize() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("CheckFileSize() = nil, want error")
			}
			want := "config.cue: file size 101 bytes exceeds maximum 100 bytes"
			if err.Error() != want {
				t.Errorf("Error() = %q, want %q", err.Error(), want)
			}
		})
	}
}
