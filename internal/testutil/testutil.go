// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"io"
	"os"
	"testing"
)

// Stopper is anything with a Stop method returning an error, which in
// this codebase means the bridge server.
type Stopper interface {
	Stop() error
}

// MustChdir changes the working directory to dir for the duration of the
// test, failing it immediately if the change does not take. The original
// directory is restored during cleanup.
func MustChdir(t testing.TB, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getting working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("changing directory to %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Errorf("restoring working directory %s: %v", wd, err)
		}
	})
}

// MustSetenv sets key to value for the duration of the test, restoring
// the previous value (or unsetting the variable) during cleanup.
func MustSetenv(t testing.TB, key, value string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("setting %s: %v", key, err)
	}
	t.Cleanup(func() { restoreEnv(t, key, prev, had) })
}

// MustUnsetenv clears key for the duration of the test, restoring the
// previous value during cleanup if there was one.
func MustUnsetenv(t testing.TB, key string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unsetting %s: %v", key, err)
	}
	t.Cleanup(func() { restoreEnv(t, key, prev, had) })
}

func restoreEnv(t testing.TB, key, prev string, had bool) {
	t.Helper()
	var err error
	if had {
		err = os.Setenv(key, prev)
	} else {
		err = os.Unsetenv(key)
	}
	if err != nil {
		t.Errorf("restoring %s: %v", key, err)
	}
}

// MustClose closes c right away, failing the test on error. Use it when
// the close itself is part of the behavior under test; for teardown use
// CloseOnCleanup.
func MustClose(t testing.TB, c io.Closer) {
	t.Helper()
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

// CloseOnCleanup closes c when the test finishes, logging any close error.
func CloseOnCleanup(t testing.TB, c io.Closer) {
	t.Helper()
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Logf("close during cleanup: %v", err)
		}
	})
}

// StopOnCleanup stops s when the test finishes, logging any stop error.
func StopOnCleanup(t testing.TB, s Stopper) {
	t.Helper()
	t.Cleanup(func() {
		if err := s.Stop(); err != nil {
			t.Logf("stop during cleanup: %v", err)
		}
	})
}
