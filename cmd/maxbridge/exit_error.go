// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"maxbridge/pkg/types"
)

// ExitError carries the process exit code a failed command asks for.
// Execute unwraps it after fang returns; RunE handlers never call
// os.Exit themselves, so their deferred cleanup still runs.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
