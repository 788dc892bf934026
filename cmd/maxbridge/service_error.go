// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"maxbridge/internal/issue"

	"github.com/charmbracelet/log"
)

// ServiceError pairs a fatal command failure with what the terminal should
// show for it: an optional pre-styled message and an optional issue catalog
// entry carrying remediation steps. Construct it with newServiceError; a
// nil Err is a programming error and panics there.
type ServiceError struct {
	Err           error    // underlying failure, never nil
	IssueID       issue.Id // catalog entry rendered after the message, 0 for none
	StyledMessage string   // pre-rendered text, printed verbatim
}

func newServiceError(err error, id issue.Id, styled string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: id, StyledMessage: styled}
}

func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints the presentation half of a ServiceError: the
// styled message first, then the catalog entry when one is named. A nil
// svcErr prints nothing.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil {
		return
	}
	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}
	entry := issue.Get(svcErr.IssueID)
	if entry == nil {
		return
	}
	rendered, err := entry.Render("dark")
	if err != nil {
		log.Warn("rendering issue catalog entry", "issueID", svcErr.IssueID, "error", err)
		return
	}
	fmt.Fprint(stderr, rendered)
}
