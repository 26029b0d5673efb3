package process

import (
	stderrors "errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/sweep/internal/errors"
)

// TimeoutError reports a process killed after exceeding its timeout
type TimeoutError struct {
	Command string
	Timeout time.Duration
	Output  *Output
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("process %q timed out after %s", e.Command, e.Timeout)
}

// Unwrap exposes the coded error so errors.CodeOf reports PROC-001
func (e *TimeoutError) Unwrap() error {
	return errors.NewProcessTimeoutError(e.Command, e.Timeout)
}

// ExitError reports a process that exited with a non-zero code
type ExitError struct {
	Command string
	Code    int
	Output  *Output
}

func (e *ExitError) Error() string {
	return errors.NewProcessExitError(e.Command, e.Code, e.stderr()).Message
}

// Unwrap exposes the coded error so errors.CodeOf reports PROC-002
func (e *ExitError) Unwrap() error {
	return errors.NewProcessExitError(e.Command, e.Code, e.stderr())
}

func (e *ExitError) stderr() string {
	if e.Output == nil {
		return ""
	}
	return e.Output.Stderr
}

// SpawnError reports a process that could not be started
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start process %q: %v", e.Command, e.Err)
}

// Unwrap exposes the coded error so errors.CodeOf reports PROC-003
func (e *SpawnError) Unwrap() error {
	return errors.NewProcessSpawnError(e.Command, e.Err)
}

// IsTimeout reports whether err is or wraps a *TimeoutError
func IsTimeout(err error) bool {
	var te *TimeoutError
	return stderrors.As(err, &te)
}

// ExitCodeOf extracts the exit code and output from err. ok is false when err
// did not come from a process that ran to completion.
func ExitCodeOf(err error) (code int, out *Output, ok bool) {
	if err == nil {
		return 0, nil, true
	}
	var ee *ExitError
	if stderrors.As(err, &ee) {
		return ee.Code, ee.Output, true
	}
	return 0, nil, false
}
