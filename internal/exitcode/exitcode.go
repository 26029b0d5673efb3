// Package exitcode maps command outcomes to process exit codes.
package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/sweep/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid usage or configuration (bad flags,
	// missing args, invalid campaign or config files)
	UsageError = 2

	// DeploymentFailed indicates a campaign phase did not succeed
	DeploymentFailed = 3

	// RegressionDetected indicates monitoring found a quality regression
	RegressionDetected = 4

	// CriticalAlert indicates monitoring raised a critical alert
	CriticalAlert = 5

	// Interrupted indicates the run was cancelled by SIGINT or SIGTERM
	Interrupted = 130
)

// Error attaches an explicit exit code to an error
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// WithCode wraps err so DetermineExitCode returns code
func WithCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode analyzes an error and returns the appropriate exit code.
// Explicit codes win, then coded errors, then message heuristics.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	switch code := string(errors.CodeOf(err)); {
	case strings.HasPrefix(code, "CONFIG-"):
		return UsageError
	case strings.HasPrefix(code, "PHASE-"), strings.HasPrefix(code, "TASK-"), strings.HasPrefix(code, "CHECK-"):
		return DeploymentFailed
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "interrupted") || strings.Contains(errMsg, "signal: terminated") {
		return Interrupted
	}

	// Usage errors
	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "missing argument") {
		return UsageError
	}
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "accepts") && strings.Contains(errMsg, "arg(s)") {
		return UsageError
	}

	// Default to general error
	return GeneralError
}

// Codes lists every exit code sweep uses, in ascending order
func Codes() []int {
	return []int{Success, GeneralError, UsageError, DeploymentFailed, RegressionDetected, CriticalAlert, Interrupted}
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or configuration)"
	case DeploymentFailed:
		return "Deployment failed"
	case RegressionDetected:
		return "Quality regression detected"
	case CriticalAlert:
		return "Critical quality alert"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
