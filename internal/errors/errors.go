package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Process errors (PROC-001 to PROC-099)
	ErrCodeProcessTimeout     ErrorCode = "PROC-001"
	ErrCodeProcessNonZeroExit ErrorCode = "PROC-002"
	ErrCodeProcessSpawn       ErrorCode = "PROC-003"

	// Validation check errors (CHECK-001 to CHECK-099)
	ErrCodeValidationFailed ErrorCode = "CHECK-001"

	// Task errors (TASK-001 to TASK-099)
	ErrCodeCriticalTaskFailure ErrorCode = "TASK-001"

	// Phase errors (PHASE-001 to PHASE-099)
	ErrCodePrerequisiteMissing ErrorCode = "PHASE-001"
	ErrCodeCriteriaUnmet       ErrorCode = "PHASE-002"
	ErrCodeRollbackFailure     ErrorCode = "PHASE-003"
	ErrCodePhasePanic          ErrorCode = "PHASE-004"

	// Quality metrics errors (METRICS-001 to METRICS-099)
	ErrCodeMetricsToolFailure ErrorCode = "METRICS-001"
	ErrCodeMetricsUnparsable  ErrorCode = "METRICS-002"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigNotFound  ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid   ErrorCode = "CONFIG-002"
	ErrCodeConfigUnmarshal ErrorCode = "CONFIG-003"

	// Alerting errors (ALERT-001 to ALERT-099)
	ErrCodeAlertChannel ErrorCode = "ALERT-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
)

// SweepError is an error with a stable code and remediation hints
type SweepError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error renders the summary followed by the suggestions
func (e *SweepError) Error() string {
	var b strings.Builder
	b.WriteString(e.Summary())
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range e.Suggestions {
			fmt.Fprintf(&b, "\n  • %s", s)
		}
	}
	return b.String()
}

// Summary returns the code and message without suggestions, suitable for
// result error lists and single-line logs.
func (e *SweepError) Summary() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SweepError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *SweepError {
	return &SweepError{Code: code, Message: message}
}

// Wrap is New with a cause reachable through errors.Is and errors.As
func Wrap(code ErrorCode, message string, cause error) *SweepError {
	return &SweepError{Code: code, Message: message, Cause: cause}
}

// WithSuggestion adds a suggestion to the error
func (e *SweepError) WithSuggestion(suggestion string) *SweepError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *SweepError) WithSuggestions(suggestions ...string) *SweepError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the outermost SweepError in err's chain, or ""
func CodeOf(err error) ErrorCode {
	var sweepErr *SweepError
	if stderrors.As(err, &sweepErr) {
		return sweepErr.Code
	}
	return ""
}

// HasCode reports whether any SweepError in err's chain carries code
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var sweepErr *SweepError
		if !stderrors.As(err, &sweepErr) {
			return false
		}
		if sweepErr.Code == code {
			return true
		}
		err = sweepErr.Cause
	}
	return false
}

// NewProcessTimeoutError creates a process timeout error
func NewProcessTimeoutError(command string, timeout time.Duration) *SweepError {
	return New(ErrCodeProcessTimeout, fmt.Sprintf("process %q timed out after %s", command, timeout)).
		WithSuggestion("Increase timeoutMs on the task or validation check").
		WithSuggestion("Run the command manually to see whether it hangs waiting for input")
}

// NewProcessExitError creates a non-zero exit error
func NewProcessExitError(command string, code int, stderr string) *SweepError {
	msg := fmt.Sprintf("process %q exited with code %d", command, code)
	if s := strings.TrimSpace(stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return New(ErrCodeProcessNonZeroExit, msg)
}

// NewProcessSpawnError creates a spawn failure error
func NewProcessSpawnError(command string, cause error) *SweepError {
	return Wrap(ErrCodeProcessSpawn, fmt.Sprintf("failed to start process %q", command), cause).
		WithSuggestion("Check that the command is installed and on PATH").
		WithSuggestion("Check the working directory and file permissions")
}

// NewCriticalTaskError creates a critical task failure error
func NewCriticalTaskError(taskID string, cause error) *SweepError {
	return Wrap(ErrCodeCriticalTaskFailure, fmt.Sprintf("critical task %s failed", taskID), cause).
		WithSuggestion("Inspect the task output above; remaining tasks in the phase were not run").
		WithSuggestion("Mark the task critical: false if its failure should not abort the phase")
}

// NewPrerequisiteMissingError creates a missing prerequisite error
func NewPrerequisiteMissingError(path string) *SweepError {
	return New(ErrCodePrerequisiteMissing, fmt.Sprintf("prerequisite not found: %s", path)).
		WithSuggestion("Run the phase that produces this path first").
		WithSuggestion("Check the campaign workDir setting")
}

// NewCriteriaUnmetError creates an aggregated success criteria error
func NewCriteriaUnmetError(failures []string) *SweepError {
	return New(ErrCodeCriteriaUnmet, fmt.Sprintf("success criteria unmet: %s", strings.Join(failures, "; ")))
}

// NewPhasePanicError converts a recovered panic into an error
func NewPhasePanicError(phaseID string, recovered any) *SweepError {
	return New(ErrCodePhasePanic, fmt.Sprintf("phase %s aborted unexpectedly: %v", phaseID, recovered))
}

// NewMetricsToolError creates a static-analysis tool failure error
func NewMetricsToolError(cause error) *SweepError {
	return Wrap(ErrCodeMetricsToolFailure, "static analysis tool failed", cause).
		WithSuggestion("Run the configured quality command manually").
		WithSuggestion("Check quality.acceptExitCodes in the sweep config")
}

// NewMetricsUnparsableError creates an unparsable tool output error
func NewMetricsUnparsableError(cause error) *SweepError {
	return Wrap(ErrCodeMetricsUnparsable, "static analysis output is not a JSON result array", cause).
		WithSuggestion("Make sure the tool is invoked with a JSON formatter (e.g. --format json)")
}

// NewConfigNotFoundError creates a configuration file not found error
func NewConfigNotFoundError(path string) *SweepError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Pass the file explicitly with --config or -c")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(path string, details string) *SweepError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration %s: %s", path, details)).
		WithSuggestion("Run 'sweep validate' to see all validation errors")
}

// NewConfigUnmarshalError creates an unmarshal error
func NewConfigUnmarshalError(path string, cause error) *SweepError {
	return Wrap(ErrCodeConfigUnmarshal, fmt.Sprintf("failed to parse YAML file: %s", path), cause).
		WithSuggestion("Check the file syntax and indentation")
}

// NewAlertChannelError creates an alert channel delivery error
func NewAlertChannelError(channel string, cause error) *SweepError {
	return Wrap(ErrCodeAlertChannel, fmt.Sprintf("alert channel %s failed", channel), cause)
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *SweepError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
