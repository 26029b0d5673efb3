package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/sweep/internal/errors"
)

// ErrorWithSuggestion is an error printed with a recovery hint
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion returns nil for a nil err
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{Err: err, Suggestion: suggestion}
}

// hint applies when the message contains every allOf fragment and, if anyOf is
// set, at least one anyOf fragment
type hint struct {
	anyOf      []string
	allOf      []string
	suggestion string
}

func (h hint) matches(msg string) bool {
	for _, s := range h.allOf {
		if !strings.Contains(msg, s) {
			return false
		}
	}
	if len(h.anyOf) == 0 {
		return true
	}
	for _, s := range h.anyOf {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

var hints = []hint{
	{anyOf: []string{"executable file not found"},
		suggestion: "Install the missing tool or set quality.command in .sweep/config.yaml (or SWEEP_QUALITY_COMMAND)"},
	{allOf: []string{"no such file or directory", "campaign"},
		suggestion: "Pass the campaign file with --campaign and check it with 'sweep validate'"},
	{anyOf: []string{"address already in use"},
		suggestion: "Another process holds the metrics port; pick a different --metrics-addr"},
	{anyOf: []string{"connection refused", "no such host"},
		suggestion: "Check the alert channel url and your network connection"},
	{anyOf: []string{"permission denied"},
		suggestion: "Check permissions of the .sweep directory and the paths in your config"},
	{anyOf: []string{"unknown format"},
		suggestion: "Use --format " + strings.Join(SupportedFormats, "|")},
	{anyOf: []string{"deployment failed"},
		suggestion: "Inspect the deployment journal in .sweep/deployments for task output and rollback details"},
}

// EnhanceError attaches the first matching hint to err. SweepErrors that
// already list suggestions, and errors no hint matches, are returned as is.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}
	var coded *errors.SweepError
	if stderrors.As(err, &coded) && len(coded.Suggestions) > 0 {
		return err
	}

	msg := err.Error()
	for _, h := range hints {
		if h.matches(msg) {
			return NewErrorWithSuggestion(err, h.suggestion)
		}
	}
	return err
}
