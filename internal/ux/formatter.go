// Package ux renders command output and decorates errors with recovery hints.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --format
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var SupportedFormats = []string{FormatText, FormatJSON, FormatYAML}

// Formatter writes command results in one output format
type Formatter interface {
	Format(data any) error
}

type FormatterOptions struct {
	// Writer defaults to os.Stdout
	Writer io.Writer
	// Compact disables indentation of JSON and YAML
	Compact bool
}

// NewFormatter accepts the SupportedFormats in any case. An empty format is
// text.
func NewFormatter(format string, opts *FormatterOptions) (Formatter, error) {
	var o FormatterOptions
	if opts != nil {
		o = *opts
	}
	if o.Writer == nil {
		o.Writer = os.Stdout
	}

	switch strings.ToLower(format) {
	case FormatJSON:
		return jsonFormatter(o), nil
	case FormatYAML:
		return yamlFormatter(o), nil
	case FormatText, "":
		return textFormatter(o), nil
	}
	return nil, fmt.Errorf("unknown format: %s (supported: %s)", format, strings.Join(SupportedFormats, ", "))
}

// IsStructured reports whether format is machine-readable
func IsStructured(format string) bool {
	switch strings.ToLower(format) {
	case FormatJSON, FormatYAML:
		return true
	}
	return false
}

type jsonFormatter FormatterOptions

func (f jsonFormatter) Format(data any) error {
	enc := json.NewEncoder(f.Writer)
	if !f.Compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(data)
}

type yamlFormatter FormatterOptions

func (f yamlFormatter) Format(data any) error {
	enc := yaml.NewEncoder(f.Writer)
	if !f.Compact {
		enc.SetIndent(2)
	}
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

// textFormatter prints strings and fmt.Stringers, one trailing newline
// guaranteed
type textFormatter FormatterOptions

func (f textFormatter) Format(data any) error {
	var text string
	switch v := data.(type) {
	case string:
		text = v
	case fmt.Stringer:
		text = v.String()
	default:
		return fmt.Errorf("text output is not available for %T, use --format json or yaml", data)
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(f.Writer, text)
	return err
}
