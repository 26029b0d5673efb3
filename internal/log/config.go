package log

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Format selects the slog handler
type Format int

const (
	FormatJSON Format = iota
	FormatText
	// FormatAuto is text on a terminal and JSON otherwise
	FormatAuto
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	case FormatAuto:
		return "auto"
	default:
		return "json"
	}
}

// ParseFormat maps a config or flag value to a Format. Unrecognised values
// log as JSON.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "console":
		return FormatText
	case "auto", "":
		return FormatAuto
	default:
		return FormatJSON
	}
}

// Output is the destination of log entries. The zero value is stderr.
type Output struct {
	writer io.Writer
}

// NewOutput wraps w
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// Writer returns the destination, defaulting to stderr
func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return os.Stderr
	}
	return o.writer
}

// IsTerminal reports whether the output is an interactive terminal
func (o Output) IsTerminal() bool {
	f, ok := o.Writer().(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Config configures New
type Config struct {
	Level     Level
	Format    Format
	Output    Output
	AddSource bool

	// ServiceName and ServiceVersion, when set, are attached to every entry
	// as service and version
	ServiceName    string
	ServiceVersion string
}

// DefaultConfig logs at INFO level to stderr, text on a terminal and JSON
// otherwise
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Format:         FormatAuto,
		Output:         NewOutput(os.Stderr),
		ServiceName:    "sweep",
		ServiceVersion: "dev",
	}
}

func (c Config) resolvedFormat() Format {
	if c.Format != FormatAuto {
		return c.Format
	}
	if c.Output.IsTerminal() {
		return FormatText
	}
	return FormatJSON
}
