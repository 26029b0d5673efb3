// Package process launches external commands with a timeout, environment
// overrides and captured output. Every task, validation check and the
// static-analysis tool run through a Runner.
package process

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/sweep/internal/log"
)

// DefaultTimeout applies when a Command does not set one
const DefaultTimeout = 5 * time.Minute

// Stream identifies which output stream a line came from
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Command describes one external process invocation
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     map[string]string
	Timeout time.Duration

	// OnLine, when set, receives every complete output line as it is
	// produced. Calls are serialized across both streams.
	OnLine func(stream Stream, line string)
}

// String renders the command line for logs and error messages
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Output holds what a finished process produced
type Output struct {
	Stdout      string
	Stderr      string
	ExitCode    int
	Duration    time.Duration
	MaxRSSBytes int64
}

// Combined returns stdout followed by stderr
func (o *Output) Combined() string {
	if o == nil {
		return ""
	}
	switch {
	case o.Stderr == "":
		return o.Stdout
	case o.Stdout == "":
		return o.Stderr
	case strings.HasSuffix(o.Stdout, "\n"):
		return o.Stdout + o.Stderr
	default:
		return o.Stdout + "\n" + o.Stderr
	}
}

// Runner runs external processes. Run returns the output on exit code 0 and
// one of *TimeoutError, *ExitError or *SpawnError otherwise. ExitError and
// TimeoutError carry whatever output was captured.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Output, error)
}

// ExecRunner is the os/exec backed Runner
type ExecRunner struct {
	logger *log.Logger

	// DefaultTimeout applies to commands without a timeout
	DefaultTimeout time.Duration

	// WaitDelay bounds how long Run waits for output pipes to drain after
	// the process group has been killed
	WaitDelay time.Duration
}

// NewExecRunner creates a runner that logs through logger
func NewExecRunner(logger *log.Logger) *ExecRunner {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &ExecRunner{
		logger:         logger,
		DefaultTimeout: DefaultTimeout,
		WaitDelay:      2 * time.Second,
	}
}

// Run launches c and waits for it to exit or time out. On timeout the whole
// process group is killed before Run returns, so no child outlives the call.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Output, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, &SpawnError{Command: c.String(), Err: fmt.Errorf("empty command")}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = r.DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = MergeEnv(os.Environ(), c.Env)
	cmd.WaitDelay = r.WaitDelay
	setupProcessGroup(cmd)

	var mu sync.Mutex
	stdout := newLineWriter(StreamStdout, c.OnLine, &mu)
	stderr := newLineWriter(StreamStderr, c.OnLine, &mu)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	r.logger.Debug("starting process", "command", c.String(), "dir", c.Dir, "timeout", timeout.String())

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: c.String(), Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-runCtx.Done():
		if err := killProcessGroup(cmd); err != nil {
			r.logger.Warn("failed to kill process group", "command", c.String(), "error", err)
		}
		<-done
		out := collect(cmd, stdout, stderr, start, -1)

		if ctx.Err() != nil {
			return out, fmt.Errorf("process %q cancelled: %w", c.String(), ctx.Err())
		}
		r.logger.Warn("process timed out", "command", c.String(), "timeout", timeout.String())
		return out, &TimeoutError{Command: c.String(), Timeout: timeout, Output: out}
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(waitErr, &exitErr) {
			return nil, &SpawnError{Command: c.String(), Err: waitErr}
		}
		exitCode = exitErr.ExitCode()
	}

	out := collect(cmd, stdout, stderr, start, exitCode)
	r.logger.Debug("process exited", "command", c.String(), "exit_code", exitCode, "duration", out.Duration.String())

	if exitCode != 0 {
		return out, &ExitError{Command: c.String(), Code: exitCode, Output: out}
	}
	return out, nil
}

func collect(cmd *exec.Cmd, stdout, stderr *lineWriter, start time.Time, exitCode int) *Output {
	stdout.flush()
	stderr.flush()
	return &Output{
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		ExitCode:    exitCode,
		Duration:    time.Since(start),
		MaxRSSBytes: maxRSSBytes(cmd),
	}
}

// MergeEnv overlays overrides onto base (KEY=VALUE pairs). Overridden keys
// are removed from base; overrides are appended in sorted order.
func MergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	merged := make([]string, 0, len(base)+len(overrides))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, replaced := overrides[key]; replaced {
			continue
		}
		merged = append(merged, kv)
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+overrides[k])
	}
	return merged
}

// lineWriter captures a stream and forwards complete lines to a callback
type lineWriter struct {
	stream  Stream
	onLine  func(Stream, string)
	mu      *sync.Mutex
	buf     bytes.Buffer
	pending []byte
}

func newLineWriter(stream Stream, onLine func(Stream, string), mu *sync.Mutex) *lineWriter {
	return &lineWriter{stream: stream, onLine: onLine, mu: mu}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	if w.onLine == nil {
		return len(p), nil
	}

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.onLine(w.stream, strings.TrimRight(string(w.pending[:i]), "\r"))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.onLine != nil && len(w.pending) > 0 {
		w.onLine(w.stream, string(w.pending))
		w.pending = nil
	}
}

func (w *lineWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}
