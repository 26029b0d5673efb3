// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/sweep/internal/process"
)

// Response scripts the outcome of one invocation
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Timeout  bool
	SpawnErr error
	// Panic makes Run panic with this value, for exercising recovery paths
	Panic any
}

// Fake is a process.Runner that returns scripted responses keyed by the
// command line. Unscripted commands succeed with empty output. When several
// responses are queued for one key they are consumed in order and the last
// one repeats.
type Fake struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     []process.Command
}

// New creates an empty Fake
func New() *Fake {
	return &Fake{responses: make(map[string][]Response)}
}

// Key builds the lookup key for a command line
func Key(name string, args ...string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// On scripts the responses for a command line
func (f *Fake) On(key string, responses ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key] = append(f.responses[key], responses...)
	return f
}

// Calls returns the commands run so far, in order
func (f *Fake) Calls() []process.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]process.Command, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallKeys returns the lookup keys of the commands run so far
func (f *Fake) CallKeys() []string {
	calls := f.Calls()
	keys := make([]string, len(calls))
	for i, c := range calls {
		keys[i] = Key(c.Name, c.Args...)
	}
	return keys
}

// Count returns how many times key was run
func (f *Fake) Count(key string) int {
	n := 0
	for _, k := range f.CallKeys() {
		if k == key {
			n++
		}
	}
	return n
}

// Run implements process.Runner
func (f *Fake) Run(ctx context.Context, cmd process.Command) (*process.Output, error) {
	key := Key(cmd.Name, cmd.Args...)

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var resp Response
	if queue := f.responses[key]; len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			f.responses[key] = queue[1:]
		}
	}
	f.mu.Unlock()

	if resp.Panic != nil {
		panic(resp.Panic)
	}
	if resp.SpawnErr != nil {
		return nil, &process.SpawnError{Command: cmd.String(), Err: resp.SpawnErr}
	}

	out := &process.Output{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
		Duration: time.Millisecond,
	}
	if cmd.OnLine != nil {
		for _, line := range strings.Split(strings.TrimRight(resp.Stdout, "\n"), "\n") {
			if line != "" {
				cmd.OnLine(process.StreamStdout, line)
			}
		}
	}

	if resp.Timeout {
		timeout := cmd.Timeout
		if timeout <= 0 {
			timeout = process.DefaultTimeout
		}
		out.ExitCode = -1
		return out, &process.TimeoutError{Command: cmd.String(), Timeout: timeout, Output: out}
	}
	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("process %q cancelled: %w", cmd.String(), err)
	}
	if resp.ExitCode != 0 {
		return out, &process.ExitError{Command: cmd.String(), Code: resp.ExitCode, Output: out}
	}
	return out, nil
}

var _ process.Runner = (*Fake)(nil)
