//go:build !windows

package process

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestRunner() *ExecRunner {
	return NewExecRunner(log.Discard())
}

func sh(script string, timeout time.Duration) Command {
	return Command{Name: "sh", Args: []string{"-c", script}, Timeout: timeout}
}

func TestRunSuccess(t *testing.T) {
	out, err := newTestRunner().Run(context.Background(), sh("echo hello; echo oops 1>&2", 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.Equal(t, "oops\n", out.Stderr)
	assert.Equal(t, "hello\noops\n", out.Combined())
	assert.GreaterOrEqual(t, out.Duration, time.Duration(0))
}

func TestRunNonZeroExit(t *testing.T) {
	out, err := newTestRunner().Run(context.Background(), sh("echo partial; echo broken >&2; exit 3", 5*time.Second))
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.Code)
	assert.Equal(t, "partial\n", exitErr.Output.Stdout)
	assert.Equal(t, 3, out.ExitCode)
	assert.Equal(t, errors.ErrCodeProcessNonZeroExit, errors.CodeOf(err))
	assert.Contains(t, err.Error(), "broken")

	code, captured, ok := ExitCodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, 3, code)
	assert.Same(t, exitErr.Output, captured)
}

func TestRunTimeoutKillsProcessGroup(t *testing.T) {
	dir := t.TempDir()
	// the background child would create the marker if it survived the kill
	script := "(sleep 1; touch " + dir + "/survived) & sleep 10"

	start := time.Now()
	_, err := newTestRunner().Run(context.Background(), sh(script, 150*time.Millisecond))
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.Equal(t, errors.ErrCodeProcessTimeout, errors.CodeOf(err))
	assert.Less(t, elapsed, 5*time.Second)

	time.Sleep(1500 * time.Millisecond)
	assert.NoFileExists(t, dir+"/survived")
}

func TestRunSpawnError(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), Command{Name: "sweep-command-that-does-not-exist"})
	require.Error(t, err)

	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, errors.ErrCodeProcessSpawn, errors.CodeOf(err))

	_, _, ok := ExitCodeOf(err)
	assert.False(t, ok)
}

func TestRunEmptyCommand(t *testing.T) {
	_, err := newTestRunner().Run(context.Background(), Command{Name: "  "})
	var spawnErr *SpawnError
	assert.ErrorAs(t, err, &spawnErr)
}

func TestRunEnvOverrides(t *testing.T) {
	t.Setenv("SWEEP_BASE_VAR", "base")
	cmd := sh("echo $SWEEP_BASE_VAR-$SWEEP_OVERRIDE", 5*time.Second)
	cmd.Env = map[string]string{"SWEEP_OVERRIDE": "override"}

	out, err := newTestRunner().Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, "base-override\n", out.Stdout)
}

func TestRunWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	cmd := sh("pwd", 5*time.Second)
	cmd.Dir = dir

	out, err := newTestRunner().Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.Contains(t, strings.TrimSpace(out.Stdout), strings.TrimPrefix(dir, "/private"))
}

func TestRunStreamsLines(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	cmd := sh("printf 'one\\ntwo\\nthree'", 5*time.Second)
	cmd.OnLine = func(stream Stream, line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, string(stream)+":"+line)
	}

	_, err := newTestRunner().Run(context.Background(), cmd)
	require.NoError(t, err)
	assert.Equal(t, []string{"stdout:one", "stdout:two", "stdout:three"}, lines)
}

func TestRunParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := newTestRunner().Run(ctx, sh("sleep 10", time.Minute))
	require.Error(t, err)
	assert.False(t, IsTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeEnv(t *testing.T) {
	base := []string{"PATH=/bin", "HOME=/root", "CI=false"}
	merged := MergeEnv(base, map[string]string{"CI": "true", "NODE_ENV": "test"})

	assert.Equal(t, []string{"PATH=/bin", "HOME=/root", "CI=true", "NODE_ENV=test"}, merged)
	assert.Equal(t, base, MergeEnv(base, nil))
}
