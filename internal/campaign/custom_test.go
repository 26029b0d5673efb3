package campaign

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sweep/internal/process/processtest"
)

func TestCustomCheckRegistry(t *testing.T) {
	r := NewCustomCheckRegistry()
	r.Register("always", func(string, map[string]string) (CustomValidator, error) {
		return func(context.Context) (bool, error) { return true, nil }, nil
	})

	assert.Equal(t, []string{"always"}, r.Names())

	v, err := r.Build("always", "", nil)
	require.NoError(t, err)
	ok, err := v(context.Background())
	assert.NoError(t, err)
	assert.True(t, ok)

	_, err = r.Build("never", "", nil)
	assert.ErrorContains(t, err, "available: always")
}

func TestBuiltinFileChecks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tsconfig.json"), []byte(`{"strict": true}`), 0644))

	r := NewCustomCheckRegistry()
	RegisterBuiltinChecks(r, processtest.New())

	tests := []struct {
		name    string
		check   string
		params  map[string]string
		want    bool
		wantErr bool
	}{
		{name: "file exists", check: "file-exists", params: map[string]string{"path": "tsconfig.json"}, want: true},
		{name: "file missing", check: "file-exists", params: map[string]string{"path": "nope.json"}, want: false},
		{name: "absolute path", check: "file-exists", params: map[string]string{"path": filepath.Join(dir, "tsconfig.json")}, want: true},
		{name: "contains text", check: "file-contains", params: map[string]string{"path": "tsconfig.json", "text": `"strict": true`}, want: true},
		{name: "lacks text", check: "file-contains", params: map[string]string{"path": "tsconfig.json", "text": "noImplicitAny"}, want: false},
		{name: "contains on missing file", check: "file-contains", params: map[string]string{"path": "nope.json", "text": "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := r.Build(tt.check, dir, tt.params)
			require.NoError(t, err)

			got, err := v(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuiltinCommandCheck(t *testing.T) {
	fake := processtest.New().
		On("npx tsc --noEmit", processtest.Response{}).
		On("npx eslint .", processtest.Response{ExitCode: 1}).
		On("missing-tool", processtest.Response{SpawnErr: errors.New("not found")})

	r := NewCustomCheckRegistry()
	RegisterBuiltinChecks(r, fake)

	run := func(line string) (bool, error) {
		v, err := r.Build("command", "/repo", map[string]string{"run": line})
		require.NoError(t, err)
		return v(context.Background())
	}

	ok, err := run("npx tsc --noEmit")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = run("npx eslint .")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = run("missing-tool")
	assert.Error(t, err)

	assert.Equal(t, "/repo", fake.Calls()[0].Dir)

	_, err = r.Build("command", "", nil)
	assert.ErrorContains(t, err, `"run"`)
}
