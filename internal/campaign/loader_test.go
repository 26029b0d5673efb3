package campaign

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/process/processtest"
)

const validCampaign = `
name: typescript-cleanup
description: remove unused imports across the app
workDir: app
phases:
  - id: setup
    name: Install dependencies
    prerequisites: [package.json]
    tasks:
      - id: install
        command: npm
        args: [ci]
        timeoutMs: 120000
        retries: 2
        critical: true
        env:
          CI: "true"
    validationChecks:
      - id: build
        kind: build
        command: npm
        args: [run, build]
        output:
          contains: [compiled]
          notContains: [error TS]
          matches: "\\d+ files"
    successCriteria:
      buildSuccess: true
      customChecks:
        - name: lockfile
          uses: file-exists
          with:
            path: package-lock.json
  - id: rewrite
    tasks:
      - id: codemod
        command: npx
        args: [ts-prune]
    rollbackTasks:
      - id: restore
        command: git
        args: [checkout, "--", "."]
`

func testRegistry() *CustomCheckRegistry {
	r := NewCustomCheckRegistry()
	RegisterBuiltinChecks(r, processtest.New())
	return r
}

func TestParseValidCampaign(t *testing.T) {
	c, err := Parse([]byte(validCampaign), "/repo", testRegistry())
	require.NoError(t, err)

	assert.Equal(t, "typescript-cleanup", c.Name)
	assert.Equal(t, filepath.Join("/repo", "app"), c.WorkDir)
	assert.Len(t, c.Fingerprint, 64)
	require.Len(t, c.Phases, 2)

	setup := c.Phases[0]
	assert.Equal(t, "Install dependencies", setup.Name)
	require.Len(t, setup.Tasks, 1)
	install := setup.Tasks[0]
	assert.Equal(t, 2*time.Minute, install.Timeout)
	assert.Equal(t, 2, install.Retries)
	assert.True(t, install.Critical)
	assert.Equal(t, "true", install.Env["CI"])

	require.Len(t, setup.ValidationChecks, 1)
	build := setup.ValidationChecks[0]
	assert.Equal(t, KindBuild, build.Kind)
	require.NotNil(t, build.OutputValidator)
	assert.True(t, build.OutputValidator("compiled 12 files"))
	assert.False(t, build.OutputValidator("compiled 12 files\nerror TS2304"))
	assert.False(t, build.OutputValidator("compiled nothing"))

	require.Len(t, setup.SuccessCriteria.CustomChecks, 1)
	assert.Equal(t, "lockfile", setup.SuccessCriteria.CustomChecks[0].Name)

	rewrite := c.Phases[1]
	assert.Equal(t, "rewrite", rewrite.Name, "name defaults to the id")
	assert.Len(t, rewrite.RollbackTasks, 1)
	assert.Empty(t, c.Warnings)
}

func TestParseRejectsInvalidCampaigns(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantMsg string
	}{
		{
			name:    "no phases",
			yaml:    "name: x\nphases: []\n",
			wantMsg: "phases",
		},
		{
			name:    "missing name",
			yaml:    "phases:\n  - id: a\n",
			wantMsg: "name is required",
		},
		{
			name:    "unknown kind",
			yaml:    "name: x\nphases:\n  - id: a\n    validationChecks:\n      - id: c\n        kind: deploy\n        command: make\n",
			wantMsg: "must be one of",
		},
		{
			name:    "task without command",
			yaml:    "name: x\nphases:\n  - id: a\n    tasks:\n      - id: t\n",
			wantMsg: "command is required",
		},
		{
			name:    "negative retries",
			yaml:    "name: x\nphases:\n  - id: a\n    tasks:\n      - id: t\n        command: make\n        retries: -1\n",
			wantMsg: "retries",
		},
		{
			name:    "duplicate phase ids",
			yaml:    "name: x\nphases:\n  - id: a\n  - id: a\n",
			wantMsg: `duplicate phase id "a"`,
		},
		{
			name:    "duplicate task ids",
			yaml:    "name: x\nphases:\n  - id: a\n    tasks:\n      - {id: t, command: make}\n      - {id: t, command: make}\n",
			wantMsg: `duplicate task id "t"`,
		},
		{
			name:    "bad output regex",
			yaml:    "name: x\nphases:\n  - id: a\n    validationChecks:\n      - id: c\n        kind: lint\n        command: make\n        output:\n          matches: \"(\"\n",
			wantMsg: "invalid output.matches",
		},
		{
			name:    "unknown custom check",
			yaml:    "name: x\nphases:\n  - id: a\n    successCriteria:\n      customChecks:\n        - name: telepathy\n",
			wantMsg: `unknown custom check "telepathy"`,
		},
		{
			name:    "custom check missing parameter",
			yaml:    "name: x\nphases:\n  - id: a\n    successCriteria:\n      customChecks:\n        - name: file-exists\n",
			wantMsg: `parameter "path" is required`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "", testRegistry())
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("name: [unclosed"), "", nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigUnmarshal))
}

func TestParseWarnsOnUnmatchedCriteria(t *testing.T) {
	yaml := "name: x\nphases:\n  - id: a\n    validationChecks:\n      - {id: build, kind: build, command: make}\n    successCriteria:\n      buildSuccess: true\n      testsPass: true\n"
	c, err := Parse([]byte(yaml), "", nil)
	require.NoError(t, err)
	require.Len(t, c.Warnings, 1)
	assert.Contains(t, c.Warnings[0], "testsPass")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validCampaign), 0644))

	c, err := Load(path, testRegistry())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app"), c.WorkDir)
	assert.Equal(t, Fingerprint([]byte(validCampaign)), c.Fingerprint)

	lockfile := c.Phases[0].SuccessCriteria.CustomChecks[0]
	ok, err := lockfile.Validator(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "package-lock.json does not exist yet")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFileNotFound))
}

func TestLoadReportsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nphases: []\n"), 0644))

	_, err := Load(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestFingerprintStable(t *testing.T) {
	assert.Equal(t, Fingerprint([]byte("a")), Fingerprint([]byte("a")))
	assert.NotEqual(t, Fingerprint([]byte("a")), Fingerprint([]byte("b")))
}

func TestSelect(t *testing.T) {
	c := &Campaign{Phases: []Phase{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	assert.Len(t, c.Select(nil), 3)

	selected := c.Select([]string{"c", "a"})
	require.Len(t, selected, 2)
	assert.Equal(t, "a", selected[0].ID, "selection keeps campaign order")
	assert.Equal(t, "c", selected[1].ID)

	_, ok := c.Phase("b")
	assert.True(t, ok)
	_, ok = c.Phase("z")
	assert.False(t, ok)
}
