package exitcode

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	sweeperrors "github.com/felixgeelhaar/sweep/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error returns success", err: nil, expected: Success},
		{name: "explicit code", err: WithCode(RegressionDetected, errors.New("regression in totalIssues")), expected: RegressionDetected},
		{name: "explicit code wrapped", err: fmt.Errorf("monitor: %w", WithCode(CriticalAlert, errors.New("critical"))), expected: CriticalAlert},
		{name: "cancelled", err: fmt.Errorf("deploy: %w", context.Canceled), expected: Interrupted},
		{name: "config invalid", err: sweeperrors.NewConfigInvalidError("campaign.yaml", "phases is required"), expected: UsageError},
		{name: "config unmarshal", err: sweeperrors.NewConfigUnmarshalError("campaign.yaml", errors.New("bad indent")), expected: UsageError},
		{name: "critical task", err: sweeperrors.NewCriticalTaskError("build", errors.New("exit 2")), expected: DeploymentFailed},
		{name: "criteria unmet", err: sweeperrors.NewCriteriaUnmetError([]string{"buildSuccess"}), expected: DeploymentFailed},
		{name: "unknown flag", err: errors.New("unknown flag: --fast"), expected: UsageError},
		{name: "wrong arg count", err: errors.New("accepts 1 arg(s), received 0"), expected: UsageError},
		{name: "required flag", err: errors.New(`required flag(s) "campaign" not set`), expected: UsageError},
		{name: "generic", err: errors.New("disk full"), expected: GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetermineExitCode(tt.err))
		})
	}
}

func TestWithCodeNil(t *testing.T) {
	assert.NoError(t, WithCode(DeploymentFailed, nil))
}

func TestWithCodeUnwraps(t *testing.T) {
	inner := errors.New("boom")
	err := WithCode(DeploymentFailed, inner)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "boom", err.Error())
}

func TestGetExitCodeDescription(t *testing.T) {
	for _, code := range Codes() {
		assert.NotEqual(t, "Unknown error", GetExitCodeDescription(code), "code %d", code)
	}
	assert.Equal(t, "Unknown error", GetExitCodeDescription(42))
	assert.Equal(t, 130, Interrupted)
}
