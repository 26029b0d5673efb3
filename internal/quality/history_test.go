package quality

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sweep/internal/log"
)

func TestHistoryMissingFileIsEmpty(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), "none.jsonl"), log.Discard())

	history, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryAppendAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".sweep", "quality-history.jsonl")
	store := NewHistoryStore(path, log.Discard())

	first := snapshot(10, 2, 0, 95)
	first.DomainSpecificIssues = map[string]int{"components": 4}
	require.NoError(t, store.Append(first))
	require.NoError(t, store.Append(SentinelMetrics(testTime, "tool failed")))
	require.NoError(t, store.Append(snapshot(12, 3, 0, 94)))

	history, err := store.Load()
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 10, history[0].TotalIssues)
	assert.Equal(t, 4, history[0].DomainSpecificIssues["components"])
	assert.True(t, history[1].IsSentinel())
	assert.Equal(t, "tool failed", history[1].Failure)
	assert.True(t, history[0].Timestamp.Equal(testTime))

	recent, err := store.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 12, recent[1].TotalIssues)
}

func TestHistorySkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	content := `{"totalIssues": 5, "qualityScore": 97}
not json at all

{"totalIssues": 7, "qualityScore": 96}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	history, err := NewHistoryStore(path, log.Discard()).Load()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 7, history[1].TotalIssues)
}

func TestHistoryReadsRecordsPastALongLine(t *testing.T) {
	store := NewHistoryStore(filepath.Join(t.TempDir(), "history.jsonl"), log.Discard())

	require.NoError(t, store.Append(snapshot(10, 2, 0, 95)))
	require.NoError(t, store.Append(SentinelMetrics(testTime, strings.Repeat("x", 2<<20))))
	require.NoError(t, store.Append(snapshot(12, 3, 0, 94)))

	history, err := store.Load()
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[1].IsSentinel())
	assert.Equal(t, 12, history[2].TotalIssues)
}

func TestHistoryLastLineWithoutNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"totalIssues": 5}`+"\n"+`{"totalIssues": 6}`), 0644))

	history, err := NewHistoryStore(path, log.Discard()).Load()
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 6, history[1].TotalIssues)
}
