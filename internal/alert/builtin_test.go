package alert

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/sweep/internal/process/processtest"
	"github.com/felixgeelhaar/sweep/internal/quality"
)

func builtinRegistry(fake *processtest.Fake, stdout io.Writer) *Registry {
	r := NewRegistry()
	RegisterBuiltinChannels(r, fake, stdout)
	return r
}

func TestBuiltinTypes(t *testing.T) {
	r := builtinRegistry(processtest.New(), io.Discard)
	assert.Equal(t, []string{"console", "file", "script", "slack", "webhook"}, r.Types())
}

func TestBuiltinRequiredSettings(t *testing.T) {
	r := builtinRegistry(processtest.New(), io.Discard)

	for _, typ := range []string{"file", "webhook", "slack", "script"} {
		t.Run(typ, func(t *testing.T) {
			_, err := r.Build(ChannelConfig{Name: "x", Type: typ})
			assert.ErrorContains(t, err, "is required")
		})
	}
}

func TestConsoleChannel(t *testing.T) {
	var buf bytes.Buffer
	ch := NewConsoleChannel(ChannelConfig{Name: "console"}, &buf)

	require.NoError(t, ch.Send(context.Background(), []quality.Alert{
		{Severity: quality.SeverityCritical, Metric: "parserErrors", Message: "1 parser error"},
	}))
	assert.Contains(t, buf.String(), "[CRITICAL]")
	assert.Contains(t, buf.String(), "parserErrors: 1 parser error")
}

func TestFileChannelAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alerts", "alerts.jsonl")
	ch, err := NewFileChannel(ChannelConfig{Name: "file", Config: map[string]string{"path": path}})
	require.NoError(t, err)

	require.NoError(t, ch.Send(context.Background(), testAlerts))
	require.NoError(t, ch.Send(context.Background(), testAlerts[:1]))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var a quality.Alert
		require.NoError(t, json.Unmarshal(sc.Bytes(), &a))
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"1", "2", "1"}, ids)
}

func TestWebhookChannel(t *testing.T) {
	var got webhookPayload
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Token")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "sweep/"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ch, err := NewWebhookChannel(ChannelConfig{
		Name:    "hook",
		Config:  map[string]string{"url": srv.URL},
		Headers: map[string]string{"X-Token": "secret"},
	})
	require.NoError(t, err)

	require.NoError(t, ch.Send(context.Background(), testAlerts))
	assert.Equal(t, "secret", token)
	assert.Equal(t, "sweep", got.Source)
	assert.Len(t, got.Alerts, 2)
}

func TestWebhookChannelRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ch, err := NewWebhookChannel(ChannelConfig{Name: "hook", Config: map[string]string{"url": srv.URL}})
	require.NoError(t, err)

	assert.ErrorContains(t, ch.Send(context.Background(), testAlerts), "status 500")
}

func TestSlackChannel(t *testing.T) {
	var payload map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
	}))
	defer srv.Close()

	ch, err := NewSlackChannel(ChannelConfig{
		Name:   "slack",
		Config: map[string]string{"webhookUrl": srv.URL, "channel": "#quality"},
	})
	require.NoError(t, err)

	require.NoError(t, ch.Send(context.Background(), testAlerts))
	assert.Equal(t, "#quality", payload["channel"])
	assert.Equal(t, "Sweep", payload["username"])
	assert.Contains(t, payload["text"], "Sweep quality alerts (2)")
	assert.Contains(t, payload["text"], ":rotating_light: *critical* parserErrors")
}

func TestScriptChannel(t *testing.T) {
	fake := processtest.New()
	ch, err := NewScriptChannel(ChannelConfig{Name: "script", Config: map[string]string{"run": "./notify.sh --quiet"}}, fake)
	require.NoError(t, err)

	require.NoError(t, ch.Send(context.Background(), testAlerts))

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "./notify.sh", calls[0].Name)
	assert.Equal(t, []string{"--quiet"}, calls[0].Args)

	var sent []quality.Alert
	require.NoError(t, json.Unmarshal([]byte(calls[0].Env[AlertsEnv]), &sent))
	assert.Len(t, sent, 2)
}

func TestScriptChannelFailure(t *testing.T) {
	fake := processtest.New().On("notify", processtest.Response{ExitCode: 3})
	ch, err := NewScriptChannel(ChannelConfig{Name: "script", Config: map[string]string{"run": "notify"}}, fake)
	require.NoError(t, err)

	assert.Error(t, ch.Send(context.Background(), testAlerts))
}
