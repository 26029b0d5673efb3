package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/sweep/internal/process"
	"github.com/felixgeelhaar/sweep/internal/quality"
	"github.com/felixgeelhaar/sweep/internal/version"
)

// AlertsEnv carries the JSON batch to script channels
const AlertsEnv = "SWEEP_ALERTS"

// RegisterBuiltinChannels registers the console, file, webhook, slack and
// script channel types. Console output goes to stdout.
func RegisterBuiltinChannels(registry *Registry, runner process.Runner, stdout io.Writer) {
	registry.RegisterFactory("console", func(cfg ChannelConfig) (Channel, error) {
		return NewConsoleChannel(cfg, stdout), nil
	})
	registry.RegisterFactory("file", NewFileChannel)
	registry.RegisterFactory("webhook", NewWebhookChannel)
	registry.RegisterFactory("slack", NewSlackChannel)
	registry.RegisterFactory("script", func(cfg ChannelConfig) (Channel, error) {
		return NewScriptChannel(cfg, runner)
	})
}

// ConsoleChannel prints one styled line per alert
type ConsoleChannel struct {
	name   string
	mu     sync.Mutex
	w      io.Writer
	styles map[quality.Severity]lipgloss.Style
}

// NewConsoleChannel creates a console channel writing to w
func NewConsoleChannel(cfg ChannelConfig, w io.Writer) *ConsoleChannel {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	return &ConsoleChannel{
		name: cfg.Name,
		w:    w,
		styles: map[quality.Severity]lipgloss.Style{
			quality.SeverityCritical: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
			quality.SeverityError:    r.NewStyle().Foreground(lipgloss.Color("203")),
			quality.SeverityWarning:  r.NewStyle().Foreground(lipgloss.Color("214")),
		},
	}
}

func (c *ConsoleChannel) Name() string { return c.name }

func (c *ConsoleChannel) Send(ctx context.Context, alerts []quality.Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, a := range alerts {
		if err := ctx.Err(); err != nil {
			return err
		}
		label := c.styles[a.Severity].Render(fmt.Sprintf("[%s]", strings.ToUpper(string(a.Severity))))
		if _, err := fmt.Fprintf(c.w, "%s %s: %s\n", label, a.Metric, a.Message); err != nil {
			return err
		}
	}
	return nil
}

// FileChannel appends alerts as JSON lines
type FileChannel struct {
	name string
	path string
	mu   sync.Mutex
}

// NewFileChannel creates a file channel from config.path
func NewFileChannel(cfg ChannelConfig) (Channel, error) {
	path, err := cfg.setting("path")
	if err != nil {
		return nil, err
	}
	return &FileChannel{name: cfg.Name, path: path}, nil
}

func (c *FileChannel) Name() string { return c.name }

func (c *FileChannel) Send(ctx context.Context, alerts []quality.Alert) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range alerts {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("failed to encode alert: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WebhookChannel posts the batch as JSON
type WebhookChannel struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
}

type webhookPayload struct {
	Source string          `json:"source"`
	Alerts []quality.Alert `json:"alerts"`
}

// NewWebhookChannel creates a webhook channel from config.url
func NewWebhookChannel(cfg ChannelConfig) (Channel, error) {
	url, err := cfg.setting("url")
	if err != nil {
		return nil, err
	}
	return &WebhookChannel{
		name:    cfg.Name,
		url:     url,
		headers: cfg.Headers,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

func (c *WebhookChannel) Name() string { return c.name }

func (c *WebhookChannel) Send(ctx context.Context, alerts []quality.Alert) error {
	payload, err := json.Marshal(webhookPayload{Source: "sweep", Alerts: alerts})
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}
	return postJSON(ctx, c.client, c.url, payload, c.headers, "webhook")
}

// SlackChannel posts a text summary to an incoming webhook
type SlackChannel struct {
	name       string
	webhookURL string
	channel    string
	username   string
	client     *http.Client
}

// NewSlackChannel creates a Slack channel from config.webhookUrl
func NewSlackChannel(cfg ChannelConfig) (Channel, error) {
	webhookURL, err := cfg.setting("webhookUrl")
	if err != nil {
		return nil, err
	}
	ch := &SlackChannel{
		name:       cfg.Name,
		webhookURL: webhookURL,
		channel:    cfg.Config["channel"],
		username:   "Sweep",
		client:     &http.Client{Timeout: cfg.Timeout()},
	}
	if u := cfg.Config["username"]; u != "" {
		ch.username = u
	}
	return ch, nil
}

func (c *SlackChannel) Name() string { return c.name }

func (c *SlackChannel) Send(ctx context.Context, alerts []quality.Alert) error {
	payload := map[string]string{
		"text":     slackText(alerts),
		"username": c.username,
	}
	if c.channel != "" {
		payload["channel"] = c.channel
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}
	return postJSON(ctx, c.client, c.webhookURL, body, nil, "Slack")
}

func slackText(alerts []quality.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sweep quality alerts (%d)", len(alerts))
	for _, a := range alerts {
		icon := ":warning:"
		switch a.Severity {
		case quality.SeverityCritical:
			icon = ":rotating_light:"
		case quality.SeverityError:
			icon = ":x:"
		}
		fmt.Fprintf(&b, "\n%s *%s* %s: %s", icon, a.Severity, a.Metric, a.Message)
	}
	return b.String()
}

func postJSON(ctx context.Context, client *http.Client, url string, body []byte, headers map[string]string, what string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", what, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", what, resp.StatusCode)
	}
	return nil
}

// ScriptChannel runs a command with the batch in SWEEP_ALERTS
type ScriptChannel struct {
	name   string
	runner process.Runner
	argv   []string
	dir    string
}

// NewScriptChannel creates a script channel from config.run
func NewScriptChannel(cfg ChannelConfig, runner process.Runner) (Channel, error) {
	if runner == nil {
		return nil, fmt.Errorf("no process runner configured")
	}
	run, err := cfg.setting("run")
	if err != nil {
		return nil, err
	}
	return &ScriptChannel{
		name:   cfg.Name,
		runner: runner,
		argv:   strings.Fields(run),
		dir:    cfg.Config["dir"],
	}, nil
}

func (c *ScriptChannel) Name() string { return c.name }

func (c *ScriptChannel) Send(ctx context.Context, alerts []quality.Alert) error {
	payload, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}
	_, err = c.runner.Run(ctx, process.Command{
		Name: c.argv[0],
		Args: c.argv[1:],
		Dir:  c.dir,
		Env:  map[string]string{AlertsEnv: string(payload)},
	})
	return err
}
