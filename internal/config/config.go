// Package config loads the sweep configuration file, applies .env and
// environment overrides and validates the result.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/sweep/internal/alert"
	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/quality"
	"github.com/felixgeelhaar/sweep/internal/telemetry"
)

// DefaultPath is the configuration file used when none is given
const DefaultPath = ".sweep/config.yaml"

// Environment variables recognised by Load
const (
	EnvConfig          = "SWEEP_CONFIG"
	EnvLogLevel        = "SWEEP_LOG_LEVEL"
	EnvLogFormat       = "SWEEP_LOG_FORMAT"
	EnvQualityCommand  = "SWEEP_QUALITY_COMMAND"
	EnvAlertingEnabled = "SWEEP_ALERTING_ENABLED"
	EnvSlackWebhookURL = "SWEEP_SLACK_WEBHOOK_URL"
)

// Config is the whole sweep configuration
type Config struct {
	Logging    LoggingConfig            `yaml:"logging" json:"logging"`
	Quality    QualityConfig            `yaml:"quality" json:"quality"`
	Thresholds alert.Thresholds         `yaml:"thresholds" json:"thresholds"`
	Regression quality.RegressionConfig `yaml:"regression" json:"regression"`
	Alerting   alert.AlertingConfig     `yaml:"alerting" json:"alerting"`
	Monitor    MonitorConfig            `yaml:"monitor" json:"monitor"`
	Paths      PathsConfig              `yaml:"paths" json:"paths"`
	Telemetry  telemetry.Config         `yaml:"telemetry" json:"telemetry"`

	// Source is the file the configuration was read from, empty for defaults
	Source string `yaml:"-" json:"-"`
}

// LoggingConfig selects the log level and format
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=json text console auto"`
}

// QualityConfig configures the static-analysis collector
type QualityConfig struct {
	Command              string              `yaml:"command" json:"command" validate:"required"`
	Args                 []string            `yaml:"args" json:"args"`
	TimeoutMs            int64               `yaml:"timeoutMs" json:"timeoutMs" validate:"gte=0"`
	AcceptExitCodes      []int               `yaml:"acceptExitCodes" json:"acceptExitCodes" validate:"dive,gte=0,lte=255"`
	CacheFile            string              `yaml:"cacheFile" json:"cacheFile"`
	Rules                map[string]string   `yaml:"rules" json:"rules"`
	DomainBuckets        map[string][]string `yaml:"domainBuckets" json:"domainBuckets"`
	ExplicitAnyThreshold int                 `yaml:"explicitAnyThreshold" json:"explicitAnyThreshold" validate:"gte=0"`
}

// MonitorConfig configures scheduled and watch-mode monitoring
type MonitorConfig struct {
	Interval   time.Duration `yaml:"interval" json:"interval" validate:"gte=0"`
	WatchPaths []string      `yaml:"watchPaths" json:"watchPaths"`
	Debounce   time.Duration `yaml:"debounce" json:"debounce" validate:"gte=0"`
}

// PathsConfig locates the files sweep writes
type PathsConfig struct {
	History     string `yaml:"history" json:"history" validate:"required"`
	Report      string `yaml:"report" json:"report" validate:"required"`
	Deployments string `yaml:"deployments" json:"deployments" validate:"required"`
}

// Default returns the configuration used without a config file
func Default() *Config {
	qc := quality.DefaultCollectorConfig()
	rules := make(map[string]string, len(qc.Rules))
	for rule, counter := range qc.Rules {
		rules[rule] = string(counter)
	}
	return &Config{
		Logging: LoggingConfig{Level: "info", Format: "auto"},
		Quality: QualityConfig{
			Command:              qc.Command,
			Args:                 qc.Args,
			TimeoutMs:            qc.Timeout.Milliseconds(),
			AcceptExitCodes:      qc.AcceptExitCodes,
			CacheFile:            qc.CacheFile,
			Rules:                rules,
			DomainBuckets:        qc.DomainBuckets,
			ExplicitAnyThreshold: qc.ExplicitAnyThreshold,
		},
		Thresholds: alert.DefaultThresholds(),
		Regression: quality.DefaultRegressionConfig(),
		Alerting: alert.AlertingConfig{
			Enabled:  true,
			Channels: []alert.ChannelConfig{{Name: "console", Type: "console"}},
		},
		Monitor: MonitorConfig{
			Interval:   15 * time.Minute,
			WatchPaths: []string{"src"},
			Debounce:   2 * time.Second,
		},
		Paths: PathsConfig{
			History:     ".sweep/quality-history.jsonl",
			Report:      ".sweep/quality-report.md",
			Deployments: ".sweep/deployments",
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Resolve picks the configuration path: the explicit flag value, then
// SWEEP_CONFIG, then DefaultPath. explicit reports whether the file was
// requested and must therefore exist.
func Resolve(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if env := os.Getenv(EnvConfig); env != "" {
		return env, true
	}
	return DefaultPath, false
}

// Load reads the configuration. A missing default file yields defaults; a
// missing explicitly requested file is an error. A .env file in the working
// directory is loaded before environment overrides are applied.
func Load(flagPath string) (*Config, error) {
	_ = godotenv.Load()

	path, explicit := Resolve(flagPath)
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigUnmarshalError(path, err)
		}
		cfg.Source = path
	case os.IsNotExist(err) && !explicit:
	case os.IsNotExist(err):
		return nil, errors.NewConfigNotFoundError(path)
	default:
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "read configuration", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvQualityCommand); v != "" {
		fields := strings.Fields(v)
		if len(fields) == 0 {
			return errors.NewConfigInvalidError(EnvQualityCommand, "expected a command, got only whitespace")
		}
		c.Quality.Command = fields[0]
		c.Quality.Args = fields[1:]
	}
	if v := os.Getenv(EnvAlertingEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NewConfigInvalidError(EnvAlertingEnabled, fmt.Sprintf("expected a boolean, got %q", v))
		}
		c.Alerting.Enabled = enabled
	}
	if v := os.Getenv(EnvSlackWebhookURL); v != "" {
		c.setSlackWebhook(v)
	}
	return nil
}

// setSlackWebhook fills every slack channel lacking a URL, adding one
// channel when none is configured
func (c *Config) setSlackWebhook(url string) {
	found := false
	for i := range c.Alerting.Channels {
		ch := &c.Alerting.Channels[i]
		if ch.Type != "slack" {
			continue
		}
		found = true
		if ch.Config == nil {
			ch.Config = map[string]string{}
		}
		if ch.Config["webhookUrl"] == "" {
			ch.Config["webhookUrl"] = url
		}
	}
	if !found {
		c.Alerting.Channels = append(c.Alerting.Channels, alert.ChannelConfig{
			Name:   "slack",
			Type:   "slack",
			Config: map[string]string{"webhookUrl": url},
		})
	}
}

var configValidate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	source := c.Source
	if source == "" {
		source = "defaults"
	}

	if err := configValidate.Struct(c); err != nil {
		return errors.NewConfigInvalidError(source, describeValidation(err))
	}

	var problems []string
	for rule, counter := range c.Quality.Rules {
		if !quality.ValidCounter(quality.Counter(counter)) {
			problems = append(problems, fmt.Sprintf("quality.rules.%s: unknown counter %q", rule, counter))
		}
	}
	seen := make(map[string]bool)
	for _, ch := range c.Alerting.Channels {
		if seen[ch.Name] {
			problems = append(problems, fmt.Sprintf("alerting.channels: duplicate channel name %q", ch.Name))
		}
		seen[ch.Name] = true
	}
	if len(problems) > 0 {
		return errors.NewConfigInvalidError(source, strings.Join(problems, "; "))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		}
	}
	return strings.Join(msgs, "; ")
}

// CollectorConfig converts the quality section for a collector running in dir
func (c *Config) CollectorConfig(dir string) quality.CollectorConfig {
	rules := make(map[string]quality.Counter, len(c.Quality.Rules))
	for rule, counter := range c.Quality.Rules {
		rules[rule] = quality.Counter(counter)
	}
	return quality.CollectorConfig{
		Command:              c.Quality.Command,
		Args:                 c.Quality.Args,
		Dir:                  dir,
		Timeout:              time.Duration(c.Quality.TimeoutMs) * time.Millisecond,
		AcceptExitCodes:      c.Quality.AcceptExitCodes,
		CacheFile:            c.Quality.CacheFile,
		Rules:                rules,
		DomainBuckets:        c.Quality.DomainBuckets,
		ExplicitAnyThreshold: c.Quality.ExplicitAnyThreshold,
	}
}

// LogConfig converts the logging section into a logger configuration
func (c *Config) LogConfig() log.Config {
	lc := log.DefaultConfig()
	if lvl, err := log.ParseLevel(c.Logging.Level); err == nil {
		lc.Level = lvl
	}
	lc.Format = log.ParseFormat(c.Logging.Format)
	return lc
}
