package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
	"github.com/felixgeelhaar/sweep/internal/process"
)

// Counter names a rule-specific QualityMetrics counter
type Counter string

const (
	CounterParserErrors      Counter = "parserErrors"
	CounterExplicitAny       Counter = "explicitAnyErrors"
	CounterImportOrder       Counter = "importOrderIssues"
	CounterUnusedVariables   Counter = "unusedVariables"
	CounterReactHooks        Counter = "reactHooksIssues"
	CounterConsoleStatements Counter = "consoleStatements"
)

// ValidCounter reports whether c is a known counter
func ValidCounter(c Counter) bool {
	switch c {
	case CounterParserErrors, CounterExplicitAny, CounterImportOrder,
		CounterUnusedVariables, CounterReactHooks, CounterConsoleStatements:
		return true
	}
	return false
}

// DefaultRules maps ESLint rule IDs to counters
func DefaultRules() map[string]Counter {
	return map[string]Counter{
		"@typescript-eslint/no-explicit-any": CounterExplicitAny,
		"import/order":                       CounterImportOrder,
		"simple-import-sort/imports":         CounterImportOrder,
		"@typescript-eslint/no-unused-vars":  CounterUnusedVariables,
		"no-unused-vars":                     CounterUnusedVariables,
		"react-hooks/rules-of-hooks":         CounterReactHooks,
		"react-hooks/exhaustive-deps":        CounterReactHooks,
		"no-console":                         CounterConsoleStatements,
	}
}

// DefaultDomainBuckets groups findings by path substring
func DefaultDomainBuckets() map[string][]string {
	return map[string][]string{
		"components": {"/components/"},
		"services":   {"/services/", "/api/"},
		"utilities":  {"/utils/", "/lib/", "/helpers/"},
	}
}

// CollectorConfig configures the static-analysis invocation
type CollectorConfig struct {
	Command string
	Args    []string
	Dir     string
	Timeout time.Duration

	// AcceptExitCodes lists exit codes that still carry a valid report.
	// ESLint exits 1 when it found problems.
	AcceptExitCodes []int

	// CacheFile is the tool's cache; files not modified since it was written
	// count as cache hits
	CacheFile string

	Rules                map[string]Counter
	DomainBuckets        map[string][]string
	ExplicitAnyThreshold int
}

// DefaultCollectorConfig runs ESLint over the working directory
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		Command:              "npx",
		Args:                 []string{"eslint", "--format", "json", "--cache", "."},
		Timeout:              5 * time.Minute,
		AcceptExitCodes:      []int{0, 1},
		CacheFile:            ".eslintcache",
		Rules:                DefaultRules(),
		DomainBuckets:        DefaultDomainBuckets(),
		ExplicitAnyThreshold: DefaultExplicitAnyThreshold,
	}
}

// Message is one finding in the tool's JSON report
type Message struct {
	RuleID   string `json:"ruleId"`
	Severity int    `json:"severity"`
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Fatal    bool   `json:"fatal,omitempty"`
}

// FileResult is the tool's report for one file
type FileResult struct {
	FilePath string    `json:"filePath"`
	Messages []Message `json:"messages"`
}

// ParseResults decodes the tool's JSON array output
func ParseResults(data []byte) ([]FileResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("expected a JSON array")
	}
	var results []FileResult
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// Collector runs the static-analysis tool and summarizes its findings
type Collector struct {
	runner process.Runner
	config CollectorConfig
	logger *log.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewCollector creates a collector running the tool through runner
func NewCollector(runner process.Runner, config CollectorConfig, logger *log.Logger) *Collector {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	if config.Rules == nil {
		config.Rules = DefaultRules()
	}
	if config.ExplicitAnyThreshold <= 0 {
		config.ExplicitAnyThreshold = DefaultExplicitAnyThreshold
	}
	if len(config.AcceptExitCodes) == 0 {
		config.AcceptExitCodes = []int{0}
	}
	return &Collector{
		runner: runner,
		config: config,
		logger: logger,
		tracer: otel.Tracer("github.com/felixgeelhaar/sweep/internal/quality"),
		now:    time.Now,
	}
}

// Collect runs the tool and returns a snapshot. It never fails: when the tool
// cannot run or its output is unreadable the sentinel snapshot is returned.
func (c *Collector) Collect(ctx context.Context) (m QualityMetrics) {
	ctx, span := c.tracer.Start(ctx, "quality.collect",
		trace.WithAttributes(attribute.String("tool.command", c.config.Command)))
	defer span.End()

	ts := c.now()
	defer func() {
		if r := recover(); r != nil {
			toolErr := errors.NewMetricsToolError(fmt.Errorf("panic: %v", r))
			c.logger.WithError(toolErr).Error("static analysis collection aborted")
			m = SentinelMetrics(ts, toolErr.Summary())
		}
	}()

	cmd := process.Command{
		Name:    c.config.Command,
		Args:    c.config.Args,
		Dir:     c.config.Dir,
		Timeout: c.config.Timeout,
	}

	out, err := c.runner.Run(ctx, cmd)
	if err != nil {
		code, exitOut, exited := process.ExitCodeOf(err)
		if !exited || !c.accepts(code) {
			toolErr := errors.NewMetricsToolError(err)
			c.logger.WithError(toolErr).Warn("static analysis failed; recording sentinel metrics")
			span.SetAttributes(attribute.Bool("quality.sentinel", true))
			return SentinelMetrics(ts, toolErr.Summary())
		}
		out = exitOut
	}

	results, err := ParseResults([]byte(out.Stdout))
	if err != nil {
		parseErr := errors.NewMetricsUnparsableError(err)
		c.logger.WithError(parseErr).Warn("static analysis output unreadable; recording sentinel metrics")
		span.SetAttributes(attribute.Bool("quality.sentinel", true))
		return SentinelMetrics(ts, parseErr.Summary())
	}

	m = Aggregate(results, c.config.Rules, c.config.DomainBuckets)
	m.Timestamp = ts
	m.PerformanceMetrics = PerformanceMetrics{
		LintingDuration: out.Duration.Milliseconds(),
		MemoryUsage:     float64(out.MaxRSSBytes) / (1024 * 1024),
		FilesProcessed:  len(results),
		CacheHitRate:    c.cacheHitRate(results),
	}
	m.QualityScore = Score(m, c.config.ExplicitAnyThreshold)

	span.SetAttributes(
		attribute.Int("quality.total_issues", m.TotalIssues),
		attribute.Float64("quality.score", m.QualityScore),
	)
	c.logger.Info("quality metrics collected",
		"total_issues", m.TotalIssues,
		"errors", m.Errors,
		"parser_errors", m.ParserErrors,
		"score", m.QualityScore,
		"files", len(results))
	return m
}

func (c *Collector) accepts(code int) bool {
	for _, ok := range c.config.AcceptExitCodes {
		if code == ok {
			return true
		}
	}
	return false
}

// cacheHitRate is the share of files untouched since the cache file was written
func (c *Collector) cacheHitRate(results []FileResult) float64 {
	if c.config.CacheFile == "" || len(results) == 0 {
		return 0
	}
	cachePath := c.config.CacheFile
	if !filepath.IsAbs(cachePath) && c.config.Dir != "" {
		cachePath = filepath.Join(c.config.Dir, cachePath)
	}
	cacheInfo, err := os.Stat(cachePath)
	if err != nil {
		return 0
	}

	hits := 0
	for _, r := range results {
		path := r.FilePath
		if !filepath.IsAbs(path) && c.config.Dir != "" {
			path = filepath.Join(c.config.Dir, path)
		}
		info, err := os.Stat(path)
		if err == nil && !info.ModTime().After(cacheInfo.ModTime()) {
			hits++
		}
	}
	return float64(hits) / float64(len(results))
}

// Aggregate counts findings. A fatal message, or a severity 2 message without
// a rule ID, is a parser error.
func Aggregate(results []FileResult, rules map[string]Counter, buckets map[string][]string) QualityMetrics {
	m := QualityMetrics{DomainSpecificIssues: make(map[string]int, len(buckets))}
	for name := range buckets {
		m.DomainSpecificIssues[name] = 0
	}

	bucketNames := make([]string, 0, len(buckets))
	for name := range buckets {
		bucketNames = append(bucketNames, name)
	}
	sort.Strings(bucketNames)

	for _, file := range results {
		for _, msg := range file.Messages {
			switch msg.Severity {
			case 2:
				m.Errors++
			case 1:
				m.Warnings++
			}

			if msg.Fatal || (msg.RuleID == "" && msg.Severity == 2) {
				m.ParserErrors++
				continue
			}
			switch rules[msg.RuleID] {
			case CounterParserErrors:
				m.ParserErrors++
			case CounterExplicitAny:
				m.ExplicitAnyErrors++
			case CounterImportOrder:
				m.ImportOrderIssues++
			case CounterUnusedVariables:
				m.UnusedVariables++
			case CounterReactHooks:
				m.ReactHooksIssues++
			case CounterConsoleStatements:
				m.ConsoleStatements++
			}
		}

		if len(file.Messages) == 0 {
			continue
		}
		normalized := filepath.ToSlash(file.FilePath)
		for _, name := range bucketNames {
			for _, substr := range buckets[name] {
				if strings.Contains(normalized, substr) {
					m.DomainSpecificIssues[name] += len(file.Messages)
					break
				}
			}
		}
	}

	m.TotalIssues = m.Errors + m.Warnings
	return m
}
