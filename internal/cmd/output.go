package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/sweep/internal/alert"
	"github.com/felixgeelhaar/sweep/internal/campaign"
	"github.com/felixgeelhaar/sweep/internal/monitor"
	"github.com/felixgeelhaar/sweep/internal/quality"
)

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// deploySummary is the output of sweep deploy
type deploySummary struct {
	Campaign    string                      `json:"campaign" yaml:"campaign"`
	RunID       string                      `json:"runId" yaml:"runId"`
	Journal     string                      `json:"journal,omitempty" yaml:"journal,omitempty"`
	Success     bool                        `json:"success" yaml:"success"`
	FailedPhase string                      `json:"failedPhase,omitempty" yaml:"failedPhase,omitempty"`
	Skipped     int                         `json:"skippedPhases" yaml:"skippedPhases"`
	Results     []campaign.DeploymentResult `json:"results" yaml:"results"`
}

func newDeploySummary(name, runID, journalPath string, phases int, results []campaign.DeploymentResult) deploySummary {
	s := deploySummary{
		Campaign: name,
		RunID:    runID,
		Journal:  journalPath,
		Success:  campaign.AllSucceeded(results, phases),
		Skipped:  phases - len(results),
		Results:  results,
	}
	if n := len(results); n > 0 && !results[n-1].Success {
		s.FailedPhase = results[n-1].Phase
	}
	return s
}

func (s deploySummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("Campaign "+s.Campaign), dimStyle.Render("run "+s.RunID))

	for _, r := range s.Results {
		mark := okStyle.Render("✓")
		if !r.Success {
			mark = failStyle.Render("✗")
		}
		fmt.Fprintf(&b, "  %s %-20s %-12s %d/%d tasks  %s\n",
			mark, r.Phase, r.State, r.TasksSucceeded, r.TasksExecuted, r.Duration.Round(time.Millisecond))
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "      %s %s\n", failStyle.Render("error:"), e)
		}
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "      %s %s\n", warnStyle.Render("warning:"), w)
		}
		if r.RollbackPerformed {
			fmt.Fprintf(&b, "      %s\n", warnStyle.Render("rollback performed"))
		}
	}
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(fmt.Sprintf("%d phase(s) not run", s.Skipped)))
	}
	if s.Journal != "" {
		fmt.Fprintf(&b, "Journal: %s\n", s.Journal)
	}

	if s.Success {
		b.WriteString(okStyle.Render("Deployment succeeded"))
	} else {
		b.WriteString(failStyle.Render("Deployment failed"))
	}
	b.WriteString("\n")
	return b.String()
}

// phaseOverview describes one phase in sweep validate output
type phaseOverview struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Prerequisites []string `json:"prerequisites,omitempty" yaml:"prerequisites,omitempty"`
	Tasks         []string `json:"tasks" yaml:"tasks"`
	RollbackTasks []string `json:"rollbackTasks,omitempty" yaml:"rollbackTasks,omitempty"`
	Checks        []string `json:"checks,omitempty" yaml:"checks,omitempty"`
	Criteria      []string `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

// campaignOverview is the output of sweep validate
type campaignOverview struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	WorkDir     string          `json:"workDir" yaml:"workDir"`
	Fingerprint string          `json:"fingerprint" yaml:"fingerprint"`
	Phases      []phaseOverview `json:"phases" yaml:"phases"`
	Warnings    []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newCampaignOverview(c *campaign.Campaign) campaignOverview {
	o := campaignOverview{
		Name:        c.Name,
		Description: c.Description,
		WorkDir:     c.WorkDir,
		Fingerprint: c.Fingerprint,
		Warnings:    c.Warnings,
	}
	for _, p := range c.Phases {
		po := phaseOverview{ID: p.ID, Name: p.Name, Prerequisites: p.Prerequisites}
		for _, t := range p.Tasks {
			po.Tasks = append(po.Tasks, taskLabel(t))
		}
		for _, t := range p.RollbackTasks {
			po.RollbackTasks = append(po.RollbackTasks, taskLabel(t))
		}
		for _, ch := range p.ValidationChecks {
			po.Checks = append(po.Checks, fmt.Sprintf("%s (%s)", ch.ID, ch.Kind))
		}
		po.Criteria = criteriaNames(p.SuccessCriteria)
		o.Phases = append(o.Phases, po)
	}
	return o
}

func taskLabel(t campaign.Task) string {
	label := t.ID
	if t.Critical {
		label += " [critical]"
	}
	if t.Retries > 0 {
		label += fmt.Sprintf(" [retries=%d]", t.Retries)
	}
	return label
}

func criteriaNames(c campaign.SuccessCriteria) []string {
	var names []string
	if c.BuildSuccess {
		names = append(names, "buildSuccess")
	}
	if c.TestsPass {
		names = append(names, "testsPass")
	}
	if c.LintingPass {
		names = append(names, "lintingPass")
	}
	if c.ConfigurationValid {
		names = append(names, "configurationValid")
	}
	for _, cc := range c.CustomChecks {
		names = append(names, "custom:"+cc.Name)
	}
	return names
}

func (o campaignOverview) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", okStyle.Render("✓"), titleStyle.Render("Campaign "+o.Name+" is valid"))
	if o.Description != "" {
		fmt.Fprintf(&b, "  %s\n", o.Description)
	}
	fmt.Fprintf(&b, "  workDir: %s\n", o.WorkDir)
	fmt.Fprintf(&b, "  fingerprint: %s\n", dimStyle.Render(o.Fingerprint))

	for i, p := range o.Phases {
		fmt.Fprintf(&b, "\n%d. %s", i+1, titleStyle.Render(p.ID))
		if p.Name != "" && p.Name != p.ID {
			fmt.Fprintf(&b, " (%s)", p.Name)
		}
		b.WriteString("\n")
		writeList(&b, "prerequisites", p.Prerequisites)
		writeList(&b, "tasks", p.Tasks)
		writeList(&b, "rollback", p.RollbackTasks)
		writeList(&b, "checks", p.Checks)
		writeList(&b, "criteria", p.Criteria)
	}

	for _, w := range o.Warnings {
		fmt.Fprintf(&b, "%s %s\n", warnStyle.Render("warning:"), w)
	}
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "   %-14s %s\n", label+":", strings.Join(items, ", "))
}

// monitorSummary is the output of one sweep monitor run
type monitorSummary struct {
	Trigger    string                     `json:"trigger" yaml:"trigger"`
	Status     quality.Status             `json:"status" yaml:"status"`
	Metrics    quality.QualityMetrics     `json:"metrics" yaml:"metrics"`
	Regression quality.RegressionAnalysis `json:"regression" yaml:"regression"`
	Alerts     []quality.Alert            `json:"alerts" yaml:"alerts"`
	Delivery   []alert.ChannelResult      `json:"delivery" yaml:"delivery"`
	Report     string                     `json:"report,omitempty" yaml:"report,omitempty"`
	Error      string                     `json:"error,omitempty" yaml:"error,omitempty"`
}

func newMonitorSummary(trigger, reportPath string, res monitor.Result, err error) monitorSummary {
	s := monitorSummary{
		Trigger:    trigger,
		Status:     res.Report.Status,
		Metrics:    res.Metrics,
		Regression: res.Analysis,
		Alerts:     res.Alerts,
		Delivery:   res.Dispatch.Results,
		Report:     reportPath,
	}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

func (s monitorSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s\n",
		titleStyle.Render("Quality"), statusStyle(s.Status).Render(string(s.Status)),
		dimStyle.Render(s.Metrics.Timestamp.Format(time.RFC3339)))

	if s.Metrics.IsSentinel() {
		fmt.Fprintf(&b, "  metrics unavailable: %s\n", s.Metrics.Failure)
	} else {
		fmt.Fprintf(&b, "  score %.1f  issues %d  errors %d  warnings %d  parser errors %d\n",
			s.Metrics.QualityScore, s.Metrics.TotalIssues, s.Metrics.Errors, s.Metrics.Warnings, s.Metrics.ParserErrors)
	}

	if s.Regression.Detected {
		fmt.Fprintf(&b, "  %s (%s): %s\n",
			failStyle.Render("regression"), s.Regression.Severity, strings.Join(s.Regression.AffectedMetrics, ", "))
	}
	for _, a := range s.Alerts {
		fmt.Fprintf(&b, "  %s %s: %s\n", severityStyle(a.Severity).Render("["+strings.ToUpper(string(a.Severity))+"]"), a.Metric, a.Message)
	}
	for _, d := range s.Delivery {
		if d.Error != "" {
			fmt.Fprintf(&b, "  %s channel %s: %s\n", warnStyle.Render("delivery failed"), d.Channel, d.Error)
		}
	}
	if s.Report != "" {
		fmt.Fprintf(&b, "  report: %s\n", s.Report)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "  %s %s\n", failStyle.Render("error:"), s.Error)
	}
	return b.String()
}

func statusStyle(s quality.Status) lipgloss.Style {
	switch s {
	case quality.StatusHealthy:
		return okStyle
	case quality.StatusDegraded:
		return warnStyle
	default:
		return failStyle
	}
}

func severityStyle(s quality.Severity) lipgloss.Style {
	switch s {
	case quality.SeverityCritical, quality.SeverityError:
		return failStyle
	case quality.SeverityWarning:
		return warnStyle
	default:
		return dimStyle
	}
}

// historyList is the output of sweep history, oldest first
type historyList []quality.QualityMetrics

func (h historyList) String() string {
	if len(h) == 0 {
		return "No quality history recorded yet. Run 'sweep monitor' first."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-20s  %6s  %6s  %6s  %8s  %s\n", "TIMESTAMP", "SCORE", "ISSUES", "ERRORS", "WARNINGS", "REGRESSION")
	for _, m := range h {
		ts := m.Timestamp.Local().Format("2006-01-02 15:04:05")
		if m.IsSentinel() {
			fmt.Fprintf(&b, "%-20s  %s\n", ts, warnStyle.Render("unavailable: "+m.Failure))
			continue
		}
		regression := ""
		if m.RegressionDetected {
			regression = failStyle.Render("yes")
		}
		fmt.Fprintf(&b, "%-20s  %6.1f  %6d  %6d  %8d  %s\n",
			ts, m.QualityScore, m.TotalIssues, m.Errors, m.Warnings, regression)
	}

	if avg, ok := quality.Trend(h, 5); ok {
		fmt.Fprintf(&b, "\nRecent average score: %.1f\n", avg)
	}
	return b.String()
}
