package campaign

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/sweep/internal/errors"
)

// JournalEntry is one timestamped event of a deployment run
type JournalEntry struct {
	Time    time.Time `json:"time"`
	Phase   string    `json:"phase"`
	Event   string    `json:"event"`
	Message string    `json:"message"`
}

// Journal is the append-only log of one deployment run. It is owned by the
// caller that passed it to Manager.Deploy and is safe for concurrent reads.
type Journal struct {
	mu sync.Mutex

	runID       string
	campaign    string
	fingerprint string
	startedAt   time.Time
	finishedAt  time.Time
	entries     []JournalEntry
	results     []DeploymentResult
}

// NewJournal creates a journal with a fresh run ID
func NewJournal(campaign, fingerprint string) *Journal {
	return &Journal{
		runID:       uuid.NewString(),
		campaign:    campaign,
		fingerprint: fingerprint,
	}
}

// RunID returns the unique ID of the run
func (j *Journal) RunID() string {
	return j.runID
}

// Entries returns a copy of the recorded events
func (j *Journal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]JournalEntry(nil), j.entries...)
}

// Results returns a copy of the phase results in execution order
func (j *Journal) Results() []DeploymentResult {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]DeploymentResult(nil), j.results...)
}

func (j *Journal) record(phase, event, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, JournalEntry{
		Time:    time.Now(),
		Phase:   phase,
		Event:   event,
		Message: message,
	})
}

func (j *Journal) start() {
	j.mu.Lock()
	j.startedAt = time.Now()
	j.mu.Unlock()
	j.record("", "deployment_started", j.campaign)
}

func (j *Journal) finish(success bool) {
	j.mu.Lock()
	j.finishedAt = time.Now()
	j.mu.Unlock()
	j.record("", "deployment_finished", fmt.Sprintf("success=%t", success))
}

func (j *Journal) addResult(r DeploymentResult) {
	j.mu.Lock()
	j.results = append(j.results, r)
	j.mu.Unlock()
}

// PhaseTransition implements Observer
func (j *Journal) PhaseTransition(phaseID string, from, to PhaseState) {
	j.record(phaseID, "transition", fmt.Sprintf("%s -> %s", from, to))
}

// TaskCompleted implements Observer
func (j *Journal) TaskCompleted(phaseID string, task Task, attempts int, err error, d time.Duration) {
	msg := fmt.Sprintf("task %s succeeded after %d attempt(s) in %s", task.ID, attempts, d.Round(time.Millisecond))
	if err != nil {
		msg = fmt.Sprintf("task %s failed after %d attempt(s): %v", task.ID, attempts, err)
	}
	j.record(phaseID, "task", msg)
}

// CheckCompleted implements Observer
func (j *Journal) CheckCompleted(phaseID string, check ValidationCheck, result ValidationResult) {
	msg := fmt.Sprintf("check %s passed", check.ID)
	if !result.Success {
		msg = fmt.Sprintf("check %s failed: %s", check.ID, result.Error)
	}
	j.record(phaseID, "check", msg)
}

// PhaseCompleted implements Observer
func (j *Journal) PhaseCompleted(result DeploymentResult) {
	j.record(result.Phase, "phase_completed", fmt.Sprintf("success=%t rollback=%t", result.Success, result.RollbackPerformed))
}

// journalFile is the persisted form of a Journal
type journalFile struct {
	RunID       string             `json:"runId"`
	Campaign    string             `json:"campaign"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	StartedAt   time.Time          `json:"startedAt"`
	FinishedAt  time.Time          `json:"finishedAt"`
	Success     bool               `json:"success"`
	Results     []DeploymentResult `json:"results"`
	Entries     []JournalEntry     `json:"entries"`
}

// Save writes the journal as <dir>/<run-id>.json and returns the path
func (j *Journal) Save(dir string) (string, error) {
	j.mu.Lock()
	file := journalFile{
		RunID:       j.runID,
		Campaign:    j.campaign,
		Fingerprint: j.fingerprint,
		StartedAt:   j.startedAt,
		FinishedAt:  j.finishedAt,
		Results:     append([]DeploymentResult(nil), j.results...),
		Entries:     append([]JournalEntry(nil), j.entries...),
	}
	j.mu.Unlock()

	file.Success = len(file.Results) > 0
	for _, r := range file.Results {
		file.Success = file.Success && r.Success
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, "create journal directory", err)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, "marshal journal", err)
	}

	path := filepath.Join(dir, j.runID+".json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, "write journal", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", errors.Wrap(errors.ErrCodeFileWriteFailed, "rename journal", err)
	}
	return path, nil
}
