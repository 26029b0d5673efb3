package quality

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/sweep/internal/errors"
	"github.com/felixgeelhaar/sweep/internal/log"
)

// HistoryStore persists QualityMetrics as JSON lines. It is read wholesale
// before a monitoring run and appended to afterwards; callers serialize runs.
type HistoryStore struct {
	path   string
	logger *log.Logger
}

// NewHistoryStore creates a store backed by path
func NewHistoryStore(path string, logger *log.Logger) *HistoryStore {
	if logger == nil {
		logger = log.DefaultLogger()
	}
	return &HistoryStore{path: path, logger: logger}
}

// Path returns the backing file
func (s *HistoryStore) Path() string {
	return s.path
}

// Load returns every record in append order. A missing file is an empty
// history; unreadable lines are skipped with a warning.
func (s *HistoryStore) Load() ([]QualityMetrics, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "open quality history", err)
	}
	defer f.Close()

	var history []QualityMetrics
	r := bufio.NewReader(f)
	for line := 1; ; line++ {
		raw, readErr := r.ReadBytes('\n')
		if raw = bytes.TrimSpace(raw); len(raw) > 0 {
			var m QualityMetrics
			if err := json.Unmarshal(raw, &m); err != nil {
				s.logger.Warn("skipping unreadable history record", "path", s.path, "line", line, "error", err)
			} else {
				history = append(history, m)
			}
		}
		if readErr == io.EOF {
			return history, nil
		}
		if readErr != nil {
			return history, errors.Wrap(errors.ErrCodeFileReadFailed, "read quality history", readErr)
		}
	}
}

// Recent returns at most the last n records
func (s *HistoryStore) Recent(n int) ([]QualityMetrics, error) {
	history, err := s.Load()
	if err != nil || n <= 0 || len(history) <= n {
		return history, err
	}
	return history[len(history)-n:], nil
}

// Append adds one record
func (s *HistoryStore) Append(m QualityMetrics) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "encode quality record", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "create history directory", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "open quality history", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "append quality record", err)
	}
	return f.Sync()
}
