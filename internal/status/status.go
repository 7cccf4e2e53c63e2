// Package status persists the cross-run check-in state: the cumulative
// successful-days counter, the last run's outcome and the derived rewards.
package status

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"checkin/internal/logging"
)

const (
	keySuccessfulDays = "successful_days"
	keyLastRunStatus  = "last_run_status"
	keyLastRunTime    = "last_run_time"

	statusFileMode  = 0o644
	tempFilePattern = ".status-*.json"
)

// ErrInvalidDocument is returned by Save when the encoded status would not be
// valid JSON. The file on disk is left untouched.
var ErrInvalidDocument = errors.New("status document is not valid JSON")

// Reward is one derived field written next to the counter.
type Reward struct {
	Name  string
	Value any
}

// Status is the persisted state. The zero value is a fresh install.
type Status struct {
	SuccessfulDays int
	LastRunStatus  string
	LastRunTime    time.Time
	Rewards        []Reward

	// raw is the document as loaded; fields this package does not own are
	// carried over on save.
	raw []byte
}

// RecordRun applies a finished run: the counter grows by one only when the
// run fully succeeded. It never decreases.
func (s Status) RecordRun(allSucceeded bool, statusText string, at time.Time) Status {
	if allSucceeded {
		s.SuccessfulDays++
	}
	s.LastRunStatus = statusText
	s.LastRunTime = at
	return s
}

// Store reads and atomically rewrites the status file.
type Store struct {
	path string
	log  logging.Logger
}

func NewStore(path string, log logging.Logger) *Store {
	if log == nil {
		log = logging.NewNop()
	}
	return &Store{path: path, log: log}
}

func (s *Store) Path() string { return s.path }

// Load reads the status file. A missing or corrupt file yields the zero
// Status and is logged. Any other read failure is returned with the zero
// Status; callers must not Save over a file they could not read.
func (s *Store) Load() (Status, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("status file not found, starting from zero", "file", s.path)
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("read status file: %w", err)
	}
	if !gjson.ValidBytes(data) || !gjson.ParseBytes(data).IsObject() {
		s.log.Warn("status file corrupt, starting from zero", "file", s.path)
		return Status{}, nil
	}

	doc := gjson.ParseBytes(data)
	st := Status{
		SuccessfulDays: int(doc.Get(keySuccessfulDays).Int()),
		LastRunStatus:  doc.Get(keyLastRunStatus).String(),
		raw:            data,
	}
	if st.SuccessfulDays < 0 {
		st.SuccessfulDays = 0
	}
	if ts := doc.Get(keyLastRunTime).String(); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			st.LastRunTime = t
		}
	}
	s.log.Debug("status loaded", "file", s.path, "successfulDays", st.SuccessfulDays)
	return st, nil
}

// Save writes st through a temp file in the same directory and a rename, so
// readers never see a partial file. The temp file is removed on failure.
func (s *Store) Save(st Status) error {
	data, err := encode(st)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp status file: %w", err)
	}
	if err := tempFile.Chmod(statusFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp status file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp status file: %w", err)
	}
	if err := os.Rename(tempName, s.path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}
	cleanup = false

	s.log.Debug("status saved", "file", s.path, "successfulDays", st.SuccessfulDays)
	return nil
}

func encode(st Status) ([]byte, error) {
	doc := []byte("{}")
	if len(st.raw) > 0 {
		doc = append([]byte(nil), st.raw...)
	}

	var err error
	for _, r := range st.Rewards {
		if f, ok := r.Value.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
			return nil, fmt.Errorf("reward %q: %w", r.Name, ErrInvalidDocument)
		}
		if doc, err = sjson.SetBytes(doc, r.Name, r.Value); err != nil {
			return nil, fmt.Errorf("reward %q: %w", r.Name, err)
		}
	}

	if doc, err = sjson.SetBytes(doc, keySuccessfulDays, st.SuccessfulDays); err != nil {
		return nil, err
	}
	if doc, err = sjson.SetBytes(doc, keyLastRunStatus, st.LastRunStatus); err != nil {
		return nil, err
	}
	lastRun := ""
	if !st.LastRunTime.IsZero() {
		lastRun = st.LastRunTime.Format(time.RFC3339)
	}
	if doc, err = sjson.SetBytes(doc, keyLastRunTime, lastRun); err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(doc) {
		return nil, ErrInvalidDocument
	}
	return pretty.PrettyOptions(doc, &pretty.Options{Indent: "  ", Width: 80}), nil
}
