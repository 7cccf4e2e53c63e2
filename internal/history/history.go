// Package history keeps an optional SQLite ledger of past runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"checkin/internal/collector"
	"checkin/internal/logging"
)

var ErrClosed = errors.New("history store closed")

// RunRecord is one persisted run.
type RunRecord struct {
	ID             uint   `gorm:"primaryKey"`
	RunID          string `gorm:"uniqueIndex;size:36"`
	StartedAt      time.Time
	FinishedAt     time.Time
	Total          int
	Succeeded      int
	Failed         int
	AllSucceeded   bool
	SuccessfulDays int
	Tasks          []TaskRecord `gorm:"foreignKey:RunID;references:RunID;constraint:OnDelete:CASCADE"`
}

// TaskRecord is one task result within a run.
type TaskRecord struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index;size:36"`
	Position   int
	Name       string
	Success    bool
	DurationMs int64
	Message    string
}

// Store writes and reads run records.
type Store struct {
	db  *gorm.DB
	log logging.Logger
}

// Open opens (creating if needed) the database at dsn and migrates it.
func Open(dsn string, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&RunRecord{}, &TaskRecord{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Record stores a finished run with its task results.
func (s *Store) Record(ctx context.Context, r *collector.Report) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	rec := RunRecord{
		RunID:          r.RunID,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		Total:          r.Summary.Total,
		Succeeded:      r.Summary.Succeeded,
		Failed:         r.Summary.Failed,
		AllSucceeded:   r.Summary.AllSucceeded,
		SuccessfulDays: r.SuccessfulDays,
	}
	for i, res := range r.Results {
		rec.Tasks = append(rec.Tasks, TaskRecord{
			RunID:      r.RunID,
			Position:   i,
			Name:       res.Name,
			Success:    res.Success,
			DurationMs: res.Duration.Milliseconds(),
			Message:    res.Message,
		})
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record run %s: %w", r.RunID, err)
	}
	s.log.Debug("run recorded", "runId", r.RunID, "tasks", len(rec.Tasks))
	return nil
}

// Recent returns up to limit runs, newest first, with their tasks in
// completion order.
func (s *Store) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	var runs []RunRecord
	q := s.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
