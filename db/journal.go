package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oxhq/treelens/models"
)

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Journal records runs and the per-file edits they make
type Journal struct {
	db  *gorm.DB
	now func() time.Time
}

// NewJournal wraps a migrated database.
func NewJournal(db *gorm.DB) *Journal {
	return &Journal{db: db, now: time.Now}
}

// StartRun stores run, assigning its ID and start time when unset.
func (j *Journal) StartRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = j.now()
	}
	if err := j.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// RecordEdit stores an edit of a started run.
func (j *Journal) RecordEdit(ctx context.Context, edit *models.Edit) error {
	if edit.RunID == "" {
		return fmt.Errorf("record edit: run ID is required")
	}
	if edit.ID == "" {
		edit.ID = uuid.NewString()
	}
	if err := j.db.WithContext(ctx).Create(edit).Error; err != nil {
		return fmt.Errorf("record edit: %w", err)
	}
	return nil
}

// FinishRun stamps the end time and saves the run's statistics.
func (j *Journal) FinishRun(ctx context.Context, run *models.Run) error {
	ended := j.now()
	run.EndedAt = &ended

	res := j.db.WithContext(ctx).Model(&models.Run{}).Where("id = ?", run.ID).Updates(map[string]any{
		"files_scanned":  run.FilesScanned,
		"files_modified": run.FilesModified,
		"files_failed":   run.FilesFailed,
		"ended_at":       ended,
	})
	if res.Error != nil {
		return fmt.Errorf("finish run: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("finish run %s: %w", run.ID, ErrRunNotFound)
	}
	return nil
}

// Runs returns the most recent runs first. A limit of zero or less returns all runs.
func (j *Journal) Runs(ctx context.Context, limit int) ([]models.Run, error) {
	var runs []models.Run
	q := j.db.WithContext(ctx).Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Run loads one run with its edits.
func (j *Journal) Run(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	err := j.db.WithContext(ctx).
		Preload("Edits", func(db *gorm.DB) *gorm.DB { return db.Order("file ASC") }).
		First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	return &run, nil
}

// Edits returns the edits of a run ordered by file.
func (j *Journal) Edits(ctx context.Context, runID string) ([]models.Edit, error) {
	var edits []models.Edit
	if err := j.db.WithContext(ctx).Where("run_id = ?", runID).Order("file ASC").Find(&edits).Error; err != nil {
		return nil, fmt.Errorf("list edits: %w", err)
	}
	return edits, nil
}

// Prune deletes all but the keep most recent runs, with their edits. It returns the number
// of runs removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}

	var removed int64
	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Run{}).
			Order("started_at DESC").Order("id DESC").
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) <= keep {
			return nil
		}
		ids = ids[keep:]
		if err := tx.Where("run_id IN ?", ids).Delete(&models.Edit{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Run{})
		removed = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}
