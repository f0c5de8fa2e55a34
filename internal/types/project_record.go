package types

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Status is the read-model state of one analysis. Transitions only run
// in_progress -> completed or in_progress -> failed.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ProjectRecord is the single mutable row per analysis that clients poll.
// Invariant: Result is non-null exactly when Status is completed.
type ProjectRecord struct {
	ID        string         `gorm:"type:varchar(32);primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Status    Status         `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	Result    datatypes.JSON `gorm:"type:jsonb" json:"result,omitempty"`
}

func (ProjectRecord) TableName() string { return "project_record" }

// SetResult attaches a completed analysis and flips the record to completed.
func (pr *ProjectRecord) SetResult(ar *AnalysisResult) error {
	b, err := json.Marshal(ar)
	if err != nil {
		return err
	}
	pr.Result = datatypes.JSON(b)
	pr.Status = StatusCompleted
	return nil
}

// AnalysisResult decodes the stored result, or nil when the record has none.
func (pr *ProjectRecord) AnalysisResult() (*AnalysisResult, error) {
	if len(pr.Result) == 0 {
		return nil, nil
	}
	var ar AnalysisResult
	if err := json.Unmarshal(pr.Result, &ar); err != nil {
		return nil, fmt.Errorf("decode project record result: %w", err)
	}
	return &ar, nil
}
