package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of facts the orchestrator records. Adding a
// value here must be matched everywhere events are consumed; StatusForEvent
// below fails loudly on anything it does not know.
type EventType string

const (
	EventProjectCreated    EventType = "PROJECT_CREATED"
	EventValidationFailed  EventType = "VALIDATION_FAILED"
	EventValidationSuccess EventType = "VALIDATION_SUCCESS"
	EventAnalysisStarted   EventType = "ANALYSIS_STARTED"
	EventAnalysisCompleted EventType = "ANALYSIS_COMPLETED"
	EventAnalysisFailed    EventType = "ANALYSIS_FAILED"
)

func (t EventType) Valid() bool {
	switch t {
	case EventProjectCreated, EventValidationFailed, EventValidationSuccess,
		EventAnalysisStarted, EventAnalysisCompleted, EventAnalysisFailed:
		return true
	}
	return false
}

// StatusForEvent maps a terminal-or-progress event to the status a polling
// client sees. Non-workflow events map to in_progress.
func StatusForEvent(t EventType) (Status, error) {
	switch t {
	case EventProjectCreated, EventValidationSuccess, EventAnalysisStarted:
		return StatusInProgress, nil
	case EventAnalysisCompleted:
		return StatusCompleted, nil
	case EventValidationFailed, EventAnalysisFailed:
		return StatusFailed, nil
	}
	return "", fmt.Errorf("unknown event type %q", string(t))
}

// Event is an immutable fact about one (user, project) pair. Rows are only
// ever appended, never updated or deleted, except through the cascading FK
// when a user is removed.
type Event struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	ProjectName string    `gorm:"not null;index;column:project_name" json:"project_name"`
	Type        EventType `gorm:"type:varchar(18);not null;column:event" json:"event"`
	Timestamp   time.Time `gorm:"not null;column:timestamp" json:"timestamp"`
	Content     string    `gorm:"column:content" json:"content,omitempty"`
}

func (Event) TableName() string { return "event" }
