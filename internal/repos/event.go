package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/types"
)

// EventRepo is the append-only audit trail. There is deliberately no update
// or delete surface; rows go away only through the user FK cascade.
type EventRepo interface {
	Append(ctx context.Context, tx *gorm.DB, event *types.Event) error
	ListForProject(ctx context.Context, tx *gorm.DB, userID uuid.UUID, projectName string) ([]*types.Event, error)
}

type eventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepo(db *gorm.DB, baseLog *logger.Logger) EventRepo {
	return &eventRepo{db: db, log: baseLog.With("repo", "EventRepo")}
}

func (r *eventRepo) Append(ctx context.Context, tx *gorm.DB, event *types.Event) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	r.log.Debug("Logging event", "type", string(event.Type), "project_name", event.ProjectName)
	return transaction.WithContext(ctx).Create(event).Error
}

func (r *eventRepo) ListForProject(ctx context.Context, tx *gorm.DB, userID uuid.UUID, projectName string) ([]*types.Event, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Event
	if userID == uuid.Nil || projectName == "" {
		return results, nil
	}

	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND project_name = ?", userID, projectName).
		Order("timestamp ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
