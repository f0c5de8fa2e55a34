package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/repos"
	"github.com/cassiama/LicenseGuard-API/internal/types"
)

// EventService records and lists the workflow facts for a (user, project)
// pair. Events are constructed complete here, timestamped at emission.
type EventService interface {
	Add(ctx context.Context, userID uuid.UUID, projectName string, eventType types.EventType, content string) error
	ListFor(ctx context.Context, userID uuid.UUID, projectName string) ([]*types.Event, error)
}

type eventService struct {
	log       *logger.Logger
	eventRepo repos.EventRepo
	now       func() time.Time
}

func NewEventService(log *logger.Logger, eventRepo repos.EventRepo) EventService {
	return &eventService{
		log:       log.With("service", "EventService"),
		eventRepo: eventRepo,
		now:       time.Now,
	}
}

func (es *eventService) Add(ctx context.Context, userID uuid.UUID, projectName string, eventType types.EventType, content string) error {
	if !eventType.Valid() {
		return fmt.Errorf("refusing to record unknown event type %q", string(eventType))
	}
	event := &types.Event{
		ID:          uuid.New(),
		UserID:      userID,
		ProjectName: projectName,
		Type:        eventType,
		Timestamp:   es.now().UTC(),
		Content:     content,
	}
	return es.eventRepo.Append(ctx, nil, event)
}

func (es *eventService) ListFor(ctx context.Context, userID uuid.UUID, projectName string) ([]*types.Event, error) {
	return es.eventRepo.ListForProject(ctx, nil, userID, projectName)
}
