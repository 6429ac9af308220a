package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/ender-accounts-be/internal/auth"
	"github.com/isdelr/ender-accounts-be/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EventRecorder receives audit events for successful user mutations.
// Recording never fails the mutation that triggered it.
type EventRecorder interface {
	Record(ctx context.Context, event models.Event)
}

// EventStore persists audit events.
type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	Recent(ctx context.Context, limit int) ([]models.Event, error)
}

// Publisher pushes events to live subscribers.
type Publisher interface {
	Publish(event models.Event)
}

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	EventRecorder
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
}

// EventService stores audit events and fans them out to the change feed.
type EventService struct {
	store     EventStore
	publisher Publisher
}

// NewEventService creates a new EventService. publisher may be nil.
func NewEventService(store EventStore, publisher Publisher) *EventService {
	return &EventService{store: store, publisher: publisher}
}

// Record persists an event and publishes it.
func (s *EventService) Record(ctx context.Context, event models.Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if err := s.store.Create(ctx, &event); err != nil {
		log.Warn().Err(err).Str("type", event.Type).Uint("user_id", event.UserID).Msg("Failed to record event")
	}
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// GetRecentEvents retrieves the most recent events for an authenticated caller.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if _, err := auth.RequireUser(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := s.store.Recent(ctx, limit)
	if err != nil {
		return nil, internal(err, "failed to retrieve events")
	}
	return events, nil
}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, models.Event) {}
