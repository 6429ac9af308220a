package database

import (
	"context"
	"fmt"

	"github.com/isdelr/ender-accounts-be/internal/models"
	"gorm.io/gorm"
)

// EventStore persists audit events through GORM.
type EventStore struct {
	db *gorm.DB
}

// NewEventStore creates a new EventStore.
func NewEventStore(db *gorm.DB) *EventStore {
	return &EventStore{db: db}
}

// Create inserts an event.
func (s *EventStore) Create(ctx context.Context, event *models.Event) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Recent returns the most recent events, newest first.
func (s *EventStore) Recent(ctx context.Context, limit int) ([]models.Event, error) {
	events := []models.Event{}
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("id").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}
