package models

import "time"

// Event types recorded for user mutations.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// Event represents an audited change to a user account.
type Event struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Type      string    `json:"type" gorm:"size:32;not null;index"` // e.g., "user.created"
	UserID    uint      `json:"userId" gorm:"not null;index"`
	ActorID   *uint     `json:"actorId,omitempty"` // Nil for anonymous calls such as registration
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt" gorm:"autoCreateTime;index"`
}
