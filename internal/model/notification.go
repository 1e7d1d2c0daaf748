package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationLevel string

const (
	NotificationSuccess NotificationLevel = "success"
	NotificationInfo    NotificationLevel = "info"
	NotificationWarning NotificationLevel = "warning"
	NotificationError   NotificationLevel = "error"
)

// Notification is user-visible feedback about a mutation.
type Notification struct {
	ID         uuid.UUID         `json:"id"`
	Level      NotificationLevel `json:"level"`
	Title      string            `json:"title"`
	Message    string            `json:"message"`
	EntityType string            `json:"entityType,omitempty"`
	EntityID   uuid.UUID         `json:"entityId,omitempty"`
	Recipient  string            `json:"recipient,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}
