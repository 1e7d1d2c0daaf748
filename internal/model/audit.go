package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	ActorID    string          `json:"actor_id" db:"actor_id"`
	ActorName  string          `json:"actor_name" db:"actor_name"`
	Action     string          `json:"action" db:"action"`
	EntityType string          `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id" db:"entity_id"`
	FromStatus string          `json:"from_status,omitempty" db:"from_status"`
	ToStatus   string          `json:"to_status,omitempty" db:"to_status"`
	Version    int64           `json:"version" db:"version"`
	Changes    json.RawMessage `json:"changes,omitempty" db:"changes"`
	Metadata   json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	IPAddress  string          `json:"ip_address" db:"ip_address"`
	UserAgent  string          `json:"user_agent" db:"user_agent"`
	RequestID  string          `json:"request_id" db:"request_id"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionExport = "export"

	// Entity types
	AuditEntityOrder         = "order"
	AuditEntityStockMovement = "stock_movement"
)

// AuditLogFilter narrows audit log queries. Zero values are ignored.
type AuditLogFilter struct {
	EntityType string     `form:"entity_type"`
	EntityID   *uuid.UUID `form:"-"`
	ActorID    string     `form:"actor_id"`
	Action     string     `form:"action"`
	From       *time.Time `form:"from"`
	To         *time.Time `form:"to"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

type AggregateStats struct {
	TotalLogs    int64          `json:"total_logs"`
	ActionCounts map[string]int `json:"action_counts"`
	EntityCounts map[string]int `json:"entity_counts"`
	ActorCounts  map[string]int `json:"actor_counts"`
}
