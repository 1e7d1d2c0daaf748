package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for all entities held in the store
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	// Version is bumped by the backend on every accepted write and sent back
	// as If-Match on mutations.
	Version int64 `json:"version" db:"version"`
}

func (b Base) EntityID() uuid.UUID  { return b.ID }
func (b Base) EntityVersion() int64 { return b.Version }
func (b Base) Created() time.Time   { return b.CreatedAt }

// NewBase assigns a fresh identifier and creation timestamp.
func NewBase(now time.Time) Base {
	return Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Actor is the authenticated user performing a mutation.
type Actor struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

const (
	RoleApprover = "approver"
	RoleAdmin    = "admin"
)

// HasRole reports whether the actor holds role. Admins hold every role.
func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role) || slices.Contains(a.Roles, RoleAdmin)
}

// StatusHistoryEntry is one append-only record of a status change.
type StatusHistoryEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actorId"`
	ActorName string    `json:"actorName"`
	Note      string    `json:"note,omitempty"`
}

// AppendHistory returns a new slice holding history plus entry. The input
// slice is never written to, so callers holding it keep seeing the old log.
func AppendHistory(history []StatusHistoryEntry, entry StatusHistoryEntry) []StatusHistoryEntry {
	out := make([]StatusHistoryEntry, len(history), len(history)+1)
	copy(out, history)
	return append(out, entry)
}

// Outcome is the per-ID result of a bulk operation.
type Outcome struct {
	ID      uuid.UUID `json:"id"`
	Success bool      `json:"success"`
	Code    int       `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// BulkRequest is the body of bulk endpoints.
type BulkRequest struct {
	IDs    []uuid.UUID `json:"ids" binding:"required,min=1,max=500"`
	Action string      `json:"action"`
	Note   string      `json:"note"`
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}

func timeOrNil(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
