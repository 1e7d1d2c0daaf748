package model

import (
	"math"
	"slices"
	"time"
)

type MovementType string

const (
	MovementTypeEntry      MovementType = "entry"
	MovementTypeExit       MovementType = "exit"
	MovementTypeTransfer   MovementType = "transfer"
	MovementTypeAdjustment MovementType = "adjustment"
	MovementTypeReturn     MovementType = "return"
	MovementTypeLoss       MovementType = "loss"
	MovementTypeExpired    MovementType = "expired"
)

var MovementTypes = []MovementType{
	MovementTypeEntry,
	MovementTypeExit,
	MovementTypeTransfer,
	MovementTypeAdjustment,
	MovementTypeReturn,
	MovementTypeLoss,
	MovementTypeExpired,
}

func (t MovementType) Valid() bool { return slices.Contains(MovementTypes, t) }

// Inbound reports whether the movement adds stock value.
func (t MovementType) Inbound() bool {
	return t == MovementTypeEntry || t == MovementTypeReturn
}

// Outbound reports whether the movement removes stock value.
func (t MovementType) Outbound() bool {
	return t == MovementTypeExit || t == MovementTypeLoss || t == MovementTypeExpired
}

type MovementStatus string

const (
	MovementStatusPending   MovementStatus = "pending"
	MovementStatusApproved  MovementStatus = "approved"
	MovementStatusCompleted MovementStatus = "completed"
	MovementStatusRejected  MovementStatus = "rejected"
	MovementStatusCancelled MovementStatus = "cancelled"
)

var MovementStatuses = []MovementStatus{
	MovementStatusPending,
	MovementStatusApproved,
	MovementStatusCompleted,
	MovementStatusRejected,
	MovementStatusCancelled,
}

func (s MovementStatus) Valid() bool { return slices.Contains(MovementStatuses, s) }

func (s MovementStatus) IsTerminal() bool {
	return s == MovementStatusCompleted || s == MovementStatusRejected || s == MovementStatusCancelled
}

type StockMovement struct {
	Base
	ItemID   string         `json:"itemId"`
	ItemName string         `json:"itemName"`
	ItemCode string         `json:"itemCode"`
	Type     MovementType   `json:"type"`
	Reason   string         `json:"reason"`
	Status   MovementStatus `json:"status"`

	Quantity int     `json:"quantity"`
	UnitCost float64 `json:"unitCost"`
	// TotalCost is signed: negative for movements that remove stock value.
	TotalCost float64 `json:"totalCost"`

	FromLocationID   string `json:"fromLocationId,omitempty"`
	FromLocationName string `json:"fromLocationName,omitempty"`
	ToLocationID     string `json:"toLocationId,omitempty"`
	ToLocationName   string `json:"toLocationName,omitempty"`

	BatchNumber    string     `json:"batchNumber,omitempty"`
	ExpiryDate     *time.Time `json:"expiryDate,omitempty"`
	DocumentNumber string     `json:"documentNumber,omitempty"`
	MovementDate   time.Time  `json:"date"`

	RequiresApproval bool       `json:"requiresApproval"`
	ApprovedBy       string     `json:"approvedBy,omitempty"`
	ApprovedByName   string     `json:"approvedByName,omitempty"`
	ApprovedAt       *time.Time `json:"approvedAt,omitempty"`
	RejectionReason  string     `json:"rejectionReason,omitempty"`

	PerformedBy     string `json:"performedBy"`
	PerformedByName string `json:"performedByName"`

	Notes         string               `json:"notes,omitempty"`
	Tags          []string             `json:"tags,omitempty"`
	StatusHistory []StatusHistoryEntry `json:"statusHistory"`
}

func (m StockMovement) DateOrNil() *time.Time { return timeOrNil(m.MovementDate) }

// AbsCost is the unsigned monetary value moved.
func (m StockMovement) AbsCost() float64 { return math.Abs(m.TotalCost) }

// PendingApproval reports a movement still waiting for an approver.
func (m StockMovement) PendingApproval() bool {
	return m.RequiresApproval && m.Status == MovementStatusPending
}

// TouchesLocation reports whether id is the source or destination.
func (m StockMovement) TouchesLocation(id string) bool {
	return id != "" && (m.FromLocationID == id || m.ToLocationID == id)
}

// LocationKey picks the location a movement is attributed to in groupings.
func (m StockMovement) LocationKey() (string, string) {
	if m.Type.Inbound() || m.FromLocationID == "" {
		return m.ToLocationID, m.ToLocationName
	}
	return m.FromLocationID, m.FromLocationName
}

// Recalculate derives the signed total cost from quantity and unit cost.
// Adjustments carry their own sign in the quantity.
func (m *StockMovement) Recalculate() {
	cost := math.Abs(float64(m.Quantity)) * m.UnitCost
	switch {
	case m.Type.Outbound():
		cost = -cost
	case m.Type == MovementTypeAdjustment && m.Quantity < 0:
		cost = -cost
	}
	m.TotalCost = cost
}

func (m StockMovement) Clone() StockMovement {
	c := m
	c.Tags = slices.Clone(m.Tags)
	c.StatusHistory = slices.Clone(m.StatusHistory)
	return c
}

type CreateStockMovementRequest struct {
	ItemID           string       `json:"itemId" binding:"required"`
	ItemName         string       `json:"itemName" binding:"required"`
	ItemCode         string       `json:"itemCode"`
	Type             MovementType `json:"type" binding:"required,oneof=entry exit transfer adjustment return loss expired"`
	Reason           string       `json:"reason"`
	Quantity         int          `json:"quantity" binding:"required,ne=0"`
	UnitCost         float64      `json:"unitCost" binding:"gte=0"`
	FromLocationID   string       `json:"fromLocationId"`
	FromLocationName string       `json:"fromLocationName"`
	ToLocationID     string       `json:"toLocationId"`
	ToLocationName   string       `json:"toLocationName"`
	BatchNumber      string       `json:"batchNumber"`
	ExpiryDate       *time.Time   `json:"expiryDate"`
	DocumentNumber   string       `json:"documentNumber"`
	Date             *time.Time   `json:"date"`
	RequiresApproval bool         `json:"requiresApproval"`
	Notes            string       `json:"notes"`
	Tags             []string     `json:"tags"`
}

type UpdateStockMovementRequest struct {
	Version        int64      `json:"version"`
	Reason         *string    `json:"reason"`
	Quantity       *int       `json:"quantity" binding:"omitempty,ne=0"`
	UnitCost       *float64   `json:"unitCost" binding:"omitempty,gte=0"`
	BatchNumber    *string    `json:"batchNumber"`
	ExpiryDate     *time.Time `json:"expiryDate"`
	DocumentNumber *string    `json:"documentNumber"`
	Notes          *string    `json:"notes"`
	Tags           []string   `json:"tags"`
}
