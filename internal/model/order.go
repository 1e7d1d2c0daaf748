package model

import (
	"slices"
	"time"
)

type OrderStatus string

const (
	OrderStatusDraft             OrderStatus = "draft"
	OrderStatusPendingApproval   OrderStatus = "pending_approval"
	OrderStatusApproved          OrderStatus = "approved"
	OrderStatusSent              OrderStatus = "sent"
	OrderStatusConfirmed         OrderStatus = "confirmed"
	OrderStatusPartiallyReceived OrderStatus = "partially_received"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusCancelled         OrderStatus = "cancelled"
	OrderStatusRejected          OrderStatus = "rejected"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusDraft,
	OrderStatusPendingApproval,
	OrderStatusApproved,
	OrderStatusSent,
	OrderStatusConfirmed,
	OrderStatusPartiallyReceived,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRejected,
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusRejected
}

// IsPending reports whether the order still represents committed but
// unfinished spend.
func (s OrderStatus) IsPending() bool {
	switch s {
	case OrderStatusDraft, OrderStatusPendingApproval, OrderStatusApproved,
		OrderStatusSent, OrderStatusConfirmed, OrderStatusPartiallyReceived:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool { return slices.Contains(OrderStatuses, s) }

type OrderPriority string

const (
	OrderPriorityLow    OrderPriority = "low"
	OrderPriorityNormal OrderPriority = "normal"
	OrderPriorityHigh   OrderPriority = "high"
	OrderPriorityUrgent OrderPriority = "urgent"
)

var OrderPriorities = []OrderPriority{OrderPriorityLow, OrderPriorityNormal, OrderPriorityHigh, OrderPriorityUrgent}

// Rank orders priorities by urgency rather than alphabetically.
func (p OrderPriority) Rank() int { return slices.Index(OrderPriorities, p) }

func (p OrderPriority) Valid() bool { return p.Rank() >= 0 }

type OrderType string

const (
	OrderTypeRegular     OrderType = "regular"
	OrderTypeEmergency   OrderType = "emergency"
	OrderTypeScheduled   OrderType = "scheduled"
	OrderTypeConsignment OrderType = "consignment"
)

var OrderTypes = []OrderType{OrderTypeRegular, OrderTypeEmergency, OrderTypeScheduled, OrderTypeConsignment}

func (t OrderType) Valid() bool { return slices.Contains(OrderTypes, t) }

type QualityCheck struct {
	Passed    bool       `json:"passed"`
	CheckedBy string     `json:"checkedBy,omitempty"`
	CheckedAt *time.Time `json:"checkedAt,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

type OrderItem struct {
	ID               string        `json:"id"`
	ProductID        string        `json:"productId"`
	ProductName      string        `json:"productName"`
	ProductCode      string        `json:"productCode"`
	Quantity         int           `json:"quantity"`
	ReceivedQuantity int           `json:"receivedQuantity"`
	UnitPrice        float64       `json:"unitPrice"`
	TotalPrice       float64       `json:"totalPrice"`
	QualityCheck     *QualityCheck `json:"qualityCheck,omitempty"`
}

// FullyReceived reports whether every ordered unit has arrived.
func (i OrderItem) FullyReceived() bool { return i.ReceivedQuantity >= i.Quantity }

type Order struct {
	Base
	OrderNumber    string        `json:"orderNumber"`
	SupplierID     string        `json:"supplierId"`
	SupplierName   string        `json:"supplierName"`
	DepartmentID   string        `json:"departmentId"`
	DepartmentName string        `json:"departmentName"`
	RequestedBy    string        `json:"requestedBy"`
	RequesterName  string        `json:"requestedByName"`
	Type           OrderType     `json:"type"`
	Priority       OrderPriority `json:"priority"`
	Status         OrderStatus   `json:"status"`
	Items          []OrderItem   `json:"items"`

	Subtotal     float64 `json:"subtotal"`
	TaxAmount    float64 `json:"taxAmount"`
	ShippingCost float64 `json:"shippingCost"`
	TotalAmount  float64 `json:"totalAmount"`

	OrderDate            time.Time  `json:"orderDate"`
	ExpectedDeliveryDate *time.Time `json:"expectedDeliveryDate,omitempty"`
	ActualDeliveryDate   *time.Time `json:"actualDeliveryDate,omitempty"`

	ApprovedBy         string     `json:"approvedBy,omitempty"`
	ApprovedByName     string     `json:"approvedByName,omitempty"`
	ApprovedAt         *time.Time `json:"approvedAt,omitempty"`
	RejectionReason    string     `json:"rejectionReason,omitempty"`
	SentAt             *time.Time `json:"sentAt,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmedAt,omitempty"`
	SupplierReference  string     `json:"supplierReference,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	CancelledAt        *time.Time `json:"cancelledAt,omitempty"`
	CancellationReason string     `json:"cancellationReason,omitempty"`

	Notes         string               `json:"notes,omitempty"`
	Tags          []string             `json:"tags,omitempty"`
	StatusHistory []StatusHistoryEntry `json:"statusHistory"`
}

// OrderDateOrNil exposes the order date for range filters and sorting.
func (o Order) OrderDateOrNil() *time.Time { return timeOrNil(o.OrderDate) }

// IsOverdue reports an expected delivery strictly before now on an order
// that can still progress.
func (o Order) IsOverdue(now time.Time) bool {
	return o.ExpectedDeliveryDate != nil && o.ExpectedDeliveryDate.Before(now) && !o.Status.IsTerminal()
}

// HasQualityIssues reports whether any received item failed its check.
func (o Order) HasQualityIssues() bool {
	for _, it := range o.Items {
		if it.QualityCheck != nil && !it.QualityCheck.Passed {
			return true
		}
	}
	return false
}

// FullyReceived reports whether every line item arrived in full.
func (o Order) FullyReceived() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if !it.FullyReceived() {
			return false
		}
	}
	return true
}

// Accurate reports whether every line matched its ordered quantity and did
// not fail a quality check.
func (o Order) Accurate() bool {
	if len(o.Items) == 0 {
		return false
	}
	for _, it := range o.Items {
		if it.ReceivedQuantity != it.Quantity {
			return false
		}
		if it.QualityCheck != nil && !it.QualityCheck.Passed {
			return false
		}
	}
	return true
}

// DeliveredOnTime compares calendar days so a delivery later on the
// expected day still counts as on time. ok is false when either date is
// missing.
func (o Order) DeliveredOnTime() (onTime, ok bool) {
	if o.ActualDeliveryDate == nil || o.ExpectedDeliveryDate == nil {
		return false, false
	}
	actual := o.ActualDeliveryDate.UTC().Truncate(24 * time.Hour)
	expected := o.ExpectedDeliveryDate.UTC().Truncate(24 * time.Hour)
	return !actual.After(expected), true
}

// ItemTexts returns product names and codes for text search.
func (o Order) ItemTexts() []string {
	out := make([]string, 0, 2*len(o.Items))
	for _, it := range o.Items {
		out = append(out, it.ProductName, it.ProductCode)
	}
	return out
}

// Recalculate derives line totals, subtotal and total amount.
func (o *Order) Recalculate() {
	o.Subtotal = 0
	for i := range o.Items {
		o.Items[i].TotalPrice = float64(o.Items[i].Quantity) * o.Items[i].UnitPrice
		o.Subtotal += o.Items[i].TotalPrice
	}
	o.TotalAmount = o.Subtotal + o.TaxAmount + o.ShippingCost
}

// Clone returns a copy that shares no slices with o.
func (o Order) Clone() Order {
	c := o
	c.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		if it.QualityCheck != nil {
			qc := *it.QualityCheck
			it.QualityCheck = &qc
		}
		c.Items[i] = it
	}
	c.Tags = slices.Clone(o.Tags)
	c.StatusHistory = slices.Clone(o.StatusHistory)
	return c
}

// OrderItemInput is a line item in create and update requests.
type OrderItemInput struct {
	ProductID   string  `json:"productId" binding:"required"`
	ProductName string  `json:"productName" binding:"required"`
	ProductCode string  `json:"productCode"`
	Quantity    int     `json:"quantity" binding:"required,gt=0"`
	UnitPrice   float64 `json:"unitPrice" binding:"gte=0"`
}

type CreateOrderRequest struct {
	OrderNumber          string           `json:"orderNumber"`
	SupplierID           string           `json:"supplierId" binding:"required"`
	SupplierName         string           `json:"supplierName" binding:"required"`
	DepartmentID         string           `json:"departmentId" binding:"required"`
	DepartmentName       string           `json:"departmentName"`
	Type                 OrderType        `json:"type" binding:"omitempty,oneof=regular emergency scheduled consignment"`
	Priority             OrderPriority    `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	Items                []OrderItemInput `json:"items" binding:"required,min=1,dive"`
	TaxAmount            float64          `json:"taxAmount" binding:"gte=0"`
	ShippingCost         float64          `json:"shippingCost" binding:"gte=0"`
	OrderDate            *time.Time       `json:"orderDate"`
	ExpectedDeliveryDate *time.Time       `json:"expectedDeliveryDate"`
	Notes                string           `json:"notes"`
	Tags                 []string         `json:"tags"`
}

// UpdateOrderRequest carries the editable fields. Nil fields are left as is.
type UpdateOrderRequest struct {
	Version              int64            `json:"version"`
	SupplierID           *string          `json:"supplierId"`
	SupplierName         *string          `json:"supplierName"`
	DepartmentID         *string          `json:"departmentId"`
	DepartmentName       *string          `json:"departmentName"`
	Type                 *OrderType       `json:"type" binding:"omitempty,oneof=regular emergency scheduled consignment"`
	Priority             *OrderPriority   `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	Items                []OrderItemInput `json:"items" binding:"omitempty,min=1,dive"`
	TaxAmount            *float64         `json:"taxAmount" binding:"omitempty,gte=0"`
	ShippingCost         *float64         `json:"shippingCost" binding:"omitempty,gte=0"`
	ExpectedDeliveryDate *time.Time       `json:"expectedDeliveryDate"`
	Notes                *string          `json:"notes"`
	Tags                 []string         `json:"tags"`
}

// TransitionRequest is the body of single-order status actions.
type TransitionRequest struct {
	Version           int64  `json:"version"`
	Note              string `json:"note"`
	Reason            string `json:"reason"`
	SupplierReference string `json:"supplierReference"`
}

// ReceivedItem reports a delivery for one line item. Quantity is the
// cumulative amount received so far.
type ReceivedItem struct {
	ItemID           string        `json:"itemId" binding:"required"`
	ReceivedQuantity int           `json:"receivedQuantity" binding:"gte=0"`
	QualityCheck     *QualityCheck `json:"qualityCheck"`
}

type ReceiveOrderRequest struct {
	Version int64          `json:"version"`
	Items   []ReceivedItem `json:"items" binding:"required,min=1,dive"`
	Note    string         `json:"note"`
}
