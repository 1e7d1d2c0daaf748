package model

import (
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

// OrderFilters is the filter specification for order lists. Zero values and
// "all" mean no constraint.
type OrderFilters struct {
	Search           string     `json:"search,omitempty" form:"search"`
	Status           string     `json:"status,omitempty" form:"status"`
	Priority         string     `json:"priority,omitempty" form:"priority"`
	Type             string     `json:"type,omitempty" form:"type"`
	SupplierID       string     `json:"supplierId,omitempty" form:"supplierId"`
	DepartmentID     string     `json:"departmentId,omitempty" form:"departmentId"`
	RequestedBy      string     `json:"requestedBy,omitempty" form:"requestedBy"`
	DateFrom         *time.Time `json:"dateFrom,omitempty" form:"dateFrom"`
	DateTo           *time.Time `json:"dateTo,omitempty" form:"dateTo"`
	DeliveryFrom     *time.Time `json:"deliveryFrom,omitempty" form:"deliveryFrom"`
	DeliveryTo       *time.Time `json:"deliveryTo,omitempty" form:"deliveryTo"`
	NoDeliveryDate   *bool      `json:"noDeliveryDate,omitempty" form:"noDeliveryDate"`
	MinAmount        *float64   `json:"minAmount,omitempty" form:"minAmount"`
	MaxAmount        *float64   `json:"maxAmount,omitempty" form:"maxAmount"`
	Tags             []string   `json:"tags,omitempty" form:"tags"`
	PendingApproval  *bool      `json:"pendingApproval,omitempty" form:"pendingApproval"`
	Overdue          bool       `json:"overdue,omitempty" form:"overdue"`
	HasQualityIssues *bool      `json:"hasQualityIssues,omitempty" form:"hasQualityIssues"`
	Today            bool       `json:"today,omitempty" form:"today"`
	ThisWeek         bool       `json:"thisWeek,omitempty" form:"thisWeek"`
	ThisMonth        bool       `json:"thisMonth,omitempty" form:"thisMonth"`
}

// StockMovementFilters is the filter specification for stock movement lists.
type StockMovementFilters struct {
	Search          string     `json:"search,omitempty" form:"search"`
	Type            string     `json:"type,omitempty" form:"type"`
	Reason          string     `json:"reason,omitempty" form:"reason"`
	Status          string     `json:"status,omitempty" form:"status"`
	ItemID          string     `json:"itemId,omitempty" form:"itemId"`
	LocationID      string     `json:"locationId,omitempty" form:"locationId"`
	PerformedBy     string     `json:"performedBy,omitempty" form:"performedBy"`
	DateFrom        *time.Time `json:"dateFrom,omitempty" form:"dateFrom"`
	DateTo          *time.Time `json:"dateTo,omitempty" form:"dateTo"`
	MinCost         *float64   `json:"minCost,omitempty" form:"minCost"`
	MaxCost         *float64   `json:"maxCost,omitempty" form:"maxCost"`
	Tags            []string   `json:"tags,omitempty" form:"tags"`
	PendingApproval bool       `json:"pendingApproval,omitempty" form:"pendingApproval"`
	Today           bool       `json:"today,omitempty" form:"today"`
	ThisWeek        bool       `json:"thisWeek,omitempty" form:"thisWeek"`
	ThisMonth       bool       `json:"thisMonth,omitempty" form:"thisMonth"`
}

// ListParams is the paging and sorting part of a list request.
type ListParams struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	SortBy   string `form:"sort_by"`
	SortDir  string `form:"sort_dir"`
}

// Sort returns the requested sort, falling back to def when none is given.
func (p ListParams) Sort(def query.Sort) query.Sort {
	if p.SortBy == "" {
		return def
	}
	return query.Sort{Field: p.SortBy, Direction: query.ParseDirection(p.SortDir)}
}

// View builds the query view for filters f.
func View[F any](p ListParams, f F, def query.Sort) query.View[F] {
	v := query.NewView(f, p.Sort(def))
	if p.PageSize > 0 {
		v = v.WithPageSize(p.PageSize)
	}
	if p.Page > 0 {
		v = v.WithPage(p.Page)
	}
	return v
}
