package model

import (
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

type OrderStats struct {
	TotalOrders             int `json:"totalOrders"`
	DraftOrders             int `json:"draftOrders"`
	PendingApprovalOrders   int `json:"pendingApprovalOrders"`
	ApprovedOrders          int `json:"approvedOrders"`
	SentOrders              int `json:"sentOrders"`
	ConfirmedOrders         int `json:"confirmedOrders"`
	PartiallyReceivedOrders int `json:"partiallyReceivedOrders"`
	CompletedOrders         int `json:"completedOrders"`
	CancelledOrders         int `json:"cancelledOrders"`
	RejectedOrders          int `json:"rejectedOrders"`

	ByStatus   map[OrderStatus]int   `json:"byStatus"`
	ByPriority map[OrderPriority]int `json:"byPriority"`
	ByType     map[OrderType]int     `json:"byType"`

	TotalOrderValue     float64 `json:"totalOrderValue"`
	AverageOrderValue   float64 `json:"averageOrderValue"`
	PendingOrderValue   float64 `json:"pendingOrderValue"`
	CompletedOrderValue float64 `json:"completedOrderValue"`

	OverdueOrders      int     `json:"overdueOrders"`
	OnTimeDeliveryRate float64 `json:"onTimeDeliveryRate"`
	AccuracyRate       float64 `json:"accuracyRate"`

	OrdersToday     int `json:"ordersToday"`
	OrdersThisWeek  int `json:"ordersThisWeek"`
	OrdersThisMonth int `json:"ordersThisMonth"`

	TopSuppliers   []query.Group[string] `json:"topSuppliers"`
	TopDepartments []query.Group[string] `json:"topDepartments"`

	GeneratedAt time.Time `json:"generatedAt"`
}

type StockMovementStats struct {
	TotalMovements int                    `json:"totalMovements"`
	ByType         map[MovementType]int   `json:"byType"`
	ByStatus       map[MovementStatus]int `json:"byStatus"`

	TotalValueIn     float64 `json:"totalValueIn"`
	TotalValueOut    float64 `json:"totalValueOut"`
	NetValue         float64 `json:"netValue"`
	AdjustmentsValue float64 `json:"adjustmentsValue"`

	PendingApproval    int `json:"pendingApproval"`
	MovementsToday     int `json:"movementsToday"`
	MovementsThisWeek  int `json:"movementsThisWeek"`
	MovementsThisMonth int `json:"movementsThisMonth"`

	TopItems     []query.Group[string] `json:"topItems"`
	TopLocations []query.Group[string] `json:"topLocations"`

	GeneratedAt time.Time `json:"generatedAt"`
}
