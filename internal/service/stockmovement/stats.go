package stockmovement

import (
	"time"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

const topN = 5

// effective reports whether the movement moved, or will move, stock.
func effective(m model.StockMovement) bool {
	return m.Status != model.MovementStatusRejected && m.Status != model.MovementStatusCancelled
}

// ComputeStats reduces the full movement collection. Value figures skip
// rejected and cancelled movements.
func ComputeStats(movements []model.StockMovement, now time.Time) model.StockMovementStats {
	s := model.StockMovementStats{
		TotalMovements: len(movements),
		ByType:         make(map[model.MovementType]int, len(model.MovementTypes)),
		ByStatus:       make(map[model.MovementStatus]int, len(model.MovementStatuses)),
		GeneratedAt:    now,
	}
	for _, t := range model.MovementTypes {
		s.ByType[t] = 0
	}
	for _, st := range model.MovementStatuses {
		s.ByStatus[st] = 0
	}
	for t, n := range query.CountBy(movements, func(m model.StockMovement) model.MovementType { return m.Type }) {
		s.ByType[t] = n
	}
	for st, n := range query.CountBy(movements, func(m model.StockMovement) model.MovementStatus { return m.Status }) {
		s.ByStatus[st] = n
	}

	s.TotalValueIn = query.SumBy(movements, func(m model.StockMovement) bool {
		return effective(m) && m.Type.Inbound()
	}, model.StockMovement.AbsCost)
	s.TotalValueOut = query.SumBy(movements, func(m model.StockMovement) bool {
		return effective(m) && m.Type.Outbound()
	}, model.StockMovement.AbsCost)
	s.NetValue = s.TotalValueIn - s.TotalValueOut
	s.AdjustmentsValue = query.SumBy(movements, func(m model.StockMovement) bool {
		return effective(m) && m.Type == model.MovementTypeAdjustment
	}, func(m model.StockMovement) float64 { return m.TotalCost })

	s.PendingApproval = query.Count(movements, model.StockMovement.PendingApproval)
	s.MovementsToday = query.Count(movements, func(m model.StockMovement) bool { return query.IsToday(m.DateOrNil(), now) })
	s.MovementsThisWeek = query.Count(movements, func(m model.StockMovement) bool { return query.WithinLastWeek(m.DateOrNil(), now) })
	s.MovementsThisMonth = query.Count(movements, func(m model.StockMovement) bool { return query.WithinLastMonth(m.DateOrNil(), now) })

	valued := make([]model.StockMovement, 0, len(movements))
	for _, m := range movements {
		if effective(m) {
			valued = append(valued, m)
		}
	}
	s.TopItems = query.TopN(valued, topN, func(m model.StockMovement) (string, string) {
		if m.ItemID != "" {
			return m.ItemID, m.ItemName
		}
		return m.ItemName, m.ItemName
	}, model.StockMovement.AbsCost)
	s.TopLocations = query.TopN(valued, topN, model.StockMovement.LocationKey, model.StockMovement.AbsCost)
	return s
}
