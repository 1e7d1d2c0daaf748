package stockmovement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/backend/backendtest"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/lifecycle"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

var (
	now        = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	keeper     = model.Actor{ID: "u-keeper", Name: "Keeper"}
	pharmacist = model.Actor{ID: "u-pharm", Name: "Pharmacist", Roles: []string{model.RoleApprover}}
)

func movement(typ model.MovementType, status model.MovementStatus, qty int, unit float64) model.StockMovement {
	m := model.StockMovement{
		Base:             model.NewBase(now.Add(-2 * time.Hour)),
		ItemID:           "item-" + string(typ),
		ItemName:         "Saline " + string(typ),
		ItemCode:         "SAL",
		Type:             typ,
		Status:           status,
		Quantity:         qty,
		UnitCost:         unit,
		ToLocationID:     "ward-a",
		ToLocationName:   "Ward A",
		FromLocationID:   "central",
		FromLocationName: "Central Store",
		MovementDate:     now.Add(-2 * time.Hour),
		RequiresApproval: status == model.MovementStatusPending,
		StatusHistory:    []model.StatusHistoryEntry{{Status: string(status)}},
	}
	m.Recalculate()
	m.Version = 1
	return m
}

func setVersion(m *model.StockMovement, v int64) { m.Version = v }

func newService(t *testing.T, seed ...model.StockMovement) (*Service, *backendtest.Fake[model.StockMovement]) {
	t.Helper()
	fake := backendtest.NewFake(setVersion, seed...)
	svc := NewService(fake, lifecycle.Deps{Clock: query.Fixed(now)}, nil, Config{})
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	return svc, fake
}

func TestComputeStats(t *testing.T) {
	// In: entry 50. Out: exit 20, loss 5, pending exit 1. The rejected
	// entry carries no value.
	moves := []model.StockMovement{
		movement(model.MovementTypeEntry, model.MovementStatusCompleted, 10, 5),
		movement(model.MovementTypeExit, model.MovementStatusCompleted, 4, 5),
		movement(model.MovementTypeLoss, model.MovementStatusCompleted, 1, 5),
		movement(model.MovementTypeAdjustment, model.MovementStatusCompleted, -2, 5),
		movement(model.MovementTypeEntry, model.MovementStatusRejected, 100, 5),
		movement(model.MovementTypeExit, model.MovementStatusPending, 1, 1),
	}
	s := ComputeStats(moves, now)

	assert.Equal(t, 6, s.TotalMovements)
	assert.Equal(t, 2, s.ByType[model.MovementTypeEntry])
	assert.Equal(t, 0, s.ByType[model.MovementTypeTransfer])
	assert.Equal(t, 50.0, s.TotalValueIn)
	assert.Equal(t, 26.0, s.TotalValueOut)
	assert.Equal(t, 24.0, s.NetValue)
	assert.Equal(t, -10.0, s.AdjustmentsValue)
	assert.Equal(t, 1, s.PendingApproval)
	assert.Equal(t, 6, s.MovementsToday)

	var byStatus int
	for _, n := range s.ByStatus {
		byStatus += n
	}
	assert.Equal(t, s.TotalMovements, byStatus)

	require.NotEmpty(t, s.TopItems)
	assert.Equal(t, "item-entry", s.TopItems[0].Key)
	require.Len(t, s.TopLocations, 2)
	assert.Equal(t, "ward-a", s.TopLocations[0].Key)
}

func TestFilters(t *testing.T) {
	entry := movement(model.MovementTypeEntry, model.MovementStatusCompleted, 10, 5)
	pending := movement(model.MovementTypeExit, model.MovementStatusPending, 3, 10)
	pending.FromLocationID = "pharmacy"
	old := movement(model.MovementTypeLoss, model.MovementStatusCompleted, 1, 1)
	old.MovementDate = now.AddDate(0, -2, 0)
	svc, _ := newService(t, entry, pending, old)

	count := func(f model.StockMovementFilters) int {
		page, err := svc.List(query.NewView(f, DefaultSort))
		require.NoError(t, err)
		return page.Total
	}

	assert.Equal(t, 3, count(model.StockMovementFilters{}))
	assert.Equal(t, 1, count(model.StockMovementFilters{PendingApproval: true}))
	assert.Equal(t, 1, count(model.StockMovementFilters{LocationID: "pharmacy"}))
	assert.Equal(t, 3, count(model.StockMovementFilters{LocationID: "ward-a"}))
	assert.Equal(t, 2, count(model.StockMovementFilters{ThisMonth: true}))

	// |totalCost| for the exit is 30 even though it is stored as -30.
	min := 25.0
	assert.Equal(t, 2, count(model.StockMovementFilters{MinCost: &min}))
	assert.Equal(t, 1, count(model.StockMovementFilters{Search: "LOSS"}))

	_, err := svc.List(query.NewView(model.StockMovementFilters{Type: "teleport"}, DefaultSort))
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestCreateStatusDependsOnApproval(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	direct, _, err := svc.Create(ctx, keeper, model.CreateStockMovementRequest{
		ItemID: "i1", ItemName: "Gauze", Type: model.MovementTypeExit, Quantity: 4, UnitCost: 2.5,
	})
	require.NoError(t, err)
	assert.Equal(t, model.MovementStatusCompleted, direct.Status)
	assert.Equal(t, -10.0, direct.TotalCost)
	require.Len(t, direct.StatusHistory, 1)

	gated, n, err := svc.Create(ctx, keeper, model.CreateStockMovementRequest{
		ItemID: "i1", ItemName: "Gauze", Type: model.MovementTypeEntry, Quantity: 4, UnitCost: 2.5, RequiresApproval: true,
	})
	require.NoError(t, err)
	assert.Equal(t, model.MovementStatusPending, gated.Status)
	assert.Equal(t, "Movement awaiting approval", n.Title)
}

func TestCreateValidatesLocations(t *testing.T) {
	svc, _ := newService(t)
	_, _, err := svc.Create(context.Background(), keeper, model.CreateStockMovementRequest{
		ItemID: "i1", ItemName: "Gauze", Type: model.MovementTypeTransfer, Quantity: 1, FromLocationID: "a",
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	_, _, err = svc.Create(context.Background(), keeper, model.CreateStockMovementRequest{
		ItemID: "i1", ItemName: "Gauze", Type: model.MovementTypeExit, Quantity: -1,
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))
}

func TestUpdateRejectsNegativeQuantity(t *testing.T) {
	exit := movement(model.MovementTypeExit, model.MovementStatusPending, 3, 5)
	adj := movement(model.MovementTypeAdjustment, model.MovementStatusPending, 3, 5)
	svc, _ := newService(t, exit, adj)
	ctx := context.Background()

	qty := -7
	_, _, err := svc.Update(ctx, keeper, exit.ID, model.UpdateStockMovementRequest{Version: 1, Quantity: &qty})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	m, err := svc.Get(exit.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Quantity)

	m, _, err = svc.Update(ctx, keeper, adj.ID, model.UpdateStockMovementRequest{Version: 1, Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, -7, m.Quantity)
}

func TestApprovalFlow(t *testing.T) {
	pending := movement(model.MovementTypeExit, model.MovementStatusPending, 3, 10)
	svc, _ := newService(t, pending)
	ctx := context.Background()

	_, _, err := svc.Approve(ctx, keeper, pending.ID, model.TransitionRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrForbidden))

	m, _, err := svc.Approve(ctx, pharmacist, pending.ID, model.TransitionRequest{Note: "ok"})
	require.NoError(t, err)
	assert.Equal(t, model.MovementStatusApproved, m.Status)
	assert.Equal(t, pharmacist.Name, m.ApprovedByName)
	require.Len(t, m.StatusHistory, 2)
	assert.Equal(t, "ok", m.StatusHistory[1].Note)

	m, _, err = svc.Complete(ctx, keeper, pending.ID, model.TransitionRequest{})
	require.NoError(t, err)
	assert.Equal(t, model.MovementStatusCompleted, m.Status)

	_, _, err = svc.Cancel(ctx, keeper, pending.ID, model.TransitionRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrIllegalTransition))
}

func TestRejectNeedsReason(t *testing.T) {
	pending := movement(model.MovementTypeExit, model.MovementStatusPending, 3, 10)
	svc, _ := newService(t, pending)

	_, _, err := svc.Reject(context.Background(), pharmacist, pending.ID, model.TransitionRequest{})
	assert.True(t, apperrors.Is(err, apperrors.ErrBadRequest))

	m, n, err := svc.Reject(context.Background(), pharmacist, pending.ID, model.TransitionRequest{Reason: "wrong batch"})
	require.NoError(t, err)
	assert.Equal(t, "wrong batch", m.RejectionReason)
	assert.Equal(t, model.NotificationWarning, n.Level)
}

func TestUpdateOnlyWhilePending(t *testing.T) {
	pending := movement(model.MovementTypeExit, model.MovementStatusPending, 3, 10)
	done := movement(model.MovementTypeExit, model.MovementStatusCompleted, 3, 10)
	svc, _ := newService(t, pending, done)

	qty := 5
	m, _, err := svc.Update(context.Background(), keeper, pending.ID, model.UpdateStockMovementRequest{Version: 1, Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, -50.0, m.TotalCost)

	_, _, err = svc.Update(context.Background(), keeper, done.ID, model.UpdateStockMovementRequest{Version: 1, Quantity: &qty})
	assert.True(t, apperrors.Is(err, apperrors.ErrIllegalTransition))
}

func TestBulkApprove(t *testing.T) {
	a := movement(model.MovementTypeExit, model.MovementStatusPending, 1, 1)
	b := movement(model.MovementTypeExit, model.MovementStatusCompleted, 1, 1)
	svc, _ := newService(t, a, b)

	out := svc.BulkTransition(context.Background(), pharmacist, []uuid.UUID{a.ID, b.ID}, ActionApprove, "")
	require.Len(t, out, 2)
	assert.True(t, out[0].Success)
	assert.False(t, out[1].Success)

	out = svc.BulkDelete(context.Background(), keeper, []uuid.UUID{a.ID, b.ID})
	assert.False(t, out[0].Success, "approved movements are kept")
	assert.False(t, out[1].Success)
}

func TestApplyChangeEvent(t *testing.T) {
	m := movement(model.MovementTypeEntry, model.MovementStatusCompleted, 1, 1)
	svc, _ := newService(t, m)

	del := model.ChangeEvent{Type: model.EventStockMovementDeleted, EntityType: model.AuditEntityStockMovement, EntityID: m.ID, Version: 1}
	require.NoError(t, svc.Apply(del))
	_, err := svc.Get(m.ID)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}
