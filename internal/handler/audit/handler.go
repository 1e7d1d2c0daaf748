package audit

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/middleware"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

type Service interface {
	List(ctx context.Context, filter model.AuditLogFilter) (query.Page[*model.AuditLog], error)
	History(ctx context.Context, entityType string, entityID uuid.UUID) ([]*model.AuditLog, error)
	GetAggregateStats(ctx context.Context, filter model.AuditLogFilter) (*model.AggregateStats, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the audit trail. Entity history is open to every
// authenticated actor; the full log is admin only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	audit := r.Group("/audit")
	{
		audit.GET("/logs/entity/:type/:id", h.GetEntityLogs)
		audit.GET("/logs", middleware.RequireRole(model.RoleAdmin), h.ListLogs)
		audit.GET("/logs/actor/:actor", middleware.RequireRole(model.RoleAdmin), h.GetActorLogs)
		audit.GET("/aggregate", middleware.RequireRole(model.RoleAdmin), h.GetAggregateStats)
	}
}

func bindFilter(c *gin.Context) (model.AuditLogFilter, bool) {
	var filter model.AuditLogFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid audit filter", err))
		return filter, false
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest("invalid entity_id", err))
			return filter, false
		}
		filter.EntityID = &id
	}
	return filter, true
}

func (h *Handler) ListLogs(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondPage(c, page)
}

func (h *Handler) GetActorLogs(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	filter.ActorID = c.Param("actor")
	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondPage(c, page)
}

func (h *Handler) GetEntityLogs(c *gin.Context) {
	entityType := c.Param("type")
	if entityType != model.AuditEntityOrder && entityType != model.AuditEntityStockMovement {
		httputil.RespondWithError(c, apperrors.BadRequest("unknown entity type", nil))
		return
	}
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	logs, err := h.service.History(c.Request.Context(), entityType, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, logs)
}

func (h *Handler) GetAggregateStats(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	stats, err := h.service.GetAggregateStats(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}
