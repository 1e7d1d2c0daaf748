package stockmovement

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/middleware"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/export"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/stockmovement"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
)

type Handler struct {
	service *stockmovement.Service
	exports *export.Service
}

func NewHandler(service *stockmovement.Service, exports *export.Service) *Handler {
	return &Handler{service: service, exports: exports}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	movements := r.Group("/stock-movements")
	{
		movements.GET("", h.ListMovements)
		movements.GET("/stats", h.GetStats)
		movements.GET("/export", h.Export)
		movements.POST("/export/link", h.ExportLink)
		movements.POST("/refresh", h.Refresh)
		movements.POST("/bulk", h.Bulk)
		movements.POST("", h.CreateMovement)
		movements.GET("/:id", h.GetMovement)
		movements.GET("/:id/actions", h.AvailableActions)
		movements.PUT("/:id", h.UpdateMovement)
		movements.DELETE("/:id", h.DeleteMovement)

		movements.POST("/:id/approve", middleware.RequireRole(model.RoleApprover), h.transition(stockmovement.ActionApprove))
		movements.POST("/:id/reject", middleware.RequireRole(model.RoleApprover), h.transition(stockmovement.ActionReject))
		movements.POST("/:id/complete", h.transition(stockmovement.ActionComplete))
		movements.POST("/:id/cancel", h.transition(stockmovement.ActionCancel))
	}
}

func (h *Handler) ListMovements(c *gin.Context) {
	view, ok := handler.BindView[model.StockMovementFilters](c, stockmovement.DefaultSort)
	if !ok {
		return
	}
	page, err := h.service.List(view)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondPage(c, page)
}

func (h *Handler) GetStats(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.service.Stats())
}

func (h *Handler) GetMovement(c *gin.Context) {
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	m, err := h.service.Get(id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondEntity(c, m.Version, m)
}

func (h *Handler) AvailableActions(c *gin.Context) {
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	m, err := h.service.Get(id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{
		"status":    m.Status,
		"actions":   stockmovement.AvailableActions(m.Status),
		"editable":  m.Status == model.MovementStatusPending,
		"deletable": stockmovement.Deletable(m.Status),
	})
}

func (h *Handler) CreateMovement(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	var req model.CreateStockMovementRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	m, n, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondMutation(c, http.StatusCreated, m.Version, m, n)
}

func (h *Handler) UpdateMovement(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	var req model.UpdateStockMovementRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.Version == 0 {
		if req.Version, ok = handler.Version(c); !ok {
			return
		}
	}
	m, n, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondMutation(c, http.StatusOK, m.Version, m, n)
}

func (h *Handler) DeleteMovement(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	version, ok := handler.Version(c)
	if !ok {
		return
	}
	n, err := h.service.Delete(c.Request.Context(), actor, id, version)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondMutation(c, http.StatusOK, 0, nil, n)
}

func (h *Handler) transition(action stockmovement.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := handler.Actor(c)
		if !ok {
			return
		}
		id, ok := handler.ParseID(c)
		if !ok {
			return
		}
		var req model.TransitionRequest
		if c.Request.ContentLength != 0 && !handler.BindJSON(c, &req) {
			return
		}
		if req.Version == 0 {
			if req.Version, ok = handler.Version(c); !ok {
				return
			}
		}
		m, n, err := h.service.Transition(c.Request.Context(), actor, id, action, req)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		handler.RespondMutation(c, http.StatusOK, m.Version, m, n)
	}
}

func (h *Handler) Bulk(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	var req model.BulkRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.Action == "delete" {
		handler.RespondBulk(c, h.service.BulkDelete(c.Request.Context(), actor, req.IDs))
		return
	}
	action, err := stockmovement.ParseAction(req.Action)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondBulk(c, h.service.BulkTransition(c.Request.Context(), actor, req.IDs, action, req.Note))
}

func (h *Handler) Refresh(c *gin.Context) {
	n, err := h.service.Refresh(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"count": n})
}

func (h *Handler) exportRequest(c *gin.Context) (export.Request, bool) {
	format, ok := handler.ExportFormat(c)
	if !ok {
		return export.Request{}, false
	}
	view, ok := handler.BindView[model.StockMovementFilters](c, stockmovement.DefaultSort)
	if !ok {
		return export.Request{}, false
	}
	table, err := h.service.ExportTable(view)
	if err != nil {
		httputil.RespondWithError(c, err)
		return export.Request{}, false
	}
	return export.Request{
		Entity:  model.AuditEntityStockMovement,
		Format:  format,
		Filters: view.Filters,
		Sort:    view.Sort,
		Table:   table,
	}, true
}

func (h *Handler) Export(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	req, ok := h.exportRequest(c)
	if !ok {
		return
	}
	art, err := h.exports.Render(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.SendArtifact(c, art)
}

func (h *Handler) ExportLink(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	req, ok := h.exportRequest(c)
	if !ok {
		return
	}
	url, err := h.exports.Link(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"url": url})
}
