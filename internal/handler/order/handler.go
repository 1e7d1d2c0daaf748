package order

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/middleware"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/export"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/order"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
)

const bulkDelete = "delete"

type Handler struct {
	service *order.Service
	exports *export.Service
}

func NewHandler(service *order.Service, exports *export.Service) *Handler {
	return &Handler{service: service, exports: exports}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	orders := r.Group("/orders")
	{
		orders.GET("", h.ListOrders)
		orders.GET("/stats", h.GetStats)
		orders.GET("/export", h.Export)
		orders.POST("/export/link", h.ExportLink)
		orders.POST("/refresh", h.Refresh)
		orders.POST("/bulk", h.Bulk)
		orders.POST("", h.CreateOrder)
		orders.GET("/:id", h.GetOrder)
		orders.GET("/:id/actions", h.AvailableActions)
		orders.PUT("/:id", h.UpdateOrder)
		orders.DELETE("/:id", h.DeleteOrder)

		orders.POST("/:id/submit", h.transition(order.ActionSubmit))
		orders.POST("/:id/approve", middleware.RequireRole(model.RoleApprover), h.transition(order.ActionApprove))
		orders.POST("/:id/reject", middleware.RequireRole(model.RoleApprover), h.transition(order.ActionReject))
		orders.POST("/:id/send", h.transition(order.ActionSend))
		orders.POST("/:id/confirm", h.transition(order.ActionConfirm))
		orders.POST("/:id/complete", h.transition(order.ActionComplete))
		orders.POST("/:id/cancel", h.transition(order.ActionCancel))
		orders.POST("/:id/receive", h.Receive)
	}
}

func (h *Handler) ListOrders(c *gin.Context) {
	view, ok := handler.BindView[model.OrderFilters](c, order.DefaultSort)
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

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	o, err := h.service.Get(id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondEntity(c, o.Version, o)
}

type actionsResponse struct {
	Status    model.OrderStatus `json:"status"`
	Actions   []order.Action    `json:"actions"`
	Editable  bool              `json:"editable"`
	Deletable bool              `json:"deletable"`
}

func (h *Handler) AvailableActions(c *gin.Context) {
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	o, err := h.service.Get(id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, actionsResponse{
		Status:    o.Status,
		Actions:   order.AvailableActions(o.Status),
		Editable:  order.Editable(o.Status),
		Deletable: order.Deletable(o.Status),
	})
}

func (h *Handler) CreateOrder(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	var req model.CreateOrderRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	o, n, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondMutation(c, http.StatusCreated, o.Version, o, n)
}

func (h *Handler) UpdateOrder(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	var req model.UpdateOrderRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.Version == 0 {
		if req.Version, ok = handler.Version(c); !ok {
			return
		}
	}
	o, n, err := h.service.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondMutation(c, http.StatusOK, o.Version, o, n)
}

func (h *Handler) DeleteOrder(c *gin.Context) {
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

func (h *Handler) transition(action order.Action) gin.HandlerFunc {
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
		o, n, err := h.service.Transition(c.Request.Context(), actor, id, action, req)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		handler.RespondMutation(c, http.StatusOK, o.Version, o, n)
	}
}

func (h *Handler) Receive(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c)
	if !ok {
		return
	}
	var req model.ReceiveOrderRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	o, n, err := h.service.Receive(c.Request.Context(), actor, id, req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	handler.RespondMutation(c, http.StatusOK, o.Version, o, n)
}

// Bulk applies one action, or deletion, to many orders. Each id succeeds
// or fails on its own.
func (h *Handler) Bulk(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	var req model.BulkRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.Action == bulkDelete {
		handler.RespondBulk(c, h.service.BulkDelete(c.Request.Context(), actor, req.IDs))
		return
	}
	action, err := order.ParseAction(req.Action)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if action == order.ActionReceive {
		httputil.RespondWithError(c, apperrors.BadRequest("receive needs per-item quantities and cannot be applied in bulk", nil))
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
	view, ok := handler.BindView[model.OrderFilters](c, order.DefaultSort)
	if !ok {
		return export.Request{}, false
	}
	table, err := h.service.ExportTable(view)
	if err != nil {
		httputil.RespondWithError(c, err)
		return export.Request{}, false
	}
	return export.Request{
		Entity:  model.AuditEntityOrder,
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
