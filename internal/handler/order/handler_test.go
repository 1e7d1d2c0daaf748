package order

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/backend/backendtest"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/middleware"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/model"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/export"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/lifecycle"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/order"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

var (
	now      = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	clerk    = model.Actor{ID: "u-clerk", Name: "Clerk"}
	approver = model.Actor{ID: "u-boss", Name: "Boss", Roles: []string{model.RoleApprover}}
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newOrder(status model.OrderStatus) model.Order {
	o := model.Order{
		Base:         model.NewBase(now.Add(-time.Hour)),
		OrderNumber:  "PO-" + string(status),
		SupplierID:   "s1",
		SupplierName: "Acme Medical",
		Type:         model.OrderTypeRegular,
		Priority:     model.OrderPriorityNormal,
		Status:       status,
		OrderDate:    now.Add(-time.Hour),
		Items:        []model.OrderItem{{ID: "i1", ProductName: "Gloves", Quantity: 10, UnitPrice: 2}},
	}
	o.Version = 1
	return o
}

func setVersion(o *model.Order, v int64) { o.Version = v }

// newRouter serves the order routes as actor.
func newRouter(t *testing.T, actor model.Actor, seed ...model.Order) *gin.Engine {
	t.Helper()
	fake := backendtest.NewFake(setVersion, seed...)
	svc := order.NewService(fake, lifecycle.Deps{Clock: query.Fixed(now)}, nil, order.Config{})
	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextActor, actor)
		c.Next()
	})
	NewHandler(svc, export.NewService(nil, nil, nil, query.Fixed(now), nil, nil)).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(r *gin.Engine, method, path, body string, header ...string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestListFiltersAndPaginates(t *testing.T) {
	r := newRouter(t, clerk, newOrder(model.OrderStatusDraft), newOrder(model.OrderStatusDraft), newOrder(model.OrderStatusSent))

	w, env := do(r, http.MethodGet, "/api/v1/orders?status=draft&page_size=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	var page struct {
		Items      []model.Order `json:"items"`
		Pagination struct {
			Total      int `json:"total"`
			TotalPages int `json:"total_pages"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.TotalPages)

	w, _ = do(r, http.MethodGet, "/api/v1/orders?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAcceptsCalendarDates(t *testing.T) {
	r := newRouter(t, clerk, newOrder(model.OrderStatusDraft))

	total := func(path string) int {
		t.Helper()
		w, env := do(r, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var page struct {
			Pagination struct {
				Total int `json:"total"`
			} `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &page))
		return page.Pagination.Total
	}

	// The order was placed at 11:00 on 2024-03-10.
	assert.Equal(t, 1, total("/api/v1/orders?dateTo=2024-03-10"))
	assert.Equal(t, 1, total("/api/v1/orders?dateFrom=2024-03-10&dateTo=2024-03-10"))
	assert.Equal(t, 0, total("/api/v1/orders?dateTo=2024-03-09"))
	assert.Equal(t, 0, total("/api/v1/orders?dateFrom=2024-03-11"))
	assert.Equal(t, 1, total("/api/v1/orders?dateFrom=2024-03-10T00:00:00Z"))

	w, _ := do(r, http.MethodGet, "/api/v1/orders?dateTo=10/03/2024", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSetsETag(t *testing.T) {
	o := newOrder(model.OrderStatusDraft)
	r := newRouter(t, clerk, o)

	w, _ := do(r, http.MethodGet, "/api/v1/orders/"+o.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))

	w, _ = do(r, http.MethodGet, "/api/v1/orders/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitUsesIfMatch(t *testing.T) {
	o := newOrder(model.OrderStatusDraft)
	r := newRouter(t, clerk, o)
	path := "/api/v1/orders/" + o.ID.String() + "/submit"

	w, env := do(r, http.MethodPost, path, "", "If-Match", `"7"`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)

	w, env = do(r, http.MethodPost, path, "", "If-Match", `"1"`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))

	var resp struct {
		Data         model.Order        `json:"data"`
		Notification model.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, model.OrderStatusPendingApproval, resp.Data.Status)
	assert.NotEmpty(t, resp.Notification.Title)

	// submit again from pending_approval
	w, _ = do(r, http.MethodPost, path, `{"version":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestApproveNeedsRole(t *testing.T) {
	o := newOrder(model.OrderStatusPendingApproval)

	w, _ := do(newRouter(t, clerk, o), http.MethodPost, "/api/v1/orders/"+o.ID.String()+"/approve", `{"version":1}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(newRouter(t, approver, o), http.MethodPost, "/api/v1/orders/"+o.ID.String()+"/approve", `{"version":1}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAvailableActions(t *testing.T) {
	o := newOrder(model.OrderStatusDraft)
	r := newRouter(t, clerk, o)

	w, env := do(r, http.MethodGet, "/api/v1/orders/"+o.ID.String()+"/actions", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp actionsResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Contains(t, resp.Actions, order.ActionSubmit)
	assert.NotContains(t, resp.Actions, order.ActionReceive)
	assert.True(t, resp.Editable)
}

func TestBulk(t *testing.T) {
	a := newOrder(model.OrderStatusDraft)
	b := newOrder(model.OrderStatusCompleted)
	r := newRouter(t, clerk, a, b)
	ids := `["` + a.ID.String() + `","` + b.ID.String() + `"]`

	w, env := do(r, http.MethodPost, "/api/v1/orders/bulk", `{"ids":`+ids+`,"action":"submit"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, 1, resp.Succeeded)
	assert.Equal(t, 1, resp.Failed)

	w, _ = do(r, http.MethodPost, "/api/v1/orders/bulk", `{"ids":`+ids+`,"action":"receive"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodPost, "/api/v1/orders/bulk", `{"ids":[],"action":"submit"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteReadsVersionFromQuery(t *testing.T) {
	o := newOrder(model.OrderStatusDraft)
	r := newRouter(t, clerk, o)

	w, _ := do(r, http.MethodDelete, "/api/v1/orders/"+o.ID.String()+"?version=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodDelete, "/api/v1/orders/"+o.ID.String()+"?version=1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(r, http.MethodGet, "/api/v1/orders/"+o.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateFallsBackToIfMatch(t *testing.T) {
	o := newOrder(model.OrderStatusDraft)
	r := newRouter(t, clerk, o)
	path := "/api/v1/orders/" + o.ID.String()

	w, _ := do(r, http.MethodPut, path, `{"notes":"rush"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(r, http.MethodPut, path, `{"notes":"rush"}`, "If-Match", `"3"`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, env := do(r, http.MethodPut, path, `{"notes":"rush"}`, "If-Match", `"1"`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))
	assert.Contains(t, string(env.Data), `"notes":"rush"`)

	// A body version wins over the header.
	w, _ = do(r, http.MethodPut, path, `{"version":1,"notes":"late"}`, "If-Match", `"2"`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestExportDownload(t *testing.T) {
	r := newRouter(t, clerk, newOrder(model.OrderStatusDraft))

	w, _ := do(r, http.MethodGet, "/api/v1/orders/export?format=csv", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment;")
	assert.Contains(t, w.Body.String(), "PO-draft")

	w, _ = do(r, http.MethodGet, "/api/v1/orders/export?format=docx", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
