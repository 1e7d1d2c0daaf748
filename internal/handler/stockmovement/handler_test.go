package stockmovement

import (
	"context"
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
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/service/stockmovement"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/query"
)

var now = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func pending() model.StockMovement {
	m := model.StockMovement{
		Base:             model.NewBase(now.Add(-time.Hour)),
		ItemID:           "i1",
		ItemName:         "Gauze",
		Type:             model.MovementTypeExit,
		Status:           model.MovementStatusPending,
		Quantity:         2,
		UnitCost:         3,
		FromLocationID:   "central",
		MovementDate:     now.Add(-time.Hour),
		RequiresApproval: true,
	}
	m.Recalculate()
	m.Version = 1
	return m
}

func newRouter(t *testing.T, actor model.Actor, seed ...model.StockMovement) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fake := backendtest.NewFake(func(m *model.StockMovement, v int64) { m.Version = v }, seed...)
	svc := stockmovement.NewService(fake, lifecycle.Deps{Clock: query.Fixed(now)}, nil, stockmovement.Config{})
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

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateMovement(t *testing.T) {
	r := newRouter(t, model.Actor{ID: "u-1", Name: "Keeper"})

	w := do(r, http.MethodPost, "/api/v1/stock-movements",
		`{"itemId":"i1","itemName":"Gauze","type":"entry","quantity":4,"unitCost":2.5,"toLocationId":"ward-a"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))
	assert.Contains(t, w.Body.String(), `"status":"completed"`)

	w = do(r, http.MethodPost, "/api/v1/stock-movements", `{"itemName":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveThenComplete(t *testing.T) {
	m := pending()
	pharmacist := model.Actor{ID: "u-2", Name: "Pharmacist", Roles: []string{model.RoleApprover}}
	r := newRouter(t, pharmacist, m)
	base := "/api/v1/stock-movements/" + m.ID.String()

	w := do(r, http.MethodPost, base+"/complete", `{"version":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(r, http.MethodPost, base+"/approve", `{"version":1}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, base+"/actions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"complete"`)
	assert.NotContains(t, w.Body.String(), `"approve"`)

	w = do(r, http.MethodPost, base+"/complete", `{"version":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"completed"`)
}

func TestRejectRequiresApprover(t *testing.T) {
	m := pending()
	r := newRouter(t, model.Actor{ID: "u-1"}, m)

	w := do(r, http.MethodPost, "/api/v1/stock-movements/"+m.ID.String()+"/reject", `{"version":1,"reason":"x"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStats(t *testing.T) {
	r := newRouter(t, model.Actor{ID: "u-1"}, pending())

	w := do(r, http.MethodGet, "/api/v1/stock-movements/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestUpdateReadsVersionFromQuery(t *testing.T) {
	m := pending()
	r := newRouter(t, model.Actor{ID: "u-1"}, m)
	path := "/api/v1/stock-movements/" + m.ID.String()

	w := do(r, http.MethodPut, path, `{"quantity":5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, path+"?version=1", `{"quantity":5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `"2"`, w.Header().Get("ETag"))
	assert.Contains(t, w.Body.String(), `"quantity":5`)
}
