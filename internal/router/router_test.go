package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler/health"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/middleware"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/auth"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
)

type whoami struct{}

func (whoami) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/whoami", func(c *gin.Context) {
		actor, _ := middleware.ActorFrom(c)
		httputil.RespondWithSuccess(c, actor)
	})
}

func newTestRouter(t *testing.T) (*Router, *auth.HMACService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := auth.NewHMACService("secret", "hospital")
	reg := prometheus.NewRegistry()
	r := NewRouter(
		middleware.NewAuthMiddleware(tokens),
		health.NewHandler(nil, nil),
		metrics.NewWithRegistry(reg, "test", "api"),
		RouterConfig{
			RequestTimeout: time.Second,
			MaxBodyBytes:   1024,
			CORSConfig:     middleware.DefaultCORSConfig(),
			Security:       middleware.DefaultSecurityConfig(),
			MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		},
		whoami{},
	)
	return r, tokens
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	r, tokens := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(httputil.RequestIDHeader))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := tokens.Sign("u-1", "Ana", nil, time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"Ana"`)
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	r, _ := newTestRouter(t)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := newTestRouter(t)
	serve(r, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_api_http_requests_total")
}
