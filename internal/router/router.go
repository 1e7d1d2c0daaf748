package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/flaviopcampos/DATACLINICA-sub004/internal/handler/health"
	"github.com/flaviopcampos/DATACLINICA-sub004/internal/middleware"
	apperrors "github.com/flaviopcampos/DATACLINICA-sub004/pkg/errors"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type RouterConfig struct {
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	RateLimit      rate.Limit
	RateBurst      int
	RateIdleTTL    time.Duration
	CORSConfig     middleware.CORSConfig
	Security       middleware.SecurityConfig
	MetricsPath    string
	// MetricsHandler serves MetricsPath. Defaults to the global registry.
	MetricsHandler http.Handler
}

type Router struct {
	engine *gin.Engine
}

// NewRouter builds the engine. Health probes and metrics are public; every
// handler in protected is mounted under /api/v1 behind authentication.
func NewRouter(auth *middleware.AuthMiddleware, healthH *health.Handler, m *metrics.Metrics, config RouterConfig, protected ...Handler) *Router {
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.Metrics(m),
		middleware.ErrorHandler(),
		middleware.SecurityHeaders(config.Security),
		middleware.CORS(config.CORSConfig),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.SizeLimit(config.MaxBodyBytes),
	)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:    config.RateLimit,
		Burst:   config.RateBurst,
		IdleTTL: config.RateIdleTTL,
	})

	engine.NoRoute(func(c *gin.Context) {
		httputil.RespondWithError(c, apperrors.NotFound("route", nil))
	})
	engine.NoMethod(func(c *gin.Context) {
		httputil.RespondWithError(c, apperrors.BadRequest("method not allowed", nil))
	})

	healthH.RegisterRoutes(engine)

	metricsPath := config.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	metricsHandler := config.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	engine.GET(metricsPath, gin.WrapH(metricsHandler))

	api := engine.Group("/api/v1")
	api.Use(rateLimiter.RateLimit(), auth.Authenticate())
	for _, h := range protected {
		h.RegisterRoutes(api)
	}

	return &Router{engine: engine}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.engine.ServeHTTP(w, req)
}
