package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/httputil"
)

type CORSConfig struct {
	AllowOrigins     []string
	AllowCredentials bool
	MaxAge           time.Duration
}

func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
}

func CORS(config CORSConfig) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"If-Match",
			httputil.RequestIDHeader,
		},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Disposition",
			"ETag",
			httputil.RequestIDHeader,
		},
		MaxAge: config.MaxAge,
	}

	// A wildcard cannot be combined with credentials.
	if len(config.AllowOrigins) == 0 || slices.Contains(config.AllowOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = config.AllowOrigins
		cfg.AllowCredentials = config.AllowCredentials
	}
	return cors.New(cfg)
}
