package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/flaviopcampos/DATACLINICA-sub004/pkg/circuitbreaker"
)

// Pinger is satisfied by *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// BreakerReporter exposes the backend circuit state.
type BreakerReporter interface {
	BreakerState() circuitbreaker.State
}

type Handler struct {
	db      Pinger
	backend BreakerReporter
	timeout time.Duration
}

// NewHandler builds the probes. db may be nil when audit persistence is
// disabled.
func NewHandler(db Pinger, backend BreakerReporter) *Handler {
	return &Handler{db: db, backend: backend, timeout: 2 * time.Second}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health/live", h.LivenessCheck)
	r.GET("/health/ready", h.ReadinessCheck)
}

func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	checks := gin.H{}
	up := true

	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			checks["database"] = "DOWN"
			up = false
		} else {
			checks["database"] = "UP"
		}
	}
	if h.backend != nil {
		state := h.backend.BreakerState()
		checks["backend"] = string(state)
		if state == circuitbreaker.StateOpen {
			up = false
		}
	}

	if !up {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP", "checks": checks})
}
