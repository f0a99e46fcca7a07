package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is anything whose connection can be checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecks lists the dependencies reported by the health endpoint. A
// nil Cache means caching is disabled.
type HealthChecks struct {
	Database     Pinger
	Cache        Pinger
	EmailEnabled bool
}

type HealthHandler struct {
	checks HealthChecks
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"database":  "connected",
		"cache":     "disabled",
		"email":     "disabled",
	}

	if h.checks.Database != nil {
		if err := h.checks.Database.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["database"] = "unreachable"
		}
	}
	if h.checks.Cache != nil {
		body["cache"] = "connected"
		if err := h.checks.Cache.Ping(ctx); err != nil {
			body["cache"] = "unreachable"
		}
	}
	if h.checks.EmailEnabled {
		body["email"] = "enabled"
	}

	c.JSON(status, body)
}
