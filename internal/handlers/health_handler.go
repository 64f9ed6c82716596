package handlers

import (
	"context"
	"net/http"
	"time"

	"adaptivetest/internal/cache"
	"adaptivetest/internal/hotstore"
	"adaptivetest/internal/warmstore"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const ServiceVersion = "1.0.0"

type HealthHandler struct {
	hot   *hotstore.Store
	cache *cache.Manager
}

func NewHealthHandler(hot *hotstore.Store, cacheMgr *cache.Manager) *HealthHandler {
	return &HealthHandler{hot: hot, cache: cacheMgr}
}

// GetHealth reports liveness of every tier plus the running cache stats, so
// an operator can tell a degraded waterfall from a fully healthy one at a
// glance.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	tier1 := "up"
	if _, err := h.hot.Stats(ctx); err != nil {
		tier1 = "down"
	}
	tier2 := "up"
	if warmstore.Client == nil {
		tier2 = "down"
	} else if err := warmstore.Client.Ping(ctx, readpref.Primary()); err != nil {
		tier2 = "down"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"version":   ServiceVersion,
		"timestamp": time.Now(),
		"services": gin.H{
			"tier1": tier1,
			"tier2": tier2,
			"tier3": "unchecked",
		},
		"cache_stats": h.cache.Stats(),
	})
}
