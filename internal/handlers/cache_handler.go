package handlers

import (
	"context"
	"net/http"
	"time"

	"adaptivetest/internal/cache"
	"adaptivetest/internal/domain"

	"github.com/gin-gonic/gin"
)

type CacheHandler struct {
	cache *cache.Manager
}

func NewCacheHandler(cacheMgr *cache.Manager) *CacheHandler {
	return &CacheHandler{cache: cacheMgr}
}

func (h *CacheHandler) GetQuestionPool(c *gin.Context) {
	level, levelID := c.Param("level"), c.Param("level_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	pool, err := h.cache.GetQuestionPool(ctx, level, levelID, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pool", "details": err.Error()})
		return
	}
	if pool == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.PoolID(level, levelID) + " unavailable from any tier"})
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (h *CacheHandler) InvalidatePool(c *gin.Context) {
	level, levelID := c.Param("level"), c.Param("level_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	ok := h.cache.Invalidate(ctx, level, levelID)
	c.JSON(http.StatusOK, gin.H{"invalidated": ok, "pool_id": domain.PoolID(level, levelID)})
}

func (h *CacheHandler) RefreshPool(c *gin.Context) {
	level, levelID := c.Param("level"), c.Param("level_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	pool, err := h.cache.Refresh(ctx, level, levelID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to refresh pool", "details": err.Error()})
		return
	}
	if pool == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.PoolID(level, levelID) + " unavailable from any tier"})
		return
	}
	c.JSON(http.StatusOK, pool)
}

func (h *CacheHandler) GetCoverage(c *gin.Context) {
	level, levelID := c.Param("level"), c.Param("level_id")
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	pool, err := h.cache.GetQuestionPool(ctx, level, levelID, true)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load pool", "details": err.Error()})
		return
	}
	if pool == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.PoolID(level, levelID) + " unavailable from any tier"})
		return
	}
	c.JSON(http.StatusOK, cache.ValidateCoverage(*pool))
}

func (h *CacheHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.Stats())
}

func (h *CacheHandler) ResetStats(c *gin.Context) {
	h.cache.ResetStats()
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

type warmupRequest struct {
	Pools []struct {
		Level   string `json:"level" binding:"required"`
		LevelID string `json:"level_id" binding:"required"`
	} `json:"pools" binding:"required"`
}

func (h *CacheHandler) Warmup(c *gin.Context) {
	var req warmupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	pairs := make([][2]string, len(req.Pools))
	for i, p := range req.Pools {
		pairs[i] = [2]string{p.Level, p.LevelID}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()
	report := h.cache.Warmup(ctx, pairs)
	c.JSON(http.StatusOK, report)
}
