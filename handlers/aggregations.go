package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/services"
)

type AggregationHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewAggregationHandler(db *gorm.DB, cache *services.CacheService) *AggregationHandler {
	return &AggregationHandler{db: db, cache: cache}
}

func (h *AggregationHandler) GetAggregations(c *gin.Context) {
	p := ParsePagination(c)
	pollutant := c.DefaultQuery("pollutant", "O3")
	granularity := c.DefaultQuery("granularity", models.GranularityMonthly)
	if !validGranularity(granularity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid granularity parameter, must be hourly or monthly"})
		return
	}

	cacheKey := fmt.Sprintf("aggregations:%s:%s:%s", pollutant, granularity, p.cursorKey())
	var cached CursorResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := h.db.Model(&models.Aggregate{}).
		Where("pollutant = ? AND granularity = ?", pollutant, granularity).
		Order("ts DESC").
		Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("ts < ?", *p.Before)
	}

	var rows []models.Aggregate
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	resp := page(rows, p.Limit, func(a models.Aggregate) time.Time { return a.TS })
	go h.cache.Set(context.Background(), cacheKey, resp, 60*time.Second)

	c.JSON(http.StatusOK, resp)
}
