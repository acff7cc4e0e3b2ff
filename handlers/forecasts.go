package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/services"
)

type ForecastHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewForecastHandler(db *gorm.DB, cache *services.CacheService) *ForecastHandler {
	return &ForecastHandler{db: db, cache: cache}
}

func validGranularity(g string) bool {
	return g == "" || g == models.GranularityHourly || g == models.GranularityMonthly
}

// GetForecasts lists stored forecasts, newest first. Filters: pollutant,
// granularity, run_id.
func (h *ForecastHandler) GetForecasts(c *gin.Context) {
	p := ParsePagination(c)
	pollutant := c.Query("pollutant")
	granularity := c.Query("granularity")
	runID := c.Query("run_id")
	if !validGranularity(granularity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid granularity parameter, must be hourly or monthly"})
		return
	}

	cacheKey := fmt.Sprintf("forecasts:%s:%s:%s:%s", pollutant, granularity, runID, p.cursorKey())
	var cached CursorResponse
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && cached.Data != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	query := h.db.Model(&models.Forecast{}).Order("ts DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("ts < ?", *p.Before)
	}
	if pollutant != "" {
		query = query.Where("pollutant = ?", pollutant)
	}
	if granularity != "" {
		query = query.Where("granularity = ?", granularity)
	}
	if runID != "" {
		query = query.Where("run_id = ?", runID)
	}

	var rows []models.Forecast
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	resp := page(rows, p.Limit, func(f models.Forecast) time.Time { return f.TS })
	go h.cache.Set(context.Background(), cacheKey, resp, 30*time.Second)

	c.JSON(http.StatusOK, resp)
}

// GetLatestRun returns the summary of the last run of a tool, as cached
// by the batch tools.
func (h *ForecastHandler) GetLatestRun(c *gin.Context) {
	tool := c.Query("tool")
	if tool == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing tool parameter"})
		return
	}
	pollutant := c.DefaultQuery("pollutant", "O3")

	summary, err := h.cache.LatestRun(c.Request.Context(), tool, pollutant)
	if errors.Is(err, redis.Nil) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache lookup failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
