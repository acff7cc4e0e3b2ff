package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
)

type ObservationHandler struct {
	db *gorm.DB
}

func NewObservationHandler(db *gorm.DB) *ObservationHandler {
	return &ObservationHandler{db: db}
}

// GetObservations pages through ingested readings. Not cached: the table
// is large and queries are rarely repeated.
func (h *ObservationHandler) GetObservations(c *gin.Context) {
	p := ParsePagination(c)

	query := h.db.Model(&models.Observation{}).Order("ts DESC").Limit(p.Limit + 1)
	if p.Before != nil {
		query = query.Where("ts < ?", *p.Before)
	}
	if station := c.Query("station_code"); station != "" {
		query = query.Where("station_code = ?", station)
	}
	if pollutant := c.Query("pollutant"); pollutant != "" {
		query = query.Where("pollutant = ?", pollutant)
	}

	var rows []models.Observation
	if err := query.Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	c.JSON(http.StatusOK, page(rows, p.Limit, func(o models.Observation) time.Time { return o.TS }))
}
