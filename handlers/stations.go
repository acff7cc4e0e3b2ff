package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gorm.io/gorm"

	"github.com/wetdog/AQI-Catalonia-Challenge/models"
	"github.com/wetdog/AQI-Catalonia-Challenge/services"
)

type StationsHandler struct {
	db    *gorm.DB
	cache *services.CacheService
}

func NewStationsHandler(db *gorm.DB, cache *services.CacheService) *StationsHandler {
	return &StationsHandler{db: db, cache: cache}
}

// GetStations returns the monitoring stations as a GeoJSON FeatureCollection.
// Stations without coordinates are left out.
func (h *StationsHandler) GetStations(c *gin.Context) {
	const cacheKey = "stations:geojson"

	var cached json.RawMessage
	if err := h.cache.Get(c.Request.Context(), cacheKey, &cached); err == nil && len(cached) > 0 {
		c.Data(http.StatusOK, "application/geo+json", cached)
		return
	}

	var stations []models.Station
	if err := h.db.Order("code").Find(&stations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database query failed"})
		return
	}

	data, err := json.Marshal(stationFeatures(stations))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to encode stations"})
		return
	}
	go h.cache.Set(context.Background(), cacheKey, json.RawMessage(data), 5*time.Minute)

	c.Data(http.StatusOK, "application/geo+json", data)
}

func stationFeatures(stations []models.Station) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: []*geojson.Feature{}}
	for _, st := range stations {
		if st.Longitude == nil || st.Latitude == nil {
			continue
		}
		point := geom.NewPointFlat(geom.XY, []float64{*st.Longitude, *st.Latitude})
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       st.Code,
			Geometry: point,
			Properties: map[string]interface{}{
				"name":         st.Name,
				"area_type":    st.AreaType,
				"station_type": st.StationType,
				"altitude":     st.Altitude,
			},
		})
	}
	return fc
}
