package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/wetdog/AQI-Catalonia-Challenge/config"
	"github.com/wetdog/AQI-Catalonia-Challenge/middleware"
	"github.com/wetdog/AQI-Catalonia-Challenge/services"
)

// NewRouter mounts the read API. Observations need an operator token; the
// rest is public.
func NewRouter(db *gorm.DB, cache *services.CacheService, authService *services.AuthService, corsCfg config.CORSConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.SetupCORS(corsCfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "UP",
			"message": "AQI Catalonia API is running",
		})
	})

	forecasts := NewForecastHandler(db, cache)
	aggregations := NewAggregationHandler(db, cache)
	stations := NewStationsHandler(db, cache)
	observations := NewObservationHandler(db)
	auth := NewAuthHandler(authService)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/token", auth.Token)
	v1.GET("/forecasts", forecasts.GetForecasts)
	v1.GET("/runs/latest", forecasts.GetLatestRun)
	v1.GET("/aggregations", aggregations.GetAggregations)
	v1.GET("/stations", stations.GetStations)

	protected := v1.Group("")
	protected.Use(middleware.RequireAuth(authService))
	protected.GET("/observations", observations.GetObservations)

	router.GET("/ws/runs", RunsWebSocket(cache, authService))
	return router
}
