package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mapprice/server/config"
)

// NewRouter builds the gin engine with CORS, request logging and routes.
func NewRouter(cfg *config.Config, handler *Handler, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	if len(cfg.Server.AllowedOrigins) == 0 || (len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.Server.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	SetupRoutes(router, handler)
	return router
}

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api")
	{
		api.GET("/map/bounds", handler.GetBounds)
		api.GET("/map/radius", handler.GetRadius)
		api.GET("/map/regions", handler.GetRegions)
		api.GET("/search", handler.SearchByName)
		api.POST("/aggregation/run", handler.TriggerAggregation)
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Debug("Handled request")
	}
}
