package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/chargemap/internal/infra/config"
)

// NewRouter wires up the HTTP handlers and returns a configured server.
func NewRouter(cfg *config.Config, handler *Handler) *http.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(handler.logger),
		corsMiddleware(newCORSPolicy(cfg.HTTP)),
		errorHandlingMiddleware(handler.logger),
	)

	router.GET("/healthz", handler.Healthz)

	api := router.Group("/api/v1")
	api.Use(rateLimitMiddleware(cfg.HTTP.RateLimit, handler.logger))
	{
		api.GET("/healthz", handler.Healthz)
		api.GET("/cities", handler.Cities)
		api.GET("/cities/:slug/stats", handler.CityStats)
		api.POST("/cities/:slug/refresh", handler.RefreshCity)

		api.POST("/sessions", handler.OpenSession)
		api.GET("/sessions/:id/sidebar", handler.Sidebar)
		api.GET("/sessions/:id/map", handler.Map)
		api.GET("/sessions/:id/map.geojson", handler.MapGeoJSON)
		api.GET("/sessions/:id/stats", handler.Stats)
		api.PUT("/sessions/:id/filter", handler.SetFilter)
		api.POST("/sessions/:id/select", handler.Select)
		api.POST("/sessions/:id/close", handler.CloseDetail)
		api.GET("/sessions/:id/detail", handler.Detail)
		api.DELETE("/sessions/:id", handler.DeleteSession)
	}

	return &http.Server{
		Addr:           cfg.HTTP.Address,
		Handler:        withRetry(router, cfg.HTTP.Retry, handler.logger),
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("http request", "method", c.Request.Method, "path", c.Request.URL.Path, "status", c.Writer.Status(), "latency_ms", latency.Milliseconds())
	}
}
