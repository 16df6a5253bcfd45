package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/points-rebuild/internal/metrics"
	"github.com/ErlanBelekov/points-rebuild/internal/transport/http/handler"
	"github.com/ErlanBelekov/points-rebuild/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	sloggin "github.com/samber/slog-gin"
)

func NewRouter(
	logger *slog.Logger,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTP,
	pointsHandler *handler.PointsHandler,
	healthHandler *handler.HealthHandler,
	token string,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics(httpMetrics))

	r.GET("/healthz", healthHandler.Live)
	r.GET("/readyz", healthHandler.Ready)
	r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))

	points := r.Group("/api/points", middleware.Auth(token))
	points.POST("/reset", pointsHandler.Reset)
	points.POST("/ingest", pointsHandler.Ingest)
	points.POST("/recalc", pointsHandler.Recalc)

	return r
}
