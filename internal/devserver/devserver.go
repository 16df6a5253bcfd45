// Package devserver assembles the local points API stand-in: usecase,
// health, metrics and gin router over a given ledger store.
package devserver

import (
	"log/slog"

	"github.com/ErlanBelekov/points-rebuild/internal/health"
	"github.com/ErlanBelekov/points-rebuild/internal/metrics"
	"github.com/ErlanBelekov/points-rebuild/internal/repository"
	httptransport "github.com/ErlanBelekov/points-rebuild/internal/transport/http"
	"github.com/ErlanBelekov/points-rebuild/internal/transport/http/handler"
	"github.com/ErlanBelekov/points-rebuild/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Options struct {
	Token         string
	DefaultSeason string
	IngestBatch   int
	// StoreName labels the store in health checks, e.g. "memory" or "postgres".
	StoreName string
}

// New returns the dev server handler and the registry its metrics live on.
func New(logger *slog.Logger, repo repository.PointsRepository, opts Options) (*gin.Engine, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	pointsUsecase := usecase.NewPointsUsecase(repo, opts.DefaultSeason, opts.IngestBatch)
	pointsHandler := handler.NewPointsHandler(pointsUsecase, logger)

	checker := health.NewChecker(opts.StoreName, repo, logger, reg)
	healthHandler := handler.NewHealthHandler(checker)

	router := httptransport.NewRouter(logger, reg, metrics.NewHTTP(reg), pointsHandler, healthHandler, opts.Token)
	return router, reg
}
