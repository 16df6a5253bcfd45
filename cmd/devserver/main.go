// devserver serves a local points API for exercising the rebuild job.
// With DATABASE_URL set it runs on Postgres, otherwise on an in-memory ledger.
// Run: go run ./cmd/devserver
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/points-rebuild/config"
	"github.com/ErlanBelekov/points-rebuild/internal/devserver"
	"github.com/ErlanBelekov/points-rebuild/internal/infrastructure/memory"
	"github.com/ErlanBelekov/points-rebuild/internal/infrastructure/postgres"
	ctxlog "github.com/ErlanBelekov/points-rebuild/internal/log"
	"github.com/ErlanBelekov/points-rebuild/internal/repository"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := ctxlog.New(os.Stdout, cfg.Env, cfg.SlogLevel())

	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	repo, storeName, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		stop()
		log.Fatalf("store: %v", err)
	}
	defer closeStore()

	handler, _ := devserver.New(logger, repo, devserver.Options{
		Token:         cfg.Token,
		DefaultSeason: cfg.DefaultSeasonID,
		IngestBatch:   cfg.IngestBatch,
		StoreName:     storeName,
	})

	srv := http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("dev server started", "port", cfg.Port, "store", storeName, "season_id", cfg.DefaultSeasonID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
}

// openStore picks Postgres when DATABASE_URL is set and seeds the default
// season with synthetic events either way.
func openStore(ctx context.Context, cfg *config.ServerConfig, logger *slog.Logger) (repository.PointsRepository, string, func(), error) {
	events := memory.SeedEvents(cfg.DefaultSeasonID, cfg.SeedWallets, time.Now())

	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store", "seed_events", len(events))
		return memory.NewPointsRepository(events), "memory", func() {}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, "", nil, err
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, "", nil, err
	}

	repo := postgres.NewPointsRepository(pool)
	seeded, err := repo.SeedEvents(ctx, events)
	if err != nil {
		pool.Close()
		return nil, "", nil, err
	}
	logger.Info("using postgres store", "seeded_events", seeded)
	return repo, "postgres", pool.Close, nil
}
