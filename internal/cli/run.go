package cli

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/ErlanBelekov/points-rebuild/config"
	ctxlog "github.com/ErlanBelekov/points-rebuild/internal/log"
	"github.com/ErlanBelekov/points-rebuild/internal/metrics"
	"github.com/ErlanBelekov/points-rebuild/internal/rebuild"
	"github.com/ErlanBelekov/points-rebuild/internal/runctx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const pushTimeout = 10 * time.Second

func newRunCommand(environ Env, stdout io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run reset, ingest and recalc once (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), withFlagOverrides(environ, cmd.Flags()), stdout)
		},
	}

	cmd.Flags().String("season", "", "season id, overrides SEASON_ID")
	cmd.Flags().Bool("skip-reset", false, "skip the reset stage, overrides SKIP_RESET")
	cmd.Flags().Bool("skip-ingest", false, "skip the ingest stage, overrides SKIP_INGEST")
	cmd.Flags().Bool("fast", false, "request fast recalc, overrides RECALC_FAST")
	return cmd
}

// withFlagOverrides returns a copy of environ with explicitly set flags applied
// on top, so config resolution stays in one place.
func withFlagOverrides(environ Env, flags *pflag.FlagSet) Env {
	out := maps.Clone(environ)
	if out == nil {
		out = Env{}
	}

	overrides := map[string]string{
		"season":      "SEASON_ID",
		"skip-reset":  "SKIP_RESET",
		"skip-ingest": "SKIP_INGEST",
		"fast":        "RECALC_FAST",
	}
	for name, key := range overrides {
		if f := flags.Lookup(name); f != nil && f.Changed {
			out[key] = f.Value.String()
		}
	}
	return out
}

func run(ctx context.Context, environ Env, stdout io.Writer) error {
	cfg, err := config.LoadFrom(environ)
	if err != nil {
		logger := ctxlog.New(stdout, environ["ENV"], slog.LevelInfo)
		logger.ErrorContext(ctx, "config error", "error", err)
		return &runFailedError{err: err}
	}

	logger := ctxlog.New(stdout, cfg.Env, cfg.SlogLevel())
	ctx = runctx.WithRunID(ctx, runctx.NewID())

	reg := prometheus.NewRegistry()
	executor := rebuild.NewExecutor(cfg.BaseURL, cfg.Token, cfg.CallTimeout())
	orch := rebuild.NewOrchestrator(cfg, executor, logger, metrics.NewRun(reg))

	summary, runErr := orch.Run(ctx)
	pushMetrics(ctx, logger, cfg, reg)

	if runErr != nil {
		logger.ErrorContext(ctx, "points rebuild failed", "error", runErr)
		return &runFailedError{err: runErr}
	}

	logger.InfoContext(ctx, "points rebuild summary",
		"season_id", summary.SeasonID,
		"reset_deleted", summary.ResetDeleted,
		"ingest_rounds", summary.IngestRounds,
		"ingest_capped", summary.IngestCapped,
		"recalc_processed", summary.RecalcProcessed,
		"final_cursor", strconv.FormatFloat(summary.FinalCursor, 'f', -1, 64),
	)
	return nil
}

// pushMetrics ships the run's collectors to the Pushgateway when one is
// configured. Failures are logged and never change the exit code.
func pushMetrics(ctx context.Context, logger *slog.Logger, cfg *config.Config, g prometheus.Gatherer) {
	if cfg.PushgatewayURL == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	if err := metrics.Push(ctx, cfg.PushgatewayURL, g, cfg.SeasonID); err != nil {
		logger.WarnContext(ctx, "metrics push failed", "url", cfg.PushgatewayURL, "error", err)
	}
}
