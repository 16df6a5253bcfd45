package rebuild

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ErlanBelekov/points-rebuild/config"
	"github.com/ErlanBelekov/points-rebuild/internal/domain"
	"github.com/ErlanBelekov/points-rebuild/internal/metrics"
	"github.com/ErlanBelekov/points-rebuild/internal/runctx"
)

// Orchestrator drives reset, ingest and recalc against the points API,
// strictly one call at a time.
type Orchestrator struct {
	cfg     *config.Config
	caller  Caller
	policy  RetryPolicy
	logger  *slog.Logger
	metrics *metrics.Run
	sleep   SleepFunc
}

type Option func(*Orchestrator)

// WithSleep replaces the context-aware sleep used for backoff and ingest pauses.
func WithSleep(fn SleepFunc) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

func NewOrchestrator(cfg *config.Config, caller Caller, logger *slog.Logger, m *metrics.Run, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		caller: caller,
		policy: RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBaseDelay(),
		},
		logger:  logger.With("component", "orchestrator"),
		metrics: m,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the enabled stages in order. The first stage failure ends
// the run; effects already applied remotely are not undone.
func (o *Orchestrator) Run(ctx context.Context) (domain.RunSummary, error) {
	summary := domain.RunSummary{SeasonID: o.cfg.SeasonID}

	o.logger.InfoContext(ctx, "points rebuild starting",
		"base_url", o.cfg.BaseURL,
		"season_id", o.cfg.SeasonID,
		"skip_reset", o.cfg.SkipReset,
		"skip_ingest", o.cfg.SkipIngest,
		"recalc_limit", o.cfg.RecalcLimit,
		"recalc_fast", o.cfg.RecalcFast,
	)

	if o.cfg.SkipReset {
		o.logger.InfoContext(ctx, "reset skipped")
	} else if err := o.reset(ctx, &summary); err != nil {
		return summary, fmt.Errorf("reset: %w", err)
	}

	if o.cfg.SkipIngest {
		o.logger.InfoContext(ctx, "ingest skipped")
	} else if err := o.ingest(ctx, &summary); err != nil {
		return summary, fmt.Errorf("ingest: %w", err)
	}

	if err := o.recalc(ctx, &summary); err != nil {
		return summary, fmt.Errorf("recalc: %w", err)
	}

	o.metrics.LastSuccess.SetToCurrentTime()
	o.logger.InfoContext(ctx, "points rebuild finished",
		"ingest_rounds", summary.IngestRounds,
		"recalc_rounds", summary.RecalcRounds,
		"recalc_processed", summary.RecalcProcessed,
		"recalc_stop", summary.RecalcStop,
	)
	return summary, nil
}

func (o *Orchestrator) reset(ctx context.Context, summary *domain.RunSummary) error {
	ctx = runctx.WithStage(ctx, string(domain.StageReset))

	var res domain.ResetResult
	err := o.call(ctx, domain.StageReset, domain.PathReset, map[string]string{
		"seasonId": o.cfg.SeasonID,
	}, &res)
	if err != nil {
		return err
	}

	summary.ResetDeleted = res.Deleted
	if res.SeasonID != "" {
		summary.SeasonID = res.SeasonID
	}
	o.logger.InfoContext(ctx, "reset done", "deleted", res.Deleted, "season_id", res.SeasonID)
	return nil
}

func (o *Orchestrator) ingest(ctx context.Context, summary *domain.RunSummary) error {
	ctx = runctx.WithStage(ctx, string(domain.StageIngest))

	params := map[string]string{"seasonId": o.cfg.SeasonID}
	if o.cfg.IngestWindowSeconds > 0 {
		params["ingestWindowSeconds"] = strconv.Itoa(o.cfg.IngestWindowSeconds)
	}

	for round := 1; round <= o.cfg.MaxIngestRounds; round++ {
		var res domain.IngestResult
		if err := o.call(ctx, domain.StageIngest, domain.PathIngest, params, &res); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}
		summary.IngestRounds = round

		o.logger.InfoContext(ctx, "ingest round",
			"round", round,
			"ingested_wallets", res.IngestedWallets,
			"cursor_updates", res.CursorUpdates,
		)

		if res.Exhausted() {
			o.logger.InfoContext(ctx, "ingest complete", "rounds", round)
			return nil
		}

		if round < o.cfg.MaxIngestRounds {
			if err := o.sleep(ctx, o.cfg.IngestRoundDelay()); err != nil {
				return fmt.Errorf("pause after round %d: %w", round, err)
			}
		}
	}

	summary.IngestCapped = true
	o.logger.WarnContext(ctx, "ingest stopped at round cap", "max_rounds", o.cfg.MaxIngestRounds)
	return nil
}

func (o *Orchestrator) recalc(ctx context.Context, summary *domain.RunSummary) error {
	ctx = runctx.WithStage(ctx, string(domain.StageRecalc))

	cursor := 0.0
	for round := 1; ; round++ {
		if o.cfg.RecalcMaxRounds > 0 && round > o.cfg.RecalcMaxRounds {
			o.finishRecalc(ctx, summary, cursor, domain.RecalcStopMaxRounds)
			return nil
		}

		params := map[string]string{
			"seasonId": o.cfg.SeasonID,
			"cursor":   formatCursor(cursor),
			"limit":    strconv.Itoa(o.cfg.RecalcLimit),
		}
		if o.cfg.RecalcFast {
			params["fast"] = "1"
		}

		var res domain.RecalcResult
		if err := o.call(ctx, domain.StageRecalc, domain.PathRecalc, params, &res); err != nil {
			return fmt.Errorf("cursor %s: %w", formatCursor(cursor), err)
		}
		summary.RecalcRounds = round
		summary.RecalcProcessed += res.Processed

		o.logger.InfoContext(ctx, "recalc round",
			"round", round,
			"cursor", cursor,
			"processed", res.Processed,
			"next_cursor", string(res.NextCursor),
			"done", res.Done,
		)

		if res.Done {
			o.finishRecalc(ctx, summary, cursor, domain.RecalcStopDone)
			return nil
		}

		next, stop := nextCursor(res.NextCursor, cursor)
		if stop != "" {
			o.finishRecalc(ctx, summary, cursor, stop)
			return nil
		}
		cursor = next
	}
}

func (o *Orchestrator) finishRecalc(ctx context.Context, summary *domain.RunSummary, cursor float64, stop domain.RecalcStop) {
	summary.FinalCursor = cursor
	summary.RecalcStop = stop

	if stop == domain.RecalcStopStalled || stop == domain.RecalcStopInvalidCursor || stop == domain.RecalcStopMaxRounds {
		o.logger.WarnContext(ctx, "recalc stopped early", "reason", stop, "cursor", cursor)
		return
	}
	o.logger.InfoContext(ctx, "recalc complete", "reason", stop, "rounds", summary.RecalcRounds)
}

// call performs one logical call with retries, decoding a successful body into out.
func (o *Orchestrator) call(ctx context.Context, stage domain.Stage, path string, params map[string]string, out any) error {
	query := buildQuery(params)

	for attempt := 1; ; attempt++ {
		o.logger.DebugContext(ctx, "calling points api", "path", path, "query", query, "attempt", attempt)

		start := time.Now()
		resp, err := o.caller.Call(ctx, path, params)
		a := domain.CallAttempt{
			Stage:    stage,
			Path:     path,
			Query:    query,
			Attempt:  attempt,
			Status:   resp.Status,
			Err:      err,
			Duration: time.Since(start),
		}

		if err == nil {
			o.metrics.ObserveAttempt(a, metrics.OutcomeSuccess)
			o.metrics.ObserveRound(stage)
			o.decode(ctx, resp.Body, out)
			return nil
		}

		var he *domain.HTTPError
		if errors.As(err, &he) {
			a.Status = he.Status
		}

		if ctx.Err() != nil {
			o.metrics.ObserveAttempt(a, metrics.OutcomeFailed)
			return fmt.Errorf("attempt %d: %w", attempt, errors.Join(ctx.Err(), err))
		}

		if !IsRetriable(err) {
			o.metrics.ObserveAttempt(a, metrics.OutcomeFailed)
			o.logger.ErrorContext(ctx, "call failed, not retriable", "path", path, "attempt", attempt, "status", a.Status, "error", err)
			return err
		}

		if !o.policy.CanRetry(attempt) {
			o.metrics.ObserveAttempt(a, metrics.OutcomeFailed)
			o.logger.ErrorContext(ctx, "call failed, retries exhausted", "path", path, "attempt", attempt, "status", a.Status, "error", err)
			return fmt.Errorf("%w after %d attempts: %w", domain.ErrRetriesExhausted, attempt, err)
		}

		delay := o.policy.Delay(attempt)
		o.metrics.ObserveAttempt(a, metrics.OutcomeRetry)
		o.logger.WarnContext(ctx, "call failed, will retry",
			"path", path,
			"attempt", attempt,
			"max_retries", o.policy.MaxRetries,
			"status", a.Status,
			"delay", delay,
			"error", err,
		)

		if err := o.sleep(ctx, delay); err != nil {
			return fmt.Errorf("wait before retry: %w", err)
		}
	}
}

// decode fills out from body. A payload that does not match the expected
// shape leaves the unmatched fields at their zero value.
func (o *Orchestrator) decode(ctx context.Context, body json.RawMessage, out any) {
	if err := json.Unmarshal(body, out); err != nil {
		o.logger.WarnContext(ctx, "unexpected response payload", "body", truncate(string(body), 256), "error", err)
	}
}

// nextCursor parses the backend's nextCursor and decides whether the loop
// may continue. The cursor must be a finite number strictly greater than current.
func nextCursor(raw json.RawMessage, current float64) (float64, domain.RecalcStop) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" || trimmed == `""` {
		return 0, domain.RecalcStopNoCursor
	}

	var next float64
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, domain.RecalcStopInvalidCursor
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, domain.RecalcStopInvalidCursor
		}
		next = v
	} else if err := json.Unmarshal(raw, &next); err != nil {
		return 0, domain.RecalcStopInvalidCursor
	}

	if math.IsNaN(next) || math.IsInf(next, 0) {
		return 0, domain.RecalcStopInvalidCursor
	}
	if next <= current {
		return 0, domain.RecalcStopStalled
	}
	return next, ""
}

func formatCursor(c float64) string {
	return strconv.FormatFloat(c, 'f', -1, 64)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
