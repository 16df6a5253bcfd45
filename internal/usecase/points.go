package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/repository"
)

const (
	DefaultRecalcLimit = 500
	MaxRecalcLimit     = 5000
)

// Score tiers applied by a full (non-fast) recalc.
const (
	tierGoldPoints   = 10_000
	tierSilverPoints = 1_000
)

type PointsUsecase struct {
	repo          repository.PointsRepository
	defaultSeason string
	ingestBatch   int
	now           func() time.Time
}

func NewPointsUsecase(repo repository.PointsRepository, defaultSeason string, ingestBatch int) *PointsUsecase {
	return &PointsUsecase{
		repo:          repo,
		defaultSeason: defaultSeason,
		ingestBatch:   ingestBatch,
		now:           time.Now,
	}
}

type ResetOutput struct {
	Deleted  int
	SeasonID string
}

func (u *PointsUsecase) Reset(ctx context.Context, seasonID string) (ResetOutput, error) {
	season := u.season(seasonID)

	deleted, err := u.repo.ResetSeason(ctx, season)
	if err != nil {
		return ResetOutput{}, fmt.Errorf("reset season: %w", err)
	}
	return ResetOutput{Deleted: deleted, SeasonID: season}, nil
}

type IngestInput struct {
	SeasonID      string
	WindowSeconds int // 0 = no window
}

type IngestOutput struct {
	IngestedWallets int
	CursorUpdates   int
	UpdatedAt       time.Time
}

func (u *PointsUsecase) Ingest(ctx context.Context, input IngestInput) (IngestOutput, error) {
	now := u.now()

	var since time.Time
	if input.WindowSeconds > 0 {
		since = now.Add(-time.Duration(input.WindowSeconds) * time.Second)
	}

	batch, err := u.repo.IngestBatch(ctx, u.season(input.SeasonID), since, u.ingestBatch)
	if err != nil {
		return IngestOutput{}, fmt.Errorf("ingest batch: %w", err)
	}

	out := IngestOutput{IngestedWallets: batch.Wallets, UpdatedAt: now}
	if batch.Events > 0 {
		out.CursorUpdates = 1
	}
	return out, nil
}

type RecalcInput struct {
	SeasonID string
	Cursor   int
	Limit    int
	Fast     bool
}

type RecalcOutput struct {
	Processed  int
	NextCursor *int // nil once the last page has been processed
	Done       bool
}

// Recalc scores one page of wallets starting at Cursor.
func (u *PointsUsecase) Recalc(ctx context.Context, input RecalcInput) (RecalcOutput, error) {
	season := u.season(input.SeasonID)

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultRecalcLimit
	}
	limit = min(limit, MaxRecalcLimit)

	total, err := u.repo.CountWallets(ctx, season)
	if err != nil {
		return RecalcOutput{}, fmt.Errorf("count wallets: %w", err)
	}

	wallets, err := u.repo.ListWallets(ctx, season, input.Cursor, limit)
	if err != nil {
		return RecalcOutput{}, fmt.Errorf("list wallets: %w", err)
	}

	now := u.now()
	for _, w := range wallets {
		w.Score = score(w.RawPoints, input.Fast)
		w.UpdatedAt = now
	}

	if err := u.repo.SaveScores(ctx, season, wallets); err != nil {
		return RecalcOutput{}, fmt.Errorf("save scores: %w", err)
	}

	out := RecalcOutput{Processed: len(wallets)}
	next := input.Cursor + len(wallets)
	if len(wallets) == 0 || next >= total {
		out.Done = true
		return out, nil
	}
	out.NextCursor = &next
	return out, nil
}

func (u *PointsUsecase) season(seasonID string) string {
	if seasonID == "" {
		return u.defaultSeason
	}
	return seasonID
}

// score returns raw points in fast mode; a full recalc applies tier multipliers.
func score(raw int64, fast bool) int64 {
	if fast {
		return raw
	}
	switch {
	case raw >= tierGoldPoints:
		return raw * 3 / 2
	case raw >= tierSilverPoints:
		return raw * 6 / 5
	default:
		return raw
	}
}
