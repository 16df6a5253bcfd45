package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PointsRepository struct {
	pool *pgxpool.Pool
}

func NewPointsRepository(pool *pgxpool.Pool) *PointsRepository {
	return &PointsRepository{pool: pool}
}

func (r *PointsRepository) ResetSeason(ctx context.Context, seasonID string) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM points_wallets WHERE season_id = $1`, seasonID)
	if err != nil {
		return 0, fmt.Errorf("delete wallets: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE points_events
		SET ingested = FALSE
		WHERE season_id = $1 AND ingested`,
		seasonID,
	); err != nil {
		return 0, fmt.Errorf("reopen events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// IngestBatch claims the oldest pending events, marks them ingested and folds
// them into wallet totals in a single statement.
func (r *PointsRepository) IngestBatch(ctx context.Context, seasonID string, since time.Time, limit int) (domain.IngestBatch, error) {
	var sinceArg *time.Time
	if !since.IsZero() {
		sinceArg = &since
	}

	query := `
		WITH batch AS (
			SELECT id
			FROM points_events
			WHERE season_id = $1
			  AND NOT ingested
			  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
			ORDER BY id
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		),
		consumed AS (
			UPDATE points_events e
			SET ingested = TRUE
			FROM batch
			WHERE e.id = batch.id
			RETURNING e.wallet, e.points
		),
		folded AS (
			INSERT INTO points_wallets (season_id, wallet, raw_points, updated_at)
			SELECT $1, wallet, SUM(points), NOW()
			FROM consumed
			GROUP BY wallet
			ON CONFLICT (season_id, wallet) DO UPDATE
			SET raw_points = points_wallets.raw_points + EXCLUDED.raw_points,
			    updated_at = NOW()
			RETURNING wallet
		)
		SELECT (SELECT COUNT(*) FROM consumed), (SELECT COUNT(*) FROM folded)`

	var events, wallets int64
	if err := r.pool.QueryRow(ctx, query, seasonID, sinceArg, limit).Scan(&events, &wallets); err != nil {
		return domain.IngestBatch{}, fmt.Errorf("ingest batch: %w", err)
	}
	return domain.IngestBatch{Events: int(events), Wallets: int(wallets)}, nil
}

func (r *PointsRepository) ListWallets(ctx context.Context, seasonID string, offset, limit int) ([]*domain.WalletPoints, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT season_id, wallet, raw_points, score, updated_at
		FROM points_wallets
		WHERE season_id = $1
		ORDER BY wallet
		OFFSET $2
		LIMIT $3`,
		seasonID, offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var out []*domain.WalletPoints
	for rows.Next() {
		var w domain.WalletPoints
		if err := rows.Scan(&w.SeasonID, &w.Wallet, &w.RawPoints, &w.Score, &w.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		out = append(out, &w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallets: %w", err)
	}
	return out, nil
}

func (r *PointsRepository) CountWallets(ctx context.Context, seasonID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM points_wallets WHERE season_id = $1`, seasonID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count wallets: %w", err)
	}
	return n, nil
}

func (r *PointsRepository) SaveScores(ctx context.Context, seasonID string, wallets []*domain.WalletPoints) error {
	if len(wallets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, w := range wallets {
		batch.Queue(`
			UPDATE points_wallets
			SET score = $3, updated_at = $4
			WHERE season_id = $1 AND wallet = $2`,
			seasonID, w.Wallet, w.Score, w.UpdatedAt,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("save scores: %w", err)
	}
	return nil
}

// SeedEvents inserts events unless the season already has some.
func (r *PointsRepository) SeedEvents(ctx context.Context, events []domain.PointsEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	var existing int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM points_events WHERE season_id = $1`, events[0].SeasonID,
	).Scan(&existing); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}

	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"points_events"},
		[]string{"season_id", "wallet", "points", "occurred_at"},
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			return []any{e.SeasonID, e.Wallet, e.Points, e.OccurredAt}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copy events: %w", err)
	}
	return int(n), nil
}

func (r *PointsRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
