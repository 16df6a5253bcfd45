package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/domain"
)

// PointsRepository is the dev server's ledger store. The usecase depends on
// this interface so the in-memory and Postgres stores are interchangeable.
type PointsRepository interface {
	// ResetSeason deletes the season's wallet aggregates and marks all of its
	// events un-ingested. Returns the number of aggregates deleted.
	ResetSeason(ctx context.Context, seasonID string) (int, error)

	// IngestBatch folds up to limit un-ingested events into wallet totals,
	// oldest first. A zero since means no time filter.
	IngestBatch(ctx context.Context, seasonID string, since time.Time, limit int) (domain.IngestBatch, error)

	// ListWallets returns aggregates ordered by wallet address.
	ListWallets(ctx context.Context, seasonID string, offset, limit int) ([]*domain.WalletPoints, error)
	CountWallets(ctx context.Context, seasonID string) (int, error)
	SaveScores(ctx context.Context, seasonID string, wallets []*domain.WalletPoints) error

	Ping(ctx context.Context) error
}
