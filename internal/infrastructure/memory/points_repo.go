package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ErlanBelekov/points-rebuild/internal/domain"
)

// PointsRepository is an in-process ledger store for local runs and tests.
type PointsRepository struct {
	mu      sync.Mutex
	events  []*domain.PointsEvent                      // ordered by ID
	wallets map[string]map[string]*domain.WalletPoints // season -> wallet -> aggregate
	now     func() time.Time
}

func NewPointsRepository(events []domain.PointsEvent) *PointsRepository {
	r := &PointsRepository{
		wallets: make(map[string]map[string]*domain.WalletPoints),
		now:     time.Now,
	}
	for i := range events {
		e := events[i]
		if e.ID == 0 {
			e.ID = int64(i + 1)
		}
		r.events = append(r.events, &e)
	}
	sort.Slice(r.events, func(i, j int) bool { return r.events[i].ID < r.events[j].ID })
	return r
}

func (r *PointsRepository) ResetSeason(_ context.Context, seasonID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := len(r.wallets[seasonID])
	delete(r.wallets, seasonID)

	for _, e := range r.events {
		if e.SeasonID == seasonID {
			e.Ingested = false
		}
	}
	return deleted, nil
}

func (r *PointsRepository) IngestBatch(_ context.Context, seasonID string, since time.Time, limit int) (domain.IngestBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	touched := make(map[string]struct{})
	var batch domain.IngestBatch
	now := r.now()

	for _, e := range r.events {
		if batch.Events >= limit {
			break
		}
		if e.SeasonID != seasonID || e.Ingested {
			continue
		}
		if !since.IsZero() && e.OccurredAt.Before(since) {
			continue
		}

		season, ok := r.wallets[seasonID]
		if !ok {
			season = make(map[string]*domain.WalletPoints)
			r.wallets[seasonID] = season
		}
		w, ok := season[e.Wallet]
		if !ok {
			w = &domain.WalletPoints{SeasonID: seasonID, Wallet: e.Wallet}
			season[e.Wallet] = w
		}
		w.RawPoints += e.Points
		w.UpdatedAt = now

		e.Ingested = true
		touched[e.Wallet] = struct{}{}
		batch.Events++
	}

	batch.Wallets = len(touched)
	return batch, nil
}

func (r *PointsRepository) ListWallets(_ context.Context, seasonID string, offset, limit int) ([]*domain.WalletPoints, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	season := r.wallets[seasonID]
	addrs := make([]string, 0, len(season))
	for addr := range season {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	if offset >= len(addrs) {
		return nil, nil
	}
	end := min(offset+limit, len(addrs))

	out := make([]*domain.WalletPoints, 0, end-offset)
	for _, addr := range addrs[offset:end] {
		cp := *season[addr]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *PointsRepository) CountWallets(_ context.Context, seasonID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.wallets[seasonID]), nil
}

func (r *PointsRepository) SaveScores(_ context.Context, seasonID string, wallets []*domain.WalletPoints) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	season := r.wallets[seasonID]
	for _, w := range wallets {
		stored, ok := season[w.Wallet]
		if !ok {
			return fmt.Errorf("save score: wallet %s not found in season %s", w.Wallet, seasonID)
		}
		stored.Score = w.Score
		stored.UpdatedAt = w.UpdatedAt
	}
	return nil
}

func (r *PointsRepository) Ping(_ context.Context) error { return nil }

// SeedEvents builds a deterministic event set: one to three events for each
// of n wallets, spread over the three days before now.
func SeedEvents(seasonID string, n int, now time.Time) []domain.PointsEvent {
	var events []domain.PointsEvent
	for i := 0; i < n; i++ {
		wallet := fmt.Sprintf("0x%040x", i+1)
		for j := 0; j <= i%3; j++ {
			events = append(events, domain.PointsEvent{
				ID:         int64(len(events) + 1),
				SeasonID:   seasonID,
				Wallet:     wallet,
				Points:     int64((i*37+j*11)%500 + 10),
				OccurredAt: now.Add(-time.Duration((i+j)%72) * time.Hour),
			})
		}
	}
	return events
}
