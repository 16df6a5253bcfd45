package domain

import "time"

// PointsEvent is a raw points-earning event waiting to be folded into a wallet total.
type PointsEvent struct {
	ID         int64
	SeasonID   string
	Wallet     string
	Points     int64
	OccurredAt time.Time
	Ingested   bool
}

// WalletPoints is the per-season aggregate for one wallet.
type WalletPoints struct {
	SeasonID  string
	Wallet    string
	RawPoints int64
	Score     int64
	UpdatedAt time.Time
}

// IngestBatch is what one ingest pass consumed.
type IngestBatch struct {
	Events  int
	Wallets int
}
