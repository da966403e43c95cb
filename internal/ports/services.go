package ports

import (
	"context"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

// RoundRunner defines the contract for acquisition round orchestration
type RoundRunner interface {
	// RunRound executes one acquisition round; a zero-yield round returns
	// domain.ErrEmptyRound alongside the summary
	RunRound(ctx context.Context) (*domain.RoundSummary, error)
}

// ReportService defines the read-side contract over the snapshot log
type ReportService interface {
	// Manifest lists known items, the latest window, and per-item window counts
	Manifest(ctx context.Context) (*domain.Manifest, error)

	// LatestAll returns every item's median/low at the latest window
	LatestAll(ctx context.Context) ([]*domain.ItemSnapshot, error)

	// ItemLatest returns an item's vendor records plus its 24h rolling series
	ItemLatest(ctx context.Context, itemID string) (*domain.ItemLatest, error)

	// ItemHistory returns an item's daily aggregates over the trailing days
	ItemHistory(ctx context.Context, itemID string, days int) ([]*domain.DailyAggregate, error)
}
