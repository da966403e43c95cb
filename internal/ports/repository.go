package ports

import (
	"context"
	"time"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

// ObservationRepository defines the contract for the append-only snapshot log
type ObservationRepository interface {
	// Create appends a single observation
	Create(ctx context.Context, obs *domain.Observation) error

	// CreateBatch appends one round's observations atomically
	CreateBatch(ctx context.Context, obs []*domain.Observation) error

	// UpdateScores backfills reconciled confidence scores; all-or-nothing
	UpdateScores(ctx context.Context, updates []domain.ScoreUpdate) error

	// ListByWindow returns every observation captured in one window
	ListByWindow(ctx context.Context, windowStart time.Time) ([]*domain.Observation, error)

	// ListRecentWindows returns raw rows for an item's most recent N distinct
	// windows, oldest first; the caller aggregates by window
	ListRecentWindows(ctx context.Context, itemID string, windowCount int) ([]*domain.Observation, error)

	// ListSince returns an item's rows from a window boundary onward, oldest first
	ListSince(ctx context.Context, itemID string, from time.Time) ([]*domain.Observation, error)

	// LatestWindow returns the most recent window start in the log
	LatestWindow(ctx context.Context) (time.Time, error)

	// DistinctItems returns every item the log has rows for
	DistinctItems(ctx context.Context) ([]string, error)

	// CountWindows returns the number of distinct windows for an item
	CountWindows(ctx context.Context, itemID string) (int64, error)
}

// DailyRecordRepository defines the contract for per-day trusted prices
type DailyRecordRepository interface {
	// UpsertBatch writes one round's daily records, replacing same-day rows
	UpsertBatch(ctx context.Context, records []*domain.DailyRecord) error

	// GetByDate returns one vendor's record for an item on a date
	GetByDate(ctx context.Context, itemID, vendorID string, date time.Time) (*domain.DailyRecord, error)

	// ListByDate returns all records for a date across items and vendors
	ListByDate(ctx context.Context, date time.Time) ([]*domain.DailyRecord, error)

	// ListByItemDate returns all vendor records for an item on a date
	ListByItemDate(ctx context.Context, itemID string, date time.Time) ([]*domain.DailyRecord, error)
}
