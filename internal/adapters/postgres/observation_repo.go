package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/ports"
)

// ObservationRepository implements ports.ObservationRepository on Postgres
type ObservationRepository struct {
	db *DB
}

// NewObservationRepository creates a new PostgreSQL observation repository
func NewObservationRepository(db *DB) ports.ObservationRepository {
	return &ObservationRepository{db: db}
}

const observationColumns = `id, item_id, vendor_id, method, captured_at, window_start, price, raw_confidence, failed, score`

// Create appends a single observation
func (r *ObservationRepository) Create(ctx context.Context, obs *domain.Observation) error {
	query := `
		INSERT INTO observations (item_id, vendor_id, method, captured_at, window_start, price, raw_confidence, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.Pool.QueryRow(ctx, query,
		obs.ItemID,
		obs.VendorID,
		string(obs.Method),
		obs.CapturedAt,
		obs.WindowStart,
		priceArg(obs.Price),
		obs.RawConfidence,
		obs.Failed,
	).Scan(&obs.ID)

	if err != nil {
		return fmt.Errorf("failed to create observation: %w", err)
	}

	return nil
}

// CreateBatch appends one round's observations atomically
func (r *ObservationRepository) CreateBatch(ctx context.Context, obs []*domain.Observation) error {
	if len(obs) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO observations (item_id, vendor_id, method, captured_at, window_start, price, raw_confidence, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	for _, o := range obs {
		err := tx.QueryRow(ctx, query,
			o.ItemID,
			o.VendorID,
			string(o.Method),
			o.CapturedAt,
			o.WindowStart,
			priceArg(o.Price),
			o.RawConfidence,
			o.Failed,
		).Scan(&o.ID)

		if err != nil {
			return fmt.Errorf("failed to create observation for %s/%s: %w", o.ItemID, o.VendorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UpdateScores backfills reconciled scores in one transaction; either every
// update in the batch applies or none do.
func (r *ObservationRepository) UpdateScores(ctx context.Context, updates []domain.ScoreUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE observations
		SET score = $4
		WHERE item_id = $1 AND vendor_id = $2 AND window_start = $3
	`

	for _, u := range updates {
		if _, err := tx.Exec(ctx, query, u.ItemID, u.VendorID, u.WindowStart, u.Score); err != nil {
			return fmt.Errorf("failed to update score for %s/%s: %w", u.ItemID, u.VendorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit score updates: %w", err)
	}

	return nil
}

// ListByWindow returns every observation captured in one window
func (r *ObservationRepository) ListByWindow(ctx context.Context, windowStart time.Time) ([]*domain.Observation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE window_start = $1
		ORDER BY item_id, vendor_id, method
	`

	rows, err := r.db.Pool.Query(ctx, query, windowStart)
	if err != nil {
		return nil, fmt.Errorf("failed to list window observations: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ListRecentWindows returns raw rows for an item's most recent N distinct
// windows, oldest first. Aggregation is the caller's job; over-fetching raw
// rows keeps the storage side simple.
func (r *ObservationRepository) ListRecentWindows(ctx context.Context, itemID string, windowCount int) ([]*domain.Observation, error) {
	if windowCount <= 0 {
		windowCount = 96
	}

	query := `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE item_id = $1
		  AND window_start >= COALESCE((
			SELECT MIN(ws) FROM (
				SELECT DISTINCT window_start AS ws
				FROM observations
				WHERE item_id = $1
				ORDER BY ws DESC
				LIMIT $2
			) recent), 'epoch'::timestamptz)
		ORDER BY window_start ASC, vendor_id, method
	`

	rows, err := r.db.Pool.Query(ctx, query, itemID, windowCount)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent windows: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// ListSince returns an item's rows from a window boundary onward, oldest first
func (r *ObservationRepository) ListSince(ctx context.Context, itemID string, from time.Time) ([]*domain.Observation, error) {
	query := `
		SELECT ` + observationColumns + `
		FROM observations
		WHERE item_id = $1 AND window_start >= $2
		ORDER BY window_start ASC, vendor_id, method
	`

	rows, err := r.db.Pool.Query(ctx, query, itemID, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations since %s: %w", from, err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// LatestWindow returns the most recent window start in the log
func (r *ObservationRepository) LatestWindow(ctx context.Context) (time.Time, error) {
	query := `SELECT MAX(window_start) FROM observations`

	var latest *time.Time
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("failed to get latest window: %w", err)
	}
	if latest == nil {
		return time.Time{}, domain.ErrNoObservations
	}

	return latest.UTC(), nil
}

// DistinctItems returns every item the log has rows for
func (r *ObservationRepository) DistinctItems(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT item_id FROM observations ORDER BY item_id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct items: %w", err)
	}
	defer rows.Close()

	var items []string
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

// CountWindows returns the number of distinct windows for an item
func (r *ObservationRepository) CountWindows(ctx context.Context, itemID string) (int64, error) {
	query := `SELECT COUNT(DISTINCT window_start) FROM observations WHERE item_id = $1`

	var count int64
	if err := r.db.Pool.QueryRow(ctx, query, itemID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count windows: %w", err)
	}

	return count, nil
}

func scanObservations(rows pgx.Rows) ([]*domain.Observation, error) {
	var obs []*domain.Observation
	for rows.Next() {
		var o domain.Observation
		var method string
		var priceStr *string

		if err := rows.Scan(
			&o.ID,
			&o.ItemID,
			&o.VendorID,
			&method,
			&o.CapturedAt,
			&o.WindowStart,
			&priceStr,
			&o.RawConfidence,
			&o.Failed,
			&o.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}

		o.Method = domain.Method(method)
		if priceStr != nil {
			price, err := decimal.NewFromString(*priceStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse price: %w", err)
			}
			o.Price = &price
		}

		obs = append(obs, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observations: %w", err)
	}

	return obs, nil
}

func priceArg(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return *p
}

var _ ports.ObservationRepository = (*ObservationRepository)(nil)
