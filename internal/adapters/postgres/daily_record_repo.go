package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/ports"
)

// DailyRecordRepository implements ports.DailyRecordRepository on Postgres
type DailyRecordRepository struct {
	db *DB
}

// NewDailyRecordRepository creates a new PostgreSQL daily record repository
func NewDailyRecordRepository(db *DB) ports.DailyRecordRepository {
	return &DailyRecordRepository{db: db}
}

const dailyRecordColumns = `id, item_id, vendor_id, record_date, price, score, method_label, flags, has_text, has_vision`

// UpsertBatch writes one round's daily records in a single transaction,
// replacing any row already written for the same (item, vendor, date).
func (r *DailyRecordRepository) UpsertBatch(ctx context.Context, records []*domain.DailyRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO daily_records (item_id, vendor_id, record_date, price, score, method_label, flags, has_text, has_vision)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (item_id, vendor_id, record_date) DO UPDATE SET
			price = EXCLUDED.price,
			score = EXCLUDED.score,
			method_label = EXCLUDED.method_label,
			flags = EXCLUDED.flags,
			has_text = EXCLUDED.has_text,
			has_vision = EXCLUDED.has_vision
		RETURNING id
	`

	for _, rec := range records {
		err := tx.QueryRow(ctx, query,
			rec.ItemID,
			rec.VendorID,
			rec.Date,
			priceArg(rec.Price),
			rec.Score,
			rec.MethodLabel,
			rec.Flags,
			rec.HasText,
			rec.HasVision,
		).Scan(&rec.ID)

		if err != nil {
			return fmt.Errorf("failed to upsert daily record for %s/%s: %w", rec.ItemID, rec.VendorID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit daily records: %w", err)
	}

	return nil
}

// GetByDate returns one vendor's record for an item on a date
func (r *DailyRecordRepository) GetByDate(ctx context.Context, itemID, vendorID string, date time.Time) (*domain.DailyRecord, error) {
	query := `
		SELECT ` + dailyRecordColumns + `
		FROM daily_records
		WHERE item_id = $1 AND vendor_id = $2 AND record_date = $3
	`

	rec, err := scanDailyRecord(r.db.Pool.QueryRow(ctx, query, itemID, vendorID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNoObservations
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get daily record: %w", err)
	}

	return rec, nil
}

// ListByDate returns all records for a date across items and vendors
func (r *DailyRecordRepository) ListByDate(ctx context.Context, date time.Time) ([]*domain.DailyRecord, error) {
	query := `
		SELECT ` + dailyRecordColumns + `
		FROM daily_records
		WHERE record_date = $1
		ORDER BY item_id, vendor_id
	`

	rows, err := r.db.Pool.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list daily records: %w", err)
	}
	defer rows.Close()

	return scanDailyRecords(rows)
}

// ListByItemDate returns all vendor records for an item on a date
func (r *DailyRecordRepository) ListByItemDate(ctx context.Context, itemID string, date time.Time) ([]*domain.DailyRecord, error) {
	query := `
		SELECT ` + dailyRecordColumns + `
		FROM daily_records
		WHERE item_id = $1 AND record_date = $2
		ORDER BY vendor_id
	`

	rows, err := r.db.Pool.Query(ctx, query, itemID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list item daily records: %w", err)
	}
	defer rows.Close()

	return scanDailyRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDailyRecord(row rowScanner) (*domain.DailyRecord, error) {
	var rec domain.DailyRecord
	var priceStr *string

	if err := row.Scan(
		&rec.ID,
		&rec.ItemID,
		&rec.VendorID,
		&rec.Date,
		&priceStr,
		&rec.Score,
		&rec.MethodLabel,
		&rec.Flags,
		&rec.HasText,
		&rec.HasVision,
	); err != nil {
		return nil, err
	}

	if priceStr != nil {
		price, err := decimal.NewFromString(*priceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse price: %w", err)
		}
		rec.Price = &price
	}

	rec.Date = rec.Date.UTC()
	return &rec, nil
}

func scanDailyRecords(rows pgx.Rows) ([]*domain.DailyRecord, error) {
	var records []*domain.DailyRecord
	for rows.Next() {
		rec, err := scanDailyRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily records: %w", err)
	}

	return records, nil
}

var _ ports.DailyRecordRepository = (*DailyRecordRepository)(nil)
