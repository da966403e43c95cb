package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bullionwatch/bullion-snapshot-service/internal/aggregate"
	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/ports"
)

const (
	defaultHistoryDays = 7
	maxHistoryDays     = 90
)

// ReportService implements the ports.ReportService interface. It is the
// read side: repositories supply raw rows, the aggregate package derives
// the projections.
type ReportService struct {
	obsRepo      ports.ObservationRepository
	dailyRepo    ports.DailyRecordRepository
	windowPeriod time.Duration
	logger       *slog.Logger
}

// NewReportService creates a new report service
func NewReportService(
	obsRepo ports.ObservationRepository,
	dailyRepo ports.DailyRecordRepository,
	windowPeriod time.Duration,
	logger *slog.Logger,
) *ReportService {
	if windowPeriod <= 0 {
		windowPeriod = domain.DefaultWindowPeriod
	}
	return &ReportService{
		obsRepo:      obsRepo,
		dailyRepo:    dailyRepo,
		windowPeriod: windowPeriod,
		logger:       logger.With("component", "report_service"),
	}
}

// Manifest lists known items, the latest window, and per-item window counts.
func (s *ReportService) Manifest(ctx context.Context) (*domain.Manifest, error) {
	items, err := s.obsRepo.DistinctItems(ctx)
	if err != nil {
		return nil, err
	}

	manifest := &domain.Manifest{
		Items:        items,
		WindowCounts: make(map[string]int64, len(items)),
	}

	latest, err := s.obsRepo.LatestWindow(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNoObservations) {
			return manifest, nil
		}
		return nil, err
	}
	manifest.LatestWindow = latest

	for _, item := range items {
		count, err := s.obsRepo.CountWindows(ctx, item)
		if err != nil {
			return nil, err
		}
		manifest.WindowCounts[item] = count
	}

	return manifest, nil
}

// LatestAll returns every item's cross-vendor median/low at the latest window.
func (s *ReportService) LatestAll(ctx context.Context) ([]*domain.ItemSnapshot, error) {
	latest, err := s.obsRepo.LatestWindow(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.obsRepo.ListByWindow(ctx, latest)
	if err != nil {
		return nil, err
	}

	byItem := make(map[string][]*domain.Observation)
	for _, r := range rows {
		byItem[r.ItemID] = append(byItem[r.ItemID], r)
	}

	items, err := s.obsRepo.DistinctItems(ctx)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*domain.ItemSnapshot, 0, len(byItem))
	for _, item := range items {
		point, ok := aggregate.LatestSnapshot(byItem[item])
		if !ok {
			// item missing from the latest window entirely
			continue
		}
		snapshots = append(snapshots, &domain.ItemSnapshot{
			ItemID: item,
			Median: point.Median,
			Low:    point.Low,
		})
	}

	return snapshots, nil
}

// ItemLatest returns an item's per-vendor daily records at the latest window
// plus its rolling median/low series over the trailing day of windows.
func (s *ReportService) ItemLatest(ctx context.Context, itemID string) (*domain.ItemLatest, error) {
	if err := s.requireItem(ctx, itemID); err != nil {
		return nil, err
	}

	latest, err := s.obsRepo.LatestWindow(ctx)
	if err != nil {
		return nil, err
	}

	windowCount := int(24 * time.Hour / s.windowPeriod)
	rows, err := s.obsRepo.ListRecentWindows(ctx, itemID, windowCount)
	if err != nil {
		return nil, err
	}

	vendors, err := s.dailyRepo.ListByItemDate(ctx, itemID, dateOf(latest))
	if err != nil && !errors.Is(err, domain.ErrNoObservations) {
		return nil, err
	}

	return &domain.ItemLatest{
		ItemID:  itemID,
		Window:  latest,
		Vendors: vendors,
		Series:  aggregate.RollingSeries(rows, windowCount),
	}, nil
}

// ItemHistory returns an item's daily aggregates over the trailing days,
// anchored on the latest window's date. Days is clamped to [1,90] with a
// default of 7.
func (s *ReportService) ItemHistory(ctx context.Context, itemID string, days int) ([]*domain.DailyAggregate, error) {
	if days <= 0 {
		days = defaultHistoryDays
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}

	if err := s.requireItem(ctx, itemID); err != nil {
		return nil, err
	}

	latest, err := s.obsRepo.LatestWindow(ctx)
	if err != nil {
		return nil, err
	}

	from := dateOf(latest).AddDate(0, 0, -(days - 1))
	rows, err := s.obsRepo.ListSince(ctx, itemID, from)
	if err != nil {
		return nil, err
	}

	return aggregate.DailyHistory(rows, days), nil
}

// requireItem distinguishes an unknown item from one with no recent data.
func (s *ReportService) requireItem(ctx context.Context, itemID string) error {
	count, err := s.obsRepo.CountWindows(ctx, itemID)
	if err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// Ensure ReportService implements ports.ReportService
var _ ports.ReportService = (*ReportService)(nil)
