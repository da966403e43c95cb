package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

func obsRow(itemID, vendorID string, window time.Time, price float64) *domain.Observation {
	p := decimal.NewFromFloat(price)
	return &domain.Observation{
		ItemID:      itemID,
		VendorID:    vendorID,
		Method:      domain.MethodText,
		WindowStart: window,
		Price:       &p,
	}
}

func TestReportService_Manifest(t *testing.T) {
	t.Run("lists items with window counts", func(t *testing.T) {
		latest := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
		obsRepo := &mockObsRepo{
			items:       []string{"ase", "gbuff"},
			latest:      latest,
			windowCount: 12,
		}

		svc := NewReportService(obsRepo, &mockDailyRepo{}, 15*time.Minute, newTestLogger())

		manifest, err := svc.Manifest(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"ase", "gbuff"}, manifest.Items)
		assert.Equal(t, latest, manifest.LatestWindow)
		assert.Equal(t, int64(12), manifest.WindowCounts["ase"])
	})

	t.Run("empty store yields empty manifest", func(t *testing.T) {
		obsRepo := &mockObsRepo{latestErr: domain.ErrNoObservations}

		svc := NewReportService(obsRepo, &mockDailyRepo{}, 15*time.Minute, newTestLogger())

		manifest, err := svc.Manifest(context.Background())
		require.NoError(t, err)
		assert.Empty(t, manifest.Items)
		assert.True(t, manifest.LatestWindow.IsZero())
	})
}

func TestReportService_LatestAll(t *testing.T) {
	t.Run("returns median and low per item", func(t *testing.T) {
		window := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
		obsRepo := &mockObsRepo{
			items:  []string{"ase"},
			latest: window,
			byWindow: []*domain.Observation{
				obsRow("ase", "vendorA", window, 100),
				obsRow("ase", "vendorB", window, 102),
				obsRow("ase", "vendorC", window, 98),
			},
			windowCount: 1,
		}

		svc := NewReportService(obsRepo, &mockDailyRepo{}, 15*time.Minute, newTestLogger())

		snapshots, err := svc.LatestAll(context.Background())
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.Equal(t, "ase", snapshots[0].ItemID)
		assert.True(t, snapshots[0].Median.Equal(decimal.NewFromInt(100)))
		assert.True(t, snapshots[0].Low.Equal(decimal.NewFromInt(98)))
	})
}

func TestReportService_ItemLatest(t *testing.T) {
	t.Run("unknown item returns not found", func(t *testing.T) {
		obsRepo := &mockObsRepo{windowCount: 0}

		svc := NewReportService(obsRepo, &mockDailyRepo{}, 15*time.Minute, newTestLogger())

		_, err := svc.ItemLatest(context.Background(), "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrItemNotFound))
	})

	t.Run("series covers recent windows ascending", func(t *testing.T) {
		base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
		price := decimal.NewFromInt(100)
		obsRepo := &mockObsRepo{
			latest:      base.Add(30 * time.Minute),
			windowCount: 3,
			recent: []*domain.Observation{
				obsRow("ase", "vendorA", base, 100),
				obsRow("ase", "vendorA", base.Add(15*time.Minute), 101),
				obsRow("ase", "vendorA", base.Add(30*time.Minute), 102),
			},
		}
		dailyRepo := &mockDailyRepo{byItem: []*domain.DailyRecord{
			{ItemID: "ase", VendorID: "vendorA", Price: &price, Score: 55},
		}}

		svc := NewReportService(obsRepo, dailyRepo, 15*time.Minute, newTestLogger())

		latest, err := svc.ItemLatest(context.Background(), "ase")
		require.NoError(t, err)
		assert.Equal(t, "ase", latest.ItemID)
		require.Len(t, latest.Series, 3)
		assert.True(t, latest.Series[0].WindowStart.Before(latest.Series[2].WindowStart))
		require.Len(t, latest.Vendors, 1)
		assert.Equal(t, 55, latest.Vendors[0].Score)
	})
}

func TestReportService_ItemHistory(t *testing.T) {
	t.Run("clamps days to bounds", func(t *testing.T) {
		window := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
		obsRepo := &mockObsRepo{
			latest:      window,
			windowCount: 1,
			since:       []*domain.Observation{obsRow("ase", "vendorA", window, 100)},
		}

		svc := NewReportService(obsRepo, &mockDailyRepo{}, 15*time.Minute, newTestLogger())

		for _, days := range []int{-5, 0, 7, 500} {
			history, err := svc.ItemHistory(context.Background(), "ase", days)
			require.NoError(t, err)
			require.Len(t, history, 1)
		}
	})

	t.Run("unknown item returns not found", func(t *testing.T) {
		obsRepo := &mockObsRepo{windowCount: 0}

		svc := NewReportService(obsRepo, &mockDailyRepo{}, 15*time.Minute, newTestLogger())

		_, err := svc.ItemHistory(context.Background(), "nope", 7)
		assert.True(t, errors.Is(err, domain.ErrItemNotFound))
	})
}

func TestLoadCatalog(t *testing.T) {
	t.Run("valid catalog", func(t *testing.T) {
		path := writeCatalog(t, singleTargetCatalog)

		targets, err := LoadCatalog(path)
		require.NoError(t, err)
		require.Len(t, targets, 1)
		assert.Equal(t, "ase", targets[0].ItemID)
		assert.Equal(t, domain.ClassSilver, targets[0].Class)
	})

	t.Run("rejects duplicate targets", func(t *testing.T) {
		path := writeCatalog(t, `[
			{"item_id": "ase", "vendor_id": "vendorA", "url": "https://a.example/x",
			 "item_name": "ASE", "commodity_class": "silver", "unit_weight_oz": "1"},
			{"item_id": "ase", "vendor_id": "vendorA", "url": "https://a.example/y",
			 "item_name": "ASE", "commodity_class": "silver", "unit_weight_oz": "1"}
		]`)

		_, err := LoadCatalog(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrInvalidTarget))
	})

	t.Run("rejects unknown class", func(t *testing.T) {
		path := writeCatalog(t, `[
			{"item_id": "x", "vendor_id": "v", "url": "https://a.example/x",
			 "item_name": "X", "commodity_class": "rhodium", "unit_weight_oz": "1"}
		]`)

		_, err := LoadCatalog(path)
		assert.True(t, errors.Is(err, domain.ErrUnknownCommodityClass))
	})

	t.Run("rejects empty catalog", func(t *testing.T) {
		path := writeCatalog(t, `[]`)

		_, err := LoadCatalog(path)
		require.Error(t, err)
	})
}
