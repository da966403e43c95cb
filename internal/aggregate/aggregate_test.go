package aggregate_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bullionwatch/bullion-snapshot-service/internal/aggregate"
	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func obs(item, vendor string, window time.Time, price string) *domain.Observation {
	o := &domain.Observation{
		ItemID:      item,
		VendorID:    vendor,
		Method:      domain.MethodText,
		CapturedAt:  window,
		WindowStart: window,
	}
	if price != "" {
		p := decimal.RequireFromString(price)
		o.Price = &p
	}
	return o
}

func TestMedian_LowMedianConvention(t *testing.T) {
	tests := []struct {
		name   string
		prices []decimal.Decimal
		want   string
	}{
		{"even length takes lower middle, never averages", decs("10", "20", "30", "40"), "20"},
		{"odd length takes true middle", decs("10", "20", "30"), "20"},
		{"unsorted input is sorted first", decs("40", "10", "30", "20"), "20"},
		{"single element", decs("42"), "42"},
		{"two elements takes the lower", decs("7", "9"), "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregate.Median(tt.prices)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestMedian_Empty(t *testing.T) {
	assert.True(t, aggregate.Median(nil).IsZero())
}

func TestLow(t *testing.T) {
	got := aggregate.Low(decs("31.50", "30.99", "33.10"))
	assert.True(t, got.Equal(decimal.RequireFromString("30.99")))
}

func TestLatestSnapshot(t *testing.T) {
	w := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	rows := []*domain.Observation{
		obs("ase", "vendorA", w, "31.50"),
		obs("ase", "vendorB", w, "30.99"),
		obs("ase", "vendorC", w, "33.10"),
		obs("ase", "vendorD", w, ""), // method found nothing
	}

	point, ok := aggregate.LatestSnapshot(rows)
	require.True(t, ok)
	assert.True(t, point.WindowStart.Equal(w))
	assert.True(t, point.Median.Equal(decimal.RequireFromString("31.50")))
	assert.True(t, point.Low.Equal(decimal.RequireFromString("30.99")))
}

func TestLatestSnapshot_NoPricedRows(t *testing.T) {
	w := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	_, ok := aggregate.LatestSnapshot([]*domain.Observation{obs("ase", "vendorA", w, "")})
	assert.False(t, ok)
}

func TestRollingSeries(t *testing.T) {
	base := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	var rows []*domain.Observation
	for i := 0; i < 5; i++ {
		w := base.Add(time.Duration(i) * 15 * time.Minute)
		rows = append(rows,
			obs("ase", "vendorA", w, "31.00"),
			obs("ase", "vendorB", w, "30.00"),
			obs("ase", "vendorC", w, "32.00"),
		)
	}

	t.Run("one point per window, ascending", func(t *testing.T) {
		series := aggregate.RollingSeries(rows, 10)
		require.Len(t, series, 5)
		for i := 1; i < len(series); i++ {
			assert.True(t, series[i-1].WindowStart.Before(series[i].WindowStart))
		}
		assert.True(t, series[0].Median.Equal(decimal.RequireFromString("31.00")))
		assert.True(t, series[0].Low.Equal(decimal.RequireFromString("30.00")))
	})

	t.Run("keeps only the most recent N windows", func(t *testing.T) {
		series := aggregate.RollingSeries(rows, 2)
		require.Len(t, series, 2)
		assert.True(t, series[1].WindowStart.Equal(base.Add(4*15*time.Minute)))
	})

	t.Run("null prices are excluded", func(t *testing.T) {
		w := base.Add(5 * 15 * time.Minute)
		series := aggregate.RollingSeries(append(rows, obs("ase", "vendorA", w, "")), 10)
		assert.Len(t, series, 5) // the all-null window contributes no point
	})
}

func TestDailyHistory(t *testing.T) {
	day1 := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 11, 14, 0, 0, 0, time.UTC)

	rows := []*domain.Observation{
		// day 1, one window: mean 31.00, min 30.00
		obs("ase", "vendorA", day1, "32.00"),
		obs("ase", "vendorB", day1, "30.00"),
		// day 2, two windows: means 30.00 and 34.00, mins 29.00 and 34.00
		obs("ase", "vendorA", day2, "31.00"),
		obs("ase", "vendorB", day2, "29.00"),
		obs("ase", "vendorA", day2.Add(15*time.Minute), "34.00"),
		obs("ase", "vendorC", day2, ""), // unpriced, not counted
	}

	history := aggregate.DailyHistory(rows, 30)
	require.Len(t, history, 2)

	d1 := history[0]
	assert.True(t, d1.Date.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, d1.AvgMedian.Equal(decimal.RequireFromString("31")), "got %s", d1.AvgMedian)
	assert.True(t, d1.AvgLow.Equal(decimal.RequireFromString("30")))
	assert.Equal(t, 2, d1.SampleCount)

	d2 := history[1]
	// low-median of window means [30, 34] is 30
	assert.True(t, d2.AvgMedian.Equal(decimal.RequireFromString("30")), "got %s", d2.AvgMedian)
	assert.True(t, d2.AvgLow.Equal(decimal.RequireFromString("29")))
	assert.Equal(t, 3, d2.SampleCount)
	// vendorA averaged over both windows
	assert.True(t, d2.PerVendorAvg["vendorA"].Equal(decimal.RequireFromString("32.5")))
	assert.True(t, d2.PerVendorAvg["vendorB"].Equal(decimal.RequireFromString("29")))

	t.Run("trailing days cap", func(t *testing.T) {
		capped := aggregate.DailyHistory(rows, 1)
		require.Len(t, capped, 1)
		assert.True(t, capped[0].Date.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)))
	})
}

func TestDailyHistory_Idempotent(t *testing.T) {
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	rows := []*domain.Observation{
		obs("ase", "vendorA", day, "31.11"),
		obs("ase", "vendorB", day, "30.42"),
		obs("ase", "vendorC", day.Add(15*time.Minute), "32.87"),
		obs("ase", "vendorA", day.Add(30*time.Minute), "31.05"),
	}

	first, err := json.Marshal(aggregate.DailyHistory(rows, 7))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := json.Marshal(aggregate.DailyHistory(rows, 7))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestCrossVendorMedians(t *testing.T) {
	medians := aggregate.CrossVendorMedians(map[string][]decimal.Decimal{
		"ase":  decs("31.50", "30.99", "33.10"),
		"gb1":  decs("2310.00", "2295.50"),
		"none": {},
	})

	assert.True(t, medians["ase"].Equal(decimal.RequireFromString("31.50")))
	// even count: lower middle
	assert.True(t, medians["gb1"].Equal(decimal.RequireFromString("2295.50")))
	_, ok := medians["none"]
	assert.False(t, ok)
}
