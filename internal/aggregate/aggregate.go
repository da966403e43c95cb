// Package aggregate derives read-side projections from raw observation rows.
// Everything here is a pure function; callers fetch rows and aggregate.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

// Median returns the low-median of prices: for even-length input the lower
// of the two middle elements, never an average of them. This convention is
// load-bearing for output compatibility and must not change.
func Median(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })
	return sorted[(len(sorted)-1)/2]
}

// Low returns the minimum price.
func Low(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	min := prices[0]
	for _, p := range prices[1:] {
		if p.LessThan(min) {
			min = p
		}
	}
	return min
}

// LatestSnapshot summarizes one window's rows across vendors.
func LatestSnapshot(rows []*domain.Observation) (domain.WindowPoint, bool) {
	prices := pricesOf(rows)
	if len(prices) == 0 {
		return domain.WindowPoint{}, false
	}
	var window time.Time
	for _, r := range rows {
		if r.WindowStart.After(window) {
			window = r.WindowStart
		}
	}
	return domain.WindowPoint{
		WindowStart: window,
		Median:      Median(prices),
		Low:         Low(prices),
	}, true
}

// RollingSeries groups raw rows by window and emits one median/low point per
// distinct window among the most recent windowCount, ascending by window.
func RollingSeries(rows []*domain.Observation, windowCount int) []domain.WindowPoint {
	byWindow := groupByWindow(rows)

	windows := make([]time.Time, 0, len(byWindow))
	for w := range byWindow {
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Before(windows[j]) })

	if windowCount > 0 && len(windows) > windowCount {
		windows = windows[len(windows)-windowCount:]
	}

	series := make([]domain.WindowPoint, 0, len(windows))
	for _, w := range windows {
		prices := byWindow[w]
		series = append(series, domain.WindowPoint{
			WindowStart: w,
			Median:      Median(prices),
			Low:         Low(prices),
		})
	}
	return series
}

// DailyHistory summarizes rows into at most days daily aggregates, ascending
// by date. Per day, rows are first grouped into their windows: avg_median is
// the low-median of per-window mean prices, avg_low the minimum of
// per-window minimums. SampleCount counts priced raw rows; PerVendorAvg is
// each vendor's mean over the day.
func DailyHistory(rows []*domain.Observation, days int) []*domain.DailyAggregate {
	type dayBucket struct {
		byWindow    map[time.Time][]decimal.Decimal
		byVendor    map[string][]decimal.Decimal
		sampleCount int
	}

	buckets := map[time.Time]*dayBucket{}
	for _, r := range rows {
		if r.Price == nil {
			continue
		}
		date := dateOf(r.WindowStart)
		b := buckets[date]
		if b == nil {
			b = &dayBucket{
				byWindow: map[time.Time][]decimal.Decimal{},
				byVendor: map[string][]decimal.Decimal{},
			}
			buckets[date] = b
		}
		w := r.WindowStart.UTC()
		b.byWindow[w] = append(b.byWindow[w], *r.Price)
		b.byVendor[r.VendorID] = append(b.byVendor[r.VendorID], *r.Price)
		b.sampleCount++
	}

	dates := make([]time.Time, 0, len(buckets))
	for d := range buckets {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if days > 0 && len(dates) > days {
		dates = dates[len(dates)-days:]
	}

	history := make([]*domain.DailyAggregate, 0, len(dates))
	for _, date := range dates {
		b := buckets[date]

		windowMeans := make([]decimal.Decimal, 0, len(b.byWindow))
		windowLows := make([]decimal.Decimal, 0, len(b.byWindow))
		for _, prices := range b.byWindow {
			windowMeans = append(windowMeans, mean(prices))
			windowLows = append(windowLows, Low(prices))
		}

		perVendor := make(map[string]decimal.Decimal, len(b.byVendor))
		for vendor, prices := range b.byVendor {
			perVendor[vendor] = mean(prices)
		}

		history = append(history, &domain.DailyAggregate{
			Date:         date,
			AvgMedian:    Median(windowMeans),
			AvgLow:       Low(windowLows),
			SampleCount:  b.sampleCount,
			PerVendorAvg: perVendor,
		})
	}
	return history
}

// CrossVendorMedians computes each item's median over per-vendor best-guess
// prices, used as the reconciliation outlier reference.
func CrossVendorMedians(byItem map[string][]decimal.Decimal) map[string]decimal.Decimal {
	medians := make(map[string]decimal.Decimal, len(byItem))
	for item, prices := range byItem {
		if len(prices) == 0 {
			continue
		}
		medians[item] = Median(prices)
	}
	return medians
}

func pricesOf(rows []*domain.Observation) []decimal.Decimal {
	prices := make([]decimal.Decimal, 0, len(rows))
	for _, r := range rows {
		if r.Price == nil {
			continue
		}
		prices = append(prices, *r.Price)
	}
	return prices
}

func groupByWindow(rows []*domain.Observation) map[time.Time][]decimal.Decimal {
	byWindow := map[time.Time][]decimal.Decimal{}
	for _, r := range rows {
		if r.Price == nil {
			continue
		}
		w := r.WindowStart.UTC()
		byWindow[w] = append(byWindow[w], *r.Price)
	}
	return byWindow
}

func mean(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices))))
}

func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
