package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// VisionConfidence is the quality grade the vision collaborator reports.
type VisionConfidence string

const (
	VisionHigh   VisionConfidence = "high"
	VisionMedium VisionConfidence = "medium"
	VisionLow    VisionConfidence = "low"
	VisionNone   VisionConfidence = "none"
)

// ParseVisionConfidence normalizes a collaborator-reported grade. Unknown
// grades degrade to low rather than failing the observation.
func ParseVisionConfidence(s string) VisionConfidence {
	switch VisionConfidence(strings.ToLower(strings.TrimSpace(s))) {
	case VisionHigh:
		return VisionHigh
	case VisionMedium:
		return VisionMedium
	case VisionLow:
		return VisionLow
	case VisionNone, "":
		return VisionNone
	default:
		return VisionLow
	}
}

// VisionRequest carries the item metadata handed to the vision collaborator.
type VisionRequest struct {
	ItemName     string
	Class        CommodityClass
	UnitWeightOz decimal.Decimal
	// HintPrice is the text method's price, supplied as a cross-check when known.
	HintPrice *decimal.Decimal
}

// VisionResult is the parsed structured output of the vision collaborator.
type VisionResult struct {
	Price          *decimal.Decimal
	Confidence     VisionConfidence
	AgreesWithHint *bool
	Label          string
}

// ReconciledPrice is the merge engine's output for one (item, vendor, day).
// Score is always inside [0,100]; BestPrice is nil iff both methods were nil.
type ReconciledPrice struct {
	BestPrice   *decimal.Decimal `json:"best_price"`
	Score       int              `json:"score"`
	MethodLabel string           `json:"method_label"`
	Flags       []string         `json:"flags"`
}

// DailyRecord is the persisted per (item, vendor, day) trusted price,
// read back the next round as the day-over-day prior.
type DailyRecord struct {
	ID          int64            `json:"id"`
	ItemID      string           `json:"item_id"`
	VendorID    string           `json:"vendor_id"`
	Date        time.Time        `json:"date"`
	Price       *decimal.Decimal `json:"price"`
	Score       int              `json:"score"`
	MethodLabel string           `json:"method_label"`
	Flags       []string         `json:"flags"`
	HasText     bool             `json:"has_text"`
	HasVision   bool             `json:"has_vision"`
}

// WindowPoint is a cross-vendor aggregate for one item at one window.
type WindowPoint struct {
	WindowStart time.Time       `json:"window_start"`
	Median      decimal.Decimal `json:"median"`
	Low         decimal.Decimal `json:"low"`
}

// DailyAggregate is a cross-vendor summary for one item over one day.
type DailyAggregate struct {
	Date         time.Time                  `json:"date"`
	AvgMedian    decimal.Decimal            `json:"avg_median"`
	AvgLow       decimal.Decimal            `json:"avg_low"`
	SampleCount  int                        `json:"sample_count"`
	PerVendorAvg map[string]decimal.Decimal `json:"per_vendor_avg"`
}

// Manifest lists what the store currently knows.
type Manifest struct {
	Items        []string         `json:"items"`
	LatestWindow time.Time        `json:"latest_window"`
	WindowCounts map[string]int64 `json:"window_counts"`
}

// ItemSnapshot is an item's cross-vendor position at one window.
type ItemSnapshot struct {
	ItemID string          `json:"item_id"`
	Median decimal.Decimal `json:"median"`
	Low    decimal.Decimal `json:"low"`
}

// ItemLatest is the per-item latest view: vendor records plus a rolling series.
type ItemLatest struct {
	ItemID  string         `json:"item_id"`
	Window  time.Time      `json:"window"`
	Vendors []*DailyRecord `json:"vendors"`
	Series  []WindowPoint  `json:"series"`
}
