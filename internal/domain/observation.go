package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Method identifies which measurement method produced an observation.
type Method string

const (
	MethodText   Method = "text"
	MethodVision Method = "vision"
)

// DefaultWindowPeriod is the bucket size observations are floored into.
const DefaultWindowPeriod = 15 * time.Minute

// Observation is one measurement attempt for one (item, vendor, method, window).
// Price is nil when the method legitimately found nothing; Failed marks a
// transport/parse failure, which is a different outcome.
type Observation struct {
	ID            int64            `json:"id"`
	ItemID        string           `json:"item_id"`
	VendorID      string           `json:"vendor_id"`
	Method        Method           `json:"method"`
	CapturedAt    time.Time        `json:"captured_at"`
	WindowStart   time.Time        `json:"window_start"`
	Price         *decimal.Decimal `json:"price"`
	RawConfidence string           `json:"raw_confidence,omitempty"`
	Failed        bool             `json:"failed"`
	Score         *int             `json:"score,omitempty"`
}

// NewObservation creates an observation with WindowStart derived from capturedAt.
func NewObservation(itemID, vendorID string, method Method, capturedAt time.Time, period time.Duration, price *decimal.Decimal) *Observation {
	return &Observation{
		ItemID:      itemID,
		VendorID:    vendorID,
		Method:      method,
		CapturedAt:  capturedAt.UTC(),
		WindowStart: FloorWindow(capturedAt, period),
		Price:       price,
	}
}

// FloorWindow floors t down to the nearest period boundary in UTC.
// Observations sharing a window start are simultaneous for reconciliation.
func FloorWindow(t time.Time, period time.Duration) time.Time {
	if period <= 0 {
		period = DefaultWindowPeriod
	}
	return t.UTC().Truncate(period)
}

// ScoreUpdate is one entry of a batched confidence backfill. The batch is
// applied transactionally: all updates commit or none do.
type ScoreUpdate struct {
	ItemID      string
	VendorID    string
	WindowStart time.Time
	Score       int
}

// RoundSummary reports the outcome of one acquisition round.
type RoundSummary struct {
	Window         time.Time `json:"window"`
	Targets        int       `json:"targets"`
	TextOK         int       `json:"text_ok"`
	TextFailed     int       `json:"text_failed"`
	VisionOK       int       `json:"vision_ok"`
	VisionFailed   int       `json:"vision_failed"`
	UsablePrices   int       `json:"usable_prices"`
	Reconciled     int       `json:"reconciled"`
	HighConfidence int       `json:"high_confidence"`
}
