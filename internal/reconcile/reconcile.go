// Package reconcile fuses the two measurement methods' prices for one
// (item, vendor, day) into a single trusted price with an explainable
// 0-100 confidence score. It is a pure function of its inputs; every
// contributing factor surfaces in the flags so a reviewer can audit the
// score without ground truth.
package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

var (
	agreeThreshold    = decimal.RequireFromString("0.02")
	closeThreshold    = decimal.RequireFromString("0.05")
	medianAgreeDev    = decimal.RequireFromString("0.03")
	medianOutlierDev  = decimal.RequireFromString("0.08")
	dayOverDayTrigger = decimal.RequireFromString("0.10")
)

const (
	scoreAgree       = 40
	scoreClose       = 20
	scoreDisagree    = 5
	scoreSingle      = 50
	bonusHighConf    = 15
	bonusMediumConf  = 5
	penaltyLowConf   = 10
	bonusMedianNear  = 10
	penaltyOutlier   = 15
	penaltyDayJump   = 20
	maxScore         = 100
)

// Input is everything the merge decision depends on.
type Input struct {
	Text              *decimal.Decimal
	Vision            *decimal.Decimal
	VisionConfidence  domain.VisionConfidence
	PriorDayPrice     *decimal.Decimal
	CrossVendorMedian *decimal.Decimal
}

// Merge reconciles the two methods' outputs into one trusted price.
func Merge(in Input) domain.ReconciledPrice {
	if in.Text == nil && in.Vision == nil {
		return domain.ReconciledPrice{
			BestPrice:   nil,
			Score:       0,
			MethodLabel: "none",
			Flags:       []string{"no_data"},
		}
	}

	score := 0
	flags := []string{}
	var best decimal.Decimal
	var label string

	switch {
	case in.Text != nil && in.Vision != nil:
		best, label, score = mergeBoth(*in.Text, *in.Vision, in.CrossVendorMedian, &flags)
	case in.Text != nil:
		best, label, score = *in.Text, "text", scoreSingle
		flags = append(flags, "vision_unavailable")
	default:
		best, label, score = *in.Vision, "vision", scoreSingle
		flags = append(flags, "text_unavailable")
	}

	// confidence modifier applies only when vision contributed a price
	if in.Vision != nil {
		switch in.VisionConfidence {
		case domain.VisionHigh:
			score += bonusHighConf
		case domain.VisionMedium:
			score += bonusMediumConf
		case domain.VisionLow:
			score -= penaltyLowConf
		}
	}

	if in.CrossVendorMedian != nil && in.CrossVendorMedian.IsPositive() {
		dev := best.Sub(*in.CrossVendorMedian).Abs().Div(*in.CrossVendorMedian)
		switch {
		case dev.LessThanOrEqual(medianAgreeDev):
			score += bonusMedianNear
		case dev.GreaterThan(medianOutlierDev):
			score -= penaltyOutlier
			flags = append(flags, fmt.Sprintf("outlier_%spct_from_median", pct(dev)))
		}
	}

	if in.PriorDayPrice != nil && in.PriorDayPrice.IsPositive() {
		change := best.Sub(*in.PriorDayPrice).Abs().Div(*in.PriorDayPrice)
		if change.GreaterThan(dayOverDayTrigger) {
			score -= penaltyDayJump
			flags = append(flags, fmt.Sprintf("day_over_day_%spct", pct(change)))
		}
	}

	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}

	return domain.ReconciledPrice{
		BestPrice:   &best,
		Score:       score,
		MethodLabel: label,
		Flags:       flags,
	}
}

// mergeBoth resolves the two-method case by relative difference d.
func mergeBoth(text, vision decimal.Decimal, median *decimal.Decimal, flags *[]string) (decimal.Decimal, string, int) {
	larger := text
	if vision.GreaterThan(larger) {
		larger = vision
	}
	if !larger.IsPositive() {
		// degenerate zero prices; treat as agreement on zero
		return text, "both-agree", scoreAgree
	}

	d := text.Sub(vision).Abs().Div(larger)

	switch {
	case d.LessThanOrEqual(agreeThreshold):
		// text is the more precise reading when the methods agree
		return text, "both-agree", scoreAgree

	case d.LessThanOrEqual(closeThreshold):
		// close but not agreeing: take the lower, more conservative price.
		// Policy carried over verbatim for historical-data compatibility.
		best := text
		if vision.LessThan(best) {
			best = vision
		}
		*flags = append(*flags, fmt.Sprintf("method_diff_%spct", pct(d)))
		return best, "both-close", scoreClose

	default:
		*flags = append(*flags, fmt.Sprintf("method_disagree_%s_%s", text.StringFixed(2), vision.StringFixed(2)))

		if median != nil {
			// whichever method lands closer to the cross-vendor median wins;
			// <= keeps output stable under floating-point equality by
			// favoring text on ties
			if text.Sub(*median).Abs().LessThanOrEqual(vision.Sub(*median).Abs()) {
				return text, "text-median-preferred", scoreDisagree
			}
			return vision, "vision-median-preferred", scoreDisagree
		}

		// tie-break of last resort: vision inspects the rendered page
		return vision, "vision-preferred", scoreDisagree
	}
}

func pct(ratio decimal.Decimal) string {
	return ratio.Mul(decimal.NewFromInt(100)).StringFixed(1)
}
