package reconcile_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/reconcile"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func assertBest(t *testing.T, got domain.ReconciledPrice, want string) {
	t.Helper()
	require.NotNil(t, got.BestPrice)
	assert.True(t, got.BestPrice.Equal(decimal.RequireFromString(want)), "best price %s want %s", got.BestPrice, want)
}

func TestMerge_NoData(t *testing.T) {
	got := reconcile.Merge(reconcile.Input{VisionConfidence: domain.VisionNone})

	assert.Nil(t, got.BestPrice)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, "none", got.MethodLabel)
	assert.Equal(t, []string{"no_data"}, got.Flags)
}

func TestMerge_Agreement(t *testing.T) {
	t.Run("identical prices with high confidence", func(t *testing.T) {
		got := reconcile.Merge(reconcile.Input{
			Text:             dec("100"),
			Vision:           dec("100"),
			VisionConfidence: domain.VisionHigh,
		})

		assertBest(t, got, "100")
		assert.Equal(t, 55, got.Score) // 40 agreement + 15 confidence
		assert.Equal(t, "both-agree", got.MethodLabel)
		assert.Empty(t, got.Flags)
	})

	t.Run("text wins as the more precise reading", func(t *testing.T) {
		got := reconcile.Merge(reconcile.Input{
			Text:             dec("99.50"),
			Vision:           dec("99.80"),
			VisionConfidence: domain.VisionHigh,
		})

		assertBest(t, got, "99.50")
		assert.Equal(t, 55, got.Score)
		assert.Equal(t, "both-agree", got.MethodLabel)
		assert.Empty(t, got.Flags)
	})
}

func TestMerge_CloseDisagreement(t *testing.T) {
	// d = 3/103 ~ 2.9%: close branch takes the lower, conservative price
	got := reconcile.Merge(reconcile.Input{
		Text:             dec("103"),
		Vision:           dec("100"),
		VisionConfidence: domain.VisionMedium,
	})

	assertBest(t, got, "100")
	assert.Equal(t, 25, got.Score) // 20 close + 5 medium confidence
	assert.Equal(t, "both-close", got.MethodLabel)
	assert.Equal(t, []string{"method_diff_2.9pct"}, got.Flags)
}

func TestMerge_Disagreement(t *testing.T) {
	t.Run("no median defaults to vision", func(t *testing.T) {
		got := reconcile.Merge(reconcile.Input{
			Text:             dec("100"),
			Vision:           dec("110"),
			VisionConfidence: domain.VisionLow,
		})

		assertBest(t, got, "110")
		assert.Equal(t, "vision-preferred", got.MethodLabel)
		assert.Equal(t, 0, got.Score) // 5 disagree - 10 low confidence, clamped
		assert.Contains(t, got.Flags, "method_disagree_100.00_110.00")
	})

	t.Run("median picks the closer method", func(t *testing.T) {
		got := reconcile.Merge(reconcile.Input{
			Text:              dec("100"),
			Vision:            dec("120"),
			VisionConfidence:  domain.VisionHigh,
			CrossVendorMedian: dec("102"),
		})

		assertBest(t, got, "100")
		assert.Equal(t, "text-median-preferred", got.MethodLabel)
		// 5 disagree + 15 confidence + 10 median agreement (|100-102|/102 <= 3%)
		assert.Equal(t, 30, got.Score)
	})

	t.Run("median picks vision when vision is closer", func(t *testing.T) {
		got := reconcile.Merge(reconcile.Input{
			Text:              dec("140"),
			Vision:            dec("100"),
			VisionConfidence:  domain.VisionHigh,
			CrossVendorMedian: dec("101"),
		})

		assertBest(t, got, "100")
		assert.Equal(t, "vision-median-preferred", got.MethodLabel)
	})

	t.Run("equidistant tie favors text", func(t *testing.T) {
		// d = 8/106 ~ 7.5% disagreement; both land 4 away from the median
		got := reconcile.Merge(reconcile.Input{
			Text:              dec("98"),
			Vision:            dec("106"),
			VisionConfidence:  domain.VisionHigh,
			CrossVendorMedian: dec("102"),
		})

		assertBest(t, got, "98")
		assert.Equal(t, "text-median-preferred", got.MethodLabel)
	})
}

func TestMerge_SingleMethod(t *testing.T) {
	t.Run("text only", func(t *testing.T) {
		got := reconcile.Merge(reconcile.Input{
			Text:             dec("100"),
			VisionConfidence: domain.VisionNone,
		})

		assertBest(t, got, "100")
		assert.Equal(t, 50, got.Score)
		assert.Equal(t, "text", got.MethodLabel)
		assert.Equal(t, []string{"vision_unavailable"}, got.Flags)
	})

	t.Run("vision only keeps its confidence modifier", func(t *testing.T) {
		got := reconcile.Merge(reconcile.Input{
			Vision:           dec("100"),
			VisionConfidence: domain.VisionHigh,
		})

		assertBest(t, got, "100")
		assert.Equal(t, 65, got.Score) // 50 single + 15 confidence
		assert.Equal(t, "vision", got.MethodLabel)
		assert.Equal(t, []string{"text_unavailable"}, got.Flags)
	})
}

func TestMerge_CrossVendorOutlier(t *testing.T) {
	got := reconcile.Merge(reconcile.Input{
		Text:              dec("100"),
		Vision:            dec("100"),
		VisionConfidence:  domain.VisionHigh,
		CrossVendorMedian: dec("120"),
	})

	assertBest(t, got, "100")
	// 40 + 15 - 15 outlier (|100-120|/120 ~ 16.7% > 8%)
	assert.Equal(t, 40, got.Score)
	assert.Equal(t, []string{"outlier_16.7pct_from_median"}, got.Flags)
}

func TestMerge_DayOverDay(t *testing.T) {
	base := reconcile.Merge(reconcile.Input{
		Text:             dec("100"),
		Vision:           dec("100"),
		VisionConfidence: domain.VisionHigh,
	})

	jumped := reconcile.Merge(reconcile.Input{
		Text:             dec("100"),
		Vision:           dec("100"),
		VisionConfidence: domain.VisionHigh,
		PriorDayPrice:    dec("80"),
	})

	// |100-80|/80 = 25% > 10%: 20-point penalty relative to the no-prior case
	assert.Equal(t, base.Score-20, jumped.Score)
	assert.Equal(t, []string{"day_over_day_25.0pct"}, jumped.Flags)

	t.Run("small drift carries no penalty", func(t *testing.T) {
		calm := reconcile.Merge(reconcile.Input{
			Text:             dec("100"),
			Vision:           dec("100"),
			VisionConfidence: domain.VisionHigh,
			PriorDayPrice:    dec("98"),
		})
		assert.Equal(t, base.Score, calm.Score)
		assert.Empty(t, calm.Flags)
	})
}

func TestMerge_ScoreAlwaysClamped(t *testing.T) {
	inputs := []reconcile.Input{
		{Text: dec("100"), Vision: dec("200"), VisionConfidence: domain.VisionLow, PriorDayPrice: dec("50"), CrossVendorMedian: dec("300")},
		{Text: dec("100"), Vision: dec("100"), VisionConfidence: domain.VisionHigh, CrossVendorMedian: dec("100")},
		{Vision: dec("100"), VisionConfidence: domain.VisionHigh, CrossVendorMedian: dec("100")},
	}

	for _, in := range inputs {
		got := reconcile.Merge(in)
		assert.GreaterOrEqual(t, got.Score, 0)
		assert.LessOrEqual(t, got.Score, 100)
	}
}

func TestMerge_Deterministic(t *testing.T) {
	in := reconcile.Input{
		Text:              dec("98.40"),
		Vision:            dec("104.10"),
		VisionConfidence:  domain.VisionMedium,
		PriorDayPrice:     dec("97.00"),
		CrossVendorMedian: dec("99.00"),
	}

	first := reconcile.Merge(in)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, reconcile.Merge(in))
	}
}
