package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bullionwatch/bullion-snapshot-service/internal/aggregate"
	"github.com/bullionwatch/bullion-snapshot-service/internal/config"
	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/extract"
	"github.com/bullionwatch/bullion-snapshot-service/internal/metrics"
	"github.com/bullionwatch/bullion-snapshot-service/internal/ports"
	"github.com/bullionwatch/bullion-snapshot-service/internal/reconcile"
	"github.com/bullionwatch/bullion-snapshot-service/pkg/fetch"
)

// highConfidenceScore is the trust threshold a reconciled price must reach
// to count toward the round's high-confidence tally.
const highConfidenceScore = 70

// RoundService implements the ports.RoundRunner interface. One round runs
// both measurement methods over the whole catalog, appends raw observations,
// reconciles per (item, vendor), and backfills confidence scores.
type RoundService struct {
	obsRepo   ports.ObservationRepository
	dailyRepo ports.DailyRecordRepository
	scraper   ports.PageScraper
	capturer  ports.ScreenCapturer
	vision    ports.VisionExtractor
	metrics   *metrics.Metrics
	cfg       config.RoundConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewRoundService creates a new round service
func NewRoundService(
	obsRepo ports.ObservationRepository,
	dailyRepo ports.DailyRecordRepository,
	scraper ports.PageScraper,
	capturer ports.ScreenCapturer,
	vision ports.VisionExtractor,
	m *metrics.Metrics,
	cfg config.RoundConfig,
	logger *slog.Logger,
) *RoundService {
	return &RoundService{
		obsRepo:   obsRepo,
		dailyRepo: dailyRepo,
		scraper:   scraper,
		capturer:  capturer,
		vision:    vision,
		metrics:   m,
		cfg:       cfg,
		logger:    logger.With("component", "round_service"),
		now:       time.Now,
	}
}

type textOutcome struct {
	price *decimal.Decimal
}

type visionOutcome struct {
	result *domain.VisionResult
}

// RunRound executes one acquisition round. A round that yields no usable
// price at all returns domain.ErrEmptyRound alongside the summary so the
// caller can fail loudly instead of recording a silent gap.
func (s *RoundService) RunRound(ctx context.Context) (*domain.RoundSummary, error) {
	start := s.now()
	s.metrics.RoundsTotal.Inc()
	defer func() {
		s.metrics.RoundDuration.Observe(s.now().Sub(start).Seconds())
	}()

	targets, err := LoadCatalog(s.cfg.CatalogPath)
	if err != nil {
		s.logger.Error("failed to load catalog", "path", s.cfg.CatalogPath, "error", err)
		s.metrics.RoundFailures.Inc()
		return nil, err
	}

	capturedAt := s.now().UTC()
	window := domain.FloorWindow(capturedAt, s.cfg.WindowPeriod)

	s.logger.Info("round started",
		"targets", len(targets),
		"window", window.Format(time.RFC3339),
		"concurrency", s.cfg.Concurrency,
	)

	fetchCfg := fetch.Config{
		Concurrency: s.cfg.Concurrency,
		Timeout:     s.cfg.Timeout,
		Retries:     s.cfg.Retries,
		Backoff:     s.cfg.RetryBackoff,
		Classify:    classifyFailure,
	}

	textResults := fetch.Run(ctx, targets, fetchCfg, s.fetchText)
	textByKey := make(map[string]*decimal.Decimal, len(textResults))
	for _, r := range textResults {
		if !r.Failed() {
			textByKey[r.Target.Key()] = r.Value.price
		}
	}

	visionResults := fetch.Run(ctx, targets, fetchCfg, func(ctx context.Context, t domain.Target) (visionOutcome, error) {
		return s.fetchVision(ctx, t, textByKey[t.Key()])
	})

	summary := &domain.RoundSummary{Window: window, Targets: len(targets)}

	observations := make([]*domain.Observation, 0, 2*len(targets))
	visionByKey := make(map[string]*domain.VisionResult, len(visionResults))

	for _, r := range textResults {
		obs := domain.NewObservation(r.Target.ItemID, r.Target.VendorID, domain.MethodText, capturedAt, s.cfg.WindowPeriod, nil)
		if r.Failed() {
			obs.Failed = true
			summary.TextFailed++
			s.metrics.TargetsTotal.WithLabelValues("text", "failed").Inc()
			s.logger.Warn("text fetch failed",
				"item", r.Target.ItemID, "vendor", r.Target.VendorID,
				"failure", string(r.Failure), "error", r.Err,
			)
		} else {
			obs.Price = r.Value.price
			summary.TextOK++
			s.metrics.TargetsTotal.WithLabelValues("text", "ok").Inc()
		}
		observations = append(observations, obs)
	}

	for _, r := range visionResults {
		obs := domain.NewObservation(r.Target.ItemID, r.Target.VendorID, domain.MethodVision, capturedAt, s.cfg.WindowPeriod, nil)
		if r.Failed() {
			obs.Failed = true
			summary.VisionFailed++
			s.metrics.TargetsTotal.WithLabelValues("vision", "failed").Inc()
			s.logger.Warn("vision fetch failed",
				"item", r.Target.ItemID, "vendor", r.Target.VendorID,
				"failure", string(r.Failure), "error", r.Err,
			)
		} else {
			visionByKey[r.Target.Key()] = r.Value.result
			obs.Price = r.Value.result.Price
			obs.RawConfidence = string(r.Value.result.Confidence)
			summary.VisionOK++
			s.metrics.TargetsTotal.WithLabelValues("vision", "ok").Inc()
		}
		observations = append(observations, obs)
	}

	for _, obs := range observations {
		if obs.Price != nil {
			summary.UsablePrices++
		}
	}

	if err := s.obsRepo.CreateBatch(ctx, observations); err != nil {
		s.logger.Error("failed to store observations", "error", err)
		s.metrics.RoundFailures.Inc()
		return nil, err
	}
	s.metrics.ObservationsWritten.Add(float64(len(observations)))

	if summary.UsablePrices == 0 {
		s.logger.Error("round yielded no usable price", "targets", len(targets))
		s.metrics.RoundFailures.Inc()
		return summary, domain.ErrEmptyRound
	}

	records, updates := s.reconcileRound(ctx, targets, window, textByKey, visionByKey, summary)

	if err := s.dailyRepo.UpsertBatch(ctx, records); err != nil {
		s.logger.Error("failed to upsert daily records", "error", err)
		s.metrics.RoundFailures.Inc()
		return summary, err
	}
	s.metrics.RecordsUpserted.Add(float64(len(records)))

	if err := s.obsRepo.UpdateScores(ctx, updates); err != nil {
		s.logger.Error("failed to backfill scores", "error", err)
		s.metrics.RoundFailures.Inc()
		return summary, err
	}

	s.logger.Info("round completed",
		"targets", summary.Targets,
		"text_ok", summary.TextOK,
		"vision_ok", summary.VisionOK,
		"usable", summary.UsablePrices,
		"reconciled", summary.Reconciled,
		"high_confidence", summary.HighConfidence,
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)

	return summary, nil
}

// fetchText scrapes a target's page and extracts a price from its text.
// A page that loads but yields no in-range candidate is a nil price, not
// an error; the scrape genuinely observed "no text price here".
func (s *RoundService) fetchText(ctx context.Context, t domain.Target) (textOutcome, error) {
	content, err := s.scraper.FetchPage(ctx, t.URL)
	if err != nil {
		return textOutcome{}, err
	}
	return textOutcome{price: extract.Price(content, t.Class)}, nil
}

// fetchVision screenshots a target's page and runs vision extraction over
// the image, passing the text price as a cross-check hint when available.
func (s *RoundService) fetchVision(ctx context.Context, t domain.Target, hint *decimal.Decimal) (visionOutcome, error) {
	image, _, err := s.capturer.Capture(ctx, t.URL)
	if err != nil {
		return visionOutcome{}, err
	}

	result, err := s.vision.ExtractPrice(ctx, image, domain.VisionRequest{
		ItemName:     t.ItemName,
		Class:        t.Class,
		UnitWeightOz: t.UnitWeightOz,
		HintPrice:    hint,
	})
	if err != nil {
		return visionOutcome{}, err
	}
	return visionOutcome{result: result}, nil
}

// reconcileRound merges each target's two readings into a daily record and
// a score backfill entry. Every target gets a record, including no-data
// ones; the gap itself is worth auditing.
func (s *RoundService) reconcileRound(
	ctx context.Context,
	targets []domain.Target,
	window time.Time,
	textByKey map[string]*decimal.Decimal,
	visionByKey map[string]*domain.VisionResult,
	summary *domain.RoundSummary,
) ([]*domain.DailyRecord, []domain.ScoreUpdate) {
	date := dateOf(window)
	medians := s.preliminaryMedians(targets, textByKey, visionByKey)
	priors := s.priorDayPrices(ctx, date)

	records := make([]*domain.DailyRecord, 0, len(targets))
	updates := make([]domain.ScoreUpdate, 0, len(targets))

	for _, t := range targets {
		key := t.Key()

		in := reconcile.Input{
			Text:          textByKey[key],
			PriorDayPrice: priors[key],
		}
		if vr := visionByKey[key]; vr != nil {
			in.Vision = vr.Price
			in.VisionConfidence = vr.Confidence
		}
		if m, ok := medians[t.ItemID]; ok {
			in.CrossVendorMedian = &m
		}

		merged := reconcile.Merge(in)

		records = append(records, &domain.DailyRecord{
			ItemID:      t.ItemID,
			VendorID:    t.VendorID,
			Date:        date,
			Price:       merged.BestPrice,
			Score:       merged.Score,
			MethodLabel: merged.MethodLabel,
			Flags:       merged.Flags,
			HasText:     in.Text != nil,
			HasVision:   in.Vision != nil,
		})
		updates = append(updates, domain.ScoreUpdate{
			ItemID:      t.ItemID,
			VendorID:    t.VendorID,
			WindowStart: window,
			Score:       merged.Score,
		})

		if merged.BestPrice != nil {
			summary.Reconciled++
		}
		if merged.Score >= highConfidenceScore {
			summary.HighConfidence++
			s.metrics.HighConfidence.Inc()
		}
	}

	return records, updates
}

// preliminaryMedians computes each item's cross-vendor median from the best
// per-vendor reading available this round, text preferred over vision. The
// median feeds the outlier check, so it must not depend on the merge it
// gates, and an item with a single priced vendor gets none: a one-vendor
// median is the vendor's own price and would always self-agree.
func (s *RoundService) preliminaryMedians(
	targets []domain.Target,
	textByKey map[string]*decimal.Decimal,
	visionByKey map[string]*domain.VisionResult,
) map[string]decimal.Decimal {
	byItem := make(map[string][]decimal.Decimal)
	for _, t := range targets {
		key := t.Key()
		price := textByKey[key]
		if price == nil {
			if vr := visionByKey[key]; vr != nil {
				price = vr.Price
			}
		}
		if price != nil {
			byItem[t.ItemID] = append(byItem[t.ItemID], *price)
		}
	}
	for item, prices := range byItem {
		if len(prices) < 2 {
			delete(byItem, item)
		}
	}
	return aggregate.CrossVendorMedians(byItem)
}

// priorDayPrices loads yesterday's trusted prices keyed by item|vendor.
// A missing prior day just disables the day-over-day check.
func (s *RoundService) priorDayPrices(ctx context.Context, date time.Time) map[string]*decimal.Decimal {
	prior, err := s.dailyRepo.ListByDate(ctx, date.AddDate(0, 0, -1))
	if err != nil {
		if !errors.Is(err, domain.ErrNoObservations) {
			s.logger.Warn("failed to load prior day records", "error", err)
		}
		return nil
	}

	priors := make(map[string]*decimal.Decimal, len(prior))
	for _, rec := range prior {
		if rec.Price != nil {
			priors[fmt.Sprintf("%s|%s", rec.ItemID, rec.VendorID)] = rec.Price
		}
	}
	return priors
}

// classifyFailure maps collaborator errors onto failure kinds for the
// fetch report; timeouts are recognized by the pool itself.
func classifyFailure(err error) fetch.FailureKind {
	if errors.Is(err, domain.ErrUpstreamServer) {
		return fetch.FailServer
	}
	return fetch.FailNone
}

func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Ensure RoundService implements ports.RoundRunner
var _ ports.RoundRunner = (*RoundService)(nil)
