package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bullionwatch/bullion-snapshot-service/internal/ports"
)

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains all HTTP handlers
type Handler struct {
	reportSvc ports.ReportService
	pinger    Pinger
	logger    *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(reportSvc ports.ReportService, pinger Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		reportSvc: reportSvc,
		pinger:    pinger,
		logger:    logger.With("component", "http_handler"),
	}
}

// Health returns service health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "healthy"

	checkCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.pinger.Ping(checkCtx); err != nil {
		dbStatus = "unhealthy"
		status = "degraded"
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   status,
		"database": dbStatus,
	})
}

// Manifest returns known items, the latest window, and per-item window counts
func (h *Handler) Manifest(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.reportSvc.Manifest(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	latestWindow := ""
	if !manifest.LatestWindow.IsZero() {
		latestWindow = manifest.LatestWindow.Format(time.RFC3339)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":         manifest.Items,
		"latest_window": latestWindow,
		"window_counts": manifest.WindowCounts,
	})
}

// SnapshotResponse represents one item's position at the latest window
type SnapshotResponse struct {
	ItemID string `json:"item_id"`
	Median string `json:"median"`
	Low    string `json:"low"`
}

// LatestAll returns every item's median and low at the latest window
func (h *Handler) LatestAll(w http.ResponseWriter, r *http.Request) {
	snapshots, err := h.reportSvc.LatestAll(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	items := make([]SnapshotResponse, len(snapshots))
	for i, s := range snapshots {
		items[i] = SnapshotResponse{
			ItemID: s.ItemID,
			Median: s.Median.StringFixed(2),
			Low:    s.Low.StringFixed(2),
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
	})
}

// VendorRecordResponse represents one vendor's reconciled daily price
type VendorRecordResponse struct {
	VendorID    string   `json:"vendor_id"`
	Price       *string  `json:"price"`
	Score       int      `json:"score"`
	MethodLabel string   `json:"method_label"`
	Flags       []string `json:"flags"`
	HasText     bool     `json:"has_text"`
	HasVision   bool     `json:"has_vision"`
}

// SeriesPointResponse represents one window's cross-vendor aggregate
type SeriesPointResponse struct {
	Window string `json:"window"`
	Median string `json:"median"`
	Low    string `json:"low"`
}

// ItemLatest returns an item's vendor records plus its rolling series
func (h *Handler) ItemLatest(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("item")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "item is required")
		return
	}

	latest, err := h.reportSvc.ItemLatest(r.Context(), itemID)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	vendors := make([]VendorRecordResponse, len(latest.Vendors))
	for i, v := range latest.Vendors {
		vendors[i] = VendorRecordResponse{
			VendorID:    v.VendorID,
			Price:       formatPrice(v.Price),
			Score:       v.Score,
			MethodLabel: v.MethodLabel,
			Flags:       v.Flags,
			HasText:     v.HasText,
			HasVision:   v.HasVision,
		}
	}

	series := make([]SeriesPointResponse, len(latest.Series))
	for i, p := range latest.Series {
		series[i] = SeriesPointResponse{
			Window: p.WindowStart.Format(time.RFC3339),
			Median: p.Median.StringFixed(2),
			Low:    p.Low.StringFixed(2),
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": latest.ItemID,
		"window":  latest.Window.Format(time.RFC3339),
		"vendors": vendors,
		"series":  series,
	})
}

// DailyAggregateResponse represents one day's cross-vendor summary
type DailyAggregateResponse struct {
	Date         string            `json:"date"`
	AvgMedian    string            `json:"avg_median"`
	AvgLow       string            `json:"avg_low"`
	SampleCount  int               `json:"sample_count"`
	PerVendorAvg map[string]string `json:"per_vendor_avg"`
}

// ItemHistory returns an item's daily aggregates over the trailing days
func (h *Handler) ItemHistory(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("item")
	if itemID == "" {
		respondError(w, http.StatusBadRequest, "item is required")
		return
	}

	days := 0
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		d, err := strconv.Atoi(daysParam)
		if err != nil || d < 1 {
			respondError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = d
	}

	history, err := h.reportSvc.ItemHistory(r.Context(), itemID, days)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	entries := make([]DailyAggregateResponse, len(history))
	for i, day := range history {
		perVendor := make(map[string]string, len(day.PerVendorAvg))
		for vendor, avg := range day.PerVendorAvg {
			perVendor[vendor] = avg.StringFixed(2)
		}
		entries[i] = DailyAggregateResponse{
			Date:         day.Date.Format("2006-01-02"),
			AvgMedian:    day.AvgMedian.StringFixed(2),
			AvgLow:       day.AvgLow.StringFixed(2),
			SampleCount:  day.SampleCount,
			PerVendorAvg: perVendor,
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": itemID,
		"history": entries,
	})
}

func formatPrice(p *decimal.Decimal) *string {
	if p == nil {
		return nil
	}
	s := p.StringFixed(2)
	return &s
}
