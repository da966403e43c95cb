package http

import (
	"log/slog"
	"net/http"

	"github.com/bullionwatch/bullion-snapshot-service/internal/metrics"
)

// NewRouter creates the HTTP router with all routes
func NewRouter(h *Handler, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", h.Health)

	// Store overview
	mux.HandleFunc("GET /manifest", h.Manifest)
	mux.HandleFunc("GET /latest", h.LatestAll)

	// Per-item views
	mux.HandleFunc("GET /items/{item}/latest", h.ItemLatest)
	mux.HandleFunc("GET /items/{item}/history", h.ItemHistory)

	// Prometheus metrics
	mux.Handle("GET /metrics", m.Handler())

	// Apply middleware chain (order matters: outer -> inner)
	var handler http.Handler = mux
	handler = ContentTypeMiddleware(handler)
	handler = CORSMiddleware(handler)
	handler = RecoveryMiddleware(logger)(handler)
	handler = LoggingMiddleware(logger, m)(handler)

	return handler
}
