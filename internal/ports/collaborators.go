package ports

import (
	"context"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
)

// PageScraper defines the contract for the text-scraping collaborator.
// Retries and timeouts are the fetcher's responsibility, not the scraper's.
type PageScraper interface {
	// FetchPage returns the page at url as text
	FetchPage(ctx context.Context, url string) (string, error)
}

// ScreenCapturer defines the contract for the screenshot collaborator
type ScreenCapturer interface {
	// Capture returns a rendered screenshot of url and the upstream status code
	Capture(ctx context.Context, url string) ([]byte, int, error)
}

// VisionExtractor defines the contract for the vision-extraction collaborator
type VisionExtractor interface {
	// ExtractPrice asks the vision service for a structured price readout.
	// An unparseable response is a hard failure, distinct from a nil price.
	ExtractPrice(ctx context.Context, image []byte, req domain.VisionRequest) (*domain.VisionResult, error)
}
