// Package scrape is the client for the text-scraping collaborator boundary:
// given a URL it returns the page as text. Retries and per-attempt deadlines
// belong to the fetcher; this client only classifies failures.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/ports"
	"github.com/bullionwatch/bullion-snapshot-service/pkg/retry"
)

// Client implements the ports.PageScraper interface
type Client struct {
	http   *resty.Client
	logger *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithUserAgent sets the request user agent
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.http.SetHeader("User-Agent", ua)
		}
	}
}

// WithTimeout sets the transport-level timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.http.SetTimeout(timeout)
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With("component", "scrape_client")
	}
}

// NewClient creates a new page scraper client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:   resty.New().SetTimeout(25 * time.Second).SetHeader("User-Agent", "bullion-snapshot/1.0"),
		logger: slog.Default().With("component", "scrape_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchPage returns the page at url as text. Upstream 5xx and transport
// errors are marked retryable for the fetcher; other statuses are terminal.
func (c *Client) FetchPage(ctx context.Context, url string) (string, error) {
	resp, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		c.logger.Debug("page request failed", "url", url, "error", err)
		return "", retry.NewRetryableError(fmt.Errorf("fetch %s: %w", url, err))
	}

	status := resp.StatusCode()
	switch {
	case status >= 500:
		c.logger.Warn("upstream server error", "url", url, "status", status)
		return "", retry.NewRetryableError(fmt.Errorf("%w: status %d", domain.ErrUpstreamServer, status))
	case status == http.StatusTooManyRequests:
		return "", retry.NewRetryableError(fmt.Errorf("%w: status %d", domain.ErrUpstreamStatus, status))
	case status != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", domain.ErrUpstreamStatus, status)
	}

	return string(resp.Body()), nil
}

var _ ports.PageScraper = (*Client)(nil)
