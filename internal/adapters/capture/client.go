// Package capture is the client for the screenshot collaborator: given a
// URL it returns a rendered screenshot and the upstream status code.
package capture

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

const capturePath = "/capture"

// Client implements the ports.ScreenCapturer interface
type Client struct {
	http    *resty.Client
	baseURL string
	logger  *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the capture service base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
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
		c.logger = logger.With("component", "capture_client")
	}
}

// NewClient creates a new screenshot client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    resty.New().SetTimeout(45 * time.Second),
		baseURL: "http://localhost:9222",
		logger:  slog.Default().With("component", "capture_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type captureRequest struct {
	URL string `json:"url"`
}

// Capture returns a screenshot of url and the upstream page status the
// capture service observed while rendering.
func (c *Client) Capture(ctx context.Context, url string) ([]byte, int, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(captureRequest{URL: url}).
		Post(c.baseURL + capturePath)
	if err != nil {
		c.logger.Debug("capture request failed", "url", url, "error", err)
		return nil, 0, retry.NewRetryableError(fmt.Errorf("capture %s: %w", url, err))
	}

	status := resp.StatusCode()
	switch {
	case status >= 500:
		c.logger.Warn("capture service error", "url", url, "status", status)
		return nil, status, retry.NewRetryableError(fmt.Errorf("%w: status %d", domain.ErrUpstreamServer, status))
	case status != http.StatusOK:
		return nil, status, fmt.Errorf("%w: status %d", domain.ErrCaptureFailed, status)
	}

	image := resp.Body()
	if len(image) == 0 {
		return nil, status, fmt.Errorf("%w: empty image", domain.ErrCaptureFailed)
	}

	return image, status, nil
}

var _ ports.ScreenCapturer = (*Client)(nil)
