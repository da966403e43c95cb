// Package vision is the client for the vision-extraction collaborator. It
// ships a screenshot plus item metadata and defensively parses the single
// structured object the service is expected to emit.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/bullionwatch/bullion-snapshot-service/internal/domain"
	"github.com/bullionwatch/bullion-snapshot-service/internal/ports"
	"github.com/bullionwatch/bullion-snapshot-service/pkg/retry"
)

const extractPath = "/v1/extract"

// Client implements the ports.VisionExtractor interface
type Client struct {
	http    *resty.Client
	baseURL string
	model   string
	logger  *slog.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the vision service base URL
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithAPIKey sets the bearer token
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		if key != "" {
			c.http.SetAuthToken(key)
		}
	}
}

// WithModel selects the extraction model
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
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
		c.logger = logger.With("component", "vision_client")
	}
}

// NewClient creates a new vision extraction client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:    resty.New().SetTimeout(60 * time.Second),
		baseURL: "https://api.vision.example",
		model:   "vision-extract-1",
		logger:  slog.Default().With("component", "vision_client"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type extractRequest struct {
	Model       string `json:"model"`
	Instruction string `json:"instruction"`
	ImageB64    string `json:"image_b64"`
}

type extractResponse struct {
	Output string `json:"output"`
}

// structuredResult is the one object the collaborator must emit somewhere
// in its output text.
type structuredResult struct {
	Price          *float64 `json:"price"`
	Confidence     string   `json:"confidence"`
	AgreesWithHint *bool    `json:"agrees_with_hint"`
	Label          string   `json:"label"`
}

// ExtractPrice asks the vision service for a structured price readout.
// A response that cannot be parsed even after fallback is a hard failure,
// distinct from a well-formed null price.
func (c *Client) ExtractPrice(ctx context.Context, image []byte, req domain.VisionRequest) (*domain.VisionResult, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(extractRequest{
			Model:       c.model,
			Instruction: buildInstruction(req),
			ImageB64:    base64.StdEncoding.EncodeToString(image),
		}).
		SetResult(&extractResponse{}).
		Post(c.baseURL + extractPath)
	if err != nil {
		return nil, retry.NewRetryableError(fmt.Errorf("vision request: %w", err))
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		c.logger.Warn("vision service unavailable", "status", status)
		return nil, retry.NewRetryableError(fmt.Errorf("%w: status %d", domain.ErrUpstreamServer, status))
	case status != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamStatus, status)
	}

	out, ok := resp.Result().(*extractResponse)
	if !ok || out.Output == "" {
		return nil, fmt.Errorf("%w: empty output", domain.ErrVisionNoPayload)
	}

	parsed, err := parseStructured(out.Output)
	if err != nil {
		return nil, err
	}

	return toResult(parsed), nil
}

// buildInstruction frames the extraction task: the plausible range keeps the
// model off accessories and roll totals, the text price is a cross-check hint.
func buildInstruction(req domain.VisionRequest) string {
	r := req.Class.Range()

	var b strings.Builder
	fmt.Fprintf(&b, "Find the single unit price for %q (%s, %s oz) in this product page screenshot. ",
		req.ItemName, req.Class, req.UnitWeightOz)
	fmt.Fprintf(&b, "A plausible price is between %s and %s. ", r.Min, r.Max)
	fmt.Fprintf(&b, "Ignore accessories, multi-coin rolls, and spot price tickers. ")
	if req.HintPrice != nil {
		fmt.Fprintf(&b, "A text scrape of the same page read %s; report whether you agree. ", req.HintPrice.StringFixed(2))
	}
	b.WriteString(`Respond with exactly one JSON object: {"price": number or null, "confidence": "high"|"medium"|"low", "agrees_with_hint": bool or null, "label": string}.`)
	return b.String()
}

// parseStructured attempts a direct parse, then strips fence wrappers, then
// falls back to the first balanced object in the text.
func parseStructured(output string) (*structuredResult, error) {
	candidates := []string{
		strings.TrimSpace(output),
		stripFences(output),
		firstObject(output),
	}

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		var result structuredResult
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return &result, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrVisionParse, domain.Truncate(output, 160))
}

// stripFences unwraps a ```json ... ``` (or bare ```) fenced block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return ""
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// firstObject extracts the first brace-balanced fragment.
func firstObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case !inString && ch == '{':
			depth++
		case !inString && ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func toResult(parsed *structuredResult) *domain.VisionResult {
	result := &domain.VisionResult{
		AgreesWithHint: parsed.AgreesWithHint,
		Label:          parsed.Label,
	}

	if parsed.Price != nil {
		price := decimal.NewFromFloat(*parsed.Price)
		result.Price = &price
		result.Confidence = domain.ParseVisionConfidence(parsed.Confidence)
		if result.Confidence == domain.VisionNone {
			// a price without a grade is still a reading, just a weak one
			result.Confidence = domain.VisionLow
		}
	} else {
		result.Confidence = domain.VisionNone
	}

	return result
}

var _ ports.VisionExtractor = (*Client)(nil)
