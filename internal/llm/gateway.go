// Package llm normalizes three AI vision provider protocols behind a single
// invoke contract and provides tolerant parsing of model output.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdfdeck/pdfdeck/internal/domain"
	"github.com/pdfdeck/pdfdeck/internal/observability"
)

const (
	// DefaultTimeout bounds each provider call. There is no retry and no
	// per-call cancellation beyond this ceiling.
	DefaultTimeout = 120 * time.Second

	// DefaultMaxTokens caps completion length for providers that require it.
	DefaultMaxTokens = 4096
)

// Request carries one provider-agnostic invocation: a prompt plus an ordered
// set of base64-encoded images.
type Request struct {
	Provider    string
	APIKey      string
	Model       string
	Prompt      string
	Images      []string
	BaseURL     string
	Temperature float64
}

// Gateway dispatches invocations to provider-specific adapters. Stateless
// apart from the shared HTTP client.
type Gateway struct {
	logger           *observability.Logger
	httpClient       *http.Client
	maxTokens        int
	anthropicBaseURL string
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(g *Gateway) {
		g.httpClient.Timeout = timeout
	}
}

// WithMaxTokens sets the completion token cap.
func WithMaxTokens(n int) Option {
	return func(g *Gateway) {
		g.maxTokens = n
	}
}

// WithAnthropicBaseURL overrides the Anthropic endpoint (for testing).
func WithAnthropicBaseURL(baseURL string) Option {
	return func(g *Gateway) {
		g.anthropicBaseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// NewGateway creates a provider gateway.
func NewGateway(logger *observability.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		logger:           logger.WithComponent("llm"),
		httpClient:       &http.Client{Timeout: DefaultTimeout},
		maxTokens:        DefaultMaxTokens,
		anthropicBaseURL: anthropicBaseURL,
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Invoke sends the prompt and images to the selected provider and returns
// the raw assistant text. HTTP-level failures surface as hard errors; there
// is no retry and no fallback provider.
func (g *Gateway) Invoke(ctx context.Context, req Request) (string, error) {
	switch {
	case req.Provider == "gemini":
		return g.callGemini(ctx, req)
	case strings.Contains(req.Provider, "openai"):
		return g.callOpenAI(ctx, req)
	case req.Provider == "anthropic":
		return g.callAnthropic(ctx, req)
	default:
		return "", domain.ValidationError(fmt.Sprintf("unsupported provider %q", req.Provider), nil)
	}
}

// postJSON sends payload to url and decodes the 2xx response body into out.
// Non-2xx responses are hard failures carrying the response body.
func (g *Gateway) postJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.APIError("failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.APIError("failed to build request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return domain.APIError("provider request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.APIError(fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.APIError("failed to decode provider response", err)
	}
	return nil
}
