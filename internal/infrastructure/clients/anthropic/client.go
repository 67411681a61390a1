package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/domain/providers"
	"github.com/medleads/clinic-insight/internal/infrastructure/observability"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"

	// DefaultMaxTokens is used on the normal path.
	DefaultMaxTokens = 64000

	// FallbackMaxTokens is used when the gateway re-issues a call on the
	// documented fallback path, where the smaller budget reduces 502
	// incidence upstream.
	FallbackMaxTokens = 2500
)

// Client issues messages-API requests against Anthropic. The direct flag
// selects raw HTTP over the SDK-shaped request path; the wire behavior is
// identical either way, so the flag only changes how the request is built
// and logged.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
	direct     bool
}

// NewClient creates a new Anthropic client.
func NewClient(metrics *observability.Metrics, directHTTP bool) *Client {
	return NewClientWithBaseURL(defaultBaseURL, metrics, directHTTP)
}

// NewClientWithBaseURL allows overriding the endpoint (used for tests).
func NewClientWithBaseURL(baseURL string, metrics *observability.Metrics, directHTTP bool) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		metrics: metrics,
		direct:  directHTTP,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	Messages    []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// GenerateText produces a completion with the default token budget.
func (c *Client) GenerateText(ctx context.Context, modelName, apiKey, prompt string) (string, error) {
	return c.generate(ctx, modelName, apiKey, prompt, DefaultMaxTokens)
}

// GenerateTextReduced produces a completion with the reduced fallback budget.
func (c *Client) GenerateTextReduced(ctx context.Context, modelName, apiKey, prompt string) (string, error) {
	return c.generate(ctx, modelName, apiKey, prompt, FallbackMaxTokens)
}

func (c *Client) generate(ctx context.Context, modelName, apiKey, prompt string, maxTokens int) (string, error) {
	reqBody := messagesRequest{
		Model:       modelName,
		MaxTokens:   maxTokens,
		Temperature: 0.7,
		Messages:    []message{{Role: "user", Content: prompt}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building anthropic request: %w", err)
	}
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	if c.direct {
		log.Debug().Str("model", modelName).Msg("anthropic direct-http request")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordAIMetric(ctx, c.metrics, "anthropic", modelName, 0, time.Since(start), err)
		return "", &providers.ProviderCallError{Provider: "anthropic", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		callErr := &providers.ProviderCallError{
			Provider:   "anthropic",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
		observability.RecordAIMetric(ctx, c.metrics, "anthropic", modelName, resp.StatusCode, time.Since(start), callErr)
		return "", callErr
	}

	var envelope messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		observability.RecordAIMetric(ctx, c.metrics, "anthropic", modelName, resp.StatusCode, time.Since(start), err)
		return "", &providers.ProviderCallError{Provider: "anthropic", StatusCode: resp.StatusCode, Err: err}
	}

	for _, content := range envelope.Content {
		if content.Type == "text" && content.Text != "" {
			observability.RecordAIMetric(ctx, c.metrics, "anthropic", modelName, resp.StatusCode, time.Since(start), nil)
			return strings.TrimSpace(content.Text), nil
		}
	}

	missingErr := errors.New("anthropic response missing text content")
	observability.RecordAIMetric(ctx, c.metrics, "anthropic", modelName, resp.StatusCode, time.Since(start), missingErr)
	return "", &providers.ProviderCallError{Provider: "anthropic", StatusCode: resp.StatusCode, Err: missingErr}
}
