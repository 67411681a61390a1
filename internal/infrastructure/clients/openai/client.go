package openai

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

	"github.com/medleads/clinic-insight/internal/domain/providers"
	"github.com/medleads/clinic-insight/internal/infrastructure/observability"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultMaxTokens = 4096
)

// responsesModelPrefixes lists model families served by the responses API.
var responsesModelPrefixes = []string{"gpt-5", "o1", "o3", "o4"}

// Client issues chat-completion, responses-API and image-generation requests
// against OpenAI. API keys are supplied per call, not stored on the client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics

	// maxCompletionTokens caps the chat-completions fallback for
	// responses-API model families; account limits make the provider
	// default unsafe to request blindly.
	maxCompletionTokens int
}

// NewClient creates a new OpenAI client.
func NewClient(metrics *observability.Metrics, maxCompletionTokens int) *Client {
	return NewClientWithBaseURL(defaultBaseURL, metrics, maxCompletionTokens)
}

// NewClientWithBaseURL allows overriding the endpoint (used for tests).
func NewClientWithBaseURL(baseURL string, metrics *observability.Metrics, maxCompletionTokens int) *Client {
	if maxCompletionTokens <= 0 {
		maxCompletionTokens = 16384
	}
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
		metrics:             metrics,
		maxCompletionTokens: maxCompletionTokens,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model               string        `json:"model"`
	Messages            []chatMessage `json:"messages"`
	Temperature         *float64      `json:"temperature,omitempty"`
	MaxTokens           int           `json:"max_tokens,omitempty"`
	MaxCompletionTokens int           `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type responsesReasoning struct {
	Effort string `json:"effort"`
}

type responsesRequest struct {
	Model     string             `json:"model"`
	Input     []chatMessage      `json:"input"`
	Reasoning responsesReasoning `json:"reasoning"`
}

type responsesEnvelope struct {
	Output []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// GenerateText produces a completion. Models in a responses-API family are
// sent to /responses with reasoning effort "high" and no temperature
// override; on failure the call falls back to chat-completions with the
// configured completion-token ceiling.
func (c *Client) GenerateText(ctx context.Context, modelName, apiKey, prompt string) (string, error) {
	if usesResponsesAPI(modelName) {
		text, err := c.generateViaResponses(ctx, modelName, apiKey, prompt)
		if err == nil {
			return text, nil
		}
		return c.generateViaChat(ctx, modelName, apiKey, prompt, true)
	}
	return c.generateViaChat(ctx, modelName, apiKey, prompt, false)
}

func (c *Client) generateViaChat(ctx context.Context, modelName, apiKey, prompt string, responsesFallback bool) (string, error) {
	req := chatRequest{
		Model:    modelName,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	if responsesFallback {
		req.MaxCompletionTokens = c.maxCompletionTokens
	} else {
		temp := 0.7
		req.Temperature = &temp
		req.MaxTokens = defaultMaxTokens
	}

	var envelope chatResponse
	if err := c.post(ctx, "/chat/completions", apiKey, modelName, req, &envelope); err != nil {
		return "", err
	}
	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		return "", &providers.ProviderCallError{
			Provider: "openai", StatusCode: http.StatusOK,
			Err: errors.New("response missing message content"),
		}
	}
	return stripCodeFences(envelope.Choices[0].Message.Content), nil
}

func (c *Client) generateViaResponses(ctx context.Context, modelName, apiKey, prompt string) (string, error) {
	req := responsesRequest{
		Model:     modelName,
		Input:     []chatMessage{{Role: "user", Content: prompt}},
		Reasoning: responsesReasoning{Effort: "high"},
	}

	var envelope responsesEnvelope
	if err := c.post(ctx, "/responses", apiKey, modelName, req, &envelope); err != nil {
		return "", err
	}

	for _, out := range envelope.Output {
		for _, content := range out.Content {
			if content.Type == "output_text" && content.Text != "" {
				return stripCodeFences(content.Text), nil
			}
		}
	}
	return "", &providers.ProviderCallError{
		Provider: "openai", StatusCode: http.StatusOK,
		Err: errors.New("responses envelope missing output text"),
	}
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	Style   string `json:"style"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// GenerateImage requests a 1024x1024 hd/natural image and returns the
// provider-supplied URL.
func (c *Client) GenerateImage(ctx context.Context, modelName, apiKey, subject string) (string, error) {
	req := imageRequest{
		Model:   modelName,
		Prompt:  subject,
		N:       1,
		Size:    "1024x1024",
		Quality: "hd",
		Style:   "natural",
	}

	var envelope imageResponse
	if err := c.post(ctx, "/images/generations", apiKey, modelName, req, &envelope); err != nil {
		return "", err
	}
	if len(envelope.Data) == 0 || envelope.Data[0].URL == "" {
		return "", &providers.ProviderCallError{
			Provider: "openai", StatusCode: http.StatusOK,
			Err: errors.New("image response missing url"),
		}
	}
	return envelope.Data[0].URL, nil
}

func (c *Client) post(ctx context.Context, path, apiKey, model string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building openai request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordAIMetric(ctx, c.metrics, "openai", model, 0, time.Since(start), err)
		return &providers.ProviderCallError{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		callErr := &providers.ProviderCallError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
		observability.RecordAIMetric(ctx, c.metrics, "openai", model, resp.StatusCode, time.Since(start), callErr)
		return callErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		observability.RecordAIMetric(ctx, c.metrics, "openai", model, resp.StatusCode, time.Since(start), err)
		return &providers.ProviderCallError{Provider: "openai", StatusCode: resp.StatusCode, Err: err}
	}

	observability.RecordAIMetric(ctx, c.metrics, "openai", model, resp.StatusCode, time.Since(start), nil)
	return nil
}

func usesResponsesAPI(modelName string) bool {
	for _, prefix := range responsesModelPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			return true
		}
	}
	return false
}

func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}
