package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/medleads/clinic-insight/internal/domain/providers"
	"github.com/medleads/clinic-insight/internal/infrastructure/observability"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ResponseShape tags which response schema a reply followed.
type ResponseShape string

const (
	// NewShape is the candidates/content/parts schema of the current API.
	NewShape ResponseShape = "new"
	// LegacyShape is the older flat output schema some models still emit.
	LegacyShape ResponseShape = "legacy"
)

// charBudgetMarker matches "(100文字程度)" style artifacts the model emits
// against instructions, in full-width or half-width parentheses.
var charBudgetMarker = regexp.MustCompile(`[（(]\d+文字程度[）)]`)

// Client issues generateContent requests against the Google
// generative-language API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewClient creates a new Gemini client.
func NewClient(metrics *observability.Metrics) *Client {
	return NewClientWithBaseURL(defaultBaseURL, metrics)
}

// NewClientWithBaseURL allows overriding the endpoint (used for tests).
func NewClientWithBaseURL(baseURL string, metrics *observability.Metrics) *Client {
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
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
	Role  string `json:"role,omitempty"`
}

type generationConfig struct {
	Temperature        *float64 `json:"temperature,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

// generateResponse tolerates both response schemas: the candidates/content/
// parts shape and the legacy flat output/text shape.
type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
		Output  string  `json:"output"`
	} `json:"candidates"`
	Text string `json:"text"`
}

// TextResult is a completion tagged with the response shape it was parsed from.
type TextResult struct {
	Text  string
	Shape ResponseShape
}

// GenerateText produces a completion, scrubbing character-budget artifacts
// from the output.
func (c *Client) GenerateText(ctx context.Context, modelName, apiKey, prompt string) (string, error) {
	result, err := c.GenerateTextShaped(ctx, modelName, apiKey, prompt)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// GenerateTextShaped is GenerateText, additionally reporting which response
// schema the reply followed.
func (c *Client) GenerateTextShaped(ctx context.Context, modelName, apiKey, prompt string) (*TextResult, error) {
	temp := 0.7
	req := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{Temperature: &temp},
	}

	envelope, err := c.generateContent(ctx, modelName, apiKey, req)
	if err != nil {
		return nil, err
	}

	for _, cand := range envelope.Candidates {
		for _, p := range cand.Content.Parts {
			if p.Text != "" {
				return &TextResult{Text: scrub(p.Text), Shape: NewShape}, nil
			}
		}
		if cand.Output != "" {
			return &TextResult{Text: scrub(cand.Output), Shape: LegacyShape}, nil
		}
	}
	if envelope.Text != "" {
		return &TextResult{Text: scrub(envelope.Text), Shape: LegacyShape}, nil
	}

	return nil, &providers.ProviderCallError{
		Provider: "gemini", StatusCode: http.StatusOK,
		Err: errors.New("response missing text in any known shape"),
	}
}

// GenerateImage requests TEXT+IMAGE modalities, walks the response parts and
// returns the first inline-data part as a data URI.
func (c *Client) GenerateImage(ctx context.Context, modelName, apiKey, subject string) (string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: subject}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}

	envelope, err := c.generateContent(ctx, modelName, apiKey, req)
	if err != nil {
		return "", err
	}

	for _, cand := range envelope.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				mime := p.InlineData.MimeType
				if mime == "" {
					mime = "image/png"
				}
				return fmt.Sprintf("data:%s;base64,%s", mime, p.InlineData.Data), nil
			}
		}
	}

	return "", &providers.ProviderCallError{
		Provider: "gemini", StatusCode: http.StatusOK,
		Err: errors.New("response contained no inline image data"),
	}
}

func (c *Client) generateContent(ctx context.Context, modelName, apiKey string, payload generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshaling gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, modelName, apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordAIMetric(ctx, c.metrics, "gemini", modelName, 0, time.Since(start), err)
		return nil, &providers.ProviderCallError{Provider: "gemini", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		callErr := &providers.ProviderCallError{
			Provider:   "gemini",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
		observability.RecordAIMetric(ctx, c.metrics, "gemini", modelName, resp.StatusCode, time.Since(start), callErr)
		return nil, callErr
	}

	var envelope generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		observability.RecordAIMetric(ctx, c.metrics, "gemini", modelName, resp.StatusCode, time.Since(start), err)
		return nil, &providers.ProviderCallError{Provider: "gemini", StatusCode: resp.StatusCode, Err: err}
	}

	observability.RecordAIMetric(ctx, c.metrics, "gemini", modelName, resp.StatusCode, time.Since(start), nil)
	return &envelope, nil
}

func scrub(text string) string {
	return strings.TrimSpace(charBudgetMarker.ReplaceAllString(text, ""))
}
