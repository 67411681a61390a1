package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medleads/clinic-insight/internal/domain/providers"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
	"github.com/medleads/clinic-insight/pkg/retry"
)

// stubTextClient scripts one error per call; once the script runs out it
// succeeds with text.
type stubTextClient struct {
	mu        sync.Mutex
	script    []error
	text      string
	calls     int
	lastModel string
	lastKey   string
}

func (s *stubTextClient) GenerateText(_ context.Context, modelName, apiKey, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastModel = modelName
	s.lastKey = apiKey
	if len(s.script) > 0 {
		err := s.script[0]
		s.script = s.script[1:]
		if err != nil {
			return "", err
		}
	}
	return s.text, nil
}

// stubReducedClient additionally records reduced-budget calls.
type stubReducedClient struct {
	stubTextClient
	reducedCalls int
}

func (s *stubReducedClient) GenerateTextReduced(ctx context.Context, modelName, apiKey, prompt string) (string, error) {
	s.mu.Lock()
	s.reducedCalls++
	s.mu.Unlock()
	return s.stubTextClient.GenerateText(ctx, modelName, apiKey, prompt)
}

type stubImageClient struct {
	url   string
	err   error
	calls int
}

func (s *stubImageClient) GenerateImage(_ context.Context, _, _, _ string) (string, error) {
	s.calls++
	return s.url, s.err
}

func fastRetryConfig() retry.Config {
	return retry.Config{
		MaxAttempts:    3,
		InitialDelay:   time.Millisecond,
		MaxDelay:       2 * time.Millisecond,
		BackoffFactor:  2.0,
		AttemptTimeout: time.Second,
	}
}

func testKeys(keys map[string]string) func(string) string {
	return func(envVar string) string { return keys[envVar] }
}

func newTestGateway(openAI, anthropic, gemini providers.TextGenerator, keys map[string]string) *AIGateway {
	return NewAIGateway(openAI, anthropic, gemini, nil, nil).
		WithRetryConfig(fastRetryConfig()).
		WithKeyLookup(testKeys(keys))
}

func connErr(provider string) error {
	return &providers.ProviderCallError{Provider: provider, StatusCode: 0, Err: errors.New("connection reset")}
}

func statusErr(provider string, status int) error {
	return &providers.ProviderCallError{Provider: provider, StatusCode: status, Err: errors.New("upstream status")}
}

func TestGenerateText_DummyModelSkipsProviders(t *testing.T) {
	openAI := &stubTextClient{text: "never"}
	gateway := newTestGateway(openAI, nil, nil, nil)

	text, err := gateway.GenerateText(context.Background(), DummyModel, "prompt")

	require.NoError(t, err)
	assert.Contains(t, text, "ダミー")
	assert.Equal(t, 0, openAI.calls)
}

func TestGenerateText_RoutesByModelPrefix(t *testing.T) {
	openAI := &stubTextClient{text: "from openai"}
	gemini := &stubTextClient{text: "from gemini"}
	keys := map[string]string{"OPENAI_API_KEY": "sk-test", "GOOGLE_API_KEY": "g-test"}
	gateway := newTestGateway(openAI, nil, gemini, keys)

	text, err := gateway.GenerateText(context.Background(), "gpt-4o", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "from openai", text)
	assert.Equal(t, "gpt-4o", openAI.lastModel)
	assert.Equal(t, "sk-test", openAI.lastKey)

	text, err = gateway.GenerateText(context.Background(), "gemini-2.0-flash", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "from gemini", text)
}

func TestGenerateText_UnknownModelFamily(t *testing.T) {
	gateway := newTestGateway(&stubTextClient{}, nil, nil, nil)

	_, err := gateway.GenerateText(context.Background(), "llama-3", "prompt")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestGenerateText_MissingKeyFailsBeforeCall(t *testing.T) {
	openAI := &stubTextClient{text: "never"}
	gateway := newTestGateway(openAI, nil, nil, nil)

	_, err := gateway.GenerateText(context.Background(), "gpt-4o", "prompt")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	assert.Equal(t, 0, openAI.calls)
}

func TestGenerateText_RetryableFailureUsesThreeAttempts(t *testing.T) {
	openAI := &stubTextClient{
		script: []error{statusErr("openai", 502), statusErr("openai", 502), statusErr("openai", 502)},
	}
	gateway := newTestGateway(openAI, nil, nil, map[string]string{"OPENAI_API_KEY": "sk-test"})

	_, err := gateway.GenerateText(context.Background(), "gpt-4o", "prompt")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeUpstream, apperrors.TypeOf(err))
	assert.Equal(t, 3, openAI.calls)
}

func TestGenerateText_RecoversOnSecondAttempt(t *testing.T) {
	openAI := &stubTextClient{script: []error{statusErr("openai", 429)}, text: "recovered"}
	gateway := newTestGateway(openAI, nil, nil, map[string]string{"OPENAI_API_KEY": "sk-test"})

	text, err := gateway.GenerateText(context.Background(), "gpt-4o", "prompt")

	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
	assert.Equal(t, 2, openAI.calls)
}

func TestGenerateText_AuthErrorIsNotRetried(t *testing.T) {
	openAI := &stubTextClient{script: []error{statusErr("openai", 401)}}
	gateway := newTestGateway(openAI, nil, nil, map[string]string{"OPENAI_API_KEY": "sk-bad"})

	_, err := gateway.GenerateText(context.Background(), "gpt-4o", "prompt")

	require.Error(t, err)
	assert.Equal(t, 1, openAI.calls)
}

func TestGenerateText_ReissuedClaudeAttemptsUseReducedBudget(t *testing.T) {
	anthropic := &stubReducedClient{}
	anthropic.script = []error{statusErr("anthropic", 502), statusErr("anthropic", 502)}
	anthropic.text = "ok"
	gateway := newTestGateway(nil, anthropic, nil, map[string]string{"ANTHROPIC_API_KEY": "ak-test"})

	text, err := gateway.GenerateText(context.Background(), "claude-sonnet-4-20250514", "prompt")

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 3, anthropic.calls)
	// Only the first attempt runs with the full token budget.
	assert.Equal(t, 2, anthropic.reducedCalls)
}

func TestGenerateText_ClaudeConnectionFailureFallsBackToGemini(t *testing.T) {
	anthropic := &stubTextClient{
		script: []error{connErr("anthropic"), connErr("anthropic"), connErr("anthropic")},
	}
	gemini := &stubTextClient{text: "fallback answer"}
	keys := map[string]string{"ANTHROPIC_API_KEY": "ak-test", "GOOGLE_API_KEY": "g-test"}
	gateway := newTestGateway(nil, anthropic, gemini, keys)

	text, err := gateway.GenerateText(context.Background(), "claude-sonnet-4-20250514", "prompt")

	require.NoError(t, err)
	assert.Equal(t, "fallback answer", text)
	assert.Equal(t, 3, anthropic.calls)
	assert.Equal(t, 1, gemini.calls)
	assert.Equal(t, "gemini-2.0-flash", gemini.lastModel)
	assert.Equal(t, "g-test", gemini.lastKey)
}

func TestGenerateText_NoFallbackWithoutGoogleKey(t *testing.T) {
	anthropic := &stubTextClient{
		script: []error{connErr("anthropic"), connErr("anthropic"), connErr("anthropic")},
	}
	gemini := &stubTextClient{text: "never"}
	gateway := newTestGateway(nil, anthropic, gemini, map[string]string{"ANTHROPIC_API_KEY": "ak-test"})

	_, err := gateway.GenerateText(context.Background(), "claude-sonnet-4-20250514", "prompt")

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeUpstream, apperrors.TypeOf(err))
	assert.Equal(t, 0, gemini.calls)
}

func TestGenerateText_NoFallbackOnStatusErrors(t *testing.T) {
	// 5xx responses mean Anthropic is reachable; the Gemini re-issue is
	// reserved for connection-class failures.
	anthropic := &stubTextClient{
		script: []error{statusErr("anthropic", 500), statusErr("anthropic", 500), statusErr("anthropic", 500)},
	}
	gemini := &stubTextClient{text: "never"}
	keys := map[string]string{"ANTHROPIC_API_KEY": "ak-test", "GOOGLE_API_KEY": "g-test"}
	gateway := newTestGateway(nil, anthropic, gemini, keys)

	_, err := gateway.GenerateText(context.Background(), "claude-sonnet-4-20250514", "prompt")

	require.Error(t, err)
	assert.Equal(t, 0, gemini.calls)
}

func TestGenerateTextOnce_SingleAttempt(t *testing.T) {
	openAI := &stubTextClient{script: []error{statusErr("openai", 502)}}
	gateway := newTestGateway(openAI, nil, nil, map[string]string{"OPENAI_API_KEY": "sk-test"})

	_, err := gateway.GenerateTextOnce(context.Background(), "gpt-4o", "prompt", time.Second)

	require.Error(t, err)
	assert.Equal(t, 1, openAI.calls)
}

func TestGenerateImage_NeverFails(t *testing.T) {
	openAIImages := &stubImageClient{err: errors.New("boom")}
	gateway := NewAIGateway(nil, nil, nil, openAIImages, nil).
		WithKeyLookup(testKeys(map[string]string{"OPENAI_API_KEY": "sk-test"}))

	url := gateway.GenerateImage(context.Background(), "dall-e-3", "40代男性")
	assert.Contains(t, url, "placehold.co")
	assert.Equal(t, 1, openAIImages.calls)

	url = gateway.GenerateImage(context.Background(), "none", "40代男性")
	assert.Contains(t, url, "no+image+model")

	url = gateway.GenerateImage(context.Background(), "unknown-image-model", "40代男性")
	assert.Contains(t, url, "placehold.co")
}

func TestGenerateImage_MissingKeyYieldsPlaceholder(t *testing.T) {
	openAIImages := &stubImageClient{url: "https://example.com/img.png"}
	gateway := NewAIGateway(nil, nil, nil, openAIImages, nil).
		WithKeyLookup(testKeys(nil))

	url := gateway.GenerateImage(context.Background(), "dall-e-3", "40代男性")

	assert.Contains(t, url, "openai+key+missing")
	assert.Equal(t, 0, openAIImages.calls)
}

func TestGenerateImage_Success(t *testing.T) {
	geminiImages := &stubImageClient{url: "data:image/png;base64,AAAA"}
	gateway := NewAIGateway(nil, nil, nil, nil, geminiImages).
		WithKeyLookup(testKeys(map[string]string{"GOOGLE_API_KEY": "g-test"}))

	url := gateway.GenerateImage(context.Background(), "gemini-2.0-flash-exp-image-generation", "30代女性")

	assert.Equal(t, "data:image/png;base64,AAAA", url)
}
