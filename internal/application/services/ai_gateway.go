package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/domain/providers"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
	"github.com/medleads/clinic-insight/pkg/retry"
)

const (
	// DummyModel skips the external call and returns a fixed completion.
	DummyModel = "dummy"

	// fallbackGeminiModel handles Claude calls that exhausted retries on
	// connection-class errors.
	fallbackGeminiModel = "gemini-2.0-flash"

	dummyCompletion = "これはダミーモデルによる応答です。外部AIプロバイダは呼び出されていません。"

	placeholderImageBase = "https://placehold.co/1024x1024?text="
)

// reducedTextGenerator is implemented by clients that support a reduced
// token budget for re-issued calls.
type reducedTextGenerator interface {
	GenerateTextReduced(ctx context.Context, modelName, apiKey, prompt string) (string, error)
}

// AIGateway routes completion and image requests to one of three providers by
// model-name prefix, applying the shared retry, timeout and fallback policy.
// API keys are read from the process environment at call time, never stored.
type AIGateway struct {
	openAI    providers.TextGenerator
	anthropic providers.TextGenerator
	gemini    providers.TextGenerator

	openAIImages providers.ImageGenerator
	geminiImages providers.ImageGenerator

	retryCfg retry.Config
	keyFor   func(envVar string) string
}

// NewAIGateway creates a gateway over the three provider clients.
func NewAIGateway(openAI providers.TextGenerator, anthropic providers.TextGenerator, gemini providers.TextGenerator, openAIImages providers.ImageGenerator, geminiImages providers.ImageGenerator) *AIGateway {
	return &AIGateway{
		openAI:       openAI,
		anthropic:    anthropic,
		gemini:       gemini,
		openAIImages: openAIImages,
		geminiImages: geminiImages,
		retryCfg:     retry.DefaultConfig(),
		keyFor:       os.Getenv,
	}
}

// WithRetryConfig overrides the retry policy (used for tests and for the
// no-retry web-research path).
func (g *AIGateway) WithRetryConfig(cfg retry.Config) *AIGateway {
	clone := *g
	clone.retryCfg = cfg
	return &clone
}

// WithKeyLookup overrides the environment lookup (used for tests).
func (g *AIGateway) WithKeyLookup(fn func(string) string) *AIGateway {
	clone := *g
	clone.keyFor = fn
	return &clone
}

// GenerateText produces a completion from the provider selected by the model
// name prefix: gpt* → OpenAI, claude* → Anthropic, gemini* → Google.
func (g *AIGateway) GenerateText(ctx context.Context, modelName, prompt string) (string, error) {
	if modelName == DummyModel {
		return dummyCompletion, nil
	}

	client, envVar, provider, err := g.route(modelName)
	if err != nil {
		return "", err
	}
	apiKey := g.keyFor(envVar)
	if apiKey == "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s is not configured", envVar))
	}

	text, err := g.generateWithRetry(ctx, client, modelName, apiKey, prompt)
	if err == nil {
		return text, nil
	}

	// A Claude call that exhausted retries on connection-class errors is
	// re-issued once against the fallback Gemini model when a key exists.
	if provider == "anthropic" && connectionClass(err) {
		if googleKey := g.keyFor("GOOGLE_API_KEY"); googleKey != "" && g.gemini != nil {
			log.Warn().Str("model", modelName).Err(err).
				Str("fallback_model", fallbackGeminiModel).
				Msg("anthropic exhausted, re-issuing against gemini")
			text, fbErr := g.generateWithRetry(ctx, g.gemini, fallbackGeminiModel, googleKey, prompt)
			if fbErr == nil {
				return text, nil
			}
			return "", apperrors.NewUpstreamError(
				fmt.Sprintf("anthropic unavailable and gemini fallback failed for %s", modelName), fbErr)
		}
	}

	return "", apperrors.NewUpstreamError(fmt.Sprintf("text generation failed for %s", modelName), err)
}

// GenerateTextOnce issues exactly one attempt with the given timeout. Used by
// best-effort enrichment, which never retries.
func (g *AIGateway) GenerateTextOnce(ctx context.Context, modelName, prompt string, timeout time.Duration) (string, error) {
	if modelName == DummyModel {
		return dummyCompletion, nil
	}
	client, envVar, _, err := g.route(modelName)
	if err != nil {
		return "", err
	}
	apiKey := g.keyFor(envVar)
	if apiKey == "" {
		return "", apperrors.NewValidationError(fmt.Sprintf("%s is not configured", envVar))
	}

	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return client.GenerateText(callCtx, modelName, apiKey, prompt)
}

// GenerateImage produces a renderable image URL or data URI. It never returns
// an error: every failure maps to a placeholder URL carrying an error marker.
func (g *AIGateway) GenerateImage(ctx context.Context, modelName, subject string) string {
	switch {
	case modelName == "" || modelName == "none":
		return placeholderURL("no+image+model")
	case strings.HasPrefix(modelName, "dall-e") || strings.HasPrefix(modelName, "gpt-image"):
		apiKey := g.keyFor("OPENAI_API_KEY")
		if apiKey == "" || g.openAIImages == nil {
			return placeholderURL("openai+key+missing")
		}
		url, err := g.openAIImages.GenerateImage(ctx, modelName, apiKey, subject)
		if err != nil {
			log.Warn().Str("model", modelName).Err(err).Msg("image generation failed")
			return placeholderURL("image+generation+error")
		}
		return url
	case strings.HasPrefix(modelName, "gemini"):
		apiKey := g.keyFor("GOOGLE_API_KEY")
		if apiKey == "" || g.geminiImages == nil {
			return placeholderURL("google+key+missing")
		}
		url, err := g.geminiImages.GenerateImage(ctx, modelName, apiKey, subject)
		if err != nil {
			log.Warn().Str("model", modelName).Err(err).Msg("image generation failed")
			return placeholderURL("image+generation+error")
		}
		return url
	default:
		return placeholderURL("unsupported+model+" + url.QueryEscape(modelName))
	}
}

func (g *AIGateway) route(modelName string) (providers.TextGenerator, string, string, error) {
	switch {
	case strings.HasPrefix(modelName, "gpt") || strings.HasPrefix(modelName, "o1") ||
		strings.HasPrefix(modelName, "o3") || strings.HasPrefix(modelName, "o4"):
		return g.openAI, "OPENAI_API_KEY", "openai", nil
	case strings.HasPrefix(modelName, "claude"):
		return g.anthropic, "ANTHROPIC_API_KEY", "anthropic", nil
	case strings.HasPrefix(modelName, "gemini"):
		return g.gemini, "GOOGLE_API_KEY", "gemini", nil
	default:
		return nil, "", "", apperrors.NewValidationError("unknown model family: " + modelName)
	}
}

func (g *AIGateway) generateWithRetry(ctx context.Context, client providers.TextGenerator, modelName, apiKey, prompt string) (string, error) {
	if client == nil {
		return "", apperrors.NewInternalError("no client for model "+modelName, nil)
	}

	var text string
	attempt := 0
	err := retry.Do(ctx, g.retryCfg, func(ctx context.Context) error {
		attempt++
		gen := client
		var out string
		var callErr error
		// Re-issued Claude attempts use the reduced token budget to cut
		// 502 incidence upstream.
		if reduced, ok := client.(reducedTextGenerator); ok && attempt > 1 {
			out, callErr = reduced.GenerateTextReduced(ctx, modelName, apiKey, prompt)
		} else {
			out, callErr = gen.GenerateText(ctx, modelName, apiKey, prompt)
		}
		if callErr != nil {
			var provErr *providers.ProviderCallError
			if errors.As(callErr, &provErr) && !provErr.Retryable() {
				return retry.NewPermanent(callErr)
			}
			log.Warn().Str("model", modelName).Int("attempt", attempt).Err(callErr).
				Msg("text generation attempt failed")
			return callErr
		}
		text = out
		return nil
	})
	return text, err
}

// connectionClass reports whether err (possibly wrapped by the retry layer)
// originated from a request that never completed.
func connectionClass(err error) bool {
	var provErr *providers.ProviderCallError
	if errors.As(err, &provErr) {
		return provErr.Connection()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func placeholderURL(marker string) string {
	return placeholderImageBase + marker
}
