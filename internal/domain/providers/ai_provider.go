package providers

import "context"

// TextGenerator produces a completion for a prompt against a concrete model.
type TextGenerator interface {
	GenerateText(ctx context.Context, modelName, apiKey, prompt string) (string, error)
}

// ImageGenerator produces an image for a subject description. Implementations
// must always return a renderable URL or data URI; failures map to a
// placeholder URL rather than an error reaching the persona endpoint.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, modelName, apiKey, subject string) (string, error)
}
