package providers

import (
	"context"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// ResearchProvider performs best-effort web enrichment for one clinic.
type ResearchProvider interface {
	// Research never fails hard: without a configured key it returns an
	// empty enrichment carrying a warning tag.
	Research(ctx context.Context, name, address string) (*entities.WebEnrichment, error)

	// Enabled reports whether a search API key is configured.
	Enabled() bool
}
