package providers

import (
	"context"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// GeoProvider geocodes addresses and lists nearby medical places.
type GeoProvider interface {
	// Geocode converts an address to coordinates.
	Geocode(ctx context.Context, address string) (entities.Coordinates, error)

	// NearbyClinics unions one Places search per department keyword,
	// deduplicates by place_id and retains the first limit results, each
	// enriched with a single details request.
	NearbyClinics(ctx context.Context, center entities.Coordinates, radiusM int, departments []string, limit int) ([]entities.Competitor, error)
}
