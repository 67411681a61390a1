package providers

import (
	"context"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// RegionalStatsProvider resolves a Japanese address to demographic and
// medical-demand statistics.
type RegionalStatsProvider interface {
	Get(ctx context.Context, address string) (*entities.RegionalStats, error)
}

// MedicalStatsProvider fetches the e-Stat medical-statistics blocks for the
// municipality an address resolves to.
type MedicalStatsProvider interface {
	Get(ctx context.Context, address string) (*entities.MedicalStats, error)
}
