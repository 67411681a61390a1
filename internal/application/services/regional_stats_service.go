package services

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/estat"
)

// defaultAgeDistribution is the national split used when a live breakdown is
// unavailable.
var defaultAgeDistribution = entities.AgeDistribution{
	Young:   11.6,
	Working: 59.4,
	Elderly: 29.0,
}

const (
	// statsCodePopulationCensus is the 国勢調査 statistics code.
	statsCodePopulationCensus = "00200521"
)

// RegionalStatsService resolves a Japanese address into a RegionalStats
// record. Source order: live e-Stat queries, then the bundled area master,
// then hard-coded defaults; each step degrades without failing the request.
type RegionalStatsService struct {
	estatClient *estat.Client
	demand      *MedicalDemandCalculator
}

// NewRegionalStatsService creates a regional stats service. The e-Stat client
// may be disabled (no key); resolution then runs entirely off the master.
func NewRegionalStatsService(estatClient *estat.Client) *RegionalStatsService {
	return &RegionalStatsService{
		estatClient: estatClient,
		demand:      NewMedicalDemandCalculator(),
	}
}

// Get resolves address to demographics and derived medical-demand figures.
func (s *RegionalStatsService) Get(ctx context.Context, address string) (*entities.RegionalStats, error) {
	area, err := ResolveArea(address)
	if err != nil {
		return nil, err
	}

	stats := &entities.RegionalStats{
		AreaCode:        area.AreaCode,
		AreaName:        area.Prefecture + area.City,
		TotalPopulation: area.Population,
		AgeDistribution: defaultAgeDistribution,
		AgingRate:       area.AgingRate,
		DataSource:      "bundled_master",
	}
	if area.Fallback {
		stats.DataSource = "fallback_default"
	}

	if s.estatClient != nil && s.estatClient.Enabled() {
		if pop, ok := s.livePopulation(ctx, area.City); ok {
			stats.TotalPopulation = pop
			stats.DataSource = "estat"
		}
	}

	if stats.AgingRate > 0 {
		stats.AgeDistribution.Elderly = stats.AgingRate
		remaining := 100 - stats.AgingRate
		// Keep the young/working proportions of the national split.
		base := defaultAgeDistribution.Young + defaultAgeDistribution.Working
		stats.AgeDistribution.Young = remaining * defaultAgeDistribution.Young / base
		stats.AgeDistribution.Working = remaining * defaultAgeDistribution.Working / base
	}

	stats.AreaType = classifyArea(area.City, stats.TotalPopulation)
	stats.EstimatedDailyOutpatients = s.demand.EstimateDailyOutpatients(
		stats.TotalPopulation, stats.AgeDistribution, stats.AreaType)
	stats.DepartmentBreakdown = s.demand.DepartmentBreakdown()
	stats.DiseasePrevalence = s.demand.DiseasePrevalence()

	return stats, nil
}

// livePopulation walks the e-Stat discipline: statsCode-first table search,
// metadata lookup for the municipality's area code, then a filtered data
// fetch. Any failure degrades to the bundled figures.
func (s *RegionalStatsService) livePopulation(ctx context.Context, city string) (int, bool) {
	tables, err := s.estatClient.ListTables(ctx, statsCodePopulationCensus, "人口 "+city)
	if err != nil || len(tables) == 0 {
		log.Debug().Err(err).Str("city", city).Msg("estat table search unavailable")
		return 0, false
	}

	tableID := tables[0].ID
	areaCode, err := s.estatClient.AreaCodeFor(ctx, tableID, city)
	if err != nil {
		log.Debug().Err(err).Str("table", tableID).Msg("estat area code lookup failed")
		return 0, false
	}

	values, err := s.estatClient.StatsData(ctx, tableID, areaCode, estat.DemographicsTTL)
	if err != nil {
		log.Debug().Err(err).Str("table", tableID).Msg("estat data fetch failed")
		return 0, false
	}

	for _, value := range values {
		if pop, ok := parsePopulationValue(value.Value, value.Unit); ok {
			return pop, true
		}
	}
	return 0, false
}

var populationDigits = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)

// parsePopulationValue normalizes an e-Stat population figure: commas and 人
// are stripped, 千/万 units from the value or the @unit attribute multiply,
// and implausible results outside (100, 5×10^7) are rejected.
func parsePopulationValue(raw, unit string) (int, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || cleaned == "-" || cleaned == "***" {
		return 0, false
	}

	multiplier := 1.0
	combined := cleaned + unit
	if strings.Contains(combined, "万") {
		multiplier = 10000
	} else if strings.Contains(combined, "千") {
		multiplier = 1000
	}

	match := populationDigits.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	match = strings.ReplaceAll(match, ",", "")
	parsed, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}

	population := parsed * multiplier
	if population <= 100 || population >= 5e7 {
		return 0, false
	}
	return int(population), true
}
