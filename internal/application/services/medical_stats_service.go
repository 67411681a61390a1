package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/estat"
)

// medicalStatsQuery names one e-Stat block and the search used to find its
// source table.
type medicalStatsQuery struct {
	block      string
	statsCode  string
	searchWord string
}

// medicalStatsQueries covers the five blocks folded into the SWOT prompt.
// Stats codes: 医療施設調査, 患者調査, 医師・歯科医師・薬剤師統計,
// 家計調査, 介護サービス施設・事業所調査.
var medicalStatsQueries = []medicalStatsQuery{
	{"facilities", "00450021", "医療施設 市区町村"},
	{"patient_rates", "00450022", "受療率"},
	{"staff_density", "00450026", "医師数 人口10万対"},
	{"household_expenditure", "00200561", "保健医療 支出"},
	{"nursing", "00450042", "介護保険施設"},
}

// MedicalStatsService fetches the e-Stat medical-statistics blocks for the
// municipality an address resolves to. Every block is best-effort: a failed
// fetch leaves that block nil and the report proceeds.
type MedicalStatsService struct {
	estatClient *estat.Client
}

// NewMedicalStatsService creates a medical stats service.
func NewMedicalStatsService(estatClient *estat.Client) *MedicalStatsService {
	return &MedicalStatsService{estatClient: estatClient}
}

// Get fetches whatever medical-statistics blocks are reachable for the
// address. With no e-Stat key it returns an empty record tagged unavailable.
func (s *MedicalStatsService) Get(ctx context.Context, address string) (*entities.MedicalStats, error) {
	area, err := ResolveArea(address)
	if err != nil {
		return nil, err
	}

	stats := &entities.MedicalStats{DataSource: "unavailable"}
	if s.estatClient == nil || !s.estatClient.Enabled() {
		return stats, nil
	}

	for _, query := range medicalStatsQueries {
		values, ok := s.fetchBlock(ctx, query, area.City)
		if !ok {
			continue
		}
		stats.DataSource = "estat"
		switch query.block {
		case "facilities":
			stats.FacilitiesBySpecialty = countsByCategory(values)
		case "patient_rates":
			stats.PatientRates = ratesByCategory(values)
		case "staff_density":
			stats.StaffDensity = ratesByCategory(values)
		case "household_expenditure":
			stats.HouseholdExpenditure = ratesByCategory(values)
		case "nursing":
			stats.NursingFacilities = countsByCategory(values)
		}
	}
	return stats, nil
}

func (s *MedicalStatsService) fetchBlock(ctx context.Context, query medicalStatsQuery, city string) ([]estat.DataValue, bool) {
	tables, err := s.estatClient.ListTables(ctx, query.statsCode, query.searchWord)
	if err != nil || len(tables) == 0 {
		log.Debug().Err(err).Str("block", query.block).Msg("medical stats table unavailable")
		return nil, false
	}

	tableID := tables[0].ID
	areaCode, err := s.estatClient.AreaCodeFor(ctx, tableID, city)
	if err != nil {
		log.Debug().Err(err).Str("block", query.block).Str("table", tableID).
			Msg("medical stats area lookup failed")
		return nil, false
	}

	values, err := s.estatClient.StatsData(ctx, tableID, areaCode, estat.MedicalStatsTTL)
	if err != nil || len(values) == 0 {
		log.Debug().Err(err).Str("block", query.block).Msg("medical stats fetch failed")
		return nil, false
	}
	return values, true
}

func countsByCategory(values []estat.DataValue) map[string]int {
	out := make(map[string]int)
	for _, value := range values {
		if n, ok := parseCountValue(value.Value); ok {
			out[categoryKey(value)] = n
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// parseCountValue reads a facility or institution count. Unlike population
// figures, counts as small as a handful are legitimate, so no plausibility
// bounds apply.
func parseCountValue(raw string) (int, bool) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || cleaned == "-" || cleaned == "***" {
		return 0, false
	}
	match := populationDigits.FindString(cleaned)
	if match == "" {
		return 0, false
	}
	match = strings.ReplaceAll(match, ",", "")
	parsed, err := strconv.ParseFloat(match, 64)
	if err != nil || parsed < 0 {
		return 0, false
	}
	return int(parsed), true
}

func ratesByCategory(values []estat.DataValue) map[string]float64 {
	out := make(map[string]float64)
	for _, value := range values {
		match := populationDigits.FindString(value.Value)
		if match == "" {
			continue
		}
		match = strings.ReplaceAll(match, ",", "")
		if f, err := strconv.ParseFloat(match, 64); err == nil {
			out[categoryKey(value)] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func categoryKey(value estat.DataValue) string {
	if value.Cat != "" {
		return value.Cat
	}
	return value.Time
}
