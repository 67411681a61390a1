package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	"github.com/medleads/clinic-insight/internal/domain/providers"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

const (
	minSearchRadiusM = 100
	maxSearchRadiusM = 50000
	minAddressLen    = 5
	maxAddressLen    = 200

	competitorLimit  = 20
	enrichTopN       = 3
	reviewInsightTop = 5
)

// CompetitiveService orchestrates one competitive-analysis request: geocode,
// nearby search, parallel statistics and web enrichment, SWOT generation and
// recommendation extraction.
type CompetitiveService struct {
	geo      providers.GeoProvider
	regional providers.RegionalStatsProvider
	medical  providers.MedicalStatsProvider
	research providers.ResearchProvider
	gateway  textGateway
	settings settingsReader
	prompts  *PromptBuilder
	parser   *ResponseParser
}

// NewCompetitiveService creates a competitive analysis service.
func NewCompetitiveService(geo providers.GeoProvider, regional providers.RegionalStatsProvider, medical providers.MedicalStatsProvider, research providers.ResearchProvider, gateway textGateway, settings settingsReader) *CompetitiveService {
	return &CompetitiveService{
		geo:      geo,
		regional: regional,
		medical:  medical,
		research: research,
		gateway:  gateway,
		settings: settings,
		prompts:  NewPromptBuilder(),
		parser:   NewResponseParser(),
	}
}

// Analyze runs the full pipeline. Geocode failure is fatal; every enrichment
// failure is absorbed into a warning and the report proceeds.
func (s *CompetitiveService) Analyze(ctx context.Context, clinic entities.ClinicInfo, searchRadiusM int, additionalInfo string) (*entities.CompetitiveReport, error) {
	if err := validateAnalysisInput(clinic, searchRadiusM); err != nil {
		return nil, err
	}

	center, err := s.geo.Geocode(ctx, clinic.Address)
	if err != nil {
		return nil, err
	}

	competitors, err := s.geo.NearbyClinics(ctx, center, searchRadiusM, clinic.Departments, competitorLimit)
	if err != nil {
		return nil, apperrors.NewUpstreamError("nearby clinic search failed", err)
	}

	report := &entities.CompetitiveReport{
		ID:            uuid.NewString(),
		Center:        center,
		SearchRadiusM: searchRadiusM,
		Competitors:   competitors,
		AnalysisDate:  time.Now().Format("2006-01-02"),
	}

	regionalStats, medicalStats := s.fetchStats(ctx, clinic.Address, report)
	report.RegionalStats = regionalStats

	s.enrichTopCompetitors(ctx, report)

	report.MarketStats = computeMarketStats(competitors)
	report.ReviewInsights = computeReviewInsights(competitors)

	swotPrompt := s.prompts.BuildSWOTPrompt(SWOTPromptInput{
		Clinic:        clinic,
		Competitors:   report.Competitors,
		MarketStats:   report.MarketStats,
		Insights:      report.ReviewInsights,
		RegionalStats: regionalStats,
		MedicalStats:  medicalStats,
		Additional:    additionalInfo,
	})

	model := s.settings.Get().Models.TextAPIModel
	response, genErr := s.gateway.GenerateText(ctx, model, swotPrompt)
	if genErr != nil {
		degraded := apperrors.NewDegradedError("AI analysis unavailable; rule-based analysis applied", genErr)
		log.Error().Err(degraded).Str("model", model).Msg("swot generation failed, using rule-based analysis")
		report.Warnings = append(report.Warnings, degraded.Message)
		report.SWOT = ruleBasedSWOT(clinic, report.MarketStats, regionalStats)
	} else {
		swot, recs := s.parser.ParseSWOT(response)
		if swot.Empty() {
			report.Warnings = append(report.Warnings, "AI analysis unparseable; rule-based analysis applied")
			swot = ruleBasedSWOT(clinic, report.MarketStats, regionalStats)
		}
		report.SWOT = swot
		report.Recommendations = recs
	}

	if len(report.Recommendations) == 0 {
		report.Recommendations = ruleBasedRecommendations(report.SWOT, report.MarketStats)
	}

	return report, nil
}

func validateAnalysisInput(clinic entities.ClinicInfo, searchRadiusM int) error {
	if searchRadiusM < minSearchRadiusM || searchRadiusM > maxSearchRadiusM {
		return apperrors.NewValidationError(
			fmt.Sprintf("search_radius must be between %d and %d meters", minSearchRadiusM, maxSearchRadiusM))
	}
	addr := strings.TrimSpace(clinic.Address)
	if len([]rune(addr)) < minAddressLen || len([]rune(addr)) > maxAddressLen {
		return apperrors.NewValidationError(
			fmt.Sprintf("address length must be between %d and %d characters", minAddressLen, maxAddressLen))
	}
	return nil
}

// fetchStats runs the regional and medical statistics lookups in parallel.
// Either failure is absorbed into a warning.
func (s *CompetitiveService) fetchStats(ctx context.Context, address string, report *entities.CompetitiveReport) (*entities.RegionalStats, *entities.MedicalStats) {
	var (
		wg            sync.WaitGroup
		regionalStats *entities.RegionalStats
		medicalStats  *entities.MedicalStats
		regionalErr   error
		medicalErr    error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		regionalStats, regionalErr = s.regional.Get(ctx, address)
	}()
	go func() {
		defer wg.Done()
		medicalStats, medicalErr = s.medical.Get(ctx, address)
	}()
	wg.Wait()

	if regionalErr != nil {
		degraded := apperrors.NewDegradedError("regional statistics unavailable", regionalErr)
		log.Warn().Err(degraded).Msg("regional stats unavailable")
		report.Warnings = append(report.Warnings, degraded.Message)
		regionalStats = nil
	}
	if medicalErr != nil {
		log.Warn().Err(medicalErr).Msg("medical stats unavailable")
		medicalStats = nil
	}
	return regionalStats, medicalStats
}

// enrichTopCompetitors fans web research out across the top competitors. With
// research disabled every competitor gets a warning tag instead.
func (s *CompetitiveService) enrichTopCompetitors(ctx context.Context, report *entities.CompetitiveReport) {
	if s.research == nil || !s.research.Enabled() {
		for i := range report.Competitors {
			if report.Competitors[i].Warning == "" {
				report.Competitors[i].Warning = "web enrichment unavailable"
			}
		}
		return
	}

	n := enrichTopN
	if n > len(report.Competitors) {
		n = len(report.Competitors)
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(comp *entities.Competitor) {
			defer wg.Done()
			enrichment, err := s.research.Research(ctx, comp.Name, comp.Address)
			if err != nil {
				log.Debug().Err(err).Str("clinic", comp.Name).Msg("web research failed")
				comp.Warning = "web enrichment failed"
				return
			}
			comp.Enrichment = enrichment
		}(&report.Competitors[i])
	}
	wg.Wait()
}

func computeMarketStats(competitors []entities.Competitor) entities.MarketStats {
	stats := entities.MarketStats{DepartmentDistribution: make(map[string]int)}
	if len(competitors) == 0 {
		return stats
	}

	var ratingSum float64
	var rated int
	for _, comp := range competitors {
		if comp.Rating > 0 {
			ratingSum += comp.Rating
			rated++
			switch {
			case comp.Rating >= 4:
				stats.RatingHigh++
			case comp.Rating >= 3:
				stats.RatingMid++
			default:
				stats.RatingLow++
			}
		}
		for _, placeType := range comp.Types {
			stats.DepartmentDistribution[placeType]++
		}
	}
	if rated > 0 {
		stats.AverageRating = ratingSum / float64(rated)
	}
	return stats
}

func computeReviewInsights(competitors []entities.Competitor) entities.ReviewInsights {
	positive := make(map[string]int)
	negative := make(map[string]int)
	var highlights []entities.ClinicReviewHighlight

	n := reviewInsightTop
	if n > len(competitors) {
		n = len(competitors)
	}
	for i := 0; i < n; i++ {
		comp := competitors[i]
		var keyPoints []string
		for _, review := range comp.Reviews {
			CountKeywordHits(review.Text, positive, negative)
			if len(keyPoints) < 2 && review.Text != "" {
				keyPoints = append(keyPoints, truncateRunes(review.Text, 60))
			}
		}
		if len(keyPoints) > 0 {
			highlights = append(highlights, entities.ClinicReviewHighlight{
				Name:      comp.Name,
				KeyPoints: keyPoints,
			})
		}
	}

	return entities.ReviewInsights{
		TopPositive: topKeywordCounts(positive, 5),
		TopNegative: topKeywordCounts(negative, 5),
		Highlights:  highlights,
	}
}

func topKeywordCounts(counts map[string]int, limit int) []entities.KeywordCount {
	out := make([]entities.KeywordCount, 0, len(counts))
	for keyword, count := range counts {
		out = append(out, entities.KeywordCount{Keyword: keyword, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ruleBasedSWOT synthesizes a SWOT from market stats when AI generation is
// unavailable.
func ruleBasedSWOT(clinic entities.ClinicInfo, market entities.MarketStats, regional *entities.RegionalStats) entities.SWOTResult {
	swot := entities.SWOTResult{}

	if clinic.Features != "" {
		swot.Strengths = append(swot.Strengths, "差別化要素: "+clinic.Features)
	}
	if len(clinic.Departments) > 1 {
		swot.Strengths = append(swot.Strengths, "複数診療科による幅広い患者層への対応")
	}
	if len(swot.Strengths) == 0 {
		swot.Strengths = append(swot.Strengths, "地域密着型の診療体制")
	}

	if market.AverageRating >= 4 {
		swot.Weaknesses = append(swot.Weaknesses, fmt.Sprintf("競合の平均評価が%.1fと高く、口コミで見劣りするリスク", market.AverageRating))
		swot.Threats = append(swot.Threats, "高評価の競合が患者の第一候補になりやすい")
	} else {
		swot.Opportunities = append(swot.Opportunities, "競合の口コミ評価に改善余地があり、患者体験で差別化できる")
	}
	if market.RatingHigh+market.RatingMid+market.RatingLow >= 10 {
		swot.Threats = append(swot.Threats, "診療圏内の競合密度が高い")
	}
	if len(swot.Weaknesses) == 0 {
		swot.Weaknesses = append(swot.Weaknesses, "Web上での情報発信量が競合比で不足している可能性")
	}

	if regional != nil {
		if regional.AgingRate >= 25 {
			swot.Opportunities = append(swot.Opportunities, fmt.Sprintf("高齢化率%.1f%%の地域で慢性疾患・通院需要が見込める", regional.AgingRate))
		}
		if regional.EstimatedDailyOutpatients > 0 {
			swot.Opportunities = append(swot.Opportunities, fmt.Sprintf("推定1日外来患者数%d人の診療圏需要", regional.EstimatedDailyOutpatients))
		}
	}
	if len(swot.Opportunities) == 0 {
		swot.Opportunities = append(swot.Opportunities, "オンライン予約・情報発信強化による新規患者獲得")
	}
	if len(swot.Threats) == 0 {
		swot.Threats = append(swot.Threats, "近隣への新規開業による競争激化の可能性")
	}
	return swot
}

// ruleBasedRecommendations derives up to three proposals from the SWOT and
// market stats.
func ruleBasedRecommendations(swot entities.SWOTResult, market entities.MarketStats) []entities.Recommendation {
	var recs []entities.Recommendation

	recs = append(recs, entities.Recommendation{
		Title:          "口コミ獲得と返信体制の整備",
		Description:    "受診後の患者に口コミ投稿を依頼する導線を作り、投稿には48時間以内に返信する。",
		Priority:       entities.PriorityHigh,
		ExpectedEffect: "3ヶ月で口コミ件数1.5倍、平均評価の底上げ",
		KPI:            "月間口コミ投稿数・平均評価",
	})

	if market.AverageRating >= 4 {
		recs = append(recs, entities.Recommendation{
			Title:          "患者体験の重点改善",
			Description:    "待ち時間の可視化とWeb問診の導入で、競合の高評価に対抗できる体験を作る。",
			Priority:       entities.PriorityHigh,
			ExpectedEffect: "再診率の向上と否定的口コミの減少",
			KPI:            "平均待ち時間・再診率",
		})
	} else {
		recs = append(recs, entities.Recommendation{
			Title:          "検索導線の強化",
			Description:    "診療圏内の症状キーワードに対応したWebページを整備し、指名外検索からの流入を増やす。",
			Priority:       entities.PriorityMedium,
			ExpectedEffect: "Web経由の新規予約数の増加",
			KPI:            "検索流入数・Web予約数",
		})
	}

	if len(swot.Opportunities) > 0 {
		recs = append(recs, entities.Recommendation{
			Title:          "地域需要に合わせた診療メニュー訴求",
			Description:    "地域統計で需要が見込める層に向けた診療案内を院内外で発信する。",
			Priority:       entities.PriorityMedium,
			ExpectedEffect: "対象患者層の新規来院数の増加",
			KPI:            "対象層の初診数",
		})
	}

	if len(recs) > 3 {
		recs = recs[:3]
	}
	return recs
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "…"
}
