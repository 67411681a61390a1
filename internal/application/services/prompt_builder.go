package services

import (
	"fmt"
	"strings"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// outputItem pairs a persona output-field ID with its Japanese heading.
type outputItem struct {
	ID      string
	Heading string
}

// personaOutputItems lists the six generated fields in output order.
var personaOutputItems = []outputItem{
	{"personality", "性格"},
	{"reason", "来院理由"},
	{"behavior", "行動パターン"},
	{"reviews", "口コミの傾向"},
	{"values", "価値観"},
	{"demands", "医療機関への要望"},
}

// scalarAttr labels one persona input attribute for the prompt.
type scalarAttr struct {
	Label string
	Value string
}

// PromptBuilder assembles persona and SWOT prompts. It is a pure function of
// its inputs; no external calls, no randomness.
type PromptBuilder struct{}

// NewPromptBuilder creates a prompt builder.
func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildPersonaPrompt assembles the persona generation prompt: preamble, input
// attributes, extras, the six numbered output items with their character
// budgets, the output-format contract, and the reference keywords section.
func (b *PromptBuilder) BuildPersonaPrompt(req entities.PersonaRequest, limits map[string]string, keywords []entities.Keyword) string {
	var sb strings.Builder

	sb.WriteString("あなたは医療マーケティングの専門家です。以下の入力情報に基づき、")
	sb.WriteString("実在しそうな患者ペルソナを自然な日本語の文章で作成してください。\n\n")

	sb.WriteString("【入力情報】\n")
	for _, attr := range personaScalars(req) {
		if attr.Value == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s\n", attr.Label, attr.Value))
	}
	if desc, ok := patientTypeCatalog[req.PatientType]; ok {
		sb.WriteString(fmt.Sprintf("- 患者タイプの説明: %s\n", desc.Description))
		sb.WriteString(fmt.Sprintf("  例: %s\n", desc.Example))
	}

	if len(req.FixedExtras) > 0 {
		sb.WriteString("\n【固定追加項目】\n")
		for _, key := range sortedKeys(req.FixedExtras) {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", key, req.FixedExtras[key]))
		}
	}
	if len(req.FreeExtras) > 0 {
		sb.WriteString("\n【自由追加項目】\n")
		for _, extra := range req.FreeExtras {
			sb.WriteString(fmt.Sprintf("- %s: %s\n", extra.Name, extra.Value))
		}
	}

	sb.WriteString("\n【出力項目】\n")
	for i, item := range personaOutputItems {
		budget := limits[item.ID]
		if budget == "" {
			budget = "200"
		}
		sb.WriteString(fmt.Sprintf("%d. **%s**（%s文字程度）\n", i+1, item.Heading, budget))
	}

	sb.WriteString("\n【出力形式】\n")
	sb.WriteString("各項目は「N. **見出し**: 本文」の形式で出力してください。\n")
	sb.WriteString("余計な見出しや前置きは付けず、文字数の指定を本文に書き写さないでください。\n")

	if req.ChiefComplaint != "" {
		sb.WriteString(fmt.Sprintf("\n【必須事項】\n来院理由には必ず「%s」に関する内容を含めてください。\n", req.ChiefComplaint))
	}

	if len(keywords) > 0 {
		sb.WriteString("\n【参考キーワード】\nこの診療科で実際に検索されているキーワードです。ペルソナの行動や悩みに反映してください。\n")
		for _, kw := range keywords {
			sb.WriteString(fmt.Sprintf("- %s（検索ボリューム: %d）\n", kw.Keyword, kw.SearchVolume))
		}
	}

	return sb.String()
}

// BuildImageSubject assembles the short portrait-description prompt for the
// image model from the persona's scalar attributes.
func (b *PromptBuilder) BuildImageSubject(req entities.PersonaRequest) string {
	var parts []string
	if req.Age != "" {
		parts = append(parts, req.Age+"歳くらい")
	}
	if req.Gender != "" {
		parts = append(parts, req.Gender)
	}
	if req.Occupation != "" {
		parts = append(parts, req.Occupation)
	}
	descriptor := strings.Join(parts, "の")
	if descriptor == "" {
		descriptor = "日本人の患者"
	}
	return fmt.Sprintf("日本在住の%sの自然なポートレート写真。清潔感のある背景、リアルな写真風。", descriptor)
}

// SWOTPromptInput carries every section of the competitive-analysis prompt.
// Empty sections are omitted from the output.
type SWOTPromptInput struct {
	Clinic        entities.ClinicInfo
	Competitors   []entities.Competitor
	MarketStats   entities.MarketStats
	Insights      entities.ReviewInsights
	RegionalStats *entities.RegionalStats
	MedicalStats  *entities.MedicalStats
	Additional    string
}

// BuildSWOTPrompt assembles the competitive-analysis prompt: clinic profile,
// district aggregates, competitor benchmark, medical-statistics blocks,
// patient-needs analysis, framework instructions and the strict output
// template the parser depends on.
func (b *PromptBuilder) BuildSWOTPrompt(in SWOTPromptInput) string {
	var sb strings.Builder

	sb.WriteString("あなたは医療経営コンサルタントです。以下の情報に基づき、対象クリニックのSWOT分析と戦略的提案を作成してください。\n\n")

	sb.WriteString("【対象クリニック】\n")
	sb.WriteString(fmt.Sprintf("- 名称: %s\n- 住所: %s\n", in.Clinic.Name, in.Clinic.Address))
	if len(in.Clinic.Departments) > 0 {
		sb.WriteString(fmt.Sprintf("- 診療科: %s\n", strings.Join(in.Clinic.Departments, "、")))
	}
	if in.Clinic.Features != "" {
		sb.WriteString(fmt.Sprintf("- 特徴: %s\n", in.Clinic.Features))
	}
	if in.Additional != "" {
		sb.WriteString(fmt.Sprintf("- 補足情報: %s\n", in.Additional))
	}

	sb.WriteString("\n【診療圏の競合状況】\n")
	sb.WriteString(fmt.Sprintf("- 競合医療機関数: %d件\n", len(in.Competitors)))
	sb.WriteString(fmt.Sprintf("- 平均評価: %.1f\n", in.MarketStats.AverageRating))
	sb.WriteString(fmt.Sprintf("- 評価4以上: %d件 / 3〜4: %d件 / 3未満: %d件\n",
		in.MarketStats.RatingHigh, in.MarketStats.RatingMid, in.MarketStats.RatingLow))
	if len(in.MarketStats.DepartmentDistribution) > 0 {
		sb.WriteString("- 診療カテゴリ分布:\n")
		for _, key := range sortedIntKeys(in.MarketStats.DepartmentDistribution) {
			sb.WriteString(fmt.Sprintf("  - %s: %d件\n", key, in.MarketStats.DepartmentDistribution[key]))
		}
	}

	if len(in.Competitors) > 0 {
		sb.WriteString("\n【主要競合（上位5件）】\n")
		for i, comp := range in.Competitors {
			if i >= 5 {
				break
			}
			sb.WriteString(fmt.Sprintf("%d. %s（評価%.1f・口コミ%d件・距離%.0fm）\n",
				i+1, comp.Name, comp.Rating, comp.ReviewCount, comp.DistanceM))
			if comp.Enrichment != nil {
				if comp.Enrichment.Website != "" {
					sb.WriteString(fmt.Sprintf("   - Web: %s\n", comp.Enrichment.Website))
				}
				if comp.Enrichment.AISummary != "" {
					sb.WriteString(fmt.Sprintf("   - 概要: %s\n", comp.Enrichment.AISummary))
				}
				for platform, presence := range comp.Enrichment.SNSPresence {
					sb.WriteString(fmt.Sprintf("   - SNS(%s): %s\n", platform, presence))
				}
			}
		}
	}

	if in.RegionalStats != nil {
		rs := in.RegionalStats
		sb.WriteString("\n【地域統計】\n")
		sb.WriteString(fmt.Sprintf("- 地域: %s（%s）\n- 総人口: %d人\n- 高齢化率: %.1f%%\n- 地域区分: %s\n",
			rs.AreaName, rs.AreaCode, rs.TotalPopulation, rs.AgingRate, areaTypeLabel(rs.AreaType)))
		sb.WriteString(fmt.Sprintf("- 推定1日外来患者数: %d人\n", rs.EstimatedDailyOutpatients))
	}

	if in.MedicalStats != nil {
		writeMedicalBlocks(&sb, in.MedicalStats)
	}

	if len(in.Insights.TopPositive) > 0 || len(in.Insights.TopNegative) > 0 {
		sb.WriteString("\n【患者ニーズ分析（口コミより）】\n")
		if len(in.Insights.TopPositive) > 0 {
			sb.WriteString("- 評価されている点: ")
			sb.WriteString(joinKeywordCounts(in.Insights.TopPositive))
			sb.WriteString("\n")
		}
		if len(in.Insights.TopNegative) > 0 {
			sb.WriteString("- 不満が多い点: ")
			sb.WriteString(joinKeywordCounts(in.Insights.TopNegative))
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\n【分析の観点】\n")
	sb.WriteString("アクセス性、医療の質、患者体験、地域連携、運営効率、需給バランス、疾患別需要の観点を踏まえてください。\n")

	sb.WriteString("\n【出力形式】\n")
	sb.WriteString("以下のテンプレートに厳密に従って出力してください。\n\n")
	sb.WriteString("**強み**\n- （箇条書き）\n\n**弱み**\n- （箇条書き）\n\n**機会**\n- （箇条書き）\n\n**脅威**\n- （箇条書き）\n\n")
	sb.WriteString("**戦略的提案**\n")
	sb.WriteString("1. **提案タイトル**\n   - 実施内容: …\n   - 優先度: 高/中/低\n   - KPI: …\n   - 想定ROI: …\n")
	sb.WriteString("提案は3件まで。上記以外の見出しは出力しないでください。\n")

	return sb.String()
}

func writeMedicalBlocks(sb *strings.Builder, ms *entities.MedicalStats) {
	if len(ms.FacilitiesBySpecialty) > 0 {
		sb.WriteString("\n【医療施設統計】\n")
		for _, key := range sortedIntKeys(ms.FacilitiesBySpecialty) {
			sb.WriteString(fmt.Sprintf("- %s: %d施設\n", key, ms.FacilitiesBySpecialty[key]))
		}
	}
	if len(ms.PatientRates) > 0 {
		sb.WriteString("\n【受療率統計】\n")
		for _, key := range sortedFloatKeys(ms.PatientRates) {
			sb.WriteString(fmt.Sprintf("- %s: %.1f\n", key, ms.PatientRates[key]))
		}
	}
	if len(ms.StaffDensity) > 0 {
		sb.WriteString("\n【医療従事者密度】\n")
		for _, key := range sortedFloatKeys(ms.StaffDensity) {
			sb.WriteString(fmt.Sprintf("- %s: %.1f\n", key, ms.StaffDensity[key]))
		}
	}
	if len(ms.HouseholdExpenditure) > 0 {
		sb.WriteString("\n【家計医療支出】\n")
		for _, key := range sortedFloatKeys(ms.HouseholdExpenditure) {
			sb.WriteString(fmt.Sprintf("- %s: %.0f円\n", key, ms.HouseholdExpenditure[key]))
		}
	}
	if len(ms.NursingFacilities) > 0 {
		sb.WriteString("\n【介護施設統計】\n")
		for _, key := range sortedIntKeys(ms.NursingFacilities) {
			sb.WriteString(fmt.Sprintf("- %s: %d施設\n", key, ms.NursingFacilities[key]))
		}
	}
}

func personaScalars(req entities.PersonaRequest) []scalarAttr {
	return []scalarAttr{
		{"診療科", req.Department},
		{"利用目的", req.Purpose},
		{"氏名", req.Name},
		{"性別", req.Gender},
		{"年齢", req.Age},
		{"都道府県", req.Prefecture},
		{"市区町村", req.Municipality},
		{"職業", req.Occupation},
		{"年収", req.IncomeBracket},
		{"趣味", req.Hobby},
		{"ライフイベント", req.LifeEvents},
		{"患者タイプ", req.PatientType},
		{"主訴", req.ChiefComplaint},
	}
}

func areaTypeLabel(t entities.AreaType) string {
	switch t {
	case entities.AreaUrbanHighDensity:
		return "都市部（高密度）"
	case entities.AreaUrbanMediumDensity:
		return "都市部（中密度）"
	case entities.AreaSuburban:
		return "郊外"
	case entities.AreaRural:
		return "地方"
	default:
		return string(t)
	}
}

func joinKeywordCounts(counts []entities.KeywordCount) string {
	parts := make([]string, 0, len(counts))
	for _, kc := range counts {
		parts = append(parts, fmt.Sprintf("%s（%d件）", kc.Keyword, kc.Count))
	}
	return strings.Join(parts, "、")
}
