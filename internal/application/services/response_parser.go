package services

import (
	"regexp"
	"strings"

	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// sectionSynonyms maps each output field to the heading variants providers
// actually emit. First match wins.
var sectionSynonyms = map[string][]string{
	"personality": {"性格", "価値観・性格", "人物像", "パーソナリティ"},
	"reason":      {"来院理由", "受診理由", "来院のきっかけ", "受診動機"},
	"behavior":    {"行動パターン", "行動特性", "日常の行動", "情報収集行動"},
	"reviews":     {"口コミの傾向", "口コミ傾向", "レビュー傾向", "口コミ"},
	"values":      {"価値観", "人生観", "大切にしていること"},
	"demands":     {"医療機関への要望", "要望", "医療機関に求めること", "期待すること"},
}

var (
	// numberedHeading matches "1. **見出し**: 本文" and "1. **見出し**".
	numberedHeading = regexp.MustCompile(`^\s*(\d+)[.．]\s*\*\*(.+?)\*\*\s*[:：]?\s*(.*)$`)
	// boldNumberedHeading matches "**1. 見出し**: 本文".
	boldNumberedHeading = regexp.MustCompile(`^\s*\*\*\s*(\d+)[.．]\s*(.+?)\s*\*\*\s*[:：]?\s*(.*)$`)
	// boldHeading matches a heading-only "**見出し**" line.
	boldHeading = regexp.MustCompile(`^\s*\*\*(.+?)\*\*\s*[:：]?\s*(.*)$`)

	// charBudgetArtifact matches "(200文字程度)" markers the model echoes
	// against instructions, in either paren width.
	charBudgetArtifact = regexp.MustCompile(`[（(]\d+文字程度[）)]`)

	recommendationStart = regexp.MustCompile(`^\s*(\d+)[.．]\s*\*\*(.+?)\*\*\s*$`)
	bulletLine          = regexp.MustCompile(`^\s*[-・]\s*(.+)$`)
)

// swotHeadings maps heading text to the SWOT section it opens.
var swotHeadings = map[string]string{
	"強み": "strengths", "Strengths": "strengths",
	"弱み": "weaknesses", "Weaknesses": "weaknesses",
	"機会": "opportunities", "Opportunities": "opportunities",
	"脅威": "threats", "Threats": "threats",
}

// ResponseParser converts loosely structured AI output into typed results.
type ResponseParser struct{}

// NewResponseParser creates a response parser.
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// ParsePersona extracts the six persona fields. It tolerates three heading
// styles and heading synonyms, accepts body text on the heading line or on
// following lines, and falls back to a keyword scan when structured parsing
// finds nothing. It never fails; unmatched sections stay empty.
func (p *ResponseParser) ParsePersona(response string) entities.PersonaDetails {
	sections := make(map[string][]string)
	current := ""

	for _, line := range strings.Split(response, "\n") {
		if id, inline, ok := matchHeading(line); ok {
			current = id
			if inline != "" {
				sections[id] = append(sections[id], inline)
			}
			continue
		}
		if current != "" {
			trimmed := strings.TrimSpace(line)
			if trimmed != "" {
				sections[current] = append(sections[current], trimmed)
			}
		}
	}

	details := entities.PersonaDetails{
		Personality: cleanSection(sections["personality"]),
		Reason:      cleanSection(sections["reason"]),
		Behavior:    cleanSection(sections["behavior"]),
		Reviews:     cleanSection(sections["reviews"]),
		Values:      cleanSection(sections["values"]),
		Demands:     cleanSection(sections["demands"]),
	}
	if details.Empty() {
		return p.keywordScan(response)
	}
	return details
}

// keywordScan is the last-resort pass: for each field, the first line
// matching "<synonym>: content" wins.
func (p *ResponseParser) keywordScan(response string) entities.PersonaDetails {
	find := func(id string) string {
		for _, synonym := range sectionSynonyms[id] {
			re := regexp.MustCompile(regexp.QuoteMeta(synonym) + `[:：]\s*(.+)`)
			if m := re.FindStringSubmatch(response); m != nil {
				return cleanText(m[1])
			}
		}
		return ""
	}
	return entities.PersonaDetails{
		Personality: find("personality"),
		Reason:      find("reason"),
		Behavior:    find("behavior"),
		Reviews:     find("reviews"),
		Values:      find("values"),
		Demands:     find("demands"),
	}
}

// ParseSWOT extracts the four SWOT sections and the numbered recommendation
// blocks below the 戦略的提案 divider. Missing priorities default to medium.
func (p *ResponseParser) ParseSWOT(response string) (entities.SWOTResult, []entities.Recommendation) {
	var swot entities.SWOTResult
	var recs []entities.Recommendation

	section := ""
	inRecommendations := false
	var currentRec *entities.Recommendation

	flush := func() {
		if currentRec != nil {
			if currentRec.Priority == "" {
				currentRec.Priority = entities.PriorityMedium
			}
			recs = append(recs, *currentRec)
			currentRec = nil
		}
	}

	for _, line := range strings.Split(response, "\n") {
		if m := boldHeading.FindStringSubmatch(line); m != nil && !inRecommendations {
			heading := strings.TrimSpace(m[1])
			if strings.Contains(heading, "戦略的提案") || strings.Contains(heading, "Recommendations") {
				inRecommendations = true
				section = ""
				continue
			}
			if id, ok := swotHeadings[heading]; ok {
				section = id
				continue
			}
		}

		if inRecommendations {
			if m := recommendationStart.FindStringSubmatch(line); m != nil {
				flush()
				currentRec = &entities.Recommendation{Title: cleanText(m[2])}
				continue
			}
			if currentRec == nil {
				continue
			}
			if m := bulletLine.FindStringSubmatch(line); m != nil {
				fillRecommendationField(currentRec, cleanText(m[1]))
			}
			continue
		}

		if section == "" {
			continue
		}
		if m := bulletLine.FindStringSubmatch(line); m != nil {
			item := cleanText(m[1])
			if item == "" {
				continue
			}
			switch section {
			case "strengths":
				swot.Strengths = append(swot.Strengths, item)
			case "weaknesses":
				swot.Weaknesses = append(swot.Weaknesses, item)
			case "opportunities":
				swot.Opportunities = append(swot.Opportunities, item)
			case "threats":
				swot.Threats = append(swot.Threats, item)
			}
		}
	}
	flush()

	if len(recs) > 3 {
		recs = recs[:3]
	}
	return swot, recs
}

func fillRecommendationField(rec *entities.Recommendation, body string) {
	lower := strings.ToLower(body)
	switch {
	case strings.HasPrefix(body, "実施内容"):
		rec.Description = trimFieldLabel(body)
	case strings.HasPrefix(body, "優先度") || strings.HasPrefix(lower, "priority"):
		rec.Priority = parsePriority(trimFieldLabel(body))
	case strings.HasPrefix(body, "KPI") || strings.HasPrefix(lower, "kpi"):
		rec.KPI = trimFieldLabel(body)
	case strings.HasPrefix(body, "想定ROI") || strings.HasPrefix(body, "期待効果") || strings.HasPrefix(lower, "roi"):
		rec.ExpectedEffect = trimFieldLabel(body)
	default:
		if rec.Description == "" {
			rec.Description = body
		} else {
			rec.Description += " " + body
		}
	}
}

func trimFieldLabel(body string) string {
	if idx := strings.IndexAny(body, ":："); idx >= 0 {
		return strings.TrimSpace(body[idx+len(":"):])
	}
	return strings.TrimSpace(body)
}

func parsePriority(text string) entities.Priority {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(text, "高") || strings.Contains(lower, "high"):
		return entities.PriorityHigh
	case strings.Contains(text, "低") || strings.Contains(lower, "low"):
		return entities.PriorityLow
	default:
		return entities.PriorityMedium
	}
}

// matchHeading classifies a line against the three accepted heading styles and
// returns the output-field ID it names plus any inline body text.
func matchHeading(line string) (id, inline string, ok bool) {
	for _, re := range []*regexp.Regexp{numberedHeading, boldNumberedHeading} {
		if m := re.FindStringSubmatch(line); m != nil {
			if field := synonymField(m[2]); field != "" {
				return field, cleanText(m[3]), true
			}
		}
	}
	if m := boldHeading.FindStringSubmatch(line); m != nil {
		if field := synonymField(m[1]); field != "" {
			return field, cleanText(m[2]), true
		}
	}
	return "", "", false
}

func synonymField(heading string) string {
	heading = strings.TrimSpace(heading)
	// Fixed field order keeps ambiguous headings (価値観・性格) deterministic.
	for _, item := range personaOutputItems {
		for _, synonym := range sectionSynonyms[item.ID] {
			if strings.Contains(heading, synonym) {
				return item.ID
			}
		}
	}
	return ""
}

func cleanSection(lines []string) string {
	return cleanText(strings.Join(lines, "\n"))
}

func cleanText(text string) string {
	text = charBudgetArtifact.ReplaceAllString(text, "")
	text = strings.Trim(text, "*")
	// Removing an echoed budget marker can leave the heading's colon behind.
	text = strings.TrimLeft(strings.TrimSpace(text), ":：")
	return strings.TrimSpace(text)
}
