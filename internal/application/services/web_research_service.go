package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	"github.com/medleads/clinic-insight/internal/infrastructure/clients/serpapi"
)

// positiveReviewKeywords and negativeReviewKeywords are the curated
// dictionaries matched against review snippets and search results.
var positiveReviewKeywords = []string{
	"丁寧", "親切", "優しい", "清潔", "きれい", "安心", "信頼",
	"説明がわかりやすい", "待ち時間が短い", "予約が取りやすい", "腕がいい",
}

var negativeReviewKeywords = []string{
	"待ち時間が長い", "混んでいる", "高い", "不親切", "態度が悪い",
	"説明不足", "予約が取れない", "対応が遅い", "古い",
}

// snsPlatforms lists the platforms probed by site-restricted search.
var snsPlatforms = map[string]string{
	"instagram": "instagram.com",
	"x":         "x.com",
	"facebook":  "facebook.com",
	"youtube":   "youtube.com",
	"line":      "line.me",
}

const (
	aiSummaryTimeout = 10 * time.Second
	maxSnippets      = 8
)

// WebResearchService enriches one clinic by name and address via SerpAPI:
// general search, SNS presence probes, news within the past year, and
// review-site snippets matched against the curated keyword dictionaries.
// Everything here is best-effort; the service never fails the analysis.
type WebResearchService struct {
	search   *serpapi.Client
	gateway  *AIGateway
	settings settingsReader
}

// NewWebResearchService creates a web research service. The admin-selected
// text model runs the JSON post-processing pass over collected snippets.
func NewWebResearchService(search *serpapi.Client, gateway *AIGateway, settings settingsReader) *WebResearchService {
	return &WebResearchService{search: search, gateway: gateway, settings: settings}
}

// Enabled reports whether a search key is configured.
func (s *WebResearchService) Enabled() bool {
	return s.search != nil && s.search.Enabled()
}

// Research runs the four sub-queries for one clinic. Without a configured key
// it returns an empty enrichment carrying a warning tag.
func (s *WebResearchService) Research(ctx context.Context, name, address string) (*entities.WebEnrichment, error) {
	if !s.Enabled() {
		return &entities.WebEnrichment{Warning: "web research disabled: no search api key"}, nil
	}

	enrichment := &entities.WebEnrichment{
		SNSPresence:  make(map[string]string),
		SNSFollowers: make(map[string]int),
		PositiveHits: make(map[string]int),
		NegativeHits: make(map[string]int),
	}

	s.generalSearch(ctx, name, address, enrichment)
	s.snsProbes(ctx, name, enrichment)
	s.newsSearch(ctx, name, enrichment)
	s.reviewSearch(ctx, name, enrichment)
	s.aiSummarize(ctx, name, enrichment)

	return enrichment, nil
}

func (s *WebResearchService) generalSearch(ctx context.Context, name, address string, out *entities.WebEnrichment) {
	result, err := s.search.Search(ctx, serpapi.SearchParams{Query: name + " " + address, Num: 10})
	if err != nil {
		log.Debug().Err(err).Str("clinic", name).Msg("general search failed")
		return
	}

	if result.KnowledgeGraph != nil && result.KnowledgeGraph.Website != "" {
		out.Website = result.KnowledgeGraph.Website
	}
	for _, hit := range result.Organic {
		if out.Website == "" && strings.Contains(hit.Link, "http") && !isAggregatorLink(hit.Link) {
			out.Website = hit.Link
		}
		if hit.Snippet != "" && len(out.Snippets) < maxSnippets {
			out.Snippets = append(out.Snippets, hit.Snippet)
		}
	}
}

func (s *WebResearchService) snsProbes(ctx context.Context, name string, out *entities.WebEnrichment) {
	for platform, site := range snsPlatforms {
		result, err := s.search.Search(ctx, serpapi.SearchParams{
			Query: serpapi.SiteQuery(site, name),
			Num:   3,
		})
		if err != nil {
			log.Debug().Err(err).Str("platform", platform).Msg("sns probe failed")
			continue
		}
		if len(result.Organic) > 0 {
			out.SNSPresence[platform] = result.Organic[0].Link
			if followers, ok := extractFollowerCount(result.Organic[0].Snippet); ok {
				out.SNSFollowers[platform] = followers
			}
		}
	}
}

func (s *WebResearchService) newsSearch(ctx context.Context, name string, out *entities.WebEnrichment) {
	result, err := s.search.Search(ctx, serpapi.SearchParams{
		Query:     name + " ニュース",
		Num:       5,
		TimeRange: "qdr:y",
	})
	if err != nil {
		log.Debug().Err(err).Str("clinic", name).Msg("news search failed")
		return
	}
	hits := result.NewsResults
	if len(hits) == 0 {
		hits = result.Organic
	}
	for _, hit := range hits {
		if hit.Title != "" {
			out.News = append(out.News, hit.Title)
		}
		if len(out.News) >= 5 {
			break
		}
	}
}

func (s *WebResearchService) reviewSearch(ctx context.Context, name string, out *entities.WebEnrichment) {
	result, err := s.search.Search(ctx, serpapi.SearchParams{Query: name + " 口コミ 評判", Num: 10})
	if err != nil {
		log.Debug().Err(err).Str("clinic", name).Msg("review search failed")
		return
	}
	for _, hit := range result.Organic {
		CountKeywordHits(hit.Snippet, out.PositiveHits, out.NegativeHits)
	}
}

// aiSummarize asks the configured model to condense the collected snippets to
// a JSON summary. One short attempt, no retries; unparseable output is kept
// as free text with a note.
func (s *WebResearchService) aiSummarize(ctx context.Context, name string, out *entities.WebEnrichment) {
	if s.gateway == nil || len(out.Snippets) == 0 {
		return
	}

	prompt := fmt.Sprintf(
		"以下は「%s」に関するWeb検索結果の抜粋です。特徴を100文字以内で要約し、"+
			`{"summary": "..."} のJSON形式のみで出力してください。`+"\n\n%s",
		name, strings.Join(out.Snippets, "\n"))

	text, err := s.gateway.GenerateTextOnce(ctx, s.settings.Get().Models.TextAPIModel, prompt, aiSummaryTimeout)
	if err != nil {
		log.Debug().Err(err).Str("clinic", name).Msg("ai summary skipped")
		return
	}

	var parsed struct {
		Summary string `json:"summary"`
	}
	cleaned := strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "`"))
	cleaned = strings.TrimPrefix(cleaned, "json")
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.Summary != "" {
		out.AISummary = parsed.Summary
		return
	}
	out.AISummary = text
	out.AISummaryNote = "model output was not valid JSON; stored as free text"
}

// CountKeywordHits tallies curated dictionary matches in text into the given
// positive/negative maps.
func CountKeywordHits(text string, positive, negative map[string]int) {
	for _, keyword := range positiveReviewKeywords {
		if n := strings.Count(text, keyword); n > 0 {
			positive[keyword] += n
		}
	}
	for _, keyword := range negativeReviewKeywords {
		if n := strings.Count(text, keyword); n > 0 {
			negative[keyword] += n
		}
	}
}

func isAggregatorLink(link string) bool {
	for _, domain := range []string{"google.", "caloo.jp", "byoinnavi.jp", "fdoc.jp", "hospita.jp"} {
		if strings.Contains(link, domain) {
			return true
		}
	}
	return false
}

var followerDigits = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(万|千)?`)

// extractFollowerCount pulls "1.2万人のフォロワー" or "フォロワー8,500人" style
// counts out of an SNS snippet. The window around the marker is sliced on
// runes; small accounts count too, so any positive figure is accepted.
func extractFollowerCount(snippet string) (int, bool) {
	idx := strings.Index(snippet, "フォロワー")
	if idx < 0 {
		return 0, false
	}

	before := []rune(snippet[:idx])
	if len(before) > 12 {
		before = before[len(before)-12:]
	}
	after := []rune(snippet[idx:])
	if len(after) > 20 {
		after = after[:20]
	}

	match := followerDigits.FindStringSubmatch(string(before) + string(after))
	if match == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	switch match[2] {
	case "万":
		n *= 10000
	case "千":
		n *= 1000
	}
	if n <= 0 {
		return 0, false
	}
	return int(n), true
}
