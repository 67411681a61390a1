package entities

// ClinicInfo describes the clinic on whose behalf the competitive analysis runs.
type ClinicInfo struct {
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	Departments   []string `json:"departments"`
	Features      string   `json:"features,omitempty"`
	SearchRadiusM int      `json:"search_radius_m,omitempty"`
}

// Coordinates is a WGS84 lat/lng pair.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Review is one representative review attached to a competitor.
type Review struct {
	Author string `json:"author,omitempty"`
	Rating float64 `json:"rating,omitempty"`
	Text   string `json:"text"`
}

// Competitor is one nearby clinic found by the Places search, identified by
// its place_id and optionally enriched with detail and web-research data.
type Competitor struct {
	PlaceID      string      `json:"place_id"`
	Name         string      `json:"name"`
	Address      string      `json:"address"`
	Location     Coordinates `json:"location"`
	Rating       float64     `json:"rating"`
	ReviewCount  int         `json:"review_count"`
	DistanceM    float64     `json:"distance_m"`
	Types        []string    `json:"types,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	Website      string      `json:"website,omitempty"`
	OpeningHours []string    `json:"opening_hours,omitempty"`
	Reviews      []Review    `json:"reviews,omitempty"`

	Enrichment *WebEnrichment `json:"enrichment,omitempty"`
	Warning    string         `json:"warning,omitempty"`
}

// WebEnrichment holds best-effort web research for one clinic.
type WebEnrichment struct {
	Website       string            `json:"website,omitempty"`
	Snippets      []string          `json:"snippets,omitempty"`
	SNSPresence   map[string]string `json:"sns_presence,omitempty"`
	SNSFollowers  map[string]int    `json:"sns_followers,omitempty"`
	News          []string          `json:"news,omitempty"`
	PositiveHits  map[string]int    `json:"positive_hits,omitempty"`
	NegativeHits  map[string]int    `json:"negative_hits,omitempty"`
	AISummary     string            `json:"ai_summary,omitempty"`
	AISummaryNote string            `json:"ai_summary_note,omitempty"`
	Warning       string            `json:"warning,omitempty"`
}

// MarketStats summarizes the competitor set.
type MarketStats struct {
	AverageRating          float64        `json:"average_rating"`
	RatingHigh             int            `json:"rating_4_plus"`
	RatingMid              int            `json:"rating_3_to_4"`
	RatingLow              int            `json:"rating_below_3"`
	DepartmentDistribution map[string]int `json:"department_distribution"`
}

// ClinicReviewHighlight retains up to two key review points for one clinic.
type ClinicReviewHighlight struct {
	Name      string   `json:"name"`
	KeyPoints []string `json:"key_points"`
}

// ReviewInsights aggregates curated positive/negative keyword hits across the
// top competitors' review snippets.
type ReviewInsights struct {
	TopPositive []KeywordCount          `json:"top_positive"`
	TopNegative []KeywordCount          `json:"top_negative"`
	Highlights  []ClinicReviewHighlight `json:"highlights"`
}

// KeywordCount is one curated keyword with its occurrence count.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// CompetitiveReport is the fused output of one competitive-analysis request.
type CompetitiveReport struct {
	ID             string           `json:"id"`
	Center         Coordinates      `json:"center"`
	SearchRadiusM  int              `json:"search_radius"`
	Competitors    []Competitor     `json:"competitors"`
	MarketStats    MarketStats      `json:"market_stats"`
	ReviewInsights ReviewInsights   `json:"review_insights"`
	RegionalStats  *RegionalStats   `json:"regional_stats,omitempty"`
	SWOT           SWOTResult       `json:"swot"`
	Recommendations []Recommendation `json:"recommendations"`
	AnalysisDate   string           `json:"analysis_date"`
	Warnings       []string         `json:"warnings,omitempty"`
}
