package entities

// Priority classifies a recommendation.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recommendation is one strategic proposal extracted from the AI response
// or synthesized by the rule-based fallback.
type Recommendation struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       Priority `json:"priority"`
	ExpectedEffect string   `json:"expected_effect"`
	KPI            string   `json:"kpi,omitempty"`
}

// SWOTResult holds the four-section qualitative analysis.
type SWOTResult struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// Empty reports whether all four sections are empty.
func (s SWOTResult) Empty() bool {
	return len(s.Strengths) == 0 && len(s.Weaknesses) == 0 &&
		len(s.Opportunities) == 0 && len(s.Threats) == 0
}
