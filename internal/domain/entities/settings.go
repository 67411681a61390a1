package entities

// ModelSettings holds the admin-selected model names.
type ModelSettings struct {
	TextAPIModel  string `json:"text_api_model"`
	ImageAPIModel string `json:"image_api_model"`
}

// AdminSettings is the process-wide singleton persisted to one JSON file.
// Limits maps the six output-field IDs to per-field character-budget strings.
type AdminSettings struct {
	Models ModelSettings     `json:"models"`
	Limits map[string]string `json:"limits"`
}

// OutputFieldIDs lists the six generated persona fields in output order.
var OutputFieldIDs = []string{
	"personality", "reason", "behavior", "reviews", "values", "demands",
}

// DefaultAdminSettings returns the settings written on first run.
func DefaultAdminSettings() AdminSettings {
	limits := make(map[string]string, len(OutputFieldIDs))
	for _, id := range OutputFieldIDs {
		limits[id] = "200"
	}
	return AdminSettings{
		Models: ModelSettings{
			TextAPIModel:  "gpt-4o",
			ImageAPIModel: "dall-e-3",
		},
		Limits: limits,
	}
}
