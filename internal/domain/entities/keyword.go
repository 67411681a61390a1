package entities

// Keyword is one row of the RAG keywords table. Specialty is either a bare
// department name or "<department>_<chief_complaint>", a single flat key space.
type Keyword struct {
	Specialty        string  `json:"specialty"`
	RankOrder        int     `json:"rank_order"`
	Keyword          string  `json:"keyword"`
	SearchVolume     int     `json:"search_volume"`
	DuplicateVolume  int     `json:"duplicate_volume"`
	Distinctiveness  float64 `json:"distinctiveness"`
	TimeDiffDays     float64 `json:"time_difference_days"`
	MaleRatio        float64 `json:"male_ratio"`
	FemaleRatio      float64 `json:"female_ratio"`
	Age10s           float64 `json:"age_10s"`
	Age20s           float64 `json:"age_20s"`
	Age30s           float64 `json:"age_30s"`
	Age40s           float64 `json:"age_40s"`
	Age50s           float64 `json:"age_50s"`
	Age60s           float64 `json:"age_60s"`
	Age70s           float64 `json:"age_70s"`
	Category         string  `json:"category,omitempty"`
}

// UploadRecord is one row of the upload_history table.
type UploadRecord struct {
	Specialty   string `json:"specialty"`
	Filename    string `json:"filename"`
	RecordCount int    `json:"record_count"`
	UploadedAt  string `json:"uploaded_at"`
}
