package entities

// AreaType buckets a municipality by population density.
type AreaType string

const (
	AreaUrbanHighDensity   AreaType = "urban_high_density"
	AreaUrbanMediumDensity AreaType = "urban_medium_density"
	AreaSuburban           AreaType = "suburban"
	AreaRural              AreaType = "rural"
)

// AgeDistribution holds the three-band age split in percent.
type AgeDistribution struct {
	Young   float64 `json:"age_0_14"`
	Working float64 `json:"age_15_64"`
	Elderly float64 `json:"age_65_plus"`
}

// RegionalStats describes the demographics and medical demand of the
// municipality a clinic address resolves to.
type RegionalStats struct {
	AreaCode        string          `json:"area_code"`
	AreaName        string          `json:"area_name"`
	TotalPopulation int             `json:"total_population"`
	AgeDistribution AgeDistribution `json:"age_distribution"`
	AgingRate       float64         `json:"aging_rate"`
	AreaType        AreaType        `json:"area_type"`

	EstimatedDailyOutpatients int                `json:"estimated_daily_outpatients"`
	DepartmentBreakdown       map[string]float64 `json:"department_breakdown"`
	DiseasePrevalence         map[string]float64 `json:"disease_prevalence"`

	DataSource string `json:"data_source"`
}

// MedicalStats holds the e-Stat medical-statistics blocks folded into the
// SWOT prompt when available.
type MedicalStats struct {
	FacilitiesBySpecialty map[string]int     `json:"facilities_by_specialty,omitempty"`
	PatientRates          map[string]float64 `json:"patient_rates,omitempty"`
	StaffDensity          map[string]float64 `json:"staff_density,omitempty"`
	HouseholdExpenditure  map[string]float64 `json:"household_expenditure,omitempty"`
	NursingFacilities     map[string]int     `json:"nursing_facilities,omitempty"`
	DataSource            string             `json:"data_source,omitempty"`
}
