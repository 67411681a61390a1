package services

import (
	"github.com/medleads/clinic-insight/internal/domain/entities"
)

// consultationRates is the daily outpatient consultation rate per 100,000
// population by age band, taken from national patient-survey aggregates.
var consultationRates = map[string]float64{
	"young":   3900, // 0-14
	"working": 4100, // 15-64
	"elderly": 10400, // 65+
}

// areaCorrectionFactors adjusts demand by density bucket; urban areas leak
// demand to large hospitals, rural areas concentrate it on fewer clinics.
var areaCorrectionFactors = map[entities.AreaType]float64{
	entities.AreaUrbanHighDensity:   0.92,
	entities.AreaUrbanMediumDensity: 1.00,
	entities.AreaSuburban:           1.05,
	entities.AreaRural:              1.12,
}

// departmentShare is the fixed distribution of outpatient demand across
// departments. Values sum to 1.0.
var departmentShare = map[string]float64{
	"内科":    0.28,
	"歯科":    0.17,
	"整形外科":  0.12,
	"眼科":    0.08,
	"皮膚科":   0.07,
	"小児科":   0.07,
	"耳鼻咽喉科": 0.06,
	"外科":    0.05,
	"精神科":   0.05,
	"その他":   0.05,
}

// diseasePrevalence is the fixed prevalence table (percent of population)
// folded into the regional report.
var diseasePrevalence = map[string]float64{
	"高血圧":    15.1,
	"糖尿病":    6.1,
	"脂質異常症":  5.7,
	"腰痛症":    9.2,
	"う蝕・歯周病": 18.4,
	"アレルギー性鼻炎": 12.3,
}

// MedicalDemandCalculator derives outpatient-demand figures from the fixed
// rate tables. The report never infers these from AI output.
type MedicalDemandCalculator struct{}

// NewMedicalDemandCalculator creates a demand calculator.
func NewMedicalDemandCalculator() *MedicalDemandCalculator {
	return &MedicalDemandCalculator{}
}

// EstimateDailyOutpatients computes the expected daily outpatient count for a
// municipality from its population, age split and density bucket.
func (c *MedicalDemandCalculator) EstimateDailyOutpatients(population int, dist entities.AgeDistribution, areaType entities.AreaType) int {
	if population <= 0 {
		return 0
	}
	pop := float64(population)
	demand := pop*dist.Young/100*consultationRates["young"]/100000 +
		pop*dist.Working/100*consultationRates["working"]/100000 +
		pop*dist.Elderly/100*consultationRates["elderly"]/100000

	factor, ok := areaCorrectionFactors[areaType]
	if !ok {
		factor = 1.0
	}
	return int(demand * factor)
}

// DepartmentBreakdown returns a copy of the fixed department distribution.
func (c *MedicalDemandCalculator) DepartmentBreakdown() map[string]float64 {
	out := make(map[string]float64, len(departmentShare))
	for k, v := range departmentShare {
		out[k] = v
	}
	return out
}

// DiseasePrevalence returns a copy of the fixed prevalence table.
func (c *MedicalDemandCalculator) DiseasePrevalence() map[string]float64 {
	out := make(map[string]float64, len(diseasePrevalence))
	for k, v := range diseasePrevalence {
		out[k] = v
	}
	return out
}
