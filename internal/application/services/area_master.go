package services

import (
	"strings"

	"github.com/medleads/clinic-insight/internal/domain/entities"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

// cityRecord is one municipality in the bundled master.
type cityRecord struct {
	Name       string
	Code       string // 5-digit e-Stat municipality code
	Population int
	AgingRate  float64
}

// areaMaster maps prefecture name to its municipalities. The table covers the
// municipalities the product is deployed against; unknown addresses fall back
// to 千代田区.
var areaMaster = map[string][]cityRecord{
	"東京都": {
		{"千代田区", "13101", 66680, 17.4},
		{"中央区", "13102", 169179, 15.1},
		{"港区", "13103", 260486, 16.8},
		{"新宿区", "13104", 346235, 19.7},
		{"文京区", "13105", 240069, 18.9},
		{"渋谷区", "13113", 243883, 18.2},
		{"世田谷区", "13112", 943664, 20.1},
		{"豊島区", "13116", 301599, 19.5},
		{"練馬区", "13120", 752608, 21.7},
		{"八王子市", "13201", 579355, 26.2},
		{"町田市", "13209", 431079, 26.8},
	},
	"神奈川県": {
		{"横浜市", "14100", 3777491, 24.8},
		{"川崎市", "14130", 1538262, 20.5},
		{"相模原市", "14150", 725493, 25.7},
		{"藤沢市", "14205", 436905, 24.9},
	},
	"大阪府": {
		{"大阪市", "27100", 2752412, 25.3},
		{"堺市", "27140", 826161, 28.2},
		{"豊中市", "27203", 401558, 26.3},
	},
	"愛知県": {
		{"名古屋市", "23100", 2332176, 24.9},
		{"豊田市", "23211", 422330, 23.6},
	},
	"福岡県": {
		{"福岡市", "40130", 1612392, 22.1},
		{"北九州市", "40100", 939029, 30.8},
	},
	"北海道": {
		{"札幌市", "01100", 1973395, 27.7},
		{"旭川市", "01204", 329306, 34.6},
	},
	"宮城県": {
		{"仙台市", "04100", 1096704, 24.2},
	},
	"広島県": {
		{"広島市", "34100", 1199391, 25.5},
	},
	"京都府": {
		{"京都市", "26100", 1463723, 28.3},
	},
	"兵庫県": {
		{"神戸市", "28100", 1525152, 28.8},
	},
}

const (
	fallbackPrefecture = "東京都"
	fallbackCity       = "千代田区"
	fallbackAreaCode   = "13101"
)

// majorCitySubstrings marks municipalities treated as high-density urban
// regardless of population band.
var majorCitySubstrings = []string{
	"千代田区", "中央区", "港区", "新宿区", "渋谷区",
	"大阪市", "名古屋市", "横浜市", "福岡市", "札幌市",
}

// traversalTokens are rejected outright before any parsing.
var traversalTokens = []string{"..", "/", "\\", "\x00"}

// ResolvedArea is the outcome of address resolution.
type ResolvedArea struct {
	Prefecture string
	City       string
	AreaCode   string
	Population int
	AgingRate  float64
	Fallback   bool
}

// ResolveArea parses a Japanese address by longest match against the bundled
// master: prefecture first, then the longest city/ward substring within that
// prefecture. Unmatched addresses resolve to the 千代田区 fallback.
func ResolveArea(address string) (ResolvedArea, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(address), "　", " ")
	for _, token := range traversalTokens {
		if strings.Contains(normalized, token) {
			return ResolvedArea{}, apperrors.NewValidationError("address contains forbidden characters")
		}
	}

	var prefecture string
	for name := range areaMaster {
		if strings.Contains(normalized, name) && len(name) > len(prefecture) {
			prefecture = name
		}
	}
	if prefecture == "" {
		return fallbackArea(), nil
	}

	var best *cityRecord
	for i, city := range areaMaster[prefecture] {
		if strings.Contains(normalized, city.Name) {
			if best == nil || len(city.Name) > len(best.Name) {
				best = &areaMaster[prefecture][i]
			}
		}
	}
	if best == nil {
		return fallbackArea(), nil
	}

	return ResolvedArea{
		Prefecture: prefecture,
		City:       best.Name,
		AreaCode:   best.Code,
		Population: best.Population,
		AgingRate:  best.AgingRate,
	}, nil
}

func fallbackArea() ResolvedArea {
	for _, city := range areaMaster[fallbackPrefecture] {
		if city.Name == fallbackCity {
			return ResolvedArea{
				Prefecture: fallbackPrefecture,
				City:       fallbackCity,
				AreaCode:   city.Code,
				Population: city.Population,
				AgingRate:  city.AgingRate,
				Fallback:   true,
			}
		}
	}
	return ResolvedArea{Prefecture: fallbackPrefecture, City: fallbackCity, AreaCode: fallbackAreaCode, Fallback: true}
}

// classifyArea derives the density bucket from population and the major-city
// list.
func classifyArea(city string, population int) entities.AreaType {
	for _, major := range majorCitySubstrings {
		if strings.Contains(city, major) {
			return entities.AreaUrbanHighDensity
		}
	}
	switch {
	case population >= 500000:
		return entities.AreaUrbanHighDensity
	case population >= 200000:
		return entities.AreaUrbanMediumDensity
	case population >= 50000:
		return entities.AreaSuburban
	default:
		return entities.AreaRural
	}
}
