package googlemaps

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medleads/clinic-insight/internal/adapters/ratelimit"
	"github.com/medleads/clinic-insight/internal/domain/entities"
	"github.com/medleads/clinic-insight/internal/domain/providers"
	apperrors "github.com/medleads/clinic-insight/pkg/errors"
)

const (
	geocodeURL       = "https://maps.googleapis.com/maps/api/geocode/json"
	nearbyURL        = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	detailsURL       = "https://maps.googleapis.com/maps/api/place/details/json"
	geocodeCacheTTL  = 60 * 60 * 24 * 30
	defaultTimeout   = 8 * time.Second
	rateBucket       = "google_maps"
	maxDetailReviews = 3
)

// defaultClinicKeywords is the Places keyword set used when no departments
// are supplied.
var defaultClinicKeywords = []string{"医院", "クリニック", "病院"}

// Client implements the GeoProvider using the Google Geocoding and Places
// APIs. Every external call passes through the google_maps rate bucket.
type Client struct {
	apiKey     string
	httpClient *http.Client
	cache      providers.CacheProvider
	limiter    *ratelimit.Limiter

	geocodeBase string
	nearbyBase  string
	detailsBase string
}

// NewClient creates a new Maps client.
func NewClient(apiKey string, cache providers.CacheProvider, limiter *ratelimit.Limiter) *Client {
	return NewClientWithBaseURLs(apiKey, cache, limiter, geocodeURL, nearbyURL, detailsURL)
}

// NewClientWithBaseURLs allows overriding endpoints (used for tests).
func NewClientWithBaseURLs(apiKey string, cache providers.CacheProvider, limiter *ratelimit.Limiter, geocodeBase, nearbyBase, detailsBase string) *Client {
	return &Client{
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		cache:       cache,
		limiter:     limiter,
		geocodeBase: geocodeBase,
		nearbyBase:  nearbyBase,
		detailsBase: detailsBase,
	}
}

// Geocode converts an address to coordinates. Results are cached for 30 days.
func (c *Client) Geocode(ctx context.Context, address string) (entities.Coordinates, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return entities.Coordinates{}, apperrors.NewValidationError("address is required")
	}

	cacheKey := "maps:geocode:" + hashKey(strings.ToLower(trimmed))
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, cacheKey); err == nil && len(cached) > 0 {
			var coords entities.Coordinates
			if err := json.Unmarshal(cached, &coords); err == nil && (coords.Latitude != 0 || coords.Longitude != 0) {
				return coords, nil
			}
		}
	}

	params := url.Values{"address": []string{trimmed}}
	var payload geocodeResponse
	if err := c.get(ctx, c.geocodeBase, params, &payload); err != nil {
		return entities.Coordinates{}, err
	}

	switch payload.Status {
	case "OK":
	case "ZERO_RESULTS":
		return entities.Coordinates{}, apperrors.NewValidationError("no results for address: " + trimmed)
	case "OVER_QUERY_LIMIT":
		return entities.Coordinates{}, apperrors.NewRateLimitedError("geocoding quota exceeded")
	case "REQUEST_DENIED":
		return entities.Coordinates{}, apperrors.NewUpstreamError("geocoding request denied", fmt.Errorf("status %s", payload.Status))
	default:
		return entities.Coordinates{}, apperrors.NewUpstreamError("geocoding failed", fmt.Errorf("status %s: %s", payload.Status, payload.ErrorMessage))
	}
	if len(payload.Results) == 0 {
		return entities.Coordinates{}, apperrors.NewValidationError("no results for address: " + trimmed)
	}

	coords := entities.Coordinates{
		Latitude:  payload.Results[0].Geometry.Location.Lat,
		Longitude: payload.Results[0].Geometry.Location.Lng,
	}

	if c.cache != nil {
		if data, err := json.Marshal(coords); err == nil {
			_ = c.cache.Set(ctx, cacheKey, data, geocodeCacheTTL)
		}
	}
	return coords, nil
}

// NearbyClinics issues one Places search per department keyword, unions the
// results, deduplicates by place_id, retains the first limit entries and
// enriches each with a single details request.
func (c *Client) NearbyClinics(ctx context.Context, center entities.Coordinates, radiusM int, departments []string, limit int) ([]entities.Competitor, error) {
	if limit <= 0 {
		limit = 20
	}
	keywords := departments
	if len(keywords) == 0 {
		keywords = defaultClinicKeywords
	}

	seen := make(map[string]bool)
	var competitors []entities.Competitor

	for _, keyword := range keywords {
		params := url.Values{
			"location": []string{fmt.Sprintf("%f,%f", center.Latitude, center.Longitude)},
			"radius":   []string{fmt.Sprintf("%d", radiusM)},
			"keyword":  []string{keyword},
			"language": []string{"ja"},
		}

		var payload nearbyResponse
		if err := c.get(ctx, c.nearbyBase, params, &payload); err != nil {
			return nil, err
		}
		if payload.Status != "OK" && payload.Status != "ZERO_RESULTS" {
			return nil, apperrors.NewUpstreamError("nearby search failed",
				fmt.Errorf("status %s: %s", payload.Status, payload.ErrorMessage))
		}

		for _, result := range payload.Results {
			if seen[result.PlaceID] {
				continue
			}
			seen[result.PlaceID] = true

			loc := entities.Coordinates{
				Latitude:  result.Geometry.Location.Lat,
				Longitude: result.Geometry.Location.Lng,
			}
			competitors = append(competitors, entities.Competitor{
				PlaceID:     result.PlaceID,
				Name:        result.Name,
				Address:     result.Vicinity,
				Location:    loc,
				Rating:      result.Rating,
				ReviewCount: result.UserRatingsTotal,
				DistanceM:   haversineMeters(center, loc),
				Types:       result.Types,
			})
			if len(competitors) >= limit {
				break
			}
		}
		if len(competitors) >= limit {
			break
		}
	}

	for i := range competitors {
		if err := c.fillDetails(ctx, &competitors[i]); err != nil {
			// Detail enrichment is best-effort; the search result stands.
			competitors[i].Warning = "details unavailable"
		}
	}
	return competitors, nil
}

func (c *Client) fillDetails(ctx context.Context, comp *entities.Competitor) error {
	params := url.Values{
		"place_id": []string{comp.PlaceID},
		"fields":   []string{"formatted_phone_number,website,opening_hours,reviews,formatted_address"},
		"language": []string{"ja"},
	}

	var payload detailsResponse
	if err := c.get(ctx, c.detailsBase, params, &payload); err != nil {
		return err
	}
	if payload.Status != "OK" {
		return fmt.Errorf("details request failed: %s", payload.Status)
	}

	comp.Phone = payload.Result.Phone
	comp.Website = payload.Result.Website
	comp.OpeningHours = payload.Result.OpeningHours.WeekdayText
	if payload.Result.FormattedAddress != "" {
		comp.Address = payload.Result.FormattedAddress
	}
	for i, review := range payload.Result.Reviews {
		if i >= maxDetailReviews {
			break
		}
		comp.Reviews = append(comp.Reviews, entities.Review{
			Author: review.AuthorName,
			Rating: review.Rating,
			Text:   review.Text,
		})
	}
	return nil
}

func (c *Client) get(ctx context.Context, base string, params url.Values, out any) error {
	if c.apiKey == "" {
		return apperrors.NewValidationError("google maps api key is required")
	}
	if c.limiter != nil {
		if err := c.limiter.AcquireOrWait(ctx, rateBucket); err != nil {
			return err
		}
	}

	params.Set("key", c.apiKey)
	reqURL := fmt.Sprintf("%s?%s", base, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("building maps request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &providers.ProviderCallError{Provider: "google_maps", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &providers.ProviderCallError{
			Provider:   "google_maps",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding maps response: %w", err)
	}
	return nil
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// haversineMeters returns the great-circle distance between two points.
func haversineMeters(a, b entities.Coordinates) float64 {
	const earthRadiusM = 6371000.0
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLng := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusM * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geometry struct {
	Location location `json:"location"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Results      []struct {
		Geometry geometry `json:"geometry"`
	} `json:"results"`
}

type nearbyResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	Results      []struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		Vicinity         string   `json:"vicinity"`
		Geometry         geometry `json:"geometry"`
		Rating           float64  `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		Types            []string `json:"types"`
	} `json:"results"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Phone            string `json:"formatted_phone_number"`
		Website          string `json:"website"`
		FormattedAddress string `json:"formatted_address"`
		OpeningHours     struct {
			WeekdayText []string `json:"weekday_text"`
		} `json:"opening_hours"`
		Reviews []struct {
			AuthorName string  `json:"author_name"`
			Rating     float64 `json:"rating"`
			Text       string  `json:"text"`
		} `json:"reviews"`
	} `json:"result"`
}

var _ providers.GeoProvider = (*Client)(nil)
