package estat

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/medleads/clinic-insight/internal/adapters/ratelimit"
	"github.com/medleads/clinic-insight/internal/domain/providers"
)

const (
	defaultBaseURL = "https://api.e-stat.go.jp/rest/3.0/app/json"
	defaultTimeout = 15 * time.Second
	rateBucket     = "estat"

	// DemographicsTTL is the disk-cache lifetime for demographic tables.
	DemographicsTTL = 24 * time.Hour
	// MedicalStatsTTL is the disk-cache lifetime for medical-statistics tables.
	MedicalStatsTTL = 72 * time.Hour
)

// Client issues e-Stat REST v3 requests with a disk-backed response cache
// keyed by md5(endpoint + sorted params) so entries survive process restarts.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cacheDir   string
	limiter    *ratelimit.Limiter
	now        func() time.Time
}

// NewClient creates a new e-Stat client.
func NewClient(apiKey, cacheDir string, limiter *ratelimit.Limiter) *Client {
	return NewClientWithBaseURL(apiKey, defaultBaseURL, cacheDir, limiter)
}

// NewClientWithBaseURL allows overriding the endpoint (used for tests).
func NewClientWithBaseURL(apiKey, baseURL, cacheDir string, limiter *ratelimit.Limiter) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		cacheDir:   cacheDir,
		limiter:    limiter,
		now:        time.Now,
	}
}

// Enabled reports whether an e-Stat key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Table is one statistics table from getStatsList.
type Table struct {
	ID        string `json:"@id"`
	StatName  string `json:"STAT_NAME_VALUE"`
	TitleSpec string `json:"TITLE_VALUE"`
}

// ClassEntry is one code in a metadata class dictionary.
type ClassEntry struct {
	Code string `json:"@code"`
	Name string `json:"@name"`
}

// ClassObj is one class object (e.g. the area axis) from getMetaInfo.
type ClassObj struct {
	ID      string       `json:"@id"`
	Name    string       `json:"@name"`
	Entries []ClassEntry `json:"-"`
}

// DataValue is one statistics value from getStatsData.
type DataValue struct {
	Area  string `json:"@area"`
	Cat   string `json:"@cat01"`
	Time  string `json:"@time"`
	Unit  string `json:"@unit"`
	Value string `json:"$"`
}

// ListTables runs getStatsList with a statsCode-first search and returns the
// candidate tables, those titled with 市区町村 sorted first.
func (c *Client) ListTables(ctx context.Context, statsCode, searchWord string) ([]Table, error) {
	params := url.Values{
		"statsCode":  []string{statsCode},
		"searchWord": []string{searchWord},
		"limit":      []string{"20"},
	}
	raw, err := c.fetch(ctx, "getStatsList", params, MedicalStatsTTL)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		GetStatsList struct {
			Result struct {
				Status json.Number `json:"STATUS"`
			} `json:"RESULT"`
			DataList struct {
				TableInf []json.RawMessage `json:"TABLE_INF"`
			} `json:"DATALIST_INF"`
		} `json:"GET_STATS_LIST"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding getStatsList: %w", err)
	}
	if envelope.GetStatsList.Result.Status.String() != "0" {
		return nil, fmt.Errorf("getStatsList returned status %s", envelope.GetStatsList.Result.Status)
	}

	var tables []Table
	for _, rawTable := range envelope.GetStatsList.DataList.TableInf {
		var t struct {
			ID    string `json:"@id"`
			Title any    `json:"TITLE"`
			Stat  struct {
				Value string `json:"$"`
			} `json:"STAT_NAME"`
		}
		if err := json.Unmarshal(rawTable, &t); err != nil {
			continue
		}
		tables = append(tables, Table{
			ID:        t.ID,
			StatName:  t.Stat.Value,
			TitleSpec: titleString(t.Title),
		})
	}

	sort.SliceStable(tables, func(i, j int) bool {
		return strings.Contains(tables[i].TitleSpec, "市区町村") &&
			!strings.Contains(tables[j].TitleSpec, "市区町村")
	})
	return tables, nil
}

// AreaCodeFor fetches a table's metadata and returns the area code whose
// display name contains the target city.
func (c *Client) AreaCodeFor(ctx context.Context, tableID, city string) (string, error) {
	params := url.Values{"statsDataId": []string{tableID}}
	raw, err := c.fetch(ctx, "getMetaInfo", params, MedicalStatsTTL)
	if err != nil {
		return "", err
	}

	var envelope struct {
		GetMetaInfo struct {
			Result struct {
				Status json.Number `json:"STATUS"`
			} `json:"RESULT"`
			MetadataInf struct {
				ClassInf struct {
					ClassObj []struct {
						ID    string          `json:"@id"`
						Class json.RawMessage `json:"CLASS"`
					} `json:"CLASS_OBJ"`
				} `json:"CLASS_INF"`
			} `json:"METADATA_INF"`
		} `json:"GET_META_INFO"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", fmt.Errorf("decoding getMetaInfo: %w", err)
	}
	if envelope.GetMetaInfo.Result.Status.String() != "0" {
		return "", fmt.Errorf("getMetaInfo returned status %s", envelope.GetMetaInfo.Result.Status)
	}

	for _, obj := range envelope.GetMetaInfo.MetadataInf.ClassInf.ClassObj {
		if obj.ID != "area" && !strings.HasPrefix(obj.ID, "area") {
			continue
		}
		for _, entry := range decodeClassEntries(obj.Class) {
			if strings.Contains(entry.Name, city) {
				return entry.Code, nil
			}
		}
	}
	return "", fmt.Errorf("no area code matching %q in table %s", city, tableID)
}

// StatsData fetches statistics values for a table, filtered to one area.
func (c *Client) StatsData(ctx context.Context, tableID, areaCode string, ttl time.Duration) ([]DataValue, error) {
	params := url.Values{
		"statsDataId": []string{tableID},
		"cdArea":      []string{areaCode},
		"limit":       []string{"100"},
	}
	raw, err := c.fetch(ctx, "getStatsData", params, ttl)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		GetStatsData struct {
			Result struct {
				Status json.Number `json:"STATUS"`
			} `json:"RESULT"`
			StatisticalData struct {
				DataInf struct {
					Value []DataValue `json:"VALUE"`
				} `json:"DATA_INF"`
			} `json:"STATISTICAL_DATA"`
		} `json:"GET_STATS_DATA"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding getStatsData: %w", err)
	}
	if envelope.GetStatsData.Result.Status.String() != "0" {
		return nil, fmt.Errorf("getStatsData returned status %s", envelope.GetStatsData.Result.Status)
	}
	return envelope.GetStatsData.StatisticalData.DataInf.Value, nil
}

type cacheEntry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values, ttl time.Duration) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("e-stat api key is not configured")
	}

	cachePath := c.cachePath(endpoint, params)
	if cached := c.readCache(cachePath, ttl); cached != nil {
		return cached, nil
	}

	if c.limiter != nil {
		if err := c.limiter.AcquireOrWait(ctx, rateBucket); err != nil {
			return nil, err
		}
	}

	params.Set("appId", c.apiKey)
	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building e-stat request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.ProviderCallError{Provider: "estat", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providers.ProviderCallError{
			Provider:   "estat",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding e-stat response: %w", err)
	}

	c.writeCache(cachePath, raw)
	return raw, nil
}

func (c *Client) cachePath(endpoint string, params url.Values) string {
	if c.cacheDir == "" {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "appId" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(endpoint)
	for _, k := range keys {
		sb.WriteString("&" + k + "=" + strings.Join(params[k], ","))
	}
	sum := md5.Sum([]byte(sb.String()))
	return filepath.Join(c.cacheDir, "estat_cache_"+hex.EncodeToString(sum[:])+".json")
}

func (c *Client) readCache(path string, ttl time.Duration) json.RawMessage {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, entry.Timestamp)
	if err != nil || c.now().Sub(ts) > ttl {
		return nil
	}
	return entry.Data
}

func (c *Client) writeCache(path string, data json.RawMessage) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	entry := cacheEntry{Data: data, Timestamp: c.now().UTC().Format(time.RFC3339)}
	if payload, err := json.Marshal(entry); err == nil {
		_ = os.WriteFile(path, payload, 0o644)
	}
}

// decodeClassEntries tolerates CLASS being a single object or an array.
func decodeClassEntries(raw json.RawMessage) []ClassEntry {
	if len(raw) == 0 {
		return nil
	}
	var list []ClassEntry
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single ClassEntry
	if err := json.Unmarshal(raw, &single); err == nil {
		return []ClassEntry{single}
	}
	return nil
}

// titleString tolerates TITLE being a plain string or a {"$": ...} object.
func titleString(title any) string {
	switch t := title.(type) {
	case string:
		return t
	case map[string]any:
		if v, ok := t["$"].(string); ok {
			return v
		}
	}
	return ""
}
