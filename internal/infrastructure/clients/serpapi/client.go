package serpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/medleads/clinic-insight/internal/adapters/ratelimit"
	"github.com/medleads/clinic-insight/internal/domain/providers"
)

const (
	defaultBaseURL = "https://serpapi.com/search.json"
	defaultTimeout = 10 * time.Second
	rateBucket     = "serpapi"
)

// Client issues search queries against SerpAPI.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a new SerpAPI client. An empty key produces a client
// whose Enabled() is false; callers degrade gracefully.
func NewClient(apiKey string, limiter *ratelimit.Limiter) *Client {
	return NewClientWithBaseURL(apiKey, defaultBaseURL, limiter)
}

// NewClientWithBaseURL allows overriding the endpoint (used for tests).
func NewClientWithBaseURL(apiKey, baseURL string, limiter *ratelimit.Limiter) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    limiter,
	}
}

// Enabled reports whether a SerpAPI key is configured.
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// SearchParams narrows one search query.
type SearchParams struct {
	Query     string
	Num       int
	TimeRange string // e.g. "qdr:y" for the past year
}

// OrganicResult is one organic search hit.
type OrganicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// LocalResult is one local-pack hit.
type LocalResult struct {
	Title   string  `json:"title"`
	Rating  float64 `json:"rating"`
	Reviews int     `json:"reviews"`
	Address string  `json:"address"`
}

// KnowledgeGraph is the knowledge-panel block, when present.
type KnowledgeGraph struct {
	Title       string `json:"title"`
	Website     string `json:"website"`
	Description string `json:"description"`
}

// SearchResult is the subset of the SerpAPI response the system consumes.
type SearchResult struct {
	Organic        []OrganicResult `json:"organic_results"`
	KnowledgeGraph *KnowledgeGraph `json:"knowledge_graph,omitempty"`
	LocalResults   struct {
		Places []LocalResult `json:"places"`
	} `json:"local_results"`
	NewsResults []OrganicResult `json:"news_results"`
}

// Search issues one query. All calls pass through the serpapi rate bucket.
func (c *Client) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("serpapi key is not configured")
	}
	if c.limiter != nil {
		if err := c.limiter.AcquireOrWait(ctx, rateBucket); err != nil {
			return nil, err
		}
	}

	values := url.Values{
		"engine":  []string{"google"},
		"q":       []string{params.Query},
		"hl":      []string{"ja"},
		"gl":      []string{"jp"},
		"api_key": []string{c.apiKey},
	}
	if params.Num > 0 {
		values.Set("num", fmt.Sprintf("%d", params.Num))
	}
	if params.TimeRange != "" {
		values.Set("tbs", params.TimeRange)
	}

	reqURL := c.baseURL + "?" + values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building serpapi request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &providers.ProviderCallError{Provider: "serpapi", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providers.ProviderCallError{
			Provider:   "serpapi",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %d", resp.StatusCode),
		}
	}

	var result SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding serpapi response: %w", err)
	}
	return &result, nil
}

// SiteQuery builds a site-restricted query string.
func SiteQuery(site string, terms ...string) string {
	return "site:" + site + " " + strings.Join(terms, " ")
}
