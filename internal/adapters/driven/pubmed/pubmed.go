// Package pubmed searches PubMed through the NCBI E-utilities and fetches
// open-access full text from Europe PMC.
package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/httpx"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure Client implements the interface.
var _ driven.BibliographicSearch = (*Client)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	DefaultTool    = "asp-agent"

	// NCBI allows 3 requests per second, 10 with an API key.
	anonymousRate = 3
	keyedRate     = 10
)

// Config holds configuration for the PubMed client.
type Config struct {
	// BaseURL is the E-utilities base URL.
	BaseURL string

	// APIKey raises the rate limit when set.
	APIKey string

	// Email is sent to NCBI as the contact address.
	Email string

	// Timeout bounds each request (default: 15s).
	Timeout time.Duration

	// MaxRetries is the number of retries per request, at most 2.
	MaxRetries int

	// HTTPClient overrides the HTTP client, mainly for tests.
	HTTPClient *http.Client

	// Limiter overrides the rate limiter, mainly for tests.
	Limiter *httpx.RateLimiter
}

// Client searches PubMed.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
	email   string
}

// NewClient creates a PubMed client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = domain.DefaultExternalTimeout
	}
	if cfg.Limiter == nil {
		rps := float64(anonymousRate)
		if cfg.APIKey != "" {
			rps = keyedRate
		}
		cfg.Limiter = httpx.NewRateLimiter(rps, 1)
	}

	return &Client{
		http: httpx.New("pubmed",
			httpx.WithHTTPClient(cfg.HTTPClient),
			httpx.WithRateLimiter(cfg.Limiter),
			httpx.WithTimeout(cfg.Timeout),
			httpx.WithRetries(cfg.MaxRetries),
		),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		email:   cfg.Email,
	}
}

// Name identifies the backend in logs.
func (c *Client) Name() string {
	return "PubMed"
}

type esearchResponse struct {
	Result struct {
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// Search runs esearch for the query and fetches the matching records in
// relevance order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	ids, err := c.search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	articles, err := c.fetch(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*pubmedArticle, len(articles))
	for i := range articles {
		byID[articles[i].MedlineCitation.PMID] = &articles[i]
	}

	results := make([]domain.RetrievalResult, 0, len(ids))
	for _, id := range ids {
		a, ok := byID[id]
		if !ok {
			continue
		}
		res := a.toResult()
		res.Similarity = RankSimilarity(len(results), len(ids))
		results = append(results, res)
	}
	logger.Debug("PubMed: %d of %d records fetched for %q", len(results), len(ids), query)
	return results, nil
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]string, error) {
	params := c.params()
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("retmax", strconv.Itoa(limit))
	params.Set("retmode", "json")
	params.Set("sort", "relevance")

	var resp esearchResponse
	if err := c.http.DoJSON(ctx, c.get("/esearch.fcgi", params), &resp); err != nil {
		return nil, fmt.Errorf("pubmed search: %w", err)
	}
	return resp.Result.IDList, nil
}

func (c *Client) fetch(ctx context.Context, ids []string) ([]pubmedArticle, error) {
	params := c.params()
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(ids, ","))
	params.Set("retmode", "xml")

	body, err := c.http.Do(ctx, c.get("/efetch.fcgi", params))
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch: %w", err)
	}
	articles, err := parseArticles(body)
	if err != nil {
		return nil, fmt.Errorf("pubmed fetch: %w", err)
	}
	return articles, nil
}

func (c *Client) params() url.Values {
	params := url.Values{}
	params.Set("tool", DefaultTool)
	if c.email != "" {
		params.Set("email", c.email)
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	return params
}

func (c *Client) get(path string, params url.Values) httpx.RequestFunc {
	target := c.baseURL + path + "?" + params.Encode()
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	}
}

// RankSimilarity maps a 0-based rank among n results to a relevance in
// (0.5, 1], so the first hit scores 1.
func RankSimilarity(rank, n int) float64 {
	if n <= 0 || rank < 0 {
		return 0
	}
	return 1 - float64(rank)/float64(2*n)
}
