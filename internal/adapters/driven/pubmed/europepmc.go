package pubmed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/adapters/driven/httpx"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
)

// Ensure FullTextClient implements the interface.
var _ driven.FullTextFetcher = (*FullTextClient)(nil)

// DefaultEuropePMCURL is the Europe PMC REST base URL.
const DefaultEuropePMCURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// FullTextConfig holds configuration for the Europe PMC client.
type FullTextConfig struct {
	// BaseURL is the Europe PMC REST base URL.
	BaseURL string

	// Timeout bounds each request (default: 15s).
	Timeout time.Duration

	// MaxRetries is the number of retries per request, at most 2.
	MaxRetries int

	// HTTPClient overrides the HTTP client, mainly for tests.
	HTTPClient *http.Client
}

// FullTextClient fetches open-access article bodies from Europe PMC.
type FullTextClient struct {
	http    *httpx.Client
	baseURL string
}

// NewFullTextClient creates a Europe PMC client.
func NewFullTextClient(cfg FullTextConfig) *FullTextClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEuropePMCURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = domain.DefaultExternalTimeout
	}
	return &FullTextClient{
		http: httpx.New("europepmc",
			httpx.WithHTTPClient(cfg.HTTPClient),
			httpx.WithRateLimiter(httpx.NewRateLimiter(5, 1)),
			httpx.WithTimeout(cfg.Timeout),
			httpx.WithRetries(cfg.MaxRetries),
		),
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
	}
}

// FetchFullText returns the body text of the article with the given PMCID.
// Articles without open full text return domain.ErrNotFound.
func (c *FullTextClient) FetchFullText(ctx context.Context, pmcid string) (string, error) {
	pmcid = strings.ToUpper(strings.TrimSpace(pmcid))
	if pmcid == "" {
		return "", fmt.Errorf("full text: empty PMCID: %w", domain.ErrInvalidInput)
	}
	if !strings.HasPrefix(pmcid, "PMC") {
		pmcid = "PMC" + pmcid
	}

	target := c.baseURL + "/" + url.PathEscape(pmcid) + "/fullTextXML"
	body, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	})
	if err != nil {
		return "", fmt.Errorf("full text %s: %w", pmcid, err)
	}

	text, err := bodyText(body)
	if err != nil {
		return "", fmt.Errorf("full text %s: parse: %w", pmcid, err)
	}
	if text == "" {
		return "", fmt.Errorf("full text %s: empty body: %w", pmcid, domain.ErrNotFound)
	}
	return text, nil
}
