// Package edgar is a rate-limited, caching client for the SEC EDGAR JSON APIs
// and filing index pages.
// API Documentation: https://www.sec.gov/search-filings/edgar-application-programming-interfaces
package edgar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/cache"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/logging"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/telemetry"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

const (
	companyTickersURL = "https://www.sec.gov/files/company_tickers.json"
	submissionsURL    = "https://data.sec.gov/submissions/CIK%s.json"
	companyFactsURL   = "https://data.sec.gov/api/xbrl/companyfacts/CIK%s.json"
	companyConceptURL = "https://data.sec.gov/api/xbrl/companyconcept/CIK%s/%s/%s.json"
	archivesBaseURL   = "https://www.sec.gov/Archives/edgar/data"
	secBaseURL        = "https://www.sec.gov"

	// SEC fair access policy: at most 10 requests per second.
	DefaultRequestsPerSecond = 10
)

// ErrNotFound is returned when EDGAR answers 404.
var ErrNotFound = errors.New("edgar: not found")

// ErrNoUserAgent is returned when no User-Agent has been configured. SEC
// rejects anonymous traffic.
var ErrNoUserAgent = errors.New("edgar: user agent is required")

// Endpoints holds URL templates. Tests point them at an httptest server.
type Endpoints struct {
	CompanyTickers string // full URL
	Submissions    string // %s = padded CIK
	CompanyFacts   string // %s = padded CIK
	CompanyConcept string // %s = padded CIK, taxonomy, tag
	Archives       string // base, no trailing slash
	Site           string // used to absolutize index links
}

// DefaultEndpoints returns the production SEC URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		CompanyTickers: companyTickersURL,
		Submissions:    submissionsURL,
		CompanyFacts:   companyFactsURL,
		CompanyConcept: companyConceptURL,
		Archives:       archivesBaseURL,
		Site:           secBaseURL,
	}
}

// TTLs controls cache lifetimes per endpoint.
type TTLs struct {
	Tickers     time.Duration
	Submissions time.Duration
	Facts       time.Duration
	Concept     time.Duration
}

// DefaultTTLs: tickers change rarely, everything else daily.
func DefaultTTLs() TTLs {
	return TTLs{
		Tickers:     7 * 24 * time.Hour,
		Submissions: 24 * time.Hour,
		Facts:       24 * time.Hour,
		Concept:     24 * time.Hour,
	}
}

// Client talks to SEC EDGAR.
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	endpoints  Endpoints
	ttls       TTLs
	cacheDir   string
	metrics    *telemetry.Metrics
	log        *logrus.Entry

	tickers     *cache.DataCache
	submissions *cache.DataCache
	facts       *cache.DataCache
	concepts    *cache.DataCache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit sets the request budget per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithEndpoints overrides the SEC URLs.
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e }
}

// WithTTLs overrides cache lifetimes.
func WithTTLs(t TTLs) Option {
	return func(c *Client) { c.ttls = t }
}

// WithCacheDir enables on-disk cache snapshots in dir.
func WithCacheDir(dir string) Option {
	return func(c *Client) { c.cacheDir = dir }
}

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client. userAgent must identify the caller, e.g.
// "Sample Company AdminContact@example.com".
func NewClient(userAgent string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		userAgent:  strings.TrimSpace(userAgent),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), 1),
		endpoints:  DefaultEndpoints(),
		ttls:       DefaultTTLs(),
		log:        logging.Component("edgar"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.tickers = cache.New("company_tickers", cache.WithDefaultTTL(c.ttls.Tickers))
	c.submissions = cache.New("submissions", cache.WithDefaultTTL(c.ttls.Submissions), cache.WithMaxSize(500))
	c.facts = cache.New("company_facts", cache.WithDefaultTTL(c.ttls.Facts), cache.WithMaxSize(200))
	c.concepts = cache.New("company_concept", cache.WithDefaultTTL(c.ttls.Concept), cache.WithMaxSize(1000))

	if c.cacheDir != "" {
		for _, dc := range c.caches() {
			n, err := dc.LoadFromFile(c.cachePath(dc))
			if err != nil {
				c.log.WithError(err).WithField("cache", dc.Name()).Warn("discarding unreadable cache snapshot")
				continue
			}
			if n > 0 {
				c.log.WithFields(logrus.Fields{"cache": dc.Name(), "entries": n}).Debug("cache snapshot loaded")
			}
		}
	}
	return c
}

func (c *Client) caches() []*cache.DataCache {
	return []*cache.DataCache{c.tickers, c.submissions, c.facts, c.concepts}
}

func (c *Client) cachePath(dc *cache.DataCache) string {
	return filepath.Join(c.cacheDir, dc.Name()+".msgpack")
}

// SaveCaches writes every cache to the cache directory. It is a no-op when no
// directory is configured.
func (c *Client) SaveCaches() error {
	if c.cacheDir == "" {
		return nil
	}
	var errs []error
	for _, dc := range c.caches() {
		if err := dc.SaveToFile(c.cachePath(dc)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ClearCaches drops all cached responses.
func (c *Client) ClearCaches() {
	for _, dc := range c.caches() {
		dc.Clear()
	}
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// CompanyTickers returns every ticker registered with the SEC.
func (c *Client) CompanyTickers(ctx context.Context, force bool) ([]TickerEntry, error) {
	body, err := c.cached(ctx, c.tickers, "all", "company_tickers", c.endpoints.CompanyTickers, force)
	if err != nil {
		return nil, fmt.Errorf("fetch company tickers: %w", err)
	}
	var resp map[string]TickerEntry
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse company tickers: %w", err)
	}

	// Keys are "0", "1", ...; keep the SEC ordering.
	keys := make([]string, 0, len(resp))
	for k := range resp {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.Atoi(keys[i])
		b, errB := strconv.Atoi(keys[j])
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	out := make([]TickerEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, resp[k])
	}
	return out, nil
}

// LookupCIK resolves a ticker to its 10-digit CIK.
func (c *Client) LookupCIK(ctx context.Context, ticker string) (string, error) {
	want := models.NormalizeTicker(ticker)
	entries, err := c.CompanyTickers(ctx, false)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.EqualFold(e.Ticker, want) {
			return e.PaddedCIK(), nil
		}
	}
	return "", fmt.Errorf("ticker %s: %w", want, ErrNotFound)
}

// Submissions returns company metadata and recent filings.
func (c *Client) Submissions(ctx context.Context, cik string, force bool) (*Submissions, error) {
	cik = models.PadCIK(cik)
	url := fmt.Sprintf(c.endpoints.Submissions, cik)
	body, err := c.cached(ctx, c.submissions, cik, "submissions", url, force)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions for CIK %s: %w", cik, err)
	}
	var subs Submissions
	if err := json.Unmarshal(body, &subs); err != nil {
		return nil, fmt.Errorf("parse submissions for CIK %s: %w", cik, err)
	}
	return &subs, nil
}

// CompanyFacts returns all XBRL facts reported by a company.
func (c *Client) CompanyFacts(ctx context.Context, cik string, force bool) (*CompanyFacts, error) {
	cik = models.PadCIK(cik)
	url := fmt.Sprintf(c.endpoints.CompanyFacts, cik)
	body, err := c.cached(ctx, c.facts, cik, "companyfacts", url, force)
	if err != nil {
		return nil, fmt.Errorf("fetch company facts for CIK %s: %w", cik, err)
	}
	var facts CompanyFacts
	if err := json.Unmarshal(body, &facts); err != nil {
		return nil, fmt.Errorf("parse company facts for CIK %s: %w", cik, err)
	}
	return &facts, nil
}

// CompanyConcept returns the values of a single us-gaap tag.
func (c *Client) CompanyConcept(ctx context.Context, cik, tag string, force bool) (*CompanyConcept, error) {
	cik = models.PadCIK(cik)
	url := fmt.Sprintf(c.endpoints.CompanyConcept, cik, "us-gaap", tag)
	body, err := c.cached(ctx, c.concepts, cik+"_"+tag, "companyconcept", url, force)
	if err != nil {
		return nil, fmt.Errorf("fetch concept %s for CIK %s: %w", tag, cik, err)
	}
	var concept CompanyConcept
	if err := json.Unmarshal(body, &concept); err != nil {
		return nil, fmt.Errorf("parse concept %s for CIK %s: %w", tag, cik, err)
	}
	return &concept, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) cached(ctx context.Context, dc *cache.DataCache, key, endpoint, url string, force bool) ([]byte, error) {
	if force {
		c.metrics.CacheResult(dc.Name(), "bypass")
	} else if body, ok := dc.Get(key); ok {
		c.metrics.CacheResult(dc.Name(), "hit")
		return body, nil
	} else {
		c.metrics.CacheResult(dc.Name(), "miss")
	}

	body, err := c.fetch(ctx, endpoint, url)
	if err != nil {
		return nil, err
	}
	dc.SetWithTTL(key, body, dc.DefaultTTL(), map[string]string{"url": url})
	return body, nil
}

func (c *Client) fetch(ctx context.Context, endpoint, url string) ([]byte, error) {
	if c.userAgent == "" {
		return nil, ErrNoUserAgent
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// SEC requires User-Agent header
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, text/html")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, "error", time.Since(start))
		return nil, fmt.Errorf("SEC request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	c.log.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"status":   resp.StatusCode,
		"elapsed":  time.Since(start).String(),
	}).Debug("edgar request")

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("SEC returned status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
