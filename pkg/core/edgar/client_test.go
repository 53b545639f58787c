package edgar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/telemetry"
)

const tickersJSON = `{
  "0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."},
  "1": {"cik_str": 789019, "ticker": "MSFT", "title": "MICROSOFT CORP"},
  "2": {"cik_str": 1652044, "ticker": "GOOGL", "title": "Alphabet Inc."}
}`

const submissionsJSON = `{
  "cik": "320193",
  "name": "Apple Inc.",
  "sic": "3571",
  "sicDescription": "Electronic Computers",
  "tickers": ["AAPL"],
  "exchanges": ["Nasdaq"],
  "filings": {"recent": {
    "accessionNumber": ["0000320193-24-000123", "0000320193-24-000081", "0000320193-23-000106", "0000320193-22-000108"],
    "filingDate":      ["2024-11-01", "2024-08-02", "2023-11-03", "2022-10-28"],
    "reportDate":      ["2024-09-28", "2024-06-29", "2023-09-30", "2022-09-24"],
    "form":            ["10-K", "10-Q", "10-K", "10-K"],
    "primaryDocument": ["aapl-20240928.htm", "aapl-20240629.htm", "aapl-20230930.htm", "aapl-20220924.htm"],
    "fileNumber":      ["001-36743", "001-36743", "001-36743", "001-36743"]
  }}
}`

const factsJSON = `{
  "cik": 320193,
  "entityName": "Apple Inc.",
  "facts": {"us-gaap": {
    "Assets": {"label": "Assets", "units": {"USD": [
      {"end": "2023-09-30", "val": 352583000000, "accn": "0000320193-23-000106", "fy": 2023, "fp": "FY", "form": "10-K", "filed": "2023-11-03", "frame": "CY2023Q3I"}
    ]}}
  }}
}`

type fixture struct {
	srv   *httptest.Server
	hits  map[string]*int32
	agent atomic.Value
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{hits: map[string]*int32{}}
	for _, k := range []string{"tickers", "submissions", "facts", "concept", "index"} {
		f.hits[k] = new(int32)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/files/company_tickers.json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(f.hits["tickers"], 1)
		f.agent.Store(r.Header.Get("User-Agent"))
		fmt.Fprint(w, tickersJSON)
	})
	mux.HandleFunc("/submissions/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(f.hits["submissions"], 1)
		if !strings.HasSuffix(r.URL.Path, "CIK0000320193.json") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, submissionsJSON)
	})
	mux.HandleFunc("/api/xbrl/companyfacts/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(f.hits["facts"], 1)
		fmt.Fprint(w, factsJSON)
	})
	mux.HandleFunc("/api/xbrl/companyconcept/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(f.hits["concept"], 1)
		if !strings.HasSuffix(r.URL.Path, "/us-gaap/Assets.json") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"cik": 320193, "taxonomy": "us-gaap", "tag": "Assets", "entityName": "Apple Inc.",
		  "units": {"USD": [{"end": "2023-09-30", "val": 352583000000, "accn": "0000320193-23-000106", "fy": 2023, "fp": "FY", "form": "10-K", "filed": "2023-11-03"}]}}`)
	})
	mux.HandleFunc("/Archives/edgar/data/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(f.hits["index"], 1)
		fmt.Fprint(w, indexHTML)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) endpoints() Endpoints {
	base := f.srv.URL
	return Endpoints{
		CompanyTickers: base + "/files/company_tickers.json",
		Submissions:    base + "/submissions/CIK%s.json",
		CompanyFacts:   base + "/api/xbrl/companyfacts/CIK%s.json",
		CompanyConcept: base + "/api/xbrl/companyconcept/CIK%s/%s/%s.json",
		Archives:       base + "/Archives/edgar/data",
		Site:           base,
	}
}

func (f *fixture) client(opts ...Option) *Client {
	all := append([]Option{WithEndpoints(f.endpoints()), WithRateLimit(0)}, opts...)
	return NewClient("Test Suite test@example.com", all...)
}

func TestCompanyTickersAndLookup(t *testing.T) {
	f := newFixture(t)
	c := f.client()
	ctx := context.Background()

	entries, err := c.CompanyTickers(ctx, false)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "AAPL", entries[0].Ticker)
	assert.Equal(t, "GOOGL", entries[2].Ticker)
	assert.Equal(t, "Test Suite test@example.com", f.agent.Load())

	cik, err := c.LookupCIK(ctx, " msft ")
	require.NoError(t, err)
	assert.Equal(t, "0000789019", cik)

	_, err = c.LookupCIK(ctx, "ZZZZ")
	assert.True(t, errors.Is(err, ErrNotFound))

	// Lookups after the first call are served from cache.
	assert.Equal(t, int32(1), atomic.LoadInt32(f.hits["tickers"]))
}

func TestSubmissionsCachingAndForce(t *testing.T) {
	f := newFixture(t)
	reg := prometheus.NewRegistry()
	m := telemetry.New(reg)
	c := f.client(WithMetrics(m))
	ctx := context.Background()

	subs, err := c.Submissions(ctx, "320193", false)
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", subs.Name)
	assert.Equal(t, "Electronic Computers", subs.SICDescription)
	require.Len(t, subs.Filings.Recent.Records(), 4)

	_, err = c.Submissions(ctx, "0000320193", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(f.hits["submissions"]))

	_, err = c.Submissions(ctx, "320193", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(f.hits["submissions"]))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("submissions", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("submissions", "bypass")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.EDGARRequests.WithLabelValues("submissions", "200")))
}

func TestSubmissionsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.client().Submissions(context.Background(), "1", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCompanyFactsAndConcept(t *testing.T) {
	f := newFixture(t)
	c := f.client()
	ctx := context.Background()

	facts, err := c.CompanyFacts(ctx, "320193", false)
	require.NoError(t, err)
	assert.Equal(t, "320193", facts.CIK.String())
	assets := facts.Taxonomy("us-gaap")["Assets"]
	require.Len(t, assets.Units["USD"], 1)
	assert.Equal(t, 352583000000.0, assets.Units["USD"][0].Val)

	concept, err := c.CompanyConcept(ctx, "320193", "Assets", false)
	require.NoError(t, err)
	assert.Equal(t, "Assets", concept.Tag)

	_, err = c.CompanyConcept(ctx, "320193", "Missing", false)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMissingUserAgent(t *testing.T) {
	f := newFixture(t)
	c := NewClient("  ", WithEndpoints(f.endpoints()))
	_, err := c.CompanyTickers(context.Background(), false)
	assert.True(t, errors.Is(err, ErrNoUserAgent))
	assert.Equal(t, int32(0), atomic.LoadInt32(f.hits["tickers"]))
}

func TestCacheSnapshotsSurviveRestart(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	ctx := context.Background()

	first := f.client(WithCacheDir(dir))
	_, err := first.CompanyFacts(ctx, "320193", false)
	require.NoError(t, err)
	require.NoError(t, first.SaveCaches())

	second := f.client(WithCacheDir(dir))
	_, err = second.CompanyFacts(ctx, "320193", false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(f.hits["facts"]))

	second.ClearCaches()
	_, err = second.CompanyFacts(ctx, "320193", false)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(f.hits["facts"]))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	f := newFixture(t)
	c := f.client(WithRateLimit(0.001))
	ctx := context.Background()

	// The first token is available immediately.
	_, err := c.CompanyTickers(ctx, false)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = c.CompanyTickers(ctx, true)
	assert.Error(t, err)
}
