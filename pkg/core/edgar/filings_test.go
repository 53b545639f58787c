package edgar

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dnaeon/go-vcr/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const indexHTML = `<html><body>
<div id="formDiv">
<table class="tableFile" summary="Document Format Files">
  <tr><th scope="col">Seq</th><th scope="col">Description</th><th scope="col">Document</th><th scope="col">Type</th><th scope="col">Size</th></tr>
  <tr class="blueRow">
    <td scope="row">1</td>
    <td scope="row">10-K</td>
    <td scope="row"><a href="/ix?doc=/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm">aapl-20230930.htm</a> &nbsp;&nbsp;<span class="mini">iXBRL</span></td>
    <td scope="row">10-K</td>
    <td scope="row">9470556</td>
  </tr>
  <tr>
    <td scope="row">2</td>
    <td scope="row">EX-21.1</td>
    <td scope="row"><a href="/Archives/edgar/data/320193/000032019323000106/a10-kexhibit2112023.htm">a10-kexhibit2112023.htm</a></td>
    <td scope="row">EX-21.1</td>
    <td scope="row">&nbsp;</td>
  </tr>
</table>
<table class="tableFile" summary="Data Files">
  <tr><td>9</td><td>XBRL INSTANCE</td><td><a href="/x.xml">x.xml</a></td><td>EX-101.INS</td><td>1</td></tr>
</table>
</div></body></html>`

func TestParseFilingIndex(t *testing.T) {
	docs, err := ParseFilingIndex([]byte(indexHTML), "https://www.sec.gov")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "1", docs[0].Seq)
	assert.Equal(t, "aapl-20230930.htm", docs[0].Document)
	assert.Equal(t, 9470556, docs[0].Size)
	assert.Equal(t, "https://www.sec.gov/ix?doc=/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm", docs[0].URL)
	assert.True(t, docs[0].IsPrimary("10-K"))

	assert.Equal(t, "EX-21.1", docs[1].Type)
	assert.Zero(t, docs[1].Size)
	assert.False(t, docs[1].IsPrimary("10-K"))
}

func TestFilingDocumentsFetchesIndex(t *testing.T) {
	f := newFixture(t)
	docs, err := f.client().FilingDocuments(context.Background(), "0000320193", "0000320193-23-000106")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.True(t, strings.HasPrefix(docs[0].URL, f.srv.URL))
}

func TestTenKFilings(t *testing.T) {
	var subs Submissions
	require.NoError(t, json.Unmarshal([]byte(submissionsJSON), &subs))

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	links := TenKFilings(&subs, 5, now)

	// The 2024-11-01 10-K is in the future relative to now; the 10-Q is not annual.
	require.Len(t, links, 2)
	assert.Equal(t, "0000320193-23-000106", links[0].AccessionNumber)
	assert.Equal(t, "2023-09-30", links[0].ReportDate)
	assert.Equal(t, "https://www.sec.gov/ix?doc=/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm", links[0].ViewerURL)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/aapl-20230930.htm", links[0].DocumentURL)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/0000320193-23-000106-index.htm", links[0].IndexURL)

	assert.Len(t, TenKFilings(&subs, 1, now), 1)
	assert.Len(t, TenKFilings(&subs, 0, now.AddDate(1, 0, 0)), 3)
	assert.Nil(t, TenKFilings(nil, 5, now))
}

func TestFactValueDates(t *testing.T) {
	fv := FactValue{Start: "2022-09-25", End: "2023-09-30", Filed: "2023-11-03"}
	assert.Equal(t, 370, fv.DurationDays())

	instant := FactValue{End: "2023-09-30"}
	assert.Zero(t, instant.DurationDays())
	_, ok := instant.StartDate()
	assert.False(t, ok)
}

// This test replays a recorded companyfacts call against the real SEC API.
// It skips by default if the cassette is absent and RECORD_CASSETTES != 1.
func TestCompanyFacts_Recorded(t *testing.T) {
	cassette := filepath.Join("testdata", "cassettes", "companyfacts_aapl")
	if _, err := os.Stat(cassette + ".yaml"); os.IsNotExist(err) {
		if os.Getenv("RECORD_CASSETTES") != "1" {
			t.Skipf("cassette missing; set RECORD_CASSETTES=1 to record: %s.yaml", cassette)
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(cassette), 0o755))
	}

	r, err := recorder.New(cassette)
	require.NoError(t, err)
	defer func() { _ = r.Stop() }()

	userAgent := os.Getenv("SEC_API_USER_AGENT")
	if userAgent == "" {
		userAgent = "sec-finance-dashboard tests dev@example.com"
	}
	c := NewClient(userAgent, WithHTTPClient(&http.Client{Transport: r}))
	facts, err := c.CompanyFacts(context.Background(), "320193", true)
	require.NoError(t, err)
	assert.NotEmpty(t, facts.EntityName)
	assert.NotEmpty(t, facts.Taxonomy("us-gaap"))
}
