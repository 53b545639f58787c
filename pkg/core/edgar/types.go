package edgar

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// =============================================================================
// SEC EDGAR RESPONSE TYPES
// =============================================================================

// TickerEntry is one row of company_tickers.json.
// Format: {"0": {"cik_str": 320193, "ticker": "AAPL", "title": "Apple Inc."}, ...}
type TickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// PaddedCIK returns the 10-digit CIK.
func (e TickerEntry) PaddedCIK() string {
	return models.PadCIK(strconv.FormatInt(e.CIK, 10))
}

// Submissions is the top-level response of the submissions endpoint.
type Submissions struct {
	CIK                  string   `json:"cik"`
	EntityType           string   `json:"entityType"`
	SIC                  string   `json:"sic"`
	SICDescription       string   `json:"sicDescription"`
	Name                 string   `json:"name"`
	Tickers              []string `json:"tickers"`
	Exchanges            []string `json:"exchanges"`
	Description          string   `json:"description"`
	Website              string   `json:"website"`
	FiscalYearEnd        string   `json:"fiscalYearEnd"`
	StateOfIncorporation string   `json:"stateOfIncorporation"`
	Filings              struct {
		Recent RecentFilings `json:"recent"`
	} `json:"filings"`
}

// RecentFilings holds the filing attributes as parallel arrays.
type RecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"` // e.g., "0000320193-23-000106"
	FilingDate      []string `json:"filingDate"`
	ReportDate      []string `json:"reportDate"`
	Form            []string `json:"form"`
	PrimaryDocument []string `json:"primaryDocument"`
	FileNumber      []string `json:"fileNumber"`
	Size            []int    `json:"size"`
}

// FilingRecord is one filing denormalized from RecentFilings.
type FilingRecord struct {
	AccessionNumber string
	FilingDate      time.Time
	ReportDate      time.Time
	Form            string
	PrimaryDocument string
	FileNumber      string
}

// Records zips the parallel arrays. Rows with an unparsable filing date are
// skipped; a missing report date is left zero.
func (r RecentFilings) Records() []FilingRecord {
	out := make([]FilingRecord, 0, len(r.AccessionNumber))
	for i, acc := range r.AccessionNumber {
		filed, err := time.Parse(models.DateLayout, at(r.FilingDate, i))
		if err != nil {
			continue
		}
		rec := FilingRecord{
			AccessionNumber: acc,
			FilingDate:      filed,
			Form:            at(r.Form, i),
			PrimaryDocument: at(r.PrimaryDocument, i),
			FileNumber:      at(r.FileNumber, i),
		}
		if rd, err := time.Parse(models.DateLayout, at(r.ReportDate, i)); err == nil {
			rec.ReportDate = rd
		}
		out = append(out, rec)
	}
	return out
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

// CompanyFacts is the companyfacts response: taxonomy -> tag -> concept.
type CompanyFacts struct {
	CIK        json.Number                   `json:"cik"`
	EntityName string                        `json:"entityName"`
	Facts      map[string]map[string]Concept `json:"facts"`
}

// Concept is a single XBRL concept with its values grouped by unit.
type Concept struct {
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	Units       map[string][]FactValue `json:"units"`
}

// FactValue is a single reported value.
type FactValue struct {
	Start string  `json:"start,omitempty"`
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Accn  string  `json:"accn"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"`
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
	Frame string  `json:"frame,omitempty"`
}

// EndDate parses End.
func (f FactValue) EndDate() (time.Time, bool) {
	return parseDate(f.End)
}

// StartDate parses Start; instants have none.
func (f FactValue) StartDate() (time.Time, bool) {
	return parseDate(f.Start)
}

// FiledDate parses Filed.
func (f FactValue) FiledDate() (time.Time, bool) {
	return parseDate(f.Filed)
}

// DurationDays is the number of days covered by a duration fact, or 0 for
// instants.
func (f FactValue) DurationDays() int {
	start, ok1 := f.StartDate()
	end, ok2 := f.EndDate()
	if !ok1 || !ok2 {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Taxonomy returns the concepts of one taxonomy ("us-gaap", "dei", ...).
func (c *CompanyFacts) Taxonomy(name string) map[string]Concept {
	if c == nil || c.Facts == nil {
		return nil
	}
	return c.Facts[name]
}

// CompanyConcept is the companyconcept response for one tag.
type CompanyConcept struct {
	CIK         json.Number            `json:"cik"`
	Taxonomy    string                 `json:"taxonomy"`
	Tag         string                 `json:"tag"`
	Label       string                 `json:"label"`
	Description string                 `json:"description"`
	EntityName  string                 `json:"entityName"`
	Units       map[string][]FactValue `json:"units"`
}

// FilingDocument is one row of a filing index page.
type FilingDocument struct {
	Seq         string `json:"seq"`
	Description string `json:"description"`
	Document    string `json:"document"`
	Type        string `json:"type"`
	Size        int    `json:"size"`
	URL         string `json:"url"`
}

// IsPrimary reports whether the document is the main filing body.
func (d FilingDocument) IsPrimary(form string) bool {
	return strings.EqualFold(d.Type, form) && d.Seq == "1"
}
