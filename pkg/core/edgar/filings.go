package edgar

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// FilingLink points at the human-readable views of a filing.
type FilingLink struct {
	AccessionNumber string `json:"accession_number"`
	Form            string `json:"form"`
	FilingDate      string `json:"filing_date"`
	ReportDate      string `json:"report_date,omitempty"`
	PrimaryDocument string `json:"primary_document"`
	ViewerURL       string `json:"viewer_url"`
	DocumentURL     string `json:"document_url"`
	IndexURL        string `json:"index_url"`
}

// DocumentURL builds the archive URL of a document inside a filing.
func DocumentURL(cik, accession, document string) string {
	return fmt.Sprintf("%s/%s/%s/%s", archivesBaseURL, models.TrimCIK(cik), accessionNoDashes(accession), document)
}

// ViewerURL builds the inline XBRL viewer URL of a document.
func ViewerURL(cik, accession, document string) string {
	return fmt.Sprintf("%s/ix?doc=/Archives/edgar/data/%s/%s/%s", secBaseURL, models.TrimCIK(cik), accessionNoDashes(accession), document)
}

// IndexURL builds the filing index page URL.
func IndexURL(cik, accession string) string {
	return indexURL(archivesBaseURL, cik, accession)
}

func indexURL(base, cik, accession string) string {
	return fmt.Sprintf("%s/%s/%s/%s-index.htm", base, models.TrimCIK(cik), accessionNoDashes(accession), accession)
}

func accessionNoDashes(accession string) string {
	return strings.ReplaceAll(accession, "-", "")
}

// TenKFilings lists the most recent annual reports (10-K, 10-K/A) newest
// first. Filings dated after now are skipped. limit <= 0 returns all.
func TenKFilings(subs *Submissions, limit int, now time.Time) []FilingLink {
	if subs == nil {
		return nil
	}
	records := subs.Filings.Recent.Records()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].FilingDate.After(records[j].FilingDate)
	})

	var out []FilingLink
	for _, r := range records {
		form := strings.ToUpper(r.Form)
		if form != "10-K" && form != "10-K/A" {
			continue
		}
		if r.FilingDate.After(now) {
			continue
		}
		link := FilingLink{
			AccessionNumber: r.AccessionNumber,
			Form:            r.Form,
			FilingDate:      r.FilingDate.Format(models.DateLayout),
			PrimaryDocument: r.PrimaryDocument,
			ViewerURL:       ViewerURL(subs.CIK, r.AccessionNumber, r.PrimaryDocument),
			DocumentURL:     DocumentURL(subs.CIK, r.AccessionNumber, r.PrimaryDocument),
			IndexURL:        IndexURL(subs.CIK, r.AccessionNumber),
		}
		if !r.ReportDate.IsZero() {
			link.ReportDate = r.ReportDate.Format(models.DateLayout)
		}
		out = append(out, link)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// FilingDocuments fetches a filing index page and lists its documents.
// Index pages are not cached.
func (c *Client) FilingDocuments(ctx context.Context, cik, accession string) ([]FilingDocument, error) {
	url := indexURL(c.endpoints.Archives, cik, accession)
	body, err := c.fetch(ctx, "filing_index", url)
	if err != nil {
		return nil, fmt.Errorf("fetch filing index %s: %w", accession, err)
	}
	docs, err := ParseFilingIndex(body, c.endpoints.Site)
	if err != nil {
		return nil, fmt.Errorf("parse filing index %s: %w", accession, err)
	}
	return docs, nil
}

// ParseFilingIndex extracts the document table (table.tableFile) of an EDGAR
// filing index page. Relative links are resolved against site.
func ParseFilingIndex(body []byte, site string) ([]FilingDocument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var docs []FilingDocument
	doc.Find("table.tableFile").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return // header row uses th
		}
		cell := func(i int) string {
			return strings.TrimSpace(strings.ReplaceAll(cells.Eq(i).Text(), "\u00a0", " "))
		}

		link := cells.Eq(2).Find("a").First()
		name := strings.TrimSpace(link.Text())
		if name == "" {
			name = cell(2)
		}
		d := FilingDocument{
			Seq:         cell(0),
			Description: cell(1),
			Document:    name,
			Type:        cell(3),
		}
		if cells.Length() > 4 {
			d.Size, _ = strconv.Atoi(cell(4))
		}
		if href, ok := link.Attr("href"); ok {
			if strings.HasPrefix(href, "/") {
				href = strings.TrimRight(site, "/") + href
			}
			d.URL = href
		}
		docs = append(docs, d)
	})
	return docs, nil
}
