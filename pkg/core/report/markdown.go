// Package report renders company summaries as Markdown and HTML.
package report

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/analysis"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/calc"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// DefaultMetrics are the metrics summarized when the caller names none.
var DefaultMetrics = []string{
	calc.Revenue,
	calc.NetIncome,
	calc.OperatingIncome,
	calc.TotalAssets,
	calc.StockholdersEquity,
	calc.EPS,
}

// CompanyData is everything a company report shows.
type CompanyData struct {
	Company models.Company
	Metrics []analysis.MetricAnalysis
	Ratios  *analysis.RatioReport
}

// Collect gathers the annual analysis of metrics and the ratio report for a
// company. Metrics without data are left out.
func Collect(ctx context.Context, svc *analysis.Service, company models.Company, metrics []string) CompanyData {
	if len(metrics) == 0 {
		metrics = DefaultMetrics
	}
	data := CompanyData{Company: company}
	for _, m := range metrics {
		a := svc.AnalyzeMetric(ctx, company.Ticker, m, models.PeriodAnnual)
		if len(a.TimeSeries) == 0 {
			continue
		}
		data.Metrics = append(data.Metrics, a)
	}
	data.Ratios = svc.RatioReport(ctx, company.Ticker, nil)
	return data
}

// CompanyMarkdown renders the report as GitHub-flavored Markdown.
func CompanyMarkdown(d CompanyData) string {
	var b strings.Builder
	c := d.Company

	fmt.Fprintf(&b, "# %s (%s)\n\n", orDash(c.Name), c.Ticker)
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| CIK | %s |\n", orDash(c.CIK))
	fmt.Fprintf(&b, "| Sector | %s |\n", orDash(c.Sector))
	fmt.Fprintf(&b, "| Industry | %s |\n", orDash(c.Industry))
	fmt.Fprintf(&b, "| Exchange | %s |\n", orDash(c.Exchange))
	if c.Website != "" {
		fmt.Fprintf(&b, "| Website | %s |\n", c.Website)
	}
	b.WriteString("\n")

	b.WriteString("## Key metrics (annual)\n\n")
	if len(d.Metrics) == 0 {
		b.WriteString("No annual data has been synchronized for this company.\n\n")
	} else {
		b.WriteString("| Metric | Latest | Period end | YoY growth | CAGR |\n|---|---:|---|---:|---:|\n")
		for _, m := range d.Metrics {
			last := m.TimeSeries[len(m.TimeSeries)-1]
			var yoy *float64
			if n := len(m.GrowthRates); n > 0 {
				yoy = m.GrowthRates[n-1].Rate
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				m.MetricName, Amount(last.Value), last.Date.Format(models.DateLayout), percent(yoy), percent(m.CAGR))
		}
		b.WriteString("\n")
	}

	if d.Ratios != nil {
		b.WriteString("## Financial ratios\n\n")
		for _, cat := range []calc.Category{calc.Liquidity, calc.Solvency, calc.Profitability, calc.Valuation} {
			entries := d.Ratios.Category(cat)
			if len(entries) == 0 {
				continue
			}
			fmt.Fprintf(&b, "### %s\n\n", categoryTitle(cat))
			b.WriteString("| Ratio | Value | Year | Good | Concern |\n|---|---:|---|---|---|\n")
			keys := make([]string, 0, len(entries))
			for k := range entries {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				e := entries[k]
				year := "-"
				if e.Year != nil {
					year = fmt.Sprint(*e.Year)
				}
				value := ratioValue(e.Value)
				if cat == calc.Profitability {
					value = percent(e.Value)
				}
				fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", title(k), value, year, e.Interpretation.Good, e.Interpretation.Concern)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderHTML converts Markdown to HTML with GFM tables enabled.
func RenderHTML(markdown string) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// Amount formats large figures with K/M/B/T suffixes.
func Amount(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}

func ratioValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// title turns snake_case keys into words: "debt_to_equity" -> "Debt To Equity".
func title(key string) string {
	parts := strings.Split(key, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

func categoryTitle(c calc.Category) string {
	return title(strings.TrimSuffix(string(c), "_ratios"))
}
