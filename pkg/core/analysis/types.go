package analysis

import (
	"time"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/calc"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// Comparison is one company's entry in a cross-company metric comparison.
type Comparison struct {
	CompanyName string             `json:"company_name"`
	LatestValue float64            `json:"latest_value"`
	LatestDate  string             `json:"latest_date"`
	GrowthRate  *float64           `json:"growth_rate"`
	CAGR        *float64           `json:"cagr"`
	TimeSeries  []models.DataPoint `json:"time_series"`
}

// MetricAnalysis bundles a series with its growth statistics.
type MetricAnalysis struct {
	Ticker      string             `json:"ticker"`
	MetricName  string             `json:"metric_name"`
	Period      string             `json:"period"`
	TimeSeries  []models.DataPoint `json:"time_series"`
	GrowthRates []calc.GrowthPoint `json:"growth_rates"`
	CAGR        *float64           `json:"cagr"`
}

// RatioEntry is one ratio in a categorized report. Value and Year are nil
// when the inputs are not available.
type RatioEntry struct {
	Value          *float64            `json:"value"`
	Description    string              `json:"description"`
	Formula        string              `json:"formula"`
	Interpretation calc.Interpretation `json:"interpretation"`
	Year           *int                `json:"year"`
}

// ReportMetadata describes when and from which year a report was computed.
type ReportMetadata struct {
	CalculatedAt time.Time `json:"calculated_at"`
	DataYear     *int      `json:"data_year"`
}

// RatioReport groups ratios by category. Valuation ratios are present only
// when a market price was supplied.
type RatioReport struct {
	Ticker        string                `json:"ticker"`
	Name          string                `json:"name"`
	Liquidity     map[string]RatioEntry `json:"liquidity_ratios,omitempty"`
	Solvency      map[string]RatioEntry `json:"solvency_ratios,omitempty"`
	Profitability map[string]RatioEntry `json:"profitability_ratios,omitempty"`
	Valuation     map[string]RatioEntry `json:"valuation_ratios,omitempty"`
	Metadata      ReportMetadata        `json:"metadata"`
}

// Category returns the entries of one category, or nil.
func (r *RatioReport) Category(c calc.Category) map[string]RatioEntry {
	switch c {
	case calc.Liquidity:
		return r.Liquidity
	case calc.Solvency:
		return r.Solvency
	case calc.Profitability:
		return r.Profitability
	case calc.Valuation:
		return r.Valuation
	}
	return nil
}

// Only keeps the named categories; the others are cleared. An empty list
// keeps everything.
func (r *RatioReport) Only(categories ...calc.Category) {
	if len(categories) == 0 {
		return
	}
	keep := make(map[calc.Category]bool, len(categories))
	for _, c := range categories {
		keep[c] = true
	}
	if !keep[calc.Liquidity] {
		r.Liquidity = nil
	}
	if !keep[calc.Solvency] {
		r.Solvency = nil
	}
	if !keep[calc.Profitability] {
		r.Profitability = nil
	}
	if !keep[calc.Valuation] {
		r.Valuation = nil
	}
}

// RatioComparison is one ticker's entry in a ratio comparison.
type RatioComparison struct {
	Name   string       `json:"name,omitempty"`
	Ratios *RatioReport `json:"ratios,omitempty"`
	Error  string       `json:"error,omitempty"`
}
