package calc

import "sort"

// Canonical metric names used as ratio inputs.
const (
	Revenue            = "Revenue"
	CostOfRevenue      = "CostOfRevenue"
	GrossProfit        = "GrossProfit"
	OperatingIncome    = "OperatingIncome"
	NetIncome          = "NetIncome"
	EPS                = "EPS"
	TotalAssets        = "TotalAssets"
	TotalLiabilities   = "TotalLiabilities"
	CurrentAssets      = "CurrentAssets"
	CurrentLiabilities = "CurrentLiabilities"
	Inventory          = "Inventory"
	StockholdersEquity = "StockholdersEquity"
)

// Snapshot is the latest annual value of each canonical metric for one
// company. A missing key means the metric is not reported.
type Snapshot map[string]float64

// Get returns the value and whether it is present.
func (s Snapshot) Get(name string) (float64, bool) {
	v, ok := s[name]
	return v, ok
}

// Category groups ratios in reports.
type Category string

const (
	Liquidity     Category = "liquidity_ratios"
	Solvency      Category = "solvency_ratios"
	Profitability Category = "profitability_ratios"
	Valuation     Category = "valuation_ratios"
)

// Interpretation gives rule-of-thumb thresholds.
type Interpretation struct {
	Good    string `json:"good"`
	Concern string `json:"concern"`
}

// Ratio describes one financial ratio.
type Ratio struct {
	// Key is the short name used in ratio maps (ROA, DebtToEquity, ...).
	Key string
	// ReportKey is the snake_case name used in categorized reports.
	ReportKey      string
	Category       Category
	Description    string
	Formula        string
	Interpretation Interpretation
	// Inputs lists the metrics whose data year dates the ratio.
	Inputs  []string
	compute func(s Snapshot) (float64, bool)
}

// Compute evaluates the ratio. ok is false when an input is missing, the
// denominator is zero or the result is not finite.
func (r Ratio) Compute(s Snapshot) (float64, bool) {
	if r.compute == nil {
		return 0, false
	}
	return r.compute(s)
}

func quotient(num, den string) func(Snapshot) (float64, bool) {
	return func(s Snapshot) (float64, bool) {
		n, ok1 := s.Get(num)
		d, ok2 := s.Get(den)
		if !ok1 || !ok2 {
			return 0, false
		}
		return safeDiv(n, d)
	}
}

var ratios = []Ratio{
	{
		Key: "CurrentRatio", ReportKey: "current_ratio", Category: Liquidity,
		Description:    "Measures a company's ability to pay short-term obligations",
		Formula:        "Current Assets / Current Liabilities",
		Interpretation: Interpretation{Good: "> 1.5", Concern: "< 1.0"},
		Inputs:         []string{CurrentAssets, CurrentLiabilities},
		compute:        quotient(CurrentAssets, CurrentLiabilities),
	},
	{
		Key: "QuickRatio", ReportKey: "quick_ratio", Category: Liquidity,
		Description:    "Measures a company's ability to pay short-term obligations with its most liquid assets",
		Formula:        "(Current Assets - Inventory) / Current Liabilities",
		Interpretation: Interpretation{Good: "> 1.0", Concern: "< 0.7"},
		Inputs:         []string{CurrentAssets, CurrentLiabilities},
		compute: func(s Snapshot) (float64, bool) {
			ca, ok1 := s.Get(CurrentAssets)
			cl, ok2 := s.Get(CurrentLiabilities)
			if !ok1 || !ok2 {
				return 0, false
			}
			inv, _ := s.Get(Inventory) // absent inventory counts as zero
			return safeDiv(ca-inv, cl)
		},
	},
	{
		Key: "DebtToEquity", ReportKey: "debt_to_equity", Category: Solvency,
		Description:    "Measures a company's financial leverage",
		Formula:        "Total Liabilities / Stockholders' Equity",
		Interpretation: Interpretation{Good: "< 1.5", Concern: "> 2.0"},
		Inputs:         []string{TotalLiabilities, StockholdersEquity},
		compute:        quotient(TotalLiabilities, StockholdersEquity),
	},
	{
		Key: "ROA", ReportKey: "return_on_assets", Category: Profitability,
		Description:    "Measures how efficiently a company is using its assets to generate profit",
		Formula:        "Net Income / Total Assets",
		Interpretation: Interpretation{Good: "> 5%", Concern: "< 2%"},
		Inputs:         []string{NetIncome, TotalAssets},
		compute:        quotient(NetIncome, TotalAssets),
	},
	{
		Key: "ROE", ReportKey: "return_on_equity", Category: Profitability,
		Description:    "Measures how efficiently a company is using its equity to generate profit",
		Formula:        "Net Income / Stockholders' Equity",
		Interpretation: Interpretation{Good: "> 15%", Concern: "< 10%"},
		Inputs:         []string{NetIncome, StockholdersEquity},
		compute:        quotient(NetIncome, StockholdersEquity),
	},
	{
		Key: "GrossMargin", ReportKey: "gross_margin", Category: Profitability,
		Description:    "Measures the percentage of revenue that exceeds the cost of goods sold",
		Formula:        "(Revenue - COGS) / Revenue",
		Interpretation: Interpretation{Good: "Industry dependent, higher is better", Concern: "Declining over time"},
		Inputs:         []string{Revenue},
		compute: func(s Snapshot) (float64, bool) {
			rev, ok := s.Get(Revenue)
			if !ok {
				return 0, false
			}
			if cogs, ok := s.Get(CostOfRevenue); ok {
				return safeDiv(rev-cogs, rev)
			}
			if gp, ok := s.Get(GrossProfit); ok {
				return safeDiv(gp, rev)
			}
			return 0, false
		},
	},
	{
		Key: "OperatingMargin", ReportKey: "operating_margin", Category: Profitability,
		Description:    "Measures operating income generated per unit of revenue",
		Formula:        "Operating Income / Revenue",
		Interpretation: Interpretation{Good: "> 15%", Concern: "< 5%"},
		Inputs:         []string{OperatingIncome, Revenue},
		compute:        quotient(OperatingIncome, Revenue),
	},
	{
		Key: "ProfitMargin", ReportKey: "net_profit_margin", Category: Profitability,
		Description:    "Measures how much net profit is generated as a percentage of revenue",
		Formula:        "Net Income / Revenue",
		Interpretation: Interpretation{Good: "> 10%", Concern: "< 5%"},
		Inputs:         []string{NetIncome, Revenue},
		compute:        quotient(NetIncome, Revenue),
	},
}

// PriceToEarnings describes the P/E ratio. It needs a market price, so it is
// not part of Ratios.
var PriceToEarnings = Ratio{
	Key: "PriceToEarnings", ReportKey: "price_to_earnings", Category: Valuation,
	Description:    "Measures the current share price relative to earnings per share",
	Formula:        "Current Stock Price / Earnings Per Share",
	Interpretation: Interpretation{Good: "Industry dependent, 10-20 is typical", Concern: "> 30 may indicate overvaluation"},
	Inputs:         []string{EPS},
}

// PE computes price / EPS from the snapshot.
func PE(s Snapshot, price float64) (float64, bool) {
	eps, ok := s.Get(EPS)
	if !ok {
		return 0, false
	}
	return safeDiv(price, eps)
}

// Ratios returns the price-independent ratio definitions in report order.
func Ratios() []Ratio {
	return append([]Ratio(nil), ratios...)
}

// RatioByKey finds a ratio by Key or ReportKey.
func RatioByKey(key string) (Ratio, bool) {
	for _, r := range ratios {
		if r.Key == key || r.ReportKey == key {
			return r, true
		}
	}
	if key == PriceToEarnings.Key || key == PriceToEarnings.ReportKey {
		return PriceToEarnings, true
	}
	return Ratio{}, false
}

// ComputeRatios evaluates every ratio on s. Ratios that cannot be computed
// (missing input, zero denominator) are absent from the result.
func ComputeRatios(s Snapshot) map[string]float64 {
	out := make(map[string]float64, len(ratios))
	for _, r := range ratios {
		if v, ok := r.Compute(s); ok {
			out[r.Key] = v
		}
	}
	return out
}

// RatioKeys lists the Key of every ratio, sorted.
func RatioKeys() []string {
	keys := make([]string, 0, len(ratios)+1)
	for _, r := range ratios {
		keys = append(keys, r.Key)
	}
	keys = append(keys, PriceToEarnings.Key)
	sort.Strings(keys)
	return keys
}
