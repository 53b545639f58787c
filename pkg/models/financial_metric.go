package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format EDGAR uses for dates.
const DateLayout = "2006-01-02"

// MetricPeriod is the reporting window an observation covers.
type MetricPeriod string

const (
	PeriodAnnual     MetricPeriod = "annual"
	PeriodQuarterly  MetricPeriod = "quarterly"
	PeriodTTM        MetricPeriod = "trailing_twelve_months"
	PeriodYearToDate MetricPeriod = "year_to_date"
)

// ParsePeriod accepts the canonical names plus the short aliases used on the
// query string (ttm, ytd, fy, q).
func ParsePeriod(s string) (MetricPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annual", "fy", "year":
		return PeriodAnnual, nil
	case "quarterly", "q", "quarter":
		return PeriodQuarterly, nil
	case "trailing_twelve_months", "ttm":
		return PeriodTTM, nil
	case "year_to_date", "ytd":
		return PeriodYearToDate, nil
	}
	return "", fmt.Errorf("unknown metric period %q", s)
}

// FinancialMetric is a single observation of a canonical metric for a company.
// Identity is (CompanyID, Name, Period, Date).
type FinancialMetric struct {
	CompanyID         string       `json:"company_id"`
	Name              string       `json:"name"`
	Value             float64      `json:"value"`
	Date              time.Time    `json:"date"`
	Period            MetricPeriod `json:"period"`
	Unit              string       `json:"unit,omitempty"`
	Decimals          *int         `json:"decimals,omitempty"`
	FilingID          string       `json:"filing_id,omitempty"`
	XBRLTag           string       `json:"xbrl_tag,omitempty"`
	XBRLContext       string       `json:"xbrl_context,omitempty"`
	FiscalYear        int          `json:"fiscal_year,omitempty"`
	FiscalPeriod      string       `json:"fiscal_period,omitempty"`
	FiledAt           time.Time    `json:"filed_at,omitempty"`
	IsCalculated      bool         `json:"is_calculated"`
	CalculationMethod string       `json:"calculation_method,omitempty"`
	ConfidenceScore   float64      `json:"confidence_score,omitempty"`
	RecordedAt        time.Time    `json:"recorded_at"`
}

// Key renders the observation identity. Saving a metric with an existing key
// overwrites the previous value.
func (m FinancialMetric) Key() string {
	return MetricKey(m.CompanyID, m.Name, m.Period, m.Date)
}

// MetricKey builds an identity key without a FinancialMetric value.
func MetricKey(companyID, name string, period MetricPeriod, date time.Time) string {
	return fmt.Sprintf("%s_%s_%s_%s", NormalizeTicker(companyID), name, period, date.Format(DateLayout))
}

// DataPoint is one (date, value) pair of a time series.
type DataPoint struct {
	Date  time.Time
	Value float64
}

type dataPointJSON struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// MarshalJSON writes the date as YYYY-MM-DD.
func (p DataPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(dataPointJSON{Date: p.Date.Format(DateLayout), Value: p.Value})
}

// UnmarshalJSON reads the YYYY-MM-DD form written by MarshalJSON.
func (p *DataPoint) UnmarshalJSON(b []byte) error {
	var raw dataPointJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d, err := time.Parse(DateLayout, raw.Date)
	if err != nil {
		return fmt.Errorf("data point date: %w", err)
	}
	p.Date, p.Value = d, raw.Value
	return nil
}
