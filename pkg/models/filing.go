package models

import (
	"strings"
	"time"
)

// Filing is one SEC submission (10-K, 10-Q, ...) for a company.
type Filing struct {
	AccessionNumber string     `json:"accession_number"`
	CompanyID       string     `json:"company_id"`
	FormType        string     `json:"form_type"`
	FilingDate      time.Time  `json:"filing_date"`
	PeriodEndDate   time.Time  `json:"period_end_date,omitempty"`
	PrimaryDocument string     `json:"primary_document,omitempty"`
	URL             string     `json:"url,omitempty"`
	FileNumber      string     `json:"file_number,omitempty"`
	IsAmended       bool       `json:"is_amended"`
	IsProcessed     bool       `json:"is_processed"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

// BaseForm strips the amendment suffix ("10-K/A" -> "10-K").
func (f Filing) BaseForm() string {
	return strings.TrimSuffix(strings.ToUpper(f.FormType), "/A")
}

// IsAnnual reports whether the filing is an annual report.
func (f Filing) IsAnnual() bool {
	return f.BaseForm() == "10-K"
}

// IsQuarterly reports whether the filing is a quarterly report.
func (f Filing) IsQuarterly() bool {
	return f.BaseForm() == "10-Q"
}

// FiscalYear is the calendar year of the reporting period end, falling back to
// the filing date when no period is known.
func (f Filing) FiscalYear() int {
	if !f.PeriodEndDate.IsZero() {
		return f.PeriodEndDate.Year()
	}
	return f.FilingDate.Year()
}

// FiscalQuarter returns 1-4 for quarterly filings and 0 otherwise.
func (f Filing) FiscalQuarter() int {
	if !f.IsQuarterly() || f.PeriodEndDate.IsZero() {
		return 0
	}
	return (int(f.PeriodEndDate.Month())-1)/3 + 1
}
