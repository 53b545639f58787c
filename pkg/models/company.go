package models

import (
	"fmt"
	"strings"
	"time"
)

// Company is a registrant tracked by the dashboard. Ticker is the primary key.
type Company struct {
	Ticker      string    `json:"ticker" db:"ticker"`
	Name        string    `json:"name" db:"name"`
	CIK         string    `json:"cik" db:"cik"`
	Sector      string    `json:"sector,omitempty" db:"sector"`
	Industry    string    `json:"industry,omitempty" db:"industry"`
	SICCode     string    `json:"sic_code,omitempty" db:"sic_code"`
	Exchange    string    `json:"exchange,omitempty" db:"exchange"`
	Description string    `json:"description,omitempty" db:"description"`
	Website     string    `json:"website,omitempty" db:"website"`
	FoundedYear int       `json:"founded_year,omitempty" db:"founded_year"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// PadCIK zero-pads a CIK to the 10 digits EDGAR expects in URLs.
func PadCIK(cik string) string {
	cik = strings.TrimLeft(strings.TrimSpace(cik), "0")
	return fmt.Sprintf("%010s", cik)
}

// TrimCIK strips the zero padding, as used in archive paths.
func TrimCIK(cik string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(cik), "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// CIKTickerMapping links an SEC Central Index Key to a trading symbol.
type CIKTickerMapping struct {
	CIK         string    `json:"cik"`
	Ticker      string    `json:"ticker"`
	CompanyName string    `json:"company_name"`
	Exchange    string    `json:"exchange,omitempty"`
	IsActive    bool      `json:"is_active"`
	LastUpdated time.Time `json:"last_updated"`
}

// EDGARURL returns the EDGAR company browse page for the mapping.
func (m CIKTickerMapping) EDGARURL() string {
	return "https://www.sec.gov/cgi-bin/browse-edgar?action=getcompany&CIK=" + PadCIK(m.CIK)
}
