// Package export writes analysis results as spreadsheets.
package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/analysis"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

const (
	SummarySheet = "Summary"
	SeriesSheet  = "Series"
)

// ComparisonWorkbook lays out a metric comparison in two sheets: one summary
// row per ticker, and the aligned time series with one column per ticker.
// The caller must Close the returned file.
func ComparisonWorkbook(metric string, cmp map[string]analysis.Comparison) (*excelize.File, error) {
	tickers := make([]string, 0, len(cmp))
	for t := range cmp {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, metric, tickers, cmp); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SeriesSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSeries(f, tickers, cmp); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// WriteComparison streams the comparison workbook as xlsx to w.
func WriteComparison(w io.Writer, metric string, cmp map[string]analysis.Comparison) error {
	f, err := ComparisonWorkbook(metric, cmp)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, metric string, tickers []string, cmp map[string]analysis.Comparison) error {
	header := []interface{}{"Ticker", "Company", metric, "Period end", "YoY growth", "CAGR"}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return err
	}
	for i, t := range tickers {
		c := cmp[t]
		row := []interface{}{t, c.CompanyName, c.LatestValue, c.LatestDate, optional(c.GrowthRate), optional(c.CAGR)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func writeSeries(f *excelize.File, tickers []string, cmp map[string]analysis.Comparison) error {
	values := make(map[string]map[string]float64, len(tickers))
	dateSet := make(map[string]bool)
	for _, t := range tickers {
		values[t] = make(map[string]float64)
		for _, p := range cmp[t].TimeSeries {
			d := p.Date.Format(models.DateLayout)
			values[t][d] = p.Value
			dateSet[d] = true
		}
	}
	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	header := make([]interface{}, 0, len(tickers)+1)
	header = append(header, "Date")
	for _, t := range tickers {
		header = append(header, t)
	}
	if err := f.SetSheetRow(SeriesSheet, "A1", &header); err != nil {
		return err
	}
	for i, d := range dates {
		row := make([]interface{}, 0, len(tickers)+1)
		row = append(row, d)
		for _, t := range tickers {
			if v, ok := values[t][d]; ok {
				row = append(row, v)
			} else {
				row = append(row, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SeriesSheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func optional(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
