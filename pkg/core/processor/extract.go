package processor

import (
	"sort"
	"strings"
	"time"

	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/edgar"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/mapping"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/core/timeseries"
	"github.com/erdiiyilmazz/sec-finance-dashboard/pkg/models"
)

// Duration windows (in days) used to classify reported facts.
const (
	minAnnualDays  = 340
	maxAnnualDays  = 380
	minQuarterDays = 80
	maxQuarterDays = 100
	minTTMSpanDays = 250 // end of first quarter to end of fourth
	maxTTMSpanDays = 300
)

const (
	ttmMethod          = "sum of four consecutive quarters"
	reportedConfidence = 1.0
)

// ClassifyPeriod decides the reporting period of a fact.
//
// Duration facts are classified by length: about a year is annual, about a
// quarter is quarterly, anything between is a year-to-date interim figure.
// Instant facts (balance sheet values) carry no length, so the fiscal period
// and frame reported with them are used instead. The second return value is
// false for durations that fit none of the windows (multi-year totals, stub
// periods).
func ClassifyPeriod(fv edgar.FactValue) (models.MetricPeriod, bool) {
	if days := fv.DurationDays(); days > 0 {
		switch {
		case days >= minAnnualDays && days <= maxAnnualDays:
			return models.PeriodAnnual, true
		case days >= minQuarterDays && days <= maxQuarterDays:
			return models.PeriodQuarterly, true
		case days > maxQuarterDays && days < minAnnualDays:
			return models.PeriodYearToDate, true
		default:
			return "", false
		}
	}

	fp := strings.ToUpper(fv.FP)
	switch {
	case fp == "FY":
		return models.PeriodAnnual, true
	case strings.HasPrefix(fp, "Q"):
		return models.PeriodQuarterly, true
	}

	// Frames look like CY2022 (annual), CY2022Q3 or CY2022Q4I.
	frame := strings.ToUpper(fv.Frame)
	if strings.HasPrefix(frame, "CY") && strings.Contains(frame, "Q") {
		return models.PeriodQuarterly, true
	}
	return models.PeriodAnnual, true
}

// ExtractMetrics converts a companyfacts document into metric observations
// for companyID using the canonical table.
//
// For each canonical metric the first tag present in the table's taxonomy is
// used, and within that tag the first preferred unit present. Observations
// are returned ordered by filed date, so a repository that keeps the last
// write per identity ends up with the most recently filed value.
func ExtractMetrics(facts *edgar.CompanyFacts, companyID string, tags *mapping.TagTable) []models.FinancialMetric {
	if tags == nil {
		tags = mapping.Default()
	}
	concepts := facts.Taxonomy(tags.Taxonomy)
	if len(concepts) == 0 {
		return []models.FinancialMetric{}
	}
	companyID = models.NormalizeTicker(companyID)
	available := func(tag string) bool {
		_, ok := concepts[tag]
		return ok
	}

	out := make([]models.FinancialMetric, 0)
	for _, name := range tags.Names() {
		tag, ok := tags.Resolve(name, available)
		if !ok {
			continue
		}
		concept := concepts[tag]
		unit, values := pickUnit(concept, tags.UnitsFor(name))
		if unit == "" {
			componentLog().WithField("ticker", companyID).WithField("metric", name).Debug("No supported unit")
			continue
		}

		ordered := make([]edgar.FactValue, len(values))
		copy(ordered, values)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Filed < ordered[j].Filed })

		extracted := make([]models.FinancialMetric, 0, len(ordered))
		for _, fv := range ordered {
			end, ok := fv.EndDate()
			if !ok {
				continue
			}
			period, ok := ClassifyPeriod(fv)
			if !ok {
				continue
			}
			filed, _ := fv.FiledDate()
			extracted = append(extracted, models.FinancialMetric{
				CompanyID:       companyID,
				Name:            name,
				Value:           fv.Val,
				Date:            end,
				Period:          period,
				Unit:            unit,
				FilingID:        fv.Accn,
				XBRLTag:         tag,
				XBRLContext:     fv.Accn,
				FiscalYear:      fv.FY,
				FiscalPeriod:    fv.FP,
				FiledAt:         filed,
				ConfidenceScore: reportedConfidence,
			})
		}
		out = append(out, extracted...)

		if tags.IsFlow(name) {
			out = append(out, DeriveTTM(extracted)...)
		}
	}
	return out
}

func pickUnit(c edgar.Concept, preferred []string) (string, []edgar.FactValue) {
	for _, u := range preferred {
		if vals, ok := c.Units[u]; ok && len(vals) > 0 {
			return u, vals
		}
	}
	return "", nil
}

// DeriveTTM builds trailing-twelve-month observations from the quarterly
// observations of a single flow metric. A value is produced for every run of
// four consecutive quarters; gaps in the quarterly series produce none.
func DeriveTTM(obs []models.FinancialMetric) []models.FinancialMetric {
	quarterly := make([]models.FinancialMetric, 0, len(obs))
	for _, m := range obs {
		if m.Period == models.PeriodQuarterly {
			quarterly = append(quarterly, m)
		}
	}
	points := timeseries.Build(quarterly)
	if len(points) < 4 {
		return nil
	}
	ref := quarterly[0]

	var out []models.FinancialMetric
	for i := 3; i < len(points); i++ {
		window := points[i-3 : i+1]
		if !consecutiveQuarters(window) {
			continue
		}
		sum := 0.0
		for _, p := range window {
			sum += p.Value
		}
		out = append(out, models.FinancialMetric{
			CompanyID:         ref.CompanyID,
			Name:              ref.Name,
			Value:             sum,
			Date:              window[3].Date,
			Period:            models.PeriodTTM,
			Unit:              ref.Unit,
			XBRLTag:           ref.XBRLTag,
			FiledAt:           latestFiled(quarterly, window[0].Date, window[3].Date),
			IsCalculated:      true,
			CalculationMethod: ttmMethod,
			ConfidenceScore:   reportedConfidence,
		})
	}
	return out
}

func consecutiveQuarters(window []models.DataPoint) bool {
	span := int(window[len(window)-1].Date.Sub(window[0].Date).Hours() / 24)
	if span < minTTMSpanDays || span > maxTTMSpanDays {
		return false
	}
	for i := 1; i < len(window); i++ {
		gap := int(window[i].Date.Sub(window[i-1].Date).Hours() / 24)
		if gap < minQuarterDays || gap > maxQuarterDays {
			return false
		}
	}
	return true
}

func latestFiled(obs []models.FinancialMetric, from, to time.Time) time.Time {
	var latest time.Time
	for _, m := range obs {
		if m.Date.Before(from) || m.Date.After(to) {
			continue
		}
		if m.FiledAt.After(latest) {
			latest = m.FiledAt
		}
	}
	return latest
}
