package processor

import "strconv"

// sicDivisions are the SIC major-group ranges (first two digits) and the
// division each belongs to.
var sicDivisions = []struct {
	lo, hi int
	name   string
}{
	{1, 9, "Agriculture, Forestry & Fishing"},
	{10, 14, "Mining"},
	{15, 17, "Construction"},
	{20, 39, "Manufacturing"},
	{40, 49, "Transportation & Public Utilities"},
	{50, 51, "Wholesale Trade"},
	{52, 59, "Retail Trade"},
	{60, 67, "Finance, Insurance & Real Estate"},
	{70, 89, "Services"},
	{91, 99, "Public Administration"},
}

// SectorForSIC maps a four-digit SIC code to its division name, or "" when the
// code is missing or unclassified.
func SectorForSIC(sic string) string {
	code, err := strconv.Atoi(sic)
	if err != nil || code <= 0 {
		return ""
	}
	group := code / 100
	for _, d := range sicDivisions {
		if group >= d.lo && group <= d.hi {
			return d.name
		}
	}
	return ""
}
