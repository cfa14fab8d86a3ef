// Package prevalence names the columns, colours and selections shared by the heart disease
// prevalence datasets and the views built from them.
package prevalence

// Snapshot dataset: one row per health board
const (
	ColumnRegionCode = "HBCode"
	ColumnGeometry   = "geometry"
)

// Time series dataset: one row per (Year, Health Boards) pair
const (
	ColumnUnnamedIndex = "Unnamed: 0"
	ColumnYear         = "Year"
	ColumnHealthBoard  = "Health Boards"
)

// Factor columns follow Year and Health Boards in the time series file
const (
	factorOffset = 2
	factorCount  = 12
)

// Table and grid styling
const (
	ColorUpperHalf      = "#AA336A"
	ColorLowerHalf      = "#FFC0CB"
	ColorSelectedColumn = "#d3d3d3"
	ColorText           = "white"
	ColorPlainText      = "black"

	// LowQuantile and MidQuantile are the table highlight thresholds
	LowQuantile = 0.1
	MidQuantile = 0.5

	// TrendlineDecimals is the precision the correlation views round to
	TrendlineDecimals = 2
)

// FactorColumns returns the selectable factor columns of a time series frame whose unnamed index
// column has already been dropped: up to twelve columns after Year and Health Boards.
func FactorColumns(columns []string) []string {
	if len(columns) <= factorOffset {
		return []string{}
	}
	end := factorOffset + factorCount
	if end > len(columns) {
		end = len(columns)
	}
	out := make([]string, end-factorOffset)
	copy(out, columns[factorOffset:end])
	return out
}

// Contains reports whether value is one of options
func Contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}
