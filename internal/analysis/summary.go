package analysis

import (
	"github.com/montanaflynn/stats"

	"heartprev/internal/errors"
)

// Summary describes one factor over the rows of a health board
type Summary struct {
	Factor string  `json:"factor"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	// Change is the last value minus the first, in row order
	Change float64 `json:"change"`
}

// Summarize computes the descriptive figures shown under the line chart
func Summarize(factor string, values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, errors.InvalidInput("no values for %s", factor)
	}
	data := stats.Float64Data(values)

	lo, err := data.Min()
	if err != nil {
		return Summary{}, errors.Wrapf(err, "min of %s", factor)
	}
	hi, err := data.Max()
	if err != nil {
		return Summary{}, errors.Wrapf(err, "max of %s", factor)
	}
	mean, err := data.Mean()
	if err != nil {
		return Summary{}, errors.Wrapf(err, "mean of %s", factor)
	}
	median, err := data.Median()
	if err != nil {
		return Summary{}, errors.Wrapf(err, "median of %s", factor)
	}

	return Summary{
		Factor: factor,
		Count:  len(values),
		Min:    lo,
		Max:    hi,
		Mean:   mean,
		Median: median,
		Change: values[len(values)-1] - values[0],
	}, nil
}
