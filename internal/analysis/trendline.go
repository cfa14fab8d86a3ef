package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"heartprev/internal/errors"
)

// Trendline is an ordinary least squares fit y = Intercept + Slope*x
type Trendline struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	RSquared  float64 `json:"r_squared"`
	N         int     `json:"n"`
}

// FitOLS fits an ordinary least squares line through the points
func FitOLS(x, y []float64) (Trendline, error) {
	if len(x) != len(y) {
		return Trendline{}, errors.InvalidInput("trendline needs paired values, got %d x and %d y", len(x), len(y))
	}
	if len(x) < 2 {
		return Trendline{}, errors.InvalidInput("trendline needs at least 2 points, got %d", len(x))
	}
	if floats.Min(x) == floats.Max(x) {
		return Trendline{}, errors.InvalidInput("trendline needs at least 2 distinct x values")
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if math.IsNaN(r2) {
		// constant y: the fit is exact
		r2 = 1
	}
	return Trendline{Slope: beta, Intercept: alpha, RSquared: r2, N: len(x)}, nil
}

// Predict evaluates the line at x
func (t Trendline) Predict(x float64) float64 {
	return t.Intercept + t.Slope*x
}

// Equation formats the fit the way the trendline hover label shows it
func (t Trendline) Equation(xLabel, yLabel string) string {
	return fmt.Sprintf("%s = %.6g * %s + %.6g", yLabel, t.Slope, xLabel, t.Intercept)
}
