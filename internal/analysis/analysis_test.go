package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartprev/internal/errors"
)

func TestFitOLSExactLine(t *testing.T) {
	x := []float64{14.0, 15.0, 15.5, 16.5}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 0.2*v - 1.8
	}

	fit, err := FitOLS(x, y)
	require.NoError(t, err)

	assert.InDelta(t, 0.2, fit.Slope, 1e-9)
	assert.InDelta(t, -1.8, fit.Intercept, 1e-9)
	assert.InDelta(t, 1.0, fit.RSquared, 1e-9)
	assert.Equal(t, 4, fit.N)
	assert.InDelta(t, 1.4, fit.Predict(16), 1e-9)
	assert.Equal(t, "y = 0.2 * x + -1.8", fit.Equation("x", "y"))
}

func TestFitOLSNoisy(t *testing.T) {
	fit, err := FitOLS([]float64{1, 2, 3, 4}, []float64{2, 1, 4, 3})
	require.NoError(t, err)

	assert.InDelta(t, 0.6, fit.Slope, 1e-9)
	assert.InDelta(t, 1.0, fit.Intercept, 1e-9)
	assert.InDelta(t, 0.36, fit.RSquared, 1e-9)
}

func TestFitOLSRejectsDegenerateInput(t *testing.T) {
	tests := []struct {
		name string
		x, y []float64
	}{
		{"single point", []float64{1}, []float64{2}},
		{"mismatched", []float64{1, 2}, []float64{2}},
		{"constant x", []float64{3, 3, 3}, []float64{1, 2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FitOLS(tt.x, tt.y)
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		})
	}
}

func TestSummarize(t *testing.T) {
	s, err := Summarize("Rate_AF", []float64{2.1, 2.2, 2.4})
	require.NoError(t, err)

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 2.1, s.Min)
	assert.Equal(t, 2.4, s.Max)
	assert.InDelta(t, 2.2333333, s.Mean, 1e-6)
	assert.Equal(t, 2.2, s.Median)
	assert.InDelta(t, 0.3, s.Change, 1e-9)

	_, err = Summarize("Rate_AF", nil)
	assert.Error(t, err)
}

func TestSummarizeUnorderedEvenCount(t *testing.T) {
	s, err := Summarize("Rate_Hypertension", []float64{14.2, 13.1, 15.0, 13.9})
	require.NoError(t, err)

	assert.Equal(t, 13.1, s.Min)
	assert.Equal(t, 15.0, s.Max)
	assert.InDelta(t, 14.05, s.Median, 1e-9, "median averages the middle pair")
	assert.InDelta(t, 14.05, s.Mean, 1e-9)
	assert.InDelta(t, -0.3, s.Change, 1e-9, "change follows row order, not sort order")

	_, err = Summarize("Rate_Hypertension", []float64{})
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
