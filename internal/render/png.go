// Package render draws static PNG versions of the time series and trendline figures for export.
package render

import (
	"io"
	"math"
	"sort"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"heartprev/internal/analysis"
	"heartprev/internal/errors"
	"heartprev/internal/frame"
)

const (
	Width  = 1024
	Height = 640
)

var palette = []drawing.Color{
	drawing.ColorFromHex("AA336A"),
	drawing.ColorFromHex("636EFA"),
	drawing.ColorFromHex("00CC96"),
	drawing.ColorFromHex("EF553B"),
	drawing.ColorFromHex("AB63FA"),
	drawing.ColorFromHex("FFA15A"),
	drawing.ColorFromHex("19D3F3"),
	drawing.ColorFromHex("FF6692"),
}

func seriesColor(i int) drawing.Color {
	return palette[i%len(palette)]
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    4,
	}
}

// pointStyle renders points only (no connecting line)
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    5,
		DotColor:    col,
	}
}

func formatNumber(v interface{}) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// bounds tracks the extent of everything plotted
type bounds struct {
	minX, maxX, minY, maxY float64
	points                 int
}

func newBounds() bounds {
	return bounds{minX: math.Inf(1), maxX: math.Inf(-1), minY: math.Inf(1), maxY: math.Inf(-1)}
}

func (b *bounds) add(x, y float64) {
	b.minX = math.Min(b.minX, x)
	b.maxX = math.Max(b.maxX, x)
	b.minY = math.Min(b.minY, y)
	b.maxY = math.Max(b.maxY, y)
	b.points++
}

// widen gives a single-valued extent some room so go-chart can lay out the axis. The boolean is
// false when the extent is usable as is.
func widen(lo, hi float64) (chart.ContinuousRange, bool) {
	if lo != hi {
		return chart.ContinuousRange{}, false
	}
	pad := math.Max(math.Abs(lo)*0.1, 1)
	return chart.ContinuousRange{Min: lo - pad, Max: hi + pad}, true
}

// zeroBasedY starts the y axis at zero with some headroom above the largest value
func (b bounds) zeroBasedY() *chart.ContinuousRange {
	top := b.maxY * 1.1
	if top <= 0 {
		top = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: top}
}

func (b bounds) xAxis(name string, ticks []chart.Tick) chart.XAxis {
	axis := chart.XAxis{Name: name, ValueFormatter: formatNumber, Ticks: ticks}
	if r, ok := widen(b.minX, b.maxX); ok {
		axis.Range = &r
	}
	return axis
}

// padSingle repeats a lone point so the series has the two values go-chart needs
func padSingle(xs, ys []float64) ([]float64, []float64) {
	if len(xs) == 1 {
		return []float64{xs[0], xs[0]}, []float64{ys[0], ys[0]}
	}
	return xs, ys
}

func render(out io.Writer, ch chart.Chart) error {
	ch.Width = Width
	ch.Height = Height
	ch.Background = chart.Style{Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 24}}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	if err := ch.Render(chart.PNG, out); err != nil {
		return errors.Wrap(err, "failed to render chart")
	}
	return nil
}

// LineChart draws one line per y column against column x, skipping missing values.
// The y axis starts at zero.
func LineChart(out io.Writer, f *frame.Frame, x string, ys []string, title string) error {
	if len(ys) == 0 {
		return errors.InvalidInput("select at least one factor to draw")
	}

	b := newBounds()
	var series []chart.Series
	ticks := map[float64]bool{}
	for i, y := range ys {
		xs, vals, err := f.Pairs(x, y)
		if err != nil {
			return err
		}
		if len(xs) == 0 {
			continue
		}
		for k := range xs {
			b.add(xs[k], vals[k])
			ticks[xs[k]] = true
		}
		xs, vals = padSingle(xs, vals)
		series = append(series, chart.ContinuousSeries{
			Name:    y,
			XValues: xs,
			YValues: vals,
			Style:   lineStyle(seriesColor(i)),
		})
	}
	if b.points == 0 {
		return errors.InvalidInput("no values to draw for the selected factors")
	}

	var xTicks []chart.Tick
	if len(ticks) <= 12 {
		for v := range ticks {
			xTicks = append(xTicks, chart.Tick{Value: v, Label: formatNumber(v)})
		}
		sort.Slice(xTicks, func(i, j int) bool { return xTicks[i].Value < xTicks[j].Value })
		if len(xTicks) == 1 {
			xTicks = nil
		}
	}

	return render(out, chart.Chart{
		Title: title,
		XAxis: b.xAxis(x, xTicks),
		YAxis: chart.YAxis{
			Name:  "value",
			Range: b.zeroBasedY(),
		},
		Series: series,
	})
}

// TrendlineChart draws y against x with the OLS line through the points. The fit is returned,
// or nil when the points cannot support one.
func TrendlineChart(out io.Writer, f *frame.Frame, x, y, title string) (*analysis.Trendline, error) {
	xs, ys, err := f.Pairs(x, y)
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, errors.InvalidInput("no rows have both %s and %s", x, y)
	}

	b := newBounds()
	for k := range xs {
		b.add(xs[k], ys[k])
	}
	px, py := padSingle(xs, ys)
	series := []chart.Series{
		chart.ContinuousSeries{
			Name:    y + " vs " + x,
			XValues: px,
			YValues: py,
			Style:   pointStyle(seriesColor(0)),
		},
	}

	var fitted *analysis.Trendline
	if fit, err := analysis.FitOLS(xs, ys); err == nil {
		fitted = &fit
		series = append(series, chart.ContinuousSeries{
			Name:    fit.Equation(x, y) + " (R² " + strconv.FormatFloat(fit.RSquared, 'f', 3, 64) + ")",
			XValues: []float64{b.minX, b.maxX},
			YValues: []float64{fit.Predict(b.minX), fit.Predict(b.maxX)},
			Style: chart.Style{
				StrokeColor: seriesColor(1),
				StrokeWidth: 2,
			},
		})
	}

	yAxis := chart.YAxis{Name: y, ValueFormatter: formatNumber}
	if r, ok := widen(b.minY, b.maxY); ok {
		yAxis.Range = &r
	}
	return fitted, render(out, chart.Chart{
		Title:  title,
		XAxis:  b.xAxis(x, nil),
		YAxis:  yAxis,
		Series: series,
	})
}
