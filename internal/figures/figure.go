// Package figures builds plotly.js figure descriptions from frames and pivots.
package figures

import (
	"fmt"
	"sort"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"

	"heartprev/internal/analysis"
	"heartprev/internal/errors"
	"heartprev/internal/frame"
)

// Figure is a plotly.js figure: traces plus layout
type Figure struct {
	grob.Fig
}

func baseLayout(title string) *grob.Layout {
	return &grob.Layout{
		Title: &grob.LayoutTitle{Text: title},
		Xaxis: &grob.LayoutXaxis{Tickangle: 330, Automargin: grob.True},
	}
}

// Title returns the figure title text
func (f *Figure) Title() string {
	if f == nil || f.Layout == nil || f.Layout.Title == nil {
		return ""
	}
	return fmt.Sprint(f.Layout.Title.Text)
}

// Empty returns a titled figure with no traces
func Empty(title string) *Figure {
	return &Figure{grob.Fig{Data: grob.Traces{}, Layout: baseLayout(title)}}
}

func values(cells []frame.Cell) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c.Any()
	}
	return out
}

// Line draws one lines+markers trace per y column against column x. The y axis starts at zero.
func Line(f *frame.Frame, x string, ys []string, title string) (*Figure, error) {
	xCells, ok := f.Column(x)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("column %q", x))
	}

	fig := Empty(title)
	for _, y := range ys {
		yCells, ok := f.Column(y)
		if !ok {
			return nil, errors.NotFound(fmt.Sprintf("column %q", y))
		}
		fig.Data = append(fig.Data, &grob.Scatter{
			Type: grob.TraceTypeScatter,
			Mode: grob.ScatterModeLines + "+" + grob.ScatterModeMarkers,
			Name: y,
			X:    values(xCells),
			Y:    values(yCells),
		})
	}

	fig.Layout.Xaxis.Title = &grob.LayoutXaxisTitle{Text: x}
	fig.Layout.Yaxis = &grob.LayoutYaxis{
		Title: &grob.LayoutYaxisTitle{Text: "value"},
		Range: []interface{}{0, nil},
	}
	fig.Layout.Legend = &grob.LayoutLegend{
		Title:   &grob.LayoutLegendTitle{Text: "variable"},
		Yanchor: grob.LayoutLegendYanchorMiddle,
		Y:       0.5,
	}
	return fig, nil
}

// ScatterWithTrendline plots y against x with an ordinary least squares line. The trendline is
// nil when the points cannot support a fit; the scatter is still returned.
func ScatterWithTrendline(f *frame.Frame, x, y, title string) (*Figure, *analysis.Trendline, error) {
	xs, ys, err := f.Pairs(x, y)
	if err != nil {
		return nil, nil, err
	}
	if xs == nil {
		xs, ys = []float64{}, []float64{}
	}

	fig := Empty(title)
	fig.Data = append(fig.Data, &grob.Scatter{
		Type: grob.TraceTypeScatter,
		Mode: grob.ScatterModeMarkers,
		Name: fmt.Sprintf("%s vs %s", y, x),
		X:    xs,
		Y:    ys,
	})
	fig.Layout.Xaxis.Title = &grob.LayoutXaxisTitle{Text: x}
	fig.Layout.Yaxis = &grob.LayoutYaxis{Title: &grob.LayoutYaxisTitle{Text: y}}
	fig.Layout.Showlegend = grob.False

	fit, err := analysis.FitOLS(xs, ys)
	if err != nil {
		return fig, nil, nil
	}

	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	fitted := make([]float64, len(sorted))
	for i, v := range sorted {
		fitted[i] = fit.Predict(v)
	}

	hover := fmt.Sprintf("<b>OLS trendline</b><br>%s<br>R<sup>2</sup>=%.6f<br><br>%s=%%{x}<br>%s=%%{y} <b>(trend)</b><extra></extra>",
		fit.Equation(x, y), fit.RSquared, x, y)
	fig.Data = append(fig.Data, &grob.Scatter{
		Type:          grob.TraceTypeScatter,
		Mode:          grob.ScatterModeLines,
		Name:          "OLS trendline",
		X:             sorted,
		Y:             fitted,
		Hovertemplate: hover,
	})
	return fig, &fit, nil
}
