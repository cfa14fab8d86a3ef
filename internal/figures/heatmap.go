package figures

import (
	"math"
	"strconv"

	grob "github.com/MetalBlueberry/go-plotly/graph_objects"
	"github.com/paulmach/orb/geojson"

	"heartprev/internal/frame"
)

// annotatedHeatmap prints each cell's text inside the cell
type annotatedHeatmap struct {
	*grob.Heatmap
	Texttemplate string `json:"texttemplate,omitempty"`
}

// Heatmap renders a pivot as an annotated image: one cell per (row, column), the value printed
// in the cell. The first pivot row is drawn at the top.
func Heatmap(p *frame.Pivot, title string) *Figure {
	z := make([][]interface{}, len(p.Rows))
	text := make([][]string, len(p.Rows))
	for i := range p.Rows {
		z[i] = make([]interface{}, len(p.Columns))
		text[i] = make([]string, len(p.Columns))
		for j := range p.Columns {
			v := p.Values[i][j]
			if math.IsNaN(v) {
				z[i][j] = nil
				continue
			}
			z[i][j] = v
			text[i][j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}

	fig := Empty(title)
	fig.Data = append(fig.Data, &annotatedHeatmap{
		Heatmap: &grob.Heatmap{
			Type:          grob.TraceTypeHeatmap,
			Z:             z,
			X:             p.Columns,
			Y:             p.Rows,
			Text:          text,
			Coloraxis:     "coloraxis",
			Hovertemplate: p.By + ": %{x}<br>variable: %{y}<br>value: %{z}<extra></extra>",
		},
		Texttemplate: "%{text}",
	})

	fig.Layout.Xaxis.Title = &grob.LayoutXaxisTitle{Text: p.By}
	fig.Layout.Xaxis.Type = grob.LayoutXaxisTypeCategory
	fig.Layout.Yaxis = &grob.LayoutYaxis{
		Autorange:  grob.LayoutYaxisAutorangeReversed,
		Automargin: grob.True,
		Type:       grob.LayoutYaxisTypeCategory,
	}
	fig.Layout.Coloraxis = &grob.LayoutColoraxis{Colorscale: "Plasma"}
	return fig
}

// Choropleth shades each region by value. Locations must match feature ids in fc.
func Choropleth(fc *geojson.FeatureCollection, locations []string, z []interface{}, names []string, metric, title string) *Figure {
	fig := Empty(title)
	fig.Data = append(fig.Data, &grob.Choropleth{
		Type:          grob.TraceTypeChoropleth,
		Geojson:       fc,
		Featureidkey:  "id",
		Locations:     locations,
		Z:             z,
		Text:          names,
		Hovertemplate: "<b>%{text}</b><br>" + metric + ": %{z}<extra>%{location}</extra>",
		Colorscale: [][]interface{}{
			{0, "#FFC0CB"},
			{1, "#AA336A"},
		},
		Colorbar: &grob.ChoroplethColorbar{Title: &grob.ChoroplethColorbarTitle{Text: metric}},
		Marker: &grob.ChoroplethMarker{
			Line: &grob.ChoroplethMarkerLine{Color: "white", Width: 0.5},
		},
	})
	fig.Layout.Geo = &grob.LayoutGeo{
		Fitbounds:  grob.LayoutGeoFitboundsLocations,
		Visible:    grob.False,
		Projection: &grob.LayoutGeoProjection{Type: grob.LayoutGeoProjectionTypeMercator},
	}
	// zero margins are dropped when encoded, so the sides get a single pixel
	fig.Layout.Margin = &grob.LayoutMargin{L: 1, R: 1, T: 50, B: 1}
	return fig
}
