// Package dashboard implements the reactive views behind each page: every call reloads the
// datasets, applies the selected controls and returns table data and figure descriptions.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"heartprev/domain/prevalence"
	"heartprev/internal/analysis"
	"heartprev/internal/config"
	"heartprev/internal/errors"
	"heartprev/internal/figures"
	"heartprev/internal/frame"
	"heartprev/internal/geo"
	"heartprev/ports"
)

// Service builds the dashboard views from the configured datasets
type Service struct {
	datasets ports.DatasetPort
	settings config.DashboardConfig
}

// NewService creates a dashboard service
func NewService(datasets ports.DatasetPort, settings config.DashboardConfig) *Service {
	return &Service{
		datasets: datasets,
		settings: settings,
	}
}

// Settings returns the dashboard settings the service was created with
func (s *Service) Settings() config.DashboardConfig {
	return s.settings
}

// TableCell is one server-rendered cell of the snapshot table
type TableCell struct {
	Column string            `json:"column"`
	Text   string            `json:"text"`
	Value  any               `json:"value"`
	Style  figures.CellStyle `json:"style"`
	Styled bool              `json:"styled"`
}

// TableRow is one health board row of the snapshot table
type TableRow struct {
	Key   string      `json:"key"`
	Cells []TableCell `json:"cells"`
}

// MapView is the snapshot table with its conditional formatting
type MapView struct {
	IndexName     string              `json:"index_name"`
	Columns       []string            `json:"columns"`
	Records       []map[string]any    `json:"records"`
	Rules         []figures.StyleRule `json:"style_data_conditional"`
	LowThresholds []frame.ColumnValue `json:"low_thresholds"`
	MidThresholds []frame.ColumnValue `json:"mid_thresholds"`
	FixedColumns  int                 `json:"fixed_columns"`
	SortAction    string              `json:"sort_action"`
	Rows          []TableRow          `json:"-"`
	HasGeometry   bool                `json:"has_geometry"`
	Metrics       []string            `json:"metrics"`
}

// MapView loads the snapshot and derives the highlight rules from the numeric columns
func (s *Service) MapView(ctx context.Context) (*MapView, error) {
	snap, err := s.datasets.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return BuildMapView(snap)
}

// BuildMapView derives the table view of an already loaded snapshot
func BuildMapView(snap *prevalence.Snapshot) (*MapView, error) {
	table := snap.Table
	numeric := table.SelectNumeric()

	low, err := numeric.Quantile(prevalence.LowQuantile)
	if err != nil {
		return nil, errors.Wrap(err, "low quantile thresholds")
	}
	mid, err := numeric.Quantile(prevalence.MidQuantile)
	if err != nil {
		return nil, errors.Wrap(err, "mid quantile thresholds")
	}
	rules := figures.TableStyles(low, mid)

	columns := table.Columns()
	index := table.Index()
	rows := make([]TableRow, table.Len())
	for i := range rows {
		cells := make([]TableCell, len(columns))
		for j, c := range columns {
			cell, _ := table.Cell(i, c)
			style, styled := figures.ResolveCellStyle(rules, c, cell)
			cells[j] = TableCell{Column: c, Text: cell.Raw, Value: cell.Any(), Style: style, Styled: styled}
		}
		key := strconv.Itoa(i)
		if i < len(index) {
			key = index[i]
		}
		rows[i] = TableRow{Key: key, Cells: cells}
	}

	return &MapView{
		IndexName:     table.IndexName(),
		Columns:       columns,
		Records:       table.Records(),
		Rules:         rules,
		LowThresholds: low,
		MidThresholds: mid,
		FixedColumns:  1,
		SortAction:    "native",
		Rows:          rows,
		HasGeometry:   snap.HasGeometry(),
		Metrics:       numeric.Columns(),
	}, nil
}

// Choropleth shades the health boards by one numeric snapshot column. An empty metric selects
// the first numeric column.
func (s *Service) Choropleth(ctx context.Context, metric string) (*figures.Figure, error) {
	snap, err := s.datasets.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !snap.HasGeometry() {
		return nil, errors.NotFound("snapshot geometry")
	}

	table := snap.Table
	metrics := table.NumericColumns()
	if len(metrics) == 0 {
		return nil, errors.DataFormat("snapshot has no numeric columns", nil)
	}
	if metric == "" {
		metric = metrics[0]
	}
	if !prevalence.Contains(metrics, metric) {
		return nil, errors.InvalidInput("unknown metric %q", metric)
	}

	ids := table.Index()
	geometries := make([]orb.Geometry, len(snap.Geometry))
	projected := false
	for i, wkt := range snap.Geometry {
		g, err := geo.ParseWKT(wkt)
		if err != nil {
			return nil, errors.Wrapf(err, "geometry of %s", ids[i])
		}
		projected = projected || geo.Projected(g)
		geometries[i] = g
	}
	if projected {
		log.Printf("[Dashboard] Snapshot geometry is not in longitude/latitude; the choropleth may not line up")
	}

	names := boardNames(table, ids)
	cells, _ := table.Column(metric)
	z := make([]interface{}, len(cells))
	for i, c := range cells {
		z[i] = c.Any()
	}

	fc := geo.NewFeatureCollection(ids, geometries, names)
	title := fmt.Sprintf("Map of %s in the Scottish Health Board Regions", metric)
	return figures.Choropleth(fc, ids, z, names, metric, title), nil
}

// boardNames uses the first text column as the display name, falling back to the region code
func boardNames(table *frame.Frame, ids []string) []string {
	names := make([]string, len(ids))
	copy(names, ids)
	numeric := table.NumericColumns()
	for _, c := range table.Columns() {
		if prevalence.Contains(numeric, c) {
			continue
		}
		cells, _ := table.Column(c)
		for i, cell := range cells {
			if !cell.Missing() {
				names[i] = cell.Raw
			}
		}
		break
	}
	return names
}

// Options are the dropdown choices of the time series and correlation pages
type Options struct {
	HealthBoards       []string `json:"healthboards"`
	Factors            []string `json:"factors"`
	DefaultHealthBoard string   `json:"default_healthboard"`
	DefaultFactorX     string   `json:"default_factor_x"`
	DefaultFactorY     string   `json:"default_factor_y"`
}

func (s *Service) options(ts *frame.Frame) (*Options, error) {
	boards, err := ts.Unique(prevalence.ColumnHealthBoard)
	if err != nil {
		return nil, errors.Wrap(err, "time series dataset")
	}
	opts := &Options{
		HealthBoards:   boards,
		Factors:        prevalence.FactorColumns(ts.Columns()),
		DefaultFactorX: s.settings.DefaultFactorX,
		DefaultFactorY: s.settings.DefaultFactorY,
	}
	opts.DefaultHealthBoard = s.settings.DefaultHealthBoard
	if !prevalence.Contains(boards, opts.DefaultHealthBoard) && len(boards) > 0 {
		opts.DefaultHealthBoard = boards[0]
	}
	if !prevalence.Contains(opts.Factors, opts.DefaultFactorX) && len(opts.Factors) > 0 {
		opts.DefaultFactorX = opts.Factors[0]
	}
	if !prevalence.Contains(opts.Factors, opts.DefaultFactorY) && len(opts.Factors) > 1 {
		opts.DefaultFactorY = opts.Factors[1]
	}
	return opts, nil
}

// TimeSeriesOptions returns the health boards and factor columns of the time series
func (s *Service) TimeSeriesOptions(ctx context.Context) (*Options, error) {
	ts, err := s.datasets.LoadTimeSeries(ctx)
	if err != nil {
		return nil, err
	}
	return s.options(ts)
}

func (o *Options) validate(board string, factors ...string) error {
	if !prevalence.Contains(o.HealthBoards, board) {
		return errors.InvalidInput("unknown health board %q", board)
	}
	for _, f := range factors {
		if !prevalence.Contains(o.Factors, f) {
			return errors.InvalidInput("unknown factor %q", f)
		}
	}
	return nil
}

// Grid is the full time series shown under the line chart
type Grid struct {
	Columns []string              `json:"columns"`
	Rows    []map[string]any      `json:"rows"`
	Styles  []figures.ColumnStyle `json:"column_styles"`
}

// TimeSeriesView is the line chart of the selected factors for one health board
type TimeSeriesView struct {
	HealthBoard string             `json:"healthboard"`
	Factors     []string           `json:"factors"`
	Figure      *figures.Figure    `json:"figure"`
	Grid        Grid               `json:"grid"`
	Summaries   []analysis.Summary `json:"summaries"`
}

// TimeSeriesTitle is the caption of the line chart for a health board
func TimeSeriesTitle(board string) string {
	return fmt.Sprintf("Figure 1: Prevalence of Heart Disease related factors in %s 2022-2025", board)
}

// TimeSeriesView filters the time series to one health board and plots the selected factors
// over the years. With no factors selected the figure has no traces.
func (s *Service) TimeSeriesView(ctx context.Context, board string, factors []string) (*TimeSeriesView, error) {
	ts, err := s.datasets.LoadTimeSeries(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := s.options(ts)
	if err != nil {
		return nil, err
	}
	if err := opts.validate(board, factors...); err != nil {
		return nil, err
	}

	rows, err := ts.Where(prevalence.ColumnHealthBoard, board)
	if err != nil {
		return nil, err
	}

	title := TimeSeriesTitle(board)
	fig := figures.Empty(title)
	if len(factors) > 0 {
		fig, err = figures.Line(rows, prevalence.ColumnYear, factors, title)
		if err != nil {
			return nil, err
		}
	}

	summaries := make([]analysis.Summary, 0, len(factors))
	for _, f := range factors {
		values, err := rows.Floats(f)
		if err != nil {
			return nil, err
		}
		summary, err := analysis.Summarize(f, values)
		if err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}

	columns := ts.Columns()
	return &TimeSeriesView{
		HealthBoard: board,
		Factors:     factors,
		Figure:      fig,
		Grid: Grid{
			Columns: columns,
			Rows:    ts.Records(),
			Styles:  figures.GridColumnStyles(columns, factors),
		},
		Summaries: summaries,
	}, nil
}

// TimeSeriesRows returns the time series rows of one health board, or every row when board is
// empty. Factors are checked against the selectable columns.
func (s *Service) TimeSeriesRows(ctx context.Context, board string, factors ...string) (*frame.Frame, error) {
	ts, err := s.datasets.LoadTimeSeries(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := s.options(ts)
	if err != nil {
		return nil, err
	}
	if board == "" {
		for _, f := range factors {
			if !prevalence.Contains(opts.Factors, f) {
				return nil, errors.InvalidInput("unknown factor %q", f)
			}
		}
		return ts, nil
	}
	if err := opts.validate(board, factors...); err != nil {
		return nil, err
	}
	return ts.Where(prevalence.ColumnHealthBoard, board)
}

// CorrelationRows returns one board's rows rounded the way the correlations page shows them
func (s *Service) CorrelationRows(ctx context.Context, board, x, y string) (*frame.Frame, error) {
	rows, err := s.TimeSeriesRows(ctx, board, x, y)
	if err != nil {
		return nil, err
	}
	return rows.Round(prevalence.TrendlineDecimals), nil
}

// CorrelationView holds the three figures of the correlations page
type CorrelationView struct {
	HealthBoard string              `json:"healthboard"`
	FactorX     string              `json:"category1"`
	FactorY     string              `json:"category2"`
	Year        string              `json:"year"`
	Heatmap     *figures.Figure     `json:"heatmap_healthboards"`
	Scatter     *figures.Figure     `json:"trendline"`
	Trendline   *analysis.Trendline `json:"fit,omitempty"`
	TimeHeatmap *figures.Figure     `json:"heatmap_time"`
}

// CorrelationOptions returns the choices of the correlations page
func (s *Service) CorrelationOptions(ctx context.Context) (*Options, error) {
	return s.TimeSeriesOptions(ctx)
}

// CorrelationView compares two factors: across all health boards for one year, and over time
// within the selected board with an OLS trendline.
func (s *Service) CorrelationView(ctx context.Context, board, x, y string) (*CorrelationView, error) {
	ts, err := s.datasets.LoadTimeSeries(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := s.options(ts)
	if err != nil {
		return nil, err
	}
	if err := opts.validate(board, x, y); err != nil {
		return nil, err
	}

	rounded := ts.Round(prevalence.TrendlineDecimals)
	year, err := s.heatmapYear(rounded)
	if err != nil {
		return nil, err
	}

	yearRows, err := rounded.Where(prevalence.ColumnYear, year)
	if err != nil {
		return nil, err
	}
	heatmap, err := pivotHeatmap(
		yearRows.Filter(prevalence.ColumnHealthBoard, x, y),
		prevalence.ColumnHealthBoard,
		fmt.Sprintf("Figure 1: Heatmap of Heart Disease related factors in Scottish Health Boards in %s", year),
	)
	if err != nil {
		return nil, err
	}

	boardRows, err := rounded.Where(prevalence.ColumnHealthBoard, board)
	if err != nil {
		return nil, err
	}
	scatter, fit, err := figures.ScatterWithTrendline(boardRows, x, y,
		fmt.Sprintf("Figure 2: Correlation of Heart Disease related factors in %s 2022-2025", board))
	if err != nil {
		return nil, err
	}
	if fit == nil {
		log.Printf("[Dashboard] No trendline for %s vs %s in %s", y, x, board)
	}

	timeHeatmap, err := pivotHeatmap(
		boardRows.Filter(prevalence.ColumnYear, x, y),
		prevalence.ColumnYear,
		fmt.Sprintf("Figure 3: Heatmap of Heart Disease related factors in %s 2022-2025", board),
	)
	if err != nil {
		return nil, err
	}

	return &CorrelationView{
		HealthBoard: board,
		FactorX:     x,
		FactorY:     y,
		Year:        year,
		Heatmap:     heatmap,
		Scatter:     scatter,
		Trendline:   fit,
		TimeHeatmap: timeHeatmap,
	}, nil
}

// heatmapYear is the configured year, or the latest year in the data when unset
func (s *Service) heatmapYear(ts *frame.Frame) (string, error) {
	if s.settings.HeatmapYear > 0 {
		return strconv.Itoa(s.settings.HeatmapYear), nil
	}
	years, err := ts.Unique(prevalence.ColumnYear)
	if err != nil {
		return "", errors.Wrap(err, "time series dataset")
	}
	if len(years) == 0 {
		return "", errors.DataFormat("time series has no years", nil)
	}
	return years[len(years)-1], nil
}

func pivotHeatmap(f *frame.Frame, by, title string) (*figures.Figure, error) {
	p, err := f.PivotColumns(by)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return figures.Empty(title), nil
	}
	return figures.Heatmap(p, title), nil
}

// Overview summarizes both datasets for the home page and health check
type Overview struct {
	HealthBoards    int      `json:"healthboards"`
	SnapshotColumns int      `json:"snapshot_columns"`
	TimeSeriesRows  int      `json:"timeseries_rows"`
	Years           []string `json:"years"`
	Factors         []string `json:"factors"`
	MapAvailable    bool     `json:"map_available"`
}

// Overview loads both datasets concurrently
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var snap *prevalence.Snapshot
	var ts *frame.Frame

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap, err = s.datasets.LoadSnapshot(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		ts, err = s.datasets.LoadTimeSeries(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	years, err := ts.Unique(prevalence.ColumnYear)
	if err != nil {
		return nil, errors.Wrap(err, "time series dataset")
	}
	return &Overview{
		HealthBoards:    snap.Table.Len(),
		SnapshotColumns: len(snap.Table.Columns()),
		TimeSeriesRows:  ts.Len(),
		Years:           years,
		Factors:         prevalence.FactorColumns(ts.Columns()),
		MapAvailable:    snap.HasGeometry(),
	}, nil
}
