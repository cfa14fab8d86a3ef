package dashboard

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"heartprev/domain/prevalence"
	"heartprev/internal/config"
	"heartprev/internal/errors"
	"heartprev/internal/figures"
	"heartprev/internal/frame"
)

const timeSeriesCSV = `Year,Health Boards,Rate_Hypertension,Rate_Heart Failure,Rate_AF
2022,Ayrshire and Arran,15.001,1.0,2.0
2023,Ayrshire and Arran,15.5,1.1,2.1
2024,Ayrshire and Arran,16.0,1.2,2.2
2025,Ayrshire and Arran,16.5,1.3,2.3
2022,Fife,13.0,0.8,1.8
2025,Fife,14.0,0.9,1.9
`

const snapshotCSV = `HBCode,HBName,Rate_AF,SIMD
S1,Fife,2.0,10
S2,Lothian,3.0,20
S3,Tayside,4.0,30
`

// MockDatasets is a testify mock of ports.DatasetPort
type MockDatasets struct {
	mock.Mock
}

func (m *MockDatasets) LoadSnapshot(ctx context.Context) (*prevalence.Snapshot, error) {
	args := m.Called(ctx)
	snap, _ := args.Get(0).(*prevalence.Snapshot)
	return snap, args.Error(1)
}

func (m *MockDatasets) LoadTimeSeries(ctx context.Context) (*frame.Frame, error) {
	args := m.Called(ctx)
	f, _ := args.Get(0).(*frame.Frame)
	return f, args.Error(1)
}

func readFrame(t *testing.T, data string) *frame.Frame {
	t.Helper()
	f, err := frame.ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	return f
}

func snapshot(t *testing.T, withGeometry bool) *prevalence.Snapshot {
	t.Helper()
	table, err := readFrame(t, snapshotCSV).SetIndex(prevalence.ColumnRegionCode)
	require.NoError(t, err)
	snap := &prevalence.Snapshot{Table: table}
	if withGeometry {
		snap.Geometry = []string{
			"POLYGON ((-3 56, -2 56, -2 57, -3 56))",
			"POLYGON ((-4 55, -3 55, -3 56, -4 55))",
			"MULTIPOLYGON (((-4 56, -3 56, -3 57, -4 56)))",
		}
	}
	return snap
}

func newTestService(t *testing.T, heatmapYear int) (*Service, *MockDatasets) {
	t.Helper()
	datasets := new(MockDatasets)
	settings := config.Default().Dashboard
	settings.HeatmapYear = heatmapYear
	return NewService(datasets, settings), datasets
}

func TestMapViewStyling(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadSnapshot", mock.Anything).Return(snapshot(t, true), nil)

	view, err := svc.MapView(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "HBCode", view.IndexName)
	assert.Equal(t, []string{"HBName", "Rate_AF", "SIMD"}, view.Columns)
	assert.Equal(t, []string{"Rate_AF", "SIMD"}, view.Metrics)
	assert.Equal(t, 1, view.FixedColumns)
	assert.Equal(t, "native", view.SortAction)
	assert.True(t, view.HasGeometry)

	require.Len(t, view.Rules, 4)
	assert.Equal(t, "{Rate_AF} > 2.2", view.Rules[0].FilterQuery())
	assert.Equal(t, "{SIMD} > 12", view.Rules[1].FilterQuery())
	assert.Equal(t, "{Rate_AF} <= 3", view.Rules[2].FilterQuery())
	assert.Equal(t, "{SIMD} <= 20", view.Rules[3].FilterQuery())

	require.Len(t, view.Rows, 3)
	assert.Equal(t, "S1", view.Rows[0].Key)
	assert.False(t, view.Rows[0].Cells[0].Styled, "text columns are never highlighted")
	assert.Equal(t, prevalence.ColorLowerHalf, view.Rows[0].Cells[1].Style.Background)
	assert.Equal(t, prevalence.ColorLowerHalf, view.Rows[1].Cells[1].Style.Background, "the later <= rule wins")
	assert.Equal(t, prevalence.ColorUpperHalf, view.Rows[2].Cells[1].Style.Background)

	assert.Equal(t, "Tayside", view.Records[2]["HBName"])
	assert.NotContains(t, view.Records[0], "HBCode")
	datasets.AssertExpectations(t)
}

// trace decodes one trace of fig the way the browser receives it
func trace(t *testing.T, fig *figures.Figure, i int) map[string]interface{} {
	t.Helper()
	require.Greater(t, len(fig.Data), i)
	raw, err := json.Marshal(fig.Data[i])
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestChoropleth(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadSnapshot", mock.Anything).Return(snapshot(t, true), nil)

	fig, err := svc.Choropleth(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, fig.Data, 1)
	tr := trace(t, fig, 0)
	assert.Equal(t, []interface{}{"S1", "S2", "S3"}, tr["locations"])
	assert.Equal(t, []interface{}{"Fife", "Lothian", "Tayside"}, tr["text"])
	assert.Equal(t, []interface{}{2.0, 3.0, 4.0}, tr["z"])
	assert.Contains(t, fig.Title(), "Rate_AF")

	_, err = svc.Choropleth(context.Background(), "Rate_Unknown")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestChoroplethWithoutGeometry(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadSnapshot", mock.Anything).Return(snapshot(t, false), nil)

	_, err := svc.Choropleth(context.Background(), "SIMD")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestTimeSeriesOptions(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	opts, err := svc.TimeSeriesOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ayrshire and Arran", "Fife"}, opts.HealthBoards)
	assert.Equal(t, []string{"Rate_Hypertension", "Rate_Heart Failure", "Rate_AF"}, opts.Factors)
	assert.Equal(t, "Ayrshire and Arran", opts.DefaultHealthBoard)
	assert.Equal(t, "Rate_Hypertension", opts.DefaultFactorX)
	assert.Equal(t, "Rate_Heart Failure", opts.DefaultFactorY)
}

func TestTimeSeriesView(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	view, err := svc.TimeSeriesView(context.Background(), "Fife", []string{"Rate_AF"})
	require.NoError(t, err)

	assert.Equal(t, "Figure 1: Prevalence of Heart Disease related factors in Fife 2022-2025", view.Figure.Title())
	require.Len(t, view.Figure.Data, 1)
	assert.Equal(t, []interface{}{2022.0, 2025.0}, trace(t, view.Figure, 0)["x"], "only the selected board's rows")

	require.Len(t, view.Summaries, 1)
	assert.Equal(t, 2, view.Summaries[0].Count)
	assert.InDelta(t, 1.8, view.Summaries[0].Min, 1e-9)
	assert.InDelta(t, 0.1, view.Summaries[0].Change, 1e-9)

	assert.Len(t, view.Grid.Rows, 6, "the grid shows every board")
	require.Len(t, view.Grid.Styles, 5)
	assert.True(t, view.Grid.Styles[4].Selected)
	assert.False(t, view.Grid.Styles[2].Selected)
}

func TestTimeSeriesViewWithoutFactors(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	view, err := svc.TimeSeriesView(context.Background(), "Ayrshire and Arran", nil)
	require.NoError(t, err)
	assert.Empty(t, view.Figure.Data)
	assert.Equal(t, TimeSeriesTitle("Ayrshire and Arran"), view.Figure.Title())
	assert.Empty(t, view.Summaries)
}

func TestTimeSeriesViewRejectsUnknownSelections(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	tests := []struct {
		name    string
		board   string
		factors []string
	}{
		{"unknown board", "Atlantis", []string{"Rate_AF"}},
		{"unknown factor", "Fife", []string{"Rate_Unknown"}},
		{"index column is not a factor", "Fife", []string{"Year"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.TimeSeriesView(context.Background(), tt.board, tt.factors)
			require.Error(t, err)
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		})
	}
}

func TestCorrelationView(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	view, err := svc.CorrelationView(context.Background(), "Ayrshire and Arran", "Rate_Hypertension", "Rate_Heart Failure")
	require.NoError(t, err)

	assert.Equal(t, "Figure 1: Heatmap of Heart Disease related factors in Scottish Health Boards in 2025", view.Heatmap.Title())
	require.Len(t, view.Heatmap.Data, 1)
	heat := trace(t, view.Heatmap, 0)
	assert.Equal(t, []interface{}{"Ayrshire and Arran", "Fife"}, heat["x"])
	assert.Equal(t, []interface{}{"Rate_Heart Failure", "Rate_Hypertension"}, heat["y"])

	assert.Equal(t, "Figure 2: Correlation of Heart Disease related factors in Ayrshire and Arran 2022-2025", view.Scatter.Title())
	require.NotNil(t, view.Trendline)
	assert.Equal(t, 4, view.Trendline.N)
	assert.InDelta(t, 0.2, view.Trendline.Slope, 1e-9, "values are rounded to two decimals before fitting")
	assert.InDelta(t, 1.0, view.Trendline.RSquared, 1e-9)

	assert.Equal(t, "Figure 3: Heatmap of Heart Disease related factors in Ayrshire and Arran 2022-2025", view.TimeHeatmap.Title())
	assert.Equal(t, []interface{}{"2022", "2023", "2024", "2025"}, trace(t, view.TimeHeatmap, 0)["x"])
}

func TestCorrelationViewLatestYear(t *testing.T) {
	svc, datasets := newTestService(t, 0)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	view, err := svc.CorrelationView(context.Background(), "Fife", "Rate_AF", "Rate_Hypertension")
	require.NoError(t, err)
	assert.Equal(t, "2025", view.Year)
	assert.NotNil(t, view.Trendline)
}

func TestCorrelationViewMissingYear(t *testing.T) {
	svc, datasets := newTestService(t, 1999)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	view, err := svc.CorrelationView(context.Background(), "Fife", "Rate_AF", "Rate_Hypertension")
	require.NoError(t, err)
	assert.Empty(t, view.Heatmap.Data)
	assert.Contains(t, view.Heatmap.Title(), "1999")
}

func TestOverview(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadSnapshot", mock.Anything).Return(snapshot(t, true), nil)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	overview, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, overview.HealthBoards)
	assert.Equal(t, 6, overview.TimeSeriesRows)
	assert.Equal(t, []string{"2022", "2023", "2024", "2025"}, overview.Years)
	assert.True(t, overview.MapAvailable)
	datasets.AssertExpectations(t)
}

func TestOverviewPropagatesLoadErrors(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadSnapshot", mock.Anything).Return(nil, errors.ExternalServiceError("snapshot", assert.AnError))
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	_, err := svc.Overview(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
}

func TestTimeSeriesRows(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)
	ctx := context.Background()

	all, err := svc.TimeSeriesRows(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 6, all.Len())

	fife, err := svc.TimeSeriesRows(ctx, "Fife", "Rate_AF")
	require.NoError(t, err)
	assert.Equal(t, 2, fife.Len())

	_, err = svc.TimeSeriesRows(ctx, "", "Rate_Unknown")
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err), "factors are checked without a board")
}

func TestCorrelationRowsAreRounded(t *testing.T) {
	svc, datasets := newTestService(t, 2025)
	datasets.On("LoadTimeSeries", mock.Anything).Return(readFrame(t, timeSeriesCSV), nil)

	rows, err := svc.CorrelationRows(context.Background(), "Ayrshire and Arran", "Rate_Hypertension", "Rate_AF")
	require.NoError(t, err)

	values, err := rows.Floats("Rate_Hypertension")
	require.NoError(t, err)
	assert.Equal(t, []float64{15, 15.5, 16, 16.5}, values)
}
