package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"heartprev/domain/prevalence"
	"heartprev/internal/dashboard"
	"heartprev/internal/frame"
)

func readFrame(t *testing.T, data string) *frame.Frame {
	t.Helper()
	f, err := frame.ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	return f
}

func openBook(t *testing.T, buf *bytes.Buffer) *excelize.File {
	t.Helper()
	book, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	t.Cleanup(func() { book.Close() })
	return book
}

func TestWriteSnapshot(t *testing.T) {
	table, err := readFrame(t, "HBCode,HBName,Rate_AF\nS1,Fife,2.0\nS2,Lothian,3.0\nS3,Tayside,4.0\n").
		SetIndex(prevalence.ColumnRegionCode)
	require.NoError(t, err)
	view, err := dashboard.BuildMapView(&prevalence.Snapshot{Table: table})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, view))

	book := openBook(t, &buf)
	rows, err := book.GetRows(SnapshotSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"HBCode", "HBName", "Rate_AF"}, rows[0])
	assert.Equal(t, []string{"S3", "Tayside", "4"}, rows[3])

	name, err := book.GetCellStyle(SnapshotSheet, "B2")
	require.NoError(t, err)
	low, err := book.GetCellStyle(SnapshotSheet, "C2")
	require.NoError(t, err)
	mid, err := book.GetCellStyle(SnapshotSheet, "C3")
	require.NoError(t, err)
	high, err := book.GetCellStyle(SnapshotSheet, "C4")
	require.NoError(t, err)

	assert.Zero(t, name, "text cells keep the default style")
	assert.NotZero(t, low)
	assert.Equal(t, low, mid, "2.0 and 3.0 both fall under the median rule")
	assert.NotEqual(t, low, high)
}

func TestWriteTimeSeries(t *testing.T) {
	f := readFrame(t, "Year,Health Boards,Rate_AF,Rate_CHD\n2024,Fife,2.0,\n2025,Fife,2.1,3.0\n")

	var buf bytes.Buffer
	require.NoError(t, WriteTimeSeries(&buf, f, []string{"Rate_CHD"}))

	book := openBook(t, &buf)
	rows, err := book.GetRows(TimeSeriesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Health Boards", rows[0][1])
	assert.Equal(t, "2.1", rows[2][2])

	plain, err := book.GetCellStyle(TimeSeriesSheet, "C2")
	require.NoError(t, err)
	shaded, err := book.GetCellStyle(TimeSeriesSheet, "D2")
	require.NoError(t, err)
	assert.Zero(t, plain)
	assert.NotZero(t, shaded, "missing cells in a selected column are shaded too")
}

func TestExcelColor(t *testing.T) {
	assert.Equal(t, "AA336A", excelColor(prevalence.ColorUpperHalf))
	assert.Equal(t, "FFFFFF", excelColor("white"))
	assert.Equal(t, "D3D3D3", excelColor(prevalence.ColorSelectedColumn))
}
