package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"heartprev/internal/errors"
	"heartprev/internal/frame"
)

const snapshotCSV = `HBCode,HBName,Rate_AF,geometry
S08000015,Ayrshire and Arran,2.4,"POLYGON ((0 0, 1 0, 1 1, 0 0))"
S08000029,Fife,2.0,"POLYGON ((2 2, 3 2, 3 3, 2 2))"
`

const timeSeriesCSV = `Unnamed: 0,Year,Health Boards,Rate_AF
0,2024,Fife,2.0
1,2025,Fife,2.1
`

func serveCSV(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		switch r.URL.Path {
		case "/snapshot.csv":
			w.Write([]byte(snapshotCSV))
		case "/timeseries.csv":
			w.Write([]byte(timeSeriesCSV))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDataReaderRemoteCSV(t *testing.T) {
	srv := serveCSV(t, nil)
	reader := NewDataReader(5 * time.Second)

	f, err := reader.Read(context.Background(), srv.URL+"/timeseries.csv")
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())

	_, err = reader.Read(context.Background(), srv.URL+"/missing.csv")
	require.Error(t, err)
	assert.Equal(t, errors.CodeExternalService, errors.GetCode(err))
}

func TestDataReaderLocalFiles(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "ts.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(timeSeriesCSV), 0o644))

	reader := NewDataReader(time.Second)
	f, err := reader.Read(context.Background(), csvPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Unnamed: 0", "Year", "Health Boards", "Rate_AF"}, f.Columns())

	_, err = reader.Read(context.Background(), filepath.Join(dir, "nope.csv"))
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestDataReaderExcel(t *testing.T) {
	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	require.NoError(t, book.SetSheetRow(sheet, "A1", &[]interface{}{"Year", "Health Boards", "Rate_AF"}))
	require.NoError(t, book.SetSheetRow(sheet, "A2", &[]interface{}{2025, "Fife", 2.1}))
	path := filepath.Join(t.TempDir(), "ts.xlsx")
	require.NoError(t, book.SaveAs(path))

	f, err := NewDataReader(time.Second).Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
	c, _ := f.Cell(0, "Rate_AF")
	assert.Equal(t, 2.1, c.Value)
}

func TestLoaderSnapshotAndTimeSeries(t *testing.T) {
	srv := serveCSV(t, nil)
	loader := NewLoader(NewDataReader(time.Second), srv.URL+"/snapshot.csv", srv.URL+"/timeseries.csv", 0)

	snap, err := loader.LoadSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"HBName", "Rate_AF"}, snap.Table.Columns())
	assert.Equal(t, []string{"S08000015", "S08000029"}, snap.Table.Index())
	require.Len(t, snap.Geometry, 2)
	assert.Contains(t, snap.Geometry[1], "POLYGON")

	ts, err := loader.LoadTimeSeries(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Year", "Health Boards", "Rate_AF"}, ts.Columns())
}

func TestLoaderCaching(t *testing.T) {
	var hits int32
	srv := serveCSV(t, &hits)

	fresh := NewLoader(NewDataReader(time.Second), srv.URL+"/snapshot.csv", srv.URL+"/timeseries.csv", 0)
	for i := 0; i < 3; i++ {
		_, err := fresh.LoadTimeSeries(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "zero TTL fetches every time")

	atomic.StoreInt32(&hits, 0)
	cached := NewLoader(NewDataReader(time.Second), srv.URL+"/snapshot.csv", srv.URL+"/timeseries.csv", time.Minute)
	for i := 0; i < 3; i++ {
		_, err := cached.LoadTimeSeries(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestLoaderSnapshotWithoutRegionCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.csv")
	require.NoError(t, os.WriteFile(path, []byte("HBName,Rate_AF\nFife,2.0\n"), 0o644))

	loader := NewLoader(NewDataReader(time.Second), path, path, 0)
	_, err := loader.LoadSnapshot(context.Background())
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

// gatedReader blocks every read until released or until the read's own context is done
type gatedReader struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func newGatedReader() *gatedReader {
	return &gatedReader{started: make(chan struct{}), release: make(chan struct{})}
}

func (r *gatedReader) Read(ctx context.Context, location string) (*frame.Frame, error) {
	if atomic.AddInt32(&r.calls, 1) == 1 {
		close(r.started)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.release:
	}
	return frame.FromRows([]string{"Year", "Health Boards", "Rate_AF"}, [][]string{{"2025", "Fife", "2.1"}})
}

func TestLoaderCollapsesConcurrentFetches(t *testing.T) {
	reader := newGatedReader()
	loader := NewLoader(reader, "snapshot.csv", "timeseries.csv", 0)

	const callers = 5
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := loader.LoadTimeSeries(context.Background())
			errs <- err
		}()
	}
	<-reader.started
	time.Sleep(50 * time.Millisecond)
	close(reader.release)

	for i := 0; i < callers; i++ {
		require.NoError(t, <-errs)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&reader.calls))
}

func TestLoaderCancelledCallerDoesNotFailOthers(t *testing.T) {
	reader := newGatedReader()
	loader := NewLoader(reader, "snapshot.csv", "timeseries.csv", 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := loader.LoadTimeSeries(ctx)
		first <- err
	}()
	<-reader.started

	second := make(chan error, 1)
	go func() {
		f, err := loader.LoadTimeSeries(context.Background())
		if err == nil && f.Len() != 1 {
			err = assert.AnError
		}
		second <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting")
	}

	close(reader.release)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&reader.calls), "second caller joined the in-flight read")
}
