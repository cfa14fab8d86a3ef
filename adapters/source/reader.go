package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"heartprev/internal/errors"
	"heartprev/internal/frame"
)

// Reader loads a table from a location
type Reader interface {
	Read(ctx context.Context, location string) (*frame.Frame, error)
}

// DataReader reads CSV and Excel tables from http(s) URLs or local paths
type DataReader struct {
	httpClient *http.Client
}

// NewDataReader creates a reader whose remote fetches time out after timeout
func NewDataReader(timeout time.Duration) *DataReader {
	return &DataReader{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Read fetches and parses the table at location
func (r *DataReader) Read(ctx context.Context, location string) (*frame.Frame, error) {
	fileType := detectFileType(location)
	log.Printf("[DataReader] Reading %s table from %s", fileType, location)

	startTime := time.Now()
	var (
		body []byte
		err  error
	)
	if isRemote(location) {
		body, err = r.fetch(ctx, location)
	} else {
		body, err = readLocal(location)
	}
	if err != nil {
		return nil, err
	}
	log.Printf("[DataReader] Read %d bytes in %.2fms", len(body), float64(time.Since(startTime).Nanoseconds())/1e6)

	var f *frame.Frame
	switch fileType {
	case "xlsx":
		f, err = readExcel(body)
	default:
		f, err = frame.ReadCSV(bytes.NewReader(body))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", location)
	}

	log.Printf("[DataReader] %s table processed (%d columns, %d rows)",
		strings.ToUpper(fileType), len(f.Columns()), f.Len())
	return f, nil
}

func (r *DataReader) fetch(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.InvalidInput("bad data source URL %q", location)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.ExternalServiceError("data source", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.ExternalServiceError("data source", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.ExternalServiceError("data source",
			fmt.Errorf("GET %s returned status %d", location, resp.StatusCode))
	}
	return body, nil
}

func readLocal(location string) ([]byte, error) {
	body, err := os.ReadFile(location)
	if os.IsNotExist(err) {
		return nil, errors.NotFound(fmt.Sprintf("data file %s", location))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", location)
	}
	return body, nil
}

// readExcel reads the first sheet of a workbook
func readExcel(body []byte) (*frame.Frame, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.DataFormat("failed to open Excel workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.DataFormat("workbook has no sheets", nil)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.DataFormat(fmt.Sprintf("failed to read sheet %s", sheets[0]), err)
	}
	if len(rows) == 0 {
		return nil, errors.DataFormat("sheet has no header row", nil)
	}
	return frame.FromRows(rows[0], rows[1:])
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

func detectFileType(location string) string {
	p := location
	if isRemote(location) {
		if u, err := url.Parse(location); err == nil {
			p = u.Path
		}
	}
	if strings.EqualFold(path.Ext(p), ".xlsx") {
		return "xlsx"
	}
	return "csv"
}
