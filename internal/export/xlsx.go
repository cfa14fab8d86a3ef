// Package export writes the dashboard tables to Excel workbooks with the same highlighting the
// pages show.
package export

import (
	"io"
	"log"
	"strings"

	"github.com/xuri/excelize/v2"

	"heartprev/domain/prevalence"
	"heartprev/internal/dashboard"
	"heartprev/internal/errors"
	"heartprev/internal/figures"
	"heartprev/internal/frame"
)

const (
	SnapshotSheet   = "Snapshot"
	TimeSeriesSheet = "Time series"
)

var namedColors = map[string]string{
	"white": "FFFFFF",
	"black": "000000",
}

// excelColor converts "#AA336A" or a named colour to the RRGGBB form excelize expects
func excelColor(c string) string {
	if hex, ok := namedColors[strings.ToLower(c)]; ok {
		return hex
	}
	return strings.ToUpper(strings.TrimPrefix(c, "#"))
}

// workbook wraps an excelize file with a cache of fill styles
type workbook struct {
	file   *excelize.File
	styles map[figures.CellStyle]int
}

func newWorkbook(sheet string) (*workbook, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "failed to name worksheet")
	}
	return &workbook{file: f, styles: make(map[figures.CellStyle]int)}, nil
}

func (w *workbook) style(s figures.CellStyle) (int, error) {
	if id, ok := w.styles[s]; ok {
		return id, nil
	}
	style := &excelize.Style{}
	if s.Background != "" {
		style.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{excelColor(s.Background)}}
	}
	if s.Color != "" {
		style.Font = &excelize.Font{Color: excelColor(s.Color)}
	}
	id, err := w.file.NewStyle(style)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create cell style")
	}
	w.styles[s] = id
	return id, nil
}

func (w *workbook) header(sheet string, columns []string) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.file.SetSheetRow(sheet, "A1", &row); err != nil {
		return errors.Wrap(err, "failed to write header row")
	}
	bold, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "failed to create header style")
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	return w.file.SetCellStyle(sheet, "A1", last, bold)
}

// freeze keeps the header row and the first column visible and adds sort/filter buttons
func (w *workbook) freeze(sheet string, columns, rows int) error {
	if err := w.file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return errors.Wrap(err, "failed to freeze panes")
	}
	last, _ := excelize.CoordinatesToCellName(columns, rows+1)
	if err := w.file.AutoFilter(sheet, "A1:"+last, nil); err != nil {
		return errors.Wrap(err, "failed to add auto filter")
	}
	return nil
}

func (w *workbook) write(out io.Writer) error {
	defer w.file.Close()
	if _, err := w.file.WriteTo(out); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}

// WriteSnapshot writes the snapshot table, index first, with each cell filled the way the map
// page highlights it.
func WriteSnapshot(out io.Writer, view *dashboard.MapView) error {
	wb, err := newWorkbook(SnapshotSheet)
	if err != nil {
		return err
	}

	columns := append([]string{view.IndexName}, view.Columns...)
	if err := wb.header(SnapshotSheet, columns); err != nil {
		return err
	}

	styled := 0
	for i, row := range view.Rows {
		values := make([]interface{}, 0, len(columns))
		values = append(values, row.Key)
		for _, cell := range row.Cells {
			values = append(values, cell.Value)
		}
		axis, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := wb.file.SetSheetRow(SnapshotSheet, axis, &values); err != nil {
			return errors.Wrapf(err, "failed to write row %s", row.Key)
		}

		for j, cell := range row.Cells {
			if !cell.Styled {
				continue
			}
			id, err := wb.style(cell.Style)
			if err != nil {
				return err
			}
			ref, _ := excelize.CoordinatesToCellName(j+2, i+2)
			if err := wb.file.SetCellStyle(SnapshotSheet, ref, ref, id); err != nil {
				return errors.Wrapf(err, "failed to style %s", ref)
			}
			styled++
		}
	}

	if err := wb.freeze(SnapshotSheet, len(columns), len(view.Rows)); err != nil {
		return err
	}
	log.Printf("[Export] Snapshot workbook: %d rows, %d highlighted cells", len(view.Rows), styled)
	return wb.write(out)
}

// WriteTimeSeries writes time series rows with the selected factor columns shaded grey
func WriteTimeSeries(out io.Writer, f *frame.Frame, selected []string) error {
	wb, err := newWorkbook(TimeSeriesSheet)
	if err != nil {
		return err
	}

	columns := f.Columns()
	if err := wb.header(TimeSeriesSheet, columns); err != nil {
		return err
	}

	for i := 0; i < f.Len(); i++ {
		values := make([]interface{}, len(columns))
		for j, c := range columns {
			cell, _ := f.Cell(i, c)
			values[j] = cell.Any()
		}
		axis, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := wb.file.SetSheetRow(TimeSeriesSheet, axis, &values); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i+1)
		}
	}

	if f.Len() > 0 {
		for j, cs := range figures.GridColumnStyles(columns, selected) {
			if !cs.Selected {
				continue
			}
			id, err := wb.style(figures.CellStyle{Background: prevalence.ColorSelectedColumn})
			if err != nil {
				return err
			}
			top, _ := excelize.CoordinatesToCellName(j+1, 2)
			bottom, _ := excelize.CoordinatesToCellName(j+1, f.Len()+1)
			if err := wb.file.SetCellStyle(TimeSeriesSheet, top, bottom, id); err != nil {
				return errors.Wrapf(err, "failed to shade column %s", cs.Field)
			}
		}
	}

	if err := wb.freeze(TimeSeriesSheet, len(columns), f.Len()); err != nil {
		return err
	}
	log.Printf("[Export] Time series workbook: %d rows, %d columns", f.Len(), len(columns))
	return wb.write(out)
}
