// Package frame holds the small tabular structure behind every dashboard view and the handful of
// dataframe operations (drop, filter, select, round, quantile, pivot) the callbacks need.
package frame

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"heartprev/internal/errors"
)

// Kind classifies a parsed cell
type Kind int

const (
	KindMissing Kind = iota
	KindNumber
	KindText
)

var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"null": true,
	"NULL": true,
}

// Cell is one parsed value. Raw keeps the trimmed source text.
type Cell struct {
	Raw   string
	Value float64
	Kind  Kind
}

// ParseCell classifies raw text as missing, numeric or text
func ParseCell(raw string) Cell {
	s := strings.TrimSpace(raw)
	if missingTokens[s] {
		return Cell{Kind: KindMissing}
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		return Cell{Raw: s, Value: v, Kind: KindNumber}
	}
	return Cell{Raw: s, Kind: KindText}
}

// NumberCell builds a numeric cell with canonical text
func NumberCell(v float64) Cell {
	if math.IsNaN(v) {
		return Cell{Kind: KindMissing}
	}
	return Cell{Raw: strconv.FormatFloat(v, 'f', -1, 64), Value: v, Kind: KindNumber}
}

// Missing reports whether the cell holds no value
func (c Cell) Missing() bool { return c.Kind == KindMissing }

// IsNumber reports whether the cell parsed as a float
func (c Cell) IsNumber() bool { return c.Kind == KindNumber }

// key is the grouping identity of a cell: numbers compare by value, text by content.
func (c Cell) key() string {
	if c.Kind == KindNumber {
		return strconv.FormatFloat(c.Value, 'f', -1, 64)
	}
	return c.Raw
}

// Frame is an immutable table; every operation returns a new Frame.
type Frame struct {
	columns   []string
	lookup    map[string]int
	rows      [][]Cell
	indexName string
	index     []string
}

func newFrame(columns []string, rows [][]Cell, indexName string, index []string) *Frame {
	lookup := make(map[string]int, len(columns))
	for i, c := range columns {
		lookup[c] = i
	}
	return &Frame{
		columns:   columns,
		lookup:    lookup,
		rows:      rows,
		indexName: indexName,
		index:     index,
	}
}

// ReadCSV parses a header row followed by data rows. Short rows are padded with missing cells
// and long rows truncated to the header width.
func ReadCSV(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.DataFormat("failed to parse CSV", err)
	}
	if len(records) == 0 {
		return nil, errors.DataFormat("CSV has no header row", nil)
	}
	return FromRows(records[0], records[1:])
}

// FromRows builds a frame from a header and raw string rows.
// Duplicate header names get pandas-style ".1", ".2" suffixes.
func FromRows(headers []string, rows [][]string) (*Frame, error) {
	if len(headers) == 0 {
		return nil, errors.DataFormat("table has no columns", nil)
	}

	columns := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}

	parsed := make([][]Cell, 0, len(rows))
	for _, row := range rows {
		cells := make([]Cell, len(columns))
		for j := range columns {
			if j < len(row) {
				cells[j] = ParseCell(row[j])
			}
		}
		parsed = append(parsed, cells)
	}
	return newFrame(columns, parsed, "", nil), nil
}

// Columns returns the column names, excluding the index
func (f *Frame) Columns() []string {
	out := make([]string, len(f.columns))
	copy(out, f.columns)
	return out
}

// Len returns the number of rows
func (f *Frame) Len() int { return len(f.rows) }

// HasColumn reports whether name is a (non-index) column
func (f *Frame) HasColumn(name string) bool {
	_, ok := f.lookup[name]
	return ok
}

// Column returns a copy of the cells of one column
func (f *Frame) Column(name string) ([]Cell, bool) {
	j, ok := f.lookup[name]
	if !ok {
		return nil, false
	}
	out := make([]Cell, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[j]
	}
	return out, true
}

// Cell returns the value at row i of column name
func (f *Frame) Cell(i int, name string) (Cell, bool) {
	j, ok := f.lookup[name]
	if !ok || i < 0 || i >= len(f.rows) {
		return Cell{}, false
	}
	return f.rows[i][j], true
}

// IndexName returns the name of the column moved to the index by SetIndex
func (f *Frame) IndexName() string { return f.indexName }

// Index returns the index values, or nil when no index is set
func (f *Frame) Index() []string {
	if f.index == nil {
		return nil
	}
	out := make([]string, len(f.index))
	copy(out, f.index)
	return out
}

func (f *Frame) mustColumns(names []string) error {
	for _, n := range names {
		if !f.HasColumn(n) {
			return errors.NotFound(fmt.Sprintf("column %q", n))
		}
	}
	return nil
}

// project keeps the given column positions, in the order supplied
func (f *Frame) project(keep []int) *Frame {
	columns := make([]string, len(keep))
	for k, j := range keep {
		columns[k] = f.columns[j]
	}
	rows := make([][]Cell, len(f.rows))
	for i, row := range f.rows {
		cells := make([]Cell, len(keep))
		for k, j := range keep {
			cells[k] = row[j]
		}
		rows[i] = cells
	}
	return newFrame(columns, rows, f.indexName, f.Index())
}

// Drop removes columns; every name must exist.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	if err := f.mustColumns(names); err != nil {
		return nil, err
	}
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	keep := make([]int, 0, len(f.columns))
	for j, c := range f.columns {
		if !drop[c] {
			keep = append(keep, j)
		}
	}
	return f.project(keep), nil
}

// Filter keeps the named columns in frame order. Unknown names are ignored.
func (f *Frame) Filter(items ...string) *Frame {
	want := make(map[string]bool, len(items))
	for _, n := range items {
		want[n] = true
	}
	keep := make([]int, 0, len(items))
	for j, c := range f.columns {
		if want[c] {
			keep = append(keep, j)
		}
	}
	return f.project(keep)
}

// SetIndex moves a column out of the table and into the row index
func (f *Frame) SetIndex(name string) (*Frame, error) {
	j, ok := f.lookup[name]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("column %q", name))
	}
	index := make([]string, len(f.rows))
	for i, row := range f.rows {
		index[i] = row[j].Raw
	}
	keep := make([]int, 0, len(f.columns)-1)
	for k := range f.columns {
		if k != j {
			keep = append(keep, k)
		}
	}
	out := f.project(keep)
	out.indexName = name
	out.index = index
	return out, nil
}

// Where keeps rows whose cell in column name equals value. Numbers compare numerically,
// so "2025" matches "2025.0".
func (f *Frame) Where(name, value string) (*Frame, error) {
	j, ok := f.lookup[name]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("column %q", name))
	}
	want := ParseCell(value)

	var rows [][]Cell
	var index []string
	for i, row := range f.rows {
		if matches(row[j], want) {
			rows = append(rows, row)
			if f.index != nil {
				index = append(index, f.index[i])
			}
		}
	}
	if f.index != nil && index == nil {
		index = []string{}
	}
	return newFrame(f.Columns(), rows, f.indexName, index), nil
}

func matches(c, want Cell) bool {
	if c.Kind == KindNumber && want.Kind == KindNumber {
		return c.Value == want.Value
	}
	return c.Kind != KindMissing && c.Raw == want.Raw
}

// Round rounds every numeric cell to the given number of decimals, half to even
func (f *Frame) Round(decimals int) *Frame {
	scale := math.Pow(10, float64(decimals))
	rows := make([][]Cell, len(f.rows))
	for i, row := range f.rows {
		cells := make([]Cell, len(row))
		for j, c := range row {
			if c.Kind == KindNumber {
				c = NumberCell(math.RoundToEven(c.Value*scale) / scale)
			}
			cells[j] = c
		}
		rows[i] = cells
	}
	return newFrame(f.Columns(), rows, f.indexName, f.Index())
}

// NumericColumns lists columns with at least one number and no text cells
func (f *Frame) NumericColumns() []string {
	var out []string
	for j, c := range f.columns {
		numbers, text := 0, 0
		for _, row := range f.rows {
			switch row[j].Kind {
			case KindNumber:
				numbers++
			case KindText:
				text++
			}
		}
		if numbers > 0 && text == 0 {
			out = append(out, c)
		}
	}
	return out
}

// IsNumeric reports whether a column is in NumericColumns
func (f *Frame) IsNumeric(name string) bool {
	for _, c := range f.NumericColumns() {
		if c == name {
			return true
		}
	}
	return false
}

// SelectNumeric keeps only numeric columns
func (f *Frame) SelectNumeric() *Frame {
	return f.Filter(f.NumericColumns()...)
}

// Floats returns the non-missing numbers of a column
func (f *Frame) Floats(name string) ([]float64, error) {
	cells, ok := f.Column(name)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("column %q", name))
	}
	out := make([]float64, 0, len(cells))
	for _, c := range cells {
		if c.Kind == KindNumber {
			out = append(out, c.Value)
		}
	}
	return out, nil
}

// Pairs returns the rows where both x and y are numeric, in row order
func (f *Frame) Pairs(x, y string) ([]float64, []float64, error) {
	if err := f.mustColumns([]string{x, y}); err != nil {
		return nil, nil, err
	}
	jx, jy := f.lookup[x], f.lookup[y]
	var xs, ys []float64
	for _, row := range f.rows {
		if row[jx].Kind == KindNumber && row[jy].Kind == KindNumber {
			xs = append(xs, row[jx].Value)
			ys = append(ys, row[jy].Value)
		}
	}
	return xs, ys, nil
}

// Unique returns the distinct non-missing values of a column, sorted numerically for numeric
// columns and lexically otherwise.
func (f *Frame) Unique(name string) ([]string, error) {
	cells, ok := f.Column(name)
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("column %q", name))
	}
	return uniqueKeys(cells), nil
}

func uniqueKeys(cells []Cell) []string {
	seen := make(map[string]float64)
	numeric := true
	for _, c := range cells {
		switch c.Kind {
		case KindMissing:
			continue
		case KindText:
			numeric = false
		}
		seen[c.key()] = c.Value
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	if numeric {
		sort.Slice(keys, func(a, b int) bool { return seen[keys[a]] < seen[keys[b]] })
	} else {
		sort.Strings(keys)
	}
	return keys
}

// Records converts rows to maps keyed by column name. Numbers become float64, text stays
// a string and missing cells become nil. The index is not included.
func (f *Frame) Records() []map[string]any {
	out := make([]map[string]any, len(f.rows))
	for i, row := range f.rows {
		rec := make(map[string]any, len(f.columns))
		for j, c := range f.columns {
			rec[c] = row[j].Any()
		}
		out[i] = rec
	}
	return out
}

// Any returns the cell as a JSON-friendly value
func (c Cell) Any() any {
	switch c.Kind {
	case KindNumber:
		return c.Value
	case KindText:
		return c.Raw
	default:
		return nil
	}
}
