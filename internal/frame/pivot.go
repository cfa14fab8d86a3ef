package frame

import (
	"fmt"
	"math"
	"sort"

	"heartprev/internal/errors"
)

// ColumnValue pairs a column with a per-column statistic
type ColumnValue struct {
	Column string
	Value  float64
}

// Quantile computes, for every numeric column, the q-th quantile of its non-missing values using
// linear interpolation between the closest ranks (the pandas and numpy default).
func (f *Frame) Quantile(q float64) ([]ColumnValue, error) {
	if q < 0 || q > 1 || math.IsNaN(q) {
		return nil, errors.InvalidInput("quantile %v outside [0, 1]", q)
	}
	numeric := f.NumericColumns()
	out := make([]ColumnValue, 0, len(numeric))
	for _, c := range numeric {
		values, err := f.Floats(c)
		if err != nil {
			return nil, err
		}
		out = append(out, ColumnValue{Column: c, Value: linearQuantile(values, q)})
	}
	return out, nil
}

func linearQuantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

// Pivot is the result of PivotColumns: one row per value column, one column per group key.
// Missing cells hold NaN.
type Pivot struct {
	By      string
	Rows    []string
	Columns []string
	Values  [][]float64
}

// Value returns the cell for a row label and column key
func (p *Pivot) Value(row, column string) (float64, bool) {
	ri, ci := -1, -1
	for i, r := range p.Rows {
		if r == row {
			ri = i
		}
	}
	for j, c := range p.Columns {
		if c == column {
			ci = j
		}
	}
	if ri < 0 || ci < 0 {
		return math.NaN(), false
	}
	return p.Values[ri][ci], true
}

// Empty reports whether the pivot has no cells
func (p *Pivot) Empty() bool {
	return len(p.Rows) == 0 || len(p.Columns) == 0
}

// PivotColumns spreads the distinct values of column by across the columns and averages every
// other numeric column within each group, like pivot_table(columns=by). Rows are sorted by name;
// rows and columns with no values at all are dropped.
func (f *Frame) PivotColumns(by string) (*Pivot, error) {
	byIdx, ok := f.lookup[by]
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("column %q", by))
	}

	keys, _ := f.Unique(by)
	keyPos := make(map[string]int, len(keys))
	for i, k := range keys {
		keyPos[k] = i
	}

	var valueCols []string
	for _, c := range f.NumericColumns() {
		if c != by {
			valueCols = append(valueCols, c)
		}
	}
	sort.Strings(valueCols)

	values := make([][]float64, len(valueCols))
	for r, col := range valueCols {
		j := f.lookup[col]
		sums := make([]float64, len(keys))
		counts := make([]int, len(keys))
		for _, row := range f.rows {
			keyCell := row[byIdx]
			if keyCell.Missing() || !row[j].IsNumber() {
				continue
			}
			k := keyPos[keyCell.key()]
			sums[k] += row[j].Value
			counts[k]++
		}
		means := make([]float64, len(keys))
		for k := range keys {
			if counts[k] == 0 {
				means[k] = math.NaN()
			} else {
				means[k] = sums[k] / float64(counts[k])
			}
		}
		values[r] = means
	}

	return dropEmpty(&Pivot{By: by, Rows: valueCols, Columns: keys, Values: values}), nil
}

func dropEmpty(p *Pivot) *Pivot {
	keepCols := make([]int, 0, len(p.Columns))
	for j := range p.Columns {
		for i := range p.Rows {
			if !math.IsNaN(p.Values[i][j]) {
				keepCols = append(keepCols, j)
				break
			}
		}
	}

	out := &Pivot{By: p.By, Rows: []string{}, Columns: make([]string, len(keepCols)), Values: [][]float64{}}
	for k, j := range keepCols {
		out.Columns[k] = p.Columns[j]
	}
	for i, r := range p.Rows {
		row := make([]float64, len(keepCols))
		hasValue := false
		for k, j := range keepCols {
			row[k] = p.Values[i][j]
			if !math.IsNaN(row[k]) {
				hasValue = true
			}
		}
		if hasValue {
			out.Rows = append(out.Rows, r)
			out.Values = append(out.Values, row)
		}
	}
	return out
}
