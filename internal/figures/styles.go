package figures

import (
	"fmt"
	"strconv"

	"heartprev/domain/prevalence"
	"heartprev/internal/frame"
)

// StyleRule colours the cells of one column that satisfy a threshold comparison
type StyleRule struct {
	Column     string  `json:"column_id"`
	Operator   string  `json:"operator"`
	Threshold  float64 `json:"threshold"`
	Background string  `json:"backgroundColor"`
	Color      string  `json:"color"`
}

// FilterQuery renders the rule in data-table filter syntax, e.g. "{Rate_AF} > 2.1"
func (r StyleRule) FilterQuery() string {
	return fmt.Sprintf("{%s} %s %s", r.Column, r.Operator, strconv.FormatFloat(r.Threshold, 'f', -1, 64))
}

// Matches reports whether v satisfies the rule
func (r StyleRule) Matches(v float64) bool {
	switch r.Operator {
	case ">":
		return v > r.Threshold
	case "<=":
		return v <= r.Threshold
	}
	return false
}

// TableStyles builds the conditional formatting of the snapshot table: for every numeric column
// a "> low" rule in dark pink, then for every numeric column a "<= mid" rule in light pink.
// Rules apply in order and the last match wins, so cells above mid stay dark pink.
func TableStyles(low, mid []frame.ColumnValue) []StyleRule {
	rules := make([]StyleRule, 0, len(low)+len(mid))
	for _, cv := range low {
		rules = append(rules, StyleRule{
			Column:     cv.Column,
			Operator:   ">",
			Threshold:  cv.Value,
			Background: prevalence.ColorUpperHalf,
			Color:      prevalence.ColorText,
		})
	}
	for _, cv := range mid {
		rules = append(rules, StyleRule{
			Column:     cv.Column,
			Operator:   "<=",
			Threshold:  cv.Value,
			Background: prevalence.ColorLowerHalf,
			Color:      prevalence.ColorText,
		})
	}
	return rules
}

// CellStyle is the resolved colouring of one table cell
type CellStyle struct {
	Background string `json:"backgroundColor,omitempty"`
	Color      string `json:"color,omitempty"`
}

// ResolveCellStyle applies rules in order to a cell of column; the last matching rule wins.
// Non-numeric cells are never styled.
func ResolveCellStyle(rules []StyleRule, column string, cell frame.Cell) (CellStyle, bool) {
	if !cell.IsNumber() {
		return CellStyle{}, false
	}
	var style CellStyle
	matched := false
	for _, r := range rules {
		if r.Column == column && r.Matches(cell.Value) {
			style = CellStyle{Background: r.Background, Color: r.Color}
			matched = true
		}
	}
	return style, matched
}

// ColumnStyle is the data grid styling of one column
type ColumnStyle struct {
	Field      string `json:"field"`
	Background string `json:"backgroundColor,omitempty"`
	Color      string `json:"color,omitempty"`
	Selected   bool   `json:"selected"`
}

// GridColumnStyles shades the selected columns grey and leaves the others in black text
func GridColumnStyles(columns, selected []string) []ColumnStyle {
	out := make([]ColumnStyle, len(columns))
	for i, c := range columns {
		if prevalence.Contains(selected, c) {
			out[i] = ColumnStyle{Field: c, Background: prevalence.ColorSelectedColumn, Selected: true}
		} else {
			out[i] = ColumnStyle{Field: c, Color: prevalence.ColorPlainText}
		}
	}
	return out
}
