package engine

import (
	"github.com/spektr-org/spektr-olap/tuple"
)

// ============================================================================
// SPEKTR OLAP ENGINE TYPES
// ============================================================================
// Fact rows come in as Records (or any RecordView). A FactTable indexes them
// against the cube so the evaluator can read cell values; Execute evaluates
// an axis grid and returns a Result that BuildTable renders.
// ============================================================================

// ============================================================================
// RECORD — Generic fact row
// ============================================================================

// Record is a single fact row with string dimensions and numeric measures.
//
//	Record{Dimensions["region"]="EMEA", Measures["revenue"]=3500.00}
type Record struct {
	Dimensions map[string]string  `json:"dimensions"`
	Measures   map[string]float64 `json:"measures"`
}

// Filters restrict the fact rows a FactTable reads.
// Keys are dimension names. Values are allowed values.
// OR within a dimension, AND across dimensions. Empty = all.
type Filters struct {
	Dimensions map[string][]string `json:"dimensions"`
}

// HasFilter returns true if a specific dimension filter is set.
func (f Filters) HasFilter(dimension string) bool {
	if f.Dimensions == nil {
		return false
	}
	vals, ok := f.Dimensions[dimension]
	return ok && len(vals) > 0
}

// IsEmpty returns true if no filters are set.
func (f Filters) IsEmpty() bool {
	for _, vals := range f.Dimensions {
		if len(vals) > 0 {
			return false
		}
	}
	return true
}

// ============================================================================
// RESULT — Evaluated axis grid
// ============================================================================

// Result holds the evaluated cells of a query. Cells[r][c] is the value at
// row tuple r and column tuple c; a nil value is an empty cell. Columns is
// nil when the query has no column axis, in which case every row holds a
// single cell.
type Result struct {
	Rows     tuple.List `json:"-"`
	Columns  tuple.List `json:"-"`
	Cells    [][]any    `json:"cells"`
	Scenario string     `json:"scenario,omitempty"`
}

// ColumnCount returns the number of cells in each row.
func (r *Result) ColumnCount() int {
	if r.Columns == nil {
		return 1
	}
	return r.Columns.Len()
}

// ============================================================================
// TABLE TYPES
// ============================================================================

// TableData defines how to render a table.
type TableData struct {
	Title   string     `json:"title"`
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
	Summary *Summary   `json:"summary,omitempty"`
}

// Column defines a table column.
type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Type  string `json:"type"`  // "text", "number"
	Align string `json:"align"` // "left", "right"
}

// Summary provides totals for a table.
type Summary struct {
	Label  string            `json:"label"`
	Values map[string]string `json:"values"`
}
