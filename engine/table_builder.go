package engine

import (
	"fmt"
	"strings"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/schema"
)

// ============================================================================
// TABLE BUILDER — Produces TableData from an evaluated Result
// ============================================================================
// One text column per row hierarchy, then one number column per column
// tuple. Empty cells render as "". The summary totals each number column.
// ============================================================================

// BuildTable renders r as a table.
func BuildTable(r *Result, title string) *TableData {
	if r == nil || r.Rows == nil {
		return &TableData{Title: title, Columns: []Column{}, Rows: [][]string{}}
	}

	rowShape := r.Rows.Shape()
	columns := make([]Column, 0, len(rowShape)+r.ColumnCount())
	for _, h := range rowShape {
		columns = append(columns, Column{
			Key:   h.Name(),
			Label: LabelForDimension(h.Name()),
			Type:  "text",
			Align: "left",
		})
	}

	valueKeys := make([]string, r.ColumnCount())
	if r.Columns == nil {
		valueKeys[0] = "value"
		columns = append(columns, Column{Key: "value", Label: "Value", Type: "number", Align: "right"})
	} else {
		for c := range valueKeys {
			t := r.Columns.Tuple(c)
			valueKeys[c] = tupleLabel(t)
			columns = append(columns, Column{
				Key:   valueKeys[c],
				Label: memberLabel(t),
				Type:  "number",
				Align: "right",
			})
		}
	}

	rows := make([][]string, 0, len(r.Cells))
	totals := make([]float64, len(valueKeys))
	for i, line := range r.Cells {
		row := make([]string, 0, len(columns))
		for _, m := range r.Rows.Tuple(i) {
			row = append(row, m.Name())
		}
		for c, v := range line {
			row = append(row, formatCell(v))
			if n, ok := evaluator.Number(v); ok {
				totals[c] += n
			}
		}
		rows = append(rows, row)
	}

	values := make(map[string]string, len(valueKeys))
	for c, key := range valueKeys {
		values[key] = FormatNumber(totals[c], "")
	}

	return &TableData{
		Title:   title,
		Columns: columns,
		Rows:    rows,
		Summary: &Summary{
			Label:  fmt.Sprintf("Total (%s rows)", FormatInt(len(rows))),
			Values: values,
		},
	}
}

func memberLabel(t []*schema.Member) string {
	names := make([]string, len(t))
	for i, m := range t {
		names[i] = m.Name()
	}
	return strings.Join(names, " / ")
}

func formatCell(v any) string {
	if v == nil {
		return ""
	}
	if n, ok := evaluator.Number(v); ok {
		return fmt.Sprintf("%.2f", n)
	}
	return fmt.Sprint(v)
}
