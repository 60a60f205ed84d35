package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/spektr-org/spektr-olap/engine"
)

// ============================================================================
// OUTPUT — Sheets-ready CSV, JSON and YAML renderers
// ============================================================================

func encode(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", format)
}

// writeTableCSV writes the column labels, the rows and a totals line whose
// label sits in the first column.
func writeTableCSV(w io.Writer, t *engine.TableData) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Label
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}

	if t.Summary != nil && len(t.Rows) > 0 {
		total := make([]string, len(t.Columns))
		total[0] = t.Summary.Label
		for i, c := range t.Columns {
			if c.Type == "number" {
				total[i] = t.Summary.Values[c.Key]
			}
		}
		if err := cw.Write(total); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeTable(w io.Writer, format string, t *engine.TableData) error {
	if format == "csv" {
		return writeTableCSV(w, t)
	}
	return encode(w, format, t)
}
