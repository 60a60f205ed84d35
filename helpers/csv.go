package helpers

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spektr-org/spektr-olap/engine"
	"github.com/spektr-org/spektr-olap/schema"
)

// ============================================================================
// CSV HELPER — Parses CSV data into []engine.Record
// ============================================================================
// Consumer reads the CSV from wherever it lives (file, S3, Sheets).
// This helper converts the raw bytes into generic Records using the schema,
// and LoadCSV goes all the way to a cube plus its fact table.
// ============================================================================

// ParseCSV parses CSV bytes into Records using schema for classification.
// Each row becomes a Record with dimensions (string) and measures (numeric).
// Malformed rows are skipped.
func ParseCSV(data []byte, sch schema.Config) ([]engine.Record, error) {
	reader := csv.NewReader(bytes.NewReader(data))

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV headers: %w", err)
	}

	dimSet := make(map[string]bool)
	for _, d := range sch.Dimensions {
		dimSet[d.Key] = true
	}
	measSet := make(map[string]bool)
	for _, m := range sch.Measures {
		if !m.IsSynthetic {
			measSet[m.Key] = true
		}
	}

	type colMapping struct {
		schemaKey   string
		isDimension bool
		isMeasure   bool
	}

	mappings := make([]colMapping, len(headers))
	for i, h := range headers {
		key := schema.ColumnKey(h)
		if dimSet[key] {
			mappings[i] = colMapping{schemaKey: key, isDimension: true}
		} else if measSet[key] {
			mappings[i] = colMapping{schemaKey: key, isMeasure: true}
		}
	}

	var records []engine.Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}

		rec := engine.Record{
			Dimensions: make(map[string]string),
			Measures:   make(map[string]float64),
		}

		for i, val := range row {
			if i >= len(mappings) {
				break
			}
			m := mappings[i]
			val = strings.TrimSpace(val)

			if m.isDimension {
				rec.Dimensions[m.schemaKey] = val
			} else if m.isMeasure {
				if f, ok := schema.ParseNumber(val); ok {
					rec.Measures[m.schemaKey] = f
				}
			}
		}

		// Synthetic measures such as record_count
		for _, m := range sch.Measures {
			if m.IsSynthetic && m.DefaultAggregation == "count" {
				rec.Measures[m.Key] = 1
			}
		}

		records = append(records, rec)
	}

	return records, nil
}

// ParseCSVView parses CSV into a RecordView (convenience wrapper).
func ParseCSVView(data []byte, sch schema.Config) (engine.RecordView, error) {
	records, err := ParseCSV(data, sch)
	if err != nil {
		return nil, err
	}
	return engine.NewSliceView(records), nil
}

// Dataset is a CSV file loaded into a cube.
type Dataset struct {
	Schema *schema.Config
	Cube   *schema.Cube
	Facts  *engine.FactTable
}

// LoadCSV discovers the schema of data, builds the cube and indexes the fact
// rows. A non-empty filter restricts the rows the fact table reads; the cube
// keeps every member.
func LoadCSV(data []byte, filters engine.Filters, opts ...schema.DiscoverOptions) (*Dataset, error) {
	cfg, err := schema.DiscoverFromCSV(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("discover schema: %w", err)
	}
	view, err := ParseCSVView(data, *cfg)
	if err != nil {
		return nil, err
	}
	cube, err := schema.BuildCube(*cfg, view)
	if err != nil {
		return nil, fmt.Errorf("build cube: %w", err)
	}
	facts, err := engine.NewFactTable(cube, view)
	if err != nil {
		return nil, err
	}
	if facts, err = facts.Filter(filters); err != nil {
		return nil, err
	}
	return &Dataset{Schema: cfg, Cube: cube, Facts: facts}, nil
}
