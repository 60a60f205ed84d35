package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/engine"
	"github.com/spektr-org/spektr-olap/schema"
)

var revenueCSV = []byte(`Fiscal Year,Quarter,Product,Revenue
FY2024,FY2024-Q1,A,100.50
FY2024,FY2024-Q1,B,200.00
FY2024,broken
FY2024,FY2024-Q2,A,"1,300.00"
FY2023,FY2023-Q1,A,50.25
`)

func cell(t *testing.T, ds *Dataset, measure string, uniqueNames ...string) any {
	t.Helper()
	coord := ds.Cube.DefaultCoordinate()
	for _, name := range append(uniqueNames, "[Measures].["+measure+"]") {
		m, ok := ds.Cube.MemberByUniqueName(name)
		require.True(t, ok, name)
		coord[m.Hierarchy().Ordinal()] = m
	}
	v, err := ds.Facts.CellValue(coord, nil)
	require.NoError(t, err)
	return v
}

func TestParseCSV(t *testing.T) {
	sch := schema.Config{
		Dimensions: []schema.DimensionMeta{{Key: "fiscal_year"}, {Key: "product"}},
		Measures: []schema.MeasureMeta{
			schema.DefaultMeasure("revenue", "Revenue"),
			{Key: "record_count", IsSynthetic: true, DefaultAggregation: "count"},
		},
	}
	records, err := ParseCSV(revenueCSV, sch)
	require.NoError(t, err)
	require.Len(t, records, 4, "malformed row skipped")

	assert.Equal(t, map[string]string{"fiscal_year": "FY2024", "product": "A"}, records[2].Dimensions)
	assert.Equal(t, map[string]float64{"revenue": 1300, "record_count": 1}, records[2].Measures)

	view, err := ParseCSVView(revenueCSV, sch)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Len())
	assert.Equal(t, 1650.75, engine.SumMeasure(view, "revenue"))

	_, err = ParseCSV(nil, sch)
	assert.Error(t, err)
}

func TestLoadCSV(t *testing.T) {
	ds, err := LoadCSV(revenueCSV, engine.Filters{})
	require.NoError(t, err)

	var names []string
	for _, h := range ds.Cube.Hierarchies() {
		names = append(names, h.Name())
	}
	assert.Equal(t, []string{"fiscal_year", "product", schema.MeasuresHierarchy}, names)

	fy, ok := ds.Cube.Hierarchy("fiscal_year")
	require.True(t, ok)
	assert.Equal(t, []string{"fiscal_year", "quarter"}, fy.Levels())

	assert.Equal(t, 1650.75, cell(t, ds, "revenue"))
	assert.Equal(t, 3.0, cell(t, ds, "record_count", "[fiscal_year].[FY2024]"))
	assert.Equal(t, 1300.0, cell(t, ds, "revenue", "[fiscal_year].[FY2024].[FY2024-Q2]"))
}

func TestLoadCSVFiltered(t *testing.T) {
	ds, err := LoadCSV(revenueCSV, engine.Filters{Dimensions: map[string][]string{"product": {"a"}}})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Facts.View().Len())
	assert.Equal(t, 1450.75, cell(t, ds, "revenue"))
	assert.Nil(t, cell(t, ds, "revenue", "[product].[B]"), "the cube keeps filtered members")
}

func TestLoadCSVErrors(t *testing.T) {
	_, err := LoadCSV([]byte("a,b\n"), engine.Filters{})
	assert.ErrorContains(t, err, "discover schema")
}
