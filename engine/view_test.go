package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/schema"
)

type order struct {
	Region string
	Amount float64
}

func TestDomainAdapter(t *testing.T) {
	adapter := NewDomainAdapter[order]().
		Dimension("region", func(o order) string { return o.Region }).
		Measure("amount", func(o order) float64 { return o.Amount }).
		Measure("amount", func(o order) float64 { return o.Amount * 2 })

	view := adapter.Bind([]order{{"emea", 10}, {"apac", 5}})
	assert.Equal(t, 2, view.Len())
	assert.Equal(t, []string{"region"}, view.DimensionKeys())
	assert.Equal(t, []string{"amount"}, view.MeasureKeys(), "re-registering replaces the accessor")
	assert.Equal(t, "apac", view.Dimension(1, "region"))
	assert.Equal(t, 20.0, view.Measure(0, "amount"))
	assert.Empty(t, view.Dimension(5, "region"))
	assert.Empty(t, view.Dimension(0, "missing"))
	assert.Zero(t, view.Measure(0, "missing"))
}

func TestDomainViewFeedsCube(t *testing.T) {
	view := NewDomainAdapter[order]().
		Dimension("region", func(o order) string { return o.Region }).
		Measure("amount", func(o order) float64 { return o.Amount }).
		Bind([]order{{"emea", 10}, {"apac", 5}, {"emea", 1}})

	cfg := schema.Config{
		Name:       "Orders",
		Dimensions: []schema.DimensionMeta{{Key: "region"}},
		Measures:   []schema.MeasureMeta{schema.DefaultMeasure("amount", "Amount")},
	}
	cube, err := schema.BuildCube(cfg, view)
	require.NoError(t, err)
	facts, err := NewFactTable(cube, view)
	require.NoError(t, err)

	emea, ok := cube.MemberByUniqueName("[region].[emea]")
	require.True(t, ok)
	coord := cube.DefaultCoordinate()
	coord[emea.Hierarchy().Ordinal()] = emea
	v, err := facts.CellValue(coord, nil)
	require.NoError(t, err)
	assert.Equal(t, 11.0, v)
}

func TestSliceViewKeysSorted(t *testing.T) {
	view := NewSliceView(salesRecords())
	assert.Equal(t, []string{"product", "quarter", "region", "year"}, view.DimensionKeys())
	assert.Equal(t, []string{"price", "revenue"}, view.MeasureKeys())
	assert.Empty(t, view.Dimension(-1, "year"))
	assert.Zero(t, view.Measure(99, "revenue"))

	empty := NewSliceView(nil)
	assert.Zero(t, empty.Len())
	assert.Empty(t, empty.DimensionKeys())
}

func TestSubView(t *testing.T) {
	view := NewSliceView(salesRecords())
	sub := newSubView(view, []int{4, 0})
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, "2023", sub.Dimension(0, "year"))
	assert.Equal(t, 100.0, sub.Measure(1, "revenue"))
	assert.Empty(t, sub.Dimension(2, "year"))
	assert.Zero(t, sub.Measure(-1, "revenue"))
	assert.Equal(t, view.DimensionKeys(), sub.DimensionKeys())
}

func TestAggregate(t *testing.T) {
	view := NewSliceView(salesRecords())
	assert.Equal(t, 800.0, Aggregate(view, "revenue", "sum"))
	assert.Equal(t, 800.0, Aggregate(view, "revenue", "unknown"))
	assert.Equal(t, 5.0, Aggregate(view, "revenue", "count"))
	assert.Equal(t, 160.0, Aggregate(view, "revenue", "avg"))
	assert.Equal(t, 300.0, Aggregate(view, "revenue", "max"))
	assert.Equal(t, 50.0, Aggregate(view, "revenue", "min"))

	empty := NewSliceView(nil)
	assert.Zero(t, AvgMeasure(empty, "revenue"))
	assert.Zero(t, MaxMeasure(empty, "revenue"))
	assert.Zero(t, MinMeasure(empty, "revenue"))
}

func TestFilters(t *testing.T) {
	view := NewSliceView(salesRecords())

	assert.Same(t, view, ApplyFilters(view, Filters{}))

	f, err := ParseFilters([]string{"region=EMEA", "product = A | B", "year=2024"})
	require.NoError(t, err)
	assert.True(t, f.HasFilter("product"))
	assert.False(t, f.HasFilter("quarter"))
	assert.Equal(t, []string{"A", "B"}, f.Dimensions["product"])

	got := ApplyFilters(view, f)
	assert.Equal(t, 2, got.Len())
	assert.Equal(t, 300.0, SumMeasure(got, "revenue"))

	_, err = ParseFilters([]string{"region"})
	var syntax *FilterSyntaxError
	require.True(t, errors.As(err, &syntax))
	assert.Equal(t, "region", syntax.Expr)
	_, err = ParseFilters([]string{"=x"})
	assert.Error(t, err)

	assert.True(t, Filters{Dimensions: map[string][]string{"year": nil}}.IsEmpty())
}
