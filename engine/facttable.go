package engine

import (
	"fmt"
	"strings"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

// ============================================================================
// FACT TABLE — RecordView → cell values
// ============================================================================
// Each row sits at one leaf per hierarchy: the deepest member its level
// values resolve to. The row is indexed under that leaf and every ancestor,
// so a coordinate member selects its own rows and those of its descendants.
// A cell is the intersection over all hierarchies, aggregated with the
// measure's default aggregation.
// ============================================================================

var (
	_ evaluator.CellSource   = (*FactTable)(nil)
	_ schema.DimensionSource = (RecordView)(nil)
)

// FactTable serves raw cell values from fact rows.
type FactTable struct {
	cube *schema.Cube
	view RecordView

	// index[ord] maps a member of hierarchy ord to the ascending row indices
	// it covers. nil for the Measures hierarchy.
	index []map[*schema.Member][]int
}

// NewFactTable indexes view against cube. Rows whose level values are not
// members of cube are placed at the deepest member that does resolve.
func NewFactTable(cube *schema.Cube, view RecordView) (*FactTable, error) {
	if cube == nil {
		return nil, fmt.Errorf("fact table: cube is required")
	}
	if view == nil {
		return nil, fmt.Errorf("fact table: view is required")
	}

	hs := cube.Hierarchies()
	t := &FactTable{
		cube:  cube,
		view:  view,
		index: make([]map[*schema.Member][]int, len(hs)),
	}
	for ord, h := range hs {
		if h.Name() == schema.MeasuresHierarchy {
			continue
		}
		levels := h.Levels()
		idx := make(map[*schema.Member][]int)
		for i := 0; i < view.Len(); i++ {
			for m := leafOf(h, levels, view, i); m != nil; m = m.Parent() {
				idx[m] = append(idx[m], i)
			}
		}
		t.index[ord] = idx
	}
	return t, nil
}

func leafOf(h *schema.Hierarchy, levels []string, view RecordView, i int) *schema.Member {
	leaf := h.AllMember()
	segments := []string{h.Name()}
	for _, level := range levels {
		val := strings.TrimSpace(view.Dimension(i, level))
		if val == "" {
			break
		}
		segments = append(segments, val)
		m, ok := h.MemberByUniqueName(schema.QuoteIdentifier(segments))
		if !ok {
			break
		}
		leaf = m
	}
	return leaf
}

func (t *FactTable) Cube() *schema.Cube { return t.cube }
func (t *FactTable) View() RecordView   { return t.view }

// Filter returns a fact table over the rows of t matching f.
func (t *FactTable) Filter(f Filters) (*FactTable, error) {
	if f.IsEmpty() {
		return t, nil
	}
	return NewFactTable(t.cube, ApplyFilters(t.view, f))
}

// CellValue returns the aggregated measure at coordinate as a float64, or nil
// when no row matches or the coordinate holds a null member. With an
// aggregation context the value is the sum over every combination of the
// tuples of the lists, each tuple overriding its hierarchies in coordinate.
func (t *FactTable) CellValue(coordinate []*schema.Member, aggregations []tuple.List) (any, error) {
	if len(coordinate) != len(t.index) {
		return nil, fmt.Errorf("coordinate has %d members, cube %s has %d hierarchies",
			len(coordinate), t.cube.Name(), len(t.index))
	}
	return t.aggregate(coordinate, aggregations)
}

func (t *FactTable) aggregate(coordinate []*schema.Member, lists []tuple.List) (any, error) {
	if len(lists) == 0 {
		return t.cell(coordinate)
	}

	l := lists[0]
	shape := l.Shape()
	c := append([]*schema.Member(nil), coordinate...)
	var total float64
	found := false
	for r := 0; r < l.Len(); r++ {
		for col, h := range shape {
			c[h.Ordinal()] = l.Get(r, col)
		}
		v, err := t.aggregate(c, lists[1:])
		if err != nil {
			return nil, err
		}
		if n, ok := evaluator.Number(v); ok {
			total += n
			found = true
		}
	}
	if !found {
		return nil, nil
	}
	return total, nil
}

func (t *FactTable) cell(coordinate []*schema.Member) (any, error) {
	var measure *schema.Member
	var rows []int
	all := true

	for ord, m := range coordinate {
		if m == nil || m.IsNull() {
			return nil, nil
		}
		idx := t.index[ord]
		if idx == nil {
			measure = m
			continue
		}
		if m.IsAll() {
			continue
		}
		matched := idx[m]
		if all {
			rows, all = matched, false
		} else {
			rows = intersect(rows, matched)
		}
		if len(rows) == 0 {
			return nil, nil
		}
	}

	if measure == nil {
		return nil, fmt.Errorf("cube %s has no measures", t.cube.Name())
	}
	meta, ok := t.cube.Measure(measure)
	if !ok {
		return nil, fmt.Errorf("%s is not a measure of cube %s", measure, t.cube.Name())
	}

	view := t.view
	if !all {
		view = newSubView(t.view, rows)
	}
	if view.Len() == 0 {
		return nil, nil
	}
	return Aggregate(view, meta.Key, meta.DefaultAggregation), nil
}

// intersect merges two ascending index lists into a new one.
func intersect(a, b []int) []int {
	out := make([]int, 0, min(len(a), len(b)))
	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}
