package engine

import (
	"fmt"
	"strings"
)

// ============================================================================
// FILTERS — Dimension-based row restriction via RecordView
// ============================================================================
// Single-pass filter: checks ALL dimension constraints per record in one loop.
// Returns a SubView (index list into parent) — zero data copy. A FactTable
// built over the filtered view only ever sees the surviving rows.
// ============================================================================

// ApplyFilters returns a view of records matching all dimension filters.
// Dimensions are AND-combined; values within a dimension are OR-combined and
// compared case-insensitively. Empty filter = no restriction.
func ApplyFilters(view RecordView, filters Filters) RecordView {
	if filters.IsEmpty() {
		return view
	}

	sets := make(map[string]map[string]bool)
	for dim, allowed := range filters.Dimensions {
		if len(allowed) > 0 {
			sets[dim] = toLowerSet(allowed)
		}
	}

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		pass := true
		for dim, set := range sets {
			if !set[strings.ToLower(view.Dimension(i, dim))] {
				pass = false
				break
			}
		}
		if pass {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices)
}

// ParseFilters reads "dim=a|b" expressions into Filters. Repeating a
// dimension adds values to it.
func ParseFilters(exprs []string) (Filters, error) {
	f := Filters{Dimensions: make(map[string][]string)}
	for _, expr := range exprs {
		dim, vals, ok := strings.Cut(expr, "=")
		dim = strings.TrimSpace(dim)
		if !ok || dim == "" {
			return Filters{}, &FilterSyntaxError{Expr: expr}
		}
		for _, v := range strings.Split(vals, "|") {
			if v = strings.TrimSpace(v); v != "" {
				f.Dimensions[dim] = append(f.Dimensions[dim], v)
			}
		}
	}
	return f, nil
}

// FilterSyntaxError reports a filter expression that is not "dim=values".
type FilterSyntaxError struct {
	Expr string
}

func (e *FilterSyntaxError) Error() string {
	return fmt.Sprintf("filter %q is not of the form dim=value[|value...]", e.Expr)
}

// toLowerSet converts a string slice to a lowercase lookup set.
func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}
