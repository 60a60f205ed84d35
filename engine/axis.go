package engine

import (
	"fmt"
	"strings"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

// ============================================================================
// AXES — Text → set calcs for Query rows and columns
// ============================================================================
//
//	{([Time].[2024], [Product].[A]), ...}   explicit tuple list
//	[Time]                                  root members of a hierarchy
//	[Time].[2024]                           children of a member (or itself if a leaf)
//	[Time] * [Product]                      crossjoin of the parts
//
// ============================================================================

// ParseAxis turns an axis expression into a set calc bound to cube.
func ParseAxis(cube *schema.Cube, text string, ignoreInvalid bool) (evaluator.ListCalc, error) {
	parts := splitCrossJoin(text)
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty axis expression")
	}
	var calc evaluator.ListCalc
	for _, part := range parts {
		l, err := parseAxisPart(cube, part, ignoreInvalid)
		if err != nil {
			return nil, fmt.Errorf("axis %q: %w", text, err)
		}
		next := evaluator.ConstantList(l)
		if calc == nil {
			calc = next
		} else {
			calc = CrossJoin(calc, next)
		}
	}
	return calc, nil
}

func parseAxisPart(cube *schema.Cube, part string, ignoreInvalid bool) (tuple.List, error) {
	if strings.HasPrefix(part, "{") {
		return tuple.ParseTupleList(cube, part, ignoreInvalid)
	}

	segments, err := schema.ParseIdentifier(part)
	if err != nil {
		return nil, err
	}
	el, n := cube.Lookup(segments)
	if n != len(segments) {
		return nil, &schema.NotFoundError{Path: schema.QuoteIdentifier(segments), Cube: cube.Name()}
	}
	switch v := el.(type) {
	case *schema.Hierarchy:
		return tuple.FromMembers(v, v.RootMembers()...)
	case *schema.Member:
		if v.IsAll() {
			return tuple.FromMembers(v.Hierarchy(), v.Hierarchy().RootMembers()...)
		}
		children := v.Children()
		if len(children) == 0 {
			children = []*schema.Member{v}
		}
		return tuple.FromMembers(v.Hierarchy(), children...)
	}
	return nil, fmt.Errorf("%s does not name a hierarchy or member", part)
}

// splitCrossJoin splits on '*' outside brackets and braces.
func splitCrossJoin(text string) []string {
	var parts []string
	depth, start := 0, 0
	inBracket := false
	flush := func(end int) {
		if p := strings.TrimSpace(text[start:end]); p != "" {
			parts = append(parts, p)
		}
	}
	for i, r := range text {
		switch {
		case inBracket:
			if r == ']' {
				inBracket = false
			}
		case r == '[':
			inBracket = true
		case r == '{':
			depth++
		case r == '}':
			depth--
		case r == '*' && depth == 0:
			flush(i)
			start = i + 1
		}
	}
	flush(len(text))
	return parts
}

// CrossJoin pairs every tuple of a with every tuple of b, a-major.
func CrossJoin(a, b evaluator.ListCalc) evaluator.ListCalc {
	return evaluator.ListCalcFunc(func(ev *evaluator.Evaluator) (tuple.List, error) {
		left, err := a.EvaluateList(ev)
		if err != nil {
			return nil, err
		}
		right, err := b.EvaluateList(ev)
		if err != nil {
			return nil, err
		}
		out := tuple.NewWithCapacity(left.Len()*right.Len(), append(left.Shape(), right.Shape()...)...)
		for i := 0; i < left.Len(); i++ {
			lt := left.Tuple(i)
			for j := 0; j < right.Len(); j++ {
				if err := out.Append(append(lt[:len(lt):len(lt)], right.Tuple(j)...)...); err != nil {
					return nil, err
				}
			}
		}
		return out, nil
	})
}
