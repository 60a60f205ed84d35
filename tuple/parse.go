package tuple

import (
	"fmt"
	"strings"

	"github.com/spektr-org/spektr-olap/schema"
)

// ============================================================================
// PARSING — "{([Time].[2024], [Product].[A]), ...}" → List
// ============================================================================
// Members resolve through the cube. With ignoreInvalid set, unknown members
// become null members, and any tuple containing a null member is dropped.
// ============================================================================

// ParseTupleList parses a braced list of parenthesised tuples. Bare members
// are accepted as 1-tuples. The shape is inferred from the first tuple unless
// given.
func ParseTupleList(cube *schema.Cube, text string, ignoreInvalid bool, shape ...*schema.Hierarchy) (*ArrayList, error) {
	elements, err := splitElements(text)
	if err != nil {
		return nil, err
	}

	var out *ArrayList
	if len(shape) > 0 {
		out = NewWithCapacity(len(elements), shape...)
	}

	for _, el := range elements {
		idents := []string{el}
		if strings.HasPrefix(el, "(") {
			if !strings.HasSuffix(el, ")") {
				return nil, fmt.Errorf("unterminated tuple %q", el)
			}
			idents, err = splitTopLevel(el[1 : len(el)-1])
			if err != nil {
				return nil, err
			}
		}
		if out != nil && len(idents) != out.Arity() {
			return nil, fmt.Errorf("%w: tuple %s has %d members, expected %d", ErrArity, el, len(idents), out.Arity())
		}

		t := make([]*schema.Member, len(idents))
		for i, ident := range idents {
			var expected *schema.Hierarchy
			if out != nil {
				expected = out.shape[i]
			}
			m, err := cube.ResolveMember(ident, ignoreInvalid, expected)
			if err != nil {
				return nil, err
			}
			t[i] = m
		}

		if out == nil {
			s := make([]*schema.Hierarchy, len(t))
			for i, m := range t {
				s[i] = m.Hierarchy()
			}
			out = NewWithCapacity(len(elements), s...)
		}
		if HasNull(t) {
			continue
		}
		if err := out.Append(t...); err != nil {
			return nil, err
		}
	}

	if out == nil {
		return nil, fmt.Errorf("cannot infer shape of empty tuple list %q", text)
	}
	return out, nil
}

// ParseMemberList parses "{[H].[a], [H].[b]}" into an arity-1 list on h.
// A nil h is inferred from the first member.
func ParseMemberList(cube *schema.Cube, text string, ignoreInvalid bool, h *schema.Hierarchy) (*ArrayList, error) {
	var shape []*schema.Hierarchy
	if h != nil {
		shape = []*schema.Hierarchy{h}
	}
	l, err := ParseTupleList(cube, text, ignoreInvalid, shape...)
	if err != nil {
		return nil, err
	}
	if l.Arity() != 1 {
		return nil, fmt.Errorf("%w: member list %q has arity %d", ErrArity, text, l.Arity())
	}
	return l, nil
}

// splitElements strips the outer braces and splits on top-level commas.
func splitElements(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return nil, fmt.Errorf("set %q must be enclosed in braces", text)
	}
	return splitTopLevel(text[1 : len(text)-1])
}

// splitTopLevel splits on commas outside brackets and parentheses.
func splitTopLevel(s string) ([]string, error) {
	var parts []string
	var depth int
	inBracket := false
	start := 0

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case inBracket:
			if c == ']' {
				if i+1 < len(s) && s[i+1] == ']' {
					i++
					continue
				}
				inBracket = false
			}
		case c == '[':
			inBracket = true
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced ')' in %q", s)
			}
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if inBracket || depth != 0 {
		return nil, fmt.Errorf("unbalanced brackets in %q", s)
	}

	if last := strings.TrimSpace(s[start:]); last != "" || len(parts) > 0 {
		parts = append(parts, last)
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty element in %q", s)
		}
	}
	return parts, nil
}
