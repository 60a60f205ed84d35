package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// IDENTIFIERS — "[Product].[Expense].[Rent]" → segments → Member
// ============================================================================

// ErrWrongHierarchy is returned when an identifier resolves to a member of a
// different hierarchy than the caller expected.
var ErrWrongHierarchy = errors.New("member belongs to the wrong hierarchy")

// NotFoundError reports an identifier that resolves to nothing in a cube.
type NotFoundError struct {
	Path string
	Cube string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("MDX object '%s' not found in %s", e.Path, e.Cube)
}

// ParseIdentifier splits a dotted identifier into its name segments.
// Bracketed segments may contain dots; "]]" escapes a closing bracket.
func ParseIdentifier(s string) ([]string, error) {
	var segments []string
	i := 0
	for i < len(s) {
		switch {
		case s[i] == '[':
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				if s[i] == ']' {
					if i+1 < len(s) && s[i+1] == ']' {
						b.WriteByte(']')
						i += 2
						continue
					}
					closed = true
					i++
					break
				}
				b.WriteByte(s[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated bracket in identifier %q", s)
			}
			segments = append(segments, b.String())
		default:
			end := strings.IndexByte(s[i:], '.')
			if end < 0 {
				end = len(s) - i
			}
			name := strings.TrimSpace(s[i : i+end])
			if name == "" {
				return nil, fmt.Errorf("empty segment in identifier %q", s)
			}
			segments = append(segments, name)
			i += end
		}

		if i < len(s) {
			if s[i] != '.' {
				return nil, fmt.Errorf("unexpected %q at offset %d in identifier %q", s[i], i, s)
			}
			i++
			if i == len(s) {
				return nil, fmt.Errorf("trailing dot in identifier %q", s)
			}
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("empty identifier")
	}
	return segments, nil
}

// QuoteIdentifier is the inverse of ParseIdentifier.
func QuoteIdentifier(segments []string) string {
	parts := make([]string, len(segments))
	for i, s := range segments {
		parts[i] = "[" + strings.ReplaceAll(s, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}

// Lookup resolves segments to a *Hierarchy (one segment) or a *Member. The
// second result is the number of segments that resolved, so callers can
// report the largest valid prefix.
func (c *Cube) Lookup(segments []string) (any, int) {
	if len(segments) == 0 {
		return nil, 0
	}
	h, ok := c.Hierarchy(segments[0])
	if !ok {
		return nil, 0
	}
	if len(segments) == 1 {
		return h, 1
	}

	var cur *Member
	for i, seg := range segments[1:] {
		var next *Member
		switch {
		case i == 0 && h.all != nil && strings.EqualFold(seg, allMemberName):
			next = h.all
		case i == 0 && strings.EqualFold(seg, nullMemberName):
			next = h.null
		default:
			next = h.child(cur, seg)
		}
		if next == nil {
			if cur == nil {
				return h, 1
			}
			return cur, i + 1
		}
		cur = next
	}
	return cur, len(segments)
}

// LookupMember resolves segments to a member.
//
// In strict mode an unresolvable identifier is a *NotFoundError. With
// ignoreInvalid set it resolves to the null member of expected, or, when no
// hierarchy is expected, the null member of the hierarchy that owns the
// largest resolvable prefix. A bare hierarchy resolves to its default member.
// A member of a hierarchy other than expected is ErrWrongHierarchy in either
// mode.
func (c *Cube) LookupMember(segments []string, ignoreInvalid bool, expected *Hierarchy) (*Member, error) {
	el, n := c.Lookup(segments)

	if n == len(segments) {
		var m *Member
		switch v := el.(type) {
		case *Member:
			m = v
		case *Hierarchy:
			m = v.DefaultMember()
		}
		if expected != nil && m.hierarchy != expected {
			return nil, fmt.Errorf("%s in %s: %w", m.uniqueName, expected, ErrWrongHierarchy)
		}
		return m, nil
	}

	if ignoreInvalid {
		if expected != nil {
			return expected.null, nil
		}
		switch v := el.(type) {
		case *Member:
			return v.hierarchy.null, nil
		case *Hierarchy:
			return v.null, nil
		}
	}
	return nil, &NotFoundError{Path: QuoteIdentifier(segments), Cube: c.name}
}

// ResolveMember parses and resolves an identifier string.
func (c *Cube) ResolveMember(identifier string, ignoreInvalid bool, expected *Hierarchy) (*Member, error) {
	segments, err := ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	return c.LookupMember(segments, ignoreInvalid, expected)
}
