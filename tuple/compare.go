package tuple

import (
	"github.com/spektr-org/spektr-olap/schema"
)

// CompareMembers orders members of one hierarchy hierarchically: the null
// member first, then the All member, then a pre-order walk where an ancestor
// precedes its descendants and siblings keep creation order. Members of
// different hierarchies order by hierarchy ordinal.
func CompareMembers(a, b *schema.Member) int {
	if a == b {
		return 0
	}
	if ha, hb := a.Hierarchy().Ordinal(), b.Hierarchy().Ordinal(); ha != hb {
		return cmpInt(ha, hb)
	}
	switch {
	case a.IsNull():
		return -1
	case b.IsNull():
		return 1
	case a.IsAll():
		return -1
	case b.IsAll():
		return 1
	}

	x, y := a, b
	for x.Depth() > y.Depth() {
		x = x.Parent()
	}
	for y.Depth() > x.Depth() {
		y = y.Parent()
	}
	if x == y {
		return cmpInt(a.Depth(), b.Depth())
	}
	for x.Parent() != y.Parent() {
		x, y = x.Parent(), y.Parent()
	}
	return cmpInt(x.Ordinal(), y.Ordinal())
}

// Compare orders tuples component-wise. Shorter tuples sort first when one is
// a prefix of the other.
func Compare(a, b []*schema.Member) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := CompareMembers(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

// Equal reports whether two tuples hold the same members in the same order.
func Equal(a, b []*schema.Member) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Sort orders the list in place using Compare, descending when desc is set.
func Sort(l *ArrayList, desc bool) {
	l.Sort(func(a, b []*schema.Member) bool {
		if desc {
			return Compare(a, b) > 0
		}
		return Compare(a, b) < 0
	})
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
