package scenario

import "github.com/spektr-org/spektr-olap/schema"

// Relation classifies a writeback coordinate against the coordinate being
// evaluated.
type Relation int

const (
	// None means the edit does not affect the cell.
	None Relation = iota
	// Equal means the cell is the edited cell.
	Equal
	// Above means the edited cell is an aggregate of the evaluated cell.
	Above
	// Below means the edited cell is part of the evaluated aggregate.
	Below
)

func (r Relation) String() string {
	switch r {
	case None:
		return "NONE"
	case Equal:
		return "EQUAL"
	case Above:
		return "ABOVE"
	case Below:
		return "BELOW"
	}
	return "UNKNOWN"
}

// Relate compares the writeback coordinate cell with current, hierarchy by
// hierarchy. Both are full coordinates in hierarchy ordinal order. A
// coordinate that is above on one hierarchy and below on another is
// unrelated.
func Relate(cell, current []*schema.Member) Relation {
	if len(cell) != len(current) {
		return None
	}
	above, below := false, false
	for i, c := range cell {
		x := current[i]
		switch {
		case c == x:
		case c.IsAncestorOf(x):
			above = true
		case x.IsAncestorOf(c):
			below = true
		default:
			return None
		}
	}
	switch {
	case above && below:
		return None
	case above:
		return Above
	case below:
		return Below
	}
	return Equal
}
