package tuple

import (
	"fmt"

	"github.com/spektr-org/spektr-olap/schema"
)

// ============================================================================
// LIVE VIEWS — SubList, ColumnView, position callback
// ============================================================================

type inserter interface {
	insert(row int, members []*schema.Member) error
}

// subList is a window [from, to) onto a parent list. Rows removed from the
// parent behind the view's back shrink the window.
type subList struct {
	parent List
	from   int
	to     int
}

func (s *subList) Arity() int                 { return s.parent.Arity() }
func (s *subList) Shape() []*schema.Hierarchy { return s.parent.Shape() }

func (s *subList) Len() int {
	to := min(s.to, s.parent.Len())
	return max(to-s.from, 0)
}

func (s *subList) row(row int) int {
	if row < 0 || row >= s.Len() {
		panic(fmt.Sprintf("tuple: row %d out of range [0,%d)", row, s.Len()))
	}
	return s.from + row
}

func (s *subList) Get(row, column int) *schema.Member { return s.parent.Get(s.row(row), column) }
func (s *subList) Tuple(row int) []*schema.Member     { return s.parent.Tuple(s.row(row)) }

func (s *subList) Append(members ...*schema.Member) error {
	return s.insert(s.Len(), members)
}

func (s *subList) insert(row int, members []*schema.Member) error {
	ins, ok := s.parent.(inserter)
	if !ok {
		return fmt.Errorf("tuple: parent list %T does not support insertion", s.parent)
	}
	n := s.Len()
	if err := ins.insert(s.from+row, members); err != nil {
		return err
	}
	s.to = s.from + n + 1
	return nil
}

func (s *subList) Remove(row int) {
	n := s.Len()
	s.parent.Remove(s.row(row))
	s.to = s.from + n - 1
}

func (s *subList) Column(index int) (*ColumnView, error) { return newColumnView(s, index) }

func (s *subList) Copy(capacity int) List {
	if capacity >= 0 {
		return NewWithCapacity(capacity, s.Shape()...)
	}
	return deepCopy(s)
}

func (s *subList) Project(columns ...int) (List, error) { return project(s, columns) }

func (s *subList) SubList(from, to int) List {
	if from < 0 || to > s.Len() || from > to {
		panic(fmt.Sprintf("tuple: sublist [%d,%d) out of range [0,%d]", from, to, s.Len()))
	}
	return &subList{parent: s, from: from, to: to}
}

// Fix copies the visible rows so later changes to the parent are not seen.
func (s *subList) Fix() List { return deepCopy(s) }

func (s *subList) Cursor() *Cursor { return newCursor(s) }

// ColumnView is a live view of one column of a list. Appending a member adds
// a tuple whose other columns hold null members; removing an element removes
// its whole tuple from the parent.
type ColumnView struct {
	list   List
	column int
}

func newColumnView(l List, index int) (*ColumnView, error) {
	if index < 0 || index >= l.Arity() {
		return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrColumnRange, index, l.Arity())
	}
	return &ColumnView{list: l, column: index}, nil
}

func (c *ColumnView) Len() int                     { return c.list.Len() }
func (c *ColumnView) At(i int) *schema.Member      { return c.list.Get(i, c.column) }
func (c *ColumnView) Hierarchy() *schema.Hierarchy { return c.list.Shape()[c.column] }
func (c *ColumnView) Remove(i int)                 { c.list.Remove(i) }

func (c *ColumnView) Append(m *schema.Member) error {
	shape := c.list.Shape()
	if m == nil || m.Hierarchy() != shape[c.column] {
		return fmt.Errorf("%w: column %d expects %s, got %v", ErrShape, c.column, shape[c.column], m)
	}
	t := NullTuple(shape)
	t[c.column] = m
	return c.list.Append(t...)
}

// Members copies the column out.
func (c *ColumnView) Members() []*schema.Member {
	out := make([]*schema.Member, c.Len())
	for i := range out {
		out[i] = c.At(i)
	}
	return out
}

// WithPositionCallback wraps l so that every row read through Get or Tuple
// reports its index to fn.
func WithPositionCallback(l List, fn func(row int)) List {
	return &positionList{List: l, fn: fn}
}

type positionList struct {
	List
	fn func(row int)
}

func (p *positionList) Get(row, column int) *schema.Member {
	p.fn(row)
	return p.List.Get(row, column)
}

func (p *positionList) Tuple(row int) []*schema.Member {
	p.fn(row)
	return p.List.Tuple(row)
}

func (p *positionList) insert(row int, members []*schema.Member) error {
	ins, ok := p.List.(inserter)
	if !ok {
		return fmt.Errorf("tuple: list %T does not support insertion", p.List)
	}
	return ins.insert(row, members)
}

// Fix detaches from the wrapped list. Reading the rows for the copy does not
// report positions.
func (p *positionList) Fix() List { return deepCopy(p.List) }

func (p *positionList) Column(index int) (*ColumnView, error) { return newColumnView(p, index) }
func (p *positionList) Project(columns ...int) (List, error)  { return project(p, columns) }
func (p *positionList) Cursor() *Cursor                       { return newCursor(p) }

func (p *positionList) SubList(from, to int) List {
	if from < 0 || to > p.Len() || from > to {
		panic(fmt.Sprintf("tuple: sublist [%d,%d) out of range [0,%d]", from, to, p.Len()))
	}
	return &subList{parent: p, from: from, to: to}
}

// ============================================================================
// CURSOR
// ============================================================================

// Cursor walks a list one tuple at a time. It starts before the first tuple.
type Cursor struct {
	list List
	pos  int
}

func newCursor(l List) *Cursor { return &Cursor{list: l, pos: -1} }

// Next advances to the next tuple and reports whether there is one.
func (c *Cursor) Next() bool {
	if c.pos+1 < c.list.Len() {
		c.pos++
		return true
	}
	c.pos = c.list.Len()
	return false
}

// Valid reports whether the cursor is positioned on a tuple.
func (c *Cursor) Valid() bool { return c.pos >= 0 && c.pos < c.list.Len() }

// Position is the zero-based index of the current tuple, or -1.
func (c *Cursor) Position() int {
	if !c.Valid() {
		return -1
	}
	return c.pos
}

// Tuple returns the current tuple, or nil when not positioned.
func (c *Cursor) Tuple() []*schema.Member {
	if !c.Valid() {
		return nil
	}
	return c.list.Tuple(c.pos)
}

// Member returns column of the current tuple, or nil when not positioned.
func (c *Cursor) Member(column int) *schema.Member {
	if !c.Valid() {
		return nil
	}
	return c.list.Get(c.pos, column)
}

// Reset moves the cursor back before the first tuple.
func (c *Cursor) Reset() { c.pos = -1 }
