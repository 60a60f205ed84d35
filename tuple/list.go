// Package tuple holds ordered collections of equal-arity member tuples.
//
// An ArrayList owns its storage. SubList, Column and WithPositionCallback
// return live views that read through to the list they came from: sorting or
// retaining rows of the backing ArrayList in place is observable through any
// view taken earlier. Call Fix to detach a view from its backing list.
package tuple

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spektr-org/spektr-olap/schema"
)

var (
	// ErrArity is returned when a tuple does not match the arity of a list.
	ErrArity = errors.New("tuple arity mismatch")
	// ErrColumnRange is returned for a column index outside [0, arity).
	ErrColumnRange = errors.New("column index out of range")
	// ErrShape is returned when a member is placed in a column of another hierarchy.
	ErrShape = errors.New("member does not belong to the column hierarchy")
)

// List is an ordered sequence of tuples that all have the same arity.
//
// Get and Tuple panic on an out-of-range row, like slice indexing.
type List interface {
	Arity() int
	Len() int
	Shape() []*schema.Hierarchy

	Get(row, column int) *schema.Member
	Tuple(row int) []*schema.Member

	Append(members ...*schema.Member) error
	Remove(row int)

	Column(index int) (*ColumnView, error)
	Copy(capacity int) List
	Project(columns ...int) (List, error)
	SubList(from, to int) List
	Fix() List
	Cursor() *Cursor
}

// ============================================================================
// ARRAYLIST — Flat row-major storage
// ============================================================================

// ArrayList stores tuples row-major in a single slice.
type ArrayList struct {
	shape []*schema.Hierarchy
	data  []*schema.Member
}

// New creates an empty list whose columns belong to the given hierarchies.
func New(shape ...*schema.Hierarchy) *ArrayList {
	return NewWithCapacity(0, shape...)
}

// NewWithCapacity creates an empty list with room for capacity tuples.
func NewWithCapacity(capacity int, shape ...*schema.Hierarchy) *ArrayList {
	return &ArrayList{
		shape: append([]*schema.Hierarchy(nil), shape...),
		data:  make([]*schema.Member, 0, capacity*len(shape)),
	}
}

// FromTuples builds a list from tuples, inferring the shape from the first.
func FromTuples(tuples ...[]*schema.Member) (*ArrayList, error) {
	if len(tuples) == 0 {
		return nil, fmt.Errorf("cannot infer shape of an empty tuple set")
	}
	shape := make([]*schema.Hierarchy, len(tuples[0]))
	for i, m := range tuples[0] {
		shape[i] = m.Hierarchy()
	}
	l := NewWithCapacity(len(tuples), shape...)
	for _, t := range tuples {
		if err := l.Append(t...); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// FromMembers builds an arity-1 list.
func FromMembers(h *schema.Hierarchy, members ...*schema.Member) (*ArrayList, error) {
	l := NewWithCapacity(len(members), h)
	for _, m := range members {
		if err := l.Append(m); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *ArrayList) Arity() int { return len(l.shape) }

func (l *ArrayList) Len() int {
	if len(l.shape) == 0 {
		return 0
	}
	return len(l.data) / len(l.shape)
}

func (l *ArrayList) Shape() []*schema.Hierarchy {
	return append([]*schema.Hierarchy(nil), l.shape...)
}

func (l *ArrayList) Get(row, column int) *schema.Member {
	if column < 0 || column >= len(l.shape) {
		panic(fmt.Sprintf("tuple: column %d out of range [0,%d)", column, len(l.shape)))
	}
	return l.data[row*len(l.shape)+column]
}

func (l *ArrayList) Tuple(row int) []*schema.Member {
	n := len(l.shape)
	out := make([]*schema.Member, n)
	copy(out, l.data[row*n:(row+1)*n])
	return out
}

func (l *ArrayList) Append(members ...*schema.Member) error {
	if err := l.check(members); err != nil {
		return err
	}
	l.data = append(l.data, members...)
	return nil
}

func (l *ArrayList) insert(row int, members []*schema.Member) error {
	if err := l.check(members); err != nil {
		return err
	}
	n := len(l.shape)
	at := row * n
	l.data = append(l.data, members...)
	copy(l.data[at+n:], l.data[at:len(l.data)-n])
	copy(l.data[at:], members)
	return nil
}

func (l *ArrayList) check(members []*schema.Member) error {
	if len(members) != len(l.shape) {
		return fmt.Errorf("%w: got %d members, list arity is %d", ErrArity, len(members), len(l.shape))
	}
	for i, m := range members {
		if m == nil || m.Hierarchy() != l.shape[i] {
			return fmt.Errorf("%w: column %d expects %s, got %v", ErrShape, i, l.shape[i], m)
		}
	}
	return nil
}

func (l *ArrayList) Remove(row int) {
	n := len(l.shape)
	l.data = append(l.data[:row*n], l.data[(row+1)*n:]...)
}

func (l *ArrayList) Column(index int) (*ColumnView, error) {
	return newColumnView(l, index)
}

// Copy returns a deep copy for a negative capacity, else an empty list with
// room for capacity tuples.
func (l *ArrayList) Copy(capacity int) List {
	if capacity >= 0 {
		return NewWithCapacity(capacity, l.shape...)
	}
	return &ArrayList{
		shape: l.Shape(),
		data:  append([]*schema.Member(nil), l.data...),
	}
}

func (l *ArrayList) Project(columns ...int) (List, error) {
	return project(l, columns)
}

func (l *ArrayList) SubList(from, to int) List {
	if from < 0 || to > l.Len() || from > to {
		panic(fmt.Sprintf("tuple: sublist [%d,%d) out of range [0,%d]", from, to, l.Len()))
	}
	return &subList{parent: l, from: from, to: to}
}

// Fix returns l itself; an ArrayList does not alias any other list.
func (l *ArrayList) Fix() List { return l }

func (l *ArrayList) Cursor() *Cursor { return newCursor(l) }

// Sort reorders the tuples in place, stable with respect to less.
func (l *ArrayList) Sort(less func(a, b []*schema.Member) bool) {
	sort.Stable(&rowSorter{list: l, less: less})
}

// Retain keeps, in order, the tuples for which keep returns true.
func (l *ArrayList) Retain(keep func(t []*schema.Member) bool) {
	n := len(l.shape)
	w := 0
	for r := 0; r < l.Len(); r++ {
		t := l.data[r*n : (r+1)*n]
		if keep(t) {
			copy(l.data[w*n:], t)
			w++
		}
	}
	clear(l.data[w*n:])
	l.data = l.data[:w*n]
}

type rowSorter struct {
	list *ArrayList
	less func(a, b []*schema.Member) bool
	tmp  []*schema.Member
}

func (s *rowSorter) Len() int { return s.list.Len() }

func (s *rowSorter) Less(i, j int) bool {
	n := len(s.list.shape)
	d := s.list.data
	return s.less(d[i*n:(i+1)*n], d[j*n:(j+1)*n])
}

func (s *rowSorter) Swap(i, j int) {
	n := len(s.list.shape)
	d := s.list.data
	if s.tmp == nil {
		s.tmp = make([]*schema.Member, n)
	}
	copy(s.tmp, d[i*n:(i+1)*n])
	copy(d[i*n:(i+1)*n], d[j*n:(j+1)*n])
	copy(d[j*n:(j+1)*n], s.tmp)
}

// ============================================================================
// SHARED HELPERS
// ============================================================================

func project(l List, columns []int) (List, error) {
	shape := l.Shape()
	out := make([]*schema.Hierarchy, len(columns))
	for i, c := range columns {
		if c < 0 || c >= len(shape) {
			return nil, fmt.Errorf("%w: %d not in [0,%d)", ErrColumnRange, c, len(shape))
		}
		out[i] = shape[c]
	}

	p := NewWithCapacity(l.Len(), out...)
	for r := 0; r < l.Len(); r++ {
		for _, c := range columns {
			p.data = append(p.data, l.Get(r, c))
		}
	}
	return p, nil
}

func deepCopy(l List) *ArrayList {
	out := NewWithCapacity(l.Len(), l.Shape()...)
	for r := 0; r < l.Len(); r++ {
		out.data = append(out.data, l.Tuple(r)...)
	}
	return out
}

// NullTuple returns a tuple of the null member of each hierarchy in shape.
func NullTuple(shape []*schema.Hierarchy) []*schema.Member {
	out := make([]*schema.Member, len(shape))
	for i, h := range shape {
		out[i] = h.NullMember()
	}
	return out
}

// HasNull reports whether any member of t is a null member.
func HasNull(t []*schema.Member) bool {
	for _, m := range t {
		if m.IsNull() {
			return true
		}
	}
	return false
}
