package tuple

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/schema"
)

type fixture struct {
	cube    *schema.Cube
	time    *schema.Hierarchy
	product *schema.Hierarchy

	y2023, y2024, q1, q2 *schema.Member
	a, b, c              *schema.Member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{cube: schema.NewCube("Sales")}
	var err error
	f.time, err = f.cube.AddHierarchy("Time", "year", "quarter")
	require.NoError(t, err)
	f.product, err = f.cube.AddHierarchy("Product", "product")
	require.NoError(t, err)

	f.y2023 = f.time.AddMember(nil, "2023")
	f.y2024 = f.time.AddMember(nil, "2024")
	f.q1 = f.time.AddMember(f.y2024, "Q1")
	f.q2 = f.time.AddMember(f.y2024, "Q2")
	f.a = f.product.AddMember(nil, "ProductA")
	f.b = f.product.AddMember(nil, "ProductB")
	f.c = f.product.AddMember(nil, "ProductC")
	return f
}

func (f *fixture) grid(t *testing.T) *ArrayList {
	t.Helper()
	l, err := FromTuples(
		[]*schema.Member{f.y2024, f.a},
		[]*schema.Member{f.y2024, f.b},
		[]*schema.Member{f.y2023, f.c},
	)
	require.NoError(t, err)
	return l
}

func TestArrayListBasics(t *testing.T) {
	f := newFixture(t)
	l := f.grid(t)

	assert.Equal(t, 2, l.Arity())
	assert.Equal(t, 3, l.Len())
	assert.Same(t, f.b, l.Get(1, 1))
	assert.Equal(t, []*schema.Member{f.y2023, f.c}, l.Tuple(2))
	assert.Equal(t, l.Tuple(1)[1], l.Get(1, 1))

	l.Remove(0)
	assert.Equal(t, 2, l.Len())
	assert.Same(t, f.b, l.Get(0, 1))

	assert.Panics(t, func() { l.Get(5, 0) })
	assert.Panics(t, func() { l.Get(0, 2) })
}

func TestAppendChecksArityAndShape(t *testing.T) {
	f := newFixture(t)
	l := New(f.time, f.product)

	err := l.Append(f.y2024)
	assert.ErrorIs(t, err, ErrArity)

	err = l.Append(f.a, f.y2024)
	assert.ErrorIs(t, err, ErrShape)

	assert.Equal(t, 0, l.Len())
}

func TestColumnView(t *testing.T) {
	f := newFixture(t)
	l := f.grid(t)

	col, err := l.Column(1)
	require.NoError(t, err)
	assert.Equal(t, []*schema.Member{f.a, f.b, f.c}, col.Members())
	assert.Same(t, f.product, col.Hierarchy())

	require.NoError(t, col.Append(f.a))
	assert.Equal(t, 4, l.Len())
	assert.Same(t, f.time.NullMember(), l.Get(3, 0))
	assert.Same(t, f.a, l.Get(3, 1))

	assert.ErrorIs(t, col.Append(f.q1), ErrShape)

	col.Remove(0)
	assert.Equal(t, 3, l.Len())
	assert.Equal(t, []*schema.Member{f.y2024, f.b}, l.Tuple(0))

	_, err = l.Column(2)
	assert.ErrorIs(t, err, ErrColumnRange)
	_, err = l.Column(-1)
	assert.ErrorIs(t, err, ErrColumnRange)
}

func TestColumnViewIsLive(t *testing.T) {
	f := newFixture(t)
	l := f.grid(t)

	col, err := l.Column(0)
	require.NoError(t, err)
	l.Retain(func(t []*schema.Member) bool { return t[0] == f.y2023 })
	assert.Equal(t, 1, col.Len())
	assert.Same(t, f.y2023, col.At(0))
}

func TestCopy(t *testing.T) {
	f := newFixture(t)
	l := f.grid(t)

	deep := l.Copy(-1)
	l.Remove(0)
	assert.Equal(t, 3, deep.Len())
	assert.Same(t, f.a, deep.Get(0, 1))

	empty := l.Copy(10)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 2, empty.Arity())
}

func TestProject(t *testing.T) {
	f := newFixture(t)
	l := f.grid(t)

	p, err := l.Project(1, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []*schema.Hierarchy{f.product, f.time}, p.Shape())
	assert.Equal(t, []*schema.Member{f.c, f.y2023}, p.Tuple(2))

	single, err := l.Project(0)
	require.NoError(t, err)
	assert.Equal(t, 1, single.Arity())

	_, err = l.Project(0, 3)
	assert.ErrorIs(t, err, ErrColumnRange)
}

func TestSubListIsLiveUntilFixed(t *testing.T) {
	f := newFixture(t)
	l := f.grid(t)

	sub := l.SubList(0, 2)
	fixed := sub.Fix()
	assert.Equal(t, 2, sub.Len())

	Sort(l, true)
	assert.Same(t, f.y2024, l.Get(0, 0))
	assert.Same(t, f.b, sub.Get(0, 1), "sorting the backing list shows through the view")
	assert.Same(t, f.a, fixed.Get(0, 1), "fixed copy keeps its order")

	l.Retain(func(t []*schema.Member) bool { return t[1] == f.b })
	assert.Equal(t, 1, sub.Len(), "view clamps to the shrunken parent")
	assert.Equal(t, 2, fixed.Len())

	assert.Same(t, l, l.Fix())
}

func TestPositionViewIsLiveUntilFixed(t *testing.T) {
	f := newFixture(t)
	l := f.grid(t)

	var reads []int
	view := WithPositionCallback(l, func(row int) { reads = append(reads, row) })
	fixed := view.Fix()
	assert.Empty(t, reads, "fixing does not report positions")
	assert.NotSame(t, l, fixed)

	Sort(l, true)
	assert.Same(t, f.b, view.Get(0, 1), "the view reads through to the sorted list")
	assert.Same(t, f.a, fixed.Get(0, 1), "fixed copy keeps its order")

	l.Retain(func([]*schema.Member) bool { return false })
	assert.Zero(t, view.Len())
	assert.Equal(t, 3, fixed.Len())
	assert.Equal(t, []int{0}, reads)
}

func TestSubListMutation(t *testing.T) {
	f := newFixture(t)
	l := f.grid(t)

	sub := l.SubList(1, 2)
	require.NoError(t, sub.Append(f.y2023, f.a))
	assert.Equal(t, 2, sub.Len())
	assert.Equal(t, 4, l.Len())
	assert.Equal(t, []*schema.Member{f.y2023, f.a}, l.Tuple(2))
	assert.Equal(t, []*schema.Member{f.y2023, f.c}, l.Tuple(3))

	sub.Remove(0)
	assert.Equal(t, 1, sub.Len())
	assert.Equal(t, []*schema.Member{f.y2023, f.a}, l.Tuple(1))
}

func TestWithPositionCallback(t *testing.T) {
	f := newFixture(t)
	var seen []int
	l := WithPositionCallback(f.grid(t), func(row int) { seen = append(seen, row) })

	c := l.Cursor()
	for c.Next() {
		c.Tuple()
	}
	l.Get(1, 0)
	assert.Equal(t, []int{0, 1, 2, 1}, seen)

	col, err := l.Column(1)
	require.NoError(t, err)
	col.At(2)
	assert.Equal(t, 2, seen[len(seen)-1])
}

func TestCursor(t *testing.T) {
	f := newFixture(t)
	c := f.grid(t).Cursor()

	assert.Equal(t, -1, c.Position())
	assert.Nil(t, c.Tuple())

	var positions []int
	for c.Next() {
		positions = append(positions, c.Position())
		assert.NotNil(t, c.Member(0))
	}
	assert.Equal(t, []int{0, 1, 2}, positions)
	assert.False(t, c.Valid())
	assert.Equal(t, -1, c.Position())
	assert.False(t, c.Next())

	c.Reset()
	assert.True(t, c.Next())
	assert.Equal(t, 0, c.Position())
}
