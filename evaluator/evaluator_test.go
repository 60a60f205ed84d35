package evaluator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

type fixture struct {
	cube    *schema.Cube
	time    *schema.Hierarchy
	product *schema.Hierarchy
	region  *schema.Hierarchy

	y2023, y2024, q1 *schema.Member
	a, b             *schema.Member
	emea, apac       *schema.Member
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{cube: schema.NewCube("Sales")}
	var err error
	f.time, err = f.cube.AddHierarchy("Time", "year", "quarter")
	require.NoError(t, err)
	f.product, err = f.cube.AddHierarchy("Product", "product")
	require.NoError(t, err)
	f.region, err = f.cube.AddHierarchy("Region", "region")
	require.NoError(t, err)

	f.y2023 = f.time.AddMember(nil, "2023")
	f.y2024 = f.time.AddMember(nil, "2024")
	f.q1 = f.time.AddMember(f.y2024, "Q1")
	f.a = f.product.AddMember(nil, "A")
	f.b = f.product.AddMember(nil, "B")
	f.emea = f.region.AddMember(nil, "EMEA")
	f.apac = f.region.AddMember(nil, "APAC")
	return f
}

func (f *fixture) evaluator(t *testing.T, src CellSource, opts ...Option) *Evaluator {
	t.Helper()
	ev, err := New(f.cube, src, opts...)
	require.NoError(t, err)
	return ev
}

func TestContextAbsentUntilSet(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	m, ok := ev.Context(f.time)
	assert.False(t, ok)
	assert.Nil(t, m)
	assert.Same(t, f.time.AllMember(), ev.Member(f.time))

	ev.SetContext(f.time.NullMember(), true)
	m, ok = ev.Context(f.time)
	assert.True(t, ok, "null member is an assigned context")
	assert.True(t, m.IsNull())
}

func TestSetContextReturnsReplaced(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	assert.Nil(t, ev.SetContext(f.y2023, true))
	assert.Same(t, f.y2023, ev.SetContext(f.y2024, true))
}

func TestSetContextForeignHierarchyPanics(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	other := newFixture(t)
	assert.Panics(t, func() { ev.SetContext(other.y2023, true) })
}

func TestSavepointRestore(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	ev.SetContext(f.y2023, true)
	sp := ev.Savepoint()
	ev.SetContext(f.y2024, true)
	ev.SetContext(f.q1, true)
	ev.SetContext(f.a, true)

	require.NoError(t, ev.Restore(sp))
	m, _ := ev.Context(f.time)
	assert.Same(t, f.y2023, m)
	_, ok := ev.Context(f.product)
	assert.False(t, ok, "hierarchy unset before the savepoint is cleared")
}

func TestRestoreTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	sp := ev.Savepoint()
	ev.SetContext(f.y2024, true)
	require.NoError(t, ev.Restore(sp))
	first := ev.Coordinate()

	require.NoError(t, ev.Restore(sp))
	assert.Equal(t, first, ev.Coordinate())
}

func TestRestoreIsMonotonic(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	early := ev.Savepoint()
	ev.SetContext(f.y2023, true)
	middle := ev.Savepoint()
	ev.SetContext(f.a, true)
	late := ev.Savepoint()
	ev.SetContext(f.emea, true)

	require.NoError(t, ev.Restore(middle))
	assert.Same(t, f.y2023, ev.Member(f.time))
	assert.True(t, ev.Member(f.product).IsAll())

	err := ev.Restore(late)
	require.ErrorIs(t, err, ErrInvalidSavepoint)
	assert.Contains(t, err.Error(), "already unwound")
	assert.Same(t, f.y2023, ev.Member(f.time), "failed restore leaves state alone")

	require.NoError(t, ev.Restore(early))
	assert.True(t, ev.Member(f.time).IsAll())

	err = ev.Restore(Savepoint(42))
	require.ErrorIs(t, err, ErrInvalidSavepoint)
	assert.Contains(t, err.Error(), "never issued")
}

func TestNestedSavepoints(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	outer := ev.Savepoint()
	ev.SetContext(f.y2023, true)
	inner := ev.Savepoint()
	ev.SetContext(f.y2024, true)

	require.NoError(t, ev.Restore(inner))
	assert.Same(t, f.y2023, ev.Member(f.time))

	ev.SetContext(f.q1, true)
	require.NoError(t, ev.Restore(inner), "inner is closed; restoring it again is a no-op")
	assert.Same(t, f.q1, ev.Member(f.time))

	require.NoError(t, ev.Restore(outer))
	_, ok := ev.Context(f.time)
	assert.False(t, ok)
}

func TestRestoreReleasesSavepoint(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	outer := ev.Savepoint()
	ev.SetContext(f.y2023, true)
	for n := 0; n < 10000; n++ {
		sp := ev.Savepoint()
		ev.SetContext(f.a, true)
		ev.SetContext(f.emea, true)
		require.NoError(t, ev.Restore(sp))
	}
	assert.Len(t, ev.marks, 1, "only outer stays open")
	assert.Len(t, ev.log, 1)
	assert.True(t, ev.Member(f.product).IsAll())

	// The next safe assignment is recorded against outer again.
	ev.SetContext(f.y2024, true)
	require.NoError(t, ev.Restore(outer))
	assert.Empty(t, ev.marks)
	assert.Empty(t, ev.log)
	_, ok := ev.Context(f.time)
	assert.False(t, ok)

	require.NoError(t, ev.Restore(outer), "second restore is a no-op")
	ev.SetContext(f.y2024, true)
	assert.Empty(t, ev.log, "nothing is recorded without an open savepoint")
}

func TestSafeAndUnsafeSetContext(t *testing.T) {
	f := newFixture(t)
	for _, safe := range []bool{true, false} {
		ev := f.evaluator(t, nil)
		sp := ev.Savepoint()
		ev.SetContext(f.y2024, safe)
		assert.Same(t, f.y2024, ev.Member(f.time))
		require.NoError(t, ev.Restore(sp))
	}

	safeEv := f.evaluator(t, nil)
	sp := safeEv.Savepoint()
	safeEv.SetContext(f.y2023, true)
	safeEv.SetContext(f.y2024, true)
	require.NoError(t, safeEv.Restore(sp))
	_, ok := safeEv.Context(f.time)
	assert.False(t, ok)

	unsafeEv := f.evaluator(t, nil)
	unsafeEv.SetContext(f.y2023, true)
	sp = unsafeEv.Savepoint()
	unsafeEv.SetContext(f.y2024, false)
	require.NoError(t, unsafeEv.Restore(sp))
	assert.Same(t, f.y2024, unsafeEv.Member(f.time), "unsafe set is not recorded")
}

func TestSetContextMembersLastWins(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	sp := ev.Savepoint()
	ev.SetContextMembers([]*schema.Member{f.y2023, f.a, f.y2024}, true)
	assert.Same(t, f.y2024, ev.Member(f.time))
	assert.Same(t, f.a, ev.Member(f.product))

	prev, ok := ev.PreviousContext(f.time)
	require.True(t, ok)
	assert.Same(t, f.y2023, prev)

	require.NoError(t, ev.Restore(sp))
	_, ok = ev.Context(f.time)
	assert.False(t, ok)

	prev, _ = ev.PreviousContext(f.time)
	assert.Same(t, f.y2023, prev, "restore does not rewrite previous context")
}

func TestPushIsIndependent(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)
	ev.SetContext(f.y2024, true)
	sp := ev.Savepoint()

	cp := ev.Push()
	assert.Same(t, f.y2024, cp.Member(f.time))

	cp.SetContext(f.y2023, true)
	cp.SetContext(f.b, true)
	assert.Same(t, f.y2024, ev.Member(f.time))
	assert.True(t, ev.Member(f.product).IsAll())

	ev.SetContext(f.a, true)
	assert.Same(t, f.b, cp.Member(f.product))

	assert.ErrorIs(t, cp.Restore(sp), ErrInvalidSavepoint, "copy carries no savepoints")
	require.NoError(t, ev.Restore(sp))
	assert.Same(t, f.b, cp.Member(f.product))
}

func TestPushAggregation(t *testing.T) {
	f := newFixture(t)
	var seen [][]tuple.List
	src := CellSourceFunc(func(_ []*schema.Member, aggs []tuple.List) (any, error) {
		seen = append(seen, aggs)
		return 1.0, nil
	})
	ev := f.evaluator(t, src)
	ev.SetContext(f.y2024, true)

	slicer, err := tuple.FromMembers(f.product, f.a, f.b)
	require.NoError(t, err)
	agg := ev.PushAggregation(slicer)

	assert.Same(t, f.y2024, agg.Member(f.time))
	assert.Empty(t, ev.Aggregations())
	require.Len(t, agg.Aggregations(), 1)

	_, err = agg.EvaluateCurrent()
	require.NoError(t, err)
	_, err = ev.EvaluateCurrent()
	require.NoError(t, err)
	assert.Len(t, seen[0], 1)
	assert.Empty(t, seen[1])
}

func TestEvaluateCurrent(t *testing.T) {
	f := newFixture(t)
	src := CellSourceFunc(func(coord []*schema.Member, _ []tuple.List) (any, error) {
		if coord[0] == f.y2023 {
			return nil, errors.New("storage offline")
		}
		return coord[0].Name(), nil
	})
	ev := f.evaluator(t, src)

	v, err := ev.EvaluateCurrent()
	require.NoError(t, err)
	assert.Equal(t, "All", v)

	ev.SetContext(f.y2023, true)
	_, err = ev.EvaluateCurrent()
	assert.ErrorContains(t, err, "storage offline")

	noSource := f.evaluator(t, nil)
	_, err = noSource.EvaluateCurrent()
	assert.Error(t, err)
}

func TestAtRestoresContext(t *testing.T) {
	f := newFixture(t)
	src := CellSourceFunc(func(coord []*schema.Member, _ []tuple.List) (any, error) {
		return coord[1].Name(), nil
	})
	ev := f.evaluator(t, src)

	v, err := At(Current(), f.b).Evaluate(ev)
	require.NoError(t, err)
	assert.Equal(t, "B", v)
	_, ok := ev.Context(f.product)
	assert.False(t, ok)
}

func TestNumber(t *testing.T) {
	for _, v := range []any{2.0, float32(2), 2, int64(2), int32(2)} {
		n, ok := Number(v)
		assert.True(t, ok)
		assert.Equal(t, 2.0, n)
	}
	_, ok := Number("2")
	assert.False(t, ok)
	_, ok = Number(nil)
	assert.False(t, ok)
}

func TestNewRejectsBadCacheSize(t *testing.T) {
	f := newFixture(t)
	_, err := New(f.cube, nil, WithCacheSize(0))
	assert.Error(t, err)

	_, err = New(nil, nil)
	assert.Error(t, err)
}
