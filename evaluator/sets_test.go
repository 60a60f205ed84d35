package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/schema"
	"github.com/spektr-org/spektr-olap/tuple"
)

func productsOf(f *fixture, calls *int) ListCalc {
	return ListCalcFunc(func(ev *Evaluator) (tuple.List, error) {
		*calls++
		return tuple.FromMembers(f.product, f.a, f.b)
	})
}

func TestNamedSetResolvedOnce(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	calls := 0
	require.NoError(t, ev.DefineNamedSet("Products", productsOf(f, &calls)))

	_, ok := ev.NamedSetEvaluator("Products", false)
	assert.False(t, ok, "lookup does not create")
	_, ok = ev.NamedSetEvaluator("Missing", true)
	assert.False(t, ok)

	ns, ok := ev.NamedSetEvaluator("Products", true)
	require.True(t, ok)
	assert.Equal(t, "Products", ns.Name())
	assert.Equal(t, -1, ns.CurrentOrdinal())

	c1, err := ns.Evaluate(ev)
	require.NoError(t, err)
	c2, err := ns.Evaluate(ev.Push())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, c1.List(), c2.List())

	again, ok := ev.Push().NamedSetEvaluator("Products", false)
	require.True(t, ok)
	assert.Same(t, ns, again, "named sets are shared by pushed copies")

	assert.Error(t, ev.DefineNamedSet("Products", productsOf(f, &calls)))
}

func TestNamedSetCursorTracking(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)
	calls := 0
	require.NoError(t, ev.DefineNamedSet("Products", productsOf(f, &calls)))
	ns, _ := ev.NamedSetEvaluator("Products", true)

	c, err := ns.Evaluate(ev)
	require.NoError(t, err)
	assert.Equal(t, -1, ns.CurrentOrdinal())

	var seen []*schema.Member
	for c.Next() {
		assert.Equal(t, len(seen), ns.CurrentOrdinal())
		m, ok := ns.CurrentMember()
		require.True(t, ok)
		tup, ok := ns.CurrentTuple()
		require.True(t, ok)
		assert.Same(t, m, tup[0])
		seen = append(seen, m)
	}
	assert.Equal(t, []*schema.Member{f.a, f.b}, seen)
	assert.Equal(t, -1, ns.CurrentOrdinal())
	_, ok := ns.CurrentMember()
	assert.False(t, ok)
}

func TestNamedSetResolvesAgainstCopy(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)
	calc := ListCalcFunc(func(e *Evaluator) (tuple.List, error) {
		e.SetContext(f.y2023, true)
		return tuple.FromMembers(f.time, e.Member(f.time))
	})
	require.NoError(t, ev.DefineNamedSet("Years", calc))
	ns, _ := ev.NamedSetEvaluator("Years", true)

	_, err := ns.Evaluate(ev)
	require.NoError(t, err)
	_, ok := ev.Context(f.time)
	assert.False(t, ok)
}

func TestSetEvaluatorReResolves(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	calc := ListCalcFunc(func(e *Evaluator) (tuple.List, error) {
		year := e.Member(f.time)
		e.SetContext(f.a, true)
		return tuple.FromMembers(f.time, year)
	})

	_, ok := ev.SetEvaluator("current-year", calc, false)
	assert.False(t, ok, "lookup does not create")

	se, ok := ev.SetEvaluator("current-year", calc, true)
	require.True(t, ok)
	same, ok := ev.SetEvaluator("current-year", nil, false)
	require.True(t, ok)
	assert.Same(t, se, same)

	ev.SetContext(f.y2023, true)
	c, err := se.Evaluate()
	require.NoError(t, err)
	require.True(t, c.Next())
	m, _ := c.Member()
	assert.Same(t, f.y2023, m)
	_, ok = ev.Context(f.product)
	assert.False(t, ok, "context changes of the expression are rolled back")

	ev.SetContext(f.y2024, true)
	c, err = se.Evaluate()
	require.NoError(t, err)
	require.True(t, c.Next())
	m, _ = c.Member()
	assert.Same(t, f.y2024, m)
	assert.Equal(t, 0, se.CurrentOrdinal())
	assert.False(t, c.Next())
	assert.Equal(t, -1, se.CurrentOrdinal())

	_, ok = ev.Push().SetEvaluator("current-year", nil, false)
	assert.False(t, ok, "ad hoc set evaluators are bound to one evaluator")
}

func TestNamedSetCalc(t *testing.T) {
	f := newFixture(t)
	ev := f.evaluator(t, nil)

	_, err := NamedSet("Products").EvaluateList(ev)
	assert.ErrorContains(t, err, "not defined")

	calls := 0
	require.NoError(t, ev.DefineNamedSet("Products", productsOf(f, &calls)))
	for n := 0; n < 3; n++ {
		l, err := NamedSet("Products").EvaluateList(ev)
		require.NoError(t, err)
		assert.Equal(t, 2, l.Len())
	}
	assert.Equal(t, 1, calls)
}
