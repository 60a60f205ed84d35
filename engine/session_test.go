package engine

import (
	"context"
	"errors"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/evaluator"
	"github.com/spektr-org/spektr-olap/param"
	"github.com/spektr-org/spektr-olap/scenario"
	"github.com/spektr-org/spektr-olap/scenario/store"
	"github.com/spektr-org/spektr-olap/scenario/store/memory"
)

func (f *salesFixture) session(t *testing.T, opts ...Option) *Session {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	s, err := NewSession(f.cube, f.facts, append([]Option{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	return s
}

func (f *salesFixture) grid(t *testing.T, s *Session) [][]any {
	t.Helper()
	r, err := s.Execute(context.Background(), Query{Rows: f.axis(t, "[year]"), Columns: f.axis(t, "[product]")})
	require.NoError(t, err)
	return r.Cells
}

func TestSessionWriteback(t *testing.T) {
	f := newSales(t)
	st := memory.New()
	s := f.session(t, WithStore(st))
	ctx := context.Background()

	sc, err := s.NewScenario(ctx, "plan")
	require.NoError(t, err)
	assert.Same(t, sc, s.Scenario())

	w, err := s.Writeback(ctx, f.at(t, "[year].[2024]", "[product].[A]"), 500, scenario.EqualAllocation, nil)
	require.NoError(t, err)
	assert.Equal(t, 400.0, w.PreviousValue())
	assert.Equal(t, [][]any{{500.0, 200.0}, {50.0, 150.0}}, f.grid(t, s))

	parent, err := s.Writeback(ctx, f.at(t, "[year].[2024]"), 1400, scenario.EqualAllocation, nil)
	require.NoError(t, err)
	assert.Equal(t, 700.0, parent.PreviousValue(), "snapshot includes the earlier writeback")
	// Each product of 2024 now receives 1400 * raw / 700.
	cells := f.grid(t, s)
	assert.InDelta(t, 800.0, cells[0][0], 1e-9)
	assert.InDelta(t, 400.0, cells[0][1], 1e-9)
	assert.Equal(t, []any{50.0, 150.0}, cells[1])

	saved, err := store.Load(ctx, st, sc.ID(), f.cube)
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Len())

	ids, err := s.Scenarios(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{sc.ID().String()}, ids)
}

// flakyStore fails every Put while failing is set.
type flakyStore struct {
	*memory.Store
	failing bool
}

func (s *flakyStore) Put(ctx context.Context, r store.Record) error {
	if s.failing {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, r)
}

func TestSessionWritebackRollsBackOnPersistFailure(t *testing.T) {
	f := newSales(t)
	st := &flakyStore{Store: memory.New()}
	s := f.session(t, WithStore(st))
	ctx := context.Background()

	sc, err := s.NewScenario(ctx, "plan")
	require.NoError(t, err)
	_, err = s.Writeback(ctx, f.at(t, "[year].[2023]", "[product].[B]"), 90, scenario.EqualIncrement, nil)
	require.NoError(t, err)

	st.failing = true
	w, err := s.Writeback(ctx, f.at(t, "[year].[2024]", "[product].[A]"), 500, scenario.EqualAllocation, nil)
	require.ErrorContains(t, err, "disk full")
	assert.Nil(t, w)
	assert.Equal(t, 1, sc.Len(), "rejected edit is dropped")
	assert.Equal(t, [][]any{{400.0, 200.0}, {50.0, 90.0}}, f.grid(t, s))

	saved, err := store.Load(ctx, st, sc.ID(), f.cube)
	require.NoError(t, err)
	assert.Equal(t, sc.Len(), saved.Len())
}

func TestSessionOpenAndCloseScenario(t *testing.T) {
	f := newSales(t)
	st := memory.New()
	ctx := context.Background()

	first := f.session(t, WithStore(st))
	sc, err := first.NewScenario(ctx, "plan")
	require.NoError(t, err)
	_, err = first.Writeback(ctx, f.at(t, "[year].[2023]", "[product].[B]"), 90, scenario.EqualIncrement, nil)
	require.NoError(t, err)

	second := f.session(t, WithStore(st))
	assert.Nil(t, second.Scenario())
	opened, err := second.OpenScenario(ctx, sc.ID())
	require.NoError(t, err)
	assert.Equal(t, "plan", opened.Name())
	assert.Equal(t, [][]any{{400.0, 200.0}, {50.0, 90.0}}, f.grid(t, second))

	second.CloseScenario()
	assert.Nil(t, second.Scenario())
	assert.Equal(t, [][]any{{400.0, 200.0}, {50.0, 150.0}}, f.grid(t, second))

	require.NoError(t, second.Close())
}

func TestSessionWritebackErrors(t *testing.T) {
	f := newSales(t)
	ctx := context.Background()
	s := f.session(t)

	_, err := s.Writeback(ctx, f.at(t), 1, scenario.EqualAllocation, nil)
	assert.ErrorIs(t, err, ErrNoScenario)

	sc, err := s.NewScenario(ctx, "plan")
	require.NoError(t, err)
	_, err = s.Writeback(ctx, f.at(t), 1, scenario.WeightedAllocation, evaluator.Current())
	assert.ErrorIs(t, err, scenario.ErrWeightNotPersistable)
	assert.Zero(t, sc.Len(), "rejected before recording")

	_, err = s.Writeback(ctx, f.at(t), 1, scenario.Policy(42), nil)
	assert.Error(t, err)

	w, err := s.Writeback(ctx, f.at(t, "[year].[2024]"), 900, scenario.WeightedIncrement, scenario.ConstantWeight(0.5))
	require.NoError(t, err)
	share, ok, err := scenario.WeightValue(w.Weight())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0.5, share)
}

func TestSessionWithInitialScenario(t *testing.T) {
	f := newSales(t)
	sc := scenario.New("preloaded")
	w, err := scenario.NewWritebackCell(f.at(t, "[year].[2023]", "[product].[A]"), 10, 50, scenario.EqualAllocation, nil)
	require.NoError(t, err)
	sc.Add(w)

	s := f.session(t, WithScenario(sc))
	assert.Same(t, sc, s.Scenario())
	assert.Equal(t, [][]any{{400.0, 200.0}, {10.0, 150.0}}, f.grid(t, s))
}

func TestSessionResolve(t *testing.T) {
	f := newSales(t)

	strict := f.session(t)
	coord, err := strict.ResolveCoordinate([]string{"[year].[2024].[Q1]", "[product].[B]"})
	require.NoError(t, err)
	require.Len(t, coord, 2)
	assert.Equal(t, "Q1", coord[0].Name())

	_, err = strict.ResolveMember("[year].[1999]")
	assert.Error(t, err)
	_, err = strict.ResolveCoordinate([]string{"[product].[B]", "[year].[1999]"})
	assert.Error(t, err)

	lenient := f.session(t, WithIgnoreInvalidMembers(true))
	m, err := lenient.ResolveMember("[year].[1999]")
	require.NoError(t, err)
	assert.True(t, m.IsNull())

	calc, err := lenient.ParseAxis("{[year].[1999], [year].[2023]}")
	require.NoError(t, err)
	ev, err := evaluator.New(f.cube, f.facts)
	require.NoError(t, err)
	l, err := calc.EvaluateList(ev)
	require.NoError(t, err)
	assert.Equal(t, 1, l.Len(), "unknown members are dropped")
}

func TestSessionParameters(t *testing.T) {
	f := newSales(t)
	s := f.session(t)

	factor, err := param.New("Factor", param.Connection, param.Numeric, evaluator.Constant(2.0))
	require.NoError(t, err)
	require.NoError(t, s.Parameters().Define(factor))

	stmt, err := s.Statement()
	require.NoError(t, err)
	p, ok := stmt.Lookup("factor")
	require.True(t, ok)
	assert.Same(t, factor, p)

	scaled := evaluator.CalcFunc(func(ev *evaluator.Evaluator) (any, error) {
		v, err := ev.EvaluateCurrent()
		if err != nil {
			return nil, err
		}
		k, err := param.Calc(p).Evaluate(ev)
		if err != nil {
			return nil, err
		}
		n, _ := evaluator.Number(v)
		m, _ := evaluator.Number(k)
		return n * m, nil
	})
	q := Query{Rows: f.axis(t, "[region]"), Cell: scaled}

	r, err := s.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{700.0}, {900.0}}, r.Cells)

	require.NoError(t, factor.SetValue(3.0))
	r, err = s.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{1050.0}, {1350.0}}, r.Cells)
}

func TestSessionStatementParametersShadowConnection(t *testing.T) {
	f := newSales(t)
	s := f.session(t)

	factor, err := param.New("Factor", param.Connection, param.Numeric, evaluator.Constant(2.0))
	require.NoError(t, err)
	require.NoError(t, s.Parameters().Define(factor))

	q := Query{Rows: f.axis(t, "[region]"), Cell: evaluator.ParameterRef("factor")}
	r, err := s.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{2.0}, {2.0}}, r.Cells)

	q.Parameters = map[string]any{"FACTOR": 3}
	r, err = s.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{3.0}, {3.0}}, r.Cells)
	assert.False(t, factor.IsSet(), "the connection parameter is untouched")

	q.Parameters = map[string]any{"factor": "three"}
	_, err = s.Execute(context.Background(), q)
	assert.ErrorIs(t, err, param.ErrUnconvertedValue, "the binding keeps the declared type")
}

func TestNewSessionRequiresCube(t *testing.T) {
	_, err := NewSession(nil, nil)
	assert.Error(t, err)
}
