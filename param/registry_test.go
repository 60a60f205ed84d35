package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spektr-org/spektr-olap/evaluator"
)

func mustParam(t *testing.T, name string, scope Scope) *Parameter {
	t.Helper()
	p, err := New(name, scope, Numeric, evaluator.Constant(0.0))
	require.NoError(t, err)
	return p
}

func TestRegistryChain(t *testing.T) {
	system, err := NewRegistry(System, nil)
	require.NoError(t, err)
	conn, err := NewRegistry(Connection, system)
	require.NoError(t, err)
	stmt, err := NewStatement(conn)
	require.NoError(t, err)

	require.NoError(t, system.Define(mustParam(t, "Rate", System)))
	require.NoError(t, conn.Define(mustParam(t, "Region", Connection)))
	local := mustParam(t, "Rate", Statement)
	require.NoError(t, stmt.Define(local))

	p, ok := stmt.Lookup("rate")
	require.True(t, ok)
	assert.Same(t, local, p, "statement shadows system")

	p, ok = stmt.Lookup("Region")
	require.True(t, ok)
	assert.Equal(t, Connection, p.Scope())

	_, ok = conn.Lookup("Missing")
	assert.False(t, ok)

	assert.Len(t, stmt.Parameters(), 1)
	assert.Same(t, conn, stmt.Parent())
}

func TestRegistryDefineErrors(t *testing.T) {
	r, err := NewRegistry(Schema, nil)
	require.NoError(t, err)

	require.NoError(t, r.Define(mustParam(t, "Rate", Schema)))
	assert.ErrorIs(t, r.Define(mustParam(t, "RATE", Schema)), ErrDuplicate)
	assert.Error(t, r.Define(mustParam(t, "Other", Statement)), "scope must match")

	_, err = NewRegistry(System, r)
	assert.Error(t, err, "registries nest outward only")
}

func TestOuterScopeSurvivesStatements(t *testing.T) {
	conn, err := NewRegistry(Connection, nil)
	require.NoError(t, err)
	rate := mustParam(t, "Rate", Connection)
	require.NoError(t, conn.Define(rate))

	first, err := NewStatement(conn)
	require.NoError(t, err)
	p, _ := first.Lookup("Rate")
	require.NoError(t, p.SetValue(0.25))

	second, err := NewStatement(conn)
	require.NoError(t, err)
	p, _ = second.Lookup("Rate")
	v, err := p.Value(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.25, v)
}

func TestRebindCarriesAssignedValue(t *testing.T) {
	conn, err := NewRegistry(Connection, nil)
	require.NoError(t, err)

	old := mustParam(t, "Rate", Connection)
	require.NoError(t, conn.Define(old))
	require.NoError(t, old.SetValue(0.5))

	fresh := mustParam(t, "Rate", Connection)
	require.NoError(t, conn.Rebind(fresh))
	assert.True(t, fresh.IsSet())
	v, _ := fresh.Value(nil)
	assert.Equal(t, 0.5, v)

	got, _ := conn.Lookup("Rate")
	assert.Same(t, fresh, got)

	unset := mustParam(t, "Other", Connection)
	require.NoError(t, conn.Rebind(unset))
	assert.False(t, unset.IsSet())

	again := mustParam(t, "Other", Connection)
	require.NoError(t, conn.Rebind(again))
	assert.False(t, again.IsSet(), "unset value does not carry")

	str, err := New("Rate", Connection, String, evaluator.Constant(""))
	require.NoError(t, err)
	assert.ErrorIs(t, conn.Rebind(str), ErrUnconvertedValue)
}

func TestRegistryAsParameterSource(t *testing.T) {
	w := newWorld(t)
	conn, err := NewRegistry(Connection, nil)
	require.NoError(t, err)
	rate := mustParam(t, "Rate", Connection)
	require.NoError(t, rate.SetValue(1.5))
	require.NoError(t, conn.Define(rate))
	stmt, err := NewStatement(conn)
	require.NoError(t, err)

	ev, err := evaluator.New(w.cube, nil, evaluator.WithParameters(stmt))
	require.NoError(t, err)

	v, err := evaluator.ParameterRef("RATE").Evaluate(ev)
	require.NoError(t, err)
	assert.Equal(t, 1.5, v)

	_, ok := ev.Parameter("missing")
	assert.False(t, ok)
	_, err = evaluator.ParameterRef("missing").Evaluate(ev)
	assert.ErrorContains(t, err, "parameter missing is not defined")
}
