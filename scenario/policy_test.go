package scenario

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateEqualAllocation(t *testing.T) {
	got, err := Allocate(EqualAllocation, 50, 200, 100, 50, nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got)
}

func TestAllocateEqualIncrement(t *testing.T) {
	got, err := Allocate(EqualIncrement, 50, 200, 250, 50, nil)
	require.NoError(t, err)
	assert.Equal(t, 62.5, got)
}

func TestAllocateWeighted(t *testing.T) {
	w := 0.5
	got, err := Allocate(WeightedAllocation, 50, 200, 100, 50, &w)
	require.NoError(t, err)
	assert.Equal(t, 50.0, got)

	got, err = Allocate(WeightedIncrement, 50, 200, 300, 50, &w)
	require.NoError(t, err)
	assert.Equal(t, 100.0, got)

	got, err = Allocate(WeightedAllocation, 50, 200, 100, 50, nil)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got, "missing weight falls back to the raw share")

	got, err = Allocate(EqualAllocation, 50, 200, 100, 50, &w)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got, "unweighted policies ignore the weight")
}

func TestAllocateZeroPrevious(t *testing.T) {
	got, err := Allocate(EqualAllocation, 10, 0, 100, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)

	got, err = Allocate(EqualIncrement, 10, 0, 100, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)
}

func TestAllocateDefect(t *testing.T) {
	_, err := Allocate(Policy(42), 1, 1, 1, 1, nil)
	var defect *PolicyDefectError
	require.True(t, errors.As(err, &defect))
	assert.Equal(t, Policy(42), defect.Policy)
}

func TestPolicyText(t *testing.T) {
	for _, p := range []Policy{EqualAllocation, EqualIncrement, WeightedAllocation, WeightedIncrement} {
		b, err := p.MarshalText()
		require.NoError(t, err)
		var back Policy
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, p, back)
	}

	p, err := ParsePolicy("weighted-increment")
	require.NoError(t, err)
	assert.Equal(t, WeightedIncrement, p)
	assert.True(t, p.Weighted())
	assert.False(t, EqualIncrement.Weighted())

	_, err = ParsePolicy("proportional")
	assert.Error(t, err)
	_, err = Policy(-1).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "Policy(7)", Policy(7).String())
}
