package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFrame(t *testing.T) *Frame {
	t.Helper()
	f, err := New(
		NewNumeric("x", []float64{1, 2, 3, 4}),
		NewFactor("g", []string{"a", "b", "a", "c"}),
		NewNumeric("y", []float64{10, 20, 30, 40}),
	)
	require.NoError(t, err)
	return f
}

func TestNew_RejectsBadShapes(t *testing.T) {
	_, err := New()
	assert.Error(t, err)

	_, err = New(NewNumeric("x", []float64{1, 2}), NewNumeric("y", []float64{1}))
	assert.Error(t, err)

	_, err = New(NewNumeric("x", nil), NewNumeric("x", nil))
	assert.Error(t, err)

	_, err = New(NewNumeric("", nil))
	assert.Error(t, err)
}

func TestSelect_CopiesRowsInOrder(t *testing.T) {
	f := testFrame(t)

	sub, err := f.Select([]int{3, 0, 3})
	require.NoError(t, err)
	require.Equal(t, 3, sub.NumRows())

	x, ok := sub.Column("x")
	require.True(t, ok)
	assert.Equal(t, []float64{4, 1, 4}, x.(*Numeric).Values())

	g, ok := sub.Column("g")
	require.True(t, ok)
	assert.Equal(t, []string{"c", "a", "c"}, g.(*Factor).Values())

	// The source frame is untouched.
	orig, _ := f.Column("x")
	assert.Equal(t, []float64{1, 2, 3, 4}, orig.(*Numeric).Values())
}

func TestSelect_RejectsOutOfRange(t *testing.T) {
	f := testFrame(t)
	_, err := f.Select([]int{0, 4})
	assert.Error(t, err)
	_, err = f.Select([]int{-1})
	assert.Error(t, err)
}

func TestWithReordered_TouchesOnlyNamedColumn(t *testing.T) {
	f := testFrame(t)

	perm := []int{3, 2, 1, 0}
	g, err := f.WithReordered("x", perm)
	require.NoError(t, err)

	x, _ := g.Column("x")
	assert.Equal(t, []float64{4, 3, 2, 1}, x.(*Numeric).Values())

	y, _ := g.Column("y")
	assert.Equal(t, []float64{10, 20, 30, 40}, y.(*Numeric).Values())

	// Original column untouched.
	ox, _ := f.Column("x")
	assert.Equal(t, []float64{1, 2, 3, 4}, ox.(*Numeric).Values())
}

func TestWithReordered_Errors(t *testing.T) {
	f := testFrame(t)

	_, err := f.WithReordered("missing", []int{0, 1, 2, 3})
	assert.Error(t, err)

	_, err = f.WithReordered("x", []int{0, 1})
	assert.Error(t, err)
}

func TestFactorLevels_SortedDistinct(t *testing.T) {
	c := NewFactor("g", []string{"b", "a", "b", "c", "a"})
	assert.Equal(t, []string{"a", "b", "c"}, c.Levels())
}

func TestNames_DefinitionOrder(t *testing.T) {
	f := testFrame(t)
	assert.Equal(t, []string{"x", "g", "y"}, f.Names())
}
