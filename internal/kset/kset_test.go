package kset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panopticon/internal/il"
	"panopticon/internal/value"
)

func TestCombineIsCommutative(t *testing.T) {
	a := Of(1, 2, 3)
	b := Of(3, 4)
	require.Equal(t, a.Combine(b), b.Combine(a))
}

func TestCombineIsAssociative(t *testing.T) {
	a, b, c := Of(1), Of(2), Of(3)
	require.Equal(t, a.Combine(b).Combine(c), a.Combine(b.Combine(c)))
}

func TestCombineCollapsesPastMaxSize(t *testing.T) {
	var vs []uint64
	for i := uint64(0); i < MaxSize; i++ {
		vs = append(vs, i)
	}
	a := Of(vs...)
	require.False(t, a.Top)
	b := a.Combine(Of(999))
	assert.True(t, b.Top)
}

func TestCombineWithTopIsTop(t *testing.T) {
	assert.True(t, Of(1, 2).Combine(TopOf()).Top)
	assert.True(t, TopOf().Combine(Of(1, 2)).Top)
}

func TestCombineDeduplicates(t *testing.T) {
	got := Of(1, 2).Combine(Of(2, 3))
	assert.Equal(t, []uint64{1, 2, 3}, got.Values)
}

func TestWidenGrowsToTop(t *testing.T) {
	small := Of(1)
	bigger := Of(1, 2, 3)
	assert.True(t, small.Widen(bigger).Top)
}

func TestWidenKeepsNonGrowingSet(t *testing.T) {
	a := Of(1, 2, 3)
	b := Of(1, 2)
	assert.Equal(t, b, a.Widen(b))
}

func TestMoreExactOrder(t *testing.T) {
	assert.True(t, Of(1).MoreExact(Of(1, 2)))
	assert.False(t, Of(1, 2).MoreExact(Of(1)))
	assert.True(t, Of(1, 2).MoreExact(TopOf()))
	assert.False(t, TopOf().MoreExact(Of(1, 2)))
	assert.False(t, Of(1).MoreExact(Of(1)))
}

func TestAbstractionOfConstant(t *testing.T) {
	got := Kset{}.Abstraction(value.Constant{Value: 42})
	assert.Equal(t, Of(42), got)
}

func TestAbstractionOfUnknownOperandIsTop(t *testing.T) {
	got := Kset{}.Abstraction(value.Undefined{})
	assert.True(t, got.Top)
}

func TestExecuteAddDistributesPointwise(t *testing.T) {
	a, b := Of(1, 2), Of(10)
	got := Kset{}.Execute(il.IntAdd[Kset]{A: a, B: b})
	assert.Equal(t, Of(11, 12), got)
}

func TestExecuteWithTopOperandIsTop(t *testing.T) {
	got := Kset{}.Execute(il.IntAdd[Kset]{A: Of(1), B: TopOf()})
	assert.True(t, got.Top)
}

func TestNarrowEqualityRefinesToSingleton(t *testing.T) {
	k := Of(1, 2, 3)
	g := il.NewGuard[Kset](il.Equal, k, Of(2))
	got := k.Narrow(g)
	assert.Equal(t, Of(2), got)
}

func TestNarrowUnexploitableRelationLeavesValueUnchanged(t *testing.T) {
	k := Of(1, 2, 3)
	g := il.NewGuard[Kset](il.Equal, k, TopOf())
	got := k.Narrow(g)
	assert.Equal(t, k, got)
}
