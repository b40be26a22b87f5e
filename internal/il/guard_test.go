package il

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGuardNegationInvolution checks that negating a guard twice
// always returns to the original relation, for every relation in the
// closed set.
func TestGuardNegationInvolution(t *testing.T) {
	relations := []Relation{
		UnsignedLessOrEqual, SignedLessOrEqual,
		UnsignedGreaterOrEqual, SignedGreaterOrEqual,
		UnsignedLess, SignedLess,
		UnsignedGreater, SignedGreater,
		Equal, NotEqual,
		True, False,
	}
	for _, rel := range relations {
		t.Run(rel.String(), func(t *testing.T) {
			g := NewGuard[int](rel, 1, 2)
			require.True(t, Equal2(g, g.Negate().Negate()))
		})
	}
}

func TestGuardNegationIsNeverIdentity(t *testing.T) {
	relations := []Relation{
		UnsignedLessOrEqual, SignedLessOrEqual,
		UnsignedGreaterOrEqual, SignedGreaterOrEqual,
		UnsignedLess, SignedLess,
		UnsignedGreater, SignedGreater,
		Equal, NotEqual,
		True, False,
	}
	for _, rel := range relations {
		t.Run(rel.String(), func(t *testing.T) {
			g := NewGuard[int](rel, 1, 2)
			assert.NotEqual(t, g.Rel, g.Negate().Rel)
		})
	}
}

func TestAlwaysNeverAreMutualNegations(t *testing.T) {
	require.Equal(t, Never[int](), Always[int]().Negate())
	require.Equal(t, Always[int](), Never[int]().Negate())
}

func TestGuardOperandsPreservedAcrossNegate(t *testing.T) {
	g := NewGuard[string](UnsignedLess, "a", "b")
	n := g.Negate()
	assert.Equal(t, "a", n.A)
	assert.Equal(t, "b", n.B)
	assert.Equal(t, UnsignedGreaterOrEqual, n.Rel)
}
