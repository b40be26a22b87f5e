package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/region"
	"panopticon/internal/value"
)

func mnem(start, end uint64) *disasm.Mnemonic {
	return &disasm.Mnemonic{Area: region.Interval{Start: start, End: end}, Opcode: "nop"}
}

func block(mnemonics ...*disasm.Mnemonic) *disasm.BasicBlock {
	return disasm.NewBasicBlock(mnemonics)
}

// TestResolvedBlockRangesStayDisjoint checks that every Resolved
// block's entry address maps back to exactly the vertex that owns it.
func TestResolvedBlockRangesStayDisjoint(t *testing.T) {
	fn := New("f", "r")
	i0 := fn.AddResolved(block(mnem(0, 4)))
	i1 := fn.AddResolved(block(mnem(4, 8)))

	got0, ok := fn.VertexAt(0)
	require.True(t, ok)
	assert.Equal(t, i0, got0)

	got1, ok := fn.VertexAt(4)
	require.True(t, ok)
	assert.Equal(t, i1, got1)

	_, ok = fn.VertexAt(2)
	assert.False(t, ok, "2 is mid-block, not a block start")

	containing, ok := fn.ContainingBlock(2)
	require.True(t, ok)
	assert.Equal(t, i0, containing)
}

// TestSplitAtPreservesOutEdgesAndAddsFallthrough covers the block-split
// Open Question decision recorded in DESIGN.md: the lower half keeps the
// original vertex's identity and in-edges, the upper half is a fresh
// vertex inheriting the old out-edges, joined by one new fallthrough.
func TestSplitAtPreservesOutEdgesAndAddsFallthrough(t *testing.T) {
	fn := New("f", "r")
	idx := fn.AddResolved(block(mnem(0, 2), mnem(2, 4), mnem(4, 6), mnem(6, 8)))
	target := fn.AddResolved(block(mnem(100, 102)))
	fn.AddEdge(idx, target, il.Always[value.Rvalue]())

	newIdx := fn.SplitAt(idx, 4)

	lowerAt, ok := fn.VertexAt(0)
	require.True(t, ok)
	assert.Equal(t, idx, lowerAt)

	upperAt, ok := fn.VertexAt(4)
	require.True(t, ok)
	assert.Equal(t, newIdx, upperAt)

	lowerSucc := fn.Successors(idx)
	require.Len(t, lowerSucc, 1)
	assert.Equal(t, newIdx, lowerSucc[0].To)
	assert.Equal(t, il.True, lowerSucc[0].Guard.Rel)

	upperSucc := fn.Successors(newIdx)
	require.Len(t, upperSucc, 1)
	assert.Equal(t, target, upperSucc[0].To)

	assert.Equal(t, fn.Vertex(idx).Block.Area(), region.Interval{Start: 0, End: 4})
	assert.Equal(t, fn.Vertex(newIdx).Block.Area(), region.Interval{Start: 4, End: 8})
}

// TestReversePostorderVisitsEachVertexOnce builds a diamond CFG
// (entry -> a, entry -> b, a -> c, b -> c) and checks the traversal
// covers every reachable vertex exactly once with the entry first.
func TestReversePostorderVisitsEachVertexOnce(t *testing.T) {
	fn := New("f", "r")
	entry := fn.AddResolved(block(mnem(0, 2)))
	a := fn.AddResolved(block(mnem(2, 4)))
	b := fn.AddResolved(block(mnem(4, 6)))
	c := fn.AddResolved(block(mnem(6, 8)))
	fn.AddEdge(entry, a, il.Always[value.Rvalue]())
	fn.AddEdge(entry, b, il.Never[value.Rvalue]())
	fn.AddEdge(a, c, il.Always[value.Rvalue]())
	fn.AddEdge(b, c, il.Always[value.Rvalue]())
	fn.SetEntry(entry)

	rpo := fn.ReversePostorder()
	require.Len(t, rpo, 4)
	assert.Equal(t, entry, rpo[0])

	seen := map[int]bool{}
	for _, v := range rpo {
		assert.False(t, seen[v], "vertex %d visited twice", v)
		seen[v] = true
	}
}

func TestReversePostorderEmptyWithoutEntry(t *testing.T) {
	fn := New("f", "r")
	fn.AddResolved(block(mnem(0, 2)))
	assert.Nil(t, fn.ReversePostorder())
}
