package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/region"
	"panopticon/internal/value"
)

func newRegion(t *testing.T, bytes ...byte) *region.Region {
	t.Helper()
	r := region.New("test", uint64(len(bytes)))
	r.AddLayer(0, bytes)
	return r
}

// TestSinglePatternDecode checks that one alternative over one byte
// emits one mnemonic and one unconditional jump to the next address.
func TestSinglePatternDecode(t *testing.T) {
	a := New[uint8](8)
	a.Append([]Expr[uint8]{Literal[uint8](1)}, func(st *State[uint8]) bool {
		m := &disasm.Mnemonic{}
		st.Mnemonic(1, "A", "", m)
		st.Jump(st.Address+1, il.Always[value.Rvalue](), false)
		return true
	})

	r := newRegion(t, 0x01)
	st, ok := a.Match(r.Iterator(), 0, nil)
	require.True(t, ok)

	assert.Equal(t, []uint8{1}, st.Tokens)
	require.Len(t, st.Mnemonics, 1)
	assert.Equal(t, uint64(0), st.Mnemonics[0].Area.Start)
	assert.Equal(t, uint64(1), st.Mnemonics[0].Area.End)
	assert.Equal(t, "A", st.Mnemonics[0].Opcode)
	require.Len(t, st.Jumps, 1)
	assert.Equal(t, Jump{From: 0, To: 1, Guard: il.Always[value.Rvalue](), IsCall: false}, st.Jumps[0])
}

// TestSubdecoderAndOrdering checks that when two alternatives both
// match, the one registered first (lower Append priority) wins, even
// though a shorter, later-registered alternative reaches its goal sooner.
// The winning alternative's action is a no-op: inlining a sub-decoder
// splices its entire graph, action edge included, so the sub's own
// mnemonic is what fires, not the host's.
func TestSubdecoderAndOrdering(t *testing.T) {
	sub := New[uint8](8)
	sub.Append([]Expr[uint8]{Literal[uint8](2)}, func(st *State[uint8]) bool {
		m := &disasm.Mnemonic{}
		st.Mnemonic(0, "C", "", m)
		return true
	})

	root := New[uint8](8)
	root.Append([]Expr[uint8]{Literal[uint8](1), Sub[uint8](sub)}, func(st *State[uint8]) bool {
		return true
	})
	root.Append([]Expr[uint8]{Literal[uint8](1)}, func(st *State[uint8]) bool {
		m := &disasm.Mnemonic{}
		st.Mnemonic(1, "B", "", m)
		return true
	})

	r := newRegion(t, 0x01, 0x02)
	st, ok := root.Match(r.Iterator(), 0, nil)
	require.True(t, ok)
	require.Len(t, st.Mnemonics, 1)
	assert.Equal(t, "C", st.Mnemonics[0].Opcode)
}

// TestCaptureGroups checks that a named capture accumulates its
// selected bits MSB-first across the pattern, and an all-zero capture
// is dropped.
func TestCaptureGroups(t *testing.T) {
	a := New[uint8](8)
	var gotA, gotC uint64
	var hadB bool
	a.Append([]Expr[uint8]{Bits[uint8]("01 a@.. 1 b@ c@...")}, func(st *State[uint8]) bool {
		gotA = st.GetGroup("a")
		gotC = st.GetGroup("c")
		hadB = st.HasGroup("b")
		m := &disasm.Mnemonic{}
		st.Mnemonic(1, "X", "", m)
		return true
	})

	r := newRegion(t, 0x7F) // 0b01111111
	_, ok := a.Match(r.Iterator(), 0, nil)
	require.True(t, ok)

	assert.Equal(t, uint64(3), gotA)
	assert.Equal(t, uint64(7), gotC)
	assert.False(t, hadB)
}

// TestPatternSyntaxErrors checks that malformed bit-pattern strings are
// rejected at Append time (a ProgrammingError panic), never mid-match.
func TestPatternSyntaxErrors(t *testing.T) {
	cases := []string{
		"k@...........", // capture too long for an 8-bit token
		"111111111",     // too many bits
		"1111111",       // too few bits
		"101/1010",      // invalid character
		"a111111",       // undelimited capture
	}
	for _, pattern := range cases {
		t.Run(pattern, func(t *testing.T) {
			a := New[uint8](8)
			assert.Panics(t, func() {
				a.Append([]Expr[uint8]{Bits[uint8](pattern)}, func(*State[uint8]) bool { return true })
			})
		})
	}
}

func TestNoMatchFallsBackToDefault(t *testing.T) {
	a := New[uint8](8)
	a.Append([]Expr[uint8]{Literal[uint8](1)}, func(*State[uint8]) bool { return true })
	a.SetDefault(func(st *State[uint8]) bool {
		m := &disasm.Mnemonic{}
		st.Mnemonic(1, "UNKNOWN", "", m)
		return true
	})

	r := newRegion(t, 0xFF)
	st, ok := a.Match(r.Iterator(), 0, nil)
	require.True(t, ok)
	require.Len(t, st.Mnemonics, 1)
	assert.Equal(t, "UNKNOWN", st.Mnemonics[0].Opcode)
}
