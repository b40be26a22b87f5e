package absint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/kset"
	"panopticon/internal/program"
	"panopticon/internal/region"
	"panopticon/internal/ssa"
	"panopticon/internal/value"
)

func assign(addr uint64, dst value.Variable, op il.Operation[value.Rvalue]) *disasm.Mnemonic {
	return &disasm.Mnemonic{
		Area:       region.Interval{Start: addr, End: addr + 1},
		Opcode:     "op",
		Statements: []il.Instr{{Op: op, Assignee: dst}},
	}
}

func nop(src value.Rvalue) il.Operation[value.Rvalue] { return il.Nop[value.Rvalue]{A: src} }

// straightLineFunction is a single block assigning a constant — no
// joins, no phis, a baseline sanity check for the fixpoint driver.
func straightLineFunction(t *testing.T) (*program.Function, value.Variable) {
	t.Helper()
	x := value.NewVariable("x", 8)
	fn := program.New("f", "r")
	entry := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{
		assign(0, x, nop(value.Constant{Value: 5})),
	}))
	fn.SetEntry(entry)
	require.NoError(t, ssa.Transform(fn))
	return fn, x
}

// loopFunction builds entry -> header -> body -> header (back edge),
// header -> exit, with x initialized in entry and incremented in body —
// a phi-carrying back edge the fixpoint loop has to terminate over.
func loopFunction(t *testing.T) *program.Function {
	t.Helper()
	x := value.NewVariable("x", 8)
	n := value.NewVariable("n", 8)

	fn := program.New("f", "r")
	entry := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{
		assign(0, x, nop(value.Constant{Value: 0})),
		assign(1, n, nop(value.Constant{Value: 1})),
	}))
	header := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{
		assign(2, value.NewVariable("probe", 8), nop(value.Constant{Value: 0})),
	}))
	body := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{
		assign(3, x, il.IntAdd[value.Rvalue]{A: x, B: n}),
		assign(4, n, il.IntAdd[value.Rvalue]{A: n, B: value.Constant{Value: 1}}),
	}))
	exit := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{
		assign(5, value.NewVariable("y", 8), nop(x)),
	}))

	fn.AddEdge(entry, header, il.Always[value.Rvalue]())
	fn.AddEdge(header, body, il.Always[value.Rvalue]())
	fn.AddEdge(header, exit, il.Never[value.Rvalue]())
	fn.AddEdge(body, header, il.Always[value.Rvalue]())
	fn.SetEntry(entry)

	require.NoError(t, ssa.Transform(fn))
	return fn
}

func headerPhiKey(t *testing.T, fn *program.Function, name string) string {
	t.Helper()
	headerIdx, ok := fn.VertexAt(2)
	require.True(t, ok)
	ct := fn.Vertex(headerIdx)
	require.NotEmpty(t, ct.Block.Mnemonics)
	require.Equal(t, "ssa-phi", ct.Block.Mnemonics[0].Opcode)
	for _, instr := range ct.Block.Mnemonics[0].Statements {
		if v, ok := instr.Assignee.(value.Variable); ok && v.Name == name {
			return v.String()
		}
	}
	t.Fatalf("no phi found for %q at header", name)
	return ""
}

func TestApproximateStraightLineConverges(t *testing.T) {
	fn, x := straightLineFunction(t)
	ret, err := Approximate[kset.Kset](fn)
	require.NoError(t, err)

	var got kset.Kset
	for key, v := range ret {
		if key == x.WithSubscript(0).String() {
			got = v
		}
	}
	assert.Equal(t, kset.Of(5), got)
}

// TestApproximateLoopConverges checks that a function with a back edge
// still reaches a stable fixpoint (a full pass with no updates) well
// under the default iteration cap, and does so deterministically.
func TestApproximateLoopConverges(t *testing.T) {
	fn := loopFunction(t)
	key := headerPhiKey(t, fn, "x")

	first, err := Approximate[kset.Kset](fn)
	require.NoError(t, err)
	_, ok := first[key]
	require.True(t, ok, "expected a recorded value for x's phi at the loop header")

	second, err := Approximate[kset.Kset](fn)
	require.NoError(t, err)
	assert.Equal(t, first, second, "re-running the fixpoint over an unchanged function must reproduce the same result")
}

// TestApproximateWithCapReportsDivergence checks the fixpoint's failure
// mode: a cap too small for the loop to stabilize is reported, not panicked.
func TestApproximateWithCapReportsDivergence(t *testing.T) {
	fn := loopFunction(t)
	_, err := ApproximateWithCap[kset.Kset](fn, 1)
	require.Error(t, err)
	var divergence AnalysisDivergence
	require.ErrorAs(t, err, &divergence)
	assert.Equal(t, fn.UUID.String(), divergence.FunctionUUID)
}

func TestFixpointStableAfterConvergence(t *testing.T) {
	fn, _ := straightLineFunction(t)
	first, err := Approximate[kset.Kset](fn)
	require.NoError(t, err)
	second, err := Approximate[kset.Kset](fn)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
