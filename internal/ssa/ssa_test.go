package ssa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/program"
	"panopticon/internal/region"
	"panopticon/internal/value"
)

func assign(addr uint64, dst value.Variable, src value.Rvalue) *disasm.Mnemonic {
	return &disasm.Mnemonic{
		Area:   region.Interval{Start: addr, End: addr + 1},
		Opcode: "mov",
		Statements: []il.Instr{
			{Op: il.Nop[value.Rvalue]{A: src}, Assignee: dst},
		},
	}
}

// diamondFunction builds entry -> a, entry -> b, a -> join, b -> join,
// where a and b each assign the (pre-SSA) variable x, and join reads x —
// the canonical case that forces a phi at the join vertex.
func diamondFunction(t *testing.T) (*program.Function, value.Variable) {
	t.Helper()
	x := value.NewVariable("x", 8)

	fn := program.New("f", "r")
	entry := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{assign(0, x, value.Constant{Value: 0})}))
	a := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{assign(1, x, value.Constant{Value: 1})}))
	b := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{assign(2, x, value.Constant{Value: 2})}))
	join := fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{assign(3, value.NewVariable("y", 8), x)}))

	fn.AddEdge(entry, a, il.Always[value.Rvalue]())
	fn.AddEdge(entry, b, il.Never[value.Rvalue]())
	fn.AddEdge(a, join, il.Always[value.Rvalue]())
	fn.AddEdge(b, join, il.Always[value.Rvalue]())
	fn.SetEntry(entry)

	return fn, x
}

func allStatements(fn *program.Function) []*il.Instr {
	var out []*il.Instr
	for v := 0; v < fn.NumVertices(); v++ {
		ct := fn.Vertex(v)
		if ct.Kind != program.Resolved {
			continue
		}
		for _, m := range ct.Block.Mnemonics {
			for i := range m.Statements {
				out = append(out, &m.Statements[i])
			}
		}
	}
	return out
}

// TestTransformSubscriptsEveryVariable checks that after Transform,
// every Variable operand and assignee carries an SSA subscript.
func TestTransformSubscriptsEveryVariable(t *testing.T) {
	fn, _ := diamondFunction(t)
	require.NoError(t, Transform(fn))

	for _, instr := range allStatements(fn) {
		if v, ok := instr.Assignee.(value.Variable); ok {
			assert.True(t, v.HasSubscript(), "assignee %s missing subscript", v)
		}
		for _, rv := range instr.Op.Operands() {
			if v, ok := rv.(value.Variable); ok {
				assert.True(t, v.HasSubscript(), "operand %s missing subscript", v)
			}
		}
	}
}

// TestTransformInsertsPhiAtJoin checks a phi for x appears at the join
// vertex, with one argument per predecessor.
func TestTransformInsertsPhiAtJoin(t *testing.T) {
	fn, _ := diamondFunction(t)
	require.NoError(t, Transform(fn))

	join, ok := fn.VertexAt(3)
	require.True(t, ok)
	ct := fn.Vertex(join)
	require.NotEmpty(t, ct.Block.Mnemonics)

	first := ct.Block.Mnemonics[0]
	require.Equal(t, "ssa-phi", first.Opcode)
	require.Len(t, first.Statements, 1)

	phi, ok := first.Statements[0].Op.(il.Phi[value.Rvalue])
	require.True(t, ok)
	assert.Len(t, phi.Args, 2)
}

// TestTransformIsIdempotent is the SSA round-trip property: running
// Transform again on an already-SSA'd function changes nothing, since
// renaming only ever touches un-subscripted variables.
func TestTransformIsIdempotent(t *testing.T) {
	fn, _ := diamondFunction(t)
	require.NoError(t, Transform(fn))

	before := make([]string, 0)
	for _, instr := range allStatements(fn) {
		before = append(before, instr.String())
	}

	require.NoError(t, Transform(fn))

	after := make([]string, 0)
	for _, instr := range allStatements(fn) {
		after = append(after, instr.String())
	}

	assert.Equal(t, before, after)
}

func TestTransformRejectsFunctionWithoutEntry(t *testing.T) {
	fn := program.New("f", "r")
	fn.AddResolved(disasm.NewBasicBlock([]*disasm.Mnemonic{assign(0, value.NewVariable("x", 8), value.Constant{Value: 0})}))

	err := Transform(fn)
	require.Error(t, err)
	assert.Equal(t, EmptyFunction{FunctionName: "f"}, err)
}
