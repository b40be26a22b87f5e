// Package toyarch is a deliberately tiny 8-bit Architecture plug-in used
// to exercise internal/automaton, internal/program and internal/ssa end
// to end: four two-byte opcodes (move-immediate, register add,
// conditional jump, call), nothing resembling a real instruction set.
// It plays the role original_source's test suites give their own
// throwaway decoders (see e.g. disassembler.rs's test module, which
// builds a handful of made-up opcodes purely to drive the automaton).
package toyarch

import (
	"fmt"

	"panopticon/internal/automaton"
	"panopticon/internal/codegen"
	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/value"
)

// RegisterWidth is the bit width of every general-purpose register.
const RegisterWidth = 8

func register(n uint64) value.Variable {
	return value.NewVariable(fmt.Sprintf("r%d", n), RegisterWidth)
}

// Arch is the toy Architecture: four opcodes encoded as opcode-nibble +
// register-nibble in the first byte, followed by one operand byte.
type Arch struct {
	root *automaton.Automaton[uint8]
}

// New compiles the toy automaton and returns an Architecture ready to
// hand to program.NewDriver.
func New() *Arch {
	a := &Arch{root: automaton.New[uint8](8)}
	a.root.Append([]automaton.Expr[uint8]{
		automaton.Bits[uint8]("0001 r@...."),
		automaton.Bits[uint8]("i@........"),
	}, movi)
	a.root.Append([]automaton.Expr[uint8]{
		automaton.Bits[uint8]("0010 r@...."),
		automaton.Bits[uint8]("0000 s@...."),
	}, add)
	a.root.Append([]automaton.Expr[uint8]{
		automaton.Bits[uint8]("0011 r@...."),
		automaton.Bits[uint8]("t@........"),
	}, jnz)
	a.root.Append([]automaton.Expr[uint8]{
		automaton.Bits[uint8]("0100 ...."),
		automaton.Bits[uint8]("t@........"),
	}, call)
	return a
}

// Configuration is unused by the toy architecture: it has no decode
// mode or flag register threaded between instructions.
func (a *Arch) Configuration() any { return nil }

// Root returns the compiled automaton.
func (a *Arch) Root() *automaton.Automaton[uint8] { return a.root }

// movi decodes "r <- imm8".
func movi(st *automaton.State[uint8]) bool {
	r := st.GetGroup("r")
	imm := st.GetGroup("i")

	cg := codegen.New(st.Configuration)
	dst := register(r)
	cg.Assign(dst, value.Constant{Value: imm})

	m := &disasm.Mnemonic{
		Operands:   []value.Rvalue{dst, value.Constant{Value: imm}},
		Statements: cg.Instructions,
	}
	st.Mnemonic(2, "movi", fmt.Sprintf("r%d, %#x", r, imm), m)
	return true
}

// add decodes "r <- r + s".
func add(st *automaton.State[uint8]) bool {
	r := st.GetGroup("r")
	s := st.GetGroup("s")

	cg := codegen.New(st.Configuration)
	dst := register(r)
	cg.AddI(dst, dst, register(s))

	m := &disasm.Mnemonic{
		Operands:   []value.Rvalue{dst, register(s)},
		Statements: cg.Instructions,
	}
	st.Mnemonic(2, "add", fmt.Sprintf("r%d, r%d", r, s), m)
	return true
}

// jnz decodes "if r != 0 goto t" with an implicit fallthrough otherwise
// — the toy architecture's only branching instruction, exercising
// program.Function's guard-partitioned out-edges.
func jnz(st *automaton.State[uint8]) bool {
	r := st.GetGroup("r")
	target := st.GetGroup("t")

	cond := register(r)
	m := &disasm.Mnemonic{
		Operands: []value.Rvalue{cond, value.Constant{Value: target}},
	}
	st.Mnemonic(2, "jnz", fmt.Sprintf("r%d, %#x", r, target), m)

	taken := il.NewGuard[value.Rvalue](il.NotEqual, cond, value.Constant{Value: 0})
	fallthroughAddr := st.Address + uint64(st.NumTokens())
	st.Jump(target, taken, false)
	st.Jump(fallthroughAddr, taken.Negate(), false)
	return true
}

// call decodes an unconditional call to an absolute address; the
// driver routes this straight into the call graph and keeps growing
// the current block, since the toy architecture never transfers
// control across a call boundary as a basic-block edge.
func call(st *automaton.State[uint8]) bool {
	target := st.GetGroup("t")

	m := &disasm.Mnemonic{
		Operands: []value.Rvalue{value.Constant{Value: target}},
	}
	st.Mnemonic(2, "call", fmt.Sprintf("%#x", target), m)
	st.Jump(target, il.Always[value.Rvalue](), true)
	return true
}
