// Package codegen implements the builder an Architecture's decoding
// Action uses to emit IL for one mnemonic — one method per IL
// operator, each appending an il.Instr to the running instruction
// list, grounded directly on
// original_source/lib/src/codegen.rs's CodeGen<A>.
package codegen

import (
	"panopticon/internal/il"
	"panopticon/internal/value"
)

// CodeGen accumulates the Instrs of one mnemonic. cfg is whatever
// per-architecture configuration the caller's Action threads through
// (register file state, decode mode) — codegen itself never inspects
// it.
type CodeGen struct {
	Instructions []il.Instr
	cfg          any
}

// New creates an empty CodeGen carrying cfg for the caller's own use.
func New(cfg any) *CodeGen {
	return &CodeGen{cfg: cfg}
}

// Configuration returns the value passed to New.
func (c *CodeGen) Configuration() any { return c.cfg }

func (c *CodeGen) named(op il.Operation[value.Rvalue], assignee value.Lvalue) value.Lvalue {
	instr := il.Instr{Op: op, Assignee: assignee}
	instr.CheckSanity()
	c.Instructions = append(c.Instructions, instr)
	return assignee
}

// AndB emits a boolean AND: a = op1 & op2.
func (c *CodeGen) AndB(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.LogicAnd[value.Rvalue]{A: op1, B: op2}, a)
}

// OrB emits a boolean inclusive OR.
func (c *CodeGen) OrB(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.LogicInclusiveOr[value.Rvalue]{A: op1, B: op2}, a)
}

// XorB emits a boolean exclusive OR.
func (c *CodeGen) XorB(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.LogicExclusiveOr[value.Rvalue]{A: op1, B: op2}, a)
}

// LiftB lifts an integer operand into a boolean (nonzero test).
func (c *CodeGen) LiftB(a value.Lvalue, op value.Rvalue) {
	c.named(il.LogicLift[value.Rvalue]{A: op}, a)
}

// NotB emits boolean negation.
func (c *CodeGen) NotB(a value.Lvalue, op value.Rvalue) {
	c.named(il.LogicNegation[value.Rvalue]{A: op}, a)
}

// Assign emits a plain copy: a = op.
func (c *CodeGen) Assign(a value.Lvalue, op value.Rvalue) {
	c.named(il.Nop[value.Rvalue]{A: op}, a)
}

// AndI emits bitwise integer AND.
func (c *CodeGen) AndI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntAnd[value.Rvalue]{A: op1, B: op2}, a)
}

// OrI emits bitwise integer inclusive OR.
func (c *CodeGen) OrI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntInclusiveOr[value.Rvalue]{A: op1, B: op2}, a)
}

// XorI emits bitwise integer exclusive OR.
func (c *CodeGen) XorI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntExclusiveOr[value.Rvalue]{A: op1, B: op2}, a)
}

// AddI emits integer addition.
func (c *CodeGen) AddI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntAdd[value.Rvalue]{A: op1, B: op2}, a)
}

// SubI emits integer subtraction.
func (c *CodeGen) SubI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntSubtract[value.Rvalue]{A: op1, B: op2}, a)
}

// MulI emits integer multiplication.
func (c *CodeGen) MulI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntMultiply[value.Rvalue]{A: op1, B: op2}, a)
}

// DivI emits integer division.
func (c *CodeGen) DivI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntDivide[value.Rvalue]{A: op1, B: op2}, a)
}

// ModI emits integer modulo.
func (c *CodeGen) ModI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntModulo[value.Rvalue]{A: op1, B: op2}, a)
}

// EqualI emits an integer equality test.
func (c *CodeGen) EqualI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntEqual[value.Rvalue]{A: op1, B: op2}, a)
}

// LessI emits an unsigned less-than test.
func (c *CodeGen) LessI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntLess[value.Rvalue]{A: op1, B: op2}, a)
}

// CallI emits a call to another function, identified by op (a
// constant for a direct call, otherwise an indirect call target).
func (c *CodeGen) CallI(a value.Lvalue, op value.Rvalue) {
	c.named(il.IntCall[value.Rvalue]{Target: op}, a)
}

// RShiftI emits a logical right shift.
func (c *CodeGen) RShiftI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntRightShift[value.Rvalue]{A: op1, B: op2}, a)
}

// LShiftI emits a logical left shift.
func (c *CodeGen) LShiftI(a value.Lvalue, op1, op2 value.Rvalue) {
	c.named(il.IntLeftShift[value.Rvalue]{A: op1, B: op2}, a)
}

// Phi emits an SSA phi node directly. internal/ssa does not call it: its
// renaming pass builds φ-instructions as il.Instr values itself.
func (c *CodeGen) Phi(a value.Lvalue, args []value.Rvalue) {
	c.named(il.Phi[value.Rvalue]{Args: args}, a)
}
