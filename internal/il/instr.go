package il

import (
	"fmt"

	"panopticon/internal/value"
)

// Instr is a single IL statement: one operator applied to operands,
// writing one destination. Once SSA renaming has occurred, Instr is
// single-static-assignment: Assignee (if any) carries a fresh subscript
// and is never reassigned again.
type Instr struct {
	Op       Operation[value.Rvalue]
	Assignee value.Lvalue // nil for statements with no result (e.g. a bare IntCall used only for its side effect)
}

func (i Instr) String() string {
	if i.Assignee == nil {
		return String(i.Op)
	}
	return fmt.Sprintf("%s = %s", i.Assignee, String(i.Op))
}

// Operands returns every value.Rvalue this instruction reads, by
// delegating to the operator.
func (i Instr) Operands() []value.Rvalue { return i.Op.Operands() }

// CheckSanity re-validates operand invariants on an already-built
// instruction. It is called after SSA renaming and panics with a plain
// string message (a programming error) on violation.
func (i Instr) CheckSanity() {
	for _, rv := range i.Operands() {
		mustWellFormedOperand(rv)
	}
	if i.Assignee != nil {
		mustWellFormedOperand(i.Assignee)
	}
}

func mustWellFormedOperand(rv value.Rvalue) {
	switch v := rv.(type) {
	case value.Variable:
		if v.Name == "" || v.Width == 0 {
			panic("il: malformed variable operand")
		}
	case value.Memory:
		if v.Bytes == 0 || v.Bytes > 16 {
			panic("il: malformed memory operand")
		}
		mustWellFormedOperand(v.Offset)
	case value.Constant, value.Undefined:
	default:
		panic(fmt.Sprintf("il: unknown operand kind %T", rv))
	}
}
