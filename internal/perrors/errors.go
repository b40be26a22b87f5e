// Package perrors defines the project's three error kinds:
// ProgrammingError (a logic bug, caught by panicking at construction),
// DisassemblyFailure (one address failed to decode — recorded, not
// fatal) and AnalysisDivergence (the abstract interpreter hit its
// iteration cap — a diagnostic, not a failure).
package perrors

import (
	"fmt"

	"github.com/google/uuid"
)

// Programming panics with a ProgrammingError. Call this instead of a
// bare panic so every programming-error call site is grep-able and
// carries a consistent Op/Detail shape.
func Programming(op, format string, args ...any) {
	panic(ProgrammingError{Op: op, Detail: fmt.Sprintf(format, args...)})
}

// ProgrammingError is never returned; it is only ever the argument to
// panic. Bit-pattern syntax errors and other automaton construction
// misuse unwind this way. Operand-invariant violations in internal/value
// and internal/il also panic, but with a plain string rather than a
// ProgrammingError value. SSA on an entry-less function does not panic:
// ssa.Transform returns an EmptyFunction error.
type ProgrammingError struct {
	Op     string
	Detail string
}

func (e ProgrammingError) Error() string {
	return fmt.Sprintf("programming error in %s: %s", e.Op, e.Detail)
}

// DisassemblyFailure records that decoding Address produced no
// mnemonics. It never propagates past the driver: it becomes a Failed
// vertex (internal/program) and disassembly continues elsewhere.
type DisassemblyFailure struct {
	Address uint64
	Reason  string
}

func (e DisassemblyFailure) Error() string {
	return fmt.Sprintf("disassembly failed at %#x: %s", e.Address, e.Reason)
}

// AnalysisDivergence reports that the abstract interpreter exceeded its
// iteration cap for one function. The caller still receives the
// best-effort value map; this is a warning attached to the function,
// never a returned failure from Approximate.
type AnalysisDivergence struct {
	Function   uuid.UUID
	Iterations int
}

func (e AnalysisDivergence) Error() string {
	return fmt.Sprintf("analysis did not converge for function %s after %d iterations", e.Function, e.Iterations)
}
