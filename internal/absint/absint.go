// Package absint implements the abstract-interpretation framework — a
// monotone worklist fixpoint over SSA'd program.Function, parametric
// in a user-supplied Avalue domain — grounded on
// original_source/lib/src/abstractinterp.rs's Avalue trait and
// approximate function, ported structurally rather than translated
// line-by-line in naming (Go has no trait objects; the domain is a
// plain generic type parameter instead).
package absint

import (
	"fmt"

	"panopticon/internal/diag"
	"panopticon/internal/il"
	"panopticon/internal/program"
	"panopticon/internal/value"
)

// Avalue is the contract a domain must satisfy to be approximated,
// the direct Go generic form of the original Avalue trait.
type Avalue[A any] interface {
	Abstraction(rv value.Rvalue) A
	Execute(op il.Operation[A]) A
	Narrow(rel il.Guard[A]) A
	Combine(other A) A
	Widen(other A) A
	MoreExact(other A) bool
	Initial() A
}

// AnalysisDivergence is returned (never as a hard failure — the
// abstract interpreter always hands back its best-effort map)
// alongside that map when the fixpoint does not stabilize within the
// configured iteration cap.
type AnalysisDivergence struct {
	FunctionUUID string
	Iterations   int
}

func (e AnalysisDivergence) Error() string {
	return fmt.Sprintf("absint: function %s did not converge after %d iterations", e.FunctionUUID, e.Iterations)
}

// DefaultMaxIterations bounds the fixpoint loop against a misbehaving
// domain (one whose widen never fires). Chosen generously for
// function-sized CFGs; callers needing a different cap use
// ApproximateWithCap.
const DefaultMaxIterations = 10_000

// Approximate runs the monotone fixpoint over fn (which must already
// be in SSA form — see internal/ssa) and
// returns a map from every SSA Variable (by its rendered name, since
// value.Variable is not itself comparable — it embeds a *int
// Subscript pointer) to its approximated value.
func Approximate[A Avalue[A]](fn *program.Function) (map[string]A, error) {
	return ApproximateWithCap[A](fn, DefaultMaxIterations)
}

// ApproximateWithCap is Approximate with an explicit iteration cap.
func ApproximateWithCap[A Avalue[A]](fn *program.Function, maxIterations int) (map[string]A, error) {
	var zero A
	rpo := fn.ReversePostorder()

	ret := map[string]A{}
	lookup := func(rv value.Rvalue) A {
		if v, ok := value.AsLvalue(rv); ok {
			if name, isVar := variableKey(v); isVar {
				if cur, ok := ret[name]; ok {
					return cur
				}
				return zero.Initial()
			}
		}
		return zero.Abstraction(rv)
	}

	iterations := 0
	for {
		iterations++
		changed := false

		for _, v := range rpo {
			ct := fn.Vertex(v)
			if ct.Kind != program.Resolved {
				continue
			}
			for _, m := range ct.Block.Mnemonics {
				for _, instr := range m.Statements {
					name, isVar := variableKey(instr.Assignee)
					if !isVar {
						continue
					}
					newVal := evaluate[A](instr.Op, lookup)
					cur, known := ret[name]
					if !known || newVal.MoreExact(cur) {
						ret[name] = newVal
						changed = true
					}
				}
			}
		}

		if !changed {
			break
		}
		if iterations >= maxIterations {
			diag.WithFields(map[string]any{"function": fn.UUID.String(), "iterations": iterations}).
				Warn("abstract interpretation did not converge within the iteration cap")
			return ret, AnalysisDivergence{FunctionUUID: fn.UUID.String(), Iterations: iterations}
		}
	}
	return ret, nil
}

func variableKey(rv value.Rvalue) (string, bool) {
	v, ok := rv.(value.Variable)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// evaluate computes one instruction's new abstract value, mirroring
// abstractinterp.rs's match over every Operation variant: Phi combines
// its arguments (or passes through a single one), Nop is a pure copy,
// every other operator abstracts its operands and defers to the
// domain's Execute.
func evaluate[A Avalue[A]](op il.Operation[value.Rvalue], lookup func(value.Rvalue) A) A {
	var zero A
	switch o := op.(type) {
	case il.Phi[value.Rvalue]:
		switch len(o.Args) {
		case 0:
			panic("absint: phi instruction with no arguments")
		case 1:
			return lookup(o.Args[0])
		default:
			acc := zero.Initial()
			for _, a := range o.Args {
				acc = acc.Combine(lookup(a))
			}
			return acc
		}
	case il.Nop[value.Rvalue]:
		return lookup(o.A)
	default:
		return zero.Execute(lift(op, lookup))
	}
}

// lift rebuilds op with every value.Rvalue operand replaced by its
// abstracted A value, the cross-domain analogue of il.MapOperands
// (which only rewrites operands within a single type parameter).
func lift[A Avalue[A]](op il.Operation[value.Rvalue], lookup func(value.Rvalue) A) il.Operation[A] {
	switch o := op.(type) {
	case il.LogicAnd[value.Rvalue]:
		return il.LogicAnd[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.LogicInclusiveOr[value.Rvalue]:
		return il.LogicInclusiveOr[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.LogicExclusiveOr[value.Rvalue]:
		return il.LogicExclusiveOr[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.LogicNegation[value.Rvalue]:
		return il.LogicNegation[A]{A: lookup(o.A)}
	case il.LogicLift[value.Rvalue]:
		return il.LogicLift[A]{A: lookup(o.A)}
	case il.IntAnd[value.Rvalue]:
		return il.IntAnd[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntInclusiveOr[value.Rvalue]:
		return il.IntInclusiveOr[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntExclusiveOr[value.Rvalue]:
		return il.IntExclusiveOr[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntAdd[value.Rvalue]:
		return il.IntAdd[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntSubtract[value.Rvalue]:
		return il.IntSubtract[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntMultiply[value.Rvalue]:
		return il.IntMultiply[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntDivide[value.Rvalue]:
		return il.IntDivide[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntModulo[value.Rvalue]:
		return il.IntModulo[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntLess[value.Rvalue]:
		return il.IntLess[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntEqual[value.Rvalue]:
		return il.IntEqual[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntRightShift[value.Rvalue]:
		return il.IntRightShift[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntLeftShift[value.Rvalue]:
		return il.IntLeftShift[A]{A: lookup(o.A), B: lookup(o.B)}
	case il.IntCall[value.Rvalue]:
		args := make([]A, len(o.Args))
		for i, a := range o.Args {
			args[i] = lookup(a)
		}
		return il.IntCall[A]{Target: lookup(o.Target), Args: args}
	default:
		panic(fmt.Sprintf("absint: lift: unhandled operation %T", op))
	}
}
