// Package kset implements a reference Avalue domain: a bounded
// powerset of distinct integer constants, collapsing to ⊤ past a
// cardinality cap. It is the Go generic instantiation of the
// original's sketched (commented-out) KSet struct in
// original_source/lib/src/abstractinterp.rs, completed since the
// original left it unimplemented.
package kset

import (
	"fmt"
	"sort"
	"strings"

	"panopticon/internal/il"
	"panopticon/internal/value"
)

// MaxSize is K, the cardinality cap above which a Kset collapses to ⊤.
const MaxSize = 10

// Kset is either ⊤ (Top, "could be any value") or a sorted,
// deduplicated set of concrete uint64 constants of size <= MaxSize.
// The zero value is ⊥ (the empty set, Avalue's Initial/bottom).
type Kset struct {
	Top    bool
	Values []uint64
}

// Bottom is the least element: no value is possible yet.
func Bottom() Kset { return Kset{} }

// TopOf is the greatest element: any value is possible.
func TopOf() Kset { return Kset{Top: true} }

// Of builds a Kset from concrete values, deduplicating and sorting
// them (⊤ if more than MaxSize distinct values are given).
func Of(vs ...uint64) Kset {
	return normalize(append([]uint64(nil), vs...))
}

func normalize(vs []uint64) Kset {
	seen := map[uint64]bool{}
	out := vs[:0]
	for _, v := range vs {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > MaxSize {
		return Kset{Top: true}
	}
	return Kset{Values: out}
}

func (k Kset) String() string {
	if k.Top {
		return "⊤"
	}
	if len(k.Values) == 0 {
		return "⊥"
	}
	parts := make([]string, len(k.Values))
	for i, v := range k.Values {
		parts[i] = fmt.Sprintf("%#x", v)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func (k Kset) isBottom() bool { return !k.Top && len(k.Values) == 0 }

func contains(vs []uint64, x uint64) bool {
	for _, v := range vs {
		if v == x {
			return true
		}
	}
	return false
}

// Abstraction lifts a concrete operand into the domain: a Constant
// becomes its singleton, everything else (an unresolved Variable,
// Memory reference, or Undefined) is unknown to this domain and is ⊤.
func (Kset) Abstraction(rv value.Rvalue) Kset {
	if c, ok := rv.(value.Constant); ok {
		return Of(c.Value)
	}
	return TopOf()
}

// Initial is ⊥.
func (Kset) Initial() Kset { return Bottom() }

// Combine is set union, collapsing to ⊤ past MaxSize or if either
// operand already is ⊤.
func (k Kset) Combine(other Kset) Kset {
	if k.Top || other.Top {
		return TopOf()
	}
	merged := append(append([]uint64(nil), k.Values...), other.Values...)
	return normalize(merged)
}

// Widen returns ⊤ whenever other is strictly larger than k — a
// cardinality-growth heuristic guaranteeing ascending chains terminate
// in at most MaxSize+1 steps.
func (k Kset) Widen(other Kset) Kset {
	if k.Top || other.Top {
		return TopOf()
	}
	if len(other.Values) > len(k.Values) {
		return TopOf()
	}
	return other
}

// MoreExact implements the strict lattice order a ⊏ b: k is strictly
// more precise than other.
func (k Kset) MoreExact(other Kset) bool {
	if equal(k, other) {
		return false
	}
	if other.Top {
		return true
	}
	if k.Top {
		return false
	}
	for _, v := range k.Values {
		if !contains(other.Values, v) {
			return false
		}
	}
	return len(k.Values) <= len(other.Values)
}

func equal(a, b Kset) bool {
	if a.Top != b.Top {
		return false
	}
	if a.Top {
		return true
	}
	if len(a.Values) != len(b.Values) {
		return false
	}
	for i := range a.Values {
		if a.Values[i] != b.Values[i] {
			return false
		}
	}
	return true
}

// Narrow refines k using an outgoing-edge guard. Only the relations
// this domain can exploit against a concrete singleton bound are
// applied; anything else leaves k unchanged (still sound, just not
// sharper).
func (k Kset) Narrow(rel il.Guard[Kset]) Kset {
	if k.Top || rel.B.Top || len(rel.B.Values) != 1 {
		return k
	}
	bound := rel.B.Values[0]
	keep := func(pred func(uint64) bool) Kset {
		var out []uint64
		for _, v := range k.Values {
			if pred(v) {
				out = append(out, v)
			}
		}
		return normalize(out)
	}
	switch rel.Rel {
	case il.Equal:
		if contains(k.Values, bound) {
			return Of(bound)
		}
		return Bottom()
	case il.NotEqual:
		return keep(func(v uint64) bool { return v != bound })
	case il.UnsignedLess:
		return keep(func(v uint64) bool { return v < bound })
	case il.UnsignedLessOrEqual:
		return keep(func(v uint64) bool { return v <= bound })
	case il.UnsignedGreater:
		return keep(func(v uint64) bool { return v > bound })
	case il.UnsignedGreaterOrEqual:
		return keep(func(v uint64) bool { return v >= bound })
	default:
		return k
	}
}

// Execute distributes the operator pointwise over the cartesian
// product of its operands' sets; when either input is ⊤, the result
// is ⊤.
func (Kset) Execute(op il.Operation[Kset]) Kset {
	bin := func(a, b Kset, f func(x, y uint64) uint64) Kset {
		if a.Top || b.Top {
			return TopOf()
		}
		var out []uint64
		for _, x := range a.Values {
			for _, y := range b.Values {
				out = append(out, f(x, y))
			}
		}
		return normalize(out)
	}
	un := func(a Kset, f func(x uint64) uint64) Kset {
		if a.Top {
			return TopOf()
		}
		var out []uint64
		for _, x := range a.Values {
			out = append(out, f(x))
		}
		return normalize(out)
	}
	boolOf := func(b bool) uint64 {
		if b {
			return 1
		}
		return 0
	}

	switch o := op.(type) {
	case il.LogicAnd[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return boolOf(x != 0 && y != 0) })
	case il.LogicInclusiveOr[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return boolOf(x != 0 || y != 0) })
	case il.LogicExclusiveOr[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return boolOf((x != 0) != (y != 0)) })
	case il.LogicNegation[Kset]:
		return un(o.A, func(x uint64) uint64 { return boolOf(x == 0) })
	case il.LogicLift[Kset]:
		return un(o.A, func(x uint64) uint64 { return boolOf(x != 0) })
	case il.IntAnd[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return x & y })
	case il.IntInclusiveOr[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return x | y })
	case il.IntExclusiveOr[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return x ^ y })
	case il.IntAdd[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return x + y })
	case il.IntSubtract[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return x - y })
	case il.IntMultiply[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return x * y })
	case il.IntDivide[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 {
			if y == 0 {
				return 0
			}
			return x / y
		})
	case il.IntModulo[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 {
			if y == 0 {
				return 0
			}
			return x % y
		})
	case il.IntLess[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return boolOf(x < y) })
	case il.IntEqual[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return boolOf(x == y) })
	case il.IntRightShift[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return x >> (y % 64) })
	case il.IntLeftShift[Kset]:
		return bin(o.A, o.B, func(x, y uint64) uint64 { return x << (y % 64) })
	case il.IntCall[Kset]:
		return TopOf()
	default:
		panic(fmt.Sprintf("kset: unhandled operation %T", op))
	}
}
