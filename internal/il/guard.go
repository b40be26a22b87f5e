package il

import "fmt"

// Relation is the closed set of boolean relations a Guard may carry; the
// Guard itself is generic over its operand type T (see operation.go — T is
// value.Rvalue for the CFG built by the disassembler, and an abstract
// domain A when the abstract interpreter narrows on an outgoing edge).
// Grounded on original_source/lib/src/guard.rs's Relation enum: each
// relation is total and has exactly one negation, enforced by Negate
// below rather than by the type itself.
type Relation int

const (
	UnsignedLessOrEqual Relation = iota
	SignedLessOrEqual
	UnsignedGreaterOrEqual
	SignedGreaterOrEqual
	UnsignedLess
	SignedLess
	UnsignedGreater
	SignedGreater
	Equal
	NotEqual
	True
	False
)

var negation = map[Relation]Relation{
	UnsignedLessOrEqual:    UnsignedGreater,
	SignedLessOrEqual:      SignedGreater,
	UnsignedGreaterOrEqual: UnsignedLess,
	SignedGreaterOrEqual:   SignedLess,
	UnsignedLess:           UnsignedGreaterOrEqual,
	SignedLess:             SignedGreaterOrEqual,
	UnsignedGreater:        UnsignedLessOrEqual,
	SignedGreater:          SignedLessOrEqual,
	Equal:                  NotEqual,
	NotEqual:               Equal,
	True:                   False,
	False:                  True,
}

func (r Relation) String() string {
	switch r {
	case UnsignedLessOrEqual:
		return "u<="
	case SignedLessOrEqual:
		return "s<="
	case UnsignedGreaterOrEqual:
		return "u>="
	case SignedGreaterOrEqual:
		return "s>="
	case UnsignedLess:
		return "u<"
	case SignedLess:
		return "s<"
	case UnsignedGreater:
		return "u>"
	case SignedGreater:
		return "s>"
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case True:
		return "true"
	case False:
		return "false"
	default:
		return fmt.Sprintf("Relation(%d)", int(r))
	}
}

// Guard is a boolean relation over two operands, plus a total negation
// operation: g.Negate().Negate() always equals g.
type Guard[T any] struct {
	Rel  Relation
	A, B T
}

// NewGuard builds a Guard from a relation and its two operands. True and
// False ignore A/B (the original's Relation::True/False carry none).
func NewGuard[T any](rel Relation, a, b T) Guard[T] {
	return Guard[T]{Rel: rel, A: a, B: b}
}

// Always and Never are the two operand-less guards.
func Always[T any]() Guard[T] { return Guard[T]{Rel: True} }
func Never[T any]() Guard[T]  { return Guard[T]{Rel: False} }

// Negate returns the logical negation of g. negation is a total
// involution: g.Negate().Negate() always equals g.
func (g Guard[T]) Negate() Guard[T] {
	return Guard[T]{Rel: negation[g.Rel], A: g.A, B: g.B}
}

func (g Guard[T]) String() string {
	switch g.Rel {
	case True, False:
		return g.Rel.String()
	default:
		return fmt.Sprintf("%v %s %v", g.A, g.Rel, g.B)
	}
}

// Equal2 reports whether g and h carry the same relation and operands.
// T must be comparable for this to be meaningful; callers that only
// need negation symmetry can compare Rel alone.
func Equal2[T comparable](g, h Guard[T]) bool {
	return g.Rel == h.Rel && g.A == h.A && g.B == h.B
}
