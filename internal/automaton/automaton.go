// Package automaton implements the recursive-descent disassembler
// automaton — an acyclic graph of bit-pattern edges compiled from
// Append'd alternatives, matched by advancing a frontier of candidate
// paths one token at a time until it stabilizes, grounded directly on
// original_source/lib/src/disassembler.rs's Disassembler<A>/next_match.
package automaton

import (
	"fmt"
	"sort"
	"strings"

	"panopticon/internal/bitpattern"
	"panopticon/internal/perrors"
	"panopticon/internal/region"
)

type edgeKind int

const (
	edgeEpsilon edgeKind = iota
	edgeCharacter
	edgeCondition
)

type edge[T Token] struct {
	kind     edgeKind
	bits     T
	mask     T
	captures map[string]T
	action   Action[T]
	to       int
}

type vertex struct {
	priority int
}

// Automaton is a compiled graph of alternatives sharing a single start
// vertex, built up by repeated calls to Append. It is safe to Match
// concurrently once construction is finished (Append is not
// goroutine-safe; build the whole graph before handing it to callers).
type Automaton[T Token] struct {
	tokenBits     int
	vertices      []vertex
	edgesFrom     map[int][]edge[T]
	start         int
	goals         map[int]bool
	defaultAction Action[T]
	nextIndex     int
}

// New creates an empty automaton reading tokens of the given bit width
// (8 or 16, per Token's constraint).
func New[T Token](tokenBits int) *Automaton[T] {
	if tokenBits != 8 && tokenBits != 16 {
		perrors.Programming("automaton.New", "unsupported token width %d", tokenBits)
	}
	a := &Automaton[T]{
		tokenBits: tokenBits,
		edgesFrom: map[int][]edge[T]{},
		goals:     map[int]bool{},
	}
	a.start = a.addVertex(-1)
	return a
}

func (a *Automaton[T]) addVertex(priority int) int {
	id := len(a.vertices)
	a.vertices = append(a.vertices, vertex{priority: priority})
	return id
}

func (a *Automaton[T]) addEdge(from int, e edge[T]) {
	a.edgesFrom[from] = append(a.edgesFrom[from], e)
}

// SetDefault installs the fallback action run when no alternative
// matches at all: it is handed a state with exactly one token already
// consumed, and may still refuse the match by returning false.
func (a *Automaton[T]) SetDefault(action Action[T]) {
	a.defaultAction = action
}

// Append adds one alternative: a sequence of Exprs that must all match
// in order, followed by action. Patterns are compiled eagerly so a
// malformed bit-pattern string panics here at construction time, not
// mid-match.
func (a *Automaton[T]) Append(exprs []Expr[T], action Action[T]) {
	index := a.nextIndex
	a.nextIndex++
	if len(exprs) == 0 {
		return
	}
	prev := a.start
	for _, e := range exprs {
		prev = a.appendExpr(prev, e, index)
	}
	last := a.addVertex(index)
	a.addEdge(prev, edge[T]{kind: edgeCondition, action: action, to: last})
	a.goals[last] = true
}

func (a *Automaton[T]) appendExpr(prev int, e Expr[T], index int) int {
	switch e.kind {
	case exprPattern:
		return a.appendPattern(prev, e.pattern, index)
	case exprTerminal:
		next := a.addVertex(index)
		a.addEdge(prev, edge[T]{kind: edgeCharacter, bits: e.terminal, mask: ^T(0), to: next})
		return next
	case exprSub:
		return a.inlineSub(prev, e.sub, index)
	case exprOptional:
		next := a.appendExpr(prev, *e.inner, index)
		last := a.addVertex(index)
		a.addEdge(prev, edge[T]{kind: edgeEpsilon, to: last})
		a.addEdge(next, edge[T]{kind: edgeEpsilon, to: last})
		return last
	default:
		perrors.Programming("automaton.appendExpr", "unknown expr kind %d", e.kind)
		panic("unreachable")
	}
}

// appendPattern compiles one bit-pattern string into a single Character
// edge, walking bit positions MSB-first exactly as
// original_source/lib/src/disassembler.rs's append_expr does: each
// literal '0'/'1' narrows the match mask, each named capture
// additionally accumulates its selected bits (accumulate via the same
// name across pattern fields and even across tokens within one
// alternative, since Groups persists across the whole path).
func (a *Automaton[T]) appendPattern(prev int, pattern string, index int) int {
	fields, err := bitpattern.Parse(pattern)
	if err != nil {
		perrors.Programming("automaton.appendPattern", "%s", err)
	}

	var bits, mask T
	captureMasks := map[string]T{}
	bit := a.tokenBits

	for _, f := range fields {
		name := f.Name()
		for _, c := range f.Bits() {
			if bit <= 0 {
				perrors.Programming("automaton.appendPattern", "pattern %q longer than %d-bit token", pattern, a.tokenBits)
			}
			posMask := T(1) << uint(bit-1)
			switch c {
			case '.':
				if name != "" {
					captureMasks[name] |= posMask
				}
			case '0':
				mask |= posMask
				if name != "" {
					captureMasks[name] |= posMask
				}
			case '1':
				mask |= posMask
				bits |= posMask
				if name != "" {
					captureMasks[name] |= posMask
				}
			default:
				perrors.Programming("automaton.appendPattern", "invalid bit char %q in pattern %q", c, pattern)
			}
			bit--
		}
	}
	if bit != 0 {
		perrors.Programming("automaton.appendPattern", "pattern %q does not cover all %d bits of the token", pattern, a.tokenBits)
	}

	captures := map[string]T{}
	for name, m := range captureMasks {
		if m != 0 {
			captures[name] = m
		}
	}

	next := a.addVertex(index)
	a.addEdge(prev, edge[T]{kind: edgeCharacter, bits: bits, mask: mask, captures: captures, to: next})
	return next
}

// inlineSub splices a copy of sub's graph into a, giving every copied
// vertex the host alternative's priority index — exactly as the
// original's sub-decoder inlining relabels every inlined vertex with
// the enclosing append_conjunction's index.
func (a *Automaton[T]) inlineSub(prev int, sub *Automaton[T], index int) int {
	translated := make(map[int]int, len(sub.vertices))
	for i := range sub.vertices {
		translated[i] = a.addVertex(index)
	}
	for from, edges := range sub.edgesFrom {
		for _, e := range edges {
			ne := e
			ne.to = translated[e.to]
			a.addEdge(translated[from], ne)
		}
	}
	a.addEdge(prev, edge[T]{kind: edgeEpsilon, to: translated[sub.start]})

	last := a.addVertex(index)
	for g := range sub.goals {
		a.addEdge(translated[g], edge[T]{kind: edgeEpsilon, to: last})
	}
	return last
}

func readToken[T Token](it *region.LayerIter, tokenBits int) (T, bool) {
	b0, ok := it.Next()
	if !ok {
		return 0, false
	}
	if tokenBits == 8 {
		return T(b0), true
	}
	b1, ok2 := it.Next()
	if !ok2 {
		return 0, false
	}
	return T(uint16(b0) | uint16(b1)<<8), true
}

// ensureToken returns the l'th token (1-indexed) of the path, reading
// and appending fresh tokens from it/cursor as needed.
func ensureToken[T Token](tokens *[]T, it **region.LayerIter, tokenBits, l int) (T, bool) {
	for len(*tokens) < l {
		tok, ok := readToken[T](*it, tokenBits)
		if !ok {
			return 0, false
		}
		*tokens = append(*tokens, tok)
	}
	return (*tokens)[l-1], true
}

func extractCaptures[T Token](tokenBits int, tok T, captures map[string]T, groups map[string]uint64) {
	for name, m := range captures {
		res := groups[name]
		for i := 0; i < tokenBits; i++ {
			bitPos := tokenBits - i - 1
			bm := T(1) << uint(bitPos)
			if m&bm != 0 {
				res <<= 1
				if tok&bm != 0 {
					res |= 1
				}
			}
		}
		groups[name] = res
	}
}

// Match attempts to decode one instruction starting at addr, advancing
// a frontier of candidate (vertex, State) pairs one token at a time
// until the set of live vertices stops changing — the graph is
// acyclic, so this always terminates. Among surviving goal vertices it
// picks the one with the lowest Append priority (first-registered
// alternative wins ties). If no alternative matches at all, it falls
// back to the installed default action, if any.
func (a *Automaton[T]) Match(start *region.LayerIter, addr uint64, cfg any) (*State[T], bool) {
	tokens := []T{}
	cursor := start.Clone()

	states := map[int]*State[T]{a.start: newState[T](addr, cfg)}

	for {
		next := map[int]*State[T]{}
		for vid, st := range states {
			if a.goals[vid] {
				next[vid] = st
				continue
			}
			for _, e := range a.edgesFrom[vid] {
				candidate := st.clone()
				matched := false
				switch e.kind {
				case edgeEpsilon:
					matched = true
				case edgeCharacter:
					tok, ok := ensureToken(&tokens, &cursor, a.tokenBits, len(candidate.Tokens)+1)
					if ok && e.bits == (tok&e.mask) {
						candidate.Tokens = append(candidate.Tokens, tok)
						extractCaptures(a.tokenBits, tok, e.captures, candidate.Groups)
						matched = true
					}
				case edgeCondition:
					matched = e.action(candidate)
				}
				if matched {
					next[e.to] = candidate
				}
			}
		}
		if sameKeys(states, next) {
			break
		}
		states = next
	}

	if len(states) == 0 {
		if a.defaultAction == nil {
			return nil, false
		}
		st := newState[T](addr, cfg)
		tok, ok := readToken[T](start.Clone(), a.tokenBits)
		if !ok {
			return nil, false
		}
		st.Tokens = append(st.Tokens, tok)
		if !a.defaultAction(st) {
			return nil, false
		}
		return st, true
	}

	type candidate struct {
		priority int
		state    *State[T]
	}
	var winners []candidate
	for vid, st := range states {
		if a.goals[vid] {
			winners = append(winners, candidate{priority: a.vertices[vid].priority, state: st})
		}
	}
	if len(winners) == 0 {
		return nil, false
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i].priority < winners[j].priority })
	return winners[0].state, true
}

func sameKeys[T Token](a, b map[int]*State[T]) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// WriteDOT renders the automaton's graph in Graphviz dot format, the Go
// analogue of original_source's Disassembler::to_dot — useful when
// debugging a hand-written Append sequence.
func (a *Automaton[T]) WriteDOT() string {
	var b strings.Builder
	b.WriteString("digraph automaton {\n")
	for vid := range a.vertices {
		shape := "circle"
		if a.goals[vid] {
			shape = "doublecircle"
		}
		fmt.Fprintf(&b, "  n%d [shape=%s];\n", vid, shape)
	}
	for from, edges := range a.edgesFrom {
		for _, e := range edges {
			label := "ε"
			switch e.kind {
			case edgeCharacter:
				label = fmt.Sprintf("%0*b/%0*b", a.tokenBits, e.bits, a.tokenBits, e.mask)
			case edgeCondition:
				label = "action"
			}
			fmt.Fprintf(&b, "  n%d -> n%d [label=%q];\n", from, e.to, label)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
