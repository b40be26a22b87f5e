// Package program implements the Function control-flow graph, the
// Program/CallGraph of CallTargets, and the recursive-descent Driver
// that builds them — for the CFG's own adjacency-list shape, grounded
// on kanso/internal/ir.BasicBlock's Predecessors/Successors fields
// (read directly rather than via a third-party graph library: see the
// project's grounding ledger for why no packaged graph type was used).
package program

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/value"
)

// TargetKind distinguishes the three ControlFlowTarget variants.
type TargetKind int

const (
	Resolved TargetKind = iota
	Unresolved
	Failed
)

func (k TargetKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case Unresolved:
		return "unresolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ControlFlowTarget is one vertex of a Function's control-flow graph:
// a decoded BasicBlock, an unresolved (non-constant) jump target, or a
// decode failure recorded for diagnostics.
type ControlFlowTarget struct {
	Kind    TargetKind
	Block   *disasm.BasicBlock // Resolved
	Target  value.Rvalue       // Unresolved
	Address uint64              // Failed
	Reason  string              // Failed
}

func (t *ControlFlowTarget) String() string {
	switch t.Kind {
	case Resolved:
		return fmt.Sprintf("resolved@%#x", t.Block.EntryAddress())
	case Unresolved:
		return fmt.Sprintf("unresolved(%s)", t.Target)
	case Failed:
		return fmt.Sprintf("failed@%#x: %s", t.Address, t.Reason)
	default:
		return "?"
	}
}

type edge struct {
	to    int
	guard il.Guard[value.Rvalue]
}

// Function is one function's control-flow graph: vertices are
// ControlFlowTargets, edges are guarded and directed. Addresses of
// Resolved vertices are kept disjoint by construction (internal/program's
// Driver is the only writer).
type Function struct {
	UUID       uuid.UUID
	Name       string
	RegionName string

	vertices   []*ControlFlowTarget
	edgesFrom  map[int][]edge
	entry      *int
	blockStart map[uint64]int // Resolved block entry address -> vertex index
}

// New creates an empty Function ready to receive vertices from a Driver.
func New(name, regionName string) *Function {
	return &Function{
		UUID:       uuid.New(),
		Name:       name,
		RegionName: regionName,
		edgesFrom:  map[int][]edge{},
		blockStart: map[uint64]int{},
	}
}

// AddResolved installs a decoded BasicBlock as a new vertex and returns
// its index.
func (f *Function) AddResolved(b *disasm.BasicBlock) int {
	idx := len(f.vertices)
	f.vertices = append(f.vertices, &ControlFlowTarget{Kind: Resolved, Block: b})
	f.blockStart[b.EntryAddress()] = idx
	return idx
}

// AddUnresolved installs a non-constant jump target as a new vertex.
func (f *Function) AddUnresolved(target value.Rvalue) int {
	idx := len(f.vertices)
	f.vertices = append(f.vertices, &ControlFlowTarget{Kind: Unresolved, Target: target})
	return idx
}

// AddFailed installs a decode-failure vertex for addr.
func (f *Function) AddFailed(addr uint64, reason string) int {
	idx := len(f.vertices)
	f.vertices = append(f.vertices, &ControlFlowTarget{Kind: Failed, Address: addr, Reason: reason})
	return idx
}

// ReplaceResolved overwrites vertex idx's block in place (used when
// splitting shortens the lower half of a block) without changing its
// identity or in-edges.
func (f *Function) ReplaceResolved(idx int, b *disasm.BasicBlock) {
	old := f.vertices[idx].Block.EntryAddress()
	f.vertices[idx] = &ControlFlowTarget{Kind: Resolved, Block: b}
	delete(f.blockStart, old)
	f.blockStart[b.EntryAddress()] = idx
}

// SplitAt splits the Resolved block at vertex idx into [block.Start,
// at) — kept as idx, so every existing in-edge into idx stays valid —
// and [at, block.End), installed as a fresh vertex that inherits idx's
// former out-edges and gains a single unconditional fallthrough edge
// from idx. Returns the new vertex's index.
func (f *Function) SplitAt(idx int, at uint64) int {
	block := f.vertices[idx].Block
	var lower, upper []*disasm.Mnemonic
	for _, m := range block.Mnemonics {
		if m.Area.Start < at {
			lower = append(lower, m)
		} else {
			upper = append(upper, m)
		}
	}
	if len(lower) == 0 || len(upper) == 0 {
		panic("program: split address does not fall strictly inside the block")
	}
	newIdx := f.AddResolved(disasm.NewBasicBlock(upper))
	f.MoveEdges(idx, newIdx)
	f.ReplaceResolved(idx, disasm.NewBasicBlock(lower))
	f.AddEdge(idx, newIdx, il.Always[value.Rvalue]())
	return newIdx
}

// VertexAt returns the vertex index of the Resolved block that starts
// exactly at addr, if any.
func (f *Function) VertexAt(addr uint64) (int, bool) {
	idx, ok := f.blockStart[addr]
	return idx, ok
}

// ContainingBlock returns the vertex index of the Resolved block whose
// range contains addr, if any — used by the Driver to detect that a
// newly discovered address lands inside an already-decoded block.
func (f *Function) ContainingBlock(addr uint64) (int, bool) {
	for idx, v := range f.vertices {
		if v.Kind != Resolved {
			continue
		}
		area := v.Block.Area()
		if addr >= area.Start && addr < area.End {
			return idx, true
		}
	}
	return 0, false
}

// Vertex returns the vertex at idx.
func (f *Function) Vertex(idx int) *ControlFlowTarget { return f.vertices[idx] }

// NumVertices reports how many vertices the CFG currently has.
func (f *Function) NumVertices() int { return len(f.vertices) }

// AddEdge installs a guarded edge from -> to. Out-edges from a single
// vertex must partition control flow: the Driver is responsible for
// only installing guards that are mutually exclusive and collectively
// exhaustive; this type does not itself verify that.
func (f *Function) AddEdge(from, to int, guard il.Guard[value.Rvalue]) {
	f.edgesFrom[from] = append(f.edgesFrom[from], edge{to: to, guard: guard})
}

// MoveEdges reassigns every out-edge of from to originate at to instead
// (used when splitting a block: the former block's successors become
// the new upper half's successors).
func (f *Function) MoveEdges(from, to int) {
	f.edgesFrom[to] = append(f.edgesFrom[to], f.edgesFrom[from]...)
	delete(f.edgesFrom, from)
}

// Successors returns the vertex indices and guards of idx's out-edges.
func (f *Function) Successors(idx int) []struct {
	To    int
	Guard il.Guard[value.Rvalue]
} {
	out := make([]struct {
		To    int
		Guard il.Guard[value.Rvalue]
	}, 0, len(f.edgesFrom[idx]))
	for _, e := range f.edgesFrom[idx] {
		out = append(out, struct {
			To    int
			Guard il.Guard[value.Rvalue]
		}{e.to, e.guard})
	}
	return out
}

// Predecessors returns every vertex index with an edge into idx, in
// ascending order.
func (f *Function) Predecessors(idx int) []int {
	var out []int
	for from, edges := range f.edgesFrom {
		for _, e := range edges {
			if e.to == idx {
				out = append(out, from)
				break
			}
		}
	}
	sort.Ints(out)
	return out
}

// SetEntry designates idx as the function's unique entry vertex.
func (f *Function) SetEntry(idx int) { f.entry = &idx }

// Entry returns the entry vertex index, if one has been set.
func (f *Function) Entry() (int, bool) {
	if f.entry == nil {
		return 0, false
	}
	return *f.entry, true
}

// ReversePostorder returns every reachable vertex index from the entry
// in reverse postorder — supplemented from original_source's
// Function::postorder (abstractinterp.rs), needed by internal/ssa and
// internal/absint's fixpoint drivers.
func (f *Function) ReversePostorder() []int {
	entry, ok := f.Entry()
	if !ok {
		return nil
	}
	visited := make([]bool, len(f.vertices))
	var post []int
	var visit func(int)
	visit = func(v int) {
		if visited[v] {
			return
		}
		visited[v] = true
		for _, s := range f.Successors(v) {
			visit(s.To)
		}
		post = append(post, v)
	}
	visit(entry)
	rpo := make([]int, len(post))
	for i, v := range post {
		rpo[len(post)-1-i] = v
	}
	return rpo
}
