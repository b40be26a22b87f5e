package ssa

import (
	"fmt"
	"sort"

	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/program"
	"panopticon/internal/region"
	"panopticon/internal/value"
)

// EmptyFunction is returned by Transform when fn has no entry vertex:
// SSA construction on an entry-less function is rejected outright.
type EmptyFunction struct {
	FunctionName string
}

func (e EmptyFunction) Error() string {
	return fmt.Sprintf("ssa: function %q has no entry vertex", e.FunctionName)
}

// phiVar is one φ-node pending placement: a variable live across
// blocks, needing one argument per CFG predecessor of vertex.
type phiVar struct {
	name    string
	width   uint
	vertex  int
	args    []value.Rvalue
	phiVarV value.Variable // assigned once renaming reaches this vertex
}

// Transform runs Cytron-style SSA construction over fn in place: every
// Variable operand and assignee in fn's resolved blocks ends up
// carrying an SSA subscript, and φ-instructions are inserted at the
// iterated dominance frontier of every variable's definitions (no
// liveness check, so a φ may be placed for a variable that is not read
// afterwards).
func Transform(fn *program.Function) error {
	entry, ok := fn.Entry()
	if !ok {
		return EmptyFunction{FunctionName: fn.Name}
	}

	dom := computeDominance(fn)

	defs := collectDefs(fn)
	phis := placePhis(fn, dom, defs)

	counters := map[string]int{}
	stacks := map[string][]value.Variable{}
	initial := map[string]value.Variable{}

	lookup := func(v value.Variable) value.Variable {
		if s := stacks[v.Name]; len(s) > 0 {
			return s[len(s)-1]
		}
		if iv, ok := initial[v.Name]; ok {
			return iv
		}
		iv := v.WithSubscript(counters[v.Name])
		counters[v.Name]++
		initial[v.Name] = iv
		return iv
	}

	var walk func(v int)
	walk = func(v int) {
		pushedHere := map[string]int{}
		push := func(vr value.Variable) value.Variable {
			sub := counters[vr.Name]
			counters[vr.Name]++
			nv := vr.WithSubscript(sub)
			stacks[vr.Name] = append(stacks[vr.Name], nv)
			pushedHere[vr.Name]++
			return nv
		}

		for _, p := range phis[v] {
			p.phiVarV = push(value.NewVariable(p.name, p.width))
		}

		ct := fn.Vertex(v)
		if ct.Kind == program.Resolved {
			for _, m := range ct.Block.Mnemonics {
				for i := range m.Statements {
					renameOperands(&m.Statements[i], lookup)
					renameAssignee(&m.Statements[i], push)
				}
			}
		}

		for _, succ := range fn.Successors(v) {
			for _, p := range phis[succ.To] {
				idx := predIndex(fn, succ.To, v)
				if idx >= 0 {
					p.args[idx] = lookup(value.NewVariable(p.name, p.width))
				}
			}
		}

		for _, c := range dom.children[v] {
			walk(c)
		}

		for name, n := range pushedHere {
			stacks[name] = stacks[name][:len(stacks[name])-n]
		}
	}
	walk(entry)

	for v, ps := range phis {
		ct := fn.Vertex(v)
		if ct.Kind != program.Resolved || len(ps) == 0 {
			continue
		}
		var stmts []il.Instr
		for _, p := range ps {
			stmts = append(stmts, il.Instr{
				Op:       il.Phi[value.Rvalue]{Args: rvalues(p.args)},
				Assignee: p.phiVarV,
			})
		}
		start := ct.Block.EntryAddress()
		phiMnem := &disasm.Mnemonic{
			Area:       region.Interval{Start: start, End: start},
			Opcode:     "ssa-phi",
			Statements: stmts,
		}
		ct.Block.Mnemonics = append([]*disasm.Mnemonic{phiMnem}, ct.Block.Mnemonics...)
	}

	for v := range dom.idom {
		ct := fn.Vertex(v)
		if ct.Kind != program.Resolved {
			continue
		}
		for _, m := range ct.Block.Mnemonics {
			for _, s := range m.Statements {
				s.CheckSanity()
			}
		}
	}

	return nil
}

func rvalues(vs []value.Rvalue) []value.Rvalue {
	out := make([]value.Rvalue, len(vs))
	copy(out, vs)
	return out
}

func predIndex(fn *program.Function, vertex, pred int) int {
	for i, p := range fn.Predecessors(vertex) {
		if p == pred {
			return i
		}
	}
	return -1
}

func renameOperands(instr *il.Instr, lookup func(value.Variable) value.Variable) {
	instr.Op = il.MapOperands(instr.Op, func(rv value.Rvalue) value.Rvalue {
		if v, ok := rv.(value.Variable); ok && !v.HasSubscript() {
			return lookup(v)
		}
		return rv
	})
}

func renameAssignee(instr *il.Instr, push func(value.Variable) value.Variable) {
	if v, ok := instr.Assignee.(value.Variable); ok && !v.HasSubscript() {
		instr.Assignee = push(v)
	}
}

// collectDefs finds, for every variable name, the set of vertices whose
// resolved block assigns to it (pre-SSA, so never yet subscripted).
func collectDefs(fn *program.Function) map[string]map[int]bool {
	defs := map[string]map[int]bool{}
	for v := 0; v < fn.NumVertices(); v++ {
		ct := fn.Vertex(v)
		if ct.Kind != program.Resolved {
			continue
		}
		for _, m := range ct.Block.Mnemonics {
			for _, s := range m.Statements {
				vr, ok := s.Assignee.(value.Variable)
				if !ok || vr.HasSubscript() {
					continue
				}
				if defs[vr.Name] == nil {
					defs[vr.Name] = map[int]bool{}
				}
				defs[vr.Name][v] = true
			}
		}
	}
	return defs
}

// placePhis runs the standard iterated-dominance-frontier algorithm:
// every variable's defining set is pushed through DF until no new
// join-point vertex gains a φ.
func placePhis(fn *program.Function, dom *dominance, defs map[string]map[int]bool) map[int][]*phiVar {
	phis := map[int][]*phiVar{}
	widths := map[string]uint{}
	for v := 0; v < fn.NumVertices(); v++ {
		ct := fn.Vertex(v)
		if ct.Kind != program.Resolved {
			continue
		}
		for _, m := range ct.Block.Mnemonics {
			for _, s := range m.Statements {
				if vr, ok := s.Assignee.(value.Variable); ok {
					widths[vr.Name] = vr.Width
				}
			}
		}
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		defSet := defs[name]
		hasPhi := map[int]bool{}
		worklist := make([]int, 0, len(defSet))
		for v := range defSet {
			worklist = append(worklist, v)
		}
		sort.Ints(worklist)
		for len(worklist) > 0 {
			n := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, d := range dom.frontierOf(n) {
				if hasPhi[d] {
					continue
				}
				hasPhi[d] = true
				pv := &phiVar{
					name:   name,
					width:  widths[name],
					vertex: d,
					args:   make([]value.Rvalue, len(fn.Predecessors(d))),
				}
				for i := range pv.args {
					pv.args[i] = value.Undefined{}
				}
				phis[d] = append(phis[d], pv)
				worklist = append(worklist, d)
			}
		}
	}
	return phis
}
