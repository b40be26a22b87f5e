// Package ssa implements classic Cytron-style SSA construction over a
// program.Function's control-flow graph — dominance, dominance
// frontiers, φ-placement at join points, and dominator-tree renaming.
// The iterative dominance fixpoint mirrors the pass-until-no-change
// shape of kanso/internal/ir/optimizations.go's OptimizationPipeline,
// generalized from "no further rewrite" to "no further idom change".
package ssa

import (
	"sort"

	"panopticon/internal/program"
)

// dominance holds one function's dominator tree and dominance
// frontiers, computed once and consulted by both φ-placement and
// renaming.
type dominance struct {
	rpo      []int
	rpoIndex map[int]int
	idom     map[int]int
	children map[int][]int
	frontier map[int]map[int]bool
}

func computeDominance(fn *program.Function) *dominance {
	rpo := fn.ReversePostorder()
	d := &dominance{
		rpo:      rpo,
		rpoIndex: map[int]int{},
		idom:     map[int]int{},
		children: map[int][]int{},
		frontier: map[int]map[int]bool{},
	}
	for i, v := range rpo {
		d.rpoIndex[v] = i
	}
	if len(rpo) == 0 {
		return d
	}

	entry := rpo[0]
	d.idom[entry] = entry

	for changed := true; changed; {
		changed = false
		for _, v := range rpo[1:] {
			newIdom := -1
			for _, p := range fn.Predecessors(v) {
				if _, ok := d.idom[p]; !ok {
					continue
				}
				if newIdom == -1 {
					newIdom = p
					continue
				}
				newIdom = d.intersect(newIdom, p)
			}
			if newIdom == -1 {
				continue
			}
			if cur, ok := d.idom[v]; !ok || cur != newIdom {
				d.idom[v] = newIdom
				changed = true
			}
		}
	}

	idomKeys := make([]int, 0, len(d.idom))
	for v := range d.idom {
		idomKeys = append(idomKeys, v)
	}
	sort.Ints(idomKeys)
	for _, v := range idomKeys {
		if v == entry {
			continue
		}
		d.children[d.idom[v]] = append(d.children[d.idom[v]], v)
	}

	for _, v := range rpo {
		preds := fn.Predecessors(v)
		if len(preds) < 2 {
			continue
		}
		for _, p := range preds {
			if _, ok := d.idom[p]; !ok {
				continue
			}
			runner := p
			for runner != d.idom[v] {
				if d.frontier[runner] == nil {
					d.frontier[runner] = map[int]bool{}
				}
				d.frontier[runner][v] = true
				runner = d.idom[runner]
			}
		}
	}

	return d
}

func (d *dominance) intersect(a, b int) int {
	for a != b {
		for d.rpoIndex[a] > d.rpoIndex[b] {
			a = d.idom[a]
		}
		for d.rpoIndex[b] > d.rpoIndex[a] {
			b = d.idom[b]
		}
	}
	return a
}

func (d *dominance) frontierOf(v int) []int {
	out := make([]int, 0, len(d.frontier[v]))
	for f := range d.frontier[v] {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}
