package program

import (
	"context"
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"panopticon/internal/automaton"
	"panopticon/internal/diag"
	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/perrors"
	"panopticon/internal/region"
	"panopticon/internal/value"
)

// Architecture is the plug-in surface a front end implements to teach
// the driver a machine's instruction set: an Automaton compiled once
// (Root) plus whatever per-architecture configuration value it wants
// threaded through State.Configuration. internal/toyarch is the
// reference implementation.
type Architecture[T automaton.Token] interface {
	Configuration() any
	Root() *automaton.Automaton[T]
}

// Driver implements C8's recursive-descent worklist algorithm: given an
// Architecture and the Region it decodes from, it builds one Function
// at a time, discovering basic blocks and call targets as it goes.
type Driver[T automaton.Token] struct {
	Arch    Architecture[T]
	Region  *region.Region
	Program *Program
}

// NewDriver builds a Driver over arch and region, sharing prog's call
// graph across every function it disassembles.
func NewDriver[T automaton.Token](arch Architecture[T], reg *region.Region, prog *Program) *Driver[T] {
	return &Driver[T]{Arch: arch, Region: reg, Program: prog}
}

// RunMany disassembles several entry points in parallel, one goroutine
// per function, since Program's call graph is already protected by its
// own RWMutex and two functions never share a Function struct. The
// first function to return an error cancels ctx for every other
// in-flight goroutine.
func (d *Driver[T]) RunMany(ctx context.Context, entries map[string]uint64) ([]*Function, error) {
	g, gctx := errgroup.WithContext(ctx)
	results := make([]*Function, len(entries))
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	for i, name := range names {
		i, name, addr := i, name, entries[name]
		g.Go(func() error {
			fn, err := d.RunEntry(gctx, addr, name)
			if err != nil {
				return err
			}
			results[i] = fn
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// link records one prospective edge into a not-yet-resolved address.
type link struct {
	from  int
	guard il.Guard[value.Rvalue]
}

// RunEntry disassembles the function at addr (declaring it, transitioning
// its call target Todo -> Concrete/Symbolic) and returns it. name is
// advisory, used for the root entry point; callees discovered mid-run
// are named by EnsureTodo.
func (d *Driver[T]) RunEntry(ctx context.Context, addr uint64, name string) (*Function, error) {
	id := d.Program.EnsureTodo(addr, name)
	return d.Run(ctx, id)
}

// Run disassembles the function backing Todo call target id.
func (d *Driver[T]) Run(ctx context.Context, id uuid.UUID) (*Function, error) {
	target, ok := d.Program.Get(id)
	if !ok {
		perrors.Programming("program.Driver.Run", "unknown call target %s", id)
	}
	if target.Kind != Todo {
		if target.Kind == Concrete {
			return target.Function, nil
		}
		return nil, fmt.Errorf("program: call target %s is symbolic, not disassemblable", id)
	}

	fn, err := d.disassembleFunction(ctx, id, target.Address, target.Name)
	if err != nil {
		d.Program.MarkSymbolic(id, target.Name)
		diag.WithFields(map[string]any{"address": fmt.Sprintf("%#x", target.Address)}).Warn("function disassembly failed: ", err)
		return nil, err
	}
	d.Program.Resolve(id, fn)
	return fn, nil
}

func (d *Driver[T]) disassembleFunction(ctx context.Context, id uuid.UUID, entryAddr uint64, name string) (*Function, error) {
	fn := New(name, d.Region.Name)
	fn.UUID = id

	queued := bitset.New(uint(d.Region.Size))
	pending := map[uint64][]link{}
	var worklist []uint64
	entrySet := false

	push := func(addr uint64, from int, guard il.Guard[value.Rvalue]) {
		if idx, ok := fn.VertexAt(addr); ok {
			if from >= 0 {
				fn.AddEdge(from, idx, guard)
			}
			return
		}
		if idx, ok := fn.ContainingBlock(addr); ok {
			newIdx := fn.SplitAt(idx, addr)
			if from >= 0 {
				fn.AddEdge(from, newIdx, guard)
			}
			return
		}
		if from >= 0 {
			pending[addr] = append(pending[addr], link{from: from, guard: guard})
		}
		if !queued.Test(uint(addr)) {
			queued.Set(uint(addr))
			worklist = append(worklist, addr)
		}
	}

	push(entryAddr, -1, il.Always[value.Rvalue]())

	for len(worklist) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		addr := worklist[0]
		worklist = worklist[1:]

		known, resolved := fn.VertexAt(addr)
		if !resolved {
			if cidx, ok := fn.ContainingBlock(addr); ok {
				known, resolved = fn.SplitAt(cidx, addr), true
			}
		}
		if resolved {
			// addr became a block start (by a split) while it was queued
			for _, l := range pending[addr] {
				fn.AddEdge(l.from, known, l.guard)
			}
			delete(pending, addr)
			continue
		}

		var idx int
		block, exits, ok := d.growBlock(fn, addr)
		if !ok {
			idx = fn.AddFailed(addr, "no alternative matched at this address")
			diag.WithFields(map[string]any{"address": fmt.Sprintf("%#x", addr), "function": fn.Name}).
				Debug("disassembly failure recorded as Failed vertex")
		} else {
			idx = fn.AddResolved(block)
		}

		for _, l := range pending[addr] {
			fn.AddEdge(l.from, idx, l.guard)
		}
		delete(pending, addr)

		if !entrySet && addr == entryAddr {
			fn.SetEntry(idx)
			entrySet = true
		}

		for _, ex := range exits {
			push(ex.to, idx, ex.guard)
		}
	}

	if !entrySet {
		return nil, fmt.Errorf("program: function at %#x has no entry vertex (EmptyFunction)", entryAddr)
	}
	return fn, nil
}

// flowExit is one non-call outgoing edge discovered while growing a
// block, still needing its destination vertex resolved.
type flowExit struct {
	to    uint64
	guard il.Guard[value.Rvalue]
}

// growBlock decodes mnemonics starting at start until a block-ending
// condition fires: a non-fallthrough jump, or a successor address
// already seen as another block's vertex. Call
// targets are routed to the Program's call graph immediately and never
// end the block by themselves.
func (d *Driver[T]) growBlock(fn *Function, start uint64) (block *disasm.BasicBlock, exits []flowExit, ok bool) {
	var mnemonics []*disasm.Mnemonic
	cursor := start

	for {
		iter := d.Region.Iterator().Cut(region.Interval{Start: cursor, End: d.Region.Size})
		st, matched := d.Arch.Root().Match(iter, cursor, d.Arch.Configuration())
		if !matched {
			break
		}
		mnemonics = append(mnemonics, st.Mnemonics...)
		next := mnemonics[len(mnemonics)-1].Area.End

		var flowJumps []automaton.Jump
		for _, j := range st.Jumps {
			if j.IsCall {
				callee := d.Program.EnsureTodo(j.To, "")
				d.Program.AddCallEdge(fn.UUID, callee)
				continue
			}
			flowJumps = append(flowJumps, j)
		}
		for _, m := range st.Mnemonics {
			for _, s := range m.Statements {
				if c, isCall := s.Op.(il.IntCall[value.Rvalue]); isCall {
					if k, isConst := c.Target.(value.Constant); isConst {
						d.Program.AddCallEdge(fn.UUID, d.Program.EnsureTodo(k.Value, ""))
					}
				}
			}
		}

		if len(flowJumps) > 0 {
			exits = make([]flowExit, len(flowJumps))
			for i, j := range flowJumps {
				exits[i] = flowExit{to: j.To, guard: j.Guard}
			}
			return disasm.NewBasicBlock(mnemonics), exits, true
		}
		if _, already := fn.VertexAt(next); already {
			return disasm.NewBasicBlock(mnemonics), []flowExit{{to: next, guard: il.Always[value.Rvalue]()}}, true
		}
		if _, already := fn.ContainingBlock(next); already {
			return disasm.NewBasicBlock(mnemonics), []flowExit{{to: next, guard: il.Always[value.Rvalue]()}}, true
		}
		cursor = next
	}

	if len(mnemonics) == 0 {
		return nil, nil, false
	}
	return disasm.NewBasicBlock(mnemonics), nil, true
}
