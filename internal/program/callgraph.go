package program

import (
	"sync"

	"github.com/google/uuid"
)

// CallTargetKind distinguishes the three CallTarget variants.
type CallTargetKind int

const (
	Concrete CallTargetKind = iota
	Todo
	Symbolic
)

// CallTarget is one vertex of the Program's call graph. Its UUID stays
// fixed across its Todo -> Concrete/Symbolic transition.
type CallTarget struct {
	Kind     CallTargetKind
	UUID     uuid.UUID
	Address  uint64 // meaningful for Todo
	Name     string // optional declared name
	Function *Function // set once Kind == Concrete
}

// Program owns the call graph shared across all in-flight function
// disassemblies. Many readers may traverse it concurrently while
// enumerating work; only one writer inserts new call targets or
// resolves a Todo at a time — enforced with a plain sync.RWMutex, the
// same reader/writer discipline kanso's analyzer uses around its
// shared symbol tables.
type Program struct {
	mu         sync.RWMutex
	targets    map[uuid.UUID]*CallTarget
	byAddress  map[uint64]uuid.UUID
	callEdges  map[uuid.UUID][]uuid.UUID
}

// NewProgram creates an empty call graph.
func NewProgram() *Program {
	return &Program{
		targets:   map[uuid.UUID]*CallTarget{},
		byAddress: map[uint64]uuid.UUID{},
		callEdges: map[uuid.UUID][]uuid.UUID{},
	}
}

// EnsureTodo returns the uuid of the Todo/Concrete/Symbolic call target
// at addr, creating a fresh Todo if none exists yet — the single entry
// point a driver uses both to seed its initial entry point and to
// record a call-detected target.
func (p *Program) EnsureTodo(addr uint64, name string) uuid.UUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.byAddress[addr]; ok {
		return id
	}
	id := uuid.New()
	p.targets[id] = &CallTarget{Kind: Todo, UUID: id, Address: addr, Name: name}
	p.byAddress[addr] = id
	return id
}

// AddCallEdge records that caller calls callee.
func (p *Program) AddCallEdge(caller, callee uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callEdges[caller] = append(p.callEdges[caller], callee)
}

// Resolve transitions a Todo call target to Concrete, attaching fn.
func (p *Program) Resolve(id uuid.UUID, fn *Function) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.targets[id]
	if !ok {
		return
	}
	t.Kind = Concrete
	t.Function = fn
}

// MarkSymbolic transitions a Todo call target to Symbolic (disassembly
// at its address failed outright, or it was never more than a name).
func (p *Program) MarkSymbolic(id uuid.UUID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.targets[id]
	if !ok {
		return
	}
	t.Kind = Symbolic
	if name != "" {
		t.Name = name
	}
}

// Get returns the call target for id.
func (p *Program) Get(id uuid.UUID) (*CallTarget, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.targets[id]
	return t, ok
}

// Targets returns a snapshot of every call target currently known.
func (p *Program) Targets() []*CallTarget {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*CallTarget, 0, len(p.targets))
	for _, t := range p.targets {
		out = append(out, t)
	}
	return out
}

// Callees returns the call targets caller is known to call.
func (p *Program) Callees(caller uuid.UUID) []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]uuid.UUID, len(p.callEdges[caller]))
	copy(out, p.callEdges[caller])
	return out
}
