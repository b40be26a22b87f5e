package automaton

import (
	"panopticon/internal/disasm"
	"panopticon/internal/il"
	"panopticon/internal/value"
)

// Jump is one control-flow edge recorded by a matching Action, mirroring
// the original disassembler's State::jump: a destination expression
// (here already resolved to a concrete address — guard-conditioned
// branches are expanded by the caller into one Jump per target) plus
// the guard under which it is taken.
type Jump struct {
	From   uint64
	To     uint64
	Guard  il.Guard[value.Rvalue]
	IsCall bool
}

// State is the per-path state threaded through automaton matching: the
// tokens consumed so far, the named bit-capture groups accumulated from
// them, and whatever mnemonics/jumps the path's Actions have committed.
// It mirrors original_source's State<A>, generalized over the
// architecture-specific Configuration a real Architecture[T]
// implementation plugs in (flag/mode state carried between
// instructions, e.g. Thumb/ARM mode).
type State[T Token] struct {
	Address       uint64
	Tokens        []T
	Groups        map[string]uint64
	Mnemonics     []*disasm.Mnemonic
	Jumps         []Jump
	Configuration any

	mnemonicOrigin uint64
	jumpOrigin     uint64
}

func newState[T Token](addr uint64, cfg any) *State[T] {
	return &State[T]{
		Address:        addr,
		Groups:         map[string]uint64{},
		Configuration:  cfg,
		mnemonicOrigin: addr,
		jumpOrigin:     addr,
	}
}

// clone deep-copies the mutable parts of the state so two edges leaving
// the same frontier vertex never alias each other's captures or
// committed mnemonics.
func (s *State[T]) clone() *State[T] {
	cp := &State[T]{
		Address:        s.Address,
		Configuration:  s.Configuration,
		mnemonicOrigin: s.mnemonicOrigin,
		jumpOrigin:     s.jumpOrigin,
	}
	cp.Tokens = append(cp.Tokens, s.Tokens...)
	cp.Groups = make(map[string]uint64, len(s.Groups))
	for k, v := range s.Groups {
		cp.Groups[k] = v
	}
	cp.Mnemonics = append(cp.Mnemonics, s.Mnemonics...)
	cp.Jumps = append(cp.Jumps, s.Jumps...)
	return cp
}

// GetGroup returns a capture's accumulated value, or 0 if it was never
// captured on this path (an all-zero capture is indistinguishable from
// an absent one and is dropped the same way).
func (s *State[T]) GetGroup(name string) uint64 { return s.Groups[name] }

// HasGroup reports whether name was ever captured, regardless of value.
func (s *State[T]) HasGroup(name string) bool {
	_, ok := s.Groups[name]
	return ok
}

// Mnemonic appends a decoded mnemonic spanning [origin, end) where
// origin is the address right after the previous Mnemonic call (or
// the match's start address for the first), committing one decoded
// instruction's worth of consumed tokens.
func (s *State[T]) Mnemonic(length uint64, opcode, format string, m *disasm.Mnemonic) {
	m.Area.Start = s.mnemonicOrigin
	m.Area.End = s.mnemonicOrigin + length
	m.Opcode = opcode
	m.Format = format
	s.Mnemonics = append(s.Mnemonics, m)
	s.jumpOrigin = m.Area.Start
	s.mnemonicOrigin = m.Area.End
}

// Jump records a control-flow edge from the start of the most recent
// Mnemonic (the match's start address before the first) to to, guarded
// by guard (il.Always[value.Rvalue]() for an unconditional edge).
func (s *State[T]) Jump(to uint64, guard il.Guard[value.Rvalue], isCall bool) {
	s.Jumps = append(s.Jumps, Jump{From: s.jumpOrigin, To: to, Guard: guard, IsCall: isCall})
}

// NumTokens reports how many tokens this path has consumed so far.
func (s *State[T]) NumTokens() int { return len(s.Tokens) }
