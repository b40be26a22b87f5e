// Package region implements a named, fixed-size address space
// populated by stacked layers, each overriding lower layers within its
// own interval, plus a lazy, restartable, cuttable LayerIter over it.
package region

import "sort"

// Interval is a half-open byte range [Start, End) within a Region.
type Interval struct {
	Start, End uint64
}

func (iv Interval) contains(addr uint64) bool { return addr >= iv.Start && addr < iv.End }
func (iv Interval) Len() uint64               { return iv.End - iv.Start }

// layer is one stacked sub-range of concrete bytes. Layers are stored
// lowest-precedence first; a later layer in Region.layers shadows an
// earlier one wherever their intervals overlap.
type layer struct {
	Interval
	Bytes []byte
}

// Region is a named address space of a declared size, created at load
// time and immutable for the disassembly run.
type Region struct {
	Name   string
	Size   uint64
	layers []layer
}

// New creates an empty region of the given size; every address starts
// out a hole until layers are added.
func New(name string, size uint64) *Region {
	return &Region{Name: name, Size: size}
}

// AddLayer stacks size(bytes) concrete bytes starting at start. Layers
// added later take precedence over earlier ones within the overlap.
func (r *Region) AddLayer(start uint64, bytes []byte) {
	end := start + uint64(len(bytes))
	if end > r.Size {
		panic("region: layer exceeds region size")
	}
	r.layers = append(r.layers, layer{Interval: Interval{start, end}, Bytes: bytes})
}

// at resolves a single address against the layer stack, most recently
// added layer wins. Returns ok=false for a hole.
func (r *Region) at(addr uint64) (b byte, ok bool) {
	if addr >= r.Size {
		return 0, false
	}
	for i := len(r.layers) - 1; i >= 0; i-- {
		l := r.layers[i]
		if l.contains(addr) {
			return l.Bytes[addr-l.Start], true
		}
	}
	return 0, false
}

// LayerIter is a lazy, restartable, cuttable sequence of Option<byte>
// (represented as (byte, bool)) over a Region. It is the scoped
// resource acquired per disassembly attempt.
type LayerIter struct {
	r      *Region
	cursor uint64
	limit  uint64 // exclusive upper bound; defaults to r.Size
}

// Iterator returns a LayerIter over the whole region, starting at 0.
func (r *Region) Iterator() *LayerIter {
	return &LayerIter{r: r, cursor: 0, limit: r.Size}
}

// Seek repositions the iterator to read from addr next.
func (it *LayerIter) Seek(addr uint64) *LayerIter {
	it.cursor = addr
	return it
}

// Cut restricts the iterator to [iv.Start, iv.End) ∩ current bounds and
// repositions the cursor to iv.Start, as used by the driver (C8) to
// hand the disassembler a view clamped to [addr, region_end).
func (it *LayerIter) Cut(iv Interval) *LayerIter {
	end := iv.End
	if end > it.limit {
		end = it.limit
	}
	return &LayerIter{r: it.r, cursor: iv.Start, limit: end}
}

// Clone returns an independent copy of it at its current position —
// used by the automaton to try several candidate matches from the same
// starting point without disturbing the caller's cursor.
func (it *LayerIter) Clone() *LayerIter {
	cp := *it
	return &cp
}

// Next returns the byte at the current address and ok=true, then
// advances the cursor by one; it returns ok=false past the cut bound or
// region size, or over a hole.
func (it *LayerIter) Next() (b byte, ok bool) {
	if it.cursor >= it.limit {
		return 0, false
	}
	b, ok = it.r.at(it.cursor)
	it.cursor++
	return b, ok
}

// Address returns the address the next call to Next will read.
func (it *LayerIter) Address() uint64 { return it.cursor }

// RegionName returns the name of the region backing this iterator, used for
// attributing Mnemonics and Functions to the region they were decoded
// from.
func (it *LayerIter) RegionName() string { return it.r.Name }

// sortLayers reorders the layer stack in place by start address. at()
// treats later layers as higher precedence, so calling it changes which
// layer shadows which wherever layers overlap; nothing in this package
// calls it.
func (r *Region) sortLayers() {
	sort.Slice(r.layers, func(i, j int) bool { return r.layers[i].Start < r.layers[j].Start })
}
