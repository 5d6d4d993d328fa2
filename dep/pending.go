package dep

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// GlobalPending ORs a list of per-FU pending vectors into a single
// per-resource "wanted by anyone" vector.
//
// The same type serves read pending and write pending, integer and floating
// point register files alike. Never mix read and write vectors in a single
// instance.
type GlobalPending struct {
	width uint
	vecs  []*bitset.BitSet
	out   *bitset.BitSet
}

// NewGlobalPending creates an OR-reduction over vecs. All vectors must have the
// given width.
func NewGlobalPending(width int, vecs []*bitset.BitSet) *GlobalPending {
	for i, v := range vecs {
		if v.Len() != uint(width) {
			panic(fmt.Sprintf(
				"FU vector %d has width %d, want %d", i, v.Len(), width))
		}
	}

	return &GlobalPending{
		width: uint(width),
		vecs:  vecs,
		out:   bitset.New(uint(width)),
	}
}

// Width returns the width of the reduced vector.
func (g *GlobalPending) Width() int {
	return int(g.width)
}

// Reduce returns the OR of every input vector. The result is reused by the
// next call to Reduce or ReduceExcept.
func (g *GlobalPending) Reduce() *bitset.BitSet {
	return g.ReduceExcept(-1)
}

// ReduceExcept returns the OR of every input vector except vecs[skip].
func (g *GlobalPending) ReduceExcept(skip int) *bitset.BitSet {
	g.out.ClearAll()

	for i, v := range g.vecs {
		if i == skip {
			continue
		}

		g.out.InPlaceUnion(v)
	}

	return g.out
}
