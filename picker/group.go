package picker

import "github.com/bits-and-blooms/bitset"

// Group combines a read picker and a write picker. Each selects among the FUs
// that are both hazard-free and ready.
type Group struct {
	width uint
	rd    *Priority
	wr    *Priority
	rdIn  *bitset.BitSet
	wrIn  *bitset.BitSet
}

// NewGroup creates a group picker over width FUs.
func NewGroup(width int) *Group {
	return &Group{
		width: uint(width),
		rd:    NewPriority(width),
		wr:    NewPriority(width),
		rdIn:  bitset.New(uint(width)),
		wrIn:  bitset.New(uint(width)),
	}
}

// Width returns the number of FUs.
func (g *Group) Width() int {
	return int(g.width)
}

// Pick grants at most one read, among readable FUs that asserted rdRel, and at
// most one write, among writable FUs that asserted reqRel. Both results are
// reused by the next call.
func (g *Group) Pick(
	readable, writable, rdRel, reqRel *bitset.BitSet,
) (goRd, goWr *bitset.BitSet) {
	readable.Copy(g.rdIn)
	g.rdIn.InPlaceIntersection(rdRel)

	writable.Copy(g.wrIn)
	g.wrIn.InPlaceIntersection(reqRel)

	return g.rd.Pick(g.rdIn), g.wr.Pick(g.wrIn)
}
