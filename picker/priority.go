// Package picker implements the fixed-priority arbiters that hand out the
// per-cycle read and write grants.
//
// Priority is strict: the lowest index always wins and there is no fairness
// or aging. A function unit that keeps requesting while a lower-indexed one
// also requests can starve.
package picker

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Priority is a one-hot priority picker of a fixed width.
type Priority struct {
	width uint
	o     *bitset.BitSet
}

// NewPriority creates a priority picker.
func NewPriority(width int) *Priority {
	if width < 1 {
		panic(fmt.Sprintf("invalid picker width %d", width))
	}

	return &Priority{
		width: uint(width),
		o:     bitset.New(uint(width)),
	}
}

// Width returns the width of the picker.
func (p *Priority) Width() int {
	return int(p.width)
}

// Pick returns a vector with only the lowest set bit of i, or zero when i is
// zero. Bits of i beyond the picker width are ignored. The result is reused by
// the next call.
func (p *Priority) Pick(i *bitset.BitSet) *bitset.BitSet {
	p.o.ClearAll()

	// o[k] = i[k] & !OR(i[0..k-1])
	if k, ok := i.NextSet(0); ok && k < p.width {
		p.o.Set(k)
	}

	return p.o
}

// PickIndex returns the index of the lowest set bit of i, or -1.
func (p *Priority) PickIndex(i *bitset.BitSet) int {
	if k, ok := i.NextSet(0); ok && k < p.width {
		return int(k)
	}

	return -1
}
