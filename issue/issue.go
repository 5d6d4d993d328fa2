// Package issue decides whether the next instruction may enter the
// scoreboard this cycle.
package issue

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Unit is a single-instruction issue unit. It stalls on a busy FU and on a
// write-after-write conflict with an in-flight write.
type Unit struct {
	nRegs, nFUs int

	fnIssue  *bitset.BitSet
	wawStall bool
	fuStall  bool
	issue    bool
}

// New creates an issue unit for nRegs registers and nFUs function units.
func New(nRegs, nFUs int) *Unit {
	if nRegs < 1 || nFUs < 1 {
		panic(fmt.Sprintf(
			"invalid issue unit size %d registers, %d FUs", nRegs, nFUs))
	}

	return &Unit{
		nRegs:   nRegs,
		nFUs:    nFUs,
		fnIssue: bitset.New(uint(nFUs)),
	}
}

// Evaluate computes the issue decision. insn marks the FUs the instruction
// wants; dest is the destination register (ignored for stores, and -1 for
// none); gWrPend is the global write-pending vector and busy the busy FUs.
func (u *Unit) Evaluate(
	insn *bitset.BitSet,
	dest int,
	store bool,
	gWrPend, busy *bitset.BitSet,
) bool {
	if dest >= u.nRegs {
		panic(fmt.Sprintf("register %d out of range [0, %d)", dest, u.nRegs))
	}

	u.wawStall = !store && dest >= 0 && gWrPend.Test(uint(dest))

	u.fuStall = false
	for fu, ok := insn.NextSet(0); ok && fu < uint(u.nFUs); fu, ok = insn.NextSet(fu + 1) {
		if busy.Test(fu) {
			u.fuStall = true
			break
		}
	}

	u.issue = !(u.wawStall || u.fuStall)

	u.fnIssue.ClearAll()
	if u.issue {
		for fu, ok := insn.NextSet(0); ok && fu < uint(u.nFUs); fu, ok = insn.NextSet(fu + 1) {
			u.fnIssue.Set(fu)
		}
	}

	return u.issue
}

// Issue returns the decision of the last Evaluate.
func (u *Unit) Issue() bool {
	return u.issue
}

// FnIssue returns the per-FU issue lines of the last Evaluate.
func (u *Unit) FnIssue() *bitset.BitSet {
	return u.fnIssue
}

// WAWStall reports whether the last Evaluate stalled on a pending write to
// the destination.
func (u *Unit) WAWStall() bool {
	return u.wawStall
}

// FUStall reports whether the last Evaluate stalled on a busy FU.
func (u *Unit) FUStall() bool {
	return u.fuStall
}
