// Package shadow tracks instructions issued under the shadow of an unresolved
// branch or a possibly-excepting instruction.
//
// A shadowed function unit may read its operands but must not commit its
// result until every shadow it was issued under resolves good. If any of them
// resolves as a failure, the unit is cancelled with go-die.
package shadow

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/scoreboard/latch"
)

// Fn is a single shadow function.
type Fn struct {
	l latch.SR
}

// Issue stages the shadow when the FU issues under it.
func (f *Fn) Issue(shadow, issue bool) {
	f.l.SetIf(shadow && issue)
}

// Good stages the release of the shadow.
func (f *Fn) Good(good bool) {
	f.l.ResetIf(good)
}

// Kill stages the release of the shadow because the FU is being cancelled.
func (f *Fn) Kill() {
	f.l.Reset()
}

// Shadow reports whether the shadow is held.
func (f *Fn) Shadow() bool {
	return f.l.Qlq()
}

// Recover reports whether a held shadow has failed.
func (f *Fn) Recover(fail bool) bool {
	return f.l.Qlq() && fail
}

// Commit applies the staged updates.
func (f *Fn) Commit() {
	f.l.Commit()
}

// Shadow is the set of shadow functions of one FU.
type Shadow struct {
	fns []Fn
}

// New creates a Shadow with width functions. A zero-width Shadow is never
// shadowed and never dies.
func New(width int) *Shadow {
	if width < 0 {
		panic(fmt.Sprintf("invalid shadow width %d", width))
	}

	return &Shadow{fns: make([]Fn, width)}
}

// Width returns the number of shadow functions.
func (s *Shadow) Width() int {
	return len(s.fns)
}

// Fn returns one shadow function.
func (s *Shadow) Fn(i int) *Fn {
	return &s.fns[i]
}

// Issue stages every shadow flagged in mask when issue is high.
func (s *Shadow) Issue(mask *bitset.BitSet, issue bool) {
	if !issue || mask == nil {
		return
	}

	for i := range s.fns {
		s.fns[i].Issue(mask.Test(uint(i)), true)
	}
}

// Resolve stages the release of every shadow flagged in good.
func (s *Shadow) Resolve(good *bitset.BitSet) {
	if good == nil {
		return
	}

	for i := range s.fns {
		s.fns[i].Good(good.Test(uint(i)))
	}
}

// Kill stages the release of every shadow.
func (s *Shadow) Kill() {
	for i := range s.fns {
		s.fns[i].Kill()
	}
}

// Shadown reports that no shadow is held, so the FU may commit.
func (s *Shadow) Shadown() bool {
	for i := range s.fns {
		if s.fns[i].Shadow() {
			return false
		}
	}

	return true
}

// GoDie reports whether any held shadow failed this cycle.
func (s *Shadow) GoDie(fail *bitset.BitSet) bool {
	if fail == nil {
		return false
	}

	for i := range s.fns {
		if s.fns[i].Recover(fail.Test(uint(i))) {
			return true
		}
	}

	return false
}

// Commit applies the staged updates.
func (s *Shadow) Commit() {
	for i := range s.fns {
		s.fns[i].Commit()
	}
}
