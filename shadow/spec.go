package shadow

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/scoreboard/latch"
)

// SpecRecord remembers, for every FU issued in the shadow of a branch, which
// way the branch was predicted when the FU issued. Once the branch resolves,
// the FUs on the path that turned out right get a good result and the others
// a fail result.
type SpecRecord struct {
	n int

	active, arm, disarm bool

	// good marks FUs issued on the path followed if the branch succeeds,
	// fail those issued on the path followed if it fails.
	good *latch.Vec
	fail *latch.Vec

	matchG *bitset.BitSet
	matchF *bitset.BitSet
}

// NewSpecRecord creates a record over n FUs.
func NewSpecRecord(n int) *SpecRecord {
	if n < 1 {
		panic(fmt.Sprintf("invalid speculation record width %d", n))
	}

	return &SpecRecord{
		n:      n,
		good:   latch.NewVec(n),
		fail:   latch.NewVec(n),
		matchG: bitset.New(uint(n)),
		matchF: bitset.New(uint(n)),
	}
}

// Width returns the number of FUs.
func (r *SpecRecord) Width() int {
	return r.n
}

// Activate starts recording from the next cycle, when the branch issues. A
// branch activating in the cycle the previous one resolves stays active.
func (r *SpecRecord) Activate() {
	r.arm = true
}

// Active reports whether the record is accepting expectations.
func (r *SpecRecord) Active() bool {
	return r.active
}

// Record stages the expectations of the FUs issuing this cycle. Nothing is
// recorded while the record is inactive.
func (r *SpecRecord) Record(good, fail *bitset.BitSet) {
	if !r.active {
		return
	}

	if good != nil {
		r.good.SetMask(good)
	}

	if fail != nil {
		r.fail.SetMask(fail)
	}
}

// ExpectsGood reports whether an FU was recorded on the success path.
func (r *SpecRecord) ExpectsGood(fu int) bool {
	return r.good.Test(fu)
}

// ExpectsFail reports whether an FU was recorded on the fail path.
func (r *SpecRecord) ExpectsFail(fu int) bool {
	return r.fail.Test(fu)
}

// Resolve compares the recorded expectations with the branch outcome ok and
// stages the clearing of the record. matchG marks the FUs whose expectation
// held, matchF those whose expectation was wrong. Both are reused by the next
// call.
func (r *SpecRecord) Resolve(ok bool) (matchG, matchF *bitset.BitSet) {
	r.matchG.ClearAll()
	r.matchF.ClearAll()

	for fu := 0; fu < r.n; fu++ {
		u := uint(fu)

		if r.good.Test(fu) {
			r.matchG.SetTo(u, ok)
			r.matchF.SetTo(u, !ok)
		}

		if r.fail.Test(fu) {
			r.matchG.SetTo(u, !ok)
			r.matchF.SetTo(u, ok)
		}
	}

	r.Cancel()

	return r.matchG, r.matchF
}

// Cancel stages the clearing of the whole record and deactivates it.
func (r *SpecRecord) Cancel() {
	r.disarm = true
	r.good.ResetAll()
	r.fail.ResetAll()
}

// Forget stages the clearing of one FU's expectation, for an FU that is
// cancelled before the branch resolves.
func (r *SpecRecord) Forget(fu int) {
	r.good.Reset(fu)
	r.fail.Reset(fu)
}

// Commit applies the staged updates.
func (r *SpecRecord) Commit() {
	r.good.Commit()
	r.fail.Commit()

	r.active = r.arm || (r.active && !r.disarm)
	r.arm = false
	r.disarm = false
}
