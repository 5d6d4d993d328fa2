// Package latch provides the set/reset bistable that backs every pending bit
// of the scoreboard.
//
// A latch is two-phase. During a cycle, callers stage set and reset requests;
// the committed value Q does not move until Commit is called at the cycle
// boundary. Reset dominates: a latch that sees both set and reset in the same
// cycle commits to zero.
package latch

import "github.com/bits-and-blooms/bitset"

// SR is a single-bit set/reset latch.
type SR struct {
	q, s, r bool
}

// Set stages a set request for the current cycle.
func (l *SR) Set() {
	l.s = true
}

// SetIf stages a set request when v is true.
func (l *SR) SetIf(v bool) {
	l.s = l.s || v
}

// Reset stages a reset request for the current cycle.
func (l *SR) Reset() {
	l.r = true
}

// ResetIf stages a reset request when v is true.
func (l *SR) ResetIf(v bool) {
	l.r = l.r || v
}

// Q returns the committed output.
func (l *SR) Q() bool {
	return l.q
}

// Qn returns the inverted committed output.
func (l *SR) Qn() bool {
	return !l.q
}

// Qlq returns the registered view of the latch. Downstream logic must only
// ever observe this value, never the staged one.
func (l *SR) Qlq() bool {
	return l.q
}

// Staged returns the value the latch will hold after the next Commit.
func (l *SR) Staged() bool {
	if l.r {
		return false
	}

	return l.q || l.s
}

// Commit applies the staged requests and clears them.
func (l *SR) Commit() {
	l.q = l.Staged()
	l.s = false
	l.r = false
}

// Clear forces the latch to zero immediately, dropping staged requests. It is
// a power-on reset, not a cycle operation.
func (l *SR) Clear() {
	l.q = false
	l.s = false
	l.r = false
}

// Vec is a fixed-width bank of SR latches.
type Vec struct {
	width uint
	q     *bitset.BitSet
	s     *bitset.BitSet
	r     *bitset.BitSet
}

// NewVec creates a latch bank with the given width.
func NewVec(width int) *Vec {
	if width < 0 {
		panic("latch width must not be negative")
	}

	w := uint(width)

	return &Vec{
		width: w,
		q:     bitset.New(w),
		s:     bitset.New(w),
		r:     bitset.New(w),
	}
}

// Width returns the number of latches in the bank.
func (v *Vec) Width() int {
	return int(v.width)
}

// Q returns the committed outputs. The returned set is owned by the latch and
// must not be modified.
func (v *Vec) Q() *bitset.BitSet {
	return v.q
}

// Test returns the committed output of latch i.
func (v *Vec) Test(i int) bool {
	return v.q.Test(v.index(i))
}

// Any reports whether any committed output is high.
func (v *Vec) Any() bool {
	return v.q.Any()
}

// Set stages a set request on latch i.
func (v *Vec) Set(i int) {
	v.s.Set(v.index(i))
}

// Reset stages a reset request on latch i.
func (v *Vec) Reset(i int) {
	v.r.Set(v.index(i))
}

// SetMask stages set requests on every latch whose bit is high in m.
func (v *Vec) SetMask(m *bitset.BitSet) {
	v.s.InPlaceUnion(m)
	v.trim(v.s)
}

// ResetMask stages reset requests on every latch whose bit is high in m.
func (v *Vec) ResetMask(m *bitset.BitSet) {
	v.r.InPlaceUnion(m)
	v.trim(v.r)
}

// ResetAll stages a reset request on every latch.
func (v *Vec) ResetAll() {
	for i := uint(0); i < v.width; i++ {
		v.r.Set(i)
	}
}

// Staged writes the value the bank will hold after the next Commit into dst.
func (v *Vec) Staged(dst *bitset.BitSet) {
	v.q.Copy(dst)
	dst.InPlaceUnion(v.s)
	dst.InPlaceDifference(v.r)
}

// Commit applies the staged requests and clears them.
func (v *Vec) Commit() {
	v.q.InPlaceUnion(v.s)
	v.q.InPlaceDifference(v.r)
	v.s.ClearAll()
	v.r.ClearAll()
}

// Clear forces all latches to zero immediately.
func (v *Vec) Clear() {
	v.q.ClearAll()
	v.s.ClearAll()
	v.r.ClearAll()
}

func (v *Vec) index(i int) uint {
	if i < 0 || uint(i) >= v.width {
		panic("latch index out of range")
	}

	return uint(i)
}

func (v *Vec) trim(b *bitset.BitSet) {
	for i, ok := b.NextSet(v.width); ok; i, ok = b.NextSet(i + 1) {
		b.Clear(i)
	}
}
