// Package scoreboard composes the dependency matrices, shadows, and pickers
// into a cycle-stepped 6600-style scoreboard.
//
// Each Step models one clock cycle in four phases:
//
//  1. read the committed state of every latch,
//  2. compute every combinational output (global pending, forward bits,
//     readable/writable masks, shadows, grants, register selects) from that
//     state alone,
//  3. stage latch updates from the issue, grant, and die signals,
//  4. commit all latches at once.
//
// No grant is ever computed from state updated in the same cycle. A grant
// given in cycle t clears the winner's pending bits at the end of cycle t.
package scoreboard

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/scoreboard/dep"
	"github.com/sarchlab/scoreboard/latch"
	"github.com/sarchlab/scoreboard/picker"
	"github.com/sarchlab/scoreboard/shadow"
)

// Scoreboard tracks the register dependencies of in-flight instructions and
// arbitrates register-file access between function units.
type Scoreboard struct {
	nFU, nReg, nSrc, nShadow, nAddr int

	checks bool
	cycle  uint64

	regs    *dep.Matrix
	fus     *dep.FUFUMatrix
	ldst    *dep.LDSTMatrix
	mem     *dep.Matrix
	shadows []*shadow.Shadow
	picker  *picker.Group

	busy   *latch.Vec
	loads  *latch.Vec
	stores *latch.Vec

	rdDeps  *bitset.BitSet
	wrDeps  *bitset.BitSet
	srcs    *bitset.BitSet
	overlap *bitset.BitSet

	hitLd    []*bitset.BitSet
	hitSt    []*bitset.BitSet
	lines    *bitset.BitSet
	memStore []*bitset.BitSet

	out Outputs
}

// NumFUs returns the number of function units.
func (s *Scoreboard) NumFUs() int {
	return s.nFU
}

// NumRegs returns the number of registers.
func (s *Scoreboard) NumRegs() int {
	return s.nReg
}

// NumSrcs returns the number of source operand slots.
func (s *Scoreboard) NumSrcs() int {
	return s.nSrc
}

// ShadowWidth returns the number of shadows per FU.
func (s *Scoreboard) ShadowWidth() int {
	return s.nShadow
}

// NumMemAddrs returns the number of address lines of the memory matrix, zero
// when load/store ordering relies on external address hits.
func (s *Scoreboard) NumMemAddrs() int {
	return s.nAddr
}

// Cycle returns the number of steps taken so far.
func (s *Scoreboard) Cycle() uint64 {
	return s.cycle
}

// Step runs one cycle and returns its outputs. The returned Outputs is reused
// by the next call.
func (s *Scoreboard) Step(in *Inputs) *Outputs {
	s.out.Cycle = s.cycle

	s.evaluate(in)
	s.arbitrate(in)

	if s.checks {
		s.mustHoldInvariants(in)
	}

	s.stage(in)
	s.commit()

	s.trace()
	s.cycle++

	return &s.out
}

func (s *Scoreboard) evaluate(in *Inputs) {
	s.regs.Evaluate()
	s.fus.Evaluate()

	s.regs.GlobalWritePending().Copy(s.out.GlobalWrPend)
	s.regs.GlobalReadPending().Copy(s.out.GlobalRdPend)
	s.regs.WriteHazards().Copy(s.out.WrHazard)
	s.regs.ReadHazards().Copy(s.out.RdHazard)

	for fu, sh := range s.shadows {
		u := uint(fu)
		s.out.Shadowed.SetTo(u, !sh.Shadown())
		die := testBit(in.GoDie, fu) ||
			sh.GoDie(in.ShadowFail) ||
			sh.GoDie(vecAt(in.ShadowFailFU, fu))
		s.out.GoDie.SetTo(u, die)
	}

	s.fus.Readable().Copy(s.out.Readable)
	s.out.Readable.InPlaceDifference(s.out.GoDie)

	s.fus.Writable().Copy(s.out.Writable)
	s.out.Writable.InPlaceDifference(s.out.Shadowed)
	s.out.Writable.InPlaceDifference(s.out.GoDie)

	s.out.LdHoldSt.ClearAll()
	s.out.StHoldLd.ClearAll()

	if s.ldst != nil {
		loadHit, storeHit := in.LoadHit, in.StoreHit
		if s.mem != nil {
			s.matchLines(in)
			loadHit, storeHit = s.hitLd, s.hitSt
		}

		s.ldst.Evaluate(loadHit, storeHit)
		s.ldst.LoadHoldsStore().Copy(s.out.LdHoldSt)
		s.ldst.StoreHoldsLoad().Copy(s.out.StHoldLd)
		s.out.Writable.InPlaceDifference(s.out.LdHoldSt)
		s.out.Writable.InPlaceDifference(s.out.StHoldLd)
	}
}

// matchLines derives the load/store hit vectors from the memory matrix. Store
// h hits load v when v's pending load line is one h stores to, and load h hits
// store v the other way round. External hits are kept.
func (s *Scoreboard) matchLines(in *Inputs) {
	s.mem.Evaluate()
	s.mem.WriteHazards().Copy(s.out.LdFwd)
	s.mem.ReadHazards().Copy(s.out.StFwd)

	for h := 0; h < s.nFU; h++ {
		s.hitLd[h].ClearAll()
		s.hitSt[h].ClearAll()

		if ext := vecAt(in.LoadHit, h); ext != nil {
			s.hitLd[h].InPlaceUnion(ext)
		}

		if ext := vecAt(in.StoreHit, h); ext != nil {
			s.hitSt[h].InPlaceUnion(ext)
		}

		for v := 0; v < s.nFU; v++ {
			if v == h {
				continue
			}

			if s.sameLine(s.mem.WriteVector(v), s.mem.SourceVector(h, 0)) {
				s.hitLd[h].Set(uint(v))
			}

			if s.sameLine(s.mem.SourceVector(v, 0), s.mem.WriteVector(h)) {
				s.hitSt[h].Set(uint(v))
			}
		}
	}
}

func (s *Scoreboard) sameLine(a, b *bitset.BitSet) bool {
	a.Copy(s.lines)
	s.lines.InPlaceIntersection(b)

	return s.lines.Any()
}

func (s *Scoreboard) arbitrate(in *Inputs) {
	goRd, goWr := s.picker.Pick(
		s.out.Readable, s.out.Writable, orEmpty(in.RdRel), orEmpty(in.ReqRel))

	goRd.Copy(s.out.GoRd)
	goWr.Copy(s.out.GoWr)

	s.regs.Select(s.out.GoRd, s.out.GoWr)
	s.regs.DestRsel().Copy(s.out.DestRsel)

	for i := range s.out.SrcRsel {
		s.regs.SrcRsel(i).Copy(s.out.SrcRsel[i])
	}

	if s.mem != nil {
		s.mem.Select(s.out.GoWr, s.out.GoWr)
		s.mem.DestRsel().Copy(s.out.LdRsel)
		s.mem.SrcRsel(0).Copy(s.out.StRsel)
	}
}

var empty = bitset.New(0)

func orEmpty(b *bitset.BitSet) *bitset.BitSet {
	if b == nil {
		return empty
	}

	return b
}

func (s *Scoreboard) stage(in *Inputs) {
	s.stageGrants()
	s.stageIssues(in)

	for fu, sh := range s.shadows {
		sh.Resolve(in.ShadowGood)
		sh.Resolve(vecAt(in.ShadowGoodFU, fu))
	}

	if s.ldst != nil {
		s.ldst.Track(s.loads.Q(), s.stores.Q())
	}
}

func (s *Scoreboard) stageGrants() {
	for fu := 0; fu < s.nFU; fu++ {
		u := uint(fu)
		goRd := s.out.GoRd.Test(u)
		goWr := s.out.GoWr.Test(u)
		die := s.out.GoDie.Test(u)

		s.regs.Reset(fu, goWr, goRd, die)

		if s.mem != nil {
			s.mem.Reset(fu, goWr, goWr, die)
		}

		if goRd {
			s.fus.GoRead(fu)
		}

		if goWr || die {
			s.busy.Reset(fu)
			s.loads.Reset(fu)
			s.stores.Reset(fu)
		}

		if goWr {
			s.fus.GoWrite(fu)
		}

		if die {
			s.fus.GoDie(fu)
			s.shadows[fu].Kill()

			if s.ldst != nil {
				s.ldst.GoDie(fu)
			}
		}
	}
}

func (s *Scoreboard) stageIssues(in *Inputs) {
	s.out.Issued.ClearAll()

	if in.Issue == nil {
		return
	}

	if s.checks {
		s.mustNotChainIssues(in)
	}

	for u, ok := in.Issue.NextSet(0); ok && u < uint(s.nFU); u, ok = in.Issue.NextSet(u + 1) {
		fu := int(u)

		if s.checks && s.busy.Test(fu) {
			panic(fmt.Sprintf("cycle %d: issue to busy FU %d", s.cycle, fu))
		}

		dest := vecAt(in.Dest, fu)
		src := vecsAt(in.Src, fu)

		s.collectDeps(fu, dest, src)
		s.fus.Issue(fu, s.rdDeps, s.wrDeps)
		s.regs.Issue(fu, dest, src)
		s.shadows[fu].Issue(vecAt(in.Shadow, fu), true)
		s.busy.Set(fu)
		s.out.Issued.Set(u)

		isLoad := testBit(in.Load, fu)
		isStore := testBit(in.Store, fu)

		if s.ldst != nil {
			s.ldst.Issue(fu, isLoad, isStore, s.loads.Q(), s.stores.Q())
		}

		if s.mem != nil {
			s.memStore[0] = vecAt(in.StoreAddr, fu)
			s.mem.Issue(fu, vecAt(in.LoadAddr, fu), s.memStore)
		}

		if isLoad {
			s.loads.Set(fu)
		}

		if isStore {
			s.stores.Set(fu)
		}
	}
}

// collectDeps finds the in-flight FUs that an issuing FU must be ordered
// behind: those with a pending read of its destination (WAR) and those with a
// pending write of one of its sources (RAW).
func (s *Scoreboard) collectDeps(fu int, dest *bitset.BitSet, src []*bitset.BitSet) {
	s.rdDeps.ClearAll()
	s.wrDeps.ClearAll()

	s.srcs.ClearAll()
	for _, v := range src {
		if v != nil {
			s.srcs.InPlaceUnion(v)
		}
	}

	for y := 0; y < s.nFU; y++ {
		if y == fu {
			continue
		}

		if dest != nil && s.intersects(s.regs.ReadVector(y), dest) {
			s.rdDeps.Set(uint(y))
		}

		if s.intersects(s.regs.WriteVector(y), s.srcs) {
			s.wrDeps.Set(uint(y))
		}
	}
}

func (s *Scoreboard) intersects(a, b *bitset.BitSet) bool {
	a.Copy(s.overlap)
	s.overlap.InPlaceIntersection(b)

	return s.overlap.Any()
}

func (s *Scoreboard) commit() {
	s.regs.Commit()
	s.fus.Commit()

	for _, sh := range s.shadows {
		sh.Commit()
	}

	if s.ldst != nil {
		s.ldst.Commit()
	}

	if s.mem != nil {
		s.mem.Commit()
	}

	s.busy.Commit()
	s.loads.Commit()
	s.stores.Commit()
}

func testBit(b *bitset.BitSet, i int) bool {
	return b != nil && b.Test(uint(i))
}

func vecAt(vecs []*bitset.BitSet, i int) *bitset.BitSet {
	if i >= len(vecs) {
		return nil
	}

	return vecs[i]
}

func vecsAt(vecs [][]*bitset.BitSet, i int) []*bitset.BitSet {
	if i >= len(vecs) {
		return nil
	}

	return vecs[i]
}

// Busy reports whether an FU holds an in-flight instruction.
func (s *Scoreboard) Busy(fu int) bool {
	return s.busy.Test(fu)
}

// BusyFUs returns the committed busy vector.
func (s *Scoreboard) BusyFUs() *bitset.BitSet {
	return s.busy.Q()
}

// WritePending reports whether an FU still intends to write a register.
func (s *Scoreboard) WritePending(fu, reg int) bool {
	return s.regs.Cell(fu, reg).WritePending()
}

// ReadPending reports whether an FU still intends to read a register through
// a source slot.
func (s *Scoreboard) ReadPending(fu, reg, slot int) bool {
	return s.regs.Cell(fu, reg).SourcePending(slot)
}

// DestFwd reports whether an FU's pending write of a register is exposed to a
// pending read by another FU.
func (s *Scoreboard) DestFwd(fu, reg int) bool {
	return s.regs.Row(reg).DestFwd(fu)
}

// SrcFwd reports whether an FU's pending read of a register through a slot is
// exposed to a pending write by another FU.
func (s *Scoreboard) SrcFwd(fu, reg, slot int) bool {
	return s.regs.Row(reg).SrcFwd(fu, slot)
}

// GlobalWritePending writes into dst the registers that any FU still intends
// to write.
func (s *Scoreboard) GlobalWritePending(dst *bitset.BitSet) {
	dst.ClearAll()

	for reg := 0; reg < s.nReg; reg++ {
		if s.regs.Row(reg).WritePending(-1) {
			dst.Set(uint(reg))
		}
	}
}

// GlobalReadPending writes into dst the registers that any FU still intends
// to read.
func (s *Scoreboard) GlobalReadPending(dst *bitset.BitSet) {
	dst.ClearAll()

	for reg := 0; reg < s.nReg; reg++ {
		if s.regs.Row(reg).ReadPending(-1) {
			dst.Set(uint(reg))
		}
	}
}

// Shadowed reports whether an FU is held by an unresolved shadow.
func (s *Scoreboard) Shadowed(fu int) bool {
	return !s.shadows[fu].Shadown()
}

// Matrix exposes the FU × register matrix for inspection.
func (s *Scoreboard) Matrix() *dep.Matrix {
	return s.regs
}

// MemMatrix exposes the FU × address-line matrix for inspection. It is nil
// unless the scoreboard was built with memory address lines.
func (s *Scoreboard) MemMatrix() *dep.Matrix {
	return s.mem
}

// FUMatrix exposes the FU × FU ordering matrix for inspection.
func (s *Scoreboard) FUMatrix() *dep.FUFUMatrix {
	return s.fus
}
