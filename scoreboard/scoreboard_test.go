package scoreboard_test

import (
	"math/rand"

	"github.com/bits-and-blooms/bitset"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/scoreboard/scoreboard"
)

func step(sb *scoreboard.Scoreboard, in *scoreboard.Inputs) *scoreboard.Outputs {
	out := sb.Step(in)
	in.Clear()

	return out
}

var _ = Describe("Builder", func() {
	It("should use defaults", func() {
		sb := scoreboard.NewBuilder().Build()

		Expect(sb.NumFUs()).To(Equal(4))
		Expect(sb.NumRegs()).To(Equal(32))
		Expect(sb.NumSrcs()).To(Equal(3))
		Expect(sb.ShadowWidth()).To(Equal(0))
	})

	It("should reject empty dimensions", func() {
		Expect(func() { scoreboard.NewBuilder().WithNumFUs(0) }).To(Panic())
		Expect(func() { scoreboard.NewBuilder().WithNumRegs(0) }).To(Panic())
		Expect(func() { scoreboard.NewBuilder().WithNumSrcs(0) }).To(Panic())
		Expect(func() { scoreboard.NewBuilder().WithShadowWidth(-1) }).To(Panic())
	})
})

var _ = Describe("Scoreboard", func() {
	var (
		sb *scoreboard.Scoreboard
		in *scoreboard.Inputs
	)

	build := func(b scoreboard.Builder) {
		sb = b.WithInvariantChecks(true).Build()
		in = sb.NewInputs()
	}

	Context("with one register", func() {
		BeforeEach(func() {
			build(scoreboard.NewBuilder().WithNumRegs(1).WithNumSrcs(1))
		})

		It("should grant only the lowest of two same-cycle writers", func() {
			in.IssueOp(0, 0)
			in.IssueOp(1, 0)
			out := step(sb, in)
			Expect(out.Issued.Count()).To(Equal(uint(2)))
			Expect(sb.WritePending(0, 0)).To(BeTrue())
			Expect(sb.WritePending(1, 0)).To(BeTrue())

			in.ReqRel.Set(0).Set(1)
			out = step(sb, in)
			Expect(out.Writable.Test(0)).To(BeTrue())
			Expect(out.Writable.Test(1)).To(BeTrue())
			Expect(out.GrantedWrite()).To(Equal(0))
			Expect(out.GoWr.Count()).To(Equal(uint(1)))
			Expect(out.DestRsel.Test(0)).To(BeTrue())

			Expect(sb.WritePending(0, 0)).To(BeFalse())
			Expect(sb.WritePending(1, 0)).To(BeTrue())
			Expect(sb.Busy(0)).To(BeFalse())
			Expect(sb.Busy(1)).To(BeTrue())
		})

		It("should hold a newer read until the older write is granted", func() {
			in.IssueOp(0, 0)
			step(sb, in)

			in.IssueOp(1, -1, 0)
			step(sb, in)
			Expect(sb.ReadPending(1, 0, 0)).To(BeTrue())
			Expect(sb.SrcFwd(1, 0, 0)).To(BeTrue())
			Expect(sb.DestFwd(0, 0)).To(BeTrue())
			Expect(sb.FUMatrix().WriteWait(1, 0)).To(BeTrue())

			in.RdRel.Set(1)
			out := step(sb, in)
			Expect(out.RdHazard.Test(1)).To(BeTrue())
			Expect(out.Readable.Test(1)).To(BeFalse())
			Expect(out.GrantedRead()).To(Equal(-1))
			Expect(sb.SrcFwd(1, 0, 0)).To(BeTrue())

			in.ReqRel.Set(0)
			out = step(sb, in)
			Expect(out.GrantedWrite()).To(Equal(0))
			Expect(sb.SrcFwd(1, 0, 0)).To(BeFalse())

			in.RdRel.Set(1)
			out = step(sb, in)
			Expect(out.GrantedRead()).To(Equal(1))
			Expect(out.SrcRsel[0].Test(0)).To(BeTrue())
			Expect(sb.ReadPending(1, 0, 0)).To(BeFalse())
		})

		It("should hold a newer write until the older read is granted", func() {
			in.IssueOp(0, -1, 0)
			step(sb, in)

			in.IssueOp(1, 0)
			step(sb, in)
			Expect(sb.FUMatrix().ReadWait(1, 0)).To(BeTrue())

			in.RdRel.Set(0)
			in.ReqRel.Set(1)
			out := step(sb, in)
			Expect(out.GrantedRead()).To(Equal(0))
			Expect(out.GrantedWrite()).To(Equal(-1))

			in.ReqRel.Set(1)
			out = step(sb, in)
			Expect(out.GrantedWrite()).To(Equal(1))
		})
	})

	Context("with go-die", func() {
		BeforeEach(func() {
			build(scoreboard.NewBuilder().WithNumRegs(2).WithNumSrcs(1))
		})

		It("should clear every pending bit regardless of grants", func() {
			in.IssueOp(2, 0, 1)
			step(sb, in)
			Expect(sb.WritePending(2, 0)).To(BeTrue())
			Expect(sb.ReadPending(2, 1, 0)).To(BeTrue())

			in.GoDie.Set(2)
			in.RdRel.Set(2)
			in.ReqRel.Set(2)
			out := step(sb, in)
			Expect(out.GoDie.Test(2)).To(BeTrue())
			Expect(out.GoRd.None()).To(BeTrue())
			Expect(out.GoWr.None()).To(BeTrue())

			Expect(sb.WritePending(2, 0)).To(BeFalse())
			Expect(sb.ReadPending(2, 1, 0)).To(BeFalse())
			Expect(sb.Busy(2)).To(BeFalse())
		})

		It("should release the FUs waiting on the dead one", func() {
			in.IssueOp(0, 0)
			step(sb, in)
			in.IssueOp(1, -1, 0)
			step(sb, in)
			Expect(sb.FUMatrix().WriteWait(1, 0)).To(BeTrue())

			in.GoDie.Set(0)
			step(sb, in)
			Expect(sb.FUMatrix().WriteWait(1, 0)).To(BeFalse())

			in.RdRel.Set(1)
			out := step(sb, in)
			Expect(out.GrantedRead()).To(Equal(1))
		})
	})

	Context("with shadows", func() {
		BeforeEach(func() {
			build(scoreboard.NewBuilder().WithNumRegs(2).WithShadowWidth(2))
		})

		issueShadowed := func() {
			in.IssueOp(0, 0)
			in.Shadow[0].Set(1)
			step(sb, in)
		}

		It("should hold the write until the shadow is released", func() {
			issueShadowed()
			Expect(sb.Shadowed(0)).To(BeTrue())

			in.ReqRel.Set(0)
			out := step(sb, in)
			Expect(out.Shadowed.Test(0)).To(BeTrue())
			Expect(out.GrantedWrite()).To(Equal(-1))

			in.ShadowGood.Set(1)
			step(sb, in)
			Expect(sb.Shadowed(0)).To(BeFalse())

			in.ReqRel.Set(0)
			out = step(sb, in)
			Expect(out.GrantedWrite()).To(Equal(0))
		})

		It("should ignore results of other shadows", func() {
			issueShadowed()

			in.ShadowGood.Set(0)
			in.ShadowFail.Set(0)
			out := step(sb, in)
			Expect(out.GoDie.None()).To(BeTrue())
			Expect(sb.Shadowed(0)).To(BeTrue())
		})

		It("should resolve a shadow differently per FU", func() {
			issueShadowed()
			in.IssueOp(1, 1)
			in.Shadow[1].Set(1)
			step(sb, in)

			in.ShadowGoodFU[0].Set(1)
			in.ShadowFailFU[1].Set(1)
			out := step(sb, in)
			Expect(out.GoDie.Test(0)).To(BeFalse())
			Expect(out.GoDie.Test(1)).To(BeTrue())
			Expect(sb.Shadowed(0)).To(BeFalse())
			Expect(sb.Busy(1)).To(BeFalse())
		})

		It("should cancel the FU when the shadow fails", func() {
			issueShadowed()

			in.ShadowFail.Set(1)
			out := step(sb, in)
			Expect(out.GoDie.Test(0)).To(BeTrue())
			Expect(sb.WritePending(0, 0)).To(BeFalse())
			Expect(sb.Shadowed(0)).To(BeFalse())
			Expect(sb.Busy(0)).To(BeFalse())
		})
	})

	Context("with load/store ordering", func() {
		BeforeEach(func() {
			build(scoreboard.NewBuilder().WithNumRegs(4).WithLDST(true))
		})

		It("should hold a store behind an older load to the same address", func() {
			in.IssueOp(0, 0)
			in.Load.Set(0)
			step(sb, in)

			in.IssueOp(1, -1, 1)
			in.Store.Set(1)
			step(sb, in)

			in.ReqRel.Set(1)
			in.LoadHit[1].Set(0)
			out := step(sb, in)
			Expect(out.LdHoldSt.Test(1)).To(BeTrue())
			Expect(out.GrantedWrite()).To(Equal(-1))

			in.ReqRel.Set(1)
			out = step(sb, in)
			Expect(out.LdHoldSt.Test(1)).To(BeFalse())
			Expect(out.GrantedWrite()).To(Equal(1))
		})

		It("should release the store once the load completes", func() {
			in.IssueOp(0, 0)
			in.Load.Set(0)
			step(sb, in)

			in.IssueOp(1, -1, 1)
			in.Store.Set(1)
			step(sb, in)

			in.ReqRel.Set(0).Set(1)
			in.LoadHit[1].Set(0)
			out := step(sb, in)
			Expect(out.GrantedWrite()).To(Equal(0))

			granted := false
			for i := 0; i < 3 && !granted; i++ {
				in.ReqRel.Set(1)
				in.LoadHit[1].Set(0)
				out = step(sb, in)
				granted = out.GrantedWrite() == 1
			}

			Expect(granted).To(BeTrue())
		})
	})

	Context("with address lines", func() {
		BeforeEach(func() {
			build(scoreboard.NewBuilder().WithNumRegs(4).WithMemAddrs(8))
		})

		issuePair := func(ldAddr, stAddr uint64) {
			in.IssueOp(0, 0)
			in.IssueLoad(0, ldAddr)
			step(sb, in)

			in.IssueOp(1, -1, 1)
			in.IssueStore(1, stAddr)
			step(sb, in)
		}

		It("should hold a store behind an older load to the same line", func() {
			issuePair(0x43, 0x03)
			Expect(sb.MemMatrix().WriteVector(0).Test(3)).To(BeTrue())

			in.ReqRel.Set(1)
			out := step(sb, in)
			Expect(out.LdHoldSt.Test(1)).To(BeTrue())
			Expect(out.LdFwd.Test(0)).To(BeTrue())
			Expect(out.StFwd.Test(1)).To(BeTrue())
			Expect(out.GrantedWrite()).To(Equal(-1))
		})

		It("should not hold a store to another line", func() {
			issuePair(0x43, 0x04)

			in.ReqRel.Set(1)
			out := step(sb, in)
			Expect(out.LdHoldSt.Test(1)).To(BeFalse())
			Expect(out.GrantedWrite()).To(Equal(1))
			Expect(out.StRsel.Test(4)).To(BeTrue())
		})

		It("should release the store once the load writes", func() {
			issuePair(0x43, 0x03)

			in.ReqRel.Set(0).Set(1)
			out := step(sb, in)
			Expect(out.GrantedWrite()).To(Equal(0))
			Expect(out.LdRsel.Test(3)).To(BeTrue())

			granted := false
			for i := 0; i < 3 && !granted; i++ {
				in.ReqRel.Set(1)
				out = step(sb, in)
				granted = out.GrantedWrite() == 1
			}

			Expect(granted).To(BeTrue())
		})

		It("should reject a negative line count", func() {
			Expect(func() { scoreboard.NewBuilder().WithMemAddrs(-1) }).To(Panic())
		})
	})

	It("should report global pending vectors", func() {
		build(scoreboard.NewBuilder().WithNumRegs(3).WithNumSrcs(2))

		in.IssueOp(1, 2, 1, 0)
		step(sb, in)

		in.IssueOp(0, 0, 1)
		step(sb, in)

		wr := bitset.New(3)
		rd := bitset.New(3)
		sb.GlobalWritePending(wr)
		sb.GlobalReadPending(rd)
		Expect(wr.Test(0) && wr.Test(2) && !wr.Test(1)).To(BeTrue())
		Expect(rd.Test(0) && rd.Test(1) && !rd.Test(2)).To(BeTrue())

		out := step(sb, in)
		Expect(out.GlobalWrPend.Equal(wr)).To(BeTrue())
		Expect(out.GlobalRdPend.Equal(rd)).To(BeTrue())
	})

	It("should panic on a read of a register written by a same-cycle issue", func() {
		build(scoreboard.NewBuilder().WithNumRegs(2).WithNumSrcs(1))

		in.IssueOp(0, 0)
		in.IssueOp(1, -1, 0)
		Expect(func() { sb.Step(in) }).To(Panic())
	})

	It("should order a read behind a write issued the cycle before", func() {
		build(scoreboard.NewBuilder().WithNumRegs(2).WithNumSrcs(1))

		in.IssueOp(0, 0)
		step(sb, in)

		in.IssueOp(1, -1, 0)
		step(sb, in)
		Expect(sb.SrcFwd(1, 0, 0)).To(BeTrue())

		in.RdRel.Set(1)
		out := step(sb, in)
		Expect(out.GrantedRead()).To(Equal(-1))
	})

	It("should panic on issue to a busy FU", func() {
		build(scoreboard.NewBuilder())

		in.IssueOp(0, 1)
		step(sb, in)

		in.IssueOp(0, 2)
		Expect(func() { sb.Step(in) }).To(Panic())
	})

	It("should render its state", func() {
		build(scoreboard.NewBuilder().WithNumRegs(4))

		in.IssueOp(1, 3, 2)
		step(sb, in)

		Expect(scoreboard.StateTable(sb)).To(ContainSubstring("r3"))
		Expect(scoreboard.StateTable(sb)).To(ContainSubstring("r2"))
	})
})

type phase int

const (
	idle phase = iota
	reading
	writing
)

var _ = Describe("Scoreboard under random traffic", func() {
	const (
		nFU  = 6
		nReg = 8
		nSrc = 2
	)

	var (
		sb     *scoreboard.Scoreboard
		in     *scoreboard.Inputs
		phases []phase
		rng    *rand.Rand
		wrPend *bitset.BitSet
		wasWr  [nFU][nReg]bool
	)

	BeforeEach(func() {
		sb = scoreboard.NewBuilder().
			WithNumFUs(nFU).
			WithNumRegs(nReg).
			WithNumSrcs(nSrc).
			WithInvariantChecks(true).
			Build()
		in = sb.NewInputs()
		phases = make([]phase, nFU)
		rng = rand.New(rand.NewSource(7))
		wrPend = bitset.New(nReg)
	})

	issueRandom := func() {
		sb.GlobalWritePending(wrPend)
		written := bitset.New(nReg)
		read := bitset.New(nReg)

		for fu := 0; fu < nFU; fu++ {
			if phases[fu] != idle || rng.Intn(3) != 0 {
				continue
			}

			dest := rng.Intn(nReg)
			a, b := rng.Intn(nReg), rng.Intn(nReg)
			if wrPend.Test(uint(dest)) || read.Test(uint(dest)) ||
				written.Test(uint(a)) || written.Test(uint(b)) {
				continue
			}

			wrPend.Set(uint(dest))
			written.Set(uint(dest))
			read.Set(uint(a)).Set(uint(b))
			in.IssueOp(fu, dest, a, b)
		}
	}

	request := func() {
		for fu, p := range phases {
			switch p {
			case reading:
				in.RdRel.Set(uint(fu))
			case writing:
				in.ReqRel.Set(uint(fu))
			}
		}
	}

	snapshot := func() {
		for fu := 0; fu < nFU; fu++ {
			for reg := 0; reg < nReg; reg++ {
				wasWr[fu][reg] = sb.WritePending(fu, reg)
			}
		}
	}

	advance := func(out *scoreboard.Outputs) {
		for fu := range phases {
			u := uint(fu)

			switch {
			case out.GoDie.Test(u):
				phases[fu] = idle
			case out.GoRd.Test(u):
				phases[fu] = writing
			case out.GoWr.Test(u):
				phases[fu] = idle
			case out.Issued.Test(u):
				phases[fu] = reading
			}

			for reg := 0; reg < nReg; reg++ {
				if wasWr[fu][reg] && !out.GoWr.Test(u) && !out.GoDie.Test(u) {
					Expect(sb.WritePending(fu, reg)).To(BeTrue(),
						"FU %d lost write of r%d at cycle %d", fu, reg, out.Cycle)
				}
			}

			Expect(sb.Busy(fu)).To(Equal(phases[fu] != idle))
		}
	}

	It("should keep grants exclusive and drain", func() {
		for c := 0; c < 400; c++ {
			issueRandom()
			request()

			if rng.Intn(25) == 0 {
				in.GoDie.Set(uint(rng.Intn(nFU)))
			}

			snapshot()
			out := step(sb, in)
			Expect(out.GoRd.Count()).To(BeNumerically("<=", 1))
			Expect(out.GoWr.Count()).To(BeNumerically("<=", 1))
			advance(out)
		}

		for c := 0; c < 10*nFU; c++ {
			request()
			snapshot()
			advance(step(sb, in))
		}

		for fu := 0; fu < nFU; fu++ {
			Expect(phases[fu]).To(Equal(idle), "FU %d never retired", fu)
		}

		sb.GlobalWritePending(wrPend)
		Expect(wrPend.None()).To(BeTrue())
	})
})
