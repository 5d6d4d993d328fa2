package latch_test

import (
	"github.com/bits-and-blooms/bitset"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/scoreboard/latch"
)

var _ = Describe("SR", func() {
	var l latch.SR

	BeforeEach(func() {
		l = latch.SR{}
	})

	It("should not change before commit", func() {
		l.Set()
		Expect(l.Q()).To(BeFalse())
		Expect(l.Staged()).To(BeTrue())

		l.Commit()
		Expect(l.Q()).To(BeTrue())
		Expect(l.Qn()).To(BeFalse())
		Expect(l.Qlq()).To(BeTrue())
	})

	It("should hold its value without inputs", func() {
		l.Set()
		l.Commit()
		l.Commit()
		l.Commit()
		Expect(l.Q()).To(BeTrue())
	})

	It("should let reset dominate a same-cycle set", func() {
		l.Set()
		l.Reset()
		l.Commit()
		Expect(l.Q()).To(BeFalse())

		l.Set()
		l.Commit()
		l.SetIf(true)
		l.ResetIf(true)
		l.Commit()
		Expect(l.Q()).To(BeFalse())
	})

	It("should ignore false conditional inputs", func() {
		l.SetIf(false)
		l.Commit()
		Expect(l.Q()).To(BeFalse())

		l.Set()
		l.Commit()
		l.ResetIf(false)
		l.Commit()
		Expect(l.Q()).To(BeTrue())
	})

	It("should clear immediately", func() {
		l.Set()
		l.Commit()
		l.Set()
		l.Clear()
		Expect(l.Q()).To(BeFalse())
		l.Commit()
		Expect(l.Q()).To(BeFalse())
	})
})

var _ = Describe("Vec", func() {
	var v *latch.Vec

	BeforeEach(func() {
		v = latch.NewVec(8)
	})

	It("should report its width", func() {
		Expect(v.Width()).To(Equal(8))
	})

	It("should set and reset individual latches", func() {
		v.Set(1)
		v.Set(5)
		Expect(v.Any()).To(BeFalse())
		v.Commit()
		Expect(v.Test(1)).To(BeTrue())
		Expect(v.Test(5)).To(BeTrue())
		Expect(v.Q().Count()).To(Equal(uint(2)))

		v.Reset(1)
		v.Commit()
		Expect(v.Test(1)).To(BeFalse())
		Expect(v.Test(5)).To(BeTrue())
	})

	It("should let reset masks dominate set masks", func() {
		m := bitset.New(8).Set(2).Set(3)
		r := bitset.New(8).Set(3)
		v.SetMask(m)
		v.ResetMask(r)

		staged := bitset.New(8)
		v.Staged(staged)
		Expect(staged.Test(2)).To(BeTrue())
		Expect(staged.Test(3)).To(BeFalse())

		v.Commit()
		Expect(v.Test(2)).To(BeTrue())
		Expect(v.Test(3)).To(BeFalse())
	})

	It("should ignore mask bits beyond its width", func() {
		m := bitset.New(16).Set(12).Set(0)
		v.SetMask(m)
		v.Commit()
		Expect(v.Q().Count()).To(Equal(uint(1)))
	})

	It("should reset every latch", func() {
		v.Set(0)
		v.Set(7)
		v.Commit()
		v.ResetAll()
		v.Set(4)
		v.Commit()
		Expect(v.Any()).To(BeFalse())
	})

	It("should panic on out-of-range index", func() {
		Expect(func() { v.Set(8) }).To(Panic())
		Expect(func() { v.Test(-1) }).To(Panic())
	})
})
