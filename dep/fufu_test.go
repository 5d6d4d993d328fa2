package dep_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/scoreboard/dep"
)

var _ = Describe("FUFUMatrix", func() {
	var m *dep.FUFUMatrix

	BeforeEach(func() {
		m = dep.NewFUFUMatrix(4)
		m.Evaluate()
	})

	It("should start with every FU readable and writable", func() {
		Expect(m.NumFUs()).To(Equal(4))
		Expect(m.Readable().All()).To(BeTrue())
		Expect(m.Writable().All()).To(BeTrue())
	})

	It("should reject an empty matrix", func() {
		Expect(func() { dep.NewFUFUMatrix(0) }).To(Panic())
	})

	It("should hold a read behind an older write", func() {
		m.Issue(1, nil, vec(4, 0))
		m.Evaluate()
		Expect(m.Readable().Test(1)).To(BeTrue())

		m.Commit()
		m.Evaluate()
		Expect(m.WriteWait(1, 0)).To(BeTrue())
		Expect(m.Readable().Test(1)).To(BeFalse())
		Expect(m.Writable().Test(1)).To(BeTrue())

		m.GoRead(0)
		m.Commit()
		m.Evaluate()
		Expect(m.Readable().Test(1)).To(BeFalse())

		m.GoWrite(0)
		m.Commit()
		m.Evaluate()
		Expect(m.Readable().Test(1)).To(BeTrue())
	})

	It("should hold a write behind an older read", func() {
		m.Issue(2, vec(4, 0, 3), nil)
		m.Commit()
		m.Evaluate()
		Expect(m.ReadWait(2, 0)).To(BeTrue())
		Expect(m.ReadWait(2, 3)).To(BeTrue())
		Expect(m.Writable().Test(2)).To(BeFalse())

		m.GoRead(0)
		m.Commit()
		m.Evaluate()
		Expect(m.Writable().Test(2)).To(BeFalse())

		m.GoRead(3)
		m.Commit()
		m.Evaluate()
		Expect(m.Writable().Test(2)).To(BeTrue())
	})

	It("should ignore an FU's own pending bits", func() {
		m.Issue(1, vec(4, 1), vec(4, 1))
		m.Commit()
		m.Evaluate()
		Expect(m.ReadWait(1, 1)).To(BeFalse())
		Expect(m.WriteWait(1, 1)).To(BeFalse())
	})

	It("should drop every wait of and on a dying FU", func() {
		m.Issue(1, vec(4, 0), vec(4, 0))
		m.Issue(2, vec(4, 1), nil)
		m.Commit()

		m.GoDie(1)
		m.Commit()
		m.Evaluate()
		Expect(m.ReadWait(1, 0)).To(BeFalse())
		Expect(m.WriteWait(1, 0)).To(BeFalse())
		Expect(m.ReadWait(2, 1)).To(BeFalse())
		Expect(m.Readable().All()).To(BeTrue())
		Expect(m.Writable().All()).To(BeTrue())
	})
})
