package dep

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/scoreboard/latch"
)

// FUFUMatrix orders function units against each other. Row x records the FUs
// that x must wait for. Dependencies are captured at the moment x issues, so
// only instructions already in flight can block a newer one.
type FUFUMatrix struct {
	n int

	// rdWait[x] holds the FUs whose pending read blocks x's write (WAR).
	rdWait []*latch.Vec
	// wrWait[x] holds the FUs whose pending write blocks x's read (RAW).
	wrWait []*latch.Vec

	readable *bitset.BitSet
	writable *bitset.BitSet
}

// NewFUFUMatrix creates an n × n FU ordering matrix.
func NewFUFUMatrix(n int) *FUFUMatrix {
	if n < 1 {
		panic(fmt.Sprintf("invalid FU-FU matrix size %d", n))
	}

	m := &FUFUMatrix{
		n:        n,
		rdWait:   make([]*latch.Vec, n),
		wrWait:   make([]*latch.Vec, n),
		readable: bitset.New(uint(n)),
		writable: bitset.New(uint(n)),
	}

	for x := 0; x < n; x++ {
		m.rdWait[x] = latch.NewVec(n)
		m.wrWait[x] = latch.NewVec(n)
	}

	return m
}

// NumFUs returns the number of FUs.
func (m *FUFUMatrix) NumFUs() int {
	return m.n
}

// Issue stages the dependencies of an issuing FU. rdPend holds the FUs with a
// pending read that x's write must follow; wrPend holds the FUs with a pending
// write that x's read must follow. x's own bit is ignored.
func (m *FUFUMatrix) Issue(x int, rdPend, wrPend *bitset.BitSet) {
	m.mustBeValid(x)

	for y := 0; y < m.n; y++ {
		if y == x {
			continue
		}

		if testBit(rdPend, y) {
			m.rdWait[x].Set(y)
		}

		if testBit(wrPend, y) {
			m.wrWait[x].Set(y)
		}
	}
}

// GoRead stages the release of every FU waiting on y's read.
func (m *FUFUMatrix) GoRead(y int) {
	m.mustBeValid(y)

	for x := 0; x < m.n; x++ {
		m.rdWait[x].Reset(y)
	}
}

// GoWrite stages the release of every FU waiting on y's write.
func (m *FUFUMatrix) GoWrite(y int) {
	m.mustBeValid(y)

	for x := 0; x < m.n; x++ {
		m.wrWait[x].Reset(y)
	}
}

// GoDie cancels FU y: nobody waits on it any more and it waits on nobody.
func (m *FUFUMatrix) GoDie(y int) {
	m.GoRead(y)
	m.GoWrite(y)
	m.rdWait[y].ResetAll()
	m.wrWait[y].ResetAll()
}

// Evaluate computes the readable and writable vectors from committed state.
// Waits staged by an FU issuing this cycle do not hold it until they commit.
func (m *FUFUMatrix) Evaluate() {
	for x := 0; x < m.n; x++ {
		u := uint(x)

		m.readable.SetTo(u, !m.wrWait[x].Any())
		m.writable.SetTo(u, !m.rdWait[x].Any())
	}
}

// Readable returns the FUs with no older pending write blocking their read.
func (m *FUFUMatrix) Readable() *bitset.BitSet {
	return m.readable
}

// Writable returns the FUs with no older pending read blocking their write.
func (m *FUFUMatrix) Writable() *bitset.BitSet {
	return m.writable
}

// ReadWait reports whether x's write waits on y's read.
func (m *FUFUMatrix) ReadWait(x, y int) bool {
	return m.rdWait[x].Test(y)
}

// WriteWait reports whether x's read waits on y's write.
func (m *FUFUMatrix) WriteWait(x, y int) bool {
	return m.wrWait[x].Test(y)
}

// Commit applies the staged updates.
func (m *FUFUMatrix) Commit() {
	for x := 0; x < m.n; x++ {
		m.rdWait[x].Commit()
		m.wrWait[x].Commit()
	}
}

func (m *FUFUMatrix) mustBeValid(fu int) {
	if fu < 0 || fu >= m.n {
		panic(fmt.Sprintf("FU %d out of range [0, %d)", fu, m.n))
	}
}
