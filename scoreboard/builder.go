package scoreboard

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/scoreboard/dep"
	"github.com/sarchlab/scoreboard/latch"
	"github.com/sarchlab/scoreboard/picker"
	"github.com/sarchlab/scoreboard/shadow"
)

// Builder can create new scoreboards.
type Builder struct {
	numFUs          int
	numRegs         int
	numSrcs         int
	shadowWidth     int
	withLDST        bool
	memAddrs        int
	checkInvariants bool
}

// NewBuilder returns a builder for a 4-FU, 32-register scoreboard with three
// source slots per instruction.
func NewBuilder() Builder {
	return Builder{
		numFUs:  4,
		numRegs: 32,
		numSrcs: 3,
	}
}

// WithNumFUs sets the number of function units.
func (b Builder) WithNumFUs(n int) Builder {
	if n < 1 {
		panic("Need at least 1 function unit")
	}

	b.numFUs = n
	return b
}

// WithNumRegs sets the number of registers.
func (b Builder) WithNumRegs(n int) Builder {
	if n < 1 {
		panic("Need at least 1 register")
	}

	b.numRegs = n
	return b
}

// WithNumSrcs sets the number of source operand slots.
func (b Builder) WithNumSrcs(n int) Builder {
	if n < 1 {
		panic("Need at least 1 source slot")
	}

	b.numSrcs = n
	return b
}

// WithShadowWidth sets the number of shadows an instruction can be issued
// under. Zero disables shadowing.
func (b Builder) WithShadowWidth(n int) Builder {
	if n < 0 {
		panic("Shadow width must not be negative")
	}

	b.shadowWidth = n
	return b
}

// WithLDST enables the load/store ordering matrix.
func (b Builder) WithLDST(enabled bool) Builder {
	b.withLDST = enabled
	return b
}

// WithMemAddrs tracks load and store addresses in an FU × address-line
// matrix of n lines, which then supplies the load/store hits. Implies LD/ST
// ordering. Zero leaves the hits to the caller.
func (b Builder) WithMemAddrs(n int) Builder {
	if n < 0 {
		panic("Number of address lines must not be negative")
	}

	b.memAddrs = n
	return b
}

// WithInvariantChecks makes every step verify the grant invariants and panic
// on a violation. Meant for tests; hardware has no such checks.
func (b Builder) WithInvariantChecks(enabled bool) Builder {
	b.checkInvariants = enabled
	return b
}

// Build creates a scoreboard.
func (b Builder) Build() *Scoreboard {
	n := uint(b.numFUs)

	s := &Scoreboard{
		nFU:     b.numFUs,
		nReg:    b.numRegs,
		nSrc:    b.numSrcs,
		nShadow: b.shadowWidth,
		nAddr:   b.memAddrs,
		checks:  b.checkInvariants,
		regs:    dep.NewMatrix(b.numFUs, b.numRegs, b.numSrcs),
		fus:     dep.NewFUFUMatrix(b.numFUs),
		shadows: make([]*shadow.Shadow, b.numFUs),
		picker:  picker.NewGroup(b.numFUs),
		busy:    latch.NewVec(b.numFUs),
		loads:   latch.NewVec(b.numFUs),
		stores:  latch.NewVec(b.numFUs),
		rdDeps:  bitset.New(n),
		wrDeps:  bitset.New(n),
		srcs:    bitset.New(uint(b.numRegs)),
		overlap: bitset.New(uint(b.numRegs)),
	}

	for fu := range s.shadows {
		s.shadows[fu] = shadow.New(b.shadowWidth)
	}

	if b.withLDST || b.memAddrs > 0 {
		s.ldst = dep.NewLDSTMatrix(b.numFUs)
	}

	if b.memAddrs > 0 {
		s.mem = dep.NewMemMatrix(b.numFUs, b.memAddrs)
		s.hitLd = makeHits(b.numFUs)
		s.hitSt = makeHits(b.numFUs)
		s.lines = bitset.New(uint(b.memAddrs))
		s.memStore = make([]*bitset.BitSet, 1)
	}

	s.out = newOutputs(b.numFUs, b.numRegs, b.numSrcs, b.memAddrs)

	return s
}

func makeHits(n int) []*bitset.BitSet {
	hits := make([]*bitset.BitSet, n)
	for h := range hits {
		hits[h] = bitset.New(uint(n))
	}

	return hits
}
