package dep

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/sarchlab/scoreboard/latch"
)

// LDSTMatrix orders loads and stores against each other. Rows are per FU
// rather than per register, because memory ordering depends on addresses; the
// address comparison itself is supplied from outside as hit vectors.
type LDSTMatrix struct {
	n int

	// war[h] holds the outstanding loads that store h was issued behind.
	war []*latch.Vec
	// raw[h] holds the outstanding stores that load h was issued behind.
	raw []*latch.Vec

	notLoads  *bitset.BitSet
	notStores *bitset.BitSet
	scratch   *bitset.BitSet

	ldHoldSt *bitset.BitSet
	stHoldLd *bitset.BitSet
}

// NewLDSTMatrix creates an n × n load/store ordering matrix.
func NewLDSTMatrix(n int) *LDSTMatrix {
	if n < 1 {
		panic(fmt.Sprintf("invalid LD/ST matrix size %d", n))
	}

	m := &LDSTMatrix{
		n:         n,
		war:       make([]*latch.Vec, n),
		raw:       make([]*latch.Vec, n),
		notLoads:  bitset.New(uint(n)),
		notStores: bitset.New(uint(n)),
		scratch:   bitset.New(uint(n)),
		ldHoldSt:  bitset.New(uint(n)),
		stHoldLd:  bitset.New(uint(n)),
	}

	for h := 0; h < n; h++ {
		m.war[h] = latch.NewVec(n)
		m.raw[h] = latch.NewVec(n)
	}

	return m
}

// NumFUs returns the number of FUs.
func (m *LDSTMatrix) NumFUs() int {
	return m.n
}

// Issue stages an issuing FU h. A store records every outstanding load, a load
// records every outstanding store. h's own bit is ignored.
func (m *LDSTMatrix) Issue(h int, isLoad, isStore bool, loads, stores *bitset.BitSet) {
	m.mustBeValid(h)

	for v := 0; v < m.n; v++ {
		if v == h {
			continue
		}

		if isStore && testBit(loads, v) {
			m.war[h].Set(v)
		}

		if isLoad && testBit(stores, v) {
			m.raw[h].Set(v)
		}
	}
}

// Track stages the release of every cell whose column FU is no longer an
// outstanding load (WAR) or store (RAW). Call it once per cycle with the
// current outstanding vectors.
func (m *LDSTMatrix) Track(loads, stores *bitset.BitSet) {
	complement(loads, m.notLoads, m.n)
	complement(stores, m.notStores, m.n)

	for h := 0; h < m.n; h++ {
		m.war[h].ResetMask(m.notLoads)
		m.raw[h].ResetMask(m.notStores)
	}
}

func complement(src, dst *bitset.BitSet, n int) {
	for i := 0; i < n; i++ {
		dst.SetTo(uint(i), !testBit(src, i))
	}
}

// GoDie cancels every ordering recorded by FU h.
func (m *LDSTMatrix) GoDie(h int) {
	m.mustBeValid(h)
	m.war[h].ResetAll()
	m.raw[h].ResetAll()
}

// Evaluate computes the hold outputs. loadHit[h] marks the columns whose load
// address matches FU h; storeHit[h] marks the columns whose store (with data)
// matches FU h. Either slice may be nil when there is no address information.
func (m *LDSTMatrix) Evaluate(loadHit, storeHit []*bitset.BitSet) {
	for h := 0; h < m.n; h++ {
		u := uint(h)

		m.ldHoldSt.SetTo(u, m.holds(m.war[h], hitRow(loadHit, h)))
		m.stHoldLd.SetTo(u, m.holds(m.raw[h], hitRow(storeHit, h)))
	}
}

func hitRow(hits []*bitset.BitSet, h int) *bitset.BitSet {
	if h >= len(hits) {
		return nil
	}

	return hits[h]
}

func (m *LDSTMatrix) holds(l *latch.Vec, hit *bitset.BitSet) bool {
	if hit == nil {
		return false
	}

	l.Q().Copy(m.scratch)
	m.scratch.InPlaceIntersection(hit)

	return m.scratch.Any()
}

// LoadHoldsStore returns, per FU, whether an older load to a matching address
// holds the FU's store.
func (m *LDSTMatrix) LoadHoldsStore() *bitset.BitSet {
	return m.ldHoldSt
}

// StoreHoldsLoad returns, per FU, whether an older store to a matching address
// holds the FU's load.
func (m *LDSTMatrix) StoreHoldsLoad() *bitset.BitSet {
	return m.stHoldLd
}

// Storable reports whether FU h may store: no load holds it.
func (m *LDSTMatrix) Storable(h int) bool {
	return !m.ldHoldSt.Test(uint(h))
}

// Loadable reports whether FU h may load: no store holds it.
func (m *LDSTMatrix) Loadable(h int) bool {
	return !m.stHoldLd.Test(uint(h))
}

// WaitsOnLoad reports whether store h was issued behind load v.
func (m *LDSTMatrix) WaitsOnLoad(h, v int) bool {
	return m.war[h].Test(v)
}

// WaitsOnStore reports whether load h was issued behind store v.
func (m *LDSTMatrix) WaitsOnStore(h, v int) bool {
	return m.raw[h].Test(v)
}

// Commit applies the staged updates.
func (m *LDSTMatrix) Commit() {
	for h := 0; h < m.n; h++ {
		m.war[h].Commit()
		m.raw[h].Commit()
	}
}

func (m *LDSTMatrix) mustBeValid(fu int) {
	if fu < 0 || fu >= m.n {
		panic(fmt.Sprintf("FU %d out of range [0, %d)", fu, m.n))
	}
}
