package dep

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Matrix is an FU × resource dependency matrix. Cells live in a flat arena
// indexed by fu*numResources + resource; nothing is allocated after
// construction.
type Matrix struct {
	nFU, nRes, nSrc int

	cells []Cell

	// Per-FU snapshots of committed cell state, width nRes.
	wrVec  []*bitset.BitSet
	rdVec  []*bitset.BitSet
	srcVec [][]*bitset.BitSet

	wrGlobal *GlobalPending
	rdGlobal *GlobalPending
	gWr, gRd *bitset.BitSet

	destFwd  []*bitset.BitSet
	srcFwd   [][]*bitset.BitSet
	wrHazard *bitset.BitSet
	rdHazard *bitset.BitSet

	destRsel *bitset.BitSet
	srcRsel  []*bitset.BitSet

	srcScratch []bool
}

// NewMatrix creates a matrix for nFU function units, nRes resources, and nSrc
// source operand slots per cell.
func NewMatrix(nFU, nRes, nSrc int) *Matrix {
	if nFU < 1 || nRes < 1 || nSrc < 1 {
		panic(fmt.Sprintf(
			"invalid dependency matrix size %d FUs x %d resources x %d sources",
			nFU, nRes, nSrc))
	}

	m := &Matrix{
		nFU:        nFU,
		nRes:       nRes,
		nSrc:       nSrc,
		cells:      make([]Cell, nFU*nRes),
		wrVec:      makeVecs(nFU, nRes),
		rdVec:      makeVecs(nFU, nRes),
		srcVec:     make([][]*bitset.BitSet, nFU),
		gWr:        bitset.New(uint(nRes)),
		gRd:        bitset.New(uint(nRes)),
		destFwd:    makeVecs(nFU, nRes),
		srcFwd:     make([][]*bitset.BitSet, nFU),
		wrHazard:   bitset.New(uint(nFU)),
		rdHazard:   bitset.New(uint(nFU)),
		destRsel:   bitset.New(uint(nRes)),
		srcRsel:    makeVecs(nSrc, nRes),
		srcScratch: make([]bool, nSrc),
	}

	for i := range m.cells {
		m.cells[i] = newCell(nSrc)
	}

	for fu := 0; fu < nFU; fu++ {
		m.srcVec[fu] = makeVecs(nSrc, nRes)
		m.srcFwd[fu] = makeVecs(nSrc, nRes)
	}

	m.wrGlobal = NewGlobalPending(nRes, m.wrVec)
	m.rdGlobal = NewGlobalPending(nRes, m.rdVec)

	return m
}

// NewMemMatrix creates the memory-address variant of the matrix. The load
// slot takes the place of dest (loads are ordered against pending stores like
// writes against reads) and a single store slot takes the place of the
// sources.
func NewMemMatrix(nFU, nAddr int) *Matrix {
	return NewMatrix(nFU, nAddr, 1)
}

func makeVecs(n, width int) []*bitset.BitSet {
	vecs := make([]*bitset.BitSet, n)
	for i := range vecs {
		vecs[i] = bitset.New(uint(width))
	}

	return vecs
}

// NumFUs returns the number of function units.
func (m *Matrix) NumFUs() int {
	return m.nFU
}

// NumResources returns the number of resources (registers or addresses).
func (m *Matrix) NumResources() int {
	return m.nRes
}

// NumSources returns the number of source operand slots.
func (m *Matrix) NumSources() int {
	return m.nSrc
}

// Cell returns the cell of an FU and a resource.
func (m *Matrix) Cell(fu, res int) *Cell {
	m.mustBeValid(fu, res)
	return &m.cells[fu*m.nRes+res]
}

// Row returns the row of cells sharing one resource.
func (m *Matrix) Row(res int) Row {
	m.mustBeValid(0, res)
	return Row{m: m, res: res}
}

func (m *Matrix) mustBeValid(fu, res int) {
	if fu < 0 || fu >= m.nFU {
		panic(fmt.Sprintf("FU %d out of range [0, %d)", fu, m.nFU))
	}

	if res < 0 || res >= m.nRes {
		panic(fmt.Sprintf("resource %d out of range [0, %d)", res, m.nRes))
	}
}

// Issue stages an instruction on an FU. dest holds the resources written and
// src[i] those read through slot i; either may be nil.
func (m *Matrix) Issue(fu int, dest *bitset.BitSet, src []*bitset.BitSet) {
	if len(src) > m.nSrc {
		panic(fmt.Sprintf("%d source slots given, matrix has %d",
			len(src), m.nSrc))
	}

	for res := 0; res < m.nRes; res++ {
		for i := range m.srcScratch {
			m.srcScratch[i] = i < len(src) && testBit(src[i], res)
		}

		m.Cell(fu, res).Set(testBit(dest, res), m.srcScratch, true)
	}
}

func testBit(b *bitset.BitSet, i int) bool {
	return b != nil && b.Test(uint(i))
}

// Reset stages the go-write, go-read, and go-die signals of an FU.
func (m *Matrix) Reset(fu int, goWrite, goRead, goDie bool) {
	if !goWrite && !goRead && !goDie {
		return
	}

	for res := 0; res < m.nRes; res++ {
		m.Cell(fu, res).Reset(goWrite, goRead, goDie)
	}
}

// Evaluate recomputes every combinational output from the committed cell
// state: the per-FU pending vectors, the global pending vectors, and the
// forward bits.
func (m *Matrix) Evaluate() {
	m.snapshot()

	m.wrGlobal.Reduce().Copy(m.gWr)
	m.rdGlobal.Reduce().Copy(m.gRd)

	for fu := 0; fu < m.nFU; fu++ {
		othersRd := m.rdGlobal.ReduceExcept(fu)
		othersWr := m.wrGlobal.ReduceExcept(fu)

		m.destFwd[fu].ClearAll()
		for i := range m.srcFwd[fu] {
			m.srcFwd[fu][i].ClearAll()
		}

		for res := 0; res < m.nRes; res++ {
			c := &m.cells[fu*m.nRes+res]
			r := uint(res)

			if c.DestFwd(othersRd.Test(r)) {
				m.destFwd[fu].Set(r)
			}

			for i := 0; i < m.nSrc; i++ {
				if c.SrcFwd(i, othersWr.Test(r)) {
					m.srcFwd[fu][i].Set(r)
				}
			}
		}

		m.wrHazard.SetTo(uint(fu), m.destFwd[fu].Any())
		m.rdHazard.SetTo(uint(fu), m.anySrcFwd(fu))
	}
}

func (m *Matrix) snapshot() {
	for fu := 0; fu < m.nFU; fu++ {
		m.wrVec[fu].ClearAll()
		m.rdVec[fu].ClearAll()

		for i := range m.srcVec[fu] {
			m.srcVec[fu][i].ClearAll()
		}

		for res := 0; res < m.nRes; res++ {
			c := &m.cells[fu*m.nRes+res]
			r := uint(res)

			if c.WritePending() {
				m.wrVec[fu].Set(r)
			}

			for i := 0; i < m.nSrc; i++ {
				if c.SourcePending(i) {
					m.srcVec[fu][i].Set(r)
					m.rdVec[fu].Set(r)
				}
			}
		}
	}
}

func (m *Matrix) anySrcFwd(fu int) bool {
	for _, v := range m.srcFwd[fu] {
		if v.Any() {
			return true
		}
	}

	return false
}

// Select computes the register-select lines for the given grants. goRead and
// goWrite are indexed by FU.
func (m *Matrix) Select(goRead, goWrite *bitset.BitSet) {
	for res := 0; res < m.nRes; res++ {
		row := Row{m: m, res: res}
		r := uint(res)

		m.destRsel.SetTo(r, row.DestRsel(goWrite))

		for i := 0; i < m.nSrc; i++ {
			m.srcRsel[i].SetTo(r, row.SrcRsel(i, goRead))
		}
	}
}

// Commit applies every staged cell update.
func (m *Matrix) Commit() {
	for i := range m.cells {
		m.cells[i].Commit()
	}
}

// WriteVector returns the write-pending vector of an FU (v_wr_rsel) as of the
// last Evaluate.
func (m *Matrix) WriteVector(fu int) *bitset.BitSet {
	return m.wrVec[fu]
}

// ReadVector returns the read-pending vector of an FU (v_rd_rsel) as of the
// last Evaluate.
func (m *Matrix) ReadVector(fu int) *bitset.BitSet {
	return m.rdVec[fu]
}

// SourceVector returns the read-pending vector of one source slot of an FU.
func (m *Matrix) SourceVector(fu, slot int) *bitset.BitSet {
	return m.srcVec[fu][slot]
}

// GlobalWritePending returns the OR of every FU's write-pending vector.
func (m *Matrix) GlobalWritePending() *bitset.BitSet {
	return m.gWr
}

// GlobalReadPending returns the OR of every FU's read-pending vector.
func (m *Matrix) GlobalReadPending() *bitset.BitSet {
	return m.gRd
}

// DestFwd returns, per resource, whether the FU's write waits on a read by
// another FU.
func (m *Matrix) DestFwd(fu int) *bitset.BitSet {
	return m.destFwd[fu]
}

// SrcFwd returns, per resource, whether the FU's read through a slot waits on
// a write by another FU.
func (m *Matrix) SrcFwd(fu, slot int) *bitset.BitSet {
	return m.srcFwd[fu][slot]
}

// WriteHazards returns, per FU, whether any of its dest forward bits is set.
func (m *Matrix) WriteHazards() *bitset.BitSet {
	return m.wrHazard
}

// ReadHazards returns, per FU, whether any of its src forward bits is set.
func (m *Matrix) ReadHazards() *bitset.BitSet {
	return m.rdHazard
}

// DestRsel returns the write register-select lines from the last Select.
func (m *Matrix) DestRsel() *bitset.BitSet {
	return m.destRsel
}

// SrcRsel returns the read register-select lines of a slot from the last
// Select.
func (m *Matrix) SrcRsel(slot int) *bitset.BitSet {
	return m.srcRsel[slot]
}
