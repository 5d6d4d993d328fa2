package dep

import "github.com/bits-and-blooms/bitset"

// Row groups the cells of every FU that share one resource.
type Row struct {
	m   *Matrix
	res int
}

// Resource returns the resource index of the row.
func (r Row) Resource() int {
	return r.res
}

// Cell returns the cell of an FU in this row.
func (r Row) Cell(fu int) *Cell {
	return r.m.Cell(fu, r.res)
}

func (r Row) cell(fu int) *Cell {
	return &r.m.cells[fu*r.m.nRes+r.res]
}

// WritePending reports whether any FU, other than skip, has a write pending
// on the resource. Pass -1 to include every FU.
func (r Row) WritePending(skip int) bool {
	for fu := 0; fu < r.m.nFU; fu++ {
		if fu != skip && r.cell(fu).WritePending() {
			return true
		}
	}

	return false
}

// ReadPending reports whether any FU, other than skip, has a read pending on
// the resource. Pass -1 to include every FU.
func (r Row) ReadPending(skip int) bool {
	for fu := 0; fu < r.m.nFU; fu++ {
		if fu != skip && r.cell(fu).ReadPending() {
			return true
		}
	}

	return false
}

// DestFwd reports whether the FU's pending write must wait for a read by any
// other FU.
func (r Row) DestFwd(fu int) bool {
	return r.Cell(fu).DestFwd(r.ReadPending(fu))
}

// SrcFwd reports whether the FU's pending read through a slot must wait for a
// write by any other FU.
func (r Row) SrcFwd(fu, slot int) bool {
	return r.Cell(fu).SrcFwd(slot, r.WritePending(fu))
}

// WriteFUs writes into dst the set of FUs with a write pending on the
// resource.
func (r Row) WriteFUs(dst *bitset.BitSet) {
	dst.ClearAll()

	for fu := 0; fu < r.m.nFU; fu++ {
		if r.cell(fu).WritePending() {
			dst.Set(uint(fu))
		}
	}
}

// ReadFUs writes into dst the set of FUs with a read pending on the resource.
func (r Row) ReadFUs(dst *bitset.BitSet) {
	dst.ClearAll()

	for fu := 0; fu < r.m.nFU; fu++ {
		if r.cell(fu).ReadPending() {
			dst.Set(uint(fu))
		}
	}
}

// DestRsel reports whether a granted FU writes the resource this cycle.
func (r Row) DestRsel(goWrite *bitset.BitSet) bool {
	for fu := 0; fu < r.m.nFU; fu++ {
		if r.cell(fu).DestRsel(goWrite.Test(uint(fu))) {
			return true
		}
	}

	return false
}

// SrcRsel reports whether a granted FU reads the resource through a slot this
// cycle.
func (r Row) SrcRsel(slot int, goRead *bitset.BitSet) bool {
	for fu := 0; fu < r.m.nFU; fu++ {
		if r.cell(fu).SrcRsel(slot, goRead.Test(uint(fu))) {
			return true
		}
	}

	return false
}
