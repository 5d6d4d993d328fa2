// Package dep implements the dependency matrices of a 6600-style scoreboard.
//
// A dependency cell sits at the crossing of one function unit (FU) and one
// resource. It latches whether the FU still intends to write the resource
// (dest) and, per source operand slot, whether it still intends to read it.
// Cells are grouped into rows (all FUs sharing one resource) and rows into
// matrices. Global pending vectors, the OR of every FU's pending bits, are fed
// back into the cells to produce the forward (hazard) outputs.
//
// All state is two-phase: hazard outputs are computed from committed latch
// values only, and every update staged during a cycle becomes visible after
// Commit.
package dep

import "github.com/sarchlab/scoreboard/latch"

// Cell is the dependency cell of one (FU, resource) pair.
type Cell struct {
	dest latch.SR
	src  []latch.SR
}

func newCell(nSrc int) Cell {
	return Cell{src: make([]latch.SR, nSrc)}
}

// NumSources returns the number of source operand slots.
func (c *Cell) NumSources() int {
	return len(c.src)
}

// Set latches the resource as a destination and as each flagged source when
// issue is high.
func (c *Cell) Set(dest bool, src []bool, issue bool) {
	if !issue {
		return
	}

	c.dest.SetIf(dest)

	for i, s := range src {
		c.src[i].SetIf(s)
	}
}

// Reset clears the write-pending latch on go-write or go-die and every
// read-pending latch on go-read or go-die.
func (c *Cell) Reset(goWrite, goRead, goDie bool) {
	c.dest.ResetIf(goWrite || goDie)

	for i := range c.src {
		c.src[i].ResetIf(goRead || goDie)
	}
}

// WritePending returns the committed write-pending bit (v_wr_rsel).
func (c *Cell) WritePending() bool {
	return c.dest.Qlq()
}

// SourcePending returns the committed read-pending bit of one slot.
func (c *Cell) SourcePending(slot int) bool {
	return c.src[slot].Qlq()
}

// ReadPending returns the OR of every read-pending slot (v_rd_rsel).
func (c *Cell) ReadPending() bool {
	for i := range c.src {
		if c.src[i].Qlq() {
			return true
		}
	}

	return false
}

// DestFwd reports a write that must wait for another FU's read.
func (c *Cell) DestFwd(globalReadPending bool) bool {
	return c.dest.Qlq() && globalReadPending
}

// SrcFwd reports a read that must wait for another FU's write.
func (c *Cell) SrcFwd(slot int, globalWritePending bool) bool {
	return c.src[slot].Qlq() && globalWritePending
}

// DestRsel selects the resource for writing. Only valid on a grant.
func (c *Cell) DestRsel(goWrite bool) bool {
	return c.dest.Qlq() && goWrite
}

// SrcRsel selects the resource for reading through a slot. Only valid on a
// grant.
func (c *Cell) SrcRsel(slot int, goRead bool) bool {
	return c.src[slot].Qlq() && goRead
}

// Commit applies the staged updates.
func (c *Cell) Commit() {
	c.dest.Commit()

	for i := range c.src {
		c.src[i].Commit()
	}
}
