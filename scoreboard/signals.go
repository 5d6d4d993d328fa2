package scoreboard

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// Inputs holds the boundary signals sampled at one cycle. Every field is
// valid for a single cycle only; vectors indexed by FU have the FU count as
// width, per-FU operand masks have the register count as width.
type Inputs struct {
	// Issue marks the FUs that accept a new instruction this cycle.
	Issue *bitset.BitSet
	// Dest[fu] marks the registers written by the instruction issued on fu.
	Dest []*bitset.BitSet
	// Src[fu][slot] marks the registers read through each source slot.
	Src [][]*bitset.BitSet

	// RdRel marks the FUs ready to read their operands.
	RdRel *bitset.BitSet
	// ReqRel marks the FUs holding a result and requesting to write it.
	ReqRel *bitset.BitSet
	// GoDie cancels FUs unconditionally.
	GoDie *bitset.BitSet

	// Shadow[fu] marks the shadows the instruction issued on fu is under.
	Shadow []*bitset.BitSet
	// ShadowGood and ShadowFail resolve shadows, broadcast to every FU.
	ShadowGood *bitset.BitSet
	ShadowFail *bitset.BitSet
	// ShadowGoodFU[fu] and ShadowFailFU[fu] resolve shadows of a single FU,
	// as a branch speculation record does.
	ShadowGoodFU []*bitset.BitSet
	ShadowFailFU []*bitset.BitSet

	// Load and Store mark the kind of memory instruction issued on each FU.
	Load  *bitset.BitSet
	Store *bitset.BitSet
	// LoadHit[h] and StoreHit[h] mark the FUs whose load, or store with
	// data, matches FU h's address.
	LoadHit  []*bitset.BitSet
	StoreHit []*bitset.BitSet
	// LoadAddr[fu] and StoreAddr[fu] mark the address lines accessed by the
	// memory instruction issued on fu. Only used with a memory matrix.
	LoadAddr  []*bitset.BitSet
	StoreAddr []*bitset.BitSet

	nRegs int
}

// NewInputs allocates an all-zero input set sized for the scoreboard.
func (s *Scoreboard) NewInputs() *Inputs {
	n := uint(s.nFU)
	w := uint(s.nReg)

	in := &Inputs{
		Issue:      bitset.New(n),
		Dest:       make([]*bitset.BitSet, s.nFU),
		Src:        make([][]*bitset.BitSet, s.nFU),
		RdRel:      bitset.New(n),
		ReqRel:     bitset.New(n),
		GoDie:      bitset.New(n),
		Shadow:     make([]*bitset.BitSet, s.nFU),
		ShadowGood: bitset.New(uint(s.nShadow)),
		ShadowFail: bitset.New(uint(s.nShadow)),
		Load:       bitset.New(n),
		Store:      bitset.New(n),
		LoadHit:    make([]*bitset.BitSet, s.nFU),
		StoreHit:   make([]*bitset.BitSet, s.nFU),

		ShadowGoodFU: make([]*bitset.BitSet, s.nFU),
		ShadowFailFU: make([]*bitset.BitSet, s.nFU),
		LoadAddr:     make([]*bitset.BitSet, s.nFU),
		StoreAddr:    make([]*bitset.BitSet, s.nFU),
	}

	for fu := 0; fu < s.nFU; fu++ {
		in.Dest[fu] = bitset.New(w)
		in.Src[fu] = make([]*bitset.BitSet, s.nSrc)

		for slot := range in.Src[fu] {
			in.Src[fu][slot] = bitset.New(w)
		}

		in.Shadow[fu] = bitset.New(uint(s.nShadow))
		in.ShadowGoodFU[fu] = bitset.New(uint(s.nShadow))
		in.ShadowFailFU[fu] = bitset.New(uint(s.nShadow))
		in.LoadHit[fu] = bitset.New(n)
		in.StoreHit[fu] = bitset.New(n)
		in.LoadAddr[fu] = bitset.New(uint(s.nAddr))
		in.StoreAddr[fu] = bitset.New(uint(s.nAddr))
	}

	in.nRegs = s.nReg

	return in
}

// Clear resets every signal to zero so that the input set can be reused for
// the next cycle.
func (in *Inputs) Clear() {
	for _, b := range []*bitset.BitSet{
		in.Issue, in.RdRel, in.ReqRel, in.GoDie,
		in.ShadowGood, in.ShadowFail, in.Load, in.Store,
	} {
		b.ClearAll()
	}

	for fu := range in.Dest {
		in.Dest[fu].ClearAll()

		for _, s := range in.Src[fu] {
			s.ClearAll()
		}

		in.Shadow[fu].ClearAll()
		in.ShadowGoodFU[fu].ClearAll()
		in.ShadowFailFU[fu].ClearAll()
		in.LoadHit[fu].ClearAll()
		in.StoreHit[fu].ClearAll()
		in.LoadAddr[fu].ClearAll()
		in.StoreAddr[fu].ClearAll()
	}
}

// IssueOp issues an instruction on fu writing dest and reading srcs, one
// register per source slot. A negative register leaves the operand unused.
func (in *Inputs) IssueOp(fu, dest int, srcs ...int) {
	if len(srcs) > len(in.Src[fu]) {
		panic(fmt.Sprintf("%d sources given, scoreboard has %d slots",
			len(srcs), len(in.Src[fu])))
	}

	in.Issue.Set(uint(fu))

	if dest >= 0 {
		in.Dest[fu].Set(in.reg(dest))
	}

	for slot, r := range srcs {
		if r >= 0 {
			in.Src[fu][slot].Set(in.reg(r))
		}
	}
}

// IssueLoad marks the instruction issued on fu as a load from addr. The
// address is folded onto the address lines of the memory matrix, if any.
func (in *Inputs) IssueLoad(fu int, addr uint64) {
	in.Load.Set(uint(fu))
	setLine(in.LoadAddr[fu], addr)
}

// IssueStore marks the instruction issued on fu as a store to addr.
func (in *Inputs) IssueStore(fu int, addr uint64) {
	in.Store.Set(uint(fu))
	setLine(in.StoreAddr[fu], addr)
}

func setLine(lines *bitset.BitSet, addr uint64) {
	if n := uint64(lines.Len()); n > 0 {
		lines.Set(uint(addr % n))
	}
}

func (in *Inputs) reg(r int) uint {
	if in.nRegs > 0 && r >= in.nRegs {
		panic(fmt.Sprintf("register %d out of range [0, %d)", r, in.nRegs))
	}

	return uint(r)
}

// Outputs holds the signals produced by one cycle. The scoreboard reuses the
// same Outputs for every step.
type Outputs struct {
	// Cycle is the index of the cycle that produced these outputs.
	Cycle uint64

	// GoRd and GoWr are the grants, one-hot or zero.
	GoRd *bitset.BitSet
	GoWr *bitset.BitSet
	// GoDie is the effective cancellation, external or from a failed shadow.
	GoDie *bitset.BitSet
	// Issued echoes the FUs that accepted an instruction.
	Issued *bitset.BitSet

	// Readable and Writable are the hazard-free masks fed to the picker.
	Readable *bitset.BitSet
	Writable *bitset.BitSet
	// Shadowed marks the FUs held by an unresolved shadow.
	Shadowed *bitset.BitSet

	// WrHazard marks the FUs with a dest forward bit set; RdHazard those
	// with a src forward bit set.
	WrHazard *bitset.BitSet
	RdHazard *bitset.BitSet

	// DestRsel and SrcRsel are the register-select lines of the grants.
	DestRsel *bitset.BitSet
	SrcRsel  []*bitset.BitSet

	// GlobalWrPend and GlobalRdPend are the OR of every FU's pending
	// vectors at the start of the cycle.
	GlobalWrPend *bitset.BitSet
	GlobalRdPend *bitset.BitSet

	// LdHoldSt and StHoldLd are the load/store ordering holds.
	LdHoldSt *bitset.BitSet
	StHoldLd *bitset.BitSet

	// LdFwd marks the FUs whose pending load shares an address line with
	// another FU's pending store; StFwd the reverse.
	LdFwd *bitset.BitSet
	StFwd *bitset.BitSet
	// LdRsel and StRsel are the address lines selected by the write grant.
	LdRsel *bitset.BitSet
	StRsel *bitset.BitSet
}

func newOutputs(nFU, nReg, nSrc, nAddr int) Outputs {
	n := uint(nFU)
	w := uint(nReg)
	a := uint(nAddr)

	out := Outputs{
		GoRd:         bitset.New(n),
		GoWr:         bitset.New(n),
		GoDie:        bitset.New(n),
		Issued:       bitset.New(n),
		Readable:     bitset.New(n),
		Writable:     bitset.New(n),
		Shadowed:     bitset.New(n),
		WrHazard:     bitset.New(n),
		RdHazard:     bitset.New(n),
		DestRsel:     bitset.New(w),
		SrcRsel:      make([]*bitset.BitSet, nSrc),
		GlobalWrPend: bitset.New(w),
		GlobalRdPend: bitset.New(w),
		LdHoldSt:     bitset.New(n),
		StHoldLd:     bitset.New(n),
		LdFwd:        bitset.New(n),
		StFwd:        bitset.New(n),
		LdRsel:       bitset.New(a),
		StRsel:       bitset.New(a),
	}

	for i := range out.SrcRsel {
		out.SrcRsel[i] = bitset.New(w)
	}

	return out
}

// GrantedRead returns the FU granted a read, or -1.
func (o *Outputs) GrantedRead() int {
	return lowest(o.GoRd)
}

// GrantedWrite returns the FU granted a write, or -1.
func (o *Outputs) GrantedWrite() int {
	return lowest(o.GoWr)
}

func lowest(b *bitset.BitSet) int {
	if i, ok := b.NextSet(0); ok {
		return int(i)
	}

	return -1
}
