// Package core wraps a scoreboard in an akita ticking component that issues
// an instruction stream onto latency-modelled function units.
package core

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/scoreboard/issue"
	"github.com/sarchlab/scoreboard/scoreboard"
	"github.com/sarchlab/scoreboard/shadow"
)

// HookPosIssue marks an instruction entering the scoreboard.
var HookPosIssue = &sim.HookPos{Name: "Issue"}

// HookPosGrant marks an instruction granted its operand read.
var HookPosGrant = &sim.HookPos{Name: "Grant"}

// HookPosRetire marks an instruction granted its result write.
var HookPosRetire = &sim.HookPos{Name: "Retire"}

// HookPosDie marks an instruction cancelled by go-die.
var HookPosDie = &sim.HookPos{Name: "Die"}

// HookPosStep marks the end of a scoreboard cycle. The item is the
// scoreboard's outputs for the cycle.
var HookPosStep = &sim.HookPos{Name: "Step"}

type fuState int

const (
	fuIdle fuState = iota
	fuWaitRead
	fuExec
	fuWaitWrite
)

func (s fuState) String() string {
	return [...]string{"Idle", "WaitRead", "Exec", "WaitWrite"}[s]
}

type funcUnit struct {
	name  string
	unit  ExecUnit
	inst  *Instruction
	state fuState
}

// Stats counts what happened over a run.
type Stats struct {
	Cycles    uint64
	Issued    uint64
	Retired   uint64
	Squashed  uint64
	WAWStalls uint64
	FUStalls  uint64
}

// Core feeds a program through a scoreboard one cycle per tick.
type Core struct {
	*sim.TickingComponent

	sb     *scoreboard.Scoreboard
	in     *scoreboard.Inputs
	issuer *issue.Unit
	fus    []*funcUnit

	queue []*Instruction

	flush   *bitset.BitSet
	insn    *bitset.BitSet
	gWrPend *bitset.BitSet
	open    *bitset.BitSet

	// specs[s] records which way each FU issued under shadow s expects its
	// resolver to go.
	specs       []*shadow.SpecRecord
	resolveNext *bitset.BitSet
	takenNext   *bitset.BitSet
	failNext    *bitset.BitSet

	stats Stats
}

// Scoreboard returns the scoreboard driven by the core.
func (c *Core) Scoreboard() *scoreboard.Scoreboard {
	return c.sb
}

// NumFUs returns the number of function units.
func (c *Core) NumFUs() int {
	return len(c.fus)
}

// FUName returns the name of a function unit.
func (c *Core) FUName(fu int) string {
	return c.fus[fu].name
}

// FUIndex returns the index of the function unit with the given name.
func (c *Core) FUIndex(name string) (int, bool) {
	for i, f := range c.fus {
		if f.name == name {
			return i, true
		}
	}

	return -1, false
}

// Stats returns the counters collected so far.
func (c *Core) Stats() Stats {
	return c.stats
}

// Load appends a program to the instruction queue and wakes the core up.
func (c *Core) Load(prog Program) {
	for _, inst := range prog.Instructions {
		c.mustBeIssuable(inst)
	}

	c.queue = append(c.queue, prog.Instructions...)
	c.TickLater()
}

func (c *Core) mustBeIssuable(inst *Instruction) {
	if inst.FU < 0 || inst.FU >= len(c.fus) {
		panic(fmt.Sprintf("instruction %s: no FU %d", inst, inst.FU))
	}

	if len(inst.Srcs) > c.sb.NumSrcs() {
		panic(fmt.Sprintf("instruction %s: %d sources, only %d slots",
			inst, len(inst.Srcs), c.sb.NumSrcs()))
	}

	if inst.Dest >= c.sb.NumRegs() {
		panic(fmt.Sprintf("instruction %s: no register %d", inst, inst.Dest))
	}

	for _, r := range inst.Srcs {
		if r >= c.sb.NumRegs() {
			panic(fmt.Sprintf("instruction %s: no register %d", inst, r))
		}
	}

	if inst.Resolve >= c.sb.ShadowWidth() {
		panic(fmt.Sprintf("instruction %s: no shadow %d", inst, inst.Resolve))
	}

	for _, s := range inst.Shadows {
		if s < 0 || s >= c.sb.ShadowWidth() {
			panic(fmt.Sprintf("instruction %s: no shadow %d", inst, s))
		}
	}
}

// Flush cancels the instruction on a function unit at the next tick. An idle
// unit is left alone.
func (c *Core) Flush(fu int) {
	c.flush.Set(uint(fu))
	c.TickLater()
}

// Done reports whether every instruction has either retired or been squashed.
func (c *Core) Done() bool {
	if len(c.queue) > 0 {
		return false
	}

	for _, f := range c.fus {
		if f.state != fuIdle {
			return false
		}
	}

	return true
}

// Tick runs one scoreboard cycle.
func (c *Core) Tick() (madeProgress bool) {
	if c.Done() {
		return false
	}

	c.in.Clear()

	c.applyFlushes()
	c.applyResolutions()
	c.requestGrants()

	if c.sb.NumMemAddrs() == 0 {
		c.matchAddresses()
	}

	c.tryIssue()

	out := c.sb.Step(c.in)
	c.stats.Cycles++

	c.advance(out)

	for _, r := range c.specs {
		r.Commit()
	}

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosStep,
		Item:   out,
	})

	PrintState(c)

	if c.Done() {
		LogState(c)
	}

	return true
}

func (c *Core) applyFlushes() {
	for i, f := range c.fus {
		if c.flush.Test(uint(i)) && f.state != fuIdle {
			c.in.GoDie.Set(uint(i))
		}
	}

	c.flush.ClearAll()
}

// applyResolutions delivers the outcomes of the resolvers that finished last
// cycle. Each FU in a resolved shadow gets a good or a fail result depending
// on whether the path it was issued on was the one taken.
func (c *Core) applyResolutions() {
	c.failNext.Copy(c.in.ShadowFail)
	c.failNext.ClearAll()

	for s, ok := c.resolveNext.NextSet(0); ok; s, ok = c.resolveNext.NextSet(s + 1) {
		good, fail := c.specs[s].Resolve(c.takenNext.Test(s))

		for fu, more := good.NextSet(0); more; fu, more = good.NextSet(fu + 1) {
			c.in.ShadowGoodFU[fu].Set(s)
		}

		for fu, more := fail.NextSet(0); more; fu, more = fail.NextSet(fu + 1) {
			c.in.ShadowFailFU[fu].Set(s)
		}
	}

	c.resolveNext.ClearAll()
	c.takenNext.ClearAll()
}

func (c *Core) requestGrants() {
	for i, f := range c.fus {
		switch f.state {
		case fuWaitRead:
			c.in.RdRel.Set(uint(i))
		case fuWaitWrite:
			c.in.ReqRel.Set(uint(i))
		}
	}
}

// matchAddresses compares the address of every in-flight memory operation
// against the others.
func (c *Core) matchAddresses() {
	for h, fh := range c.fus {
		if fh.inst == nil || !fh.inst.IsMemory() {
			continue
		}

		for v, fv := range c.fus {
			if v == h || fv.inst == nil || fv.inst.Addr != fh.inst.Addr {
				continue
			}

			if fv.inst.Load {
				c.in.LoadHit[h].Set(uint(v))
			}

			if fv.inst.Store {
				c.in.StoreHit[h].Set(uint(v))
			}
		}
	}
}

func (c *Core) tryIssue() {
	if len(c.queue) == 0 {
		return
	}

	inst := c.queue[0]

	c.insn.ClearAll()
	c.insn.Set(uint(inst.FU))
	c.sb.GlobalWritePending(c.gWrPend)

	if !c.issuer.Evaluate(c.insn, inst.Dest, inst.Store, c.gWrPend, c.sb.BusyFUs()) {
		c.countStall()
		return
	}

	c.queue = c.queue[1:]

	fnIssue := c.issuer.FnIssue()
	for u, ok := fnIssue.NextSet(0); ok; u, ok = fnIssue.NextSet(u + 1) {
		c.issueOn(int(u), inst)
	}

	if inst.Resolve >= 0 {
		c.open.Set(uint(inst.Resolve))
		c.specs[inst.Resolve].Activate()
	}

	f := c.fus[inst.FU]
	f.inst = inst
	f.state = fuWaitRead
	c.stats.Issued++

	Trace("Issue",
		"Time", float64(c.Engine.CurrentTime()*1e9),
		"Cycle", c.sb.Cycle(),
		"FU", f.name,
		"ID", inst.ID.String(),
		"Inst", inst.String(),
	)

	c.invoke(HookPosIssue, inst)
}

func (c *Core) issueOn(fu int, inst *Instruction) {
	c.in.IssueOp(fu, inst.Dest, inst.Srcs...)

	for _, s := range inst.Shadows {
		if !c.open.Test(uint(s)) {
			continue
		}

		c.in.Shadow[fu].Set(uint(s))

		if inst.Predict {
			c.specs[s].Record(c.insn, nil)
		} else {
			c.specs[s].Record(nil, c.insn)
		}
	}

	if inst.Load {
		c.in.IssueLoad(fu, inst.Addr)
	}

	if inst.Store {
		c.in.IssueStore(fu, inst.Addr)
	}
}

func (c *Core) countStall() {
	if c.issuer.WAWStall() {
		c.stats.WAWStalls++
	}

	if c.issuer.FUStall() {
		c.stats.FUStalls++
	}
}

func (c *Core) advance(out *scoreboard.Outputs) {
	for i, f := range c.fus {
		u := uint(i)

		switch {
		case out.GoDie.Test(u):
			c.squash(i, f)
		case out.GoWr.Test(u):
			c.retire(f)
		case out.GoRd.Test(u):
			c.startExec(f)
		case f.state == fuExec:
			c.execute(f)
		}
	}
}

func (c *Core) squash(fu int, f *funcUnit) {
	if f.state == fuIdle {
		return
	}

	inst := f.inst
	f.unit.Flush()
	c.free(f)
	c.stats.Squashed++

	for _, r := range c.specs {
		r.Forget(fu)
	}

	// A cancelled resolver fails its whole shadow.
	if r := inst.Resolve; r >= 0 && c.open.Test(uint(r)) {
		c.failNext.Set(uint(r))
		c.open.Clear(uint(r))
		c.specs[r].Cancel()
	}

	Trace("Die",
		"Time", float64(c.Engine.CurrentTime()*1e9),
		"FU", f.name,
		"ID", inst.ID.String(),
	)

	c.invoke(HookPosDie, inst)
}

func (c *Core) retire(f *funcUnit) {
	inst := f.inst
	c.free(f)
	c.stats.Retired++

	Trace("Retire",
		"Time", float64(c.Engine.CurrentTime()*1e9),
		"FU", f.name,
		"ID", inst.ID.String(),
	)

	c.invoke(HookPosRetire, inst)
}

func (c *Core) startExec(f *funcUnit) {
	f.unit.Start(f.inst)
	f.state = fuExec

	Trace("Grant",
		"Time", float64(c.Engine.CurrentTime()*1e9),
		"FU", f.name,
		"ID", f.inst.ID.String(),
	)

	c.invoke(HookPosGrant, f.inst)
}

func (c *Core) execute(f *funcUnit) {
	if !f.unit.Tick() {
		return
	}

	f.state = fuWaitWrite

	if r := f.inst.Resolve; r >= 0 {
		c.resolveNext.Set(uint(r))
		c.takenNext.SetTo(uint(r), f.inst.Taken)
		c.open.Clear(uint(r))
	}
}

func (c *Core) free(f *funcUnit) {
	f.inst = nil
	f.state = fuIdle
}

func (c *Core) invoke(pos *sim.HookPos, item interface{}) {
	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   item,
	})
}
