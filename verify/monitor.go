package verify

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/scoreboard/core"
	"github.com/sarchlab/scoreboard/scoreboard"
)

type timeline struct {
	issue, grant, retire, die int64
}

func (t timeline) squashed() bool {
	return t.die >= 0
}

// Monitor is an akita hook that checks a core's scoreboard while it runs.
type Monitor struct {
	sb   *scoreboard.Scoreboard
	prog core.Program
	ops  map[*core.Instruction]int

	cycle int64
	times []timeline
	wasWr [][]bool

	issues []Issue
}

// NewMonitor creates a monitor for a scoreboard running a program.
func NewMonitor(sb *scoreboard.Scoreboard, prog core.Program) *Monitor {
	m := &Monitor{
		sb:    sb,
		prog:  prog,
		ops:   make(map[*core.Instruction]int, len(prog.Instructions)),
		times: make([]timeline, len(prog.Instructions)),
		wasWr: make([][]bool, sb.NumFUs()),
	}

	for i, inst := range prog.Instructions {
		m.ops[inst] = i
		m.times[i] = timeline{issue: -1, grant: -1, retire: -1, die: -1}
	}

	for fu := range m.wasWr {
		m.wasWr[fu] = make([]bool, sb.NumRegs())
	}

	return m
}

// Func records a hook event.
func (m *Monitor) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case core.HookPosStep:
		m.checkStep(ctx.Item.(*scoreboard.Outputs))
		m.cycle++
	case core.HookPosIssue:
		m.mark(ctx.Item, func(t *timeline) { t.issue = m.cycle })
	case core.HookPosGrant:
		m.mark(ctx.Item, func(t *timeline) { t.grant = m.cycle })
	case core.HookPosRetire:
		m.mark(ctx.Item, func(t *timeline) { t.retire = m.cycle })
	case core.HookPosDie:
		m.mark(ctx.Item, func(t *timeline) { t.die = m.cycle })
	}
}

func (m *Monitor) mark(item interface{}, set func(t *timeline)) {
	inst, ok := item.(*core.Instruction)
	if !ok {
		return
	}

	if op, ok := m.ops[inst]; ok {
		set(&m.times[op])
	}
}

func (m *Monitor) checkStep(out *scoreboard.Outputs) {
	if n := out.GoRd.Count(); n > 1 {
		m.report(IssueGrant, -1, fmt.Sprintf("%d read grants", n), nil)
	}

	if n := out.GoWr.Count(); n > 1 {
		m.report(IssueGrant, -1, fmt.Sprintf("%d write grants", n), nil)
	}

	if !out.Readable.IsSuperSet(out.GoRd) {
		m.report(IssueGrant, -1,
			fmt.Sprintf("read granted to blocked FU %d", out.GrantedRead()), nil)
	}

	if !out.Writable.IsSuperSet(out.GoWr) {
		m.report(IssueGrant, -1,
			fmt.Sprintf("write granted to blocked FU %d", out.GrantedWrite()), nil)
	}

	for fu := range m.wasWr {
		u := uint(fu)
		released := out.GoWr.Test(u) || out.GoDie.Test(u)

		for reg := range m.wasWr[fu] {
			now := m.sb.WritePending(fu, reg)

			if m.wasWr[fu][reg] && !now && !released {
				m.report(IssuePending, -1,
					fmt.Sprintf("FU %d lost its pending write of r%d", fu, reg),
					map[string]interface{}{"fu": fu, "reg": reg})
			}

			m.wasWr[fu][reg] = now
		}
	}
}

func (m *Monitor) report(t IssueType, op int, msg string, details map[string]interface{}) {
	m.issues = append(m.issues, Issue{
		Type:    t,
		Cycle:   m.cycle,
		OpID:    op,
		Message: msg,
		Details: details,
	})
}

// Cycles returns the number of cycles observed.
func (m *Monitor) Cycles() int64 {
	return m.cycle
}

// CheckOrder compares the observed timelines with the dependences of the
// program. Dependences involving a squashed instruction are skipped.
func (m *Monitor) CheckOrder() {
	for _, d := range Dependences(m.prog) {
		p, c := m.times[d.Producer], m.times[d.Consumer]

		if p.squashed() || c.squashed() || c.issue < 0 {
			continue
		}

		var before, after int64

		switch d.Kind {
		case RAW:
			before, after = p.retire, c.grant
		case WAR:
			before, after = p.grant, c.retire
		case WAW:
			before, after = p.retire, c.issue
		}

		if before < 0 || after < 0 || after > before {
			continue
		}

		m.issues = append(m.issues, Issue{
			Type:    IssueOrder,
			Cycle:   after,
			OpID:    d.Consumer,
			Message: fmt.Sprintf("%s not honoured", d),
			Details: map[string]interface{}{
				"producer_cycle": before,
				"consumer_cycle": after,
			},
		})
	}
}

// Issues returns everything found so far.
func (m *Monitor) Issues() []Issue {
	return m.issues
}

// Retired returns how many instructions of the program retired.
func (m *Monitor) Retired() int {
	n := 0

	for _, t := range m.times {
		if t.retire >= 0 {
			n++
		}
	}

	return n
}

// Squashed returns how many instructions of the program were cancelled.
func (m *Monitor) Squashed() int {
	n := 0

	for _, t := range m.times {
		if t.squashed() {
			n++
		}
	}

	return n
}

// Err returns an error summarizing the issues, or nil.
func (m *Monitor) Err() error {
	if len(m.issues) == 0 {
		return nil
	}

	return fmt.Errorf("%d scoreboard issues, first: %s", len(m.issues), m.issues[0])
}
