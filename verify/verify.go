// Package verify checks programs and scoreboard runs for ordering violations.
//
// It has two complementary stages:
//
// 1. Static Lint (lint.go): analyzes a program before it runs
//   - STRUCT checks: shadows that no earlier instruction can open, shadows
//     reopened while still in flight, memory operations on the same address
//     without the load/store matrix
//   - Dependence extraction: every RAW, WAR and WAW pair the scoreboard is
//     expected to serialize
//
// 2. Monitor (monitor.go): an akita hook attached to a core
//   - GRANT checks: at most one read and one write grant per cycle, only to
//     requesting, hazard-free units
//   - PENDING checks: a write-pending bit only clears on go-write or go-die
//   - ORDER checks: after the run, every extracted dependence is compared
//     with the cycles at which the instructions issued, read, and retired
//
// # Usage Example
//
//	p, _ := config.Load("platform.yaml")
//	prog := p.CoreProgram()
//
//	issues := verify.RunLint(prog, p.Shadows, p.LDST)
//
//	c := core.NewBuilder()...Build("Core")
//	m := verify.NewMonitor(c.Scoreboard(), prog)
//	c.AcceptHook(m)
//	c.Load(prog)
//	engine.Run()
//
//	report := verify.GenerateReport(prog, issues, m)
//	report.WriteReport(os.Stdout)
package verify

import "fmt"

// IssueType categorizes issues.
type IssueType string

const (
	IssueStruct  IssueType = "STRUCT"  // Program structure that cannot work as written
	IssueGrant   IssueType = "GRANT"   // Grant given against the arbitration rules
	IssuePending IssueType = "PENDING" // Pending bit lost without go-write or go-die
	IssueOrder   IssueType = "ORDER"   // Dependence resolved in the wrong order
)

// Issue represents a single finding.
type Issue struct {
	Type    IssueType
	Cycle   int64 // Cycle (-1 for static issues)
	OpID    int   // Instruction index in the program or -1
	Message string
	Details map[string]interface{}
}

func (i Issue) String() string {
	loc := "static"
	if i.Cycle >= 0 {
		loc = fmt.Sprintf("cycle %d", i.Cycle)
	}

	if i.OpID >= 0 {
		loc += fmt.Sprintf(" op=%d", i.OpID)
	}

	return fmt.Sprintf("[%s %s] %s", i.Type, loc, i.Message)
}

// DepKind is the kind of a register dependence.
type DepKind string

const (
	RAW DepKind = "RAW"
	WAR DepKind = "WAR"
	WAW DepKind = "WAW"
)

// Dependence is an ordering the scoreboard must enforce between two
// instructions of a program. Producer comes first in program order.
type Dependence struct {
	Kind     DepKind
	Producer int
	Consumer int
	Reg      int
}

func (d Dependence) String() string {
	return fmt.Sprintf("%s r%d: op %d -> op %d", d.Kind, d.Reg, d.Producer, d.Consumer)
}
