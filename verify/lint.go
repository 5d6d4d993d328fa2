package verify

import (
	"fmt"

	"github.com/sarchlab/scoreboard/core"
)

// Dependences returns the register dependences of a program: each read
// depends on the nearest earlier write of its register (RAW), each write on
// the reads since the previous write (WAR) and on the previous write itself
// (WAW).
func Dependences(prog core.Program) []Dependence {
	var deps []Dependence

	lastWrite := make(map[int]int)
	readsSince := make(map[int][]int)

	for i, inst := range prog.Instructions {
		seen := make(map[int]bool)

		for _, r := range inst.Srcs {
			if r < 0 || seen[r] {
				continue
			}
			seen[r] = true

			if w, ok := lastWrite[r]; ok {
				deps = append(deps, Dependence{Kind: RAW, Producer: w, Consumer: i, Reg: r})
			}
		}

		if d := inst.Dest; d >= 0 && !inst.Store {
			for _, rd := range readsSince[d] {
				if rd != i {
					deps = append(deps, Dependence{Kind: WAR, Producer: rd, Consumer: i, Reg: d})
				}
			}

			if w, ok := lastWrite[d]; ok {
				deps = append(deps, Dependence{Kind: WAW, Producer: w, Consumer: i, Reg: d})
			}
		}

		for r := range seen {
			readsSince[r] = append(readsSince[r], i)
		}

		if d := inst.Dest; d >= 0 && !inst.Store {
			lastWrite[d] = i
			readsSince[d] = nil
		}
	}

	return deps
}

// RunLint performs static checks on a program for a scoreboard with the
// given shadow width, with or without the load/store matrix.
func RunLint(prog core.Program, shadows int, ldst bool) []Issue {
	var issues []Issue

	issues = append(issues, lintShadows(prog, shadows)...)

	if !ldst {
		issues = append(issues, lintMemory(prog)...)
	}

	return issues
}

func lintShadows(prog core.Program, shadows int) []Issue {
	var issues []Issue

	opened := make(map[int]int)

	for i, inst := range prog.Instructions {
		for _, s := range inst.Shadows {
			if s < 0 || s >= shadows {
				issues = append(issues, structIssue(i,
					fmt.Sprintf("shadow %d out of range [0, %d)", s, shadows),
					map[string]interface{}{"shadow": s}))

				continue
			}

			if _, ok := opened[s]; !ok {
				issues = append(issues, structIssue(i,
					fmt.Sprintf("shadow %d is never opened before this instruction", s),
					map[string]interface{}{"shadow": s}))
			}
		}

		if r := inst.Resolve; r >= 0 {
			if prev, ok := opened[r]; ok {
				issues = append(issues, structIssue(i,
					fmt.Sprintf("shadow %d reopened, previous resolver is op %d", r, prev),
					map[string]interface{}{"shadow": r, "previous": prev}))
			}

			opened[r] = i
		}
	}

	return issues
}

func lintMemory(prog core.Program) []Issue {
	var issues []Issue

	lastStore := make(map[uint64]int)
	lastLoad := make(map[uint64]int)

	for i, inst := range prog.Instructions {
		switch {
		case inst.Load:
			if st, ok := lastStore[inst.Addr]; ok {
				issues = append(issues, structIssue(i,
					fmt.Sprintf("load @%#x follows store op %d without load/store ordering",
						inst.Addr, st),
					map[string]interface{}{"addr": inst.Addr, "store": st}))
			}

			lastLoad[inst.Addr] = i
		case inst.Store:
			if ld, ok := lastLoad[inst.Addr]; ok {
				issues = append(issues, structIssue(i,
					fmt.Sprintf("store @%#x follows load op %d without load/store ordering",
						inst.Addr, ld),
					map[string]interface{}{"addr": inst.Addr, "load": ld}))
			}

			lastStore[inst.Addr] = i
		}
	}

	return issues
}

func structIssue(op int, msg string, details map[string]interface{}) Issue {
	return Issue{
		Type:    IssueStruct,
		Cycle:   -1,
		OpID:    op,
		Message: msg,
		Details: details,
	}
}
