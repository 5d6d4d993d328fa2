package scoreboard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bits-and-blooms/bitset"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/scoreboard/dep"
)

const (
	PrintToggle = false
	// LevelTrace sits below Debug so that per-cycle grant traces stay silent
	// unless a handler asks for them.
	LevelTrace slog.Level = slog.LevelDebug - 1
)

func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

func (s *Scoreboard) trace() {
	if !slog.Default().Enabled(context.Background(), LevelTrace) {
		return
	}

	if fu := s.out.GrantedRead(); fu >= 0 {
		Trace("GoRead", slog.Uint64("Cycle", s.cycle), slog.Int("FU", fu))
	}

	if fu := s.out.GrantedWrite(); fu >= 0 {
		Trace("GoWrite", slog.Uint64("Cycle", s.cycle), slog.Int("FU", fu))
	}

	for u, ok := s.out.GoDie.NextSet(0); ok; u, ok = s.out.GoDie.NextSet(u + 1) {
		Trace("GoDie", slog.Uint64("Cycle", s.cycle), slog.Int("FU", int(u)))
	}
}

// mustHoldInvariants panics when the grants computed this cycle break the
// arbitration rules.
func (s *Scoreboard) mustHoldInvariants(in *Inputs) {
	if s.out.GoRd.Count() > 1 {
		panic(fmt.Sprintf("cycle %d: %d read grants", s.cycle, s.out.GoRd.Count()))
	}

	if s.out.GoWr.Count() > 1 {
		panic(fmt.Sprintf("cycle %d: %d write grants", s.cycle, s.out.GoWr.Count()))
	}

	if !s.out.Readable.IsSuperSet(s.out.GoRd) || !orEmpty(in.RdRel).IsSuperSet(s.out.GoRd) {
		panic(fmt.Sprintf("cycle %d: read granted to FU %d without request",
			s.cycle, s.out.GrantedRead()))
	}

	if !s.out.Writable.IsSuperSet(s.out.GoWr) || !orEmpty(in.ReqRel).IsSuperSet(s.out.GoWr) {
		panic(fmt.Sprintf("cycle %d: write granted to FU %d while blocked",
			s.cycle, s.out.GrantedWrite()))
	}
}

// mustNotChainIssues panics when an FU issues in the same cycle as another FU
// that reads its destination. Neither sees the other as pending at issue, so
// the pair would get no ordering.
func (s *Scoreboard) mustNotChainIssues(in *Inputs) {
	for a, ok := in.Issue.NextSet(0); ok && a < uint(s.nFU); a, ok = in.Issue.NextSet(a + 1) {
		dest := vecAt(in.Dest, int(a))
		if dest == nil {
			continue
		}

		for b, ok := in.Issue.NextSet(0); ok && b < uint(s.nFU); b, ok = in.Issue.NextSet(b + 1) {
			if a == b {
				continue
			}

			s.srcs.ClearAll()
			for _, v := range vecsAt(in.Src, int(b)) {
				if v != nil {
					s.srcs.InPlaceUnion(v)
				}
			}

			if s.intersects(dest, s.srcs) {
				panic(fmt.Sprintf("cycle %d: FU %d reads a register FU %d "+
					"writes, both issued this cycle", s.cycle, b, a))
			}
		}
	}
}

// PrintState dumps the pending matrix of the scoreboard as a table. It does
// nothing unless PrintToggle is set.
func PrintState(s *Scoreboard) {
	if !PrintToggle {
		return
	}

	fmt.Println(StateTable(s))
}

// StateTable renders one row per FU with its busy flag, pending write and read
// registers, and ordering waits.
func StateTable(s *Scoreboard) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Scoreboard@%d", s.cycle))
	t.AppendHeader(table.Row{"FU", "Busy", "Shadowed", "Write", "Read", "WaitRd", "WaitWr"})

	for fu := 0; fu < s.nFU; fu++ {
		var waitRd, waitWr []string

		for y := 0; y < s.nFU; y++ {
			if s.fus.ReadWait(fu, y) {
				waitRd = append(waitRd, fmt.Sprint(y))
			}

			if s.fus.WriteWait(fu, y) {
				waitWr = append(waitWr, fmt.Sprint(y))
			}
		}

		t.AppendRow(table.Row{
			fu,
			s.Busy(fu),
			s.Shadowed(fu),
			s.pendingRegs(fu, (*dep.Cell).WritePending),
			s.pendingRegs(fu, (*dep.Cell).ReadPending),
			strings.Join(waitRd, " "),
			strings.Join(waitWr, " "),
		})
	}

	return t.Render()
}

func (s *Scoreboard) pendingRegs(fu int, pending func(*dep.Cell) bool) string {
	var regs []string

	for reg := 0; reg < s.nReg; reg++ {
		if pending(s.regs.Cell(fu, reg)) {
			regs = append(regs, fmt.Sprintf("r%d", reg))
		}
	}

	return strings.Join(regs, " ")
}

// LogState writes a debug checkpoint of the committed state.
func LogState(s *Scoreboard) {
	pend := bitset.New(uint(s.nReg))
	s.GlobalWritePending(pend)

	rd := bitset.New(uint(s.nReg))
	s.GlobalReadPending(rd)

	slog.Debug("StateCheckpoint",
		"Cycle", s.cycle,
		"Busy", s.busy.Q().String(),
		"GlobalWrPend", pend.String(),
		"GlobalRdPend", rd.String(),
	)
}
