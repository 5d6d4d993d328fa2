package core

import (
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/scoreboard/scoreboard"
)

const (
	PrintToggle            = false
	LevelTrace  slog.Level = scoreboard.LevelTrace
)

func Trace(msg string, args ...any) {
	scoreboard.Trace(msg, args...)
}

// PrintState dumps the function units and the scoreboard after a tick. It
// does nothing unless PrintToggle is set.
func PrintState(c *Core) {
	if !PrintToggle {
		return
	}

	fmt.Printf("==============%s@%d==============\n", c.Name(), c.stats.Cycles)
	fmt.Println(StateTable(c))
	scoreboard.PrintState(c.sb)
}

// StateTable renders one row per function unit with its state and the
// instruction it holds.
func StateTable(c *Core) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Function units (%d queued)", len(c.queue)))
	t.AppendHeader(table.Row{"FU", "Name", "State", "ID", "Instruction"})

	for i, f := range c.fus {
		id, inst := "", ""
		if f.inst != nil {
			id = f.inst.ID.String()
			inst = f.inst.String()
		}

		t.AppendRow(table.Row{i, f.name, f.state, id, inst})
	}

	return t.Render()
}

// LogState writes a debug checkpoint of the core.
func LogState(c *Core) {
	states := make([]string, len(c.fus))
	for i, f := range c.fus {
		states[i] = f.state.String()
	}

	slog.Debug("StateCheckpoint",
		"Name", c.Name(),
		"Cycle", c.stats.Cycles,
		"Queued", len(c.queue),
		"FUs", states,
	)

	scoreboard.LogState(c.sb)
}
