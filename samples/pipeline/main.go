package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/scoreboard/config"
	"github.com/sarchlab/scoreboard/core"
	"github.com/sarchlab/scoreboard/verify"
)

//go:embed pipeline.yaml
var pipeline []byte

func platform() config.Platform {
	if len(os.Args) > 1 {
		p, err := config.Load(os.Args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			atexit.Exit(1)
		}

		return p
	}

	p, err := config.Parse(pipeline)
	if err != nil {
		panic(err)
	}

	return p
}

func Pipeline() bool {
	p := platform()

	engine := sim.NewSerialEngine()
	c := config.NewPlatformBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		WithInvariantChecks(true).
		Build("Core", p)

	prog := p.CoreProgram()
	lint := verify.RunLint(prog, p.Shadows, p.LDST)

	m := verify.NewMonitor(c.Scoreboard(), prog)
	c.AcceptHook(m)
	c.Load(prog)

	if err := engine.Run(); err != nil {
		panic(err)
	}

	report := verify.GenerateReport(prog, lint, m)
	report.WriteReport(os.Stdout)

	stats := c.Stats()
	fmt.Printf("cycles=%d issued=%d retired=%d waw_stalls=%d fu_stalls=%d\n",
		stats.Cycles, stats.Issued, stats.Retired, stats.WAWStalls, stats.FUStalls)

	return report.OK()
}

func main() {
	f, err := os.Create("pipeline.json.log")
	if err != nil {
		panic(err)
	}
	atexit.Register(func() { f.Close() })

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: core.LevelTrace,
	})
	slog.SetDefault(slog.New(handler))

	if !Pipeline() {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
