package main

import (
	_ "embed"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/scoreboard/config"
	"github.com/sarchlab/scoreboard/core"
	"github.com/sarchlab/scoreboard/verify"
)

//go:embed branch.yaml
var branch []byte

var mispredict = flag.Bool("mispredict", false, "make the branch go the way nothing in its shadow predicted")

// Branch runs the shadowed program once and reports how many instructions
// were cancelled.
func Branch(fail bool) (squashed int, ok bool) {
	p, err := config.Parse(branch)
	if err != nil {
		panic(err)
	}

	for i := range p.Program {
		if p.Program[i].Resolve != nil {
			p.Program[i].Taken = fail
		}
	}

	engine := sim.NewSerialEngine()
	c := config.NewPlatformBuilder().
		WithEngine(engine).
		WithInvariantChecks(true).
		Build("Core", p)

	prog := p.CoreProgram()
	m := verify.NewMonitor(c.Scoreboard(), prog)
	c.AcceptHook(m)
	c.Load(prog)

	if err := engine.Run(); err != nil {
		panic(err)
	}

	report := verify.GenerateReport(prog, verify.RunLint(prog, p.Shadows, p.LDST), m)
	report.WriteReport(os.Stdout)

	return m.Squashed(), report.OK()
}

func main() {
	flag.Parse()

	f, err := os.Create("branch.json.log")
	if err != nil {
		panic(err)
	}
	atexit.Register(func() { f.Close() })

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{
		Level: core.LevelTrace,
	})
	slog.SetDefault(slog.New(handler))

	squashed, ok := Branch(*mispredict)

	want := 0
	if *mispredict {
		want = 3
	}

	if squashed == want && ok {
		fmt.Printf("✅ branch test passed: squashed=%d\n", squashed)
		atexit.Exit(0)
	}

	fmt.Printf("❌ branch test failed: squashed=%d expected=%d\n", squashed, want)
	atexit.Exit(1)
}
