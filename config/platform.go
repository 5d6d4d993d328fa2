package config

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/scoreboard/core"
	"github.com/sarchlab/scoreboard/scoreboard"
)

// PlatformBuilder can build cores described by a platform.
type PlatformBuilder struct {
	engine sim.Engine
	freq   sim.Freq
	checks bool
	hooks  []sim.Hook
}

// NewPlatformBuilder returns a builder running at 1 GHz.
func NewPlatformBuilder() PlatformBuilder {
	return PlatformBuilder{
		freq: 1 * sim.GHz,
	}
}

// WithEngine sets the engine that drives the simulation.
func (b PlatformBuilder) WithEngine(engine sim.Engine) PlatformBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core.
func (b PlatformBuilder) WithFreq(freq sim.Freq) PlatformBuilder {
	b.freq = freq
	return b
}

// WithInvariantChecks makes the scoreboard panic on a grant violation.
func (b PlatformBuilder) WithInvariantChecks(enabled bool) PlatformBuilder {
	b.checks = enabled
	return b
}

// WithHook attaches a hook to the core.
func (b PlatformBuilder) WithHook(hook sim.Hook) PlatformBuilder {
	hooks := make([]sim.Hook, len(b.hooks), len(b.hooks)+1)
	copy(hooks, b.hooks)
	b.hooks = append(hooks, hook)

	return b
}

// Build creates a core for the platform. The platform must be valid. The
// program is not loaded, see LoadProgram.
func (b PlatformBuilder) Build(name string, p Platform) *core.Core {
	sb := scoreboard.NewBuilder().
		WithNumRegs(p.Registers).
		WithNumSrcs(p.Sources).
		WithShadowWidth(p.Shadows).
		WithLDST(p.LDST).
		WithMemAddrs(p.MemAddrs).
		WithInvariantChecks(b.checks)

	cb := core.NewBuilder().
		WithEngine(b.engine).
		WithFreq(b.freq).
		WithScoreboard(sb)

	for _, fu := range p.FUs {
		cb = cb.WithUnit(fu.Name, core.NewLatencyUnit(fu.Latency))
	}

	c := cb.Build(name)

	for _, h := range b.hooks {
		c.AcceptHook(h)
	}

	return c
}

// LoadProgram converts the platform program and queues it on the core. The
// returned program holds the instructions the core will run.
func LoadProgram(c *core.Core, p Platform) core.Program {
	prog := p.CoreProgram()
	c.Load(prog)

	return prog
}
