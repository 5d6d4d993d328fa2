package core

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/scoreboard/issue"
	"github.com/sarchlab/scoreboard/scoreboard"
	"github.com/sarchlab/scoreboard/shadow"
)

type unitSpec struct {
	name string
	unit ExecUnit
}

// Builder can create new cores.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq
	sb     scoreboard.Builder
	units  []unitSpec
}

// NewBuilder returns a builder with the default scoreboard and no function
// units.
func NewBuilder() Builder {
	return Builder{
		freq: 1 * sim.GHz,
		sb:   scoreboard.NewBuilder(),
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the core.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithScoreboard sets the builder used for the scoreboard. Its FU count is
// overridden by the number of units.
func (b Builder) WithScoreboard(sb scoreboard.Builder) Builder {
	b.sb = sb
	return b
}

// WithUnit adds a named function unit.
func (b Builder) WithUnit(name string, unit ExecUnit) Builder {
	units := make([]unitSpec, len(b.units), len(b.units)+1)
	copy(units, b.units)
	b.units = append(units, unitSpec{name: name, unit: unit})

	return b
}

// Build creates a core.
func (b Builder) Build(name string) *Core {
	if len(b.units) == 0 {
		panic("Need at least 1 function unit")
	}

	c := &Core{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.sb = b.sb.WithNumFUs(len(b.units)).Build()
	c.in = c.sb.NewInputs()
	c.issuer = issue.New(c.sb.NumRegs(), c.sb.NumFUs())

	for _, u := range b.units {
		c.fus = append(c.fus, &funcUnit{name: u.name, unit: u.unit})
	}

	n := uint(len(b.units))
	w := uint(c.sb.ShadowWidth())

	c.flush = bitset.New(n)
	c.insn = bitset.New(n)
	c.gWrPend = bitset.New(uint(c.sb.NumRegs()))
	c.open = bitset.New(w)
	c.resolveNext = bitset.New(w)
	c.takenNext = bitset.New(w)
	c.failNext = bitset.New(w)

	c.specs = make([]*shadow.SpecRecord, c.sb.ShadowWidth())
	for s := range c.specs {
		c.specs[s] = shadow.NewSpecRecord(len(b.units))
	}

	return c
}
