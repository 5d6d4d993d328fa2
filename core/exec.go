package core

// ExecUnit models the execution stage of a function unit. The core starts it
// once the operands are read and ticks it every cycle until it reports a
// result.
type ExecUnit interface {
	// Start begins executing an instruction.
	Start(inst *Instruction)
	// Tick advances the execution by one cycle and reports whether the result
	// is ready to be written.
	Tick() bool
	// Flush abandons the instruction in progress.
	Flush()
}

// LatencyUnit is an ExecUnit that produces its result a fixed number of
// cycles after it starts.
type LatencyUnit struct {
	latency int
	remain  int
	running bool
}

// NewLatencyUnit creates a unit with the given latency in cycles.
func NewLatencyUnit(latency int) *LatencyUnit {
	if latency < 1 {
		panic("Latency must be at least 1 cycle")
	}

	return &LatencyUnit{latency: latency}
}

// Latency returns the latency of the unit.
func (u *LatencyUnit) Latency() int {
	return u.latency
}

// Start begins counting down.
func (u *LatencyUnit) Start(_ *Instruction) {
	u.remain = u.latency
	u.running = true
}

// Tick counts down one cycle.
func (u *LatencyUnit) Tick() bool {
	if !u.running {
		return false
	}

	u.remain--
	if u.remain > 0 {
		return false
	}

	u.running = false

	return true
}

// Flush stops the countdown.
func (u *LatencyUnit) Flush() {
	u.running = false
	u.remain = 0
}
