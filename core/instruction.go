package core

import (
	"fmt"
	"strings"

	"github.com/rs/xid"
)

// Instruction is one operation sent through the scoreboard. Registers are
// register-file indices; -1 means the operand is unused.
type Instruction struct {
	ID xid.ID

	// FU is the index of the function unit that executes the instruction.
	FU   int
	Dest int
	Srcs []int

	// Shadows lists the shadows the instruction is issued under. Only
	// shadows opened by an in-flight resolver take effect. Predict is the
	// resolver outcome the instruction was issued assuming.
	Shadows []int
	Predict bool
	// Resolve is the shadow that the instruction resolves when it finishes
	// executing, or -1. Taken is the actual outcome.
	Resolve int
	Taken   bool

	Load  bool
	Store bool
	Addr  uint64
}

// NewInstruction creates an instruction tagged with a fresh ID.
func NewInstruction(fu, dest int, srcs ...int) *Instruction {
	return &Instruction{
		ID:      xid.New(),
		FU:      fu,
		Dest:    dest,
		Srcs:    srcs,
		Resolve: -1,
	}
}

// IsMemory reports whether the instruction accesses memory.
func (i *Instruction) IsMemory() bool {
	return i.Load || i.Store
}

func (i *Instruction) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "FU%d", i.FU)

	switch {
	case i.Load:
		fmt.Fprintf(&b, " LD @%#x", i.Addr)
	case i.Store:
		fmt.Fprintf(&b, " ST @%#x", i.Addr)
	}

	if i.Dest >= 0 {
		fmt.Fprintf(&b, " r%d <-", i.Dest)
	}

	for _, s := range i.Srcs {
		if s >= 0 {
			fmt.Fprintf(&b, " r%d", s)
		}
	}

	if i.Resolve >= 0 {
		fmt.Fprintf(&b, " resolves s%d", i.Resolve)
	}

	return b.String()
}

// Program is an in-order instruction stream.
type Program struct {
	Instructions []*Instruction
}
