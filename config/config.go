// Package config describes a scoreboarded core and its program in YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/scoreboard/core"
)

const (
	defaultRegisters = 32
	defaultSources   = 3
)

// Platform is the content of a platform file.
type Platform struct {
	FUs       []FU   `yaml:"fus"`
	Registers int    `yaml:"registers"`
	Sources   int    `yaml:"sources"`
	Shadows   int    `yaml:"shadows"`
	LDST      bool   `yaml:"ldst"`
	MemAddrs  int    `yaml:"memaddrs"`
	Program   []Inst `yaml:"program"`
}

// FU is a function unit with a fixed latency.
type FU struct {
	Name    string `yaml:"name"`
	Latency int    `yaml:"latency"`
}

// Inst is one program line.
type Inst struct {
	FU      string `yaml:"fu"`
	Dest    *Reg   `yaml:"dest"`
	Srcs    []Reg  `yaml:"srcs"`
	Shadows []int  `yaml:"shadows"`
	Predict bool   `yaml:"predict"`
	Resolve *int   `yaml:"resolve"`
	Taken   bool   `yaml:"taken"`
	Load    bool   `yaml:"load"`
	Store   bool   `yaml:"store"`
	Addr    uint64 `yaml:"addr"`
}

// Reg is a register operand. It is written as a plain index or as "$N" or
// "rN".
type Reg int

// UnmarshalYAML accepts the three register spellings.
func (r *Reg) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: register must be a scalar", node.Line)
	}

	s := strings.TrimLeft(node.Value, "$rR")

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid register %q: %w",
			node.Line, node.Value, err)
	}

	*r = Reg(n)

	return nil
}

// Load reads and validates a platform file.
func Load(path string) (Platform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Platform{}, fmt.Errorf("failed to read platform file: %w", err)
	}

	p, err := Parse(data)
	if err != nil {
		return Platform{}, fmt.Errorf("%s: %w", path, err)
	}

	return p, nil
}

// Parse decodes and validates a platform document.
func Parse(data []byte) (Platform, error) {
	var p Platform

	if err := yaml.Unmarshal(data, &p); err != nil {
		return Platform{}, fmt.Errorf("failed to parse platform: %w", err)
	}

	if p.Registers == 0 {
		p.Registers = defaultRegisters
	}

	if p.Sources == 0 {
		p.Sources = defaultSources
	}

	if err := p.Validate(); err != nil {
		return Platform{}, err
	}

	return p, nil
}

// Validate checks that every dimension is usable and every program line fits
// the platform. All problems are reported together.
func (p Platform) Validate() error {
	var errs []error

	if len(p.FUs) == 0 {
		errs = append(errs, errors.New("need at least 1 function unit"))
	}

	if p.Registers < 1 {
		errs = append(errs, fmt.Errorf("invalid register count %d", p.Registers))
	}

	if p.Sources < 1 {
		errs = append(errs, fmt.Errorf("invalid source count %d", p.Sources))
	}

	if p.Shadows < 0 {
		errs = append(errs, fmt.Errorf("invalid shadow count %d", p.Shadows))
	}

	if p.MemAddrs < 0 {
		errs = append(errs, fmt.Errorf("invalid address line count %d", p.MemAddrs))
	}

	seen := make(map[string]bool)
	for i, fu := range p.FUs {
		if fu.Name == "" {
			errs = append(errs, fmt.Errorf("fu %d: missing name", i))
		}

		if seen[fu.Name] {
			errs = append(errs, fmt.Errorf("fu %q: duplicated", fu.Name))
		}
		seen[fu.Name] = true

		if fu.Latency < 1 {
			errs = append(errs, fmt.Errorf("fu %q: invalid latency %d",
				fu.Name, fu.Latency))
		}
	}

	for i, inst := range p.Program {
		if err := p.validateInst(inst, seen); err != nil {
			errs = append(errs, fmt.Errorf("program line %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func (p Platform) validateInst(inst Inst, fus map[string]bool) error {
	if !fus[inst.FU] {
		return fmt.Errorf("unknown fu %q", inst.FU)
	}

	if inst.Dest != nil && !p.validReg(*inst.Dest) {
		return fmt.Errorf("dest r%d out of range", *inst.Dest)
	}

	if len(inst.Srcs) > p.Sources {
		return fmt.Errorf("%d sources, only %d slots", len(inst.Srcs), p.Sources)
	}

	for _, s := range inst.Srcs {
		if !p.validReg(s) {
			return fmt.Errorf("src r%d out of range", s)
		}
	}

	for _, s := range inst.Shadows {
		if s < 0 || s >= p.Shadows {
			return fmt.Errorf("shadow %d out of range", s)
		}
	}

	if inst.Resolve != nil && (*inst.Resolve < 0 || *inst.Resolve >= p.Shadows) {
		return fmt.Errorf("resolved shadow %d out of range", *inst.Resolve)
	}

	if inst.Load && inst.Store {
		return errors.New("both load and store")
	}

	return nil
}

func (p Platform) validReg(r Reg) bool {
	return r >= 0 && int(r) < p.Registers
}

// FUIndex returns the position of the named function unit.
func (p Platform) FUIndex(name string) (int, bool) {
	for i, fu := range p.FUs {
		if fu.Name == name {
			return i, true
		}
	}

	return -1, false
}

// CoreProgram converts the program lines into tagged instructions.
func (p Platform) CoreProgram() core.Program {
	prog := core.Program{
		Instructions: make([]*core.Instruction, 0, len(p.Program)),
	}

	for _, line := range p.Program {
		fu, ok := p.FUIndex(line.FU)
		if !ok {
			panic(fmt.Sprintf("unknown fu %q", line.FU))
		}

		dest := -1
		if line.Dest != nil {
			dest = int(*line.Dest)
		}

		srcs := make([]int, len(line.Srcs))
		for i, s := range line.Srcs {
			srcs[i] = int(s)
		}

		inst := core.NewInstruction(fu, dest, srcs...)
		inst.Shadows = line.Shadows
		inst.Predict = line.Predict
		inst.Taken = line.Taken
		inst.Load = line.Load
		inst.Store = line.Store
		inst.Addr = line.Addr

		if line.Resolve != nil {
			inst.Resolve = *line.Resolve
		}

		prog.Instructions = append(prog.Instructions, inst)
	}

	return prog
}
