package config_test

import (
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/scoreboard/config"
)

const platformDoc = `
fus:
  - {name: add, latency: 1}
  - {name: mul, latency: 3}
  - {name: br, latency: 2}
registers: 8
sources: 2
shadows: 1
program:
  - {fu: add, dest: 3, srcs: [1, 2]}
  - {fu: br, srcs: [$3], resolve: 0}
  - {fu: mul, dest: r4, srcs: [3, 3], shadows: [0]}
`

var _ = Describe("Platform", func() {
	It("should parse a platform document", func() {
		p, err := config.Parse([]byte(platformDoc))
		Expect(err).NotTo(HaveOccurred())

		Expect(p.FUs).To(HaveLen(3))
		Expect(p.FUs[1]).To(Equal(config.FU{Name: "mul", Latency: 3}))
		Expect(p.Registers).To(Equal(8))
		Expect(p.Sources).To(Equal(2))
		Expect(p.Program).To(HaveLen(3))
		Expect(p.Program[1].Srcs).To(Equal([]config.Reg{3}))
		Expect(*p.Program[2].Dest).To(Equal(config.Reg(4)))
	})

	It("should fill in default dimensions", func() {
		p, err := config.Parse([]byte("fus: [{name: alu, latency: 1}]"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Registers).To(Equal(32))
		Expect(p.Sources).To(Equal(3))
	})

	It("should convert the program", func() {
		p, err := config.Parse([]byte(platformDoc))
		Expect(err).NotTo(HaveOccurred())

		prog := p.CoreProgram()
		Expect(prog.Instructions).To(HaveLen(3))

		br := prog.Instructions[1]
		Expect(br.FU).To(Equal(2))
		Expect(br.Dest).To(Equal(-1))
		Expect(br.Resolve).To(Equal(0))

		mul := prog.Instructions[2]
		Expect(mul.Srcs).To(Equal([]int{3, 3}))
		Expect(mul.Shadows).To(Equal([]int{0}))
		Expect(mul.ID).NotTo(Equal(br.ID))
	})

	It("should carry branch outcomes and predictions", func() {
		p, err := config.Parse([]byte(`
fus: [{name: a, latency: 1}, {name: b, latency: 1}]
shadows: 1
program:
  - {fu: a, resolve: 0, taken: true}
  - {fu: b, dest: 1, shadows: [0], predict: true}
`))
		Expect(err).NotTo(HaveOccurred())

		prog := p.CoreProgram()
		Expect(prog.Instructions[0].Taken).To(BeTrue())
		Expect(prog.Instructions[1].Predict).To(BeTrue())
		Expect(prog.Instructions[1].Taken).To(BeFalse())
	})

	DescribeTable("rejecting invalid platforms",
		func(doc, msg string) {
			_, err := config.Parse([]byte(doc))
			Expect(err).To(MatchError(ContainSubstring(msg)))
		},
		Entry("no units", "registers: 4", "at least 1 function unit"),
		Entry("bad latency", "fus: [{name: a, latency: 0}]", "invalid latency"),
		Entry("duplicated unit",
			"fus: [{name: a, latency: 1}, {name: a, latency: 1}]", "duplicated"),
		Entry("unknown unit",
			"fus: [{name: a, latency: 1}]\nprogram: [{fu: b}]", `unknown fu "b"`),
		Entry("register out of range",
			"fus: [{name: a, latency: 1}]\nregisters: 4\nprogram: [{fu: a, dest: 4}]",
			"dest r4 out of range"),
		Entry("too many sources",
			"fus: [{name: a, latency: 1}]\nsources: 1\nprogram: [{fu: a, srcs: [1, 2]}]",
			"2 sources"),
		Entry("shadow out of range",
			"fus: [{name: a, latency: 1}]\nprogram: [{fu: a, shadows: [0]}]",
			"shadow 0 out of range"),
		Entry("load and store",
			"fus: [{name: a, latency: 1}]\nprogram: [{fu: a, load: true, store: true}]",
			"both load and store"),
		Entry("bad register", "fus: [{name: a, latency: 1}]\nprogram: [{fu: a, dest: x1}]",
			"invalid register"),
		Entry("bad yaml", "fus: [", "failed to parse platform"),
		Entry("negative address lines", "fus: [{name: a, latency: 1}]\nmemaddrs: -1",
			"invalid address line count"),
	)

	It("should load a platform file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "platform.yaml")
		Expect(os.WriteFile(path, []byte(platformDoc), 0o644)).To(Succeed())

		p, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.FUs).To(HaveLen(3))
	})

	It("should report a missing file", func() {
		_, err := config.Load(filepath.Join(GinkgoT().TempDir(), "none.yaml"))
		Expect(err).To(MatchError(ContainSubstring("failed to read platform file")))
		Expect(errors.Is(err, os.ErrNotExist)).To(BeTrue())
	})
})

var _ = Describe("PlatformBuilder", func() {
	It("should build a core that runs the program", func() {
		p, err := config.Parse([]byte(platformDoc))
		Expect(err).NotTo(HaveOccurred())

		engine := sim.NewSerialEngine()
		c := config.NewPlatformBuilder().
			WithEngine(engine).
			WithInvariantChecks(true).
			Build("Core", p)
		prog := config.LoadProgram(c, p)

		Expect(prog.Instructions).To(HaveLen(3))
		Expect(c.NumFUs()).To(Equal(3))
		Expect(c.Scoreboard().NumRegs()).To(Equal(8))
		Expect(c.Scoreboard().ShadowWidth()).To(Equal(1))

		Expect(engine.Run()).To(Succeed())
		Expect(c.Done()).To(BeTrue())
		Expect(c.Stats().Retired).To(Equal(uint64(3)))
	})

	It("should order memory through address lines", func() {
		p, err := config.Parse([]byte(`
fus: [{name: ld, latency: 3}, {name: st, latency: 1}]
registers: 4
memaddrs: 8
program:
  - {fu: ld, dest: 1, load: true, addr: 0x48}
  - {fu: st, srcs: [2], store: true, addr: 0x08}
`))
		Expect(err).NotTo(HaveOccurred())

		engine := sim.NewSerialEngine()
		c := config.NewPlatformBuilder().
			WithEngine(engine).
			WithInvariantChecks(true).
			Build("Core", p)
		config.LoadProgram(c, p)

		Expect(c.Scoreboard().NumMemAddrs()).To(Equal(8))
		Expect(c.Scoreboard().MemMatrix()).NotTo(BeNil())

		Expect(engine.Run()).To(Succeed())
		Expect(c.Stats().Retired).To(Equal(uint64(2)))
	})
})
