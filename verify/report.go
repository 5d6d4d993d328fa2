package verify

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/scoreboard/core"
)

// VerificationReport represents a complete verification report
type VerificationReport struct {
	ProgramLength int
	Dependences   []Dependence
	LintIssues    []Issue
	RunIssues     []Issue
	Cycles        int64
	Retired       int
	Squashed      int
}

// GenerateReport combines the lint result with what a monitor observed. It
// runs the monitor's order check.
func GenerateReport(prog core.Program, lint []Issue, m *Monitor) *VerificationReport {
	m.CheckOrder()

	return &VerificationReport{
		ProgramLength: len(prog.Instructions),
		Dependences:   Dependences(prog),
		LintIssues:    lint,
		RunIssues:     m.Issues(),
		Cycles:        m.Cycles(),
		Retired:       m.Retired(),
		Squashed:      m.Squashed(),
	}
}

// OK reports whether nothing was found.
func (r *VerificationReport) OK() bool {
	return len(r.LintIssues) == 0 && len(r.RunIssues) == 0
}

// WriteReport writes a formatted report to a writer
func (r *VerificationReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "SCOREBOARD VERIFICATION REPORT")
	fmt.Fprintln(w, separator)

	fmt.Fprintf(w, "\nProgram: %d instructions, %d dependences\n",
		r.ProgramLength, len(r.Dependences))

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 1: STATIC LINT CHECKS")
	fmt.Fprintln(w, separator)
	writeIssues(w, r.LintIssues)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "STAGE 2: RUN CHECKS")
	fmt.Fprintln(w, separator)
	writeIssues(w, r.RunIssues)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "VERIFICATION SUMMARY")
	fmt.Fprintln(w, separator)

	summary := table.NewWriter()
	summary.AppendRows([]table.Row{
		{"Cycles", r.Cycles},
		{"Retired", r.Retired},
		{"Squashed", r.Squashed},
		{"Lint issues", len(r.LintIssues)},
		{"Run issues", len(r.RunIssues)},
	})
	fmt.Fprintln(w, summary.Render())

	if r.OK() {
		fmt.Fprintln(w, "PASSED")
	} else {
		fmt.Fprintln(w, "FAILED")
	}
}

func writeIssues(w io.Writer, issues []Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(w, "No issues found")
		return
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Type", "Cycle", "Op", "Message"})

	for i, issue := range issues {
		cycle := "-"
		if issue.Cycle >= 0 {
			cycle = fmt.Sprint(issue.Cycle)
		}

		op := "-"
		if issue.OpID >= 0 {
			op = fmt.Sprint(issue.OpID)
		}

		t.AppendRow(table.Row{i + 1, issue.Type, cycle, op, issue.Message})
	}

	fmt.Fprintln(w, t.Render())
}

// SaveReportToFile saves the report to a file
func (r *VerificationReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)

	return nil
}
