// Package fixtures builds submission documents for tests.
package fixtures

import (
	"strings"
)

const cellWidth = 18

// Grid lays cells out at fixed column offsets, the way a text layer renders
// a printed table.
func Grid(cells ...string) string {
	var b strings.Builder
	for i, c := range cells {
		b.WriteString(c)
		if i < len(cells)-1 && len(c) < cellWidth {
			b.WriteString(strings.Repeat(" ", cellWidth-len(c)))
		} else if i < len(cells)-1 {
			b.WriteString("  ")
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Header is the printed form header for a project and owner.
func Header(project, owner string) []string {
	return []string{
		"Nanopore Sequencing Submission Form",
		"Project: " + project,
		"Owner: " + owner,
		"Source Organism: Escherichia coli",
		"Sequencing Type:",
		"[x] Rapid Sequencing (SQK-RAD114)",
		"[ ] Ligation Sequencing (SQK-LSK114)",
		"Sample Type: PCR Amplicons",
		"Sample Buffer: EB",
		"Flow Cell Type: MinION Flow Cell",
		"Please send notifications to these email addresses: jleon@example.edu",
		"",
		"Additional Comments / Special Needs",
		"Amplicon length is 600 bp.",
		"",
		"Bioinformatics",
		"",
	}
}

// TableHeader is the full six column measurement header.
func TableHeader() string {
	return Grid("Sample Name", "Volume (uL)", "Qubit (ng/uL)", "Nanodrop (ng/uL)", "A260/280", "A260/230")
}

// Scenario is a form for project HTSF--JL-147 owned by Joshua Leon with three
// sample rows: one clean, one with a non-numeric volume and one missing its
// A260/230 ratio.
func Scenario() []byte {
	return Document("HTSF--JL-147", "Joshua Leon",
		Grid("S1", "20", "12.5", "15.2", "1.85", "2.01"),
		Grid("S2", "abc", "10.0", "11.0", "1.90", "2.10"),
		Grid("S3", "25", "8.4", "9.0", "1.88"),
	)
}

// Document renders a form with the given table rows under the standard header.
func Document(project, owner string, rows ...string) []byte {
	lines := Header(project, owner)
	lines = append(lines, "Sample Information", TableHeader())
	lines = append(lines, rows...)
	lines = append(lines, "", "Date Received:")
	return []byte(strings.Join(lines, "\n") + "\n")
}
