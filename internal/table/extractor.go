package table

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/submissions-tracker/constants"
	"github.com/joseph-ayodele/submissions-tracker/internal/textextract"
)

const (
	minHeaderColumns = 2
	// headers with fewer data columns than this must put every column name
	// in its own gap separated cell
	looseHeaderColumns = 3
	maxSubHeaders      = 2
)

// Cell is one parsed table cell. Value is nil when the cell is empty or
// could not be parsed; Err is set only in the latter case.
type Cell struct {
	Raw   string
	Value *float64
	Err   error
}

// Row is one sample row. Number counts kept rows from 1; Line is the index
// of the source line.
type Row struct {
	Number int
	Line   int
	ID     string
	Cells  map[string]Cell
}

// Cell returns the cell for a column, or the zero Cell if the row has none.
func (r Row) Cell(column string) Cell {
	return r.Cells[column]
}

type Result struct {
	Columns    []Column
	HeaderLine int
	Rows       []Row
}

func (r Result) Found() bool { return len(r.Columns) > 0 }

func (r Result) HasColumn(name string) bool {
	for _, c := range r.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract locates the first sample table in the normalized lines and parses
// its rows. A document without a recognisable header yields an empty Result.
func (e *Extractor) Extract(lines []string) Result {
	header, cols := findHeader(lines)
	if header < 0 {
		e.logger.Debug("no sample table header found")
		return Result{HeaderLine: -1}
	}
	res := Result{Columns: cols, HeaderLine: header}

	subHeaders := 0
	for i := header + 1; i < len(lines); i++ {
		line := lines[i]
		if line == textextract.PageBreak {
			break
		}
		if strings.TrimSpace(line) == "" {
			if next := nextNonBlank(lines, i+1); next >= 0 && continuesTable(lines[next], cols) {
				continue
			}
			break
		}
		if isSectionLabel(line) {
			break
		}
		if !rowLike(line, cols) {
			// unit lines such as "(uL)  (ng/uL)" sit directly under the header
			if len(res.Rows) == 0 && subHeaders < maxSubHeaders && !hasDigit(line) {
				subHeaders++
				continue
			}
			break
		}

		cells := splitRow(line, cols)
		id := identifier(cells, res)
		if id == "" {
			e.logger.Debug("discarding row without identifier", "line", i)
			continue
		}
		row := Row{Number: len(res.Rows) + 1, Line: i, ID: id, Cells: make(map[string]Cell, len(cols))}
		for _, c := range cols {
			raw := cells[c.Name]
			cell := Cell{Raw: raw}
			if numericColumn(c.Name) {
				cell.Value, cell.Err = ParseNumber(raw)
			}
			row.Cells[c.Name] = cell
		}
		res.Rows = append(res.Rows, row)
	}

	e.logger.Debug("sample table parsed", "header_line", header, "columns", len(cols), "rows", len(res.Rows))
	return res
}

func findHeader(lines []string) (int, []Column) {
	for i, line := range lines {
		if line == textextract.PageBreak || strings.TrimSpace(line) == "" {
			continue
		}
		cols := detectColumns(line)
		n := countData(cols)
		if n < minHeaderColumns || prose(line, len(cols)) {
			continue
		}
		if n < looseHeaderColumns && len(splitGaps(line)) < len(cols) {
			continue
		}
		return i, cols
	}
	return -1, nil
}

// countData counts columns other than the index column.
func countData(cols []Column) int {
	n := 0
	for _, c := range cols {
		if c.Name != constants.ColumnIndex {
			n++
		}
	}
	return n
}

// prose rejects sentences that merely mention column names.
func prose(line string, cols int) bool {
	t := strings.TrimSpace(line)
	if strings.HasSuffix(t, ".") || strings.HasSuffix(t, ":") {
		return true
	}
	if len(splitGaps(line)) >= cols {
		return false
	}
	return len(strings.Fields(t)) > cols*3
}

func nextNonBlank(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != "" {
			return i
		}
	}
	return -1
}

func continuesTable(line string, cols []Column) bool {
	if line == textextract.PageBreak || isSectionLabel(line) {
		return false
	}
	return textextract.NumericTokens(line) >= 2 || len(splitGaps(line)) >= len(cols)-1
}

func isSectionLabel(line string) bool {
	t := strings.TrimSpace(line)
	if strings.HasSuffix(t, ":") {
		return true
	}
	return strings.Contains(t, ":") && !hasDigit(t)
}

func rowLike(line string, cols []Column) bool {
	cells := splitGaps(line)
	if hasDigit(line) {
		return len(cells) >= 2 || len(strings.Fields(line)) >= 2
	}
	return len(cells) >= 2 && len(cells) >= len(cols)-1
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func numericColumn(name string) bool {
	switch name {
	case constants.ColumnVolume, constants.ColumnQubit, constants.ColumnNanodrop,
		constants.ColumnA260280, constants.ColumnA260230:
		return true
	}
	return false
}

func identifier(cells map[string]string, res Result) string {
	if res.HasColumn(constants.ColumnSampleName) {
		return strings.TrimSpace(cells[constants.ColumnSampleName])
	}
	return strings.TrimSpace(cells[constants.ColumnIndex])
}
