package table

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/submissions-tracker/constants"
)

// Column is one detected table column. Start is the byte offset of the
// column in the header line; the column spans up to the next column's Start.
type Column struct {
	Name   string
	Header string
	Start  int
}

type columnPattern struct {
	name string
	re   *regexp.Regexp
}

// matched in this order; a later pattern cannot reuse text claimed by an earlier one
var columnPatterns = []columnPattern{
	{constants.ColumnIndex, regexp.MustCompile(`(?i)sample\s*#|#|\bno\.`)},
	{constants.ColumnA260280, regexp.MustCompile(`(?i)(?:\bA\s*)?260\s*/\s*280`)},
	{constants.ColumnA260230, regexp.MustCompile(`(?i)(?:\bA\s*)?260\s*/\s*230`)},
	{constants.ColumnQubit, regexp.MustCompile(`(?i)\bqubit(?:\s*conc(?:entration)?\.?)?(?:\s*\([^)]*\))?`)},
	{constants.ColumnNanodrop, regexp.MustCompile(`(?i)\bnano\s*drop(?:\s*conc(?:entration)?\.?)?(?:\s*\([^)]*\))?`)},
	{constants.ColumnVolume, regexp.MustCompile(`(?i)\bvol(?:ume)?\.?(?:\s*\([^)]*\))?`)},
	{constants.ColumnSampleName, regexp.MustCompile(`(?i)\bsample\s*(?:name|id)\b|\bname\b|\bsample\b|\bid\b`)},
}

var reGap = regexp.MustCompile(` {2,}`)

type span struct {
	text       string
	start, end int
}

// splitGaps splits a line on runs of two or more spaces, keeping offsets.
func splitGaps(line string) []span {
	var out []span
	prev := 0
	for _, g := range reGap.FindAllStringIndex(line, -1) {
		if s := line[prev:g[0]]; strings.TrimSpace(s) != "" {
			out = append(out, trimmed(line, prev, g[0]))
		}
		prev = g[1]
	}
	if strings.TrimSpace(line[prev:]) != "" {
		out = append(out, trimmed(line, prev, len(line)))
	}
	return out
}

func trimmed(line string, start, end int) span {
	for start < end && line[start] == ' ' {
		start++
	}
	for end > start && line[end-1] == ' ' {
		end--
	}
	return span{text: line[start:end], start: start, end: end}
}

type hit struct {
	name       string
	start, end int
}

func overlaps(hits []hit, s, e int) bool {
	for _, h := range hits {
		if s < h.end && h.start < e {
			return true
		}
	}
	return false
}

// detectColumns finds recognised column names in a candidate header line,
// ordered left to right.
func detectColumns(line string) []Column {
	var hits []hit
	seen := map[string]bool{}
	for _, p := range columnPatterns {
		for _, loc := range p.re.FindAllStringIndex(line, -1) {
			if seen[p.name] || overlaps(hits, loc[0], loc[1]) {
				continue
			}
			hits = append(hits, hit{name: p.name, start: loc[0], end: loc[1]})
			seen[p.name] = true
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].start < hits[j].start })

	cells := splitGaps(line)
	cols := make([]Column, 0, len(hits))
	for _, h := range hits {
		start := h.start
		// a cell holding a single column name anchors the column at the cell start
		for _, c := range cells {
			if h.start >= c.start && h.start < c.end && countIn(hits, c) == 1 {
				start = c.start
			}
		}
		cols = append(cols, Column{Name: h.name, Header: strings.TrimSpace(line[h.start:h.end]), Start: start})
	}
	return cols
}

func countIn(hits []hit, c span) int {
	n := 0
	for _, h := range hits {
		if h.start >= c.start && h.start < c.end {
			n++
		}
	}
	return n
}
