package table

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/submissions-tracker/constants"
)

// splitRow assigns the text of a row line to columns.
func splitRow(line string, cols []Column) map[string]string {
	cells := splitGaps(line)
	if len(cells) == len(cols) {
		return inOrder(cells, cols)
	}
	if len(cells) < 2 {
		return byTokens(line, cols)
	}
	if assigned, ok := byPosition(cells, cols); ok || len(cells) > len(cols) {
		return assigned
	}
	// short rows lose their trailing columns
	return inOrder(cells, cols)
}

func inOrder(cells []span, cols []Column) map[string]string {
	out := make(map[string]string, len(cols))
	for i, c := range cells {
		if i >= len(cols) {
			break
		}
		out[cols[i].Name] = c.text
	}
	return out
}

// byPosition maps each cell to the column span it overlaps most. ok reports
// whether the mapping is one cell per column in left to right order.
func byPosition(cells []span, cols []Column) (map[string]string, bool) {
	out := make(map[string]string, len(cols))
	ok := true
	last := -1
	for _, c := range cells {
		best, bestOverlap := 0, -1
		for j, col := range cols {
			end := math.MaxInt
			if j+1 < len(cols) {
				end = cols[j+1].Start
			}
			ov := min(c.end, end) - max(c.start, col.Start)
			if ov > bestOverlap {
				best, bestOverlap = j, ov
			}
		}
		if bestOverlap <= 0 || best <= last {
			ok = false
		}
		last = best
		name := cols[best].Name
		if prev, dup := out[name]; dup {
			out[name] = prev + " " + c.text
		} else {
			out[name] = c.text
		}
	}
	return out, ok
}

// byTokens handles single-spaced rows. Columns around the sample name take
// one token each and the name absorbs whatever remains in the middle.
func byTokens(line string, cols []Column) map[string]string {
	tokens := strings.Fields(line)
	out := make(map[string]string, len(cols))
	nameAt := -1
	for i, c := range cols {
		if c.Name == constants.ColumnSampleName {
			nameAt = i
		}
	}
	if nameAt < 0 || len(tokens) < len(cols) {
		for i, t := range tokens {
			if i >= len(cols) {
				out[cols[len(cols)-1].Name] += " " + t
				continue
			}
			out[cols[i].Name] = t
		}
		return out
	}
	after := len(cols) - nameAt - 1
	for i := 0; i < nameAt; i++ {
		out[cols[i].Name] = tokens[i]
	}
	for i := 0; i < after; i++ {
		out[cols[nameAt+1+i].Name] = tokens[len(tokens)-after+i]
	}
	out[cols[nameAt].Name] = strings.Join(tokens[nameAt:len(tokens)-after], " ")
	return out
}
