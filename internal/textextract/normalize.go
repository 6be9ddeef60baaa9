package textextract

import (
	"regexp"
	"strings"
	"unicode"
)

// PageBreak is the line emitted between pages.
const PageBreak = "\f"

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reMultiSpace = regexp.MustCompile(`\s+`)
	reColumnGap  = regexp.MustCompile(` {2,}`)
	reNumeric    = regexp.MustCompile(`^[(+-]?\d[\d,]*(\.\d+)?[A-Za-zµμ/%)]*$`)
	reSeparator  = regexp.MustCompile(`^\s*(?:[-=_*~.•·#+|]\s*){3,}$`)
	reHyphenEnd  = regexp.MustCompile(`[A-Za-z]-$`)
)

// connectors that never end a sentence; a line ending in one continues on the next
var danglingWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "the": {},
	"to": {}, "with": {}, "for": {}, "in": {}, "by": {}, "per": {},
}

// Normalize turns raw extracted text into clean lines.
//
// Lines that look like table rows (two or more numeric tokens) or that carry
// a column gap keep their inner spacing; the table extractor infers columns
// from it. Other lines have whitespace collapsed, wrapped lines are joined,
// separator rules are dropped and blank runs shrink to one empty line.
func Normalize(s string) []string {
	if s == "" {
		return nil
	}
	s = reCRLF.ReplaceAllString(s, "\n")
	s = strings.ReplaceAll(s, "\u00a0", " ")

	var out []string
	blank := false
	for _, raw := range strings.Split(s, "\n") {
		line := strings.TrimRightFunc(expandTabs(raw), unicode.IsSpace)
		switch {
		case strings.Contains(raw, PageBreak) && strings.TrimSpace(strings.ReplaceAll(raw, PageBreak, "")) == "":
			out = trimTrailingBlank(out)
			if len(out) > 0 && out[len(out)-1] != PageBreak {
				out = append(out, PageBreak)
			}
			blank = false
			continue
		case strings.TrimSpace(line) == "":
			if !blank && len(out) > 0 && out[len(out)-1] != PageBreak {
				out = append(out, "")
			}
			blank = true
			continue
		case reSeparator.MatchString(line):
			continue
		}
		blank = false

		line = strings.ReplaceAll(line, PageBreak, "")
		if IsLayoutLine(line) {
			out = append(out, line)
			continue
		}
		line = strings.TrimSpace(reMultiSpace.ReplaceAllString(line, " "))

		if n := len(out); n > 0 && continues(out[n-1], line) {
			prev := out[n-1]
			if reHyphenEnd.MatchString(prev) {
				out[n-1] = prev[:len(prev)-1] + line
			} else {
				out[n-1] = prev + " " + line
			}
			continue
		}
		out = append(out, line)
	}
	return trimTrailingBlank(out)
}

// IsLayoutLine reports whether a line carries spacing that must survive
// normalization: two or more numeric tokens, or three or more cells separated
// by column gaps with no label among them (a table header).
func IsLayoutLine(line string) bool {
	if NumericTokens(line) >= 2 {
		return true
	}
	cells := reColumnGap.Split(strings.TrimSpace(line), -1)
	if len(cells) < 3 {
		return false
	}
	for _, c := range cells {
		if strings.Contains(c, ":") {
			return false
		}
	}
	return true
}

// NumericTokens counts whitespace separated tokens that look like numbers,
// unit suffixes included.
func NumericTokens(line string) int {
	n := 0
	for _, f := range strings.Fields(line) {
		if reNumeric.MatchString(f) {
			n++
		}
	}
	return n
}

func continues(prev, next string) bool {
	if prev == "" || prev == PageBreak || IsLayoutLine(prev) || next == "" {
		return false
	}
	if reHyphenEnd.MatchString(prev) {
		r := []rune(next)
		return unicode.IsLower(r[0])
	}
	if strings.HasSuffix(prev, ":") {
		return false
	}
	fields := strings.Fields(prev)
	last := strings.ToLower(fields[len(fields)-1])
	_, ok := danglingWords[last]
	return ok && len(fields) > 1
}

func expandTabs(s string) string {
	if !strings.Contains(s, "\t") {
		return s
	}
	var b strings.Builder
	col := 0
	for _, r := range s {
		if r == '\t' {
			n := 8 - col%8
			b.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}

func trimTrailingBlank(lines []string) []string {
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
